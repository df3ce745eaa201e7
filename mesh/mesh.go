// Package mesh decodes wavefront OBJ geometry into the interleaved vertex
// layout the renderer uploads to the GPU.
package mesh

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"strings"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	vkngmath "github.com/vkngwrapper/math"
)

// Vertex is the interleaved attribute layout for every mesh the renderer
// draws. The field order matches the attribute descriptions below.
type Vertex struct {
	Position vkngmath.Vec3[float32]
	Color    vkngmath.Vec3[float32]
	Normal   vkngmath.Vec3[float32]
	Tangent  vkngmath.Vec3[float32]
	TexCoord vkngmath.Vec2[float32]
}

// BindingDescription returns the single interleaved vertex binding.
func BindingDescription() []core1_0.VertexInputBindingDescription {
	v := Vertex{}
	return []core1_0.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    int(unsafe.Sizeof(v)),
			InputRate: core1_0.VertexInputRateVertex,
		},
	}
}

// AttributeDescriptions returns the per-attribute layout matching Vertex.
func AttributeDescriptions() []core1_0.VertexInputAttributeDescription {
	v := Vertex{}
	return []core1_0.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Position)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Color)),
		},
		{
			Binding:  0,
			Location: 2,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Normal)),
		},
		{
			Binding:  0,
			Location: 3,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Tangent)),
		},
		{
			Binding:  0,
			Location: 4,
			Format:   core1_0.FormatR32G32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.TexCoord)),
		},
	}
}

// Mesh is indexed triangle geometry ready for upload.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// vertexKey identifies a unique position/uv/normal combination so shared
// corners collapse to one vertex.
type vertexKey struct {
	position int
	uv       int
	normal   int
}

type meshBuilder struct {
	decoder *obj.Decoder
	mesh    *Mesh
	unique  map[vertexKey]uint32
}

func (b *meshBuilder) addVertex(face obj.Face, faceIndex int) {
	key := vertexKey{position: face.Vertices[faceIndex], uv: -1, normal: -1}
	if faceIndex < len(face.Uvs) {
		key.uv = face.Uvs[faceIndex]
	}
	if faceIndex < len(face.Normals) {
		key.normal = face.Normals[faceIndex]
	}

	index, exists := b.unique[key]
	if !exists {
		vert := Vertex{
			Position: vkngmath.Vec3[float32]{
				b.decoder.Vertices[key.position*3],
				b.decoder.Vertices[key.position*3+1],
				b.decoder.Vertices[key.position*3+2],
			},
			Color: vkngmath.Vec3[float32]{1, 1, 1},
		}

		if key.uv >= 0 {
			// OBJ uses a bottom-left UV origin; Vulkan samples top-left.
			vert.TexCoord = vkngmath.Vec2[float32]{
				b.decoder.Uvs[key.uv*2],
				1.0 - b.decoder.Uvs[key.uv*2+1],
			}
		}
		if key.normal >= 0 {
			vert.Normal = vkngmath.Vec3[float32]{
				b.decoder.Normals[key.normal*3],
				b.decoder.Normals[key.normal*3+1],
				b.decoder.Normals[key.normal*3+2],
			}
		}

		index = uint32(len(b.mesh.Vertices))
		b.mesh.Vertices = append(b.mesh.Vertices, vert)
		b.unique[key] = index
	}

	b.mesh.Indices = append(b.mesh.Indices, index)
}

// Decode reads an OBJ stream (and an optional MTL stream, which may be nil)
// into an indexed mesh. Faces with more than three corners are fanned into
// triangles; meshes without normals get flat face normals computed.
func Decode(meshReader, materialReader io.Reader) (*Mesh, error) {
	if materialReader == nil {
		materialReader = strings.NewReader("")
	}

	decoder, err := obj.DecodeReader(meshReader, materialReader)
	if err != nil {
		return nil, errors.Wrapf(err, "mesh: decoding obj")
	}

	builder := &meshBuilder{
		decoder: decoder,
		mesh:    &Mesh{},
		unique:  make(map[vertexKey]uint32),
	}

	hasNormals := len(decoder.Normals) > 0
	for _, decodedObject := range decoder.Objects {
		for _, face := range decodedObject.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				builder.addVertex(face, 0)
				builder.addVertex(face, i-1)
				builder.addVertex(face, i)
			}
		}
	}

	if len(builder.mesh.Indices) == 0 {
		return nil, errors.New("mesh: obj stream contains no faces")
	}

	if !hasNormals {
		builder.mesh.computeNormals()
	}
	builder.mesh.computeTangents()
	return builder.mesh, nil
}

// DecodeFile reads a mesh and its sibling material file from disk. The
// material path may be empty.
func DecodeFile(meshPath, materialPath string) (*Mesh, error) {
	meshFile, err := os.Open(meshPath)
	if err != nil {
		return nil, errors.Wrapf(err, "mesh: opening %s", meshPath)
	}
	defer meshFile.Close()

	var materialReader io.Reader
	if materialPath != "" {
		materialFile, err := os.Open(materialPath)
		if err != nil {
			return nil, errors.Wrapf(err, "mesh: opening %s", materialPath)
		}
		defer materialFile.Close()
		materialReader = materialFile
	}

	return Decode(meshFile, materialReader)
}

// computeNormals fills every vertex normal with the area-weighted average
// of its adjacent face normals.
func (m *Mesh) computeNormals() {
	accumulated := make([]mgl32.Vec3, len(m.Vertices))

	for i := 0; i+2 < len(m.Indices); i += 3 {
		a := m.Vertices[m.Indices[i]].Position
		b := m.Vertices[m.Indices[i+1]].Position
		c := m.Vertices[m.Indices[i+2]].Position

		edge1 := mgl32.Vec3{b.X - a.X, b.Y - a.Y, b.Z - a.Z}
		edge2 := mgl32.Vec3{c.X - a.X, c.Y - a.Y, c.Z - a.Z}

		// The cross product's length is proportional to the triangle area,
		// so summing unnormalized normals weights by area.
		faceNormal := edge1.Cross(edge2)
		for _, index := range m.Indices[i : i+3] {
			accumulated[index] = accumulated[index].Add(faceNormal)
		}
	}

	for i := range m.Vertices {
		if accumulated[i].Len() == 0 {
			continue
		}
		normal := accumulated[i].Normalize()
		m.Vertices[i].Normal = vkngmath.Vec3[float32]{normal.X(), normal.Y(), normal.Z()}
	}
}

// computeTangents accumulates per-triangle UV-space tangents on every
// vertex and orthonormalizes them against the vertex normal. Degenerate UV
// triangles contribute nothing; their vertices fall back to an arbitrary
// axis perpendicular to the normal.
func (m *Mesh) computeTangents() {
	accumulated := make([]mgl32.Vec3, len(m.Vertices))

	for i := 0; i+2 < len(m.Indices); i += 3 {
		v0 := m.Vertices[m.Indices[i]]
		v1 := m.Vertices[m.Indices[i+1]]
		v2 := m.Vertices[m.Indices[i+2]]

		edge1 := mgl32.Vec3{v1.Position.X - v0.Position.X, v1.Position.Y - v0.Position.Y, v1.Position.Z - v0.Position.Z}
		edge2 := mgl32.Vec3{v2.Position.X - v0.Position.X, v2.Position.Y - v0.Position.Y, v2.Position.Z - v0.Position.Z}

		du1 := v1.TexCoord.X - v0.TexCoord.X
		dv1 := v1.TexCoord.Y - v0.TexCoord.Y
		du2 := v2.TexCoord.X - v0.TexCoord.X
		dv2 := v2.TexCoord.Y - v0.TexCoord.Y

		determinant := du1*dv2 - du2*dv1
		if determinant == 0 {
			continue
		}
		r := 1.0 / determinant

		tangent := edge1.Mul(dv2 * r).Sub(edge2.Mul(dv1 * r))
		for _, index := range m.Indices[i : i+3] {
			accumulated[index] = accumulated[index].Add(tangent)
		}
	}

	for i := range m.Vertices {
		normal := mgl32.Vec3{m.Vertices[i].Normal.X, m.Vertices[i].Normal.Y, m.Vertices[i].Normal.Z}
		tangent := accumulated[i]

		// Gram-Schmidt against the normal keeps the frame orthogonal.
		tangent = tangent.Sub(normal.Mul(normal.Dot(tangent)))
		if tangent.Len() < 1e-8 {
			tangent = perpendicular(normal)
		}
		tangent = tangent.Normalize()
		m.Vertices[i].Tangent = vkngmath.Vec3[float32]{tangent.X(), tangent.Y(), tangent.Z()}
	}
}

// perpendicular returns a unit vector orthogonal to n.
func perpendicular(n mgl32.Vec3) mgl32.Vec3 {
	axis := mgl32.Vec3{1, 0, 0}
	if mgl32.Abs(n.X()) > 0.9 {
		axis = mgl32.Vec3{0, 1, 0}
	}
	p := n.Cross(axis)
	if p.Len() == 0 {
		return mgl32.Vec3{0, 0, 1}
	}
	return p.Normalize()
}

// Bounds returns the axis-aligned bounding box of the mesh.
func (m *Mesh) Bounds() (min, max mgl32.Vec3) {
	if len(m.Vertices) == 0 {
		return mgl32.Vec3{}, mgl32.Vec3{}
	}

	first := m.Vertices[0].Position
	min = mgl32.Vec3{first.X, first.Y, first.Z}
	max = min
	for _, vert := range m.Vertices[1:] {
		p := vert.Position
		min = mgl32.Vec3{minf(min.X(), p.X), minf(min.Y(), p.Y), minf(min.Z(), p.Z)}
		max = mgl32.Vec3{maxf(max.X(), p.X), maxf(max.Y(), p.Y), maxf(max.Z(), p.Z)}
	}
	return min, max
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// Interleave serializes the vertices in the GPU byte order for upload.
func (m *Mesh) Interleave() ([]byte, error) {
	buf := &bytes.Buffer{}
	err := binary.Write(buf, common.ByteOrder, m.Vertices)
	if err != nil {
		return nil, errors.Wrapf(err, "mesh: serializing vertices")
	}
	return buf.Bytes(), nil
}

// IndexBytes serializes the 32-bit indices in the GPU byte order for upload.
func (m *Mesh) IndexBytes() ([]byte, error) {
	buf := &bytes.Buffer{}
	err := binary.Write(buf, common.ByteOrder, m.Indices)
	if err != nil {
		return nil, errors.Wrapf(err, "mesh: serializing indices")
	}
	return buf.Bytes(), nil
}
