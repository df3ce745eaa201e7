package mesh

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"
)

const quadOBJ = `
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1 4/4/1
`

const noNormalTriangleOBJ = `
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`

func TestDecodeTriangulatesAndDeduplicates(t *testing.T) {
	decoded, err := Decode(strings.NewReader(quadOBJ), nil)
	require.NoError(t, err)

	// The quad fans into two triangles sharing two corners.
	assert.Len(t, decoded.Indices, 6)
	assert.Len(t, decoded.Vertices, 4)

	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, decoded.Indices)
}

func TestDecodeFlipsV(t *testing.T) {
	decoded, err := Decode(strings.NewReader(quadOBJ), nil)
	require.NoError(t, err)

	// OBJ vt 1 1 lands at the third corner; V flips to 0.
	corner := decoded.Vertices[2]
	assert.InDelta(t, 1.0, float64(corner.TexCoord.X), 1e-6)
	assert.InDelta(t, 0.0, float64(corner.TexCoord.Y), 1e-6)
}

func TestDecodeKeepsAuthoredNormals(t *testing.T) {
	decoded, err := Decode(strings.NewReader(quadOBJ), nil)
	require.NoError(t, err)

	for _, vert := range decoded.Vertices {
		assert.InDelta(t, 0.0, float64(vert.Normal.X), 1e-6)
		assert.InDelta(t, 0.0, float64(vert.Normal.Y), 1e-6)
		assert.InDelta(t, 1.0, float64(vert.Normal.Z), 1e-6)
	}
}

func TestDecodeComputesMissingNormals(t *testing.T) {
	decoded, err := Decode(strings.NewReader(noNormalTriangleOBJ), nil)
	require.NoError(t, err)
	require.Len(t, decoded.Vertices, 3)

	// Counter-clockwise in the XY plane faces +Z.
	for _, vert := range decoded.Vertices {
		assert.InDelta(t, 0.0, float64(vert.Normal.X), 1e-6)
		assert.InDelta(t, 0.0, float64(vert.Normal.Y), 1e-6)
		assert.InDelta(t, 1.0, float64(vert.Normal.Z), 1e-6)
	}
}

func TestTangentsAreUnitAndOrthogonalToNormals(t *testing.T) {
	decoded, err := Decode(strings.NewReader(quadOBJ), nil)
	require.NoError(t, err)

	for _, vert := range decoded.Vertices {
		length := vert.Tangent.X*vert.Tangent.X + vert.Tangent.Y*vert.Tangent.Y + vert.Tangent.Z*vert.Tangent.Z
		assert.InDelta(t, 1.0, float64(length), 1e-5)

		dot := vert.Tangent.X*vert.Normal.X + vert.Tangent.Y*vert.Normal.Y + vert.Tangent.Z*vert.Normal.Z
		assert.InDelta(t, 0.0, float64(dot), 1e-5)
	}
}

func TestDecodeRejectsEmptyGeometry(t *testing.T) {
	_, err := Decode(strings.NewReader("v 0 0 0\n"), nil)
	require.Error(t, err)
}

func TestBounds(t *testing.T) {
	decoded, err := Decode(strings.NewReader(quadOBJ), nil)
	require.NoError(t, err)

	min, max := decoded.Bounds()
	assert.Equal(t, float32(0), min.X())
	assert.Equal(t, float32(0), min.Y())
	assert.Equal(t, float32(1), max.X())
	assert.Equal(t, float32(1), max.Y())
}

func TestSerializedSizes(t *testing.T) {
	decoded, err := Decode(strings.NewReader(quadOBJ), nil)
	require.NoError(t, err)

	vertexBytes, err := decoded.Interleave()
	require.NoError(t, err)
	assert.Equal(t, len(decoded.Vertices)*int(unsafe.Sizeof(Vertex{})), len(vertexBytes))

	indexBytes, err := decoded.IndexBytes()
	require.NoError(t, err)
	assert.Equal(t, len(decoded.Indices)*4, len(indexBytes))
}

func TestVertexLayoutMatchesDescriptions(t *testing.T) {
	bindings := BindingDescription()
	require.Len(t, bindings, 1)
	assert.Equal(t, int(unsafe.Sizeof(Vertex{})), bindings[0].Stride)
	assert.Equal(t, core1_0.VertexInputRateVertex, bindings[0].InputRate)

	attributes := AttributeDescriptions()
	require.Len(t, attributes, 5)
	for i, attribute := range attributes {
		assert.Equal(t, i, attribute.Location)
		assert.Equal(t, 0, attribute.Binding)
	}
}

func TestDecodeFiles(t *testing.T) {
	dir := t.TempDir()

	quadPath := filepath.Join(dir, "quad.obj")
	require.NoError(t, os.WriteFile(quadPath, []byte(quadOBJ), 0o644))
	trianglePath := filepath.Join(dir, "triangle.obj")
	require.NoError(t, os.WriteFile(trianglePath, []byte(noNormalTriangleOBJ), 0o644))

	meshes, err := DecodeFiles(context.Background(), []Source{
		{MeshPath: quadPath},
		{MeshPath: trianglePath},
	})
	require.NoError(t, err)
	require.Len(t, meshes, 2)
	assert.Len(t, meshes[0].Indices, 6)
	assert.Len(t, meshes[1].Indices, 3)
}

func TestDecodeFilesPropagatesFailure(t *testing.T) {
	_, err := DecodeFiles(context.Background(), []Source{
		{MeshPath: filepath.Join(t.TempDir(), "missing.obj")},
	})
	require.Error(t, err)
}
