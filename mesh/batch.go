package mesh

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Source names one OBJ file and its optional sibling material file.
type Source struct {
	MeshPath     string
	MaterialPath string
}

// DecodeFiles decodes several meshes concurrently. CPU-side decoding is the
// slow half of a scene load, so files decode in parallel; results keep the
// order of sources. The first failure cancels the remaining decodes.
func DecodeFiles(ctx context.Context, sources []Source) ([]*Mesh, error) {
	meshes := make([]*Mesh, len(sources))

	group, ctx := errgroup.WithContext(ctx)
	for i, source := range sources {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			decoded, err := DecodeFile(source.MeshPath, source.MaterialPath)
			if err != nil {
				return err
			}
			meshes[i] = decoded
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return meshes, nil
}
