package chunk

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"voxelcraft.ai/internal/sim/catalogs"
	"voxelcraft.ai/internal/sim/world/logic/mathx"
)

type uvKey struct {
	id   catalogs.BlockType
	face int
}

type uvRect struct {
	origin, size mgl32.Vec2
}

// GenerateMesh rebuilds the mesh from the current blocks. Cells beside the
// chunk are looked up through src; a nil src treats them as Empty. The old
// mesh is replaced only when the new one is complete.
func (c *Chunk) GenerateMesh(src BlockSource) error {
	reg := c.cfg.Registry
	strength := c.cfg.AOStrength

	prev := c.mesh
	vertices := make([]Vertex, 0, len(prev.Vertices))
	indices := make([]uint32, 0, len(prev.Indices))
	uvs := map[uvKey]uvRect{}

	for i := range c.blocks {
		id := c.blocks[i]
		if id == catalogs.Empty {
			continue
		}
		desc := reg.Describe(id)
		p := IndexToCoords(i)
		base := mgl32.Vec3{float32(p[0]), float32(p[1]), float32(p[2])}

		for f := range faces {
			fd := &faces[f]
			other := c.local(p.Add(fd.dir), src)
			if other != catalogs.Empty {
				if reg.IsOpaque(other) {
					continue
				}
				if other == id && desc.CullSelf {
					continue
				}
			}

			k := uvKey{id: id, face: f}
			uv, ok := uvs[k]
			if !ok {
				origin, size, err := c.cfg.UVs.UVs(id, fd.normal)
				if err != nil {
					return fmt.Errorf("mesh chunk %v: %w", c.coords, err)
				}
				uv = uvRect{origin: origin, size: size}
				uvs[k] = uv
			}

			ao := c.faceAO(p, fd, other != catalogs.Empty, strength, src)

			start := uint32(len(vertices))
			for v := 0; v < 4; v++ {
				t := quadUV[v]
				vertices = append(vertices, Vertex{
					Position: fd.corners[v].Add(base),
					Color:    desc.Color,
					UV:       mgl32.Vec2{uv.origin[0] + uv.size[0]*t[0], uv.origin[1] + uv.size[1]*t[1]},
					AO:       ao[v],
				})
			}
			for _, idx := range quadIndices {
				indices = append(indices, start+idx)
			}
		}
	}

	c.mesh = Mesh{
		Vertices: vertices,
		Indices:  indices,
		Version:  prev.Version + 1,
	}
	return nil
}

// faceAO darkens each corner by how many of its three ring cells are solid.
// A face looking into a transparent block is darkened uniformly instead.
func (c *Chunk) faceAO(p mathx.IVec3, fd *face, behindGlass bool, strength float32, src BlockSource) [4]float32 {
	if behindGlass {
		v := 1 - 3*strength
		return [4]float32{v, v, v, v}
	}
	var open [8]float32
	for r := range fd.ring {
		if c.isEmpty(p.Add(fd.ring[r]), src) {
			open[r] = 1
		}
	}
	var ao [4]float32
	for k := 0; k < 4; k++ {
		n := open[2*k] + open[2*k+1] + open[(2*k+2)%8]
		ao[k] = 1 + (n-3)*strength
	}
	return ao
}
