package store

import (
	"sort"

	"voxelcraft.ai/internal/sim/catalogs"
	"voxelcraft.ai/internal/sim/world/chunk"
	"voxelcraft.ai/internal/sim/world/logic/mathx"
)

// FindChunk returns the resident chunk at coords. A miss means "not loaded
// yet", not an error.
func (m *Manager) FindChunk(coords chunk.Coords) (*chunk.Chunk, bool) {
	c, ok := m.chunks[coords]
	return c, ok
}

func (m *Manager) Len() int { return len(m.chunks) }

func (m *Manager) LoadedChunkKeys() []chunk.Coords {
	keys := make([]chunk.Coords, 0, len(m.chunks))
	for k := range m.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Z < keys[j].Z
	})
	return keys
}

// BlockTypeAt reads a block by world position. Blocks in chunks that are not
// resident read as Empty.
func (m *Manager) BlockTypeAt(pos mathx.IVec3) catalogs.BlockType {
	c, ok := m.chunks[chunk.CoordsForBlock(pos)]
	if !ok {
		return catalogs.Empty
	}
	return c.BlockTypeAtWorld(pos)
}

// SetBlockTypeAt writes a block by world position without remeshing. It
// reports false when the chunk is not resident or y is out of range.
func (m *Manager) SetBlockTypeAt(pos mathx.IVec3, t catalogs.BlockType) bool {
	c, ok := m.chunks[chunk.CoordsForBlock(pos)]
	if !ok {
		return false
	}
	return c.SetBlockTypeAtWorld(pos, t)
}

// Stats sums mesh sizes over resident chunks.
type Stats struct {
	Chunks    int
	Pending   int
	Vertices  int
	Triangles int
}

func (m *Manager) Stats() Stats {
	s := Stats{Chunks: len(m.chunks), Pending: len(m.queue)}
	for _, c := range m.chunks {
		mesh := c.Mesh()
		s.Vertices += len(mesh.Vertices)
		s.Triangles += mesh.Triangles()
	}
	return s
}
