package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-gl/mathgl/mgl32"

	"voxelcraft.ai/internal/sim/catalogs"
	"voxelcraft.ai/internal/sim/world/chunk"
	"voxelcraft.ai/internal/sim/world/logic/mathx"
)

// ViewerChunk is the chunk column containing the viewer.
func ViewerChunk(viewer mgl32.Vec3) chunk.Coords {
	return chunk.CoordsForBlock(mathx.IVec3{
		int(floor32(viewer.X())),
		0,
		int(floor32(viewer.Z())),
	})
}

func floor32(v float32) float32 {
	i := float32(int(v))
	if v < i {
		return i - 1
	}
	return i
}

// Disc lists chunk coordinates within radius of center, nearest first.
func Disc(center chunk.Coords, radius int) []chunk.Coords {
	var out []chunk.Coords
	for r := 0; r <= radius; r++ {
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				if mathx.AbsInt(dx) != r && mathx.AbsInt(dz) != r {
					continue
				}
				if dx*dx+dz*dz > radius*radius {
					continue
				}
				out = append(out, chunk.Coords{X: center.X + dx, Z: center.Z + dz})
			}
		}
	}
	return out
}

// RequestAround queues Generate for every missing chunk in render distance
// and Optimize for resident chunks that are old enough, not yet optimized
// and fully surrounded. It returns the number of new queue entries.
func (m *Manager) RequestAround(viewer mgl32.Vec3, now float64) int {
	var added int
	for _, cc := range Disc(ViewerChunk(viewer), m.cfg.RenderDistance) {
		c, ok := m.chunks[cc]
		if !ok {
			if m.LoadChunk(cc, PriorityGenerate) {
				added++
			}
			continue
		}
		if c.HasBeenOptimized() || now-c.CreatedAt() < m.cfg.OptimizeDelay {
			continue
		}
		if !m.surrounded(cc) {
			continue
		}
		if m.LoadChunk(cc, PriorityOptimize) {
			added++
		}
	}
	return added
}

func (m *Manager) surrounded(cc chunk.Coords) bool {
	for _, n := range cc.Neighbors() {
		if _, ok := m.chunks[n]; !ok {
			return false
		}
	}
	return true
}

// EditBlock writes a block and immediately remeshes every resident chunk
// whose faces or corner shading can see pos. It reports false when the
// target chunk is not resident or pos is outside the vertical range.
func (m *Manager) EditBlock(pos mathx.IVec3, t catalogs.BlockType, now float64) (bool, error) {
	if !m.SetBlockTypeAt(pos, t) {
		return false, nil
	}
	start := time.Now()
	owner := chunk.CoordsForBlock(pos)
	lx := mathx.Mod(pos[0], chunk.SizeX)
	lz := mathx.Mod(pos[2], chunk.SizeZ)

	var vertices, indices int
	for dz := -1; dz <= 1; dz++ {
		if !touches(lz, dz, chunk.SizeZ) {
			continue
		}
		for dx := -1; dx <= 1; dx++ {
			if !touches(lx, dx, chunk.SizeX) {
				continue
			}
			cc := chunk.Coords{X: owner.X + dx, Z: owner.Z + dz}
			c, ok := m.chunks[cc]
			if !ok {
				continue
			}
			if err := c.GenerateMesh(m); err != nil {
				return true, fmt.Errorf("remesh chunk %v after edit: %w", cc, err)
			}
			if cc == owner {
				mesh := c.Mesh()
				vertices, indices = len(mesh.Vertices), len(mesh.Indices)
			}
		}
	}
	m.emit(Event{
		Kind:     EventEdit,
		Coords:   owner,
		Vertices: vertices,
		Indices:  indices,
		Duration: time.Since(start),
		Time:     now,
	})
	return true, nil
}

// touches reports whether a block at local l borders the chunk offset by d.
func touches(l, d, size int) bool {
	switch d {
	case -1:
		return l == 0
	case 1:
		return l == size-1
	}
	return true
}

// Pregenerate fills and meshes every missing chunk within radius of center
// using a worker pool. The whole batch is filled before any chunk is meshed,
// so faces between chunks of the batch are culled on the first pass.
func (m *Manager) Pregenerate(ctx context.Context, center chunk.Coords, radius int, now float64) (int, error) {
	var todo []*chunk.Chunk
	for _, cc := range Disc(center, radius) {
		if _, ok := m.chunks[cc]; ok {
			continue
		}
		todo = append(todo, chunk.New(cc, m.cfg.Chunk, now))
	}
	if len(todo) == 0 {
		return 0, nil
	}
	start := time.Now()

	pool := pond.NewPool(m.cfg.Workers)
	defer pool.StopAndWait()

	run := func(fn func(c *chunk.Chunk) error) error {
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			errs []error
		)
		for _, c := range todo {
			c := c
			wg.Add(1)
			pool.Submit(func() {
				defer wg.Done()
				if ctx.Err() != nil {
					return
				}
				if err := fn(c); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			})
		}
		wg.Wait()
		if err := ctx.Err(); err != nil {
			return err
		}
		return errors.Join(errs...)
	}

	if err := run(func(c *chunk.Chunk) error {
		m.cfg.Generator.Fill(c.Coords(), c.Blocks())
		return nil
	}); err != nil {
		return 0, err
	}

	// Blocks are final; the map is only read while meshing.
	for _, c := range todo {
		m.chunks[c.Coords()] = c
		if p, ok := m.queued[c.Coords()]; ok && p == PriorityGenerate {
			m.dequeue(c.Coords())
		}
	}
	if err := run(func(c *chunk.Chunk) error {
		if err := c.GenerateMesh(m); err != nil {
			return fmt.Errorf("pregenerate chunk %v: %w", c.Coords(), err)
		}
		return nil
	}); err != nil {
		// Unmeshed chunks must not stay resident; RequestAround only asks for
		// missing ones.
		for _, c := range todo {
			delete(m.chunks, c.Coords())
		}
		return 0, err
	}

	batch := make(map[chunk.Coords]struct{}, len(todo))
	for _, c := range todo {
		batch[c.Coords()] = struct{}{}
	}
	for _, c := range todo {
		mesh := c.Mesh()
		m.emit(Event{
			Kind:     EventGenerate,
			Coords:   c.Coords(),
			Vertices: len(mesh.Vertices),
			Indices:  len(mesh.Indices),
			Time:     now,
		})
		for _, n := range c.Coords().Neighbors() {
			if _, fresh := batch[n]; fresh {
				continue
			}
			if _, ok := m.chunks[n]; ok {
				m.LoadChunk(n, PriorityOptimize)
			}
		}
	}
	m.log.Printf("pregenerate: %d chunks around %v in %s", len(todo), center, time.Since(start))
	return len(todo), nil
}

func (m *Manager) dequeue(cc chunk.Coords) {
	delete(m.queued, cc)
	for i, it := range m.queue {
		if it.coords == cc {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}
