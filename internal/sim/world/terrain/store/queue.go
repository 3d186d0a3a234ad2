package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"voxelcraft.ai/internal/sim/world/chunk"
)

// LoadChunk queues work for coords. The first request for a coordinate wins;
// later requests are ignored until it has been serviced. Generate requests
// for resident chunks are ignored.
func (m *Manager) LoadChunk(coords chunk.Coords, p Priority) bool {
	if _, ok := m.queued[coords]; ok {
		return false
	}
	if p == PriorityGenerate {
		if _, ok := m.chunks[coords]; ok {
			return false
		}
	}
	m.queue = append(m.queue, workItem{coords: coords, priority: p})
	m.queued[coords] = p
	return true
}

// Pending returns the number of queued work items.
func (m *Manager) Pending() int { return len(m.queue) }

func (m *Manager) IsQueued(coords chunk.Coords) (Priority, bool) {
	p, ok := m.queued[coords]
	return p, ok
}

// chunkDistanceSq is the squared distance, in chunks, from the viewer to the
// center of the chunk column.
func chunkDistanceSq(c chunk.Coords, viewer mgl32.Vec3) float32 {
	dx := float32(c.X) + 0.5 - viewer.X()/chunk.SizeX
	dz := float32(c.Z) + 0.5 - viewer.Z()/chunk.SizeZ
	return dx*dx + dz*dz
}

func (m *Manager) effectiveDistance(it workItem, viewer mgl32.Vec3) float32 {
	band := m.cfg.PriorityBand
	return chunkDistanceSq(it.coords, viewer) + float32(it.priority)*band*band
}

// Update services at most ItemsPerUpdate queued items, nearest first.
// The only error is a fatal meshing failure (atlas exhausted or a texture
// that does not decode).
func (m *Manager) Update(viewer mgl32.Vec3, now float64) error {
	m.evict(viewer, now)
	m.prune(viewer)
	if len(m.queue) == 0 {
		return nil
	}

	sort.SliceStable(m.queue, func(i, j int) bool {
		return m.effectiveDistance(m.queue[i], viewer) > m.effectiveDistance(m.queue[j], viewer)
	})

	n := min(m.cfg.ItemsPerUpdate, len(m.queue))
	batch := make([]workItem, n)
	for i := range batch {
		batch[i] = m.queue[len(m.queue)-1]
		m.queue = m.queue[:len(m.queue)-1]
		delete(m.queued, batch[i].coords)
	}
	// work queued while servicing waits for the next call
	for _, it := range batch {
		if err := m.service(it, now); err != nil {
			return err
		}
	}
	return nil
}

// evict drops far chunks and all pending work once the viewer has moved far
// enough since the last pass.
func (m *Manager) evict(viewer mgl32.Vec3, now float64) {
	if !m.hasEvictOrigin {
		m.evictOrigin = viewer
		m.hasEvictOrigin = true
		return
	}
	t := m.cfg.EvictMoveThreshold
	if viewer.Sub(m.evictOrigin).LenSqr() <= t*t {
		return
	}
	m.evictOrigin = viewer

	cutoff := m.cfg.EvictDistance * m.cfg.EvictDistance
	var dropped int
	for coords := range m.chunks {
		if chunkDistanceSq(coords, viewer) > cutoff {
			delete(m.chunks, coords)
			dropped++
			m.emit(Event{Kind: EventEvict, Coords: coords, Time: now})
		}
	}
	if dropped > 0 || len(m.queue) > 0 {
		m.log.Printf("evict: dropped %d chunks, discarded %d pending", dropped, len(m.queue))
	}
	m.queue = m.queue[:0]
	clear(m.queued)
}

func (m *Manager) prune(viewer mgl32.Vec3) {
	cutoff := m.cfg.EvictDistance * m.cfg.EvictDistance
	kept := m.queue[:0]
	for _, it := range m.queue {
		if chunkDistanceSq(it.coords, viewer) > cutoff {
			delete(m.queued, it.coords)
			continue
		}
		kept = append(kept, it)
	}
	m.queue = kept
}

func (m *Manager) service(it workItem, now float64) error {
	switch it.priority {
	case PriorityGenerate:
		return m.generate(it.coords, now)
	case PriorityOptimize:
		return m.optimize(it.coords, now)
	}
	return nil
}

func (m *Manager) generate(coords chunk.Coords, now float64) error {
	if _, ok := m.chunks[coords]; ok {
		return nil
	}
	start := time.Now()
	c := chunk.New(coords, m.cfg.Chunk, now)
	m.cfg.Generator.Fill(coords, c.Blocks())
	if err := c.GenerateMesh(m); err != nil {
		return fmt.Errorf("generate chunk %v: %w", coords, err)
	}
	m.chunks[coords] = c
	m.refreshNeighbors(coords)

	mesh := c.Mesh()
	m.emit(Event{
		Kind:     EventGenerate,
		Coords:   coords,
		Vertices: len(mesh.Vertices),
		Indices:  len(mesh.Indices),
		Duration: time.Since(start),
		Time:     now,
	})
	return nil
}

func (m *Manager) optimize(coords chunk.Coords, now float64) error {
	c, ok := m.chunks[coords]
	if !ok {
		return nil
	}
	start := time.Now()
	if err := c.Optimize(m); err != nil {
		return fmt.Errorf("optimize chunk %v: %w", coords, err)
	}
	mesh := c.Mesh()
	m.emit(Event{
		Kind:     EventOptimize,
		Coords:   coords,
		Vertices: len(mesh.Vertices),
		Indices:  len(mesh.Indices),
		Duration: time.Since(start),
		Time:     now,
	})
	return nil
}

// refreshNeighbors queues an Optimize for every resident neighbor so faces
// drawn against the missing chunk get culled.
func (m *Manager) refreshNeighbors(coords chunk.Coords) {
	for _, n := range coords.Neighbors() {
		if _, ok := m.chunks[n]; ok {
			m.LoadChunk(n, PriorityOptimize)
		}
	}
}
