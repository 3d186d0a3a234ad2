package store

import (
	"io"
	"log"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"voxelcraft.ai/internal/sim/world/chunk"
	"voxelcraft.ai/internal/sim/world/terrain/gen"
)

// Priority orders pending work. Lower values are serviced first within the
// same distance band.
type Priority uint8

const (
	PriorityGenerate Priority = 1
	PriorityOptimize Priority = 2
)

func (p Priority) String() string {
	switch p {
	case PriorityGenerate:
		return "generate"
	case PriorityOptimize:
		return "optimize"
	default:
		return "unknown"
	}
}

type EventKind string

const (
	EventGenerate EventKind = "generate"
	EventOptimize EventKind = "optimize"
	EventEvict    EventKind = "evict"
	EventEdit     EventKind = "edit"
)

type Event struct {
	Kind     EventKind
	Coords   chunk.Coords
	Vertices int
	Indices  int
	Duration time.Duration
	// Time is the manager clock passed to Update or EditBlock.
	Time float64
}

// EventEntry is the logged form of an Event.
type EventEntry struct {
	Session    string  `json:"session,omitempty"`
	Kind       string  `json:"kind"`
	CX         int     `json:"cx"`
	CZ         int     `json:"cz"`
	Vertices   int     `json:"vertices"`
	Indices    int     `json:"indices"`
	DurationUS int64   `json:"duration_us"`
	Time       float64 `json:"t"`
	RecordedAt string  `json:"recorded_at"`
}

func (e Event) Entry(session string) EventEntry {
	return EventEntry{
		Session:    session,
		Kind:       string(e.Kind),
		CX:         e.Coords.X,
		CZ:         e.Coords.Z,
		Vertices:   e.Vertices,
		Indices:    e.Indices,
		DurationUS: e.Duration.Microseconds(),
		Time:       e.Time,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

type Config struct {
	Generator *gen.Generator
	Chunk     *chunk.Config

	// Distances are in chunks unless noted.
	RenderDistance int
	// EvictMoveThreshold is in world units.
	EvictMoveThreshold float32
	EvictDistance      float32
	PriorityBand       float32
	ItemsPerUpdate     int
	// OptimizeDelay is the minimum chunk age in seconds before RequestAround
	// asks for an Optimize pass.
	OptimizeDelay float64
	Workers       int

	Logger  *log.Logger
	OnEvent func(Event)
}

func DefaultConfig() Config {
	return Config{
		RenderDistance:     8,
		EvictMoveThreshold: 20,
		EvictDistance:      50,
		PriorityBand:       10,
		ItemsPerUpdate:     1,
		OptimizeDelay:      0.5,
		Workers:            4,
	}
}

type workItem struct {
	coords   chunk.Coords
	priority Priority
}

// Manager owns the resident chunks around one viewer and the queue of
// pending generate/optimize work. It is not safe for concurrent use.
type Manager struct {
	cfg Config
	log *log.Logger

	chunks map[chunk.Coords]*chunk.Chunk
	queue  []workItem
	queued map[chunk.Coords]Priority

	evictOrigin    mgl32.Vec3
	hasEvictOrigin bool
}

func NewManager(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.RenderDistance <= 0 {
		cfg.RenderDistance = def.RenderDistance
	}
	if cfg.EvictMoveThreshold <= 0 {
		cfg.EvictMoveThreshold = def.EvictMoveThreshold
	}
	if cfg.EvictDistance <= 0 {
		cfg.EvictDistance = def.EvictDistance
	}
	if cfg.PriorityBand <= 0 {
		cfg.PriorityBand = def.PriorityBand
	}
	if cfg.ItemsPerUpdate <= 0 {
		cfg.ItemsPerUpdate = def.ItemsPerUpdate
	}
	if cfg.OptimizeDelay < 0 {
		cfg.OptimizeDelay = 0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Manager{
		cfg:    cfg,
		log:    logger,
		chunks: map[chunk.Coords]*chunk.Chunk{},
		queued: map[chunk.Coords]Priority{},
	}
}

func (m *Manager) Config() Config { return m.cfg }

func (m *Manager) emit(ev Event) {
	if m.cfg.OnEvent != nil {
		m.cfg.OnEvent(ev)
	}
}
