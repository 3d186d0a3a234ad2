package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"voxelcraft.ai/internal/sim/world/terrain/gen"
	"voxelcraft.ai/internal/sim/world/terrain/store"
)

type Tuning struct {
	Seed int32 `yaml:"seed"`

	Streaming Streaming `yaml:"streaming"`
	Atlas     Atlas     `yaml:"atlas"`
	Mesh      Mesh      `yaml:"mesh"`
	Terrain   Terrain   `yaml:"terrain"`
	Server    Server    `yaml:"server"`
}

type Streaming struct {
	RenderDistance     int     `yaml:"render_distance"`
	EvictMoveThreshold float32 `yaml:"evict_move_threshold"`
	EvictDistance      float32 `yaml:"evict_distance"`
	PriorityBand       float32 `yaml:"priority_band"`
	ItemsPerUpdate     int     `yaml:"items_per_update"`
	OptimizeDelaySec   float64 `yaml:"optimize_delay_sec"`
	Workers            int     `yaml:"workers"`
}

type Atlas struct {
	Size      int `yaml:"size"`
	MipLevels int `yaml:"mip_levels"`
}

type Mesh struct {
	AOStrength float32 `yaml:"ao_strength"`
}

type Terrain struct {
	BaseHeight           int     `yaml:"base_height"`
	SeaLevel             int     `yaml:"sea_level"`
	ContinentalAmplitude float64 `yaml:"continental_amplitude"`
	PeaksAmplitude       float64 `yaml:"peaks_amplitude"`
	DirtDepth            int     `yaml:"dirt_depth"`
	TreePermille         int     `yaml:"tree_permille"`

	ContinentalCurve []gen.CurvePoint `yaml:"continental_curve"`
	ErosionCurve     []gen.CurvePoint `yaml:"erosion_curve"`
	PeaksCurve       []gen.CurvePoint `yaml:"peaks_curve"`
}

type Server struct {
	TickRateHz   int     `yaml:"tick_rate_hz"`
	EditsPerSec  float64 `yaml:"edits_per_sec"`
	EditBurst    int     `yaml:"edit_burst"`
	MaxReach     float32 `yaml:"max_reach"`
	MaxSessions  int     `yaml:"max_sessions"`
	SendQueueLen int     `yaml:"send_queue_len"`
}

func Defaults() Tuning {
	p := gen.DefaultParams()
	return Tuning{
		Seed: 1337,
		Streaming: Streaming{
			RenderDistance:     8,
			EvictMoveThreshold: 20,
			EvictDistance:      50,
			PriorityBand:       10,
			ItemsPerUpdate:     1,
			OptimizeDelaySec:   0.5,
			Workers:            4,
		},
		Atlas: Atlas{Size: 128, MipLevels: 5},
		Mesh:  Mesh{AOStrength: 0.2},
		Terrain: Terrain{
			BaseHeight:           p.BaseHeight,
			SeaLevel:             p.SeaLevel,
			ContinentalAmplitude: p.ContinentalAmplitude,
			PeaksAmplitude:       p.PeaksAmplitude,
			DirtDepth:            p.DirtDepth,
			TreePermille:         p.TreePermille,
			ContinentalCurve:     p.ContinentalCurve,
			ErosionCurve:         p.ErosionCurve,
			PeaksCurve:           p.PeaksCurve,
		},
		Server: Server{
			TickRateHz:   20,
			EditsPerSec:  8,
			EditBurst:    4,
			MaxReach:     8,
			MaxSessions:  64,
			SendQueueLen: 256,
		},
	}
}

// Load reads a tuning file. Fields left at zero are filled from Defaults,
// except terrain.tree_permille where zero disables trees.
func Load(path string) (Tuning, error) {
	t := Tuning{}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

func (t *Tuning) applyDefaults() {
	d := Defaults()
	if t.Seed == 0 {
		t.Seed = d.Seed
	}

	s := &t.Streaming
	setInt(&s.RenderDistance, d.Streaming.RenderDistance)
	setF32(&s.EvictMoveThreshold, d.Streaming.EvictMoveThreshold)
	setF32(&s.EvictDistance, d.Streaming.EvictDistance)
	setF32(&s.PriorityBand, d.Streaming.PriorityBand)
	setInt(&s.ItemsPerUpdate, d.Streaming.ItemsPerUpdate)
	if s.OptimizeDelaySec <= 0 {
		s.OptimizeDelaySec = d.Streaming.OptimizeDelaySec
	}
	setInt(&s.Workers, d.Streaming.Workers)

	setInt(&t.Atlas.Size, d.Atlas.Size)
	setInt(&t.Atlas.MipLevels, d.Atlas.MipLevels)
	setF32(&t.Mesh.AOStrength, d.Mesh.AOStrength)

	tr := &t.Terrain
	setInt(&tr.BaseHeight, d.Terrain.BaseHeight)
	setInt(&tr.SeaLevel, d.Terrain.SeaLevel)
	if tr.ContinentalAmplitude == 0 {
		tr.ContinentalAmplitude = d.Terrain.ContinentalAmplitude
	}
	if tr.PeaksAmplitude == 0 {
		tr.PeaksAmplitude = d.Terrain.PeaksAmplitude
	}
	setInt(&tr.DirtDepth, d.Terrain.DirtDepth)
	if len(tr.ContinentalCurve) == 0 {
		tr.ContinentalCurve = d.Terrain.ContinentalCurve
	}
	if len(tr.ErosionCurve) == 0 {
		tr.ErosionCurve = d.Terrain.ErosionCurve
	}
	if len(tr.PeaksCurve) == 0 {
		tr.PeaksCurve = d.Terrain.PeaksCurve
	}

	sv := &t.Server
	setInt(&sv.TickRateHz, d.Server.TickRateHz)
	if sv.EditsPerSec <= 0 {
		sv.EditsPerSec = d.Server.EditsPerSec
	}
	setInt(&sv.EditBurst, d.Server.EditBurst)
	setF32(&sv.MaxReach, d.Server.MaxReach)
	setInt(&sv.MaxSessions, d.Server.MaxSessions)
	setInt(&sv.SendQueueLen, d.Server.SendQueueLen)
}

func setInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func setF32(v *float32, def float32) {
	if *v <= 0 {
		*v = def
	}
}

// GenParams converts the terrain section for the generator.
func (t Tuning) GenParams() gen.Params {
	return gen.Params{
		BaseHeight:           t.Terrain.BaseHeight,
		SeaLevel:             t.Terrain.SeaLevel,
		ContinentalAmplitude: t.Terrain.ContinentalAmplitude,
		PeaksAmplitude:       t.Terrain.PeaksAmplitude,
		DirtDepth:            t.Terrain.DirtDepth,
		TreePermille:         t.Terrain.TreePermille,
		ContinentalCurve:     t.Terrain.ContinentalCurve,
		ErosionCurve:         t.Terrain.ErosionCurve,
		PeaksCurve:           t.Terrain.PeaksCurve,
	}
}

// StoreConfig converts the streaming section. Generator, Chunk, Logger and
// OnEvent are left for the caller.
func (t Tuning) StoreConfig() store.Config {
	s := t.Streaming
	return store.Config{
		RenderDistance:     s.RenderDistance,
		EvictMoveThreshold: s.EvictMoveThreshold,
		EvictDistance:      s.EvictDistance,
		PriorityBand:       s.PriorityBand,
		ItemsPerUpdate:     s.ItemsPerUpdate,
		OptimizeDelay:      s.OptimizeDelaySec,
		Workers:            s.Workers,
	}
}
