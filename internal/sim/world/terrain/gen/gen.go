package gen

import (
	"voxelcraft.ai/internal/sim/catalogs"
	"voxelcraft.ai/internal/sim/world/chunk"
	"voxelcraft.ai/internal/sim/world/logic/mathx"
)

type Params struct {
	BaseHeight           int
	SeaLevel             int
	ContinentalAmplitude float64
	PeaksAmplitude       float64
	// DirtDepth counts the surface block, so 3 means grass over two dirt.
	DirtDepth    int
	TreePermille int

	ContinentalCurve []CurvePoint
	ErosionCurve     []CurvePoint
	PeaksCurve       []CurvePoint
}

func DefaultParams() Params {
	return Params{
		BaseHeight:           100,
		SeaLevel:             127,
		ContinentalAmplitude: 64,
		PeaksAmplitude:       24,
		DirtDepth:            3,
		TreePermille:         8,
		ContinentalCurve: []CurvePoint{
			{0, 0}, {0.27, 0.12}, {0.44, 0.47}, {0.58, 0.54}, {0.72, 0.91}, {1, 0.92},
		},
		ErosionCurve: []CurvePoint{{0, 0}, {1, 1}},
		PeaksCurve:   []CurvePoint{{0, 0}, {0.5, 0.3}, {1, 1}},
	}
}

// Column is the generated profile of one (x, z) column.
type Column struct {
	// Height is the y of the topmost solid block.
	Height          int
	Continentalness float64
	Erosion         float64
	PeaksAndValleys float64
}

// Generator fills chunks from a seed. It keeps no mutable state and may be
// shared between goroutines.
type Generator struct {
	seed   *Seed
	params Params

	continental Curve
	erosion     Curve
	peaks       Curve

	stages []Stage
}

func New(seed int32, p Params) *Generator {
	def := DefaultParams()
	if p.BaseHeight <= 0 {
		p.BaseHeight = def.BaseHeight
	}
	if p.SeaLevel <= 0 {
		p.SeaLevel = def.SeaLevel
	}
	if p.DirtDepth <= 0 {
		p.DirtDepth = def.DirtDepth
	}
	if p.TreePermille < 0 {
		p.TreePermille = 0
	}
	return &Generator{
		seed:        NewSeed(seed),
		params:      p,
		continental: NewCurve(p.ContinentalCurve),
		erosion:     NewCurve(p.ErosionCurve),
		peaks:       NewCurve(p.PeaksCurve),
		stages:      DefaultStages(),
	}
}

func (g *Generator) Seed() *Seed     { return g.seed }
func (g *Generator) Params() Params  { return g.params }
func (g *Generator) Stages() []Stage { return g.stages }

// WithStages returns a copy of g running the given stages in order.
func (g *Generator) WithStages(stages ...Stage) *Generator {
	cp := *g
	cp.stages = append([]Stage(nil), stages...)
	return &cp
}

// HeightAndMaterial evaluates the column at world (x, z).
func (g *Generator) HeightAndMaterial(x, z int) Column {
	fx, fz := float64(x), float64(z)
	c := g.continental.Value(g.seed.Continentalness(fx, fz))
	e := g.erosion.Value(g.seed.Erosion(fx, fz))
	pv := g.peaks.Value(g.seed.PeaksAndValleys(fx, fz))

	h := float64(g.params.BaseHeight) +
		c*g.params.ContinentalAmplitude +
		pv*g.params.PeaksAmplitude*(1-e)

	return Column{
		Height:          mathx.ClampInt(int(h), 1, chunk.SizeY-2),
		Continentalness: c,
		Erosion:         e,
		PeaksAndValleys: pv,
	}
}

// Land reports whether the column surface is above the sea.
func (g *Generator) Land(col Column) bool {
	return col.Height > g.params.SeaLevel
}

// BlockAt applies the column fill rule without features.
func (g *Generator) BlockAt(col Column, y int) catalogs.BlockType {
	switch {
	case y < 0 || y >= chunk.SizeY:
		return catalogs.Empty
	case y == 0:
		return catalogs.Bedrock
	case y <= col.Height:
		depth := col.Height - y
		if depth >= g.params.DirtDepth {
			return catalogs.Stone
		}
		if depth == 0 && g.Land(col) {
			return catalogs.Grass
		}
		return catalogs.Dirt
	case y <= g.params.SeaLevel:
		return catalogs.Water
	}
	return catalogs.Empty
}

// Fill overwrites blocks with the generated contents of the chunk at coords.
func (g *Generator) Fill(coords chunk.Coords, blocks *chunk.Blocks) {
	*blocks = chunk.Blocks{}
	r := &Region{
		Coords: coords,
		Offset: coords.Offset(),
		Blocks: blocks,
	}
	for z := 0; z < chunk.SizeZ; z++ {
		for x := 0; x < chunk.SizeX; x++ {
			r.Columns[x+z*chunk.SizeX] = g.HeightAndMaterial(r.Offset[0]+x, r.Offset[2]+z)
		}
	}
	for _, s := range g.stages {
		s.Apply(g, r)
	}
}
