package gen

import (
	"voxelcraft.ai/internal/sim/catalogs"
	"voxelcraft.ai/internal/sim/world/chunk"
	"voxelcraft.ai/internal/sim/world/logic/mathx"
)

// Region is the shared buffer the stages of one Fill call work on.
type Region struct {
	Coords  chunk.Coords
	Offset  mathx.IVec3
	Columns [chunk.SizeX * chunk.SizeZ]Column
	Blocks  *chunk.Blocks
}

func (r *Region) Column(x, z int) Column {
	return r.Columns[x+z*chunk.SizeX]
}

func (r *Region) At(x, y, z int) catalogs.BlockType {
	return r.Blocks[chunk.CoordsToIndex(mathx.IVec3{x, y, z})]
}

func (r *Region) Set(x, y, z int, t catalogs.BlockType) {
	r.Blocks[chunk.CoordsToIndex(mathx.IVec3{x, y, z})] = t
}

// Stage is one step of chunk generation. Stages run in order over the same
// Region and must depend only on the generator and the region contents.
type Stage struct {
	Name  string
	Apply func(g *Generator, r *Region)
}

func DefaultStages() []Stage {
	return []Stage{
		{Name: "terrain_shaping", Apply: shapeTerrain},
		{Name: "surface_replacement", Apply: replaceSurface},
		{Name: "water_filling", Apply: fillWater},
		{Name: "trees", Apply: plantTrees},
	}
}

func shapeTerrain(g *Generator, r *Region) {
	for z := 0; z < chunk.SizeZ; z++ {
		for x := 0; x < chunk.SizeX; x++ {
			col := r.Column(x, z)
			r.Set(x, 0, z, catalogs.Bedrock)
			for y := 1; y <= col.Height; y++ {
				r.Set(x, y, z, catalogs.Stone)
			}
		}
	}
}

func replaceSurface(g *Generator, r *Region) {
	depth := g.params.DirtDepth
	for z := 0; z < chunk.SizeZ; z++ {
		for x := 0; x < chunk.SizeX; x++ {
			col := r.Column(x, z)
			for d := 0; d < depth; d++ {
				y := col.Height - d
				if y <= 0 {
					break
				}
				if r.At(x, y, z) != catalogs.Stone {
					continue
				}
				if d == 0 && g.Land(col) {
					r.Set(x, y, z, catalogs.Grass)
				} else {
					r.Set(x, y, z, catalogs.Dirt)
				}
			}
		}
	}
}

// fillWater scans each column down from sea level and floods Empty cells
// until it reaches ground.
func fillWater(g *Generator, r *Region) {
	top := mathx.ClampInt(g.params.SeaLevel, 0, chunk.SizeY-1)
	for z := 0; z < chunk.SizeZ; z++ {
		for x := 0; x < chunk.SizeX; x++ {
			for y := top; y > 0; y-- {
				if r.At(x, y, z) != catalogs.Empty {
					break
				}
				r.Set(x, y, z, catalogs.Water)
			}
		}
	}
}

const (
	treeMargin   = 2
	treeMinTrunk = 4
	treeSalt     = 0x7ee5
)

// plantTrees places oak trees on grass. Trees are kept inside the chunk so a
// chunk never depends on its neighbors' generation.
func plantTrees(g *Generator, r *Region) {
	if g.params.TreePermille <= 0 {
		return
	}
	seed := int64(g.seed.Value()) ^ treeSalt
	for z := treeMargin; z < chunk.SizeZ-treeMargin; z++ {
		for x := treeMargin; x < chunk.SizeX-treeMargin; x++ {
			col := r.Column(x, z)
			if !g.Land(col) || r.At(x, col.Height, z) != catalogs.Grass {
				continue
			}
			h := mathx.Hash2(seed, r.Offset[0]+x, r.Offset[2]+z)
			if int(h%1000) >= g.params.TreePermille {
				continue
			}
			trunk := treeMinTrunk + int((h>>16)%3)
			if col.Height+trunk+2 >= chunk.SizeY {
				continue
			}
			growTree(r, x, col.Height, z, trunk)
		}
	}
}

func growTree(r *Region, x, ground, z, trunk int) {
	top := ground + trunk
	for y := top - 2; y <= top+1; y++ {
		radius := 2
		if y >= top {
			radius = 1
		}
		for dz := -radius; dz <= radius; dz++ {
			for dx := -radius; dx <= radius; dx++ {
				if radius == 2 && mathx.AbsInt(dx) == 2 && mathx.AbsInt(dz) == 2 {
					continue
				}
				if y == top+1 && dx != 0 && dz != 0 {
					continue
				}
				if r.At(x+dx, y, z+dz) == catalogs.Empty {
					r.Set(x+dx, y, z+dz, catalogs.OakLeaves)
				}
			}
		}
	}
	for y := ground + 1; y <= top; y++ {
		switch r.At(x, y, z) {
		case catalogs.Empty, catalogs.OakLeaves:
			r.Set(x, y, z, catalogs.OakLog)
		}
	}
	r.Set(x, ground, z, catalogs.Dirt)
}
