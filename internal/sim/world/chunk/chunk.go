package chunk

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelcraft.ai/internal/sim/catalogs"
	"voxelcraft.ai/internal/sim/world/logic/mathx"
)

const DefaultAOStrength = 0.2

// BlockSource answers block lookups outside a chunk, by world position.
// Missing chunks must read as Empty.
type BlockSource interface {
	BlockTypeAt(pos mathx.IVec3) catalogs.BlockType
}

// UVSource resolves the atlas rectangle of a block face.
type UVSource interface {
	UVs(id catalogs.BlockType, dir mgl32.Vec3) (origin, size mgl32.Vec2, err error)
}

// Config is shared by every chunk of one manager.
type Config struct {
	Registry   *catalogs.Registry
	UVs        UVSource
	AOStrength float32
}

type Blocks [BlockCount]catalogs.BlockType

type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	UV       mgl32.Vec2
	AO       float32
}

// Mesh is immutable once published; GenerateMesh always builds new buffers.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
	Version  uint64
}

func (m Mesh) Triangles() int {
	return len(m.Indices) / 3
}

type Chunk struct {
	cfg    *Config
	coords Coords
	offset mathx.IVec3
	blocks Blocks

	mesh      Mesh
	createdAt float64
	optimized bool
}

// New returns an all-Empty chunk with no mesh.
func New(coords Coords, cfg *Config, createdAt float64) *Chunk {
	return &Chunk{
		cfg:       cfg,
		coords:    coords,
		offset:    coords.Offset(),
		createdAt: createdAt,
	}
}

func (c *Chunk) Coords() Coords         { return c.coords }
func (c *Chunk) Offset() mathx.IVec3    { return c.offset }
func (c *Chunk) Blocks() *Blocks        { return &c.blocks }
func (c *Chunk) Mesh() Mesh             { return c.mesh }
func (c *Chunk) CreatedAt() float64     { return c.createdAt }
func (c *Chunk) HasBeenOptimized() bool { return c.optimized }
func (c *Chunk) MeshVersion() uint64    { return c.mesh.Version }

// Optimize marks the chunk as refined and rebuilds its mesh.
func (c *Chunk) Optimize(src BlockSource) error {
	c.optimized = true
	return c.GenerateMesh(src)
}

// BlockTypeAtWorld reads a block of this chunk by world position; positions
// outside the chunk read as Empty.
func (c *Chunk) BlockTypeAtWorld(pos mathx.IVec3) catalogs.BlockType {
	p := pos.Sub(c.offset)
	if !InBounds(p) {
		return catalogs.Empty
	}
	return c.blocks[CoordsToIndex(p)]
}

// SetBlockTypeAtWorld writes a block by world position. Out-of-bounds writes
// are ignored and report false. The mesh is not rebuilt.
func (c *Chunk) SetBlockTypeAtWorld(pos mathx.IVec3, t catalogs.BlockType) bool {
	p := pos.Sub(c.offset)
	if !InBounds(p) {
		return false
	}
	c.blocks[CoordsToIndex(p)] = t
	return true
}

// local looks up a cell relative to this chunk. Cells above or below the
// chunk are Empty; cells beside it are resolved through src.
func (c *Chunk) local(p mathx.IVec3, src BlockSource) catalogs.BlockType {
	if InBounds(p) {
		return c.blocks[CoordsToIndex(p)]
	}
	if p[1] < 0 || p[1] >= SizeY || src == nil {
		return catalogs.Empty
	}
	return src.BlockTypeAt(p.Add(c.offset))
}

func (c *Chunk) isEmpty(p mathx.IVec3, src BlockSource) bool {
	return c.local(p, src) == catalogs.Empty
}
