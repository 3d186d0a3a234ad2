package chunk

import (
	"fmt"

	"voxelcraft.ai/internal/sim/world/logic/mathx"
)

const (
	SizeX = 16
	SizeY = 384
	SizeZ = 16

	BlockCount = SizeX * SizeY * SizeZ
)

// Coords addresses a chunk column. A chunk spans the full vertical range.
type Coords struct {
	X, Z int
}

func (c Coords) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Z)
}

// Offset is the world position of the chunk's local origin.
func (c Coords) Offset() mathx.IVec3 {
	return mathx.IVec3{c.X * SizeX, 0, c.Z * SizeZ}
}

// Neighbors returns the four edge-adjacent chunk coordinates.
func (c Coords) Neighbors() [4]Coords {
	return [4]Coords{
		{c.X - 1, c.Z},
		{c.X + 1, c.Z},
		{c.X, c.Z - 1},
		{c.X, c.Z + 1},
	}
}

// CoordsForBlock maps a world block position to its chunk using floor division,
// so negative positions land in negative chunks.
func CoordsForBlock(pos mathx.IVec3) Coords {
	return Coords{
		X: mathx.FloorDiv(pos[0], SizeX),
		Z: mathx.FloorDiv(pos[2], SizeZ),
	}
}

func InBounds(p mathx.IVec3) bool {
	return p[0] >= 0 && p[0] < SizeX &&
		p[1] >= 0 && p[1] < SizeY &&
		p[2] >= 0 && p[2] < SizeZ
}

// CoordsToIndex flattens a local position. p must be in bounds.
func CoordsToIndex(p mathx.IVec3) int {
	if !InBounds(p) {
		panic(fmt.Sprintf("chunk: local coords %v out of bounds", p))
	}
	return p[0] + p[1]*SizeX + p[2]*SizeX*SizeY
}

// IndexToCoords is the inverse of CoordsToIndex. i must be in [0, BlockCount).
func IndexToCoords(i int) mathx.IVec3 {
	if i < 0 || i >= BlockCount {
		panic(fmt.Sprintf("chunk: index %d out of range", i))
	}
	return mathx.IVec3{
		i % SizeX,
		(i / SizeX) % SizeY,
		i / (SizeX * SizeY),
	}
}
