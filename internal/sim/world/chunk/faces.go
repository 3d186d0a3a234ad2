package chunk

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelcraft.ai/internal/sim/world/logic/mathx"
)

type face struct {
	dir    mathx.IVec3
	normal mgl32.Vec3
	// quad corners relative to the block origin, in emission order
	corners [4]mgl32.Vec3
	// ring of the 8 cells around the face, starting at an edge cell; corner k
	// samples ring[2k], ring[2k+1] and ring[(2k+2)%8]
	ring [8]mathx.IVec3
}

var quadIndices = [6]uint32{0, 1, 2, 0, 2, 3}

// quad texture coordinates per corner. The atlas stores rows top-down, so
// the top edge of a side face is v=0.
var quadUV = [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

var faces = [6]face{
	{ // left
		dir:     mathx.IVec3{-1, 0, 0},
		normal:  mgl32.Vec3{-1, 0, 0},
		corners: [4]mgl32.Vec3{{0, 1, 0}, {0, 1, 1}, {0, 0, 1}, {0, 0, 0}},
		ring: [8]mathx.IVec3{
			{-1, 0, -1}, {-1, 1, -1}, {-1, 1, 0}, {-1, 1, 1},
			{-1, 0, 1}, {-1, -1, 1}, {-1, -1, 0}, {-1, -1, -1},
		},
	},
	{ // right
		dir:     mathx.IVec3{1, 0, 0},
		normal:  mgl32.Vec3{1, 0, 0},
		corners: [4]mgl32.Vec3{{1, 1, 1}, {1, 1, 0}, {1, 0, 0}, {1, 0, 1}},
		ring: [8]mathx.IVec3{
			{1, 0, 1}, {1, 1, 1}, {1, 1, 0}, {1, 1, -1},
			{1, 0, -1}, {1, -1, -1}, {1, -1, 0}, {1, -1, 1},
		},
	},
	{ // down
		dir:     mathx.IVec3{0, -1, 0},
		normal:  mgl32.Vec3{0, -1, 0},
		corners: [4]mgl32.Vec3{{0, 0, 1}, {1, 0, 1}, {1, 0, 0}, {0, 0, 0}},
		ring: [8]mathx.IVec3{
			{-1, -1, 0}, {-1, -1, 1}, {0, -1, 1}, {1, -1, 1},
			{1, -1, 0}, {1, -1, -1}, {0, -1, -1}, {-1, -1, -1},
		},
	},
	{ // up
		dir:     mathx.IVec3{0, 1, 0},
		normal:  mgl32.Vec3{0, 1, 0},
		corners: [4]mgl32.Vec3{{0, 1, 0}, {1, 1, 0}, {1, 1, 1}, {0, 1, 1}},
		ring: [8]mathx.IVec3{
			{-1, 1, 0}, {-1, 1, -1}, {0, 1, -1}, {1, 1, -1},
			{1, 1, 0}, {1, 1, 1}, {0, 1, 1}, {-1, 1, 1},
		},
	},
	{ // back
		dir:     mathx.IVec3{0, 0, -1},
		normal:  mgl32.Vec3{0, 0, -1},
		corners: [4]mgl32.Vec3{{1, 1, 0}, {0, 1, 0}, {0, 0, 0}, {1, 0, 0}},
		ring: [8]mathx.IVec3{
			{1, 0, -1}, {1, 1, -1}, {0, 1, -1}, {-1, 1, -1},
			{-1, 0, -1}, {-1, -1, -1}, {0, -1, -1}, {1, -1, -1},
		},
	},
	{ // front
		dir:     mathx.IVec3{0, 0, 1},
		normal:  mgl32.Vec3{0, 0, 1},
		corners: [4]mgl32.Vec3{{0, 1, 1}, {1, 1, 1}, {1, 0, 1}, {0, 0, 1}},
		ring: [8]mathx.IVec3{
			{-1, 0, 1}, {-1, 1, 1}, {0, 1, 1}, {1, 1, 1},
			{1, 0, 1}, {1, -1, 1}, {0, -1, 1}, {-1, -1, 1},
		},
	},
}
