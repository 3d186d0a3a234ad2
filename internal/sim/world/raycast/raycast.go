package raycast

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelcraft.ai/internal/sim/catalogs"
	"voxelcraft.ai/internal/sim/world/chunk"
	"voxelcraft.ai/internal/sim/world/logic/mathx"
)

// Hit is one cell entered by a ray.
type Hit struct {
	Coords mathx.IVec3
	// Face is the normal of the face the ray crossed to enter Coords.
	Face     mathx.IVec3
	Distance float32
}

// Place is the cell in front of the hit face.
func (h Hit) Place() mathx.IVec3 {
	return h.Coords.Add(h.Face)
}

var inf = float32(math.Inf(1))

// Raycast walks the grid cells crossed by the segment from origin along dir,
// in order, starting with the first cell after the one containing origin.
// fn is called for every entered cell until it returns true or the next
// boundary lies beyond maxLength. The stopping hit is returned.
func Raycast(origin, dir mgl32.Vec3, maxLength float32, fn func(Hit) bool) (Hit, bool) {
	n := dir.Len()
	if n == 0 || maxLength < 0 {
		return Hit{}, false
	}

	var (
		cell     mathx.IVec3
		step     mathx.IVec3
		stepSize [3]float32
		next     [3]float32
	)
	for a := 0; a < 3; a++ {
		f := float32(math.Floor(float64(origin[a])))
		cell[a] = int(f)
		d := dir[a] / n
		switch {
		case d > 0:
			step[a] = 1
			stepSize[a] = 1 / d
			next[a] = (f + 1 - origin[a]) * stepSize[a]
		case d < 0:
			step[a] = -1
			stepSize[a] = -1 / d
			next[a] = (origin[a] - f) * stepSize[a]
		default:
			stepSize[a] = inf
			next[a] = inf
		}
	}

	for {
		a := 0
		if next[1] < next[a] {
			a = 1
		}
		if next[2] < next[a] {
			a = 2
		}
		dist := next[a]
		if dist > maxLength {
			return Hit{}, false
		}
		cell[a] += step[a]
		next[a] += stepSize[a]

		var face mathx.IVec3
		face[a] = -step[a]
		h := Hit{Coords: cell, Face: face, Distance: dist}
		if fn(h) {
			return h, true
		}
	}
}

// Pick returns the first non-Empty block along the ray.
func Pick(src chunk.BlockSource, origin, dir mgl32.Vec3, maxLength float32) (Hit, bool) {
	return Raycast(origin, dir, maxLength, func(h Hit) bool {
		return src.BlockTypeAt(h.Coords) != catalogs.Empty
	})
}
