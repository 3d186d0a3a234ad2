package raycast

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxelcraft.ai/internal/sim/catalogs"
	"voxelcraft.ai/internal/sim/world/logic/mathx"
)

type mapSource map[mathx.IVec3]catalogs.BlockType

func (m mapSource) BlockTypeAt(pos mathx.IVec3) catalogs.BlockType {
	return m[pos]
}

func collect(origin, dir mgl32.Vec3, maxLength float32) []Hit {
	var hits []Hit
	Raycast(origin, dir, maxLength, func(h Hit) bool {
		hits = append(hits, h)
		return false
	})
	return hits
}

func TestAxisAlignedVisitsConsecutiveCells(t *testing.T) {
	hits := collect(mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{1, 0, 0}, 5)
	if len(hits) != 5 {
		t.Fatalf("expected 5 cells, got %d", len(hits))
	}
	for i, h := range hits {
		want := mathx.IVec3{i + 1, 0, 0}
		if h.Coords != want {
			t.Fatalf("hit %d = %v, want %v", i, h.Coords, want)
		}
		if h.Face != (mathx.IVec3{-1, 0, 0}) {
			t.Fatalf("hit %d face = %v", i, h.Face)
		}
		if h.Distance != float32(i)+0.5 {
			t.Fatalf("hit %d distance = %v", i, h.Distance)
		}
		if h.Distance > 5 {
			t.Fatalf("distance beyond max length")
		}
	}
}

func TestNegativeAxis(t *testing.T) {
	hits := collect(mgl32.Vec3{0.25, 3.5, -0.5}, mgl32.Vec3{0, 0, -2}, 3)
	want := []mathx.IVec3{{0, 3, -2}, {0, 3, -3}, {0, 3, -4}}
	if len(hits) != len(want) {
		t.Fatalf("expected %d cells, got %d", len(want), len(hits))
	}
	for i := range want {
		if hits[i].Coords != want[i] {
			t.Fatalf("hit %d = %v, want %v", i, hits[i].Coords, want[i])
		}
		if hits[i].Face != (mathx.IVec3{0, 0, 1}) {
			t.Fatalf("hit %d face = %v", i, hits[i].Face)
		}
	}
}

func TestDiagonalHasNoSkips(t *testing.T) {
	origin := mgl32.Vec3{0.3, 10.7, -4.2}
	dir := mgl32.Vec3{0.6, -0.35, 0.8}
	hits := collect(origin, dir, 40)
	if len(hits) < 40 {
		t.Fatalf("expected at least 40 cells, got %d", len(hits))
	}
	prev := mathx.IVec3{0, 10, -5}
	var prevDist float32
	for i, h := range hits {
		d := h.Coords.Sub(prev)
		moved := mathx.AbsInt(d[0]) + mathx.AbsInt(d[1]) + mathx.AbsInt(d[2])
		if moved != 1 {
			t.Fatalf("hit %d jumped from %v to %v", i, prev, h.Coords)
		}
		if h.Face != (mathx.IVec3{-d[0], -d[1], -d[2]}) {
			t.Fatalf("hit %d face %v does not oppose step %v", i, h.Face, d)
		}
		if h.Distance < prevDist {
			t.Fatalf("distance decreased at %d", i)
		}
		prev, prevDist = h.Coords, h.Distance
	}
}

func TestZeroDirection(t *testing.T) {
	called := false
	_, ok := Raycast(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{}, 10, func(Hit) bool {
		called = true
		return true
	})
	if ok || called {
		t.Fatalf("zero direction should not step")
	}
}

func TestStopsWhenCallbackReturnsTrue(t *testing.T) {
	var n int
	h, ok := Raycast(mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{0, 1, 0}, 100, func(Hit) bool {
		n++
		return n == 3
	})
	if !ok || n != 3 {
		t.Fatalf("expected stop after 3 calls, got %d", n)
	}
	if h.Coords != (mathx.IVec3{0, 3, 0}) {
		t.Fatalf("stopping hit = %v", h.Coords)
	}
}

func TestPick(t *testing.T) {
	src := mapSource{
		{4, 64, 0}: catalogs.Stone,
		{9, 64, 0}: catalogs.Dirt,
	}
	h, ok := Pick(src, mgl32.Vec3{0.5, 64.5, 0.5}, mgl32.Vec3{1, 0, 0}, 8)
	if !ok {
		t.Fatalf("expected hit")
	}
	if h.Coords != (mathx.IVec3{4, 64, 0}) {
		t.Fatalf("hit %v", h.Coords)
	}
	if h.Place() != (mathx.IVec3{3, 64, 0}) {
		t.Fatalf("place %v", h.Place())
	}

	if _, ok := Pick(src, mgl32.Vec3{0.5, 64.5, 0.5}, mgl32.Vec3{1, 0, 0}, 3); ok {
		t.Fatalf("block beyond reach should not be picked")
	}
	if _, ok := Pick(src, mgl32.Vec3{0.5, 64.5, 0.5}, mgl32.Vec3{0, 1, 0}, 50); ok {
		t.Fatalf("empty column should miss")
	}
}

func TestPickFromAbove(t *testing.T) {
	src := mapSource{{-3, 10, 7}: catalogs.Grass}
	h, ok := Pick(src, mgl32.Vec3{-2.5, 20.2, 7.5}, mgl32.Vec3{0, -1, 0}, 20)
	if !ok {
		t.Fatalf("expected hit")
	}
	if h.Face != (mathx.IVec3{0, 1, 0}) || h.Place() != (mathx.IVec3{-3, 11, 7}) {
		t.Fatalf("unexpected hit %+v", h)
	}
}
