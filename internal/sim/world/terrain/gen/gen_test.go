package gen

import (
	"testing"

	"voxelcraft.ai/internal/sim/catalogs"
	"voxelcraft.ai/internal/sim/world/chunk"
	"voxelcraft.ai/internal/sim/world/logic/mathx"
)

func TestNoiseDeterministicAndBounded(t *testing.T) {
	a := NewNoise(42)
	b := NewNoise(42)
	c := NewNoise(43)
	var differs bool
	for i := 0; i < 500; i++ {
		x := float64(i)*0.37 - 90
		y := float64(i)*0.73 + 11
		va := a.Sample(x, y)
		if va != b.Sample(x, y) {
			t.Fatalf("same seed differs at (%v,%v)", x, y)
		}
		if va < -1 || va > 1 {
			t.Fatalf("sample out of range: %v", va)
		}
		if va != c.Sample(x, y) {
			differs = true
		}
		if v := a.FBm(x, y, 0.05, 4); v < -1 || v > 1 {
			t.Fatalf("fbm out of range: %v", v)
		}
		if v := a.Ridged(x, y, 0.05, 2); v < -1 || v > 1 {
			t.Fatalf("ridged out of range: %v", v)
		}
	}
	if !differs {
		t.Fatalf("different seeds produced identical noise")
	}
}

func TestCurveMonotonicAndClamped(t *testing.T) {
	c := NewCurve(DefaultParams().ContinentalCurve)
	prev := c.Value(0)
	for i := 1; i <= 1000; i++ {
		v := c.Value(float64(i) / 1000)
		if v < prev-1e-12 {
			t.Fatalf("curve decreased at %d: %v < %v", i, v, prev)
		}
		prev = v
	}
	if c.Value(-5) != c.Value(0) || c.Value(7) != c.Value(1) {
		t.Fatalf("curve not clamped outside [0,1]")
	}
	if got := c.Value(0.44); got != 0.47 {
		t.Fatalf("curve should pass through its control points, got %v", got)
	}
}

func TestCurveEdgeCases(t *testing.T) {
	if v := NewCurve(nil).Value(0.3); v != 0.3 {
		t.Fatalf("empty curve should be identity, got %v", v)
	}
	if v := NewCurve([]CurvePoint{{0.5, 0.25}}).Value(0.9); v != 0.25 {
		t.Fatalf("single point curve should be constant, got %v", v)
	}
	unsorted := NewCurve([]CurvePoint{{1, 1}, {0, 0}})
	if v := unsorted.Value(0.5); v != 0.5 {
		t.Fatalf("points should be sorted, got %v", v)
	}
}

func TestSeedChannelsInUnitRange(t *testing.T) {
	s := NewSeed(1337)
	for i := -50; i < 50; i++ {
		x, z := float64(i*37), float64(i*-53)
		for _, v := range []float64{s.Continentalness(x, z), s.Erosion(x, z), s.PeaksAndValleys(x, z)} {
			if v < 0 || v > 1 {
				t.Fatalf("channel out of [0,1]: %v", v)
			}
		}
	}
}

func TestHeightAndMaterialDeterministic(t *testing.T) {
	g1 := New(1337, DefaultParams())
	g2 := New(1337, DefaultParams())
	for x := -40; x < 40; x += 3 {
		for z := -40; z < 40; z += 7 {
			a, b := g1.HeightAndMaterial(x, z), g2.HeightAndMaterial(x, z)
			if a != b {
				t.Fatalf("column (%d,%d) differs: %+v vs %+v", x, z, a, b)
			}
			if a.Height < 1 || a.Height > chunk.SizeY-2 {
				t.Fatalf("height out of range: %d", a.Height)
			}
		}
	}
}

func TestFillDeterministic(t *testing.T) {
	g := New(1337, DefaultParams())
	var a, b chunk.Blocks
	g.Fill(chunk.Coords{X: -3, Z: 5}, &a)
	g.Fill(chunk.Coords{X: -3, Z: 5}, &b)
	if a != b {
		t.Fatalf("fill is not deterministic")
	}
}

func TestFillBedrockFloor(t *testing.T) {
	g := New(1337, DefaultParams())
	var b chunk.Blocks
	g.Fill(chunk.Coords{}, &b)
	for z := 0; z < chunk.SizeZ; z++ {
		for x := 0; x < chunk.SizeX; x++ {
			if got := b[chunk.CoordsToIndex(mathx.IVec3{x, 0, z})]; got != catalogs.Bedrock {
				t.Fatalf("(%d,0,%d) = %d, want bedrock", x, z, got)
			}
		}
	}
}

func TestStagesMatchColumnRule(t *testing.T) {
	p := DefaultParams()
	p.TreePermille = 0
	g := New(99, p)
	for _, cc := range []chunk.Coords{{X: 0, Z: 0}, {X: 7, Z: -2}, {X: -11, Z: 4}} {
		var b chunk.Blocks
		g.Fill(cc, &b)
		off := cc.Offset()
		for z := 0; z < chunk.SizeZ; z++ {
			for x := 0; x < chunk.SizeX; x++ {
				col := g.HeightAndMaterial(off[0]+x, off[2]+z)
				for y := 0; y < chunk.SizeY; y++ {
					want := g.BlockAt(col, y)
					if got := b[chunk.CoordsToIndex(mathx.IVec3{x, y, z})]; got != want {
						t.Fatalf("chunk %v (%d,%d,%d): got %d want %d", cc, x, y, z, got, want)
					}
				}
			}
		}
	}
}

func TestColumnRuleBands(t *testing.T) {
	g := New(1, DefaultParams())
	land := Column{Height: 140}
	cases := []struct {
		y    int
		want catalogs.BlockType
	}{
		{0, catalogs.Bedrock},
		{50, catalogs.Stone},
		{137, catalogs.Stone},
		{138, catalogs.Dirt},
		{139, catalogs.Dirt},
		{140, catalogs.Grass},
		{141, catalogs.Empty},
		{-1, catalogs.Empty},
	}
	for _, c := range cases {
		if got := g.BlockAt(land, c.y); got != c.want {
			t.Fatalf("land y=%d: got %d want %d", c.y, got, c.want)
		}
	}

	sea := Column{Height: 110}
	if got := g.BlockAt(sea, 110); got != catalogs.Dirt {
		t.Fatalf("seabed surface should be dirt, got %d", got)
	}
	if got := g.BlockAt(sea, 127); got != catalogs.Water {
		t.Fatalf("sea level should be water, got %d", got)
	}
	if got := g.BlockAt(sea, 128); got != catalogs.Empty {
		t.Fatalf("above sea should be empty, got %d", got)
	}
}

func TestTreesStayInsideChunkAndOnlyFillAir(t *testing.T) {
	p := DefaultParams()
	p.TreePermille = 1000
	g := New(7, p)
	bare := g.WithStages(DefaultStages()[:3]...)

	var found bool
	for cx := 0; cx < 6 && !found; cx++ {
		cc := chunk.Coords{X: cx, Z: cx}
		var trees, base chunk.Blocks
		g.Fill(cc, &trees)
		bare.Fill(cc, &base)
		for i := range trees {
			if trees[i] == base[i] {
				continue
			}
			switch trees[i] {
			case catalogs.OakLog, catalogs.OakLeaves:
				if base[i] != catalogs.Empty {
					t.Fatalf("tree overwrote block %d at %v", base[i], chunk.IndexToCoords(i))
				}
				found = true
			case catalogs.Dirt:
				if base[i] != catalogs.Grass {
					t.Fatalf("unexpected dirt at %v", chunk.IndexToCoords(i))
				}
			default:
				t.Fatalf("unexpected tree block %d", trees[i])
			}
		}
	}
	if !found {
		t.Skip("no land in sampled chunks for this seed")
	}
}

func TestStageOrder(t *testing.T) {
	names := []string{}
	for _, s := range New(1, DefaultParams()).Stages() {
		names = append(names, s.Name)
	}
	want := []string{"terrain_shaping", "surface_replacement", "water_filling", "trees"}
	if len(names) != len(want) {
		t.Fatalf("stages = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("stages = %v, want %v", names, want)
		}
	}
}
