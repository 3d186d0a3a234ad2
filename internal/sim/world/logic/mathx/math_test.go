package mathx

import "testing"

func TestFloorDivNegative(t *testing.T) {
	cases := []struct{ a, want int }{
		{-1, -1},
		{-16, -1},
		{-17, -2},
		{0, 0},
		{15, 0},
		{16, 1},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, 16); got != c.want {
			t.Fatalf("FloorDiv(%d,16)=%d want %d", c.a, got, c.want)
		}
	}
}

func TestModAlwaysNonNegative(t *testing.T) {
	for a := -40; a <= 40; a++ {
		m := Mod(a, 16)
		if m < 0 || m >= 16 {
			t.Fatalf("Mod(%d,16)=%d out of range", a, m)
		}
		if FloorDiv(a, 16)*16+m != a {
			t.Fatalf("FloorDiv/Mod mismatch for %d", a)
		}
	}
}

func TestHash2Deterministic(t *testing.T) {
	if Hash2(1337, -5, 9) != Hash2(1337, -5, 9) {
		t.Fatalf("expected identical hashes")
	}
	if Hash2(1337, -5, 9) == Hash2(1338, -5, 9) {
		t.Fatalf("expected seed to affect hash")
	}
}
