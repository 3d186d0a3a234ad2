// Package rectpack places rectangles into a fixed-size bin using a sorted
// free-space list. Free spaces are split on every placement and never merged.
package rectpack

import "sort"

type Size struct {
	W, H uint32
}

type Rect struct {
	X, Y, W, H uint32
}

func (r Rect) Area() uint64 {
	return uint64(r.W) * uint64(r.H)
}

// Overlaps reports whether r and o share any area.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Contains reports whether o lies entirely inside r.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y && o.X+o.W <= r.X+r.W && o.Y+o.H <= r.Y+r.H
}

func (r Rect) fits(s Size) bool {
	return s.W <= r.W && s.H <= r.H
}

// Packer is not safe for concurrent use.
type Packer struct {
	bin    Rect
	spaces []Rect // sorted by area, largest first
}

func New(width, height uint32) *Packer {
	b := Rect{W: width, H: height}
	return &Packer{bin: b, spaces: []Rect{b}}
}

func (p *Packer) Bin() Rect {
	return p.bin
}

// FreeSpaces returns a copy of the current free list.
func (p *Packer) FreeSpaces() []Rect {
	return append([]Rect(nil), p.spaces...)
}

// Pack reserves room for s. ok is false when no free space is large enough,
// in which case the free list is left untouched.
func (p *Packer) Pack(s Size) (Rect, bool) {
	if s.W == 0 || s.H == 0 {
		return Rect{}, false
	}
	for i, space := range p.spaces {
		if !space.fits(s) {
			continue
		}
		used, rest := split(space, s)
		p.spaces = append(p.spaces[:i], p.spaces[i+1:]...)
		p.spaces = append(p.spaces, rest...)
		sort.SliceStable(p.spaces, func(a, b int) bool {
			return p.spaces[a].Area() > p.spaces[b].Area()
		})
		return used, true
	}
	return Rect{}, false
}

// split carves s out of the top-left corner of space.
func split(space Rect, s Size) (Rect, []Rect) {
	used := Rect{X: space.X, Y: space.Y, W: s.W, H: s.H}
	switch {
	case s.W == space.W && s.H == space.H:
		return used, nil
	case s.W == space.W:
		return used, []Rect{{X: space.X, Y: space.Y + s.H, W: space.W, H: space.H - s.H}}
	case s.H == space.H:
		return used, []Rect{{X: space.X + s.W, Y: space.Y, W: space.W - s.W, H: space.H}}
	}

	bottom := Rect{X: space.X, Y: space.Y + s.H, W: space.W, H: space.H - s.H}
	right := Rect{X: space.X + s.W, Y: space.Y, W: space.W - s.W, H: space.H}
	if bottom.Area() >= right.Area() {
		// Full-width bottom strip, right remainder limited to the placed row.
		return used, []Rect{bottom, {X: space.X + s.W, Y: space.Y, W: space.W - s.W, H: s.H}}
	}
	// Full-height right strip, bottom remainder limited to the placed column.
	return used, []Rect{right, {X: space.X, Y: space.Y + s.H, W: s.W, H: space.H - s.H}}
}
