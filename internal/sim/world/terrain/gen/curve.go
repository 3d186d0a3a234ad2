package gen

import "sort"

type CurvePoint struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Curve remaps [0,1] through control points with smoothstep easing between
// neighbors. It is monotonic whenever the control points are.
type Curve struct {
	points []CurvePoint
}

func NewCurve(points []CurvePoint) Curve {
	ps := append([]CurvePoint(nil), points...)
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].X < ps[j].X })
	return Curve{points: ps}
}

// Value evaluates the curve. An empty curve is the identity.
func (c Curve) Value(a float64) float64 {
	if a < 0 {
		a = 0
	} else if a > 1 {
		a = 1
	}
	ps := c.points
	switch len(ps) {
	case 0:
		return a
	case 1:
		return ps[0].Y
	}
	if a <= ps[0].X {
		return ps[0].Y
	}
	last := ps[len(ps)-1]
	if a >= last.X {
		return last.Y
	}
	i := sort.Search(len(ps), func(i int) bool { return ps[i].X > a }) - 1
	p0, p1 := ps[i], ps[i+1]
	span := p1.X - p0.X
	if span <= 0 {
		return p1.Y
	}
	t := (a - p0.X) / span
	t = t * t * (3 - 2*t)
	return p0.Y + (p1.Y-p0.Y)*t
}

func (c Curve) Points() []CurvePoint {
	return append([]CurvePoint(nil), c.points...)
}
