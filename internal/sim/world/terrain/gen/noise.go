package gen

// Noise is seeded 2D simplex noise. Output of Sample is in [-1, 1].
// A Noise is immutable after construction and safe for concurrent use.
type Noise struct {
	perm [512]uint8
}

var grad2 = [8][2]float64{
	{1, 1}, {-1, 1}, {1, -1}, {-1, -1},
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
}

func NewNoise(seed int64) *Noise {
	n := &Noise{}
	var p [256]uint8
	for i := range p {
		p[i] = uint8(i)
	}
	// Fisher-Yates with an LCG stream.
	s := uint64(seed)
	for i := 255; i > 0; i-- {
		s = s*6364136223846793005 + 1442695040888963407
		j := int((s >> 33) % uint64(i+1))
		p[i], p[j] = p[j], p[i]
	}
	for i := 0; i < 512; i++ {
		n.perm[i] = p[i&255]
	}
	return n
}

// Sample returns simplex noise at (x, y).
func (n *Noise) Sample(x, y float64) float64 {
	const (
		f2 = 0.36602540378443864676 // (sqrt(3) - 1) / 2
		g2 = 0.21132486540518711775 // (3 - sqrt(3)) / 6
	)

	s := (x + y) * f2
	i := fastFloor(x + s)
	j := fastFloor(y + s)

	t := float64(i+j) * g2
	x0 := x - (float64(i) - t)
	y0 := y - (float64(j) - t)

	var i1, j1 int
	if x0 > y0 {
		i1 = 1
	} else {
		j1 = 1
	}

	x1 := x0 - float64(i1) + g2
	y1 := y0 - float64(j1) + g2
	x2 := x0 - 1.0 + 2.0*g2
	y2 := y0 - 1.0 + 2.0*g2

	ii := i & 255
	jj := j & 255
	gi0 := n.perm[ii+int(n.perm[jj])] & 7
	gi1 := n.perm[ii+i1+int(n.perm[jj+j1])] & 7
	gi2 := n.perm[ii+1+int(n.perm[jj+1])] & 7

	return 70.0 * (corner(gi0, x0, y0) + corner(gi1, x1, y1) + corner(gi2, x2, y2))
}

func corner(gi uint8, x, y float64) float64 {
	t := 0.5 - x*x - y*y
	if t < 0 {
		return 0
	}
	t *= t
	g := grad2[gi]
	return t * t * (g[0]*x + g[1]*y)
}

// FBm layers octaves of noise at the given base frequency. Result is in [-1, 1].
func (n *Noise) FBm(x, y, frequency float64, octaves int) float64 {
	var total, maxVal float64
	amplitude := 1.0
	for o := 0; o < octaves; o++ {
		total += n.Sample(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= 0.5
		frequency *= 2.0
	}
	if maxVal == 0 {
		return 0
	}
	return total / maxVal
}

// Ridged is fractal noise folded around zero, producing sharp crests. Result is in [-1, 1].
func (n *Noise) Ridged(x, y, frequency float64, octaves int) float64 {
	var total, maxVal float64
	amplitude := 1.0
	for o := 0; o < octaves; o++ {
		v := n.Sample(x*frequency, y*frequency)
		if v < 0 {
			v = -v
		}
		total += (1 - 2*v) * amplitude
		maxVal += amplitude
		amplitude *= 0.5
		frequency *= 2.0
	}
	if maxVal == 0 {
		return 0
	}
	return total / maxVal
}

// Warp displaces (x, y) by two independent noise fields.
type Warp struct {
	X, Y      *Noise
	Amplitude float64
	Frequency float64
	Octaves   int
}

func (w Warp) Apply(x, y float64) (float64, float64) {
	amp := w.Amplitude
	freq := w.Frequency
	wx, wy := x, y
	for o := 0; o < w.Octaves; o++ {
		dx := w.X.Sample(x*freq, y*freq)
		dy := w.Y.Sample(x*freq, y*freq)
		wx += dx * amp
		wy += dy * amp
		amp *= 0.5
		freq *= 2.0
	}
	return wx, wy
}

func fastFloor(x float64) int {
	xi := int(x)
	if x < float64(xi) {
		return xi - 1
	}
	return xi
}
