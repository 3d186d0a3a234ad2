package gen

import "voxelcraft.ai/internal/sim/world/logic/mathx"

const (
	continentalFrequency = 0.004
	continentalOctaves   = 6

	erosionFrequency = 0.02
	erosionOctaves   = 5

	peaksFrequency = 0.012
	peaksOctaves   = 1

	warpAmplitude = 65
	warpFrequency = 0.015
	warpOctaves   = 3
)

// Seed holds the noise channels derived from one world seed. Every channel
// returns a value in [0, 1] and is a pure function of (seed, x, z).
type Seed struct {
	value int32

	continental *Noise
	erosion     *Noise
	peaks       *Noise
	warp        Warp
}

func NewSeed(seed int32) *Seed {
	base := int64(seed)
	derive := func(channel int) *Noise {
		return NewNoise(int64(mathx.Hash2(base, channel, 0x5eed)))
	}
	return &Seed{
		value:       seed,
		continental: derive(1),
		erosion:     derive(2),
		peaks:       derive(3),
		warp: Warp{
			X:         derive(4),
			Y:         derive(5),
			Amplitude: warpAmplitude,
			Frequency: warpFrequency,
			Octaves:   warpOctaves,
		},
	}
}

func (s *Seed) Value() int32 { return s.value }

func (s *Seed) Continentalness(x, z float64) float64 {
	return unit(s.continental.FBm(x, z, continentalFrequency, continentalOctaves))
}

func (s *Seed) Erosion(x, z float64) float64 {
	return unit(s.erosion.FBm(x, z, erosionFrequency, erosionOctaves))
}

// PeaksAndValleys samples inverted ridged noise at a domain-warped position.
func (s *Seed) PeaksAndValleys(x, z float64) float64 {
	wx, wz := s.warp.Apply(x, z)
	return 1 - unit(s.peaks.Ridged(wx, wz, peaksFrequency, peaksOctaves))
}

func unit(v float64) float64 {
	v = (v + 1) / 2
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
