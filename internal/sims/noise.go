package sims

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// NoiseField is fractal simplex noise normalized to [0, 1].
type NoiseField struct {
	noise       opensimplex.Noise
	Octaves     int
	Frequency   float64
	Persistence float64
}

// NewNoiseField seeds a field with four octaves at frequency 0.08.
func NewNoiseField(seed int64) *NoiseField {
	return &NoiseField{
		noise:       opensimplex.NewNormalized(seed),
		Octaves:     4,
		Frequency:   0.08,
		Persistence: 0.5,
	}
}

// At samples the field at a cell.
func (f *NoiseField) At(x, y int) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	freq := f.Frequency
	for i := 0; i < f.Octaves; i++ {
		total += f.noise.Eval2(float64(x)*freq, float64(y)*freq) * amplitude
		maxVal += amplitude
		amplitude *= f.Persistence
		freq *= 2
	}
	if maxVal == 0 {
		return 0
	}
	return total / maxVal
}
