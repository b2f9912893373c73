// Package resources provides the read-only, process-wide lookup tables
// consumed by the segment generator: the envelope-rate curve, the
// portamento one-pole coefficient curve, and the sine table used by
// ShapeLFO's sine blend.
//
// Hardware builds of this core ship these as precomputed binary tables
// baked from a calibration pass; here the closed-form curves below stand
// in for that data (exponential rate mapping, exponential one-pole
// coefficient, a standard sine). All three are built once at package
// init so no allocation occurs once the process is running.
package resources

import (
	"math"

	"github.com/voltctl/modcore/dsp/core"
)

const (
	envFrequencySize          = 2049
	portamentoCoefficientSize = 513
	sineSize                  = 1025
)

// EnvFrequency maps a normalized rate index in [0, envFrequencySize) to a
// per-sample phase increment. Index 0 is the slowest envelope (multi-second
// decay); the last index is the fastest (a handful of samples).
var EnvFrequency [envFrequencySize]float32

// PortamentoCoefficient maps a normalized rate index in
// [0, portamentoCoefficientSize) to a one-pole smoothing coefficient in
// (0, 1]. Index 0 is no portamento (coefficient 1, identity); the last
// index is the slowest glide (near-zero coefficient).
var PortamentoCoefficient [portamentoCoefficientSize]float32

// Sine is one full cycle of a sine wave, sampled at sineSize points with
// the last sample equal to the first (wrap-friendly for InterpolateWrap).
var Sine [sineSize]float32

func init() {
	const (
		minFrequency = 1.0 / (800.0 * 32000.0) // ~800s full sweep at 32kHz
		maxFrequency = 0.5                     // Nyquist-adjacent, fastest useful rate
	)

	logMin := math.Log(minFrequency)
	logMax := math.Log(maxFrequency)

	for i := range EnvFrequency {
		x := float64(i) / float64(envFrequencySize-1)
		EnvFrequency[i] = float32(math.Exp(logMin + x*(logMax-logMin)))
	}

	const (
		minCoefficient = 1e-5
		maxCoefficient = 1.0
	)

	logMinC := math.Log(minCoefficient)
	logMaxC := math.Log(maxCoefficient)

	for i := range PortamentoCoefficient {
		x := float64(i) / float64(portamentoCoefficientSize-1)
		PortamentoCoefficient[i] = float32(math.Exp(logMaxC + x*(logMinC-logMaxC)))
	}

	for i := range Sine {
		theta := 2 * math.Pi * float64(i) / float64(sineSize-1)
		Sine[i] = float32(math.Sin(theta))
	}
}

// lookupTable indexes a fixed-size curve by a normalized rate in [0, 1].
// The index is truncated, not interpolated: the curves are dense enough
// (adjacent entries differ by about 0.8% on the envelope curve and about
// 2.3% on the portamento curve) that the nearest-below entry is the value
// of record.
func lookupTable(table []float32, rate float32) float32 {
	i := core.ConstrainInt(int(rate*float32(len(table)-1)), 0, len(table)-1)
	return table[i]
}

// RateToFrequency maps a normalized rate in [0, 1] to a per-sample phase
// increment, via EnvFrequency. A rate of 0 is the slowest envelope, 1 the
// fastest.
func RateToFrequency(rate float32) float32 {
	return lookupTable(EnvFrequency[:], rate)
}

// PortamentoRateToLPCoefficient maps a normalized rate in [0, 1] to a
// one-pole coefficient, via PortamentoCoefficient. A rate of 0 means no
// smoothing (coefficient 1, pass-through); 1 means the slowest glide.
func PortamentoRateToLPCoefficient(rate float32) float32 {
	return lookupTable(PortamentoCoefficient[:], rate)
}
