package rampextractor

import "github.com/voltctl/modcore/dsp/core"

// RatioQuantizer snaps a continuous knob value to one of a small table of
// clock-division ratios, for the tap-LFO single-segment processor. It is
// unrelated to the pitch quantizer package beyond both snapping a
// continuous value to a discrete set.
type RatioQuantizer struct{}

// Init is a no-op retained for symmetry with the rest of the package's
// constructors; RatioQuantizer carries no state between calls.
func (RatioQuantizer) Init() {}

// Lookup maps x (typically primary*1.03, giving headroom so the table's
// extremes are reached slightly before the knob saturates) into the
// table by dividing [0,1) into len(table) equal bins.
func (RatioQuantizer) Lookup(table []Ratio, x float32) Ratio {
	n := len(table)
	if n == 0 {
		return Ratio{Ratio: 1, Q: 1}
	}
	index := core.ConstrainInt(int(x*float32(n)), 0, n-1)
	return table[index]
}

// DefaultRatios is the DEFAULT-range division table (quarter through
// quadruple speed).
var DefaultRatios = []Ratio{
	{Ratio: 0.249999, Q: 4},
	{Ratio: 0.333333, Q: 3},
	{Ratio: 0.499999, Q: 2},
	{Ratio: 0.999999, Q: 1},
	{Ratio: 1.999999, Q: 1},
	{Ratio: 2.999999, Q: 1},
	{Ratio: 3.999999, Q: 1},
}

// SlowRatios is the SLOW-range division table (eighth through unity
// speed).
var SlowRatios = []Ratio{
	{Ratio: 0.124999, Q: 8},
	{Ratio: 0.142856, Q: 7},
	{Ratio: 0.166666, Q: 6},
	{Ratio: 0.199999, Q: 5},
	{Ratio: 0.249999, Q: 4},
	{Ratio: 0.333333, Q: 3},
	{Ratio: 0.499999, Q: 2},
	{Ratio: 0.999999, Q: 1},
}

// FastRatios is the FAST-range multiplication table (unity through
// eight-times speed).
var FastRatios = []Ratio{
	{Ratio: 0.999999, Q: 1},
	{Ratio: 1.999999, Q: 1},
	{Ratio: 2.999999, Q: 1},
	{Ratio: 3.999999, Q: 1},
	{Ratio: 4.999999, Q: 1},
	{Ratio: 5.999999, Q: 1},
	{Ratio: 6.999999, Q: 1},
	{Ratio: 7.999999, Q: 1},
}
