package segment

import (
	"github.com/voltctl/modcore/dsp/core"
	"github.com/voltctl/modcore/dsp/interp"
	"github.com/voltctl/modcore/resources"
)

// shapeLFO maps each Output's phase to a value, morphing the waveform
// continuously from a narrow triangle pulse through triangle and sine to
// a plateaued near-square as shape sweeps [0, 1]. The Segment field is
// rewritten to 0/1 for the rising/falling half of the (shifted) cycle.
func shapeLFO(shape float32, inOut []Output, bipolar bool) {
	shape -= 0.5
	shape = 2.0 + 9.999999*shape/(1.0+3.0*absF32(shape))

	slope := shape * 0.5
	if slope > 0.5 {
		slope = 0.5
	}
	plateauWidth := shape - 3.0
	if plateauWidth < 0.0 {
		plateauWidth = 0.0
	}
	sineAmount := 3.0 - shape
	if shape < 2.0 {
		sineAmount = shape - 1.0
	}
	if sineAmount < 0.0 {
		sineAmount = 0.0
	}

	slopeUp := 1.0 / slope
	slopeDown := 1.0 / (1.0 - slope)
	plateau := 0.5 * (1.0 - plateauWidth)
	normalization := 1.0 / plateau
	phaseShift := plateauWidth * 0.25

	amplitude := float32(0.5)
	offset := float32(0.5)
	if bipolar {
		amplitude = 10.0 / 16.0
		offset = 0.0
	}

	for i := range inOut {
		phase := inOut[i].Phase + phaseShift
		if phase > 1.0 {
			phase -= 1.0
		}
		var triangle float32
		if phase < slope {
			triangle = slopeUp * phase
		} else {
			triangle = 1.0 - (phase-slope)*slopeDown
		}
		triangle -= 0.5
		triangle = core.Clamp(triangle, -plateau, plateau)
		triangle *= normalization
		sine := interp.InterpolateWrap(resources.Sine[:], phase+0.75, 1024.0)
		inOut[i].Value = amplitude*core.Crossfade(triangle, sine, sineAmount) + offset
		if phase < 0.5 {
			inOut[i].Segment = 0
		} else {
			inOut[i].Segment = 1
		}
	}
}

func absF32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
