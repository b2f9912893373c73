package segment

import "github.com/voltctl/modcore/dsp/random"

// advanceTM clocks a 16-bit Turing shift register once: the bit steps-1
// positions from the MSB side is recycled into the MSB, flipped with
// probability prob. The register's scalar image lands in [0,1], or
// (10/8)-scaled around zero when bipolar.
func advanceTM(steps int, prob float32, shiftRegister *uint16, registerValue *float32, bipolar bool, rng *random.Source) {
	if steps < 1 {
		steps = 1
	} else if steps > 16 {
		steps = 16
	}

	sr := *shiftRegister
	copiedBit := (sr << (steps - 1)) & (1 << 15)
	// Lock the register at the extremes of the probability control.
	// Thresholds established through trial and error at audio rates; a
	// trickle of change still gets through anywhere in between.
	p := prob
	if prob < 0.001 {
		p = 0.0
	} else if prob > 0.999 {
		p = 1.1
	}
	var mutation uint16
	if rng.Float32() < p {
		mutation = 1 << 15
	}
	sr = (sr >> 1) | (copiedBit ^ mutation)
	*shiftRegister = sr
	*registerValue = float32(sr) / 65535.0
	if bipolar {
		*registerValue = (10.0 / 8.0) * (*registerValue - 0.5)
	}
}

// advanceTuringMachine advances segment i's shift register in place.
func (g *Generator) advanceTuringMachine(i, steps int, prob float32) {
	s := &g.segments[i]
	advanceTM(steps, prob, &s.ShiftRegister, &s.RegisterValue, s.Bipolar, g.rng)
}

// ShiftRegister exposes segment i's Turing register for inspection; it
// survives reconfiguration.
func (g *Generator) ShiftRegister(i int) uint16 {
	if i < 0 || i > MaxNumSegments {
		return 0
	}
	return g.segments[i].ShiftRegister
}

// SetShiftRegister seeds segment i's Turing register and refreshes its
// scalar image.
func (g *Generator) SetShiftRegister(i int, value uint16) {
	if i < 0 || i > MaxNumSegments {
		return
	}
	s := &g.segments[i]
	s.ShiftRegister = value
	s.RegisterValue = float32(value) / 65535.0
	if s.Bipolar {
		s.RegisterValue = (10.0 / 8.0) * (s.RegisterValue - 0.5)
	}
}

// RegisterValue exposes segment i's register scalar.
func (g *Generator) RegisterValue(i int) float32 {
	if i < 0 || i > MaxNumSegments {
		return 0
	}
	return g.segments[i].RegisterValue
}
