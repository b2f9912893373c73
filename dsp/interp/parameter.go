package interp

// ParameterInterpolator linearizes a block-rate parameter update across the
// samples of one block: the caller constructs it with the parameter's
// cross-block state and the freshly latched target, then calls Next once
// per sample. The state is written back on every Next, so the final value
// persists into the next block without an explicit flush.
type ParameterInterpolator struct {
	state     *float32
	value     float32
	increment float32
}

// NewParameterInterpolator prepares interpolation from *state toward
// newValue over size samples.
func NewParameterInterpolator(state *float32, newValue float32, size int) ParameterInterpolator {
	p := ParameterInterpolator{state: state, value: *state}
	if size > 0 {
		p.increment = (newValue - *state) / float32(size)
	}
	return p
}

// Next advances by one sample and returns the interpolated value.
func (p *ParameterInterpolator) Next() float32 {
	p.value += p.increment
	*p.state = p.value
	return p.value
}

// Subsample returns the value a fraction t of one sample ahead of the
// current position, without advancing. Used when an event lands between
// two sample instants.
func (p *ParameterInterpolator) Subsample(t float32) float32 {
	return p.value + p.increment*t
}
