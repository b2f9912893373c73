// Package delay implements the fixed-capacity delay line behind the
// segment generator's delay processor: written at a resampled clock rate,
// read back at a fractional tap that sweeps with the delay-time control.
package delay

import (
	"fmt"

	"github.com/voltctl/modcore/dsp/core"
	"github.com/voltctl/modcore/dsp/interp"
)

// Line holds a circular history of samples. Capacity is fixed at
// construction; Write and both read paths never allocate, so the line is
// safe to drive from the audio interrupt.
type Line struct {
	data []float32
	head int
}

// New returns a line holding size samples of history.
func New(size int) (*Line, error) {
	if size <= 0 {
		return nil, fmt.Errorf("delay: size must be > 0: %d", size)
	}
	return &Line{data: make([]float32, size)}, nil
}

// Len returns the line's capacity in samples.
func (d *Line) Len() int {
	return len(d.data)
}

// Write stores one sample and advances the head.
func (d *Line) Write(sample float32) {
	d.data[d.head] = sample
	d.head++
	if d.head == len(d.data) {
		d.head = 0
	}
}

// Read returns the sample written delay steps before the head. The index
// is folded into the line, so any integer delay is safe.
func (d *Line) Read(delay int) float32 {
	n := len(d.data)
	i := (d.head - delay) % n
	if i < 0 {
		i += n
	}
	return d.data[i]
}

// ReadFractional resolves a fractional tap with 4-point Hermite
// interpolation. The tap is confined to [0, Len-3] so that all four
// support points stay inside the written history; the delay processor's
// sweeping tap (delay time minus write phase) relies on this clamp at
// both extremes of the time control.
func (d *Line) ReadFractional(delay float32) float32 {
	span := float32(len(d.data) - 3)
	if span < 0 {
		span = 0
	}
	if delay < 0 {
		delay = 0
	} else if delay > span {
		delay = span
	}

	whole := int(delay)
	frac := delay - float32(whole)

	before := whole - 1
	if before < 0 {
		before = 0
	}
	return interp.Hermite4(frac,
		d.Read(before), d.Read(whole), d.Read(whole+1), d.Read(whole+2))
}

// Reset zeroes the history and rewinds the head.
func (d *Line) Reset() {
	core.Zero(d.data)
	d.head = 0
}
