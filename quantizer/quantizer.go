// Package quantizer implements a boundary-cached pitch quantizer: it snaps
// a scalar pitch value to the nearest note of a user-defined scale, with
// hysteresis at the note boundaries to suppress jitter near a transition.
package quantizer

import (
	"fmt"

	"github.com/voltctl/modcore/dsp/core"
)

// maxNotes bounds the scale size; scales are fixed-capacity arrays so no
// allocation occurs after construction.
const maxNotes = 16

// Quantizer snaps a pitch to the nearest note of a scale, one octave
// ("span") wide, caching the boundaries bracketing the last result so that
// most calls resolve with a single range check.
type Quantizer struct {
	notes    [maxNotes]float32
	numNotes int
	span     float32

	enabled          bool
	codeword         float32
	previousBoundary float32
	nextBoundary     float32
}

// New creates a Quantizer for the given scale (sorted ascending degrees
// within one octave) and octave span. notes must have length in
// [1, maxNotes].
func New(notes []float32, span float32) (*Quantizer, error) {
	if len(notes) == 0 || len(notes) > maxNotes {
		return nil, fmt.Errorf("quantizer: notes length must be in [1, %d]: %d", maxNotes, len(notes))
	}
	if span <= 0 {
		return nil, fmt.Errorf("quantizer: span must be > 0: %v", span)
	}

	q := &Quantizer{span: span, enabled: true, numNotes: len(notes)}
	core.CopyInto(q.notes[:], notes)

	return q, nil
}

// SetScale replaces the active scale and span, and invalidates the cached
// boundaries so the next Process call takes the slow path.
func (q *Quantizer) SetScale(notes []float32, span float32) error {
	if len(notes) == 0 || len(notes) > maxNotes {
		return fmt.Errorf("quantizer: notes length must be in [1, %d]: %d", maxNotes, len(notes))
	}
	if span <= 0 {
		return fmt.Errorf("quantizer: span must be > 0: %v", span)
	}

	core.Zero(q.notes[:])
	core.CopyInto(q.notes[:], notes)
	q.numNotes = len(notes)
	q.span = span
	// An empty interval (previous above next) matches no pitch.
	q.previousBoundary = 1
	q.nextBoundary = 0

	return nil
}

// SetEnabled toggles quantization; when disabled, Process is the identity.
func (q *Quantizer) SetEnabled(enabled bool) {
	q.enabled = enabled
}

// Process snaps pitch to the active scale, relative to root.
func (q *Quantizer) Process(pitch, root float32) float32 {
	if !q.enabled {
		return pitch
	}

	pitch -= root

	if pitch >= q.previousBoundary && pitch <= q.nextBoundary {
		pitch = q.codeword
	} else {
		pitch = q.resolveSlow(pitch)
	}

	return pitch + root
}

// ProcessDefault is Process(pitch, 0).
func (q *Quantizer) ProcessDefault(pitch float32) float32 {
	return q.Process(pitch, 0)
}

// resolveSlow finds the nearest scale note across octave boundaries,
// recomputes the cached codeword and the asymmetrically-weighted
// hysteresis boundaries around it, and returns the snapped pitch.
func (q *Quantizer) resolveSlow(pitch float32) float32 {
	octave := float32(int(pitch / q.span))
	if pitch < 0 {
		octave--
	}
	relPitch := pitch - q.span*octave

	bestDistance := float32(1 << 20)
	best := -1
	for i := 0; i < q.numNotes; i++ {
		d := absF(relPitch - q.notes[i])
		if d < bestDistance {
			bestDistance = d
			best = i
		}
	}

	if d := absF(pitch - (octave+1)*q.span - q.notes[0]); d < bestDistance {
		octave++
		best = 0
		bestDistance = d
	} else if d := absF(pitch - (octave-1)*q.span - q.notes[q.numNotes-1]); d <= bestDistance {
		octave--
		best = q.numNotes - 1
	}

	q.codeword = q.notes[best] + octave*q.span

	if best == 0 {
		q.previousBoundary = q.notes[q.numNotes-1] + (octave-1)*q.span
	} else {
		q.previousBoundary = q.notes[best-1] + octave*q.span
	}
	q.previousBoundary = weightedBoundary(q.previousBoundary, q.codeword)

	if best == q.numNotes-1 {
		q.nextBoundary = q.notes[0] + (octave+1)*q.span
	} else {
		q.nextBoundary = q.notes[best+1] + octave*q.span
	}
	q.nextBoundary = weightedBoundary(q.nextBoundary, q.codeword)

	return q.codeword
}

// weightedBoundary places a boundary 9/16 (56%) of the way from the
// codeword to a neighbouring note, just past the midpoint, widening the
// hysteresis "stick" zone to suppress jitter near a boundary.
func weightedBoundary(boundary, codeword float32) float32 {
	return (9*boundary + 7*codeword) / 16
}

func absF(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
