// Package rampextractor reconstructs a continuous [0,1] phase ramp from a
// gate/clock stream by predicting the time of the next edge and steering
// frequency so the ramp lands on the next expected value exactly when that
// edge arrives. It runs two regimes: a low-rate regime that trusts the
// incoming clock directly, and an audio-rate regime that behaves like a
// phase-locked VCO once the clock period drops below a hysteresis
// threshold.
package rampextractor

import (
	"github.com/voltctl/modcore/dsp/core"
	"github.com/voltctl/modcore/gate"
)

const (
	// HistorySize is the depth of the pulse-history ring and the cap on
	// the average-pulse-width match count.
	HistorySize = 16
	// MaxPatternPeriod bounds the periodic-pattern predictors; predictor i
	// in [1, MaxPatternPeriod] looks i pulses back in history.
	MaxPatternPeriod = 8

	pulseWidthTolerance = 0.05
)

// Ratio encodes a rational multiplier p/q applied to the detected clock
// frequency: q input pulses correspond to p output phase cycles.
type Ratio struct {
	Ratio float32
	Q     int
}

// Pulse records one input gate pulse's timing, in samples, plus its
// pulse width as a fraction of the total period.
type Pulse struct {
	OnDuration    uint32
	TotalDuration uint32
	PulseWidth    float32
}

// Extractor holds all of the ramp extractor's cross-sample state. It is a
// fixed-size structure; no field is ever reallocated after Init.
type Extractor struct {
	sampleRate float32
	maxFrequency float32

	audioRatePeriod           float32
	audioRatePeriodHysteresis float32
	minPeriod                 float32
	minPeriodHysteresis       float32

	audioRate bool

	trainPhase    float32
	maxTrainPhase float32

	targetFrequency float32
	frequency       float32
	lpCoefficient   float32
	fRatio          float32

	resetCounter  int
	resetInterval float32

	history      [HistorySize]Pulse
	currentPulse int

	averagePulseWidth float32
	apwMatchCount     int

	predictionError [MaxPatternPeriod + 1]float32
	predictedPeriod [MaxPatternPeriod + 1]float32
}

// New creates an Extractor. sampleRate must be > 0; maxFrequency bounds
// the audio-rate regime's target frequency (in cycles per sample).
func New(sampleRate, maxFrequency float32) *Extractor {
	e := &Extractor{}
	e.Init(sampleRate, maxFrequency)
	return e
}

// Init (re-)configures the extractor for a sample rate and max frequency
// and resets all cross-sample state.
func (e *Extractor) Init(sampleRate, maxFrequency float32) {
	e.maxFrequency = maxFrequency
	e.audioRatePeriod = 1.0 / (100.0 / sampleRate)
	e.audioRatePeriodHysteresis = e.audioRatePeriod
	e.sampleRate = sampleRate
	e.minPeriod = 1.0 / maxFrequency
	e.minPeriodHysteresis = e.minPeriod
	e.Reset()
}

// Reset clears the extractor's dynamic state back to its just-initialized
// values, without touching sampleRate/maxFrequency.
func (e *Extractor) Reset() {
	e.audioRate = false
	e.trainPhase = 0
	e.targetFrequency = 0
	e.frequency = 0
	e.lpCoefficient = 0.5
	e.maxTrainPhase = 1
	e.fRatio = 1
	e.resetCounter = 1
	e.resetInterval = 5.0 * e.sampleRate

	p := Pulse{
		OnDuration:    uint32(e.sampleRate * 0.25),
		TotalDuration: uint32(e.sampleRate * 0.5),
		PulseWidth:    0.5,
	}
	for i := range e.history {
		e.history[i] = p
	}
	e.currentPulse = 0
	e.history[0].OnDuration = 0
	e.history[0].TotalDuration = 0

	e.averagePulseWidth = 0
	e.apwMatchCount = 0
	for i := range e.predictionError {
		e.predictionError[i] = 50
	}
	for i := range e.predictedPeriod {
		e.predictedPeriod[i] = e.sampleRate * 0.5
	}
	e.predictionError[0] = 0
}

func isWithinTolerance(x, y, errTol float32) bool {
	return x >= y*(1-errTol) && x <= y*(1+errTol)
}

// UpdateAveragePulseWidth folds the current pulse's width into the running
// average if it falls within tolerance of the existing average, else
// restarts the average from this pulse alone.
func (e *Extractor) UpdateAveragePulseWidth(tolerance float32) {
	cpw := e.history[e.currentPulse].PulseWidth
	if isWithinTolerance(e.averagePulseWidth, cpw, tolerance) {
		if e.apwMatchCount < HistorySize {
			e.apwMatchCount++
		}
		n := float32(e.apwMatchCount)
		e.averagePulseWidth = ((n-1)*e.averagePulseWidth + cpw) / n
	} else {
		e.apwMatchCount = 1
		e.averagePulseWidth = cpw
	}
}

// PredictNextPeriod runs all MaxPatternPeriod+1 competing predictors
// against the just-finalized pulse's period, tracks each predictor's
// error, and returns the period of whichever predictor currently has the
// lowest tracked error.
func (e *Extractor) PredictNextPeriod() float32 {
	lastPeriod := float32(e.history[e.currentPulse].TotalDuration)

	best := 0
	for i := 0; i <= MaxPatternPeriod; i++ {
		errv := e.predictedPeriod[i] - lastPeriod
		errSq := errv * errv
		e.predictionError[i] = core.Slope(e.predictionError[i], errSq, 0.7, 0.2)

		if i == 0 {
			e.predictedPeriod[0] = core.OnePole(e.predictedPeriod[0], lastPeriod, 0.5)
		} else {
			t := (e.currentPulse + 1 + HistorySize - i) % HistorySize
			e.predictedPeriod[i] = float32(e.history[t].TotalDuration)
		}

		if e.predictionError[i] < e.predictionError[best] {
			best = i
		}
	}
	return e.predictedPeriod[best]
}

// Process writes len(out) ramp values in [0,1] given a matching gate-flag
// stream and the ratio currently selected by the caller (e.g. a
// RatioQuantizer.Lookup result). A stopped audio-rate clock freezes the
// output at 1.
func (e *Extractor) Process(ratio Ratio, flags []gate.Flags, out []float32) {
	size := len(out)
	if size == 0 {
		return
	}

	trainPhase := e.trainPhase
	maxTrainPhase := e.maxTrainPhase

	ratioForThreshold := ratio.Ratio
	if ratioForThreshold < 1 {
		ratioForThreshold = 1
	}
	arThreshold := e.audioRatePeriodHysteresis * ratioForThreshold

	idx := 0
	f := flags[idx]

	for idx < size {
		if f.IsRising() {
			trainPhase, maxTrainPhase = e.handleRisingEdge(ratio, arThreshold, trainPhase, maxTrainPhase)
		}

		p := &e.history[e.currentPulse]
		for {
			p.TotalDuration++
			if e.audioRate {
				if f.IsFalling() {
					p.OnDuration = p.TotalDuration - 1
				}
				e.frequency = core.OnePole(e.frequency, e.targetFrequency, e.lpCoefficient)
				trainPhase += e.frequency
				if trainPhase > 1.0 {
					trainPhase -= 1.0
					if float32(p.TotalDuration)/e.fRatio > 1.5/e.targetFrequency {
						trainPhase = 1.0
						e.frequency = 0
						e.targetFrequency = 0
					}
				}
				out[idx] = trainPhase
			} else {
				if f.IsFalling() {
					p.OnDuration = p.TotalDuration - 1
					if e.apwMatchCount >= HistorySize {
						tOn := float32(p.OnDuration)
						next := maxTrainPhase - float32(e.resetCounter) + 1.0
						pw := e.averagePulseWidth
						e.frequency = maxF32(next-trainPhase, 0) * pw / ((1 - pw) * tOn)
					}
				}
				trainPhase += e.frequency
				if trainPhase >= maxTrainPhase {
					trainPhase = maxTrainPhase
				}

				phase := trainPhase * e.fRatio
				phase -= float32(int32(phase))
				out[idx] = phase
			}

			idx++
			if idx >= size {
				break
			}
			f = flags[idx]
			if f.IsRising() {
				break
			}
		}
	}

	e.trainPhase = trainPhase
	e.maxTrainPhase = maxTrainPhase
}

// handleRisingEdge finalizes the in-progress pulse, decides whether this
// is a clock reset, an audio-rate edge, or a low-rate edge, and advances
// the history ring. It returns the (possibly rewritten) trainPhase and
// maxTrainPhase.
func (e *Extractor) handleRisingEdge(ratio Ratio, arThreshold, trainPhase, maxTrainPhase float32) (float32, float32) {
	p := &e.history[e.currentPulse]
	recordPulse := float32(p.TotalDuration) < e.resetInterval

	if !recordPulse {
		trainPhase = 0
		e.resetCounter = ratio.Q
		e.fRatio = ratio.Ratio
		maxTrainPhase = float32(ratio.Q)
		e.frequency = 1.0 / e.PredictNextPeriod()
		e.targetFrequency = e.frequency
		e.resetInterval = 4.0 * float32(p.TotalDuration)
	} else {
		period := float32(p.TotalDuration)
		if period <= arThreshold && period > 0 {
			e.enterAudioRate(ratio, period)
		} else {
			e.enterLowRate(ratio, p, period)
			reachedReset := false
			e.resetCounter--
			if e.resetCounter <= 0 {
				trainPhase = 0
				e.resetCounter = ratio.Q
				e.fRatio = ratio.Ratio
				maxTrainPhase = float32(ratio.Q)
				reachedReset = true
			}
			if !reachedReset {
				expected := maxTrainPhase - float32(e.resetCounter)
				warp := expected - trainPhase + 1.0
				e.frequency *= maxF32(warp, 0.01)
			}
			e.targetFrequency = e.fRatio * e.frequency
			e.resetInterval = maxF32(4.0/e.targetFrequency, e.sampleRate*3.0)
		}
		e.currentPulse = (e.currentPulse + 1) % HistorySize
	}
	e.history[e.currentPulse].OnDuration = 0
	e.history[e.currentPulse].TotalDuration = 0

	return trainPhase, maxTrainPhase
}

func (e *Extractor) enterAudioRate(ratio Ratio, period float32) {
	e.audioRate = true
	e.audioRatePeriodHysteresis = e.audioRatePeriod * 1.1

	e.averagePulseWidth = 0
	e.apwMatchCount = 0

	noGlide := e.fRatio != ratio.Ratio
	e.fRatio = ratio.Ratio

	frequency := 1.0 / period
	e.targetFrequency = minF32(e.fRatio*frequency, e.maxFrequency)

	upTolerance := (1.02 + 2.0*frequency) * e.frequency
	downTolerance := (0.98 - 2.0*frequency) * e.frequency
	noGlide = noGlide || e.targetFrequency > upTolerance || e.targetFrequency < downTolerance

	if noGlide {
		e.lpCoefficient = 1.0
	} else {
		e.lpCoefficient = period * 0.00001
	}
}

func (e *Extractor) enterLowRate(ratio Ratio, p *Pulse, period float32) {
	e.audioRate = false
	e.audioRatePeriodHysteresis = e.audioRatePeriod

	if period <= e.minPeriodHysteresis {
		e.minPeriodHysteresis = e.minPeriod * 1.05
		e.frequency = 1.0 / maxF32(period, 1.0/e.sampleRate)
		e.averagePulseWidth = 0
		e.apwMatchCount = 0
		return
	}

	e.minPeriodHysteresis = e.minPeriod
	p.PulseWidth = float32(p.OnDuration) / float32(p.TotalDuration)
	e.UpdateAveragePulseWidth(pulseWidthTolerance)
	if p.OnDuration < 32 {
		e.averagePulseWidth = 0
		e.apwMatchCount = 0
	}
	e.frequency = 1.0 / e.PredictNextPeriod()
}

func minF32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxF32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
