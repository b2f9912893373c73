package segment

import (
	"github.com/voltctl/modcore/dsp/core"
	"github.com/voltctl/modcore/dsp/delay"
	"github.com/voltctl/modcore/dsp/interp"
	"github.com/voltctl/modcore/dsp/random"
	"github.com/voltctl/modcore/gate"
	"github.com/voltctl/modcore/rampextractor"
	"github.com/voltctl/modcore/resources"
)

const (
	// MaxDelay is the delay-line capacity, in samples, of the single-segment
	// Delay processor.
	MaxDelay = 768

	// retrigDelaySamples is the duration of the forced-low "tooth" emitted
	// by the timed pulse generator when a trigger arrives while the output
	// is already high.
	retrigDelaySamples = 32
)

// MultiMode selects the host module's global operating mode, queried by
// the generator when configuring a channel and once per block by the
// free-running LFO.
type MultiMode uint8

const (
	// MultiModeBasic is the default mode: the basic dispatch table, with
	// sample-and-hold at the track-and-hold slot.
	MultiModeBasic MultiMode = iota
	// MultiModeAdvanced swaps in the advanced dispatch table
	// (track-and-hold, random, Turing, logistic).
	MultiModeAdvanced
	// MultiModeSlowLFO divides the free-running LFO's frequency by an
	// additional factor of 8.
	MultiModeSlowLFO
)

// Settings is the handle onto the host's persistent settings. The core
// only ever reads the multimode field.
type Settings interface {
	MultiMode() MultiMode
}

// StaticSettings is a Settings that always reports a fixed mode, for
// hosts without persistent storage and for tests.
type StaticSettings struct {
	Mode MultiMode
}

// MultiMode returns the fixed mode.
func (s StaticSettings) MultiMode() MultiMode { return s.Mode }

type processFn func(g *Generator, flags []gate.Flags, out []Output)

// Generator is one output channel's modulation core. All of its buffers
// are sized at New; Configure, SetSegmentParameters and Process never
// allocate.
type Generator struct {
	cfg      core.ProcessorConfig
	settings Settings
	rng      *random.Source

	process processFn

	zero float32
	half float32
	one  float32

	phase float32
	aux   float32
	start float32
	value float32
	lp    float32

	// Cross-block state of the block-rate parameter interpolator shared by
	// the single-segment processors.
	primary float32

	activeSegment    int
	monitoredSegment int
	retrigDelay      int
	numSegments      int

	segments   [MaxNumSegments + 1]Segment
	parameters [MaxNumSegments]Parameters

	rampExtractor  *rampextractor.Extractor
	ratioQuantizer rampextractor.RatioQuantizer
	delayLine      *delay.Line
	gateDelay      *gate.Delay

	sampleAndHoldDelay int
	rampBuf            []float32
}

// New creates a Generator for one channel. settings must be non-nil; rng
// may be nil, in which case the generator draws its own entropy-seeded
// source (tests pass a seeded one for reproducible sequences).
func New(settings Settings, rng *random.Source, opts ...core.ProcessorOption) (*Generator, error) {
	cfg := core.ApplyProcessorOptions(opts...)
	if rng == nil {
		rng = random.NewFromEntropy()
	}

	g := &Generator{
		cfg:      cfg,
		settings: settings,
		rng:      rng,

		zero: 0.0,
		half: 0.5,
		one:  1.0,
	}

	g.process = (*Generator).processMultiSegment

	// S&H latch delay, matching the ~2ms gate/CV skew of typical sequencer
	// outputs.
	g.sampleAndHoldDelay = int(cfg.SampleRate) * 2 / 1000
	if g.sampleAndHoldDelay < 1 {
		g.sampleAndHoldDelay = 1
	}
	g.gateDelay = gate.NewDelay(g.sampleAndHoldDelay)

	line, err := delay.New(MaxDelay)
	if err != nil {
		return nil, err
	}
	g.delayLine = line

	g.rampExtractor = rampextractor.New(cfg.SampleRate, 1000.0/cfg.SampleRate)
	g.ratioQuantizer.Init()

	g.rampBuf = make([]float32, cfg.BlockSize)

	sr := uint16(rng.Uint32())
	rv := rng.Float32()
	for i := range g.segments {
		g.segments[i] = Segment{
			Start:      &g.zero,
			End:        &g.zero,
			Time:       &g.zero,
			Curve:      &g.half,
			Portamento: &g.zero,
			Phase:      nil,

			IfRising:   0,
			IfFalling:  0,
			IfComplete: 0,

			Retrig:        true,
			ShiftRegister: sr,
			RegisterValue: rv,
		}
	}

	return g, nil
}

// SampleRate returns the configured processing sample rate.
func (g *Generator) SampleRate() float32 { return g.cfg.SampleRate }

// NumSegments returns the number of configured segments (excluding the
// sentinel).
func (g *Generator) NumSegments() int { return g.numSegments }

// ActiveSegment returns the index of the segment currently producing
// output; equal to NumSegments when the generator is parked on the
// sentinel.
func (g *Generator) ActiveSegment() int { return g.activeSegment }

// SetMonitoredSegment selects which segment index ProcessSlave mirrors.
func (g *Generator) SetMonitoredSegment(i int) {
	g.monitoredSegment = core.ConstrainInt(i, 0, MaxNumSegments)
}

// SetSegmentParameters latches the two live controls for segment i. It is
// called by the host between blocks; out-of-range indices are ignored.
func (g *Generator) SetSegmentParameters(i int, primary, secondary float32) {
	if i < 0 || i >= MaxNumSegments {
		return
	}
	g.parameters[i].Primary = primary
	g.parameters[i].Secondary = secondary
}

// Process produces one output sample per gate flag. flags and out must
// have the same length; the shorter of the two bounds the block.
func (g *Generator) Process(flags []gate.Flags, out []Output) {
	n := len(out)
	if len(flags) < n {
		n = len(flags)
	}
	if n == 0 {
		return
	}
	g.process(g, flags[:n], out[:n])
}

// rateToFrequency maps a normalized rate to a per-sample phase increment
// through the envelope-frequency curve.
func rateToFrequency(rate float32) float32 {
	return resources.RateToFrequency(rate)
}

// portamentoRateToLPCoefficient maps a normalized rate to a one-pole
// coefficient through the portamento curve.
func portamentoRateToLPCoefficient(rate float32) float32 {
	return resources.PortamentoRateToLPCoefficient(rate)
}

// Configure reprograms the channel from a fresh configuration array. The
// Turing shift registers survive reconfiguration; everything else is
// rewired. Multi-segment configurations require hasTrigger.
func (g *Generator) Configure(hasTrigger bool, configs []Configuration) error {
	if err := validateConfigurations(hasTrigger, configs); err != nil {
		return err
	}
	if len(configs) == 1 {
		g.configureSingleSegment(hasTrigger, configs[0])
		return nil
	}
	g.configureMultiSegment(configs)
	return nil
}

// isStep reports whether a segment participates in step-like jump wiring.
// Looping Turing segments behave as holds, non-looping ones as steps.
func isStep(c Configuration) bool {
	return c.Type == TypeStep || (c.Type == TypeTuring && !c.Loop)
}

func (g *Generator) configureMultiSegment(configs []Configuration) {
	numSegments := len(configs)
	g.numSegments = numSegments
	g.process = (*Generator).processMultiSegment

	// First pass: loop extent, step-likeness, first ramp.
	loopStart := -1
	loopEnd := -1
	hasStepSegments := false
	lastSegment := numSegments - 1
	firstRampSegment := -1

	for i := 0; i <= lastSegment; i++ {
		hasStepSegments = hasStepSegments || isStep(configs[i])
		if configs[i].Loop {
			if loopStart == -1 {
				loopStart = i
			}
			loopEnd = i
		}
		if configs[i].Type == TypeRamp && firstRampSegment == -1 {
			firstRampSegment = i
		}
	}

	hasStepSegmentsInsideLoop := false
	if loopStart != -1 {
		for i := loopStart; i <= loopEnd; i++ {
			if isStep(configs[i]) {
				hasStepSegmentsInsideLoop = true
				break
			}
		}
	}

	for i := 0; i <= lastSegment; i++ {
		s := &g.segments[i]
		s.Bipolar = configs[i].Bipolar
		s.Range = configs[i].Range
		s.Retrig = true
		s.AdvanceTM = false

		switch configs[i].Type {
		case TypeRamp:
			// For ramps, bipolar repurposes the switch as "don't retrig".
			s.Retrig = !s.Bipolar
			s.Start = nil
			if numSegments == 1 {
				s.Start = &g.one
			}
			s.Time = &g.parameters[i].Primary
			s.Curve = &g.parameters[i].Secondary
			s.Portamento = &g.zero
			s.Phase = nil

			switch {
			case i == lastSegment:
				s.End = &g.zero
			case configs[i+1].Type == TypeTuring:
				s.End = &g.segments[i+1].RegisterValue
			case configs[i+1].Type != TypeRamp:
				s.End = &g.parameters[i+1].Primary
			case i == firstRampSegment:
				s.End = &g.one
			default:
				s.End = &g.parameters[i].Secondary
				s.Curve = &g.half
			}

		case TypeStep:
			s.Start = &g.parameters[i].Primary
			s.End = &g.parameters[i].Primary
			s.Curve = &g.half
			s.Portamento = &g.parameters[i].Secondary
			s.Time = nil
			// Sample if this segment is a loop of length 1, track otherwise.
			if i == loopStart && i == loopEnd {
				s.Phase = &g.zero
			} else {
				s.Phase = &g.one
			}

		case TypeTuring:
			s.Start = &s.RegisterValue
			s.End = &s.RegisterValue
			s.Curve = &g.half
			s.AdvanceTM = true
			s.Portamento = &g.zero
			s.Time = nil
			s.Phase = &g.zero

		default: // TypeHold
			s.Start = &g.parameters[i].Primary
			s.End = &g.parameters[i].Primary
			s.Curve = &g.half
			s.Portamento = &g.zero
			// Hold forever on a loop of length 1; otherwise use the
			// programmed time.
			if i == loopStart && i == loopEnd {
				s.Time = nil
			} else {
				s.Time = &g.parameters[i].Secondary
			}
			s.Phase = &g.one // Track changes on the level control.
		}

		if i == loopEnd {
			s.IfComplete = loopStart
		} else {
			s.IfComplete = i + 1
		}
		if loopEnd == -1 || loopEnd == lastSegment || hasStepSegments {
			s.IfFalling = noJump
		} else {
			s.IfFalling = loopEnd + 1
		}
		s.IfRising = 0

		if hasStepSegments {
			if !hasStepSegmentsInsideLoop && i >= loopStart && i <= loopEnd {
				s.IfRising = (loopEnd + 1) % numSegments
			} else {
				// Find the next step segment, following the loop once.
				followLoop := loopEnd != -1
				nextStep := i
				for !isStep(configs[nextStep]) {
					nextStep++
					if followLoop && nextStep == loopEnd+1 {
						nextStep = loopStart
						followLoop = false
					}
					if nextStep >= numSegments {
						nextStep = numSegments - 1
						break
					}
				}
				if nextStep == loopEnd {
					s.IfRising = loopStart
				} else {
					s.IfRising = (nextStep + 1) % numSegments
				}
			}
		}
	}

	sentinel := &g.segments[numSegments]
	sentinel.Start = g.segments[numSegments-1].End
	sentinel.End = g.segments[numSegments-1].End
	sentinel.Time = &g.zero
	sentinel.Curve = &g.half
	sentinel.Portamento = &g.zero
	sentinel.Phase = nil
	sentinel.Retrig = true
	sentinel.AdvanceTM = false
	sentinel.IfRising = 0
	sentinel.IfFalling = noJump
	if loopEnd == lastSegment {
		sentinel.IfComplete = 0
	} else {
		sentinel.IfComplete = noJump
	}

	// Park on the sentinel; the first rising edge enters the graph, so a
	// reconfiguration mid-patch produces no glitch until the next trigger.
	g.activeSegment = numSegments
}

func (g *Generator) processMultiSegment(flags []gate.Flags, out []Output) {
	phase := g.phase
	start := g.start
	lp := g.lp
	value := g.value

	for i := range out {
		s := &g.segments[g.activeSegment]

		if s.Time != nil {
			phase += rateToFrequency(*s.Time)
		}

		complete := phase >= 1.0
		if complete {
			phase = 1.0
		}
		t := phase
		if s.Phase != nil {
			t = *s.Phase
		}
		value = core.Crossfade(start, *s.End, interp.WarpPhase(t, *s.Curve))

		lp = core.OnePole(lp, value, portamentoRateToLPCoefficient(*s.Portamento))

		// Decide what to do next.
		goToSegment := noJump
		switch {
		case flags[i].IsRising() && s.Retrig:
			goToSegment = s.IfRising
		case flags[i].IsFalling():
			goToSegment = s.IfFalling
		case complete:
			goToSegment = s.IfComplete
		}

		if goToSegment != noJump {
			if s.AdvanceTM {
				steps := int(15*g.parameters[g.activeSegment].Secondary) + 1
				prob := g.parameters[g.activeSegment].Primary
				g.advanceTuringMachine(g.activeSegment, steps, prob)
			}
			phase = 0.0
			destination := &g.segments[goToSegment]
			switch {
			case destination.Start != nil:
				start = *destination.Start
			case goToSegment == g.activeSegment:
				// Keep the current start; the segment restarts in place.
			default:
				start = value
			}
			g.activeSegment = goToSegment
		}

		out[i].Value = lp
		out[i].Phase = phase
		out[i].Segment = uint8(g.activeSegment)
	}

	g.phase = phase
	g.start = start
	g.lp = lp
	g.value = value
}

// ProcessSlave rewrites another channel's freshly produced output so this
// channel mirrors one monitored segment: full-scale falling ramp while the
// monitored segment is active, zero elsewhere. Used to derive per-stage
// gates (e.g. end-of-attack) from a neighboring envelope.
func (g *Generator) ProcessSlave(out []Output) {
	for i := range out {
		if int(out[i].Segment) == g.monitoredSegment {
			g.activeSegment = 0
			out[i].Value = 1.0 - out[i].Phase
		} else {
			g.activeSegment = 1
			out[i].Value = 0.0
		}
	}
}
