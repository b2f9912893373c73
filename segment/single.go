package segment

import (
	"github.com/voltctl/modcore/dsp/core"
	"github.com/voltctl/modcore/dsp/interp"
	"github.com/voltctl/modcore/gate"
	"github.com/voltctl/modcore/rampextractor"
)

// The two 16-entry dispatch tables, keyed on type*4 + hasTrigger*2 + loop.
// They differ in the sample-and-hold slot (track-and-hold in advanced
// mode) and in the TURING row, which basic mode leaves inert.
var basicProcessTable = [16]processFn{
	// RAMP
	(*Generator).processZero,
	(*Generator).processFreeRunningLFO,
	(*Generator).processDecayEnvelope,
	(*Generator).processTapLFO,

	// STEP
	(*Generator).processPortamento,
	(*Generator).processPortamento,
	(*Generator).processSampleAndHold,
	(*Generator).processSampleAndHold,

	// HOLD
	(*Generator).processDelay,
	(*Generator).processDelay,
	(*Generator).processTimedPulseGenerator,
	(*Generator).processGateGenerator,

	// TURING: not reachable from the basic front panel; random segments
	// default here.
	(*Generator).processZero,
	(*Generator).processZero,
	(*Generator).processZero,
	(*Generator).processZero,
}

var advancedProcessTable = [16]processFn{
	// RAMP
	(*Generator).processZero,
	(*Generator).processFreeRunningLFO,
	(*Generator).processDecayEnvelope,
	(*Generator).processTapLFO,

	// STEP
	(*Generator).processPortamento,
	(*Generator).processPortamento,
	(*Generator).processSampleAndHold,
	(*Generator).processTrackAndHold,

	// HOLD
	(*Generator).processDelay,
	(*Generator).processDelay,
	(*Generator).processTimedPulseGenerator,
	(*Generator).processGateGenerator,

	// TURING
	(*Generator).processRandom,
	(*Generator).processRandom,
	(*Generator).processTuring,
	(*Generator).processLogistic,
}

func (g *Generator) configureSingleSegment(hasTrigger bool, c Configuration) {
	i := 0
	if hasTrigger {
		i += 2
	}
	if c.Loop {
		i++
	}
	i += int(c.Type) * 4

	if g.settings.MultiMode() == MultiModeAdvanced {
		g.process = advancedProcessTable[i]
	} else {
		g.process = basicProcessTable[i]
	}

	s := &g.segments[0]
	s.Bipolar = c.Bipolar
	s.Range = c.Range
	s.Retrig = true
	if c.Type == TypeRamp {
		// For ramps, bipolar repurposes the switch as "don't retrig".
		s.Retrig = !c.Bipolar
	}
	g.numSegments = 1
}

func (g *Generator) processZero(flags []gate.Flags, out []Output) {
	g.value = 0.0
	g.activeSegment = 1
	for i := range out {
		out[i].Value = 0.0
		out[i].Phase = 0.5
		out[i].Segment = 1
	}
}

func (g *Generator) processFreeRunningLFO(flags []gate.Flags, out []Output) {
	f := core.Clamp(96.0*(g.parameters[0].Primary-0.5), -128.0, 127.0)
	frequency := core.SemitonesToRatio(f) * 2.0439497 / g.cfg.SampleRate

	g.activeSegment = 0
	switch g.segments[0].Range {
	case RangeSlow:
		frequency /= 16
	case RangeFast:
		frequency *= 64
		// A8; things get weird past this.
		if limit := 7040.0 / g.cfg.SampleRate; frequency > limit {
			frequency = limit
		}
	default:
		// Good where it is.
	}

	if g.settings.MultiMode() == MultiModeSlowLFO {
		frequency /= 8.0
	}

	for i := range out {
		g.phase += frequency
		if g.phase >= 1.0 {
			g.phase -= 1.0
		}
		out[i].Phase = g.phase
	}
	shapeLFO(g.parameters[0].Secondary, out, g.segments[0].Bipolar)
	g.activeSegment = int(out[len(out)-1].Segment)
}

func (g *Generator) processDecayEnvelope(flags []gate.Flags, out []Output) {
	frequency := rateToFrequency(g.parameters[0].Primary)
	for i := range out {
		if flags[i].IsRising() && (g.activeSegment != 0 || g.segments[0].Retrig) {
			g.phase = 0.0
			g.activeSegment = 0
		}

		g.phase += frequency
		if g.phase >= 1.0 {
			g.phase = 1.0
			g.activeSegment = 1
		}
		g.value = 1.0 - interp.WarpPhase(g.phase, g.parameters[0].Secondary)
		g.lp = g.value
		out[i].Value = g.lp
		out[i].Phase = g.phase
		out[i].Segment = uint8(g.activeSegment)
	}
}

func (g *Generator) processTimedPulseGenerator(flags []gate.Flags, out []Output) {
	frequency := rateToFrequency(g.parameters[0].Secondary)

	primary := interp.NewParameterInterpolator(&g.primary, g.parameters[0].Primary, len(out))
	for i := range out {
		if flags[i].IsRising() && (g.activeSegment != 0 || g.segments[0].Retrig) {
			if g.activeSegment == 0 {
				g.retrigDelay = retrigDelaySamples
			} else {
				g.retrigDelay = 0
			}
			g.phase = 0.0
			g.activeSegment = 0
		}
		g.phase += frequency
		if g.phase >= 1.0 {
			g.phase = 1.0
			g.activeSegment = 1
		}

		p := primary.Next()
		if g.activeSegment == 0 && g.retrigDelay == 0 {
			g.value = p
		} else {
			g.value = 0.0
		}
		if g.retrigDelay > 0 {
			g.retrigDelay--
		}
		g.lp = g.value
		out[i].Value = g.lp
		out[i].Phase = g.phase
		out[i].Segment = uint8(g.activeSegment)
	}
}

func (g *Generator) processGateGenerator(flags []gate.Flags, out []Output) {
	primary := interp.NewParameterInterpolator(&g.primary, g.parameters[0].Primary, len(out))
	for i := range out {
		if flags[i].IsHigh() {
			g.activeSegment = 0
		} else {
			g.activeSegment = 1
		}

		p := primary.Next()
		if g.activeSegment == 0 {
			g.value = p
		} else {
			g.value = 0.0
		}
		g.lp = g.value
		out[i].Value = g.lp
		out[i].Phase = 0.5
		out[i].Segment = uint8(g.activeSegment)
	}
}

func (g *Generator) processSampleAndHold(flags []gate.Flags, out []Output) {
	coefficient := portamentoRateToLPCoefficient(g.parameters[0].Secondary)
	primary := interp.NewParameterInterpolator(&g.primary, g.parameters[0].Primary, len(out))

	for i := range out {
		p := primary.Next()
		delayed := g.gateDelay.Push(flags[i])
		if delayed.IsRising() {
			g.value = p
		}
		if flags[i].IsHigh() {
			g.activeSegment = 0
		} else {
			g.activeSegment = 1
		}

		g.lp = core.OnePole(g.lp, g.value, coefficient)
		out[i].Value = g.lp
		out[i].Phase = 0.5
		out[i].Segment = uint8(g.activeSegment)
	}
}

func (g *Generator) processTrackAndHold(flags []gate.Flags, out []Output) {
	coefficient := portamentoRateToLPCoefficient(g.parameters[0].Secondary)
	primary := interp.NewParameterInterpolator(&g.primary, g.parameters[0].Primary, len(out))

	for i := range out {
		p := primary.Next()
		delayed := g.gateDelay.Push(flags[i])
		if delayed.IsHigh() {
			g.value = p
		}
		if flags[i].IsHigh() {
			g.activeSegment = 0
		} else {
			g.activeSegment = 1
		}

		g.lp = core.OnePole(g.lp, g.value, coefficient)
		out[i].Value = g.lp
		out[i].Phase = 0.5
		out[i].Segment = uint8(g.activeSegment)
	}
}

// processClockedSampleAndHold latches the interpolated level each time a
// free-running phase wraps, resampling at the exact wrap instant. It sits
// outside both dispatch tables (the timed pulse and gate generators won
// those slots) but remains useful when driving a channel without an
// external trigger.
func (g *Generator) processClockedSampleAndHold(flags []gate.Flags, out []Output) {
	frequency := rateToFrequency(g.parameters[0].Secondary)
	primary := interp.NewParameterInterpolator(&g.primary, g.parameters[0].Primary, len(out))
	for i := range out {
		g.phase += frequency
		if g.phase >= 1.0 {
			g.phase -= 1.0

			resetTime := g.phase / frequency
			g.value = primary.Subsample(1.0 - resetTime)
		}
		primary.Next()
		if g.phase < 0.5 {
			g.activeSegment = 0
		} else {
			g.activeSegment = 1
		}
		out[i].Value = g.value
		out[i].Phase = g.phase
		out[i].Segment = uint8(g.activeSegment)
	}
}

func (g *Generator) processTapLFO(flags []gate.Flags, out []Output) {
	var r rampextractor.Ratio
	x := g.parameters[0].Primary * 1.03
	switch g.segments[0].Range {
	case RangeSlow:
		r = g.ratioQuantizer.Lookup(rampextractor.SlowRatios, x)
	case RangeFast:
		r = g.ratioQuantizer.Lookup(rampextractor.FastRatios, x)
	default:
		r = g.ratioQuantizer.Lookup(rampextractor.DefaultRatios, x)
	}

	// The extractor writes into the block-sized scratch ramp; larger
	// blocks are processed in chunks so no allocation happens here.
	for len(out) > 0 {
		n := len(out)
		if n > len(g.rampBuf) {
			n = len(g.rampBuf)
		}
		g.rampExtractor.Process(r, flags[:n], g.rampBuf[:n])
		for i := 0; i < n; i++ {
			out[i].Phase = g.rampBuf[i]
		}
		shapeLFO(g.parameters[0].Secondary, out[:n], g.segments[0].Bipolar)
		g.activeSegment = int(out[n-1].Segment)
		flags = flags[n:]
		out = out[n:]
	}
}

func (g *Generator) processDelay(flags []gate.Flags, out []Output) {
	maxDelay := float32(MaxDelay - 1)

	delayTime := core.SemitonesToRatio(
		2.0*(g.parameters[0].Secondary-0.5)*36.0) * 0.5 * g.cfg.SampleRate
	clockFrequency := float32(1.0)
	delayFrequency := 1.0 / delayTime

	if delayTime >= maxDelay {
		clockFrequency = maxDelay * delayFrequency
		delayTime = maxDelay
	}
	primary := interp.NewParameterInterpolator(&g.primary, g.parameters[0].Primary, len(out))

	g.activeSegment = 0
	for i := range out {
		g.phase += clockFrequency
		g.lp = core.OnePole(g.lp, primary.Next(), clockFrequency)
		if g.phase >= 1.0 {
			g.phase -= 1.0
			g.delayLine.Write(g.lp)
		}

		g.aux += delayFrequency
		if g.aux >= 1.0 {
			g.aux -= 1.0
		}
		if g.aux < 0.5 {
			g.activeSegment = 0
		} else {
			g.activeSegment = 1
		}

		g.value = core.OnePole(
			g.value, g.delayLine.ReadFractional(delayTime-g.phase), clockFrequency)
		out[i].Value = g.value
		out[i].Phase = g.aux
		out[i].Segment = uint8(g.activeSegment)
	}
}

func (g *Generator) processPortamento(flags []gate.Flags, out []Output) {
	coefficient := portamentoRateToLPCoefficient(g.parameters[0].Secondary)
	primary := interp.NewParameterInterpolator(&g.primary, g.parameters[0].Primary, len(out))

	g.activeSegment = 0
	for i := range out {
		g.value = primary.Next()
		g.lp = core.OnePole(g.lp, g.value, coefficient)
		out[i].Value = g.lp
		out[i].Phase = 0.5
		out[i].Segment = 0
	}
}

func (g *Generator) processRandom(flags []gate.Flags, out []Output) {
	coefficient := portamentoRateToLPCoefficient(g.parameters[0].Secondary)
	f := core.Clamp(96.0*(g.parameters[0].Primary-0.5), -128.0, 127.0)
	frequency := core.SemitonesToRatio(f) * 2.0439497 / g.cfg.SampleRate

	g.activeSegment = 0
	for i := range out {
		g.phase += frequency
		if g.phase >= 1.0 {
			g.phase -= 1.0
			g.value = g.rng.Float32()
			if g.segments[0].Bipolar {
				g.value = 10.0 / 8.0 * (g.value - 0.5)
			}
			g.activeSegment = 1
		}
		g.lp = core.OnePole(g.lp, g.value, coefficient)
		out[i].Value = g.lp
		out[i].Phase = 0.5
		out[i].Segment = uint8(g.activeSegment)
	}
}

func (g *Generator) processTuring(flags []gate.Flags, out []Output) {
	steps := int(15*g.parameters[0].Secondary) + 1
	primary := interp.NewParameterInterpolator(&g.primary, g.parameters[0].Primary, len(out))

	for i := range out {
		prob := primary.Next()
		if flags[i].IsRising() {
			g.advanceTuringMachine(0, steps, prob)
			g.value = g.segments[0].RegisterValue
		}
		if flags[i].IsHigh() {
			g.activeSegment = 0
		} else {
			g.activeSegment = 1
		}
		out[i].Value = g.segments[0].RegisterValue
		out[i].Phase = 0.5
		out[i].Segment = uint8(g.activeSegment)
	}
}

func (g *Generator) processLogistic(flags []gate.Flags, out []Output) {
	coefficient := portamentoRateToLPCoefficient(g.parameters[0].Secondary)
	r := 0.5*g.parameters[0].Primary + 3.5
	if g.value <= 0.0 {
		g.value = g.rng.Float32()
	}

	for i := range out {
		if flags[i].IsRising() {
			g.value *= r * (1.0 - g.value)
		}
		if flags[i].IsHigh() {
			g.activeSegment = 0
		} else {
			g.activeSegment = 1
		}

		g.lp = core.OnePole(g.lp, g.value, coefficient)
		if g.segments[0].Bipolar {
			out[i].Value = 10.0 / 8.0 * (g.lp - 0.5)
		} else {
			out[i].Value = g.lp
		}
		out[i].Phase = 0.5
		out[i].Segment = uint8(g.activeSegment)
	}
}
