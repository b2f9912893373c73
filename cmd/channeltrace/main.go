// Command channeltrace runs a preset channel against a synthetic gate
// stream and prints the per-sample output trace.
//
// Usage:
//
//	channeltrace [flags] [preset.yaml]
//
// Without a preset it traces a built-in decay envelope.
//
// Examples:
//
//	channeltrace -samples 256 preset.yaml
//	channeltrace -channel 1 -period 500 -duty 0.5 preset.yaml
//	channeltrace -mode advanced -every 8 preset.yaml
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/voltctl/modcore/config"
	"github.com/voltctl/modcore/dsp/core"
	"github.com/voltctl/modcore/dsp/random"
	"github.com/voltctl/modcore/gate"
	"github.com/voltctl/modcore/segment"
)

var defaultPreset = config.Preset{
	Name: "decay",
	Channels: []config.Channel{
		{
			HasTrigger: true,
			Segments: []config.Segment{
				{Type: "ramp", Primary: 0.7, Secondary: 0.2},
			},
		},
	},
}

func main() {
	channel := flag.Int("channel", 0, "channel index within the preset")
	samples := flag.Int("samples", 512, "number of samples to trace")
	period := flag.Int("period", 256, "gate period in samples (0 = a single trigger)")
	duty := flag.Float64("duty", 0.5, "gate duty cycle in (0, 1)")
	blockSize := flag.Int("block", 8, "audio block size in samples")
	sampleRate := flag.Float64("rate", 32000, "sample rate in Hz")
	mode := flag.String("mode", "basic", "multimode: basic, advanced or slowlfo")
	every := flag.Int("every", 1, "print every n-th sample")
	seed := flag.Uint64("seed", 1, "random source seed")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: channeltrace [flags] [preset.yaml]\n\n")
		fmt.Fprintf(os.Stderr, "Traces a modulation channel's per-sample output.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(flag.Arg(0), *channel, *samples, *period, *duty,
		*blockSize, float32(*sampleRate), *mode, *every, *seed); err != nil {
		fmt.Fprintln(os.Stderr, "channeltrace:", err)
		os.Exit(1)
	}
}

func run(path string, channel, samples, period int, duty float64,
	blockSize int, sampleRate float32, mode string, every int, seed uint64) error {
	preset := &defaultPreset
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		preset = loaded
	}
	if channel < 0 || channel >= len(preset.Channels) {
		return fmt.Errorf("channel %d out of range [0, %d)", channel, len(preset.Channels))
	}

	var multiMode segment.MultiMode
	switch mode {
	case "basic":
		multiMode = segment.MultiModeBasic
	case "advanced":
		multiMode = segment.MultiModeAdvanced
	case "slowlfo":
		multiMode = segment.MultiModeSlowLFO
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	g, err := segment.New(
		segment.StaticSettings{Mode: multiMode},
		random.New(seed, seed^0x9e3779b97f4a7c15),
		core.WithSampleRate(sampleRate),
		core.WithBlockSize(blockSize),
	)
	if err != nil {
		return err
	}
	if err := preset.Channels[channel].Apply(g); err != nil {
		return err
	}

	flags := gateFlags(samples, period, duty)
	out := make([]segment.Output, samples)
	for i := 0; i < samples; i += blockSize {
		end := i + blockSize
		if end > samples {
			end = samples
		}
		g.Process(flags[i:end], out[i:end])
	}

	if every < 1 {
		every = 1
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "sample\tgate\tvalue\tphase\tsegment\t")
	for i := 0; i < samples; i += every {
		mark := "-"
		if flags[i].IsHigh() {
			mark = "#"
		}
		fmt.Fprintf(w, "%d\t%s\t%.5f\t%.5f\t%d\t\n",
			i, mark, out[i].Value, out[i].Phase, out[i].Segment)
	}
	return w.Flush()
}

// gateFlags builds a periodic gate stream; period 0 yields a single
// trigger at sample 0.
func gateFlags(samples, period int, duty float64) []gate.Flags {
	flags := make([]gate.Flags, samples)
	prev := false
	for i := range flags {
		var level bool
		if period <= 0 {
			level = i == 0
		} else {
			level = i%period < int(float64(period)*duty)
		}
		flags[i] = gate.FromGate(level, prev)
		prev = level
	}
	return flags
}
