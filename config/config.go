// Package config defines a YAML preset format for the modulation core: a
// bank of channel programs (segment chains with their live parameters)
// plus an optional quantizer scale. The processing core itself never
// touches a filesystem; presets exist for offline harnesses, tests and
// the channeltrace inspector.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/voltctl/modcore/quantizer"
	"github.com/voltctl/modcore/segment"
)

// Preset is one stored module setup.
type Preset struct {
	Name     string    `yaml:"name,omitempty"`
	Channels []Channel `yaml:"channels"`
	Scale    *Scale    `yaml:"scale,omitempty"`
}

// Channel programs one output channel: its segment chain and whether a
// trigger input is patched.
type Channel struct {
	HasTrigger bool      `yaml:"has_trigger"`
	Segments   []Segment `yaml:"segments"`
}

// Segment is one stage of a channel program, carrying both the static
// configuration and the two live parameter values to latch.
type Segment struct {
	Type      string  `yaml:"type"`
	Loop      bool    `yaml:"loop,omitempty"`
	Bipolar   bool    `yaml:"bipolar,omitempty"`
	Range     string  `yaml:"range,omitempty"`
	Primary   float32 `yaml:"primary"`
	Secondary float32 `yaml:"secondary"`
}

// Scale is a quantizer scale: note degrees within one octave plus the
// octave span, in the same pitch units.
type Scale struct {
	Notes []float32 `yaml:"notes,flow"`
	Span  float32   `yaml:"span"`
}

// Parse decodes a preset from YAML. Unknown fields are rejected.
func Parse(data []byte) (*Preset, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Preset
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("config: parse preset: %w", err)
	}
	if len(p.Channels) == 0 {
		return nil, fmt.Errorf("config: preset has no channels")
	}
	for i := range p.Channels {
		if _, err := p.Channels[i].Configurations(); err != nil {
			return nil, fmt.Errorf("config: channel %d: %w", i, err)
		}
	}
	return &p, nil
}

// Load reads and parses a preset file.
func Load(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: load preset: %w", err)
	}
	return Parse(data)
}

// Save writes the preset as YAML.
func (p *Preset) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("config: marshal preset: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: save preset: %w", err)
	}
	return nil
}

func parseType(s string) (segment.Type, error) {
	switch strings.ToLower(s) {
	case "ramp":
		return segment.TypeRamp, nil
	case "step":
		return segment.TypeStep, nil
	case "hold":
		return segment.TypeHold, nil
	case "turing":
		return segment.TypeTuring, nil
	}
	return 0, fmt.Errorf("unknown segment type %q", s)
}

func parseRange(s string) (segment.Range, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return segment.RangeDefault, nil
	case "slow":
		return segment.RangeSlow, nil
	case "fast":
		return segment.RangeFast, nil
	}
	return 0, fmt.Errorf("unknown range %q", s)
}

// Configurations converts the channel's segments to the core's typed
// configuration array.
func (c *Channel) Configurations() ([]segment.Configuration, error) {
	if len(c.Segments) == 0 || len(c.Segments) > segment.MaxNumSegments {
		return nil, fmt.Errorf("segment count must be in [1, %d]: %d",
			segment.MaxNumSegments, len(c.Segments))
	}
	configs := make([]segment.Configuration, len(c.Segments))
	for i, s := range c.Segments {
		typ, err := parseType(s.Type)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		rng, err := parseRange(s.Range)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		configs[i] = segment.Configuration{
			Type:    typ,
			Loop:    s.Loop,
			Bipolar: s.Bipolar,
			Range:   rng,
		}
	}
	return configs, nil
}

// Apply programs a generator from the channel: Configure plus one
// SetSegmentParameters per segment.
func (c *Channel) Apply(g *segment.Generator) error {
	configs, err := c.Configurations()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := g.Configure(c.HasTrigger, configs); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for i, s := range c.Segments {
		g.SetSegmentParameters(i, s.Primary, s.Secondary)
	}
	return nil
}

// NewQuantizer builds a pitch quantizer from the scale.
func (s *Scale) NewQuantizer() (*quantizer.Quantizer, error) {
	q, err := quantizer.New(s.Notes, s.Span)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return q, nil
}
