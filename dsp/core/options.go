package core

// ProcessorConfig defines the block-processing settings shared by the
// channel-level processors (segment generator, ramp extractor): the sample
// rate driving every per-sample frequency computation, and the host's
// typical block size.
type ProcessorConfig struct {
	SampleRate float32
	BlockSize  int
}

// ProcessorOption mutates a ProcessorConfig.
type ProcessorOption func(*ProcessorConfig)

// DefaultProcessorConfig returns the module's native operating point:
// 32kHz sample rate, 8-sample audio blocks.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		SampleRate: 32000,
		BlockSize:  8,
	}
}

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float32) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the host's audio block size.
func WithBlockSize(blockSize int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if blockSize > 0 {
			cfg.BlockSize = blockSize
		}
	}
}

// ApplyProcessorOptions applies zero or more options to the default config.
func ApplyProcessorOptions(opts ...ProcessorOption) ProcessorConfig {
	cfg := DefaultProcessorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
