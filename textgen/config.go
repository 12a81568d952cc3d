package textgen

import "fmt"

// GenerationConfig holds the decoding options for a single Generate call.
// A config is immutable once handed to Generate; concurrent calls may share
// one config value.
type GenerationConfig struct {
	MinLength          int
	MaxLength          int
	DoSample           bool
	EarlyStopping      bool
	NumBeams           int
	Temperature        float64
	TopK               int
	TopP               float64
	RepetitionPenalty  float64
	LengthPenalty      float64
	NoRepeatNGramSize  int
	NumReturnSequences int
}

// GenerationOption is a functional option for GenerationConfig
type GenerationOption func(*GenerationConfig)

// NewGenerationConfig creates a new GenerationConfig with default values
func NewGenerationConfig(opts ...GenerationOption) *GenerationConfig {
	cfg := &GenerationConfig{
		MinLength:          0,
		MaxLength:          64,
		DoSample:           false,
		EarlyStopping:      false,
		NumBeams:           1,
		Temperature:        1.0,
		TopK:               0,
		TopP:               1.0,
		RepetitionPenalty:  1.0,
		LengthPenalty:      1.0,
		NoRepeatNGramSize:  0,
		NumReturnSequences: 1,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// validate checks if the generation options are valid.
// Called at Generate entry, before any model invocation.
func (cfg *GenerationConfig) validate() error {
	if cfg.MaxLength < 1 {
		return fmt.Errorf("max_length must be at least 1")
	}
	if cfg.MinLength < 0 {
		return fmt.Errorf("min_length must not be negative")
	}
	if cfg.Temperature <= 0 {
		return fmt.Errorf("temperature must be strictly positive")
	}
	if cfg.TopP < 0 || cfg.TopP > 1 {
		return fmt.Errorf("top_p must be between 0 and 1")
	}
	if cfg.RepetitionPenalty < 1 {
		return fmt.Errorf("repetition_penalty must be at least 1")
	}
	if cfg.LengthPenalty <= 0 {
		return fmt.Errorf("length_penalty must be strictly positive")
	}
	if cfg.NumReturnSequences < 1 {
		return fmt.Errorf("num_return_sequences must be strictly positive")
	}
	if cfg.NumBeams < 1 {
		return fmt.Errorf("num_beams must be strictly positive")
	}

	if !cfg.DoSample {
		if cfg.NumBeams == 1 && cfg.NumReturnSequences != 1 {
			return fmt.Errorf("num_return_sequences must be 1 for greedy decoding")
		}
		if cfg.NumBeams > 1 && cfg.NumReturnSequences > cfg.NumBeams {
			return fmt.Errorf("num_return_sequences must not exceed num_beams")
		}
	}

	return nil
}

// WithMinLength sets the minimum total sequence length
func WithMinLength(n int) GenerationOption {
	return func(cfg *GenerationConfig) {
		cfg.MinLength = n
	}
}

// WithMaxLength sets the maximum total sequence length
func WithMaxLength(n int) GenerationOption {
	return func(cfg *GenerationConfig) {
		cfg.MaxLength = n
	}
}

// WithSampling enables or disables multinomial sampling
func WithSampling(b bool) GenerationOption {
	return func(cfg *GenerationConfig) {
		cfg.DoSample = b
	}
}

// WithEarlyStopping stops beam search as soon as enough hypotheses finished
func WithEarlyStopping(b bool) GenerationOption {
	return func(cfg *GenerationConfig) {
		cfg.EarlyStopping = b
	}
}

// WithNumBeams sets the number of beams for beam search
func WithNumBeams(n int) GenerationOption {
	return func(cfg *GenerationConfig) {
		cfg.NumBeams = n
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) GenerationOption {
	return func(cfg *GenerationConfig) {
		cfg.Temperature = t
	}
}

// WithTopK sets top-k filtering (0 disables)
func WithTopK(k int) GenerationOption {
	return func(cfg *GenerationConfig) {
		cfg.TopK = k
	}
}

// WithTopP sets nucleus filtering (1.0 disables)
func WithTopP(p float64) GenerationOption {
	return func(cfg *GenerationConfig) {
		cfg.TopP = p
	}
}

// WithRepetitionPenalty sets the repetition penalty (1.0 disables)
func WithRepetitionPenalty(p float64) GenerationOption {
	return func(cfg *GenerationConfig) {
		cfg.RepetitionPenalty = p
	}
}

// WithLengthPenalty sets the beam search length penalty exponent
func WithLengthPenalty(p float64) GenerationOption {
	return func(cfg *GenerationConfig) {
		cfg.LengthPenalty = p
	}
}

// WithNoRepeatNGramSize bans repeating any n-gram of the given size (0 disables)
func WithNoRepeatNGramSize(n int) GenerationOption {
	return func(cfg *GenerationConfig) {
		cfg.NoRepeatNGramSize = n
	}
}

// WithNumReturnSequences sets how many sequences are returned per prompt
func WithNumReturnSequences(n int) GenerationOption {
	return func(cfg *GenerationConfig) {
		cfg.NumReturnSequences = n
	}
}
