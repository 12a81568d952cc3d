package textgen

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
)

// PrepareInputsFunc decides what slice of the accumulated rows is fed to
// the model at each step. The default feeds the full sequences; model
// families whose cache encodes all prior context may feed only the newest
// token once a cache exists.
type PrepareInputsFunc func(inputIDs [][]int, attentionMask [][]int, past Cache) [][]int

// FullContextInputs feeds the whole accumulated sequence every step
func FullContextInputs(inputIDs, attentionMask [][]int, past Cache) [][]int {
	return inputIDs
}

// LastTokenInputs feeds only the most recent token once a cache exists
func LastTokenInputs(inputIDs, attentionMask [][]int, past Cache) [][]int {
	if past == nil {
		return inputIDs
	}
	out := make([][]int, len(inputIDs))
	for i, row := range inputIDs {
		out[i] = row[len(row)-1:]
	}
	return out
}

// Generator binds a model capability, a tokenizer capability and the
// resolved special-token ids into the generation engine. Special ids are
// fixed at construction; each Generate call owns its batch and cache, so
// concurrent calls on one Generator are safe as long as the Model itself
// holds no call-spanning state.
type Generator struct {
	model         Model
	tokenizer     Tokenizer
	bosID         int
	eosIDs        []int
	padID         int
	prepareInputs PrepareInputsFunc
	prompts       *promptCache
}

// GeneratorOption is a functional option for Generator
type GeneratorOption func(*Generator)

// WithBOSToken sets the beginning-of-sequence token id
func WithBOSToken(id int) GeneratorOption {
	return func(g *Generator) {
		g.bosID = id
	}
}

// WithEOSTokens sets the end-of-sequence token ids; the first is primary
func WithEOSTokens(ids ...int) GeneratorOption {
	return func(g *Generator) {
		g.eosIDs = append([]int(nil), ids...)
	}
}

// WithPadToken sets the padding token id
func WithPadToken(id int) GeneratorOption {
	return func(g *Generator) {
		g.padID = id
	}
}

// WithPrepareInputs overrides the step-input preparation hook
func WithPrepareInputs(fn PrepareInputsFunc) GeneratorOption {
	return func(g *Generator) {
		g.prepareInputs = fn
	}
}

// NewGenerator creates a generator. A missing pad token defaults to the
// primary EOS token when one is configured.
func NewGenerator(model Model, tokenizer Tokenizer, opts ...GeneratorOption) *Generator {
	g := &Generator{
		model:         model,
		tokenizer:     tokenizer,
		bosID:         -1,
		padID:         -1,
		prepareInputs: FullContextInputs,
		prompts:       newPromptCache(128),
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.padID < 0 && len(g.eosIDs) > 0 {
		g.padID = g.eosIDs[0]
	}

	return g
}

// Model returns the bound model capability
func (g *Generator) Model() Model {
	return g.model
}

// Tokenizer returns the bound tokenizer capability
func (g *Generator) Tokenizer() Tokenizer {
	return g.tokenizer
}

func (g *Generator) isEOS(tokenID int) bool {
	for _, eos := range g.eosIDs {
		if tokenID == eos {
			return true
		}
	}
	return false
}

// Generate produces token-id sequences for the prompt, one per requested
// return sequence. An empty prompt starts from the BOS token. The config
// is validated before any model invocation; a nil config uses defaults.
func (g *Generator) Generate(prompt string, cfg *GenerationConfig) ([][]int, error) {
	return g.generate(prompt, cfg, false)
}

// GenerateWithProgress is Generate with a step progress bar on stderr
func (g *Generator) GenerateWithProgress(prompt string, cfg *GenerationConfig) ([][]int, error) {
	return g.generate(prompt, cfg, true)
}

// GenerateText generates and decodes each returned sequence
func (g *Generator) GenerateText(prompt string, cfg *GenerationConfig) ([]string, error) {
	sequences, err := g.Generate(prompt, cfg)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(sequences))
	for i, seq := range sequences {
		text, err := g.tokenizer.Decode(seq)
		if err != nil {
			return nil, fmt.Errorf("failed to decode tokens: %w", err)
		}
		texts[i] = text
	}
	return texts, nil
}

// GenerateStream generates a single sequence, invoking fn for every
// selected token. Returning false from fn stops generation. Streaming is
// limited to single-sequence greedy or sampling decoding: beam search
// cannot commit tokens before the frontier settles.
func (g *Generator) GenerateStream(prompt string, cfg *GenerationConfig, fn func(tokenID int) bool) ([]int, error) {
	if cfg == nil {
		cfg = NewGenerationConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid generation config: %w", err)
	}
	if cfg.NumBeams > 1 || cfg.NumReturnSequences > 1 {
		return nil, fmt.Errorf("streaming supports a single beam and a single return sequence")
	}

	promptIDs, err := g.encodePrompt(prompt, cfg.MaxLength)
	if err != nil {
		return nil, err
	}

	batch := NewBatch(promptIDs, 1)
	if err := g.decode(batch, cfg, nil, fn); err != nil {
		return nil, err
	}
	return batch.Rows[0].Output(), nil
}

func (g *Generator) generate(prompt string, cfg *GenerationConfig, progress bool) ([][]int, error) {
	if cfg == nil {
		cfg = NewGenerationConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid generation config: %w", err)
	}

	promptIDs, err := g.encodePrompt(prompt, cfg.MaxLength)
	if err != nil {
		return nil, err
	}

	var bar *progressbar.ProgressBar
	if progress {
		bar = newStepBar(cfg.MaxLength - len(promptIDs))
		defer bar.Finish()
	}

	if cfg.NumBeams > 1 {
		return g.beamSearch(promptIDs, cfg, bar)
	}

	copies := 1
	if cfg.DoSample {
		copies = cfg.NumReturnSequences
	}
	batch := NewBatch(promptIDs, copies)

	if err := g.decode(batch, cfg, bar, nil); err != nil {
		return nil, err
	}
	return batch.Outputs(), nil
}

func newStepBar(steps int) *progressbar.ProgressBar {
	return progressbar.NewOptions(steps,
		progressbar.OptionSetDescription("Generating"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
