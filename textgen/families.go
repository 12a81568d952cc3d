package textgen

import "fmt"

// EndOfTextToken is the GPT-2 special token serving as BOS, EOS and PAD
const EndOfTextToken = "<|endoftext|>"

// GPT2Generator is the façade for GPT-2 style models. BOS and EOS both
// resolve to <|endoftext|>, and once a cache exists only the newest token
// is fed back, since the GPT-2 cache already encodes all prior context.
type GPT2Generator struct {
	*Generator
}

// NewGPT2Generator resolves the GPT-2 special tokens from the tokenizer
// and binds them to the generation engine.
func NewGPT2Generator(model Model, tokenizer Tokenizer) (*GPT2Generator, error) {
	eot, ok := tokenizer.TokenID(EndOfTextToken)
	if !ok {
		return nil, fmt.Errorf("tokenizer has no %s token", EndOfTextToken)
	}

	g := NewGenerator(model, tokenizer,
		WithBOSToken(eot),
		WithEOSTokens(eot),
		WithPrepareInputs(LastTokenInputs),
	)
	return &GPT2Generator{Generator: g}, nil
}

// OpenAIGPTGenerator is the façade for original-GPT style models. The
// vocabulary has no BOS, EOS or PAD tokens, so generation requires a prompt
// and always runs to the configured maximum length, feeding the full
// context each step.
type OpenAIGPTGenerator struct {
	*Generator
}

// NewOpenAIGPTGenerator binds an original-GPT model to the engine
func NewOpenAIGPTGenerator(model Model, tokenizer Tokenizer) *OpenAIGPTGenerator {
	return &OpenAIGPTGenerator{Generator: NewGenerator(model, tokenizer)}
}
