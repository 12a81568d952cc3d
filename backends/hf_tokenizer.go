package backends

import (
	"fmt"

	"github.com/daulet/tokenizers"
)

// HFTokenizer wraps a HuggingFace tokenizer.json through the tokenizers
// binding. It implements textgen.Tokenizer.
type HFTokenizer struct {
	tk *tokenizers.Tokenizer
}

// NewHFTokenizer loads a tokenizer.json file
func NewHFTokenizer(path string) (*HFTokenizer, error) {
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	return &HFTokenizer{tk: tk}, nil
}

// Encode converts text to token IDs
func (t *HFTokenizer) Encode(text string) ([]int, error) {
	ids, _ := t.tk.Encode(text, false)
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out, nil
}

// Decode converts token IDs to text, dropping special tokens
func (t *HFTokenizer) Decode(tokenIDs []int) (string, error) {
	ids := make([]uint32, len(tokenIDs))
	for i, id := range tokenIDs {
		ids[i] = uint32(id)
	}
	return t.tk.Decode(ids, true), nil
}

// TokenID resolves a token by encoding it with special tokens enabled.
// Only strings that encode to a single id resolve.
func (t *HFTokenizer) TokenID(token string) (int, bool) {
	ids, _ := t.tk.Encode(token, true)
	if len(ids) != 1 {
		return 0, false
	}
	return int(ids[0]), true
}

// VocabSize returns the vocabulary size
func (t *HFTokenizer) VocabSize() int {
	return int(t.tk.VocabSize())
}

// Close releases the underlying native tokenizer
func (t *HFTokenizer) Close() error {
	return t.tk.Close()
}
