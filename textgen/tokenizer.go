package textgen

// Tokenizer is an interface for a vocabulary capability.
// This should be implemented using actual tokenizers like:
// - BPE (Byte Pair Encoding)
// - SentencePiece
// - Hugging Face tokenizers via CGo
type Tokenizer interface {
	// Encode converts text to token IDs
	Encode(text string) ([]int, error)

	// Decode converts token IDs to text
	Decode(tokenIDs []int) (string, error)

	// TokenID looks up the ID of a single (usually special) token
	TokenID(token string) (int, bool)

	// VocabSize returns the vocabulary size
	VocabSize() int
}

// MockTokenizer is a simple byte-level tokenizer for demonstration and tests
type MockTokenizer struct {
	vocabSize int
	special   map[string]int
}

// NewMockTokenizer creates a mock tokenizer. Special tokens map names
// (e.g. "<|endoftext|>") to reserved ids.
func NewMockTokenizer(vocabSize int, special map[string]int) *MockTokenizer {
	return &MockTokenizer{
		vocabSize: vocabSize,
		special:   special,
	}
}

// Encode performs byte-level tokenization
func (t *MockTokenizer) Encode(text string) ([]int, error) {
	tokens := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		tokens[i] = int(text[i]) % t.vocabSize
	}
	return tokens, nil
}

// Decode converts token IDs back to text, skipping special tokens
func (t *MockTokenizer) Decode(tokenIDs []int) (string, error) {
	buf := make([]byte, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if t.isSpecial(id) {
			continue
		}
		buf = append(buf, byte(id))
	}
	return string(buf), nil
}

// TokenID looks up a special token id
func (t *MockTokenizer) TokenID(token string) (int, bool) {
	id, ok := t.special[token]
	return id, ok
}

// VocabSize returns the vocabulary size
func (t *MockTokenizer) VocabSize() int {
	return t.vocabSize
}

func (t *MockTokenizer) isSpecial(id int) bool {
	for _, sid := range t.special {
		if id == sid {
			return true
		}
	}
	return false
}
