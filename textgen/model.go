package textgen

// Cache is the opaque past-activation state a model carries between steps.
// The decoding loop threads it from one Forward call to the next and never
// inspects it; nil means no past. Each Forward call logically consumes the
// cache it is given and returns the replacement.
type Cache any

// Model is an interface for a forward-step capability.
// This can be implemented using various backends:
// - ONNX Runtime sessions
// - CGo bindings to PyTorch
// - HTTP/gRPC calls to inference servers
// - Pure Go transformer implementations
type Model interface {
	// Forward runs one model step over a batch of rows and returns, per row,
	// the logits for the last input position, plus the updated cache.
	// A nil cache must be accepted (full-context first call).
	Forward(inputIDs [][]int, attentionMask [][]int, past Cache) ([][]float32, Cache, error)

	// VocabSize returns the size of the output distribution
	VocabSize() int

	// Close cleans up resources
	Close() error
}

// MockModel is a deterministic in-memory model for demonstration and tests.
// Greedy decoding walks the vocabulary (each token is followed by its
// successor) until the sequence is long enough to emit EOS.
type MockModel struct {
	vocabSize int
	eosID     int
	eosAfter  int
}

type mockCache struct {
	seqLen int
}

// NewMockModel creates a mock model. eosID < 0 disables EOS emission;
// otherwise EOS dominates the distribution once a row reaches eosAfter tokens.
func NewMockModel(vocabSize, eosID, eosAfter int) *MockModel {
	return &MockModel{
		vocabSize: vocabSize,
		eosID:     eosID,
		eosAfter:  eosAfter,
	}
}

// Forward generates deterministic logits for each row
func (m *MockModel) Forward(inputIDs [][]int, attentionMask [][]int, past Cache) ([][]float32, Cache, error) {
	seen := 0
	if c, ok := past.(*mockCache); ok {
		seen = c.seqLen
	}
	total := seen + len(inputIDs[0])

	logits := make([][]float32, len(inputIDs))
	for i, row := range inputIDs {
		last := row[len(row)-1]
		l := make([]float32, m.vocabSize)
		for v := range l {
			l[v] = float32((last*31+v*17)%101) / 100
		}
		l[(last+1)%m.vocabSize] = 4
		if m.eosID >= 0 && total >= m.eosAfter {
			l[m.eosID] = 8
		}
		logits[i] = l
	}

	return logits, &mockCache{seqLen: total}, nil
}

// VocabSize returns the vocabulary size
func (m *MockModel) VocabSize() int {
	return m.vocabSize
}

// Close cleans up resources
func (m *MockModel) Close() error {
	return nil
}
