package textgen

// RowStatus represents the status of a row
type RowStatus int

const (
	RowRunning RowStatus = iota
	RowFinished
)

// Row is one independently tracked sequence within the effective batch.
// The attention mask grows in lockstep with the token ids: 1 for a real
// token, 0 for pad positions appended after the row finished.
type Row struct {
	TokenIDs        []int
	Mask            []int
	Status          RowStatus
	Length          int // set once, at the transition to RowFinished
	NumPromptTokens int
}

// NewRow creates a row from prompt token IDs.
// The ids are copied so rows never alias each other.
func NewRow(tokenIDs []int) *Row {
	tokens := make([]int, len(tokenIDs))
	copy(tokens, tokenIDs)

	mask := make([]int, len(tokenIDs))
	for i := range mask {
		mask[i] = 1
	}

	return &Row{
		TokenIDs:        tokens,
		Mask:            mask,
		Status:          RowRunning,
		NumPromptTokens: len(tokenIDs),
	}
}

// Len returns the number of tokens in the row
func (r *Row) Len() int {
	return len(r.TokenIDs)
}

// IsFinished returns true if the row has stopped generating
func (r *Row) IsFinished() bool {
	return r.Status == RowFinished
}

// LastToken returns the most recently appended token
func (r *Row) LastToken() int {
	return r.TokenIDs[len(r.TokenIDs)-1]
}

// AppendToken appends a token with its mask bit
func (r *Row) AppendToken(tokenID, maskBit int) {
	r.TokenIDs = append(r.TokenIDs, tokenID)
	r.Mask = append(r.Mask, maskBit)
}

// Finish transitions the row to RowFinished and records its length.
// A second call has no effect.
func (r *Row) Finish(length int) {
	if r.Status == RowFinished {
		return
	}
	r.Status = RowFinished
	r.Length = length
}

// Clone returns a deep copy of the row
func (r *Row) Clone() *Row {
	tokens := make([]int, len(r.TokenIDs))
	copy(tokens, r.TokenIDs)
	mask := make([]int, len(r.Mask))
	copy(mask, r.Mask)

	return &Row{
		TokenIDs:        tokens,
		Mask:            mask,
		Status:          r.Status,
		Length:          r.Length,
		NumPromptTokens: r.NumPromptTokens,
	}
}

// CompletionTokenIDs returns the tokens generated after the prompt
func (r *Row) CompletionTokenIDs() []int {
	return r.TokenIDs[r.NumPromptTokens:]
}

// Output returns the row's tokens trimmed to its recorded length.
// Pad tokens appended after the finish transition are excluded.
func (r *Row) Output() []int {
	if r.Status == RowFinished && r.Length <= len(r.TokenIDs) {
		return r.TokenIDs[:r.Length]
	}
	return r.TokenIDs
}
