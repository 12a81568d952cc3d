package textgen

// Batch is the effective batch owned by one Generate call: the prompt row
// replicated across return sequences and beams, each copy independent.
type Batch struct {
	Rows []*Row
}

// NewBatch replicates one prompt row into the given number of independent
// copies. Each copy owns its token and mask storage so per-row mutation
// never aliases a sibling.
func NewBatch(promptIDs []int, copies int) *Batch {
	rows := make([]*Row, copies)
	for i := range rows {
		rows[i] = NewRow(promptIDs)
	}
	return &Batch{Rows: rows}
}

// AllFinished returns true when every row has stopped generating
func (b *Batch) AllFinished() bool {
	for _, row := range b.Rows {
		if !row.IsFinished() {
			return false
		}
	}
	return true
}

// InputIDs returns the current token ids of every row
func (b *Batch) InputIDs() [][]int {
	ids := make([][]int, len(b.Rows))
	for i, row := range b.Rows {
		ids[i] = row.TokenIDs
	}
	return ids
}

// Masks returns the current attention mask of every row
func (b *Batch) Masks() [][]int {
	masks := make([][]int, len(b.Rows))
	for i, row := range b.Rows {
		masks[i] = row.Mask
	}
	return masks
}

// Outputs returns every row's tokens trimmed to its recorded length
func (b *Batch) Outputs() [][]int {
	out := make([][]int, len(b.Rows))
	for i, row := range b.Rows {
		out[i] = row.Output()
	}
	return out
}
