package textgen

import "testing"

func TestRowCreation(t *testing.T) {
	seq := NewRow([]int{1, 2, 3, 4, 5})

	if seq.Len() != 5 {
		t.Errorf("Expected length 5, got %d", seq.Len())
	}
	if seq.NumPromptTokens != 5 {
		t.Errorf("Expected 5 prompt tokens, got %d", seq.NumPromptTokens)
	}
	if seq.Status != RowRunning {
		t.Errorf("Expected status RUNNING, got %v", seq.Status)
	}
	if len(seq.Mask) != 5 {
		t.Errorf("Expected mask length 5, got %d", len(seq.Mask))
	}
	for _, bit := range seq.Mask {
		if bit != 1 {
			t.Errorf("Expected all-ones prompt mask, got %v", seq.Mask)
		}
	}
}

func TestRowAppendToken(t *testing.T) {
	seq := NewRow([]int{1, 2, 3})

	seq.AppendToken(4, 1)
	seq.AppendToken(0, 0)

	if seq.Len() != 5 {
		t.Errorf("Expected length 5, got %d", seq.Len())
	}
	if seq.LastToken() != 0 {
		t.Errorf("Expected last token 0, got %d", seq.LastToken())
	}
	if len(seq.Mask) != seq.Len() {
		t.Errorf("Mask out of sync: %d tokens, %d mask bits", seq.Len(), len(seq.Mask))
	}
	if seq.Mask[3] != 1 || seq.Mask[4] != 0 {
		t.Errorf("Expected mask bits [1 0] for appends, got %v", seq.Mask[3:])
	}
	if got := seq.CompletionTokenIDs(); len(got) != 2 {
		t.Errorf("Expected 2 completion tokens, got %v", got)
	}
}

func TestRowFinish(t *testing.T) {
	seq := NewRow([]int{1, 2})
	seq.AppendToken(9, 1)
	seq.Finish(3)

	if !seq.IsFinished() {
		t.Errorf("Expected row finished")
	}
	if seq.Length != 3 {
		t.Errorf("Expected recorded length 3, got %d", seq.Length)
	}

	// later pad appends are trimmed from the output
	seq.AppendToken(0, 0)
	seq.Finish(4)

	if seq.Length != 3 {
		t.Errorf("Finish must record length only once, got %d", seq.Length)
	}
	if got := seq.Output(); len(got) != 3 {
		t.Errorf("Expected output trimmed to 3 tokens, got %v", got)
	}
}

func TestRowCloneIndependence(t *testing.T) {
	seq := NewRow([]int{1, 2})
	clone := seq.Clone()
	clone.AppendToken(7, 1)

	if seq.Len() != 2 {
		t.Errorf("Clone mutation leaked into the source row")
	}
	if clone.Len() != 3 || clone.LastToken() != 7 {
		t.Errorf("Clone did not record its own append")
	}
}

func TestBatchExpansion(t *testing.T) {
	batch := NewBatch([]int{5, 6}, 3)

	if len(batch.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(batch.Rows))
	}

	batch.Rows[0].AppendToken(9, 1)
	if batch.Rows[1].Len() != 2 || batch.Rows[2].Len() != 2 {
		t.Errorf("Row mutation aliased a sibling row")
	}

	ids := batch.InputIDs()
	masks := batch.Masks()
	for i := range ids {
		if len(ids[i]) != len(masks[i]) {
			t.Errorf("Row %d: ids and mask out of sync", i)
		}
	}
}

func TestBatchAllFinished(t *testing.T) {
	batch := NewBatch([]int{1}, 2)

	if batch.AllFinished() {
		t.Errorf("Fresh batch must not be finished")
	}
	batch.Rows[0].Finish(1)
	if batch.AllFinished() {
		t.Errorf("Batch with a running row must not be finished")
	}
	batch.Rows[1].Finish(1)
	if !batch.AllFinished() {
		t.Errorf("Batch with all rows finished must report finished")
	}
}
