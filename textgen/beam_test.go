package textgen

import (
	"reflect"
	"testing"
)

func TestBeamHypothesesBounded(t *testing.T) {
	hyps := newBeamHypotheses(2, 1.0, false)

	hyps.add([]int{1}, -4.0)
	hyps.add([]int{2}, -1.0)
	hyps.add([]int{3}, -2.0)

	if len(hyps.hyps) != 2 {
		t.Fatalf("Expected best-set bounded at 2, got %d", len(hyps.hyps))
	}
	for _, hyp := range hyps.hyps {
		if hyp.tokens[0] == 1 {
			t.Errorf("Worst hypothesis should have been dropped")
		}
	}

	best := hyps.best(2)
	if best[0][0] != 2 || best[1][0] != 3 {
		t.Errorf("Expected hypotheses ordered by score, got %v", best)
	}
}

func TestBeamHypothesesLengthPenalty(t *testing.T) {
	hyps := newBeamHypotheses(1, 2.0, false)

	// same sum of log probs, the longer sequence wins under penalty > 1
	hyps.add([]int{1, 1}, -4.0)
	hyps.add([]int{2, 2, 2, 2}, -4.0)

	if hyps.hyps[0].tokens[0] != 2 {
		t.Errorf("Expected the longer hypothesis to score higher, got %v", hyps.hyps)
	}
}

func TestBeamHypothesesIsDone(t *testing.T) {
	hyps := newBeamHypotheses(2, 1.0, true)

	if hyps.isDone(-1.0, 4) {
		t.Errorf("Best-set below capacity must not be done")
	}
	hyps.add([]int{1, 2}, -2.0)
	hyps.add([]int{1, 3}, -3.0)
	if !hyps.isDone(-1.0, 4) {
		t.Errorf("Early stopping must finish once the best-set is full")
	}

	noStop := newBeamHypotheses(1, 1.0, false)
	noStop.add([]int{1, 2, 3, 4}, -4.0) // score -1
	if noStop.isDone(-10.0, 5) {
		t.Errorf("A live beam that can still win must keep the search open")
	}
	if !noStop.isDone(-100.0, 5) {
		t.Errorf("Search must close when no live beam can beat the worst hypothesis")
	}
}

func TestSelectBeamCandidatesDeterministic(t *testing.T) {
	scores := [][]float64{
		{-1.0, -5.0, -3.0},
		{-2.0, -4.0, -1.0},
	}
	cands := selectBeamCandidates(scores, 4, false)

	if len(cands) != 4 {
		t.Fatalf("Expected 4 candidates, got %d", len(cands))
	}
	// two -1.0 ties: stable order keeps beam 0 first
	if cands[0].beam != 0 || cands[0].token != 0 {
		t.Errorf("Expected tie broken toward the earlier beam, got %+v", cands[0])
	}
	if cands[1].beam != 1 || cands[1].token != 2 {
		t.Errorf("Expected the later tied candidate second, got %+v", cands[1])
	}
	for i := 1; i < len(cands); i++ {
		if cands[i].score > cands[i-1].score {
			t.Errorf("Candidates out of order at %d", i)
		}
	}
}

func TestSampleCandidatesDistinct(t *testing.T) {
	flat := []beamCandidate{
		{beam: 0, token: 0, score: 0},
		{beam: 0, token: 1, score: -1},
		{beam: 0, token: 2, score: -2},
	}
	picked := sampleCandidates(flat, 3)

	if len(picked) != 3 {
		t.Fatalf("Expected 3 draws, got %d", len(picked))
	}
	seen := make(map[int]bool)
	for _, c := range picked {
		if seen[c.token] {
			t.Errorf("Candidate drawn twice: %+v", c)
		}
		seen[c.token] = true
	}
}

func TestBeamSearchGreedy(t *testing.T) {
	cfg := NewGenerationConfig(
		WithMaxLength(12),
		WithNumBeams(3),
		WithNumReturnSequences(2),
	)

	run := func() [][]int {
		gen := newTestGenerator(NewMockModel(32, 7, 6), WithEOSTokens(7))
		seqs, err := gen.Generate("ab", cfg)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		return seqs
	}

	first := run()
	if len(first) != 2 {
		t.Fatalf("Expected 2 sequences, got %d", len(first))
	}
	for _, seq := range first {
		if len(seq) > 12 {
			t.Errorf("Sequence exceeds max length: %v", seq)
		}
		if seq[0] != 1 || seq[1] != 2 {
			t.Errorf("Sequence does not start with the prompt: %v", seq)
		}
	}

	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Deterministic beam search must be repeatable")
	}
}

func TestBeamSearchRespectsMinLength(t *testing.T) {
	gen := newTestGenerator(&eosModel{vocab: 10, eos: 3}, WithEOSTokens(3))

	cfg := NewGenerationConfig(
		WithMaxLength(12),
		WithMinLength(5),
		WithNumBeams(2),
	)
	seqs, err := gen.Generate("ab", cfg)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	for _, seq := range seqs {
		for i, tok := range seq {
			if tok == 3 && i+1 < 5 {
				t.Errorf("EOS at position %d violates min length in %v", i, seq)
			}
		}
	}
}

func TestBeamSearchEarlyStopping(t *testing.T) {
	gen := newTestGenerator(&eosModel{vocab: 10, eos: 3}, WithEOSTokens(3))

	cfg := NewGenerationConfig(
		WithMaxLength(30),
		WithNumBeams(2),
		WithEarlyStopping(true),
	)
	seqs, err := gen.Generate("ab", cfg)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(seqs) != 1 {
		t.Fatalf("Expected one sequence, got %d", len(seqs))
	}
	if len(seqs[0]) >= 30 {
		t.Errorf("Early stopping should finish well before max length, got %d tokens", len(seqs[0]))
	}
}

func TestBeamSearchWithLengthPenalty(t *testing.T) {
	gen := newTestGenerator(NewMockModel(16, 5, 4), WithEOSTokens(5))

	cfg := NewGenerationConfig(WithMaxLength(10), WithNumBeams(2), WithLengthPenalty(1.5))
	seqs, err := gen.Generate("a", cfg)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(seqs) != 1 {
		t.Fatalf("Expected one sequence, got %d", len(seqs))
	}
	if seqs[0][0] != 97%16 {
		t.Errorf("Sequence does not start with the prompt token: %v", seqs[0])
	}
	if len(seqs[0]) > 10 {
		t.Errorf("Sequence exceeds max length: %v", seqs[0])
	}
}
