package textgen

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/schollz/progressbar/v3"
)

// beamHypothesis is one retired candidate sequence with its
// length-penalty-adjusted score.
type beamHypothesis struct {
	tokens []int
	score  float64
}

// beamHypotheses is the bounded best-set of retired hypotheses for one
// logical input.
type beamHypotheses struct {
	numBeams      int
	lengthPenalty float64
	earlyStopping bool
	hyps          []beamHypothesis
	worstScore    float64
}

func newBeamHypotheses(numBeams int, lengthPenalty float64, earlyStopping bool) *beamHypotheses {
	return &beamHypotheses{
		numBeams:      numBeams,
		lengthPenalty: lengthPenalty,
		earlyStopping: earlyStopping,
		worstScore:    math.Inf(1),
	}
}

// add retires a sequence into the best-set if it beats the current worst
func (h *beamHypotheses) add(tokens []int, sumLogProbs float64) {
	score := sumLogProbs / math.Pow(float64(len(tokens)), h.lengthPenalty)
	if len(h.hyps) >= h.numBeams && score <= h.worstScore {
		return
	}

	stored := make([]int, len(tokens))
	copy(stored, tokens)
	h.hyps = append(h.hyps, beamHypothesis{tokens: stored, score: score})

	if len(h.hyps) > h.numBeams {
		worst := 0
		for i, hyp := range h.hyps {
			if hyp.score < h.hyps[worst].score {
				worst = i
			}
		}
		h.hyps = append(h.hyps[:worst], h.hyps[worst+1:]...)
	}

	h.worstScore = math.Inf(1)
	for _, hyp := range h.hyps {
		if hyp.score < h.worstScore {
			h.worstScore = hyp.score
		}
	}
}

// isDone reports whether no live beam can still improve on the best-set.
// With early stopping, a full best-set is enough.
func (h *beamHypotheses) isDone(bestSumLogProbs float64, curLen int) bool {
	if len(h.hyps) < h.numBeams {
		return false
	}
	if h.earlyStopping {
		return true
	}
	return h.worstScore >= bestSumLogProbs/math.Pow(float64(curLen), h.lengthPenalty)
}

// best returns the n highest-scored hypotheses, ties kept in retirement order
func (h *beamHypotheses) best(n int) [][]int {
	sorted := make([]beamHypothesis, len(h.hyps))
	copy(sorted, h.hyps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].score > sorted[j].score })

	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([][]int, n)
	for i := 0; i < n; i++ {
		out[i] = sorted[i].tokens
	}
	return out
}

// beamCandidate is one (beam, token) continuation with its cumulative score
type beamCandidate struct {
	beam  int
	token int
	score float64
}

// beamSearch maintains numBeams live hypotheses per logical input and keeps
// the globally best continuations each step. When sampling, each return
// sequence gets its own beam group; otherwise a single group yields the top
// NumReturnSequences hypotheses.
func (g *Generator) beamSearch(promptIDs []int, cfg *GenerationConfig, bar *progressbar.ProgressBar) ([][]int, error) {
	numBeams := cfg.NumBeams
	groups := 1
	if cfg.DoSample {
		groups = cfg.NumReturnSequences
	}

	batch := NewBatch(promptIDs, groups*numBeams)

	hyps := make([]*beamHypotheses, groups)
	done := make([]bool, groups)
	for i := range hyps {
		hyps[i] = newBeamHypotheses(numBeams, cfg.LengthPenalty, cfg.EarlyStopping)
	}

	beamScores := make([]float64, groups*numBeams)
	if !cfg.DoSample {
		// only the first beam of each group starts live, or every beam
		// would replay the identical best path
		for i := range beamScores {
			if i%numBeams != 0 {
				beamScores[i] = -1e9
			}
		}
	}

	curLen := len(promptIDs)
	for curLen < cfg.MaxLength {
		// Full context every step: the opaque cache cannot be reordered
		// when the beam permutation changes.
		logits, _, err := g.model.Forward(batch.InputIDs(), batch.Masks(), nil)
		if err != nil {
			return nil, fmt.Errorf("model step failed: %w", err)
		}
		if len(logits) != len(batch.Rows) {
			return nil, fmt.Errorf("model returned %d logit rows for %d sequences", len(logits), len(batch.Rows))
		}

		for gi := 0; gi < groups; gi++ {
			base := gi * numBeams

			if done[gi] {
				for b := 0; b < numBeams; b++ {
					batch.Rows[base+b].AppendToken(g.padID, 0)
				}
				continue
			}

			scores := make([][]float64, numBeams)
			for b := 0; b < numBeams; b++ {
				scores[b] = g.beamStepScores(logits[base+b], batch.Rows[base+b], cfg, curLen, beamScores[base+b])
			}

			candidates := selectBeamCandidates(scores, 2*numBeams, cfg.DoSample)

			nextTokens := make([]int, 0, numBeams)
			nextBeams := make([]int, 0, numBeams)
			nextScores := make([]float64, 0, numBeams)
			for rank, cand := range candidates {
				if g.isEOS(cand.token) {
					// only a top-numBeams continuation may retire its beam
					if rank >= numBeams {
						continue
					}
					finished := append(append([]int(nil), batch.Rows[base+cand.beam].TokenIDs...), cand.token)
					hyps[gi].add(finished, cand.score)
					continue
				}
				nextTokens = append(nextTokens, cand.token)
				nextBeams = append(nextBeams, cand.beam)
				nextScores = append(nextScores, cand.score)
				if len(nextTokens) == numBeams {
					break
				}
			}
			if len(nextTokens) < numBeams {
				return nil, fmt.Errorf("beam search ran out of continuations")
			}

			done[gi] = hyps[gi].isDone(candidates[0].score, curLen+1)

			// reorder the group's rows to the surviving beams
			newRows := make([]*Row, numBeams)
			for b := 0; b < numBeams; b++ {
				row := batch.Rows[base+nextBeams[b]].Clone()
				row.AppendToken(nextTokens[b], 1)
				newRows[b] = row
				beamScores[base+b] = nextScores[b]
			}
			copy(batch.Rows[base:base+numBeams], newRows)
		}

		everyDone := true
		for _, d := range done {
			if !d {
				everyDone = false
				break
			}
		}
		if everyDone {
			break
		}

		curLen++
		if bar != nil {
			bar.Add(1)
		}
	}

	// live beams of unfinished groups compete for the final best-set
	for gi := 0; gi < groups; gi++ {
		if done[gi] {
			continue
		}
		base := gi * numBeams
		for b := 0; b < numBeams; b++ {
			hyps[gi].add(batch.Rows[base+b].TokenIDs, beamScores[base+b])
		}
	}

	perGroup := 1
	if groups == 1 {
		perGroup = cfg.NumReturnSequences
	}

	out := make([][]int, 0, groups*perGroup)
	for gi := 0; gi < groups; gi++ {
		out = append(out, hyps[gi].best(perGroup)...)
	}
	return out, nil
}

// beamStepScores runs the penalty and filtering stages on one beam row's
// logits and returns cumulative candidate scores over the vocabulary.
func (g *Generator) beamStepScores(stepLogits []float32, row *Row, cfg *GenerationConfig, curLen int, beamScore float64) []float64 {
	logits := make([]float32, len(stepLogits))
	copy(logits, stepLogits)

	if cfg.RepetitionPenalty > 1 {
		applyRepetitionPenalty(logits, row.TokenIDs, cfg.RepetitionPenalty)
	}
	if cfg.DoSample && cfg.Temperature != 1 {
		applyTemperature(logits, cfg.Temperature)
	}
	if cfg.NoRepeatNGramSize > 0 {
		blockRepeatedNGrams(logits, row.TokenIDs, cfg.NoRepeatNGramSize)
	}
	if cfg.DoSample {
		if cfg.TopK > 0 {
			topKFilter(logits, cfg.TopK)
		}
		if cfg.TopP > 0 && cfg.TopP < 1 {
			topPFilter(logits, cfg.TopP)
		}
	}
	if curLen+1 < cfg.MinLength {
		for _, eos := range g.eosIDs {
			if eos >= 0 && eos < len(logits) {
				logits[eos] = negInf
			}
		}
	}

	logProbs := logSoftmax(logits)
	scores := make([]float64, len(logProbs))
	for v, lp := range logProbs {
		scores[v] = lp + beamScore
	}
	return scores
}

// selectBeamCandidates picks n continuations from the flattened beam×vocab
// score table: the n best when decoding deterministically, n distinct
// multinomial draws when sampling. The result is ordered by score, ties
// stable by beam then token index.
func selectBeamCandidates(scores [][]float64, n int, sample bool) []beamCandidate {
	flat := make([]beamCandidate, 0, len(scores)*len(scores[0]))
	for b, row := range scores {
		for v, s := range row {
			flat = append(flat, beamCandidate{beam: b, token: v, score: s})
		}
	}

	if sample {
		flat = sampleCandidates(flat, n)
	}

	sort.SliceStable(flat, func(i, j int) bool { return flat[i].score > flat[j].score })
	if len(flat) > n {
		flat = flat[:n]
	}
	return flat
}

// sampleCandidates draws n candidates without replacement, weighted by the
// softmax of their scores.
func sampleCandidates(flat []beamCandidate, n int) []beamCandidate {
	maxScore := math.Inf(-1)
	for _, c := range flat {
		if c.score > maxScore {
			maxScore = c.score
		}
	}

	weights := make([]float64, len(flat))
	total := 0.0
	for i, c := range flat {
		weights[i] = math.Exp(c.score - maxScore)
		total += weights[i]
	}

	picked := make([]beamCandidate, 0, n)
	for len(picked) < n && total > 0 {
		r := rand.Float64() * total
		idx := -1
		for i, w := range weights {
			if w == 0 {
				continue
			}
			r -= w
			idx = i
			if r <= 0 {
				break
			}
		}
		if idx < 0 {
			break
		}
		picked = append(picked, flat[idx])
		total -= weights[idx]
		weights[idx] = 0
	}
	return picked
}
