package textgen

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
)

// decode runs the greedy/sampling step loop over the batch until every row
// finished or the batch reached the configured maximum length. The past
// cache is threaded from step to step; a model call failure aborts the
// whole call since mid-step decoding state cannot be replayed.
func (g *Generator) decode(batch *Batch, cfg *GenerationConfig, bar *progressbar.ProgressBar, stream func(int) bool) error {
	var past Cache
	curLen := batch.Rows[0].Len()

	for curLen < cfg.MaxLength && !batch.AllFinished() {
		inputs := g.prepareInputs(batch.InputIDs(), batch.Masks(), past)

		logits, newPast, err := g.model.Forward(inputs, batch.Masks(), past)
		if err != nil {
			return fmt.Errorf("model step failed: %w", err)
		}
		if len(logits) != len(batch.Rows) {
			return fmt.Errorf("model returned %d logit rows for %d sequences", len(logits), len(batch.Rows))
		}
		past = newPast

		for i, row := range batch.Rows {
			if row.IsFinished() {
				row.AppendToken(g.padID, 0)
				continue
			}

			next := g.selectToken(logits[i], row, cfg, curLen)

			if g.isEOS(next) && curLen+1 >= cfg.MinLength {
				row.Finish(curLen + 1)
			}
			row.AppendToken(next, 1)

			if stream != nil && !stream(next) {
				row.Finish(curLen + 1)
			}
		}

		curLen++
		if bar != nil {
			bar.Add(1)
		}
	}

	// Rows still running at max length are force-finished at full length
	for _, row := range batch.Rows {
		if !row.IsFinished() {
			row.Finish(row.Len())
		}
	}
	return nil
}

// selectToken applies the penalty and filtering stages to one row's step
// logits and picks the next token. The stages compose in a fixed order:
// repetition penalty, temperature, n-gram blocking, top-k, top-p.
func (g *Generator) selectToken(stepLogits []float32, row *Row, cfg *GenerationConfig, curLen int) int {
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

	// EOS stays unreachable until the row may legally finish
	if curLen+1 < cfg.MinLength {
		for _, eos := range g.eosIDs {
			if eos >= 0 && eos < len(logits) {
				logits[eos] = negInf
			}
		}
	}

	if cfg.DoSample {
		return sampleMultinomial(softmax(logits))
	}
	return argmax(logits)
}
