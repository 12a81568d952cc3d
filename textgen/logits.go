package textgen

import (
	"encoding/binary"
	"math"
	"math/rand"
	"sort"

	"github.com/cespare/xxhash/v2"
)

var negInf = float32(math.Inf(-1))

// applyRepetitionPenalty discourages tokens the row already emitted.
// A negative logit is multiplied by the penalty, a non-negative one divided,
// pushing either case toward lower probability. Each distinct token is
// penalized once, no matter how often it occurred.
func applyRepetitionPenalty(logits []float32, tokens []int, penalty float64) {
	seen := make(map[int]struct{}, len(tokens))
	for _, tok := range tokens {
		if tok < 0 || tok >= len(logits) {
			continue
		}
		if _, done := seen[tok]; done {
			continue
		}
		seen[tok] = struct{}{}

		if logits[tok] < 0 {
			logits[tok] *= float32(penalty)
		} else {
			logits[tok] /= float32(penalty)
		}
	}
}

// applyTemperature divides all logits by the temperature
func applyTemperature(logits []float32, temperature float64) {
	t := float32(temperature)
	for i := range logits {
		logits[i] /= t
	}
}

// hashNGram hashes a window of token ids
func hashNGram(tokens []int) uint64 {
	h := xxhash.New()
	buf := make([]byte, 4)
	for _, tok := range tokens {
		binary.LittleEndian.PutUint32(buf, uint32(tok))
		h.Write(buf)
	}
	return h.Sum64()
}

// blockRepeatedNGrams forbids completing any n-gram that already occurs in
// the row. The history is indexed by the hash of each (n-1)-token prefix;
// tokens that historically followed the row's trailing prefix get -Inf.
func blockRepeatedNGrams(logits []float32, tokens []int, n int) {
	if n <= 0 || len(tokens)+1 < n {
		return
	}

	followers := make(map[uint64][]int)
	for i := 0; i+n <= len(tokens); i++ {
		key := hashNGram(tokens[i : i+n-1])
		followers[key] = append(followers[key], tokens[i+n-1])
	}

	prefix := hashNGram(tokens[len(tokens)-(n-1):])
	for _, tok := range followers[prefix] {
		if tok >= 0 && tok < len(logits) {
			logits[tok] = negInf
		}
	}
}

// topKFilter keeps only the k highest logits, setting the rest to -Inf
func topKFilter(logits []float32, k int) {
	if k <= 0 || k >= len(logits) {
		return
	}

	sorted := make([]float32, len(logits))
	copy(sorted, logits)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	threshold := sorted[k-1]

	kept := 0
	for i, l := range logits {
		if l < threshold || kept >= k {
			logits[i] = negInf
		} else {
			kept++
		}
	}
}

// topPFilter keeps the smallest set of highest-probability tokens whose
// cumulative mass reaches p, setting the rest to -Inf. The top token always
// survives.
func topPFilter(logits []float32, p float64) {
	if p <= 0 || p >= 1 {
		return
	}

	type indexedProb struct {
		idx  int
		prob float32
	}

	probs := softmax(logits)
	indexed := make([]indexedProb, len(probs))
	for i, prob := range probs {
		indexed[i] = indexedProb{i, prob}
	}
	sort.Slice(indexed, func(i, j int) bool { return indexed[i].prob > indexed[j].prob })

	cumProb := float32(0)
	cutoff := len(indexed)
	for i, item := range indexed {
		cumProb += item.prob
		if cumProb >= float32(p) {
			cutoff = i + 1
			break
		}
	}

	for _, item := range indexed[cutoff:] {
		logits[item.idx] = negInf
	}
}

// softmax converts logits to probabilities
func softmax(logits []float32) []float32 {
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}

	probs := make([]float32, len(logits))
	sum := float32(0)
	for i, l := range logits {
		probs[i] = float32(math.Exp(float64(l - maxLogit)))
		sum += probs[i]
	}

	for i := range probs {
		probs[i] /= sum
	}

	return probs
}

// logSoftmax converts logits to log-probabilities
func logSoftmax(logits []float32) []float64 {
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}

	sum := 0.0
	for _, l := range logits {
		sum += math.Exp(float64(l - maxLogit))
	}
	logSum := math.Log(sum)

	out := make([]float64, len(logits))
	for i, l := range logits {
		out[i] = float64(l-maxLogit) - logSum
	}
	return out
}

// argmax returns the index of the highest logit
func argmax(logits []float32) int {
	best := 0
	for i := 1; i < len(logits); i++ {
		if logits[i] > logits[best] {
			best = i
		}
	}
	return best
}

// sampleMultinomial draws one index from a probability distribution
func sampleMultinomial(probs []float32) int {
	cumProbs := make([]float32, len(probs))
	cum := float32(0)
	for i, p := range probs {
		cum += p
		cumProbs[i] = cum
	}

	r := rand.Float32() * cum

	idx := sort.Search(len(cumProbs), func(i int) bool {
		return cumProbs[i] >= r
	})
	if idx >= len(probs) {
		idx = len(probs) - 1
	}
	return idx
}
