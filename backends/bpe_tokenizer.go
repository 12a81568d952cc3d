// Package backends provides concrete Model and Tokenizer capabilities for
// the generation engine.
package backends

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// BPETokenizer is a pure-Go GPT-2 byte-pair tokenizer loaded from
// vocab.json and merges.txt. It implements textgen.Tokenizer.
type BPETokenizer struct {
	encoder     map[string]int
	decoder     map[int]string
	bpeRanks    map[string]int
	byteEncoder map[byte]rune
	byteDecoder map[rune]byte
	pattern     *regexp.Regexp
}

// NewBPETokenizer loads a GPT-2 tokenizer from a directory containing
// vocab.json and merges.txt
func NewBPETokenizer(dir string) (*BPETokenizer, error) {
	t := &BPETokenizer{
		encoder:     make(map[string]int),
		decoder:     make(map[int]string),
		bpeRanks:    make(map[string]int),
		byteEncoder: buildByteEncoder(),
		byteDecoder: make(map[rune]byte),
	}
	for b, r := range t.byteEncoder {
		t.byteDecoder[r] = b
	}

	data, err := os.ReadFile(filepath.Join(dir, "vocab.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read vocab: %w", err)
	}
	if err := json.Unmarshal(data, &t.encoder); err != nil {
		return nil, fmt.Errorf("failed to parse vocab: %w", err)
	}
	for token, id := range t.encoder {
		t.decoder[id] = token
	}

	if err := t.loadMerges(filepath.Join(dir, "merges.txt")); err != nil {
		return nil, fmt.Errorf("failed to load merges: %w", err)
	}

	// GPT-2 split pattern, simplified for Go's RE2
	t.pattern = regexp.MustCompile(`'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`)

	return t, nil
}

// buildByteEncoder creates GPT-2's byte-to-unicode mapping so every byte is
// representable as a printable rune
func buildByteEncoder() map[byte]rune {
	encoder := make(map[byte]rune)

	for b := byte('!'); b <= byte('~'); b++ {
		encoder[b] = rune(b)
	}
	for b := int('¡'); b <= int('¬'); b++ {
		encoder[byte(b)] = rune(b)
	}
	for b := int('®'); b <= int('ÿ'); b++ {
		encoder[byte(b)] = rune(b)
	}

	n := 0
	for b := 0; b < 256; b++ {
		if _, ok := encoder[byte(b)]; !ok {
			encoder[byte(b)] = rune(256 + n)
			n++
		}
	}

	return encoder
}

func (t *BPETokenizer) loadMerges(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	rank := 0
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			first = false
			if strings.HasPrefix(line, "#") {
				continue
			}
		}
		if line == "" {
			continue
		}
		t.bpeRanks[line] = rank
		rank++
	}
	return scanner.Err()
}

// Encode converts text to token IDs
func (t *BPETokenizer) Encode(text string) ([]int, error) {
	var tokenIDs []int

	for _, piece := range t.pattern.FindAllString(text, -1) {
		var mapped strings.Builder
		for _, b := range []byte(piece) {
			mapped.WriteRune(t.byteEncoder[b])
		}

		for _, merged := range strings.Split(t.bpe(mapped.String()), " ") {
			id, ok := t.encoder[merged]
			if !ok {
				return nil, fmt.Errorf("token %q not in vocabulary", merged)
			}
			tokenIDs = append(tokenIDs, id)
		}
	}

	return tokenIDs, nil
}

// bpe applies the merge rules to one pre-split word
func (t *BPETokenizer) bpe(token string) string {
	word := []string{}
	for _, r := range token {
		word = append(word, string(r))
	}
	if len(word) <= 1 {
		return token
	}

	for {
		minPair := ""
		minRank := int(^uint(0) >> 1)
		for i := 0; i < len(word)-1; i++ {
			pair := word[i] + " " + word[i+1]
			if rank, ok := t.bpeRanks[pair]; ok && rank < minRank {
				minRank = rank
				minPair = pair
			}
		}
		if minPair == "" {
			break
		}

		parts := strings.SplitN(minPair, " ", 2)
		first, second := parts[0], parts[1]

		merged := []string{}
		for i := 0; i < len(word); {
			if i < len(word)-1 && word[i] == first && word[i+1] == second {
				merged = append(merged, first+second)
				i += 2
			} else {
				merged = append(merged, word[i])
				i++
			}
		}
		word = merged
		if len(word) == 1 {
			break
		}
	}

	return strings.Join(word, " ")
}

// Decode converts token IDs back to text
func (t *BPETokenizer) Decode(tokenIDs []int) (string, error) {
	var joined strings.Builder
	for _, id := range tokenIDs {
		if token, ok := t.decoder[id]; ok {
			joined.WriteString(token)
		}
	}

	var out []byte
	for _, r := range joined.String() {
		if b, ok := t.byteDecoder[r]; ok {
			out = append(out, b)
		} else {
			out = append(out, []byte(string(r))...)
		}
	}
	return string(out), nil
}

// TokenID looks up a token (special tokens included) directly in the vocabulary
func (t *BPETokenizer) TokenID(token string) (int, bool) {
	id, ok := t.encoder[token]
	return id, ok
}

// VocabSize returns the vocabulary size
func (t *BPETokenizer) VocabSize() int {
	return len(t.encoder)
}
