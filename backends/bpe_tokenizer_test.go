package backends

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTokenizerFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	vocab := `{"h":0,"e":1,"l":2,"o":3,"he":4,"ll":5,"hell":6,"hello":7,"<|endoftext|>":8}`
	if err := os.WriteFile(filepath.Join(dir, "vocab.json"), []byte(vocab), 0o644); err != nil {
		t.Fatalf("failed to write vocab: %v", err)
	}

	merges := "#version: 0.2\nh e\nl l\nhe ll\nhell o\n"
	if err := os.WriteFile(filepath.Join(dir, "merges.txt"), []byte(merges), 0o644); err != nil {
		t.Fatalf("failed to write merges: %v", err)
	}

	return dir
}

func TestBPEEncode(t *testing.T) {
	tok, err := NewBPETokenizer(writeTokenizerFiles(t))
	if err != nil {
		t.Fatalf("NewBPETokenizer failed: %v", err)
	}

	ids, err := tok.Encode("hello")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !reflect.DeepEqual(ids, []int{7}) {
		t.Errorf("Expected fully merged token [7], got %v", ids)
	}

	ids, err = tok.Encode("hell")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !reflect.DeepEqual(ids, []int{6}) {
		t.Errorf("Expected [6], got %v", ids)
	}
}

func TestBPEDecodeRoundTrip(t *testing.T) {
	tok, err := NewBPETokenizer(writeTokenizerFiles(t))
	if err != nil {
		t.Fatalf("NewBPETokenizer failed: %v", err)
	}

	ids, err := tok.Encode("hello")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	text, err := tok.Decode(ids)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if text != "hello" {
		t.Errorf("Expected round trip to 'hello', got %q", text)
	}
}

func TestBPESpecialTokenLookup(t *testing.T) {
	tok, err := NewBPETokenizer(writeTokenizerFiles(t))
	if err != nil {
		t.Fatalf("NewBPETokenizer failed: %v", err)
	}

	id, ok := tok.TokenID("<|endoftext|>")
	if !ok || id != 8 {
		t.Errorf("Expected special token id 8, got %d (%v)", id, ok)
	}
	if _, ok := tok.TokenID("missing"); ok {
		t.Errorf("Unknown token must not resolve")
	}
	if tok.VocabSize() != 9 {
		t.Errorf("Expected vocab size 9, got %d", tok.VocabSize())
	}
}

func TestBPEUnknownToken(t *testing.T) {
	tok, err := NewBPETokenizer(writeTokenizerFiles(t))
	if err != nil {
		t.Fatalf("NewBPETokenizer failed: %v", err)
	}

	if _, err := tok.Encode("xyz"); err == nil {
		t.Errorf("Expected error for text outside the vocabulary")
	}
}
