package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"textgen-go/backends"
	"textgen-go/textgen"
)

func main() {
	maxLength := flag.Int("max-length", 64, "Maximum total sequence length")
	minLength := flag.Int("min-length", 0, "Minimum total sequence length before EOS may appear")
	sample := flag.Bool("sample", false, "Sample from the distribution instead of greedy decoding")
	temperature := flag.Float64("temp", 1.0, "Sampling temperature")
	topK := flag.Int("top-k", 0, "Top-k filtering (0 disables)")
	topP := flag.Float64("top-p", 1.0, "Top-p nucleus filtering (1.0 disables)")
	repPenalty := flag.Float64("rep-penalty", 1.0, "Repetition penalty (1.0=no penalty, >1.0=penalize repeats)")
	ngram := flag.Int("no-repeat-ngram", 0, "Forbid repeating n-grams of this size (0 disables)")
	beams := flag.Int("beams", 1, "Number of beams for beam search")
	returns := flag.Int("returns", 1, "Number of sequences to return")
	earlyStopping := flag.Bool("early-stopping", false, "Stop beam search once enough hypotheses finished")
	tokenizerDir := flag.String("tokenizer", "", "Directory with vocab.json and merges.txt (mock tokenizer when empty)")
	modelPath := flag.String("model", "", "Path to an ONNX causal LM (mock model when empty)")
	progress := flag.Bool("progress", false, "Show a step progress bar")

	flag.Parse()

	prompt := strings.Join(flag.Args(), " ")

	var tokenizer textgen.Tokenizer
	if *tokenizerDir != "" {
		bpe, err := backends.NewBPETokenizer(*tokenizerDir)
		if err != nil {
			log.Fatalf("Failed to load tokenizer: %v", err)
		}
		tokenizer = bpe
		fmt.Printf("✓ Loaded BPE tokenizer (vocab: %d)\n", bpe.VocabSize())
	} else {
		tokenizer = textgen.NewMockTokenizer(256, map[string]int{textgen.EndOfTextToken: 0})
	}

	var model textgen.Model
	if *modelPath != "" {
		onnx, err := backends.NewONNXModel(*modelPath, tokenizer.VocabSize(), true)
		if err != nil {
			log.Fatalf("Failed to load model: %v", err)
		}
		model = onnx
		fmt.Printf("✓ Loaded ONNX model: %s\n", *modelPath)
	} else {
		eot, _ := tokenizer.TokenID(textgen.EndOfTextToken)
		model = textgen.NewMockModel(tokenizer.VocabSize(), eot, (*maxLength*3)/4)
	}
	defer model.Close()

	gen, err := textgen.NewGPT2Generator(model, tokenizer)
	if err != nil {
		log.Fatalf("Failed to create generator: %v", err)
	}

	cfg := textgen.NewGenerationConfig(
		textgen.WithMaxLength(*maxLength),
		textgen.WithMinLength(*minLength),
		textgen.WithSampling(*sample),
		textgen.WithTemperature(*temperature),
		textgen.WithTopK(*topK),
		textgen.WithTopP(*topP),
		textgen.WithRepetitionPenalty(*repPenalty),
		textgen.WithNoRepeatNGramSize(*ngram),
		textgen.WithNumBeams(*beams),
		textgen.WithNumReturnSequences(*returns),
		textgen.WithEarlyStopping(*earlyStopping),
	)

	var sequences [][]int
	if *progress {
		sequences, err = gen.GenerateWithProgress(prompt, cfg)
	} else {
		sequences, err = gen.Generate(prompt, cfg)
	}
	if err != nil {
		log.Fatalf("Generation failed: %v", err)
	}

	for i, seq := range sequences {
		text, err := tokenizer.Decode(seq)
		if err != nil {
			log.Fatalf("Failed to decode tokens: %v", err)
		}
		fmt.Printf("--- sequence %d (%d tokens) ---\n%s\n", i+1, len(seq), text)
	}
}
