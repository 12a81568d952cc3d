package backends

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"textgen-go/textgen"
)

// ONNXModel runs a causal language model through ONNX Runtime. It
// implements textgen.Model. The exported graph is expected to take
// input_ids (and optionally attention_mask) of shape [batch, seq] and
// produce logits of shape [batch, seq, vocab].
//
// The model recomputes the full context each step and returns a nil cache;
// past-key-value graph inputs are not wired.
type ONNXModel struct {
	session   *ort.DynamicAdvancedSession
	vocabSize int
	useMask   bool
}

// NewONNXModel loads an ONNX causal LM. vocabSize may be 0; it is learned
// from the first forward pass. withMask feeds the attention mask to graphs
// that declare an attention_mask input.
func NewONNXModel(modelPath string, vocabSize int, withMask bool) (*ONNXModel, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(4); err != nil {
		return nil, fmt.Errorf("failed to set threads: %w", err)
	}

	inputNames := []string{"input_ids"}
	if withMask {
		inputNames = append(inputNames, "attention_mask")
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{"logits"}, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &ONNXModel{
		session:   session,
		vocabSize: vocabSize,
		useMask:   withMask,
	}, nil
}

// Forward runs one full-context step and returns last-position logits per row
func (m *ONNXModel) Forward(inputIDs [][]int, attentionMask [][]int, past textgen.Cache) ([][]float32, textgen.Cache, error) {
	batch := len(inputIDs)
	if batch == 0 {
		return nil, nil, fmt.Errorf("no sequences to process")
	}
	seqLen := len(inputIDs[0])
	for _, row := range inputIDs {
		if len(row) != seqLen {
			return nil, nil, fmt.Errorf("ragged batch: row lengths differ")
		}
	}

	shape := ort.NewShape(int64(batch), int64(seqLen))

	idsData := make([]int64, 0, batch*seqLen)
	for _, row := range inputIDs {
		for _, id := range row {
			idsData = append(idsData, int64(id))
		}
	}
	idsTensor, err := ort.NewTensor(shape, idsData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer idsTensor.Destroy()

	inputs := []ort.Value{idsTensor}
	if m.useMask {
		maskData := make([]int64, 0, batch*seqLen)
		for _, row := range attentionMask {
			for _, bit := range row {
				maskData = append(maskData, int64(bit))
			}
		}
		maskTensor, err := ort.NewTensor(shape, maskData)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create mask tensor: %w", err)
		}
		defer maskTensor.Destroy()
		inputs = append(inputs, maskTensor)
	}

	outputs := make([]ort.Value, 1)
	if err := m.session.Run(inputs, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("unexpected logits tensor type %T", outputs[0])
	}
	defer outTensor.Destroy()

	outShape := outTensor.GetShape()
	vocab := int(outShape[len(outShape)-1])
	m.vocabSize = vocab

	data := outTensor.GetData()
	logits := make([][]float32, batch)
	for i := 0; i < batch; i++ {
		start := (i*seqLen + seqLen - 1) * vocab
		row := make([]float32, vocab)
		copy(row, data[start:start+vocab])
		logits[i] = row
	}

	return logits, nil, nil
}

// VocabSize returns the vocabulary size seen so far
func (m *ONNXModel) VocabSize() int {
	return m.vocabSize
}

// Close destroys the ONNX session
func (m *ONNXModel) Close() error {
	m.session.Destroy()
	return nil
}
