package textgen

import "fmt"

// encodePrompt turns prompt text (or its absence) into the initial row.
// An over-long prompt is truncated from the front so the most recent
// context survives. Without a prompt the row is the single BOS token.
func (g *Generator) encodePrompt(prompt string, maxLength int) ([]int, error) {
	if prompt == "" {
		if g.bosID < 0 {
			return nil, fmt.Errorf("a BOS token is required to start generation without a prompt")
		}
		return []int{g.bosID}, nil
	}

	ids, err := g.encodeCached(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prompt: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("prompt produced no tokens")
	}

	if len(ids) > maxLength {
		ids = ids[len(ids)-maxLength:]
	}
	return ids, nil
}

// encodeCached tokenizes prompt text through the façade's prompt cache
func (g *Generator) encodeCached(prompt string) ([]int, error) {
	if ids, ok := g.prompts.get(prompt); ok {
		return ids, nil
	}

	ids, err := g.tokenizer.Encode(prompt)
	if err != nil {
		return nil, err
	}
	g.prompts.put(prompt, ids)
	return ids, nil
}
