package textgen

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// promptCache memoizes prompt tokenizations keyed by the xxhash of the
// prompt text. Encoding a prompt is pure, so repeated Generate calls with
// the same prompt skip the tokenizer.
type promptCache struct {
	mu         sync.Mutex
	entries    map[uint64][]int
	maxEntries int
}

func newPromptCache(maxEntries int) *promptCache {
	return &promptCache{
		entries:    make(map[uint64][]int),
		maxEntries: maxEntries,
	}
}

// get returns a copy of the cached token ids for the prompt, if present.
// Callers own the returned slice.
func (c *promptCache) get(prompt string) ([]int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, ok := c.entries[xxhash.Sum64String(prompt)]
	if !ok {
		return nil, false
	}
	out := make([]int, len(ids))
	copy(out, ids)
	return out, true
}

// put stores a copy of the token ids for the prompt, evicting an arbitrary
// entry when the cache is full.
func (c *promptCache) put(prompt string, ids []int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		for key := range c.entries {
			delete(c.entries, key)
			break
		}
	}

	stored := make([]int, len(ids))
	copy(stored, ids)
	c.entries[xxhash.Sum64String(prompt)] = stored
}
