// Package tokenize holds the tokenizer boundary: batching with deterministic
// right padding, last-token index computation, and the convention capability
// that locates content tokens independent of architecture names.
package tokenize

import (
	"fmt"
	"strings"
)

var ErrUnknownConvention = fmt.Errorf("unknown tokenizer convention")

// Batch is a right-padded token matrix with its attention mask. Rows keep the
// caller's insertion order; every row is padded to the longest row of this
// batch, so the same text can pad differently in different batches.
type Batch struct {
	InputIDs      [][]int
	AttentionMask [][]int
}

// Encoder is the tokenizer contract the pipeline consumes. Tokenize batches
// whole prompts; Encode handles a single word for content-token lookup.
type Encoder interface {
	Tokenize(texts []string) (Batch, error)
	Encode(word string) ([]int, error)
	Decode(ids []int) string
}

// LastTokenIndices computes, per row, the index of the final unpadded token:
// the attention-mask sum minus one. Always recomputed from the batch at hand;
// padding depends on batch composition, so cached indices go stale.
func LastTokenIndices(b Batch) ([]int, error) {
	out := make([]int, len(b.AttentionMask))
	for i, mask := range b.AttentionMask {
		n := 0
		for _, m := range mask {
			n += m
		}
		if n <= 0 || n > len(mask) {
			return nil, fmt.Errorf("row %d: attention mask sums to %d over %d positions", i, n, len(mask))
		}
		out[i] = n - 1
	}
	return out, nil
}

// Convention describes a tokenizer capability instead of branching on model
// family names: ContentOffset is where the first content token of a
// single-word encoding sits (1 behind a leading BOS, 0 without one).
type Convention struct {
	ContentOffset int
}

// ConventionForArchitecture maps an architecture name onto its convention.
// Llama-family tokenizers prepend BOS; GPT-2 style ones do not. Unknown names
// fail loudly rather than defaulting to either.
func ConventionForArchitecture(name string) (Convention, error) {
	l := strings.ToLower(name)
	switch {
	case strings.Contains(l, "llama"), strings.Contains(l, "vicuna"), strings.Contains(l, "goat"):
		return Convention{ContentOffset: 1}, nil
	case strings.Contains(l, "gpt2"), strings.Contains(l, "gpt-2"):
		return Convention{ContentOffset: 0}, nil
	}
	return Convention{}, fmt.Errorf("%w: %q", ErrUnknownConvention, name)
}

// ContentToken encodes a word and returns the id at the convention's content
// offset, the token an intervention should overwrite or a label should match.
func ContentToken(enc Encoder, conv Convention, word string) (int, error) {
	ids, err := enc.Encode(word)
	if err != nil {
		return 0, err
	}
	if conv.ContentOffset >= len(ids) {
		return 0, fmt.Errorf("encoding of %q has %d tokens, content offset %d out of range",
			word, len(ids), conv.ContentOffset)
	}
	return ids[conv.ContentOffset], nil
}
