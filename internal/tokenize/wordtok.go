package tokenize

import (
	"fmt"
	"strings"

	"boxtrace/internal/metrics"
)

const (
	padToken = "<pad>"
	bosToken = "<s>"
)

// WordTokenizer is a whitespace vocabulary tokenizer standing in for a real
// subword model in tests and the fake-model CLI path. Unseen words extend the
// vocabulary in encounter order, so a fixed prompt stream yields fixed ids.
type WordTokenizer struct {
	tokens []string
	vocab  map[string]int
	bos    int
	pad    int
}

// NewWordTokenizer builds an empty tokenizer. With withBOS set, every encoding
// starts with a BOS token, matching the llama-family convention (content
// offset 1); without it, encodings match GPT-2 style (offset 0).
func NewWordTokenizer(withBOS bool) *WordTokenizer {
	t := &WordTokenizer{vocab: make(map[string]int), bos: -1}
	t.pad = t.intern(padToken)
	if withBOS {
		t.bos = t.intern(bosToken)
	}
	return t
}

func (t *WordTokenizer) intern(word string) int {
	if id, ok := t.vocab[word]; ok {
		return id
	}
	id := len(t.tokens)
	t.tokens = append(t.tokens, word)
	t.vocab[word] = id
	return id
}

func (t *WordTokenizer) Encode(text string) ([]int, error) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, fmt.Errorf("empty encoding for %q", text)
	}
	var ids []int
	if t.bos >= 0 {
		ids = append(ids, t.bos)
	}
	for _, w := range words {
		ids = append(ids, t.intern(w))
	}
	return ids, nil
}

// Tokenize encodes every text and right-pads all rows to the longest row of
// this call.
func (t *WordTokenizer) Tokenize(texts []string) (Batch, error) {
	rows := make([][]int, len(texts))
	longest := 0
	for i, text := range texts {
		ids, err := t.Encode(text)
		if err != nil {
			return Batch{}, fmt.Errorf("text %d: %w", i, err)
		}
		rows[i] = ids
		if len(ids) > longest {
			longest = len(ids)
		}
	}

	b := Batch{
		InputIDs:      make([][]int, len(rows)),
		AttentionMask: make([][]int, len(rows)),
	}
	for i, ids := range rows {
		padded := make([]int, longest)
		mask := make([]int, longest)
		copy(padded, ids)
		for p := len(ids); p < longest; p++ {
			padded[p] = t.pad
		}
		for p := range ids {
			mask[p] = 1
		}
		b.InputIDs[i] = padded
		b.AttentionMask[i] = mask
	}

	metrics.RecordTokenizeBatch(longest)
	return b, nil
}

// Decode renders ids back to text, dropping pad and BOS tokens.
func (t *WordTokenizer) Decode(ids []int) string {
	var parts []string
	for _, id := range ids {
		if id < 0 || id >= len(t.tokens) || id == t.pad || id == t.bos {
			continue
		}
		parts = append(parts, t.tokens[id])
	}
	return strings.Join(parts, " ")
}

// VocabSize reports how many tokens the tokenizer currently knows, including
// the special tokens.
func (t *WordTokenizer) VocabSize() int {
	return len(t.tokens)
}
