package tokenize

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestTokenizePadsToLongestRow(t *testing.T) {
	tok := NewWordTokenizer(true)
	b, err := tok.Tokenize([]string{
		"The watch is in Box A",
		"The watch is in Box A, the pen is in Box B",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(b.InputIDs[0]) != len(b.InputIDs[1]) {
		t.Fatalf("rows not padded to equal length: %d vs %d", len(b.InputIDs[0]), len(b.InputIDs[1]))
	}

	idx, err := LastTokenIndices(b)
	if err != nil {
		t.Fatal(err)
	}
	// 6 words + BOS → last index 6; 12 words + BOS → 12.
	if idx[0] != 6 || idx[1] != 12 {
		t.Errorf("last indices = %v, want [6 12]", idx)
	}
	for i, row := range b.AttentionMask {
		if row[idx[i]] != 1 {
			t.Errorf("row %d: last index %d falls on padding", i, idx[i])
		}
		if idx[i]+1 < len(row) && row[idx[i]+1] != 0 {
			t.Errorf("row %d: position after last index is not padding", i)
		}
	}
}

func TestPaddingDiffersAcrossBatches(t *testing.T) {
	tok := NewWordTokenizer(false)
	short := "Box A contains"

	alone, err := tok.Tokenize([]string{short})
	if err != nil {
		t.Fatal(err)
	}
	mixed, err := tok.Tokenize([]string{short, "The watch is in Box A, the pen is in Box B. Box B contains"})
	if err != nil {
		t.Fatal(err)
	}
	if len(alone.InputIDs[0]) == len(mixed.InputIDs[0]) {
		t.Error("same text padded identically in batches of different widths")
	}

	aloneIdx, _ := LastTokenIndices(alone)
	mixedIdx, _ := LastTokenIndices(mixed)
	if aloneIdx[0] != mixedIdx[0] {
		t.Errorf("last index changed with padding: %d vs %d", aloneIdx[0], mixedIdx[0])
	}
}

func TestLastTokenIndicesRejectsEmptyMask(t *testing.T) {
	b := Batch{InputIDs: [][]int{{0, 0}}, AttentionMask: [][]int{{0, 0}}}
	if _, err := LastTokenIndices(b); err == nil {
		t.Error("expected error for all-zero mask")
	}
}

func TestDecodeRoundTripsLastToken(t *testing.T) {
	tok := NewWordTokenizer(true)
	prompt := "The watch is in Box A. Box A contains"
	b, err := tok.Tokenize([]string{prompt})
	if err != nil {
		t.Fatal(err)
	}
	idx, err := LastTokenIndices(b)
	if err != nil {
		t.Fatal(err)
	}
	word := tok.Decode([]int{b.InputIDs[0][idx[0]]})
	if word != "contains" {
		t.Errorf("decoded last token = %q, want contains", word)
	}
	re, err := tok.Encode(word)
	if err != nil {
		t.Fatal(err)
	}
	if re[len(re)-1] != b.InputIDs[0][idx[0]] {
		t.Errorf("re-encoded id %d != original %d", re[len(re)-1], b.InputIDs[0][idx[0]])
	}
}

func TestConventionForArchitecture(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		ok     bool
	}{
		{"llama-7b", 1, true},
		{"Llama-2-13b-hf", 1, true},
		{"vicuna-13b", 1, true},
		{"goat-7b", 1, true},
		{"gpt2-medium", 0, true},
		{"GPT-2", 0, true},
		{"mamba-2.8b", 0, false},
	}
	for _, tt := range tests {
		conv, err := ConventionForArchitecture(tt.name)
		if tt.ok {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tt.name, err)
				continue
			}
			if conv.ContentOffset != tt.offset {
				t.Errorf("%s: offset = %d, want %d", tt.name, conv.ContentOffset, tt.offset)
			}
			continue
		}
		if !errors.Is(err, ErrUnknownConvention) {
			t.Errorf("%s: err = %v, want ErrUnknownConvention", tt.name, err)
		}
		if err != nil && !strings.Contains(err.Error(), tt.name) {
			t.Errorf("%s: error does not name the value: %v", tt.name, err)
		}
	}
}

func TestContentToken(t *testing.T) {
	withBOS := NewWordTokenizer(true)
	conv := Convention{ContentOffset: 1}
	id, err := ContentToken(withBOS, conv, "pen")
	if err != nil {
		t.Fatal(err)
	}
	ids, _ := withBOS.Encode("pen")
	if id != ids[1] {
		t.Errorf("content token = %d, want %d", id, ids[1])
	}

	bare := NewWordTokenizer(false)
	id0, err := ContentToken(bare, Convention{ContentOffset: 0}, "pen")
	if err != nil {
		t.Fatal(err)
	}
	ids0, _ := bare.Encode("pen")
	if id0 != ids0[0] {
		t.Errorf("content token = %d, want %d", id0, ids0[0])
	}

	if _, err := ContentToken(bare, Convention{ContentOffset: 3}, "pen"); err == nil {
		t.Error("expected error for offset past encoding length")
	}
}

func TestEncodeDeterministic(t *testing.T) {
	a := NewWordTokenizer(true)
	b := NewWordTokenizer(true)
	texts := []string{"The watch is in Box A. Box A contains", "pen", "cup"}
	for _, txt := range texts {
		ia, _ := a.Encode(txt)
		ib, _ := b.Encode(txt)
		if !reflect.DeepEqual(ia, ib) {
			t.Errorf("encodings diverge for %q: %v vs %v", txt, ia, ib)
		}
	}
}
