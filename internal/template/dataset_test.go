package template

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDataset(t *testing.T) {
	path := writeFile(t, "data.jsonl",
		`{"sentence": "The watch is in Box A, the pen is in Box B, the cup is in Box C. Box B contains pen."}
{"sentence": "The map is in Box D, the coat is in Box E, the jar is in Box F. Box D contains map."}

`)
	ds, err := LoadDataset(path)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (blank line skipped)", ds.Len())
	}
	if ds.Sentences[1].Answer != "map" {
		t.Errorf("second answer = %q", ds.Sentences[1].Answer)
	}
}

func TestLoadDatasetMalformedLine(t *testing.T) {
	path := writeFile(t, "bad.jsonl", `{"sentence": "The watch is in Box A. Box Z contains watch."}`)
	if _, err := LoadDataset(path); !errors.Is(err, ErrLabelNotFound) {
		t.Errorf("err = %v, want ErrLabelNotFound", err)
	}
}

func TestLoadDatasetBadJSON(t *testing.T) {
	path := writeFile(t, "bad.jsonl", `not json`)
	if _, err := LoadDataset(path); err == nil {
		t.Error("expected error for invalid JSON line")
	}
}

func TestRequire(t *testing.T) {
	ds := &Dataset{Sentences: make([]Sentence, 3)}
	if err := ds.Require(3); err != nil {
		t.Errorf("Require(3) on len 3: %v", err)
	}
	if err := ds.Require(4); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Require(4) err = %v, want ErrInsufficientData", err)
	}
}

func TestLoadVocabulary(t *testing.T) {
	path := writeFile(t, "objects.csv", "object_name\napple\nbottle\ncamera\n")
	v, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("LoadVocabulary: %v", err)
	}
	if len(v.Objects) != 3 {
		t.Fatalf("Objects = %v, want 3 entries", v.Objects)
	}

	rng := rand.New(rand.NewSource(7))
	got := v.Pick(rng)
	found := false
	for _, o := range v.Objects {
		if o == got {
			found = true
		}
	}
	if !found {
		t.Errorf("Pick returned %q, not in vocabulary", got)
	}
}

func TestLoadVocabularyMissingColumn(t *testing.T) {
	path := writeFile(t, "objects.csv", "name\napple\n")
	if _, err := LoadVocabulary(path); err == nil {
		t.Error("expected error for missing object_name column")
	}
}

func TestPickDistinct(t *testing.T) {
	v := &Vocabulary{Objects: []string{"apple", "bottle", "camera", "drum"}}
	rng := rand.New(rand.NewSource(1))
	got, err := v.PickDistinct(rng, 3)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, o := range got {
		if seen[o] {
			t.Errorf("duplicate object %q", o)
		}
		seen[o] = true
	}

	if _, err := v.PickDistinct(rng, 5); err == nil {
		t.Error("expected error when requesting more than vocabulary size")
	}
}
