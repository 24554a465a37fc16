package template

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"boxtrace/internal/logger"
	"boxtrace/internal/metrics"
)

var ErrInsufficientData = fmt.Errorf("requested sample count exceeds dataset size")

type datasetLine struct {
	Sentence string `json:"sentence"`
}

// Dataset is the read-only template sentence store.
type Dataset struct {
	Sentences []Sentence
}

// LoadDataset reads a newline-delimited JSON file, one {"sentence": ...}
// object per line, and parses every sentence eagerly. A malformed line is a
// hard error; skipping would silently shift sample alignment downstream.
func LoadDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds := &Dataset{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var dl datasetLine
		if err := json.Unmarshal(line, &dl); err != nil {
			metrics.RecordDataError("bad_json")
			return nil, fmt.Errorf("dataset line %d: %w", lineNo, err)
		}
		sent, err := ParseSentence(dl.Sentence)
		if err != nil {
			metrics.RecordDataError("bad_sentence")
			return nil, fmt.Errorf("dataset line %d: %w", lineNo, err)
		}
		ds.Sentences = append(ds.Sentences, sent)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	logger.Log.Debug("dataset loaded", "path", path, "sentences", len(ds.Sentences))
	return ds, nil
}

// Len returns the number of sentences.
func (d *Dataset) Len() int {
	return len(d.Sentences)
}

// Require fails fast when fewer than n sentences are available.
func (d *Dataset) Require(n int) error {
	if n > len(d.Sentences) {
		metrics.RecordDataError("insufficient_data")
		return fmt.Errorf("%w: want %d, have %d", ErrInsufficientData, n, len(d.Sentences))
	}
	return nil
}
