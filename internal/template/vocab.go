package template

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

const vocabColumn = "object_name"

// Vocabulary holds candidate substitution objects read from the object-name
// table.
type Vocabulary struct {
	Objects []string
}

// LoadVocabulary reads the delimited object table and extracts the
// object_name column.
func LoadVocabulary(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer f.Close()

	rdr := csv.NewInferringReader(f,
		csv.WithHeader(true),
		csv.WithChunk(1024),
		csv.WithAllocator(memory.DefaultAllocator),
	)
	defer rdr.Release()

	v := &Vocabulary{}
	for rdr.Next() {
		rec := rdr.Record()
		indices := rec.Schema().FieldIndices(vocabColumn)
		if len(indices) == 0 {
			return nil, fmt.Errorf("vocabulary %s: no %q column", path, vocabColumn)
		}
		col, ok := rec.Column(indices[0]).(*array.String)
		if !ok {
			return nil, fmt.Errorf("vocabulary %s: column %q is not a string column", path, vocabColumn)
		}
		for i := 0; i < col.Len(); i++ {
			if col.IsNull(i) {
				continue
			}
			v.Objects = append(v.Objects, col.Value(i))
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	if len(v.Objects) == 0 {
		return nil, fmt.Errorf("vocabulary %s: empty", path)
	}
	return v, nil
}

// Pick draws one object name using the injected generator.
func (v *Vocabulary) Pick(rng *rand.Rand) string {
	return v.Objects[rng.Intn(len(v.Objects))]
}

// PickDistinct draws n pairwise-distinct object names. It fails when the
// vocabulary is too small rather than looping forever.
func (v *Vocabulary) PickDistinct(rng *rand.Rand, n int) ([]string, error) {
	if n > len(v.Objects) {
		return nil, fmt.Errorf("vocabulary too small: want %d distinct of %d", n, len(v.Objects))
	}
	perm := rng.Perm(len(v.Objects))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = v.Objects[perm[i]]
	}
	return out, nil
}
