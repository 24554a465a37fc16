// Package align turns editor output into aligned parallel token sequences:
// base and source batches tokenized together with their last-token indices,
// counterfactual label ids, and intervention site ids, the unit the patching
// runner consumes.
package align

import (
	"fmt"
	"math/rand"

	"boxtrace/internal/editors"
	"boxtrace/internal/tokenize"
)

// AlignedSet is one aligned batch. All row-indexed fields have equal length;
// BasePos and SourcePos are last-token indices into the padded rows, valid
// only for the padding of this set.
type AlignedSet struct {
	BaseIDs   [][]int
	SourceIDs [][]int
	BasePos   []int
	SourcePos []int

	// Labels holds the counterfactual answer token per row. ObjectIDs, when
	// present, holds the expected object token per box slot.
	Labels    []int
	ObjectIDs [][]int

	// InterventionIDs is the patch-site id per row. Single-site experiments
	// use 0 everywhere; the field is carried for multi-site runs.
	InterventionIDs []int
}

// Validate checks the equal-length invariant and that every position index
// lands inside its row.
func (s *AlignedSet) Validate() error {
	n := len(s.BaseIDs)
	if len(s.SourceIDs) != n || len(s.BasePos) != n || len(s.SourcePos) != n ||
		len(s.Labels) != n || len(s.InterventionIDs) != n {
		return fmt.Errorf("ragged aligned set: base=%d source=%d basePos=%d sourcePos=%d labels=%d interventions=%d",
			n, len(s.SourceIDs), len(s.BasePos), len(s.SourcePos), len(s.Labels), len(s.InterventionIDs))
	}
	if len(s.ObjectIDs) != 0 && len(s.ObjectIDs) != n {
		return fmt.Errorf("ragged aligned set: objects=%d rows=%d", len(s.ObjectIDs), n)
	}
	for i := 0; i < n; i++ {
		if s.BasePos[i] < 0 || s.BasePos[i] >= len(s.BaseIDs[i]) {
			return fmt.Errorf("row %d: base position %d outside row of length %d", i, s.BasePos[i], len(s.BaseIDs[i]))
		}
		if s.SourcePos[i] < 0 || s.SourcePos[i] >= len(s.SourceIDs[i]) {
			return fmt.Errorf("row %d: source position %d outside row of length %d", i, s.SourcePos[i], len(s.SourceIDs[i]))
		}
	}
	return nil
}

// Len returns the number of aligned rows.
func (s *AlignedSet) Len() int { return len(s.BaseIDs) }

// BuildAligned tokenizes pairs into an aligned set. Bases and sources are
// padded as two separate batches; last-token indices are computed from each
// batch's own masks.
func BuildAligned(enc tokenize.Encoder, conv tokenize.Convention, pairs []editors.Pair) (*AlignedSet, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no pairs to align")
	}

	bases := make([]string, len(pairs))
	sources := make([]string, len(pairs))
	for i, p := range pairs {
		bases[i] = p.Base
		sources[i] = p.Source
	}

	baseBatch, err := enc.Tokenize(bases)
	if err != nil {
		return nil, fmt.Errorf("tokenize bases: %w", err)
	}
	sourceBatch, err := enc.Tokenize(sources)
	if err != nil {
		return nil, fmt.Errorf("tokenize sources: %w", err)
	}
	basePos, err := tokenize.LastTokenIndices(baseBatch)
	if err != nil {
		return nil, err
	}
	sourcePos, err := tokenize.LastTokenIndices(sourceBatch)
	if err != nil {
		return nil, err
	}

	set := &AlignedSet{
		BaseIDs:         baseBatch.InputIDs,
		SourceIDs:       sourceBatch.InputIDs,
		BasePos:         basePos,
		SourcePos:       sourcePos,
		Labels:          make([]int, len(pairs)),
		InterventionIDs: make([]int, len(pairs)),
	}
	for i, p := range pairs {
		id, err := tokenize.ContentToken(enc, conv, p.Label)
		if err != nil {
			return nil, fmt.Errorf("pair %d: %w", i, err)
		}
		set.Labels[i] = id
	}

	if pairs[0].SourceObjects != nil {
		set.ObjectIDs = make([][]int, len(pairs))
		for i, p := range pairs {
			ids := make([]int, len(p.SourceObjects))
			for s, obj := range p.SourceObjects {
				id, err := tokenize.ContentToken(enc, conv, obj)
				if err != nil {
					return nil, fmt.Errorf("pair %d object %d: %w", i, s, err)
				}
				ids[s] = id
			}
			set.ObjectIDs[i] = ids
		}
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// BuildAlignedBatched aligns pairs in chunks of batchSize, so each chunk is
// padded only to its own longest prompt. Rows from different chunks may have
// different padded lengths; the position indices stay valid per row.
func BuildAlignedBatched(enc tokenize.Encoder, conv tokenize.Convention, pairs []editors.Pair, batchSize int) (*AlignedSet, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("invalid batch size: %d (must be positive)", batchSize)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no pairs to align")
	}

	out := &AlignedSet{}
	for start := 0; start < len(pairs); start += batchSize {
		end := start + batchSize
		if end > len(pairs) {
			end = len(pairs)
		}
		chunk, err := BuildAligned(enc, conv, pairs[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch at %d: %w", start, err)
		}
		out.BaseIDs = append(out.BaseIDs, chunk.BaseIDs...)
		out.SourceIDs = append(out.SourceIDs, chunk.SourceIDs...)
		out.BasePos = append(out.BasePos, chunk.BasePos...)
		out.SourcePos = append(out.SourcePos, chunk.SourcePos...)
		out.Labels = append(out.Labels, chunk.Labels...)
		out.InterventionIDs = append(out.InterventionIDs, chunk.InterventionIDs...)
		out.ObjectIDs = append(out.ObjectIDs, chunk.ObjectIDs...)
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// SampleInterleaved pairs an even/odd interleaved example stream: row 2i is
// the base, row 2i+1 its source. The label is the source example's answer.
func SampleInterleaved(enc tokenize.Encoder, conv tokenize.Convention, examples []editors.Example) (*AlignedSet, error) {
	if len(examples) == 0 || len(examples)%2 != 0 {
		return nil, fmt.Errorf("interleaved stream needs an even, nonzero example count, got %d", len(examples))
	}
	pairs := make([]editors.Pair, 0, len(examples)/2)
	for i := 0; i+1 < len(examples); i += 2 {
		pairs = append(pairs, editors.Pair{
			Base:   examples[i].Prompt,
			Source: examples[i+1].Prompt,
			Label:  examples[i+1].Label,
		})
	}
	return BuildAligned(enc, conv, pairs)
}

// SampleBlockwise pairs example i+j with the same offset-shifted slot
// ((j+1) mod numBoxes) of a randomly drawn block, so base and source always
// query different box positions. The label is the source's answer.
func SampleBlockwise(enc tokenize.Encoder, conv tokenize.Convention, examples []editors.Example, numBoxes int, rng *rand.Rand) (*AlignedSet, error) {
	if numBoxes <= 0 {
		return nil, fmt.Errorf("numBoxes must be positive, got %d", numBoxes)
	}
	blocks := len(examples) / numBoxes
	if blocks == 0 {
		return nil, fmt.Errorf("need at least one block of %d examples, got %d", numBoxes, len(examples))
	}

	pairs := make([]editors.Pair, 0, blocks*numBoxes)
	for b := 0; b < blocks; b++ {
		for j := 0; j < numBoxes; j++ {
			src := examples[rng.Intn(blocks)*numBoxes+(j+1)%numBoxes]
			pairs = append(pairs, editors.Pair{
				Base:   examples[b*numBoxes+j].Prompt,
				Source: src.Prompt,
				Label:  src.Label,
			})
		}
	}
	return BuildAligned(enc, conv, pairs)
}

// SampleFanOut pairs each base with every other slot of its own block,
// emitting numBoxes-1 rows per base (same-base fan-out alignment).
func SampleFanOut(enc tokenize.Encoder, conv tokenize.Convention, examples []editors.Example, numBoxes int) (*AlignedSet, error) {
	if numBoxes <= 1 {
		return nil, fmt.Errorf("fan-out needs numBoxes > 1, got %d", numBoxes)
	}
	blocks := len(examples) / numBoxes
	if blocks == 0 {
		return nil, fmt.Errorf("need at least one block of %d examples, got %d", numBoxes, len(examples))
	}

	pairs := make([]editors.Pair, 0, blocks*numBoxes*(numBoxes-1))
	for b := 0; b < blocks; b++ {
		for j := 0; j < numBoxes; j++ {
			base := examples[b*numBoxes+j]
			for d := 1; d < numBoxes; d++ {
				src := examples[b*numBoxes+(j+d)%numBoxes]
				pairs = append(pairs, editors.Pair{
					Base:   base.Prompt,
					Source: src.Prompt,
					Label:  src.Label,
				})
			}
		}
	}
	return BuildAligned(enc, conv, pairs)
}

// SamplePaired aligns two example streams index by index, the
// different-format pairing where base and source come from separate datasets.
func SamplePaired(enc tokenize.Encoder, conv tokenize.Convention, bases, sources []editors.Example) (*AlignedSet, error) {
	if len(bases) != len(sources) {
		return nil, fmt.Errorf("stream lengths differ: %d bases, %d sources", len(bases), len(sources))
	}
	pairs := make([]editors.Pair, len(bases))
	for i := range bases {
		pairs[i] = editors.Pair{
			Base:   bases[i].Prompt,
			Source: sources[i].Prompt,
			Label:  sources[i].Label,
		}
	}
	return BuildAligned(enc, conv, pairs)
}

// QueryLabelEdit overwrites the source token at a fixed offset back from each
// row's last position with a random uppercase letter's content token. Offset 1
// hits the query-label slot of the template grammar ("Box <label> contains").
// Base rows are left untouched.
func QueryLabelEdit(set *AlignedSet, enc tokenize.Encoder, conv tokenize.Convention, offsetFromEnd int, rng *rand.Rand) error {
	if offsetFromEnd < 0 {
		return fmt.Errorf("offset must be non-negative, got %d", offsetFromEnd)
	}
	for i := range set.SourceIDs {
		pos := set.SourcePos[i] - offsetFromEnd
		if pos < 0 {
			return fmt.Errorf("row %d: offset %d reaches before the row start", i, offsetFromEnd)
		}
		letter := string(rune('A' + rng.Intn(26)))
		id, err := tokenize.ContentToken(enc, conv, letter)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		set.SourceIDs[i][pos] = id
	}
	return nil
}
