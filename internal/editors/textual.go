package editors

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"boxtrace/internal/template"
)

// digitRelabeler maps the digit labels of the alternate format onto unused
// digits; object-to-content bindings are untouched.
var digitRelabeler = strings.NewReplacer(" 0", " 6", " 1", " 4", " 2", " 9")

// RelabelDigits tests whether the model keys on label identity: the source is
// the same sentence with every digit label rewritten, so the answer must not
// change.
func RelabelDigits(ds *template.Dataset, n int) ([]Pair, error) {
	start := time.Now()
	if err := ds.Require(n); err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, n)
	for i := 0; i < n; i++ {
		base := ds.Sentences[i]
		basePos, err := base.QueryPosition()
		if err != nil {
			return nil, fmt.Errorf("base %d: %w", i, err)
		}
		prompt := base.Prompt()
		pairs = append(pairs, Pair{
			Base:      prompt,
			Source:    digitRelabeler.Replace(prompt),
			Label:     base.Answer,
			BasePos:   basePos,
			SourcePos: basePos,
		})
	}

	record("relabel_digits", len(pairs), start)
	return pairs, nil
}

// RotateSegments cyclically shifts the box-to-content assignment by one slot.
// The query label still names the same box, so the answer is preserved while
// every positional cue moves.
func RotateSegments(ds *template.Dataset, n, numBoxes int) ([]Pair, error) {
	start := time.Now()
	if err := ds.Require(n); err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, n)
	for i := 0; i < n; i++ {
		base := ds.Sentences[i]
		basePos, err := base.QueryPosition()
		if err != nil {
			return nil, fmt.Errorf("base %d: %w", i, err)
		}
		if numBoxes > len(base.Segments) {
			return nil, fmt.Errorf("base %d: rotate over %d boxes, sentence has %d", i, numBoxes, len(base.Segments))
		}

		rotated := base.Clone()
		for s := range rotated.Segments {
			seg := base.Segments[(s+1)%numBoxes]
			// The sentence-initial capital travels with slot zero, not with
			// the clause that used to hold it.
			if s == 0 {
				seg = capitalizeSegment(seg, upperFirst)
			} else {
				seg = capitalizeSegment(seg, lowerFirst)
			}
			rotated.Segments[s] = seg
		}

		pairs = append(pairs, Pair{
			Base:      base.Prompt(),
			Source:    rotated.Prompt(),
			Label:     base.Answer,
			BasePos:   basePos,
			SourcePos: (basePos + numBoxes - 1) % numBoxes,
		})
	}

	record("rotate_segments", len(pairs), start)
	return pairs, nil
}

// NegateContainment flips the queried source segment to "is not in".
func NegateContainment(ds *template.Dataset, n int, rng *rand.Rand) ([]Pair, error) {
	return sourceEdit("negate_containment", ds, n, rng, func(src template.Sentence, pos int) string {
		seg := src.Segments[pos]
		src.Segments[pos] = seg.WithRaw(strings.Replace(seg.Text(), " is in", " is not in", 1))
		return src.Prompt()
	})
}

// InsertBoxesBeforeSegment splices a clause announcing three extra boxes just
// before the queried source segment, shifting its surface position without
// moving its slot in the comma-separated list semantics.
func InsertBoxesBeforeSegment(ds *template.Dataset, n int, rng *rand.Rand) ([]Pair, error) {
	return sourceEdit("insert_boxes_before_segment", ds, n, rng, func(src template.Sentence, pos int) string {
		prefix := "there are three additional boxes, Box PP, Box BB and Box AA, "
		if pos == 0 {
			prefix = upperFirst(prefix)
		}
		seg := src.Segments[pos]
		src.Segments[pos] = seg.WithRaw(prefix + seg.Text())
		return src.Prompt()
	})
}

// AppendRawText pads the end of the source context with filler prose.
func AppendRawText(ds *template.Dataset, n int, rng *rand.Rand) ([]Pair, error) {
	return sourceEdit("append_raw_text", ds, n, rng, func(src template.Sentence, _ int) string {
		return src.Context() + ", these are a bunch of boxes containing objects. " + src.Query()
	})
}

// PrependRawText pads the start of the source prompt with filler prose,
// lowercasing the old first letter.
func PrependRawText(ds *template.Dataset, n int, rng *rand.Rand) ([]Pair, error) {
	return sourceEdit("prepend_raw_text", ds, n, rng, func(src template.Sentence, _ int) string {
		return "There are a bunch of boxes containing objects, " + lowerFirst(src.Prompt())
	})
}

// AppendSegment adds one more box clause at the end of the source context.
func AppendSegment(ds *template.Dataset, n int, rng *rand.Rand) ([]Pair, error) {
	return sourceEdit("append_segment", ds, n, rng, func(src template.Sentence, _ int) string {
		return src.Context() + ", the apple is in Box O. " + src.Query()
	})
}

// PrependSegment adds one more box clause at the start of the source context.
func PrependSegment(ds *template.Dataset, n int, rng *rand.Rand) ([]Pair, error) {
	return sourceEdit("prepend_segment", ds, n, rng, func(src template.Sentence, _ int) string {
		return "The apple is in Box O, " + lowerFirst(src.Prompt())
	})
}

// InsertTokensBetween lengthens the queried segment's containment phrase,
// pushing extra tokens between object and label.
func InsertTokensBetween(ds *template.Dataset, n int, rng *rand.Rand) ([]Pair, error) {
	return sourceEdit("insert_tokens_between", ds, n, rng, func(src template.Sentence, pos int) string {
		seg := src.Segments[pos]
		src.Segments[pos] = seg.WithRaw(strings.Replace(seg.Text(), " is in", " is contained in the", 1))
		return src.Prompt()
	})
}

// ReorderBoxAndObject rewrites the queried source segment with the box named
// first ("Box X contains the y"), reversing the phrase order.
func ReorderBoxAndObject(ds *template.Dataset, n int, rng *rand.Rand) ([]Pair, error) {
	return sourceEdit("reorder_box_and_object", ds, n, rng, func(src template.Sentence, pos int) string {
		seg := src.Segments[pos]
		src.Segments[pos] = seg.WithRaw(fmt.Sprintf("Box %s contains the %s", seg.Label, seg.Object))
		return src.Prompt()
	})
}

// AddCommaAfterObject inserts a comma before every "is", perturbing
// punctuation across the whole source prompt.
func AddCommaAfterObject(ds *template.Dataset, n int, rng *rand.Rand) ([]Pair, error) {
	return sourceEdit("add_comma_after_object", ds, n, rng, func(src template.Sentence, _ int) string {
		return strings.ReplaceAll(src.Prompt(), " is", ", is")
	})
}

// RemoveCommas strips the segment-separating commas from the source prompt.
func RemoveCommas(ds *template.Dataset, n int, rng *rand.Rand) ([]Pair, error) {
	return sourceEdit("remove_commas", ds, n, rng, func(src template.Sentence, _ int) string {
		return strings.ReplaceAll(src.Prompt(), ", ", " ")
	})
}

// PositionOnly pairs the base with an unedited different-position source; the
// counterfactual answer is the base's object at the source's slot.
func PositionOnly(ds *template.Dataset, n int, rng *rand.Rand) ([]Pair, error) {
	return sourceEdit("position_only", ds, n, rng, func(src template.Sentence, _ int) string {
		return src.Prompt()
	})
}

// ShiftQueryIndex pairs with an unedited source but labels the pair with the
// base object one slot past the source position, modulo the given stride.
func ShiftQueryIndex(ds *template.Dataset, n, stride int, rng *rand.Rand) ([]Pair, error) {
	start := time.Now()
	if err := ds.Require(n); err != nil {
		return nil, err
	}
	if stride <= 0 {
		return nil, fmt.Errorf("stride must be positive, got %d", stride)
	}

	pairs := make([]Pair, 0, n)
	for i := 0; i < n; i++ {
		base := ds.Sentences[i]
		basePos, err := base.QueryPosition()
		if err != nil {
			return nil, fmt.Errorf("base %d: %w", i, err)
		}
		source, srcPos, err := drawDifferentPosition(ds, n, rng, basePos)
		if err != nil {
			return nil, fmt.Errorf("base %d: %w", i, err)
		}
		label, err := objectAt(base, (srcPos+1)%stride)
		if err != nil {
			return nil, fmt.Errorf("base %d: %w", i, err)
		}
		pairs = append(pairs, Pair{
			Base:      base.Prompt(),
			Source:    source.Prompt(),
			Label:     label,
			BasePos:   basePos,
			SourcePos: srcPos,
		})
	}

	record("shift_query_index", len(pairs), start)
	return pairs, nil
}

// SourceObjectAtPosition pairs with an unedited source and labels with the
// source's own object at its queried slot (object-value variant).
func SourceObjectAtPosition(ds *template.Dataset, n int, rng *rand.Rand) ([]Pair, error) {
	start := time.Now()
	if err := ds.Require(n); err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, n)
	for i := 0; i < n; i++ {
		base := ds.Sentences[i]
		basePos, err := base.QueryPosition()
		if err != nil {
			return nil, fmt.Errorf("base %d: %w", i, err)
		}
		source, srcPos, err := drawDifferentPosition(ds, n, rng, basePos)
		if err != nil {
			return nil, fmt.Errorf("base %d: %w", i, err)
		}
		pairs = append(pairs, Pair{
			Base:      base.Prompt(),
			Source:    source.Prompt(),
			Label:     source.Segments[srcPos].Object,
			BasePos:   basePos,
			SourcePos: srcPos,
		})
	}

	record("source_object_at_position", len(pairs), start)
	return pairs, nil
}

// QueryLabelFromBase draws a source whose query label also occurs among the
// base's labels but differs from the base's own query label, then labels the
// pair with the base object stored under the source's query label.
func QueryLabelFromBase(ds *template.Dataset, n int, rng *rand.Rand) ([]Pair, error) {
	start := time.Now()
	if err := ds.Require(n); err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, n)
	for i := 0; i < n; i++ {
		base := ds.Sentences[i]
		basePos, err := base.QueryPosition()
		if err != nil {
			return nil, fmt.Errorf("base %d: %w", i, err)
		}

		source, srcPos, err := drawSource(ds, n, rng, func(cand template.Sentence, _ int) bool {
			if cand.QueryLabel == base.QueryLabel {
				return false
			}
			_, err := base.PositionOf(cand.QueryLabel)
			return err == nil
		})
		if err != nil {
			return nil, fmt.Errorf("base %d: %w", i, err)
		}

		labelPos, err := base.PositionOf(source.QueryLabel)
		if err != nil {
			return nil, fmt.Errorf("base %d: %w", i, err)
		}
		pairs = append(pairs, Pair{
			Base:      base.Prompt(),
			Source:    source.Prompt(),
			Label:     base.Segments[labelPos].Object,
			BasePos:   basePos,
			SourcePos: srcPos,
		})
	}

	record("query_label_from_base", len(pairs), start)
	return pairs, nil
}
