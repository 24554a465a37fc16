// Package editors implements the counterfactual perturbation policies. Each
// editor pairs an unedited base prompt with an edited or substituted source
// prompt whose only controlled difference isolates one causal variable, and
// computes the answer lexeme the model should produce if that variable drives
// the output.
package editors

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"boxtrace/internal/metrics"
	"boxtrace/internal/template"
)

var ErrPoolExhausted = fmt.Errorf("rejection sampling exhausted candidate pool")

// Pair is one base/source example. Label is the counterfactual answer lexeme;
// token encoding is the caller's job (see tokenize.ContentToken).
type Pair struct {
	Base   string
	Source string
	Label  string

	BasePos   int
	SourcePos int

	// Expected object lexemes per box slot, set by editors that track them.
	BaseObjects   []string
	SourceObjects []string
}

// Example is a single prompt with its ground-truth answer, used by the
// aligner's block-wise samplers.
type Example struct {
	Prompt string
	Label  string
}

// Examples strips the answer token from the first n sentences.
func Examples(ds *template.Dataset, n int) ([]Example, error) {
	if err := ds.Require(n); err != nil {
		return nil, err
	}
	out := make([]Example, n)
	for i := 0; i < n; i++ {
		sent := ds.Sentences[i]
		out[i] = Example{Prompt: sent.Prompt(), Label: sent.Answer}
	}
	return out, nil
}

// drawSource rejection-samples a sentence from the first n dataset rows until
// accept holds. Candidates are drawn without replacement from a shuffled pool
// so the loop terminates on homogeneous data instead of spinning.
func drawSource(ds *template.Dataset, n int, rng *rand.Rand, accept func(template.Sentence, int) bool) (template.Sentence, int, error) {
	pool := rng.Perm(n)
	draws := 0
	for len(pool) > 0 {
		idx := pool[len(pool)-1]
		pool = pool[:len(pool)-1]
		draws++

		cand := ds.Sentences[idx]
		pos, err := cand.QueryPosition()
		if err != nil {
			return template.Sentence{}, 0, err
		}
		if accept(cand, pos) {
			metrics.RecordRejectionDraws(draws)
			return cand, pos, nil
		}
	}
	metrics.RecordRejectionExhausted()
	return template.Sentence{}, 0, ErrPoolExhausted
}

// drawDifferentPosition draws a source whose query resolves to a different box
// slot than the base's.
func drawDifferentPosition(ds *template.Dataset, n int, rng *rand.Rand, basePos int) (template.Sentence, int, error) {
	return drawSource(ds, n, rng, func(_ template.Sentence, pos int) bool {
		return pos != basePos
	})
}

// objectAt guards cross-sentence slot lookups: an edited source can resolve to
// a slot the base does not have when datasets of different widths are mixed.
func objectAt(sent template.Sentence, pos int) (string, error) {
	if pos < 0 || pos >= len(sent.Segments) {
		return "", fmt.Errorf("box position %d out of range (segments: %d)", pos, len(sent.Segments))
	}
	return sent.Segments[pos].Object, nil
}

func record(editor string, pairs int, start time.Time) {
	metrics.RecordEditor(editor, pairs, time.Since(start))
}

// sourceEdit is the shared loop for editors whose source is a
// different-position sentence run through a single transformation. The label
// is the base's object at the source position: the answer the model should
// give if it fetches contents by slot rather than by label.
func sourceEdit(name string, ds *template.Dataset, n int, rng *rand.Rand, edit func(template.Sentence, int) string) ([]Pair, error) {
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

		label, err := objectAt(base, srcPos)
		if err != nil {
			return nil, fmt.Errorf("base %d: %w", i, err)
		}

		pairs = append(pairs, Pair{
			Base:      base.Prompt(),
			Source:    edit(source.Clone(), srcPos),
			Label:     label,
			BasePos:   basePos,
			SourcePos: srcPos,
		})
	}

	record(name, len(pairs), start)
	return pairs, nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// capitalizeSegment recases a segment's leading word. Bare-object segments
// carry the sentence capital on the object itself.
func capitalizeSegment(seg template.Segment, recase func(string) string) template.Segment {
	if seg.Det == "" {
		seg.Object = recase(seg.Object)
	} else {
		seg.Det = recase(seg.Det)
	}
	return seg
}

// randomUpperLabel draws one uppercase ASCII letter, the label alphabet of the
// template grammar.
func randomUpperLabel(rng *rand.Rand) string {
	return string(rune('A' + rng.Intn(26)))
}
