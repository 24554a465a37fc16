package template

import (
	"fmt"
	"strings"
)

// Grammar: "<det> <object> is in Box <label>, ... . Box <label> contains <answer>."
// The determiner is optional; the alternate dataset format drops it and
// capitalizes the first object ("Watch is in Box 0, ...").

var (
	ErrLabelNotFound  = fmt.Errorf("query label not found in context")
	ErrDuplicateLabel = fmt.Errorf("duplicate box label in context")
)

// Segment is one context clause. Edited segments that leave the grammar
// (negation, spliced clauses, reordered phrasing) carry their full text in raw
// and keep the structured fields for lookup.
type Segment struct {
	Det    string
	Object string
	Label  string

	raw string
}

// Text serializes the segment. The raw override wins when present.
func (s Segment) Text() string {
	if s.raw != "" {
		return s.raw
	}
	if s.Det == "" {
		return fmt.Sprintf("%s is in Box %s", s.Object, s.Label)
	}
	return fmt.Sprintf("%s %s is in Box %s", s.Det, s.Object, s.Label)
}

// WithRaw returns a copy whose serialization is the given literal text.
func (s Segment) WithRaw(text string) Segment {
	s.raw = text
	return s
}

// Sentence is a parsed template sentence. Edits never mutate a Sentence in
// place; Clone first.
type Sentence struct {
	Segments   []Segment
	QueryLabel string
	Answer     string
}

// ParseSentence splits a raw dataset line into structured segments. It
// validates the single-match invariant: the query label must occur in exactly
// one context segment, as a whole label token.
func ParseSentence(raw string) (Sentence, error) {
	raw = strings.TrimSpace(raw)
	cut := strings.LastIndex(raw, ". ")
	if cut < 0 {
		return Sentence{}, fmt.Errorf("no query clause in %q", raw)
	}
	context, query := raw[:cut], raw[cut+2:]

	queryWords := strings.Split(strings.TrimSuffix(query, "."), " ")
	if len(queryWords) < 3 || queryWords[0] != "Box" || queryWords[2] != "contains" {
		return Sentence{}, fmt.Errorf("malformed query %q", query)
	}
	sent := Sentence{QueryLabel: queryWords[1]}
	if len(queryWords) > 3 {
		sent.Answer = queryWords[len(queryWords)-1]
	}

	for _, clause := range strings.Split(context, ", ") {
		seg, err := parseSegment(clause)
		if err != nil {
			return Sentence{}, err
		}
		sent.Segments = append(sent.Segments, seg)
	}

	if _, err := sent.QueryPosition(); err != nil {
		return Sentence{}, err
	}
	return sent, nil
}

func parseSegment(clause string) (Segment, error) {
	words := strings.Split(clause, " ")
	// Minimum form: "<object> is in Box <label>"
	if len(words) < 5 {
		return Segment{}, fmt.Errorf("malformed segment %q", clause)
	}
	n := len(words)
	if words[n-2] != "Box" || words[n-3] != "in" || words[n-4] != "is" {
		return Segment{}, fmt.Errorf("malformed segment %q", clause)
	}
	seg := Segment{
		Label:  words[n-1],
		Object: words[n-5],
		Det:    strings.Join(words[:n-5], " "),
	}
	return seg, nil
}

// QueryPosition resolves the 0-based box slot whose label matches the query
// label. Whole-token match on the parsed label field, never substring.
func (s Sentence) QueryPosition() (int, error) {
	pos := -1
	for i, seg := range s.Segments {
		if seg.Label == s.QueryLabel {
			if pos >= 0 {
				return -1, fmt.Errorf("%w: %q", ErrDuplicateLabel, s.QueryLabel)
			}
			pos = i
		}
	}
	if pos < 0 {
		return -1, fmt.Errorf("%w: %q", ErrLabelNotFound, s.QueryLabel)
	}
	return pos, nil
}

// PositionOf resolves the slot of an arbitrary label, for cross-sentence
// lookups where a source query label is matched against base segments.
func (s Sentence) PositionOf(label string) (int, error) {
	for i, seg := range s.Segments {
		if seg.Label == label {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrLabelNotFound, label)
}

// Context serializes the comma-separated segment list.
func (s Sentence) Context() string {
	parts := make([]string, len(s.Segments))
	for i, seg := range s.Segments {
		parts[i] = seg.Text()
	}
	return strings.Join(parts, ", ")
}

// Query serializes the query clause without the answer token.
func (s Sentence) Query() string {
	return fmt.Sprintf("Box %s contains", s.QueryLabel)
}

// Prompt is the model input: context plus query, no answer.
func (s Sentence) Prompt() string {
	return s.Context() + ". " + s.Query()
}

// Full reconstructs the training-style line with the ground-truth answer.
func (s Sentence) Full() string {
	return s.Prompt() + " " + s.Answer + "."
}

// Labels returns the box labels in slot order.
func (s Sentence) Labels() []string {
	out := make([]string, len(s.Segments))
	for i, seg := range s.Segments {
		out[i] = seg.Label
	}
	return out
}

// Objects returns the contained objects in slot order.
func (s Sentence) Objects() []string {
	out := make([]string, len(s.Segments))
	for i, seg := range s.Segments {
		out[i] = seg.Object
	}
	return out
}

// Clone deep-copies the segment list so edits cannot alias the dataset.
func (s Sentence) Clone() Sentence {
	segs := make([]Segment, len(s.Segments))
	copy(segs, s.Segments)
	s.Segments = segs
	return s
}
