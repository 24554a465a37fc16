package template

import (
	"errors"
	"testing"
)

const sampleLine = "The watch is in Box A, the pen is in Box B, the cup is in Box C. Box B contains pen."

func TestParseSentence(t *testing.T) {
	sent, err := ParseSentence(sampleLine)
	if err != nil {
		t.Fatalf("ParseSentence: %v", err)
	}

	if got := sent.Prompt(); got != "The watch is in Box A, the pen is in Box B, the cup is in Box C. Box B contains" {
		t.Errorf("Prompt() = %q", got)
	}
	if sent.Answer != "pen" {
		t.Errorf("Answer = %q, want pen", sent.Answer)
	}
	pos, err := sent.QueryPosition()
	if err != nil {
		t.Fatalf("QueryPosition: %v", err)
	}
	if pos != 1 {
		t.Errorf("QueryPosition = %d, want 1", pos)
	}
	if got := sent.Full(); got != sampleLine {
		t.Errorf("Full() round-trip = %q", got)
	}
}

func TestParseSentenceAltFormat(t *testing.T) {
	sent, err := ParseSentence("Watch is in Box 0, nothing is in Box 1, bottle is in Box 2. Box 2 contains bottle.")
	if err != nil {
		t.Fatalf("ParseSentence: %v", err)
	}
	if sent.Segments[0].Det != "" || sent.Segments[0].Object != "Watch" {
		t.Errorf("first segment = %+v, want bare capitalized object", sent.Segments[0])
	}
	if sent.Segments[1].Object != "nothing" {
		t.Errorf("second object = %q, want nothing", sent.Segments[1].Object)
	}
	pos, err := sent.QueryPosition()
	if err != nil || pos != 2 {
		t.Errorf("QueryPosition = %d, %v, want 2", pos, err)
	}
}

func TestQueryPositionWholeToken(t *testing.T) {
	// Label "A" must not match a segment holding label "AA".
	sent := Sentence{
		Segments: []Segment{
			{Det: "the", Object: "watch", Label: "AA"},
			{Det: "the", Object: "pen", Label: "A"},
		},
		QueryLabel: "A",
	}
	pos, err := sent.QueryPosition()
	if err != nil {
		t.Fatalf("QueryPosition: %v", err)
	}
	if pos != 1 {
		t.Errorf("QueryPosition = %d, want 1 (whole-token match)", pos)
	}
}

func TestParseSentenceLabelMissing(t *testing.T) {
	_, err := ParseSentence("The watch is in Box A, the pen is in Box B. Box Z contains pen.")
	if !errors.Is(err, ErrLabelNotFound) {
		t.Errorf("err = %v, want ErrLabelNotFound", err)
	}
}

func TestParseSentenceDuplicateLabel(t *testing.T) {
	_, err := ParseSentence("The watch is in Box A, the pen is in Box A. Box A contains pen.")
	if !errors.Is(err, ErrDuplicateLabel) {
		t.Errorf("err = %v, want ErrDuplicateLabel", err)
	}
}

func TestParseSentenceMalformed(t *testing.T) {
	cases := []string{
		"",
		"no query here",
		"The watch is in Box A. wrong query shape.",
		"gibberish clause, the pen is in Box B. Box B contains pen.",
	}
	for _, raw := range cases {
		if _, err := ParseSentence(raw); err == nil {
			t.Errorf("ParseSentence(%q) succeeded, want error", raw)
		}
	}
}

func TestSegmentRawOverride(t *testing.T) {
	seg := Segment{Det: "the", Object: "pen", Label: "B"}
	edited := seg.WithRaw("the pen is not in Box B")
	if edited.Text() != "the pen is not in Box B" {
		t.Errorf("Text() = %q", edited.Text())
	}
	// Original untouched, structured fields survive on the copy.
	if seg.Text() != "the pen is in Box B" {
		t.Errorf("original mutated: %q", seg.Text())
	}
	if edited.Label != "B" {
		t.Errorf("edited label = %q", edited.Label)
	}
}

func TestCloneIsolation(t *testing.T) {
	sent, err := ParseSentence(sampleLine)
	if err != nil {
		t.Fatal(err)
	}
	clone := sent.Clone()
	clone.Segments[0].Object = "radio"
	if sent.Segments[0].Object != "watch" {
		t.Error("Clone aliased the segment slice")
	}
}
