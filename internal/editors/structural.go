package editors

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"boxtrace/internal/template"
)

// primingExamples precede the prompt in few-shot mode, matching the alternate
// dataset format.
const primingExamples = "Watch is in Box 0, nothing is in Box 1, bottle is in Box 2. Box 2 contains bottle.\n Wire is in Box 0, biscotti is in Box 1, camera is in Box 2. Box 1 contains biscotti.\n Nothing is in Box 0, tetrapod is in Box 1, incense is in Box 2. Box 0 contains nothing.\n "

// SubstituteObject replaces the queried segment's object with a random
// vocabulary object. The substitution is capitalized when it lands at the
// start of the sentence (bare-object format). The pair also carries the
// expected object lexemes per slot, before and after the edit.
func SubstituteObject(ds *template.Dataset, n int, vocab *template.Vocabulary, rng *rand.Rand, fewShot bool) ([]Pair, error) {
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

		replacement := vocab.Pick(rng)
		oldObject := base.Segments[basePos].Object

		edited := base.Clone()
		seg := edited.Segments[basePos]
		// Sentence-initial bare objects carry the capital letter themselves.
		if basePos == 0 && seg.Det == "" {
			seg.Object = upperFirst(replacement)
		} else {
			seg.Object = replacement
		}
		edited.Segments[basePos] = seg

		baseObjects := make([]string, len(base.Segments))
		sourceObjects := make([]string, len(base.Segments))
		for s, sg := range base.Segments {
			baseObjects[s] = strings.ToLower(sg.Object)
			if sg.Object == oldObject {
				sourceObjects[s] = strings.ToLower(replacement)
			} else {
				sourceObjects[s] = strings.ToLower(sg.Object)
			}
		}

		basePrompt := base.Prompt()
		sourcePrompt := edited.Prompt()
		if fewShot {
			basePrompt = primingExamples + basePrompt
			sourcePrompt = primingExamples + sourcePrompt
		}

		pairs = append(pairs, Pair{
			Base:          basePrompt,
			Source:        sourcePrompt,
			Label:         strings.ToLower(replacement),
			BasePos:       basePos,
			SourcePos:     basePos,
			BaseObjects:   baseObjects,
			SourceObjects: sourceObjects,
		})
	}

	record("substitute_object", len(pairs), start)
	return pairs, nil
}

// insertSecondObject splices "<word> and" after the leading word of a segment
// and fixes number agreement, so the box is described as holding two objects.
func insertSecondObject(seg template.Segment, word string) template.Segment {
	fields := strings.Fields(seg.Text())
	text := fields[0] + " " + word + " and " + strings.Join(fields[1:], " ")
	return seg.WithRaw(strings.Replace(text, " is", " are", 1))
}

// RandomQueryLabel builds position-fetcher pairs block by block: the base
// gains a second object ("apple and ... are") in its queried segments and a
// random uppercase query label with no referent; the source, drawn from a
// random block at the same offset, gains "bottle and" the same way. The label
// stays the base's original answer.
func RandomQueryLabel(ds *template.Dataset, n, numBoxes int, rng *rand.Rand) ([]Pair, error) {
	start := time.Now()
	if err := ds.Require(n); err != nil {
		return nil, err
	}
	if numBoxes <= 0 {
		return nil, fmt.Errorf("numBoxes must be positive, got %d", numBoxes)
	}
	blocks := n / numBoxes
	if blocks == 0 {
		return nil, fmt.Errorf("%w: want at least one block of %d", template.ErrInsufficientData, numBoxes)
	}

	pairs := make([]Pair, 0, n)
	for i := 0; i+numBoxes <= n; i += numBoxes {
		for j := 0; j < numBoxes; j++ {
			base := ds.Sentences[i+j]
			basePos, err := base.QueryPosition()
			if err != nil {
				return nil, fmt.Errorf("base %d: %w", i+j, err)
			}

			srcIdx := rng.Intn(blocks)*numBoxes + j%numBoxes
			source := ds.Sentences[srcIdx]
			srcPos, err := source.QueryPosition()
			if err != nil {
				return nil, fmt.Errorf("source %d: %w", srcIdx, err)
			}

			editedSrc := source.Clone()
			for s, sg := range editedSrc.Segments {
				if sg.Label == source.QueryLabel {
					editedSrc.Segments[s] = insertSecondObject(sg, "bottle")
				}
			}
			editedSrc.Segments[0] = editedSrc.Segments[0].WithRaw(upperFirst(editedSrc.Segments[0].Text()))

			editedBase := base.Clone()
			for s, sg := range editedBase.Segments {
				if sg.Label == base.QueryLabel {
					editedBase.Segments[s] = insertSecondObject(sg, "apple")
				}
			}
			randomLabel := randomUpperLabel(rng)

			pairs = append(pairs, Pair{
				Base:      editedBase.Context() + ". Box " + randomLabel + " contains",
				Source:    editedSrc.Prompt(),
				Label:     base.Answer,
				BasePos:   basePos,
				SourcePos: srcPos,
			})
		}
	}

	record("random_query_label", len(pairs), start)
	return pairs, nil
}

// RelabelContents scrambles the source's label bindings: every non-queried
// segment has its box label overwritten with a distinct random object word,
// and the queried segment loses the "Box <label>" phrase entirely. The query
// clause is truncated to "The Box <label>" so the label token sits at the
// final position. The counterfactual answer is the source's original answer.
func RelabelContents(ds *template.Dataset, n, numBoxes int, vocab *template.Vocabulary, rng *rand.Rand) ([]Pair, error) {
	start := time.Now()
	if err := ds.Require(n); err != nil {
		return nil, err
	}
	if numBoxes <= 0 {
		return nil, fmt.Errorf("numBoxes must be positive, got %d", numBoxes)
	}

	pairs := make([]Pair, 0, n)
	for i := 0; i+numBoxes <= n; i += numBoxes {
		for j := 0; j < numBoxes; j++ {
			base := ds.Sentences[i+j]
			basePos, err := base.QueryPosition()
			if err != nil {
				return nil, fmt.Errorf("base %d: %w", i+j, err)
			}

			source := ds.Sentences[i+(j+1)%numBoxes]
			srcPos, err := source.QueryPosition()
			if err != nil {
				return nil, fmt.Errorf("source %d: %w", i+(j+1)%numBoxes, err)
			}

			randomObjects, err := vocab.PickDistinct(rng, len(source.Segments))
			if err != nil {
				return nil, err
			}

			edited := source.Clone()
			for s, sg := range edited.Segments {
				det := sg.Det
				if det != "" {
					det += " "
				}
				if sg.Label == source.QueryLabel {
					edited.Segments[s] = sg.WithRaw(fmt.Sprintf("%s%s is in %s", det, sg.Object, randomObjects[s]))
				} else {
					edited.Segments[s] = sg.WithRaw(fmt.Sprintf("%s%s is in Box %s", det, sg.Object, randomObjects[s]))
				}
			}

			pairs = append(pairs, Pair{
				Base:      base.Prompt(),
				Source:    edited.Context() + ". The Box " + source.QueryLabel,
				Label:     source.Answer,
				BasePos:   basePos,
				SourcePos: srcPos,
			})
		}
	}

	record("relabel_contents", len(pairs), start)
	return pairs, nil
}

// ReplaceAnswerObject swaps the queried segment's object for one random
// vocabulary object; the counterfactual answer is that object.
func ReplaceAnswerObject(ds *template.Dataset, n, numBoxes int, vocab *template.Vocabulary, rng *rand.Rand) ([]Pair, error) {
	start := time.Now()
	if err := ds.Require(n); err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, n)
	for i := 0; i+numBoxes <= n; i += numBoxes {
		for j := 0; j < numBoxes; j++ {
			base := ds.Sentences[i+j]
			basePos, err := base.QueryPosition()
			if err != nil {
				return nil, fmt.Errorf("base %d: %w", i+j, err)
			}

			replacement := vocab.Pick(rng)
			edited := base.Clone()
			seg := edited.Segments[basePos]
			seg.Object = replacement
			edited.Segments[basePos] = seg

			pairs = append(pairs, Pair{
				Base:      base.Prompt(),
				Source:    edited.Prompt(),
				Label:     replacement,
				BasePos:   basePos,
				SourcePos: basePos,
			})
		}
	}

	record("replace_answer_object", len(pairs), start)
	return pairs, nil
}

// StripDeterminers pairs each base with a cross-block source whose surface
// form is perturbed: determiners removed, or the containment phrase lengthened
// when the dataset has no determiners to strip. The counterfactual answer is
// the source's own answer.
func StripDeterminers(ds *template.Dataset, n, numBoxes int, rng *rand.Rand) ([]Pair, error) {
	start := time.Now()
	if err := ds.Require(n); err != nil {
		return nil, err
	}
	if numBoxes <= 0 {
		return nil, fmt.Errorf("numBoxes must be positive, got %d", numBoxes)
	}
	blocks := n / numBoxes
	if blocks == 0 {
		return nil, fmt.Errorf("%w: want at least one block of %d", template.ErrInsufficientData, numBoxes)
	}

	pairs := make([]Pair, 0, n)
	for i := 0; i+numBoxes <= n; i += numBoxes {
		for j := 0; j < numBoxes; j++ {
			base := ds.Sentences[i+j]
			basePos, err := base.QueryPosition()
			if err != nil {
				return nil, fmt.Errorf("base %d: %w", i+j, err)
			}

			srcIdx := rng.Intn(blocks)*numBoxes + (j+1)%numBoxes
			source := ds.Sentences[srcIdx]
			srcPos, err := source.QueryPosition()
			if err != nil {
				return nil, fmt.Errorf("source %d: %w", srcIdx, err)
			}

			prompt := source.Prompt()
			if strings.Contains(prompt, " the ") || strings.Contains(prompt, "The ") {
				prompt = strings.ReplaceAll(prompt, " the", "")
			} else {
				prompt = strings.ReplaceAll(prompt, " in", " contained in")
			}

			pairs = append(pairs, Pair{
				Base:      base.Prompt(),
				Source:    prompt,
				Label:     source.Answer,
				BasePos:   basePos,
				SourcePos: srcPos,
			})
		}
	}

	record("strip_determiners", len(pairs), start)
	return pairs, nil
}

// MeanAblationSamples returns one prompt per block with a random, usually
// referent-free, uppercase query label. These feed mean-ablation runs and
// carry no counterfactual labels.
func MeanAblationSamples(ds *template.Dataset, n, numBoxes int, rng *rand.Rand) ([]string, error) {
	if err := ds.Require(n); err != nil {
		return nil, err
	}
	if numBoxes <= 0 {
		return nil, fmt.Errorf("numBoxes must be positive, got %d", numBoxes)
	}

	prompts := make([]string, 0, n/numBoxes+1)
	for i := 0; i < n; i += numBoxes {
		sent := ds.Sentences[i]
		prompts = append(prompts, sent.Context()+". Box "+randomUpperLabel(rng)+" contains")
	}
	return prompts, nil
}
