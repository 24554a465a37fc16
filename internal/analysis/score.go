package analysis

import (
	"fmt"
	"math"

	"boxtrace/internal/metrics"
)

// degenerateEps bounds the clean-minus-corrupted log-probability gap below
// which the normalized score is meaningless.
const degenerateEps = 1e-6

// Score is the patching outcome of a single example. Degenerate marks a
// near-zero baseline gap; Value is NaN in that case and is otherwise kept
// as computed, including values outside [0, 1].
type Score struct {
	Value      float64
	Degenerate bool
}

// PatchScore normalizes the patched run's log probability of the answer token
// between the corrupted (0) and clean (1) baselines:
// (patched − corrupted) / (clean − corrupted). Each argument is one logit row
// at the relevant output position.
func PatchScore(patched, clean, corrupted []float32, answer int) (Score, error) {
	for _, row := range [][]float32{patched, clean, corrupted} {
		if answer < 0 || answer >= len(row) {
			return Score{}, fmt.Errorf("answer id %d outside vocab of %d", answer, len(row))
		}
	}

	p := logSoftmaxAt(patched, answer)
	c := logSoftmaxAt(clean, answer)
	r := logSoftmaxAt(corrupted, answer)

	den := c - r
	if math.Abs(den) < degenerateEps {
		metrics.RecordPatchScore(math.NaN(), true)
		return Score{Value: math.NaN(), Degenerate: true}, nil
	}

	v := (p - r) / den
	metrics.RecordPatchScore(v, false)
	return Score{Value: v}, nil
}

// MeanScore averages the non-degenerate scores and reports how many were
// skipped. Aggregation is the caller's choice; this is the default the CLI
// uses.
func MeanScore(scores []Score) (mean float64, skipped int) {
	var sum float64
	n := 0
	for _, s := range scores {
		if s.Degenerate {
			skipped++
			continue
		}
		sum += s.Value
		n++
	}
	if n == 0 {
		return math.NaN(), skipped
	}
	return sum / float64(n), skipped
}

// logSoftmaxAt computes the log-softmax of one logit row at a single index
// without materializing the full distribution.
func logSoftmaxAt(logits []float32, idx int) float64 {
	max := float64(logits[0])
	for _, v := range logits {
		if float64(v) > max {
			max = float64(v)
		}
	}
	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v) - max)
	}
	return float64(logits[idx]) - max - math.Log(sum)
}
