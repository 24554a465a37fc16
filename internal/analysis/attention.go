// Package analysis holds the numeric utilities of the toolkit: attention
// probability extraction from captured projections, the per-example patching
// score, and top-k component ranking over score grids.
package analysis

import (
	"context"
	"fmt"
	"math"
	"time"

	"boxtrace/internal/metrics"
	"boxtrace/internal/model"
	"boxtrace/internal/tokenize"
)

// AttentionProbs recomputes the attention pattern of one layer from captured
// q/k projections: rotary embedding applied the way the model applies it,
// scaled dot product, strict upper-triangular causal mask, softmax over keys.
// Returns probabilities indexed [batch][head][query][key].
func AttentionProbs(ctx context.Context, m model.Model, batch tokenize.Batch, layer int) ([][][][]float32, error) {
	cfg := m.Config()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if layer < 0 || layer >= cfg.Layers {
		return nil, fmt.Errorf("layer %d out of range (model has %d)", layer, cfg.Layers)
	}
	if len(batch.InputIDs) == 0 {
		return nil, fmt.Errorf("empty batch")
	}
	seq := len(batch.InputIDs[0])

	start := time.Now()
	caps, err := m.Capture(ctx, batch.InputIDs, model.ProjectionNames(cfg.Layers))
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	metrics.RecordForward(time.Since(start))

	q, err := headSplit(caps, model.ProjectionName(layer, "q"), len(batch.InputIDs), seq, cfg)
	if err != nil {
		return nil, err
	}
	k, err := headSplit(caps, model.ProjectionName(layer, "k"), len(batch.InputIDs), seq, cfg)
	if err != nil {
		return nil, err
	}

	cos, sin := m.RotaryTables(seq)
	applyRotary(q, cos, sin)
	applyRotary(k, cos, sin)

	scale := float32(1.0 / math.Sqrt(float64(cfg.HeadDim)))
	probs := make([][][][]float32, len(q))
	for b := range q {
		probs[b] = make([][][]float32, cfg.Heads)
		for h := 0; h < cfg.Heads; h++ {
			rows := make([][]float32, seq)
			for i := 0; i < seq; i++ {
				row := make([]float32, seq)
				for j := 0; j < seq; j++ {
					if j > i {
						// Dtype minimum, matching the model's own mask fill.
						row[j] = -math.MaxFloat32
						continue
					}
					row[j] = dot(q[b][h][i], k[b][h][j]) * scale
				}
				softmax(row)
				rows[i] = row
			}
			probs[b][h] = rows
		}
	}
	return probs, nil
}

// headSplit reshapes a captured projection [batch*seq][hidden] into
// [batch][head][pos][headDim].
func headSplit(caps map[string][][]float32, name string, batch, seq int, cfg model.Config) ([][][][]float32, error) {
	flat, ok := caps[name]
	if !ok {
		return nil, fmt.Errorf("capture missing projection %q", name)
	}
	if len(flat) != batch*seq {
		return nil, fmt.Errorf("projection %q has %d rows, want %d", name, len(flat), batch*seq)
	}

	out := make([][][][]float32, batch)
	for b := 0; b < batch; b++ {
		out[b] = make([][][]float32, cfg.Heads)
		for h := 0; h < cfg.Heads; h++ {
			out[b][h] = make([][]float32, seq)
			for p := 0; p < seq; p++ {
				row := flat[b*seq+p]
				if len(row) != cfg.HiddenSize {
					return nil, fmt.Errorf("projection %q row has width %d, want %d", name, len(row), cfg.HiddenSize)
				}
				out[b][h][p] = row[h*cfg.HeadDim : (h+1)*cfg.HeadDim]
			}
		}
	}
	return out, nil
}

// applyRotary rotates every head vector in place using the rotate-half
// formulation: out = x*cos + rotateHalf(x)*sin, with
// rotateHalf(x) = concat(-x[d/2:], x[:d/2]).
func applyRotary(x [][][][]float32, cos, sin [][]float32) {
	for b := range x {
		for h := range x[b] {
			for p := range x[b][h] {
				vec := x[b][h][p]
				d := len(vec)
				half := d / 2
				rotated := make([]float32, d)
				for i := 0; i < half; i++ {
					rotated[i] = vec[i]*cos[p][i] - vec[i+half]*sin[p][i]
					rotated[i+half] = vec[i+half]*cos[p][i+half] + vec[i]*sin[p][i+half]
				}
				x[b][h][p] = rotated
			}
		}
	}
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	max := x[0]
	for _, v := range x {
		if v > max {
			max = v
		}
	}
	sum := float32(0.0)
	for i := range x {
		x[i] = float32(math.Exp(float64(x[i] - max)))
		sum += x[i]
	}
	if sum > 0 {
		invSum := float32(1.0) / sum
		for i := range x {
			x[i] *= invSum
		}
	}
}
