// Package model defines the boundary to the transformer being probed. The
// toolkit consumes this contract; the concrete weights and kernels live behind
// it, so analysis code never depends on a particular runtime.
package model

import (
	"context"
	"fmt"
)

// Config is the static shape of the probed model.
type Config struct {
	Layers     int
	Heads      int
	HiddenSize int
	HeadDim    int
	VocabSize  int
}

func (c Config) Validate() error {
	if c.Layers <= 0 || c.Heads <= 0 || c.HiddenSize <= 0 || c.VocabSize <= 0 {
		return fmt.Errorf("non-positive model dimensions: %+v", c)
	}
	if c.HeadDim*c.Heads != c.HiddenSize {
		return fmt.Errorf("head_dim %d * heads %d != hidden %d", c.HeadDim, c.Heads, c.HiddenSize)
	}
	return nil
}

// Model is the forward-pass surface the toolkit needs. Calls are blocking and
// take a context so a hardware-backed port can honor cancellation.
type Model interface {
	Config() Config

	// Forward runs the batch and returns logits, [batch][seq][vocab].
	Forward(ctx context.Context, ids [][]int) ([][][]float32, error)

	// Capture runs the batch with hooks on the named projections and returns
	// their outputs, [batch*seq][dim] per name, flattened row-major.
	Capture(ctx context.Context, ids [][]int, names []string) (map[string][][]float32, error)

	// RotaryTables returns the cos and sin position tables the model applies
	// to queries and keys, [seqLen][headDim].
	RotaryTables(seqLen int) (cos, sin [][]float32)
}

// ProjectionName renders the hook name of one attention projection.
func ProjectionName(layer int, proj string) string {
	return fmt.Sprintf("layers.%d.attn.%s", layer, proj)
}

// ProjectionNames lists the q/k/v hook names for every layer, the full-model
// capture set. Callers wanting a single layer slice the result or build names
// directly with ProjectionName.
func ProjectionNames(layers int) []string {
	names := make([]string, 0, layers*3)
	for l := 0; l < layers; l++ {
		for _, p := range []string{"q", "k", "v"} {
			names = append(names, ProjectionName(l, p))
		}
	}
	return names
}
