// Package jobs generates batch scheduler scripts for seed-swept experiment
// runs: one script per unique random seed, each with its own results
// directory and a driver invocation appended to a shared shell template.
package jobs

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"boxtrace/internal/logger"
)

// seedLimit bounds the random seed draw; seeds are unique within a batch.
const seedLimit = 100

type Spec struct {
	Datafile     string
	ModelName    string
	ResultsRoot  string
	BatchSize    int
	NumSamples   int
	JobCount     int
	TemplatePath string
}

func (s Spec) Validate() error {
	if s.Datafile == "" {
		return fmt.Errorf("datafile is required")
	}
	if s.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	if s.ResultsRoot == "" {
		return fmt.Errorf("results root is required")
	}
	if s.TemplatePath == "" {
		return fmt.Errorf("template path is required")
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("invalid batch size: %d (must be positive)", s.BatchSize)
	}
	if s.NumSamples <= 0 {
		return fmt.Errorf("invalid num samples: %d (must be positive)", s.NumSamples)
	}
	if s.JobCount <= 0 || s.JobCount > seedLimit {
		return fmt.Errorf("invalid job count: %d (must be in 1..%d)", s.JobCount, seedLimit)
	}
	return nil
}

// Job is one generated script with its seed and results directory.
type Job struct {
	Seed       int
	ScriptPath string
	ResultsDir string
}

// Generate writes JobCount scripts under ResultsRoot, each the template plus
// one driver invocation with a unique seed. Seeds are drawn from the injected
// rng; duplicates are redrawn, which always terminates because JobCount never
// exceeds the seed space.
func Generate(spec Spec, rng *rand.Rand) ([]Job, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	template, err := os.ReadFile(spec.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	if err := os.MkdirAll(spec.ResultsRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create results root: %w", err)
	}

	seen := make(map[int]bool, spec.JobCount)
	jobs := make([]Job, 0, spec.JobCount)
	for len(jobs) < spec.JobCount {
		seed := rng.Intn(seedLimit)
		if seen[seed] {
			continue
		}
		seen[seed] = true

		resultsDir := filepath.Join(spec.ResultsRoot, fmt.Sprintf("%d", seed))
		if err := os.MkdirAll(resultsDir, 0o755); err != nil {
			return nil, fmt.Errorf("create results dir for seed %d: %w", seed, err)
		}

		script := buildScript(string(template), spec, seed, resultsDir)
		scriptPath := filepath.Join(spec.ResultsRoot, fmt.Sprintf("seed_%d.sh", seed))
		if err := os.WriteFile(scriptPath, []byte(script), 0o755); err != nil {
			return nil, fmt.Errorf("write script for seed %d: %w", seed, err)
		}

		jobs = append(jobs, Job{Seed: seed, ScriptPath: scriptPath, ResultsDir: resultsDir})
	}

	logger.Log.Info("generated job scripts", "count", len(jobs), "root", spec.ResultsRoot)
	return jobs, nil
}

func buildScript(template string, spec Spec, seed int, resultsDir string) string {
	cmd := fmt.Sprintf(
		"boxtrace -datafile=%q -arch=%q -samples=%d -batch-size=%d -seed=%d -out=%q",
		spec.Datafile, spec.ModelName, spec.NumSamples, spec.BatchSize, seed,
		filepath.Join(resultsDir, "results.arrow"),
	)

	var b strings.Builder
	b.WriteString(template)
	if !strings.HasSuffix(template, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(cmd)
	b.WriteString("\n")
	return b.String()
}

// SubmitCommand renders the scheduler invocation for one generated script.
func SubmitCommand(scriptPath string) string {
	return fmt.Sprintf("sbatch --gpus=1 --time=48:00:00 %s", scriptPath)
}
