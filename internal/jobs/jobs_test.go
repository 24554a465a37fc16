package jobs

import (
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func testSpec(t *testing.T) Spec {
	t.Helper()
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "template.sh")
	if err := os.WriteFile(templatePath, []byte("#!/bin/bash\nmodule load cuda\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Spec{
		Datafile:     "/data/dataset.jsonl",
		ModelName:    "goat",
		ResultsRoot:  filepath.Join(dir, "runs"),
		BatchSize:    100,
		NumSamples:   100,
		JobCount:     5,
		TemplatePath: templatePath,
	}
}

func TestGenerate(t *testing.T) {
	spec := testSpec(t)
	jobs, err := Generate(spec, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != spec.JobCount {
		t.Fatalf("generated %d jobs, want %d", len(jobs), spec.JobCount)
	}

	seen := make(map[int]bool)
	for _, j := range jobs {
		if seen[j.Seed] {
			t.Errorf("duplicate seed %d", j.Seed)
		}
		seen[j.Seed] = true

		script, err := os.ReadFile(j.ScriptPath)
		if err != nil {
			t.Fatal(err)
		}
		text := string(script)
		if !strings.HasPrefix(text, "#!/bin/bash\n") {
			t.Errorf("seed %d: script does not start with the template", j.Seed)
		}
		if !strings.Contains(text, "-datafile=\"/data/dataset.jsonl\"") {
			t.Errorf("seed %d: script lacks datafile flag:\n%s", j.Seed, text)
		}
		if !strings.Contains(text, "-seed="+strconv.Itoa(j.Seed)) {
			t.Errorf("seed %d: script lacks its seed", j.Seed)
		}
		if !strings.Contains(text, "-batch-size=100") {
			t.Errorf("seed %d: script lacks batch size:\n%s", j.Seed, text)
		}
		// Every flag in the script must be one the driver defines.
		if strings.Contains(text, "-circuit-root") {
			t.Errorf("seed %d: script carries a flag the driver does not define", j.Seed)
		}
		if _, err := os.Stat(j.ResultsDir); err != nil {
			t.Errorf("seed %d: results dir missing: %v", j.Seed, err)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	spec := testSpec(t)
	a, err := Generate(spec, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(spec, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i].Seed != b[i].Seed {
			t.Fatalf("seed sequences differ: %v vs %v", a, b)
		}
	}
}

func TestGenerateValidation(t *testing.T) {
	spec := testSpec(t)
	spec.JobCount = seedLimit + 1
	if _, err := Generate(spec, rand.New(rand.NewSource(1))); err == nil {
		t.Error("job count past the seed space accepted")
	}

	spec = testSpec(t)
	spec.TemplatePath = filepath.Join(t.TempDir(), "missing.sh")
	if _, err := Generate(spec, rand.New(rand.NewSource(1))); err == nil {
		t.Error("missing template accepted")
	}
}

func TestSubmitCommand(t *testing.T) {
	got := SubmitCommand("/jobs/seed_42.sh")
	want := "sbatch --gpus=1 --time=48:00:00 /jobs/seed_42.sh"
	if got != want {
		t.Errorf("SubmitCommand = %q, want %q", got, want)
	}
}
