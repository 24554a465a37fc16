package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"boxtrace/internal/jobs"
	"boxtrace/internal/logger"
)

var (
	datafile    = flag.String("datafile", "", "Path to template sentence JSONL dataset")
	modelName   = flag.String("model", "goat", "Model name passed to the driver")
	resultsRoot = flag.String("results-root", "", "Directory receiving job scripts and per-seed results")
	batchSize   = flag.Int("batch-size", 100, "Driver batch size")
	numSamples  = flag.Int("samples", 100, "Driver sample count")
	jobCount    = flag.Int("jobs", 20, "Number of seed-swept jobs to generate")
	template    = flag.String("template", "template.sh", "Shell template prefixed to every job script")
	seed        = flag.Int64("seed", 0, "Seed for the seed draw itself")
	logLevel    = flag.String("log-level", "INFO", "DEBUG, INFO, WARN or ERROR")
)

func main() {
	flag.Parse()
	logger.Setup(*logLevel, "console")

	spec := jobs.Spec{
		Datafile:     *datafile,
		ModelName:    *modelName,
		ResultsRoot:  *resultsRoot,
		BatchSize:    *batchSize,
		NumSamples:   *numSamples,
		JobCount:     *jobCount,
		TemplatePath: *template,
	}

	generated, err := jobs.Generate(spec, rand.New(rand.NewSource(*seed)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	for _, j := range generated {
		fmt.Println(jobs.SubmitCommand(j.ScriptPath))
	}
	logger.Log.Info("job scripts ready", "count", len(generated), "root", spec.ResultsRoot)
}
