package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"boxtrace/internal/align"
	"boxtrace/internal/config"
	"boxtrace/internal/editors"
	"boxtrace/internal/logger"
	"boxtrace/internal/metrics"
	"boxtrace/internal/results"
	"boxtrace/internal/template"
	"boxtrace/internal/tokenize"
)

var (
	datafile    = flag.String("datafile", "", "Path to template sentence JSONL dataset")
	objectfile  = flag.String("objectfile", "", "Path to object vocabulary file (object_name column)")
	editorName  = flag.String("editor", "position_only", "Prompt editor to run")
	samples     = flag.Int("samples", 100, "Number of examples to generate")
	batchSize   = flag.Int("batch-size", 100, "Examples tokenized and padded together")
	numBoxes    = flag.Int("boxes", 7, "Boxes per sentence (block size)")
	seed        = flag.Int64("seed", 42, "Random seed")
	arch        = flag.String("arch", "llama", "Model architecture, selects the tokenizer convention")
	out         = flag.String("out", "results.arrow", "Output Arrow IPC path")
	flightAddr  = flag.String("flight-addr", "", "Optional Arrow Flight collector host:port")
	runName     = flag.String("run", "boxtrace", "Run name used in Flight descriptors")
	metricsAddr = flag.String("metrics", "", "Address to serve Prometheus metrics (empty disables)")
	logLevel    = flag.String("log-level", "INFO", "DEBUG, INFO, WARN or ERROR")
	logFormat   = flag.String("log-format", "console", "console or json")
)

func main() {
	flag.Parse()
	logger.Setup(*logLevel, *logFormat)

	cfg := config.Config{
		Datafile:     *datafile,
		ObjectFile:   *objectfile,
		Editor:       *editorName,
		Samples:      *samples,
		BatchSize:    *batchSize,
		NumBoxes:     *numBoxes,
		Seed:         *seed,
		Architecture: *arch,
		Layer:        0,
		TopK:         10,
		OutPath:      *out,
		FlightAddr:   *flightAddr,
		RunName:      *runName,
		LogLevel:     *logLevel,
		LogFormat:    *logFormat,
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	if *metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			log.Printf("Metrics serving on %s/metrics", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	if err := run(cfg); err != nil {
		logger.Log.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ds, err := template.LoadDataset(cfg.Datafile)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	logger.Log.Info("dataset loaded", "sentences", len(ds.Sentences), "path", cfg.Datafile)

	var vocab *template.Vocabulary
	if cfg.ObjectFile != "" {
		vocab, err = template.LoadVocabulary(cfg.ObjectFile)
		if err != nil {
			return fmt.Errorf("load vocabulary: %w", err)
		}
		logger.Log.Info("vocabulary loaded", "objects", len(vocab.Objects))
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	if cfg.Editor == "mean_ablation" {
		prompts, err := editors.MeanAblationSamples(ds, cfg.Samples, cfg.NumBoxes, rng)
		if err != nil {
			return err
		}
		if err := os.WriteFile(cfg.OutPath, []byte(strings.Join(prompts, "\n")+"\n"), 0o644); err != nil {
			return fmt.Errorf("write prompts: %w", err)
		}
		logger.Log.Info("mean-ablation prompts written", "count", len(prompts), "out", cfg.OutPath)
		return nil
	}

	pairs, err := runEditor(cfg, ds, vocab, rng)
	if err != nil {
		return fmt.Errorf("editor %s: %w", cfg.Editor, err)
	}

	conv, err := tokenize.ConventionForArchitecture(cfg.Architecture)
	if err != nil {
		return err
	}
	enc := tokenize.NewWordTokenizer(conv.ContentOffset > 0)

	set, err := align.BuildAlignedBatched(enc, conv, pairs, cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("align: %w", err)
	}
	if err := results.WriteAlignedIPC(cfg.OutPath, set); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if cfg.FlightAddr != "" {
		if err := publish(cfg, set); err != nil {
			return fmt.Errorf("flight publish: %w", err)
		}
	}

	logger.Log.Info("run complete",
		"editor", cfg.Editor,
		"pairs", set.Len(),
		"total_pairs", metrics.TotalPairs(),
		"out", cfg.OutPath)
	return nil
}

func publish(cfg config.Config, set *align.AlignedSet) error {
	pub := results.NewFlightPublisher(cfg.FlightAddr)
	ctx := context.Background()
	if err := pub.Connect(ctx); err != nil {
		return err
	}
	defer pub.Close()

	rec, err := results.AlignedRecord(set)
	if err != nil {
		return err
	}
	defer rec.Release()
	return pub.PublishRecord(ctx, []string{cfg.RunName, cfg.Editor}, rec)
}

func runEditor(cfg config.Config, ds *template.Dataset, vocab *template.Vocabulary, rng *rand.Rand) ([]editors.Pair, error) {
	needsVocab := func() (*template.Vocabulary, error) {
		if vocab == nil {
			return nil, fmt.Errorf("editor %s needs -objectfile", cfg.Editor)
		}
		return vocab, nil
	}

	n := cfg.Samples
	switch cfg.Editor {
	case "relabel_digits":
		return editors.RelabelDigits(ds, n)
	case "rotate_segments":
		return editors.RotateSegments(ds, n, cfg.NumBoxes)
	case "negate_containment":
		return editors.NegateContainment(ds, n, rng)
	case "insert_boxes_before_segment":
		return editors.InsertBoxesBeforeSegment(ds, n, rng)
	case "append_raw_text":
		return editors.AppendRawText(ds, n, rng)
	case "prepend_raw_text":
		return editors.PrependRawText(ds, n, rng)
	case "append_segment":
		return editors.AppendSegment(ds, n, rng)
	case "prepend_segment":
		return editors.PrependSegment(ds, n, rng)
	case "insert_tokens_between":
		return editors.InsertTokensBetween(ds, n, rng)
	case "reorder_box_and_object":
		return editors.ReorderBoxAndObject(ds, n, rng)
	case "add_comma_after_object":
		return editors.AddCommaAfterObject(ds, n, rng)
	case "remove_commas":
		return editors.RemoveCommas(ds, n, rng)
	case "position_only":
		return editors.PositionOnly(ds, n, rng)
	case "shift_query_index":
		return editors.ShiftQueryIndex(ds, n, cfg.NumBoxes, rng)
	case "query_label_from_base":
		return editors.QueryLabelFromBase(ds, n, rng)
	case "source_object_at_position":
		return editors.SourceObjectAtPosition(ds, n, rng)
	case "substitute_object":
		v, err := needsVocab()
		if err != nil {
			return nil, err
		}
		return editors.SubstituteObject(ds, n, v, rng, false)
	case "substitute_object_fewshot":
		v, err := needsVocab()
		if err != nil {
			return nil, err
		}
		return editors.SubstituteObject(ds, n, v, rng, true)
	case "random_query_label":
		return editors.RandomQueryLabel(ds, n, cfg.NumBoxes, rng)
	case "relabel_contents":
		v, err := needsVocab()
		if err != nil {
			return nil, err
		}
		return editors.RelabelContents(ds, n, cfg.NumBoxes, v, rng)
	case "replace_answer_object":
		v, err := needsVocab()
		if err != nil {
			return nil, err
		}
		return editors.ReplaceAnswerObject(ds, n, cfg.NumBoxes, v, rng)
	case "strip_determiners":
		return editors.StripDeterminers(ds, n, cfg.NumBoxes, rng)
	}
	return nil, fmt.Errorf("unknown editor %q", cfg.Editor)
}
