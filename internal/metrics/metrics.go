package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var totalPairs atomic.Int64

var (
	ExamplePairsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boxtrace_example_pairs_total",
		Help: "Total number of base/source example pairs generated",
	}, []string{"editor"})

	EditorDuration = promauto.NewSummaryVec(prometheus.SummaryOpts{
		Name: "boxtrace_editor_duration_seconds",
		Help: "Duration of editor invocations",
	}, []string{"editor"})

	RejectionDraws = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boxtrace_rejection_draws",
		Help:    "Number of candidate draws per rejection-sampling loop",
		Buckets: []float64{1, 2, 3, 5, 10, 20, 50, 100},
	})

	RejectionExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxtrace_rejection_exhausted_total",
		Help: "Count of rejection-sampling loops that exhausted their candidate pool",
	})

	TokenizeBatchLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boxtrace_tokenize_batch_length",
		Help:    "Padded sequence length of tokenized batches",
		Buckets: []float64{16, 32, 64, 128, 256, 512, 1024, 2048},
	})

	TokenizeBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxtrace_tokenize_batches_total",
		Help: "Total number of batches tokenized",
	})

	ForwardDuration = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "boxtrace_forward_duration_seconds",
		Help: "Duration of model forward passes",
	})

	DegenerateScores = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxtrace_degenerate_scores_total",
		Help: "Count of patching scores with a near-zero baseline denominator",
	})

	UnstableScores = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxtrace_unstable_scores_total",
		Help: "Count of patching scores outside the [0, 1] range",
	})

	PatchScoreValue = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boxtrace_patch_score_value",
		Help:    "Distribution of per-example patching scores",
		Buckets: []float64{-1, -0.5, 0, 0.25, 0.5, 0.75, 1, 1.5, 2},
	})

	DataErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boxtrace_data_errors_total",
		Help: "Total number of dataset validation errors",
	}, []string{"kind"})

	GridsExported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxtrace_grids_exported_total",
		Help: "Total number of effect-score grids exported",
	})
)

func RecordEditor(editor string, pairs int, duration time.Duration) {
	ExamplePairsTotal.WithLabelValues(editor).Add(float64(pairs))
	totalPairs.Add(int64(pairs))
	EditorDuration.WithLabelValues(editor).Observe(duration.Seconds())
}

func RecordRejectionDraws(draws int) {
	RejectionDraws.Observe(float64(draws))
}

func RecordRejectionExhausted() {
	RejectionExhausted.Inc()
}

func RecordTokenizeBatch(paddedLen int) {
	TokenizeBatches.Inc()
	TokenizeBatchLength.Observe(float64(paddedLen))
}

func RecordForward(duration time.Duration) {
	ForwardDuration.Observe(duration.Seconds())
}

func RecordPatchScore(value float64, degenerate bool) {
	if degenerate {
		DegenerateScores.Inc()
		return
	}
	PatchScoreValue.Observe(value)
	if value < 0 || value > 1 {
		UnstableScores.Inc()
	}
}

func RecordDataError(kind string) {
	DataErrors.WithLabelValues(kind).Inc()
}

func RecordGridExport(count int) {
	GridsExported.Add(float64(count))
}

// TotalPairs reports the process-lifetime pair count, used by the CLI summary.
func TotalPairs() int64 {
	return totalPairs.Load()
}
