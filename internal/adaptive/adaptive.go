// Package adaptive implements the adaptive executor: wraps execution of a
// compiled/interpreted strategy, recording (strategy, elapsedMs, rows,
// predicateCount) per plan fingerprint in a capped ring buffer, and
// promotes whichever strategy has the lowest observed mean wall-time to
// optimalStrategy once enough samples exist. A new optimum is only
// declared once at least two candidate strategies each have two or more
// samples. Every recorded sample also feeds a prometheus duration
// histogram labeled by strategy, when a Tracker is built with Metrics.
package adaptive

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"colq/internal/plan"
)

const (
	ringCapacity       = 100
	minRunsForLearning = 5
	minSamplesPerStrat = 2
	minQualifyingStrat = 2
)

// Sample is one recorded execution against a fingerprint.
type Sample struct {
	Strategy       plan.Strategy
	ElapsedMs      float64
	Rows           int
	PredicateCount int
}

type fingerprintStats struct {
	samples         []Sample
	optimalStrategy plan.Strategy
	hasImproved     bool
}

// Metrics groups the prometheus collectors the adaptive executor updates.
// Passing a nil *Metrics to NewTracker disables metrics entirely (useful
// in tests and in any embedding that doesn't want a global registry
// touched).
type Metrics struct {
	Duration *prometheus.HistogramVec
}

// NewMetrics registers the adaptive executor's collectors against reg: one
// duration histogram labeled by the chosen Strategy, the way
// internal/cache registers its own hit/miss/entry/evicted collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "colq_adaptive_executor_duration_seconds",
			Help:    "Adaptive executor wall-time per chosen strategy.",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),
	}
}

// Tracker owns the per-fingerprint execution history and derives an
// optimalStrategy from it. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	byFP    map[string]*fingerprintStats
	metrics *Metrics
}

// NewTracker builds a Tracker. metrics may be nil, disabling the
// per-strategy duration histogram.
func NewTracker(metrics *Metrics) *Tracker {
	return &Tracker{byFP: make(map[string]*fingerprintStats), metrics: metrics}
}

// SuggestStrategy returns the heuristic default (rows<1000 -> Sequential,
// rows<50000 -> SIMD, else Parallel) until fingerprint has
// accumulated at least minRunsForLearning samples, after which a learned
// optimalStrategy (if one has been derived) takes over.
func (t *Tracker) SuggestStrategy(fingerprint string, rows, predicateCount int) plan.Strategy {
	t.mu.Lock()
	defer t.mu.Unlock()

	fs, ok := t.byFP[fingerprint]
	if !ok || len(fs.samples) < minRunsForLearning || fs.optimalStrategy == plan.StrategyUnset {
		return heuristicDefault(rows)
	}
	return fs.optimalStrategy
}

func heuristicDefault(rows int) plan.Strategy {
	switch {
	case rows < 1000:
		return plan.StrategySequential
	case rows < 50_000:
		return plan.StrategySIMD
	default:
		return plan.StrategyParallel
	}
}

// Record appends a measurement for fingerprint (evicting the oldest sample
// once the ring exceeds ringCapacity) and re-derives optimalStrategy.
// HasImproved reports whether this call changed the learned optimum.
func (t *Tracker) Record(fingerprint string, s Sample) (hasImproved bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fs, ok := t.byFP[fingerprint]
	if !ok {
		fs = &fingerprintStats{}
		t.byFP[fingerprint] = fs
	}

	fs.samples = append(fs.samples, s)
	if len(fs.samples) > ringCapacity {
		fs.samples = fs.samples[len(fs.samples)-ringCapacity:]
	}

	if t.metrics != nil {
		t.metrics.Duration.WithLabelValues(s.Strategy.String()).Observe(s.ElapsedMs / 1000.0)
	}

	return recomputeOptimal(fs)
}

func recomputeOptimal(fs *fingerprintStats) bool {
	type meanAcc struct {
		sum   float64
		count int
	}
	means := make(map[plan.Strategy]*meanAcc)
	for _, s := range fs.samples {
		acc := means[s.Strategy]
		if acc == nil {
			acc = &meanAcc{}
			means[s.Strategy] = acc
		}
		acc.sum += s.ElapsedMs
		acc.count++
	}

	qualifying := 0
	best := plan.StrategyUnset
	bestMean := math.Inf(1)
	for strat, acc := range means {
		if acc.count < minSamplesPerStrat {
			continue
		}
		qualifying++
		mean := acc.sum / float64(acc.count)
		if mean < bestMean {
			bestMean = mean
			best = strat
		}
	}

	if qualifying < minQualifyingStrat || best == plan.StrategyUnset {
		return false
	}
	if fs.optimalStrategy == best {
		return false
	}
	fs.optimalStrategy = best
	fs.hasImproved = true
	return true
}

// Stats reports the current learned state for fingerprint (zero value if
// nothing has been recorded yet).
func (t *Tracker) Stats(fingerprint string) (optimal plan.Strategy, sampleCount int, hasImproved bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fs, ok := t.byFP[fingerprint]
	if !ok {
		return plan.StrategyUnset, 0, false
	}
	return fs.optimalStrategy, len(fs.samples), fs.hasImproved
}

// ExecuteFunc runs the query body under a chosen strategy, returning
// whatever the caller's executor produces.
type ExecuteFunc func(ctx context.Context, strategy plan.Strategy) (any, error)

// Execute implements the adaptive executor's wrapped contract: take
// rowCount from p's estimate and predicateCount from the caller, ask the
// tracker for a strategy, time fn, record the measurement. tracer may be nil (a no-op tracer is
// substituted) — every call is still wrapped in a span so downstream
// composition with a real exporter is a config change, not a code change.
func Execute(ctx context.Context, tracer trace.Tracer, tracker *Tracker, p plan.Node, fingerprint string, predicateCount int, fn ExecuteFunc) (any, error) {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("colq/adaptive")
	}
	ctx, span := tracer.Start(ctx, "adaptive.execute")
	defer span.End()

	rows := int(p.EstimatedRows())
	strategy := tracker.SuggestStrategy(fingerprint, rows, predicateCount)

	start := time.Now()
	result, err := fn(ctx, strategy)
	elapsed := time.Since(start)

	tracker.Record(fingerprint, Sample{
		Strategy:       strategy,
		ElapsedMs:      float64(elapsed.Microseconds()) / 1000.0,
		Rows:           rows,
		PredicateCount: predicateCount,
	})

	return result, err
}
