// Package colq is the public facade over the engine's internal packages:
// it assembles a Store from a Batch plus the plan cache, adaptive
// tracker, compiler, and zone map that back it, and exposes the two
// query surfaces — AsQueryable's chained builder and ExecuteSQL's SQL
// subset — through one Runner that fingerprints, caches, and adaptively
// strategizes every plan before internal/exec ever sees it.
package colq

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"colq/internal/adaptive"
	"colq/internal/agg"
	"colq/internal/cache"
	"colq/internal/colqerr"
	"colq/internal/compile"
	"colq/internal/config"
	"colq/internal/exec"
	"colq/internal/obslog"
	"colq/internal/optimizer"
	"colq/internal/physical"
	"colq/internal/plan"
	"colq/internal/query"
	"colq/internal/sqlfront"
	"colq/internal/store"
	"colq/internal/zonemap"
)

// Re-exported types so callers never need to import an internal package.
type (
	Error     = colqerr.Error
	ErrorKind = colqerr.Kind
	Config    = config.Config
	FieldData = store.FieldData
	Builder   = store.Builder
	Row       = exec.Row
	Column    = query.Column
	AggSpec   = agg.AggSpec
)

// Error kind constants, re-exported for comparing an *Error's Kind field
// (e.g. after errors.As) against the Kind values colqerr defines.
const (
	TypeMismatch  = colqerr.TypeMismatch
	UnknownColumn = colqerr.UnknownColumn
	EmptySequence = colqerr.EmptySequence
	Unsupported   = colqerr.Unsupported
	InvalidArg    = colqerr.InvalidArg
	ParseErr      = colqerr.ParseErr
)

func NewBuilder() *Builder { return store.NewBuilder() }

// LoadConfig reads a Config from a TOML file, starting from config.Default()
// so a partial file only needs to specify the options it overrides.
func LoadConfig(path string) (Config, error) { return config.LoadTOML(path) }

// As/Ident/Col/And/Or/Not mirror internal/query's free functions so chained
// queries read the same from either import path.
var (
	As    = query.As
	Ident = query.Ident
	Col   = query.Col
	And   = query.And
	Or    = query.Or
	Not   = query.Not
)

// Store is one immutable batch plus the collaborators a running engine
// instance owns: a plan cache keyed by structural fingerprint, an
// adaptive strategy tracker, a compiled-predicate compiler, a zone map
// for chunk pruning, and the resolved Config/*zap.Logger driving all of
// them.
type Store struct {
	batch           *store.Batch
	cfg             config.Config
	logger          *zap.Logger
	tracer          trace.Tracer
	compiler        *compile.Compiler
	zonemap         *zonemap.ZoneMap
	cache           *cache.PlanCache
	tracker         *adaptive.Tracker
	planMetrics     *cache.Metrics
	adaptiveMetrics *adaptive.Metrics
}

// Option configures Open.
type Option func(*Store)

// WithConfig overrides the default config.Default() configuration.
func WithConfig(cfg Config) Option { return func(s *Store) { s.cfg = cfg } }

// WithLogger attaches a *zap.Logger; nil (the default) is silent.
func WithLogger(logger *zap.Logger) Option { return func(s *Store) { s.logger = logger } }

// WithTracer attaches an OpenTelemetry tracer for the adaptive executor's
// spans; nil (the default) installs a no-op tracer.
func WithTracer(tracer trace.Tracer) Option { return func(s *Store) { s.tracer = tracer } }

// WithPlanCacheMetrics registers the plan cache's prometheus counters
// instead of leaving the cache unmetered.
func WithPlanCacheMetrics(metrics *cache.Metrics) Option {
	return func(s *Store) { s.planMetrics = metrics }
}

// WithAdaptiveMetrics registers the adaptive executor's per-strategy
// duration histogram instead of leaving it unmetered.
func WithAdaptiveMetrics(metrics *adaptive.Metrics) Option {
	return func(s *Store) { s.adaptiveMetrics = metrics }
}

// Open builds a Store over batch, applying Default() config unless
// overridden by opts.
func Open(batch *store.Batch, opts ...Option) *Store {
	s := &Store{
		batch:  batch,
		cfg:    config.Default(),
		logger: obslog.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tracker = adaptive.NewTracker(s.adaptiveMetrics)
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("colq")
	}
	if s.cfg.EnableCompiledPredicates {
		s.compiler = compile.NewCompiler()
	}
	s.zonemap = zonemap.Build(batch, s.cfg.ZoneMapChunkRows)
	if s.cfg.EnablePlanCache {
		s.cache = cache.New(s.cfg.PlanCacheMaxEntries, s.planMetrics)
	}
	return s
}

// Batch exposes the underlying immutable batch, e.g. for a caller that
// wants to build a second Store sharing it, or inspect its schema.
func (s *Store) Batch() *store.Batch { return s.batch }

// AsQueryable returns a chained query builder whose Runner routes through
// Store's plan cache and adaptive tracker.
func (s *Store) AsQueryable() *query.Query {
	q := query.From(s.batch, s.runner())
	s.attachZoneMap(q)
	return q
}

// ExecuteSQL parses and runs a single SELECT statement against Store's
// batch, through the same Runner AsQueryable uses.
func (s *Store) ExecuteSQL(ctx context.Context, sqlText string) (*exec.Result, error) {
	fe := sqlfront.New(s.runner())
	q, err := fe.Build(sqlText, s.batch)
	if err != nil {
		return nil, err
	}
	s.attachZoneMap(q)
	return q.Result(ctx)
}

// attachZoneMap wires Store's zone map onto q's underlying Scan node —
// chunk pruning is opt-in per scan, not global — so the optimizer's
// zone-map-pruning pass has something to prune against regardless of
// which surface built the plan.
func (s *Store) attachZoneMap(q *query.Query) {
	if scan, ok := q.Plan().(*plan.Scan); ok {
		scan.ZoneMap = s.zonemap
	}
}

// PlanCacheStats reports (hits, misses) across every cached fingerprint,
// or (0, 0) if the plan cache is disabled.
func (s *Store) PlanCacheStats() (hits, misses int64) {
	if s.cache == nil {
		return 0, 0
	}
	return s.cache.Stats()
}

// runner closes over Store's collaborators to implement the
// internal/query.Runner seam: fingerprint the plan, consult the cache for
// an already-optimized/annotated equivalent, otherwise optimize+annotate
// and cache it, then execute it under the adaptive executor's chosen
// strategy, recording the outcome back into the tracker.
func (s *Store) runner() query.Runner {
	return func(ctx context.Context, root plan.Node) (*exec.Result, error) {
		fingerprint := cache.Fingerprint(root)

		optimized, ok := s.cachedPlan(fingerprint)
		if !ok {
			optimized = optimizer.Optimize(root)
			physical.Annotate(optimized, physical.Options{
				ParallelRowThreshold: s.cfg.ParallelRowThreshold,
				SIMDRowThreshold:     s.cfg.SIMDRowThreshold,
				SIMDAvailable:        true,
			})
			if s.cache != nil {
				s.cache.Put(fingerprint, optimized)
			}
		}

		predicateCount := countPredicates(optimized)
		execOpts := exec.Options{
			EnableCompiledPredicates: s.cfg.EnableCompiledPredicates,
			EnableParallelExecution:  s.cfg.EnableParallelExecution,
			ParallelChunkRows:        s.cfg.ParallelChunkRows,
			MaxWorkers:               s.cfg.Workers(),
			RowThreshold:             s.cfg.ParallelRowThreshold,
		}

		if !s.cfg.AdaptiveExecution {
			return exec.Run(ctx, optimized, execOpts, s.compiler, s.logger)
		}

		result, err := adaptive.Execute(ctx, s.tracer, s.tracker, optimized, fingerprint, predicateCount,
			func(ctx context.Context, strategy plan.Strategy) (any, error) {
				overrideStrategy(optimized, strategy)
				return exec.Run(ctx, optimized, execOpts, s.compiler, s.logger)
			})
		if err != nil {
			return nil, err
		}
		return result.(*exec.Result), nil
	}
}

func (s *Store) cachedPlan(fingerprint string) (plan.Node, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(fingerprint)
}

func countPredicates(n plan.Node) int {
	count := 0
	plan.Walk(n, func(node plan.Node) {
		if f, ok := node.(*plan.Filter); ok {
			count += len(f.Predicates)
		}
	})
	return count
}

// overrideStrategy replaces physical.Annotate's row-count-threshold choice
// on every Filter/Aggregate in root with the strategy the adaptive tracker
// suggested. Until learning produces an optimum, that suggestion is
// internal/adaptive's own row-count heuristic applied to root's estimated
// rows, which can differ from the per-node choice physical.Annotate made.
// GroupBy's GroupStrategy is left as physical.Annotate set it.
func overrideStrategy(root plan.Node, strategy plan.Strategy) {
	plan.Walk(root, func(n plan.Node) {
		switch t := n.(type) {
		case *plan.Filter:
			t.Strategy = strategy
		case *plan.Aggregate:
			t.Strategy = strategy
		}
	})
}
