// Package cache implements the plan cache: a bounded fingerprint -> plan
// mapping with approximate-LRU eviction and atomic hit/miss counters. An
// RWMutex-guarded map of entries evicts when full and tracks lastAccess
// per entry, keyed by a string structural fingerprint
// (internal/compile.Fingerprint extended with plan-node shape — see
// Fingerprint in this package).
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/atomic"

	"colq/internal/plan"
)

// entry pairs a cached plan with the last time it was read.
type entry struct {
	plan       plan.Node
	lastAccess time.Time
}

// Metrics groups the prometheus collectors the cache updates. Passing a
// nil *Metrics to New disables metrics entirely (useful in tests and in
// any embedding that doesn't want a global registry touched).
type Metrics struct {
	Hits    prometheus.Counter
	Misses  prometheus.Counter
	Entries prometheus.Gauge
	Evicted prometheus.Counter
}

// NewMetrics registers the plan cache's collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Hits:    factory.NewCounter(prometheus.CounterOpts{Name: "colq_plan_cache_hits_total", Help: "Plan cache hits."}),
		Misses:  factory.NewCounter(prometheus.CounterOpts{Name: "colq_plan_cache_misses_total", Help: "Plan cache misses."}),
		Entries: factory.NewGauge(prometheus.GaugeOpts{Name: "colq_plan_cache_entries", Help: "Plan cache entry count."}),
		Evicted: factory.NewCounter(prometheus.CounterOpts{Name: "colq_plan_cache_evicted_total", Help: "Plan cache entries evicted."}),
	}
}

// PlanCache is a bounded fingerprint→plan cache, safe for concurrent use.
type PlanCache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	maxEntries int

	hits    atomic.Int64
	misses  atomic.Int64
	metrics *Metrics
}

// New creates a PlanCache bounded at maxEntries (<=0 defaults to the
// engine's PlanCacheMaxEntries default of 256). metrics may be nil.
func New(maxEntries int, metrics *Metrics) *PlanCache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &PlanCache{
		entries:    make(map[string]*entry, maxEntries),
		maxEntries: maxEntries,
		metrics:    metrics,
	}
}

// Get looks up fingerprint, bumping the hit/miss counters and (on a hit)
// the entry's lastAccess.
func (c *PlanCache) Get(fingerprint string) (plan.Node, bool) {
	c.mu.RLock()
	e, ok := c.entries[fingerprint]
	c.mu.RUnlock()

	if !ok {
		c.misses.Inc()
		if c.metrics != nil {
			c.metrics.Misses.Inc()
		}
		return nil, false
	}

	c.hits.Inc()
	if c.metrics != nil {
		c.metrics.Hits.Inc()
	}

	c.mu.Lock()
	e.lastAccess = time.Now()
	c.mu.Unlock()
	return e.plan, true
}

// Put stores p under fingerprint, evicting ~25% of the lowest-lastAccess
// entries first if the cache is at capacity and fingerprint is new. Exact
// LRU is not required; this approximation is sufficient.
func (c *PlanCache) Put(fingerprint string, p plan.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[fingerprint]; !exists && len(c.entries) >= c.maxEntries {
		c.evictApproxQuarter()
	}
	c.entries[fingerprint] = &entry{plan: p, lastAccess: time.Now()}
	if c.metrics != nil {
		c.metrics.Entries.Set(float64(len(c.entries)))
	}
}

// evictApproxQuarter removes roughly a quarter of the lowest-lastAccess
// entries in one pass. Caller must hold the write lock.
func (c *PlanCache) evictApproxQuarter() {
	n := len(c.entries)
	if n == 0 {
		return
	}
	toEvict := n / 4
	if toEvict < 1 {
		toEvict = 1
	}

	type keyed struct {
		key  string
		last time.Time
	}
	ordered := make([]keyed, 0, n)
	for k, v := range c.entries {
		ordered = append(ordered, keyed{k, v.lastAccess})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].last.Before(ordered[j].last) })

	for i := 0; i < toEvict && i < len(ordered); i++ {
		delete(c.entries, ordered[i].key)
	}
	if c.metrics != nil {
		c.metrics.Evicted.Add(float64(toEvict))
	}
}

// Stats returns the cumulative hit/miss counts.
func (c *PlanCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the current entry count.
func (c *PlanCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Invalidate drops every cached entry (e.g. after the underlying store is
// replaced).
func (c *PlanCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry, c.maxEntries)
	if c.metrics != nil {
		c.metrics.Entries.Set(0)
	}
}
