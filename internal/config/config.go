// Package config implements the engine's recognized configuration options:
// plan cache sizing, compiled-predicate and parallel-execution toggles, the
// SIMD/parallel row thresholds, chunk sizes, worker caps, and the
// adaptive-execution toggle. Configuration loads from TOML with struct-tag
// field names and overlays onto documented defaults via a struct merge.
package config

import (
	"runtime"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
)

// Config carries every option the engine recognizes.
type Config struct {
	EnablePlanCache          bool `toml:"enable_plan_cache"`
	PlanCacheMaxEntries      int  `toml:"plan_cache_max_entries"`
	EnableCompiledPredicates bool `toml:"enable_compiled_predicates"`
	EnableParallelExecution  bool `toml:"enable_parallel_execution"`
	ParallelRowThreshold     int  `toml:"parallel_row_threshold"`
	SIMDRowThreshold         int  `toml:"simd_row_threshold"`
	ParallelChunkRows        int  `toml:"parallel_chunk_rows"`
	MaxWorkers               int  `toml:"max_workers"`
	AdaptiveExecution        bool `toml:"adaptive_execution"`
	ZoneMapChunkRows         int  `toml:"zone_map_chunk_rows"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		EnablePlanCache:          true,
		PlanCacheMaxEntries:      256,
		EnableCompiledPredicates: true,
		EnableParallelExecution:  true,
		ParallelRowThreshold:     50_000,
		SIMDRowThreshold:         1_000,
		ParallelChunkRows:        65_536,
		MaxWorkers:               0, // resolved by Workers()
		AdaptiveExecution:        true,
		ZoneMapChunkRows:         65_536,
	}
}

// Workers resolves MaxWorkers == 0 to the host's core count: a zero value
// means unbounded within the worker pool's own limit, and NumCPU is that
// pool's practical limit.
func (c Config) Workers() int {
	if c.MaxWorkers > 0 {
		return c.MaxWorkers
	}
	return runtime.NumCPU()
}

// LoadTOML reads a Config from a TOML file, starting from Default() so a
// partial file only needs to specify the options it overrides.
func LoadTOML(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Merge overlays override onto base (non-zero fields in override win).
func Merge(base, override Config) (Config, error) {
	merged := base
	if err := mergo.Merge(&merged, override, mergo.WithOverride); err != nil {
		return Config{}, err
	}
	return merged, nil
}
