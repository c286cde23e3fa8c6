// Package metricstore implements the pluggable time-series engines a
// Metric's optional {type, id} descriptor (core/store.MetricStoreRef) may
// point at. The object store itself never imports this package or
// dereferences a descriptor; it is exercised only by backend collectors
// that choose to persist samples, by the query frontend when it wants to
// chart one, and by alerting's last-fired bookkeeping. This mirrors the teacher's storage package, retargeted
// from telemetry storage onto the object store's opaque metric-store
// reference (see SPEC_FULL.md §3).
package metricstore

import (
	"fmt"
	"sync"
	"time"

	"sysdb/config"
)

// Sample is a single timestamped value with labels, the common currency
// every engine below stores and queries.
type Sample struct {
	Timestamp time.Time
	Value     float64
	Labels    map[string]string
}

// Query selects samples for one metric-store id over a time range.
type Query struct {
	StartTime   time.Time
	EndTime     time.Time
	LabelFilter func(map[string]string) bool
	Limit       int
}

// Engine is the uniform interface every metric-store backend implements.
// id is the MetricStoreRef.ID a Metric's descriptor carries; it scopes
// samples to the series that descriptor identifies.
type Engine interface {
	StoreSample(id string, sample Sample) error
	QuerySamples(id string, q Query) ([]Sample, error)
	Close() error
}

// Open constructs the engine named by cfg.Type, rooted at dataPath, and
// registers it under that type name so backend, frontend and alerting can
// look it up through Registry instead of having it threaded into their
// constructors.
func Open(cfg *config.EngineConfig, dataPath string) (Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("metricstore: no engine configured")
	}

	e, err := open(cfg, dataPath)
	if err != nil {
		return nil, err
	}

	Registry.Register(cfg.Type, e)
	return e, nil
}

func open(cfg *config.EngineConfig, dataPath string) (Engine, error) {
	switch cfg.Type {
	case "localblock":
		var blockSize time.Duration = 2 * time.Hour
		var retention time.Duration = 30 * 24 * time.Hour
		compaction := true
		if c := cfg.LocalBlockConfig; c != nil {
			if c.BlockSize != "" {
				if d, err := time.ParseDuration(c.BlockSize); err == nil {
					blockSize = d
				}
			}
			if c.RetentionPeriod != "" {
				if d, err := parseRetention(c.RetentionPeriod); err == nil {
					retention = d
				}
			}
			compaction = c.Compaction
		}
		return NewLocalBlockEngine(dataPath, retention, blockSize, compaction)

	case "badger":
		maxSizeMB, indexing := 100, true
		if c := cfg.BadgerConfig; c != nil {
			if c.MaxFileSizeMB > 0 {
				maxSizeMB = c.MaxFileSizeMB
			}
			indexing = c.Indexing
		}
		return NewBadgerEngine(dataPath, indexing, maxSizeMB)

	case "prometheus":
		retention := 30 * 24 * time.Hour
		blockSize := 2 * time.Hour
		if c := cfg.PrometheusConfig; c != nil {
			if c.RetentionPeriod != "" {
				if d, err := parseRetention(c.RetentionPeriod); err == nil {
					retention = d
				}
			}
			if c.BlockDuration != "" {
				if d, err := time.ParseDuration(c.BlockDuration); err == nil {
					blockSize = d
				}
			}
		}
		return NewPrometheusEngine(dataPath, retention, blockSize, true)

	case "frostdb":
		opts := DefaultFrostDBOptions()
		retention := 30 * 24 * time.Hour
		if c := cfg.FrostDBConfig; c != nil {
			if c.BatchSize > 0 {
				opts.BatchSize = c.BatchSize
			}
			if c.FlushInterval != "" {
				if d, err := time.ParseDuration(c.FlushInterval); err == nil {
					opts.FlushInterval = d
				}
			}
			if c.ActiveMemoryMB > 0 {
				opts.ActiveMemorySize = int64(c.ActiveMemoryMB) * 1024 * 1024
			}
			opts.WALEnabled = c.WALEnabled
			if c.RetentionPeriod != "" {
				if d, err := parseRetention(c.RetentionPeriod); err == nil {
					retention = d
				}
			}
		}
		return NewFrostDBEngine(dataPath, retention, opts)

	default:
		return nil, fmt.Errorf("metricstore: unknown engine type %q", cfg.Type)
	}
}

func parseRetention(s string) (time.Duration, error) {
	if len(s) > 0 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err != nil {
			return 0, err
		}
		return time.Hour * 24 * time.Duration(days), nil
	}
	return time.ParseDuration(s)
}

// registry lets a frontend, backend or alerting manager look an engine up
// by the type name a process opened it under, without threading *Engine
// through every constructor. Open registers into it on success.
type registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

// Registry is the process-wide set of open metric-store engines, keyed by
// the engine type name used in a Metric's descriptor.
var Registry = &registry{engines: make(map[string]Engine)}

func (r *registry) Register(engineType string, e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[engineType] = e
}

func (r *registry) Get(engineType string) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[engineType]
	return e, ok
}

func (r *registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for t, e := range r.engines {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s engine: %w", t, err)
		}
	}
	return firstErr
}
