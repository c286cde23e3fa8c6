// Package backend implements the pluggable collectors named in spec.md §1
// ("multiple pluggable backends feeding the store"): each one turns an
// external protocol's payload into calls against core/store's update API.
// Adapted from the teacher's ingestion package, which wrote OTLP payloads
// into a telemetry storage engine instead of an object graph.
package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sysdb/config"
	"sysdb/core/store"
	"sysdb/metricstore"
)

// Manager owns every configured backend collector's lifecycle.
type Manager struct {
	cfg   config.BackendsConfig
	store *store.Store

	otlp *OTLPBackend
	mux  *MuxBackend

	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

// NewManager constructs the backends named in cfg. At least one of OTLP or
// Mux must be configured (enforced by config.validateConfig). engineType
// names the metric-store descriptor type backends should carry on samples
// they persist; the engine itself is looked up from metricstore.Registry
// rather than threaded in. The lookup happens once, here: an engine opened
// after NewManager returns is not seen, and the OTLP backend then persists
// no samples.
func NewManager(cfg config.BackendsConfig, st *store.Store, engineType string) (*Manager, error) {
	m := &Manager{cfg: cfg, store: st}

	if cfg.OTLP != nil {
		mstore, _ := metricstore.Registry.Get(engineType)
		m.otlp = NewOTLPBackend(*cfg.OTLP, st, mstore, engineType)
	}
	if cfg.Mux != nil {
		m.mux = NewMuxBackend(*cfg.Mux, st)
	}

	return m, nil
}

// Start starts every configured backend.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	if m.otlp != nil {
		if err := m.otlp.Start(); err != nil {
			return fmt.Errorf("failed to start OTLP backend: %w", err)
		}
	}
	if m.mux != nil {
		if err := m.mux.Start(); err != nil {
			if m.otlp != nil {
				m.otlp.Stop()
			}
			return fmt.Errorf("failed to start mux backend: %w", err)
		}
	}

	m.running = true
	return nil
}

// Stop stops every configured backend.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	var firstErr error
	if m.otlp != nil {
		if err := m.otlp.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.mux != nil {
		if err := m.mux.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	m.running = false
	return firstErr
}

// Close is Stop, kept as an alias since the teacher's service package
// calls Close on every manager it owns.
func (m *Manager) Close() error { return m.Stop() }

func shutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
