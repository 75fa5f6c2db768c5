// Package throttle enforces per-workflow-type and per-tenant admission
// limits at start time.
//
// Workflow types are named lanes that group related instances. The
// engine consults the [Manager] before launching a new instance; types
// without a [Config] have no limits beyond the engine-wide defaults.
//
// # Per-Type Configuration
//
// Use [Config] to set per-type rate limits and concurrency caps:
//
//	throttle.Config{
//	    Type:           "document_processing",
//	    MaxConcurrency: 5,      // max 5 concurrent instances
//	    RateLimit:      10,     // max 10 starts/s for this type
//	    RateBurst:      20,     // allow bursts up to 20
//	}
//
// [Manager] uses a token-bucket rate limiter (golang.org/x/time/rate)
// and an active-count gate for concurrency limits:
//
//	m := throttle.NewManager(configs...)
//	if m.Acquire(workflowType, tenantID) {
//	    defer m.Release(workflowType, tenantID)
//	    // run the instance
//	}
package throttle

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config defines per-workflow-type behaviour such as rate limiting and
// concurrency.
type Config struct {
	// Type is the workflow type identifier.
	Type string

	// MaxConcurrency limits how many instances of this type may run
	// simultaneously on the local engine. Zero means no type-specific
	// limit.
	MaxConcurrency int

	// RateLimit is the maximum sustained instance starts per second
	// for this type. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// typeState tracks runtime state for a single workflow type.
type typeState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager controls per-type and per-tenant rate limiting and concurrency.
// It is safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	types   map[string]*typeState
	tenants map[string]*tenantState
}

// NewManager creates a Manager with the given type configurations.
// Types not listed here have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		types:   make(map[string]*typeState, len(configs)),
		tenants: make(map[string]*tenantState),
	}
	for _, cfg := range configs {
		m.types[cfg.Type] = newTypeState(cfg)
	}
	return m
}

func newTypeState(cfg Config) *typeState {
	ts := &typeState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		ts.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return ts
}

// Acquire checks rate limits and concurrency for the given workflow
// type and tenant. If the instance is allowed to proceed it increments
// the active counter and returns true. The caller MUST call Release
// when the instance reaches a terminal status or pauses.
func (m *Manager) Acquire(workflowType, tenantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check type-level constraints.
	ws := m.types[workflowType]
	if ws != nil {
		if ws.limiter != nil && !ws.limiter.Allow() {
			return false
		}
		if ws.config.MaxConcurrency > 0 && ws.active >= ws.config.MaxConcurrency {
			return false
		}
	}

	// Check tenant-level constraints.
	if tenantID != "" {
		ts := m.tenants[tenantKey(workflowType, tenantID)]
		if ts != nil {
			if ts.limiter != nil && !ts.limiter.Allow() {
				return false
			}
			if ts.maxConcurrency > 0 && ts.active >= ts.maxConcurrency {
				return false
			}
			ts.active++
		}
	}

	// Increment type active count.
	if ws != nil {
		ws.active++
	}

	return true
}

// Release decrements the active instance count for the type and tenant.
func (m *Manager) Release(workflowType, tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ws := m.types[workflowType]; ws != nil && ws.active > 0 {
		ws.active--
	}

	if tenantID != "" {
		if ts := m.tenants[tenantKey(workflowType, tenantID)]; ts != nil && ts.active > 0 {
			ts.active--
		}
	}
}

// SetTypeConfig dynamically updates (or creates) a type configuration.
func (m *Manager) SetTypeConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.types[cfg.Type]
	ws := newTypeState(cfg)

	// Preserve current active count if reconfiguring.
	if existing != nil {
		ws.active = existing.active
	}
	m.types[cfg.Type] = ws
}

// ActiveCount returns the current number of active instances for a type.
func (m *Manager) ActiveCount(workflowType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ws := m.types[workflowType]; ws != nil {
		return ws.active
	}
	return 0
}
