package throttle

import (
	"fmt"

	"golang.org/x/time/rate"
)

// TenantConfig defines rate limits and concurrency for a specific tenant
// on a specific workflow type.
type TenantConfig struct {
	// Type is the workflow type this config applies to.
	Type string

	// TenantID is the tenant identifier.
	TenantID string

	// RateLimit is the sustained instance starts per second for this
	// tenant.
	RateLimit float64

	// RateBurst is the burst size for the tenant's rate limiter.
	RateBurst int

	// MaxConcurrency limits simultaneous instances for this tenant on
	// this type. Zero means no tenant-specific concurrency limit.
	MaxConcurrency int
}

// tenantState tracks runtime state for a single type+tenant pair.
type tenantState struct {
	limiter        *rate.Limiter
	maxConcurrency int
	active         int
}

// tenantKey builds the map key for a type+tenant pair.
func tenantKey(workflowType, tenantID string) string {
	return fmt.Sprintf("%s:%s", workflowType, tenantID)
}

// SetTenantConfig configures rate limits and concurrency for a specific
// tenant on a specific workflow type. Calling this multiple times for
// the same type+tenant replaces the previous configuration.
func (m *Manager) SetTenantConfig(cfg TenantConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tenantKey(cfg.Type, cfg.TenantID)
	existing := m.tenants[key]

	ts := &tenantState{
		maxConcurrency: cfg.MaxConcurrency,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		ts.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	// Preserve current active count if reconfiguring.
	if existing != nil {
		ts.active = existing.active
	}
	m.tenants[key] = ts
}

// TenantActiveCount returns the current number of active instances for
// a type+tenant pair.
func (m *Manager) TenantActiveCount(workflowType, tenantID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts := m.tenants[tenantKey(workflowType, tenantID)]; ts != nil {
		return ts.active
	}
	return 0
}
