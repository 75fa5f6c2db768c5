package throttle

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Manager basics
// ---------------------------------------------------------------------------

func TestNewManager_Empty(t *testing.T) {
	m := NewManager()
	// No configs; Acquire/Release should always succeed.
	if !m.Acquire("any-type", "") {
		t.Fatal("expected Acquire to succeed for unconfigured type")
	}
	m.Release("any-type", "")
}

func TestNewManager_WithConfig(t *testing.T) {
	m := NewManager(Config{
		Type:           "document_processing",
		MaxConcurrency: 2,
	})
	if m.ActiveCount("document_processing") != 0 {
		t.Fatal("expected 0 active instances initially")
	}
}

// ---------------------------------------------------------------------------
// Concurrency limits
// ---------------------------------------------------------------------------

func TestManager_MaxConcurrency(t *testing.T) {
	m := NewManager(Config{
		Type:           "document_processing",
		MaxConcurrency: 2,
	})

	if !m.Acquire("document_processing", "") {
		t.Fatal("first Acquire should succeed")
	}
	if !m.Acquire("document_processing", "") {
		t.Fatal("second Acquire should succeed")
	}
	// Third should be blocked.
	if m.Acquire("document_processing", "") {
		t.Fatal("third Acquire should fail (max concurrency 2)")
	}

	// Release one slot.
	m.Release("document_processing", "")
	if !m.Acquire("document_processing", "") {
		t.Fatal("Acquire should succeed after Release")
	}
}

func TestManager_AcquireRelease_ActiveCount(t *testing.T) {
	m := NewManager(Config{
		Type:           "t",
		MaxConcurrency: 5,
	})

	for i := range 3 {
		if !m.Acquire("t", "") {
			t.Fatalf("Acquire %d should succeed", i)
		}
	}
	if m.ActiveCount("t") != 3 {
		t.Fatalf("expected 3 active, got %d", m.ActiveCount("t"))
	}

	m.Release("t", "")
	m.Release("t", "")
	if m.ActiveCount("t") != 1 {
		t.Fatalf("expected 1 active, got %d", m.ActiveCount("t"))
	}
}

// ---------------------------------------------------------------------------
// Rate limiting
// ---------------------------------------------------------------------------

func TestManager_RateLimit_Throttles(t *testing.T) {
	m := NewManager(Config{
		Type:      "limited",
		RateLimit: 1.0, // 1 per second
		RateBurst: 1,
	})

	// First should succeed (burst allows it).
	if !m.Acquire("limited", "") {
		t.Fatal("first Acquire should succeed (within burst)")
	}
	m.Release("limited", "")

	// Immediately after, token bucket is empty.
	if m.Acquire("limited", "") {
		t.Fatal("second Acquire should fail (rate limited)")
	}

	// Wait for token refill.
	time.Sleep(1100 * time.Millisecond)
	if !m.Acquire("limited", "") {
		t.Fatal("Acquire should succeed after token refill")
	}
	m.Release("limited", "")
}

func TestManager_RateLimit_BurstAllows(t *testing.T) {
	m := NewManager(Config{
		Type:      "bursty",
		RateLimit: 10.0,
		RateBurst: 3,
	})

	// Three immediate acquires should succeed (burst = 3).
	for i := range 3 {
		if !m.Acquire("bursty", "") {
			t.Fatalf("Acquire %d should succeed (within burst)", i)
		}
		m.Release("bursty", "")
	}
}

// ---------------------------------------------------------------------------
// Per-tenant isolation
// ---------------------------------------------------------------------------

func TestManager_TenantRateLimit(t *testing.T) {
	m := NewManager(Config{
		Type:           "shared",
		MaxConcurrency: 100, // high type limit
	})

	m.SetTenantConfig(TenantConfig{
		Type:           "shared",
		TenantID:       "orgA",
		MaxConcurrency: 1,
	})

	// Tenant A: first instance succeeds.
	if !m.Acquire("shared", "orgA") {
		t.Fatal("orgA first Acquire should succeed")
	}
	// Tenant A: second instance blocked.
	if m.Acquire("shared", "orgA") {
		t.Fatal("orgA second Acquire should fail (tenant max 1)")
	}

	// Tenant B (no config): should still succeed.
	if !m.Acquire("shared", "orgB") {
		t.Fatal("orgB Acquire should succeed (no tenant limit)")
	}

	m.Release("shared", "orgA")
	m.Release("shared", "orgB")
}

func TestManager_TenantIsolation(t *testing.T) {
	m := NewManager(Config{
		Type:           "work",
		MaxConcurrency: 100,
	})

	m.SetTenantConfig(TenantConfig{
		Type:           "work",
		TenantID:       "orgA",
		MaxConcurrency: 2,
	})
	m.SetTenantConfig(TenantConfig{
		Type:           "work",
		TenantID:       "orgB",
		MaxConcurrency: 2,
	})

	// Fill orgA slots.
	m.Acquire("work", "orgA")
	m.Acquire("work", "orgA")

	// orgA is maxed.
	if m.Acquire("work", "orgA") {
		t.Fatal("orgA should be blocked at max concurrency")
	}

	// orgB is unaffected.
	if !m.Acquire("work", "orgB") {
		t.Fatal("orgB should not be affected by orgA's limits")
	}

	m.Release("work", "orgA")
	m.Release("work", "orgA")
	m.Release("work", "orgB")
}

func TestManager_TenantActiveCount(t *testing.T) {
	m := NewManager(Config{Type: "t", MaxConcurrency: 10})
	m.SetTenantConfig(TenantConfig{
		Type:           "t",
		TenantID:       "t1",
		MaxConcurrency: 5,
	})

	m.Acquire("t", "t1")
	m.Acquire("t", "t1")

	if got := m.TenantActiveCount("t", "t1"); got != 2 {
		t.Fatalf("expected tenant active 2, got %d", got)
	}

	m.Release("t", "t1")
	if got := m.TenantActiveCount("t", "t1"); got != 1 {
		t.Fatalf("expected tenant active 1, got %d", got)
	}
}

// ---------------------------------------------------------------------------
// Dynamic reconfiguration
// ---------------------------------------------------------------------------

func TestManager_SetTypeConfig(t *testing.T) {
	m := NewManager(Config{
		Type:           "dyn",
		MaxConcurrency: 1,
	})

	m.Acquire("dyn", "")
	if m.Acquire("dyn", "") {
		t.Fatal("should be blocked at concurrency 1")
	}

	// Raise the limit dynamically.
	m.SetTypeConfig(Config{
		Type:           "dyn",
		MaxConcurrency: 3,
	})

	// Now should succeed.
	if !m.Acquire("dyn", "") {
		t.Fatal("should succeed after raising concurrency")
	}
	m.Release("dyn", "")
	m.Release("dyn", "")
}

// ---------------------------------------------------------------------------
// Concurrency safety
// ---------------------------------------------------------------------------

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(Config{
		Type:           "concurrent",
		MaxConcurrency: 50,
	})

	var acquired atomic.Int64
	var wg sync.WaitGroup

	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Acquire("concurrent", "") {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := acquired.Load(); got != 50 {
		t.Fatalf("expected exactly 50 acquires, got %d", got)
	}
	if m.ActiveCount("concurrent") != 50 {
		t.Fatalf("expected 50 active, got %d", m.ActiveCount("concurrent"))
	}
}
