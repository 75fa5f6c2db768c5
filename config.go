package cascade

import "time"

// Config holds tunables for the workflow engine.
type Config struct {
	// LeaseTTL is how long a loop's execution lease on a workflow is
	// valid without renewal. A crashed loop's workflow becomes claimable
	// again after this interval.
	LeaseTTL time.Duration

	// NodeTimeout is the default per-node execution deadline. Zero
	// disables the deadline.
	NodeTimeout time.Duration

	// ShutdownTimeout is the maximum time Close waits for in-flight
	// execution loops to checkpoint and exit.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LeaseTTL:        30 * time.Second,
		NodeTimeout:     2 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}
