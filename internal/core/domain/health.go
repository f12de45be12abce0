// Package domain contains the core value types shared by the resilience
// components. Everything here is plain data: no I/O, no clocks beyond
// timestamps stamped by callers, no behavior beyond simple accessors.
package domain

import "time"

// =============================================================================
// Health Types
// =============================================================================

// HealthStatus represents the overall health of an environment.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// CheckStatus is the outcome of a single preflight check.
type CheckStatus string

const (
	CheckStatusPass CheckStatus = "pass"
	CheckStatusWarn CheckStatus = "warn"
	CheckStatusFail CheckStatus = "fail"
)

// CheckResult is one preflight check outcome.
type CheckResult struct {
	Name       string         `json:"name"`
	Status     CheckStatus    `json:"status"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	DurationMS int64          `json:"durationMs"`
}

// HealthReport aggregates the preflight checks into one verdict.
type HealthReport struct {
	Overall    HealthStatus  `json:"overall"`
	Checks     []CheckResult `json:"checks"`
	Timestamp  time.Time     `json:"timestamp"`
	DurationMS int64         `json:"durationMs"`
}
