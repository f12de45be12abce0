// Package health provides pure functions for preflight health logic.
// Following ADR-002: Values as Boundaries - this package contains NO I/O.
package health

import (
	"math"

	"github.com/argusai/argus/internal/core/bytesize"
	"github.com/argusai/argus/internal/core/domain"
)

// =============================================================================
// Health Aggregation (Pure Functions)
// =============================================================================

// ComputeOverall folds the preflight check results into one verdict: any
// failed check makes the environment unhealthy, any warning makes it
// degraded, and an empty or all-pass list is healthy.
func ComputeOverall(checks []domain.CheckResult) domain.HealthStatus {
	failed := 0
	warned := 0
	for _, c := range checks {
		switch c.Status {
		case domain.CheckStatusFail:
			failed++
		case domain.CheckStatusWarn:
			warned++
		}
	}

	if failed > 0 {
		return domain.HealthStatusUnhealthy
	}
	if warned > 0 {
		return domain.HealthStatusDegraded
	}
	return domain.HealthStatusHealthy
}

// =============================================================================
// Disk Space Classification (Pure Functions)
// =============================================================================

// ClassifyDiskSpace maps available bytes against the configured threshold:
// below the threshold fails, below twice the threshold warns, anything
// above passes.
func ClassifyDiskSpace(avail, threshold uint64) (domain.CheckStatus, string) {
	warnBand := threshold * 2
	if warnBand < threshold {
		warnBand = math.MaxUint64
	}

	switch {
	case avail < threshold:
		return domain.CheckStatusFail,
			"only " + bytesize.Format(avail) + " available, below the " + bytesize.Format(threshold) + " threshold"
	case avail < warnBand:
		return domain.CheckStatusWarn,
			bytesize.Format(avail) + " available, approaching the " + bytesize.Format(threshold) + " threshold"
	default:
		return domain.CheckStatusPass,
			bytesize.Format(avail) + " available"
	}
}
