package resilience

import (
	"context"
	"log/slog"
	"time"

	"github.com/argusai/argus/internal/core/bytesize"
	"github.com/argusai/argus/internal/core/domain"
	"github.com/argusai/argus/internal/core/faults"
	"github.com/argusai/argus/internal/core/health"
	"github.com/argusai/argus/internal/shell/diskspace"
	"github.com/argusai/argus/internal/shell/events"
	"github.com/argusai/argus/internal/shell/runtime"
)

// =============================================================================
// Preflight Checker
// =============================================================================

// DefaultDiskSpaceThreshold is the free-space floor when the config does
// not set one.
const DefaultDiskSpaceThreshold = "2GB"

// preflightProbeTimeout bounds the daemon probe.
const preflightProbeTimeout = 5 * time.Second

// Check names as they appear in reports and events.
const (
	CheckNameDockerDaemon = "docker_daemon"
	CheckNameDiskSpace    = "disk_space"
	CheckNameOrphans      = "orphans"
)

// PreflightConfig configures the pre-run readiness checks.
type PreflightConfig struct {
	// Enabled gates the whole preflight sequence at the engine level.
	Enabled bool
	// DiskSpaceThreshold is a human size string ("2GB"). Free space below
	// it fails the disk check; below twice it warns.
	DiskSpaceThreshold string
	// CleanOrphans removes detected orphans during engine preparation.
	CleanOrphans bool
}

// Preflight aggregates independent readiness probes into one report
// before a run starts: runtime reachability, disk headroom, and leftover
// resources.
type Preflight struct {
	cfg     PreflightConfig
	rt      runtime.Runtime
	cleaner *OrphanCleaner
	emitter events.Emitter
	logger  *slog.Logger

	// diskFree is swapped in tests; defaults to diskspace.Available.
	diskFree func(path string) (uint64, error)
}

// NewPreflight creates a checker sharing the cleaner's orphan detection.
func NewPreflight(cfg PreflightConfig, rt runtime.Runtime, cleaner *OrphanCleaner, emitter events.Emitter, logger *slog.Logger) *Preflight {
	if cfg.DiskSpaceThreshold == "" {
		cfg.DiskSpaceThreshold = DefaultDiskSpaceThreshold
	}
	if emitter == nil {
		emitter = events.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Preflight{
		cfg:      cfg,
		rt:       rt,
		cleaner:  cleaner,
		emitter:  emitter,
		logger:   logger.With("component", "preflight"),
		diskFree: diskspace.Available,
	}
}

// =============================================================================
// Individual Checks
// =============================================================================

// CheckDockerDaemon probes the runtime with a bounded info call.
func (p *Preflight) CheckDockerDaemon(ctx context.Context) domain.CheckResult {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, preflightProbeTimeout)
	defer cancel()

	version, err := p.rt.Exec(ctx, "info", "--format", "{{.ServerVersion}}")
	if err != nil {
		fe := faults.New(faults.CodeDockerUnavailable, "")
		return domain.CheckResult{
			Name:    CheckNameDockerDaemon,
			Status:  domain.CheckStatusFail,
			Message: fe.Message,
			Details: map[string]any{
				"code":             string(faults.CodeDockerUnavailable),
				"error":            err.Error(),
				"suggestedActions": fe.SuggestedActions,
			},
			DurationMS: time.Since(started).Milliseconds(),
		}
	}

	return domain.CheckResult{
		Name:       CheckNameDockerDaemon,
		Status:     domain.CheckStatusPass,
		Message:    "docker daemon reachable",
		Details:    map[string]any{"serverVersion": version},
		DurationMS: time.Since(started).Milliseconds(),
	}
}

// CheckDiskSpace classifies free space on the root filesystem against the
// configured threshold. A failing probe degrades to a warning: a run is
// never blocked just because disk reporting is broken.
func (p *Preflight) CheckDiskSpace(ctx context.Context) domain.CheckResult {
	started := time.Now()

	threshold, err := bytesize.Parse(p.cfg.DiskSpaceThreshold)
	if err != nil {
		p.logger.Warn("bad disk space threshold, using default",
			"threshold", p.cfg.DiskSpaceThreshold, "error", err)
		threshold, _ = bytesize.Parse(DefaultDiskSpaceThreshold)
	}

	avail, err := p.diskFree("/")
	if err != nil {
		return domain.CheckResult{
			Name:       CheckNameDiskSpace,
			Status:     domain.CheckStatusWarn,
			Message:    "could not determine free disk space",
			Details:    map[string]any{"error": err.Error()},
			DurationMS: time.Since(started).Milliseconds(),
		}
	}

	status, message := health.ClassifyDiskSpace(avail, threshold)
	details := map[string]any{
		"availableBytes": avail,
		"thresholdBytes": threshold,
	}
	if status == domain.CheckStatusFail {
		details["code"] = string(faults.CodeDiskSpaceLow)
	}

	return domain.CheckResult{
		Name:       CheckNameDiskSpace,
		Status:     status,
		Message:    message,
		Details:    details,
		DurationMS: time.Since(started).Milliseconds(),
	}
}

// CheckOrphans warns when earlier runs left resources behind.
func (p *Preflight) CheckOrphans(ctx context.Context) domain.CheckResult {
	started := time.Now()

	orphans := p.cleaner.Detect(ctx)
	if len(orphans) == 0 {
		return domain.CheckResult{
			Name:       CheckNameOrphans,
			Status:     domain.CheckStatusPass,
			Message:    "no orphaned resources",
			DurationMS: time.Since(started).Milliseconds(),
		}
	}

	byType := map[string]int{}
	for _, o := range orphans {
		byType[string(o.Type)]++
	}

	return domain.CheckResult{
		Name:    CheckNameOrphans,
		Status:  domain.CheckStatusWarn,
		Message: "orphaned resources from previous runs detected",
		Details: map[string]any{
			"code":      string(faults.CodeOrphanDetected),
			"count":     len(orphans),
			"breakdown": byType,
		},
		DurationMS: time.Since(started).Milliseconds(),
	}
}

// =============================================================================
// Aggregation
// =============================================================================

// RunAll runs every check, emits the preflight event sequence, and folds
// the outcomes into one report. All checks always run; an early failure
// does not suppress the later ones.
func (p *Preflight) RunAll(ctx context.Context) domain.HealthReport {
	started := time.Now()
	p.emitter.Emit(events.ChannelResilience, events.Payload(events.EventPreflightStart))

	checks := []domain.CheckResult{
		p.CheckDockerDaemon(ctx),
		p.CheckDiskSpace(ctx),
		p.CheckOrphans(ctx),
	}
	for _, check := range checks {
		p.logger.Info("preflight check",
			"name", check.Name,
			"status", string(check.Status),
			"message", check.Message)
		p.emitter.Emit(events.ChannelResilience, events.Payload(events.EventPreflightCheck,
			"name", check.Name,
			"status", string(check.Status),
			"durationMs", check.DurationMS))
	}

	report := domain.HealthReport{
		Overall:    health.ComputeOverall(checks),
		Checks:     checks,
		Timestamp:  started.UTC(),
		DurationMS: time.Since(started).Milliseconds(),
	}

	p.emitter.Emit(events.ChannelResilience, events.Payload(events.EventPreflightEnd,
		"overall", string(report.Overall),
		"checks", len(report.Checks),
		"durationMs", report.DurationMS))

	return report
}
