package resilience

import (
	"context"
	"log/slog"

	"github.com/argusai/argus/internal/core/domain"
	"github.com/argusai/argus/internal/core/faults"
	"github.com/argusai/argus/internal/core/labels"
	"github.com/argusai/argus/internal/shell/events"
	"github.com/argusai/argus/internal/shell/runtime"
)

// =============================================================================
// Engine
// =============================================================================

// Config assembles the per-run settings of every resilience component.
type Config struct {
	Project      string
	RunID        string
	Breaker      BreakerConfig
	Guardian     GuardianConfig
	Preflight    PreflightConfig
	PortStrategy Strategy
}

// Engine owns one instance of every resilience component for a single
// project run. Build one engine per run; nothing here is shared or
// global, so concurrent runs cannot bleed state into each other.
type Engine struct {
	cfg       Config
	breaker   *Breaker
	ports     *PortResolver
	guardian  *Guardian
	cleaner   *OrphanCleaner
	preflight *Preflight
	logger    *slog.Logger
}

// NewEngine wires the components around one runtime and one emitter. An
// empty run id gets a fresh one.
func NewEngine(cfg Config, rt runtime.Runtime, emitter events.Emitter, logger *slog.Logger) *Engine {
	if cfg.RunID == "" {
		cfg.RunID = domain.NewRunID()
	}
	if emitter == nil {
		emitter = events.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}

	own := labels.Ownership{Project: cfg.Project, RunID: cfg.RunID}
	cleaner := NewOrphanCleaner(CleanerConfig{Project: cfg.Project, RunID: cfg.RunID}, rt, emitter, logger)

	return &Engine{
		cfg:       cfg,
		breaker:   NewBreaker(cfg.Breaker, emitter, logger),
		ports:     NewPortResolver(cfg.PortStrategy, rt, emitter, logger),
		guardian:  NewGuardian(cfg.Guardian, own, rt, emitter, logger),
		cleaner:   cleaner,
		preflight: NewPreflight(cfg.Preflight, rt, cleaner, emitter, logger),
		logger:    logger.With("component", "engine"),
	}
}

func (e *Engine) Breaker() *Breaker { return e.breaker }

func (e *Engine) Ports() *PortResolver { return e.ports }

func (e *Engine) Guardian() *Guardian { return e.guardian }

func (e *Engine) Cleaner() *OrphanCleaner { return e.cleaner }

func (e *Engine) Preflight() *Preflight { return e.preflight }

// RunID returns the run identifier stamped on everything this engine
// starts.
func (e *Engine) RunID() string { return e.cfg.RunID }

// Prepare runs the startup sequence: preflight when enabled, then orphan
// cleanup when configured. An unhealthy preflight aborts preparation and
// returns the report together with a classified error built from its
// first failing check.
func (e *Engine) Prepare(ctx context.Context) (*domain.HealthReport, *domain.CleanupResult, error) {
	var report *domain.HealthReport
	if e.cfg.Preflight.Enabled {
		r := e.preflight.RunAll(ctx)
		report = &r
		if r.Overall == domain.HealthStatusUnhealthy {
			e.logger.Error("preflight failed", "overall", string(r.Overall))
			return report, nil, preflightError(r)
		}
	}

	var cleanup *domain.CleanupResult
	if e.cfg.Preflight.CleanOrphans {
		c := e.cleaner.DetectAndCleanup(ctx)
		cleanup = &c
	}

	return report, cleanup, nil
}

// preflightError turns the first failing check into a classified error.
// Checks stamp their taxonomy code into Details; a missing code falls
// back to the unknown-code classification.
func preflightError(report domain.HealthReport) error {
	for _, check := range report.Checks {
		if check.Status != domain.CheckStatusFail {
			continue
		}
		var code faults.Code
		if c, ok := check.Details["code"].(string); ok {
			code = faults.Code(c)
		}
		return faults.New(code, check.Message, faults.WithDetail("check", check.Name))
	}
	return nil
}
