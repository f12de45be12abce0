package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/argusai/argus/internal/core/backoff"
	"github.com/argusai/argus/internal/core/domain"
	"github.com/argusai/argus/internal/core/faults"
	"github.com/argusai/argus/internal/core/labels"
	"github.com/argusai/argus/internal/shell/events"
	"github.com/argusai/argus/internal/shell/runtime"
)

// =============================================================================
// Guardian
// =============================================================================

// GuardianConfig configures crash recovery.
type GuardianConfig struct {
	// RestartOnFailure gates the whole restart loop.
	RestartOnFailure bool
	// MaxRestarts bounds the attempts of one MonitorAndRestart call.
	MaxRestarts int
	// RestartDelay is the base backoff delay. Zero or negative means 1s.
	RestartDelay time.Duration
	// Backoff selects the delay progression. Empty means exponential.
	Backoff backoff.Mode
}

// Guardian detects dead containers and replaces them with backoff,
// capturing diagnostics before every attempt. One Guardian serves one
// project run and stamps its ownership labels on every container it
// starts.
type Guardian struct {
	cfg     GuardianConfig
	own     labels.Ownership
	rt      runtime.Runtime
	emitter events.Emitter
	logger  *slog.Logger

	// settle is the post-start wait before the status re-query.
	settle time.Duration
}

// NewGuardian creates a guardian for one project run.
func NewGuardian(cfg GuardianConfig, own labels.Ownership, rt runtime.Runtime, emitter events.Emitter, logger *slog.Logger) *Guardian {
	if cfg.MaxRestarts < 0 {
		cfg.MaxRestarts = 0
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = time.Second
	}
	if cfg.Backoff == "" {
		cfg.Backoff = backoff.ModeExponential
	}
	if emitter == nil {
		emitter = events.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guardian{
		cfg:     cfg,
		own:     own,
		rt:      rt,
		emitter: emitter,
		logger:  logger.With("component", "guardian"),
		settle:  time.Second,
	}
}

// MonitorAndRestart recovers a crashed container. It returns (nil, nil)
// when there is nothing to do: restarts are disabled, the status cannot
// be read, or the container is not exited/dead. Otherwise it replaces the
// container up to MaxRestarts times, sleeping a backoff delay before each
// attempt, and returns the full attempt history. Exhaustion yields the
// history together with a CONTAINER_RESTART_EXHAUSTED error; context
// cancellation yields the partial history with the context error.
func (g *Guardian) MonitorAndRestart(ctx context.Context, name string, opts runtime.RunOptions) (*domain.RestartHistory, error) {
	if !g.cfg.RestartOnFailure {
		return nil, nil
	}

	status, err := g.rt.ContainerStatus(ctx, name)
	if err != nil || (status != runtime.StatusExited && status != runtime.StatusDead) {
		return nil, nil
	}

	g.logger.Warn("container needs recovery", "container", name, "status", string(status))

	opts.Name = name
	opts.Labels = g.own.Merge(opts.Labels)

	history := &domain.RestartHistory{
		ContainerName: name,
		FinalStatus:   domain.RestartOutcomeExhausted,
	}

	for attempt := 1; attempt <= g.cfg.MaxRestarts; attempt++ {
		diag := g.CaptureDiagnostics(ctx, name)
		delay := backoff.Delay(g.cfg.RestartDelay, attempt, g.cfg.Backoff)
		history.Attempts = append(history.Attempts, domain.RestartAttempt{
			AttemptNumber: attempt,
			DelayMS:       delay.Milliseconds(),
			Diagnostics:   diag,
		})

		g.logger.Info("restart attempt",
			"container", name,
			"attempt", attempt,
			"max", g.cfg.MaxRestarts,
			"delay", delay)
		g.emitter.Emit(events.ChannelResilience, events.Payload(events.EventRestartAttempt,
			"container", name,
			"attempt", attempt,
			"maxRestarts", g.cfg.MaxRestarts,
			"delayMs", delay.Milliseconds()))

		if err := sleepCtx(ctx, delay); err != nil {
			return history, err
		}

		// The old container is evidence we no longer need; removal
		// failures must not block the fresh start.
		if err := g.rt.StopContainer(ctx, name); err != nil {
			g.logger.Warn("pre-restart remove failed", "container", name, "error", err)
		}

		if _, err := g.rt.StartContainer(ctx, opts); err != nil {
			g.logger.Warn("restart failed to start container",
				"container", name, "attempt", attempt, "error", err)
			continue
		}

		if err := sleepCtx(ctx, g.settle); err != nil {
			return history, err
		}

		status, err := g.rt.ContainerStatus(ctx, name)
		if err == nil && status == runtime.StatusRunning {
			history.FinalStatus = domain.RestartOutcomeRecovered
			g.logger.Info("container recovered", "container", name, "attempt", attempt)
			g.emitter.Emit(events.ChannelResilience, events.Payload(events.EventRestartSuccess,
				"container", name, "attempt", attempt))
			return history, nil
		}
	}

	g.emitter.Emit(events.ChannelResilience, events.Payload(events.EventRestartExhausted,
		"container", name, "attempts", len(history.Attempts)))

	return history, faults.New(faults.CodeContainerRestartExhausted,
		fmt.Sprintf("container %s did not recover after %d restarts", name, g.cfg.MaxRestarts),
		faults.WithDetail("container", name),
		faults.WithDetail("attempts", len(history.Attempts)),
		faults.WithDetail("history", history),
	)
}

// sleepCtx waits for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
