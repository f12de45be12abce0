// Package resilience keeps a containerized test environment self-healing:
// a circuit breaker around runtime calls, port conflict resolution, crash
// recovery with backoff, orphan reconciliation, and preflight readiness
// checks. Components are built per project run and share one error
// vocabulary and one event stream.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/argusai/argus/internal/core/faults"
	"github.com/argusai/argus/internal/shell/events"
)

// =============================================================================
// Breaker State
// =============================================================================

// State is a circuit position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// DefaultFailureThreshold opens the circuit after this many consecutive
// failures when the config leaves the threshold unset.
const DefaultFailureThreshold = 5

// historyCap bounds the remembered failure ring.
const historyCap = 20

// BreakerConfig configures one Breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive failure count that opens the
	// circuit. Zero or negative means DefaultFailureThreshold.
	FailureThreshold int
	// ResetTimeout is accepted for configuration compatibility but never
	// consulted: an open circuit recovers only through an explicit Reset.
	ResetTimeout time.Duration
}

// FailureRecord is one remembered failure.
type FailureRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// BreakerStats is a point-in-time copy of the breaker state.
type BreakerStats struct {
	State               State           `json:"state"`
	ConsecutiveFailures int             `json:"consecutiveFailures"`
	TotalFailures       int             `json:"totalFailures"`
	TotalSuccesses      int             `json:"totalSuccesses"`
	LastFailure         time.Time       `json:"lastFailure"`
	LastTransition      time.Time       `json:"lastTransition"`
	History             []FailureRecord `json:"history"`
}

// ResetResult reports the transition an explicit reset produced.
type ResetResult struct {
	Previous State `json:"previous"`
	Current  State `json:"current"`
}

// =============================================================================
// Breaker
// =============================================================================

// Breaker stops hammering a broken runtime: it opens after a run of
// consecutive failures, fast-fails while open, and probes recovery with a
// single call once explicitly reset.
//
// A Breaker belongs to exactly one owner and is not safe for concurrent
// use; give every engine instance its own.
type Breaker struct {
	cfg     BreakerConfig
	emitter events.Emitter
	logger  *slog.Logger

	state          State
	consecutive    int
	totalFailures  int
	totalSuccesses int
	lastFailure    time.Time
	lastTransition time.Time
	history        []FailureRecord
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig, emitter events.Emitter, logger *slog.Logger) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if emitter == nil {
		emitter = events.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{
		cfg:            cfg,
		emitter:        emitter,
		logger:         logger.With("component", "breaker"),
		state:          StateClosed,
		lastTransition: time.Now().UTC(),
	}
}

// Execute runs op under the breaker policy. While the circuit is open it
// rejects immediately with a CIRCUIT_OPEN error and op is never invoked.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	switch b.state {
	case StateOpen:
		return faults.New(faults.CodeCircuitOpen,
			fmt.Sprintf("circuit is open after %d consecutive failures", b.consecutive),
			faults.WithDetail("failures", b.consecutive),
			faults.WithDetail("threshold", b.cfg.FailureThreshold),
		)

	case StateHalfOpen:
		// Exactly one probe decides which way the circuit goes.
		if err := op(ctx); err != nil {
			b.recordFailure(err)
			b.consecutive = b.cfg.FailureThreshold
			b.transition(StateOpen)
			return err
		}
		b.totalSuccesses++
		b.consecutive = 0
		b.history = nil
		b.transition(StateClosed)
		return nil
	}

	// Closed.
	if err := op(ctx); err != nil {
		b.recordFailure(err)
		if b.consecutive >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
		return err
	}
	b.totalSuccesses++
	b.consecutive = 0
	return nil
}

// Reset moves an open circuit to half-open so the next Execute probes
// recovery. From closed or half-open it is a no-op.
func (b *Breaker) Reset() ResetResult {
	prev := b.state
	if b.state == StateOpen {
		b.transition(StateHalfOpen)
	}
	return ResetResult{Previous: prev, Current: b.state}
}

// Snapshot returns a copy of the breaker state. History never aliases the
// internal ring, so callers cannot mutate it.
func (b *Breaker) Snapshot() BreakerStats {
	history := make([]FailureRecord, len(b.history))
	copy(history, b.history)
	return BreakerStats{
		State:               b.state,
		ConsecutiveFailures: b.consecutive,
		TotalFailures:       b.totalFailures,
		TotalSuccesses:      b.totalSuccesses,
		LastFailure:         b.lastFailure,
		LastTransition:      b.lastTransition,
		History:             history,
	}
}

// =============================================================================
// Internals
// =============================================================================

func (b *Breaker) recordFailure(err error) {
	b.consecutive++
	b.totalFailures++
	b.lastFailure = time.Now().UTC()
	b.history = append(b.history, FailureRecord{Timestamp: b.lastFailure, Reason: err.Error()})
	if len(b.history) > historyCap {
		b.history = b.history[len(b.history)-historyCap:]
	}
}

func (b *Breaker) transition(next State) {
	if b.state == next {
		return
	}
	b.state = next
	b.lastTransition = time.Now().UTC()

	switch next {
	case StateOpen:
		b.logger.Warn("circuit opened",
			"failures", b.consecutive,
			"threshold", b.cfg.FailureThreshold)
		b.emitter.Emit(events.ChannelResilience, events.Payload(events.EventCircuitOpen,
			"failures", b.consecutive,
			"threshold", b.cfg.FailureThreshold))
	case StateHalfOpen:
		b.logger.Info("circuit half-open, next call probes recovery")
		b.emitter.Emit(events.ChannelResilience, events.Payload(events.EventCircuitHalfOpen))
	case StateClosed:
		b.logger.Info("circuit closed")
		b.emitter.Emit(events.ChannelResilience, events.Payload(events.EventCircuitClosed))
	}
}
