package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argusai/argus/internal/core/domain"
	"github.com/argusai/argus/internal/core/faults"
	"github.com/argusai/argus/internal/core/labels"
	"github.com/argusai/argus/internal/shell/events"
	"github.com/argusai/argus/internal/shell/runtime"
)

// =============================================================================
// Test Helpers
// =============================================================================

func newTestGuardian(fake *runtime.Fake, rec *events.Recorder, maxRestarts int) *Guardian {
	// A nil *Recorder must stay a nil interface, or NewGuardian's
	// nil-emitter guard never fires and Emit panics on the nil pointer.
	var emitter events.Emitter
	if rec != nil {
		emitter = rec
	}
	g := NewGuardian(
		GuardianConfig{RestartOnFailure: true, MaxRestarts: maxRestarts, RestartDelay: time.Millisecond},
		labels.Ownership{Project: "shop", RunID: "run-1"},
		fake, emitter, discardLogger(),
	)
	g.settle = time.Millisecond
	return g
}

func webOpts() runtime.RunOptions {
	return runtime.RunOptions{
		Name:   "web",
		Image:  "shop/web:1",
		Labels: map[string]string{"team": "platform"},
	}
}

// =============================================================================
// Fast-Path Tests
// =============================================================================

func TestMonitorAndRestart_RunningContainerIsNoOp(t *testing.T) {
	fake := runtime.NewFake()
	fake.SetStatuses("web", runtime.StatusRunning)
	rec := events.NewRecorder()
	g := newTestGuardian(fake, rec, 3)

	history, err := g.MonitorAndRestart(context.Background(), "web", webOpts())

	assert.NoError(t, err)
	assert.Nil(t, history)
	assert.Empty(t, rec.Events())
	assert.Empty(t, fake.Started)
}

func TestMonitorAndRestart_DisabledIsNoOp(t *testing.T) {
	fake := runtime.NewFake()
	fake.SetStatuses("web", runtime.StatusExited)
	g := NewGuardian(
		GuardianConfig{RestartOnFailure: false, MaxRestarts: 3},
		labels.Ownership{Project: "shop", RunID: "run-1"},
		fake, nil, discardLogger(),
	)

	history, err := g.MonitorAndRestart(context.Background(), "web", webOpts())

	assert.NoError(t, err)
	assert.Nil(t, history)
}

func TestMonitorAndRestart_UnreadableStatusIsNoOp(t *testing.T) {
	fake := runtime.NewFake() // nothing scripted: status query fails
	g := newTestGuardian(fake, nil, 3)

	history, err := g.MonitorAndRestart(context.Background(), "web", webOpts())

	assert.NoError(t, err)
	assert.Nil(t, history)
}

// =============================================================================
// Recovery Tests
// =============================================================================

func TestMonitorAndRestart_RecoversFirstAttempt(t *testing.T) {
	fake := runtime.NewFake()
	fake.SetStatuses("web", runtime.StatusExited, runtime.StatusRunning)
	rec := events.NewRecorder()
	g := newTestGuardian(fake, rec, 3)

	history, err := g.MonitorAndRestart(context.Background(), "web", webOpts())
	require.NoError(t, err)
	require.NotNil(t, history)

	assert.Equal(t, domain.RestartOutcomeRecovered, history.FinalStatus)
	assert.Equal(t, "web", history.ContainerName)
	require.Len(t, history.Attempts, 1)
	assert.Equal(t, 1, history.Attempts[0].AttemptNumber)

	// Old container removed, fresh one started.
	assert.Equal(t, []string{"web"}, fake.Stopped)
	require.Len(t, fake.Started, 1)

	assert.Equal(t, []string{events.EventRestartAttempt, events.EventRestartSuccess}, rec.Events())
	success := rec.ByEvent(events.EventRestartSuccess)[0]
	assert.Equal(t, "web", success.Data["container"])
	assert.Equal(t, 1, success.Data["attempt"])
}

func TestMonitorAndRestart_RecoversSecondAttempt(t *testing.T) {
	fake := runtime.NewFake()
	// Initial query, post-attempt-1 query, post-attempt-2 query.
	fake.SetStatuses("web", runtime.StatusExited, runtime.StatusExited, runtime.StatusRunning)
	rec := events.NewRecorder()
	g := newTestGuardian(fake, rec, 3)

	history, err := g.MonitorAndRestart(context.Background(), "web", webOpts())
	require.NoError(t, err)
	require.NotNil(t, history)

	assert.Equal(t, domain.RestartOutcomeRecovered, history.FinalStatus)
	require.Len(t, history.Attempts, 2)
	assert.Len(t, rec.ByEvent(events.EventRestartAttempt), 2)
	assert.Len(t, rec.ByEvent(events.EventRestartSuccess), 1)
}

func TestMonitorAndRestart_MergesOwnershipLabels(t *testing.T) {
	fake := runtime.NewFake()
	fake.SetStatuses("web", runtime.StatusExited, runtime.StatusRunning)
	g := newTestGuardian(fake, nil, 3)

	opts := webOpts()
	opts.Labels["argusai.project"] = "impostor"

	_, err := g.MonitorAndRestart(context.Background(), "web", opts)
	require.NoError(t, err)

	require.Len(t, fake.Started, 1)
	started := fake.Started[0].Labels
	assert.Equal(t, "true", started[labels.KeyManaged])
	assert.Equal(t, "shop", started[labels.KeyProject], "ownership labels win over caller labels")
	assert.Equal(t, "run-1", started[labels.KeyRunID])
	assert.Equal(t, "platform", started["team"])
}

// =============================================================================
// Exhaustion Tests
// =============================================================================

func TestMonitorAndRestart_ExhaustsAttempts(t *testing.T) {
	fake := runtime.NewFake()
	fake.SetStatuses("web", runtime.StatusExited) // stays exited forever
	rec := events.NewRecorder()
	g := newTestGuardian(fake, rec, 2)

	history, err := g.MonitorAndRestart(context.Background(), "web", webOpts())
	require.Error(t, err)
	assert.True(t, faults.IsCode(err, faults.CodeContainerRestartExhausted))

	require.NotNil(t, history)
	assert.Equal(t, domain.RestartOutcomeExhausted, history.FinalStatus)
	require.Len(t, history.Attempts, 2, "exactly MaxRestarts attempts are recorded")

	var fe *faults.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 2, fe.Details["attempts"])
	assert.Equal(t, history, fe.Details["history"])

	assert.Equal(t, []string{
		events.EventRestartAttempt,
		events.EventRestartAttempt,
		events.EventRestartExhausted,
	}, rec.Events())
}

func TestMonitorAndRestart_StartFailureCountsAsAttempt(t *testing.T) {
	fake := runtime.NewFake()
	fake.SetStatuses("web", runtime.StatusExited, runtime.StatusRunning)
	fake.FailStart(assert.AnError)
	g := newTestGuardian(fake, nil, 2)

	history, err := g.MonitorAndRestart(context.Background(), "web", webOpts())
	require.NoError(t, err)

	// Attempt 1 failed to start, attempt 2 recovered.
	require.Len(t, history.Attempts, 2)
	assert.Equal(t, domain.RestartOutcomeRecovered, history.FinalStatus)
	assert.Len(t, fake.Started, 2)
}

func TestMonitorAndRestart_BackoffDelaysRecorded(t *testing.T) {
	fake := runtime.NewFake()
	fake.SetStatuses("web", runtime.StatusExited)
	g := NewGuardian(
		GuardianConfig{RestartOnFailure: true, MaxRestarts: 3, RestartDelay: 4 * time.Millisecond},
		labels.Ownership{Project: "shop", RunID: "run-1"},
		fake, nil, discardLogger(),
	)
	g.settle = time.Millisecond

	history, err := g.MonitorAndRestart(context.Background(), "web", webOpts())
	require.Error(t, err)
	require.Len(t, history.Attempts, 3)

	// Exponential progression: base, base, base*2.
	assert.Equal(t, int64(4), history.Attempts[0].DelayMS)
	assert.Equal(t, int64(4), history.Attempts[1].DelayMS)
	assert.Equal(t, int64(8), history.Attempts[2].DelayMS)
}

func TestMonitorAndRestart_CancelledContext(t *testing.T) {
	fake := runtime.NewFake()
	fake.SetStatuses("web", runtime.StatusExited)
	g := newTestGuardian(fake, nil, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	history, err := g.MonitorAndRestart(ctx, "web", webOpts())
	assert.ErrorIs(t, err, context.Canceled)

	// The partial history still comes back for inspection.
	require.NotNil(t, history)
	assert.Equal(t, domain.RestartOutcomeExhausted, history.FinalStatus)
	assert.Len(t, history.Attempts, 1)
	assert.Empty(t, fake.Started, "no container is started once the context is gone")
}
