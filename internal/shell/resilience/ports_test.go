package resilience

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argusai/argus/internal/core/envspec"
	"github.com/argusai/argus/internal/core/faults"
	"github.com/argusai/argus/internal/shell/events"
	"github.com/argusai/argus/internal/shell/runtime"
)

// =============================================================================
// Test Helpers
// =============================================================================

func newResolver(strategy Strategy, fake *runtime.Fake, rec *events.Recorder) *PortResolver {
	var emitter events.Emitter
	if rec != nil {
		emitter = rec
	}
	r := NewPortResolver(strategy, fake, emitter, discardLogger())
	// Tests never shell out for PID lookups.
	r.pidForPort = func(context.Context, int) string { return "" }
	return r
}

func twoServiceSpec() *envspec.Spec {
	return &envspec.Spec{
		Project: "shop",
		Services: []envspec.Service{
			{Name: "api", Image: "shop/api:1", Ports: []envspec.PortSpec{{Host: 8080, Container: 80}}},
			{Name: "db", Image: "postgres:16", Ports: []envspec.PortSpec{{Host: 5432, Container: 5432}}},
		},
		Mocks: []envspec.Mock{
			{Name: "payments", Port: 9000, Source: "payments.yaml"},
		},
	}
}

// =============================================================================
// Strategy Tests
// =============================================================================

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		input   string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyAuto, false},
		{"auto", StrategyAuto, false},
		{"fail", StrategyFail, false},
		{"panic", "", true},
		{"AUTO", "", true},
	}

	for _, tt := range tests {
		t.Run("input_"+tt.input, func(t *testing.T) {
			got, err := ParseStrategy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// FindAvailablePort Tests
// =============================================================================

func TestFindAvailablePort_FirstPortFree(t *testing.T) {
	fake := runtime.NewFake()
	r := newResolver(StrategyAuto, fake, nil)

	port, err := r.FindAvailablePort(context.Background(), 3000, 0)
	require.NoError(t, err)
	assert.Equal(t, 3000, port)
}

func TestFindAvailablePort_SkipsOccupied(t *testing.T) {
	fake := runtime.NewFake()
	fake.SetPortInUse(3000, 3001)
	r := newResolver(StrategyAuto, fake, nil)

	port, err := r.FindAvailablePort(context.Background(), 3000, 0)
	require.NoError(t, err)
	assert.Equal(t, 3002, port)
}

func TestFindAvailablePort_NeverReturnsPrivileged(t *testing.T) {
	fake := runtime.NewFake()
	r := newResolver(StrategyAuto, fake, nil)

	port, err := r.FindAvailablePort(context.Background(), 80, 0)
	require.NoError(t, err)
	assert.Equal(t, 1024, port)
}

func TestFindAvailablePort_Exhaustion(t *testing.T) {
	fake := runtime.NewFake()
	for p := 2000; p < 2010; p++ {
		fake.SetPortInUse(p)
	}
	r := newResolver(StrategyAuto, fake, nil)

	_, err := r.FindAvailablePort(context.Background(), 2000, 10)
	require.Error(t, err)
	assert.True(t, faults.IsCode(err, faults.CodePortExhaustion))

	var fe *faults.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 2000, fe.Details["startPort"])
	assert.Equal(t, 10, fe.Details["maxAttempts"])
}

func TestFindAvailablePort_StopsAtPortSpaceEnd(t *testing.T) {
	fake := runtime.NewFake()
	for p := 65530; p <= 65535; p++ {
		fake.SetPortInUse(p)
	}
	r := newResolver(StrategyAuto, fake, nil)

	_, err := r.FindAvailablePort(context.Background(), 65530, 100)
	assert.True(t, faults.IsCode(err, faults.CodePortExhaustion),
		"the scan must not wander past 65535")
}

func TestFindAvailablePort_ContextCancelled(t *testing.T) {
	fake := runtime.NewFake()
	fake.SetPortInUse(3000)
	r := newResolver(StrategyAuto, fake, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.FindAvailablePort(ctx, 3000, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// ResolveServicePorts Tests
// =============================================================================

func TestResolveServicePorts_AllFree(t *testing.T) {
	fake := runtime.NewFake()
	rec := events.NewRecorder()
	r := newResolver(StrategyAuto, fake, rec)

	spec := twoServiceSpec()
	resolved, mappings, err := r.ResolveServicePorts(context.Background(), spec)
	require.NoError(t, err)

	// Every port yields a mapping, none reassigned.
	require.Len(t, mappings, 3)
	for _, m := range mappings {
		assert.False(t, m.Reassigned)
		assert.Equal(t, m.OriginalPort, m.ActualPort)
	}

	assert.Equal(t, 8080, resolved.Services[0].Ports[0].Host)
	assert.Equal(t, 9000, resolved.Mocks[0].Port)
	assert.Empty(t, rec.Events())
}

func TestResolveServicePorts_AutoReassigns(t *testing.T) {
	fake := runtime.NewFake()
	fake.SetPortInUse(8080)
	rec := events.NewRecorder()
	r := newResolver(StrategyAuto, fake, rec)

	spec := twoServiceSpec()
	resolved, mappings, err := r.ResolveServicePorts(context.Background(), spec)
	require.NoError(t, err)

	require.Len(t, mappings, 3)
	assert.Equal(t, "api", mappings[0].Service)
	assert.Equal(t, 8080, mappings[0].OriginalPort)
	assert.Equal(t, 8081, mappings[0].ActualPort)
	assert.True(t, mappings[0].Reassigned)

	// The copy is rewritten; the input is untouched.
	assert.Equal(t, 8081, resolved.Services[0].Ports[0].Host)
	assert.Equal(t, 8080, spec.Services[0].Ports[0].Host)

	// Exactly one conflict and one reassignment event.
	require.Len(t, rec.ByEvent(events.EventPortConflict), 1)
	require.Len(t, rec.ByEvent(events.EventPortReassigned), 1)

	reassigned := rec.ByEvent(events.EventPortReassigned)[0]
	assert.Equal(t, "api", reassigned.Data["service"])
	assert.Equal(t, 8080, reassigned.Data["from"])
	assert.Equal(t, 8081, reassigned.Data["to"])
}

func TestResolveServicePorts_MockPortReassigned(t *testing.T) {
	fake := runtime.NewFake()
	fake.SetPortInUse(9000)
	rec := events.NewRecorder()
	r := newResolver(StrategyAuto, fake, rec)

	spec := twoServiceSpec()
	resolved, mappings, err := r.ResolveServicePorts(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, 9001, resolved.Mocks[0].Port)
	assert.Equal(t, 9000, spec.Mocks[0].Port)

	last := mappings[len(mappings)-1]
	assert.Equal(t, "payments", last.Service)
	assert.True(t, last.Reassigned)
}

func TestResolveServicePorts_FailStrategy(t *testing.T) {
	fake := runtime.NewFake()
	fake.SetPortInUse(8080)
	rec := events.NewRecorder()
	r := newResolver(StrategyFail, fake, rec)

	spec := twoServiceSpec()
	_, _, err := r.ResolveServicePorts(context.Background(), spec)
	require.Error(t, err)
	assert.True(t, faults.IsCode(err, faults.CodePortConflict))

	var fe *faults.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "api", fe.Details["service"])
	assert.Equal(t, 8080, fe.Details["port"])

	// Conflict reported, but no reassignment search under fail.
	assert.Len(t, rec.ByEvent(events.EventPortConflict), 1)
	assert.Empty(t, rec.ByEvent(events.EventPortReassigned))
}

func TestResolveServicePorts_PIDInConflictPayload(t *testing.T) {
	fake := runtime.NewFake()
	fake.SetPortInUse(8080)
	rec := events.NewRecorder()
	r := newResolver(StrategyAuto, fake, rec)
	r.pidForPort = func(context.Context, int) string { return "4242" }

	_, _, err := r.ResolveServicePorts(context.Background(), twoServiceSpec())
	require.NoError(t, err)

	conflict := rec.ByEvent(events.EventPortConflict)[0]
	assert.Equal(t, "4242", conflict.Data["pid"])
	assert.Equal(t, 8080, conflict.Data["port"])
}
