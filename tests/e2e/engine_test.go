// Package e2e exercises the resilience engine against a live Docker
// daemon. The tests create and destroy real containers, networks, and
// volumes. Run with:
//
//	go test -v -timeout 10m ./tests/e2e/...
package e2e

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argusai/argus/internal/core/domain"
	"github.com/argusai/argus/internal/core/envspec"
	"github.com/argusai/argus/internal/core/faults"
	"github.com/argusai/argus/internal/core/labels"
	"github.com/argusai/argus/internal/shell/resilience"
	"github.com/argusai/argus/internal/shell/runtime"
)

// crashImage runs /bin/sh with no tty attached, so the container exits
// the moment it starts. serviceImage stays up until removed.
const (
	crashImage   = "alpine:3.20"
	serviceImage = "nginx:alpine"
)

// =============================================================================
// Engine Preparation
// =============================================================================

func TestE2E_PrepareReportsHealthyEnvironment(t *testing.T) {
	rt := requireDocker(t)

	engine := resilience.NewEngine(resilience.Config{
		Project: uniqueName("argus-e2e"),
		Preflight: resilience.PreflightConfig{
			Enabled: true,
			// A floor this low keeps the disk check out of the way; the
			// daemon probe and orphan scan are what this test is about.
			DiskSpaceThreshold: "1KB",
		},
	}, rt, nil, discardLogger())

	report, cleanup, err := engine.Prepare(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Nil(t, cleanup)

	assert.Equal(t, domain.HealthStatusHealthy, report.Overall)
	require.Len(t, report.Checks, 3)
	assert.Equal(t, domain.CheckStatusPass, report.Checks[0].Status, "daemon probe")
	assert.NotEmpty(t, report.Checks[0].Details["serverVersion"])
	assert.Equal(t, domain.CheckStatusPass, report.Checks[2].Status,
		"a project this fresh has no orphans")
}

// =============================================================================
// Guardian
// =============================================================================

func TestE2E_GuardianLeavesRunningContainerAlone(t *testing.T) {
	rt := requireDocker(t)
	ensureImage(t, rt, serviceImage)

	name := uniqueName("argus-e2e-web")
	ctx := context.Background()
	_, err := rt.StartContainer(ctx, runtime.RunOptions{Name: name, Image: serviceImage})
	require.NoError(t, err)
	defer removeContainer(rt, name)
	waitForStatus(t, rt, name, runtime.StatusRunning, 15*time.Second)

	g := resilience.NewGuardian(
		resilience.GuardianConfig{RestartOnFailure: true, MaxRestarts: 2, RestartDelay: 100 * time.Millisecond},
		labels.Ownership{Project: "argus-e2e", RunID: "run-1"},
		rt, nil, discardLogger(),
	)

	history, err := g.MonitorAndRestart(ctx, name, runtime.RunOptions{Image: serviceImage})
	assert.NoError(t, err)
	assert.Nil(t, history, "a healthy container needs no intervention")
}

func TestE2E_GuardianExhaustsOnCrashLoop(t *testing.T) {
	rt := requireDocker(t)
	ensureImage(t, rt, crashImage)

	name := uniqueName("argus-e2e-crash")
	ctx := context.Background()
	_, err := rt.StartContainer(ctx, runtime.RunOptions{Name: name, Image: crashImage})
	require.NoError(t, err)
	defer removeContainer(rt, name)
	waitForStatus(t, rt, name, runtime.StatusExited, 15*time.Second)

	g := resilience.NewGuardian(
		resilience.GuardianConfig{RestartOnFailure: true, MaxRestarts: 2, RestartDelay: 100 * time.Millisecond},
		labels.Ownership{Project: "argus-e2e", RunID: "run-1"},
		rt, nil, discardLogger(),
	)

	history, err := g.MonitorAndRestart(ctx, name, runtime.RunOptions{Image: crashImage})
	require.Error(t, err)
	assert.True(t, faults.IsCode(err, faults.CodeContainerRestartExhausted))

	require.NotNil(t, history)
	assert.Equal(t, domain.RestartOutcomeExhausted, history.FinalStatus)
	require.Len(t, history.Attempts, 2)

	// The container existed when forensics ran, so the exit state is real.
	diag := history.Attempts[0].Diagnostics
	require.NotNil(t, diag.ExitCode)
	assert.NotEmpty(t, diag.ContainerID)
}

// =============================================================================
// Orphan Cleanup
// =============================================================================

func TestE2E_CleanupSweepsPreviousRun(t *testing.T) {
	rt := requireDocker(t)
	ensureImage(t, rt, crashImage)

	project := uniqueName("argus-e2e")
	ctx := context.Background()
	stale := labels.Ownership{Project: project, RunID: "old-run"}

	containerName := uniqueName("argus-e2e-stale")
	_, err := rt.StartContainer(ctx, runtime.RunOptions{
		Name:   containerName,
		Image:  crashImage,
		Labels: stale.Set(),
	})
	require.NoError(t, err)
	defer removeContainer(rt, containerName)

	networkName := uniqueName("argus-e2e-net")
	_, err = rt.Exec(ctx, "network", "create",
		"--label", "argusai.managed=true",
		"--label", "argusai.project="+project,
		"--label", "argusai.run-id=old-run",
		networkName)
	require.NoError(t, err)
	defer func() { _, _ = rt.Exec(context.Background(), "network", "rm", networkName) }()

	volumeName := uniqueName("argus-e2e-vol")
	_, err = rt.Exec(ctx, "volume", "create",
		"--label", "argusai.managed=true",
		"--label", "argusai.project="+project,
		"--label", "argusai.run-id=old-run",
		volumeName)
	require.NoError(t, err)
	defer func() { _, _ = rt.Exec(context.Background(), "volume", "rm", volumeName) }()

	cleaner := resilience.NewOrphanCleaner(
		resilience.CleanerConfig{Project: project, RunID: "new-run"},
		rt, nil, discardLogger(),
	)

	orphans := cleaner.Detect(ctx)
	require.Len(t, orphans, 3, "one stale resource per family")

	result := cleaner.DetectAndCleanup(ctx)
	assert.Equal(t, 3, result.Found)
	assert.Len(t, result.Removed, 3)
	assert.Empty(t, result.Failed)

	_, err = rt.ContainerStatus(ctx, containerName)
	assert.ErrorIs(t, err, runtime.ErrNotFound)
	assert.Empty(t, cleaner.Detect(ctx), "a second sweep finds nothing")
}

// =============================================================================
// Port Resolution
// =============================================================================

func TestE2E_PortResolverAvoidsBoundPort(t *testing.T) {
	rt := requireDocker(t)

	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()
	busyPort := ln.Addr().(*net.TCPAddr).Port

	resolver := resilience.NewPortResolver(resilience.StrategyAuto, rt, nil, discardLogger())

	port, err := resolver.FindAvailablePort(context.Background(), busyPort, 50)
	require.NoError(t, err)
	assert.NotEqual(t, busyPort, port)
	assert.Greater(t, port, busyPort)

	spec := &envspec.Spec{
		Project: "argus-e2e",
		Services: []envspec.Service{{
			Name:  "api",
			Image: serviceImage,
			Ports: []envspec.PortSpec{{Host: busyPort, Container: 80}},
		}},
	}
	_, mappings, err := resolver.ResolveServicePorts(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.True(t, mappings[0].Reassigned)
	assert.NotEqual(t, busyPort, mappings[0].ActualPort,
		"port "+strconv.Itoa(busyPort)+" is held by the test listener")
}
