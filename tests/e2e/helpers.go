package e2e

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/argusai/argus/internal/shell/runtime"
)

// =============================================================================
// Test Helpers
// =============================================================================

// requireDocker connects to the local daemon or skips the test.
func requireDocker(t *testing.T) *runtime.Docker {
	t.Helper()
	rt, err := runtime.NewDocker(discardLogger())
	if err != nil {
		t.Skip("Docker not available:", err)
	}
	if err := rt.Ping(context.Background()); err != nil {
		rt.Close()
		t.Skip("Docker not reachable:", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// uniqueName builds a collision-free resource name for one test run.
func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// ensureImage pulls the image so container creation cannot fail on a
// fresh daemon. Skips the test when the registry is unreachable.
func ensureImage(t *testing.T, rt *runtime.Docker, image string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	if _, err := rt.Exec(ctx, "pull", image); err != nil {
		t.Skipf("cannot pull %s: %v", image, err)
	}
}

// removeContainer force-removes a container, ignoring failures.
func removeContainer(rt *runtime.Docker, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = rt.StopContainer(ctx, name)
}

// waitForStatus polls until the container reaches the wanted status.
func waitForStatus(t *testing.T, rt *runtime.Docker, name string, want runtime.Status, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		status, err := rt.ContainerStatus(context.Background(), name)
		if err == nil && status == want {
			return
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("container %s did not reach status %s within %s", name, want, timeout)
}
