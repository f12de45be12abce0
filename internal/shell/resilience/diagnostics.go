package resilience

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/argusai/argus/internal/core/domain"
)

// =============================================================================
// Container Diagnostics
// =============================================================================

// maxDiagnosticLogLines bounds the forensic log tail.
const maxDiagnosticLogLines = 100

// containerState is the slice of `inspect --format '{{json .State}}'`
// output the diagnostics care about.
type containerState struct {
	ExitCode  int  `json:"ExitCode"`
	OOMKilled bool `json:"OOMKilled"`
}

// CaptureDiagnostics snapshots forensic evidence for a container: exit
// state, id, log tail, and memory usage. Every read is best-effort and
// independent, so a container that is already gone simply yields empty
// fields; this never returns an error.
func (g *Guardian) CaptureDiagnostics(ctx context.Context, name string) domain.ContainerDiagnostics {
	diag := domain.ContainerDiagnostics{
		ContainerName: name,
		Timestamp:     time.Now().UTC(),
	}

	if out, err := g.rt.Exec(ctx, "inspect", "--format", "{{json .State}}", name); err != nil {
		g.logger.Warn("diagnostics: state read failed", "container", name, "error", err)
	} else if state, ok := parseContainerState(out); ok {
		exitCode := state.ExitCode
		diag.ExitCode = &exitCode
		diag.OOMKilled = state.OOMKilled
	}

	if out, err := g.rt.Exec(ctx, "inspect", "--format", "{{.Id}}", name); err != nil {
		g.logger.Warn("diagnostics: id read failed", "container", name, "error", err)
	} else {
		diag.ContainerID = out
	}

	if logs, err := g.rt.ContainerLogs(ctx, name, maxDiagnosticLogLines); err != nil {
		g.logger.Warn("diagnostics: log read failed", "container", name, "error", err)
	} else {
		diag.Logs = tailLines(logs, maxDiagnosticLogLines)
	}

	if out, err := g.rt.Exec(ctx, "stats", "--no-stream", "--format", "{{.MemUsage}}", name); err != nil {
		g.logger.Warn("diagnostics: stats read failed", "container", name, "error", err)
	} else {
		diag.MemoryStats = parseMemUsage(out)
	}

	return diag
}

// =============================================================================
// Parsing Helpers
// =============================================================================

func parseContainerState(raw string) (containerState, bool) {
	var state containerState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return containerState{}, false
	}
	return state, true
}

// parseMemUsage splits the runtime's "used / limit" stats column.
// Malformed input yields nil rather than a partial result.
func parseMemUsage(raw string) *domain.MemoryStats {
	peak, limit, ok := strings.Cut(raw, "/")
	if !ok {
		return nil
	}
	peak, limit = strings.TrimSpace(peak), strings.TrimSpace(limit)
	if peak == "" || limit == "" {
		return nil
	}
	return &domain.MemoryStats{Peak: peak, Limit: limit}
}

// tailLines splits log text into at most max trailing lines.
func tailLines(s string, max int) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines
}
