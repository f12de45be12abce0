package domain

import "time"

// =============================================================================
// Container Diagnostics
// =============================================================================

// MemoryStats holds the two halves of the runtime's "usage / limit" memory
// string, kept verbatim so the report shows exactly what the runtime said.
type MemoryStats struct {
	Peak  string `json:"peak"`
	Limit string `json:"limit"`
}

// ContainerDiagnostics is a best-effort snapshot of a failed container.
// Every field is captured independently; whatever could not be read stays
// at its zero value. Diagnostics are evidence for the operator, never a
// gate for control flow.
type ContainerDiagnostics struct {
	ContainerID   string       `json:"containerId,omitempty"`
	ContainerName string       `json:"containerName"`
	ExitCode      *int         `json:"exitCode,omitempty"`
	OOMKilled     bool         `json:"oomKilled"`
	Logs          []string     `json:"logs,omitempty"`
	MemoryStats   *MemoryStats `json:"memoryStats,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// =============================================================================
// Restart History
// =============================================================================

// RestartOutcome is the terminal state of a restart sequence.
type RestartOutcome string

const (
	RestartOutcomeRecovered RestartOutcome = "recovered"
	RestartOutcomeExhausted RestartOutcome = "exhausted"
)

// RestartAttempt records one recovery attempt, including the diagnostics
// captured before the container was replaced.
type RestartAttempt struct {
	AttemptNumber int                  `json:"attemptNumber"`
	DelayMS       int64                `json:"delayMs"`
	Diagnostics   ContainerDiagnostics `json:"diagnostics"`
}

// RestartHistory is the full record of a recovery sequence for one
// container.
type RestartHistory struct {
	ContainerName string           `json:"containerName"`
	Attempts      []RestartAttempt `json:"attempts"`
	FinalStatus   RestartOutcome   `json:"finalStatus"`
}
