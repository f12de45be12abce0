package domain

import "time"

// =============================================================================
// Orphan Cleanup
// =============================================================================

// ResourceType identifies the kind of a managed runtime resource.
type ResourceType string

const (
	ResourceContainer ResourceType = "container"
	ResourceNetwork   ResourceType = "network"
	ResourceVolume    ResourceType = "volume"
)

// OrphanResource is a managed resource left behind by an earlier run.
type OrphanResource struct {
	Type      ResourceType `json:"type"`
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Project   string       `json:"project"`
	RunID     string       `json:"runId,omitempty"`
	CreatedAt string       `json:"createdAt,omitempty"`
}

// CleanupFailure pairs a resource with the reason its removal failed.
type CleanupFailure struct {
	Resource OrphanResource `json:"resource"`
	Reason   string         `json:"reason"`
}

// CleanupResult summarizes one cleanup sweep. Removals are independent:
// Failed entries never prevent later resources from being attempted.
type CleanupResult struct {
	Found      int              `json:"found"`
	Removed    []OrphanResource `json:"removed"`
	Failed     []CleanupFailure `json:"failed"`
	DurationMS int64            `json:"durationMs"`
	Timestamp  time.Time        `json:"timestamp"`
}
