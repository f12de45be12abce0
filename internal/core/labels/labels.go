// Package labels defines the ownership labels stamped on every resource
// the engine creates. The labels are how a later run recognizes leftovers
// from an earlier one: managed marks the resource as ours, project scopes
// it, and run-id tells runs apart.
package labels

import "strings"

// =============================================================================
// Label Keys
// =============================================================================

const (
	// KeyManaged marks a resource as created by this tool.
	KeyManaged = "argusai.managed"
	// KeyProject carries the owning project identifier.
	KeyProject = "argusai.project"
	// KeyRunID carries the run that created the resource.
	KeyRunID = "argusai.run-id"

	// ManagedValue is the only value ever written for KeyManaged.
	ManagedValue = "true"
)

// =============================================================================
// Ownership
// =============================================================================

// Ownership identifies the project and run that own a resource.
type Ownership struct {
	Project string
	RunID   string
}

// Set returns the ownership labels for stamping onto a new resource.
func (o Ownership) Set() map[string]string {
	return map[string]string{
		KeyManaged: ManagedValue,
		KeyProject: o.Project,
		KeyRunID:   o.RunID,
	}
}

// Merge overlays the ownership labels onto extra labels. Ownership wins on
// conflict so user labels can never spoof or drop the markers.
func (o Ownership) Merge(extra map[string]string) map[string]string {
	merged := make(map[string]string, len(extra)+3)
	for k, v := range extra {
		merged[k] = v
	}
	for k, v := range o.Set() {
		merged[k] = v
	}
	return merged
}

// Selector returns the label expressions that match resources managed for
// the given project, in the "key=value" form runtime filters accept.
func Selector(project string) []string {
	return []string{
		KeyManaged + "=" + ManagedValue,
		KeyProject + "=" + project,
	}
}

// =============================================================================
// Reading Labels Back
// =============================================================================

// ParseList parses the comma-separated "key=value" list the runtime CLI
// prints for a resource. Malformed entries are skipped.
func ParseList(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Owned reports whether the labels mark a resource as managed for project.
func Owned(m map[string]string, project string) bool {
	return m[KeyManaged] == ManagedValue && m[KeyProject] == project
}

// RunIDOf extracts the run id label, empty when absent.
func RunIDOf(m map[string]string) string {
	return m[KeyRunID]
}
