// Package faults defines the classified error vocabulary shared by every
// resilience component. Each code maps to a fixed category, a default
// severity, and remediation guidance; callers attach the per-incident
// message and details.
package faults

// =============================================================================
// Classification
// =============================================================================

// Category groups codes by the subsystem that failed.
type Category string

const (
	CategoryInfrastructure Category = "infrastructure"
	CategoryContainer      Category = "container"
	CategoryNetwork        Category = "network"
	CategorySystem         Category = "system"
)

// Severity ranks how an error should be handled by callers.
type Severity string

const (
	// SeverityFatal means the run cannot continue.
	SeverityFatal Severity = "fatal"
	// SeverityRecoverable means a retry or fallback may succeed.
	SeverityRecoverable Severity = "recoverable"
	// SeverityWarning means the run continues degraded.
	SeverityWarning Severity = "warning"
)

// Code identifies one failure class.
type Code string

const (
	// Infrastructure
	CodeDockerUnavailable Code = "DOCKER_UNAVAILABLE"
	CodeDiskSpaceLow      Code = "DISK_SPACE_LOW"
	CodeOrphanDetected    Code = "ORPHAN_DETECTED"
	CodeCleanupFailed     Code = "CLEANUP_FAILED"

	// Container
	CodeContainerOOM              Code = "CONTAINER_OOM"
	CodeContainerCrash            Code = "CONTAINER_CRASH"
	CodeContainerRestartExhausted Code = "CONTAINER_RESTART_EXHAUSTED"
	CodeHealthCheckTimeout        Code = "HEALTH_CHECK_TIMEOUT"

	// Network
	CodePortConflict        Code = "PORT_CONFLICT"
	CodePortExhaustion      Code = "PORT_EXHAUSTION"
	CodeNetworkUnreachable  Code = "NETWORK_UNREACHABLE"
	CodeDNSResolutionFailed Code = "DNS_RESOLUTION_FAILED"

	// System
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)

// =============================================================================
// Registry
// =============================================================================

type classification struct {
	category Category
	severity Severity
	summary  string
	actions  []string
}

var registry = map[Code]classification{
	CodeDockerUnavailable: {
		category: CategoryInfrastructure,
		severity: SeverityFatal,
		summary:  "Docker daemon is not reachable",
		actions: []string{
			"Start the Docker daemon (e.g. 'systemctl start docker')",
			"Check that DOCKER_HOST points at a reachable daemon",
			"Verify your user can access the Docker socket",
		},
	},
	CodeDiskSpaceLow: {
		category: CategoryInfrastructure,
		severity: SeverityWarning,
		summary:  "available disk space is below the configured threshold",
		actions: []string{
			"Free space with 'docker system prune'",
			"Remove unused images and volumes",
			"Lower the disk space threshold if this headroom is acceptable",
		},
	},
	CodeOrphanDetected: {
		category: CategoryInfrastructure,
		severity: SeverityWarning,
		summary:  "resources from a previous run are still present",
		actions: []string{
			"Run orphan cleanup before starting",
			"Remove leftovers manually with 'docker rm' / 'docker network rm'",
		},
	},
	CodeCleanupFailed: {
		category: CategoryInfrastructure,
		severity: SeverityWarning,
		summary:  "some orphaned resources could not be removed",
		actions: []string{
			"Remove the listed resources manually",
			"Check daemon permissions for the current user",
		},
	},
	CodeContainerOOM: {
		category: CategoryContainer,
		severity: SeverityRecoverable,
		summary:  "container was killed by the out-of-memory killer",
		actions: []string{
			"Raise the container memory limit",
			"Inspect the workload for memory leaks",
		},
	},
	CodeContainerCrash: {
		category: CategoryContainer,
		severity: SeverityRecoverable,
		summary:  "container exited unexpectedly",
		actions: []string{
			"Check the container logs for the crash reason",
			"Inspect the exit code in the attached diagnostics",
			"Verify the image and its startup command",
		},
	},
	CodeContainerRestartExhausted: {
		category: CategoryContainer,
		severity: SeverityFatal,
		summary:  "container did not recover within the restart budget",
		actions: []string{
			"Inspect the attached diagnostics for the root cause",
			"Fix the underlying failure before retrying",
			"Raise max_restarts if the service needs longer to stabilize",
		},
	},
	CodeHealthCheckTimeout: {
		category: CategoryContainer,
		severity: SeverityRecoverable,
		summary:  "container did not become healthy in time",
		actions: []string{
			"Raise the health check timeout or retries",
			"Check the health check command inside the container",
		},
	},
	CodePortConflict: {
		category: CategoryNetwork,
		severity: SeverityRecoverable,
		summary:  "requested host port is already in use",
		actions: []string{
			"Stop the process occupying the port",
			"Switch the port strategy to 'auto' to reassign automatically",
			"Choose a different host port",
		},
	},
	CodePortExhaustion: {
		category: CategoryNetwork,
		severity: SeverityFatal,
		summary:  "no free host port found in the scanned range",
		actions: []string{
			"Free host ports held by stale processes",
			"Lower the start port to widen the scan range",
			"Raise the maximum scan attempts",
		},
	},
	CodeNetworkUnreachable: {
		category: CategoryNetwork,
		severity: SeverityRecoverable,
		summary:  "network endpoint could not be reached",
		actions: []string{
			"Check that the project network exists and the container is attached",
			"Verify the target service is running",
		},
	},
	CodeDNSResolutionFailed: {
		category: CategoryNetwork,
		severity: SeverityRecoverable,
		summary:  "hostname could not be resolved",
		actions: []string{
			"Check the service name and network aliases",
			"Verify the containers share a network",
		},
	},
	CodeCircuitOpen: {
		category: CategorySystem,
		severity: SeverityFatal,
		summary:  "circuit breaker is open; operations are fast-failing",
		actions: []string{
			"Fix the failures recorded in the breaker history",
			"Reset the breaker once the fault is resolved",
		},
	},
}

// classify returns the registry entry for code. Unknown codes fall back to
// a fatal system classification so a bad code can never panic or slip
// through unranked.
func classify(code Code) classification {
	if c, ok := registry[code]; ok {
		return c
	}
	return classification{category: CategorySystem, severity: SeverityFatal}
}
