// Package runtime provides the container runtime boundary: one small
// interface the resilience components depend on, a Docker implementation,
// and an in-memory fake for tests.
package runtime

import (
	"context"
	"strings"
	"time"

	"github.com/argusai/argus/internal/core/domain"
	"github.com/argusai/argus/internal/core/envspec"
)

// =============================================================================
// Container Status
// =============================================================================

// Status is a container lifecycle state as the runtime reports it.
type Status string

const (
	StatusCreated    Status = "created"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusRestarting Status = "restarting"
	StatusRemoving   Status = "removing"
	StatusExited     Status = "exited"
	StatusDead       Status = "dead"
	StatusUnknown    Status = "unknown"
)

// statusFromState maps a raw runtime state string onto a Status.
func statusFromState(state string) Status {
	switch s := Status(state); s {
	case StatusCreated, StatusRunning, StatusPaused, StatusRestarting,
		StatusRemoving, StatusExited, StatusDead:
		return s
	}
	return StatusUnknown
}

// =============================================================================
// Run Options
// =============================================================================

// PortBinding publishes one container port on the host.
type PortBinding struct {
	HostPort      int
	ContainerPort int
	Protocol      string // tcp, udp; empty means tcp
}

// VolumeMount mounts a host path or named volume into the container.
type VolumeMount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// Healthcheck configures the container's own health probe.
type Healthcheck struct {
	Test     []string
	Interval time.Duration
	Timeout  time.Duration
	Retries  int
}

// RunOptions describes one container to create and start.
type RunOptions struct {
	Name        string
	Image       string
	Ports       []PortBinding
	Env         map[string]string
	Volumes     []VolumeMount
	Network     string
	Healthcheck *Healthcheck
	Labels      map[string]string
}

// =============================================================================
// Runtime Interface
// =============================================================================

// Runtime is the container runtime surface the resilience components use.
// Implementations must treat StopContainer as a force-remove that succeeds
// when the container is already gone.
type Runtime interface {
	// ContainerStatus reports the lifecycle state of a named container.
	ContainerStatus(ctx context.Context, name string) (Status, error)
	// ContainerLogs returns up to tail trailing log lines as plain text.
	ContainerLogs(ctx context.Context, name string, tail int) (string, error)
	// StopContainer force-removes a container. Removing a container that
	// does not exist is not an error.
	StopContainer(ctx context.Context, name string) error
	// StartContainer creates and starts a container, returning its ID.
	StartContainer(ctx context.Context, opts RunOptions) (string, error)
	// IsPortInUse reports whether anything is bound to the host port.
	IsPortInUse(port int) bool
	// Exec runs a raw runtime CLI command and returns its trimmed output.
	Exec(ctx context.Context, args ...string) (string, error)
}

// =============================================================================
// Spec Conversion
// =============================================================================

// OptionsFromService converts a declared service into run options,
// applying the resolved host ports from mappings (declared ports are kept
// when no mapping matches).
func OptionsFromService(svc envspec.Service, mappings []domain.PortMapping) RunOptions {
	opts := RunOptions{
		Name:    svc.Name,
		Image:   svc.Image,
		Network: svc.Network,
	}

	for _, p := range svc.Ports {
		host := p.Host
		for _, m := range mappings {
			if m.Service == svc.Name && m.OriginalPort == p.Host {
				host = m.ActualPort
				break
			}
		}
		opts.Ports = append(opts.Ports, PortBinding{
			HostPort:      host,
			ContainerPort: p.Container,
			Protocol:      p.Protocol,
		})
	}

	if len(svc.Environment) > 0 {
		opts.Env = make(map[string]string, len(svc.Environment))
		for k, v := range svc.Environment {
			opts.Env[k] = v
		}
	}

	for _, v := range svc.Volumes {
		if mount, ok := parseVolume(v); ok {
			opts.Volumes = append(opts.Volumes, mount)
		}
	}

	if len(svc.Labels) > 0 {
		opts.Labels = make(map[string]string, len(svc.Labels))
		for k, v := range svc.Labels {
			opts.Labels[k] = v
		}
	}

	if hc := svc.Healthcheck; hc != nil && len(hc.Test) > 0 {
		check := &Healthcheck{
			Test:    append([]string(nil), hc.Test...),
			Retries: hc.Retries,
		}
		// Malformed durations fall back to the runtime defaults.
		if d, err := time.ParseDuration(hc.Interval); err == nil {
			check.Interval = d
		}
		if d, err := time.ParseDuration(hc.Timeout); err == nil {
			check.Timeout = d
		}
		opts.Healthcheck = check
	}

	return opts
}

// parseVolume splits a "source:target[:ro]" mount string.
func parseVolume(s string) (VolumeMount, bool) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return VolumeMount{}, false
	}
	mount := VolumeMount{Source: parts[0], Target: parts[1]}
	if len(parts) == 3 && parts[2] == "ro" {
		mount.ReadOnly = true
	}
	return mount, true
}
