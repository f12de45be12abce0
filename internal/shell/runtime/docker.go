package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os/exec"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
)

// =============================================================================
// Docker Runtime
// =============================================================================

var _ Runtime = (*Docker)(nil)

// Docker implements Runtime against a local Docker daemon: the SDK for
// lifecycle calls, the CLI for format-driven queries.
type Docker struct {
	cli    *client.Client
	logger *slog.Logger
}

// NewDocker creates the Docker runtime. The daemon is not probed here;
// preflight owns reachability, so construction works with the daemon down.
func NewDocker(logger *slog.Logger) (*Docker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, newError("NewDocker", "", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}

	return &Docker{
		cli:    cli,
		logger: logger.With("component", "runtime"),
	}, nil
}

// Ping checks whether the daemon is reachable.
func (d *Docker) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return newError("Ping", "", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	return nil
}

// Close closes the daemon connection.
func (d *Docker) Close() error {
	return d.cli.Close()
}

// =============================================================================
// Container Operations
// =============================================================================

// ContainerStatus reports the lifecycle state of a named container.
func (d *Docker) ContainerStatus(ctx context.Context, name string) (Status, error) {
	resp, err := d.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return StatusUnknown, newError("ContainerStatus", name, ErrNotFound)
		}
		return StatusUnknown, newError("ContainerStatus", name, err)
	}
	if resp.State == nil {
		return StatusUnknown, nil
	}
	return statusFromState(resp.State.Status), nil
}

// ContainerLogs returns up to tail trailing log lines as plain text.
func (d *Docker) ContainerLogs(ctx context.Context, name string, tail int) (string, error) {
	inspect, err := d.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", newError("ContainerLogs", name, ErrNotFound)
		}
		return "", newError("ContainerLogs", name, err)
	}

	opts := container.LogsOptions{ShowStdout: true, ShowStderr: true}
	if tail > 0 {
		opts.Tail = strconv.Itoa(tail)
	}

	reader, err := d.cli.ContainerLogs(ctx, name, opts)
	if err != nil {
		return "", newError("ContainerLogs", name, err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if inspect.Config != nil && inspect.Config.Tty {
		// TTY containers: raw stream, no multiplexing.
		_, err = io.Copy(&buf, reader)
	} else {
		// Non-TTY containers multiplex stdout/stderr with 8-byte headers.
		_, err = stdcopy.StdCopy(&buf, &buf, reader)
	}
	if err != nil {
		return "", newError("ContainerLogs", name, err)
	}
	return buf.String(), nil
}

// StopContainer force-removes the container. A container that is already
// gone counts as stopped.
func (d *Docker) StopContainer(ctx context.Context, name string) error {
	err := d.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return newError("StopContainer", name, err)
	}
	return nil
}

// StartContainer creates and starts a container from opts.
func (d *Docker) StartContainer(ctx context.Context, opts RunOptions) (string, error) {
	config := &container.Config{
		Image:  opts.Image,
		Labels: opts.Labels,
	}
	for k, v := range opts.Env {
		config.Env = append(config.Env, fmt.Sprintf("%s=%s", k, v))
	}

	hostConfig := &container.HostConfig{}

	if len(opts.Ports) > 0 {
		portBindings := nat.PortMap{}
		exposedPorts := nat.PortSet{}

		for _, p := range opts.Ports {
			proto := p.Protocol
			if proto == "" {
				proto = "tcp"
			}
			containerPort := nat.Port(fmt.Sprintf("%d/%s", p.ContainerPort, proto))
			exposedPorts[containerPort] = struct{}{}

			hostPort := ""
			if p.HostPort != 0 {
				hostPort = strconv.Itoa(p.HostPort)
			}
			portBindings[containerPort] = []nat.PortBinding{{HostPort: hostPort}}
		}

		config.ExposedPorts = exposedPorts
		hostConfig.PortBindings = portBindings
	}

	for _, v := range opts.Volumes {
		mountType := mount.TypeVolume
		if strings.HasPrefix(v.Source, "/") || strings.HasPrefix(v.Source, "./") {
			mountType = mount.TypeBind
		}
		hostConfig.Mounts = append(hostConfig.Mounts, mount.Mount{
			Type:     mountType,
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}

	if hc := opts.Healthcheck; hc != nil {
		config.Healthcheck = &container.HealthConfig{
			Test:     hc.Test,
			Interval: hc.Interval,
			Timeout:  hc.Timeout,
			Retries:  hc.Retries,
		}
	}

	var networkConfig *network.NetworkingConfig
	if opts.Network != "" {
		networkConfig = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				opts.Network: {},
			},
		}
	}

	resp, err := d.cli.ContainerCreate(ctx, config, hostConfig, networkConfig, nil, opts.Name)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "Conflict"):
			return "", newError("StartContainer", opts.Name, ErrAlreadyExists)
		case strings.Contains(err.Error(), "port is already allocated"):
			return "", newError("StartContainer", opts.Name, fmt.Errorf("%w: %v", ErrPortAllocated, err))
		}
		return "", newError("StartContainer", opts.Name, err)
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		if strings.Contains(err.Error(), "port is already allocated") {
			return "", newError("StartContainer", opts.Name, fmt.Errorf("%w: %v", ErrPortAllocated, err))
		}
		return "", newError("StartContainer", opts.Name, err)
	}

	d.logger.Debug("container started", "name", opts.Name, "id", resp.ID)
	return resp.ID, nil
}

// =============================================================================
// Host Probes
// =============================================================================

// IsPortInUse probes the host port with a TCP bind; a failed bind means
// some other process holds it.
func (d *Docker) IsPortInUse(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return true
	}
	ln.Close()
	return false
}

// Exec runs the docker CLI for the format-driven queries that have no
// convenient SDK shape. Output is trimmed; stderr rides on the error.
func (d *Docker) Exec(ctx context.Context, args ...string) (string, error) {
	d.logger.Debug("docker exec", "args", strings.Join(args, " "))

	out, err := exec.CommandContext(ctx, "docker", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", newError("Exec", args[0], fmt.Errorf("%v: %s", err, bytes.TrimSpace(exitErr.Stderr)))
		}
		return "", newError("Exec", args[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}
