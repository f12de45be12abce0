package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/argusai/argus/internal/core/domain"
	"github.com/argusai/argus/internal/core/envspec"
	"github.com/argusai/argus/internal/core/faults"
	"github.com/argusai/argus/internal/shell/events"
	"github.com/argusai/argus/internal/shell/runtime"
)

// =============================================================================
// Strategy
// =============================================================================

// Strategy selects how port conflicts are handled.
type Strategy string

const (
	// StrategyAuto reassigns an occupied port to the next free one.
	StrategyAuto Strategy = "auto"
	// StrategyFail aborts resolution on the first occupied port.
	StrategyFail Strategy = "fail"
)

// ParseStrategy parses a configured strategy name. Empty means auto.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyAuto, nil
	case StrategyAuto, StrategyFail:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown port strategy %q (want auto or fail)", s)
}

// DefaultMaxPortAttempts bounds one availability scan.
const DefaultMaxPortAttempts = 100

const (
	// minUnprivilegedPort is the floor for returned ports; privileged
	// ports are never handed out.
	minUnprivilegedPort = 1024
	maxPort             = 65535
)

// =============================================================================
// Port Resolver
// =============================================================================

// PortResolver detects host port conflicts for declared services and
// mocks, and either reassigns or fails according to its strategy.
type PortResolver struct {
	strategy Strategy
	rt       runtime.Runtime
	emitter  events.Emitter
	logger   *slog.Logger

	// pidForPort is swapped in tests; failures are silent by contract.
	pidForPort func(ctx context.Context, port int) string
}

// NewPortResolver creates a resolver. An empty strategy means auto.
func NewPortResolver(strategy Strategy, rt runtime.Runtime, emitter events.Emitter, logger *slog.Logger) *PortResolver {
	if strategy == "" {
		strategy = StrategyAuto
	}
	if emitter == nil {
		emitter = events.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PortResolver{
		strategy:   strategy,
		rt:         rt,
		emitter:    emitter,
		logger:     logger.With("component", "ports"),
		pidForPort: lsofPID,
	}
}

// FindAvailablePort scans upward from startPort for a free host port.
// Ports below 1024 are clamped to 1024, the scan never crosses 65535, and
// at most maxAttempts ports are probed (100 when maxAttempts is not
// positive). Exhaustion yields a PORT_EXHAUSTION error.
func (r *PortResolver) FindAvailablePort(ctx context.Context, startPort, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxPortAttempts
	}
	start := startPort
	if start < minUnprivilegedPort {
		start = minUnprivilegedPort
	}

	for i := 0; i < maxAttempts; i++ {
		port := start + i
		if port > maxPort {
			break
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if !r.rt.IsPortInUse(port) {
			return port, nil
		}
	}

	return 0, faults.New(faults.CodePortExhaustion,
		fmt.Sprintf("no free port found in %d attempts starting at %d", maxAttempts, start),
		faults.WithDetail("startPort", startPort),
		faults.WithDetail("maxAttempts", maxAttempts),
	)
}

// ResolveServicePorts resolves every declared service host port and every
// mock listen port, in declaration order. The input spec is never
// mutated; the returned copy carries the rewritten ports, and every
// resolved port yields a PortMapping whether it changed or not.
func (r *PortResolver) ResolveServicePorts(ctx context.Context, spec *envspec.Spec) (*envspec.Spec, []domain.PortMapping, error) {
	resolved := spec.Clone()
	var mappings []domain.PortMapping

	for si := range resolved.Services {
		svc := &resolved.Services[si]
		for pi := range svc.Ports {
			m, err := r.resolveOne(ctx, svc.Name, svc.Ports[pi].Host)
			if err != nil {
				return nil, nil, err
			}
			svc.Ports[pi].Host = m.ActualPort
			mappings = append(mappings, m)
		}
	}

	for mi := range resolved.Mocks {
		mock := &resolved.Mocks[mi]
		m, err := r.resolveOne(ctx, mock.Name, mock.Port)
		if err != nil {
			return nil, nil, err
		}
		mock.Port = m.ActualPort
		mappings = append(mappings, m)
	}

	return resolved, mappings, nil
}

func (r *PortResolver) resolveOne(ctx context.Context, service string, port int) (domain.PortMapping, error) {
	if !r.rt.IsPortInUse(port) {
		return domain.PortMapping{Service: service, OriginalPort: port, ActualPort: port}, nil
	}

	pid := r.pidForPort(ctx, port)
	r.logger.Warn("port conflict detected", "service", service, "port", port, "pid", pid)
	r.emitter.Emit(events.ChannelResilience, events.Payload(events.EventPortConflict,
		"service", service, "port", port, "pid", pid))

	if r.strategy == StrategyFail {
		return domain.PortMapping{}, faults.New(faults.CodePortConflict,
			fmt.Sprintf("port %d requested by %s is already in use", port, service),
			faults.WithDetail("service", service),
			faults.WithDetail("port", port),
			faults.WithDetail("pid", pid),
		)
	}

	next, err := r.FindAvailablePort(ctx, port+1, DefaultMaxPortAttempts)
	if err != nil {
		return domain.PortMapping{}, err
	}

	r.logger.Info("port reassigned", "service", service, "from", port, "to", next)
	r.emitter.Emit(events.ChannelResilience, events.Payload(events.EventPortReassigned,
		"service", service, "from", port, "to", next))

	return domain.PortMapping{Service: service, OriginalPort: port, ActualPort: next, Reassigned: true}, nil
}

// lsofPID best-effort resolves the process occupying a port. Any failure
// (lsof missing, no permission, nothing matched) yields an empty string.
func lsofPID(ctx context.Context, port int) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "lsof", "-ti", fmt.Sprintf(":%d", port)).Output()
	if err != nil {
		return ""
	}
	pid, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return pid
}
