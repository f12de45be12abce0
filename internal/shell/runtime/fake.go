package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// =============================================================================
// Fake Runtime
// =============================================================================

var _ Runtime = (*Fake)(nil)

// Fake is an in-memory Runtime for tests. Statuses and CLI outputs are
// scripted per container, and every call that touches the world is recorded.
type Fake struct {
	mu sync.Mutex

	statuses map[string][]Status
	logs     map[string]string
	scripts  map[string]execScript
	inUse    map[int]bool

	startErrs []error
	stopErrs  []error

	// Recorded calls, in order.
	Started   []RunOptions
	Stopped   []string
	ExecCalls [][]string
}

type execScript struct {
	output string
	err    error
}

// NewFake creates an empty fake runtime.
func NewFake() *Fake {
	return &Fake{
		statuses: make(map[string][]Status),
		logs:     make(map[string]string),
		scripts:  make(map[string]execScript),
		inUse:    make(map[int]bool),
	}
}

// SetStatuses scripts the status sequence reported for name. The last
// status repeats once the sequence is drained.
func (f *Fake) SetStatuses(name string, statuses ...Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[name] = statuses
}

// SetLogs scripts the log text returned for name.
func (f *Fake) SetLogs(name, logs string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[name] = logs
}

// SetExec scripts the output for an exact CLI invocation.
func (f *Fake) SetExec(output string, args ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[strings.Join(args, " ")] = execScript{output: output}
}

// FailExec scripts a failure for an exact CLI invocation.
func (f *Fake) FailExec(err error, args ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[strings.Join(args, " ")] = execScript{err: err}
}

// SetPortInUse marks host ports as occupied.
func (f *Fake) SetPortInUse(ports ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range ports {
		f.inUse[p] = true
	}
}

// FailStart queues errors for upcoming StartContainer calls; a nil entry
// means that call succeeds.
func (f *Fake) FailStart(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErrs = append(f.startErrs, errs...)
}

// FailStop queues errors for upcoming StopContainer calls.
func (f *Fake) FailStop(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopErrs = append(f.stopErrs, errs...)
}

// =============================================================================
// Runtime Implementation
// =============================================================================

func (f *Fake) ContainerStatus(_ context.Context, name string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	queue := f.statuses[name]
	if len(queue) == 0 {
		return StatusUnknown, newError("ContainerStatus", name, ErrNotFound)
	}
	status := queue[0]
	if len(queue) > 1 {
		f.statuses[name] = queue[1:]
	}
	return status, nil
}

func (f *Fake) ContainerLogs(_ context.Context, name string, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	logs, ok := f.logs[name]
	if !ok {
		return "", newError("ContainerLogs", name, ErrNotFound)
	}
	return logs, nil
}

func (f *Fake) StopContainer(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Stopped = append(f.Stopped, name)
	if len(f.stopErrs) > 0 {
		err := f.stopErrs[0]
		f.stopErrs = f.stopErrs[1:]
		if err != nil {
			return newError("StopContainer", name, err)
		}
	}
	return nil
}

func (f *Fake) StartContainer(_ context.Context, opts RunOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Started = append(f.Started, opts)
	if len(f.startErrs) > 0 {
		err := f.startErrs[0]
		f.startErrs = f.startErrs[1:]
		if err != nil {
			return "", newError("StartContainer", opts.Name, err)
		}
	}
	// Leave scripted statuses alone so tests control the post-start state.
	if len(f.statuses[opts.Name]) == 0 {
		f.statuses[opts.Name] = []Status{StatusRunning}
	}
	return "fake-" + opts.Name, nil
}

func (f *Fake) IsPortInUse(port int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inUse[port]
}

func (f *Fake) Exec(_ context.Context, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ExecCalls = append(f.ExecCalls, args)
	key := strings.Join(args, " ")
	script, ok := f.scripts[key]
	if !ok {
		return "", newError("Exec", args[0], fmt.Errorf("unscripted command %q", key))
	}
	if script.err != nil {
		return "", newError("Exec", args[0], script.err)
	}
	return script.output, nil
}
