package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/argusai/argus/internal/core/domain"
	"github.com/argusai/argus/internal/core/labels"
	"github.com/argusai/argus/internal/shell/events"
	"github.com/argusai/argus/internal/shell/runtime"
)

// =============================================================================
// Orphan Cleaner
// =============================================================================

// CleanerConfig identifies the current run. Managed resources of the same
// project whose run id differs are orphan candidates.
type CleanerConfig struct {
	Project string
	RunID   string
}

// OrphanCleaner reconciles resources leaked by earlier runs: containers,
// networks, and volumes carrying this project's ownership labels.
type OrphanCleaner struct {
	cfg     CleanerConfig
	rt      runtime.Runtime
	emitter events.Emitter
	logger  *slog.Logger
}

// NewOrphanCleaner creates a cleaner for one project run.
func NewOrphanCleaner(cfg CleanerConfig, rt runtime.Runtime, emitter events.Emitter, logger *slog.Logger) *OrphanCleaner {
	if emitter == nil {
		emitter = events.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OrphanCleaner{
		cfg:     cfg,
		rt:      rt,
		emitter: emitter,
		logger:  logger.With("component", "orphans"),
	}
}

// =============================================================================
// Detection
// =============================================================================

// Detect lists managed resources of this project left behind by other
// runs. The three resource families are listed independently and each
// degrades to empty on failure, so a flaky listing never aborts
// detection; Detect itself has no error return.
func (c *OrphanCleaner) Detect(ctx context.Context) []domain.OrphanResource {
	var orphans []domain.OrphanResource

	orphans = append(orphans, c.listFamily(ctx, domain.ResourceContainer,
		[]string{"ps", "-a"}, "{{.ID}}\t{{.Names}}\t{{.CreatedAt}}\t{{.Labels}}")...)
	orphans = append(orphans, c.listFamily(ctx, domain.ResourceNetwork,
		[]string{"network", "ls"}, "{{.ID}}\t{{.Name}}\t{{.Labels}}")...)
	orphans = append(orphans, c.listFamily(ctx, domain.ResourceVolume,
		[]string{"volume", "ls"}, "{{.Name}}\t{{.Labels}}")...)

	return orphans
}

func (c *OrphanCleaner) listFamily(ctx context.Context, rtype domain.ResourceType, listArgs []string, format string) []domain.OrphanResource {
	args := append([]string{}, listArgs...)
	for _, f := range labels.Selector(c.cfg.Project) {
		args = append(args, "--filter", "label="+f)
	}
	args = append(args, "--format", format)

	out, err := c.rt.Exec(ctx, args...)
	if err != nil {
		c.logger.Warn("orphan listing failed", "resource", string(rtype), "error", err)
		return nil
	}

	var found []domain.OrphanResource
	for _, line := range strings.Split(out, "\n") {
		res, ok := c.parseRow(rtype, line)
		if !ok {
			continue
		}
		// The current run's resources are not orphans.
		if c.cfg.RunID != "" && res.RunID == c.cfg.RunID {
			continue
		}
		found = append(found, res)
	}
	return found
}

func (c *OrphanCleaner) parseRow(rtype domain.ResourceType, line string) (domain.OrphanResource, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return domain.OrphanResource{}, false
	}
	fields := strings.Split(line, "\t")

	res := domain.OrphanResource{Type: rtype, Project: c.cfg.Project}
	switch rtype {
	case domain.ResourceContainer:
		if len(fields) < 4 {
			return domain.OrphanResource{}, false
		}
		res.ID, res.Name, res.CreatedAt = fields[0], fields[1], fields[2]
		res.RunID = labels.RunIDOf(labels.ParseList(fields[3]))
	case domain.ResourceNetwork:
		if len(fields) < 3 {
			return domain.OrphanResource{}, false
		}
		res.ID, res.Name = fields[0], fields[1]
		res.RunID = labels.RunIDOf(labels.ParseList(fields[2]))
	case domain.ResourceVolume:
		if len(fields) < 2 {
			return domain.OrphanResource{}, false
		}
		// Volumes are addressed by name.
		res.ID, res.Name = fields[0], fields[0]
		res.RunID = labels.RunIDOf(labels.ParseList(fields[1]))
	}
	return res, true
}

// =============================================================================
// Cleanup
// =============================================================================

// Cleanup removes orphans in dependency order: containers first, then
// networks, then volumes, since containers hold references to the other
// two. Removals are independent; a failure is recorded in the result and
// the sweep continues.
func (c *OrphanCleaner) Cleanup(ctx context.Context, orphans []domain.OrphanResource) domain.CleanupResult {
	started := time.Now()
	result := domain.CleanupResult{Found: len(orphans), Timestamp: started.UTC()}

	for _, rtype := range []domain.ResourceType{domain.ResourceContainer, domain.ResourceNetwork, domain.ResourceVolume} {
		for _, res := range orphans {
			if res.Type != rtype {
				continue
			}
			if err := c.remove(ctx, res); err != nil {
				c.logger.Warn("orphan removal failed",
					"resource", string(res.Type), "name", res.Name, "error", err)
				result.Failed = append(result.Failed, domain.CleanupFailure{Resource: res, Reason: err.Error()})
				c.emitter.Emit(events.ChannelResilience, events.Payload(events.EventCleanupResource,
					"resourceType", string(res.Type),
					"name", res.Name,
					"id", res.ID,
					"status", "failed",
					"error", err.Error()))
				continue
			}
			result.Removed = append(result.Removed, res)
			c.emitter.Emit(events.ChannelResilience, events.Payload(events.EventCleanupResource,
				"resourceType", string(res.Type),
				"name", res.Name,
				"id", res.ID,
				"status", "removed"))
		}
	}

	result.DurationMS = time.Since(started).Milliseconds()
	return result
}

func (c *OrphanCleaner) remove(ctx context.Context, res domain.OrphanResource) error {
	switch res.Type {
	case domain.ResourceContainer:
		return c.rt.StopContainer(ctx, res.ID)
	case domain.ResourceNetwork:
		_, err := c.rt.Exec(ctx, "network", "rm", res.ID)
		return err
	case domain.ResourceVolume:
		_, err := c.rt.Exec(ctx, "volume", "rm", res.ID)
		return err
	}
	return fmt.Errorf("unknown resource type %q", res.Type)
}

// DetectAndCleanup is the full sweep: detect, remove, report. When
// nothing is found it short-circuits to an empty zero-duration result.
// The cleanup_start and cleanup_end events fire on every path.
func (c *OrphanCleaner) DetectAndCleanup(ctx context.Context) domain.CleanupResult {
	c.emitter.Emit(events.ChannelResilience, events.Payload(events.EventCleanupStart,
		"project", c.cfg.Project))

	orphans := c.Detect(ctx)
	var result domain.CleanupResult
	if len(orphans) == 0 {
		result = domain.CleanupResult{Timestamp: time.Now().UTC()}
	} else {
		c.logger.Info("cleaning orphaned resources",
			"project", c.cfg.Project, "found", len(orphans))
		result = c.Cleanup(ctx, orphans)
	}

	c.emitter.Emit(events.ChannelResilience, events.Payload(events.EventCleanupEnd,
		"found", result.Found,
		"removed", len(result.Removed),
		"failed", len(result.Failed),
		"durationMs", result.DurationMS))

	return result
}
