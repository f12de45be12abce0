package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/argusai/argus/internal/core/domain"
	"github.com/argusai/argus/internal/core/envspec"
	"github.com/argusai/argus/internal/shell/events"
	"github.com/argusai/argus/internal/shell/resilience"
	"github.com/argusai/argus/internal/shell/runtime"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess      = 0
	ExitConfigError  = 1
	ExitRuntimeError = 2
	ExitUnhealthy    = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	project := flag.String("project", "", "Project name (overrides config)")
	runID := flag.String("run-id", "", "Run identifier (overrides config)")
	envPath := flag.String("env", "", "Environment spec to resolve ports for")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Handle version flag
	if *showVersion {
		fmt.Printf("argus-doctor %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	// Load configuration
	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	if *project != "" {
		cfg.Project = *project
	}
	if *runID != "" {
		cfg.RunID = *runID
	}
	if cfg.Project == "" {
		fmt.Fprintln(os.Stderr, "a project is required: pass -project or set it in the config")
		return ExitConfigError
	}

	// Setup logger
	logger := SetupLogger(cfg)
	logger.Info("starting argus-doctor",
		"version", Version,
		"project", cfg.Project,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Event stream to the console
	bus := events.NewBus()
	unsubscribe := bus.Subscribe(renderEvent)
	defer unsubscribe()

	rt, err := runtime.NewDocker(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
		return ExitRuntimeError
	}
	defer rt.Close()

	engine := resilience.NewEngine(cfg.EngineConfig(), rt, bus, logger)
	logger.Info("engine ready", "run_id", engine.RunID())

	report, cleanup, err := engine.Prepare(ctx)
	printReport(report)
	printCleanup(cleanup)
	if err != nil {
		fmt.Fprintf(os.Stderr, "environment is not ready: %v\n", err)
		return ExitUnhealthy
	}

	if *envPath != "" {
		if code := resolvePorts(ctx, engine, cfg.Project, *envPath); code != ExitSuccess {
			return code
		}
	}

	return ExitSuccess
}

// resolvePorts loads an environment spec and reports where each declared
// host port would actually land.
func resolvePorts(ctx context.Context, engine *resilience.Engine, project, path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read environment spec: %v\n", err)
		return ExitConfigError
	}

	var spec *envspec.Spec
	if strings.Contains(filepath.Base(path), "compose") {
		spec, err = envspec.ParseCompose(string(data), project)
	} else {
		spec, err = envspec.Parse(data)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment spec: %v\n", err)
		return ExitConfigError
	}

	_, mappings, err := engine.Ports().ResolveServicePorts(ctx, spec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "port resolution failed: %v\n", err)
		return ExitRuntimeError
	}

	printMappings(mappings)
	return ExitSuccess
}

// =============================================================================
// Console Rendering
// =============================================================================

// renderEvent prints one line per resilience event.
func renderEvent(channel string, msg events.Message) {
	fmt.Printf("  [%s] %s%s\n", channel, msg.Event, formatData(msg.Data))
}

// formatData renders the payload as sorted key=value pairs. The type and
// timestamp entries duplicate what the line already shows.
func formatData(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		if k == "type" || k == "timestamp" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, data[k])
	}
	return b.String()
}

func printReport(report *domain.HealthReport) {
	if report == nil {
		return
	}
	fmt.Printf("\nenvironment: %s (%dms)\n", report.Overall, report.DurationMS)
	for _, check := range report.Checks {
		fmt.Printf("  %-4s %-13s %s\n", check.Status, check.Name, check.Message)
	}
}

func printCleanup(result *domain.CleanupResult) {
	if result == nil {
		return
	}
	if result.Found == 0 {
		fmt.Println("\nno orphaned resources")
		return
	}
	fmt.Printf("\norphans: removed %d of %d (%dms)\n", len(result.Removed), result.Found, result.DurationMS)
	for _, failure := range result.Failed {
		fmt.Printf("  could not remove %s %s: %s\n", failure.Resource.Type, failure.Resource.Name, failure.Reason)
	}
}

func printMappings(mappings []domain.PortMapping) {
	if len(mappings) == 0 {
		fmt.Println("\nno host ports declared")
		return
	}
	fmt.Println("\nport assignments:")
	for _, m := range mappings {
		if m.Reassigned {
			fmt.Printf("  %-15s %d -> %d (reassigned)\n", m.Service, m.OriginalPort, m.ActualPort)
		} else {
			fmt.Printf("  %-15s %d\n", m.Service, m.ActualPort)
		}
	}
}
