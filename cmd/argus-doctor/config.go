package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/argusai/argus/internal/core/backoff"
	"github.com/argusai/argus/internal/shell/resilience"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all doctor configuration.
type Config struct {
	Project    string           `mapstructure:"project"`
	RunID      string           `mapstructure:"run_id"`
	Log        LogConfig        `mapstructure:"log"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ResilienceConfig groups the per-component settings.
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Restart        RestartConfig        `mapstructure:"restart"`
	Preflight      PreflightConfig      `mapstructure:"preflight"`
	Ports          PortsConfig          `mapstructure:"ports"`
}

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

// RestartConfig holds container restart configuration.
type RestartConfig struct {
	RestartOnFailure bool          `mapstructure:"restart_on_failure"`
	MaxRestarts      int           `mapstructure:"max_restarts"`
	RestartDelay     time.Duration `mapstructure:"restart_delay"`
	RestartBackoff   string        `mapstructure:"restart_backoff"`
}

// PreflightConfig holds preflight check configuration.
type PreflightConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	DiskSpaceThreshold string `mapstructure:"disk_space_threshold"`
	CleanOrphans       bool   `mapstructure:"clean_orphans"`
}

// PortsConfig holds port resolution configuration.
type PortsConfig struct {
	Strategy string `mapstructure:"strategy"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("project", "")
	v.SetDefault("run_id", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("resilience.circuit_breaker.failure_threshold", resilience.DefaultFailureThreshold)
	v.SetDefault("resilience.circuit_breaker.reset_timeout", "60s")
	v.SetDefault("resilience.restart.restart_on_failure", true)
	v.SetDefault("resilience.restart.max_restarts", 3)
	v.SetDefault("resilience.restart.restart_delay", "1s")
	v.SetDefault("resilience.restart.restart_backoff", string(backoff.ModeExponential))
	v.SetDefault("resilience.preflight.enabled", true)
	v.SetDefault("resilience.preflight.disk_space_threshold", resilience.DefaultDiskSpaceThreshold)
	v.SetDefault("resilience.preflight.clean_orphans", true)
	v.SetDefault("resilience.ports.strategy", string(resilience.StrategyAuto))

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("ARGUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Reject values the engine would silently misread.
	if _, err := backoff.ParseMode(cfg.Resilience.Restart.RestartBackoff); err != nil {
		return nil, fmt.Errorf("invalid restart backoff: %w", err)
	}
	if _, err := resilience.ParseStrategy(cfg.Resilience.Ports.Strategy); err != nil {
		return nil, fmt.Errorf("invalid port strategy: %w", err)
	}

	return &cfg, nil
}

// EngineConfig maps the file shape onto the engine's component configs.
// The backoff mode and port strategy strings were validated by LoadConfig.
func (c *Config) EngineConfig() resilience.Config {
	mode, _ := backoff.ParseMode(c.Resilience.Restart.RestartBackoff)
	strategy, _ := resilience.ParseStrategy(c.Resilience.Ports.Strategy)

	return resilience.Config{
		Project: c.Project,
		RunID:   c.RunID,
		Breaker: resilience.BreakerConfig{
			FailureThreshold: c.Resilience.CircuitBreaker.FailureThreshold,
			ResetTimeout:     c.Resilience.CircuitBreaker.ResetTimeout,
		},
		Guardian: resilience.GuardianConfig{
			RestartOnFailure: c.Resilience.Restart.RestartOnFailure,
			MaxRestarts:      c.Resilience.Restart.MaxRestarts,
			RestartDelay:     c.Resilience.Restart.RestartDelay,
			Backoff:          mode,
		},
		Preflight: resilience.PreflightConfig{
			Enabled:            c.Resilience.Preflight.Enabled,
			DiskSpaceThreshold: c.Resilience.Preflight.DiskSpaceThreshold,
			CleanOrphans:       c.Resilience.Preflight.CleanOrphans,
		},
		PortStrategy: strategy,
	}
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Logs go to stderr; stdout is for the report and event lines.
	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
