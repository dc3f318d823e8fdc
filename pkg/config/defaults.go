package config

import (
	"strings"
	"time"

	"github.com/marmos91/blockwarm/internal/bytesize"
	"github.com/marmos91/blockwarm/pkg/api"
	"github.com/marmos91/blockwarm/pkg/fdpool"
	"github.com/marmos91/blockwarm/pkg/warm"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyEngineDefaults(&cfg.Engine)
	applyPoolDefaults(&cfg.Pool)
	applyPlanDefaults(&cfg.Plan)
	applyWatchDefaults(&cfg.Watch)
	applyAPIDefaults(&cfg.API)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)
	// No need to set, zero value is false

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	// Apply profiling defaults
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Enabled defaults to false (opt-in for profiling)
	// No need to set, zero value is false

	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	// Default profile types include CPU, memory allocation, and goroutines
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyShutdownTimeoutDefaults sets shutdown timeout defaults.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyEngineDefaults sets engine defaults.
//
// MaxConcurrency stays zero on purpose: the engine resolves it against
// the host's CPU count at construction time.
func applyEngineDefaults(cfg *EngineConfig) {
	if cfg.MaxPerFile == 0 {
		cfg.MaxPerFile = warm.DefaultMaxPerFile
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = warm.DefaultMaxRetries
	}
	if cfg.Advise == "" {
		cfg.Advise = "none"
	}
	if cfg.MaxPending == 0 {
		cfg.MaxPending = warm.DefaultMaxPending
	}
}

// applyPoolDefaults sets descriptor pool defaults.
func applyPoolDefaults(cfg *PoolConfig) {
	if cfg.MaxOpen == 0 {
		cfg.MaxOpen = fdpool.DefaultMaxOpen
	}
	if cfg.IdleTTL == 0 {
		cfg.IdleTTL = fdpool.DefaultIdleTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = fdpool.DefaultSweepInterval
	}
}

// applyPlanDefaults sets file planning defaults.
func applyPlanDefaults(cfg *PlanConfig) {
	if cfg.BlockSize == 0 {
		cfg.BlockSize = bytesize.ByteSize(warm.DefaultPlanBlockSize)
	}
	if cfg.SmallFileSize == 0 {
		cfg.SmallFileSize = bytesize.ByteSize(warm.DefaultSmallFileSize)
	}
}

// applyWatchDefaults sets watch daemon defaults.
// Dirs has no default - watch mode requires it to be configured.
func applyWatchDefaults(cfg *WatchConfig) {
	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
}

// applyAPIDefaults sets status API server defaults.
func applyAPIDefaults(cfg *api.APIConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
