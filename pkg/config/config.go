package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/blockwarm/internal/bytesize"
	"github.com/marmos91/blockwarm/pkg/api"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the BlockWarm configuration.
//
// This structure captures the static configuration of the warming engine
// and its daemon mode:
//   - Logging configuration
//   - Telemetry/tracing configuration
//   - Engine settings (concurrency, coalescing, retries, backpressure)
//   - Descriptor pool settings (open-file cap, idle sweeping, direct I/O)
//   - Planning settings (block size, small-file cutoff)
//   - Watch daemon settings (directories, debounce)
//   - Metrics and status API server settings
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (BLOCKWARM_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Engine configures batch scheduling and read execution
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`

	// Pool configures the shared file descriptor pool
	Pool PoolConfig `mapstructure:"pool" yaml:"pool"`

	// Plan configures how whole files are split into block requests
	Plan PlanConfig `mapstructure:"plan" yaml:"plan"`

	// Watch configures the directory watching daemon
	Watch WatchConfig `mapstructure:"watch" yaml:"watch"`

	// Metrics contains Prometheus metrics configuration.
	// The /metrics endpoint is served by the status API server.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains status API server configuration (watch mode)
	API api.APIConfig `mapstructure:"api" yaml:"api"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	// Set to false in production with a TLS-enabled collector
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// 1.0 = sample all traces, 0.5 = sample 50%, 0.0 = no sampling
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
// When enabled, CPU and memory profiles are continuously sent to a Pyroscope server
// for flame graph visualization and performance analysis.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	// Default: ["cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// EngineConfig configures batch scheduling and read execution.
//
// Zero values defer to the engine's own defaults, so an empty section
// yields a working engine tuned for page cache warming.
type EngineConfig struct {
	// MaxConcurrency caps in-flight reads across all batches.
	// 0 = one worker per available CPU
	MaxConcurrency int `mapstructure:"max_concurrency" validate:"gte=0" yaml:"max_concurrency"`

	// MaxPerFile caps concurrent reads against a single file.
	// Keeps one hot file from monopolizing the worker pool.
	// Default: 4
	MaxPerFile int `mapstructure:"max_per_file" validate:"gte=0" yaml:"max_per_file"`

	// CoalesceDistance is the gap within which same-file requests merge
	// into one physical read. Supports human-readable sizes ("64Ki", "1Mi").
	// Default: 0 (coalescing disabled)
	CoalesceDistance bytesize.ByteSize `mapstructure:"coalesce_distance" yaml:"coalesce_distance"`

	// Timeout is the per-batch deadline. Requests not dispatched when it
	// fires resolve as incomplete.
	// Default: 0 (no deadline)
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// RetryPartial re-reads the remainder when a read returns fewer bytes
	// than requested.
	// Default: false
	RetryPartial bool `mapstructure:"retry_partial" yaml:"retry_partial"`

	// MaxRetries bounds RetryPartial re-reads per request.
	// Default: 3
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0" yaml:"max_retries"`

	// Advise is the posix_fadvise hint issued before each read.
	// Valid values: none, sequential, random, willneed, dontneed
	// Default: "none"
	Advise string `mapstructure:"advise" validate:"omitempty,oneof=none sequential random willneed dontneed" yaml:"advise"`

	// MaxPending caps admitted-but-unfinished requests across all batches.
	// Submissions past the cap are rejected for backpressure.
	// Default: 1048576
	MaxPending int `mapstructure:"max_pending" validate:"gte=0" yaml:"max_pending"`
}

// PoolConfig configures the shared file descriptor pool.
type PoolConfig struct {
	// MaxOpen caps simultaneously open descriptors.
	// Default: 256
	MaxOpen int `mapstructure:"max_open" validate:"gte=0" yaml:"max_open"`

	// IdleTTL is how long an unreferenced descriptor stays open before
	// the sweeper closes it.
	// Default: 60s
	IdleTTL time.Duration `mapstructure:"idle_ttl" yaml:"idle_ttl"`

	// SweepInterval is how often the sweeper scans for idle descriptors.
	// Default: 15s
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`

	// DirectIO opens files with O_DIRECT, bypassing the page cache.
	// Only useful for buffer-filling workloads; pointless for warming.
	// Default: false
	DirectIO bool `mapstructure:"direct_io" yaml:"direct_io"`
}

// PlanConfig configures how whole files are split into block requests.
type PlanConfig struct {
	// BlockSize is the read granularity for large files.
	// Supports human-readable sizes ("256Ki", "1Mi").
	// Default: 256Ki
	BlockSize bytesize.ByteSize `mapstructure:"block_size" yaml:"block_size"`

	// SmallFileSize is the cutoff at or below which a file becomes a
	// single read instead of a block sequence.
	// Default: 2Mi
	SmallFileSize bytesize.ByteSize `mapstructure:"small_file_size" yaml:"small_file_size"`
}

// WatchConfig configures the directory watching daemon.
//
// The daemon re-warms files as they are created or modified, keeping the
// page cache hot for readers that follow the writers.
type WatchConfig struct {
	// Dirs are the directories to watch. Required in watch mode.
	Dirs []string `mapstructure:"dirs" yaml:"dirs"`

	// Recursive also watches subdirectories, including ones created
	// while the daemon runs.
	// Default: false
	Recursive bool `mapstructure:"recursive" yaml:"recursive"`

	// Debounce is how long a file must stay quiet after a write burst
	// before it is re-warmed. Guards against warming half-written files.
	// Default: 500ms
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`

	// Priority is the scheduling priority for watch-triggered batches.
	// Default: 0
	Priority int `mapstructure:"priority" yaml:"priority"`

	// WarmExisting warms every file already present under the watched
	// directories when the daemon starts, instead of only reacting to
	// new writes.
	// Default: false
	WarmExisting bool `mapstructure:"warm_existing" yaml:"warm_existing"`
}

// MetricsConfig configures Prometheus metrics collection.
// When Enabled is false, no metrics are collected (zero overhead).
// The /metrics endpoint is exposed by the status API server in watch mode.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (BLOCKWARM_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// If no config file was found, use defaults
	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	// Unmarshal into config struct with custom decode hooks
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: User-friendly error with instructions if config not found
func MustLoad(configPath string) (*Config, error) {
	// Determine config path
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  blockwarm init\n\n"+
				"Or specify a custom config file:\n"+
				"  blockwarm <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  blockwarm init --config %s",
				configPath, configPath)
		}
	}

	// Load configuration
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use yaml.Marshal directly to respect yaml tags
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file with restricted permissions (0600 = owner read/write only)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Set up environment variable support
	// Environment variables use BLOCKWARM_ prefix and underscores
	// Example: BLOCKWARM_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("BLOCKWARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Configure config file search
	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/blockwarm/config.{yaml,toml}
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml") // Primary format
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		// Check if error is "config file not found"
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return false, nil
		}
		// Also check for os.PathError when explicit config file doesn't exist
		if os.IsNotExist(err) {
			// Config file not found is acceptable - use defaults
			return false, nil
		}
		// Other errors are problems
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
// This includes ByteSize and time.Duration parsing.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook returns a mapstructure decode hook that converts strings
// and integers to bytesize.ByteSize. This enables config files to use human-readable
// sizes like "1Gi", "500Mi", "100MB", or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		// Only handle conversion to ByteSize
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			// Parse human-readable string like "1Gi", "500Mi", "100MB"
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		// Only handle conversion to time.Duration
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			// Parse duration string like "30s", "5m", "1h"
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	// Check XDG_CONFIG_HOME
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "blockwarm")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, use current directory as last resort
		return "."
	}

	return filepath.Join(home, ".config", "blockwarm")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
