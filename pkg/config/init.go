package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// configTemplate is the sample configuration written by 'blockwarm init'.
//
// Every value below matches the built-in default, so the generated file
// changes nothing until edited. Keep it in sync with ApplyDefaults.
const configTemplate = `# BlockWarm Configuration File
#
# This file was generated by 'blockwarm init'.
# All values shown are defaults; uncommented values are safe to edit.
#
# Every option can also be set through environment variables using the
# BLOCKWARM_ prefix, for example:
#   BLOCKWARM_LOGGING_LEVEL=DEBUG
#   BLOCKWARM_ENGINE_MAX_CONCURRENCY=16
#   BLOCKWARM_API_PORT=9090

# Logging configuration
logging:
  # Minimum log level: DEBUG, INFO, WARN, ERROR
  level: INFO
  # Output format: text or json
  format: text
  # Where to write logs: stdout, stderr, or a file path
  output: stdout

# Batch scheduling and read execution
engine:
  # In-flight reads across all batches (0 = one per CPU)
  max_concurrency: 0
  # Concurrent reads against a single file
  max_per_file: 4
  # Same-file requests closer than this merge into one read ("0" disables).
  # Accepts human-readable sizes: "64Ki", "1Mi"
  coalesce_distance: 0
  # Per-batch deadline (0s = none)
  timeout: 0s
  # Re-read the remainder when a read comes back short
  retry_partial: false
  # Re-read attempts per request when retry_partial is on
  max_retries: 3
  # posix_fadvise hint issued before reads:
  # none, sequential, random, willneed, dontneed
  advise: none
  # Admitted-but-unfinished request cap (backpressure)
  max_pending: 1048576

# File descriptor pool
pool:
  # Simultaneously open descriptors
  max_open: 256
  # How long an unused descriptor stays open
  idle_ttl: 60s
  # How often idle descriptors are swept
  sweep_interval: 15s
  # Open files with O_DIRECT, bypassing the page cache
  direct_io: false

# Whole-file planning
plan:
  # Read granularity for large files
  block_size: 256Ki
  # Files at or below this size become a single read
  small_file_size: 2Mi

# Directory watching daemon ('blockwarm watch')
watch:
  # Directories to re-warm on change (required in watch mode)
  dirs: []
  # Also watch subdirectories
  recursive: false
  # Quiet period after a write burst before re-warming
  debounce: 500ms
  # Scheduling priority for watch-triggered batches
  priority: 0
  # Warm files already present when the daemon starts
  warm_existing: false

# Prometheus metrics (served at /metrics by the status API)
metrics:
  enabled: false

# Status API server (watch mode)
api:
  enabled: true
  port: 8080
  read_timeout: 10s
  write_timeout: 10s
  idle_timeout: 60s

# OpenTelemetry distributed tracing
telemetry:
  enabled: false
  # OTLP gRPC collector endpoint
  endpoint: localhost:4317
  insecure: true
  # Trace sampling rate (0.0 to 1.0)
  sample_rate: 1.0
  # Pyroscope continuous profiling
  profiling:
    enabled: false
    endpoint: http://localhost:4040
    profile_types:
      - cpu
      - alloc_objects
      - alloc_space
      - inuse_objects
      - inuse_space
      - goroutines

# Maximum time to wait for graceful shutdown
shutdown_timeout: 30s
`

// InitConfig creates a sample configuration file at the default location.
//
// Parameters:
//   - force: Overwrite an existing config file
//
// Returns:
//   - string: Path of the created config file
//   - error: If the file already exists (without force) or cannot be written
func InitConfig(force bool) (string, error) {
	configPath := GetDefaultConfigPath()
	if err := InitConfigToPath(configPath, force); err != nil {
		return "", err
	}
	return configPath, nil
}

// InitConfigToPath creates a sample configuration file at the given path.
//
// Parent directories are created as needed. Without force, an existing
// file is never touched.
func InitConfigToPath(path string, force bool) error {
	// Refuse to clobber an existing config unless forced
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}

	// Create parent directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write with restricted permissions, matching SaveConfig
	if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
