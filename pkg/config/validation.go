package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance. Struct tags on Config and
// its sections drive the bulk of the checks.
var validate = validator.New()

// Validate checks the configuration for errors.
//
// Validation is split in two layers:
//  1. Struct tag validation (required fields, value ranges, enums)
//  2. Semantic validation (cross-field rules that tags cannot express)
//
// Validate never mutates the configuration. Normalization (such as
// upper-casing the log level) happens in ApplyDefaults, so values like
// "info" and "INFO" are both accepted here.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	// Layer 1: struct tag validation
	if err := validate.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return fmt.Errorf("invalid configuration: %w", verrs)
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Layer 2: semantic validation
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return err
	}
	if err := validateEngine(&cfg.Engine); err != nil {
		return err
	}
	if err := validatePool(&cfg.Pool); err != nil {
		return err
	}
	if err := validateWatch(&cfg.Watch); err != nil {
		return err
	}

	return nil
}

// validateTelemetry checks tracing and profiling settings that only
// matter when the corresponding feature is enabled.
func validateTelemetry(cfg *TelemetryConfig) error {
	if cfg.Enabled && cfg.Endpoint == "" {
		return fmt.Errorf("telemetry is enabled but no endpoint is configured")
	}
	if cfg.Profiling.Enabled && cfg.Profiling.Endpoint == "" {
		return fmt.Errorf("profiling is enabled but no endpoint is configured")
	}
	return nil
}

// validateEngine checks engine settings tags cannot express.
func validateEngine(cfg *EngineConfig) error {
	if cfg.Timeout < 0 {
		return fmt.Errorf("engine timeout must not be negative, got %s", cfg.Timeout)
	}
	return nil
}

// validatePool checks descriptor pool settings.
func validatePool(cfg *PoolConfig) error {
	if cfg.IdleTTL < 0 {
		return fmt.Errorf("pool idle_ttl must not be negative, got %s", cfg.IdleTTL)
	}
	if cfg.SweepInterval < 0 {
		return fmt.Errorf("pool sweep_interval must not be negative, got %s", cfg.SweepInterval)
	}
	return nil
}

// validateWatch checks watch daemon settings. Dirs is not required
// here: it is only mandatory when watch mode actually starts, and the
// watch command enforces that.
func validateWatch(cfg *WatchConfig) error {
	if cfg.Debounce < 0 {
		return fmt.Errorf("watch debounce must not be negative, got %s", cfg.Debounce)
	}
	for _, dir := range cfg.Dirs {
		if dir == "" {
			return fmt.Errorf("watch dirs must not contain empty paths")
		}
	}
	return nil
}
