package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/blockwarm/internal/bytesize"
)

func TestLoad_DefaultConfig(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Write minimal config
	configContent := `
logging:
  level: "INFO"

engine:
  max_per_file: 2

api:
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	// Load config
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify defaults were applied
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected API port 8080, got %d", cfg.API.Port)
	}

	// Explicit values survive default application
	if cfg.Engine.MaxPerFile != 2 {
		t.Errorf("Expected max_per_file 2 from file, got %d", cfg.Engine.MaxPerFile)
	}
	if cfg.Engine.MaxRetries != 3 {
		t.Errorf("Expected default max_retries 3, got %d", cfg.Engine.MaxRetries)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config.
	// This allows one-shot warming without writing a config file first.
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}

	// Verify default config is returned
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}

	// Verify default API port
	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	// Write invalid YAML
	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	// Should return error
	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[logging]
level = "WARN"
format = "json"

[engine]
max_concurrency = 8

[api]
port = 8080
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Engine.MaxConcurrency != 8 {
		t.Errorf("Expected max_concurrency 8, got %d", cfg.Engine.MaxConcurrency)
	}
}

func TestLoad_DecodeHooks(t *testing.T) {
	// Byte sizes and durations come in as human-readable strings.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
engine:
  coalesce_distance: 64Ki
  timeout: 2s

pool:
  idle_ttl: 90s

plan:
  block_size: 1Mi
  small_file_size: 4Mi
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Engine.CoalesceDistance != 64*bytesize.KiB {
		t.Errorf("Expected coalesce_distance 64Ki, got %v", cfg.Engine.CoalesceDistance)
	}
	if cfg.Engine.Timeout != 2*time.Second {
		t.Errorf("Expected timeout 2s, got %v", cfg.Engine.Timeout)
	}
	if cfg.Pool.IdleTTL != 90*time.Second {
		t.Errorf("Expected idle_ttl 90s, got %v", cfg.Pool.IdleTTL)
	}
	if cfg.Plan.BlockSize != bytesize.MiB {
		t.Errorf("Expected block_size 1Mi, got %v", cfg.Plan.BlockSize)
	}
	if cfg.Plan.SmallFileSize != 4*bytesize.MiB {
		t.Errorf("Expected small_file_size 4Mi, got %v", cfg.Plan.SmallFileSize)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	// Verify all defaults are set
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
	if cfg.Engine.MaxPerFile != 4 {
		t.Errorf("Expected default max_per_file 4, got %d", cfg.Engine.MaxPerFile)
	}
	if cfg.Engine.Advise != "none" {
		t.Errorf("Expected default advise 'none', got %q", cfg.Engine.Advise)
	}
	if cfg.Pool.MaxOpen != 256 {
		t.Errorf("Expected default max_open 256, got %d", cfg.Pool.MaxOpen)
	}
	if cfg.Plan.BlockSize != 256*bytesize.KiB {
		t.Errorf("Expected default block_size 256Ki, got %v", cfg.Plan.BlockSize)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	// Should be absolute and end with config.yaml
	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	// Should contain blockwarm
	if filepath.Base(dir) != "blockwarm" {
		t.Errorf("Expected directory name 'blockwarm', got %q", filepath.Base(dir))
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	// Set environment variables
	_ = os.Setenv("BLOCKWARM_LOGGING_LEVEL", "ERROR")
	_ = os.Setenv("BLOCKWARM_API_PORT", "9090")
	defer func() {
		_ = os.Unsetenv("BLOCKWARM_LOGGING_LEVEL")
		_ = os.Unsetenv("BLOCKWARM_API_PORT")
	}()

	// Create minimal config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

api:
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify environment variables override config file
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("Expected port 9090 from env var, got %d", cfg.API.Port)
	}
}
