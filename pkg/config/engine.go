package config

import (
	"fmt"
	"net/http"

	"github.com/marmos91/blockwarm/internal/logger"
	"github.com/marmos91/blockwarm/pkg/fdpool"
	"github.com/marmos91/blockwarm/pkg/metrics"
	"github.com/marmos91/blockwarm/pkg/warm"
)

// BuildEngine creates a fully configured warming engine from the
// provided configuration.
//
// The engine owns its descriptor pool; callers must Close it when done.
// Prometheus instrumentation is attached automatically when metrics
// have been initialized (InitializeMetrics), and costs nothing when
// they have not.
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	config.InitializeMetrics(cfg)
//	engine, err := config.BuildEngine(cfg)
//	if err != nil {
//	    log.Fatalf("Failed to build engine: %v", err)
//	}
//	defer engine.Close()
func BuildEngine(cfg *Config) (*warm.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}

	advise, err := fdpool.ParseAdvice(cfg.Engine.Advise)
	if err != nil {
		return nil, fmt.Errorf("invalid engine advise: %w", err)
	}

	engineCfg := warm.Config{
		MaxConcurrency:   cfg.Engine.MaxConcurrency,
		MaxPerFile:       cfg.Engine.MaxPerFile,
		CoalesceDistance: cfg.Engine.CoalesceDistance.Int64(),
		Timeout:          cfg.Engine.Timeout,
		RetryPartial:     cfg.Engine.RetryPartial,
		MaxRetries:       cfg.Engine.MaxRetries,
		Advise:           advise,
		MaxPending:       cfg.Engine.MaxPending,
		Pool: fdpool.Config{
			MaxOpen:       cfg.Pool.MaxOpen,
			IdleTTL:       cfg.Pool.IdleTTL,
			SweepInterval: cfg.Pool.SweepInterval,
			DirectIO:      cfg.Pool.DirectIO,
			Metrics:       metrics.NewPoolMetrics(),
		},
		Metrics: metrics.NewEngineMetrics(),
	}

	return warm.New(engineCfg)
}

// PlanSettings converts the planning section into the engine's planning
// configuration, with the given priority assigned to every request.
func (c *Config) PlanSettings(priority int) warm.PlanConfig {
	return warm.PlanConfig{
		BlockSize:     c.Plan.BlockSize.Int64(),
		SmallFileSize: c.Plan.SmallFileSize.Int64(),
		Priority:      priority,
	}
}

// InitializeMetrics sets up the Prometheus registry when metrics are
// enabled and returns the handler the status API mounts at /metrics.
//
// Must be called before BuildEngine so the engine's collectors register
// against the live registry. Returns nil when metrics are disabled.
func InitializeMetrics(cfg *Config) http.Handler {
	if !cfg.Metrics.Enabled {
		logger.Debug("Metrics collection disabled")
		return nil
	}

	metrics.InitRegistry()
	logger.Info("Metrics collection enabled")
	return metrics.Handler()
}
