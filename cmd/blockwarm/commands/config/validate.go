package config

import (
	"fmt"

	"github.com/marmos91/blockwarm/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the BlockWarm configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  blockwarm config validate

  # Validate specific config file
  blockwarm config validate --config /etc/blockwarm/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	// Load and validate configuration
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	// Determine path for display
	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	// Additional validation checks
	var warnings []string

	// Watch mode needs directories
	if len(cfg.Watch.Dirs) == 0 {
		warnings = append(warnings, "watch.dirs is empty - 'blockwarm watch' will need --dir flags")
	}

	// Metrics are served by the status API
	if cfg.Metrics.Enabled && !cfg.API.IsEnabled() {
		warnings = append(warnings, "metrics enabled but status API disabled - /metrics will not be served")
	}

	// Direct I/O defeats cache warming
	if cfg.Pool.DirectIO {
		warnings = append(warnings, "pool.direct_io bypasses the page cache - reads will not warm it")
	}

	// Print results
	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Log level:       %s\n", cfg.Logging.Level)
	fmt.Printf("  Block size:      %s\n", cfg.Plan.BlockSize)
	fmt.Printf("  Max concurrency: %d\n", cfg.Engine.MaxConcurrency)
	fmt.Printf("  API port:        %d\n", cfg.API.Port)

	return nil
}
