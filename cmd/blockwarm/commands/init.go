package commands

import (
	"fmt"
	"os"

	"github.com/marmos91/blockwarm/internal/cli/prompt"
	"github.com/marmos91/blockwarm/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample BlockWarm configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/blockwarm/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  blockwarm init

  # Initialize with custom path
  blockwarm init --config /etc/blockwarm/config.yaml

  # Force overwrite existing config
  blockwarm init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	configPath := configFile
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	// Confirm before clobbering an existing config
	force := initForce
	if _, err := os.Stat(configPath); err == nil {
		confirmed, err := prompt.ConfirmWithForce(
			fmt.Sprintf("Configuration file already exists at %s. Overwrite?", configPath),
			initForce,
		)
		if err != nil {
			if prompt.IsAborted(err) {
				fmt.Println("\nAborted.")
				return nil
			}
			return err
		}
		if !confirmed {
			fmt.Println("Aborted.")
			return nil
		}
		force = true
	}

	if err := config.InitConfigToPath(configPath, force); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Warm files once with: blockwarm warm <path>")
	fmt.Println("  3. Or keep directories warm with: blockwarm watch --dir <path>")
	fmt.Printf("  4. Or specify custom config: blockwarm warm --config %s <path>\n", configPath)

	return nil
}
