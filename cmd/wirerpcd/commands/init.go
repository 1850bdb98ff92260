package commands

import (
	"fmt"

	"github.com/marmos91/wirerpc/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample wirerpcd configuration file.

By default, the file is created at $XDG_CONFIG_HOME/wirerpc/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with the default location
  wirerpcd init

  # Initialize at a custom path
  wirerpcd init --config /etc/wirerpc/config.yaml

  # Overwrite an existing file
  wirerpcd init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	var configPath string
	var err error

	if cfgFile := GetConfigFile(); cfgFile != "" {
		configPath, err = config.InitConfigToPath(cfgFile, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: wirerpcd serve")
	fmt.Printf("  3. Or specify the custom config: wirerpcd serve --config %s\n", configPath)

	return nil
}
