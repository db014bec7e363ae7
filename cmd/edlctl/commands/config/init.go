package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/edlflash/edlctl/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a default edlctl configuration file to the default location
(or --config, if given). Fails if a file already exists unless --force is
set.`,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if !initForce {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
		}
	}

	o := config.GetDefaultOptions()
	if err := config.SaveConfig(o, configPath); err != nil {
		return err
	}

	cmd.Printf("wrote default configuration to %s\n", configPath)
	return nil
}
