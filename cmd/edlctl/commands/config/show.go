package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/edlflash/edlctl/internal/cli/output"
	"github.com/edlflash/edlctl/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display edlctl's configuration as loaded from the config file
(EDLCTL_* environment variables > config file > defaults). The --port
and --keep-open flags are not applied here.

Examples:
  edlctl config show
  edlctl config show --output json
  edlctl config show --config /etc/edlctl/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	o, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, o)
	default:
		return output.PrintYAML(os.Stdout, o)
	}
}
