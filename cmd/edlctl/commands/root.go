// Package commands implements edlctl's CLI commands.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	configcmd "github.com/edlflash/edlctl/cmd/edlctl/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags, shared by every device-touching subcommand.
	cfgFile      string
	portFlag     string
	keepOpenFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "edlctl",
	Short: "Flash and inspect Qualcomm EDL-mode devices",
	Long: `edlctl drives a device that has entered Qualcomm's Emergency Download
(EDL) mode over USB-serial: it performs the Sahara handshake, uploads a
Firehose programmer, and issues storage-level flash/read/erase/introspection
commands over the resulting Firehose channel.

Use "edlctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it. Called
// once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command, for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/edlctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&portFlag, "port", "", "serial device path, overrides the config file's port")
	rootCmd.PersistentFlags().BoolVar(&keepOpenFlag, "keep-open", false, "keep the serial port open between commands")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(gptCmd)
	rootCmd.AddCommand(flashCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(configcmd.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
