// Package config implements edlctl's "config" command group.
package config

import "github.com/spf13/cobra"

// Cmd is the "config" parent command, added to the root command.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Manage edlctl configuration",
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(initCmd)
}
