// Command edlctl is the CLI front-end for the EDL flashing and
// introspection toolkit: it bridges cobra's synchronous command dispatch
// onto the context-driven async core in pkg/session.
package main

import (
	"fmt"
	"os"

	"github.com/edlflash/edlctl/cmd/edlctl/commands"
	"github.com/edlflash/edlctl/pkg/exitcode"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(exitcode.FromError(err)))
	}
}
