// Command wirerpcd hosts an RPC registry behind the TCP and UDP transports.
package main

import (
	"os"

	"github.com/marmos91/wirerpc/cmd/wirerpcd/commands"
)

// Build-time variables injected via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
