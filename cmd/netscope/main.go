// Command netscope discovers and monitors hosts on a local IPv4 network.
package main

import "github.com/anstrom/netscope/cmd/cli"

// Set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
