// Command stdiobridge runs a child process behind its own stdio and stops it
// cleanly on SIGINT or SIGTERM.
package main

import (
	"os"

	"stdiobridge/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
