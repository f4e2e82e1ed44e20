package main

import (
	"fmt"
	"os"

	"github.com/calebmcnary/pharmline/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands silence cobra's own reporting and print structured
		// errors themselves; this catches flag and root-level failures.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
