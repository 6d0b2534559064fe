// Command hotspot runs the hotspot walkthrough editor engine.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/hotspot/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hotspot: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
