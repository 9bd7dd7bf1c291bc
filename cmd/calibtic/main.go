// Command calibtic translates neuron parameters to HICANN floating-gate
// codes and manages calibration datasets.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/calibtic/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
