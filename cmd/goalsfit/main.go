// Command goalsfit calibrates an HIV epidemic projection to surveillance
// data.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/goalsarm/goalsfit/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands print their own ExitErrors. Flag and argument errors
		// arrive here unprinted.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
