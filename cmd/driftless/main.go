// Command driftless deploys serverless services, skipping deploys that
// change nothing.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/driftless/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands write their own errors; flag and usage errors are printed
	// here.
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(cli.ExitCommandError)
}
