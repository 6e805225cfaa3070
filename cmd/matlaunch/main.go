package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/me/matlaunch/internal/cli"
	"github.com/me/matlaunch/internal/run"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		// The demo's own exit code is reflected back verbatim.
		var exitErr *run.ExitError
		if errors.As(err, &exitErr) && exitErr.Code > 0 {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
