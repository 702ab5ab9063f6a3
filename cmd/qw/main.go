package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/qwtool/qw/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine working directory: %v\n", err)
		os.Exit(1)
	}

	app := newCLIApp(&env{Dir: dir, Open: ops.Open})
	if err := app.Run(os.Args); err != nil {
		if exit, ok := err.(cli.ExitCoder); ok {
			if msg := exit.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(exit.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
