package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"arcane/pkg/driver"
	arcaneerrors "arcane/pkg/errors"
)

const (
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Run an Arcane script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := driver.RunFile(args[0])
			if err != nil {
				printError(err)
				os.Exit(1)
			}
			return nil
		},
	}
}

// printError renders err the way §7 specifies, coloring it red when
// stderr is a terminal (matching Avenir/funxy/sentra's own TTY gating).
func printError(err error) {
	msg := err.Error()
	if ae, ok := err.(arcaneerrors.ArcaneError); ok {
		msg = fmt.Sprintf("%s: %s", ae.Kind(), ae.Error())
	}
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		fmt.Fprintln(os.Stderr, ansiRed+msg+ansiReset)
		return
	}
	fmt.Fprintln(os.Stderr, msg)
}
