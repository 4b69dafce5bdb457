// Command arcane runs Arcane source files and, for development, prints
// their compiled bytecode.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "arcane",
		Short: "Arcane language interpreter",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newDisasmCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
