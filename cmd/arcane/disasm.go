package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"arcane/pkg/driver"
)

func newDisasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file>",
		Short: "Print a script's compiled bytecode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			src, err := os.ReadFile(path)
			if err != nil {
				printError(err)
				os.Exit(1)
			}
			chunk, err := driver.Compile(string(src))
			if err != nil {
				printError(err)
				os.Exit(1)
			}
			fmt.Print(chunk.Disassemble(path))
			fmt.Printf("%s, %d constants\n", humanize.Bytes(uint64(chunk.Size())), len(chunk.Constants))
			return nil
		},
	}
}
