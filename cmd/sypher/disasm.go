package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm [flags] module_file",
	Short: "print the instruction listing of a compiled module.",
	Long: `Print a human readable listing of a compiled module: constants,
functions, contract storage layout, and annotated instructions.
Accepts a .syl source file and compiles it first.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)

		mod := loadModuleFile(args[0])
		fmt.Print(mod.Disassemble())
	},
}

func init() {
	rootCmd.AddCommand(disasmCmd)
}
