package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/CipherCoRetech/SypherLang/manifest"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] [source_file]",
	Short: "compile a contract source file into a bytecode module.",
	Long: `Compile a SypherLang source file into a serialized bytecode module
which can be run repeatedly without recompiling. With no arguments the
entry file from the nearest sypher.toml is compiled.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)

		input := ""
		output := getString(cmd, "output")

		if len(args) == 1 {
			input = args[0]
		}

		if input == "" || output == "" {
			m, err := manifest.FindAndLoad(".")
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			if m == nil && input == "" {
				fmt.Fprintln(os.Stderr, "no source file given and no sypher.toml found")
				os.Exit(1)
			}
			if m != nil {
				if input == "" {
					input = m.EntryPath()
				}
				if output == "" {
					output = m.OutputPath()
				}
			}
		}
		if output == "" {
			output = "out.sybc"
		}

		mod := compileSourceFile(input)

		data, err := mod.Serialize()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot serialize module: %v\n", err)
			os.Exit(1)
		}

		if err := os.WriteFile(output, data, 0644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		log.WithFields(log.Fields{
			"input":     input,
			"output":    output,
			"functions": len(mod.Functions),
			"bytes":     len(data),
		}).Debug("module written")
	},
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringP("output", "o", "", "specify output file")
}
