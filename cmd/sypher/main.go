// SypherLang CLI - compile, inspect, and run privacy-preserving contracts.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is filled when building with make, but *not* when installing
// via "go install".
var Version string

var rootCmd = &cobra.Command{
	Use:   "sypher",
	Short: "A toolchain for the SypherLang contract language.",
	Long: `A compiler and virtual machine for SypherLang, a language for
privacy-preserving smart contracts with zero-knowledge proof and
lattice-based encryption builtins.`,
	Run: func(cmd *cobra.Command, args []string) {
		if getFlag(cmd, "version") {
			fmt.Print("sypher ")
			if Version != "" {
				fmt.Printf("%s", Version)
			} else if info, ok := debug.ReadBuildInfo(); ok {
				fmt.Printf("%s", info.Main.Version)
			} else {
				fmt.Printf("(unknown version)")
			}
			fmt.Println()
			return
		}
		_ = cmd.Help()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().Bool("version", false, "Report version of this executable")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	rootCmd.PersistentFlags().Bool("trace", false, "log every executed instruction")
}

// configureLogging applies the persistent logging flags. Called at the
// top of every subcommand.
func configureLogging(cmd *cobra.Command) {
	if getFlag(cmd, "trace") {
		log.SetLevel(log.TraceLevel)
	} else if getFlag(cmd, "verbose") {
		log.SetLevel(log.DebugLevel)
	}
}
