package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/CipherCoRetech/SypherLang/manifest"
	"github.com/CipherCoRetech/SypherLang/privacy"
	"github.com/CipherCoRetech/SypherLang/vm"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] module_file function [name=value ...]",
	Short: "execute a function from a compiled module.",
	Long: `Execute one function from a compiled module (or directly from a .syl
source file) against the project state store. Function inputs are given
as name=value pairs; integers, booleans, and 0x-prefixed addresses are
recognized by shape, anything else is passed as a string.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)

		mod := loadModuleFile(args[0])
		fnName := args[1]

		inputs := make(map[string]vm.Value)
		for _, arg := range args[2:] {
			name, value, err := parseInput(arg)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			inputs[name] = value
		}

		m, err := manifest.FindAndLoad(".")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		opts := vm.Options{Trace: getFlag(cmd, "trace")}
		if m != nil {
			opts.GasLimit = m.Runtime.GasLimit
			opts.Workers = m.Runtime.Workers
			opts.MaxAttempts = m.Runtime.MaxAttempts
		}
		if gas := getInt(cmd, "gas"); gas > 0 {
			opts.GasLimit = int64(gas)
		}

		store := openStore(m)
		defer store.Close()

		machine, err := vm.New(mod, store, privacy.NewDefaultBackend(), opts)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer machine.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := machine.Execute(ctx, fnName, inputs)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		printResult(result)
	},
}

func printResult(result *vm.Result) {
	names := make([]string, 0, len(result.Outputs))
	for name := range result.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("%s: %s\n", name, result.Outputs[name])
	}

	for _, ev := range result.Events {
		fmt.Printf("event %s%v\n", ev.Name, ev.Args)
	}

	log.WithFields(log.Fields{
		"invocation": result.InvocationID,
		"gas":        result.GasUsed,
		"attempts":   result.Attempts,
	}).Debug("invocation finished")
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Int("gas", 0, "override the invocation gas limit")
}
