package main

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CipherCoRetech/SypherLang/bytecode"
	"github.com/CipherCoRetech/SypherLang/compiler"
	"github.com/CipherCoRetech/SypherLang/manifest"
	"github.com/CipherCoRetech/SypherLang/storage"
	"github.com/CipherCoRetech/SypherLang/vm"
)

// Get an expected flag, or exit if an error arises.
func getFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

func getString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

func getInt(cmd *cobra.Command, flag string) int {
	r, err := cmd.Flags().GetInt(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

// compileSourceFile compiles one .syl source file into a module.
func compileSourceFile(path string) *bytecode.Module {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read %s: %v\n", path, err)
		os.Exit(1)
	}

	mod, err := compiler.Compile(string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		os.Exit(1)
	}

	return mod
}

// loadModuleFile deserializes a compiled .sybc module, or compiles the
// file in place when it carries a source extension.
func loadModuleFile(path string) *bytecode.Module {
	if strings.HasSuffix(path, ".syl") {
		return compileSourceFile(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read %s: %v\n", path, err)
		os.Exit(1)
	}

	mod, err := bytecode.Deserialize(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		os.Exit(1)
	}

	return mod
}

// openStore builds the state store selected by the manifest, or an
// in-memory store when no manifest is present.
func openStore(m *manifest.Manifest) storage.Store {
	if m == nil || m.Storage.Backend == "memory" {
		return storage.NewMemoryStore()
	}

	store, err := storage.OpenSQLite(m.StoragePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open state store: %v\n", err)
		os.Exit(1)
	}

	return store
}

// parseInput converts one name=value command line argument into a
// typed value. Integers, booleans, and 20-byte hex addresses are
// recognized by shape; anything else is a string.
func parseInput(arg string) (string, vm.Value, error) {
	name, raw, ok := strings.Cut(arg, "=")
	if !ok || name == "" {
		return "", vm.Value{}, fmt.Errorf("malformed input %q, want name=value", arg)
	}

	switch raw {
	case "true":
		return name, vm.BoolValue(true), nil
	case "false":
		return name, vm.BoolValue(false), nil
	}

	if strings.HasPrefix(raw, "0x") {
		addr, err := vm.ParseAddress(raw)
		if err != nil {
			return "", vm.Value{}, fmt.Errorf("input %s: %w", name, err)
		}

		return name, addr, nil
	}

	if n, ok := new(big.Int).SetString(raw, 10); ok {
		if !n.IsInt64() {
			return "", vm.Value{}, fmt.Errorf("input %s overflows int64", name)
		}

		return name, vm.IntValue(n.Int64()), nil
	}

	return name, vm.StringValue(raw), nil
}
