// Package manifest handles sypher.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file name looked up in project roots.
const FileName = "sypher.toml"

// Manifest represents a sypher.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`
	Runtime Runtime `toml:"runtime"`
	Storage Storage `toml:"storage"`

	// Dir is the directory containing the sypher.toml file (set at
	// load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations.
type Source struct {
	// Entry is the main source file, relative to the project root.
	Entry string `toml:"entry"`

	// Output is where compiled bytecode goes.
	Output string `toml:"output"`
}

// Runtime configures execution.
type Runtime struct {
	GasLimit    int64 `toml:"gas-limit"`
	Workers     int   `toml:"workers"`
	MaxAttempts int   `toml:"max-attempts"`
}

// Storage selects and configures the state store.
type Storage struct {
	// Backend is "memory" or "sqlite".
	Backend string `toml:"backend"`

	// Path locates the sqlite database, relative to the project
	// root. Ignored for the memory backend.
	Path string `toml:"path"`
}

// Load parses a sypher.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Source.Entry == "" {
		m.Source.Entry = "main.syl"
	}
	if m.Source.Output == "" {
		m.Source.Output = "out.sybc"
	}
	if m.Storage.Backend == "" {
		m.Storage.Backend = "memory"
	}
	if m.Storage.Path == "" {
		m.Storage.Path = "state.db"
	}

	if m.Storage.Backend != "memory" && m.Storage.Backend != "sqlite" {
		return nil, fmt.Errorf("%s: unknown storage backend %q", path, m.Storage.Backend)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a sypher.toml file,
// then loads and returns the manifest. Returns nil if no manifest is
// found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// EntryPath returns the absolute path of the entry source file.
func (m *Manifest) EntryPath() string {
	return filepath.Join(m.Dir, m.Source.Entry)
}

// OutputPath returns the absolute path of the compiled module file.
func (m *Manifest) OutputPath() string {
	return filepath.Join(m.Dir, m.Source.Output)
}

// StoragePath returns the absolute path of the sqlite database.
func (m *Manifest) StoragePath() string {
	return filepath.Join(m.Dir, m.Storage.Path)
}
