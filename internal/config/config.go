// Package config loads the context manager's YAML configuration: store
// location, filesystem mounts, and session defaults. There is no
// environment-variable fallback and no auto-discovery — the caller passes
// a path (or gets Default()), matching the deterministic-config posture
// the rest of this stack favors over implicit overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentctx/contextmgr/internal/fsresolve"
)

// SessionDefaults holds the auto-collapse window parameters (§4.5).
type SessionDefaults struct {
	RecentToolcallsPerTurn int `yaml:"recentToolcallsPerTurn"`
	RecentTurnsWindow      int `yaml:"recentTurnsWindow"`
}

// Config is the top-level configuration document.
type Config struct {
	// StorePath is the SQLite database file backing the document store.
	StorePath string `yaml:"storePath"`

	// MachineIDPath is consulted to derive the default filesystem id
	// (§4.2); falls back to a hostname hash if unreadable.
	MachineIDPath string `yaml:"machineIdPath"`

	// Mounts are the agent-path-to-canonical-path translations the
	// filesystem resolver applies.
	Mounts []fsresolve.Mount `yaml:"mounts"`

	// Session holds the auto-collapse window defaults new sessions start
	// with.
	Session SessionDefaults `yaml:"session"`
}

// Default returns the configuration used when no config file is supplied:
// a local SQLite file under the working directory, no mounts (every path
// resolves unmounted under the default filesystem id), and the §4.5
// defaults for the auto-collapse window.
func Default() *Config {
	return &Config{
		StorePath:     "./contextmgr.db",
		MachineIDPath: "/etc/machine-id",
		Mounts:        nil,
		Session: SessionDefaults{
			RecentToolcallsPerTurn: 5,
			RecentTurnsWindow:      3,
		},
	}
}

// Load reads and parses a YAML config file at path, filling in any field
// Default() would have set when absent from the file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.Session.RecentToolcallsPerTurn <= 0 {
		cfg.Session.RecentToolcallsPerTurn = Default().Session.RecentToolcallsPerTurn
	}
	if cfg.Session.RecentTurnsWindow <= 0 {
		cfg.Session.RecentTurnsWindow = Default().Session.RecentTurnsWindow
	}

	return cfg, nil
}
