// Package cli implements the ctxmgr CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/agentctx/contextmgr/internal/config"
	"github.com/agentctx/contextmgr/internal/fsresolve"
	"github.com/agentctx/contextmgr/internal/indexer"
	"github.com/agentctx/contextmgr/internal/obslog"
	"github.com/agentctx/contextmgr/internal/session"
	"github.com/agentctx/contextmgr/internal/store"
	"github.com/agentctx/contextmgr/internal/tracker"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "ctxmgr",
	Short: "Content-addressed context manager for AI agents",
	Long:  "ctxmgr indexes files and tool results into a bitemporal store and assembles them into an LLM-facing context window.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config path (default: $CONTEXT_MANAGER_CONFIG or zero-config defaults)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug-level logging")
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("CONTEXT_MANAGER_CONFIG"); env != "" {
		return env
	}
	return ""
}

func loadConfig() (*config.Config, error) {
	path := getConfigPath()
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// app bundles the components every subcommand needs, built once from the
// resolved config and torn down via Close.
type app struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	indexer  *indexer.Indexer
	resolver *fsresolve.Resolver
	logger   *zap.Logger
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := obslog.New(verbose)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	storeDir := filepath.Dir(cfg.StorePath)
	if storeDir != "." {
		if err := os.MkdirAll(storeDir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	st, err := store.NewSQLiteStore(cfg.StorePath, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	defaultFSID := fsresolve.DefaultFilesystemID(cfg.MachineIDPath)
	resolver := fsresolve.New(defaultFSID, cfg.Mounts, logger)
	ix := indexer.New(st, logger)

	return &app{cfg: cfg, store: st, indexer: ix, resolver: resolver, logger: logger}, nil
}

func (a *app) Close() {
	a.store.Close()
	_ = a.logger.Sync()
}

// newSupervisor builds a tracker.Supervisor sharing this app's indexer and
// logger. Callers that keep the process alive (session resume with live
// watching) are responsible for calling Close when done.
func (a *app) newSupervisor() *tracker.Supervisor {
	return tracker.NewSupervisor(a.indexer, a.logger)
}

// sessionDefaults converts the app's loaded config into the session
// package's Defaults shape.
func sessionDefaults(a *app) session.Defaults {
	return session.Defaults{
		RecentToolcallsPerTurn: a.cfg.Session.RecentToolcallsPerTurn,
		RecentTurnsWindow:      a.cfg.Session.RecentTurnsWindow,
	}
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
