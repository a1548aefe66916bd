// Package cli implements the weightlog command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/weightlog/internal/journal"
	"github.com/mesh-intelligence/weightlog/internal/paths"
	"github.com/mesh-intelligence/weightlog/internal/store"
	"github.com/mesh-intelligence/weightlog/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

// app is the state shared by the commands of one root command.
type app struct {
	flags     rootFlags
	configDir string
	dataDir   string
	settings  settings
	log       *zap.Logger
	registry  *prometheus.Registry
	metrics   *store.Metrics
	journal   *journal.Journal
}

// NewRootCmd creates the top-level "weightlog" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{registry: prometheus.NewRegistry()}

	root := &cobra.Command{
		Use:   "weightlog",
		Short: "A local body-weight journal",
		Long:  "weightlog records weight measurements, tracks a single goal, and keeps\nhealth-platform sync metadata in JSON files under a private data directory.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/weightlog)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/weightlog)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newLogCmd(a))
	root.AddCommand(newEntriesCmd(a))
	root.AddCommand(newDeleteCmd(a))
	root.AddCommand(newGoalCmd(a))
	root.AddCommand(newSyncCmd(a))
	root.AddCommand(newStatsCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newBackupCmd(a))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps storage failures to exitSysError and everything else to
// exitUserError.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, types.ErrPersistence), errors.Is(err, types.ErrDirectoryUnavailable):
		return exitSysError
	default:
		return exitUserError
	}
}

// setup resolves directories, loads config.yaml, and builds the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return err
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	s, err := decodeSettings(v)
	if err != nil {
		return err
	}
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, s.DataDir)
	if err != nil {
		return err
	}
	logger, err := newLogger(s.LogLevel)
	if err != nil {
		return err
	}

	a.configDir = configDir
	a.dataDir = dataDir
	a.settings = s
	a.log = logger
	return nil
}

// openJournal opens the journal for the resolved data directory once per
// command invocation.
func (a *app) openJournal() (*journal.Journal, error) {
	if a.journal != nil {
		return a.journal, nil
	}
	j, err := a.openFreshJournal()
	if err != nil {
		return nil, err
	}
	a.journal = j
	return j, nil
}

// openFreshJournal opens a journal with empty caches, so its first read sees
// the files as they are on disk now. All journals share one set of metrics.
func (a *app) openFreshJournal() (*journal.Journal, error) {
	if a.metrics == nil {
		a.metrics = store.NewMetrics(a.registry)
	}
	j, err := journal.Open(types.Config{
		DataDir: a.dataDir,
		Unit:    a.settings.Unit,
	}, journal.Options{
		Logger:  a.log,
		Metrics: a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return j, nil
}
