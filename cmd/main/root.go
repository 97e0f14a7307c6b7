package main

import (
	"fmt"
	"log/slog"

	"github.com/CTAG07/MarkovTool/pkg/markov"
	"github.com/spf13/cobra"
)

// app carries what every command needs once the root pre-run has loaded
// the configuration.
type app struct {
	configPath string
	logLevel   string
	dbPath     string
	color      string

	config *Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "markovtool",
		Short:         "MarkovTool generates discrete-time Markov chain trajectories",
		Long:          `MarkovTool builds Markov chains from literal, file or random transition matrices, runs them reproducibly from fixed seeds and keeps matrices and run reports in a SQLite store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "./config.json", "Path to the JSON config file")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	flags.StringVar(&a.dbPath, "db", "", "SQLite database path; overrides the config file")
	flags.StringVar(&a.color, "color", "", "Colour output (auto, always, never); overrides the config file")

	rootCmd.AddCommand(
		newRunCmd(a),
		newGenerateCmd(a),
		newValidateCmd(a),
		newMatricesCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newRunsCmd(a),
		newStatsCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// load reads the config file, applies persistent flag overrides and builds
// the logger.
func (a *app) load(cmd *cobra.Command) error {
	config, err := LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.logLevel != "" {
		config.LogLevel = a.logLevel
	}
	if a.dbPath != "" {
		config.DatabasePath = a.dbPath
	}
	if a.color != "" {
		config.Color = a.color
	}
	a.config = config
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: parseLogLevel(config.LogLevel)}))
	return nil
}

// openStore opens the configured database, makes sure the schema exists and
// returns a Store over it. The returned func closes both.
func (a *app) openStore() (*markov.Store, func(), error) {
	db, err := initDB(a.config.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = markov.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to setup markov schema: %w", err)
	}
	store, err := markov.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to prepare store: %w", err)
	}
	store.SetLogger(a.logger)
	a.logger.Debug("Store opened", "driver", driverName, "path", a.config.DatabasePath)

	return store, func() {
		store.Close()
		if err := db.Close(); err != nil {
			a.logger.Error("Failed to close database", "error", err)
		}
	}, nil
}

// renderer builds a renderer for cmd's output with the configured colour mode.
func (a *app) renderer(cmd *cobra.Command) (*Renderer, error) {
	return NewRenderer(cmd.OutOrStdout(), a.config.Color)
}
