package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/themobileprof/moaflow/internal/config"
	"github.com/themobileprof/moaflow/internal/db"
	"github.com/themobileprof/moaflow/internal/logging"
	"github.com/themobileprof/moaflow/internal/usecases"
)

var version = "0.1.0"

// app carries what every command shares once the root command has loaded
// the configuration
type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "moaflow",
		Short: "Run declarative use cases against routable modules",
		Long: `moaflow interprets use case definitions: JSON or YAML statement lists
that open modules by URL, react to their responses and error codes, and
thread service parameters between steps.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a.cfg = cfg

			level := cfg.LogLevel
			if a.verbose {
				level = "debug"
			}
			logger, err := logging.New(level, false)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", config.GetConfigPath(), "Path to configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newRunCmd(a),
		newValidateCmd(a),
		newImportCmd(a),
		newListCmd(a),
		newWatchCmd(a),
		newRunsCmd(a),
		newModulesCmd(a),
		newVersionCmd(),
	)
	return root
}

// openCatalog opens the database and a loader on top of it
func (a *app) openCatalog() (*db.DB, *usecases.Loader, error) {
	database, err := db.New(a.cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	loader := usecases.NewLoader(database.Conn())
	loader.SetLogger(a.logger)
	return database, loader, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// Skip config loading
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "moaflow v%s\n", version)
		},
	}
}
