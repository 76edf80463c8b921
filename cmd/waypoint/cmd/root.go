package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/waypoint/internal/core/config"
	"github.com/solatis/waypoint/internal/core/db"
	"github.com/solatis/waypoint/internal/core/logging"
	"github.com/solatis/waypoint/internal/core/registry"
	"github.com/solatis/waypoint/internal/rules"
)

// Version is the waypoint release version.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "waypoint",
	Short:         "waypoint endpoint rules engine",
	Long:          `waypoint type-checks endpoint rule sets and resolves service endpoints from them.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads configuration with cmd's changed flags taking precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newEngine builds the rules engine over the configured partition table.
func newEngine(cfg *config.Config) (*rules.Engine, error) {
	var partitions *rules.Partitions
	if cfg.Engine.PartitionsFile != "" {
		p, err := rules.LoadPartitions(cfg.Engine.PartitionsFile)
		if err != nil {
			return nil, err
		}
		partitions = p
		logger.Info("loaded partitions", zap.String("file", cfg.Engine.PartitionsFile), zap.String("version", p.Version()))
	}
	return rules.NewEngine(partitions, logger.Named("rules")), nil
}

// storeEnv is an open database with its queries.
type storeEnv struct {
	cfg     *config.Config
	queries *db.Queries
	close   func() error
}

// openStore opens the configured database and loads named queries. The
// schema must already be migrated.
func openStore(cmd *cobra.Command) (*storeEnv, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	database, err := db.Open(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return &storeEnv{cfg: cfg, queries: queries, close: database.Close}, nil
}

// newRegistry builds a registry over an open store.
func newRegistry(env *storeEnv, opts registry.Options) (*registry.Registry, error) {
	engine, err := newEngine(env.cfg)
	if err != nil {
		return nil, err
	}
	opts.ProgramCacheSize = env.cfg.Engine.ProgramCacheSize
	opts.ResultCacheSize = env.cfg.Engine.ResultCacheSize
	if opts.Logger == nil {
		opts.Logger = logger.Named("registry")
	}
	return registry.New(registry.NewStore(env.queries), engine, opts)
}
