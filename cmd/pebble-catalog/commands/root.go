package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/marshallshelly/pebble-catalog/pkg/catalog"
	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
)

var (
	// Global flags
	configPath string
	dbURL      string
	driver     string
	verbose    bool
	jsonOutput bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pebble-catalog",
	Short: "Pebble Catalog - products, providers and their details",
	Long: `Pebble Catalog manages a product catalog stored in PostgreSQL, MySQL or SQLite.

Products belong to a provider and may carry one detail record. Reads resolve
those relationships in batches, and a reference to a deleted provider is
reported instead of silently dropped.

Connection settings come from --config (YAML), then PEBBLE_* environment
variables, then --db and --driver.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "Database connection URL or DSN")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "Database driver: postgres, mysql or sqlite")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every statement")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func loadConfig() (*runtime.Config, error) {
	cfg, err := runtime.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if dbURL != "" {
		cfg.URL = dbURL
	}
	if driver != "" {
		cfg.Driver = driver
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func newLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(lvl)
	return logger, nil
}

// openCatalog connects to the configured database. The returned func
// closes the connection.
func openCatalog(ctx context.Context) (*catalog.Catalog, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	db, err := runtime.Connect(ctx, cfg, runtime.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c, err := catalog.New(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return c, func() { _ = db.Close() }, nil
}

// withCatalog adapts a catalog-using function to cobra's RunE.
func withCatalog(fn func(ctx context.Context, c *catalog.Catalog, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		c, closeDB, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer closeDB()
		return fn(ctx, c, args)
	}
}
