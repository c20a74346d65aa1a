// Package cmd implements the CLI commands for surplus-ml.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/donaldgifford/surplus-ml/internal/config"
	"github.com/donaldgifford/surplus-ml/pkg/logger"
)

const defaultConfigFile = "config.yaml"

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "surplus-ml",
		Short: "Price and recommendation models for a surplus food marketplace",
		Long: "surplus-ml trains a discount model that recommends prices for expiring\n" +
			"listings and a content-based recommender for similar listings, and\n" +
			"serves both over HTTP.",
		SilenceUsage: true,
	}
)

// Root returns the root cobra command for documentation generation.
func Root() *cobra.Command {
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initViper)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", defaultConfigFile, "config file path")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (text, json)")
	pf.String("db-driver", "", "database driver (postgres, sqlite)")
	pf.String("sqlite-path", "", "SQLite database file")
	pf.String("models-dir", "", "directory holding model artifacts")
	pf.String("reports-dir", "", "directory for training reports")

	bindFlag("logging.level", "log-level")
	bindFlag("logging.format", "log-format")
	bindFlag("database.driver", "db-driver")
	bindFlag("database.sqlite_path", "sqlite-path")
	bindFlag("models.dir", "models-dir")
	bindFlag("models.reports_dir", "reports-dir")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(remoteCmd())
	rootCmd.AddCommand(openapiCmd())
	rootCmd.AddCommand(versionCmd())
}

func bindFlag(key, flag string) {
	cobra.CheckErr(viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)))
}

// initViper lets SML_* environment variables override flags, for example
// SML_DATABASE_DRIVER or SML_MODELS_DIR.
func initViper() {
	viper.SetEnvPrefix("SML")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the config file when present, falls back to defaults when
// the default file is absent, then applies flag and environment overrides.
func loadConfig() (*config.Config, error) {
	_, statErr := os.Stat(cfgFile)
	switch {
	case statErr == nil:
		cfg, err := config.Load(cfgFile, applyOverrides)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	case errors.Is(statErr, fs.ErrNotExist) && cfgFile == defaultConfigFile:
		cfg := config.Default()
		applyOverrides(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating config: %w", err)
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("loading config: %w", statErr)
	}
}

func applyOverrides(cfg *config.Config) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"logging.level", &cfg.Logging.Level},
		{"logging.format", &cfg.Logging.Format},
		{"database.driver", &cfg.Database.Driver},
		{"database.sqlite_path", &cfg.Database.SQLitePath},
		{"database.host", &cfg.Database.Host},
		{"database.name", &cfg.Database.Name},
		{"database.user", &cfg.Database.User},
		{"database.password", &cfg.Database.Password},
		{"models.dir", &cfg.Models.Dir},
		{"models.reports_dir", &cfg.Models.ReportsDir},
	}
	for _, o := range overrides {
		if v := viper.GetString(o.key); v != "" {
			*o.dst = v
		}
	}
}

// setup loads the config and installs the configured logger as the default.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)
	return cfg, log, nil
}
