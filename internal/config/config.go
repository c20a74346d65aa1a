// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/donaldgifford/surplus-ml/pkg/gbm"
	"github.com/donaldgifford/surplus-ml/pkg/tfidf"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the top-level application configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Models         ModelsConfig         `yaml:"models"`
	Pricing        PricingConfig        `yaml:"pricing"`
	Recommendation RecommendationConfig `yaml:"recommendation"`
	Schedule       ScheduleConfig       `yaml:"schedule"`
	Notifications  NotificationsConfig  `yaml:"notifications"`
	Tracing        TracingConfig        `yaml:"tracing"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// TrainPerMinute caps manual training triggers over HTTP.
	TrainPerMinute int `yaml:"train_per_minute"`
}

// DatabaseConfig defines the marketplace data store connection.
type DatabaseConfig struct {
	Driver     string `yaml:"driver"` // postgres, sqlite
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Name       string `yaml:"name"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	SSLMode    string `yaml:"sslmode"`
	PoolSize   int    `yaml:"pool_size"`
	SQLitePath string `yaml:"sqlite_path"`
}

// DSN returns the connection string for the configured driver. For SQLite
// this is the database file path.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.SQLitePath
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
	if d.PoolSize > 0 {
		dsn += fmt.Sprintf(" pool_max_conns=%d", d.PoolSize)
	}
	return dsn
}

// ModelsConfig defines where artifacts and training reports live.
type ModelsConfig struct {
	Dir        string `yaml:"dir"`
	ReportsDir string `yaml:"reports_dir"`
}

// PricingConfig defines price model training settings.
type PricingConfig struct {
	MinSamples   int     `yaml:"min_samples"`
	CVFolds      int     `yaml:"cv_folds"`
	TestFraction float64 `yaml:"test_fraction"`
	// IncludeUnsold trains on every priced listing instead of only sold ones.
	IncludeUnsold bool       `yaml:"include_unsold"`
	GBM           gbm.Params `yaml:"gbm"`
}

// RecommendationConfig defines recommendation model settings.
type RecommendationConfig struct {
	TFIDF        tfidf.Params `yaml:"tfidf"`
	MinUsers     int          `yaml:"min_users"`
	MinProducts  int          `yaml:"min_products"`
	TopK         int          `yaml:"top_k"`
	MetricSample int          `yaml:"metric_sample"`
	Seed         uint64       `yaml:"seed"`
}

// ScheduleConfig defines background retraining. A zero interval disables it.
type ScheduleConfig struct {
	RetrainInterval time.Duration `yaml:"retrain_interval"`
}

// NotificationsConfig defines where training run summaries are sent.
type NotificationsConfig struct {
	Discord DiscordConfig `yaml:"discord"`
}

// DiscordConfig defines Discord webhook settings.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// TracingConfig defines the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation. Overrides run after defaults are applied and
// before validation.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)
	for _, o := range overrides {
		o(cfg)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with every default applied. The result
// still needs database settings before it validates.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate re-checks a configuration after callers override fields.
func (c *Config) Validate() error {
	return validate(c)
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyModelsDefaults(&cfg.Models)
	applyPricingDefaults(&cfg.Pricing)
	applyRecommendationDefaults(&cfg.Recommendation)
	applyTracingDefaults(&cfg.Tracing)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
	if s.TrainPerMinute == 0 {
		s.TrainPerMinute = 2
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Driver == "" {
		d.Driver = DriverPostgres
	}
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 10
	}
}

func applyModelsDefaults(m *ModelsConfig) {
	if m.Dir == "" {
		m.Dir = "ml_models"
	}
	if m.ReportsDir == "" {
		m.ReportsDir = "reports"
	}
}

func applyPricingDefaults(p *PricingConfig) {
	if p.MinSamples == 0 {
		p.MinSamples = 50
	}
	if p.CVFolds == 0 {
		p.CVFolds = 5
	}
	if p.TestFraction == 0 {
		p.TestFraction = 0.2
	}

	def := gbm.DefaultParams()
	g := &p.GBM
	if g.NEstimators == 0 {
		g.NEstimators = def.NEstimators
	}
	if g.LearningRate == 0 {
		g.LearningRate = def.LearningRate
	}
	if g.MaxDepth == 0 {
		g.MaxDepth = def.MaxDepth
	}
	if g.MinSamplesSplit == 0 {
		g.MinSamplesSplit = def.MinSamplesSplit
	}
	if g.MinSamplesLeaf == 0 {
		g.MinSamplesLeaf = def.MinSamplesLeaf
	}
	if g.Subsample == 0 {
		g.Subsample = def.Subsample
	}
	if g.Seed == 0 {
		g.Seed = def.Seed
	}
}

func applyRecommendationDefaults(r *RecommendationConfig) {
	def := tfidf.DefaultParams()
	t := &r.TFIDF
	if t.MaxFeatures == 0 {
		t.MaxFeatures = def.MaxFeatures
	}
	if t.MinDF == 0 {
		t.MinDF = def.MinDF
	}
	if t.MaxDF == 0 {
		t.MaxDF = def.MaxDF
	}
	if t.NGramMin == 0 {
		t.NGramMin = def.NGramMin
	}
	if t.NGramMax == 0 {
		t.NGramMax = def.NGramMax
	}

	if r.MinUsers == 0 {
		r.MinUsers = 5
	}
	if r.MinProducts == 0 {
		r.MinProducts = 20
	}
	if r.TopK == 0 {
		r.TopK = 10
	}
	if r.MetricSample == 0 {
		r.MetricSample = 100
	}
	if r.Seed == 0 {
		r.Seed = 42
	}
}

func applyTracingDefaults(t *TracingConfig) {
	if t.Endpoint == "" {
		t.Endpoint = "localhost:4317"
	}
	if t.SampleRatio == 0 {
		t.SampleRatio = 1.0
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	switch cfg.Database.Driver {
	case DriverPostgres:
		if cfg.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required"))
		}
		if cfg.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.name is required"))
		}
		if cfg.Database.User == "" {
			errs = append(errs, fmt.Errorf("database.user is required"))
		}
	case DriverSQLite:
		if cfg.Database.SQLitePath == "" {
			errs = append(
				errs,
				fmt.Errorf("database.sqlite_path is required when driver is sqlite"),
			)
		}
	default:
		errs = append(
			errs,
			fmt.Errorf(
				"database.driver must be one of: postgres, sqlite (got %q)",
				cfg.Database.Driver,
			),
		)
	}

	if cfg.Pricing.MinSamples < 1 {
		errs = append(errs, fmt.Errorf("pricing.min_samples must be >= 1"))
	}
	if cfg.Pricing.CVFolds < 2 {
		errs = append(errs, fmt.Errorf("pricing.cv_folds must be >= 2"))
	}
	if cfg.Pricing.TestFraction <= 0 || cfg.Pricing.TestFraction >= 1 {
		errs = append(errs, fmt.Errorf("pricing.test_fraction must be in (0, 1)"))
	}
	if err := cfg.Pricing.GBM.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pricing.gbm: %w", err))
	}

	if err := cfg.Recommendation.TFIDF.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("recommendation.tfidf: %w", err))
	}
	if cfg.Recommendation.TopK < 1 {
		errs = append(errs, fmt.Errorf("recommendation.top_k must be >= 1"))
	}

	if cfg.Schedule.RetrainInterval < 0 {
		errs = append(errs, fmt.Errorf("schedule.retrain_interval must not be negative"))
	}
	if cfg.Notifications.Discord.Enabled && cfg.Notifications.Discord.WebhookURL == "" {
		errs = append(
			errs,
			fmt.Errorf("notifications.discord.webhook_url is required when discord is enabled"),
		)
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be in [0, 1]"))
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of: debug, info, warn, error"))
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be one of: text, json"))
	}

	return errors.Join(errs...)
}
