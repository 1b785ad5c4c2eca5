package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/grandlivre/internal/logging"
	"github.com/cleared-dev/grandlivre/internal/model"
	"github.com/cleared-dev/grandlivre/internal/store"
)

// EnvPrefix prefixes every environment override, e.g. GRANDLIVRE_DATABASE_DSN.
const EnvPrefix = "GRANDLIVRE"

// Config represents the top-level grandlivre.yaml configuration.
type Config struct {
	Enterprise EnterpriseConfig `yaml:"enterprise"`
	Database   DatabaseConfig   `yaml:"database"`
	Numbering  NumberingConfig  `yaml:"numbering"`
	Log        LogConfig        `yaml:"log"`
}

// EnterpriseConfig identifies the enterprise whose books the commands act on.
// ID is filled in by init once the enterprise row exists.
type EnterpriseConfig struct {
	ID    int64       `yaml:"id,omitempty"`
	Name  string      `yaml:"name"`
	Chart model.Chart `yaml:"chart"`
}

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// NumberingConfig controls how entry creation retries on number collisions.
type NumberingConfig struct {
	MaxAttempts int           `yaml:"max_attempts" split_words:"true"`
	Backoff     time.Duration `yaml:"backoff"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a grandlivre.yaml file from disk, applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides cfg with any GRANDLIVRE_* variables that are set.
// Unset variables leave the file's values alone.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("loading environment: %w", err)
	}
	return nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new ledger kept in a
// local SQLite file.
func Default(name string, chart model.Chart) *Config {
	return &Config{
		Enterprise: EnterpriseConfig{
			Name:  name,
			Chart: chart,
		},
		Database: DatabaseConfig{
			Driver: store.DriverSQLite,
			DSN:    "grandlivre.db",
		},
		Numbering: NumberingConfig{
			MaxAttempts: 3,
			Backoff:     10 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Enterprise.Name) == "" {
		problems = append(problems, "enterprise.name is required")
	}
	if !c.Enterprise.Chart.Valid() {
		problems = append(problems, fmt.Sprintf("enterprise.chart %q must be %s or %s", c.Enterprise.Chart, model.ChartFR, model.ChartOHADA))
	}
	switch c.Database.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q must be %s or %s", c.Database.Driver, store.DriverSQLite, store.DriverPostgres))
	}
	if c.Database.DSN == "" {
		problems = append(problems, "database.dsn is required")
	}
	if c.Numbering.MaxAttempts < 1 {
		problems = append(problems, "numbering.max_attempts must be at least 1")
	}
	if c.Numbering.Backoff < 0 {
		problems = append(problems, "numbering.backoff must not be negative")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}
	switch strings.ToLower(c.Log.Format) {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be %s or %s", c.Log.Format, logging.FormatConsole, logging.FormatJSON))
	}

	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}
