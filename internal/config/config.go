package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds all gradebatch configuration. Values are assembled in
// order: built-in defaults, then the optional YAML config file, then
// environment variables, then command-line options.
//
// Environment Variables:
//
// Data:
// - GRADEBATCH_CONFIG: path to the YAML config file (default: ./gradebatch.yaml if present)
// - GRADEBATCH_DATA_DIR: base directory for database and audit files (default: ./data)
// - GRADEBATCH_DB_PATH: SQLite database path (default: {data_dir}/gradebatch.db)
// - GRADEBATCH_AUDIT_PATH: audit trail path (default: {data_dir}/audit.jsonl)
//
// Export:
// - GRADEBATCH_OUTPUT_DIR: report output directory (default: ./reports)
// - GRADEBATCH_FORMAT: csv, json, binary or all (default: csv)
// - GRADEBATCH_WORKERS: worker count for batch runs (default: 4)
// - GRADEBATCH_GRACE: shutdown grace period (default: 10s)
//
// Schedule:
// - GRADEBATCH_CRON: export schedule, five-field cron (default: "0 2 * * *")
//
// HTTP:
// - GRADEBATCH_HTTP_ADDR: status API listen address (default: :8080)
//
// Log:
// - GRADEBATCH_LOG_LEVEL: debug, info, warn or error (default: info)
// - GRADEBATCH_LOG_FILE: log to this file instead of stdout (optional)

type Config struct {
	Data     DataConfig     `yaml:"data"`
	Export   ExportConfig   `yaml:"export"`
	Schedule ScheduleConfig `yaml:"schedule"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
}

// DataConfig locates the record store and audit trail.
type DataConfig struct {
	Dir       string `yaml:"dir"`
	DBPath    string `yaml:"db_path"`
	AuditPath string `yaml:"audit_path"`
}

// ExportConfig holds the batch run parameters.
type ExportConfig struct {
	OutputDir string   `yaml:"output_dir"`
	Format    string   `yaml:"format"`
	Workers   int      `yaml:"workers"`
	Grace     Duration `yaml:"grace"`
}

// ScheduleConfig holds the cron schedule for unattended exports. An
// empty expression disables the schedule.
type ScheduleConfig struct {
	CronExpr string `yaml:"cron_expr"`
}

// HTTPConfig holds the status API listen address.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig selects log level and destination.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Option is a function type for adjusting Config after env loading.
type Option func(*Config)

// WithLogLevel overrides the configured log level.
func WithLogLevel(level string) Option {
	return func(c *Config) {
		if strings.TrimSpace(level) != "" {
			c.Log.Level = level
		}
	}
}

// WithDataDir overrides the configured data directory.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		if strings.TrimSpace(dir) != "" {
			c.Data.Dir = dir
		}
	}
}

// New assembles a Config from defaults, the optional config file,
// environment variables and options, then validates it.
func New(opts ...Option) (*Config, error) {
	config := Defaults()

	if path := FilePath(); path != "" {
		if err := config.loadFile(path); err != nil {
			return nil, err
		}
	}
	config.applyEnv()

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultFile is the config file New picks up from the working
// directory when GRADEBATCH_CONFIG is unset.
const DefaultFile = "gradebatch.yaml"

// FilePath resolves the config file to load: the explicit env path, or
// the default file when it exists, or nothing.
func FilePath() string {
	if path := os.Getenv("GRADEBATCH_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile
	}
	return ""
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Data: DataConfig{
			Dir: "./data",
		},
		Export: ExportConfig{
			OutputDir: "./reports",
			Format:    "csv",
			Workers:   4,
			Grace:     Duration(10 * time.Second),
		},
		Schedule: ScheduleConfig{
			CronExpr: "0 2 * * *",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func (c *Config) applyEnv() {
	c.Data.Dir = getEnvString("GRADEBATCH_DATA_DIR", c.Data.Dir)
	c.Data.DBPath = getEnvString("GRADEBATCH_DB_PATH", c.Data.DBPath)
	c.Data.AuditPath = getEnvString("GRADEBATCH_AUDIT_PATH", c.Data.AuditPath)

	c.Export.OutputDir = getEnvString("GRADEBATCH_OUTPUT_DIR", c.Export.OutputDir)
	c.Export.Format = getEnvString("GRADEBATCH_FORMAT", c.Export.Format)
	c.Export.Workers = getEnvInt("GRADEBATCH_WORKERS", c.Export.Workers)
	c.Export.Grace = Duration(getEnvDuration("GRADEBATCH_GRACE", time.Duration(c.Export.Grace)))

	c.Schedule.CronExpr = getEnvString("GRADEBATCH_CRON", c.Schedule.CronExpr)

	c.HTTP.Addr = getEnvString("GRADEBATCH_HTTP_ADDR", c.HTTP.Addr)

	c.Log.Level = getEnvString("GRADEBATCH_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnvString("GRADEBATCH_LOG_FILE", c.Log.File)
}

// DBPath returns the database location, defaulting under the data
// directory.
func (c *Config) DBPath() string {
	if c.Data.DBPath != "" {
		return c.Data.DBPath
	}
	return filepath.Join(c.Data.Dir, "gradebatch.db")
}

// AuditPath returns the audit trail location, defaulting under the
// data directory.
func (c *Config) AuditPath() string {
	if c.Data.AuditPath != "" {
		return c.Data.AuditPath
	}
	return filepath.Join(c.Data.Dir, "audit.jsonl")
}

// validate checks that the assembled configuration can actually run a
// batch, so bad settings surface at startup instead of mid-run.
func (c *Config) validate() error {
	if strings.TrimSpace(c.Data.Dir) == "" {
		return fmt.Errorf("data dir is required")
	}
	if strings.TrimSpace(c.Export.OutputDir) == "" {
		return fmt.Errorf("output dir is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Export.Format)) {
	case "csv", "json", "binary", "all":
	default:
		return fmt.Errorf("unknown export format %q (want csv, json, binary or all)", c.Export.Format)
	}
	if c.Export.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Export.Workers)
	}
	if time.Duration(c.Export.Grace) <= 0 {
		return fmt.Errorf("grace period must be positive")
	}
	if c.Schedule.CronExpr != "" {
		if _, err := cron.ParseStandard(c.Schedule.CronExpr); err != nil {
			return fmt.Errorf("invalid cron_expr: %w", err)
		}
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("http addr is required")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment variables with default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
