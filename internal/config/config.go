// Package config loads submitter configuration from a YAML file with
// SUBMITTER_* environment overrides layered on top.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"submitter/internal/models"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SUBMITTER_"

// Load starts from the defaults, applies the file at configPath when given,
// then the environment, and validates the result.
func Load(configPath string) (*models.Config, error) {
	config := models.NewDefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	loadFromEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func loadFromFile(config *models.Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", filePath)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

func loadFromEnvironment(config *models.Config) {
	// Limiter
	envString("TIME_UNIT", &config.Limiter.TimeUnit)
	envInt("WINDOW_COUNT", &config.Limiter.WindowCount)
	envInt("REQUEST_LIMIT", &config.Limiter.RequestLimit)
	envDuration("ACQUIRE_TIMEOUT", &config.Limiter.AcquireTimeout)
	envDuration("MIN_INTERVAL", &config.Limiter.MinInterval)

	// Endpoint
	envString("ENDPOINT_URL", &config.Endpoint.URL)
	envDuration("ENDPOINT_TIMEOUT", &config.Endpoint.Timeout)

	// Journal
	envBool("JOURNAL_ENABLED", &config.Journal.Enabled)
	envString("JOURNAL_TYPE", &config.Journal.Type)
	envString("JOURNAL_DSN", &config.Journal.DSN)
	envInt("JOURNAL_RETENTION_DAYS", &config.Journal.RetentionDays)
	envString("JOURNAL_PRUNE_SCHEDULE", &config.Journal.PruneSchedule)

	// Stats
	envBool("STATS_ENABLED", &config.Stats.Enabled)
	envString("STATS_TYPE", &config.Stats.Type)
	envString("STATS_PREFIX", &config.Stats.Prefix)
	envDuration("STATS_TTL", &config.Stats.TTL)
	envString("REDIS_ADDR", &config.Stats.Redis.Addr)
	envString("REDIS_PASSWORD", &config.Stats.Redis.Password)
	envInt("REDIS_DB", &config.Stats.Redis.DB)

	// Logging
	envString("LOG_LEVEL", &config.Logging.Level)
	envString("LOG_FORMAT", &config.Logging.Format)
	envString("LOG_OUTPUT", &config.Logging.Output)
	envString("LOG_FILE_PATH", &config.Logging.FilePath)

	// Metrics
	envBool("METRICS_ENABLED", &config.Metrics.Enabled)
	envString("METRICS_PATH", &config.Metrics.Path)
	envInt("METRICS_PORT", &config.Metrics.Port)

	// Observability
	envString("SERVICE_NAME", &config.Observability.ServiceName)
	envBool("TRACING_ENABLED", &config.Observability.Tracing.Enabled)
	envString("TRACING_EXPORTER", &config.Observability.Tracing.Exporter)
	envString("OTLP_ENDPOINT", &config.Observability.Tracing.OTLPEndpoint)
	envFloat("TRACING_SAMPLE_RATE", &config.Observability.Tracing.SampleRate)
}

func envString(name string, dst *string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = v
	}
}

func envBool(name string, dst *bool) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = strings.ToLower(v) == "true"
	}
}

// Malformed numeric values are ignored with a warning so the file or default
// value stays in effect.
func envInt(name string, dst *int) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		warnIgnored(name, v, err)
		return
	}
	*dst = n
}

func envFloat(name string, dst *float64) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		warnIgnored(name, v, err)
		return
	}
	*dst = f
}

func envDuration(name string, dst *time.Duration) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		warnIgnored(name, v, err)
		return
	}
	*dst = d
}

func warnIgnored(name, value string, err error) {
	slog.Warn("Ignoring malformed environment override", "env", EnvPrefix+name, "value", value, "error", err)
}

// SaveExample writes an example configuration with every optional subsystem
// enabled and pointed at local services.
func SaveExample(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()
	config.Limiter.AcquireTimeout = 5 * time.Second
	config.Journal.Enabled = true
	config.Journal.Type = models.JournalTypeSQLite
	config.Journal.DSN = "./data/journal.db"
	config.Stats.Enabled = true
	config.Stats.Type = models.StatsTypeRedis
	config.Metrics.Enabled = true

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
