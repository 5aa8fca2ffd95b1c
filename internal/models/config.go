// Package models - Client configuration and operational settings.
// This file defines the configuration structures for every client component.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (limiter, endpoint, journal, etc.)
// - Defaults that match the remote service's published quota
// - Validation catches misconfigurations before any goroutine is started
// - Optional subsystems (journal, stats, metrics, tracing) are off unless enabled
package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Journal type constants
const (
	JournalTypeMemory   = "memory"
	JournalTypePostgres = "postgres"
	JournalTypeSQLite   = "sqlite"
)

// Stats type constants
const (
	StatsTypeMemory = "memory"
	StatsTypeRedis  = "redis"
)

// DefaultEndpointURL is the document creation endpoint of the remote service.
const DefaultEndpointURL = "https://ismp.crpt.ru/api/v3/lk/documents/create"

// Config is the root configuration structure containing all client settings.
//
// Configuration Structure:
// - Limiter: permit pool size and replenishment cadence
// - Endpoint: remote service URL and HTTP client timeout
// - Journal: optional record of every submission outcome
// - Stats: optional outcome counters (memory or Redis)
// - Logging: structured logging and output configuration
// - Metrics: Prometheus metrics endpoint
// - Observability: tracing and service identity
type Config struct {
	Limiter       LimiterConfig       `yaml:"limiter" json:"limiter"`
	Endpoint      EndpointConfig      `yaml:"endpoint" json:"endpoint"`
	Journal       JournalConfig       `yaml:"journal" json:"journal"`
	Stats         StatsConfig         `yaml:"stats" json:"stats"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// LimiterConfig describes the admission window: at most RequestLimit calls are
// admitted every WindowCount units of TimeUnit.
type LimiterConfig struct {
	TimeUnit       string        `yaml:"time_unit" json:"time_unit"`
	WindowCount    int           `yaml:"window_count" json:"window_count"`
	RequestLimit   int           `yaml:"request_limit" json:"request_limit"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout" json:"acquire_timeout"` // 0 waits indefinitely
	MinInterval    time.Duration `yaml:"min_interval" json:"min_interval"`       // 0 disables pacing
}

type EndpointConfig struct {
	URL     string        `yaml:"url" json:"url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

type JournalConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	Type          string `yaml:"type" json:"type"`
	DSN           string `yaml:"dsn" json:"dsn"`
	RetentionDays int    `yaml:"retention_days" json:"retention_days"`
	PruneSchedule string `yaml:"prune_schedule" json:"prune_schedule"`
}

type StatsConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Type    string        `yaml:"type" json:"type"`
	Prefix  string        `yaml:"prefix" json:"prefix"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
	Redis   RedisConfig   `yaml:"redis" json:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with safe defaults.
//
// Default Values Rationale:
// - 10 requests per second: conservative share of the remote quota
// - No acquire timeout: callers wait for the next window like the reference client
// - Journal, stats, metrics and tracing disabled: no external services required
func NewDefaultConfig() *Config {
	return &Config{
		Limiter: LimiterConfig{
			TimeUnit:     "second",
			WindowCount:  1,
			RequestLimit: 10,
		},
		Endpoint: EndpointConfig{
			URL:     DefaultEndpointURL,
			Timeout: 30 * time.Second,
		},
		Journal: JournalConfig{
			Enabled:       false,
			Type:          JournalTypeMemory,
			RetentionDays: 30,
			PruneSchedule: "0 3 * * *",
		},
		Stats: StatsConfig{
			Enabled: false,
			Type:    StatsTypeMemory,
			Prefix:  "submitter:stats",
			TTL:     24 * time.Hour,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "submitter",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Limiter.Validate(); err != nil {
		return fmt.Errorf("invalid limiter config: %w", err)
	}

	if err := c.Endpoint.Validate(); err != nil {
		return fmt.Errorf("invalid endpoint config: %w", err)
	}

	if err := c.Journal.Validate(); err != nil {
		return fmt.Errorf("invalid journal config: %w", err)
	}

	if err := c.Stats.Validate(); err != nil {
		return fmt.Errorf("invalid stats config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

// ParseTimeUnit maps a unit name to its duration. Plural and abbreviated
// forms are accepted.
func ParseTimeUnit(unit string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "ms", "millisecond", "milliseconds":
		return time.Millisecond, nil
	case "s", "sec", "second", "seconds":
		return time.Second, nil
	case "m", "min", "minute", "minutes":
		return time.Minute, nil
	case "h", "hour", "hours":
		return time.Hour, nil
	case "d", "day", "days":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported time unit: %q", unit)
	}
}

// Window returns the replenishment cadence, WindowCount units of TimeUnit.
func (lc *LimiterConfig) Window() (time.Duration, error) {
	unit, err := ParseTimeUnit(lc.TimeUnit)
	if err != nil {
		return 0, err
	}
	return time.Duration(lc.WindowCount) * unit, nil
}

func (lc *LimiterConfig) Validate() error {
	if lc.RequestLimit <= 0 {
		return errors.New("request limit must be positive")
	}

	if lc.WindowCount <= 0 {
		return errors.New("window count must be positive")
	}

	if _, err := ParseTimeUnit(lc.TimeUnit); err != nil {
		return err
	}

	if lc.AcquireTimeout < 0 {
		return errors.New("acquire timeout cannot be negative")
	}

	if lc.MinInterval < 0 {
		return errors.New("min interval cannot be negative")
	}

	return nil
}

func (ec *EndpointConfig) Validate() error {
	if ec.URL == "" {
		return errors.New("endpoint URL cannot be empty")
	}

	if !strings.HasPrefix(ec.URL, "http://") && !strings.HasPrefix(ec.URL, "https://") {
		return fmt.Errorf("endpoint URL must be http or https: %s", ec.URL)
	}

	if ec.Timeout < 0 {
		return errors.New("endpoint timeout cannot be negative")
	}

	return nil
}

func (jc *JournalConfig) Validate() error {
	if !jc.Enabled {
		return nil
	}

	validTypes := []string{JournalTypeMemory, JournalTypePostgres, JournalTypeSQLite}
	if !slices.Contains(validTypes, jc.Type) {
		return fmt.Errorf("invalid journal type: %s", jc.Type)
	}

	if (jc.Type == JournalTypePostgres || jc.Type == JournalTypeSQLite) && jc.DSN == "" {
		return errors.New("journal DSN is required for database journals")
	}

	if jc.RetentionDays < 0 {
		return errors.New("retention days cannot be negative")
	}

	return nil
}

func (sc *StatsConfig) Validate() error {
	if !sc.Enabled {
		return nil
	}

	validTypes := []string{StatsTypeMemory, StatsTypeRedis}
	if !slices.Contains(validTypes, sc.Type) {
		return fmt.Errorf("invalid stats type: %s", sc.Type)
	}

	if sc.TTL < 0 {
		return errors.New("stats TTL cannot be negative")
	}

	if sc.Type == StatsTypeRedis && sc.Redis.Addr == "" {
		return errors.New("Redis address is required when stats type is redis")
	}

	return nil
}

func (lc *LoggingConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, lc.Level) {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	validFormats := []string{"json", "text"}
	if !slices.Contains(validFormats, lc.Format) {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	if !slices.Contains(validOutputs, lc.Output) {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if !oc.Tracing.Enabled {
		return nil
	}

	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty when tracing is enabled")
	}

	switch oc.Tracing.Exporter {
	case "stdout":
	case "otlp":
		if oc.Tracing.OTLPEndpoint == "" {
			return errors.New("OTLP endpoint is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("invalid trace exporter: %s", oc.Tracing.Exporter)
	}

	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}

	return nil
}
