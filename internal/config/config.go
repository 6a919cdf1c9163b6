package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/netspeed/speedlog/internal/retry"
	"github.com/spf13/viper"
)

// ConfigFileEnv names the environment variable pointing at an optional YAML config file
const ConfigFileEnv = "SPEEDLOG_CONFIG"

// Config holds all configuration for the application
type Config struct {
	// ClickHouse sink
	ClickHouseEnabled  bool   `mapstructure:"clickhouse_enabled"`
	ClickHouseHost     string `mapstructure:"clickhouse_host"`
	ClickHousePort     int    `mapstructure:"clickhouse_port"`
	ClickHouseDB       string `mapstructure:"clickhouse_db"`
	ClickHouseUser     string `mapstructure:"clickhouse_user"`
	ClickHousePassword string `mapstructure:"clickhouse_password"`
	ClickHouseDedup    bool   `mapstructure:"clickhouse_dedup"` // Skip records whose hash is already stored
	BatchSize          int    `mapstructure:"batch_size"`

	// CSV sink (empty path disables it)
	CSVPath string `mapstructure:"csv_path"`

	// Redis latest-results cache (empty address disables it)
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
	RedisKeep int    `mapstructure:"redis_keep"` // Records kept per region

	// Log discovery
	LogDirsRaw     string        `mapstructure:"log_dirs"`     // Semicolon-separated directories
	LogPatternsRaw string        `mapstructure:"log_patterns"` // Semicolon-separated globs
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MinFileAge     time.Duration `mapstructure:"min_file_age"` // 0 means one poll interval
	LedgerPath     string        `mapstructure:"ledger_path"`
	RegionMapPath  string        `mapstructure:"region_map_path"`

	LogDirs     []string `mapstructure:"-"`
	LogPatterns []string `mapstructure:"-"`

	// Observability
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"` // console or json
	LogFile        string `mapstructure:"log_file"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string `mapstructure:"otlp_protocol"`

	// Retry for ClickHouse and Redis calls
	RetryMaxAttempts    int     `mapstructure:"retry_max_attempts"`
	RetryInitialDelayMs int     `mapstructure:"retry_initial_delay_ms"`
	RetryMaxDelayMs     int     `mapstructure:"retry_max_delay_ms"`
	RetryMultiplier     float64 `mapstructure:"retry_multiplier"`
}

// Load loads configuration from environment variables and, if SPEEDLOG_CONFIG is set, a YAML file
// Environment variables take precedence over the file
func Load() (*Config, error) {
	return LoadFrom(os.Getenv(ConfigFileEnv))
}

// LoadFrom loads configuration using an optional YAML file
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.LogDirs = parsePathList(cfg.LogDirsRaw)
	cfg.LogPatterns = parsePathList(cfg.LogPatternsRaw)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("clickhouse_enabled", true)
	v.SetDefault("clickhouse_host", "localhost")
	v.SetDefault("clickhouse_port", 9000)
	v.SetDefault("clickhouse_db", "speedtest")
	v.SetDefault("clickhouse_user", "default")
	v.SetDefault("clickhouse_password", "")
	v.SetDefault("clickhouse_dedup", false)
	v.SetDefault("batch_size", 500)

	v.SetDefault("csv_path", "")

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_keep", 100)

	v.SetDefault("log_dirs", "")
	v.SetDefault("log_patterns", "*.log;*.log.gz;*.log.zst;*.txt")
	v.SetDefault("poll_interval", 30*time.Second)
	v.SetDefault("min_file_age", 0)
	v.SetDefault("ledger_path", "speedlog-ledger.db")
	v.SetDefault("region_map_path", "configs/region_map.yaml")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("log_file", "")
	v.SetDefault("tracing_enabled", false)
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("otlp_protocol", "grpc")

	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_initial_delay_ms", 100)
	v.SetDefault("retry_max_delay_ms", 5000)
	v.SetDefault("retry_multiplier", 2.0)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.ClickHouseEnabled && c.CSVPath == "" && c.RedisAddr == "" {
		return fmt.Errorf("at least one sink must be configured (CLICKHOUSE_ENABLED, CSV_PATH or REDIS_ADDR)")
	}
	if c.ClickHouseEnabled {
		if c.ClickHouseHost == "" {
			return fmt.Errorf("CLICKHOUSE_HOST is required")
		}
		if c.ClickHousePort <= 0 || c.ClickHousePort > 65535 {
			return fmt.Errorf("CLICKHOUSE_PORT must be between 1 and 65535")
		}
		if c.ClickHouseDB == "" {
			return fmt.Errorf("CLICKHOUSE_DB is required")
		}
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be at least 1")
	}
	if c.RedisAddr != "" && c.RedisKeep < 1 {
		return fmt.Errorf("REDIS_KEEP must be at least 1")
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("POLL_INTERVAL must be at least 1s")
	}
	if c.LedgerPath == "" {
		return fmt.Errorf("LEDGER_PATH is required")
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json")
	}
	switch strings.ToLower(c.OTLPProtocol) {
	case "grpc", "http":
	default:
		return fmt.Errorf("OTLP_PROTOCOL must be grpc or http")
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.RetryMultiplier < 1 {
		return fmt.Errorf("RETRY_MULTIPLIER must be at least 1")
	}

	return nil
}

// Retry returns the retry configuration for sink calls
func (c *Config) Retry() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = c.RetryMaxAttempts
	cfg.InitialDelay = time.Duration(c.RetryInitialDelayMs) * time.Millisecond
	cfg.MaxDelay = time.Duration(c.RetryMaxDelayMs) * time.Millisecond
	cfg.Multiplier = c.RetryMultiplier
	return cfg
}

// parsePathList parses a semicolon-separated list of paths
func parsePathList(pathsStr string) []string {
	if pathsStr == "" {
		return nil
	}

	paths := strings.Split(pathsStr, ";")
	result := make([]string, 0, len(paths))

	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
