package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.ClickHouseEnabled || cfg.ClickHouseHost != "localhost" || cfg.ClickHousePort != 9000 {
		t.Errorf("unexpected ClickHouse defaults: %+v", cfg)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("expected PollInterval=30s, got %v", cfg.PollInterval)
	}
	if len(cfg.LogPatterns) != 4 {
		t.Errorf("expected 4 default patterns, got %v", cfg.LogPatterns)
	}
	if cfg.LogDirs != nil {
		t.Errorf("expected no log dirs, got %v", cfg.LogDirs)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("CLICKHOUSE_HOST", "ch.internal")
	t.Setenv("CLICKHOUSE_PORT", "19000")
	t.Setenv("LOG_DIRS", " /var/log/speed ; ;/mnt/archive ")
	t.Setenv("POLL_INTERVAL", "2m")
	t.Setenv("CSV_PATH", "NetworkSpeed.csv")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ClickHouseHost != "ch.internal" || cfg.ClickHousePort != 19000 {
		t.Errorf("expected env overrides, got %s:%d", cfg.ClickHouseHost, cfg.ClickHousePort)
	}
	if len(cfg.LogDirs) != 2 || cfg.LogDirs[0] != "/var/log/speed" || cfg.LogDirs[1] != "/mnt/archive" {
		t.Errorf("unexpected LogDirs %v", cfg.LogDirs)
	}
	if cfg.PollInterval != 2*time.Minute {
		t.Errorf("expected PollInterval=2m, got %v", cfg.PollInterval)
	}
	if cfg.CSVPath != "NetworkSpeed.csv" {
		t.Errorf("unexpected CSVPath %q", cfg.CSVPath)
	}
}

func TestLoadFrom_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speedlog.yaml")
	data := []byte("clickhouse_enabled: false\ncsv_path: /data/speeds.csv\nredis_addr: localhost:6379\nredis_keep: 10\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.ClickHouseEnabled {
		t.Errorf("expected ClickHouse disabled from file")
	}
	if cfg.CSVPath != "/data/speeds.csv" || cfg.RedisAddr != "localhost:6379" || cfg.RedisKeep != 10 {
		t.Errorf("unexpected file values: %+v", cfg)
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ClickHouseEnabled: true,
			ClickHouseHost:    "localhost",
			ClickHousePort:    9000,
			ClickHouseDB:      "speedtest",
			BatchSize:         100,
			PollInterval:      time.Minute,
			LedgerPath:        "ledger.db",
			LogFormat:         "json",
			OTLPProtocol:      "grpc",
			RetryMaxAttempts:  3,
			RetryMultiplier:   2,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "no sinks", mutate: func(c *Config) { c.ClickHouseEnabled = false }, wantErr: true},
		{name: "csv only", mutate: func(c *Config) { c.ClickHouseEnabled = false; c.CSVPath = "out.csv" }},
		{name: "bad port", mutate: func(c *Config) { c.ClickHousePort = 70000 }, wantErr: true},
		{name: "empty db", mutate: func(c *Config) { c.ClickHouseDB = "" }, wantErr: true},
		{name: "zero batch", mutate: func(c *Config) { c.BatchSize = 0 }, wantErr: true},
		{name: "redis without keep", mutate: func(c *Config) { c.RedisAddr = "r:6379"; c.RedisKeep = 0 }, wantErr: true},
		{name: "short poll", mutate: func(c *Config) { c.PollInterval = time.Millisecond }, wantErr: true},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: true},
		{name: "bad protocol", mutate: func(c *Config) { c.OTLPProtocol = "udp" }, wantErr: true},
		{name: "zero attempts", mutate: func(c *Config) { c.RetryMaxAttempts = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetry(t *testing.T) {
	cfg := &Config{RetryMaxAttempts: 5, RetryInitialDelayMs: 50, RetryMaxDelayMs: 1000, RetryMultiplier: 1.5}
	r := cfg.Retry()
	if r.MaxAttempts != 5 || r.InitialDelay != 50*time.Millisecond || r.MaxDelay != time.Second || r.Multiplier != 1.5 {
		t.Errorf("unexpected retry config %+v", r)
	}
	if len(r.RetryableErrors) == 0 {
		t.Errorf("expected default retryable errors to be kept")
	}
}
