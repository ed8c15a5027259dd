// Package config defines service configuration and its layered loader.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of dispatch workers (and job partitions).
	WorkerCount int `koanf:"worker_count"`
	// QueueSize bounds each worker's job queue.
	QueueSize int `koanf:"queue_size"`

	// LedgerShards configures the number of shards in the emergency ledger.
	LedgerShards int `koanf:"ledger_shards"`
	// HistorySize caps how many resolved emergencies are retained.
	HistorySize int `koanf:"history_size"`
	// DedupeSize caps how many sensor reading ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	DatabaseDriver string `koanf:"database_driver"`
	DatabaseDSN    string `koanf:"database_dsn"`

	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`

	WSWriteTimeout time.Duration `koanf:"ws_write_timeout"`
	WSPongWait     time.Duration `koanf:"ws_pong_wait"`
	WSPingInterval time.Duration `koanf:"ws_ping_interval"`
	WSReadLimit    int64         `koanf:"ws_read_limit"`
	AllowedOrigins []string      `koanf:"allowed_origins"`

	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUsername string `koanf:"smtp_username"`
	SMTPPassword string `koanf:"smtp_password"`
	SMTPFrom     string `koanf:"smtp_from"`

	PushEndpoint  string `koanf:"push_endpoint"`
	PushServerKey string `koanf:"push_server_key"`

	// Anomaly detector thresholds.
	HeartRateMax   int `koanf:"heart_rate_max"`
	HeartRateMin   int `koanf:"heart_rate_min"`
	OxygenMin      int `koanf:"oxygen_min"`
	RespiratoryMax int `koanf:"respiratory_max"`
}

// DevJWTSecret is the signing key used when none is configured.
const DevJWTSecret = "stomp-development-secret-change-me-now"

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":8000",
		WorkerCount:    4,
		QueueSize:      1024,
		LedgerShards:   16,
		HistorySize:    1000,
		DedupeSize:     10_000,
		DatabaseDriver: "sqlite",
		DatabaseDSN:    "file:stomp.db?_pragma=busy_timeout(5000)",
		JWTSecret:      DevJWTSecret,
		TokenTTL:       30 * time.Minute,
		WSWriteTimeout: 5 * time.Second,
		WSPongWait:     60 * time.Second,
		WSPingInterval: 30 * time.Second,
		WSReadLimit:    64 << 10,
		AllowedOrigins: []string{"*"},
		SMTPPort:       587,
		HeartRateMax:   170,
		HeartRateMin:   40,
		OxygenMin:      90,
		RespiratoryMax: 25,
	}
}
