// Package config loads the server's optional JSON configuration file.
// Every key is optional; a missing or absent file yields all defaults.
// The TCP listen address is a fixed constant everywhere in this codebase
// and is never read from configuration, even if present in the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Fixed TCP constants. Never configurable, even if present in the file.
const (
	TCPHost = "0.0.0.0"
	TCPPort = 8088
)

// TelemetryConfig configures the optional Redis/Valkey registry mirror.
// Absent RedisAddr disables the sink entirely.
type TelemetryConfig struct {
	RedisAddr string `json:"redis_addr,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// AuditConfig configures the optional Kafka event log. An empty
// KafkaBrokers list disables the sink entirely.
type AuditConfig struct {
	KafkaBrokers []string `json:"kafka_brokers,omitempty"`
	Topic        string   `json:"topic,omitempty"`
}

// Config is the full set of recognized configuration keys, decoded
// directly from the JSON file. Read once at startup, never hot-reloaded.
type Config struct {
	HTTPPort        int             `json:"http_port"`
	MaxConnections  int             `json:"max_connections"`
	SocketTimeout   float64         `json:"socket_timeout"`
	BufferSize      int             `json:"buffer_size"`
	MaxPacketSize   int             `json:"max_packet_size"`
	LogLevel        string          `json:"log_level"`
	LogToFile       bool            `json:"log_to_file"`
	LogFilePath     string          `json:"log_file_path"`
	LogMaxSize      int             `json:"log_max_size"`
	LogBackupCount  int             `json:"log_backup_count"`
	ThreadPoolSize  int             `json:"thread_pool_size"`
	PacketQueueSize int             `json:"packet_queue_size"`
	Telemetry       TelemetryConfig `json:"telemetry,omitempty"`
	Audit           AuditConfig     `json:"audit,omitempty"`
}

// Defaults returns a Config with every field set to its documented
// default.
func Defaults() *Config {
	return &Config{
		HTTPPort:        8080,
		MaxConnections:  100,
		SocketTimeout:   30.0,
		BufferSize:      4096,
		MaxPacketSize:   1 << 20,
		LogLevel:        "INFO",
		ThreadPoolSize:  1,
		PacketQueueSize: 1,
	}
}

// Load reads and merges path over the defaults. A missing file is not an
// error — it simply yields the defaults, matching "all keys optional".
// A present-but-malformed file is an error; the caller (cmd/registryd)
// treats that as a startup failure and exits 1.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate clamps values up to their documented minimums rather than
// failing; only a value that can't be made sensible (a negative duration
// or an unrecognized log_level) is a hard error.
func (c *Config) Validate(debugFlag bool) error {
	if c.MaxConnections < 1 {
		c.MaxConnections = 1
	}
	if c.BufferSize < 512 {
		c.BufferSize = 512
	}
	if c.MaxPacketSize < 1024 {
		c.MaxPacketSize = 1024
	}
	if c.SocketTimeout < 0 {
		return fmt.Errorf("config: socket_timeout must be >= 0, got %v", c.SocketTimeout)
	}
	if c.ThreadPoolSize < 1 {
		c.ThreadPoolSize = 1
	}
	if c.PacketQueueSize < 1 {
		c.PacketQueueSize = 1
	}

	switch c.LogLevel {
	case "DEBUG", "INFO", "WARNING", "ERROR":
	case "":
		c.LogLevel = "INFO"
	default:
		return fmt.Errorf("config: unrecognized log_level %q", c.LogLevel)
	}
	if c.LogLevel == "DEBUG" && !debugFlag {
		// DEBUG requires -d/--debug on the command line; fall back to INFO
		// rather than aborting startup over a config/flag mismatch.
		c.LogLevel = "INFO"
	}
	return nil
}
