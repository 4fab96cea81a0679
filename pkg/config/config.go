// Package config loads the relayd daemon configuration.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where relayd looks for its configuration unless told
// otherwise.
const DefaultPath = "/etc/relayd/relayd.yaml"

// Config is the top-level daemon configuration.
type Config struct {
	Console  Console  `yaml:"console"`
	API      API      `yaml:"api"`
	Audit    Audit    `yaml:"audit"`
	Executor Executor `yaml:"executor"`
}

// Console configures the interactive local console.
type Console struct {
	Disabled    bool   `yaml:"disabled"`
	HistoryFile string `yaml:"history_file"`
}

// API configures the HTTP management API.
type API struct {
	Addr string `yaml:"addr"`
	// TLS enables an HTTPS listener with a self-signed certificate
	// persisted under TLSDir.
	TLS       bool   `yaml:"tls"`
	HTTPSAddr string `yaml:"https_addr"`
	TLSDir    string `yaml:"tls_dir"`
	// Users maps usernames to passwords for HTTP basic auth.
	Users map[string]string `yaml:"users"`
	// APIKeys lists accepted bearer/X-API-Key tokens.
	APIKeys []string `yaml:"api_keys"`
}

// Audit configures the command audit trail.
type Audit struct {
	BufferSize int            `yaml:"buffer_size"`
	Syslog     []SyslogTarget `yaml:"syslog"`
}

// SyslogTarget is one remote syslog destination for audit records.
type SyslogTarget struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Severity filters what gets forwarded: "error", "warning", or
	// "info" (empty forwards everything).
	Severity string `yaml:"severity"`
}

// Executor configures the command worker pool.
type Executor struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Console: Console{
			HistoryFile: "~/.relayd_history",
		},
		API: API{
			Addr:      "127.0.0.1:8444",
			HTTPSAddr: "127.0.0.1:8445",
			TLSDir:    "/etc/relayd/tls",
		},
		Audit: Audit{
			BufferSize: 1024,
		},
		Executor: Executor{
			Workers:   8,
			QueueSize: 256,
		},
	}
}

// Load reads and validates a configuration file. Unset fields take
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints and fills defaults for
// out-of-range values.
func (c *Config) Validate() error {
	if c.API.Addr == "" {
		c.API.Addr = Default().API.Addr
	}
	if c.API.HTTPSAddr == "" {
		c.API.HTTPSAddr = Default().API.HTTPSAddr
	}
	if c.API.TLSDir == "" {
		c.API.TLSDir = Default().API.TLSDir
	}
	if c.Audit.BufferSize <= 0 {
		c.Audit.BufferSize = Default().Audit.BufferSize
	}
	if c.Executor.Workers <= 0 {
		c.Executor.Workers = Default().Executor.Workers
	}
	if c.Executor.QueueSize <= 0 {
		c.Executor.QueueSize = Default().Executor.QueueSize
	}
	for i := range c.Audit.Syslog {
		t := &c.Audit.Syslog[i]
		if t.Host == "" {
			return fmt.Errorf("audit.syslog[%d]: host is required", i)
		}
		if t.Port == 0 {
			t.Port = 514
		}
		if t.Port < 1 || t.Port > 65535 {
			return fmt.Errorf("audit.syslog[%d]: invalid port %d", i, t.Port)
		}
		switch t.Severity {
		case "", "error", "warning", "info":
		default:
			return fmt.Errorf("audit.syslog[%d]: unknown severity %q", i, t.Severity)
		}
	}
	for user, pass := range c.API.Users {
		if user == "" || pass == "" {
			return fmt.Errorf("api.users: empty username or password")
		}
	}
	return nil
}
