// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/logship/lib/identity"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "LOGSHIP_CONFIG"

// Transport modes accepted in transport.mode.
const (
	ModeStream = "stream"
	ModeRelay  = "relay"
	ModeHTTP   = "http"
)

// Config is the complete logship configuration.
type Config struct {
	// Transport selects and addresses the collector.
	Transport TransportConfig `yaml:"transport" json:"transport"`

	// Spill configures the durable spill store.
	Spill SpillConfig `yaml:"spill" json:"spill"`

	// Format selects the metadata attached to each line.
	Format FormatConfig `yaml:"format" json:"format"`

	// Identity configures where the device id is persisted.
	Identity IdentityConfig `yaml:"identity" json:"identity"`

	// Queue configures the ingestion queue.
	Queue QueueConfig `yaml:"queue" json:"queue"`

	// Delivery configures shutdown behavior.
	Delivery DeliveryConfig `yaml:"delivery" json:"delivery"`

	// Metrics configures Prometheus exposition.
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// TransportConfig selects and addresses the collector.
type TransportConfig struct {
	// Mode is stream, relay or http.
	// Default: stream
	Mode string `yaml:"mode" json:"mode"`

	// Address is host:port of the collector (stream) or relay (relay).
	Address string `yaml:"address" json:"address"`

	// TLS wraps stream and relay connections in TLS.
	TLS bool `yaml:"tls" json:"tls"`

	// Token routes records at the relay or the HTTP endpoint. Must be
	// a UUID when set.
	Token string `yaml:"token" json:"token"`

	// Endpoint is the base URL for http mode.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Compress gzips HTTP request bodies.
	Compress bool `yaml:"compress" json:"compress"`

	// DialTimeout bounds connection establishment.
	// Default: 10s
	DialTimeout string `yaml:"dial_timeout" json:"dial_timeout"`

	// WriteTimeout bounds each write.
	// Default: 30s
	WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
}

// SpillConfig configures the durable spill store.
type SpillConfig struct {
	// Path is the spill file.
	// Default: ${HOME}/.cache/logship/spill.log
	Path string `yaml:"path" json:"path"`

	// MaxBytes caps the file; exceeding it truncates the whole file.
	// Default: 10 MiB
	MaxBytes int64 `yaml:"max_bytes" json:"max_bytes"`
}

// FormatConfig selects the metadata attached to each line.
type FormatConfig struct {
	JSON     bool `yaml:"json" json:"json"`
	Raw      bool `yaml:"raw" json:"raw"`
	HostName bool `yaml:"host_name" json:"host_name"`
	TraceID  bool `yaml:"trace_id" json:"trace_id"`
	DeviceID bool `yaml:"device_id" json:"device_id"`
	Severity bool `yaml:"severity" json:"severity"`
}

// IdentityConfig configures where the device id is persisted.
type IdentityConfig struct {
	// DeviceIDPath is the CBOR state file holding the device id.
	// Default: ${HOME}/.cache/logship/device-id
	DeviceIDPath string `yaml:"device_id_path" json:"device_id_path"`
}

// QueueConfig configures the ingestion queue.
type QueueConfig struct {
	// Capacity is the number of records held in memory.
	// Default: 32768
	Capacity int `yaml:"capacity" json:"capacity"`
}

// DeliveryConfig configures shutdown behavior.
type DeliveryConfig struct {
	// FlushTimeout bounds how long Close waits for the queue to empty.
	// "0s" waits indefinitely.
	// Default: 5s
	FlushTimeout string `yaml:"flush_timeout" json:"flush_timeout"`
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	// Address is the listen address for /metrics. Empty disables the
	// listener; metrics are still collected.
	Address string `yaml:"address" json:"address"`

	// Namespace prefixes metric names.
	// Default: logship
	Namespace string `yaml:"namespace" json:"namespace"`
}

// Default returns the default configuration. A loaded file is merged
// over it.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{
			Mode:         ModeStream,
			DialTimeout:  "10s",
			WriteTimeout: "30s",
		},
		Spill: SpillConfig{
			Path:     "${HOME}/.cache/logship/spill.log",
			MaxBytes: 10 * 1024 * 1024,
		},
		Format: FormatConfig{
			HostName: true,
		},
		Identity: IdentityConfig{
			DeviceIDPath: "${HOME}/.cache/logship/device-id",
		},
		Queue: QueueConfig{
			Capacity: 32768,
		},
		Delivery: DeliveryConfig{
			FlushTimeout: "5s",
		},
		Metrics: MetricsConfig{
			Namespace: "logship",
		},
	}
}

// Load loads configuration from the file named by LOGSHIP_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your logship config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, merged over Default, with
// path variables expanded. The result is not validated.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.ExpandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return nil
}

// ExpandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields. LoadFile calls it; callers building a Config by hand (or
// overriding paths from flags) call it themselves.
func (c *Config) ExpandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Spill.Path = expandVars(c.Spill.Path, vars)
	c.Identity.DeviceIDPath = expandVars(c.Identity.DeviceIDPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. Every problem found is
// reported, joined.
func (c *Config) Validate() error {
	var errs []error

	switch c.Transport.Mode {
	case ModeStream, ModeRelay:
		if c.Transport.Address == "" {
			errs = append(errs, fmt.Errorf("transport.address is required in %s mode", c.Transport.Mode))
		}
	case ModeHTTP:
		if c.Transport.Endpoint == "" {
			errs = append(errs, errors.New("transport.endpoint is required in http mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("transport.mode must be one of stream, relay, http; got %q", c.Transport.Mode))
	}

	tokenRequired := c.Transport.Mode == ModeRelay || c.Transport.Mode == ModeHTTP
	if tokenRequired || c.Transport.Token != "" {
		if err := identity.ValidateToken(c.Transport.Token); err != nil {
			errs = append(errs, fmt.Errorf("transport.token: %w", err))
		}
	}

	if _, _, err := c.Transport.Durations(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Delivery.FlushTimeoutDuration(); err != nil {
		errs = append(errs, err)
	}

	if c.Spill.Path == "" {
		errs = append(errs, errors.New("spill.path is required"))
	}
	if c.Spill.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("spill.max_bytes must be positive, got %d", c.Spill.MaxBytes))
	}
	if c.Queue.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("queue.capacity must be positive, got %d", c.Queue.Capacity))
	}
	if c.Format.JSON && c.Format.Raw {
		errs = append(errs, errors.New("format.json and format.raw are mutually exclusive"))
	}
	if c.Format.DeviceID && c.Identity.DeviceIDPath == "" {
		errs = append(errs, errors.New("identity.device_id_path is required when format.device_id is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Durations parses the dial and write timeouts.
func (t TransportConfig) Durations() (dial, write time.Duration, err error) {
	dial, err = parseDuration("transport.dial_timeout", t.DialTimeout)
	if err != nil {
		return 0, 0, err
	}
	write, err = parseDuration("transport.write_timeout", t.WriteTimeout)
	if err != nil {
		return 0, 0, err
	}
	return dial, write, nil
}

// FlushTimeoutDuration parses the flush timeout. Zero means wait
// indefinitely.
func (d DeliveryConfig) FlushTimeoutDuration() (time.Duration, error) {
	return parseDuration("delivery.flush_timeout", d.FlushTimeout)
}

// parseDuration accepts an empty string as zero.
func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", field, value)
	}
	return duration, nil
}

// EnsurePaths creates the directories holding the spill file and the
// device id file.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Spill.Path, c.Identity.DeviceIDPath} {
		if path == "" {
			continue
		}
		directory := filepath.Dir(path)
		if err := os.MkdirAll(directory, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", directory, err)
		}
	}
	return nil
}
