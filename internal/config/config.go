// Package config loads daemon settings from defaults, an optional YAML file,
// the environment and command-line flags, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/relay-controller/internal/gpio"
	"github.com/sweeney/relay-controller/internal/link"
	"github.com/sweeney/relay-controller/internal/relay"
	"github.com/sweeney/relay-controller/internal/report"
)

// Environment variables that override the file.
const (
	EnvBroker      = "RELAY_BROKER"
	EnvUsername    = "RELAY_USERNAME"
	EnvPassword    = "RELAY_PASSWORD"
	EnvTopicPrefix = "RELAY_TOPIC_PREFIX"
)

// Config is the complete daemon configuration.
type Config struct {
	Relays RelaysConfig `yaml:"relays"`
	Link   LinkConfig   `yaml:"link"`
	Status StatusConfig `yaml:"status"`
	Loop   LoopConfig   `yaml:"loop"`
	HTTP   HTTPConfig   `yaml:"http"`
	Log    LogConfig    `yaml:"log"`
}

// RelaysConfig describes the relay output lines.
type RelaysConfig struct {
	Chip      string `yaml:"chip"`
	Pins      []int  `yaml:"pins"`
	ActiveLow bool   `yaml:"active_low"`
}

// LinkConfig configures the MQTT-bridged transport.
type LinkConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	SendTimeout    time.Duration `yaml:"send_timeout"`
	EventBuffer    int           `yaml:"event_buffer"`
}

// StatusConfig controls the periodic status uplink.
type StatusConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Retry     time.Duration `yaml:"retry"`
	Port      uint8         `yaml:"port"`
	Confirmed bool          `yaml:"confirmed"`
}

// LoopConfig controls the control loop cadence.
type LoopConfig struct {
	Tick      time.Duration `yaml:"tick"`
	JoinRetry time.Duration `yaml:"join_retry"`
}

// HTTPConfig controls the status web server. An empty Addr disables it.
type HTTPConfig struct {
	Addr     string `yaml:"addr"`
	WSBroker string `yaml:"ws_broker"`
}

// LogConfig controls the optional rotating log file.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Relays: RelaysConfig{
			Chip: gpio.DefaultChip,
			Pins: append([]int(nil), gpio.DefaultPins...),
		},
		Link: LinkConfig{
			Broker:         "tcp://localhost:1883",
			ClientID:       link.DefaultClientID,
			TopicPrefix:    link.DefaultTopicPrefix,
			ConnectTimeout: link.DefaultConnectTimeout,
			SendTimeout:    link.DefaultSendTimeout,
			EventBuffer:    link.DefaultEventBuffer,
		},
		Status: StatusConfig{
			Interval: 5 * time.Minute,
			Retry:    30 * time.Second,
			Port:     report.Port,
		},
		Loop: LoopConfig{
			Tick:      10 * time.Millisecond,
			JoinRetry: 2 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr:     ":80",
			WSBroker: "=broker",
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load builds the configuration. path may be empty to skip the file, and fs
// may be nil to skip flags. Only flags that were set on the command line
// override earlier layers.
func Load(path string, getenv func(string) string, fs *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := parseYAML(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if getenv != nil {
		ApplyEnv(&cfg, getenv)
	}

	if fs != nil {
		if err := ApplyFlags(&cfg, fs); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// parseYAML overlays data onto cfg. Unknown keys are rejected.
func parseYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides link settings from the environment.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvBroker); v != "" {
		cfg.Link.Broker = v
	}
	if v := getenv(EnvUsername); v != "" {
		cfg.Link.Username = v
	}
	if v := getenv(EnvPassword); v != "" {
		cfg.Link.Password = v
	}
	if v := getenv(EnvTopicPrefix); v != "" {
		cfg.Link.TopicPrefix = v
	}
}

// Validate checks ranges and required values.
func (c *Config) Validate() error {
	if len(c.Relays.Pins) != relay.NumChannels {
		return fmt.Errorf("relays.pins: need %d pins, got %d", relay.NumChannels, len(c.Relays.Pins))
	}
	seen := make(map[int]bool, len(c.Relays.Pins))
	for _, p := range c.Relays.Pins {
		if p < 0 {
			return fmt.Errorf("relays.pins: negative pin %d", p)
		}
		if seen[p] {
			return fmt.Errorf("relays.pins: pin %d listed twice", p)
		}
		seen[p] = true
	}
	if c.Relays.Chip == "" {
		return fmt.Errorf("relays.chip: must not be empty")
	}

	if c.Link.Broker == "" {
		return fmt.Errorf("link.broker: must not be empty")
	}
	if c.Link.ConnectTimeout <= 0 || c.Link.SendTimeout <= 0 {
		return fmt.Errorf("link: timeouts must be positive")
	}
	if c.Link.EventBuffer < 1 {
		return fmt.Errorf("link.event_buffer: must be at least 1")
	}

	if c.Status.Interval <= 0 {
		return fmt.Errorf("status.interval: must be positive")
	}
	if c.Status.Retry <= 0 {
		return fmt.Errorf("status.retry: must be positive")
	}
	// LoRaWAN application ports are 1-223.
	if c.Status.Port < 1 || c.Status.Port > 223 {
		return fmt.Errorf("status.port: %d outside 1-223", c.Status.Port)
	}

	if c.Loop.Tick <= 0 {
		return fmt.Errorf("loop.tick: must be positive")
	}
	if c.Loop.JoinRetry <= 0 {
		return fmt.Errorf("loop.join_retry: must be positive")
	}

	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log: rotation limits must not be negative")
	}
	return nil
}
