// Package config loads wirerpcd's runtime configuration from built-in
// defaults, a YAML file, and environment variables, in that ascending order
// of precedence, following the same viper/mapstructure/validator stack the
// rest of the family uses.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is wirerpcd's complete runtime configuration.
//
// Precedence (highest to lowest): CLI flags > environment (WIRERPC_*) >
// config file > defaults.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	TCP      TCPConfig      `mapstructure:"tcp" yaml:"tcp"`
	UDP      UDPConfig      `mapstructure:"udp" yaml:"udp"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Shutdown ShutdownConfig `mapstructure:"shutdown" yaml:"shutdown"`
}

// LoggingConfig controls the internal/logger façade.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TCPConfig controls the TCP listener and its per-connection behavior.
type TCPConfig struct {
	// Enabled controls whether the TCP listener starts at all.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Addr is the listen address, e.g. ":7000" or "127.0.0.1:7000".
	Addr string `mapstructure:"addr" validate:"required_if=Enabled true" yaml:"addr"`

	// IdleTimeout bounds how long an open connection may sit without
	// traffic before the server tears it down. Zero disables the bound.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// UDPConfig controls the UDP listener and the reliable-message protocol's
// two timeouts.
type UDPConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true" yaml:"addr"`

	// HandshakeTimeout bounds the initial wait for a handshake packet.
	// Default: 2000ms, per spec.md §4.3.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" validate:"omitempty,gt=0" yaml:"handshake_timeout"`

	// PacketTimeout bounds the wait for the handshake ack and each data
	// packet. Default: 1000ms, configurable per spec.md §4.3.
	PacketTimeout time.Duration `mapstructure:"packet_timeout" validate:"omitempty,gt=0" yaml:"packet_timeout"`
}

// MetricsConfig configures the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true" yaml:"addr"`
}

// ShutdownConfig bounds how long graceful shutdown waits for in-flight
// connections to drain before returning anyway.
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"required,gt=0" yaml:"timeout"`
}

// Load reads configPath (if non-empty) or the default search locations,
// layers environment variables and defaults on top, validates the result,
// and returns it.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if found {
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshal: %w", err)
		}
	} else {
		bindEnvOverrides(v, cfg)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("WIRERPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(defaultConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read file: %w", err)
	}
	return true, nil
}

// bindEnvOverrides applies WIRERPC_* environment overrides directly onto
// the default config when no file was found, since viper.Unmarshal alone
// only pulls from registered keys once a file sets them.
func bindEnvOverrides(v *viper.Viper, cfg *Config) {
	if lvl := os.Getenv("WIRERPC_LOGGING_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if addr := os.Getenv("WIRERPC_TCP_ADDR"); addr != "" {
		cfg.TCP.Addr = addr
	}
	if addr := os.Getenv("WIRERPC_UDP_ADDR"); addr != "" {
		cfg.UDP.Addr = addr
	}
}

func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wirerpc")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "wirerpc")
}

// DefaultConfigPath is where Load looks when configPath is empty and no
// XDG override is set.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}
