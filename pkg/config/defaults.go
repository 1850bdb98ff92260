package config

import "time"

// DefaultConfig returns a Config with every field set to its documented
// default, used when no config file is found and as the base Load
// unmarshals a found file on top of.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		TCP: TCPConfig{
			Enabled:     true,
			Addr:        ":7000",
			IdleTimeout: 5 * time.Minute,
		},
		UDP: UDPConfig{
			Enabled:          true,
			Addr:             ":7000",
			HandshakeTimeout: 2000 * time.Millisecond,
			PacketTimeout:    1000 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Shutdown: ShutdownConfig{
			Timeout: 10 * time.Second,
		},
	}
}
