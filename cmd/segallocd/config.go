package main

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"
)

const envVarPrefix = "SEGALLOC"

// Config holds the daemon's tunables, loaded from the environment and
// overridable by cobra flags the way weberc2-mono/cmd/auth's Config is
// processed after flag defaults are already set.
type Config struct {
	Addr            string `envconfig:"ADDR" default:"127.0.0.1:9090"`
	DefaultCapacity uint32 `envconfig:"DEFAULT_CAPACITY" default:"4194680"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig reads SEGALLOC_-prefixed environment variables into a Config
// seeded with its struct-tag defaults.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return &c, nil
}

// Validate checks that Config's fields are usable.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("missing required configuration: addr / %s_ADDR", envVarPrefix)
	}
	if c.DefaultCapacity == 0 {
		return fmt.Errorf(
			"missing required configuration: defaultCapacity / %s_DEFAULT_CAPACITY",
			envVarPrefix,
		)
	}
	return nil
}

// LogLevelValue parses LogLevel into a phuslu/log level, defaulting to info
// on an unrecognized value.
func (c *Config) LogLevelValue() log.Level {
	switch c.LogLevel {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}
