package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds settings taken from the environment
type EnvConfig struct {
	LogLevel string `env:"ETW_GECKO_LOG_LEVEL" envDefault:"info"`
}

// ParseEnvConfig parses EnvConfig from the process environment
func ParseEnvConfig() (*EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}
