package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// OTELConfig selects where conversion spans are exported. Resource
// attributes are left to the SDK, which reads OTEL_RESOURCE_ATTRIBUTES itself.
type OTELConfig struct {
	ServiceName      string `env:"OTEL_SERVICE_NAME" envDefault:"etw-gecko"`
	ExporterEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TracesEndpoint   string `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
}

// ParseOTELConfig reads the OTLP settings from the environment.
func ParseOTELConfig() (*OTELConfig, error) {
	var cfg OTELConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing OTLP environment: %w", err)
	}
	return &cfg, nil
}

// Endpoint is the trace-specific endpoint if set, else the generic one.
// An empty result disables tracing; etw-gecko never guesses a collector.
func (c *OTELConfig) Endpoint() string {
	if c.TracesEndpoint != "" {
		return c.TracesEndpoint
	}
	return c.ExporterEndpoint
}

// Enabled reports whether conversions are traced.
func (c *OTELConfig) Enabled() bool {
	return c.Endpoint() != ""
}
