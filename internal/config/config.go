package config

import (
	"fmt"
	"os"
)

type Config struct {
	DatabaseURL       string
	TemporalAddress   string
	TemporalNamespace string
	HTTPListenAddr    string
	MetricsListenAddr string
	MigrationsDir     string
	LogLevel          string
	ServiceName       string

	// DefaultGroup is an optional remote group every provisioned account is
	// added to. Empty disables the step.
	DefaultGroup string

	// PortalBaseURL is the public base URL of the customer portal, used to
	// build SSO redirect links.
	PortalBaseURL string

	// APIToken authenticates callers of the management API. Empty disables
	// authentication; only acceptable behind a trusted proxy.
	APIToken string

	TemporalTLSCert       string
	TemporalTLSKey        string
	TemporalTLSCACert     string
	TemporalTLSServerName string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		TemporalAddress:   getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalNamespace: getEnv("TEMPORAL_NAMESPACE", "default"),
		HTTPListenAddr:    getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsListenAddr: getEnv("METRICS_LISTEN_ADDR", ":9090"),
		MigrationsDir:     getEnv("MIGRATIONS_DIR", "migrations"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		ServiceName:       getEnv("SERVICE_NAME", ""),
		DefaultGroup:      getEnv("DEFAULT_GROUP", ""),
		PortalBaseURL:     getEnv("PORTAL_BASE_URL", ""),
		APIToken:          getEnv("API_TOKEN", ""),

		TemporalTLSCert:       getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:        getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),
	}

	return cfg, nil
}

// Validate checks the fields a given component actually needs; components
// differ in which backends they talk to.
func (c *Config) Validate(component string) error {
	switch component {
	case "worker", "core-api":
		if c.DatabaseURL == "" {
			return fmt.Errorf("%s: DATABASE_URL is required", component)
		}
		if c.TemporalAddress == "" {
			return fmt.Errorf("%s: TEMPORAL_ADDRESS is required", component)
		}
	case "migrate":
		if c.DatabaseURL == "" {
			return fmt.Errorf("migrate: DATABASE_URL is required")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
