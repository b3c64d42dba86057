// Copyright 2025 Certen Protocol
//
// Environment-driven configuration for cmd/certserve, grounded on the
// teacher's pkg/config/config.go Load()/getEnv* idiom, trimmed to the
// fields a certification-serving demo binary actually needs.

package config

import (
	"fmt"
	"os"

	"github.com/certen/http-certification-core/internal/principal"
)

// Config holds cmd/certserve's runtime configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Certification
	DataDir    string // directory of assets to certify and serve
	BLSKeyPath string // path to the hex-encoded BLS12-381 private key
	CanisterID string

	LogLevel string
}

// Load reads configuration from environment variables, applying the same
// defaults-unless-set convention as the teacher's config package.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  getEnv("LISTEN_ADDR", "0.0.0.0:8080"),
		MetricsAddr: getEnv("METRICS_ADDR", "0.0.0.0:9090"),

		DataDir:    getEnv("DATA_DIR", "./data"),
		BLSKeyPath: getEnv("BLS_KEY_PATH", "./data/bls_key.hex"),
		CanisterID: getEnv("CANISTER_ID", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// Validate checks that the fields required to serve certified assets are
// present.
func (c *Config) Validate() error {
	if c.CanisterID == "" {
		return fmt.Errorf("configuration validation failed: CANISTER_ID is required but not set")
	}
	return nil
}

// CanisterIDBytes parses CanisterID, given in the environment as a
// principal's canonical text form (e.g. "aaaaa-aa"), into its raw bytes.
func (c *Config) CanisterIDBytes() ([]byte, error) {
	p, err := principal.FromText(c.CanisterID)
	if err != nil {
		return nil, fmt.Errorf("config: CANISTER_ID: %w", err)
	}
	return p.Bytes(), nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
