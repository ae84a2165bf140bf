// Package config loads the repro settings from the environment.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix, e.g. REPRO_DIALECT.
const Prefix = "REPRO"

// Config holds the database target and logging switches.
type Config struct {
	// Dialect is one of sqlite, mysql, postgres.
	Dialect string `envconfig:"DIALECT" default:"sqlite"`
	// DSN defaults to a private in-memory SQLite database.
	DSN string `envconfig:"DSN" default:":memory:"`
	// Debug logs every statement together with its parameters.
	Debug    bool   `envconfig:"DEBUG" default:"false"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads an optional .env file and then the REPRO_* variables.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &c, nil
}

// Default returns the configuration used by tests: in-memory SQLite, no debug output.
func Default() *Config {
	return &Config{Dialect: "sqlite", DSN: ":memory:", LogLevel: "info"}
}
