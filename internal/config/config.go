// Package config loads runtime settings from the process environment and an
// optional .env file. Values already present in the environment take
// precedence over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Runtime modes. The in-memory ledger is only used when mock is requested
// explicitly; the default talks to the node and requires FIREFLY_NODE_URL.
const (
	ModeHTTP = "http"
	ModeMock = "mock"
)

// Environment variable names.
const (
	EnvNodeURL     = "FIREFLY_NODE_URL"
	EnvRuntimeMode = "FIREFLY_RUNTIME_MODE"
	EnvTimeout     = "FIREFLY_TIMEOUT"
	EnvMockSeed    = "FIREFLY_MOCK_SEED"
)

type Config struct {
	Environment string        `env:"ENVIRONMENT,default=dev"`
	LogLevel    string        `env:"LOG_LEVEL,default=info"`
	NodeURL     string        `env:"FIREFLY_NODE_URL"`
	RuntimeMode string        `env:"FIREFLY_RUNTIME_MODE,default=http"`
	Timeout     time.Duration `env:"FIREFLY_TIMEOUT,default=10s"`
	MockSeed    string        `env:"FIREFLY_MOCK_SEED"`
	ConsoleAddr string        `env:"CONSOLE_ADDR,default=:7860"`
}

var validEnvs = map[string]bool{
	"dev":     true,
	"test":    true,
	"staging": true,
	"prod":    true,
}

// Load reads the given dotenv files (".env" when none are given; missing
// files are skipped), then unmarshals and validates the environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal environment variables: %w", err)
	}
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	if cfg.Environment == "" {
		cfg.Environment = "dev"
	}
	cfg.NodeURL = strings.TrimSpace(cfg.NodeURL)
	cfg.RuntimeMode = strings.ToLower(strings.TrimSpace(cfg.RuntimeMode))
	cfg.MockSeed = strings.TrimSpace(cfg.MockSeed)
	if cfg.RuntimeMode == "" {
		cfg.RuntimeMode = ModeHTTP
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that do not depend on the runtime mode.
func (c *Config) Validate() error {
	if !validEnvs[c.Environment] {
		return fmt.Errorf("config: invalid environment %q. Valid environments: dev, test, staging, prod", c.Environment)
	}
	switch c.RuntimeMode {
	case ModeHTTP, ModeMock:
	default:
		return fmt.Errorf("config: unsupported %s value %q", EnvRuntimeMode, c.RuntimeMode)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: %s must be positive, got %v", EnvTimeout, c.Timeout)
	}
	return nil
}

// ResolveMode maps the configured runtime mode onto "http" or "mock".
func (c *Config) ResolveMode() (string, error) {
	switch c.RuntimeMode {
	case ModeHTTP, "":
		if c.NodeURL == "" {
			return "", fmt.Errorf("config: HTTP mode requires %s", EnvNodeURL)
		}
		return ModeHTTP, nil
	case ModeMock:
		return ModeMock, nil
	default:
		return "", fmt.Errorf("config: unsupported %s value %q", EnvRuntimeMode, c.RuntimeMode)
	}
}
