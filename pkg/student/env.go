package student

import (
	"fmt"

	"github.com/Ratio1/firefly_student_go/internal/config"
	"github.com/Ratio1/firefly_student_go/internal/devseed"
	"github.com/Ratio1/firefly_student_go/pkg/student/mock"
)

// NewFromEnv initialises a Client from FIREFLY_* environment variables (and
// a .env file in the working directory, when present) and returns the
// resolved mode ("http" or "mock").
func NewFromEnv(opts ...Option) (client *Client, mode string, err error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", &ConfigurationError{Err: err}
	}
	return NewFromConfig(cfg, opts...)
}

// NewFromConfig initialises a Client from an already loaded configuration.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, string, error) {
	if cfg == nil {
		return nil, "", &ConfigurationError{Err: fmt.Errorf("configuration is nil")}
	}
	mode, err := cfg.ResolveMode()
	if err != nil {
		return nil, "", &ConfigurationError{Setting: config.EnvNodeURL, Err: err}
	}

	opts = append([]Option{WithTimeout(cfg.Timeout)}, opts...)
	switch mode {
	case config.ModeHTTP:
		client, err := New(cfg.NodeURL, opts...)
		if err != nil {
			return nil, "", err
		}
		return client, mode, nil
	default:
		client, err := newMockClient(cfg.MockSeed, opts...)
		if err != nil {
			return nil, "", err
		}
		return client, mode, nil
	}
}

func newMockClient(seedPath string, opts ...Option) (*Client, error) {
	ledger := mock.New()
	if seedPath != "" {
		entries, err := devseed.LoadStudentSeed(seedPath)
		if err != nil {
			return nil, &ConfigurationError{Setting: config.EnvMockSeed, Err: err}
		}
		if err := ledger.Seed(entries); err != nil {
			return nil, &ConfigurationError{Setting: config.EnvMockSeed, Err: err}
		}
	}
	return NewWithBackend(NewMockBackend(ledger), opts...), nil
}
