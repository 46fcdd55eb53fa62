package sut

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Backend is the system under test: it receives a sample payload and
// produces the opaque response bytes the driver feeds back into the
// accuracy metric.
type Backend interface {
	Name() string
	Infer(ctx context.Context, input []byte) ([]byte, error)
}

// Config carries the credentials and model selection for a backend.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// New builds a backend by name: "echo", "openai", or "claude".
func New(name string, cfg Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "echo":
		return Echo{}, nil
	case "openai":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("sut: openai: missing api key")
		}
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "claude":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("sut: claude: missing api key")
		}
		return NewClaude(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("sut: unknown backend %q", name)
	}
}

// Echo returns its input unchanged. Useful for driver testing against
// datasets whose ground truth equals the input.
type Echo struct{}

func (Echo) Name() string { return "echo" }

func (Echo) Infer(ctx context.Context, input []byte) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("sut: echo: nil context")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]byte, len(input))
	copy(out, input)
	return out, nil
}
