package llm

import (
	"fmt"
	"time"

	"github.com/aescanero/dagrun/internal/ports"
	"github.com/aescanero/dagrun/pkg/adapters/llm/anthropic"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// Config holds LLM client configuration
type Config struct {
	Provider string
	APIKey   string
	// Timeout bounds a single completion request; zero keeps the SDK default.
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a new LLM client based on provider. An empty provider
// returns a nil client, which leaves the llm node unregistered.
func NewClient(cfg *Config) (ports.LLMClient, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "anthropic":
		var opts []option.RequestOption
		if cfg.Timeout > 0 {
			opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
		}
		client, err := anthropic.NewClient(cfg.APIKey, cfg.Logger, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
