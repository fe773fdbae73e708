// Package llm builds model clients for the configured provider and defines
// the tools offered to the model.
package llm

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/llm/anthropic"
	"github.com/jingkaihe/skillforge/pkg/llm/google"
	"github.com/jingkaihe/skillforge/pkg/llm/openai"
	"github.com/jingkaihe/skillforge/pkg/logger"
	llmtypes "github.com/jingkaihe/skillforge/pkg/types/llm"
)

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider config.Provider) string {
	switch provider {
	case config.ProviderOpenAI:
		return openai.DefaultModel
	case config.ProviderGoogle:
		return google.DefaultModel
	default:
		return anthropic.DefaultModel
	}
}

// NewClient returns a client for the configured provider.
func NewClient(ctx context.Context, cfg config.LLMConfig) (llmtypes.Client, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Provider)
	}

	logger.G(ctx).WithField("provider", cfg.Provider).WithField("model", cfg.Model).Debug("creating model client")

	switch cfg.Provider {
	case config.ProviderAnthropic, "":
		return anthropic.New(cfg), nil
	case config.ProviderOpenAI:
		return openai.New(cfg), nil
	case config.ProviderGoogle:
		c, err := google.New(ctx, cfg, "")
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, errors.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}
