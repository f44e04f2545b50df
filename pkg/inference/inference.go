package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"

	"taleweaver/pkg/config"
)

// ErrEmptyCompletion is returned when the provider answered without content.
var ErrEmptyCompletion = errors.New("empty completion content")

// Inferencer defines an interface for running model inference and verification.
type Inferencer interface {
	// Infer sends one system/user exchange. An empty system prompt sends only the user message.
	Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error)
	Verify(ctx context.Context, result string) (bool, error)
}

// FromConfig builds the inferencer selected by cfg.Provider.
func FromConfig(ctx context.Context, cfg config.InferenceConfig) (Inferencer, error) {
	switch cfg.Provider {
	case "", "openai":
		inf := NewOpenAIInferencer(cfg.APIKey, cfg.Model)
		if cfg.BaseURL != "" {
			inf.ChangeBaseURL(cfg.BaseURL)
		}
		return inf, nil
	case "gemini":
		return NewGeminiInferencer(ctx, cfg.APIKey, cfg.Model)
	case "grok", "moonshot", "kimi":
		inf := NewCompatibleInferencer(cfg.Provider, cfg.APIKey, cfg.Model)
		if cfg.BaseURL != "" {
			inf.ChangeBaseURL(cfg.BaseURL)
		}
		return inf, nil
	default:
		return nil, fmt.Errorf("unsupported inference provider: %s", cfg.Provider)
	}
}

func verify(result string) (bool, error) {
	if result == "" {
		return false, errors.New("empty result")
	}
	return true, nil
}
