package inference

import (
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type compatiblePreset struct {
	baseURL string
	model   string
}

// Providers that speak the OpenAI chat completions protocol.
var compatiblePresets = map[string]compatiblePreset{
	"grok":     {baseURL: "https://api.x.ai/v1", model: "grok-4-fast-reasoning"},
	"moonshot": {baseURL: "https://api.moonshot.ai/v1", model: "kimi-k2-5"},
	"kimi":     {baseURL: "https://api.kimi.com/coding/v1", model: "kimi-for-coding"},
}

// NewCompatibleInferencer creates an inferencer for an OpenAI-compatible provider.
// Unknown providers fall back to the OpenAI endpoint.
func NewCompatibleInferencer(provider, apiKey, model string) *OpenAIInferencer {
	preset, ok := compatiblePresets[provider]
	if !ok {
		inf := NewOpenAIInferencer(apiKey, model)
		inf.name = provider
		return inf
	}
	if model == "" {
		model = preset.model
	}
	client := openai.NewClient(
		option.WithBaseURL(preset.baseURL),
		option.WithAPIKey(apiKey),
	)
	return &OpenAIInferencer{
		client: &client,
		apiKey: apiKey,
		model:  model,
		name:   provider,
	}
}
