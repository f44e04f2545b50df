package inference

import (
	"cmp"
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

type GeminiInferencer struct {
	client *genai.Client
	apiKey string
	model  string
}

// NewGeminiInferencer creates a new inferencer instance using the Gemini API.
func NewGeminiInferencer(ctx context.Context, apiKey string, model string) (*GeminiInferencer, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiInferencer{
		client: client,
		apiKey: apiKey,
		model:  model,
	}, nil
}

// Infer maps the OpenAI-style params onto a Gemini GenerateContent call.
func (o *GeminiInferencer) Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	}
	config := generateConfig(params, system)

	result, err := o.client.Models.GenerateContent(
		ctx,
		cmp.Or(params.Model, o.model),
		genai.Text(user),
		config,
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	out := result.Text()
	if out == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}

// generateConfig translates params. Any JSON response format becomes an
// application/json MIME type; a JSON schema format also pins the schema.
func generateConfig(params *openai.ChatCompletionNewParams, system string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(cmp.Or(params.MaxCompletionTokens.Value, 4096)),
		Temperature:     genai.Ptr(float32(cmp.Or(params.Temperature.Value, 0.3))),
		TopP:            genai.Ptr(float32(cmp.Or(params.TopP.Value, 1.0))),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	switch rf := params.ResponseFormat; {
	case rf.OfJSONSchema != nil:
		config.ResponseMIMEType = "application/json"
		config.ResponseJsonSchema = rf.OfJSONSchema.JSONSchema.Schema
	case rf.OfJSONObject != nil:
		config.ResponseMIMEType = "application/json"
	}
	return config
}

// Verify checks that the result is non-empty.
func (o *GeminiInferencer) Verify(ctx context.Context, result string) (bool, error) {
	return verify(result)
}
