package inference

import (
	"cmp"
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIInferencer implements Inferencer using OpenAI's official Go SDK.
type OpenAIInferencer struct {
	client *openai.Client
	apiKey string
	model  string
	name   string
}

// NewOpenAIInferencer creates a new inferencer instance using OpenAI client.
func NewOpenAIInferencer(apiKey string, model string) *OpenAIInferencer {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIInferencer{
		client: &client,
		apiKey: apiKey,
		model:  model,
		name:   "openai",
	}
}

func (o *OpenAIInferencer) ChangeBaseURL(baseURL string) {
	client := openai.NewClient(
		option.WithAPIKey(o.apiKey),
		option.WithBaseURL(baseURL),
	)
	o.client = &client
}

// Infer sends text to the chat completion endpoint and returns the output.
func (o *OpenAIInferencer) Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	var p openai.ChatCompletionNewParams
	if params != nil {
		p = *params
	}
	p.Model = cmp.Or(p.Model, o.model)
	p.Messages = nil
	if system != "" {
		p.Messages = append(p.Messages, openai.SystemMessage(system))
	}
	p.Messages = append(p.Messages, openai.UserMessage(user))

	p.MaxCompletionTokens = openai.Int(cmp.Or(p.MaxCompletionTokens.Value, 4096))
	p.Temperature = openai.Float(cmp.Or(p.Temperature.Value, 0.3))
	p.TopP = openai.Float(cmp.Or(p.TopP.Value, 1.0))

	resp, err := o.client.Chat.Completions.New(ctx, p)
	if err != nil {
		return "", fmt.Errorf("%s inference error: %w", o.name, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

// Verify checks that the result is non-empty.
func (o *OpenAIInferencer) Verify(ctx context.Context, result string) (bool, error) {
	return verify(result)
}
