package embedding

import (
	"context"
	"errors"
	"fmt"

	"taleweaver/pkg/config"
	"taleweaver/pkg/flight"
)

// Client is the interface for embedding API clients.
type Client interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Service batches embedding requests and remembers vectors for texts it has
// already embedded.
type Service struct {
	client    Client
	batchSize int
	cache     *flight.Cache[string, []float32]
}

// NewService wraps client. batchSize <= 0 selects 10.
func NewService(client Client, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = 10
	}
	s := &Service{client: client, batchSize: batchSize}
	s.cache = flight.NewCache(func(ctx context.Context, text string) ([]float32, error) {
		vecs, err := s.client.EmbedBatch(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) != 1 {
			return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
		}
		return vecs[0], nil
	})
	return s
}

// FromConfig builds the client selected by cfg.Provider and wraps it in a Service.
func FromConfig(ctx context.Context, cfg config.EmbeddingConfig) (*Service, error) {
	var client Client
	var err error

	switch cfg.Provider {
	case "", "openai":
		client = NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case "gemini":
		client, err = NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	svc := NewService(client, cfg.BatchSize)
	svc.cache.Expiry(cfg.CacheTTL)
	return svc, nil
}

// Embed generates an embedding for a single text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("cannot embed empty text")
	}
	return s.cache.Get(ctx, text)
}

// EmbedBatch returns one vector per input text, in input order. Repeated and
// previously seen texts are embedded once, and texts another caller is
// already embedding are awaited instead of requested again.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("cannot embed empty text at index %d", i)
		}
	}
	return s.cache.GetMany(ctx, texts, s.embedMissing)
}

// embedMissing sends texts to the client in batches of batchSize.
func (s *Service) embedMissing(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += s.batchSize {
		end := min(i+s.batchSize, len(texts))
		batch := texts[i:end]

		vecs, err := s.client.EmbedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d-%d: %w", i, end, err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}
