// Package app wires the configured providers into the extraction pipeline.
package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"taleweaver/pkg/config"
	"taleweaver/pkg/embedding"
	"taleweaver/pkg/index"
	"taleweaver/pkg/inference"
	"taleweaver/pkg/pipeline"
)

type App struct {
	Config      *config.Config
	Embedder    *embedding.Service
	Store       *index.Store
	Builder     *index.Builder
	Analyzer    *pipeline.Analyzer
	Extractor   *pipeline.Extractor
	Storyteller *pipeline.StoryGenerator
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	inf, err := inference.FromConfig(ctx, cfg.Inference)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	emb, err := embedding.FromConfig(ctx, cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	log.Info("providers ready",
		"inference", cfg.Inference.Provider, "model", cfg.Inference.Model,
		"embedding", cfg.Embedding.Provider, "embedding_model", cfg.Embedding.Model)

	store := index.NewStore()
	analyzer := &pipeline.Analyzer{
		Inferencer:       inf,
		Model:            cfg.Inference.Model,
		Temperature:      cfg.Extraction.Temperature,
		TopP:             cfg.Extraction.TopP,
		MaxConcurrency:   cfg.Extraction.MaxConcurrency,
		PartialResults:   cfg.Extraction.PartialResults,
		StructuredOutput: cfg.Extraction.StructuredOutput,
	}

	return &App{
		Config:   cfg,
		Embedder: emb,
		Store:    store,
		Builder:  &index.Builder{Embedder: emb, Store: store},
		Analyzer: analyzer,
		Extractor: &pipeline.Extractor{
			Analyzer:            analyzer,
			MaxTokensPerRequest: cfg.Extraction.MaxTokensPerRequest,
		},
		Storyteller: &pipeline.StoryGenerator{
			Inferencer:  inf,
			Model:       cfg.Inference.Model,
			MaxTokens:   cfg.Story.MaxTokens,
			Temperature: cfg.Story.Temperature,
			TopP:        cfg.Story.TopP,
		},
	}, nil
}
