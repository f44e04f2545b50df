package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/segmentio/ksuid"

	"taleweaver/pkg/entities"
	"taleweaver/pkg/utils"
)

const (
	DefaultChunkSize    = 1024
	DefaultChunkOverlap = 20
)

var (
	ErrEmptyDocument  = errors.New("document is empty")
	ErrInvalidOverlap = errors.New("chunk overlap must be smaller than chunk size")
)

// Embedder turns texts into vectors, one per text in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Builder splits a document into token windows, embeds them and stores the
// resulting nodes.
type Builder struct {
	Embedder Embedder
	Store    *Store
}

// Build returns the new index id and its nodes. Non-positive sizes select the defaults.
func (b *Builder) Build(ctx context.Context, document string, chunkSize, chunkOverlap int) (string, []entities.Node, error) {
	if document == "" {
		return "", nil, ErrEmptyDocument
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		return "", nil, ErrInvalidOverlap
	}

	texts := utils.SplitTokens(document, chunkSize, chunkOverlap)
	log.Debug("split document", "chars", len(document), "chunks", len(texts), "chunk_size", chunkSize, "overlap", chunkOverlap)

	vectors, err := b.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return "", nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return "", nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
	}

	nodes := make([]entities.Node, len(texts))
	for i, text := range texts {
		nodes[i] = entities.Node{
			ID:        ksuid.New().String(),
			Text:      text,
			Embedding: vectors[i],
		}
	}

	indexID, err := b.Store.Put(ctx, nodes)
	if err != nil {
		return "", nil, err
	}
	log.Info("index built", "index", indexID, "nodes", len(nodes))
	return indexID, nodes, nil
}
