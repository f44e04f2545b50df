package index

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/segmentio/ksuid"

	"taleweaver/pkg/entities"
)

var ErrNotFound = errors.New("index not found")

// Store keeps one in-memory vector collection per built index.
type Store struct {
	db *chromem.DB

	mu  sync.RWMutex
	ids map[string][]string // index id -> node ids in document order
}

func NewStore() *Store {
	return &Store{
		db:  chromem.NewDB(),
		ids: make(map[string][]string),
	}
}

// Put stores nodes, which must all carry embeddings, under a new index id.
func (s *Store) Put(ctx context.Context, nodes []entities.Node) (string, error) {
	indexID := ksuid.New().String()
	collection, err := s.db.CreateCollection(indexID, map[string]string{"hnsw:space": "cosine"}, nil)
	if err != nil {
		return "", fmt.Errorf("create collection: %w", err)
	}

	docs := make([]chromem.Document, 0, len(nodes))
	ids := make([]string, 0, len(nodes))
	for i, n := range nodes {
		if len(n.Embedding) == 0 {
			_ = s.db.DeleteCollection(indexID)
			return "", fmt.Errorf("node %d has no embedding", i)
		}
		docs = append(docs, chromem.Document{
			ID:        n.ID,
			Content:   n.Text,
			Embedding: n.Embedding,
			Metadata:  map[string]string{"position": strconv.Itoa(i)},
		})
		ids = append(ids, n.ID)
	}

	if len(docs) > 0 {
		if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			_ = s.db.DeleteCollection(indexID)
			return "", fmt.Errorf("add documents: %w", err)
		}
	}

	s.mu.Lock()
	s.ids[indexID] = ids
	s.mu.Unlock()
	return indexID, nil
}

// Nodes returns the stored nodes of an index in document order.
func (s *Store) Nodes(ctx context.Context, indexID string) ([]entities.Node, error) {
	s.mu.RLock()
	ids, ok := s.ids[indexID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	collection := s.db.GetCollection(indexID, nil)
	if collection == nil {
		return nil, ErrNotFound
	}

	nodes := make([]entities.Node, 0, len(ids))
	for _, id := range ids {
		doc, err := collection.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get node %s: %w", id, err)
		}
		nodes = append(nodes, entities.Node{ID: doc.ID, Text: doc.Content, Embedding: doc.Embedding})
	}
	return nodes, nil
}

// Match is a stored node ranked against a query vector.
type Match struct {
	Node       entities.Node
	Similarity float32
}

// Query returns up to n nodes of an index most similar to embedding,
// best match first.
func (s *Store) Query(ctx context.Context, indexID string, embedding []float32, n int) ([]Match, error) {
	count, err := s.Count(indexID)
	if err != nil {
		return nil, err
	}
	n = min(n, count)
	if n <= 0 {
		return nil, nil
	}

	collection := s.db.GetCollection(indexID, nil)
	results, err := collection.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query index %s: %w", indexID, err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			Node:       entities.Node{ID: r.ID, Text: r.Content, Embedding: r.Embedding},
			Similarity: r.Similarity,
		}
	}
	return matches, nil
}

// Count reports how many nodes an index holds.
func (s *Store) Count(indexID string) (int, error) {
	collection := s.db.GetCollection(indexID, nil)
	if collection == nil {
		return 0, ErrNotFound
	}
	return collection.Count(), nil
}

func (s *Store) Delete(indexID string) error {
	s.mu.Lock()
	_, ok := s.ids[indexID]
	delete(s.ids, indexID)
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return s.db.DeleteCollection(indexID)
}
