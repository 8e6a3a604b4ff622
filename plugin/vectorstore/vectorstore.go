// Package vectorstore keeps a semantic index of catalog items.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	chromem "github.com/philippgille/chromem-go"

	"github.com/procura/procura/store"
)

const collectionName = "catalog_items"

// SearchResult is a single semantic-search hit.
type SearchResult struct {
	ItemID string
	Score  float32
}

// Store wraps a chromem-go collection of catalog items.
type Store struct {
	mu  sync.RWMutex
	col *chromem.Collection
}

// New opens the persistent index at dataDir/vectorstore/.
func New(dataDir string, embedFunc chromem.EmbeddingFunc) (*Store, error) {
	dir := filepath.Join(dataDir, "vectorstore")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.Wrap(err, "failed to create vectorstore dir")
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open vectorstore")
	}
	return open(db, embedFunc)
}

// NewInMemory returns an index that is not persisted.
func NewInMemory(embedFunc chromem.EmbeddingFunc) (*Store, error) {
	return open(chromem.NewDB(), embedFunc)
}

// NewOpenAICompatEmbedding returns an embedding function for any
// OpenAI-compatible embeddings endpoint.
func NewOpenAICompatEmbedding(baseURL, apiKey, model string) chromem.EmbeddingFunc {
	return chromem.NewEmbeddingFuncOpenAICompat(baseURL, apiKey, model, nil)
}

func open(db *chromem.DB, embedFunc chromem.EmbeddingFunc) (*Store, error) {
	col, err := db.GetOrCreateCollection(collectionName, nil, embedFunc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open catalog collection")
	}
	return &Store{col: col}, nil
}

func document(item *store.Item) chromem.Document {
	return chromem.Document{
		ID:      item.ID,
		Content: fmt.Sprintf("%s\n%s\n%s", item.Name, item.Category, item.Description),
		Metadata: map[string]string{
			"category": item.Category,
			"status":   string(item.Status),
		},
	}
}

// UpsertItem indexes (or re-indexes) an item. Inactive items are removed.
func (s *Store) UpsertItem(ctx context.Context, item *store.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.col.Delete(ctx, nil, nil, item.ID); err != nil {
		slog.Debug("vectorstore delete before upsert failed", "item", item.ID, "err", err)
	}
	if item.Status == store.ItemInactive {
		return nil
	}
	return s.col.AddDocument(ctx, document(item))
}

// Count returns the number of indexed items.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.col.Count()
}

// SearchSimilar returns the top-k items most semantically similar to query.
func (s *Store) SearchSimilar(ctx context.Context, query string, k int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := s.col.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := s.col.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query catalog index")
	}
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{ItemID: r.ID, Score: r.Similarity})
	}
	return out, nil
}
