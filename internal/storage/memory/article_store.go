// Package memory provides an in-memory article store for development and
// testing.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/propertyhub/newsfeed/internal/ingest"
)

// ArticleStore implements ingest.Store with a map. It mirrors the Postgres
// store's merge semantics: on an existing ID every field except PublishedAt
// is overwritten.
type ArticleStore struct {
	mu       sync.RWMutex
	articles map[string]ingest.Article
}

// NewArticleStore constructs an ArticleStore.
func NewArticleStore() *ArticleStore {
	return &ArticleStore{articles: make(map[string]ingest.Article)}
}

// Upsert merge-writes an article, preserving the first recorded PublishedAt.
func (s *ArticleStore) Upsert(_ context.Context, article ingest.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.articles[article.ID]; ok {
		article.PublishedAt = existing.PublishedAt
	}
	s.articles[article.ID] = article
	return nil
}

// GetByID fetches an article, reporting presence via the bool.
func (s *ArticleStore) GetByID(_ context.Context, id string) (ingest.Article, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	article, ok := s.articles[id]
	return article, ok, nil
}

// ListIDsBeyond returns IDs ranked past the first keep articles when ordered
// by PublishedAt descending.
func (s *ArticleStore) ListIDsBeyond(_ context.Context, keep int) ([]string, error) {
	if keep < 0 {
		keep = 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]ingest.Article, 0, len(s.articles))
	for _, article := range s.articles {
		all = append(all, article)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].PublishedAt.After(all[j].PublishedAt)
	})
	if len(all) <= keep {
		return nil, nil
	}
	ids := make([]string, 0, len(all)-keep)
	for _, article := range all[keep:] {
		ids = append(ids, article.ID)
	}
	return ids, nil
}

// DeleteBatch removes the given IDs.
func (s *ArticleStore) DeleteBatch(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.articles, id)
	}
	return nil
}

// Len reports the number of stored articles (test helper).
func (s *ArticleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}
