package ingest

import (
	"context"
	"time"
)

// Store persists articles keyed by content-hash ID.
type Store interface {
	// Upsert merge-writes an article. On an existing ID every field except
	// PublishedAt is overwritten; PublishedAt keeps its first recorded value.
	Upsert(ctx context.Context, article Article) error
	// GetByID returns the stored article, reporting presence via the bool.
	GetByID(ctx context.Context, id string) (Article, bool, error)
	// ListIDsBeyond returns the IDs of all articles ranked past the first
	// keep entries when ordered by PublishedAt descending.
	ListIDsBeyond(ctx context.Context, keep int) ([]string, error)
	// DeleteBatch removes the given IDs in one operation.
	DeleteBatch(ctx context.Context, ids []string) error
}

// FeedParser fetches and parses one feed URL into items. A total fetch or
// parse failure surfaces as a single error, never partial results.
type FeedParser interface {
	ParseFeed(ctx context.Context, url string) ([]Item, error)
}

// PageFetcher retrieves a single web page for enrichment.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (PageResult, error)
}

// Hasher computes digests for identity derivation.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Publisher pushes run summaries to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}
