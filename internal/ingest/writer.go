package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/propertyhub/newsfeed/internal/metrics"
)

// Writer persists resolved articles. Records without an image are dropped
// before they reach the store: "skipped" is a normal outcome here, never an
// error.
type Writer struct {
	store  Store
	clock  Clock
	logger *zap.Logger
}

// NewWriter builds a Writer.
func NewWriter(store Store, clock Clock, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, clock: clock, logger: logger}
}

// Write merge-upserts the article iff it carries an image, reporting whether
// a write happened. UpdatedAt is stamped at write time so it advances on
// every re-ingestion; PublishedAt is left to the store's merge semantics and
// never regresses once recorded.
func (w *Writer) Write(ctx context.Context, article Article) (bool, error) {
	if article.Image == "" {
		metrics.ItemsSkipped.Inc()
		w.logger.Debug("article skipped, no resolvable image",
			zap.String("id", article.ID),
			zap.String("url", article.URL),
		)
		return false, nil
	}
	article.UpdatedAt = w.clock.Now()
	if err := w.store.Upsert(ctx, article); err != nil {
		return false, fmt.Errorf("upsert article %s: %w", article.ID, err)
	}
	metrics.ItemsUpserted.Inc()
	return true, nil
}
