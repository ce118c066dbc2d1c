package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/propertyhub/newsfeed/internal/metrics"
)

// Cleaner trims the store to the keep most recent articles by PublishedAt.
// Cleanup runs after ingestion has already done its job, so its failures are
// logged and swallowed rather than surfaced as run failures.
type Cleaner struct {
	store  Store
	keep   int
	logger *zap.Logger
}

// NewCleaner builds a Cleaner with the configured retention cap.
func NewCleaner(store Store, keep int, logger *zap.Logger) *Cleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cleaner{store: store, keep: keep, logger: logger}
}

// Clean deletes every article ranked past the retention cap. A store holding
// no more than keep articles is a no-op.
func (c *Cleaner) Clean(ctx context.Context) {
	ids, err := c.store.ListIDsBeyond(ctx, c.keep)
	if err != nil {
		c.logger.Warn("retention scan failed", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}
	if err := c.store.DeleteBatch(ctx, ids); err != nil {
		c.logger.Warn("retention delete failed",
			zap.Int("count", len(ids)),
			zap.Error(err),
		)
		return
	}
	metrics.RetentionDeleted.Add(float64(len(ids)))
	c.logger.Info("retention cleanup removed oldest articles",
		zap.Int("deleted", len(ids)),
		zap.Int("keep", c.keep),
	)
}
