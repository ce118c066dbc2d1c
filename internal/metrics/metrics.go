// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ItemsProcessed tracks every feed item that entered the pipeline.
	ItemsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsfeed_items_processed_total",
		Help: "The total number of feed items processed.",
	})
	// ItemsUpserted tracks items that resolved an image and were persisted.
	ItemsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsfeed_items_upserted_total",
		Help: "The total number of articles written to the store.",
	})
	// ItemsSkipped tracks items dropped because no image could be resolved.
	ItemsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsfeed_items_skipped_total",
		Help: "The total number of items skipped for lack of an image.",
	})
	// ItemsFailed tracks items abandoned after a resolution or write error.
	ItemsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsfeed_items_failed_total",
		Help: "The total number of items that failed processing.",
	})
	// FeedsFailed tracks feed sources skipped after a fetch/parse error.
	FeedsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsfeed_feeds_failed_total",
		Help: "The total number of feed sources that failed to fetch or parse.",
	})
	// EnrichmentAttempts tracks live-page fetches, successful or not.
	EnrichmentAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsfeed_enrichment_attempts_total",
		Help: "The total number of live-page enrichment fetch attempts.",
	})
	// BlocklistRejections tracks enrichment candidates discarded as
	// placeholder or logo imagery.
	BlocklistRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsfeed_blocklist_rejections_total",
		Help: "The total number of enrichment images rejected by the blocklist.",
	})
	// RetentionDeleted tracks articles removed by the retention cleaner.
	RetentionDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsfeed_retention_deleted_total",
		Help: "The total number of articles deleted by retention cleanup.",
	})
	// EnrichmentBudgetRemaining reports the unconsumed fetch budget of the
	// most recent run.
	EnrichmentBudgetRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "newsfeed_enrichment_budget_remaining",
		Help: "The remaining live-page fetch budget for the current run.",
	})
)
