// Package ingest defines core types shared across the feed pipeline.
package ingest

import "time"

// FeedSource is one configured syndication endpoint.
type FeedSource struct {
	Name string
	URL  string
}

// Item is the parsed representation of one syndication entry. It is built
// once per parse and consumed once; it is never persisted as-is.
type Item struct {
	Title       string
	Link        string
	GUID        string
	Description string
	Content     string
	Author      string
	Published   *time.Time

	EnclosureURL      string
	MediaContentURL   string
	MediaThumbnailURL string
	MediaGroupURL     string
}

// Article is the persisted record for one ingested feed item, keyed by the
// content-hash ID of its canonical URL. An Article is only ever written with
// a non-empty Image.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Image       string    `json:"image"`
	PublishedAt time.Time `json:"published_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Identity pairs the canonical URL of a feed item with its stable ID.
type Identity struct {
	URL string
	ID  string
}

// ItemOutcome classifies the result of processing a single feed item.
type ItemOutcome string

// Item outcome values aggregated into the run summary.
const (
	OutcomeUpserted ItemOutcome = "upserted"
	OutcomeSkipped  ItemOutcome = "skipped_no_image"
	OutcomeFailed   ItemOutcome = "failed"
)

// Summary reports the result of one ingestion run.
type Summary struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	ItemsUpserted   int       `json:"items_upserted"`
	ItemsSkipped    int       `json:"items_skipped"`
	ItemsFailed     int       `json:"items_failed"`
	FeedsFailed     int       `json:"feeds_failed"`
	BudgetRemaining int       `json:"budget_remaining"`
}

// PageResult is returned by a PageFetcher. Body is nil when the target was
// unreachable, timed out, or served a non-HTML content type.
type PageResult struct {
	FinalURL   string
	StatusCode int
	Body       []byte
}
