package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/propertyhub/newsfeed/internal/hash/sha1"
)

// fakeStore implements Store over a map with per-call error injection.
type fakeStore struct {
	articles  map[string]Article
	upserts   int
	listCalls int
	listIDs   []string
	deleted   [][]string

	getErr    error
	upsertErr error
	listErr   error
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{articles: make(map[string]Article)}
}

func (s *fakeStore) Upsert(_ context.Context, article Article) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	if existing, ok := s.articles[article.ID]; ok {
		article.PublishedAt = existing.PublishedAt
	}
	s.articles[article.ID] = article
	s.upserts++
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (Article, bool, error) {
	if s.getErr != nil {
		return Article{}, false, s.getErr
	}
	article, ok := s.articles[id]
	return article, ok, nil
}

func (s *fakeStore) ListIDsBeyond(_ context.Context, _ int) ([]string, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.listIDs, nil
}

func (s *fakeStore) DeleteBatch(_ context.Context, ids []string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, ids)
	return nil
}

// fakeParser serves canned items per feed URL.
type fakeParser struct {
	items map[string][]Item
	errs  map[string]error
}

func (p *fakeParser) ParseFeed(_ context.Context, url string) ([]Item, error) {
	if err := p.errs[url]; err != nil {
		return nil, err
	}
	return p.items[url], nil
}

// fakeFetcher serves canned pages per URL and counts calls.
type fakeFetcher struct {
	pages map[string]PageResult
	errs  map[string]error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (PageResult, error) {
	f.calls++
	if err := f.errs[url]; err != nil {
		return PageResult{FinalURL: url}, err
	}
	if page, ok := f.pages[url]; ok {
		return page, nil
	}
	return PageResult{FinalURL: url}, errors.New("no such page")
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func newTestPipeline(
	feeds []FeedSource,
	parser FeedParser,
	store Store,
	fetcher PageFetcher,
	budget int,
	retention int,
	clock Clock,
) (*Pipeline, *Enricher) {
	logger := zap.NewNop()
	enricher := NewEnricher(fetcher, budget, 0, logger)
	return NewPipeline(PipelineDeps{
		Feeds:    feeds,
		Parser:   parser,
		Store:    store,
		Identity: NewIdentityResolver(sha1.New(), logger),
		Resolver: NewImageResolver(enricher, logger),
		Enricher: enricher,
		Writer:   NewWriter(store, clock, logger),
		Cleaner:  NewCleaner(store, retention, logger),
		Clock:    clock,
		Logger:   logger,
	}), enricher
}

func TestPipelineRunPersistsImageBearingItemsOnly(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	published := now.Add(-2 * time.Hour)
	parser := &fakeParser{
		items: map[string][]Item{
			"https://feeds.example.com/news": {
				{
					Title:       "With image",
					Link:        "https://news.example.com/a",
					Description: `<img src="https://cdn.example.com/a.jpg">`,
					Published:   &published,
				},
				{
					Title:       "Without image",
					Link:        "https://news.example.com/b",
					Description: "plain text only",
				},
			},
		},
	}
	store := newFakeStore()
	fetcher := &fakeFetcher{}
	pipeline, _ := newTestPipeline(
		[]FeedSource{{Name: "Example", URL: "https://feeds.example.com/news"}},
		parser, store, fetcher, 0, 100, &fakeClock{now: now},
	)

	summary, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, summary.ItemsUpserted)
	require.Equal(t, 1, summary.ItemsSkipped)
	require.Zero(t, summary.ItemsFailed)
	require.Equal(t, 1, store.upserts)

	var persisted Article
	for _, article := range store.articles {
		persisted = article
	}
	require.Equal(t, "https://cdn.example.com/a.jpg", persisted.Image)
	require.Equal(t, "https://news.example.com/a", persisted.URL)
	require.Equal(t, "Example", persisted.Source)
	require.Equal(t, published, persisted.PublishedAt)
	require.Equal(t, now, persisted.UpdatedAt)
	require.Zero(t, fetcher.calls, "no enrichment needed when the payload carries an image")
}

func TestPipelineFeedFailureIsolation(t *testing.T) {
	parser := &fakeParser{
		items: map[string][]Item{
			"https://feeds.example.com/good": {
				{
					Title:       "Survivor",
					Link:        "https://news.example.com/ok",
					Description: `<img src="https://cdn.example.com/ok.jpg">`,
				},
			},
		},
		errs: map[string]error{
			"https://feeds.example.com/bad": errors.New("dial tcp: connection refused"),
		},
	}
	store := newFakeStore()
	pipeline, _ := newTestPipeline(
		[]FeedSource{
			{Name: "Bad", URL: "https://feeds.example.com/bad"},
			{Name: "Good", URL: "https://feeds.example.com/good"},
		},
		parser, store, &fakeFetcher{}, 0, 100, &fakeClock{now: time.Now().UTC()},
	)

	summary, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.FeedsFailed)
	require.Equal(t, 1, summary.ItemsUpserted)
}

func TestPipelineItemFailureIsolation(t *testing.T) {
	parser := &fakeParser{
		items: map[string][]Item{
			"https://feeds.example.com/news": {
				{Title: "One", Link: "https://news.example.com/1", Description: `<img src="https://cdn.example.com/1.jpg">`},
				{Title: "Two", Link: "https://news.example.com/2", Description: `<img src="https://cdn.example.com/2.jpg">`},
			},
		},
	}
	store := newFakeStore()
	store.getErr = errors.New("store unavailable")
	pipeline, _ := newTestPipeline(
		[]FeedSource{{Name: "Example", URL: "https://feeds.example.com/news"}},
		parser, store, &fakeFetcher{}, 0, 100, &fakeClock{now: time.Now().UTC()},
	)

	summary, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.ItemsFailed)
	require.Zero(t, summary.ItemsUpserted)
}

func TestPipelineRunsCleanerOnlyAfterUpserts(t *testing.T) {
	store := newFakeStore()
	parser := &fakeParser{
		items: map[string][]Item{
			"https://feeds.example.com/news": {
				{Title: "No image", Link: "https://news.example.com/x", Description: "text"},
			},
		},
	}
	pipeline, _ := newTestPipeline(
		[]FeedSource{{Name: "Example", URL: "https://feeds.example.com/news"}},
		parser, store, &fakeFetcher{}, 0, 100, &fakeClock{now: time.Now().UTC()},
	)

	_, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, store.listCalls, "cleaner must not run when nothing was written")

	parser.items["https://feeds.example.com/news"][0].Description = `<img src="https://cdn.example.com/x.jpg">`
	pipeline, _ = newTestPipeline(
		[]FeedSource{{Name: "Example", URL: "https://feeds.example.com/news"}},
		parser, store, &fakeFetcher{}, 0, 100, &fakeClock{now: time.Now().UTC()},
	)
	_, err = pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, store.listCalls, "cleaner runs exactly once after a successful write")
}

func TestPipelineReportsRemainingBudget(t *testing.T) {
	page := []byte(`<html><head><meta property="og:image" content="https://cdn.example.com/og.jpg"></head></html>`)
	parser := &fakeParser{
		items: map[string][]Item{
			"https://feeds.example.com/news": {
				{Title: "Bare", Link: "https://news.example.com/bare", Description: "no media here"},
			},
		},
	}
	fetcher := &fakeFetcher{
		pages: map[string]PageResult{
			"https://news.example.com/bare": {
				FinalURL:   "https://news.example.com/bare",
				StatusCode: 200,
				Body:       page,
			},
		},
	}
	store := newFakeStore()
	pipeline, enricher := newTestPipeline(
		[]FeedSource{{Name: "Example", URL: "https://feeds.example.com/news"}},
		parser, store, fetcher, 3, 100, &fakeClock{now: time.Now().UTC()},
	)

	summary, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.ItemsUpserted)
	require.Equal(t, 2, summary.BudgetRemaining)
	require.Equal(t, 2, enricher.Remaining())
	require.Equal(t, 1, fetcher.calls)
}

func TestPipelineStableIdentityAcrossRuns(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	items := []Item{{
		Title:       "Stable",
		Link:        "https://news.example.com/stable",
		Description: `<img src="https://cdn.example.com/s.jpg">`,
	}}
	parser := &fakeParser{items: map[string][]Item{"https://feeds.example.com/news": items}}
	store := newFakeStore()
	feeds := []FeedSource{{Name: "Example", URL: "https://feeds.example.com/news"}}

	for i := 0; i < 3; i++ {
		clock := &fakeClock{now: now.Add(time.Duration(i) * 24 * time.Hour)}
		pipeline, _ := newTestPipeline(feeds, parser, store, &fakeFetcher{}, 0, 100, clock)
		summary, err := pipeline.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, summary.ItemsUpserted, fmt.Sprintf("run %d", i))
	}

	require.Len(t, store.articles, 1, "re-ingesting the same article must reuse one record")
	for _, article := range store.articles {
		require.Equal(t, now, article.PublishedAt, "first ingestion time sticks when the feed omits pubDate")
		require.Equal(t, now.Add(48*time.Hour), article.UpdatedAt)
	}
}
