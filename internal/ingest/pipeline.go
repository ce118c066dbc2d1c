package ingest

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/propertyhub/newsfeed/internal/metrics"
)

// Pipeline drives one ingestion run: every configured feed is fetched and
// parsed, each item flows through identity resolution, image resolution and
// the writer, and the retention cleaner runs once at the end. Feeds and
// items are processed sequentially so the shared enrichment budget and
// politeness delay stay unsynchronized run-scoped state.
type Pipeline struct {
	feeds    []FeedSource
	parser   FeedParser
	store    Store
	identity *IdentityResolver
	resolver *ImageResolver
	enricher *Enricher
	writer   *Writer
	cleaner  *Cleaner
	clock    Clock
	logger   *zap.Logger
}

// PipelineDeps wires the pipeline's collaborators.
type PipelineDeps struct {
	Feeds    []FeedSource
	Parser   FeedParser
	Store    Store
	Identity *IdentityResolver
	Resolver *ImageResolver
	Enricher *Enricher
	Writer   *Writer
	Cleaner  *Cleaner
	Clock    Clock
	Logger   *zap.Logger
}

// NewPipeline builds a Pipeline for a single run.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		feeds:    deps.Feeds,
		parser:   deps.Parser,
		store:    deps.Store,
		identity: deps.Identity,
		resolver: deps.Resolver,
		enricher: deps.Enricher,
		writer:   deps.Writer,
		cleaner:  deps.Cleaner,
		clock:    deps.Clock,
		logger:   logger,
	}
}

// Run executes one ingestion pass and reports its summary. There is no
// run-aborting condition: feed and item failures are logged, counted and
// skipped, and the run always completes.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))
	summary := Summary{RunID: runID, StartedAt: p.clock.Now()}

	for _, feed := range p.feeds {
		items, err := p.parser.ParseFeed(ctx, feed.URL)
		if err != nil {
			summary.FeedsFailed++
			metrics.FeedsFailed.Inc()
			logger.Warn("feed fetch failed, skipping source",
				zap.String("feed", feed.Name),
				zap.String("url", feed.URL),
				zap.Error(err),
			)
			continue
		}
		logger.Info("feed fetched",
			zap.String("feed", feed.Name),
			zap.Int("items", len(items)),
		)
		for _, item := range items {
			switch p.processItem(ctx, logger, feed, item) {
			case OutcomeUpserted:
				summary.ItemsUpserted++
			case OutcomeSkipped:
				summary.ItemsSkipped++
			case OutcomeFailed:
				summary.ItemsFailed++
			}
		}
	}

	if summary.ItemsUpserted > 0 {
		p.cleaner.Clean(ctx)
	}

	summary.BudgetRemaining = p.enricher.Remaining()
	summary.FinishedAt = p.clock.Now()
	logger.Info("ingestion run complete",
		zap.Int("upserted", summary.ItemsUpserted),
		zap.Int("skipped", summary.ItemsSkipped),
		zap.Int("failed", summary.ItemsFailed),
		zap.Int("feeds_failed", summary.FeedsFailed),
		zap.Int("budget_remaining", summary.BudgetRemaining),
	)
	return summary, nil
}

func (p *Pipeline) processItem(ctx context.Context, logger *zap.Logger, feed FeedSource, item Item) ItemOutcome {
	metrics.ItemsProcessed.Inc()

	link := item.Link
	if link == "" {
		link = item.GUID
	}
	identity, err := p.identity.Resolve(link)
	if err != nil {
		metrics.ItemsFailed.Inc()
		logger.Warn("item identity derivation failed",
			zap.String("link", link),
			zap.Error(err),
		)
		return OutcomeFailed
	}

	var prior *Article
	stored, ok, err := p.store.GetByID(ctx, identity.ID)
	if err != nil {
		metrics.ItemsFailed.Inc()
		logger.Warn("prior record lookup failed",
			zap.String("link", link),
			zap.Error(err),
		)
		return OutcomeFailed
	}
	if ok {
		prior = &stored
	}

	resolution := p.resolver.Resolve(ctx, item, identity.URL, prior)
	article := p.buildArticle(feed, item, identity, resolution.Image)

	wrote, err := p.writer.Write(ctx, article)
	if err != nil {
		metrics.ItemsFailed.Inc()
		logger.Warn("item write failed",
			zap.String("link", link),
			zap.Error(err),
		)
		return OutcomeFailed
	}
	if !wrote {
		return OutcomeSkipped
	}
	return OutcomeUpserted
}

func (p *Pipeline) buildArticle(feed FeedSource, item Item, identity Identity, image string) Article {
	publishedAt := p.clock.Now()
	if item.Published != nil {
		publishedAt = *item.Published
	}
	source := feed.Name
	if source == "" {
		source = item.Author
	}
	return Article{
		ID:          identity.ID,
		Title:       item.Title,
		Summary:     item.Description,
		URL:         identity.URL,
		Source:      source,
		Image:       image,
		PublishedAt: publishedAt,
	}
}
