package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/propertyhub/newsfeed/internal/metrics"
)

// pauseController abstracts how the pipeline backs off between page fetches.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (p *timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Enricher owns the run-scoped live-page fetch budget and the politeness
// delay between fetches. The budget only ever decreases, by exactly one per
// fetch attempt, and never goes negative. It is run-scoped state: build a
// fresh Enricher per run.
type Enricher struct {
	fetcher   PageFetcher
	remaining int
	delay     time.Duration
	pause     pauseController
	logger    *zap.Logger
}

// NewEnricher builds an Enricher with the given per-run fetch budget.
func NewEnricher(fetcher PageFetcher, budget int, delay time.Duration, logger *zap.Logger) *Enricher {
	if budget < 0 {
		budget = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.EnrichmentBudgetRemaining.Set(float64(budget))
	return &Enricher{
		fetcher:   fetcher,
		remaining: budget,
		delay:     delay,
		pause:     &timerPauseController{},
		logger:    logger,
	}
}

// Remaining reports the unconsumed budget.
func (e *Enricher) Remaining() int {
	return e.remaining
}

// TryConsume decrements the budget by one and returns true, or returns false
// when the budget is exhausted. Every fetch attempt must be paid for here
// before it is made, success or not.
func (e *Enricher) TryConsume() bool {
	if e.remaining <= 0 {
		return false
	}
	e.remaining--
	metrics.EnrichmentBudgetRemaining.Set(float64(e.remaining))
	return true
}

// FetchPage retrieves url and returns the final post-redirect URL together
// with the HTML body, or a nil body when the fetch timed out, errored, or
// served a non-HTML content type. Those are expected outcomes, not errors.
// The politeness delay is honored after every attempt, regardless of result.
func (e *Enricher) FetchPage(ctx context.Context, url string) (string, []byte) {
	metrics.EnrichmentAttempts.Inc()
	result, err := e.fetcher.Fetch(ctx, url)
	e.pause.Pause(ctx, e.delay)
	if err != nil {
		e.logger.Debug("enrichment fetch missed",
			zap.String("url", url),
			zap.Error(err),
		)
		finalURL := result.FinalURL
		if finalURL == "" {
			finalURL = url
		}
		return finalURL, nil
	}
	finalURL := result.FinalURL
	if finalURL == "" {
		finalURL = url
	}
	return finalURL, result.Body
}
