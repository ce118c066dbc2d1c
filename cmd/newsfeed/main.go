// Package main wires together the news feed ingestion binary. It performs a
// single ingestion run and exits; scheduling is left to the caller.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/propertyhub/newsfeed/internal/clock/system"
	"github.com/propertyhub/newsfeed/internal/config"
	"github.com/propertyhub/newsfeed/internal/feedparse"
	collyfetcher "github.com/propertyhub/newsfeed/internal/fetcher/colly"
	"github.com/propertyhub/newsfeed/internal/hash/sha1"
	"github.com/propertyhub/newsfeed/internal/ingest"
	"github.com/propertyhub/newsfeed/internal/logging"
	pubsubpublisher "github.com/propertyhub/newsfeed/internal/publisher/pubsub"
	memorystore "github.com/propertyhub/newsfeed/internal/storage/memory"
	"github.com/propertyhub/newsfeed/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSrv := startMetricsServer(cfg.Server.MetricsPort, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	store, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("article store init failed", zap.Error(err))
	}
	defer closeStore()

	summary, err := runPipeline(ctx, cfg, store, logger)
	if err != nil {
		logger.Error("ingestion run failed", zap.Error(err))
		os.Exit(1)
	}

	publishSummary(ctx, cfg, summary, logger)

	logger.Info("run summary",
		zap.String("run_id", summary.RunID),
		zap.Int("items_upserted", summary.ItemsUpserted),
		zap.Int("budget_remaining", summary.BudgetRemaining),
	)
}

func startMetricsServer(port int, logger *zap.Logger) *http.Server {
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (ingest.Store, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Warn("db.dsn is empty, using in-memory store; articles will not outlive this process")
		return memorystore.NewArticleStore(), func() {}, nil
	}
	pgStore, err := postgres.NewArticleStore(ctx, postgres.ArticleStoreConfig{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: int32(cfg.DB.MaxOpenConns),
		MinConns: int32(cfg.DB.MinOpenConns),
	})
	if err != nil {
		return nil, nil, err
	}
	return pgStore, pgStore.Close, nil
}

func runPipeline(ctx context.Context, cfg config.Config, store ingest.Store, logger *zap.Logger) (ingest.Summary, error) {
	clock := system.New()
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Ingest.UserAgent,
		Timeout:   cfg.FetchTimeout(),
		Headers:   outboundHeaders(cfg.Ingest.Headers),
	})
	enricher := ingest.NewEnricher(fetcher, cfg.Ingest.EnrichBudget, cfg.PolitenessDelay(), logger)

	feeds := make([]ingest.FeedSource, 0, len(cfg.Feeds))
	for _, feed := range cfg.Feeds {
		feeds = append(feeds, ingest.FeedSource{Name: feed.Name, URL: feed.URL})
	}

	pipeline := ingest.NewPipeline(ingest.PipelineDeps{
		Feeds:    feeds,
		Parser:   feedparse.New(cfg.Ingest.UserAgent, cfg.FetchTimeout()),
		Store:    store,
		Identity: ingest.NewIdentityResolver(sha1.New(), logger),
		Resolver: ingest.NewImageResolver(enricher, logger),
		Enricher: enricher,
		Writer:   ingest.NewWriter(store, clock, logger),
		Cleaner:  ingest.NewCleaner(store, cfg.Ingest.RetentionMax, logger),
		Clock:    clock,
		Logger:   logger,
	})
	return pipeline.Run(ctx)
}

func publishSummary(ctx context.Context, cfg config.Config, summary ingest.Summary, logger *zap.Logger) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return
	}
	publisher, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
	if err != nil {
		logger.Warn("summary publisher init failed", zap.Error(err))
		return
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("summary publisher close failed", zap.Error(err))
		}
	}()
	id, err := publisher.Publish(ctx, summary)
	if err != nil {
		logger.Warn("summary publish failed", zap.Error(err))
		return
	}
	logger.Info("run summary published",
		zap.String("topic", cfg.PubSub.TopicName),
		zap.String("message_id", id),
	)
}

func outboundHeaders(headers map[string]string) http.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make(http.Header, len(headers))
	for key, value := range headers {
		out.Set(key, value)
	}
	return out
}
