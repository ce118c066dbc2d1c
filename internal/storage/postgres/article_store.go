// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propertyhub/newsfeed/internal/ingest"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ArticleStoreConfig controls the Postgres connection pool used for article
// rows.
type ArticleStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// ArticleStore persists articles in Postgres. It assumes a table schema like:
//
//	CREATE TABLE articles (
//		id TEXT PRIMARY KEY,
//		title TEXT NOT NULL,
//		summary TEXT,
//		url TEXT NOT NULL,
//		source TEXT,
//		image TEXT NOT NULL,
//		published_at TIMESTAMPTZ NOT NULL,
//		updated_at TIMESTAMPTZ NOT NULL
//	);
type ArticleStore struct {
	pool  dbPool
	table string
}

// NewArticleStore creates a Postgres-backed ArticleStore using the provided
// config and pings the database so a missing store fails at bootstrap, not
// mid-run.
func NewArticleStore(ctx context.Context, cfg ArticleStoreConfig) (*ArticleStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "articles"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &ArticleStore{pool: pool, table: table}, nil
}

// NewArticleStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewArticleStoreWithPool(pool dbPool, table string) (*ArticleStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "articles"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ArticleStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *ArticleStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Upsert merge-writes an article row. On conflict every field except
// published_at is replaced, so publish time keeps its first recorded value
// while updated_at advances on each re-ingestion.
func (s *ArticleStore) Upsert(ctx context.Context, article ingest.Article) error {
	if article.ID == "" {
		return fmt.Errorf("article id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, title, summary, url, source, image, published_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	summary = EXCLUDED.summary,
	url = EXCLUDED.url,
	source = EXCLUDED.source,
	image = EXCLUDED.image,
	updated_at = EXCLUDED.updated_at`, s.table)

	args := []any{
		article.ID,
		article.Title,
		article.Summary,
		article.URL,
		article.Source,
		article.Image,
		article.PublishedAt,
		article.UpdatedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}
	return nil
}

// GetByID fetches one article row, reporting presence via the bool.
func (s *ArticleStore) GetByID(ctx context.Context, id string) (ingest.Article, bool, error) {
	query := fmt.Sprintf(`
SELECT id, title, summary, url, source, image, published_at, updated_at
FROM %s WHERE id = $1`, s.table)

	var article ingest.Article
	row := s.pool.QueryRow(ctx, query, id)
	err := row.Scan(
		&article.ID,
		&article.Title,
		&article.Summary,
		&article.URL,
		&article.Source,
		&article.Image,
		&article.PublishedAt,
		&article.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ingest.Article{}, false, nil
	}
	if err != nil {
		return ingest.Article{}, false, fmt.Errorf("get article: %w", err)
	}
	return article, true, nil
}

// ListIDsBeyond returns article IDs ranked past the first keep rows when
// ordered by published_at descending.
func (s *ArticleStore) ListIDsBeyond(ctx context.Context, keep int) ([]string, error) {
	if keep < 0 {
		keep = 0
	}
	query := fmt.Sprintf(`SELECT id FROM %s ORDER BY published_at DESC OFFSET $1`, s.table)

	rows, err := s.pool.Query(ctx, query, keep)
	if err != nil {
		return nil, fmt.Errorf("list retention overflow: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan article id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article ids: %w", err)
	}
	return ids, nil
}

// DeleteBatch removes the given article IDs in a single statement.
func (s *ArticleStore) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, s.table)
	if _, err := s.pool.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("delete articles: %w", err)
	}
	return nil
}
