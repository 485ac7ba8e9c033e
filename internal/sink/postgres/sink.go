// Package postgres persists article records into Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
)

const defaultTable = "articles"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var columns = []string{
	"url",
	"url_key",
	"run_id",
	"sitemap",
	"title",
	"author",
	"published_at",
	"paragraphs",
	"status",
	"reason",
	"detail",
	"fetched_at",
}

// Config controls the Postgres connection pool used for article rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Sink upserts article records keyed by normalized URL, so a re-run
// overwrites rows instead of duplicating them.
type Sink struct {
	pool  execCloser
	table string
	psql  sq.StatementBuilderType
}

var _ harvest.Sink = (*Sink)(nil)

// New creates a Postgres-backed Sink using the provided config.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sink.postgres.dsn is required")
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
	sink, err := NewWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return sink, nil
}

// NewWithPool constructs a Sink from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*Sink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Sink{
		pool:  pool,
		table: table,
		psql:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// EnsureSchema creates the article table when it does not exist.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	url_key      TEXT PRIMARY KEY,
	url          TEXT NOT NULL,
	run_id       TEXT NOT NULL,
	sitemap      TEXT NOT NULL,
	title        TEXT,
	author       TEXT,
	published_at TIMESTAMPTZ,
	paragraphs   TEXT[],
	status       TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	detail       TEXT NOT NULL DEFAULT '',
	fetched_at   TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Emit upserts one record.
func (s *Sink) Emit(ctx context.Context, record harvest.ArticleRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres sink is not configured")
	}
	if record.URL == "" {
		return fmt.Errorf("record url is required")
	}
	key, err := record.StorageKey()
	if err != nil {
		return err
	}
	query, args, err := s.upsert(record, key)
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}
	return nil
}

// upsert keys rows on the normalized URL so every variant of one article
// lands in the same row; url keeps the variant seen last.
func (s *Sink) upsert(record harvest.ArticleRecord, key string) (string, []any, error) {
	paragraphs := record.Paragraphs
	if paragraphs == nil {
		paragraphs = []string{}
	}
	return s.psql.Insert(s.table).
		Columns(columns...).
		Values(
			record.URL,
			key,
			record.RunID,
			record.Sitemap,
			record.Title,
			record.Author,
			record.PublishedAt,
			paragraphs,
			string(record.Status.Kind),
			string(record.Status.Reason),
			record.Status.Detail,
			record.FetchedAt,
		).
		Suffix(`ON CONFLICT (url_key) DO UPDATE SET
	url = EXCLUDED.url,
	run_id = EXCLUDED.run_id,
	sitemap = EXCLUDED.sitemap,
	title = EXCLUDED.title,
	author = EXCLUDED.author,
	published_at = EXCLUDED.published_at,
	paragraphs = EXCLUDED.paragraphs,
	status = EXCLUDED.status,
	reason = EXCLUDED.reason,
	detail = EXCLUDED.detail,
	fetched_at = EXCLUDED.fetched_at`).
		ToSql()
}

// Close releases the underlying pool resources.
func (s *Sink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
