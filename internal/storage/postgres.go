package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deusflow/trendpress/internal/domain"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type PostgresStore struct {
	db     DB
	psql   sq.StatementBuilderType
	logger *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	url TEXT NOT NULL UNIQUE,
	type TEXT NOT NULL DEFAULT 'web',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	last_crawled_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS crawled_articles (
	id UUID PRIMARY KEY,
	source_id BIGINT REFERENCES sources(id) ON DELETE SET NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	url TEXT NOT NULL UNIQUE,
	crawled_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_crawled_articles_crawled_at ON crawled_articles(crawled_at DESC);

CREATE TABLE IF NOT EXISTS articles (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	source_url TEXT,
	thumbnail_url TEXT,
	generated_by TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	published_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS categories (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE
);
`

// NewPostgresStore connects, pings and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewPostgresStoreWithDB(pool, logger)
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to postgres", "max_conns", cfg.MaxConns)
	return store, nil
}

func NewPostgresStoreWithDB(db DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		psql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: logger,
	}
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

var sourceColumns = []string{"id", "name", "url", "type", "is_active", "last_crawled_at"}

func (s *PostgresStore) ListSources(ctx context.Context) ([]domain.Source, error) {
	return s.selectSources(ctx, s.psql.Select(sourceColumns...).From("sources").OrderBy("id"))
}

func (s *PostgresStore) ActiveSources(ctx context.Context) ([]domain.Source, error) {
	return s.selectSources(ctx, s.psql.Select(sourceColumns...).From("sources").
		Where(sq.Eq{"is_active": true}).OrderBy("id"))
}

func (s *PostgresStore) selectSources(ctx context.Context, b sq.SelectBuilder) ([]domain.Source, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sources query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		var src domain.Source
		var typ string
		if err := rows.Scan(&src.ID, &src.Name, &src.URL, &typ, &src.IsActive, &src.LastCrawledAt); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		src.Type = domain.SourceType(typ)
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}
	return sources, nil
}

func (s *PostgresStore) AddSource(ctx context.Context, src domain.Source) (*domain.Source, error) {
	if src.Type == "" {
		src.Type = domain.SourceTypeWeb
	}

	query, args, err := s.psql.Insert("sources").
		Columns("name", "url", "type", "is_active").
		Values(src.Name, src.URL, string(src.Type), true).
		Suffix("ON CONFLICT (url) DO UPDATE SET name = EXCLUDED.name, type = EXCLUDED.type, is_active = TRUE RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build source insert: %w", err)
	}

	if err := s.db.QueryRow(ctx, query, args...).Scan(&src.ID); err != nil {
		return nil, fmt.Errorf("failed to save source: %w", err)
	}
	src.IsActive = true
	return &src, nil
}

func (s *PostgresStore) TouchSource(ctx context.Context, id int64, at time.Time) error {
	query, args, err := s.psql.Update("sources").
		Set("last_crawled_at", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build source update: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update source %d: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) UpsertCrawledArticle(ctx context.Context, a domain.CrawledArticle) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CrawledAt.IsZero() {
		a.CrawledAt = time.Now().UTC()
	}

	var sourceID any
	if a.SourceID > 0 {
		sourceID = a.SourceID
	}

	query, args, err := s.psql.Insert("crawled_articles").
		Columns("id", "source_id", "title", "content", "url", "crawled_at").
		Values(a.ID, sourceID, a.Title, a.Content, a.URL, a.CrawledAt).
		Suffix(`ON CONFLICT (url) DO UPDATE SET
			source_id = EXCLUDED.source_id,
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			crawled_at = EXCLUDED.crawled_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build crawled article upsert: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert crawled article %s: %w", a.URL, err)
	}
	return nil
}

func (s *PostgresStore) crawledSelect() sq.SelectBuilder {
	return s.psql.Select(
		"ca.id::text", "COALESCE(ca.source_id, 0)", "COALESCE(s.name, '')",
		"ca.title", "ca.content", "ca.url", "ca.crawled_at",
	).From("crawled_articles ca").
		LeftJoin("sources s ON s.id = ca.source_id").
		OrderBy("ca.crawled_at DESC")
}

func (s *PostgresStore) RecentCrawledArticles(ctx context.Context, limit int) ([]domain.CrawledArticle, error) {
	return s.selectCrawled(ctx, s.crawledSelect().Limit(uint64(limit)))
}

func (s *PostgresStore) SearchCrawledArticles(ctx context.Context, terms []string, limit int) ([]domain.CrawledArticle, error) {
	terms = uniqueTerms(terms)
	if len(terms) == 0 {
		return nil, nil
	}

	cond := sq.Or{}
	for _, t := range terms {
		pattern := "%" + escapeLike(t) + "%"
		cond = append(cond, sq.ILike{"ca.title": pattern}, sq.ILike{"ca.content": pattern})
	}

	return s.selectCrawled(ctx, s.crawledSelect().Where(cond).Limit(uint64(limit)))
}

func (s *PostgresStore) selectCrawled(ctx context.Context, b sq.SelectBuilder) ([]domain.CrawledArticle, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build crawled articles query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawled articles: %w", err)
	}
	defer rows.Close()

	var out []domain.CrawledArticle
	for rows.Next() {
		var a domain.CrawledArticle
		if err := rows.Scan(&a.ID, &a.SourceID, &a.SourceName, &a.Title, &a.Content, &a.URL, &a.CrawledAt); err != nil {
			return nil, fmt.Errorf("failed to scan crawled article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate crawled articles: %w", err)
	}
	return out, nil
}

var articleColumns = []string{
	"id", "title", "content", "status", "COALESCE(source_url, '')", "COALESCE(thumbnail_url, '')",
	"COALESCE(generated_by, '')", "created_at", "published_at",
}

func scanArticle(row pgx.Row) (*domain.Article, error) {
	var a domain.Article
	var status string
	if err := row.Scan(&a.ID, &a.Title, &a.Content, &status, &a.SourceURL, &a.ThumbnailURL,
		&a.GeneratedBy, &a.CreatedAt, &a.PublishedAt); err != nil {
		return nil, err
	}
	a.Status = domain.ArticleStatus(status)
	return &a, nil
}

func (s *PostgresStore) InsertArticle(ctx context.Context, a domain.Article) (*domain.Article, error) {
	if a.Status == "" {
		a.Status = domain.StatusDraft
	}

	query, args, err := s.psql.Insert("articles").
		Columns("title", "content", "status", "source_url", "thumbnail_url", "generated_by").
		Values(a.Title, a.Content, string(a.Status), a.SourceURL, a.ThumbnailURL, a.GeneratedBy).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article insert: %w", err)
	}

	if err := s.db.QueryRow(ctx, query, args...).Scan(&a.ID, &a.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to save article: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) GetArticle(ctx context.Context, id int64) (*domain.Article, error) {
	query, args, err := s.psql.Select(articleColumns...).From("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article query: %w", err)
	}

	a, err := scanArticle(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load article %d: %w", id, err)
	}
	return a, nil
}

func (s *PostgresStore) PublishArticle(ctx context.Context, id int64, at time.Time) (*domain.Article, error) {
	query, args, err := s.psql.Update("articles").
		Set("status", string(domain.StatusPublished)).
		Set("published_at", at).
		Where(sq.Eq{"id": id, "status": string(domain.StatusDraft)}).
		Suffix("RETURNING " + strings.Join(articleColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build publish update: %w", err)
	}

	a, err := scanArticle(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		// Either unknown or already published.
		return s.GetArticle(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to publish article %d: %w", id, err)
	}
	return a, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	query, args, err := s.psql.Select("id", "name", "slug").From("categories").OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build categories query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
