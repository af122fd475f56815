// Package postgres provides the Postgres-backed funding record store.
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

	"github.com/JakeFAU/funding-crawler/internal/funding"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "funding_events"

// RecordStoreConfig controls the Postgres connection pool used for funding records.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Ping(context.Context) error
	Close()
}

// RecordStore persists funding records. article_url is the unique key; a
// record whose URL is already stored is skipped, never overwritten.
type RecordStore struct {
	pool  pool
	table string
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
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
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %w", funding.ErrStoreUnavailable, err)
	}
	return &RecordStore{pool: p, table: table}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(p pool, table string) (*RecordStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RecordStore{pool: p, table: table}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return defaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *RecordStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", funding.ErrStoreUnavailable, err)
	}
	return nil
}

// EnsureSchema creates the records table and its indexes if they are missing.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	company_name TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	amount_raised BIGINT NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT '',
	funding_round TEXT NOT NULL DEFAULT '',
	raised_date TEXT NOT NULL DEFAULT '',
	source_name TEXT NOT NULL DEFAULT '',
	website_url TEXT NOT NULL DEFAULT '',
	linkedin_url TEXT NOT NULL DEFAULT '',
	article_url TEXT NOT NULL,
	crawl_date TIMESTAMPTZ NOT NULL
)`, s.table),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_article_url_key ON %[1]s (article_url)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_event_idx ON %[1]s (normalized_name, raised_date)`, s.table),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UpsertMany inserts records in one transaction and returns the ones that were
// new. Records whose article_url already exists are skipped.
func (s *RecordStore) UpsertMany(ctx context.Context, records []funding.FundingEventRecord) (inserted []funding.FundingEventRecord, err error) {
	if len(records) == 0 {
		return nil, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", funding.ErrStoreUnavailable, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	query := fmt.Sprintf(`
INSERT INTO %s (
	company_name,
	normalized_name,
	amount_raised,
	currency,
	funding_round,
	raised_date,
	source_name,
	website_url,
	linkedin_url,
	article_url,
	crawl_date
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
ON CONFLICT (article_url) DO NOTHING`, s.table)

	for _, rec := range records {
		tag, execErr := tx.Exec(ctx, query,
			rec.CompanyName,
			rec.NormalizedName,
			rec.AmountRaised,
			rec.Currency,
			rec.FundingRound,
			rec.RaisedDate,
			rec.SourceName,
			rec.WebsiteURL,
			rec.LinkedinURL,
			rec.ArticleURL,
			rec.CrawlDate,
		)
		if execErr != nil {
			return nil, fmt.Errorf("%w: insert %s: %w", funding.ErrStoreUnavailable, rec.ArticleURL, execErr)
		}
		if tag.RowsAffected() == 1 {
			inserted = append(inserted, rec)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", funding.ErrStoreUnavailable, err)
	}
	return inserted, nil
}

// QueryAll returns every stored record ordered by crawl date, then URL.
func (s *RecordStore) QueryAll(ctx context.Context) ([]funding.FundingEventRecord, error) {
	query := fmt.Sprintf(`
SELECT
	company_name,
	normalized_name,
	amount_raised,
	currency,
	funding_round,
	raised_date,
	source_name,
	website_url,
	linkedin_url,
	article_url,
	crawl_date
FROM %s
ORDER BY crawl_date, article_url`, s.table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query records: %w", funding.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []funding.FundingEventRecord
	for rows.Next() {
		var rec funding.FundingEventRecord
		if err := rows.Scan(
			&rec.CompanyName,
			&rec.NormalizedName,
			&rec.AmountRaised,
			&rec.Currency,
			&rec.FundingRound,
			&rec.RaisedDate,
			&rec.SourceName,
			&rec.WebsiteURL,
			&rec.LinkedinURL,
			&rec.ArticleURL,
			&rec.CrawlDate,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}
