package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaLockKey int64 = 2026101401

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the pipeline tables. Concurrent callers serialize on an advisory lock.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS scrape_runs (
	id BIGSERIAL PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ,
	source_type TEXT NOT NULL,
	source_name TEXT NOT NULL DEFAULT '',
	items_found INTEGER NOT NULL DEFAULT 0,
	items_new INTEGER NOT NULL DEFAULT 0,
	items_qualified INTEGER NOT NULL DEFAULT 0,
	errors TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'running'
);

CREATE INDEX IF NOT EXISTS idx_scrape_runs_started_at ON scrape_runs(started_at DESC);

CREATE TABLE IF NOT EXISTS leads (
	id BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	org_name TEXT NOT NULL,
	org_type TEXT NOT NULL DEFAULT '',
	org_url TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	raw_text TEXT NOT NULL DEFAULT '',
	source_url TEXT NOT NULL DEFAULT '',
	source_type TEXT NOT NULL,
	source_name TEXT NOT NULL DEFAULT '',
	published_at TIMESTAMPTZ,
	confidence_score DOUBLE PRECISION,
	relevance_reasoning TEXT NOT NULL DEFAULT '',
	service_matches JSONB NOT NULL DEFAULT '[]'::jsonb,
	intent_signals JSONB NOT NULL DEFAULT '[]'::jsonb,
	is_government BOOLEAN NOT NULL DEFAULT FALSE,
	status TEXT NOT NULL DEFAULT 'new',
	notes TEXT NOT NULL DEFAULT '',
	fingerprint CHAR(64) NOT NULL UNIQUE,
	enrichment JSONB,
	org_ein TEXT NOT NULL DEFAULT '',
	org_revenue DOUBLE PRECISION,
	org_assets DOUBLE PRECISION,
	org_city TEXT NOT NULL DEFAULT '',
	org_state TEXT NOT NULL DEFAULT '',
	extra JSONB NOT NULL DEFAULT '{}'::jsonb,
	scrape_run_id BIGINT REFERENCES scrape_runs(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_source_type ON leads(source_type);

CREATE TABLE IF NOT EXISTS source_configs (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	source_type TEXT NOT NULL,
	url TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	last_scraped_at TIMESTAMPTZ,
	scrape_frequency_minutes INTEGER NOT NULL DEFAULT 360,
	config_json JSONB NOT NULL DEFAULT '{}'::jsonb
);
`
