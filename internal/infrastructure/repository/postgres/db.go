// Package postgres keeps the durable state: requests, documents, vendor
// templates, the job record and audit events, all behind database/sql with
// the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates all tables idempotently. API and worker both call it
// on startup, so the DDL runs under an advisory lock.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS requests (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	counts JSONB NOT NULL DEFAULT '{}'::jsonb,
	stats JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_requests_user ON requests(user_id);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	request_id TEXT REFERENCES requests(id),
	user_id TEXT NOT NULL,
	vendor_id TEXT,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	invoice_number TEXT,
	invoice_date TEXT,
	total_amount DOUBLE PRECISION,
	currency TEXT,
	line_items JSONB NOT NULL DEFAULT '[]'::jsonb,
	raw_text TEXT NOT NULL DEFAULT '',
	raw_response TEXT NOT NULL DEFAULT '',
	validation_errors JSONB NOT NULL DEFAULT '[]'::jsonb,
	retry_count INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_request ON documents(request_id);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

CREATE TABLE IF NOT EXISTS vendor_templates (
	id TEXT PRIMARY KEY,
	vendor_id TEXT NOT NULL,
	name TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT FALSE,
	fields JSONB NOT NULL DEFAULT '[]'::jsonb,
	field_mappings JSONB NOT NULL DEFAULT '{}'::jsonb,
	rules JSONB NOT NULL DEFAULT '[]'::jsonb,
	prompt_fragment TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_vendor_templates_one_active
	ON vendor_templates(vendor_id) WHERE is_active;

CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	vendor_id_override TEXT,
	status TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	result JSONB,
	last_error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_one_active_per_document
	ON jobs(document_id) WHERE finished_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_jobs_status_finished ON jobs(status, finished_at);

CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	action TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	detail JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_entity ON audit_events(entity_type, entity_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
