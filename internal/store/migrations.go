package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all ComfyFlow tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS workflows (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		content_hash     TEXT NOT NULL DEFAULT '',
		raw_graph        TEXT NOT NULL,
		nodes            TEXT NOT NULL,
		parameter_lookup TEXT NOT NULL,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL,
		state       TEXT NOT NULL DEFAULT 'QUEUED',
		"values"    TEXT NOT NULL DEFAULT '{}',
		bindings    TEXT NOT NULL DEFAULT '[]',
		inputs      TEXT NOT NULL DEFAULT '{}',
		prompt_id   TEXT NOT NULL DEFAULT '',
		error       TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_workflows_content_hash ON workflows(content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_workflow_id ON runs(workflow_id)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state)`,
}

// migrate applies every schema statement in order.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
