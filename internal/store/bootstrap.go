package store

import (
	"context"
	"fmt"
)

// Bootstrap creates the application tables if they do not exist. There is no
// migration framework; schema evolution happens outside this service.
func (s *Store) Bootstrap(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, s.Dialect.SchemaSQL()); err != nil {
		return fmt.Errorf("bootstrap tables: %w", err)
	}
	return nil
}

func (d *PostgresDialect) SchemaSQL() string {
	return `
CREATE TABLE IF NOT EXISTS transactions (
    id                     TEXT PRIMARY KEY,
    date_time              TIMESTAMPTZ NOT NULL,
    description            VARCHAR(250) NOT NULL,
    total                  BIGINT NOT NULL,
    is_split               BOOLEAN NOT NULL DEFAULT false,
    category               TEXT NOT NULL DEFAULT '',
    source_account_id      TEXT,
    destination_account_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_transactions_date_time ON transactions(date_time);

CREATE TABLE IF NOT EXISTS transaction_lines (
    transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
    line_order     INT NOT NULL,
    amount         BIGINT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (transaction_id, line_order)
);

CREATE TABLE IF NOT EXISTS transaction_automations (
    id                TEXT PRIMARY KEY,
    name              VARCHAR(50) NOT NULL,
    description       VARCHAR(250) NOT NULL,
    version           INT NOT NULL DEFAULT 1,
    trigger_on_create BOOLEAN NOT NULL DEFAULT false,
    trigger_on_modify BOOLEAN NOT NULL DEFAULT false,
    query             JSONB NOT NULL,
    actions           JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS user_transaction_automations (
    user_id       TEXT NOT NULL,
    automation_id TEXT NOT NULL REFERENCES transaction_automations(id) ON DELETE CASCADE,
    permissions   INT NOT NULL DEFAULT 0,
    enabled       BOOLEAN NOT NULL DEFAULT true,
    PRIMARY KEY (user_id, automation_id)
);

CREATE TABLE IF NOT EXISTS automation_runs (
    id            BIGSERIAL PRIMARY KEY,
    automation_id TEXT NOT NULL REFERENCES transaction_automations(id) ON DELETE CASCADE,
    mode          TEXT NOT NULL,
    matched       INT NOT NULL DEFAULT 0,
    applied       INT NOT NULL DEFAULT 0,
    status        TEXT NOT NULL,
    error         TEXT NOT NULL DEFAULT '',
    ran_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_automation_runs_automation ON automation_runs(automation_id, ran_at);
`
}

func (d *SQLiteDialect) SchemaSQL() string {
	return `
CREATE TABLE IF NOT EXISTS transactions (
    id                     TEXT PRIMARY KEY,
    date_time              TEXT NOT NULL,
    description            TEXT NOT NULL,
    total                  INTEGER NOT NULL,
    is_split               INTEGER NOT NULL DEFAULT 0,
    category               TEXT NOT NULL DEFAULT '',
    source_account_id      TEXT,
    destination_account_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_transactions_date_time ON transactions(date_time);

CREATE TABLE IF NOT EXISTS transaction_lines (
    transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
    line_order     INTEGER NOT NULL,
    amount         INTEGER NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (transaction_id, line_order)
);

CREATE TABLE IF NOT EXISTS transaction_automations (
    id                TEXT PRIMARY KEY,
    name              TEXT NOT NULL,
    description       TEXT NOT NULL,
    version           INTEGER NOT NULL DEFAULT 1,
    trigger_on_create INTEGER NOT NULL DEFAULT 0,
    trigger_on_modify INTEGER NOT NULL DEFAULT 0,
    query             TEXT NOT NULL,
    actions           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_transaction_automations (
    user_id       TEXT NOT NULL,
    automation_id TEXT NOT NULL REFERENCES transaction_automations(id) ON DELETE CASCADE,
    permissions   INTEGER NOT NULL DEFAULT 0,
    enabled       INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (user_id, automation_id)
);

CREATE TABLE IF NOT EXISTS automation_runs (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    automation_id TEXT NOT NULL REFERENCES transaction_automations(id) ON DELETE CASCADE,
    mode          TEXT NOT NULL,
    matched       INTEGER NOT NULL DEFAULT 0,
    applied       INTEGER NOT NULL DEFAULT 0,
    status        TEXT NOT NULL,
    error         TEXT NOT NULL DEFAULT '',
    ran_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_automation_runs_automation ON automation_runs(automation_id, ran_at);
`
}
