package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scans (
  id               BIGSERIAL PRIMARY KEY,
  code             VARCHAR(255) NOT NULL,
  client_timestamp VARCHAR(50),
  description      TEXT,
  scanned_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_scans_scanned_at ON scans (scanned_at DESC)`,
	`CREATE TABLE IF NOT EXISTS products (
  part_num         VARCHAR(255) PRIMARY KEY,
  part_description TEXT NOT NULL,
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS import_errors (
  id             BIGSERIAL PRIMARY KEY,
  run_id         VARCHAR(64) NOT NULL,
  chunk          INT NOT NULL,
  row_count      INT NOT NULL,
  first_part_num VARCHAR(255),
  message        TEXT NOT NULL,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_import_errors_run ON import_errors (run_id)`,
}

// EnsureSchema creates the tables when missing. Safe to run on every start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", describe(err))
		}
	}
	return nil
}
