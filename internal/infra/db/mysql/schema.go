package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scans (
  id               BIGINT AUTO_INCREMENT PRIMARY KEY,
  code             VARCHAR(255) NOT NULL,
  client_timestamp VARCHAR(50),
  description      TEXT NULL,
  scanned_at       DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
  created_at       DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
  INDEX idx_scans_scanned_at (scanned_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS products (
  part_num         VARCHAR(255) NOT NULL PRIMARY KEY,
  part_description TEXT NOT NULL,
  created_at       DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS import_errors (
  id             BIGINT AUTO_INCREMENT PRIMARY KEY,
  run_id         VARCHAR(64) NOT NULL,
  chunk          INT NOT NULL,
  row_count      INT NOT NULL,
  first_part_num VARCHAR(255),
  message        TEXT NOT NULL,
  created_at     DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
  INDEX idx_import_errors_run (run_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
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
