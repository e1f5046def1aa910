package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/products"
)

type ImportErrorRepository struct {
	db *sql.DB
}

func NewImportErrorRepository(db *sql.DB) *ImportErrorRepository {
	return &ImportErrorRepository{db: db}
}

func (r *ImportErrorRepository) Save(ctx context.Context, e *domain.ImportError) error {
	const q = `
INSERT INTO import_errors
  (run_id, chunk, row_count, first_part_num, message, created_at)
VALUES (?,?,?,?,?,?)
`
	msg := e.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, q, stringOrDash(e.RunID), e.Chunk, e.Rows, e.FirstPartNum, msg, e.CreatedAt)
	if err != nil {
		return describe(err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

func (r *ImportErrorRepository) ListByRun(ctx context.Context, runID string, limit int) ([]*domain.ImportError, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, run_id, chunk, row_count, COALESCE(first_part_num, ''), message, created_at
FROM import_errors
WHERE run_id = ?
ORDER BY chunk ASC, id ASC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, runID, limit)
	if err != nil {
		return nil, describe(err)
	}
	defer rows.Close()

	out := []*domain.ImportError{}
	for rows.Next() {
		var e domain.ImportError
		if err := rows.Scan(&e.ID, &e.RunID, &e.Chunk, &e.Rows, &e.FirstPartNum, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
