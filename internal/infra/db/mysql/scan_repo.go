package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/scans"
)

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Append inserts one scan. MySQL has no RETURNING, so the timestamps are set
// here at the column precision (DATETIME(3), UTC) and match the stored row.
func (r *ScanRepository) Append(ctx context.Context, s *domain.Scan) error {
	const q = `
INSERT INTO scans (code, client_timestamp, description, scanned_at, created_at)
VALUES (?,?,?,?,?);
`
	now := time.Now().UTC().Truncate(time.Millisecond)
	res, err := r.db.ExecContext(ctx, q, s.Code, s.Timestamp, nullString(s.Description), now, now)
	if err != nil {
		return describe(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return describe(err)
	}
	s.ID = domain.ScanID(id)
	s.ScannedAt, s.CreatedAt = now, now
	return nil
}

// Latest scans, newest first
func (r *ScanRepository) Latest(ctx context.Context, limit int) ([]*domain.Scan, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, code, COALESCE(client_timestamp, ''), description, scanned_at, created_at
FROM scans
ORDER BY scanned_at DESC, id DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, describe(err)
	}
	defer rows.Close()

	out := make([]*domain.Scan, 0, limit)
	for rows.Next() {
		var s domain.Scan
		var desc sql.NullString
		if err := rows.Scan(&s.ID, &s.Code, &s.Timestamp, &desc, &s.ScannedAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Description = stringPtr(desc)
		out = append(out, &s)
	}
	return out, rows.Err()
}

// Stats counts all scans and the ones since dayStart
func (r *ScanRepository) Stats(ctx context.Context, dayStart time.Time) (domain.Stats, error) {
	const q = `
SELECT COUNT(*) AS total,
       COALESCE(SUM(scanned_at >= ?), 0) AS today
FROM scans;
`
	var st domain.Stats
	if err := r.db.QueryRowContext(ctx, q, dayStart.UTC()).Scan(&st.Total, &st.Today); err != nil {
		return domain.Stats{}, describe(err)
	}
	return st, nil
}
