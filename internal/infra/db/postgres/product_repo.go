package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/products"
)

type ProductRepository struct{ db *sql.DB }

func NewProductRepository(db *sql.DB) *ProductRepository { return &ProductRepository{db: db} }

func (r *ProductRepository) Get(ctx context.Context, partNum string) (*domain.Product, error) {
	const q = `
SELECT part_num, part_description, created_at
FROM products
WHERE part_num = $1;`

	var p domain.Product
	err := r.db.QueryRowContext(ctx, q, partNum).Scan(&p.PartNum, &p.PartDescription, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, describe(err)
	}
	return &p, nil
}

// UpsertBatch writes every row in one transaction. xmax is zero only for a
// tuple created by the INSERT branch, which tells inserts from updates.
func (r *ProductRepository) UpsertBatch(ctx context.Context, rows []domain.Row) (domain.BatchResult, error) {
	const q = `
INSERT INTO products (part_num, part_description)
VALUES ($1, $2)
ON CONFLICT (part_num) DO UPDATE SET
 part_description = EXCLUDED.part_description
RETURNING (xmax = 0) AS inserted;`

	var res domain.BatchResult
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, describe(err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return res, describe(err)
	}
	defer stmt.Close()

	for _, row := range rows {
		var inserted bool
		if err := stmt.QueryRowContext(ctx, row.PartNum, row.PartDescription).Scan(&inserted); err != nil {
			return domain.BatchResult{}, fmt.Errorf("upsert %s: %w", row.PartNum, describe(err))
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.BatchResult{}, describe(err)
	}
	return res, nil
}

func (r *ProductRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products;`).Scan(&n); err != nil {
		return 0, describe(err)
	}
	return n, nil
}
