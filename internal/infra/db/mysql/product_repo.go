package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/products"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Get(ctx context.Context, partNum string) (*domain.Product, error) {
	const q = `
SELECT part_num, part_description, created_at
FROM products
WHERE part_num=? LIMIT 1;
`
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

// UpsertBatch writes every row in one transaction. ON DUPLICATE KEY UPDATE
// reports 1 affected row for an insert, 2 for a changed row and 0 for an
// unchanged one; anything but 1 is an update.
func (r *ProductRepository) UpsertBatch(ctx context.Context, rows []domain.Row) (domain.BatchResult, error) {
	const q = `
INSERT INTO products (part_num, part_description)
VALUES (?,?)
ON DUPLICATE KEY UPDATE
 part_description=VALUES(part_description);
`
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
		out, err := stmt.ExecContext(ctx, row.PartNum, row.PartDescription)
		if err != nil {
			return domain.BatchResult{}, fmt.Errorf("upsert %s: %w", row.PartNum, describe(err))
		}
		n, err := out.RowsAffected()
		if err != nil {
			return domain.BatchResult{}, err
		}
		if n == 1 {
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
