package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/products"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/scans"
)

// Runs against a real database only when TEST_DATABASE_URL is set.
func openTestDB(t *testing.T) context.Context {
	t.Helper()
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	return context.Background()
}

func TestProductRepository_UpsertBatch(t *testing.T) {
	ctx := openTestDB(t)
	db, err := Connect(ctx, os.Getenv("TEST_DATABASE_URL"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("schema: %v", err)
	}
	repo := NewProductRepository(db)

	key := "it-" + uuid.NewString()[:8]
	t.Cleanup(func() { db.Exec(`DELETE FROM products WHERE part_num = $1`, key) })

	res, err := repo.UpsertBatch(ctx, []products.Row{{PartNum: key, PartDescription: "first"}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if res.Inserted != 1 || res.Updated != 0 {
		t.Fatalf("unexpected insert result %+v", res)
	}
	before, err := repo.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	res, err = repo.UpsertBatch(ctx, []products.Row{
		{PartNum: key, PartDescription: "second"},
		{PartNum: key, PartDescription: "third"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Inserted != 0 || res.Updated != 2 {
		t.Fatalf("unexpected update result %+v", res)
	}
	after, err := repo.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.PartDescription != "third" {
		t.Fatalf("description = %q", after.PartDescription)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("created_at changed on update: %v -> %v", before.CreatedAt, after.CreatedAt)
	}

	if _, err := repo.Get(ctx, key+"-missing"); !errors.Is(err, products.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScanRepository_AppendAndLatest(t *testing.T) {
	ctx := openTestDB(t)
	db, err := Connect(ctx, os.Getenv("TEST_DATABASE_URL"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("schema: %v", err)
	}
	repo := NewScanRepository(db)

	code := "it-" + uuid.NewString()[:8]
	t.Cleanup(func() { db.Exec(`DELETE FROM scans WHERE code = $1`, code) })

	s := &scans.Scan{Code: code, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if err := repo.Append(ctx, s); err != nil {
		t.Fatalf("append: %v", err)
	}
	if s.ID == 0 || s.ScannedAt.IsZero() {
		t.Fatalf("store fields not filled: %+v", s)
	}

	latest, err := repo.Latest(ctx, 5)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(latest) == 0 || latest[0].ID != s.ID {
		t.Fatalf("newest scan not first")
	}
	if latest[0].Description != nil {
		t.Fatalf("expected null description")
	}

	st, err := repo.Stats(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total < 1 || st.Today < 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}
