package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/products"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/scans"
)

func TestUpsertBatch_InsertThenUpdatePreservesCreatedAt(t *testing.T) {
	s := NewStore()
	first := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return first }
	ctx := context.Background()

	res, err := s.UpsertBatch(ctx, []products.Row{{PartNum: "12-345", PartDescription: "Bolt"}})
	if err != nil || res.Inserted != 1 || res.Updated != 0 {
		t.Fatalf("insert: %v %+v", err, res)
	}

	s.now = func() time.Time { return first.Add(time.Hour) }
	res, err = s.UpsertBatch(ctx, []products.Row{
		{PartNum: "12-345", PartDescription: "Bolt M6"},
		{PartNum: "12-346", PartDescription: "Nut"},
		{PartNum: "12-346", PartDescription: "Nut M6"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if res.Inserted != 1 || res.Updated != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	p, err := s.Get(ctx, "12-345")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.PartDescription != "Bolt M6" || !p.CreatedAt.Equal(first) {
		t.Fatalf("unexpected product %+v", p)
	}
	if n, _ := s.Count(ctx); n != 2 {
		t.Fatalf("count = %d", n)
	}
	if _, err := s.Get(ctx, "99-999"); !errors.Is(err, products.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertBatch_UnchangedDescriptionCountsAsUpdate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	row := products.Row{PartNum: "10-100", PartDescription: "Washer"}
	s.UpsertBatch(ctx, []products.Row{row})
	res, _ := s.UpsertBatch(ctx, []products.Row{row})
	if res.Updated != 1 || res.Inserted != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestScans_AppendLatestStats(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	day := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return day.Add(-time.Hour) }
	s.Append(ctx, &scans.Scan{Code: "old"})
	s.now = func() time.Time { return day.Add(time.Hour) }
	desc := "Bolt"
	sc := &scans.Scan{Code: "new", Description: &desc}
	if err := s.Append(ctx, sc); err != nil {
		t.Fatalf("append: %v", err)
	}
	if sc.ID != 2 {
		t.Fatalf("id = %d", sc.ID)
	}

	latest, _ := s.Latest(ctx, 10)
	if len(latest) != 2 || latest[0].Code != "new" || latest[1].Code != "old" {
		t.Fatalf("unexpected order %+v", latest)
	}
	latest, _ = s.Latest(ctx, 1)
	if len(latest) != 1 {
		t.Fatalf("limit not applied")
	}

	st, _ := s.Stats(ctx, day)
	if st.Total != 2 || st.Today != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestImportErrors_ListByRun(t *testing.T) {
	s := NewStore()
	log := s.ImportErrors()
	ctx := context.Background()
	log.Save(ctx, &products.ImportError{RunID: "a", Chunk: 3})
	log.Save(ctx, &products.ImportError{RunID: "b", Chunk: 1})
	log.Save(ctx, &products.ImportError{RunID: "a", Chunk: 1})

	list, err := log.ListByRun(ctx, "a", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Chunk != 1 || list[1].Chunk != 3 {
		t.Fatalf("unexpected list %+v", list)
	}
}
