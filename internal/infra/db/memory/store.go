// Package memory keeps scans, products and import errors in process memory.
// It backs unit tests and `database.driver: memory` local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/products"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/scans"
)

type Store struct {
	mu           sync.RWMutex
	nextScanID   scans.ScanID
	nextErrorID  int64
	scans        []scans.Scan
	products     map[string]products.Product
	importErrors []products.ImportError

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		products: make(map[string]products.Product),
		now:      time.Now,
	}
}

// Append implements scans.Repository.
func (s *Store) Append(ctx context.Context, sc *scans.Scan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextScanID++
	now := s.now()
	sc.ID = s.nextScanID
	sc.ScannedAt = now
	sc.CreatedAt = now

	stored := *sc
	if sc.Description != nil {
		d := *sc.Description
		stored.Description = &d
	}
	s.scans = append(s.scans, stored)
	return nil
}

// Latest returns the newest scans first.
func (s *Store) Latest(ctx context.Context, limit int) ([]*scans.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.scans) {
		limit = len(s.scans)
	}
	out := make([]*scans.Scan, 0, limit)
	for i := len(s.scans) - 1; i >= 0 && len(out) < limit; i-- {
		sc := s.scans[i]
		out = append(out, &sc)
	}
	return out, nil
}

func (s *Store) Stats(ctx context.Context, dayStart time.Time) (scans.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := scans.Stats{Total: int64(len(s.scans))}
	for _, sc := range s.scans {
		if !sc.ScannedAt.Before(dayStart) {
			st.Today++
		}
	}
	return st, nil
}

// Get implements products.Repository.
func (s *Store) Get(ctx context.Context, partNum string) (*products.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[partNum]
	if !ok {
		return nil, products.ErrNotFound
	}
	return &p, nil
}

// UpsertBatch applies the whole batch under one lock, so a batch is never
// observed half-written.
func (s *Store) UpsertBatch(ctx context.Context, rows []products.Row) (products.BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return products.BatchResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var res products.BatchResult
	now := s.now()
	for _, r := range rows {
		if p, ok := s.products[r.PartNum]; ok {
			p.PartDescription = r.PartDescription
			s.products[r.PartNum] = p
			res.Updated++
			continue
		}
		s.products[r.PartNum] = products.Product{
			PartNum:         r.PartNum,
			PartDescription: r.PartDescription,
			CreatedAt:       now,
		}
		res.Inserted++
	}
	return res, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.products)), nil
}

// ImportErrorStore implements products.ImportErrorLog on top of a Store.
type ImportErrorStore struct{ s *Store }

func (s *Store) ImportErrors() *ImportErrorStore { return &ImportErrorStore{s: s} }

func (e *ImportErrorStore) Save(ctx context.Context, ie *products.ImportError) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	e.s.nextErrorID++
	ie.ID = e.s.nextErrorID
	if ie.CreatedAt.IsZero() {
		ie.CreatedAt = e.s.now()
	}
	e.s.importErrors = append(e.s.importErrors, *ie)
	return nil
}

func (e *ImportErrorStore) ListByRun(ctx context.Context, runID string, limit int) ([]*products.ImportError, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	out := []*products.ImportError{}
	for _, ie := range e.s.importErrors {
		if ie.RunID != runID {
			continue
		}
		ie := ie
		out = append(out, &ie)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Chunk < out[j].Chunk })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
