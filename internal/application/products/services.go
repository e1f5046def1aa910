package products

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/plusishibba-design/barcode-scanner-cloud/internal/application"
	domain "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/products"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/metrics"
)

const (
	DefaultChunkSize  = 100
	DefaultChunkDelay = 100 * time.Millisecond

	cacheSize = 4096
	cacheTTL  = time.Minute
)

// Service owns the product master use-cases: enrichment lookup, bulk import
// and stats. It is safe for concurrent use.
type Service struct {
	Repo    domain.Repository
	Errors  domain.ImportErrorLog
	Archive domain.Archive
	Clock   application.Clock

	ChunkSize  int
	ChunkDelay time.Duration

	cache *expirable.LRU[string, string]
}

func NewService(repo domain.Repository, errs domain.ImportErrorLog, archive domain.Archive) *Service {
	return &Service{
		Repo:       repo,
		Errors:     errs,
		Archive:    archive,
		Clock:      application.SystemClock{},
		ChunkSize:  DefaultChunkSize,
		ChunkDelay: DefaultChunkDelay,
		cache:      expirable.NewLRU[string, string](cacheSize, nil, cacheTTL),
	}
}

// ImportOptions tunes one run; zero values fall back to the service settings.
type ImportOptions struct {
	// RunID lets the caller tie the run to an archived file; generated when empty.
	RunID      string
	ChunkSize  int
	ChunkDelay time.Duration
	Progress   func(ImportProgress)
}

// ImportProgress is reported after every chunk.
type ImportProgress struct {
	RunID     string
	Chunk     int
	Chunks    int
	Processed int
	Failed    bool
	Stats     domain.ImportStats
}

// Describe resolves a code to its description. Implements the scans lookup port.
func (s *Service) Describe(ctx context.Context, code string) (string, bool, error) {
	if s.cache != nil {
		if d, ok := s.cache.Get(code); ok {
			return d, true, nil
		}
	}
	p, err := s.Repo.Get(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if s.cache != nil {
		s.cache.Add(code, p.PartDescription)
	}
	return p.PartDescription, true, nil
}

// Get ambil 1 product by part number
func (s *Service) Get(ctx context.Context, partNum string) (*domain.Product, error) {
	partNum = strings.TrimSpace(partNum)
	if partNum == "" {
		return nil, fmt.Errorf("%w: partNum is required", domain.ErrInvalidInput)
	}
	return s.Repo.Get(ctx, partNum)
}

// Count returns the number of product master rows.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.Repo.Count(ctx)
}

// ImportErrors lists the failed chunks of one run.
func (s *Service) ImportErrors(ctx context.Context, runID string, limit int) ([]*domain.ImportError, error) {
	if s.Errors == nil {
		return []*domain.ImportError{}, nil
	}
	list, err := s.Errors.ListByRun(ctx, runID, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*domain.ImportError{}
	}
	return list, nil
}

// Import upserts rows in sequential chunks. A failed chunk is counted as
// skipped and the run goes on. Malformed rows are counted as skipped and never
// reach the store. When ctx is cancelled the remaining rows are skipped and
// ctx.Err() is returned along with the stats gathered so far.
func (s *Service) Import(ctx context.Context, rows []domain.Row, opts ImportOptions) (domain.ImportStats, error) {
	if len(rows) == 0 {
		return domain.ImportStats{}, fmt.Errorf("%w: products must be a non-empty array", domain.ErrInvalidInput)
	}
	start := s.now()
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	stats := domain.ImportStats{RunID: runID, Total: len(rows)}

	valid := make([]domain.Row, 0, len(rows))
	for _, r := range rows {
		r = domain.Row{
			PartNum:         strings.TrimSpace(r.PartNum),
			PartDescription: strings.TrimSpace(r.PartDescription),
		}
		if !r.Valid() {
			stats.Skipped++
			continue
		}
		valid = append(valid, r)
	}
	metrics.ImportRows.WithLabelValues("skipped").Add(float64(stats.Skipped))

	chunks := chunk(valid, s.chunkSize(opts))
	stats.Chunks = len(chunks)

	var runErr error
	processed := 0
	for i, c := range chunks {
		if i > 0 {
			if err := sleepCtx(ctx, s.chunkDelay(opts)); err != nil {
				runErr = err
			}
		}
		if runErr == nil {
			runErr = ctx.Err()
		}
		if runErr != nil {
			remaining := len(valid) - processed
			stats.Skipped += remaining
			metrics.ImportRows.WithLabelValues("skipped").Add(float64(remaining))
			log.Printf("import cancelled run=%s chunk=%d/%d remaining=%d err=%v",
				stats.RunID, i+1, len(chunks), remaining, runErr)
			break
		}

		res, err := s.Repo.UpsertBatch(ctx, c)
		failed := err != nil
		if failed {
			stats.Skipped += len(c)
			stats.FailedChunks++
			metrics.ImportChunks.WithLabelValues("failed").Inc()
			metrics.ImportRows.WithLabelValues("skipped").Add(float64(len(c)))
			log.Printf("import chunk failed run=%s chunk=%d/%d rows=%d err=%v",
				stats.RunID, i+1, len(chunks), len(c), err)
			s.recordFailure(ctx, stats.RunID, i+1, c, err)
		} else {
			stats.Inserted += res.Inserted
			stats.Updated += res.Updated
			metrics.ImportChunks.WithLabelValues("ok").Inc()
			metrics.ImportRows.WithLabelValues("inserted").Add(float64(res.Inserted))
			metrics.ImportRows.WithLabelValues("updated").Add(float64(res.Updated))
		}
		processed += len(c)

		if opts.Progress != nil {
			opts.Progress(ImportProgress{
				RunID:     stats.RunID,
				Chunk:     i + 1,
				Chunks:    len(chunks),
				Processed: processed,
				Failed:    failed,
				Stats:     stats,
			})
		}
	}

	if s.cache != nil {
		s.cache.Purge()
	}
	stats.Duration = s.now().Sub(start)
	metrics.ImportDuration.Observe(stats.Duration.Seconds())
	log.Printf("import finished run=%s total=%d inserted=%d updated=%d skipped=%d failed_chunks=%d",
		stats.RunID, stats.Total, stats.Inserted, stats.Updated, stats.Skipped, stats.FailedChunks)
	return stats, runErr
}

// ArchiveRaw stores the uploaded file under imports/<date>/<run>.csv.
// Returns "" when no archive is configured.
func (s *Service) ArchiveRaw(ctx context.Context, runID string, data []byte) (string, error) {
	if s.Archive == nil {
		return "", nil
	}
	key := fmt.Sprintf("imports/%s/%s.csv", s.now().UTC().Format("2006-01-02"), runID)
	return s.Archive.Put(ctx, key, data, "text/csv")
}

func (s *Service) recordFailure(ctx context.Context, runID string, n int, rows []domain.Row, cause error) {
	if s.Errors == nil {
		return
	}
	e := &domain.ImportError{
		RunID:     runID,
		Chunk:     n,
		Rows:      len(rows),
		Message:   cause.Error(),
		CreatedAt: s.now(),
	}
	if len(rows) > 0 {
		e.FirstPartNum = rows[0].PartNum
	}
	// the store may be the thing that failed; losing this record is acceptable
	if err := s.Errors.Save(context.WithoutCancel(ctx), e); err != nil {
		log.Printf("import error log failed run=%s chunk=%d err=%v", runID, n, err)
	}
}

func (s *Service) chunkSize(opts ImportOptions) int {
	if opts.ChunkSize > 0 {
		return opts.ChunkSize
	}
	if s.ChunkSize > 0 {
		return s.ChunkSize
	}
	return DefaultChunkSize
}

func (s *Service) chunkDelay(opts ImportOptions) time.Duration {
	if opts.ChunkDelay > 0 {
		return opts.ChunkDelay
	}
	return s.ChunkDelay
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func chunk(rows []domain.Row, size int) [][]domain.Row {
	var out [][]domain.Row
	for len(rows) > 0 {
		n := size
		if n > len(rows) {
			n = len(rows)
		}
		out = append(out, rows[:n:n])
		rows = rows[n:]
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
