package scans

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/plusishibba-design/barcode-scanner-cloud/internal/application"
	domain "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/scans"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/metrics"
)

// GetLimit is the most rows the dashboard query returns.
const GetLimit = 1000

// publishTimeout bounds the delivery of one scan event.
const publishTimeout = 10 * time.Second

// Service implements use-cases untuk Scan.
// Service is safe for concurrent use; dedup state lives in the gate the
// caller passes in, never in the service.
type Service struct {
	Repo   domain.Repository
	Lookup domain.DescriptionLookup
	Events domain.EventPublisher
	Clock  application.Clock

	publishing sync.WaitGroup
}

//
// ==== USE CASES ====
//

// SubmitCommand is one scan as delivered by a capture source or typed by hand.
type SubmitCommand struct {
	Code       string
	Timestamp  string
	Continuous bool
	Source     domain.Source
}

type SubmitResult struct {
	Status      domain.Status `json:"status"`
	Scan        *domain.Scan  `json:"data,omitempty"`
	Description *string       `json:"description,omitempty"`
}

// Submit validates, deduplicates, enriches and persists a single scan.
// gate may be nil for manual entry.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand, gate *domain.DedupGate) (SubmitResult, error) {
	code, ts, err := normalize(cmd)
	if err != nil {
		metrics.ScansSubmitted.WithLabelValues("invalid").Inc()
		return SubmitResult{}, err
	}

	now := s.now()
	if cmd.Continuous && !gate.Allow(code, true, now) {
		metrics.ScansSubmitted.WithLabelValues("duplicate").Inc()
		return SubmitResult{Status: domain.StatusDuplicate}, nil
	}

	if ts == "" {
		ts = now.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}

	scan := &domain.Scan{
		Code:        code,
		Timestamp:   ts,
		Description: s.describe(ctx, code),
	}
	if err := s.Repo.Append(ctx, scan); err != nil {
		if cmd.Continuous {
			// nothing was stored, so the next identical read must get through
			gate.Reset()
		}
		metrics.ScansSubmitted.WithLabelValues("failed").Inc()
		return SubmitResult{}, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	metrics.ScansSubmitted.WithLabelValues("recorded").Inc()

	s.publish(ctx, scan, cmd.Source)

	return SubmitResult{
		Status:      domain.StatusRecorded,
		Scan:        scan,
		Description: scan.Description,
	}, nil
}

// Latest ambil N scan terakhir, newest first
func (s *Service) Latest(ctx context.Context, limit int) ([]*domain.Scan, error) {
	if limit <= 0 || limit > GetLimit {
		limit = GetLimit
	}
	list, err := s.Repo.Latest(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	if list == nil {
		list = []*domain.Scan{}
	}
	return list, nil
}

// Stats counts all scans and the ones created since local midnight.
func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	now := s.now()
	y, m, d := now.Date()
	st, err := s.Repo.Stats(ctx, time.Date(y, m, d, 0, 0, 0, 0, now.Location()))
	if err != nil {
		return domain.Stats{}, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return st, nil
}

func (s *Service) describe(ctx context.Context, code string) *string {
	if s.Lookup == nil {
		return nil
	}
	desc, ok, err := s.Lookup.Describe(ctx, code)
	if err != nil {
		// enrichment never blocks the scan
		log.Printf("description lookup failed code=%s err=%v", code, err)
		return nil
	}
	if !ok {
		return nil
	}
	return &desc
}

func (s *Service) publish(ctx context.Context, scan *domain.Scan, src domain.Source) {
	if s.Events == nil {
		return
	}
	if src == "" {
		src = domain.SourceManual
	}
	ev := domain.RecordedEvent{
		ID:          scan.ID,
		Code:        scan.Code,
		Description: scan.Description,
		Timestamp:   scan.Timestamp,
		ScannedAt:   scan.ScannedAt,
		Source:      src,
	}

	// delivery runs after the scan is answered and outlives the request
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	s.publishing.Add(1)
	go func() {
		defer s.publishing.Done()
		defer cancel()
		if err := s.Events.Publish(pctx, ev); err != nil {
			log.Printf("publish scan event failed id=%d err=%v", ev.ID, err)
		}
	}()
}

// Wait blocks until every pending scan event was delivered or gave up.
func (s *Service) Wait() {
	s.publishing.Wait()
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func normalize(cmd SubmitCommand) (string, string, error) {
	code := domain.SanitizeCode(cmd.Code)
	if code == "" {
		return "", "", fmt.Errorf("%w: code is required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(code) > domain.MaxCodeLength {
		return "", "", fmt.Errorf("%w: code longer than %d characters", domain.ErrInvalidInput, domain.MaxCodeLength)
	}

	ts := strings.TrimSpace(cmd.Timestamp)
	if ts == "" {
		return code, "", nil
	}
	if utf8.RuneCountInString(ts) > domain.MaxTimestampLength {
		return "", "", fmt.Errorf("%w: timestamp too long", domain.ErrInvalidInput)
	}
	if !domain.ValidTimestamp(ts) {
		return "", "", fmt.Errorf("%w: timestamp must be ISO-8601, got %q", domain.ErrInvalidInput, ts)
	}
	return code, ts, nil
}
