package scans

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/plusishibba-design/barcode-scanner-cloud/internal/application"
	domain "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/scans"
)

type stubRepo struct {
	appended []*domain.Scan
	err      error
	nextID   domain.ScanID
}

func (s *stubRepo) Append(ctx context.Context, scan *domain.Scan) error {
	if s.err != nil {
		return s.err
	}
	s.nextID++
	scan.ID = s.nextID
	scan.ScannedAt = time.Now()
	scan.CreatedAt = scan.ScannedAt
	s.appended = append(s.appended, scan)
	return nil
}

func (s *stubRepo) Latest(ctx context.Context, limit int) ([]*domain.Scan, error) {
	out := []*domain.Scan{}
	for i := len(s.appended) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.appended[i])
	}
	return out, s.err
}

func (s *stubRepo) Stats(ctx context.Context, dayStart time.Time) (domain.Stats, error) {
	return domain.Stats{Total: int64(len(s.appended))}, s.err
}

type stubLookup struct {
	descs  map[string]string
	err    error
	called int
}

func (s *stubLookup) Describe(ctx context.Context, code string) (string, bool, error) {
	s.called++
	if s.err != nil {
		return "", false, s.err
	}
	d, ok := s.descs[code]
	return d, ok, nil
}

type stubEvents struct {
	mu      sync.Mutex
	events  []domain.RecordedEvent
	err     error
	release chan struct{} // when set, Publish blocks until it is closed
}

func (s *stubEvents) Publish(ctx context.Context, ev domain.RecordedEvent) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *stubEvents) published() []domain.RecordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RecordedEvent(nil), s.events...)
}

func newService() (*Service, *stubRepo, *stubLookup, *application.FixedClock) {
	repo := &stubRepo{}
	lookup := &stubLookup{descs: map[string]string{}}
	clock := &application.FixedClock{T: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	return &Service{Repo: repo, Lookup: lookup, Clock: clock}, repo, lookup, clock
}

func TestSubmit_ContinuousDuplicateInsideWindow(t *testing.T) {
	svc, repo, _, clock := newService()
	gate := domain.NewDedupGate(time.Second)
	ctx := context.Background()

	res, err := svc.Submit(ctx, SubmitCommand{Code: "4901234567894", Continuous: true}, gate)
	if err != nil || res.Status != domain.StatusRecorded {
		t.Fatalf("first submit: %v %+v", err, res)
	}
	clock.Advance(500 * time.Millisecond)
	res, err = svc.Submit(ctx, SubmitCommand{Code: "4901234567894", Continuous: true}, gate)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if res.Status != domain.StatusDuplicate || res.Scan != nil {
		t.Fatalf("expected suppressed duplicate, got %+v", res)
	}
	if len(repo.appended) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(repo.appended))
	}
}

func TestSubmit_ContinuousAfterWindow(t *testing.T) {
	svc, repo, _, clock := newService()
	gate := domain.NewDedupGate(time.Second)
	ctx := context.Background()

	svc.Submit(ctx, SubmitCommand{Code: "A1", Continuous: true}, gate)
	clock.Advance(time.Second)
	res, err := svc.Submit(ctx, SubmitCommand{Code: "A1", Continuous: true}, gate)
	if err != nil || res.Status != domain.StatusRecorded {
		t.Fatalf("expected recorded, got %v %+v", err, res)
	}
	if len(repo.appended) != 2 {
		t.Fatalf("expected 2 persisted records, got %d", len(repo.appended))
	}
}

func TestSubmit_ManualBypassesGate(t *testing.T) {
	svc, repo, _, _ := newService()
	gate := domain.NewDedupGate(time.Second)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Submit(ctx, SubmitCommand{Code: "A1"}, gate); err != nil {
			t.Fatalf("manual submit %d: %v", i, err)
		}
	}
	if len(repo.appended) != 2 {
		t.Fatalf("expected 2 persisted records, got %d", len(repo.appended))
	}
}

func TestSubmit_EmptyCodeRejectedBeforeLookup(t *testing.T) {
	svc, repo, lookup, _ := newService()

	for _, code := range []string{"", "   ", "\r\n"} {
		_, err := svc.Submit(context.Background(), SubmitCommand{Code: code}, nil)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("code %q: expected ErrInvalidInput, got %v", code, err)
		}
	}
	if lookup.called != 0 || len(repo.appended) != 0 {
		t.Fatalf("expected no side effects, lookup=%d appended=%d", lookup.called, len(repo.appended))
	}
}

func TestSubmit_InvalidTimestamp(t *testing.T) {
	svc, repo, _, _ := newService()
	_, err := svc.Submit(context.Background(), SubmitCommand{Code: "X", Timestamp: "yesterday"}, nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(repo.appended) != 0 {
		t.Fatalf("expected no append")
	}
}

func TestSubmit_TimestampDefaultsToCaptureTime(t *testing.T) {
	svc, repo, _, _ := newService()
	if _, err := svc.Submit(context.Background(), SubmitCommand{Code: "X"}, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := repo.appended[0].Timestamp; got != "2024-05-01T10:00:00.000Z" {
		t.Fatalf("timestamp = %q", got)
	}

	if _, err := svc.Submit(context.Background(), SubmitCommand{Code: "X", Timestamp: "2024-04-30T23:59:59.123Z"}, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := repo.appended[1].Timestamp; got != "2024-04-30T23:59:59.123Z" {
		t.Fatalf("client timestamp not kept: %q", got)
	}
}

func TestSubmit_EnrichmentAbsentStillPersists(t *testing.T) {
	svc, repo, lookup, _ := newService()

	res, err := svc.Submit(context.Background(), SubmitCommand{Code: "4901234567894"}, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Description != nil || repo.appended[0].Description != nil {
		t.Fatalf("expected absent description")
	}

	lookup.err = errors.New("connection reset")
	res, err = svc.Submit(context.Background(), SubmitCommand{Code: "4901234567894"}, nil)
	if err != nil {
		t.Fatalf("lookup error must not fail the submit: %v", err)
	}
	if res.Description != nil || len(repo.appended) != 2 {
		t.Fatalf("expected persisted scan without description, got %+v", res)
	}
}

func TestSubmit_EnrichedDescription(t *testing.T) {
	svc, _, lookup, _ := newService()
	lookup.descs["12-345"] = "Widget"

	res, err := svc.Submit(context.Background(), SubmitCommand{Code: "12-345"}, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Description == nil || *res.Description != "Widget" {
		t.Fatalf("expected Widget, got %v", res.Description)
	}
	if res.Scan.Description == nil || *res.Scan.Description != "Widget" {
		t.Fatalf("stored scan missing description")
	}
}

func TestSubmit_StorageFailure(t *testing.T) {
	svc, repo, _, _ := newService()
	repo.err = errors.New("dial tcp: connection refused")
	events := &stubEvents{}
	svc.Events = events

	_, err := svc.Submit(context.Background(), SubmitCommand{Code: "X"}, nil)
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	svc.Wait()
	if len(events.published()) != 0 {
		t.Fatalf("no event expected for failed submit")
	}
}

func TestSubmit_PublishesEventBestEffort(t *testing.T) {
	svc, _, _, _ := newService()
	events := &stubEvents{err: errors.New("topic not found")}
	svc.Events = events

	res, err := svc.Submit(context.Background(), SubmitCommand{Code: "X", Source: domain.SourceBarcode, Continuous: true}, domain.NewDedupGate(0))
	if err != nil {
		t.Fatalf("publish failure must not fail the submit: %v", err)
	}
	svc.Wait()
	got := events.published()
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	ev := got[0]
	if ev.ID != res.Scan.ID || ev.Source != domain.SourceBarcode {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestLatest_CapsLimit(t *testing.T) {
	svc, _, _, _ := newService()
	for i := 0; i < 3; i++ {
		svc.Submit(context.Background(), SubmitCommand{Code: "X"}, nil)
	}
	list, err := svc.Latest(context.Background(), 0)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(list) != 3 || list[0].ID != 3 {
		t.Fatalf("expected newest first, got %d rows first id %d", len(list), list[0].ID)
	}
}

func TestSubmit_SlowPublisherDoesNotDelayResult(t *testing.T) {
	svc, repo, _, _ := newService()
	events := &stubEvents{release: make(chan struct{})}
	svc.Events = events

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), SubmitCommand{Code: "12-345"}, nil)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	case <-time.After(time.Second):
		close(events.release)
		t.Fatalf("submit waited for the event publisher")
	}
	if len(repo.appended) != 1 {
		t.Fatalf("expected the scan to be stored, got %d", len(repo.appended))
	}

	close(events.release)
	svc.Wait()
	if len(events.published()) != 1 {
		t.Fatalf("event not delivered after release")
	}
}

func TestSubmit_ISO8601TimestampsStoredAsGiven(t *testing.T) {
	for _, ts := range []string{
		"2024-01-15T10:30:00",
		"2024-01-15",
		"20240115T103000Z",
		"2024-01-15T10:30:00+09:00",
	} {
		t.Run(ts, func(t *testing.T) {
			svc, repo, _, _ := newService()
			if _, err := svc.Submit(context.Background(), SubmitCommand{Code: "X", Timestamp: ts}, nil); err != nil {
				t.Fatalf("submit: %v", err)
			}
			if len(repo.appended) != 1 || repo.appended[0].Timestamp != ts {
				t.Fatalf("timestamp not stored verbatim: %+v", repo.appended)
			}
		})
	}
}

func TestSubmit_StorageFailureDoesNotSuppressRetry(t *testing.T) {
	svc, repo, _, clock := newService()
	gate := domain.NewDedupGate(time.Second)
	ctx := context.Background()

	repo.err = errors.New("context canceled")
	if _, err := svc.Submit(ctx, SubmitCommand{Code: "A1", Continuous: true}, gate); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}

	repo.err = nil
	clock.Advance(100 * time.Millisecond)
	res, err := svc.Submit(ctx, SubmitCommand{Code: "A1", Continuous: true}, gate)
	if err != nil || res.Status != domain.StatusRecorded {
		t.Fatalf("retry after failed append must be recorded, got %v %+v", err, res)
	}
	if len(repo.appended) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(repo.appended))
	}
}

func TestSubmit_CodeLengthCountsCharacters(t *testing.T) {
	svc, repo, _, _ := newService()

	wide := strings.Repeat("品", domain.MaxCodeLength)
	if _, err := svc.Submit(context.Background(), SubmitCommand{Code: wide}, nil); err != nil {
		t.Fatalf("%d multibyte characters must be accepted: %v", domain.MaxCodeLength, err)
	}
	_, err := svc.Submit(context.Background(), SubmitCommand{Code: wide + "品"}, nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput above the limit, got %v", err)
	}
	if len(repo.appended) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(repo.appended))
	}
}
