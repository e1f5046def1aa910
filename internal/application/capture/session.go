package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	appscans "github.com/plusishibba-design/barcode-scanner-cloud/internal/application/scans"
	domain "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/capture"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/scans"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/metrics"
)

const DefaultQueueSize = 16

var (
	ErrSessionClosed    = errors.New("capture session closed")
	ErrSessionNotFound  = errors.New("capture session not found")
	ErrFramesNotAllowed = errors.New("session does not accept pushed frames")
)

// Submitter is the scan submission pipeline as seen by a session.
type Submitter interface {
	Submit(ctx context.Context, cmd appscans.SubmitCommand, gate *scans.DedupGate) (appscans.SubmitResult, error)
}

// Event is one decoded value travelling from a producer to the session
// consumer. reply is nil for fire-and-forget producers such as the sampler.
type Event struct {
	ctx       context.Context
	Code      string
	Timestamp string
	Source    scans.Source
	reply     chan Outcome
}

type Outcome struct {
	Result appscans.SubmitResult
	Err    error
}

// Options configure a session.
type Options struct {
	DedupWindow time.Duration
	OCRInterval time.Duration
	QueueSize   int
	Recognizer  domain.Recognizer
	// Camera acquires the frame source when the session starts. When nil the
	// session uses a Mailbox fed through PushFrame.
	Camera func(ctx context.Context) (domain.FrameSource, error)
}

// Stats snapshot of one session
type Stats struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"startedAt"`
	LastActive    time.Time `json:"lastActive"`
	Accepted      int       `json:"accepted"`
	Duplicates    int       `json:"duplicates"`
	Failed        int       `json:"failed"`
	Recognitions  int       `json:"recognitions"`
	NoMatch       int       `json:"noMatch"`
	FramesDropped uint64    `json:"framesDropped"`
	LastCode      string    `json:"lastCode,omitempty"`
	LastError     string    `json:"lastError,omitempty"`
	Closed        bool      `json:"closed"`
}

// Session is one capture session: it owns the dedup gate, the frame source
// and a single consumer goroutine that handles events one at a time.
type Session struct {
	id        string
	submitter Submitter
	opts      Options
	gate      *scans.DedupGate
	events    chan Event

	source  domain.FrameSource
	mailbox *Mailbox

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	stopOnce sync.Once
	stopErr  error

	mu    sync.Mutex
	stats Stats
}

func NewSession(id string, submitter Submitter, opts Options) *Session {
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Session{
		id:        id,
		submitter: submitter,
		opts:      opts,
		gate:      scans.NewDedupGate(opts.DedupWindow),
		events:    make(chan Event, size),
		done:      make(chan struct{}),
		stats:     Stats{ID: id},
	}
}

func (s *Session) ID() string { return s.id }

// Start acquires the frame source and spawns the consumer (and the OCR
// sampler when a recognizer is configured). The session lives until Stop,
// independent of the caller's request; ctx only bounds the acquisition.
func (s *Session) Start(ctx context.Context) (err error) {
	if s.opts.Camera != nil {
		s.source, err = s.opts.Camera(ctx)
		if err != nil {
			return fmt.Errorf("acquire camera: %w", err)
		}
	} else {
		s.mailbox = NewMailbox()
		s.source = s.mailbox
	}

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	now := time.Now()
	s.mu.Lock()
	s.stats.StartedAt = now
	s.stats.LastActive = now
	s.mu.Unlock()
	metrics.CaptureSessionsActive.Inc()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.done)
		s.consume()
	}()

	if s.opts.Recognizer != nil {
		sampler := &Sampler{
			Source:     s.source,
			Recognizer: s.opts.Recognizer,
			Interval:   s.opts.OCRInterval,
			OnSample:   s.recordSample,
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := sampler.Run(s.ctx, s.events); err != nil {
				log.Printf("capture session=%s sampler stopped err=%v", s.id, err)
			}
		}()
	}
	return nil
}

// Stop cancels the session, waits for its goroutines and releases the frame
// source. Safe to call more than once.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			// never started
			close(s.done)
			return
		}
		s.cancel()
		s.wg.Wait()
		if s.source != nil {
			s.stopErr = s.source.Close()
		}
		s.mu.Lock()
		s.stats.Closed = true
		s.mu.Unlock()
		metrics.CaptureSessionsActive.Dec()
	})
	return s.stopErr
}

// Decode submits one barcode read through the session and waits for its
// outcome.
func (s *Session) Decode(ctx context.Context, code, timestamp string) (appscans.SubmitResult, error) {
	if s.ctx == nil || s.ctx.Err() != nil {
		return appscans.SubmitResult{}, ErrSessionClosed
	}
	ev := Event{
		ctx:       ctx,
		Code:      code,
		Timestamp: timestamp,
		Source:    scans.SourceBarcode,
		reply:     make(chan Outcome, 1),
	}

	select {
	case s.events <- ev:
	case <-ctx.Done():
		return appscans.SubmitResult{}, ctx.Err()
	case <-s.ctx.Done():
		return appscans.SubmitResult{}, ErrSessionClosed
	}

	select {
	case out := <-ev.reply:
		return out.Result, out.Err
	case <-ctx.Done():
		return appscans.SubmitResult{}, ctx.Err()
	case <-s.done:
		select {
		case out := <-ev.reply:
			return out.Result, out.Err
		default:
			return appscans.SubmitResult{}, ErrSessionClosed
		}
	}
}

// PushFrame hands a camera frame to the OCR sampler. Older unread frames are
// dropped.
func (s *Session) PushFrame(f domain.Frame) error {
	if s.mailbox == nil {
		return ErrFramesNotAllowed
	}
	if !s.mailbox.Publish(f) {
		return ErrSessionClosed
	}
	s.touch()
	return nil
}

// Stats returns a snapshot.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	st := s.stats
	s.mu.Unlock()
	if s.mailbox != nil {
		st.FramesDropped = s.mailbox.Drops()
	}
	return st
}

// LastActive is used by the manager to reap abandoned sessions.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.LastActive
}

func (s *Session) consume() {
	for {
		select {
		case <-s.ctx.Done():
			s.drain()
			return
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

// drain answers whatever is still queued after stop.
func (s *Session) drain() {
	for {
		select {
		case ev := <-s.events:
			if ev.reply != nil {
				ev.reply <- Outcome{Err: ErrSessionClosed}
			}
		default:
			return
		}
	}
}

func (s *Session) handle(ev Event) {
	ctx := ev.ctx
	if ctx == nil {
		ctx = s.ctx
	}
	res, err := s.submitter.Submit(ctx, appscans.SubmitCommand{
		Code:       ev.Code,
		Timestamp:  ev.Timestamp,
		Continuous: true,
		Source:     ev.Source,
	}, s.gate)

	s.mu.Lock()
	s.stats.LastActive = time.Now()
	switch {
	case err != nil:
		s.stats.Failed++
		s.stats.LastError = err.Error()
	case res.Status == scans.StatusDuplicate:
		s.stats.Duplicates++
	default:
		s.stats.Accepted++
		s.stats.LastCode = res.Scan.Code
	}
	s.mu.Unlock()

	if ev.reply != nil {
		ev.reply <- Outcome{Result: res, Err: err}
	}
}

func (s *Session) recordSample(r SampleResult) {
	if r.Discarded {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Recognitions++
	if r.Err != nil {
		s.stats.LastError = r.Err.Error()
		return
	}
	if !r.Matched {
		s.stats.NoMatch++
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.stats.LastActive = time.Now()
	s.mu.Unlock()
}
