package capture

import (
	"context"
	"sync"
	"time"

	domain "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/capture"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/metrics"
)

// Mailbox is a single-slot FrameSource: Publish overwrites an unread frame
// instead of queueing it, so the sampler always reads the newest one.
type Mailbox struct {
	mu     sync.Mutex
	frame  *domain.Frame
	seq    uint64
	drops  uint64
	closed bool

	notify chan struct{}
	done   chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Publish stores f as the newest frame. Returns false after Close.
func (m *Mailbox) Publish(f domain.Frame) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	if m.frame != nil {
		m.drops++
		metrics.CaptureFramesDropped.Inc()
	}
	m.seq++
	f.Seq = m.seq
	if f.CapturedAt.IsZero() {
		f.CapturedAt = time.Now()
	}
	m.frame = &f
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until an unread frame is available, ctx is done or the mailbox
// is closed.
func (m *Mailbox) Next(ctx context.Context) (domain.Frame, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return domain.Frame{}, domain.ErrSourceClosed
		}
		if f := m.frame; f != nil {
			m.frame = nil
			m.mu.Unlock()
			return *f, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.Frame{}, ctx.Err()
		case <-m.done:
			return domain.Frame{}, domain.ErrSourceClosed
		case <-m.notify:
		}
	}
}

// Close drops any unread frame. Safe to call more than once.
func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.frame = nil
	close(m.done)
	return nil
}

// Drops returns how many frames were overwritten before being read.
func (m *Mailbox) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
