package capture

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultIdleTimeout = 5 * time.Minute

// Manager keeps the open capture sessions and reaps the abandoned ones.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	submitter   Submitter
	opts        Options
	idleTimeout time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewManager(submitter Submitter, opts Options, idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	m := &Manager{
		sessions:    make(map[string]*Session),
		submitter:   submitter,
		opts:        opts,
		idleTimeout: idleTimeout,
		stop:        make(chan struct{}),
	}

	// Start cleanup goroutine to remove idle sessions
	m.wg.Add(1)
	go m.cleanup()

	return m
}

// Create starts a new session.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s := NewSession(uuid.New().String(), m.submitter, m.opts)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	log.Printf("capture session started id=%s", s.ID())
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove stops the session and forgets it.
func (m *Manager) Remove(id string) (Stats, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return Stats{}, ErrSessionNotFound
	}
	err := s.Stop()
	st := s.Stats()
	log.Printf("capture session stopped id=%s accepted=%d duplicates=%d failed=%d", id, st.Accepted, st.Duplicates, st.Failed)
	return st, err
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops every session and the reaper.
func (m *Manager) Close() {
	m.once.Do(func() {
		close(m.stop)
		m.wg.Wait()

		m.mu.Lock()
		all := m.sessions
		m.sessions = make(map[string]*Session)
		m.mu.Unlock()
		for id, s := range all {
			if err := s.Stop(); err != nil {
				log.Printf("capture session stop id=%s err=%v", id, err)
			}
		}
	})
}

// Reap stops sessions idle since before now-idleTimeout and returns how many.
func (m *Manager) Reap(now time.Time) int {
	var idle []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastActive()) > m.idleTimeout {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		if err := s.Stop(); err != nil {
			log.Printf("capture session reap id=%s err=%v", s.ID(), err)
		}
		log.Printf("capture session reaped id=%s", s.ID())
	}
	return len(idle)
}

func (m *Manager) cleanup() {
	defer m.wg.Done()
	interval := m.idleTimeout / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.Reap(now)
		}
	}
}
