package scans

import "time"

// DefaultDedupWindow is how long an identical continuous read is suppressed.
const DefaultDedupWindow = time.Second

// DedupGate suppresses identical continuous-capture reads arriving inside the
// window. One gate belongs to one capture session and is not safe for
// concurrent use.
type DedupGate struct {
	window time.Duration

	lastCode string
	lastAt   time.Time
	seen     bool
}

func NewDedupGate(window time.Duration) *DedupGate {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &DedupGate{window: window}
}

// Allow reports whether code should go through. Discrete entries always pass
// and leave the memory untouched. A nil gate allows everything.
func (g *DedupGate) Allow(code string, continuous bool, now time.Time) bool {
	if g == nil || !continuous {
		return true
	}
	if g.seen && g.lastCode == code && now.Sub(g.lastAt) < g.window {
		return false
	}
	g.lastCode = code
	g.lastAt = now
	g.seen = true
	return true
}

// Reset forgets the last accepted read.
func (g *DedupGate) Reset() {
	if g == nil {
		return
	}
	g.lastCode = ""
	g.lastAt = time.Time{}
	g.seen = false
}
