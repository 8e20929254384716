package agent

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum spacing between two forwarded reports
// of the same violation type.
const DefaultCooldown = 30 * time.Second

// Throttle rate-limits violation reports per type. A report inside the
// cooldown window is dropped silently: not queued, not merged. State is
// local to one candidate's client.
type Throttle struct {
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewThrottle(window time.Duration) *Throttle {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Throttle{
		window:   window,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// Allow reports whether a violation of the given type may be forwarded
// now, and if so starts that type's cooldown window.
func (t *Throttle) Allow(violationType string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.lastSent[violationType]; ok && now.Sub(last) < t.window {
		return false
	}
	t.lastSent[violationType] = now
	return true
}
