package agent

import (
	"sync"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Throttle suppresses repeats of the same event type within a window.
type Throttle struct {
	mu     sync.Mutex
	window time.Duration
	last   map[model.EventType]time.Time
}

func NewThrottle(window time.Duration) *Throttle {
	return &Throttle{window: window, last: make(map[model.EventType]time.Time)}
}

// ShouldEmit reports whether eventType may be sent at now and, if so,
// records now as its last emission.
func (t *Throttle) ShouldEmit(eventType model.EventType, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[eventType]; ok && now.Sub(last) < t.window {
		return false
	}
	t.last[eventType] = now
	return true
}
