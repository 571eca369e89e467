package utils

import (
	"sync"
	"time"
)

// Timer wraps time.Timer with a readable deadline so callers can
// tell how much time remains before extending it.
type Timer struct {
	timer    *time.Timer
	deadline time.Time
	mu       sync.Mutex
}

func NewTimer(d time.Duration) *Timer {
	return &Timer{
		timer:    time.NewTimer(d),
		deadline: time.Now().Add(d),
	}
}

func (t *Timer) C() <-chan time.Time {
	return t.timer.C
}

func (t *Timer) Reset(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer.Reset(d)
	t.deadline = time.Now().Add(d)
}

func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer.Stop()
}

// TimeRemaining method    returns the duration left until the timer fires
func (t *Timer) TimeRemaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	remaining := time.Until(t.deadline)
	if remaining < 0 {
		return 0
	}
	return remaining
}
