package expiry

import (
	"sync"
	"time"
)

// OneShot schedules a named one-shot callback at an instant. The host
// environment provides the real implementation; TimerBackend covers the
// single-process serve deployment.
type OneShot interface {
	// ScheduleAt arms a one-shot for task at the given instant. A task
	// that is already pending is left alone.
	ScheduleAt(at time.Time, task string, fn func())

	// Scheduled reports whether a one-shot for task is pending.
	Scheduled(task string) bool
}

// TimerBackend is an in-process OneShot built on time.AfterFunc.
type TimerBackend struct {
	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewTimerBackend creates an in-process one-shot backend.
func NewTimerBackend() *TimerBackend {
	return &TimerBackend{pending: make(map[string]*time.Timer)}
}

func (b *TimerBackend) ScheduleAt(at time.Time, task string, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[task]; ok {
		return
	}
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	b.pending[task] = time.AfterFunc(d, func() {
		b.mu.Lock()
		delete(b.pending, task)
		b.mu.Unlock()
		fn()
	})
}

func (b *TimerBackend) Scheduled(task string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[task]
	return ok
}

// Stop cancels all pending one-shots. Used on shutdown.
func (b *TimerBackend) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for task, timer := range b.pending {
		timer.Stop()
		delete(b.pending, task)
	}
}
