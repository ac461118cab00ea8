package expiry_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/happyprime/alertbar/pkg/expiry"
)

// fakeBackend records one-shot arms without firing them.
type fakeBackend struct {
	mu        sync.Mutex
	scheduled map[string]time.Time
	arms      int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{scheduled: make(map[string]time.Time)}
}

func (b *fakeBackend) ScheduleAt(at time.Time, task string, _ func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.scheduled[task]; ok {
		return
	}
	b.scheduled[task] = at
	b.arms++
}

func (b *fakeBackend) Scheduled(task string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.scheduled[task]
	return ok
}

func (b *fakeBackend) fire(task string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.scheduled, task)
}

func newTestScheduler(set *expiry.TrackedSet, backend expiry.OneShot, now time.Time) *expiry.Scheduler {
	s := expiry.NewScheduler(set, backend, 30*time.Second, func() {}, nil)
	s.Now = func() time.Time { return now }
	return s
}

func TestScheduler_ArmsWhenExpirationWithinWindow(t *testing.T) {
	set := expiry.NewTrackedSet()
	backend := newFakeBackend()
	now := time.Now()
	s := newTestScheduler(set, backend, now)

	set.Record("a", now.Add(10*time.Second))
	s.OnRequestEnd()

	assert.True(t, backend.Scheduled(expiry.TaskSweep))
	assert.True(t, backend.scheduled[expiry.TaskSweep].Equal(now.Add(30*time.Second)))
}

func TestScheduler_ArmsForAlreadyPassedExpiration(t *testing.T) {
	set := expiry.NewTrackedSet()
	backend := newFakeBackend()
	now := time.Now()
	s := newTestScheduler(set, backend, now)

	set.Record("a", now.Add(-time.Minute))
	s.OnRequestEnd()

	assert.True(t, backend.Scheduled(expiry.TaskSweep))
}

func TestScheduler_SkipsWhenNothingWithinWindow(t *testing.T) {
	set := expiry.NewTrackedSet()
	backend := newFakeBackend()
	now := time.Now()
	s := newTestScheduler(set, backend, now)

	set.Record("a", now.Add(time.Hour))
	s.OnRequestEnd()

	assert.False(t, backend.Scheduled(expiry.TaskSweep))
}

func TestScheduler_SkipsWhenNothingTracked(t *testing.T) {
	set := expiry.NewTrackedSet()
	backend := newFakeBackend()
	s := newTestScheduler(set, backend, time.Now())

	s.OnRequestEnd()

	assert.False(t, backend.Scheduled(expiry.TaskSweep))
}

func TestScheduler_NeverDoubleSchedules(t *testing.T) {
	set := expiry.NewTrackedSet()
	backend := newFakeBackend()
	now := time.Now()
	s := newTestScheduler(set, backend, now)

	set.Record("a", now.Add(5*time.Second))
	s.OnRequestEnd()
	s.OnRequestEnd()
	s.OnRequestEnd()

	assert.Equal(t, 1, backend.arms)
}

func TestScheduler_RearmsAfterSweepFires(t *testing.T) {
	set := expiry.NewTrackedSet()
	backend := newFakeBackend()
	now := time.Now()
	s := newTestScheduler(set, backend, now)

	set.Record("a", now.Add(5*time.Second))
	s.OnRequestEnd()
	assert.Equal(t, 1, backend.arms)

	// Sweep fired but "a" is still due (e.g. the author pushed the
	// instant out and back); the next request-end arms again.
	backend.fire(expiry.TaskSweep)
	s.OnRequestEnd()
	assert.Equal(t, 2, backend.arms)
}

func TestScheduler_RecordAndUntrack(t *testing.T) {
	set := expiry.NewTrackedSet()
	backend := newFakeBackend()
	now := time.Now()
	s := newTestScheduler(set, backend, now)

	s.RecordExpiration("a", now.Add(time.Second))
	assert.Equal(t, 1, set.Len())

	s.Untrack("a")
	assert.Equal(t, 0, set.Len())

	s.OnRequestEnd()
	assert.False(t, backend.Scheduled(expiry.TaskSweep))
}

func TestTimerBackend_FiresOnce(t *testing.T) {
	backend := expiry.NewTimerBackend()
	defer backend.Stop()

	fired := make(chan struct{}, 2)
	backend.ScheduleAt(time.Now().Add(10*time.Millisecond), "task", func() {
		fired <- struct{}{}
	})
	// Second arm for the same task is ignored while pending.
	backend.ScheduleAt(time.Now().Add(10*time.Millisecond), "task", func() {
		fired <- struct{}{}
	})
	assert.True(t, backend.Scheduled("task"))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("one-shot never fired")
	}

	// Pending state clears after firing.
	assert.Eventually(t, func() bool { return !backend.Scheduled("task") },
		time.Second, 5*time.Millisecond)

	select {
	case <-fired:
		t.Fatal("one-shot fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}
