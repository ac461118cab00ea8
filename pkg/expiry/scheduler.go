package expiry

import (
	"log/slog"
	"time"
)

// TaskSweep names the one-shot that triggers the expiry sweep.
const TaskSweep = "alertbar_expiry_sweep"

// DefaultLookahead is the window ahead of now within which a tracked
// expiration arms a sweep.
const DefaultLookahead = 30 * time.Second

// Scheduler decides when a sweep is due. It is best-effort and
// request-driven: OnRequestEnd runs at the end of each request and arms
// at most one pending one-shot. On a site with no traffic an expired
// alert stays displayed until the next request arrives; that is an
// accepted trade-off of the lazy design, not a bug.
type Scheduler struct {
	set       *TrackedSet
	backend   OneShot
	lookahead time.Duration
	runSweep  func()
	logger    *slog.Logger

	// Now is the clock; replaceable in tests.
	Now func() time.Time
}

// NewScheduler creates a scheduler. runSweep is invoked when an armed
// one-shot fires.
func NewScheduler(set *TrackedSet, backend OneShot, lookahead time.Duration, runSweep func(), logger *slog.Logger) *Scheduler {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		set:       set,
		backend:   backend,
		lookahead: lookahead,
		runSweep:  runSweep,
		logger:    logger,
		Now:       time.Now,
	}
}

// RecordExpiration upserts an alert's display-through instant into the
// tracked set. Called synchronously on every write to the field.
func (s *Scheduler) RecordExpiration(alertID string, through time.Time) {
	s.set.Record(alertID, through)
}

// Untrack removes an alert from the tracked set, on clear or delete.
func (s *Scheduler) Untrack(alertID string) {
	s.set.Remove(alertID)
}

// OnRequestEnd arms a sweep one-shot when any tracked expiration falls
// within the lookahead window. Idempotent: with a sweep already pending
// it returns immediately, so overlapping requests never double-schedule.
func (s *Scheduler) OnRequestEnd() {
	if s.backend.Scheduled(TaskSweep) {
		return
	}

	soonest, ok := s.set.Soonest()
	if !ok {
		return
	}

	now := s.Now()
	due := now.Add(s.lookahead)
	if soonest.After(due) {
		return
	}

	s.backend.ScheduleAt(due, TaskSweep, s.runSweep)
	s.logger.Debug("sweep scheduled", "at", due, "soonest_expiration", soonest)
}
