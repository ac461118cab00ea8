package expiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/happyprime/alertbar/pkg/model"
	"github.com/happyprime/alertbar/pkg/storage"
)

// DefaultSource yields the current default severity level, nil when
// none is configured. *levels.Registry satisfies it.
type DefaultSource interface {
	Default(ctx context.Context) (*model.SeverityLevel, error)
}

// Invalidator clears the active-alert cache. *banner.Service satisfies it.
type Invalidator interface {
	Invalidate()
}

// Sweeper performs the expiry sweep: expired alerts lose their
// display-through field and are demoted to the default severity level
// (or to no level when none is configured), and the tracked expiration
// set is rebuilt from the store.
//
// Sweep reads the durable store directly, never the cache, and is safe
// to run concurrently with itself: each invocation re-reads the full
// current truth and converges to the same end state. It is also
// idempotent; a second run with no intervening writes changes nothing.
type Sweeper struct {
	store      storage.Store
	defaults   DefaultSource
	set        *TrackedSet
	invalidate Invalidator
	logger     *slog.Logger

	// Now is the clock; replaceable in tests.
	Now func() time.Time
}

// NewSweeper creates a sweeper. invalidate may be nil when no cache is
// wired (CLI one-off sweeps).
func NewSweeper(store storage.Store, defaults DefaultSource, set *TrackedSet, invalidate Invalidator, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:      store,
		defaults:   defaults,
		set:        set,
		invalidate: invalidate,
		logger:     logger,
		Now:        time.Now,
	}
}

// Sweep scans all alerts with a display-through field, demotes the
// expired ones, and atomically replaces the tracked set with the
// still-pending remainder. On a store failure it aborts without
// touching the tracked set and relies on the next scheduled attempt.
func (s *Sweeper) Sweep(ctx context.Context) error {
	expiring, err := s.store.ListExpiring(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "stage", "list", "error", err)
		return fmt.Errorf("list expiring alerts: %w", err)
	}

	def, err := s.defaults.Default(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "stage", "default level", "error", err)
		return fmt.Errorf("default level: %w", err)
	}

	now := s.Now()
	rebuilt := make(map[string]time.Time, len(expiring))
	demoted := 0

	for _, entry := range expiring {
		if now.Before(entry.DisplayThrough) {
			rebuilt[entry.ID] = entry.DisplayThrough
			continue
		}

		if err := s.demote(ctx, entry.ID, def); err != nil {
			// Record deleted mid-sweep: nothing left to demote.
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			s.logger.Error("sweep failed", "stage", "demote", "alert_id", entry.ID, "error", err)
			return err
		}
		demoted++
	}

	s.set.Replace(rebuilt)

	if demoted > 0 {
		if s.invalidate != nil {
			s.invalidate.Invalidate()
		}
		s.logger.Info("sweep demoted expired alerts", "demoted", demoted, "still_pending", len(rebuilt))
	}

	return nil
}

func (s *Sweeper) demote(ctx context.Context, alertID string, def *model.SeverityLevel) error {
	if err := s.store.ClearDisplayThrough(ctx, alertID); err != nil {
		return fmt.Errorf("clear display through: %w", err)
	}
	if def != nil {
		if err := s.store.SetAlertLevel(ctx, alertID, def.ID); err != nil {
			return fmt.Errorf("demote to default level: %w", err)
		}
		return nil
	}
	if err := s.store.ClearAlertLevel(ctx, alertID); err != nil {
		return fmt.Errorf("remove level assignment: %w", err)
	}
	return nil
}
