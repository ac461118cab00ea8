// Package banner resolves which alert is currently active and serves it
// through a short-lived, invalidation-aware snapshot cache.
package banner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/happyprime/alertbar/pkg/cache"
	"github.com/happyprime/alertbar/pkg/levels"
	"github.com/happyprime/alertbar/pkg/model"
	"github.com/happyprime/alertbar/pkg/storage"
)

// snapshotKey is the cache key for the active-alert snapshot. The
// numeric suffix is a schema tag: bump it whenever the snapshot payload
// shape changes so a deploy never reads a stale-shaped entry.
const snapshotKey = "alertbar:snapshot:002"

// ErrLookup indicates a transient failure resolving the active alert.
// Callers degrade to "no alert" rather than failing the page.
var ErrLookup = errors.New("transient lookup failure")

// ExpirationTracker receives display-through writes so the tracked
// expiration set stays in step with the durable store.
// *expiry.Scheduler satisfies it.
type ExpirationTracker interface {
	RecordExpiration(alertID string, through time.Time)
	Untrack(alertID string)
}

// ScheduleUpdate carries the authoring write path's changes to an
// alert's expiration and severity assignment.
type ScheduleUpdate struct {
	DisplayThrough      *time.Time
	ClearDisplayThrough bool
	LevelID             *string
	ClearLevel          bool
}

// Service is the alert lifecycle core: snapshot reads, cache
// invalidation, and the authoring write path.
type Service struct {
	store    storage.Store
	cache    cache.Cache
	registry *levels.Registry
	tracker  ExpirationTracker
	hook     SuppressionHook
	logger   *slog.Logger

	// Now is the clock; replaceable in tests.
	Now func() time.Time
}

// NewService creates the banner service. tracker may be nil for
// read-only wiring (CLI banner display).
func NewService(store storage.Store, c cache.Cache, registry *levels.Registry, tracker ExpirationTracker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		cache:    c,
		registry: registry,
		tracker:  tracker,
		logger:   logger,
		Now:      time.Now,
	}
}

// SetSuppressionHook installs the display-suppression override.
func (s *Service) SetSuppressionHook(hook SuppressionHook) {
	s.hook = hook
}

// Read returns the current snapshot, from cache when it is present and
// not past its boundary, otherwise by resolving against the store and
// repopulating the cache.
func (s *Service) Read(ctx context.Context) (model.Snapshot, error) {
	if v, ok := s.cache.Get(snapshotKey); ok {
		if snap, ok := v.(model.Snapshot); ok {
			if snap.ExpiresAt.IsZero() || s.Now().Before(snap.ExpiresAt) {
				return snap, nil
			}
		}
	}

	snap, err := s.resolve(ctx)
	if err != nil {
		return model.NoneSnapshot(), err
	}

	// The TTL only lets the cache janitor reclaim the entry; the
	// ExpiresAt check above is what keeps a stale snapshot from being
	// served.
	ttl := cache.NoExpiration
	if !snap.ExpiresAt.IsZero() {
		ttl = snap.ExpiresAt.Sub(s.Now())
	}
	s.cache.Set(snapshotKey, snap, ttl)

	return snap, nil
}

// Invalidate forces the next Read to recompute. Called on every write
// that could affect the currently active alert.
func (s *Service) Invalidate() {
	s.cache.Delete(snapshotKey)
}

// GetActiveAlertForDisplay returns the snapshot the rendering layer
// should show on the current page. Lowest-tier alerts display only on
// the home page unless the suppression hook decides otherwise; a
// suppressed alert stays cached and tracked, it is only hidden from
// this render.
func (s *Service) GetActiveAlertForDisplay(ctx context.Context, currentPageIsHome bool) model.Snapshot {
	snap, err := s.Read(ctx)
	if err != nil {
		s.logger.Warn("banner lookup degraded to no alert", "error", err)
		return model.NoneSnapshot()
	}
	if snap.None {
		return snap
	}

	suppressed := snap.LowestTier && !currentPageIsHome
	if s.hook != nil {
		suppressed = s.hook(suppressed, snap)
	}
	if suppressed {
		return model.NoneSnapshot()
	}
	return snap
}

// SaveAlert writes a full alert record, keeps the tracked expiration
// set in step, and invalidates the snapshot.
func (s *Service) SaveAlert(ctx context.Context, alert *model.AlertRecord) error {
	if err := s.store.SaveAlert(ctx, alert); err != nil {
		return err
	}
	if s.tracker != nil {
		if alert.DisplayThrough != nil {
			s.tracker.RecordExpiration(alert.ID, *alert.DisplayThrough)
		} else {
			s.tracker.Untrack(alert.ID)
		}
	}
	s.Invalidate()
	return nil
}

// ScheduleAlert applies the authoring write path: expiration and
// severity changes land in the durable store and the tracked set in the
// same logical step, then the snapshot cache is invalidated.
func (s *Service) ScheduleAlert(ctx context.Context, alertID string, update ScheduleUpdate) error {
	changed := false

	switch {
	case update.DisplayThrough != nil:
		if err := s.store.SetDisplayThrough(ctx, alertID, *update.DisplayThrough); err != nil {
			return fmt.Errorf("set display through: %w", err)
		}
		if s.tracker != nil {
			s.tracker.RecordExpiration(alertID, *update.DisplayThrough)
		}
		changed = true
	case update.ClearDisplayThrough:
		if err := s.store.ClearDisplayThrough(ctx, alertID); err != nil {
			return fmt.Errorf("clear display through: %w", err)
		}
		if s.tracker != nil {
			s.tracker.Untrack(alertID)
		}
		changed = true
	}

	switch {
	case update.LevelID != nil:
		if err := s.store.SetAlertLevel(ctx, alertID, *update.LevelID); err != nil {
			return fmt.Errorf("set alert level: %w", err)
		}
		changed = true
	case update.ClearLevel:
		if err := s.store.ClearAlertLevel(ctx, alertID); err != nil {
			return fmt.Errorf("clear alert level: %w", err)
		}
		changed = true
	}

	if changed {
		s.Invalidate()
	}
	return nil
}

// DeleteAlert removes an alert, its tracked expiration, and the cached
// snapshot it may be backing.
func (s *Service) DeleteAlert(ctx context.Context, alertID string) error {
	if err := s.store.DeleteAlert(ctx, alertID); err != nil {
		return err
	}
	if s.tracker != nil {
		s.tracker.Untrack(alertID)
	}
	s.Invalidate()
	return nil
}

// resolve queries the store for the alert with the soonest strictly
// future display-through instant among level-assigned alerts, and
// builds its snapshot. No qualifying alert yields the none-snapshot
// with the never sentinel.
func (s *Service) resolve(ctx context.Context) (model.Snapshot, error) {
	alert, err := s.store.NextActiveAlert(ctx, s.Now())
	if errors.Is(err, storage.ErrNotFound) {
		return model.NoneSnapshot(), nil
	}
	if err != nil {
		s.logger.Error("active alert lookup failed", "error", err)
		return model.Snapshot{}, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	if alert.DisplayThrough == nil {
		// Malformed stored instant: the record never expires on its
		// own and is not eligible for the banner.
		return model.NoneSnapshot(), nil
	}

	snap := model.Snapshot{
		AlertID:   alert.ID,
		Heading:   alert.Title,
		Content:   alert.Body,
		URL:       alert.URL,
		ExpiresAt: *alert.DisplayThrough,
	}

	if alert.LevelID != nil {
		level, err := s.registry.Get(ctx, *alert.LevelID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return model.Snapshot{}, fmt.Errorf("%w: %w", ErrLookup, err)
		}
		if level != nil {
			snap.LevelID = level.ID
			snap.LevelLabel = level.Label

			lowest, ok, err := s.registry.LowestRank(ctx)
			if err != nil {
				return model.Snapshot{}, fmt.Errorf("%w: %w", ErrLookup, err)
			}
			snap.LowestTier = ok && level.Rank == lowest
		}
	}

	return snap, nil
}
