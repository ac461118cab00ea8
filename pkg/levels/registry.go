// Package levels manages the set of severity levels and the single
// "default level" invariant: at most one level is the default at any
// time, tracked by a dedicated single-row pointer rather than a flag
// scan across level records.
package levels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/happyprime/alertbar/pkg/model"
	"github.com/happyprime/alertbar/pkg/storage"
)

// ErrDefaultWrite indicates a failed default-level write. It is
// administrator-facing: swallowing it could leave the registry in a
// state that violates the single-default invariant.
var ErrDefaultWrite = errors.New("default level write failed")

// Registry manages severity levels on top of the durable store.
type Registry struct {
	store  storage.Store
	logger *slog.Logger
}

// NewRegistry creates a severity level registry.
func NewRegistry(store storage.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, logger: logger}
}

// Create inserts a new severity level.
func (r *Registry) Create(ctx context.Context, level *model.SeverityLevel) error {
	return r.store.CreateLevel(ctx, level)
}

// Get retrieves a level by id.
func (r *Registry) Get(ctx context.Context, id string) (*model.SeverityLevel, error) {
	return r.store.GetLevel(ctx, id)
}

// List returns all levels ordered by rank.
func (r *Registry) List(ctx context.Context) ([]model.SeverityLevel, error) {
	return r.store.ListLevels(ctx)
}

// Default returns the current default level, or nil when none is
// configured. "No default" is a normal state, not an error: the sweeper
// responds to it by removing severity assignments instead of demoting.
func (r *Registry) Default(ctx context.Context) (*model.SeverityLevel, error) {
	level, err := r.store.DefaultLevel(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("default level: %w", err)
	}
	return level, nil
}

// SetDefault points the default at the given level. The underlying
// write is a transactional single-row update, so a concurrent reader
// never observes two defaults or a half-cleared state.
func (r *Registry) SetDefault(ctx context.Context, id string) error {
	if err := r.store.SetDefaultLevel(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrDefaultWrite, err)
	}
	return nil
}

// Delete removes a level. If it was the default, the registry reports
// no default afterward until one is explicitly set; alerts assigned to
// it become inert.
func (r *Registry) Delete(ctx context.Context, id string) error {
	return r.store.DeleteLevel(ctx, id)
}

// LowestRank returns the minimum rank across all registered levels.
// The second return is false when no levels exist.
func (r *Registry) LowestRank(ctx context.Context) (int, bool, error) {
	all, err := r.store.ListLevels(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("list levels: %w", err)
	}
	if len(all) == 0 {
		return 0, false, nil
	}
	min := all[0].Rank
	for _, level := range all[1:] {
		if level.Rank < min {
			min = level.Rank
		}
	}
	return min, true, nil
}
