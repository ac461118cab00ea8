package storage

import (
	"context"
	"errors"
	"time"

	"github.com/happyprime/alertbar/pkg/model"
)

// ErrNotFound indicates an absent alert or severity level.
var ErrNotFound = errors.New("not found")

// Store defines the persistence layer for alert records and severity
// levels. It is the durable source of truth; the cache and the sweeper
// both read through it.
type Store interface {
	// SaveAlert creates or updates an alert record.
	SaveAlert(ctx context.Context, alert *model.AlertRecord) error

	// GetAlert retrieves a single alert by id.
	GetAlert(ctx context.Context, id string) (*model.AlertRecord, error)

	// DeleteAlert removes an alert record.
	DeleteAlert(ctx context.Context, id string) error

	// NextActiveAlert returns the alert with the soonest display-through
	// instant strictly after now, among alerts with a severity level
	// assigned. Ties break by id. Returns ErrNotFound when no alert
	// qualifies.
	NextActiveAlert(ctx context.Context, now time.Time) (*model.AlertRecord, error)

	// ListExpiring returns (id, display_through) pairs for every alert
	// with a non-empty display-through field.
	ListExpiring(ctx context.Context) ([]model.ExpiringAlert, error)

	// SetDisplayThrough writes the alert's display-through instant.
	SetDisplayThrough(ctx context.Context, id string, through time.Time) error

	// ClearDisplayThrough empties the alert's display-through field.
	ClearDisplayThrough(ctx context.Context, id string) error

	// SetAlertLevel assigns a severity level to an alert.
	SetAlertLevel(ctx context.Context, id, levelID string) error

	// ClearAlertLevel removes an alert's severity assignment.
	ClearAlertLevel(ctx context.Context, id string) error

	// CreateLevel inserts a severity level.
	CreateLevel(ctx context.Context, level *model.SeverityLevel) error

	// GetLevel retrieves a severity level by id.
	GetLevel(ctx context.Context, id string) (*model.SeverityLevel, error)

	// ListLevels returns all severity levels ordered by rank.
	ListLevels(ctx context.Context) ([]model.SeverityLevel, error)

	// DeleteLevel removes a severity level. In the same transaction it
	// clears the default pointer if it references the level, and clears
	// the assignment on any alert using it.
	DeleteLevel(ctx context.Context, id string) error

	// DefaultLevel returns the level the default pointer references, or
	// ErrNotFound when no default is configured.
	DefaultLevel(ctx context.Context) (*model.SeverityLevel, error)

	// SetDefaultLevel points the default pointer at the given level.
	// The write is transactional: a concurrent reader sees either the
	// previous default or the new one, never both or neither mid-call.
	SetDefaultLevel(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}
