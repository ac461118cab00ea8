package model

import "time"

// SeverityLevel categorizes an alert and carries the single-instance
// "default" flag managed by the level registry.
type SeverityLevel struct {
	ID        string    `json:"id" db:"id"`
	Label     string    `json:"label" db:"label"`
	Rank      int       `json:"rank" db:"rank"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AlertRecord is a single alert content item. A nil LevelID means the
// alert is inert and never shown; a nil DisplayThrough means the alert
// does not expire.
type AlertRecord struct {
	ID             string     `json:"id" db:"id"`
	Title          string     `json:"title" db:"title"`
	Body           string     `json:"body" db:"body"`
	URL            string     `json:"url" db:"url"`
	LevelID        *string    `json:"level_id,omitempty" db:"level_id"`
	DisplayThrough *time.Time `json:"display_through,omitempty" db:"display_through"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Expired reports whether the record's display window has passed at t.
// Records without a DisplayThrough never expire.
func (a *AlertRecord) Expired(t time.Time) bool {
	return a.DisplayThrough != nil && !t.Before(*a.DisplayThrough)
}

// Snapshot is the cached, render-ready representation of the currently
// active alert. None set means "no active alert". A zero ExpiresAt means
// the snapshot never expires on its own and is only replaced by explicit
// invalidation.
type Snapshot struct {
	None       bool      `json:"none,omitempty"`
	AlertID    string    `json:"alert_id,omitempty"`
	Heading    string    `json:"heading,omitempty"`
	Content    string    `json:"content,omitempty"`
	URL        string    `json:"url,omitempty"`
	LevelID    string    `json:"level_id,omitempty"`
	LevelLabel string    `json:"level,omitempty"`
	LowestTier bool      `json:"lowest_tier,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// NoneSnapshot returns the snapshot representing "no active alert".
func NoneSnapshot() Snapshot {
	return Snapshot{None: true}
}

// ExpiringAlert pairs an alert id with its display-through instant; the
// expiration tracker and the sweeper operate on these pairs.
type ExpiringAlert struct {
	ID             string    `json:"id"`
	DisplayThrough time.Time `json:"display_through"`
}
