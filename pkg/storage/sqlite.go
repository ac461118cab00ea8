package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/happyprime/alertbar/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements the Store interface using an SQLite database.
//
// Display-through instants are stored as decimal Unix-second strings in a
// TEXT column. A stored value that does not parse as an integer is treated
// as "no expiration" and logged as a data integrity warning rather than
// failing the read.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string, logger *slog.Logger) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) SaveAlert(ctx context.Context, alert *model.AlertRecord) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	alert.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, title, body, url, level_id, display_through, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   body = excluded.body,
		   url = excluded.url,
		   level_id = excluded.level_id,
		   display_through = excluded.display_through,
		   updated_at = excluded.updated_at`,
		alert.ID, alert.Title, alert.Body, alert.URL,
		alert.LevelID, encodeInstant(alert.DisplayThrough),
		alert.CreatedAt, alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save alert: %w", err)
	}
	return nil
}

func (s *SQLite) GetAlert(ctx context.Context, id string) (*model.AlertRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, body, url, level_id, display_through, created_at, updated_at
		 FROM alerts WHERE id = ?`, id)
	alert, err := s.scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("alert %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return alert, nil
}

func (s *SQLite) DeleteAlert(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("alert %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLite) NextActiveAlert(ctx context.Context, now time.Time) (*model.AlertRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, body, url, level_id, display_through, created_at, updated_at
		 FROM alerts
		 WHERE level_id IS NOT NULL
		   AND display_through IS NOT NULL AND display_through != ''
		   AND CAST(display_through AS INTEGER) > ?
		 ORDER BY CAST(display_through AS INTEGER) ASC, id ASC
		 LIMIT 1`, now.Unix())
	alert, err := s.scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("next active alert: %w", err)
	}
	return alert, nil
}

func (s *SQLite) ListExpiring(ctx context.Context) ([]model.ExpiringAlert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, display_through FROM alerts
		 WHERE display_through IS NOT NULL AND display_through != ''
		 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list expiring alerts: %w", err)
	}
	defer rows.Close()

	var expiring []model.ExpiringAlert
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan expiring alert: %w", err)
		}
		through, ok := s.decodeInstant(id, raw)
		if !ok {
			// Malformed values never expire, so they are not tracked.
			continue
		}
		expiring = append(expiring, model.ExpiringAlert{ID: id, DisplayThrough: through})
	}
	return expiring, rows.Err()
}

func (s *SQLite) SetDisplayThrough(ctx context.Context, id string, through time.Time) error {
	return s.updateAlertField(ctx, "set display through",
		`UPDATE alerts SET display_through = ?, updated_at = ? WHERE id = ?`,
		strconv.FormatInt(through.Unix(), 10), time.Now().UTC(), id)
}

func (s *SQLite) ClearDisplayThrough(ctx context.Context, id string) error {
	return s.updateAlertField(ctx, "clear display through",
		`UPDATE alerts SET display_through = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
}

func (s *SQLite) SetAlertLevel(ctx context.Context, id, levelID string) error {
	return s.updateAlertField(ctx, "set alert level",
		`UPDATE alerts SET level_id = ?, updated_at = ? WHERE id = ?`,
		levelID, time.Now().UTC(), id)
}

func (s *SQLite) ClearAlertLevel(ctx context.Context, id string) error {
	return s.updateAlertField(ctx, "clear alert level",
		`UPDATE alerts SET level_id = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
}

func (s *SQLite) CreateLevel(ctx context.Context, level *model.SeverityLevel) error {
	if level.ID == "" {
		level.ID = uuid.New().String()
	}
	if level.CreatedAt.IsZero() {
		level.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO severity_levels (id, label, rank, created_at) VALUES (?, ?, ?, ?)`,
		level.ID, level.Label, level.Rank, level.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create level: %w", err)
	}
	return nil
}

func (s *SQLite) GetLevel(ctx context.Context, id string) (*model.SeverityLevel, error) {
	var level model.SeverityLevel
	var isDefault int
	err := s.db.QueryRowContext(ctx,
		`SELECT sl.id, sl.label, sl.rank, sl.created_at,
		        EXISTS (SELECT 1 FROM default_level d WHERE d.level_id = sl.id)
		 FROM severity_levels sl WHERE sl.id = ?`, id,
	).Scan(&level.ID, &level.Label, &level.Rank, &level.CreatedAt, &isDefault)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("level %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get level: %w", err)
	}
	level.IsDefault = isDefault == 1
	return &level, nil
}

func (s *SQLite) ListLevels(ctx context.Context) ([]model.SeverityLevel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sl.id, sl.label, sl.rank, sl.created_at,
		        EXISTS (SELECT 1 FROM default_level d WHERE d.level_id = sl.id)
		 FROM severity_levels sl ORDER BY sl.rank, sl.id`)
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	defer rows.Close()

	var levels []model.SeverityLevel
	for rows.Next() {
		var level model.SeverityLevel
		var isDefault int
		if err := rows.Scan(&level.ID, &level.Label, &level.Rank, &level.CreatedAt, &isDefault); err != nil {
			return nil, fmt.Errorf("scan level row: %w", err)
		}
		level.IsDefault = isDefault == 1
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

func (s *SQLite) DeleteLevel(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete level: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE alerts SET level_id = NULL, updated_at = ? WHERE level_id = ?`,
		time.Now().UTC(), id); err != nil {
		return fmt.Errorf("clear level assignments: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM default_level WHERE level_id = ?`, id); err != nil {
		return fmt.Errorf("clear default pointer: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM severity_levels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete level: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("level %q: %w", id, ErrNotFound)
	}

	return tx.Commit()
}

func (s *SQLite) DefaultLevel(ctx context.Context) (*model.SeverityLevel, error) {
	var level model.SeverityLevel
	err := s.db.QueryRowContext(ctx,
		`SELECT sl.id, sl.label, sl.rank, sl.created_at
		 FROM severity_levels sl
		 JOIN default_level d ON d.level_id = sl.id`,
	).Scan(&level.ID, &level.Label, &level.Rank, &level.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("default level: %w", err)
	}
	level.IsDefault = true
	return &level, nil
}

func (s *SQLite) SetDefaultLevel(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set default: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM severity_levels WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("level %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check level: %w", err)
	}

	// Single-row upsert: readers see the old default or the new one,
	// never two at once.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO default_level (id, level_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET level_id = excluded.level_id`, id); err != nil {
		return fmt.Errorf("set default pointer: %w", err)
	}

	return tx.Commit()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLite) scanAlert(row scanner) (*model.AlertRecord, error) {
	var alert model.AlertRecord
	var levelID sql.NullString
	var rawThrough sql.NullString
	err := row.Scan(&alert.ID, &alert.Title, &alert.Body, &alert.URL,
		&levelID, &rawThrough, &alert.CreatedAt, &alert.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if levelID.Valid {
		alert.LevelID = &levelID.String
	}
	if rawThrough.Valid && rawThrough.String != "" {
		if through, ok := s.decodeInstant(alert.ID, rawThrough.String); ok {
			alert.DisplayThrough = &through
		}
	}
	return &alert, nil
}

func (s *SQLite) updateAlertField(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// encodeInstant converts an optional instant to its stored form.
func encodeInstant(t *time.Time) any {
	if t == nil {
		return nil
	}
	return strconv.FormatInt(t.Unix(), 10)
}

// decodeInstant parses a stored display-through value. Malformed values
// are reported as a data integrity warning and treated as "no expiration".
func (s *SQLite) decodeInstant(alertID, raw string) (time.Time, bool) {
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn("malformed display_through, treating as no expiration",
			"alert_id", alertID, "value", raw)
		return time.Time{}, false
	}
	return time.Unix(sec, 0).UTC(), true
}
