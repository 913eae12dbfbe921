package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Preference is the stored preference row for one profile.
type Preference struct {
	Profile string `json:"profile"`

	// Mode is empty until a mode has been saved for the profile
	Mode      string     `json:"mode,omitempty"`
	LastPoll  *time.Time `json:"last_poll,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PreferenceRepository provides methods for preference database operations.
type PreferenceRepository struct {
	db  *DB
	now func() time.Time
}

// NewPreferenceRepository creates a new preference repository.
func NewPreferenceRepository(db *DB) *PreferenceRepository {
	return &PreferenceRepository{db: db, now: time.Now}
}

// Get retrieves the preferences for profile.
// Returns ErrNotFound if nothing has been saved for it yet.
func (r *PreferenceRepository) Get(ctx context.Context, profile string) (*Preference, error) {
	query := r.db.Rebind(`
		SELECT profile, mode, last_poll_ms, updated_ms
		FROM preferences
		WHERE profile = ?
	`)

	var (
		pref      Preference
		mode      sql.NullString
		lastPoll  sql.NullInt64
		updatedMS int64
	)
	err := r.db.QueryRowContext(ctx, query, profile).Scan(
		&pref.Profile,
		&mode,
		&lastPoll,
		&updatedMS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences for %q: %w", profile, err)
	}

	pref.Mode = mode.String
	if lastPoll.Valid {
		t := time.UnixMilli(lastPoll.Int64)
		pref.LastPoll = &t
	}
	pref.UpdatedAt = time.UnixMilli(updatedMS)

	return &pref, nil
}

// SaveMode upserts the selection mode for profile.
func (r *PreferenceRepository) SaveMode(ctx context.Context, profile, mode string) error {
	query := r.db.Rebind(`
		INSERT INTO preferences (profile, mode, updated_ms)
		VALUES (?, ?, ?)
		ON CONFLICT (profile) DO UPDATE SET
			mode = excluded.mode,
			updated_ms = excluded.updated_ms
	`)

	if _, err := r.db.ExecContext(ctx, query, profile, mode, r.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save mode for %q: %w", profile, err)
	}
	return nil
}

// SaveLastPoll upserts the time of the last successful feed poll for profile.
// A row created here leaves the mode unset.
func (r *PreferenceRepository) SaveLastPoll(ctx context.Context, profile string, at time.Time) error {
	query := r.db.Rebind(`
		INSERT INTO preferences (profile, last_poll_ms, updated_ms)
		VALUES (?, ?, ?)
		ON CONFLICT (profile) DO UPDATE SET
			last_poll_ms = excluded.last_poll_ms,
			updated_ms = excluded.updated_ms
	`)

	if _, err := r.db.ExecContext(ctx, query, profile, at.UnixMilli(), r.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save last poll for %q: %w", profile, err)
	}
	return nil
}

// Delete removes the preferences for profile.
// Returns ErrNotFound if there was nothing to delete.
func (r *PreferenceRepository) Delete(ctx context.Context, profile string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM preferences WHERE profile = ?`), profile)
	if err != nil {
		return fmt.Errorf("failed to delete preferences for %q: %w", profile, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
