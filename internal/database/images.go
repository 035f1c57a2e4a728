package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// SaveImageCache stores the serialized image rotation blob for an athlete.
func (d *DB) SaveImageCache(athleteID int64, version int, data []byte) error {
	query := `
		INSERT INTO image_cache (athlete_id, version, data, updated_at)
		VALUES (?, ?, ?, unixepoch())
		ON CONFLICT(athlete_id) DO UPDATE SET
			version = excluded.version,
			data = excluded.data,
			updated_at = unixepoch()
	`
	if _, err := d.conn.Exec(query, athleteID, version, data); err != nil {
		return fmt.Errorf("failed to save image cache: %w", err)
	}
	return nil
}

// LoadImageCache returns the stored blob and its format version, or
// ErrNotFound when the athlete has no persisted rotation state.
func (d *DB) LoadImageCache(athleteID int64) (version int, data []byte, err error) {
	query := `SELECT version, data FROM image_cache WHERE athlete_id = ?`
	err = d.conn.QueryRow(query, athleteID).Scan(&version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, ErrNotFound
	}
	if err != nil {
		return 0, nil, fmt.Errorf("failed to load image cache: %w", err)
	}
	return version, data, nil
}
