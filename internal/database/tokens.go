package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// SaveToken stores the serialized OAuth token for an athlete.
func (d *DB) SaveToken(athleteID int64, tokenJSON []byte) error {
	query := `
		INSERT INTO tokens (athlete_id, token_json, updated_at)
		VALUES (?, ?, unixepoch())
		ON CONFLICT(athlete_id) DO UPDATE SET
			token_json = excluded.token_json,
			updated_at = unixepoch()
	`
	if _, err := d.conn.Exec(query, athleteID, string(tokenJSON)); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// LoadToken returns the serialized OAuth token for an athlete, or
// ErrNotFound when the athlete has never authorized.
func (d *DB) LoadToken(athleteID int64) ([]byte, error) {
	var tokenJSON string
	err := d.conn.QueryRow(`SELECT token_json FROM tokens WHERE athlete_id = ?`, athleteID).Scan(&tokenJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	return []byte(tokenJSON), nil
}
