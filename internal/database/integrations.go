package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Integration is the persisted config record for one connected athlete.
type Integration struct {
	AthleteID             int64
	CallbackURL           string
	WebhookSubscriptionID int64 // 0 when no subscription is recorded
	GrantedScope          string
	Options               json.RawMessage
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("database: record not found")

// UpsertIntegration creates or updates the integration record for an athlete.
func (d *DB) UpsertIntegration(athleteID int64, grantedScope string) error {
	query := `
		INSERT INTO integrations (athlete_id, granted_scope, updated_at)
		VALUES (?, ?, unixepoch())
		ON CONFLICT(athlete_id) DO UPDATE SET
			granted_scope = excluded.granted_scope,
			updated_at = unixepoch()
	`
	if _, err := d.conn.Exec(query, athleteID, grantedScope); err != nil {
		return fmt.Errorf("failed to upsert integration: %w", err)
	}
	return nil
}

// GetIntegration returns the integration record for an athlete.
func (d *DB) GetIntegration(athleteID int64) (*Integration, error) {
	query := `
		SELECT athlete_id, COALESCE(callback_url, ''),
		       COALESCE(webhook_subscription_id, 0),
		       granted_scope, COALESCE(options_json, ''),
		       created_at, updated_at
		FROM integrations WHERE athlete_id = ?
	`

	var rec Integration
	var options string
	var createdAt, updatedAt int64
	err := d.conn.QueryRow(query, athleteID).Scan(
		&rec.AthleteID, &rec.CallbackURL, &rec.WebhookSubscriptionID,
		&rec.GrantedScope, &options, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	if options != "" {
		rec.Options = json.RawMessage(options)
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)

	return &rec, nil
}

// GetIntegrationBySubscription returns the integration holding the given
// webhook subscription id.
func (d *DB) GetIntegrationBySubscription(subscriptionID int64) (*Integration, error) {
	query := `SELECT athlete_id FROM integrations WHERE webhook_subscription_id = ?`

	var athleteID int64
	err := d.conn.QueryRow(query, subscriptionID).Scan(&athleteID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up integration by subscription: %w", err)
	}
	return d.GetIntegration(athleteID)
}

// ListIntegrations returns every integration record.
func (d *DB) ListIntegrations() ([]*Integration, error) {
	query := `SELECT athlete_id FROM integrations ORDER BY athlete_id`
	rows, err := d.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan integration: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate integrations: %w", err)
	}

	records := make([]*Integration, 0, len(ids))
	for _, id := range ids {
		rec, err := d.GetIntegration(id)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

// SetWebhookSubscription records the currently reconciled subscription id
// and callback URL, overwriting any prior value.
func (d *DB) SetWebhookSubscription(athleteID, subscriptionID int64, callbackURL string) error {
	query := `
		UPDATE integrations
		SET webhook_subscription_id = ?, callback_url = ?, updated_at = unixepoch()
		WHERE athlete_id = ?
	`
	result, err := d.conn.Exec(query, subscriptionID, callbackURL, athleteID)
	if err != nil {
		return fmt.Errorf("failed to set webhook subscription: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetIntegrationOptions replaces the per-integration options document.
func (d *DB) SetIntegrationOptions(athleteID int64, options json.RawMessage) error {
	query := `
		UPDATE integrations
		SET options_json = ?, updated_at = unixepoch()
		WHERE athlete_id = ?
	`
	result, err := d.conn.Exec(query, string(options), athleteID)
	if err != nil {
		return fmt.Errorf("failed to set integration options: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
