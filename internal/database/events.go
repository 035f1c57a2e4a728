package database

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventTypeGearAssigned    EventType = "gear_assigned"
	EventTypeWebhookDelivery EventType = "webhook_delivery"
	EventTypeReauthRequired  EventType = "reauth_required"
)

// Event represents an entry in the domain event log
type Event struct {
	EventID    int64
	EventType  EventType
	AthleteID  int64
	ActivityID *int64
	Payload    json.RawMessage
	CreatedAt  time.Time
}

// InsertEvent appends an event to the log and returns its id.
func (d *DB) InsertEvent(eventType EventType, athleteID int64, activityID *int64, payload json.RawMessage) (int64, error) {
	query := `
		INSERT INTO events (event_type, athlete_id, activity_id, payload_json)
		VALUES (?, ?, ?, ?)
	`

	var payloadStr *string
	if payload != nil {
		s := string(payload)
		payloadStr = &s
	}

	result, err := d.conn.Exec(query, eventType, athleteID, activityID, payloadStr)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}

	eventID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get event_id: %w", err)
	}

	return eventID, nil
}

// GetEventsSince returns up to limit events with event_id greater than
// afterID, oldest first.
func (d *DB) GetEventsSince(afterID int64, limit int) ([]*Event, error) {
	query := `
		SELECT event_id, event_type, athlete_id, activity_id, payload_json, created_at
		FROM events
		WHERE event_id > ?
		ORDER BY event_id ASC
		LIMIT ?
	`

	rows, err := d.conn.Query(query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var ev Event
		var payload *string
		var createdAt int64
		if err := rows.Scan(&ev.EventID, &ev.EventType, &ev.AthleteID, &ev.ActivityID, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if payload != nil {
			ev.Payload = json.RawMessage(*payload)
		}
		ev.CreatedAt = time.Unix(createdAt, 0)
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

// GetEventCount returns the total number of logged events.
func (d *DB) GetEventCount() (int, error) {
	var count int
	if err := d.conn.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}
