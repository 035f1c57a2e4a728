package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"strava-home-bridge/internal/database"
)

// EventsHandler serves the domain event log for downstream consumers.
type EventsHandler struct {
	db     *database.DB
	apiKey string
	logger *slog.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(db *database.DB, apiKey string) *EventsHandler {
	return &EventsHandler{
		db:     db,
		apiKey: apiKey,
		logger: slog.Default(),
	}
}

// HandleEvents handles GET /events.
// Query parameters:
//   - cursor: last event_id seen (default: 0)
//   - limit: maximum events to return (default: 100, max: 1000)
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+h.apiKey {
		h.logger.Warn("unauthorized events request")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query()

	cursor := int64(0)
	if cursorStr := query.Get("cursor"); cursorStr != "" {
		var err error
		cursor, err = strconv.ParseInt(cursorStr, 10, 64)
		if err != nil {
			http.Error(w, "Invalid cursor parameter", http.StatusBadRequest)
			return
		}
	}

	limit := 100
	if limitStr := query.Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 1000 {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
	}

	events, err := h.db.GetEventsSince(cursor, limit)
	if err != nil {
		h.logger.Error("failed to query events", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	type eventResponse struct {
		EventID    int64           `json:"event_id"`
		EventType  string          `json:"event_type"`
		AthleteID  int64           `json:"athlete_id"`
		ActivityID *int64          `json:"activity_id,omitempty"`
		Payload    json.RawMessage `json:"payload,omitempty"`
		CreatedAt  int64           `json:"created_at"`
	}

	response := struct {
		Events []eventResponse `json:"events"`
		Cursor int64           `json:"cursor"`
	}{Events: make([]eventResponse, 0, len(events)), Cursor: cursor}

	for _, ev := range events {
		response.Events = append(response.Events, eventResponse{
			EventID:    ev.EventID,
			EventType:  string(ev.EventType),
			AthleteID:  ev.AthleteID,
			ActivityID: ev.ActivityID,
			Payload:    ev.Payload,
			CreatedAt:  ev.CreatedAt.Unix(),
		})
		response.Cursor = ev.EventID
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode events response", "error", err)
	}
}
