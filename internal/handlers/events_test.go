package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"strava-home-bridge/internal/database"
)

func setupEventsTest(t *testing.T, apiKey string) (*EventsHandler, *database.DB) {
	t.Helper()

	db, err := database.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewEventsHandler(db, apiKey), db
}

type eventsResponse struct {
	Events []struct {
		EventID   int64  `json:"event_id"`
		EventType string `json:"event_type"`
		AthleteID int64  `json:"athlete_id"`
	} `json:"events"`
	Cursor int64 `json:"cursor"`
}

func TestHandleEvents_CursorPagination(t *testing.T) {
	handler, db := setupEventsTest(t, "")

	for i := 0; i < 5; i++ {
		if _, err := db.InsertEvent(database.EventTypeGearAssigned, 12345, nil, nil); err != nil {
			t.Fatalf("Failed to insert event: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/events?limit=2", nil)
	w := httptest.NewRecorder()
	handler.HandleEvents(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var page eventsResponse
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(page.Events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(page.Events))
	}
	if page.Cursor != page.Events[1].EventID {
		t.Errorf("Expected cursor to point at the last event, got %d", page.Cursor)
	}

	// Second page resumes after the cursor.
	req = httptest.NewRequest(http.MethodGet, "/events?limit=10&cursor=2", nil)
	w = httptest.NewRecorder()
	handler.HandleEvents(w, req)

	page = eventsResponse{}
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(page.Events) != 3 {
		t.Fatalf("Expected 3 remaining events, got %d", len(page.Events))
	}
	if page.Events[0].EventID != 3 {
		t.Errorf("Expected the page to start after the cursor, got event %d", page.Events[0].EventID)
	}
}

func TestHandleEvents_RequiresAPIKey(t *testing.T) {
	handler, _ := setupEventsTest(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	handler.HandleEvents(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without a key, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	handler.HandleEvents(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 with the key, got %d", w.Code)
	}
}

func TestHandleEvents_InvalidParams(t *testing.T) {
	handler, _ := setupEventsTest(t, "")

	for _, target := range []string{"/events?cursor=abc", "/events?limit=0", "/events?limit=5000"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()
		handler.HandleEvents(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400 for %q, got %d", target, w.Code)
		}
	}
}
