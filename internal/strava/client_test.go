package strava

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(server.Client(), nil)
	client.SetBaseURL(server.URL)
	return client, server
}

func TestGetAthlete_NormalizesGear(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/athlete" {
			t.Errorf("Expected path /athlete, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": 12345,
			"firstname": "Test",
			"lastname": "Athlete",
			"shoes": [
				{"id": "shoe-1", "name": "Pegasus", "distance": 1234.5},
				{"name": "No-id shoe", "distance": "not a number"}
			],
			"bikes": [
				{"id": "b1", "name": "Gravel", "distance": "2500", "frame_type": 3}
			]
		}`))
	}))
	defer server.Close()

	profile, err := client.GetAthlete(context.Background())
	if err != nil {
		t.Fatalf("Failed to fetch athlete: %v", err)
	}

	if profile.ID != 12345 {
		t.Errorf("Expected athlete id 12345, got %d", profile.ID)
	}
	if len(profile.Shoes) != 2 {
		t.Fatalf("Expected 2 shoes, got %d", len(profile.Shoes))
	}

	if profile.Shoes[0].DistanceM != 1234 {
		t.Errorf("Expected shoe distance 1234, got %d", profile.Shoes[0].DistanceM)
	}
	if !strings.HasSuffix(profile.Shoes[0].StravaURL, "/gear/shoe-1") {
		t.Errorf("Expected gear URL ending in /gear/shoe-1, got %q", profile.Shoes[0].StravaURL)
	}

	// Garbage distance coerces to 0, missing id leaves the URL empty
	if profile.Shoes[1].DistanceM != 0 {
		t.Errorf("Expected coerced distance 0, got %d", profile.Shoes[1].DistanceM)
	}
	if profile.Shoes[1].StravaURL != "" {
		t.Errorf("Expected empty URL without an id, got %q", profile.Shoes[1].StravaURL)
	}

	if len(profile.Bikes) != 1 {
		t.Fatalf("Expected 1 bike, got %d", len(profile.Bikes))
	}
	if profile.Bikes[0].FrameType != 3 {
		t.Errorf("Expected frame type 3, got %d", profile.Bikes[0].FrameType)
	}
}

func TestRequest_RateLimited(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "600,30000")
		w.Header().Set("X-RateLimit-Usage", "600,25000")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := client.GetAthlete(context.Background())

	var rateLimited *RateLimitError
	if !errors.As(err, &rateLimited) {
		t.Fatalf("Expected RateLimitError, got %v", err)
	}
	if !rateLimited.Info.NearingLimit() {
		t.Error("Expected the attached snapshot to report nearing the limit")
	}

	// The tracker records headers from error responses too
	last := client.LastRateLimit()
	if !last.LimitsKnown || last.ShortLimit != 600 {
		t.Errorf("Expected tracked short limit 600, got %+v", last)
	}
	if last.ShortUsage != 600 || last.LongUsage != 25000 {
		t.Errorf("Expected tracked usage (600, 25000), got %+v", last)
	}
}

func TestRequest_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"unauthorized", http.StatusUnauthorized, func(t *testing.T, err error) {
			var unauthorized *UnauthorizedError
			if !errors.As(err, &unauthorized) {
				t.Fatalf("Expected UnauthorizedError, got %v", err)
			}
			if unauthorized.Status != http.StatusUnauthorized {
				t.Errorf("Expected status 401, got %d", unauthorized.Status)
			}
		}},
		{"forbidden", http.StatusForbidden, func(t *testing.T, err error) {
			var unauthorized *UnauthorizedError
			if !errors.As(err, &unauthorized) {
				t.Fatalf("Expected UnauthorizedError, got %v", err)
			}
		}},
		{"not found", http.StatusNotFound, func(t *testing.T, err error) {
			var notFound *NotFoundError
			if !errors.As(err, &notFound) {
				t.Fatalf("Expected NotFoundError, got %v", err)
			}
		}},
		{"server error", http.StatusInternalServerError, func(t *testing.T, err error) {
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected APIError, got %v", err)
			}
			if apiErr.Status != http.StatusInternalServerError {
				t.Errorf("Expected status 500, got %d", apiErr.Status)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := client.GetAthlete(context.Background())
			if err == nil {
				t.Fatal("Expected an error")
			}
			tt.check(t, err)
		})
	}
}

func TestRequest_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	client := NewClient(server.Client(), nil)
	client.SetBaseURL(server.URL)
	server.Close() // Connection refused from here on

	_, err := client.GetAthlete(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError for transport failure, got %v", err)
	}
	if apiErr.Status != 0 {
		t.Errorf("Transport failures carry no HTTP status, got %d", apiErr.Status)
	}
	if apiErr.Unwrap() == nil {
		t.Error("Expected the transport cause to be wrapped")
	}
}

func TestUpdateActivityGear(t *testing.T) {
	var calls atomic.Int64
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPut {
			t.Errorf("Expected PUT, got %s", r.Method)
		}
		if r.URL.Path != "/activities/42" {
			t.Errorf("Expected path /activities/42, got %s", r.URL.Path)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode request body: %v", err)
		}
		if body["gear_id"] != "shoe-1" {
			t.Errorf("Expected gear_id 'shoe-1', got %q", body["gear_id"])
		}
		if len(body) != 1 {
			t.Errorf("Expected a partial update with only gear_id, got %v", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 42, "gear_id": "shoe-1"}`))
	}))
	defer server.Close()

	activity, err := client.UpdateActivityGear(context.Background(), 42, "shoe-1")
	if err != nil {
		t.Fatalf("Failed to update gear: %v", err)
	}
	if activity.GearID != "shoe-1" {
		t.Errorf("Expected gear id 'shoe-1', got %q", activity.GearID)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected exactly 1 request, got %d", calls.Load())
	}
}

func TestUpdateActivityGear_EmptyGearID(t *testing.T) {
	var calls atomic.Int64
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	_, err := client.UpdateActivityGear(context.Background(), 42, "")

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("Empty gear id must be rejected without a network call, saw %d requests", calls.Load())
	}
}

func TestUpdateActivityGear_EmptyResponseBody(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	activity, err := client.UpdateActivityGear(context.Background(), 42, "shoe-1")
	if err != nil {
		t.Fatalf("An empty 200 body should decode as an empty object, got %v", err)
	}
	if activity.ID != 0 {
		t.Errorf("Expected zero-valued activity, got %+v", activity)
	}
}

func TestListActivities(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("per_page"); got != "200" {
			t.Errorf("Expected per_page=200, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 1, "name": "Morning Run", "type": "Run"},
			{"id": 2, "name": "Lunch Ride", "type": "Ride"}
		]`))
	}))
	defer server.Close()

	activities, err := client.ListActivities(context.Background(), 200)
	if err != nil {
		t.Fatalf("Failed to list activities: %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("Expected 2 activities, got %d", len(activities))
	}
	if activities[1].Type != "Ride" {
		t.Errorf("Expected type 'Ride', got %q", activities[1].Type)
	}
}

func TestGetAthleteStats(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/athletes/12345/stats" {
			t.Errorf("Expected path /athletes/12345/stats, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"biggest_ride_distance": 150000,
			"ytd_run_totals": {"count": 10, "distance": 80000, "moving_time": 28800}
		}`))
	}))
	defer server.Close()

	stats, err := client.GetAthleteStats(context.Background(), 12345)
	if err != nil {
		t.Fatalf("Failed to fetch stats: %v", err)
	}
	if stats.BiggestRideDistance != 150000 {
		t.Errorf("Expected biggest ride distance 150000, got %f", stats.BiggestRideDistance)
	}
	if stats.YTDRunTotals.Count != 10 {
		t.Errorf("Expected 10 YTD runs, got %d", stats.YTDRunTotals.Count)
	}
}

func TestGetActivityPhotos(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/activities/7/photos" {
			t.Errorf("Expected path /activities/7/photos, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("size"); got != "640" {
			t.Errorf("Expected size=640, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"activity_id": 7, "urls": {"640": "https://example.com/a.jpg"}}]`))
	}))
	defer server.Close()

	photos, err := client.GetActivityPhotos(context.Background(), 7, 640)
	if err != nil {
		t.Fatalf("Failed to fetch photos: %v", err)
	}
	if len(photos) != 1 {
		t.Fatalf("Expected 1 photo, got %d", len(photos))
	}
	if photos[0].URLs["640"] != "https://example.com/a.jpg" {
		t.Errorf("Unexpected photo URL map: %v", photos[0].URLs)
	}
}
