package strava

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestSubscriptionClient(handler http.Handler) (*SubscriptionClient, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewSubscriptionClient(server.Client(), "test_client_id", "test_secret", nil)
	client.SetBaseURL(server.URL)
	return client, server
}

func TestSubscriptionList(t *testing.T) {
	client, server := newTestSubscriptionClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/push_subscriptions" {
			t.Errorf("Expected path /push_subscriptions, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("client_id") != "test_client_id" || q.Get("client_secret") != "test_secret" {
			t.Errorf("Expected credentials in query, got %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 9, "application_id": 77, "callback_url": "https://example.com/api/strava/webhook"}]`))
	}))
	defer server.Close()

	subs, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("Failed to list subscriptions: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("Expected 1 subscription, got %d", len(subs))
	}
	if subs[0].ID != 9 {
		t.Errorf("Expected subscription id 9, got %d", subs[0].ID)
	}
}

func TestSubscriptionCreate(t *testing.T) {
	client, server := newTestSubscriptionClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("Failed to parse form: %v", err)
		}
		if r.FormValue("callback_url") != "https://example.com/api/strava/webhook" {
			t.Errorf("Unexpected callback_url: %q", r.FormValue("callback_url"))
		}
		if r.FormValue("verify_token") != "tok" {
			t.Errorf("Unexpected verify_token: %q", r.FormValue("verify_token"))
		}
		if r.FormValue("client_secret") != "test_secret" {
			t.Errorf("Expected credentials in form body")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 31}`))
	}))
	defer server.Close()

	sub, err := client.Create(context.Background(), "https://example.com/api/strava/webhook", "tok")
	if err != nil {
		t.Fatalf("Failed to create subscription: %v", err)
	}
	if sub.ID != 31 {
		t.Errorf("Expected subscription id 31, got %d", sub.ID)
	}
}

func TestSubscriptionDelete_NotFound(t *testing.T) {
	client, server := newTestSubscriptionClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	err := client.Delete(context.Background(), 123)

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected NotFoundError for 404, got %v", err)
	}
}

func TestSubscriptionDelete_NoContent(t *testing.T) {
	client, server := newTestSubscriptionClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("Expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := client.Delete(context.Background(), 123); err != nil {
		t.Fatalf("Expected delete to succeed, got %v", err)
	}
}
