package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"strava-home-bridge/internal/database"
)

// memStore is an in-memory TokenStore.
type memStore struct {
	mu     sync.Mutex
	tokens map[int64][]byte
	saves  int
}

func newMemStore() *memStore {
	return &memStore{tokens: make(map[int64][]byte)}
}

func (s *memStore) SaveToken(athleteID int64, tokenJSON []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[athleteID] = tokenJSON
	s.saves++
	return nil
}

func (s *memStore) LoadToken(athleteID int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.tokens[athleteID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return raw, nil
}

func seedToken(t *testing.T, store *memStore, athleteID int64, token *oauth2.Token) {
	t.Helper()
	raw, err := json.Marshal(token)
	if err != nil {
		t.Fatalf("Failed to encode token: %v", err)
	}
	if err := store.SaveToken(athleteID, raw); err != nil {
		t.Fatalf("Failed to seed token: %v", err)
	}
	store.mu.Lock()
	store.saves = 0
	store.mu.Unlock()
}

func TestSession_UsesStoredToken(t *testing.T) {
	store := newMemStore()
	seedToken(t, store, 12345, &oauth2.Token{
		AccessToken: "valid_token",
		Expiry:      time.Now().Add(time.Hour),
	})

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer valid_token" {
			t.Errorf("Expected bearer token on request, got %q", got)
		}
		w.Write([]byte(`{}`))
	}))
	defer api.Close()

	cfg := NewOAuthConfig("id", "secret")
	session, err := Session(context.Background(), cfg, store, 12345, nil)
	if err != nil {
		t.Fatalf("Failed to build session: %v", err)
	}

	resp, err := session.Get(api.URL)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	// The valid token needed no refresh, so nothing was re-persisted.
	store.mu.Lock()
	saves := store.saves
	store.mu.Unlock()
	if saves != 0 {
		t.Errorf("Expected no token persistence for a valid token, got %d saves", saves)
	}
}

func TestSession_RefreshesAndPersistsExpiredToken(t *testing.T) {
	store := newMemStore()
	seedToken(t, store, 12345, &oauth2.Token{
		AccessToken:  "expired_token",
		RefreshToken: "refresh_token",
		Expiry:       time.Now().Add(-time.Hour),
	})

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("Failed to parse token request: %v", err)
		}
		if r.FormValue("grant_type") != "refresh_token" {
			t.Errorf("Expected grant_type refresh_token, got %q", r.FormValue("grant_type"))
		}
		if r.FormValue("refresh_token") != "refresh_token" {
			t.Errorf("Expected the stored refresh token, got %q", r.FormValue("refresh_token"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "fresh_token", "refresh_token": "next_refresh", "token_type": "Bearer", "expires_in": 21600}`))
	}))
	defer tokenServer.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer fresh_token" {
			t.Errorf("Expected the refreshed token on request, got %q", got)
		}
		w.Write([]byte(`{}`))
	}))
	defer api.Close()

	cfg := NewOAuthConfig("id", "secret")
	cfg.Endpoint.TokenURL = tokenServer.URL

	session, err := Session(context.Background(), cfg, store, 12345, nil)
	if err != nil {
		t.Fatalf("Failed to build session: %v", err)
	}

	resp, err := session.Get(api.URL)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	// The refreshed token was written back to the store.
	raw, err := store.LoadToken(12345)
	if err != nil {
		t.Fatalf("Failed to load persisted token: %v", err)
	}
	var persisted oauth2.Token
	if err := json.Unmarshal(raw, &persisted); err != nil {
		t.Fatalf("Failed to decode persisted token: %v", err)
	}
	if persisted.AccessToken != "fresh_token" {
		t.Errorf("Expected 'fresh_token' persisted, got %q", persisted.AccessToken)
	}
	if persisted.RefreshToken != "next_refresh" {
		t.Errorf("Expected the rotated refresh token persisted, got %q", persisted.RefreshToken)
	}
}

func TestSession_NoStoredToken(t *testing.T) {
	store := newMemStore()
	cfg := NewOAuthConfig("id", "secret")

	_, err := Session(context.Background(), cfg, store, 12345, nil)
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("Expected the store miss to propagate, got %v", err)
	}
}
