// Package auth supplies the authenticated HTTP session the rest of the
// bridge depends on: an *http.Client whose requests carry a valid bearer
// token, refreshed and re-persisted transparently.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

const (
	authURL  = "https://www.strava.com/oauth/authorize"
	tokenURL = "https://www.strava.com/oauth/token"
)

// TokenStore persists OAuth tokens between restarts.
type TokenStore interface {
	SaveToken(athleteID int64, tokenJSON []byte) error
	LoadToken(athleteID int64) ([]byte, error)
}

// NewOAuthConfig builds the Strava oauth2 configuration.
func NewOAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}
}

// persistingTokenSource wraps an oauth2.TokenSource and writes every
// refreshed token back to the store.
type persistingTokenSource struct {
	mu        sync.Mutex
	base      oauth2.TokenSource
	store     TokenStore
	athleteID int64
	last      *oauth2.Token
	logger    *slog.Logger
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	if s.last == nil || token.AccessToken != s.last.AccessToken {
		encoded, err := json.Marshal(token)
		if err == nil {
			err = s.store.SaveToken(s.athleteID, encoded)
		}
		if err != nil {
			// The refreshed token still works for this process;
			// a restart will have to refresh again.
			s.logger.Error("failed to persist refreshed token", "athlete_id", s.athleteID, "error", err)
		}
		s.last = token
	}

	return token, nil
}

// Session returns an authenticated *http.Client for one athlete, built
// from the token stored for them. The session refreshes expired tokens
// and persists replacements.
func Session(ctx context.Context, cfg *oauth2.Config, store TokenStore, athleteID int64, logger *slog.Logger) (*http.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	raw, err := store.LoadToken(athleteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load token for athlete %d: %w", athleteID, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("failed to decode stored token for athlete %d: %w", athleteID, err)
	}

	source := &persistingTokenSource{
		base:      cfg.TokenSource(ctx, &token),
		store:     store,
		athleteID: athleteID,
		last:      &token,
		logger:    logger,
	}

	return oauth2.NewClient(ctx, source), nil
}
