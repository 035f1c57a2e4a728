package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"strava-home-bridge/internal/metrics"
)

// Subscription is a webhook push subscription as known to Strava.
type Subscription struct {
	ID            int64  `json:"id"`
	ApplicationID int64  `json:"application_id"`
	CallbackURL   string `json:"callback_url"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// SubscriptionClient manages webhook push subscriptions. Subscriptions are
// scoped to application credentials rather than an athlete token, so this
// is a sibling of Client over the same transport conventions.
type SubscriptionClient struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	logger       *slog.Logger
}

// NewSubscriptionClient creates a subscription client for one set of
// application credentials.
func NewSubscriptionClient(session *http.Client, clientID, clientSecret string, logger *slog.Logger) *SubscriptionClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionClient{
		httpClient:   session,
		baseURL:      DefaultBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger,
	}
}

// SetBaseURL overrides the API root, for tests.
func (c *SubscriptionClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

func (c *SubscriptionClient) credentials() url.Values {
	return url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
}

// List returns every active subscription for these credentials.
func (c *SubscriptionClient) List(ctx context.Context) ([]Subscription, error) {
	reqURL := c.baseURL + "/push_subscriptions?" + c.credentials().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.StravaAPIRequestsTotal.WithLabelValues(metrics.OpListSubscriptions, metrics.StatusTransportError).Inc()
		return nil, &APIError{cause: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	metrics.StravaAPIRequestsTotal.WithLabelValues(metrics.OpListSubscriptions, fmt.Sprint(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var subscriptions []Subscription
	if err := json.Unmarshal(body, &subscriptions); err != nil {
		return nil, fmt.Errorf("failed to decode subscriptions response: %w", err)
	}

	return subscriptions, nil
}

// Create registers a new subscription pointing at callbackURL.
func (c *SubscriptionClient) Create(ctx context.Context, callbackURL, verifyToken string) (*Subscription, error) {
	data := c.credentials()
	data.Set("callback_url", callbackURL)
	data.Set("verify_token", verifyToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/push_subscriptions",
		strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.StravaAPIRequestsTotal.WithLabelValues(metrics.OpCreateSubscription, metrics.StatusTransportError).Inc()
		return nil, &APIError{cause: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	metrics.StravaAPIRequestsTotal.WithLabelValues(metrics.OpCreateSubscription, fmt.Sprint(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var subscription Subscription
	if err := json.Unmarshal(body, &subscription); err != nil {
		return nil, fmt.Errorf("failed to decode subscription response: %w", err)
	}

	return &subscription, nil
}

// Delete removes a subscription. A 404 is reported as *NotFoundError so
// callers can treat already-deleted subscriptions as satisfied.
func (c *SubscriptionClient) Delete(ctx context.Context, subscriptionID int64) error {
	reqURL := fmt.Sprintf("%s/push_subscriptions/%d?%s", c.baseURL, subscriptionID, c.credentials().Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.StravaAPIRequestsTotal.WithLabelValues(metrics.OpDeleteSubscription, metrics.StatusTransportError).Inc()
		return &APIError{cause: err}
	}
	defer resp.Body.Close()

	metrics.StravaAPIRequestsTotal.WithLabelValues(metrics.OpDeleteSubscription, fmt.Sprint(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Path: fmt.Sprintf("/push_subscriptions/%d", subscriptionID)}
	default:
		body, _ := io.ReadAll(resp.Body)
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}
}
