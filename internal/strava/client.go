package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"strava-home-bridge/internal/gear"
	"strava-home-bridge/internal/metrics"
)

// DefaultBaseURL is the versioned Strava REST API root.
const DefaultBaseURL = "https://www.strava.com/api/v3"

// Client is a Strava API client over an externally supplied authenticated
// session (an *http.Client that already carries a valid bearer token, e.g.
// from oauth2.NewClient). The client classifies failures and records
// rate-limit headers. It never retries; retry policy belongs to callers.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	rateLimit  *RateLimitTracker
}

// NewClient creates a new Strava API client.
func NewClient(session *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: session,
		baseURL:    DefaultBaseURL,
		logger:     logger,
		rateLimit:  NewRateLimitTracker(),
	}
}

// SetBaseURL overrides the API root, for tests.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// LastRateLimit returns the rate-limit snapshot from the most recent
// response, including error responses.
func (c *Client) LastRateLimit() RateLimitInfo {
	return c.rateLimit.Last()
}

// request executes one API call and returns the raw response body.
// An empty or absent body is returned as an empty JSON object so update
// endpoints that respond with no content decode cleanly.
func (c *Client) request(ctx context.Context, op, method, path string, jsonBody any) ([]byte, error) {
	var reqBody io.Reader
	if jsonBody != nil {
		encoded, err := json.Marshal(jsonBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("strava request failed", "method", method, "path", path, "error", err, "duration_ms", duration.Milliseconds())
		metrics.StravaAPIRequestsTotal.WithLabelValues(op, metrics.StatusTransportError).Inc()
		return nil, &APIError{cause: err}
	}
	defer resp.Body.Close()

	// Rate-limit headers are recorded unconditionally, error responses
	// included.
	info := extractRateLimit(resp.Header)
	c.rateLimit.Update(info)
	publishRateLimitMetrics(info)

	c.logger.Debug("strava_api_request", "method", method, "path", path, "status", resp.StatusCode, "duration_ms", duration.Milliseconds())
	metrics.StravaAPIRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn("strava rate limit reached", "method", method, "path", path)
		return nil, &RateLimitError{Info: info}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.Warn("unauthorized strava response", "method", method, "path", path, "status", resp.StatusCode)
		return nil, &UnauthorizedError{Status: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		c.logger.Debug("strava resource not found", "method", method, "path", path)
		return nil, &NotFoundError{Path: path}
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error("unexpected strava error", "method", method, "path", path, "status", resp.StatusCode, "body", string(body))
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{cause: err}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	return body, nil
}

func publishRateLimitMetrics(info RateLimitInfo) {
	if info.LimitsKnown {
		metrics.StravaRateLimit.WithLabelValues(metrics.RateLimitShort, metrics.BucketLimit).Set(float64(info.ShortLimit))
		metrics.StravaRateLimit.WithLabelValues(metrics.RateLimitLong, metrics.BucketLimit).Set(float64(info.LongLimit))
	}
	if info.UsageKnown {
		metrics.StravaRateLimit.WithLabelValues(metrics.RateLimitShort, metrics.BucketUsage).Set(float64(info.ShortUsage))
		metrics.StravaRateLimit.WithLabelValues(metrics.RateLimitLong, metrics.BucketUsage).Set(float64(info.LongUsage))
	}
}

// GetAthlete fetches the authenticated athlete profile and normalizes
// every shoe and bike in its gear catalogs.
func (c *Client) GetAthlete(ctx context.Context) (*AthleteProfile, error) {
	body, err := c.request(ctx, metrics.OpGetAthlete, http.MethodGet, "/athlete", nil)
	if err != nil {
		return nil, err
	}

	var raw rawAthlete
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode athlete response: %w", err)
	}

	profile := &AthleteProfile{
		ID:            raw.ID,
		FirstName:     raw.FirstName,
		LastName:      raw.LastName,
		Profile:       raw.Profile,
		ProfileMedium: raw.ProfileMedium,
		Shoes:         make([]gear.Item, 0, len(raw.Shoes)),
		Bikes:         make([]gear.Item, 0, len(raw.Bikes)),
	}
	for _, shoe := range raw.Shoes {
		profile.Shoes = append(profile.Shoes, gear.NormalizeShoe(shoe))
	}
	for _, bike := range raw.Bikes {
		profile.Bikes = append(profile.Bikes, gear.NormalizeBike(bike))
	}

	return profile, nil
}

// GetActivity fetches a detailed activity payload.
func (c *Client) GetActivity(ctx context.Context, activityID int64) (*Activity, error) {
	body, err := c.request(ctx, metrics.OpGetActivity, http.MethodGet, fmt.Sprintf("/activities/%d", activityID), nil)
	if err != nil {
		return nil, err
	}

	var activity Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		return nil, fmt.Errorf("failed to decode activity response: %w", err)
	}

	return &activity, nil
}

// ListActivities fetches the athlete's most recent summary activities.
func (c *Client) ListActivities(ctx context.Context, perPage int) ([]Activity, error) {
	body, err := c.request(ctx, metrics.OpListActivities, http.MethodGet, fmt.Sprintf("/athlete/activities?per_page=%d", perPage), nil)
	if err != nil {
		return nil, err
	}

	var activities []Activity
	if err := json.Unmarshal(body, &activities); err != nil {
		return nil, fmt.Errorf("failed to decode activities response: %w", err)
	}

	return activities, nil
}

// GetAthleteStats fetches the athlete's aggregate totals.
func (c *Client) GetAthleteStats(ctx context.Context, athleteID int64) (*AthleteStats, error) {
	body, err := c.request(ctx, metrics.OpGetStats, http.MethodGet, fmt.Sprintf("/athletes/%d/stats", athleteID), nil)
	if err != nil {
		return nil, err
	}

	var stats AthleteStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats response: %w", err)
	}

	return &stats, nil
}

// GetActivityPhotos fetches photo descriptors for one activity.
func (c *Client) GetActivityPhotos(ctx context.Context, activityID int64, size int) ([]Photo, error) {
	path := fmt.Sprintf("/activities/%d/photos?size=%d", activityID, size)
	body, err := c.request(ctx, metrics.OpGetPhotos, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var photos []Photo
	if err := json.Unmarshal(body, &photos); err != nil {
		return nil, fmt.Errorf("failed to decode photos response: %w", err)
	}

	return photos, nil
}

// UpdateActivityGear assigns a gear item to an activity via a partial
// update carrying only the gear id. An empty gear id is rejected locally
// without any network call.
func (c *Client) UpdateActivityGear(ctx context.Context, activityID int64, gearID string) (*Activity, error) {
	if gearID == "" {
		return nil, &ValidationError{Msg: "gear_id is required to update activity gear"}
	}

	body, err := c.request(ctx, metrics.OpUpdateActivity, http.MethodPut,
		fmt.Sprintf("/activities/%d", activityID), map[string]string{"gear_id": gearID})
	if err != nil {
		return nil, err
	}

	var activity Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		return nil, fmt.Errorf("failed to decode activity response: %w", err)
	}

	return &activity, nil
}
