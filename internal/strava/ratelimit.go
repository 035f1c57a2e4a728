package strava

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitInfo is the usage snapshot parsed from the most recent Strava
// response. Strava reports a short (15 minute) and long (daily) window as
// comma-separated header pairs. LimitsKnown/UsageKnown are false when the
// corresponding header was absent or unparsable.
type RateLimitInfo struct {
	ShortLimit  int
	LongLimit   int
	LimitsKnown bool
	ShortUsage  int
	LongUsage   int
	UsageKnown  bool
}

// NearingLimit reports whether short-window usage has reached 90% of the
// short-window quota. Unknown values never count as nearing.
func (r RateLimitInfo) NearingLimit() bool {
	if !r.LimitsKnown || !r.UsageKnown || r.ShortLimit <= 0 {
		return false
	}
	return float64(r.ShortUsage)/float64(r.ShortLimit) >= 0.9
}

// parseHeaderPair splits a "short,long" header value into two integers.
func parseHeaderPair(value string) (short, long int, ok bool) {
	if value == "" {
		return 0, 0, false
	}

	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}

	short, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	long, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}

	return short, long, true
}

// extractRateLimit builds rate-limit info from response headers.
func extractRateLimit(headers http.Header) RateLimitInfo {
	var info RateLimitInfo
	info.ShortLimit, info.LongLimit, info.LimitsKnown = parseHeaderPair(headers.Get("X-RateLimit-Limit"))
	info.ShortUsage, info.LongUsage, info.UsageKnown = parseHeaderPair(headers.Get("X-RateLimit-Usage"))
	return info
}

// RateLimitTracker holds the most recent rate-limit snapshot for a client.
// It is overwritten on every request, including error responses.
type RateLimitTracker struct {
	mu          sync.RWMutex
	info        RateLimitInfo
	lastUpdated time.Time
}

// NewRateLimitTracker creates an empty tracker.
func NewRateLimitTracker() *RateLimitTracker {
	return &RateLimitTracker{}
}

// Update replaces the tracked snapshot.
func (t *RateLimitTracker) Update(info RateLimitInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.info = info
	t.lastUpdated = time.Now()
}

// Last returns the most recent snapshot.
func (t *RateLimitTracker) Last() RateLimitInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.info
}

// LastUpdated returns when the snapshot was last overwritten.
func (t *RateLimitTracker) LastUpdated() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.lastUpdated
}
