// Package images maintains a bounded, time-ordered rotation of activity
// photo URLs, persisted across restarts.
package images

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"strava-home-bridge/internal/database"
	"strava-home-bridge/internal/metrics"
	"strava-home-bridge/internal/strava"
)

const (
	// BlobVersion identifies the persisted serialization format.
	BlobVersion = 1

	// Entries are restricted to photos of the most recent activities.
	maxActivities = 30

	// DefaultMaxImages caps the rotation when no cap is configured.
	DefaultMaxImages = 100

	fetchTimeout = 10 * time.Second
)

// DefaultFallbackURL is served when the rotation is empty.
const DefaultFallbackURL = "https://upload.wikimedia.org/wikipedia/commons/thumb/1/15/" +
	"No_image_available_600_x_450.svg/1280px-No_image_available_600_x_450.svg.png"

// Entry is one image URL in the rotation. Hash is the md5 fingerprint of
// the URL and serves as the deduplication key.
type Entry struct {
	URL        string    `json:"url"`
	ActivityID int64     `json:"activity_id"`
	Date       time.Time `json:"date"`
	Hash       string    `json:"hash"`
}

// ContentHash returns the stable fingerprint of a URL string.
func ContentHash(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// PreferredURL picks a deterministic URL from a photo's size-keyed URL map:
// the one under the largest size key.
func PreferredURL(urls map[string]string) string {
	if len(urls) == 0 {
		return ""
	}

	keys := make([]string, 0, len(urls))
	for k := range urls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return urls[keys[len(keys)-1]]
}

// persistedState is the versioned on-disk shape of the rotation.
type persistedState struct {
	Index   int     `json:"index"`
	Entries []Entry `json:"entries"`
}

// Store persists rotation state per athlete.
type Store interface {
	SaveImageCache(athleteID int64, version int, data []byte) error
	LoadImageCache(athleteID int64) (version int, data []byte, err error)
}

// Cache is the image rotation for one athlete.
type Cache struct {
	mu          sync.Mutex
	store       Store
	athleteID   int64
	logger      *slog.Logger
	httpClient  *http.Client
	maxImages   int
	fallbackURL string

	entries []Entry // sorted by date ascending
	index   int
}

// NewCache creates a rotation cache and loads any persisted state. A
// missing or corrupt blob starts the rotation empty; loading is never
// fatal.
func NewCache(store Store, athleteID int64, maxImages int, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if maxImages <= 0 {
		maxImages = DefaultMaxImages
	}

	c := &Cache{
		store:       store,
		athleteID:   athleteID,
		logger:      logger.With("athlete_id", athleteID),
		httpClient:  &http.Client{Timeout: fetchTimeout},
		maxImages:   maxImages,
		fallbackURL: DefaultFallbackURL,
	}
	c.load()

	return c
}

func (c *Cache) load() {
	version, data, err := c.store.LoadImageCache(c.athleteID)
	if errors.Is(err, database.ErrNotFound) {
		return
	}
	if err != nil {
		c.logger.Error("failed to load image rotation state", "error", err)
		return
	}
	if version != BlobVersion {
		c.logger.Warn("unsupported image rotation blob version, starting empty", "version", version)
		return
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		c.logger.Error("corrupt image rotation blob, starting empty", "error", err)
		return
	}

	c.entries = state.Entries
	c.index = state.Index
	if c.index >= len(c.entries) {
		c.index = 0
	}
	metrics.ImageCacheEntries.Set(float64(len(c.entries)))
}

// save persists the current rotation. Failures are logged, never raised.
func (c *Cache) save() {
	data, err := json.Marshal(persistedState{Index: c.index, Entries: c.entries})
	if err != nil {
		c.logger.Error("failed to encode image rotation state", "error", err)
		return
	}
	if err := c.store.SaveImageCache(c.athleteID, BlobVersion, data); err != nil {
		c.logger.Error("failed to persist image rotation state", "error", err)
	}
}

// Update merges freshly fetched image entries into the rotation. Only
// entries belonging to the most recent activities are retained, the
// collection is deduplicated by content hash, ordered by date, truncated
// to the newest maxImages entries, and persisted.
func (c *Cache) Update(activities []strava.Activity, fresh []Entry) {
	recent := recentActivityIDs(activities)

	c.mu.Lock()
	defer c.mu.Unlock()

	merged := make(map[string]Entry, len(c.entries)+len(fresh))
	for _, entry := range c.entries {
		merged[entry.Hash] = entry
	}
	for _, entry := range fresh {
		if entry.Hash == "" {
			entry.Hash = ContentHash(entry.URL)
		}
		merged[entry.Hash] = entry
	}

	kept := make([]Entry, 0, len(merged))
	for _, entry := range merged {
		if recent[entry.ActivityID] {
			kept = append(kept, entry)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Date.Equal(kept[j].Date) {
			return kept[i].Hash < kept[j].Hash
		}
		return kept[i].Date.Before(kept[j].Date)
	})
	if len(kept) > c.maxImages {
		kept = kept[len(kept)-c.maxImages:]
	}

	c.entries = kept
	if c.index >= len(c.entries) {
		c.index = 0
	}
	metrics.ImageCacheEntries.Set(float64(len(c.entries)))

	c.save()
}

// recentActivityIDs returns the ids of the most recent maxActivities
// activities by start date.
func recentActivityIDs(activities []strava.Activity) map[int64]bool {
	sorted := make([]strava.Activity, len(activities))
	copy(sorted, activities)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartDateLocal.After(sorted[j].StartDateLocal)
	})
	if len(sorted) > maxActivities {
		sorted = sorted[:maxActivities]
	}

	ids := make(map[int64]bool, len(sorted))
	for _, activity := range sorted {
		ids[activity.ID] = true
	}
	return ids
}

// Current returns the entry at the rotation index, or a fallback
// descriptor when the rotation is empty.
func (c *Cache) Current() Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) == 0 {
		return Entry{URL: c.fallbackURL}
	}
	return c.entries[c.index]
}

// Rotate advances the rotation index and persists it so a restart
// resumes where the rotation left off. No-op on an empty rotation.
func (c *Cache) Rotate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) == 0 {
		return
	}
	c.index = (c.index + 1) % len(c.entries)
	metrics.ImageRotationsTotal.Inc()

	c.save()
}

// Len returns the number of entries in the rotation.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entries returns a copy of the rotation in date order.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Fetch downloads the current image's bytes, falling back to the default
// image when the rotation is empty or the download fails.
func (c *Cache) Fetch(ctx context.Context) ([]byte, error) {
	current := c.Current()

	body, err := c.fetchURL(ctx, current.URL)
	if err == nil {
		return body, nil
	}
	c.logger.Error("failed to fetch rotation image", "url", current.URL, "error", err)

	if current.URL == c.fallbackURL {
		return nil, err
	}
	return c.fetchURL(ctx, c.fallbackURL)
}

func (c *Cache) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
