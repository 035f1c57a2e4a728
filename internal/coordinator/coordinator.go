// Package coordinator owns fetching and caching one athlete's Strava data.
// Refreshes are triggered by a recurring timer, inbound webhook deliveries,
// and explicit commands; concurrent triggers collapse into a single
// in-flight upstream fetch sequence.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"strava-home-bridge/internal/images"
	"strava-home-bridge/internal/metrics"
	"strava-home-bridge/internal/strava"
)

const (
	activitiesPerPage = 200
	defaultImageSize  = 640

	// Photos for an activity are refetched at most once per day.
	photoRefetchInterval = 24 * time.Hour
)

// Options are the per-integration settings resolved once per snapshot.
type Options struct {
	PhotosEnabled bool     `json:"photos_enabled"`
	ImageSize     int      `json:"image_size,omitempty"`
	ActivityTypes []string `json:"activity_types,omitempty"`
	Units         string   `json:"units,omitempty"`
	Pod1Shoes     string   `json:"pod_1_shoes,omitempty"`
	Pod2Shoes     string   `json:"pod_2_shoes,omitempty"`
}

// Snapshot is the coordinator's published view of the athlete's data.
// Profile doubles as the gear catalog; CatalogFetchedAt is when it was
// captured. Stale flags mark sections whose fetch failed on the most
// recent refresh; their data is carried over from the previous snapshot.
type Snapshot struct {
	Profile          *strava.AthleteProfile
	CatalogFetchedAt time.Time
	Activities       []strava.Activity
	Stats            *strava.AthleteStats
	Images           []images.Entry
	LastUpdated      time.Time
	ActivitiesStale  bool
	StatsStale       bool
}

type inflightFetch struct {
	done chan struct{}
	snap *Snapshot
	err  error
}

// Coordinator fetches and caches Strava data for a single athlete.
type Coordinator struct {
	client  *strava.Client
	ownerID int64
	logger  *slog.Logger

	lifeCtx context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	opts      Options
	snapshot  *Snapshot
	inflight  *inflightFetch
	listeners []func(*Snapshot)

	// activity id -> last time its photos were fetched
	photoFetches map[int64]time.Time
}

// New creates a coordinator for one athlete. The supplied context bounds
// the coordinator's lifetime: cancelling it aborts any in-flight fetch.
func New(ctx context.Context, client *strava.Client, ownerID int64, opts Options, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	lifeCtx, cancel := context.WithCancel(ctx)
	return &Coordinator{
		client:       client,
		ownerID:      ownerID,
		logger:       logger.With("athlete_id", ownerID),
		lifeCtx:      lifeCtx,
		cancel:       cancel,
		opts:         opts,
		photoFetches: make(map[int64]time.Time),
	}
}

// OwnerID returns the provider-side identity this coordinator serves.
func (c *Coordinator) OwnerID() int64 {
	return c.ownerID
}

// Client returns the API client this coordinator fetches through, for
// command handlers that mutate upstream data.
func (c *Coordinator) Client() *strava.Client {
	return c.client
}

// Close cancels the coordinator's lifecycle context. Any in-flight fetch
// is aborted and its result discarded by the HTTP layer.
func (c *Coordinator) Close() {
	c.cancel()
}

// Snapshot returns the most recently published snapshot, or nil before the
// first successful refresh.
func (c *Coordinator) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Options returns the current per-integration options.
func (c *Coordinator) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// SetOptions replaces the per-integration options.
func (c *Coordinator) SetOptions(opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
}

// AddListener registers a callback invoked after every published snapshot.
func (c *Coordinator) AddListener(fn func(*Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// RequestRefresh produces an up-to-date snapshot. If a fetch is already in
// flight the call is satisfied by that fetch's eventual result instead of
// issuing duplicate upstream calls. The fetch itself runs on the
// coordinator's lifecycle context; ctx only bounds this caller's wait.
func (c *Coordinator) RequestRefresh(ctx context.Context, trigger string) (*Snapshot, error) {
	c.mu.Lock()
	if call := c.inflight; call != nil {
		c.mu.Unlock()
		metrics.RefreshesTotal.WithLabelValues(trigger, metrics.RefreshCoalesced).Inc()
		return awaitFetch(ctx, call)
	}

	call := &inflightFetch{done: make(chan struct{})}
	c.inflight = call
	c.mu.Unlock()

	go c.runFetch(call, trigger)

	return awaitFetch(ctx, call)
}

func awaitFetch(ctx context.Context, call *inflightFetch) (*Snapshot, error) {
	select {
	case <-call.done:
		return call.snap, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Coordinator) runFetch(call *inflightFetch, trigger string) {
	start := time.Now()
	snap, err := c.fetch(c.lifeCtx)
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())

	c.mu.Lock()
	c.inflight = nil
	if err == nil {
		c.snapshot = snap
		metrics.SnapshotAge.Set(0)
	}
	listeners := make([]func(*Snapshot), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	outcome := metrics.RefreshSuccess
	switch {
	case err != nil:
		outcome = metrics.RefreshFailure
	case snap.ActivitiesStale || snap.StatsStale:
		outcome = metrics.RefreshPartial
	}
	metrics.RefreshesTotal.WithLabelValues(trigger, outcome).Inc()

	if err == nil {
		for _, fn := range listeners {
			fn(snap)
		}
	}

	call.snap, call.err = snap, err
	close(call.done)
}

// fetch performs one upstream fetch sequence: athlete, activity list,
// summary stats, photos. A failure after a successful athlete fetch merges
// the previous snapshot's data for the failed section and marks it stale;
// a failed athlete fetch with no prior snapshot propagates so setup blocks.
func (c *Coordinator) fetch(ctx context.Context) (*Snapshot, error) {
	prev := c.Snapshot()
	opts := c.Options()

	profile, err := c.client.GetAthlete(ctx)
	if err != nil {
		if prev == nil {
			return nil, fmt.Errorf("athlete fetch failed: %w", err)
		}
		c.logger.Error("athlete fetch failed, keeping previous snapshot", "error", err)
		degraded := *prev
		degraded.ActivitiesStale = true
		degraded.StatsStale = true
		return &degraded, nil
	}

	now := time.Now()
	snap := &Snapshot{
		Profile:          profile,
		CatalogFetchedAt: now,
		LastUpdated:      now,
	}

	activities, err := c.fetchActivities(ctx, opts)
	if err != nil {
		c.logger.Error("activity fetch failed, carrying previous activities", "error", err)
		snap.ActivitiesStale = true
		if prev != nil {
			snap.Activities = prev.Activities
		}
	} else {
		snap.Activities = activities
	}

	stats, err := c.client.GetAthleteStats(ctx, profile.ID)
	if err != nil {
		c.logger.Error("stats fetch failed, carrying previous stats", "error", err)
		snap.StatsStale = true
		if prev != nil {
			snap.Stats = prev.Stats
		}
	} else {
		snap.Stats = stats
	}

	snap.Images = c.fetchImages(ctx, opts, snap.Activities)
	if snap.Images == nil && prev != nil {
		snap.Images = prev.Images
	}

	return snap, nil
}

// fetchActivities lists recent activities, filters them by the configured
// activity types, and enriches each with detail fields (gear, device,
// calories). A failed detail fetch leaves the summary version in place.
func (c *Coordinator) fetchActivities(ctx context.Context, opts Options) ([]strava.Activity, error) {
	listed, err := c.client.ListActivities(ctx, activitiesPerPage)
	if err != nil {
		return nil, err
	}

	tracked := make(map[string]bool, len(opts.ActivityTypes))
	for _, t := range opts.ActivityTypes {
		tracked[t] = true
	}

	activities := make([]strava.Activity, 0, len(listed))
	for _, activity := range listed {
		if len(tracked) > 0 && !tracked[activity.Type] {
			continue
		}

		detail, err := c.client.GetActivity(ctx, activity.ID)
		if err != nil {
			c.logger.Debug("activity detail fetch failed", "activity_id", activity.ID, "error", err)
			activities = append(activities, activity)
			continue
		}
		activities = append(activities, *detail)
	}

	sort.Slice(activities, func(i, j int) bool {
		return activities[i].StartDateLocal.After(activities[j].StartDateLocal)
	})

	return activities, nil
}

// fetchImages collects photo URLs for the given activities. Returns nil
// when photos are disabled or nothing new was fetched.
func (c *Coordinator) fetchImages(ctx context.Context, opts Options, activities []strava.Activity) []images.Entry {
	if !opts.PhotosEnabled {
		return nil
	}

	size := opts.ImageSize
	if size <= 0 {
		size = defaultImageSize
	}

	var entries []images.Entry
	now := time.Now()
	for _, activity := range activities {
		c.mu.Lock()
		last := c.photoFetches[activity.ID]
		c.mu.Unlock()
		if now.Sub(last) < photoRefetchInterval {
			continue
		}

		photos, err := c.client.GetActivityPhotos(ctx, activity.ID, size)
		if err != nil {
			c.logger.Debug("photo fetch failed", "activity_id", activity.ID, "error", err)
			continue
		}

		c.mu.Lock()
		c.photoFetches[activity.ID] = now
		c.mu.Unlock()

		for _, photo := range photos {
			url := images.PreferredURL(photo.URLs)
			if url == "" {
				continue
			}
			entries = append(entries, images.Entry{
				URL:        url,
				ActivityID: activity.ID,
				Date:       photo.CreatedAtLocal,
			})
		}
	}

	return entries
}

// Run triggers an interval refresh until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator refresh loop stopping")
			return
		case <-ticker.C:
			if _, err := c.RequestRefresh(ctx, metrics.TriggerInterval); err != nil {
				c.logger.Error("interval refresh failed", "error", err)
			}
			if snap := c.Snapshot(); snap != nil {
				metrics.SnapshotAge.Set(time.Since(snap.LastUpdated).Seconds())
			}
		}
	}
}
