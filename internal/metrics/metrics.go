package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	// HTTP endpoints
	EndpointWebhook  = "webhook_callback"
	EndpointCamera   = "camera"
	EndpointEvents   = "events"
	EndpointCommands = "commands"
	EndpointSensors  = "sensors"
	EndpointHealth   = "health"

	// Strava API operations
	OpGetAthlete         = "get_athlete"
	OpGetActivity        = "get_activity"
	OpListActivities     = "list_activities"
	OpGetStats           = "get_stats"
	OpGetPhotos          = "get_photos"
	OpUpdateActivity     = "update_activity"
	OpCreateSubscription = "create_subscription"
	OpDeleteSubscription = "delete_subscription"
	OpListSubscriptions  = "list_subscriptions"

	// Pseudo status code for transport-level failures
	StatusTransportError = "transport_error"

	// Rate limit windows
	RateLimitShort = "short"
	RateLimitLong  = "long"

	// Rate limit buckets
	BucketLimit = "limit"
	BucketUsage = "usage"

	// Refresh trigger sources
	TriggerInterval = "interval"
	TriggerWebhook  = "webhook"
	TriggerCommand  = "command"

	// Refresh outcomes
	RefreshSuccess   = "success"
	RefreshPartial   = "partial"
	RefreshFailure   = "failure"
	RefreshCoalesced = "coalesced"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status_code"},
	)

	HTTPRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
		[]string{"endpoint"},
	)
)

// Strava API Metrics
var (
	StravaAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strava_api_requests_total",
			Help: "Total number of Strava API requests",
		},
		[]string{"operation", "status_code"},
	)

	StravaRateLimit = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strava_rate_limit",
			Help: "Most recent Strava rate limit headers by window and bucket",
		},
		[]string{"window", "bucket"},
	)
)

// Refresh Coordinator Metrics
var (
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refreshes_total",
			Help: "Total number of refresh requests by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "refresh_duration_seconds",
			Help:    "Time spent executing an upstream fetch sequence",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	SnapshotAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapshot_age_seconds",
			Help: "Age of the most recent published snapshot",
		},
	)
)

// Webhook Metrics
var (
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of inbound webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	WebhookReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_reconciliations_total",
			Help: "Total subscription reconciliation runs by outcome",
		},
		[]string{"outcome"},
	)
)

// Image Cache Metrics
var (
	ImageCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_cache_entries",
			Help: "Number of image URLs currently held in the rotation cache",
		},
	)

	ImageRotationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_rotations_total",
			Help: "Total number of image rotation ticks",
		},
	)
)
