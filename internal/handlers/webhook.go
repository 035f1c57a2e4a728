package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"strava-home-bridge/internal/coordinator"
	"strava-home-bridge/internal/database"
	"strava-home-bridge/internal/metrics"
)

// webhookEvent is the body of a Strava push notification.
type webhookEvent struct {
	ObjectType     string `json:"object_type"`
	ObjectID       int64  `json:"object_id"`
	AspectType     string `json:"aspect_type"`
	OwnerID        int64  `json:"owner_id"`
	SubscriptionID int64  `json:"subscription_id"`
}

// WebhookHandler serves the Strava webhook callback endpoint: GET for
// subscription verification, POST for event deliveries.
type WebhookHandler struct {
	registry *coordinator.Registry
	db       *database.DB
	logger   *slog.Logger
}

// NewWebhookHandler creates a webhook handler routing deliveries through
// the given registry.
func NewWebhookHandler(registry *coordinator.Registry, db *database.DB) *WebhookHandler {
	return &WebhookHandler{
		registry: registry,
		db:       db,
		logger:   slog.Default(),
	}
}

// HandleVerification answers Strava's subscription challenge: a GET with
// hub.challenge is echoed back, a GET without it gets an empty 200.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("hub.challenge")
	if challenge == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	h.logger.Debug("webhook verification request", "hub.mode", r.URL.Query().Get("hub.mode"))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"hub.challenge": challenge}); err != nil {
		h.logger.Error("failed to encode challenge response", "error", err)
	}
}

// HandleEvent accepts a POST delivery, routes it to the coordinator whose
// owner id matches, and responds 200 regardless of match outcome. Only a
// malformed body is an error (400). Unmatched owner ids are logged and
// dropped, never broadcast.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("invalid JSON in webhook body", "error", err)
		metrics.WebhookEventsTotal.WithLabelValues("malformed").Inc()
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	h.logger.Info("received webhook event",
		"object_type", event.ObjectType,
		"object_id", event.ObjectID,
		"aspect_type", event.AspectType,
		"owner_id", event.OwnerID,
	)

	ownerID := event.OwnerID
	coord, ok := h.registry.Lookup(ownerID)
	if !ok && event.SubscriptionID != 0 && h.db != nil {
		// Deliveries may omit owner_id; fall back to the recorded
		// subscription.
		if rec, err := h.db.GetIntegrationBySubscription(event.SubscriptionID); err == nil {
			ownerID = rec.AthleteID
			coord, ok = h.registry.Lookup(ownerID)
		}
	}
	if !ok {
		h.logger.Warn("webhook received for unknown owner",
			"owner_id", event.OwnerID, "subscription_id", event.SubscriptionID)
		metrics.WebhookEventsTotal.WithLabelValues("unmatched").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.db != nil {
		var activityID *int64
		if event.ObjectType == "activity" && event.ObjectID != 0 {
			activityID = &event.ObjectID
		}
		if _, err := h.db.InsertEvent(database.EventTypeWebhookDelivery, ownerID, activityID, json.RawMessage(body)); err != nil {
			h.logger.Error("failed to log webhook event", "error", err)
		}
	}

	metrics.WebhookEventsTotal.WithLabelValues("matched").Inc()

	// Respond immediately; the refresh proceeds in the background and
	// coalesces with any fetch already in flight.
	go func() {
		if _, err := coord.RequestRefresh(context.Background(), metrics.TriggerWebhook); err != nil {
			h.logger.Error("webhook-triggered refresh failed", "owner_id", ownerID, "error", err)
		}
	}()

	w.WriteHeader(http.StatusOK)
}
