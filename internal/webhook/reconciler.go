// Package webhook reconciles the remote Strava push subscription with this
// instance's callback URL and handles inbound webhook deliveries.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"strava-home-bridge/internal/metrics"
	"strava-home-bridge/internal/strava"
)

// CallbackPath is the route Strava delivers webhook events to.
const CallbackPath = "/api/strava/webhook"

// ConfigurationError reports a precondition that requires user action,
// such as a missing public URL.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

// SubscriptionStore persists the reconciled subscription id.
type SubscriptionStore interface {
	SetWebhookSubscription(athleteID, subscriptionID int64, callbackURL string) error
}

// Reconciler restores the invariant that exactly one remote subscription
// for these application credentials points at this instance's callback
// URL. It runs at setup and whenever the public URL might have changed;
// concurrent invocations are serialized.
type Reconciler struct {
	mu          sync.Mutex
	subs        *strava.SubscriptionClient
	probe       *http.Client
	store       SubscriptionStore
	athleteID   int64
	publicURL   string
	verifyToken string
	logger      *slog.Logger
}

// NewReconciler creates a reconciler. publicURL is the externally
// reachable base URL of this instance; an empty value is a configuration
// error reported at reconcile time, not here.
func NewReconciler(subs *strava.SubscriptionClient, probe *http.Client, store SubscriptionStore, athleteID int64, publicURL, verifyToken string, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if probe == nil {
		probe = http.DefaultClient
	}
	return &Reconciler{
		subs:        subs,
		probe:       probe,
		store:       store,
		athleteID:   athleteID,
		publicURL:   publicURL,
		verifyToken: verifyToken,
		logger:      logger,
	}
}

// CallbackURL returns the callback this instance expects subscriptions to
// point at.
func (r *Reconciler) CallbackURL() (string, error) {
	if r.publicURL == "" {
		return "", &ConfigurationError{Msg: "no public URL configured; Strava cannot reach a private address"}
	}
	return strings.TrimSuffix(r.publicURL, "/") + CallbackPath, nil
}

// Reconcile verifies the callback is reachable, deletes stale remote
// subscriptions, and creates a new subscription if none matches. The
// ordering (verify, list, delete-stale, check-match, create) guarantees no
// duplicate subscription is ever created.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.reconcile(ctx)
	outcome := metrics.RefreshSuccess
	if err != nil {
		outcome = metrics.RefreshFailure
	}
	metrics.WebhookReconciliationsTotal.WithLabelValues(outcome).Inc()
	return err
}

func (r *Reconciler) reconcile(ctx context.Context) error {
	callbackURL, err := r.CallbackURL()
	if err != nil {
		return err
	}

	// A subscription pointing at an unreachable callback is worse than no
	// subscription, so bail before touching remote state.
	if err := r.verifyReachable(ctx, callbackURL); err != nil {
		return fmt.Errorf("callback URL %s not reachable: %w", callbackURL, err)
	}

	subscriptions, err := r.subs.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}

	matched := false
	for _, sub := range subscriptions {
		if sub.CallbackURL == callbackURL {
			matched = true
			continue
		}

		r.logger.Info("deleting stale webhook subscription", "subscription_id", sub.ID, "callback_url", sub.CallbackURL)
		if err := r.subs.Delete(ctx, sub.ID); err != nil {
			var notFound *strava.NotFoundError
			if errors.As(err, &notFound) {
				r.logger.Debug("webhook subscription already deleted", "subscription_id", sub.ID)
				continue
			}
			// Best effort: one bad delete must not abort reconciliation.
			r.logger.Warn("failed to delete stale webhook subscription", "subscription_id", sub.ID, "error", err)
		}
	}

	if matched {
		r.logger.Debug("webhook subscription is already up to date")
		return nil
	}

	r.logger.Info("creating webhook subscription", "callback_url", callbackURL)
	created, err := r.subs.Create(ctx, callbackURL, r.verifyToken)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	if err := r.store.SetWebhookSubscription(r.athleteID, created.ID, callbackURL); err != nil {
		return fmt.Errorf("failed to persist subscription id: %w", err)
	}

	r.logger.Info("webhook subscription created", "subscription_id", created.ID)
	return nil
}

// verifyReachable performs a GET against the callback URL through this
// instance's own network path.
func (r *Reconciler) verifyReachable(ctx context.Context, callbackURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, callbackURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.probe.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("callback probe returned status %d", resp.StatusCode)
	}
	return nil
}

// Teardown deletes the persisted subscription when the integration is
// removed. Best effort; a 404 means the invariant already holds.
func (r *Reconciler) Teardown(ctx context.Context, subscriptionID int64) error {
	if subscriptionID == 0 {
		return nil
	}

	err := r.subs.Delete(ctx, subscriptionID)
	var notFound *strava.NotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}
