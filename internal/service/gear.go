// Package service implements the command surface invoked by the host's
// command layer.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"strava-home-bridge/internal/coordinator"
	"strava-home-bridge/internal/database"
	"strava-home-bridge/internal/gear"
	"strava-home-bridge/internal/metrics"
	"strava-home-bridge/internal/strava"
)

// scopeActivityWrite is required to assign gear to an activity.
const scopeActivityWrite = "activity:write"

// ScopeError reports that the athlete's grant lacks a required scope.
// The reauthorization flow has already been triggered when it is returned.
type ScopeError struct {
	Required string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("missing required scope %q, reauthorization required", e.Required)
}

// ReauthFunc starts the reauthorization flow for an athlete.
type ReauthFunc func(athleteID int64)

// GearService handles gear-assignment commands.
type GearService struct {
	registry *coordinator.Registry
	db       *database.DB
	reauth   ReauthFunc
	logger   *slog.Logger
}

// NewGearService creates the gear command service.
func NewGearService(registry *coordinator.Registry, db *database.DB, reauth ReauthFunc, logger *slog.Logger) *GearService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GearService{
		registry: registry,
		db:       db,
		reauth:   reauth,
		logger:   logger,
	}
}

// SetActivityGearRequest names the activity and the shoe to assign, by id
// or by catalog name. At least one of ShoeID/ShoeName is required.
type SetActivityGearRequest struct {
	OwnerID    int64
	ActivityID int64
	ShoeID     string
	ShoeName   string
}

// gearAssignedEvent is the payload of the domain event emitted on success.
type gearAssignedEvent struct {
	ActivityID       int64     `json:"activity_id"`
	GearID           string    `json:"gear_id"`
	GearName         string    `json:"gear_name,omitempty"`
	CatalogFetchedAt time.Time `json:"catalog_fetched_at"`
}

// SetActivityGear assigns a shoe to an activity: it resolves a name to a
// gear id via the athlete's catalog when no id is given, verifies the
// granted scope allows writes (triggering reauthorization otherwise),
// performs the update, emits a domain event, and schedules a refresh.
func (s *GearService) SetActivityGear(ctx context.Context, req SetActivityGearRequest) error {
	if req.ShoeID == "" && req.ShoeName == "" {
		return &strava.ValidationError{Msg: "one of shoe id or shoe name is required"}
	}

	coord, ok := s.registry.Lookup(req.OwnerID)
	if !ok {
		return &strava.ValidationError{Msg: fmt.Sprintf("no integration for athlete %d", req.OwnerID)}
	}

	integration, err := s.db.GetIntegration(req.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to load integration record: %w", err)
	}
	if !hasScope(integration.GrantedScope, scopeActivityWrite) {
		s.logger.Warn("gear assignment blocked by missing scope", "athlete_id", req.OwnerID, "scope", scopeActivityWrite)
		s.triggerReauth(req.OwnerID)
		return &ScopeError{Required: scopeActivityWrite}
	}

	snap := coord.Snapshot()
	if snap == nil || snap.Profile == nil {
		return &strava.ValidationError{Msg: "gear catalog not available yet, try again after the first refresh"}
	}

	gearID := req.ShoeID
	gearName := ""
	if gearID == "" {
		shoe, found := gear.ResolveByName(req.ShoeName, snap.Profile.Shoes)
		if !found {
			return &strava.ValidationError{Msg: fmt.Sprintf("shoe %q not found in catalog", req.ShoeName)}
		}
		gearID = shoe.ID
		gearName = shoe.Name
	} else if shoe, found := resolveByID(gearID, snap.Profile.Shoes); found {
		gearName = shoe.Name
	}

	if _, err := coord.Client().UpdateActivityGear(ctx, req.ActivityID, gearID); err != nil {
		var unauthorized *strava.UnauthorizedError
		if errors.As(err, &unauthorized) {
			s.triggerReauth(req.OwnerID)
		}
		return err
	}

	payload, err := json.Marshal(gearAssignedEvent{
		ActivityID:       req.ActivityID,
		GearID:           gearID,
		GearName:         gearName,
		CatalogFetchedAt: snap.CatalogFetchedAt,
	})
	if err == nil {
		_, err = s.db.InsertEvent(database.EventTypeGearAssigned, req.OwnerID, &req.ActivityID, payload)
	}
	if err != nil {
		s.logger.Error("failed to record gear_assigned event", "athlete_id", req.OwnerID, "error", err)
	}

	s.logger.Info("activity gear updated", "athlete_id", req.OwnerID, "activity_id", req.ActivityID, "gear_id", gearID)

	// The assignment changes activity data upstream; refresh in the
	// background so the snapshot catches up.
	go func() {
		if _, err := coord.RequestRefresh(context.Background(), metrics.TriggerCommand); err != nil {
			s.logger.Error("post-assignment refresh failed", "athlete_id", req.OwnerID, "error", err)
		}
	}()

	return nil
}

// SetPodShoes validates two tracking-pod shoe selections against the
// catalog, enforces mutual exclusivity, and persists them into the
// integration's options.
func (s *GearService) SetPodShoes(ctx context.Context, ownerID int64, pod1, pod2 string) error {
	coord, ok := s.registry.Lookup(ownerID)
	if !ok {
		return &strava.ValidationError{Msg: fmt.Sprintf("no integration for athlete %d", ownerID)}
	}

	snap := coord.Snapshot()
	if snap == nil || snap.Profile == nil {
		return &strava.ValidationError{Msg: "gear catalog not available yet, try again after the first refresh"}
	}

	var invalid []string
	for _, name := range []string{pod1, pod2} {
		if name == "" {
			continue
		}
		if _, found := gear.ResolveByName(name, snap.Profile.Shoes); !found {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		return &strava.ValidationError{Msg: fmt.Sprintf("shoe selection(s) not found in catalog: %s", strings.Join(invalid, ", "))}
	}

	pod1, pod2 = gear.EnforceMutualExclusivity(pod1, pod2)

	opts := coord.Options()
	opts.Pod1Shoes = pod1
	opts.Pod2Shoes = pod2
	coord.SetOptions(opts)

	encoded, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}
	if err := s.db.SetIntegrationOptions(ownerID, encoded); err != nil {
		return fmt.Errorf("failed to persist options: %w", err)
	}

	s.logger.Info("pod shoe selections updated", "athlete_id", ownerID, "pod_1", pod1, "pod_2", pod2)
	return nil
}

func (s *GearService) triggerReauth(athleteID int64) {
	if s.reauth != nil {
		s.reauth(athleteID)
	}
}

func hasScope(granted, required string) bool {
	for _, scope := range strings.Split(granted, ",") {
		if strings.TrimSpace(scope) == required {
			return true
		}
	}
	return false
}

func resolveByID(id string, items []gear.Item) (gear.Item, bool) {
	for _, item := range items {
		if item.ID == id {
			return item, true
		}
	}
	return gear.Item{}, false
}

// UserMessage converts internal error kinds into a user-facing message.
// Raw transport text is not leaked; API errors keep their upstream status
// and body so the user can report them.
func UserMessage(err error) string {
	var (
		validation   *strava.ValidationError
		scopeErr     *ScopeError
		unauthorized *strava.UnauthorizedError
		notFound     *strava.NotFoundError
		rateLimited  *strava.RateLimitError
		apiErr       *strava.APIError
	)

	switch {
	case errors.As(err, &validation):
		return validation.Msg
	case errors.As(err, &scopeErr):
		return "Strava authorization is missing the permission to modify activities. Please reauthorize the integration."
	case errors.As(err, &unauthorized):
		return "Strava rejected the request as unauthorized. Please reauthorize the integration."
	case errors.As(err, &notFound):
		return "The requested Strava resource was not found."
	case errors.As(err, &rateLimited):
		return "Strava's API rate limit was reached. Please wait before retrying."
	case errors.As(err, &apiErr) && apiErr.Status != 0:
		return fmt.Sprintf("Strava returned an unexpected error (HTTP %d): %s", apiErr.Status, apiErr.Body)
	case err != nil:
		return "Could not reach Strava. Please check the network connection and try again."
	default:
		return ""
	}
}
