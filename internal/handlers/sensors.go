package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"strava-home-bridge/internal/coordinator"
	"strava-home-bridge/internal/sensor"
)

// SensorsHandler projects the most recent snapshot of each athlete into
// formatted sensor values for the automation surface.
type SensorsHandler struct {
	registry *coordinator.Registry
	logger   *slog.Logger
}

// NewSensorsHandler creates a new sensors handler.
func NewSensorsHandler(registry *coordinator.Registry) *SensorsHandler {
	return &SensorsHandler{
		registry: registry,
		logger:   slog.Default(),
	}
}

// sensorsResponse is the body of GET /sensors/{athlete_id}.
type sensorsResponse struct {
	AthleteID       int64                             `json:"athlete_id"`
	LastUpdated     int64                             `json:"last_updated"`
	ActivitiesStale bool                              `json:"activities_stale,omitempty"`
	StatsStale      bool                              `json:"stats_stale,omitempty"`
	Activity        *activitySensors                  `json:"activity,omitempty"`
	Summaries       map[string]map[string]summaryBody `json:"summaries,omitempty"`
}

type activitySensors struct {
	ID      int64             `json:"id"`
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	Sensors map[string]string `json:"sensors"`
}

type summaryBody struct {
	Count         int    `json:"count"`
	Distance      string `json:"distance"`
	MovingTime    string `json:"moving_time"`
	ElevationGain string `json:"elevation_gain"`

	BiggestRideDistance       string `json:"biggest_ride_distance,omitempty"`
	BiggestClimbElevationGain string `json:"biggest_climb_elevation_gain,omitempty"`
}

// HandleSensors handles GET /sensors/{athlete_id}.
func (h *SensorsHandler) HandleSensors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/sensors/"), "/")
	athleteID, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		http.Error(w, "Invalid athlete id", http.StatusBadRequest)
		return
	}

	coord, ok := h.registry.Lookup(athleteID)
	if !ok {
		http.Error(w, "Unknown athlete", http.StatusNotFound)
		return
	}

	snap := coord.Snapshot()
	if snap == nil {
		http.Error(w, "No snapshot yet", http.StatusServiceUnavailable)
		return
	}

	units := sensor.ParseUnits(coord.Options().Units)
	response := sensorsResponse{
		AthleteID:       athleteID,
		LastUpdated:     snap.LastUpdated.Unix(),
		ActivitiesStale: snap.ActivitiesStale,
		StatsStale:      snap.StatsStale,
	}

	seenTypes := make(map[string]bool)
	if len(snap.Activities) > 0 {
		latest := &snap.Activities[0]
		values := make(map[string]string, len(sensor.All))
		for _, p := range sensor.All {
			values[p.Name] = p.Format(latest, units)
		}
		response.Activity = &activitySensors{
			ID:      latest.ID,
			Name:    latest.Name,
			Type:    latest.Type,
			Sensors: values,
		}
		for i := range snap.Activities {
			seenTypes[snap.Activities[i].Type] = true
		}
	}

	for activityType := range seenTypes {
		summaries := sensor.Summarize(snap.Stats, activityType)
		if summaries == nil {
			continue
		}
		if response.Summaries == nil {
			response.Summaries = make(map[string]map[string]summaryBody)
		}
		periods := make(map[string]summaryBody, len(summaries))
		for period, s := range summaries {
			body := summaryBody{
				Count:         s.Count,
				Distance:      sensor.FormatDistance(s.Distance, units),
				MovingTime:    sensor.FormatDuration(time.Duration(s.MovingTime) * time.Second),
				ElevationGain: sensor.FormatElevation(s.ElevationGain, units),
			}
			if s.BiggestRideDistance > 0 {
				body.BiggestRideDistance = sensor.FormatDistance(s.BiggestRideDistance, units)
			}
			if s.BiggestClimbElevationGain > 0 {
				body.BiggestClimbElevationGain = sensor.FormatElevation(s.BiggestClimbElevationGain, units)
			}
			periods[period] = body
		}
		response.Summaries[activityType] = periods
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode sensors response", "error", err)
	}
}
