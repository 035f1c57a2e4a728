package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"strava-home-bridge/internal/service"
	"strava-home-bridge/internal/strava"
)

// Command names accepted by the command endpoint.
const (
	CommandSetActivityGear = "set_activity_gear"
	CommandSetPodShoes     = "set_pod_shoes"
)

// CommandsHandler exposes the gear command surface over HTTP.
type CommandsHandler struct {
	gear   *service.GearService
	apiKey string
	logger *slog.Logger
}

// NewCommandsHandler creates a new commands handler.
func NewCommandsHandler(gear *service.GearService, apiKey string) *CommandsHandler {
	return &CommandsHandler{
		gear:   gear,
		apiKey: apiKey,
		logger: slog.Default(),
	}
}

// commandRequest is the body of POST /commands. Command selects which
// fields are read.
type commandRequest struct {
	Command    string `json:"command"`
	AthleteID  int64  `json:"athlete_id"`
	ActivityID int64  `json:"activity_id,omitempty"`
	ShoeID     string `json:"shoe_id,omitempty"`
	ShoeName   string `json:"shoe_name,omitempty"`
	Pod1Shoes  string `json:"pod_1_shoes,omitempty"`
	Pod2Shoes  string `json:"pod_2_shoes,omitempty"`
}

// HandleCommand handles POST /commands.
func (h *CommandsHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+h.apiKey {
		h.logger.Warn("unauthorized command request")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var err error
	switch req.Command {
	case CommandSetActivityGear:
		err = h.gear.SetActivityGear(r.Context(), service.SetActivityGearRequest{
			OwnerID:    req.AthleteID,
			ActivityID: req.ActivityID,
			ShoeID:     req.ShoeID,
			ShoeName:   req.ShoeName,
		})
	case CommandSetPodShoes:
		err = h.gear.SetPodShoes(r.Context(), req.AthleteID, req.Pod1Shoes, req.Pod2Shoes)
	default:
		http.Error(w, "Unknown command", http.StatusBadRequest)
		return
	}

	status := http.StatusOK
	if err != nil {
		status = commandStatus(err)
		h.logger.Warn("command failed", "command", req.Command, "athlete_id", req.AthleteID, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := map[string]any{"ok": err == nil}
	if msg := service.UserMessage(err); msg != "" {
		response["message"] = msg
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode command response", "error", err)
	}
}

// commandStatus maps the error taxonomy to an HTTP status.
func commandStatus(err error) int {
	var (
		validation   *strava.ValidationError
		scopeErr     *service.ScopeError
		unauthorized *strava.UnauthorizedError
		notFound     *strava.NotFoundError
		rateLimited  *strava.RateLimitError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &scopeErr), errors.As(err, &unauthorized):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &rateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
