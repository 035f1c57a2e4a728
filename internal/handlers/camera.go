package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"strava-home-bridge/internal/images"
)

// CameraHandler serves the current image of each athlete's rotation.
type CameraHandler struct {
	caches map[int64]*images.Cache
	logger *slog.Logger
}

// NewCameraHandler creates a camera handler over per-athlete rotations.
func NewCameraHandler(caches map[int64]*images.Cache) *CameraHandler {
	return &CameraHandler{
		caches: caches,
		logger: slog.Default(),
	}
}

// HandleImage handles GET /camera/{athlete_id}: it proxies the bytes of
// the athlete's current rotation image. GET /camera/{athlete_id}/state
// returns the current URL instead.
func (h *CameraHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/camera/")
	wantState := false
	if cut, ok := strings.CutSuffix(rest, "/state"); ok {
		rest = cut
		wantState = true
	}

	athleteID, err := strconv.ParseInt(strings.TrimSuffix(rest, "/"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid athlete id", http.StatusBadRequest)
		return
	}

	cache, ok := h.caches[athleteID]
	if !ok {
		http.Error(w, "Unknown athlete", http.StatusNotFound)
		return
	}

	if wantState {
		current := cache.Current()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"img_url": current.URL}); err != nil {
			h.logger.Error("failed to encode camera state", "error", err)
		}
		return
	}

	body, err := cache.Fetch(r.Context())
	if err != nil {
		h.logger.Error("failed to fetch camera image", "athlete_id", athleteID, "error", err)
		http.Error(w, "Bad gateway", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	if _, err := w.Write(body); err != nil {
		h.logger.Error("failed to write camera image", "error", err)
	}
}
