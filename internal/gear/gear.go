package gear

import (
	"encoding/json"
	"strconv"
	"strings"
)

const gearBaseURL = "https://www.strava.com/gear"

// Item is a normalized, JSON-safe representation of a Strava gear entry
// (shoe or bike). An empty ID means the provider did not assign one, in
// which case StravaURL is also empty.
type Item struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Brand     string `json:"brand"`
	Model     string `json:"model"`
	DistanceM int64  `json:"distance_m"`
	Retired   bool   `json:"retired"`
	Primary   bool   `json:"primary"`
	FrameType int    `json:"frame_type,omitempty"`
	StravaURL string `json:"strava_url,omitempty"`
}

// Raw is the lenient wire shape of a gear entry as returned by the Strava
// API. Distance is kept raw because the API has been observed to send
// numbers, numeric strings, and garbage.
type Raw struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	BrandName string          `json:"brand_name"`
	ModelName string          `json:"model_name"`
	Distance  json.RawMessage `json:"distance"`
	Retired   bool            `json:"retired"`
	Primary   bool            `json:"primary"`
	FrameType int             `json:"frame_type"`
}

// distanceMeters coerces a raw distance value to whole meters.
// Anything unparsable yields 0; normalization never fails.
func distanceMeters(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int64(f)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return int64(f)
		}
	}

	return 0
}

// NormalizeShoe converts a raw shoe payload into a normalized Item.
// A nil input yields a zero-value item.
func NormalizeShoe(raw *Raw) Item {
	if raw == nil {
		return Item{}
	}

	item := Item{
		ID:        raw.ID,
		Name:      raw.Name,
		Brand:     raw.BrandName,
		Model:     raw.ModelName,
		DistanceM: distanceMeters(raw.Distance),
		Retired:   raw.Retired,
		Primary:   raw.Primary,
	}
	if item.ID != "" {
		item.StravaURL = gearBaseURL + "/" + item.ID
	}

	return item
}

// NormalizeBike converts a raw bike payload into a normalized Item.
// Bikes additionally carry the Strava frame type code.
func NormalizeBike(raw *Raw) Item {
	if raw == nil {
		return Item{}
	}

	item := NormalizeShoe(raw)
	item.FrameType = raw.FrameType
	return item
}

// ResolveByName returns the first item whose name matches exactly.
func ResolveByName(name string, items []Item) (Item, bool) {
	if name == "" {
		return Item{}, false
	}

	for _, item := range items {
		if item.Name == name {
			return item, true
		}
	}

	return Item{}, false
}

// EnforceMutualExclusivity guarantees two tracking-pod selections never
// point at the same gear: when both are set and equal the second is
// cleared, otherwise both pass through unchanged.
func EnforceMutualExclusivity(a, b string) (string, string) {
	if a != "" && a == b {
		return a, ""
	}
	return a, b
}
