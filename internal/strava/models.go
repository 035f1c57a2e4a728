package strava

import (
	"time"

	"strava-home-bridge/internal/gear"
)

// AthleteProfile is an athlete identity plus normalized gear catalogs.
// A fresh value is produced on every athlete fetch.
type AthleteProfile struct {
	ID            int64       `json:"id"`
	FirstName     string      `json:"firstname"`
	LastName      string      `json:"lastname"`
	Profile       string      `json:"profile"`
	ProfileMedium string      `json:"profile_medium"`
	Shoes         []gear.Item `json:"shoes"`
	Bikes         []gear.Item `json:"bikes"`
}

// Activity is a summary activity as returned by the activity list
// endpoint, with the handful of detail fields the bridge projects.
type Activity struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	Type               string          `json:"type"`
	SportType          string          `json:"sport_type"`
	Distance           float64         `json:"distance"`
	MovingTime         int64           `json:"moving_time"`
	ElapsedTime        int64           `json:"elapsed_time"`
	TotalElevationGain float64         `json:"total_elevation_gain"`
	StartDate          time.Time       `json:"start_date"`
	StartDateLocal     time.Time       `json:"start_date_local"`
	LocationCity       string          `json:"location_city"`
	LocationState      string          `json:"location_state"`
	KudosCount         int             `json:"kudos_count"`
	AchievementCount   int             `json:"achievement_count"`
	Calories           *float64        `json:"calories,omitempty"`
	Kilojoules         *float64        `json:"kilojoules,omitempty"`
	AverageWatts       *float64        `json:"average_watts,omitempty"`
	AverageHeartrate   *float64        `json:"average_heartrate,omitempty"`
	MaxHeartrate       *float64        `json:"max_heartrate,omitempty"`
	AverageCadence     *float64        `json:"average_cadence,omitempty"`
	StartLatLng        []float64       `json:"start_latlng,omitempty"`
	EndLatLng          []float64       `json:"end_latlng,omitempty"`
	Commute            bool            `json:"commute"`
	Private            bool            `json:"private"`
	Trainer            bool            `json:"trainer"`
	Manual             bool            `json:"manual"`
	DeviceName         string          `json:"device_name,omitempty"`
	GearID             string          `json:"gear_id,omitempty"`
	Gear               *ActivityGear   `json:"gear,omitempty"`
	Map                *ActivityMap    `json:"map,omitempty"`
	Athlete            ActivityAthlete `json:"athlete"`
}

// ActivityAthlete is the athlete reference embedded in an activity.
type ActivityAthlete struct {
	ID int64 `json:"id"`
}

// ActivityGear is the gear reference embedded in a detailed activity.
type ActivityGear struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ActivityMap carries the encoded route polyline.
type ActivityMap struct {
	SummaryPolyline string `json:"summary_polyline"`
}

// StatsTotals is one aggregation period from the athlete stats endpoint.
type StatsTotals struct {
	Count         int     `json:"count"`
	Distance      float64 `json:"distance"`
	MovingTime    int64   `json:"moving_time"`
	ElapsedTime   int64   `json:"elapsed_time"`
	ElevationGain float64 `json:"elevation_gain"`
}

// AthleteStats is the raw response of the athlete stats endpoint.
type AthleteStats struct {
	BiggestRideDistance       float64     `json:"biggest_ride_distance"`
	BiggestClimbElevationGain float64     `json:"biggest_climb_elevation_gain"`
	RecentRideTotals          StatsTotals `json:"recent_ride_totals"`
	RecentRunTotals           StatsTotals `json:"recent_run_totals"`
	RecentSwimTotals          StatsTotals `json:"recent_swim_totals"`
	YTDRideTotals             StatsTotals `json:"ytd_ride_totals"`
	YTDRunTotals              StatsTotals `json:"ytd_run_totals"`
	YTDSwimTotals             StatsTotals `json:"ytd_swim_totals"`
	AllRideTotals             StatsTotals `json:"all_ride_totals"`
	AllRunTotals              StatsTotals `json:"all_run_totals"`
	AllSwimTotals             StatsTotals `json:"all_swim_totals"`
}

// Photo is one entry from the activity photos endpoint.
type Photo struct {
	ActivityID     int64             `json:"activity_id"`
	CreatedAtLocal time.Time         `json:"created_at_local"`
	URLs           map[string]string `json:"urls"`
}

// rawAthlete is the wire shape of the athlete endpoint before gear
// normalization.
type rawAthlete struct {
	ID            int64       `json:"id"`
	FirstName     string      `json:"firstname"`
	LastName      string      `json:"lastname"`
	Profile       string      `json:"profile"`
	ProfileMedium string      `json:"profile_medium"`
	Shoes         []*gear.Raw `json:"shoes"`
	Bikes         []*gear.Raw `json:"bikes"`
}
