// Package sensor projects activity and summary data into formatted sensor
// values. Projections are tagged variants composed over a read-only
// activity snapshot; each carries a pure formatting and unit-conversion
// function instead of deriving behavior through a type hierarchy.
package sensor

import (
	"fmt"
	"time"

	"strava-home-bridge/internal/strava"
)

// Units selects the measurement system, resolved once per snapshot.
type Units int

const (
	Metric Units = iota
	Imperial
)

// ParseUnits maps a configuration string to a Units value. Anything other
// than "imperial" is metric.
func ParseUnits(s string) Units {
	if s == "imperial" {
		return Imperial
	}
	return Metric
}

// Kind tags the projection variants.
type Kind int

const (
	KindDistance Kind = iota
	KindDuration
	KindCount
	KindRate
	KindPace
)

const (
	metersPerMile      = 1609.344
	feetPerMeter       = 3.28084
	kilojoulesPerKcal  = 4.184
	unknownPlaceholder = "—"
)

// Projection extracts one value from an activity. Extract reports whether
// the value is known; absent fields format as a placeholder rather than a
// sentinel number.
type Projection struct {
	Name    string
	Kind    Kind
	Unit    string // display unit for KindRate
	Extract func(a *strava.Activity) (float64, bool)
}

// Format renders the projected value for display.
func (p Projection) Format(a *strava.Activity, units Units) string {
	value, known := p.Extract(a)
	if !known {
		return unknownPlaceholder
	}

	switch p.Kind {
	case KindDistance:
		return FormatDistance(value, units)
	case KindDuration:
		return FormatDuration(time.Duration(value) * time.Second)
	case KindCount:
		return fmt.Sprintf("%d", int64(value))
	case KindRate:
		return fmt.Sprintf("%.0f %s", value, p.Unit)
	case KindPace:
		return FormatPace(value, units)
	default:
		return fmt.Sprintf("%v", value)
	}
}

// FormatDistance renders meters as kilometers or miles.
func FormatDistance(meters float64, units Units) string {
	if units == Imperial {
		return fmt.Sprintf("%.2f mi", meters/metersPerMile)
	}
	return fmt.Sprintf("%.2f km", meters/1000)
}

// FormatElevation renders meters of gain as meters or feet.
func FormatElevation(meters float64, units Units) string {
	if units == Imperial {
		return fmt.Sprintf("%.0f ft", meters*feetPerMeter)
	}
	return fmt.Sprintf("%.0f m", meters)
}

// FormatDuration renders a duration as h:mm:ss or m:ss.
func FormatDuration(d time.Duration) string {
	total := int64(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// FormatPace renders meters per second as min/km or min/mi.
func FormatPace(metersPerSecond float64, units Units) string {
	if metersPerSecond <= 0 {
		return unknownPlaceholder
	}

	unitMeters := 1000.0
	suffix := "/km"
	if units == Imperial {
		unitMeters = metersPerMile
		suffix = "/mi"
	}

	secondsPerUnit := unitMeters / metersPerSecond
	minutes := int(secondsPerUnit) / 60
	seconds := int(secondsPerUnit) % 60
	return fmt.Sprintf("%d:%02d %s", minutes, seconds, suffix)
}

// Standard activity projections.
var (
	Distance = Projection{
		Name: "distance",
		Kind: KindDistance,
		Extract: func(a *strava.Activity) (float64, bool) {
			return a.Distance, a.Distance > 0
		},
	}

	MovingTime = Projection{
		Name: "moving_time",
		Kind: KindDuration,
		Extract: func(a *strava.Activity) (float64, bool) {
			return float64(a.MovingTime), a.MovingTime > 0
		},
	}

	ElapsedTime = Projection{
		Name: "elapsed_time",
		Kind: KindDuration,
		Extract: func(a *strava.Activity) (float64, bool) {
			return float64(a.ElapsedTime), a.ElapsedTime > 0
		},
	}

	Kudos = Projection{
		Name: "kudos",
		Kind: KindCount,
		Extract: func(a *strava.Activity) (float64, bool) {
			return float64(a.KudosCount), true
		},
	}

	Trophies = Projection{
		Name: "trophies",
		Kind: KindCount,
		Extract: func(a *strava.Activity) (float64, bool) {
			return float64(a.AchievementCount), true
		},
	}

	Power = Projection{
		Name: "power",
		Kind: KindRate,
		Unit: "W",
		Extract: func(a *strava.Activity) (float64, bool) {
			if a.AverageWatts == nil {
				return 0, false
			}
			return *a.AverageWatts, true
		},
	}

	HeartRate = Projection{
		Name: "heart_rate",
		Kind: KindRate,
		Unit: "bpm",
		Extract: func(a *strava.Activity) (float64, bool) {
			if a.AverageHeartrate == nil {
				return 0, false
			}
			return *a.AverageHeartrate, true
		},
	}

	// Strava reports one-sided cadence; doubled for steps per minute.
	Cadence = Projection{
		Name: "cadence",
		Kind: KindRate,
		Unit: "spm",
		Extract: func(a *strava.Activity) (float64, bool) {
			if a.AverageCadence == nil {
				return 0, false
			}
			return *a.AverageCadence * 2, true
		},
	}

	Calories = Projection{
		Name: "calories",
		Kind: KindCount,
		Extract: func(a *strava.Activity) (float64, bool) {
			if a.Calories != nil {
				return *a.Calories, true
			}
			if a.Kilojoules != nil {
				return *a.Kilojoules / kilojoulesPerKcal, true
			}
			return 0, false
		},
	}

	Pace = Projection{
		Name: "pace",
		Kind: KindPace,
		Extract: func(a *strava.Activity) (float64, bool) {
			if a.MovingTime <= 0 || a.Distance <= 0 {
				return 0, false
			}
			return a.Distance / float64(a.MovingTime), true
		},
	}
)

// All lists the standard projections in display order.
var All = []Projection{
	Distance, MovingTime, ElapsedTime, Pace, Power, HeartRate, Cadence,
	Calories, Kudos, Trophies,
}
