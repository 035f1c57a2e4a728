package sensor

import "strava-home-bridge/internal/strava"

// Period names for summary statistics.
const (
	PeriodRecent = "recent"
	PeriodYTD    = "ytd"
	PeriodAll    = "all"
)

// Summary is the aggregate totals for one activity type and period.
type Summary struct {
	Count         int
	Distance      float64
	MovingTime    int64
	ElevationGain float64

	// Ride-only extremes, populated for the "all" period of cycling types.
	BiggestRideDistance       float64
	BiggestClimbElevationGain float64
}

// statsField maps an activity type to the Strava stats bucket it
// aggregates under. Virtual and variant types map to their base bucket.
var statsField = map[string]string{
	"Ride":             "ride",
	"Run":              "run",
	"Swim":             "swim",
	"Walk":             "walk",
	"Hike":             "hike",
	"MountainBikeRide": "ride",
	"GravelRide":       "ride",
	"EBikeRide":        "ride",
	"TrailRun":         "run",
	"VirtualRide":      "ride",
	"VirtualRun":       "run",
}

func isCycling(activityType string) bool {
	switch activityType {
	case "Ride", "MountainBikeRide", "GravelRide", "EBikeRide", "VirtualRide":
		return true
	}
	return false
}

func totalsFor(stats *strava.AthleteStats, field, period string) (strava.StatsTotals, bool) {
	type key struct{ field, period string }
	lookup := map[key]strava.StatsTotals{
		{"ride", PeriodRecent}: stats.RecentRideTotals,
		{"run", PeriodRecent}:  stats.RecentRunTotals,
		{"swim", PeriodRecent}: stats.RecentSwimTotals,
		{"ride", PeriodYTD}:    stats.YTDRideTotals,
		{"run", PeriodYTD}:     stats.YTDRunTotals,
		{"swim", PeriodYTD}:    stats.YTDSwimTotals,
		{"ride", PeriodAll}:    stats.AllRideTotals,
		{"run", PeriodAll}:     stats.AllRunTotals,
		{"swim", PeriodAll}:    stats.AllSwimTotals,
	}

	totals, ok := lookup[key{field, period}]
	return totals, ok
}

// Summarize builds per-period summaries for one activity type from the
// raw stats payload. Types without a stats bucket (Walk, Hike) yield only
// zero-valued periods, matching what Strava reports for them.
func Summarize(stats *strava.AthleteStats, activityType string) map[string]Summary {
	if stats == nil {
		return nil
	}

	field, ok := statsField[activityType]
	if !ok {
		return nil
	}

	result := make(map[string]Summary, 3)
	for _, period := range []string{PeriodRecent, PeriodYTD, PeriodAll} {
		totals, ok := totalsFor(stats, field, period)
		if !ok {
			result[period] = Summary{}
			continue
		}

		summary := Summary{
			Count:         totals.Count,
			Distance:      totals.Distance,
			MovingTime:    totals.MovingTime,
			ElevationGain: totals.ElevationGain,
		}
		if period == PeriodAll && isCycling(activityType) {
			summary.BiggestRideDistance = stats.BiggestRideDistance
			summary.BiggestClimbElevationGain = stats.BiggestClimbElevationGain
		}
		result[period] = summary
	}

	return result
}
