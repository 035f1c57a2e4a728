package sensor

import (
	"testing"
	"time"

	"strava-home-bridge/internal/strava"
)

func floatPtr(f float64) *float64 { return &f }

func TestParseUnits(t *testing.T) {
	if ParseUnits("imperial") != Imperial {
		t.Error("Expected 'imperial' to parse as Imperial")
	}
	if ParseUnits("metric") != Metric {
		t.Error("Expected 'metric' to parse as Metric")
	}
	if ParseUnits("") != Metric {
		t.Error("Expected empty string to default to Metric")
	}
	if ParseUnits("nonsense") != Metric {
		t.Error("Expected unknown values to default to Metric")
	}
}

func TestFormatDistance(t *testing.T) {
	if got := FormatDistance(10000, Metric); got != "10.00 km" {
		t.Errorf("Expected '10.00 km', got %q", got)
	}
	if got := FormatDistance(1609.344, Imperial); got != "1.00 mi" {
		t.Errorf("Expected '1.00 mi', got %q", got)
	}
}

func TestFormatElevation(t *testing.T) {
	if got := FormatElevation(100, Metric); got != "100 m" {
		t.Errorf("Expected '100 m', got %q", got)
	}
	if got := FormatElevation(100, Imperial); got != "328 ft" {
		t.Errorf("Expected '328 ft', got %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{90 * time.Second, "1:30"},
		{3 * time.Hour, "3:00:00"},
		{3661 * time.Second, "1:01:01"},
		{5 * time.Second, "0:05"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatPace(t *testing.T) {
	// 2 m/s = 500 s/km = 8:20 /km
	if got := FormatPace(2.0, Metric); got != "8:20 /km" {
		t.Errorf("Expected '8:20 /km', got %q", got)
	}
	// 4 m/s = 402.336 s/mi at 1609.344 m/mi = 6:42 /mi
	if got := FormatPace(4.0, Imperial); got != "6:42 /mi" {
		t.Errorf("Expected '6:42 /mi', got %q", got)
	}
	if got := FormatPace(0, Metric); got != "—" {
		t.Errorf("Expected placeholder for zero speed, got %q", got)
	}
}

func TestProjection_AbsentValuesFormatAsPlaceholder(t *testing.T) {
	activity := &strava.Activity{ID: 1}

	for _, p := range []Projection{Power, HeartRate, Cadence, Calories, Pace} {
		if got := p.Format(activity, Metric); got != "—" {
			t.Errorf("Expected %s to format absent data as placeholder, got %q", p.Name, got)
		}
	}
}

func TestProjection_Cadence_Doubled(t *testing.T) {
	activity := &strava.Activity{AverageCadence: floatPtr(85)}

	if got := Cadence.Format(activity, Metric); got != "170 spm" {
		t.Errorf("Expected one-sided cadence doubled to '170 spm', got %q", got)
	}
}

func TestProjection_Calories_KilojouleFallback(t *testing.T) {
	// Direct calories win when present.
	activity := &strava.Activity{Calories: floatPtr(500), Kilojoules: floatPtr(1000)}
	if got := Calories.Format(activity, Metric); got != "500" {
		t.Errorf("Expected direct calories, got %q", got)
	}

	// Without calories, kilojoules convert at 4.184 kJ/kcal.
	activity = &strava.Activity{Kilojoules: floatPtr(1000)}
	if got := Calories.Format(activity, Metric); got != "239" {
		t.Errorf("Expected converted calories '239', got %q", got)
	}
}

func TestProjection_Pace(t *testing.T) {
	// 8 km in 4000 s = 2 m/s = 8:20 /km
	activity := &strava.Activity{Distance: 8000, MovingTime: 4000}

	if got := Pace.Format(activity, Metric); got != "8:20 /km" {
		t.Errorf("Expected '8:20 /km', got %q", got)
	}
}

func TestSummarize(t *testing.T) {
	stats := &strava.AthleteStats{
		BiggestRideDistance:       150000,
		BiggestClimbElevationGain: 1200,
		RecentRunTotals:           strava.StatsTotals{Count: 3, Distance: 25000},
		YTDRunTotals:              strava.StatsTotals{Count: 40, Distance: 400000},
		AllRunTotals:              strava.StatsTotals{Count: 200, Distance: 2000000},
		AllRideTotals:             strava.StatsTotals{Count: 80, Distance: 4000000},
	}

	runs := Summarize(stats, "Run")
	if runs == nil {
		t.Fatal("Expected summaries for Run")
	}
	if runs[PeriodRecent].Count != 3 {
		t.Errorf("Expected 3 recent runs, got %d", runs[PeriodRecent].Count)
	}
	if runs[PeriodYTD].Distance != 400000 {
		t.Errorf("Expected YTD distance 400000, got %f", runs[PeriodYTD].Distance)
	}
	// Ride extremes never leak into run summaries.
	if runs[PeriodAll].BiggestRideDistance != 0 {
		t.Error("Run summaries must not carry ride extremes")
	}

	rides := Summarize(stats, "Ride")
	if rides[PeriodAll].BiggestRideDistance != 150000 {
		t.Errorf("Expected biggest ride distance on the all period, got %f", rides[PeriodAll].BiggestRideDistance)
	}
	if rides[PeriodRecent].BiggestRideDistance != 0 {
		t.Error("Ride extremes belong only to the all period")
	}
}

func TestSummarize_VariantTypesMapToBaseBucket(t *testing.T) {
	stats := &strava.AthleteStats{
		YTDRideTotals: strava.StatsTotals{Count: 12},
	}

	for _, variant := range []string{"MountainBikeRide", "GravelRide", "EBikeRide", "VirtualRide"} {
		summaries := Summarize(stats, variant)
		if summaries == nil {
			t.Fatalf("Expected summaries for %s", variant)
		}
		if summaries[PeriodYTD].Count != 12 {
			t.Errorf("Expected %s to aggregate under the ride bucket, got %d", variant, summaries[PeriodYTD].Count)
		}
	}
}

func TestSummarize_TypesWithoutBucket(t *testing.T) {
	stats := &strava.AthleteStats{}

	walks := Summarize(stats, "Walk")
	if walks == nil {
		t.Fatal("Expected zero-valued summaries for Walk, not nil")
	}
	for _, period := range []string{PeriodRecent, PeriodYTD, PeriodAll} {
		if walks[period].Count != 0 {
			t.Errorf("Expected zero-valued %s summary for Walk", period)
		}
	}

	if Summarize(stats, "Yoga") != nil {
		t.Error("Expected nil for a type with no stats mapping")
	}
	if Summarize(nil, "Run") != nil {
		t.Error("Expected nil for nil stats")
	}
}
