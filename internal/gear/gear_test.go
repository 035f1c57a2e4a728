package gear

import (
	"encoding/json"
	"testing"
)

func TestNormalizeShoe(t *testing.T) {
	raw := &Raw{
		ID:        "shoe-1",
		Name:      "Pegasus",
		BrandName: "Nike",
		ModelName: "Pegasus 40",
		Distance:  json.RawMessage(`1234.5`),
		Primary:   true,
	}

	item := NormalizeShoe(raw)

	if item.ID != "shoe-1" {
		t.Errorf("Expected ID 'shoe-1', got %q", item.ID)
	}
	if item.DistanceM != 1234 {
		t.Errorf("Expected distance 1234, got %d", item.DistanceM)
	}
	if item.StravaURL != "https://www.strava.com/gear/shoe-1" {
		t.Errorf("Expected gear URL, got %q", item.StravaURL)
	}
	if !item.Primary {
		t.Error("Expected primary flag to carry over")
	}
}

func TestNormalizeShoe_NoID(t *testing.T) {
	item := NormalizeShoe(&Raw{Name: "Mystery shoe"})

	if item.StravaURL != "" {
		t.Errorf("Expected empty URL without an id, got %q", item.StravaURL)
	}
}

func TestNormalizeShoe_Nil(t *testing.T) {
	item := NormalizeShoe(nil)
	if item != (Item{}) {
		t.Errorf("Expected zero item for nil input, got %+v", item)
	}
}

func TestDistanceMeters_Coercion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int64
	}{
		{"number", `1500.9`, 1500},
		{"integer", `42`, 42},
		{"numeric string", `"987.6"`, 987},
		{"numeric string with spaces", `" 100 "`, 100},
		{"garbage string", `"not a number"`, 0},
		{"null", `null`, 0},
		{"object", `{"m": 5}`, 0},
		{"empty", ``, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := distanceMeters(json.RawMessage(tt.raw))
			if got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestNormalizeBike_FrameType(t *testing.T) {
	raw := &Raw{
		ID:        "b123",
		Name:      "Gravel bike",
		Distance:  json.RawMessage(`"2500"`),
		FrameType: 3,
	}

	item := NormalizeBike(raw)

	if item.FrameType != 3 {
		t.Errorf("Expected frame type 3, got %d", item.FrameType)
	}
	if item.DistanceM != 2500 {
		t.Errorf("Expected distance 2500, got %d", item.DistanceM)
	}
	if item.StravaURL != "https://www.strava.com/gear/b123" {
		t.Errorf("Expected gear URL, got %q", item.StravaURL)
	}
}

func TestResolveByName(t *testing.T) {
	items := []Item{
		{ID: "s1", Name: "Pegasus"},
		{ID: "s2", Name: "Vaporfly"},
	}

	item, found := ResolveByName("Vaporfly", items)
	if !found {
		t.Fatal("Expected to find 'Vaporfly'")
	}
	if item.ID != "s2" {
		t.Errorf("Expected id 's2', got %q", item.ID)
	}

	if _, found := ResolveByName("vaporfly", items); found {
		t.Error("Name matching should be exact, not case-insensitive")
	}
	if _, found := ResolveByName("", items); found {
		t.Error("Empty name should never resolve")
	}
	if _, found := ResolveByName("Pegasus", nil); found {
		t.Error("Empty catalog should never resolve")
	}
}

func TestEnforceMutualExclusivity(t *testing.T) {
	tests := []struct {
		a, b         string
		wantA, wantB string
	}{
		{"s1", "s1", "s1", ""},
		{"s1", "s2", "s1", "s2"},
		{"", "", "", ""},
		{"s1", "", "s1", ""},
		{"", "s2", "", "s2"},
	}

	for _, tt := range tests {
		gotA, gotB := EnforceMutualExclusivity(tt.a, tt.b)
		if gotA != tt.wantA || gotB != tt.wantB {
			t.Errorf("EnforceMutualExclusivity(%q, %q) = (%q, %q), want (%q, %q)",
				tt.a, tt.b, gotA, gotB, tt.wantA, tt.wantB)
		}
	}
}
