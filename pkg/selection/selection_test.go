package selection

import (
	"math"
	"testing"

	"github.com/unklstewy/whats-overhead/pkg/adsb"
	"github.com/unklstewy/whats-overhead/pkg/coordinates"
)

var observer = coordinates.Coordinate{Latitude: 40.0, Longitude: -74.0}

func ptr[T any](v T) *T {
	return &v
}

// report builds an airborne report at lat/lon with the given altitude.
func report(hex string, lat, lon, altFeet float64) adsb.Report {
	return adsb.Report{
		Hex:          hex,
		Latitude:     ptr(lat),
		Longitude:    ptr(lon),
		AltitudeFeet: ptr(altFeet),
	}
}

// reportAt places a report due north of observer at horizontal distance h
// meters, high enough to sit at elevation e radians.
func reportAt(hex string, h, e float64) adsb.Report {
	dLat := h / coordinates.EarthRadiusMeters * coordinates.RadiansToDegrees
	altFeet := h * math.Tan(e) / coordinates.FeetToMeters
	return report(hex, observer.Latitude+dLat, observer.Longitude, altFeet)
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name string
		r    adsb.Report
		want bool
	}{
		{"Complete", report("a", 40.1, -74, 5000), true},
		{"Missing latitude", adsb.Report{Longitude: ptr(-74.0), AltitudeFeet: ptr(5000.0)}, false},
		{"Missing longitude", adsb.Report{Latitude: ptr(40.0), AltitudeFeet: ptr(5000.0)}, false},
		{"Missing altitude", adsb.Report{Latitude: ptr(40.0), Longitude: ptr(-74.0)}, false},
		{"Zero altitude", report("b", 40.1, -74, 0), false},
		{"Negative altitude", report("c", 40.1, -74, -50), false},
		{"Barely airborne", report("d", 40.1, -74, 0.1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Eligible(tt.r); got != tt.want {
				t.Errorf("Eligible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectIneligibleNeverChosen(t *testing.T) {
	// The ineligible reports would win on every metric if they were considered
	reports := []adsb.Report{
		{Hex: "nolat", Longitude: ptr(-74.0), AltitudeFeet: ptr(100.0)},
		{Hex: "noalt", Latitude: ptr(40.0), Longitude: ptr(-74.0)},
		report("ground", 40.0, -74.0, 0),
		report("far", 40.5, -74.0, 35000),
	}

	for _, mode := range []Mode{Near, Overhead} {
		got, ok := Select(&observer, reports, mode)
		if !ok {
			t.Fatalf("%s: expected a result", mode)
		}
		if got.Report.Hex != "far" {
			t.Errorf("%s: selected %s, want far", mode, got.Report.Hex)
		}
	}
}

func TestSelectEmpty(t *testing.T) {
	for _, mode := range []Mode{Near, Overhead} {
		if _, ok := Select(&observer, nil, mode); ok {
			t.Errorf("%s: expected none for nil slice", mode)
		}
		if _, ok := Select(&observer, []adsb.Report{}, mode); ok {
			t.Errorf("%s: expected none for empty slice", mode)
		}
		if _, ok := Select(&observer, []adsb.Report{report("g", 40, -74, 0)}, mode); ok {
			t.Errorf("%s: expected none when nothing is eligible", mode)
		}
	}
}

func TestSelectUnknownObserver(t *testing.T) {
	reports := []adsb.Report{report("a", 40.01, -74, 10000)}
	if got, ok := Select(nil, reports, Near); ok {
		t.Errorf("expected none without observer, got %+v", got)
	}
}

func TestSelectNearMonotonic(t *testing.T) {
	a := report("A", 40.01, -74.0, 10000)
	b := report("B", 40.2, -74.0, 10000)

	for _, order := range [][]adsb.Report{{a, b}, {b, a}} {
		got, ok := Select(&observer, order, Near)
		if !ok || got.Report.Hex != "A" {
			t.Errorf("near over [%s %s] = %s, want A", order[0].Hex, order[1].Hex, got.Report.Hex)
		}
	}
}

func TestSelectNearTieKeepsFirst(t *testing.T) {
	first := report("first", 40.05, -74.0, 8000)
	second := report("second", 40.05, -74.0, 8000)

	got, _ := Select(&observer, []adsb.Report{first, second}, Near)
	if got.Report.Hex != "first" {
		t.Errorf("tie selected %s, want first", got.Report.Hex)
	}
}

func TestSelectNearUsesSlantRange(t *testing.T) {
	// Low and a little farther beats high and directly overhead
	high := report("high", 40.0, -74.0, 40000)
	low := report("low", 40.05, -74.0, 1000)
	got, _ := Select(&observer, []adsb.Report{high, low}, Near)
	if got.Report.Hex != "low" {
		t.Errorf("selected %s, want low", got.Report.Hex)
	}
}

func TestSelectOverheadElevationPriority(t *testing.T) {
	a := reportAt("A", 10000, 0.5)
	b := reportAt("B", 50000, 0.9)

	for _, order := range [][]adsb.Report{{a, b}, {b, a}} {
		got, ok := Select(&observer, order, Overhead)
		if !ok || got.Report.Hex != "B" {
			t.Errorf("overhead over [%s %s] = %s, want B", order[0].Hex, order[1].Hex, got.Report.Hex)
		}
	}
}

func TestSelectOverheadTieBreak(t *testing.T) {
	// Elevations differ by 5e-5 rad; A is closer horizontally
	a := reportAt("A", 10000, 0.50005)
	b := reportAt("B", 10050, 0.5)

	for _, order := range [][]adsb.Report{{a, b}, {b, a}} {
		got, ok := Select(&observer, order, Overhead)
		if !ok || got.Report.Hex != "A" {
			t.Errorf("overhead over [%s %s] = %s, want A", order[0].Hex, order[1].Hex, got.Report.Hex)
		}
	}

	if math.Abs(0.50005-0.5) >= OverheadElevationTolerance {
		t.Fatal("fixture elevations must be within tolerance")
	}
}

func TestBetter(t *testing.T) {
	tests := []struct {
		name       string
		mode       Mode
		cand, best coordinates.LineOfSight
		want       bool
	}{
		{
			name: "Near closer wins",
			mode: Near,
			cand: coordinates.LineOfSight{TotalMeters: 100},
			best: coordinates.LineOfSight{TotalMeters: 200},
			want: true,
		},
		{
			name: "Near equal keeps best",
			mode: Near,
			cand: coordinates.LineOfSight{TotalMeters: 200},
			best: coordinates.LineOfSight{TotalMeters: 200},
			want: false,
		},
		{
			name: "Overhead higher wins even when farther",
			mode: Overhead,
			cand: coordinates.LineOfSight{ElevationRad: 0.9, HorizontalMeters: 50000},
			best: coordinates.LineOfSight{ElevationRad: 0.5, HorizontalMeters: 10000},
			want: true,
		},
		{
			name: "Overhead near-tie closer wins",
			mode: Overhead,
			cand: coordinates.LineOfSight{ElevationRad: 0.49995, HorizontalMeters: 9000},
			best: coordinates.LineOfSight{ElevationRad: 0.5, HorizontalMeters: 10000},
			want: true,
		},
		{
			name: "Overhead near-tie farther loses",
			mode: Overhead,
			cand: coordinates.LineOfSight{ElevationRad: 0.49995, HorizontalMeters: 11000},
			best: coordinates.LineOfSight{ElevationRad: 0.5, HorizontalMeters: 10000},
			want: false,
		},
		{
			name: "Overhead lower beyond tolerance loses even when closer",
			mode: Overhead,
			cand: coordinates.LineOfSight{ElevationRad: 0.4, HorizontalMeters: 10},
			best: coordinates.LineOfSight{ElevationRad: 0.5, HorizontalMeters: 10000},
			want: false,
		},
		{
			name: "Unknown mode compares as near",
			mode: Mode("sideways"),
			cand: coordinates.LineOfSight{TotalMeters: 100, ElevationRad: 0.1},
			best: coordinates.LineOfSight{TotalMeters: 200, ElevationRad: 0.9},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Better(tt.mode, tt.cand, tt.best); got != tt.want {
				t.Errorf("Better = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectConcreteScenario(t *testing.T) {
	r := report("abc", 40.01, -74.0, 10000)
	r.Callsign = ptr("UAL123")

	got, ok := New(Near).Select(&observer, []adsb.Report{r})
	if !ok {
		t.Fatal("expected a result")
	}

	m := got.Metrics
	if math.Abs(m.AltitudeMeters-3048) > 1e-9 {
		t.Errorf("AltitudeMeters = %f, want 3048", m.AltitudeMeters)
	}
	if math.Abs(m.HorizontalMeters-1112) > 1 {
		t.Errorf("HorizontalMeters = %f, want ~1112", m.HorizontalMeters)
	}
	if m.BearingDeg > 0.01 && m.BearingDeg < 359.99 {
		t.Errorf("BearingDeg = %f, want ~0", m.BearingDeg)
	}
	if math.Abs(m.TotalMeters-3246) > 5 {
		t.Errorf("TotalMeters = %f, want ~3246", m.TotalMeters)
	}
	if got.Report.CallsignOr("") != "UAL123" {
		t.Errorf("report not carried through: %+v", got.Report)
	}
}

func TestCandidatesPreservesOrder(t *testing.T) {
	reports := []adsb.Report{
		report("one", 40.1, -74, 1000),
		report("skip", 40.1, -74, 0),
		report("two", 40.2, -74, 1000),
	}

	got := Candidates(observer, reports)
	if len(got) != 2 || got[0].Report.Hex != "one" || got[1].Report.Hex != "two" {
		t.Errorf("unexpected candidates %+v", got)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"near", Near, false},
		{"overhead", Overhead, false},
		{" Overhead ", Overhead, false},
		{"NEAR", Near, false},
		{"closest", Near, true},
		{"", Near, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestModeOrDefault(t *testing.T) {
	tests := map[string]Mode{
		"overhead": Overhead,
		"near":     Near,
		"":         Near,
		"Overhead": Near,
		"garbage":  Near,
	}

	for in, want := range tests {
		if got := ModeOrDefault(in); got != want {
			t.Errorf("ModeOrDefault(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestModeLabelAndToggle(t *testing.T) {
	if Near.Label() != "Closest by distance" {
		t.Errorf("Near.Label() = %q", Near.Label())
	}
	if Overhead.Label() != "Closest overhead" {
		t.Errorf("Overhead.Label() = %q", Overhead.Label())
	}
	if Near.Toggle() != Overhead || Overhead.Toggle() != Near {
		t.Error("Toggle should switch between near and overhead")
	}
}
