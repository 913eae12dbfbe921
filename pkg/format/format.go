// Package format converts selection results into display strings.
package format

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/unklstewy/whats-overhead/pkg/coordinates"
	"github.com/unklstewy/whats-overhead/pkg/selection"
)

// Placeholder is shown for values the feed did not supply.
const Placeholder = "—"

var cardinals = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// NauticalMiles formats meters as nautical miles with one decimal, e.g. "1.8 nm".
func NauticalMiles(meters float64) string {
	return fmt.Sprintf("%.1f nm", meters/coordinates.MetersPerNauticalMile)
}

// Altitude formats meters as whole feet with thousands separators, e.g. "10,000 ft".
func Altitude(meters float64) string {
	feet := int64(math.Round(meters / coordinates.FeetToMeters))
	return humanize.Comma(feet) + " ft"
}

// SpeedKt formats a ground speed, e.g. "450 kt", or Placeholder when unknown.
func SpeedKt(kt *float64) string {
	if kt == nil {
		return Placeholder
	}
	return fmt.Sprintf("%d kt", int64(math.Round(*kt)))
}

// Bearing formats degrees with an 8-point cardinal, e.g. "45° NE".
// Input is wrapped into [0, 360) first.
func Bearing(deg float64) string {
	wrapped := coordinates.NormalizeAzimuth(deg)
	idx := int(math.Round(wrapped/45)) % 8
	return fmt.Sprintf("%.0f° %s", wrapped, cardinals[idx])
}

// Elevation formats an angle in radians as degrees with one decimal, e.g. "45.0°".
func Elevation(rad float64) string {
	return fmt.Sprintf("%.1f°", rad*coordinates.RadiansToDegrees)
}

// Badge is one labelled value on a card.
type Badge struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// PlaneCard is the display model for a selection result.
type PlaneCard struct {
	// Eyebrow is the mode heading ("Closest by distance" / "Closest overhead")
	Eyebrow string `json:"eyebrow"`

	// Empty is true when there was nothing to select
	Empty bool `json:"empty"`

	// Message is shown instead of the details when Empty
	Message string `json:"message,omitempty"`

	Title    string  `json:"title,omitempty"`
	Subtitle string  `json:"subtitle,omitempty"`
	Badges   []Badge `json:"badges,omitempty"`
}

// CardOptions tunes optional card content.
type CardOptions struct {
	// Declination (degrees, +East) adds a magnetic bearing badge when non-nil
	Declination *float64
}

// EmptyMessage is the card text when no aircraft qualifies.
const EmptyMessage = "No aircraft in range yet."

// Card builds the plane card for a selection result.
func Card(mode selection.Mode, cand selection.Candidate, ok bool, opts CardOptions) PlaneCard {
	card := PlaneCard{Eyebrow: mode.Label()}
	if !ok {
		card.Empty = true
		card.Message = EmptyMessage
		return card
	}

	m := cand.Metrics
	card.Title = cand.Report.TypeOr("Unknown type")
	card.Subtitle = cand.Report.CallsignOr("No callsign")
	card.Badges = []Badge{
		{Label: "Line-of-sight", Value: NauticalMiles(m.TotalMeters) + " @ " + Bearing(m.BearingDeg)},
		{Label: "Altitude", Value: Altitude(m.AltitudeMeters)},
		{Label: "Speed", Value: SpeedKt(cand.Report.GroundSpeedKt)},
	}
	if mode == selection.Overhead {
		card.Badges = append(card.Badges, Badge{Label: "Elevation", Value: Elevation(m.ElevationRad)})
	}
	if opts.Declination != nil {
		mag := coordinates.MagneticBearing(m.BearingDeg, *opts.Declination)
		card.Badges = append(card.Badges, Badge{Label: "Magnetic", Value: Bearing(mag)})
	}

	return card
}

// Location formats the observer position with four decimals, or a waiting
// message before the first fix.
func Location(c *coordinates.Coordinate) string {
	if c == nil {
		return "Waiting for GPS…"
	}
	return fmt.Sprintf("%.4f, %.4f", c.Latitude, c.Longitude)
}

// Range formats the search radius, e.g. "20 nm".
func Range(radiusNM float64) string {
	return fmt.Sprintf("%g nm", radiusNM)
}

// LastUpdate formats the time of the last successful poll as a local clock
// time, or Placeholder before the first one.
func LastUpdate(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return t.Local().Format("15:04:05")
}
