package adsb

import (
	"context"

	"github.com/unklstewy/whats-overhead/pkg/coordinates"
)

// Report is one aircraft position report from a single poll.
// Reports from different polls are unrelated; nothing here identifies an
// aircraft across polls.
//
// Every field other than Hex is optional. A nil pointer means the feed did
// not supply the value, which is common for unknown aircraft metadata.
type Report struct {
	// Hex is the ICAO 24-bit address as sent by the feed (e.g., "a12345").
	// Informational only; never used to de-duplicate.
	Hex string `json:"hex,omitempty"`

	// Type is the ICAO aircraft type designator (e.g., "B738")
	Type *string `json:"type,omitempty"`

	// Callsign is the flight number or registration, whitespace trimmed
	Callsign *string `json:"callsign,omitempty"`

	// AltitudeFeet is geometric (GPS) altitude in feet
	AltitudeFeet *float64 `json:"altitude_ft,omitempty"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude *float64 `json:"lat,omitempty"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude *float64 `json:"lon,omitempty"`

	// GroundSpeedKt is ground speed in knots
	GroundSpeedKt *float64 `json:"ground_speed_kt,omitempty"`
}

// Position returns the report's coordinate when both latitude and longitude are present.
func (r Report) Position() (coordinates.Coordinate, bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return coordinates.Coordinate{}, false
	}
	return coordinates.Coordinate{Latitude: *r.Latitude, Longitude: *r.Longitude}, true
}

// TypeOr returns the aircraft type or fallback when unknown.
func (r Report) TypeOr(fallback string) string {
	if r.Type == nil || *r.Type == "" {
		return fallback
	}
	return *r.Type
}

// CallsignOr returns the callsign or fallback when unknown.
func (r Report) CallsignOr(fallback string) string {
	if r.Callsign == nil || *r.Callsign == "" {
		return fallback
	}
	return *r.Callsign
}

// DataSource is the interface that all ADS-B data providers must implement.
// This abstraction allows switching between online services (adsb.lol,
// airplanes.live) and decorators such as caching or retry.
type DataSource interface {
	// GetReports returns all reports within radiusNM of center.
	// The slice preserves the order in which the provider listed the aircraft.
	GetReports(ctx context.Context, center coordinates.Coordinate, radiusNM float64) ([]Report, error)

	// Close cleanly shuts down the data source connection.
	Close() error
}
