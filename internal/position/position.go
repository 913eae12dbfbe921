// Package position supplies the observer's location.
package position

import (
	"context"
	"errors"
	"fmt"

	"github.com/unklstewy/whats-overhead/pkg/config"
	"github.com/unklstewy/whats-overhead/pkg/coordinates"
)

var (
	// ErrUnavailable means no position source can be reached at all.
	ErrUnavailable = errors.New("geolocation is not available")

	// ErrNoFix means the source is reachable but has not produced a usable fix.
	ErrNoFix = errors.New("no position fix")
)

// Provider returns the observer's current position.
type Provider interface {
	Current(ctx context.Context) (coordinates.Coordinate, error)
}

// Message returns the user-facing text for a position error.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnavailable):
		return "Geolocation is not available on this system."
	default:
		return "Unable to access location."
	}
}

// Static always reports the same coordinate.
type Static struct {
	Coordinate coordinates.Coordinate
}

// Current returns the configured coordinate.
func (s Static) Current(ctx context.Context) (coordinates.Coordinate, error) {
	return s.Coordinate, nil
}

// None never has a position.
type None struct{}

// Current always fails with ErrUnavailable.
func (None) Current(ctx context.Context) (coordinates.Coordinate, error) {
	return coordinates.Coordinate{}, ErrUnavailable
}

// FromConfig builds the provider selected by cfg.Source.
func FromConfig(cfg config.ObserverConfig) (Provider, error) {
	switch cfg.Source {
	case "static":
		c := coordinates.Coordinate{Latitude: cfg.Latitude, Longitude: cfg.Longitude}
		if !c.Valid() {
			return nil, fmt.Errorf("static observer position %v out of range", c)
		}
		return Static{Coordinate: c}, nil
	case "gpsd":
		return NewGPSD(GPSDConfig{
			Addr:       cfg.GPSDAddr,
			FixTimeout: cfg.FixTimeout(),
			MaxFixAge:  cfg.MaxFixAge(),
		}), nil
	case "none", "":
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown observer source %q", cfg.Source)
	}
}
