// Package selection picks the single most relevant aircraft for an observer.
//
// Selection is a pure fold over the eligible reports of one poll: every
// eligible report is mapped to a Candidate and the mode's comparator keeps
// the better of the accumulator and the next candidate. Nothing is retained
// between calls.
package selection

import (
	"fmt"
	"math"
	"strings"

	"github.com/unklstewy/whats-overhead/pkg/adsb"
	"github.com/unklstewy/whats-overhead/pkg/coordinates"
)

// Mode is the selection policy.
type Mode string

const (
	// Near picks the aircraft with the smallest slant range.
	Near Mode = "near"

	// Overhead picks the aircraft with the highest elevation angle.
	Overhead Mode = "overhead"
)

// OverheadElevationTolerance is the elevation difference (radians) under which two
// candidates count as equally high in Overhead mode. The value is an arbitrary
// compatibility threshold (about 0.0057°), not a physically derived one.
const OverheadElevationTolerance = 1e-4

// ParseMode parses user input into a Mode. Matching ignores case and surrounding space.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Near:
		return Near, nil
	case Overhead:
		return Overhead, nil
	default:
		return Near, fmt.Errorf("unknown selection mode %q (want %q or %q)", s, Near, Overhead)
	}
}

// ModeOrDefault interprets a stored preference: only the exact value
// "overhead" selects Overhead, anything else falls back to Near.
func ModeOrDefault(s string) Mode {
	if Mode(s) == Overhead {
		return Overhead
	}
	return Near
}

// Label is the human-readable heading for the mode.
func (m Mode) Label() string {
	if m == Overhead {
		return "Closest overhead"
	}
	return "Closest by distance"
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == Overhead {
		return Near
	}
	return Overhead
}

// Candidate pairs a report with its line-of-sight metrics from the observer.
type Candidate struct {
	Report  adsb.Report             `json:"report"`
	Metrics coordinates.LineOfSight `json:"metrics"`
}

// Eligible reports whether a report can be selected at all: it needs a
// position and an altitude strictly above zero. Ground traffic and reports
// with missing geometry are skipped.
func Eligible(r adsb.Report) bool {
	return r.Latitude != nil && r.Longitude != nil &&
		r.AltitudeFeet != nil && *r.AltitudeFeet > 0
}

// Better reports whether cand should replace best under mode.
// Unknown modes compare as Near.
func Better(mode Mode, cand, best coordinates.LineOfSight) bool {
	if mode == Overhead {
		if cand.ElevationRad > best.ElevationRad {
			return true
		}
		return math.Abs(cand.ElevationRad-best.ElevationRad) < OverheadElevationTolerance &&
			cand.HorizontalMeters < best.HorizontalMeters
	}
	// Strict comparison keeps the earliest report on ties
	return cand.TotalMeters < best.TotalMeters
}

// Candidates maps the eligible reports to candidates, preserving input order.
func Candidates(observer coordinates.Coordinate, reports []adsb.Report) []Candidate {
	out := make([]Candidate, 0, len(reports))
	for _, r := range reports {
		if !Eligible(r) {
			continue
		}
		pos, _ := r.Position()
		out = append(out, Candidate{
			Report:  r,
			Metrics: coordinates.ComputeLineOfSight(observer, pos, *r.AltitudeFeet),
		})
	}
	return out
}

// Select returns the best candidate for observer under mode.
// The boolean is false when observer is nil or no report is eligible;
// that is a normal outcome, not an error.
func Select(observer *coordinates.Coordinate, reports []adsb.Report, mode Mode) (Candidate, bool) {
	if observer == nil {
		return Candidate{}, false
	}

	var best Candidate
	found := false
	for _, cand := range Candidates(*observer, reports) {
		if !found || Better(mode, cand.Metrics, best.Metrics) {
			best = cand
			found = true
		}
	}
	return best, found
}

// Selector carries an injected mode so callers can pass the policy around as a value.
type Selector struct {
	Mode Mode
}

// New returns a Selector for mode.
func New(mode Mode) Selector {
	return Selector{Mode: mode}
}

// Select applies the selector's mode.
func (s Selector) Select(observer *coordinates.Coordinate, reports []adsb.Report) (Candidate, bool) {
	return Select(observer, reports, s.Mode)
}
