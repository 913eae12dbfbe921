package coordinates

import (
	"fmt"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// MagneticDeclination returns the World Magnetic Model declination at c for the given date.
// Returns degrees, positive East and negative West.
//
// altitudeMeters is the height of the point above mean sea level; for a ground
// observer this is their elevation.
func MagneticDeclination(c Coordinate, altitudeMeters float64, at time.Time) (float64, error) {
	loc := egm96.NewLocationGeodetic(c.Latitude, c.Longitude, altitudeMeters)

	mag, err := wmm.CalculateWMMMagneticField(loc, at)
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate magnetic model: %w", err)
	}

	return mag.D(), nil
}

// MagneticBearing converts a true bearing into a magnetic one using declination
// (degrees, +East). Result is normalized to [0, 360).
func MagneticBearing(trueDeg, declination float64) float64 {
	return NormalizeAzimuth(trueDeg - declination)
}
