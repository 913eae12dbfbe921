package coordinates

import "math"

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusMeters is the fixed spherical Earth radius used by the haversine formula
	EarthRadiusMeters = 6371000.0

	// FeetToMeters converts feet to meters
	FeetToMeters = 0.3048

	// MetersPerNauticalMile converts nautical miles to meters
	MetersPerNauticalMile = 1852.0

	// MinHorizontalMeters floors the horizontal leg of the elevation angle.
	// Reports placing an aircraft within a meter of the observer would otherwise
	// push the elevation to exactly ±90°.
	MinHorizontalMeters = 1.0
)

// Coordinate is a point on Earth's surface in decimal degrees (WGS84).
// It is an immutable value: a fresh Coordinate is built for every observation.
type Coordinate struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64 `json:"lat"`

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64 `json:"lon"`
}

// Valid reports whether the coordinate lies inside the documented lat/lon ranges.
// NaN values are never valid.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// ToRadians converts the coordinate to radians.
// Returns (latRad, lonRad).
func (c Coordinate) ToRadians() (float64, float64) {
	return c.Latitude * DegreesToRadians, c.Longitude * DegreesToRadians
}

// LineOfSight describes where an airborne target sits relative to a ground observer.
// All values are SI base units; conversion to display units belongs to pkg/format.
type LineOfSight struct {
	// HorizontalMeters is the great-circle surface distance to the point below the target
	HorizontalMeters float64 `json:"horizontal_m"`

	// AltitudeMeters is the target altitude converted from feet
	AltitudeMeters float64 `json:"altitude_m"`

	// TotalMeters is the slant range, hypot(horizontal, altitude). Earth curvature is ignored.
	TotalMeters float64 `json:"total_m"`

	// ElevationRad is the angle above the observer's horizon
	// 0 = horizon, π/2 = directly overhead
	ElevationRad float64 `json:"elevation_rad"`

	// BearingDeg is the initial compass bearing from observer to target (0-360)
	// 0 = North, 90 = East, 180 = South, 270 = West
	BearingDeg float64 `json:"bearing_deg"`
}

// ElevationDeg returns the elevation angle in degrees.
func (l LineOfSight) ElevationDeg() float64 {
	return l.ElevationRad * RadiansToDegrees
}

// NormalizeAzimuth ensures azimuth is in the range [0, 360).
func NormalizeAzimuth(azimuth float64) float64 {
	az := math.Mod(azimuth, 360.0)
	if az < 0 {
		az += 360.0
	}
	return az
}

// HorizontalDistance calculates the great-circle surface distance between two points.
// Uses the haversine formula on a sphere of radius EarthRadiusMeters.
// Returns distance in meters; 0 when the points coincide.
func HorizontalDistance(observer, target Coordinate) float64 {
	lat1, lon1 := observer.ToRadians()
	lat2, lon2 := target.ToRadians()

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	// h stays within [0, 1] for valid coordinates
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// DistanceNauticalMiles calculates the great-circle distance between two points.
// Returns distance in nautical miles.
func DistanceNauticalMiles(observer, target Coordinate) float64 {
	return HorizontalDistance(observer, target) / MetersPerNauticalMile
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Uses spherical trigonometry to calculate the bearing along a great circle.
// Returns bearing in degrees [0, 360), where 0 = North, 90 = East, 180 = South, 270 = West.
//
// Coincident points are not special-cased: atan2(0, 0) yields 0.
func Bearing(observer, target Coordinate) float64 {
	lat1, lon1 := observer.ToRadians()
	lat2, lon2 := target.ToRadians()

	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	bearing := math.Atan2(y, x) * RadiansToDegrees

	return math.Mod(bearing+360, 360)
}

// ComputeLineOfSight places a target at targetAltitudeFeet above target and
// describes it as seen from observer.
//
// The function is total: every float input produces a result, and out-of-range
// or NaN inputs produce implementation-defined numbers rather than a panic.
func ComputeLineOfSight(observer, target Coordinate, targetAltitudeFeet float64) LineOfSight {
	horizontal := HorizontalDistance(observer, target)
	altitude := targetAltitudeFeet * FeetToMeters

	return LineOfSight{
		HorizontalMeters: horizontal,
		AltitudeMeters:   altitude,
		TotalMeters:      math.Hypot(horizontal, altitude),
		ElevationRad:     math.Atan2(altitude, math.Max(horizontal, MinHorizontalMeters)),
		BearingDeg:       Bearing(observer, target),
	}
}
