package adsb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/unklstewy/whats-overhead/pkg/coordinates"
)

const (
	// DefaultBaseURL is the adsb.lol v2 API (airplanes.live serves the same /point shape)
	DefaultBaseURL = "https://api.adsb.lol/v2"

	// DefaultTimeout for API requests
	DefaultTimeout = 10 * time.Second

	// MaxRadiusNM is the largest radius the /point endpoint accepts
	MaxRadiusNM = 250.0
)

// PointClient implements the DataSource interface for readsb-style "point" APIs.
// API shape: GET {base}/point/{lat}/{lon}/{radius} returning {"ac": [...]}.
// Works against adsb.lol and airplanes.live.
type PointClient struct {
	// baseURL is the API base URL (default: https://api.adsb.lol/v2)
	baseURL string

	// httpClient is the HTTP client used for API requests
	httpClient *http.Client

	// limiter paces outgoing requests
	limiter *rate.Limiter
}

// PointConfig contains configuration for the point client.
type PointConfig struct {
	BaseURL string

	// RequestsPerSecond limits the API call rate (0 = 1 request per second)
	RequestsPerSecond float64

	Timeout time.Duration
}

// NewPointClient creates a new point API client.
func NewPointClient(cfg PointConfig) *PointClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}

	return &PointClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// GetReports returns all aircraft within a radius of a given point.
// Uses the /point/[lat]/[lon]/[radius] endpoint; radius is capped at MaxRadiusNM.
//
// Unlike the feed itself, no report is dropped here: filtering reports with
// missing geometry is the selector's job.
func (c *PointClient) GetReports(ctx context.Context, center coordinates.Coordinate, radiusNM float64) ([]Report, error) {
	if radiusNM > MaxRadiusNM {
		radiusNM = MaxRadiusNM
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/point/%.4f/%.4f/%.0f", c.baseURL, center.Latitude, center.Longitude, radiusNM)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch aircraft data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
			Message:    "Rate limit exceeded",
			Headers:    extractRateLimitHeaders(resp.Header),
		}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var apiResp pointResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	reports := make([]Report, 0, len(apiResp.Aircraft))
	for _, ac := range apiResp.Aircraft {
		reports = append(reports, convertPointAircraft(ac))
	}

	return reports, nil
}

// Close cleanly shuts down the client.
// There are no persistent connections, so this is a no-op.
func (c *PointClient) Close() error {
	return nil
}

// pointResponse represents the JSON response from the /point endpoint.
type pointResponse struct {
	// Aircraft is the array of aircraft data; may be absent
	Aircraft []pointAircraft `json:"ac"`

	// Total number of aircraft
	Total int `json:"total"`

	// Now is the server timestamp in milliseconds
	Now float64 `json:"now"`
}

// pointAircraft represents a single aircraft in the /point response.
// Field documentation: https://www.adsb.lol/docs/open-data/api/
type pointAircraft struct {
	// Hex is the ICAO Mode S hex code (e.g., "a12345")
	Hex string `json:"hex"`

	// T is the ICAO aircraft type designator
	T *string `json:"t"`

	// Flight is the callsign, padded with trailing spaces
	Flight *string `json:"flight"`

	// Lat is latitude in decimal degrees
	Lat *float64 `json:"lat"`

	// Lon is longitude in decimal degrees
	Lon *float64 `json:"lon"`

	// AltGeom is geometric (GPS) altitude in feet
	// Note: Can be string "ground" or float
	AltGeom interface{} `json:"alt_geom"`

	// Gs is ground speed in knots
	Gs *float64 `json:"gs"`
}

// convertPointAircraft converts a wire aircraft into a Report.
func convertPointAircraft(ac pointAircraft) Report {
	report := Report{
		Hex:           ac.Hex,
		Type:          trimmedOrNil(ac.T),
		Callsign:      trimmedOrNil(ac.Flight),
		AltitudeFeet:  parseAltitude(ac.AltGeom),
		Latitude:      ac.Lat,
		Longitude:     ac.Lon,
		GroundSpeedKt: ac.Gs,
	}
	return report
}

// trimmedOrNil trims whitespace and maps empty strings to nil.
func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// parseAltitude safely extracts altitude from interface{} which can be float64 or string.
// Returns nil if the value is missing or invalid; "ground" maps to 0.
func parseAltitude(val interface{}) *float64 {
	if val == nil {
		return nil
	}

	switch v := val.(type) {
	case float64:
		return &v
	case string:
		// "ground" means the aircraft reports being on the ground
		if v == "ground" {
			zero := 0.0
			return &zero
		}
		return nil
	default:
		return nil
	}
}

// StatusError is returned when the feed answers with an unexpected HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Request failed with status %d", e.StatusCode)
}

// IsStatusError checks if an error is (or wraps) a StatusError.
func IsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// RateLimitError represents an HTTP 429 rate limit error with retry information.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Headers    RateLimitHeaders
}

// RateLimitHeaders contains rate limit information from response headers.
type RateLimitHeaders struct {
	Limit     int       // X-Rate-Limit-Limit: Maximum requests allowed
	Remaining int       // X-Rate-Limit-Remaining: Requests remaining in current window
	Reset     time.Time // X-Rate-Limit-Reset: When the rate limit resets
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// IsRateLimitError checks if an error is (or wraps) a rate limit error.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// parseRetryAfter extracts the Retry-After header value.
// Returns the duration to wait, or 0 if header is not present.
// Supports both delay-seconds (integer) and HTTP-date formats.
//
// Examples:
//
//	Retry-After: 30                            -> 30 seconds
//	Retry-After: Wed, 21 Oct 2015 07:28:00 GMT -> duration until that time
func parseRetryAfter(headers http.Header) time.Duration {
	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if retryTime, err := http.ParseTime(retryAfter); err == nil {
		if duration := time.Until(retryTime); duration > 0 {
			return duration
		}
	}

	return 0
}

// extractRateLimitHeaders extracts common rate limit headers from the response.
// Both the X-Rate-Limit-* and X-RateLimit-* spellings are accepted.
func extractRateLimitHeaders(headers http.Header) RateLimitHeaders {
	rlh := RateLimitHeaders{
		Limit:     -1,
		Remaining: -1,
	}

	if val, ok := intHeader(headers, "X-Rate-Limit-Limit", "X-RateLimit-Limit"); ok {
		rlh.Limit = val
	}
	if val, ok := intHeader(headers, "X-Rate-Limit-Remaining", "X-RateLimit-Remaining"); ok {
		rlh.Remaining = val
	}
	if val, ok := intHeader(headers, "X-Rate-Limit-Reset", "X-RateLimit-Reset"); ok {
		rlh.Reset = time.Unix(int64(val), 0)
	}

	return rlh
}

// intHeader returns the first of names that is present, parsed as an integer.
func intHeader(headers http.Header, names ...string) (int, bool) {
	for _, name := range names {
		raw := headers.Get(name)
		if raw == "" {
			continue
		}
		val, err := strconv.Atoi(raw)
		if err != nil {
			return 0, false
		}
		return val, true
	}
	return 0, false
}
