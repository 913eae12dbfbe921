package adsb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/unklstewy/whats-overhead/pkg/coordinates"
)

// newTestClient points a fast, unthrottled client at server.
func newTestClient(server *httptest.Server) *PointClient {
	return NewPointClient(PointConfig{
		BaseURL:           server.URL,
		RequestsPerSecond: 1000,
		Timeout:           2 * time.Second,
	})
}

// TestNewPointClient tests client construction and defaults.
func TestNewPointClient(t *testing.T) {
	client := NewPointClient(PointConfig{BaseURL: "https://api.test.com/v2/"})

	if client.baseURL != "https://api.test.com/v2" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}
	if client.httpClient.Timeout != DefaultTimeout {
		t.Errorf("Expected timeout %v, got %v", DefaultTimeout, client.httpClient.Timeout)
	}
	if client.limiter.Limit() != 1 {
		t.Errorf("Expected 1 request per second, got %v", client.limiter.Limit())
	}

	defaulted := NewPointClient(PointConfig{})
	if defaulted.baseURL != DefaultBaseURL {
		t.Errorf("Expected default base URL, got %s", defaulted.baseURL)
	}
}

// TestGetReports tests fetching aircraft around a point.
func TestGetReports(t *testing.T) {
	center := coordinates.Coordinate{Latitude: 40.0, Longitude: -74.0}

	t.Run("Successful request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			expectedPath := "/point/40.0000/-74.0000/20"
			if r.URL.Path != expectedPath {
				t.Errorf("Expected path %s, got %s", expectedPath, r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"ac":[
				{"hex":"a12345","t":"B738","flight":"UAL123  ","alt_geom":10000,"lat":40.01,"lon":-74.0,"gs":450.5},
				{"hex":"b00001","alt_geom":"ground","lat":40.0,"lon":-74.0},
				{"hex":"c00002","t":"","flight":"   "}
			],"total":3,"now":1700000000000}`)
		}))
		defer server.Close()

		reports, err := newTestClient(server).GetReports(context.Background(), center, 20)
		if err != nil {
			t.Fatalf("GetReports failed: %v", err)
		}
		if len(reports) != 3 {
			t.Fatalf("Expected 3 reports, got %d", len(reports))
		}

		first := reports[0]
		if first.Hex != "a12345" {
			t.Errorf("Expected hex a12345, got %s", first.Hex)
		}
		if first.TypeOr("") != "B738" {
			t.Errorf("Expected type B738, got %q", first.TypeOr(""))
		}
		if first.CallsignOr("") != "UAL123" {
			t.Errorf("Expected trimmed callsign UAL123, got %q", first.CallsignOr(""))
		}
		if first.AltitudeFeet == nil || *first.AltitudeFeet != 10000 {
			t.Errorf("Expected altitude 10000, got %v", first.AltitudeFeet)
		}
		if first.GroundSpeedKt == nil || *first.GroundSpeedKt != 450.5 {
			t.Errorf("Expected ground speed 450.5, got %v", first.GroundSpeedKt)
		}
		if pos, ok := first.Position(); !ok || pos.Latitude != 40.01 {
			t.Errorf("Expected position (40.01, -74), got %v ok=%v", pos, ok)
		}

		if alt := reports[1].AltitudeFeet; alt == nil || *alt != 0 {
			t.Errorf("Expected ground altitude 0, got %v", alt)
		}

		blank := reports[2]
		if blank.Type != nil || blank.Callsign != nil {
			t.Errorf("Expected blank type and callsign to be nil, got %v %v", blank.Type, blank.Callsign)
		}
		if _, ok := blank.Position(); ok {
			t.Error("Expected missing position")
		}
	})

	t.Run("Missing ac array", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"total":0}`)
		}))
		defer server.Close()

		reports, err := newTestClient(server).GetReports(context.Background(), center, 20)
		if err != nil {
			t.Fatalf("GetReports failed: %v", err)
		}
		if len(reports) != 0 {
			t.Errorf("Expected no reports, got %d", len(reports))
		}
	})

	t.Run("Radius is capped", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/point/40.0000/-74.0000/250" {
				t.Errorf("Expected radius capped at 250, got path %s", r.URL.Path)
			}
			fmt.Fprint(w, `{"ac":[]}`)
		}))
		defer server.Close()

		if _, err := newTestClient(server).GetReports(context.Background(), center, 900); err != nil {
			t.Fatalf("GetReports failed: %v", err)
		}
	})

	t.Run("Server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, "upstream broke")
		}))
		defer server.Close()

		_, err := newTestClient(server).GetReports(context.Background(), center, 20)
		se, ok := IsStatusError(err)
		if !ok {
			t.Fatalf("Expected StatusError, got %v", err)
		}
		if se.StatusCode != 500 {
			t.Errorf("Expected status 500, got %d", se.StatusCode)
		}
		if err.Error() != "Request failed with status 500" {
			t.Errorf("Unexpected message %q", err.Error())
		}
		if se.Body != "upstream broke" {
			t.Errorf("Expected body captured, got %q", se.Body)
		}
	})

	t.Run("Rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "30")
			w.Header().Set("X-Rate-Limit-Limit", "60")
			w.Header().Set("X-Rate-Limit-Remaining", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := newTestClient(server).GetReports(context.Background(), center, 20)
		rle, ok := IsRateLimitError(err)
		if !ok {
			t.Fatalf("Expected RateLimitError, got %v", err)
		}
		if rle.RetryAfter != 30*time.Second {
			t.Errorf("Expected RetryAfter 30s, got %v", rle.RetryAfter)
		}
		if rle.Headers.Limit != 60 || rle.Headers.Remaining != 0 {
			t.Errorf("Unexpected headers %+v", rle.Headers)
		}
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "{not json")
		}))
		defer server.Close()

		if _, err := newTestClient(server).GetReports(context.Background(), center, 20); err == nil {
			t.Error("Expected decode error")
		}
	})

	t.Run("Cancelled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"ac":[]}`)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestClient(server).GetReports(ctx, center, 20)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})
}

// TestClose tests that Close is a no-op.
func TestClose(t *testing.T) {
	client := NewPointClient(PointConfig{})
	if err := client.Close(); err != nil {
		t.Errorf("Expected no error on Close, got: %v", err)
	}
}

// TestParseAltitude tests altitude parsing from various types.
func TestParseAltitude(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected *float64
	}{
		{"Nil", nil, nil},
		{"Float", 35000.0, floatPtr(35000.0)},
		{"Ground", "ground", floatPtr(0)},
		{"Other string", "unknown", nil},
		{"Integer type", 100, nil}, // JSON never decodes to int
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseAltitude(tt.input)
			if tt.expected == nil {
				if result != nil {
					t.Errorf("Expected nil, got %v", *result)
				}
				return
			}
			if result == nil || *result != *tt.expected {
				t.Errorf("Expected %v, got %v", *tt.expected, result)
			}
		})
	}
}

// TestParseRetryAfter tests Retry-After header parsing.
func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected time.Duration
	}{
		{"Empty header", "", 0},
		{"Delay seconds", "30", 30 * time.Second},
		{"Zero seconds", "0", 0},
		{"Negative (invalid)", "-10", 0},
		{"HTTP date in the past", "Wed, 21 Oct 2015 07:28:00 GMT", 0},
		{"Invalid string", "invalid", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			if tt.header != "" {
				headers.Set("Retry-After", tt.header)
			}

			if result := parseRetryAfter(headers); result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}

	t.Run("HTTP date in the future", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("Retry-After", time.Now().Add(time.Minute).UTC().Format(http.TimeFormat))

		result := parseRetryAfter(headers)
		if result <= 0 || result > time.Minute {
			t.Errorf("Expected duration within a minute, got %v", result)
		}
	})
}

// TestExtractRateLimitHeaders tests rate limit header extraction.
func TestExtractRateLimitHeaders(t *testing.T) {
	t.Run("Standard headers", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-Rate-Limit-Limit", "100")
		headers.Set("X-Rate-Limit-Remaining", "25")
		headers.Set("X-Rate-Limit-Reset", "1609459200")

		result := extractRateLimitHeaders(headers)

		if result.Limit != 100 {
			t.Errorf("Expected limit 100, got %d", result.Limit)
		}
		if result.Remaining != 25 {
			t.Errorf("Expected remaining 25, got %d", result.Remaining)
		}
		if !result.Reset.Equal(time.Unix(1609459200, 0)) {
			t.Errorf("Unexpected reset %v", result.Reset)
		}
	})

	t.Run("Alternative header names", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-RateLimit-Limit", "200")
		headers.Set("X-RateLimit-Remaining", "50")

		result := extractRateLimitHeaders(headers)

		if result.Limit != 200 || result.Remaining != 50 {
			t.Errorf("Expected 200/50, got %d/%d", result.Limit, result.Remaining)
		}
	})

	t.Run("Missing headers", func(t *testing.T) {
		result := extractRateLimitHeaders(http.Header{})

		if result.Limit != -1 || result.Remaining != -1 {
			t.Errorf("Expected -1/-1, got %d/%d", result.Limit, result.Remaining)
		}
	})
}

// TestRateLimitError tests rate limit error formatting and detection.
func TestRateLimitError(t *testing.T) {
	t.Run("Error message with retry after", func(t *testing.T) {
		err := &RateLimitError{StatusCode: 429, RetryAfter: 30 * time.Second, Message: "Rate limit exceeded"}

		if err.Error() != "Rate limit exceeded (retry after 30s)" {
			t.Errorf("Unexpected message %q", err.Error())
		}
	})

	t.Run("Error message without retry after", func(t *testing.T) {
		err := &RateLimitError{StatusCode: 429, Message: "Rate limit exceeded"}

		if err.Error() != "Rate limit exceeded" {
			t.Errorf("Unexpected message %q", err.Error())
		}
	})

	t.Run("Detection through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("poll: %w", &RateLimitError{StatusCode: 429})
		if _, ok := IsRateLimitError(wrapped); !ok {
			t.Error("Expected wrapped RateLimitError to be detected")
		}
		if _, ok := IsRateLimitError(fmt.Errorf("normal error")); ok {
			t.Error("Expected false for normal error")
		}
	})
}

// TestRateLimiterPacing tests that consecutive requests are paced.
func TestRateLimiterPacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ac":[]}`)
	}))
	defer server.Close()

	client := NewPointClient(PointConfig{BaseURL: server.URL, RequestsPerSecond: 10})
	center := coordinates.Coordinate{Latitude: 1, Longitude: 1}

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.GetReports(context.Background(), center, 5); err != nil {
			t.Fatalf("GetReports failed: %v", err)
		}
	}

	// Burst of 1 then two waits of 100ms
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("Expected requests to be paced, took %v", elapsed)
	}
}

// Helper functions
func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}
