package adsb

import (
	"context"
	"testing"
	"time"

	"github.com/unklstewy/whats-overhead/pkg/coordinates"
)

func TestCachedSource(t *testing.T) {
	center := coordinates.Coordinate{Latitude: 40.0, Longitude: -74.0}

	t.Run("Serves repeat requests from cache", func(t *testing.T) {
		inner := &flakySource{reports: []Report{{Hex: "a1", Callsign: strPtr("DAL1")}}}
		src := NewCachedSource(inner, 8, time.Minute)

		first, fetched1, err := src.GetReportsAt(context.Background(), center, 20)
		if err != nil {
			t.Fatalf("GetReportsAt failed: %v", err)
		}
		// Jitter below the rounding resolution hits the same entry
		jittered := coordinates.Coordinate{Latitude: 40.0002, Longitude: -74.0001}
		second, fetched2, err := src.GetReportsAt(context.Background(), jittered, 20)
		if err != nil {
			t.Fatalf("GetReportsAt failed: %v", err)
		}

		if inner.calls != 1 {
			t.Errorf("Expected 1 upstream call, got %d", inner.calls)
		}
		if len(first) != 1 || len(second) != 1 {
			t.Fatalf("Expected one report each, got %d and %d", len(first), len(second))
		}
		if !fetched1.Equal(fetched2) {
			t.Errorf("Expected same fetch time, got %v and %v", fetched1, fetched2)
		}
	})

	t.Run("Different areas miss", func(t *testing.T) {
		inner := &flakySource{}
		src := NewCachedSource(inner, 8, time.Minute)

		src.GetReports(context.Background(), center, 20)
		src.GetReports(context.Background(), coordinates.Coordinate{Latitude: 41, Longitude: -74}, 20)
		src.GetReports(context.Background(), center, 50)

		if inner.calls != 3 {
			t.Errorf("Expected 3 upstream calls, got %d", inner.calls)
		}
	})

	t.Run("Entries expire", func(t *testing.T) {
		inner := &flakySource{}
		src := NewCachedSource(inner, 8, 20*time.Millisecond)

		src.GetReports(context.Background(), center, 20)
		time.Sleep(60 * time.Millisecond)
		src.GetReports(context.Background(), center, 20)

		if inner.calls != 2 {
			t.Errorf("Expected refetch after expiry, got %d calls", inner.calls)
		}
	})

	t.Run("Errors are not cached", func(t *testing.T) {
		inner := &flakySource{failures: 1}
		src := NewCachedSource(inner, 8, time.Minute)

		if _, err := src.GetReports(context.Background(), center, 20); err == nil {
			t.Fatal("Expected first call to fail")
		}
		if _, err := src.GetReports(context.Background(), center, 20); err != nil {
			t.Fatalf("Expected second call to succeed, got %v", err)
		}
		if inner.calls != 2 {
			t.Errorf("Expected 2 upstream calls, got %d", inner.calls)
		}
	})

	t.Run("Invalidate forces refetch", func(t *testing.T) {
		inner := &flakySource{}
		src := NewCachedSource(inner, 8, time.Minute)

		src.GetReports(context.Background(), center, 20)
		src.Invalidate()
		src.GetReports(context.Background(), center, 20)

		if inner.calls != 2 {
			t.Errorf("Expected 2 upstream calls, got %d", inner.calls)
		}
	})
}
