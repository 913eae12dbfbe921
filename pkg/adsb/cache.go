package adsb

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/unklstewy/whats-overhead/pkg/coordinates"
)

// DefaultStaleTime is how long a fetched set of reports is served from cache.
const DefaultStaleTime = 30 * time.Second

// cacheKey identifies one fetch. Coordinates are rounded to 3 decimal places
// (about 100 m) so a jittering GPS fix keeps hitting the same entry.
type cacheKey struct {
	lat, lon, radius float64
}

type cacheEntry struct {
	reports   []Report
	fetchedAt time.Time
}

// CachedSource serves repeated requests for the same area from memory until
// the stale window elapses.
type CachedSource struct {
	source DataSource
	cache  *expirable.LRU[cacheKey, cacheEntry]
	now    func() time.Time
}

// NewCachedSource wraps source with an LRU of size entries that expire after ttl.
func NewCachedSource(source DataSource, size int, ttl time.Duration) *CachedSource {
	if size <= 0 {
		size = 64
	}
	if ttl <= 0 {
		ttl = DefaultStaleTime
	}
	return &CachedSource{
		source: source,
		cache:  expirable.NewLRU[cacheKey, cacheEntry](size, nil, ttl),
		now:    time.Now,
	}
}

// GetReports implements DataSource.
func (s *CachedSource) GetReports(ctx context.Context, center coordinates.Coordinate, radiusNM float64) ([]Report, error) {
	reports, _, err := s.GetReportsAt(ctx, center, radiusNM)
	return reports, err
}

// GetReportsAt returns the reports along with the time they were fetched from
// the underlying source. Errors are never cached.
func (s *CachedSource) GetReportsAt(ctx context.Context, center coordinates.Coordinate, radiusNM float64) ([]Report, time.Time, error) {
	key := cacheKey{
		lat:    round3(center.Latitude),
		lon:    round3(center.Longitude),
		radius: radiusNM,
	}

	if entry, ok := s.cache.Get(key); ok {
		return entry.reports, entry.fetchedAt, nil
	}

	reports, err := s.source.GetReports(ctx, center, radiusNM)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("fetch reports: %w", err)
	}

	entry := cacheEntry{reports: reports, fetchedAt: s.now()}
	s.cache.Add(key, entry)

	return entry.reports, entry.fetchedAt, nil
}

// Invalidate drops every cached entry so the next call refetches.
func (s *CachedSource) Invalidate() {
	s.cache.Purge()
}

// Close closes the wrapped source.
func (s *CachedSource) Close() error {
	s.cache.Purge()
	return s.source.Close()
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
