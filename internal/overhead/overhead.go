// Package overhead ties the position provider, the aircraft feed and the
// selector together. A Service polls on an interval, keeps the latest
// Snapshot and fans it out to subscribers.
package overhead

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unklstewy/whats-overhead/internal/position"
	"github.com/unklstewy/whats-overhead/internal/prefs"
	"github.com/unklstewy/whats-overhead/pkg/adsb"
	"github.com/unklstewy/whats-overhead/pkg/coordinates"
	"github.com/unklstewy/whats-overhead/pkg/format"
	"github.com/unklstewy/whats-overhead/pkg/selection"
)

// Snapshot is the result of one poll.
type Snapshot struct {
	// Observer is nil until a position is known
	Observer *coordinates.Coordinate `json:"observer,omitempty"`

	Mode      selection.Mode      `json:"mode"`
	Candidate selection.Candidate `json:"candidate"`
	Found     bool                `json:"found"`

	// ReportCount is the number of reports the feed returned, eligible or not
	ReportCount int `json:"report_count"`

	// UpdatedAt is when the reports were fetched; zero before the first fetch
	UpdatedAt time.Time `json:"updated_at"`

	// Error is a user-facing message; empty when the poll succeeded
	Error string `json:"error,omitempty"`
}

// Card builds the plane card for the snapshot. With magnetic set and a known
// observer, the card carries a magnetic bearing badge.
func (s Snapshot) Card(magnetic bool) format.PlaneCard {
	var opts format.CardOptions
	if magnetic && s.Observer != nil {
		at := s.UpdatedAt
		if at.IsZero() {
			at = time.Now()
		}
		if d, err := coordinates.MagneticDeclination(*s.Observer, 0, at); err == nil {
			opts.Declination = &d
		}
	}
	return format.Card(s.Mode, s.Candidate, s.Found, opts)
}

// FeedMessage turns a feed error into the text shown to the user.
func FeedMessage(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := adsb.IsRateLimitError(err); ok {
		return e.Error()
	}
	if e, ok := adsb.IsStatusError(err); ok {
		return e.Error()
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "Request timed out"
	}
	return "Unable to load aircraft."
}

// timedSource is implemented by sources that know when their reports were
// fetched, such as adsb.CachedSource.
type timedSource interface {
	GetReportsAt(ctx context.Context, center coordinates.Coordinate, radiusNM float64) ([]adsb.Report, time.Time, error)
}

// invalidator is implemented by caching sources.
type invalidator interface {
	Invalidate()
}

// Config controls polling.
type Config struct {
	// RadiusNM is the search radius of each feed query
	RadiusNM float64

	// Interval is the time between polls in Run
	Interval time.Duration
}

// Service owns one observer's polling loop.
type Service struct {
	provider position.Provider
	source   adsb.DataSource
	store    prefs.Store
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	mode     selection.Mode
	latest   Snapshot
	reports  []adsb.Report
	lastPoll time.Time

	subMu  sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

// New creates a Service and loads the stored preferences. A store that fails
// to load is logged and the mode falls back to near.
func New(ctx context.Context, provider position.Provider, source adsb.DataSource, store prefs.Store, cfg Config, logger *zap.Logger) *Service {
	if cfg.RadiusNM <= 0 {
		cfg.RadiusNM = 20
	}
	if cfg.Interval <= 0 {
		cfg.Interval = adsb.DefaultStaleTime
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		provider: provider,
		source:   source,
		store:    store,
		cfg:      cfg,
		logger:   logger.Named("overhead"),
		now:      time.Now,
		mode:     selection.Near,
		subs:     make(map[int]chan Snapshot),
	}

	p, err := store.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load preferences", zap.Error(err))
	} else {
		s.mode = selection.ModeOrDefault(string(p.Mode))
		s.lastPoll = p.LastPoll
	}
	s.latest = Snapshot{Mode: s.mode}

	return s
}

// RadiusNM returns the search radius.
func (s *Service) RadiusNM() float64 {
	return s.cfg.RadiusNM
}

// Mode returns the current selection mode.
func (s *Service) Mode() selection.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// LastPoll returns the time of the last successful feed poll, including one
// recorded by a previous run.
func (s *Service) LastPoll() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPoll
}

// Latest returns the most recent snapshot.
func (s *Service) Latest() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// SetMode changes and stores the selection mode, then re-selects from the
// last fetched reports without polling the feed.
func (s *Service) SetMode(ctx context.Context, mode selection.Mode) (Snapshot, error) {
	snap, changed := s.applyMode(mode)
	if !changed {
		return snap, nil
	}

	if err := s.store.SaveMode(ctx, mode); err != nil {
		s.logger.Warn("failed to save mode", zap.String("mode", string(mode)), zap.Error(err))
		return snap, err
	}
	return snap, nil
}

// ApplyMode is SetMode without saving: the mode lasts for this Service only.
func (s *Service) ApplyMode(mode selection.Mode) Snapshot {
	snap, _ := s.applyMode(mode)
	return snap
}

func (s *Service) applyMode(mode selection.Mode) (Snapshot, bool) {
	s.mu.Lock()
	if mode == s.mode {
		snap := s.latest
		s.mu.Unlock()
		return snap, false
	}
	s.mode = mode
	snap := s.latest
	snap.Mode = mode
	if snap.Observer != nil {
		snap.Candidate, snap.Found = selection.Select(snap.Observer, s.reports, mode)
	}
	s.latest = snap
	s.mu.Unlock()

	s.publish(snap)
	return snap, true
}

// Refresh polls once. Reports still inside the stale window come from the
// cache.
func (s *Service) Refresh(ctx context.Context) Snapshot {
	return s.refresh(ctx, false)
}

// ForceRefresh drops cached reports before polling.
func (s *Service) ForceRefresh(ctx context.Context) Snapshot {
	return s.refresh(ctx, true)
}

func (s *Service) refresh(ctx context.Context, force bool) Snapshot {
	if inv, ok := s.source.(invalidator); ok && force {
		inv.Invalidate()
	}

	mode := s.Mode()
	snap := Snapshot{Mode: mode}

	observer, err := s.provider.Current(ctx)
	if err != nil {
		s.logger.Warn("position unavailable", zap.Error(err))
		snap.Error = position.Message(err)
		return s.setLatest(snap, nil, false)
	}
	snap.Observer = &observer

	reports, fetchedAt, err := s.fetch(ctx, observer)
	if err != nil {
		s.logger.Warn("feed poll failed", zap.Error(err))
		snap.Error = FeedMessage(err)
		// Keep showing the previous result alongside the error
		prev := s.Latest()
		snap.Candidate, snap.Found = prev.Candidate, prev.Found
		snap.ReportCount = prev.ReportCount
		snap.UpdatedAt = prev.UpdatedAt
		return s.setLatest(snap, nil, false)
	}

	snap.ReportCount = len(reports)
	snap.UpdatedAt = fetchedAt
	snap.Candidate, snap.Found = selection.Select(&observer, reports, mode)

	s.logger.Debug("poll complete",
		zap.Int("reports", len(reports)),
		zap.Bool("found", snap.Found),
		zap.String("mode", string(mode)))

	snap = s.setLatest(snap, reports, true)

	if err := s.store.SaveLastPoll(ctx, fetchedAt); err != nil {
		s.logger.Warn("failed to save last poll", zap.Error(err))
	}

	return snap
}

func (s *Service) fetch(ctx context.Context, observer coordinates.Coordinate) ([]adsb.Report, time.Time, error) {
	return fetchReports(ctx, s.source, observer, s.cfg.RadiusNM, s.now)
}

func fetchReports(ctx context.Context, source adsb.DataSource, observer coordinates.Coordinate, radiusNM float64, now func() time.Time) ([]adsb.Report, time.Time, error) {
	if ts, ok := source.(timedSource); ok {
		return ts.GetReportsAt(ctx, observer, radiusNM)
	}
	reports, err := source.GetReports(ctx, observer, radiusNM)
	return reports, now(), err
}

// setLatest records snap as latest and notifies subscribers. When fetched is
// set, reports replace the ones kept for SetMode. A snapshot taken under a
// mode that has since changed is re-selected in the current mode; the
// stored snapshot is returned.
func (s *Service) setLatest(snap Snapshot, reports []adsb.Report, fetched bool) Snapshot {
	s.mu.Lock()
	if fetched {
		s.reports = reports
		s.lastPoll = snap.UpdatedAt
	} else if snap.Observer == nil {
		s.reports = nil
	}
	if snap.Mode != s.mode {
		snap.Mode = s.mode
		if snap.Observer != nil {
			snap.Candidate, snap.Found = selection.Select(snap.Observer, s.reports, s.mode)
		}
	}
	s.latest = snap
	s.mu.Unlock()

	s.publish(snap)
	return snap
}

// Subscribe returns a channel that receives every new snapshot, and a
// function that ends the subscription. A slow subscriber only sees the
// newest snapshot.
func (s *Service) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Service) publish(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Replace the unread snapshot
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Run polls immediately and then every Interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Lookup runs a single stateless selection for observer without touching
// any Service state.
func Lookup(ctx context.Context, source adsb.DataSource, observer coordinates.Coordinate, radiusNM float64, mode selection.Mode) (Snapshot, error) {
	snap := Snapshot{Observer: &observer, Mode: mode}

	reports, fetchedAt, err := fetchReports(ctx, source, observer, radiusNM, time.Now)
	if err != nil {
		snap.Error = FeedMessage(err)
		return snap, err
	}

	snap.ReportCount = len(reports)
	snap.UpdatedAt = fetchedAt
	snap.Candidate, snap.Found = selection.Select(&observer, reports, mode)
	return snap, nil
}
