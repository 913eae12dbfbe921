package position

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/unklstewy/whats-overhead/pkg/coordinates"
)

const gpsdDefaultAddr = "127.0.0.1:2947"

// GPSDConfig configures the gpsd provider.
type GPSDConfig struct {
	// Addr is gpsd's host:port (default 127.0.0.1:2947)
	Addr string

	// FixTimeout bounds the wait for a usable TPV report (default 10s)
	FixTimeout time.Duration

	// MaxFixAge is how long a fix is reused before asking gpsd again (default 10s)
	MaxFixAge time.Duration
}

// GPSD reads the observer position from a gpsd daemon.
// Each call that cannot reuse a recent fix opens a short-lived connection,
// enables watching, and waits for the first 2D or 3D fix.
type GPSD struct {
	cfg GPSDConfig
	now func() time.Time

	mu      sync.Mutex
	last    coordinates.Coordinate
	lastFix time.Time
}

// NewGPSD creates a gpsd provider.
func NewGPSD(cfg GPSDConfig) *GPSD {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = gpsdDefaultAddr
	}
	if cfg.FixTimeout <= 0 {
		cfg.FixTimeout = 10 * time.Second
	}
	if cfg.MaxFixAge <= 0 {
		cfg.MaxFixAge = 10 * time.Second
	}
	return &GPSD{cfg: cfg, now: time.Now}
}

type gpsdMsgBase struct {
	Class string `json:"class"`
}

// gpsdTPV is the subset of a TPV ("time-position-velocity") report we use.
type gpsdTPV struct {
	Mode *int     `json:"mode"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
}

// Current returns a fix no older than MaxFixAge.
func (g *GPSD) Current(ctx context.Context) (coordinates.Coordinate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.lastFix.IsZero() && g.now().Sub(g.lastFix) < g.cfg.MaxFixAge {
		return g.last, nil
	}

	c, err := g.readFix(ctx)
	if err != nil {
		return coordinates.Coordinate{}, err
	}
	g.last = c
	g.lastFix = g.now()
	return c, nil
}

func (g *GPSD) readFix(ctx context.Context) (coordinates.Coordinate, error) {
	d := &net.Dialer{Timeout: 2 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", g.cfg.Addr)
	if err != nil {
		return coordinates.Coordinate{}, fmt.Errorf("%w: dial gpsd %s: %v", ErrUnavailable, g.cfg.Addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(g.cfg.FixTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	conn.SetDeadline(deadline)

	// Unblock the reader if ctx is cancelled before the deadline
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	// scaled=true yields degrees and meters
	if _, err := conn.Write([]byte("?WATCH={\"enable\":true,\"json\":true,\"scaled\":true}\n")); err != nil {
		return coordinates.Coordinate{}, fmt.Errorf("%w: enable gpsd watch: %v", ErrUnavailable, err)
	}

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		if c, ok := parseTPV(sc.Bytes()); ok {
			return c, nil
		}
	}

	if ctx.Err() != nil {
		return coordinates.Coordinate{}, fmt.Errorf("%w: %v", ErrNoFix, ctx.Err())
	}
	if err := sc.Err(); err != nil {
		return coordinates.Coordinate{}, fmt.Errorf("%w: %v", ErrNoFix, err)
	}
	return coordinates.Coordinate{}, fmt.Errorf("%w: gpsd closed the connection", ErrNoFix)
}

// parseTPV extracts a position from a TPV line carrying a 2D or 3D fix.
// Other message classes and malformed lines are ignored.
func parseTPV(line []byte) (coordinates.Coordinate, bool) {
	var base gpsdMsgBase
	if err := json.Unmarshal(line, &base); err != nil {
		return coordinates.Coordinate{}, false
	}
	if !strings.EqualFold(strings.TrimSpace(base.Class), "TPV") {
		return coordinates.Coordinate{}, false
	}

	var tpv gpsdTPV
	if err := json.Unmarshal(line, &tpv); err != nil {
		return coordinates.Coordinate{}, false
	}
	if tpv.Mode == nil || *tpv.Mode < 2 || tpv.Lat == nil || tpv.Lon == nil {
		return coordinates.Coordinate{}, false
	}

	c := coordinates.Coordinate{Latitude: *tpv.Lat, Longitude: *tpv.Lon}
	if !c.Valid() {
		return coordinates.Coordinate{}, false
	}
	return c, true
}
