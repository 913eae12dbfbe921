package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/unklstewy/whats-overhead/internal/overhead"
	"github.com/unklstewy/whats-overhead/internal/prefs"
	"github.com/unklstewy/whats-overhead/pkg/coordinates"
	"github.com/unklstewy/whats-overhead/pkg/format"
	"github.com/unklstewy/whats-overhead/pkg/selection"
)

type sessionResponse struct {
	Token     string    `json:"token"`
	ProfileID string    `json:"profile_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// overheadResponse is a snapshot plus its display strings.
type overheadResponse struct {
	overhead.Snapshot
	Card       format.PlaneCard `json:"card"`
	Location   string           `json:"location"`
	Range      string           `json:"range"`
	LastUpdate string           `json:"last_update"`
}

type preferencesResponse struct {
	Mode     selection.Mode `json:"mode"`
	LastPoll *time.Time     `json:"last_poll,omitempty"`
}

type preferencesRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) newOverheadResponse(snap overhead.Snapshot) overheadResponse {
	return overheadResponse{
		Snapshot:   snap,
		Card:       snap.Card(s.opts.ShowMagnetic),
		Location:   format.Location(snap.Observer),
		Range:      format.Range(s.opts.RadiusNM),
		LastUpdate: format.LastUpdate(snap.UpdatedAt),
	}
}

// handleHealth reports liveness and backing-store health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		if err := s.opts.Health(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateSession issues a session token. A caller presenting a still
// valid token keeps its profile; everyone else gets a new one.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var profile string
	if token, ok := bearerToken(r); ok {
		if claims, err := s.opts.Auth.ValidateToken(token); err == nil {
			profile = claims.ProfileID
		}
	}

	token, claims, err := s.opts.Auth.IssueToken(profile)
	if err != nil {
		s.logger.Error("failed to issue token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	respondJSON(w, http.StatusCreated, sessionResponse{
		Token:     token,
		ProfileID: claims.ProfileID,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

// handleGetOverhead runs one selection for the lat/lon in the query.
// Without a mode parameter the profile's stored mode is used.
func (s *Server) handleGetOverhead(w http.ResponseWriter, r *http.Request) {
	observer, err := parseObserver(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	store := s.opts.Stores(profileID(r))
	mode, err := s.requestMode(r, store)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := overhead.Lookup(r.Context(), s.opts.Source, observer, s.opts.RadiusNM, mode)
	if err != nil {
		s.logger.Warn("feed lookup failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, snap.Error)
		return
	}

	if err := store.SaveLastPoll(r.Context(), snap.UpdatedAt); err != nil {
		s.logger.Warn("failed to save last poll", zap.Error(err))
	}

	respondJSON(w, http.StatusOK, s.newOverheadResponse(snap))
}

// handleGetPreferences returns the profile's stored preferences
func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := s.opts.Stores(profileID(r)).Load(r.Context())
	if err != nil {
		s.logger.Error("failed to load preferences", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to load preferences")
		return
	}
	respondJSON(w, http.StatusOK, toPreferencesResponse(p))
}

// handlePutPreferences stores a new mode
func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	mode, err := selection.ParseMode(req.Mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	store := s.opts.Stores(profileID(r))
	if err := store.SaveMode(r.Context(), mode); err != nil {
		s.logger.Error("failed to save mode", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to save preferences")
		return
	}

	p, err := store.Load(r.Context())
	if err != nil {
		s.logger.Error("failed to load preferences", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to load preferences")
		return
	}
	respondJSON(w, http.StatusOK, toPreferencesResponse(p))
}

// handleDeletePreferences forgets the profile's stored preferences and
// returns the defaults that now apply.
func (s *Server) handleDeletePreferences(w http.ResponseWriter, r *http.Request) {
	store := s.opts.Stores(profileID(r))
	resetter, ok := store.(prefs.Resetter)
	if !ok {
		respondError(w, http.StatusNotImplemented, "Preferences cannot be reset")
		return
	}
	if err := resetter.Reset(r.Context()); err != nil {
		s.logger.Error("failed to reset preferences", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to reset preferences")
		return
	}

	p, err := store.Load(r.Context())
	if err != nil {
		s.logger.Error("failed to load preferences", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to load preferences")
		return
	}
	respondJSON(w, http.StatusOK, toPreferencesResponse(p))
}

func toPreferencesResponse(p prefs.Preferences) preferencesResponse {
	resp := preferencesResponse{Mode: p.Mode}
	if !p.LastPoll.IsZero() {
		t := p.LastPoll
		resp.LastPoll = &t
	}
	return resp
}

// requestMode returns the mode query parameter, or the stored mode when the
// parameter is absent.
func (s *Server) requestMode(r *http.Request, store prefs.Store) (selection.Mode, error) {
	if raw := r.URL.Query().Get("mode"); raw != "" {
		return selection.ParseMode(raw)
	}
	p, err := store.Load(r.Context())
	if err != nil {
		s.logger.Warn("failed to load preferences", zap.Error(err))
		return s.opts.DefaultMode, nil
	}
	return p.Mode, nil
}

var errMissingPosition = errors.New("lat and lon query parameters are required")

func parseObserver(r *http.Request) (coordinates.Coordinate, error) {
	q := r.URL.Query()
	if q.Get("lat") == "" || q.Get("lon") == "" {
		return coordinates.Coordinate{}, errMissingPosition
	}

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return coordinates.Coordinate{}, errors.New("invalid lat")
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return coordinates.Coordinate{}, errors.New("invalid lon")
	}

	c := coordinates.Coordinate{Latitude: lat, Longitude: lon}
	if !c.Valid() {
		return coordinates.Coordinate{}, errors.New("lat/lon out of range")
	}
	return c, nil
}
