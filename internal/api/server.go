// Package api serves the overhead lookup over HTTP: a REST surface under
// /api/v1 plus a WebSocket stream of snapshots.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/unklstewy/whats-overhead/internal/auth"
	"github.com/unklstewy/whats-overhead/internal/prefs"
	"github.com/unklstewy/whats-overhead/pkg/adsb"
	"github.com/unklstewy/whats-overhead/pkg/selection"
)

type contextKey string

const profileKey contextKey = "profile_id"

// StoreFunc returns the preference store for a profile.
type StoreFunc func(profileID string) prefs.Store

// Options configures a Server.
type Options struct {
	Auth   *auth.Service
	Source adsb.DataSource

	// Stores returns the per-profile preference store
	Stores StoreFunc

	// Health reports backing-store health; nil means always healthy
	Health func(ctx context.Context) error

	RadiusNM       float64
	StaleWindow    time.Duration
	DefaultMode    selection.Mode
	ShowMagnetic   bool
	AllowedOrigins []string

	Logger *zap.Logger
}

// Server holds the HTTP router and its dependencies
type Server struct {
	router   *chi.Mux
	opts     Options
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	if opts.RadiusNM <= 0 {
		opts.RadiusNM = 20
	}
	if opts.StaleWindow <= 0 {
		opts.StaleWindow = adsb.DefaultStaleTime
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = selection.Near
	}
	if opts.Stores == nil {
		shared := prefs.NewMemory(opts.DefaultMode)
		opts.Stores = func(string) prefs.Store { return shared }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		router: chi.NewRouter(),
		opts:   opts,
		logger: opts.Logger.Named("api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", s.handleHealth)
		r.Post("/session", s.handleCreateSession)

		// Protected routes (require a session token)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/overhead", s.handleGetOverhead)
			r.Get("/preferences", s.handleGetPreferences)
			r.Put("/preferences", s.handlePutPreferences)
			r.Delete("/preferences", s.handleDeletePreferences)
			r.Get("/ws", s.handleWebSocket)
		})
	})
}

// requestLogger logs one line per request through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// authMiddleware requires a valid session token, from the Authorization
// header or, for WebSocket clients that cannot set headers, a token query
// parameter.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		claims, err := s.opts.Auth.ValidateToken(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), profileKey, claims.ProfileID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		token, found := strings.CutPrefix(h, "Bearer ")
		return token, found && token != ""
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// profileID returns the authenticated profile from the request context.
func profileID(r *http.Request) string {
	id, _ := r.Context().Value(profileKey).(string)
	return id
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
