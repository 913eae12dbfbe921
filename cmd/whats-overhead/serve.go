package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unklstewy/whats-overhead/internal/api"
	"github.com/unklstewy/whats-overhead/internal/auth"
	"github.com/unklstewy/whats-overhead/internal/db"
	"github.com/unklstewy/whats-overhead/internal/prefs"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  "serve exposes the lookup as a REST API with a WebSocket stream. Preferences are kept per session profile in the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		if servePort != "" {
			a.cfg.Server.Port = servePort
		}
		return serve(ctx, a)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "HTTP server port (overrides config)")
}

func serve(ctx context.Context, a *app) error {
	logger := a.logger

	if err := a.openDatabase(ctx); err != nil {
		return err
	}

	secret := a.cfg.Server.SessionSecret
	if secret == "" {
		secret = auth.NewProfileID()
		logger.Warn("no session secret configured; sessions will not survive a restart")
	}
	authSvc, err := auth.NewService(auth.Config{Secret: secret, TokenDuration: a.cfg.Server.SessionTTL()})
	if err != nil {
		return err
	}

	profiles := prefs.NewDBStore(db.NewPreferenceRepository(a.database), a.cfg.Prefs.Profile, a.defaultMode())

	handler := api.NewServer(api.Options{
		Auth:           authSvc,
		Source:         a.source,
		Stores:         func(id string) prefs.Store { return profiles.ForProfile(id) },
		Health:         a.database.HealthCheck,
		RadiusNM:       a.cfg.ADSB.SearchRadiusNM,
		StaleWindow:    a.cfg.ADSB.StaleWindow(),
		DefaultMode:    a.defaultMode(),
		ShowMagnetic:   a.cfg.Display.ShowMagnetic,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	httpServer := &http.Server{
		Addr:        a.cfg.Server.Addr(),
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
