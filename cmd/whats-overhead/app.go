package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/unklstewy/whats-overhead/internal/db"
	"github.com/unklstewy/whats-overhead/internal/logging"
	"github.com/unklstewy/whats-overhead/internal/overhead"
	"github.com/unklstewy/whats-overhead/internal/position"
	"github.com/unklstewy/whats-overhead/internal/prefs"
	"github.com/unklstewy/whats-overhead/pkg/adsb"
	"github.com/unklstewy/whats-overhead/pkg/config"
	"github.com/unklstewy/whats-overhead/pkg/selection"
)

// app holds everything the commands share.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	source   *adsb.CachedSource
	provider position.Provider
	database *db.DB
	store    prefs.Store
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "whats-overhead.yaml"
	}
	return filepath.Join(dir, "whats-overhead", "config.yaml")
}

// newApp loads configuration and builds the feed, position provider and
// preference store.
func newApp(ctx context.Context, path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return newAppFromConfig(ctx, cfg)
}

func newAppFromConfig(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	point := adsb.NewPointClient(adsb.PointConfig{
		BaseURL:           cfg.ADSB.BaseURL,
		RequestsPerSecond: cfg.ADSB.RequestsPerSecond,
		Timeout:           cfg.ADSB.Timeout(),
	})
	retry := adsb.DefaultRetryConfig()
	retry.MaxRetries = cfg.ADSB.Retries
	retry.Logger = logger.Named("feed")
	a.source = adsb.NewCachedSource(adsb.NewRetryingSource(point, retry), cfg.ADSB.CacheSize, cfg.ADSB.StaleWindow())

	a.provider, err = position.FromConfig(cfg.Observer)
	if err != nil {
		a.Close()
		return nil, err
	}

	switch cfg.Prefs.Store {
	case "database":
		if err := a.openDatabase(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.store = prefs.NewDBStore(db.NewPreferenceRepository(a.database), cfg.Prefs.Profile, a.defaultMode())
	default:
		a.store = prefs.NewFileStore(cfg.Prefs.Path, a.defaultMode())
	}

	return a, nil
}

// openDatabase connects once and applies the schema.
func (a *app) openDatabase(ctx context.Context) error {
	if a.database != nil {
		return nil
	}

	if a.cfg.Database.Driver == "sqlite" && a.cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(a.cfg.Database.Path), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	database, err := db.ConnectWithRetry(ctx, a.cfg.Database, 3, time.Second, a.logger.Named("db"))
	if err != nil {
		return err
	}
	if err := database.InitSchema(ctx); err != nil {
		database.Close()
		return err
	}
	a.database = database
	return nil
}

func (a *app) defaultMode() selection.Mode {
	return selection.ModeOrDefault(a.cfg.Display.DefaultMode)
}

// service builds a polling service for the configured observer.
func (a *app) service(ctx context.Context) *overhead.Service {
	return overhead.New(ctx, a.provider, a.source, a.store, overhead.Config{
		RadiusNM: a.cfg.ADSB.SearchRadiusNM,
		Interval: a.cfg.ADSB.StaleWindow(),
	}, a.logger)
}

// Close releases the feed and database.
func (a *app) Close() error {
	var errs []error
	if a.source != nil {
		errs = append(errs, a.source.Close())
	}
	if a.database != nil {
		errs = append(errs, a.database.Close())
	}
	if a.logger != nil {
		// Sync fails on stderr for some terminals; nothing to do about it
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}
