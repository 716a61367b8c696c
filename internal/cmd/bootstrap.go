package cmd

import (
	"context"
	"path/filepath"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/redis/go-redis/v9"

	"github.com/notelens/notelens/internal/config"
	"github.com/notelens/notelens/internal/core/cache"
	"github.com/notelens/notelens/internal/core/engine"
	"github.com/notelens/notelens/internal/core/router"
	"github.com/notelens/notelens/internal/core/store"
	"github.com/notelens/notelens/internal/core/upstream"
	apperrors "github.com/notelens/notelens/internal/errors"
	"github.com/notelens/notelens/internal/license"
)

// openStore opens the configured database and ensures the schema exists.
func openStore(ctx context.Context) (*store.Store, error) {
	cfg := config.GetConfig()
	if cfg == nil {
		return nil, apperrors.NewStorageError("configuration not loaded")
	}

	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, apperrors.WrapStorage(ctx, err, "failed to open store")
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, apperrors.WrapStorage(ctx, err, "failed to migrate store")
	}

	return s, nil
}

// buildCache constructs the configured cache backend.
func buildCache(cfg config.CacheConfig) cache.Cache {
	if cfg.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		return cache.NewRedis(client, "")
	}
	return cache.NewMemory(cfg.Capacity)
}

// buildRouter wires the dispatch pipeline from configuration.
func buildRouter(s *store.Store) *router.Router {
	cfg := config.GetConfig()
	if cfg == nil {
		cfg = &config.Config{}
	}

	limiter := &engine.RateLimiter{
		MaxRequests: cfg.Limits.RequestsPerMinute,
		BackoffBase: cfg.Limits.BackoffBase,
		BackoffCap:  cfg.Limits.BackoffCap,
	}

	return &router.Router{
		Cache: buildCache(cfg.Cache),
		Upstream: &upstream.Client{
			BaseURL:    cfg.Upstream.URL,
			APIVersion: cfg.Upstream.APIVersion,
			Limiter:    limiter,
			Timeout:    cfg.Upstream.Timeout,
		},
		Store:          s,
		Gate:           license.NewGate(s, cfg.Limits.FreeDailyFetches),
		NotesTTL:       cfg.Cache.NotesTTL,
		ContentTTL:     cfg.Cache.ContentTTL,
		RetryAttempts:  cfg.Retry.Attempts,
		RetryBaseDelay: cfg.Retry.BaseDelay,
		RetryMaxDelay:  cfg.Retry.MaxDelay,
	}
}

// responseError converts a failed dispatch response back into a tagged
// envelope for cobra to report.
func responseError(resp router.Response) error {
	return gferrors.NewErrorEnvelope(resp.ErrorCode, resp.Error)
}

// getDBPath returns the resolved database path from config
func getDBPath() string {
	cfg := config.GetConfig()
	if cfg == nil {
		return config.DefaultStorePath()
	}
	if cfg.Store.URL != "" {
		return cfg.Store.URL
	}
	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = config.DefaultStorePath()
	}
	if absPath, err := filepath.Abs(dbPath); err == nil {
		return absPath
	}
	return dbPath
}
