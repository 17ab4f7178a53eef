package cli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seuros/kohort/internal/analytics"
	"github.com/seuros/kohort/internal/config"
	"github.com/seuros/kohort/internal/dashboard"
	"github.com/seuros/kohort/internal/database"
	"github.com/seuros/kohort/internal/ingest"
	"github.com/seuros/kohort/internal/lock"
	"github.com/seuros/kohort/internal/logging"
	"github.com/seuros/kohort/internal/models"
	"github.com/seuros/kohort/internal/records"
)

// uploadLockKey names the lock shared by every process uploading into the
// same store.
const uploadLockKey = "kohort:uploads"

// environment is the wired record store and its collaborators.
type environment struct {
	cfg     *config.Config
	store   records.Store
	source  records.Source
	history ingest.History
	repo    *database.Repository
	db      *sql.DB
	redis   *redis.Client
}

// openEnvironment selects database mode when a database URL is configured
// and memory mode over the data directory otherwise.
func openEnvironment(ctx context.Context, cfg *config.Config) (*environment, error) {
	env := &environment{cfg: cfg}

	if cfg.DatabaseURL != "" {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		if err := database.ConnectURL(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		env.db = database.DB
		env.repo = database.NewRepository(env.db)
		env.store = env.repo
		env.source = env.repo
		env.history = env.repo
	} else {
		mem, err := records.LoadDir(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		env.store = mem
		env.source = mem
		env.history = ingest.NewMemoryHistory()
		logging.L().Info("memory mode", "data_dir", cfg.DataDir)
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		env.redis = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := env.redis.Ping(pingCtx).Err(); err != nil {
			logging.L().Warn("redis unavailable, uploads fall back to the next lock", "error", err)
			_ = env.redis.Close()
			env.redis = nil
		}
	}

	return env, nil
}

// analyticsOptions maps configuration onto aggregation options.
func analyticsOptions(cfg *config.Config) analytics.Options {
	return analytics.Options{
		Stages:  cfg.Funnel.Stages,
		Buckets: cfg.LTV.Buckets,
		Cohort: analytics.CohortOptions{
			Horizon: cfg.Cohort.Horizon,
			Limit:   cfg.Cohort.Limit,
		},
		Activity: cfg.Cohort.Activity,
	}
}

func (e *environment) dashboards() *dashboard.Service {
	return dashboard.NewService(e.source, analyticsOptions(e.cfg), dashboard.WithMaxAge(e.cfg.Dashboard.CacheTTL))
}

// uploads builds the upload coordinator. The lock prefers redis, then a
// PostgreSQL advisory lock, then an in-process lock.
func (e *environment) uploads(opts ...ingest.Option) *ingest.Service {
	base := []ingest.Option{
		ingest.WithHistory(e.history),
		ingest.WithLocker(lock.New(e.redis, e.db, uploadLockKey, e.cfg.Ingest.LockTTL)),
	}
	return ingest.NewService(e.store, append(base, opts...)...)
}

func (e *environment) defaultRange() models.DateRange {
	rng, err := models.ParseDateRange(e.cfg.DefaultRange)
	if err != nil {
		return models.Range30d
	}
	return rng
}

// persist writes memory-mode customers back to the data directory. Database
// mode stores uploads as they happen.
func (e *environment) persist() error {
	mem, ok := e.store.(*records.Memory)
	if !ok {
		return nil
	}
	return mem.SaveCustomers(e.cfg.DataDir)
}

// Close releases connections opened by openEnvironment.
func (e *environment) Close() {
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			logging.L().Warn("error closing redis", "error", err)
		}
	}
	if e.db != nil {
		if err := database.Close(); err != nil {
			logging.L().Warn("error closing database", "error", err)
		}
	}
}
