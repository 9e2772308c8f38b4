package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/buketp/UrbanFeed/internal/cli"
	"github.com/buketp/UrbanFeed/internal/config"
	"github.com/buketp/UrbanFeed/internal/db"
	"github.com/buketp/UrbanFeed/internal/dircache"
	"github.com/buketp/UrbanFeed/internal/directory"
	"github.com/buketp/UrbanFeed/internal/ingest"
	"github.com/buketp/UrbanFeed/internal/logging"
	"github.com/buketp/UrbanFeed/internal/memstore"
	"github.com/buketp/UrbanFeed/internal/metrics"
	"github.com/buketp/UrbanFeed/internal/resolve"
)

const (
	storePostgres = "postgres"
	storeMemory   = "memory"
)

// runtime holds the wired services of one command invocation.
type runtime struct {
	cfg       *config.Config
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	pool      *db.Pool
	redis     *dircache.RedisBackend
	news      *ingest.Service
	directory *directory.Service
}

func parseStoreKind(raw string) (string, error) {
	switch kind := strings.ToLower(strings.TrimSpace(raw)); kind {
	case "", storePostgres:
		return storePostgres, nil
	case storeMemory:
		return storeMemory, nil
	default:
		return "", fmt.Errorf("--store must be postgres or memory")
	}
}

func loadEnv(envLoader *cli.EnvLoader) {
	if envLoader == nil {
		return
	}
	if _, err := envLoader.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// openRuntime loads configuration and wires storage, cache and services.
func openRuntime(ctx context.Context, envLoader *cli.EnvLoader, kind string) (*runtime, error) {
	loadEnv(envLoader)

	load := config.Load
	if kind == storeMemory {
		load = config.LoadWithoutDatabase
	}
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, metrics: metrics.New()}

	var (
		records  ingest.RecordStore
		dirStore directory.Store
		lookup   resolve.Directory
	)
	switch kind {
	case storeMemory:
		store, dir := memstore.NewStore(), memstore.NewDirectory()
		records, dirStore, lookup = store, dir, dir
	default:
		pool, err := db.NewPool(ctx, cfg, db.Options{Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		rt.pool = pool
		dir := db.NewDirectoryStore(pool)
		records, dirStore, lookup = db.NewNewsStore(pool), dir, dir

		unique, err := pool.SourceNameCityUnique(ctx)
		if err != nil {
			rt.Close()
			return nil, err
		}
		if !unique {
			logger.Warn().Msg("sources contain duplicate (name, city_id) pairs; name lookups pick the oldest")
		}
	}

	if url := strings.TrimSpace(cfg.RedisURL); url != "" {
		backend, err := dircache.NewRedisBackend(ctx, url)
		if err != nil {
			logger.Warn().Err(err).Msg("directory cache disabled")
		} else {
			rt.redis = backend
			lookup = dircache.New(lookup, backend, cfg.DirectoryCacheTTL, logging.Component(logger, "dircache"), rt.metrics)
		}
	}

	resolver := resolve.New(lookup, logging.Component(logger, "resolve"))
	rt.news = ingest.NewService(records, resolver, rt.metrics, logging.Component(logger, "ingest"))
	rt.directory = directory.NewService(dirStore, logging.Component(logger, "directory"))

	if kind == storeMemory {
		if _, err := rt.directory.SeedCities(ctx); err != nil {
			rt.Close()
			return nil, err
		}
	}
	return rt, nil
}

// requirePool rejects commands that only make sense against the database.
func (r *runtime) requirePool(command string) error {
	if r.pool == nil {
		return fmt.Errorf("%s requires the postgres store", command)
	}
	return nil
}

func (r *runtime) Close() {
	if r == nil {
		return
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if r.pool != nil {
		_ = r.pool.Close()
	}
}
