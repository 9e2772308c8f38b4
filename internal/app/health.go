package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/buketp/UrbanFeed/internal/cli"
	"github.com/buketp/UrbanFeed/internal/config"
	"github.com/buketp/UrbanFeed/internal/db"
	"github.com/buketp/UrbanFeed/internal/dircache"
	"github.com/buketp/UrbanFeed/internal/logging"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Second, "Database ping timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	loadEnv(envLoader)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg, db.Options{Logger: logger, SkipMigrate: true})
	if err != nil {
		logger.Error().Err(err).Msg("health check failed")
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("health check failed")
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	fmt.Println("ok: database ping successful")

	if url := strings.TrimSpace(cfg.RedisURL); url != "" {
		backend, err := dircache.NewRedisBackend(ctx, url)
		if err != nil {
			logger.Error().Err(err).Msg("redis health check failed")
			fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
			return 1
		}
		_ = backend.Close()
		fmt.Println("ok: redis ping successful")
	}

	logger.Info().
		Dur("timeout", *timeout).
		Msg("health check passed")
	return 0
}
