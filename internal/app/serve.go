package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buketp/UrbanFeed/internal/auth"
	"github.com/buketp/UrbanFeed/internal/cli"
	"github.com/buketp/UrbanFeed/internal/httpapi"
	"github.com/buketp/UrbanFeed/internal/logging"
	"github.com/buketp/UrbanFeed/internal/reader"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	store := fs.String("store", storePostgres, "Record store: postgres or memory")
	host := fs.String("host", "", "Host interface to bind (default HTTP_HOST)")
	port := fs.Int("port", 0, "HTTP port (default HTTP_PORT)")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	previewTimeout := fs.Duration("preview-timeout", reader.DefaultFetchTimeout, "Article preview fetch timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port < 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}
	kind, err := parseStoreKind(*store)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer bootCancel()

	rt, err := openRuntime(bootCtx, envLoader, kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	cfg := rt.cfg
	if !cfg.HasAPIKey() {
		rt.logger.Warn().Msg("no API key configured; write endpoints will answer 500")
	}

	bindHost := cfg.HTTPHost
	if *host != "" {
		bindHost = *host
	}
	bindPort := cfg.HTTPPort
	if *port > 0 {
		bindPort = *port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	srv := httpapi.NewServer(httpapi.Deps{
		News:      rt.news,
		Directory: rt.directory,
		Keys:      auth.NewKeyVerifier(cfg.APIKey, cfg.APIKeyBcrypt),
		Reader:    reader.NewFetcher(reader.Options{Timeout: *previewTimeout}),
		Metrics:   rt.metrics,
	}, logging.Component(rt.logger, "http"), httpapi.Options{
		Host:            bindHost,
		Port:            bindPort,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		AllowedOrigins:  cfg.CORSAllowedOriginsList(),
	})

	rt.logger.Info().Str("store", kind).Str("host", bindHost).Int("port", bindPort).Msg("starting http api")
	if err := srv.Start(ctx); err != nil {
		rt.logger.Error().Err(err).Str("host", bindHost).Int("port", bindPort).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
