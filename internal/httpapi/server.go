package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/buketp/UrbanFeed/internal/auth"
	"github.com/buketp/UrbanFeed/internal/directory"
	"github.com/buketp/UrbanFeed/internal/globaltime"
	"github.com/buketp/UrbanFeed/internal/ingest"
	"github.com/buketp/UrbanFeed/internal/metrics"
	"github.com/buketp/UrbanFeed/internal/reader"
)

const bodyLimit = "1M"

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// Deps are the services the HTTP layer fronts.
type Deps struct {
	News      *ingest.Service
	Directory *directory.Service
	Keys      *auth.KeyVerifier
	Reader    *reader.Fetcher
	Metrics   *metrics.Metrics
}

type Server struct {
	deps   Deps
	logger zerolog.Logger
	opts   Options
}

func NewServer(deps Deps, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8080
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	if deps.Reader == nil {
		deps.Reader = reader.NewFetcher(reader.Options{})
	}

	return &Server{
		deps:   deps,
		logger: logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			AllowedOrigins:  opts.AllowedOrigins,
		},
	}
}

// Handler builds the echo instance with every route registered.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, apiKeyHeader},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.deps.Metrics.HTTPRequest(v.Method, v.RoutePath, v.Status)

			event := s.logger.Info()
			msg := "http request"
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
				msg = "http request failed"
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg(msg)
			return nil
		},
	}))

	if s.deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	api := e.Group("/api")
	api.GET("/health", s.handleHealth)

	api.GET("/news", s.handleListNews)
	api.POST("/news", s.handleSubmitNews, s.requireAPIKey())
	api.DELETE("/news", s.handleClearNews, s.requireAPIKey())
	api.GET("/ai-news", s.handleListAINews)
	api.GET("/news/count", s.handleCountNews)
	api.GET("/news/last", s.handleLastNews)
	api.GET("/news/lookup", s.handleLookupNews)
	api.GET("/news/:fingerprint", s.handleGetNews)
	api.GET("/news/:fingerprint/preview", s.handleNewsPreview)

	api.GET("/cities", s.handleListCities)
	api.GET("/sources", s.handleListSources)
	api.POST("/sources", s.handleRegisterSource, s.requireAPIKey())

	return e
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.deps.News == nil || s.deps.Directory == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("urbanfeed api started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("urbanfeed api stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if v, ok := he.Message.(string); ok && strings.TrimSpace(v) != "" {
			message = v
		} else if text := http.StatusText(status); text != "" {
			message = text
		}
	} else if err != nil {
		_ = s.respondError(c, err, "Request failed")
		return
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "urbanfeed",
		"time":    globaltime.UTC(),
	})
}
