package httpapi

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/buketp/UrbanFeed/internal/auth"
)

const apiKeyHeader = "x-api-key"

// requireAPIKey guards write routes with the configured key.
func (s *Server) requireAPIKey() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := s.deps.Keys.Verify(c.Request().Header.Get(apiKeyHeader))
			switch {
			case err == nil:
				return next(c)
			case errors.Is(err, auth.ErrNotConfigured):
				s.logger.Error().Str("path", c.Path()).Msg("write request rejected: API_KEY is not configured")
				return internalError(c, "API key is not configured")
			default:
				return failUnauthorized(c, "Invalid API key")
			}
		}
	}
}
