package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/buketp/UrbanFeed/internal/news"
)

// respondError maps domain errors onto jsend responses.
func (s *Server) respondError(c echo.Context, err error, internalMessage string) error {
	if verr, ok := news.IsValidation(err); ok {
		return failValidation(c, verr.Fields)
	}

	switch {
	case errors.Is(err, news.ErrUnknownSource):
		return failValidation(c, map[string]string{"source_id": "unknown source"})
	case errors.Is(err, news.ErrNotFound):
		return failNotFound(c, "Not found")
	case errors.Is(err, news.ErrStorageConflict):
		s.logger.Error().Err(err).Str("path", c.Path()).Msg("storage conflict")
		return fail(c, http.StatusConflict, "Conflicting record", nil)
	case errors.Is(err, news.ErrStorageUnavailable):
		s.logger.Warn().Err(err).Str("path", c.Path()).Msg("storage unavailable")
		return unavailable(c, "Storage temporarily unavailable")
	}

	s.logger.Error().Err(err).Str("path", c.Path()).Msg(internalMessage)
	return internalError(c, internalMessage)
}
