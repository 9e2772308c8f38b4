package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/buketp/UrbanFeed/internal/directory"
	"github.com/buketp/UrbanFeed/internal/news"
)

func (s *Server) handleListCities(c echo.Context) error {
	activeOnly := !news.ParseBoolish(c.QueryParam("all"), false)
	cities, err := s.deps.Directory.ListCities(c.Request().Context(), activeOnly)
	if err != nil {
		return s.respondError(c, err, "Failed to list cities")
	}
	if cities == nil {
		cities = []news.City{}
	}

	if news.ParseBoolish(c.QueryParam("flat"), false) {
		return success(c, cities)
	}
	return success(c, map[string]any{"items": cities})
}

func (s *Server) handleListSources(c echo.Context) error {
	filter := directory.SourceFilter{}
	if raw := strings.TrimSpace(c.QueryParam("city_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			return failValidation(c, map[string]string{"city_id": "must be a positive integer"})
		}
		filter.CityID = &id
	}
	active := news.ParseBoolish(c.QueryParam("is_active"), true)
	filter.Active = &active

	sources, err := s.deps.Directory.ListSources(c.Request().Context(), filter)
	if err != nil {
		return s.respondError(c, err, "Failed to list sources")
	}
	if sources == nil {
		sources = []news.Source{}
	}
	return success(c, map[string]any{"items": sources})
}

func (s *Server) handleRegisterSource(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return failValidation(c, map[string]string{"payload": "could not read request body"})
	}

	source, err := s.deps.Directory.RegisterSource(c.Request().Context(), body)
	if err != nil {
		return s.respondError(c, err, "Failed to register source")
	}
	return successWithStatus(c, http.StatusCreated, source)
}
