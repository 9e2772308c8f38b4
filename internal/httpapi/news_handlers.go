package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/buketp/UrbanFeed/internal/news"
	"github.com/buketp/UrbanFeed/internal/reader"
)

const (
	minPreviewChars = 200
	maxPreviewChars = 4000
)

type newsListResponse struct {
	AIOnly bool          `json:"aiOnly"`
	Count  int           `json:"count"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
	Order  news.Order    `json:"order"`
	Items  []news.Record `json:"items"`
}

type newsPreviewResponse struct {
	Fingerprint string `json:"fingerprint"`
	URL         string `json:"url"`
	reader.Preview
}

func listParamsFromQuery(c echo.Context) news.ListParams {
	aiOnly := c.QueryParam("aiOnly")
	if aiOnly == "" {
		aiOnly = c.QueryParam("ai_only")
	}
	return news.ListParams{
		Source:   c.QueryParam("source"),
		Province: c.QueryParam("province"),
		Category: c.QueryParam("category"),
		CityID:   c.QueryParam("city_id"),
		SourceID: c.QueryParam("source_id"),
		AIOnly:   aiOnly,
		Q:        c.QueryParam("q"),
		Limit:    c.QueryParam("limit"),
		Offset:   c.QueryParam("offset"),
		Order:    c.QueryParam("order"),
	}
}

func (s *Server) handleListNews(c echo.Context) error {
	return s.listNews(c, listParamsFromQuery(c))
}

func (s *Server) handleListAINews(c echo.Context) error {
	params := listParamsFromQuery(c)
	params.AIOnly = "true"
	return s.listNews(c, params)
}

func (s *Server) listNews(c echo.Context, params news.ListParams) error {
	page, err := s.deps.News.List(c.Request().Context(), params)
	if err != nil {
		return s.respondError(c, err, "Failed to list news")
	}
	return success(c, newsListResponse{
		AIOnly: page.AIOnly,
		Count:  len(page.Items),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
		Order:  page.Order,
		Items:  page.Items,
	})
}

func (s *Server) handleSubmitNews(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return failValidation(c, map[string]string{"payload": "could not read request body"})
	}

	result, err := s.deps.News.Submit(c.Request().Context(), body)
	if err != nil {
		return s.respondError(c, err, "Failed to store news")
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	return successWithStatus(c, status, result)
}

func (s *Server) handleClearNews(c echo.Context) error {
	deleted, err := s.deps.News.Clear(c.Request().Context())
	if err != nil {
		return s.respondError(c, err, "Failed to clear news")
	}
	return success(c, map[string]any{"deleted": deleted})
}

func (s *Server) handleCountNews(c echo.Context) error {
	count, err := s.deps.News.Count(c.Request().Context())
	if err != nil {
		return s.respondError(c, err, "Failed to count news")
	}
	return success(c, map[string]any{"count": count})
}

func (s *Server) handleLastNews(c echo.Context) error {
	last, err := s.deps.News.Last(c.Request().Context())
	if err != nil {
		return s.respondError(c, err, "Failed to load last news")
	}
	return success(c, map[string]*news.Record{"last": last})
}

func (s *Server) handleLookupNews(c echo.Context) error {
	rec, err := s.deps.News.Lookup(c.Request().Context(), c.QueryParam("url"))
	if err != nil {
		return s.respondError(c, err, "Failed to look up news")
	}
	return success(c, rec)
}

func (s *Server) handleGetNews(c echo.Context) error {
	rec, err := s.deps.News.Get(c.Request().Context(), c.Param("fingerprint"))
	if err != nil {
		return s.respondError(c, err, "Failed to load news")
	}
	return success(c, rec)
}

func (s *Server) handleNewsPreview(c echo.Context) error {
	maxChars, err := parsePositiveInt(c.QueryParam("max_chars"), reader.DefaultPreviewChars, minPreviewChars, maxPreviewChars)
	if err != nil {
		return failValidation(c, map[string]string{"max_chars": err.Error()})
	}

	rec, err := s.deps.News.Get(c.Request().Context(), c.Param("fingerprint"))
	if err != nil {
		return s.respondError(c, err, "Failed to load news")
	}

	preview := s.deps.Reader.Preview(c.Request().Context(), rec.CanonicalURL, rec.Title, previewFallback(rec), maxChars)
	if preview.Error != nil {
		s.logger.Warn().
			Str("fingerprint", rec.Fingerprint).
			Str("source", preview.Source).
			Str("error", *preview.Error).
			Msg("reader preview fallback used")
	}
	return success(c, newsPreviewResponse{
		Fingerprint: rec.Fingerprint,
		URL:         rec.CanonicalURL,
		Preview:     preview,
	})
}

func previewFallback(rec news.Record) string {
	if rec.Summary != nil && strings.TrimSpace(*rec.Summary) != "" {
		return *rec.Summary
	}
	if rec.GeneratedText != nil {
		return *rec.GeneratedText
	}
	return ""
}
