package directory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/buketp/UrbanFeed/internal/db"
	"github.com/buketp/UrbanFeed/internal/news"
	payloadschema "github.com/buketp/UrbanFeed/schema"
)

// Store is the writable side of the city/source directory.
type Store interface {
	ListCities(ctx context.Context, activeOnly bool) ([]news.City, error)
	ListSources(ctx context.Context, cityID *int64, active *bool) ([]news.Source, error)
	UpsertSource(ctx context.Context, in news.Source) (news.Source, error)
	SeedCities(ctx context.Context, cities []news.City) (int, error)
}

// SourceFilter narrows ListSources. Nil fields do not filter.
type SourceFilter struct {
	CityID *int64
	Active *bool
}

type Service struct {
	store  Store
	seed   func() ([]news.City, error)
	logger zerolog.Logger
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		seed:   db.SeedCityList,
		logger: logger,
	}
}

func (s *Service) ListCities(ctx context.Context, activeOnly bool) ([]news.City, error) {
	cities, err := s.store.ListCities(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}
	return cities, nil
}

func (s *Service) ListSources(ctx context.Context, filter SourceFilter) ([]news.Source, error) {
	sources, err := s.store.ListSources(ctx, filter.CityID, filter.Active)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

// RegisterSource validates a registration payload and upserts it on the feed URL.
func (s *Service) RegisterSource(ctx context.Context, payload json.RawMessage) (news.Source, error) {
	in, err := payloadschema.ValidateSourceRegistration(payload)
	if err != nil {
		return news.Source{}, err
	}
	out, err := s.store.UpsertSource(ctx, in)
	if err != nil {
		return news.Source{}, fmt.Errorf("register source: %w", err)
	}

	s.logger.Info().
		Str("source_id", out.ID).
		Int64("city_id", out.CityID).
		Str("rss_url", out.FeedURL).
		Msg("source registered")
	return out, nil
}

// SeedCities loads the bundled province list into an empty directory.
func (s *Service) SeedCities(ctx context.Context) (int, error) {
	cities, err := s.seed()
	if err != nil {
		return 0, fmt.Errorf("load city seed: %w", err)
	}
	inserted, err := s.store.SeedCities(ctx, cities)
	if err != nil {
		return 0, fmt.Errorf("seed cities: %w", err)
	}
	if inserted > 0 {
		s.logger.Info().Int("cities", inserted).Msg("city directory seeded")
	}
	return inserted, nil
}
