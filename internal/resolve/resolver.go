package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/buketp/UrbanFeed/internal/news"
)

// Directory is the read-only city/source lookup surface. A miss is reported
// as a nil result with a nil error.
type Directory interface {
	FindCityByName(ctx context.Context, name string) (*news.City, error)
	FindSourceByID(ctx context.Context, id string) (*news.Source, error)
	FindSourceByFeedURL(ctx context.Context, feedURL string) (*news.Source, error)
	FindSourceByNameAndCity(ctx context.Context, name string, cityID int64) (*news.Source, error)
	FindSourceByName(ctx context.Context, name string) (*news.Source, error)
	GetCityNameByID(ctx context.Context, id int64) (string, bool, error)
}

type Strategy string

const (
	StrategyExplicit Strategy = "explicit"
	StrategyFeedURL  Strategy = "feed_url"
	StrategyNameCity Strategy = "name_city"
	StrategyName     Strategy = "name"
	StrategySource   Strategy = "source"
	StrategyProvince Strategy = "province"
	StrategyNone     Strategy = "none"
)

// Reference carries the loose identifying fields of a submission.
type Reference struct {
	SourceID     string
	FeedURL      string
	SourceName   string
	CityID       *int64
	ProvinceName string
}

type Resolution struct {
	CityID         *int64   `json:"cityId,omitempty"`
	SourceID       *string  `json:"sourceId,omitempty"`
	ProvinceName   string   `json:"province"`
	SourceName     string   `json:"source"`
	SourceStrategy Strategy `json:"sourceStrategy"`
	CityStrategy   Strategy `json:"cityStrategy"`
}

type sourceLookup struct {
	strategy Strategy
	find     func(ctx context.Context, ref Reference, tentativeCity *int64) (*news.Source, error)
}

type Resolver struct {
	dir     Directory
	logger  zerolog.Logger
	lookups []sourceLookup
}

func New(dir Directory, logger zerolog.Logger) *Resolver {
	r := &Resolver{dir: dir, logger: logger}
	r.lookups = []sourceLookup{
		{strategy: StrategyFeedURL, find: r.byFeedURL},
		{strategy: StrategyNameCity, find: r.byNameAndCity},
		{strategy: StrategyName, find: r.byName},
	}
	return r
}

// Resolve maps a reference onto directory ids and display names. An explicit
// source id that does not exist fails with news.ErrUnknownSource and an
// explicit city id that does not exist fails validation; every other miss
// leaves the id unresolved.
func (r *Resolver) Resolve(ctx context.Context, ref Reference) (Resolution, error) {
	if r == nil || r.dir == nil {
		return Resolution{}, fmt.Errorf("resolver is not initialized")
	}
	ref = trimReference(ref)

	source, sourceStrategy, err := r.resolveExplicit(ctx, ref)
	if err != nil {
		return Resolution{}, err
	}

	// An explicit city id must name a directory city; the stored record
	// would otherwise point at nothing.
	explicitCityName := ""
	if ref.CityID != nil {
		name, ok, err := r.dir.GetCityNameByID(ctx, *ref.CityID)
		if err != nil {
			return Resolution{}, fmt.Errorf("get city name: %w", err)
		}
		if !ok {
			return Resolution{}, news.NewValidationError("city_id", "unknown city")
		}
		explicitCityName = name
	}

	var provinceCity *news.City
	provinceLooked := false
	lookupProvince := func() (*news.City, error) {
		if provinceLooked || ref.ProvinceName == "" {
			return provinceCity, nil
		}
		provinceLooked = true
		city, err := r.dir.FindCityByName(ctx, ref.ProvinceName)
		if err != nil {
			return nil, fmt.Errorf("find city by name: %w", err)
		}
		provinceCity = city
		return city, nil
	}

	if source == nil {
		tentativeCity := ref.CityID
		if tentativeCity == nil {
			city, err := lookupProvince()
			if err != nil {
				return Resolution{}, err
			}
			if city != nil {
				tentativeCity = &city.ID
			}
		}

		for _, lookup := range r.lookups {
			found, err := lookup.find(ctx, ref, tentativeCity)
			if err != nil {
				return Resolution{}, fmt.Errorf("resolve source by %s: %w", lookup.strategy, err)
			}
			if found != nil {
				source = found
				sourceStrategy = lookup.strategy
				break
			}
		}
	}
	if source == nil {
		sourceStrategy = StrategyNone
	}
	if sourceStrategy == StrategyName {
		r.logger.Debug().
			Str("source_name", ref.SourceName).
			Str("source_id", source.ID).
			Msg("source resolved by name only")
	}

	res := Resolution{SourceStrategy: sourceStrategy, CityStrategy: StrategyNone}
	if source != nil {
		id := source.ID
		res.SourceID = &id
	}

	switch {
	case ref.CityID != nil:
		res.CityID = ref.CityID
		res.CityStrategy = StrategyExplicit
	case source != nil && source.CityID > 0:
		cityID := source.CityID
		res.CityID = &cityID
		res.CityStrategy = StrategySource
	default:
		city, err := lookupProvince()
		if err != nil {
			return Resolution{}, err
		}
		if city != nil {
			cityID := city.ID
			res.CityID = &cityID
			res.CityStrategy = StrategyProvince
		}
	}

	res.ProvinceName = ref.ProvinceName
	if res.ProvinceName == "" && res.CityStrategy == StrategyExplicit {
		res.ProvinceName = explicitCityName
	}
	if res.ProvinceName == "" && res.CityID != nil {
		name, ok, err := r.dir.GetCityNameByID(ctx, *res.CityID)
		if err != nil {
			return Resolution{}, fmt.Errorf("get city name: %w", err)
		}
		if ok {
			res.ProvinceName = name
		}
	}

	res.SourceName = ref.SourceName
	if res.SourceName == "" && source != nil {
		res.SourceName = strings.TrimSpace(source.Name)
	}
	if res.SourceName == "" {
		res.SourceName = news.UnknownSourceName
	}

	return res, nil
}

func (r *Resolver) resolveExplicit(ctx context.Context, ref Reference) (*news.Source, Strategy, error) {
	if ref.SourceID == "" {
		return nil, StrategyNone, nil
	}
	source, err := r.dir.FindSourceByID(ctx, ref.SourceID)
	if err != nil {
		return nil, StrategyNone, fmt.Errorf("find source by id: %w", err)
	}
	if source == nil {
		return nil, StrategyNone, fmt.Errorf("source_id %q: %w", ref.SourceID, news.ErrUnknownSource)
	}
	return source, StrategyExplicit, nil
}

func (r *Resolver) byFeedURL(ctx context.Context, ref Reference, _ *int64) (*news.Source, error) {
	if ref.FeedURL == "" {
		return nil, nil
	}
	return r.dir.FindSourceByFeedURL(ctx, ref.FeedURL)
}

func (r *Resolver) byNameAndCity(ctx context.Context, ref Reference, tentativeCity *int64) (*news.Source, error) {
	if ref.SourceName == "" || tentativeCity == nil {
		return nil, nil
	}
	return r.dir.FindSourceByNameAndCity(ctx, ref.SourceName, *tentativeCity)
}

func (r *Resolver) byName(ctx context.Context, ref Reference, _ *int64) (*news.Source, error) {
	if ref.SourceName == "" {
		return nil, nil
	}
	return r.dir.FindSourceByName(ctx, ref.SourceName)
}

func trimReference(ref Reference) Reference {
	ref.SourceID = strings.TrimSpace(ref.SourceID)
	ref.FeedURL = strings.TrimSpace(ref.FeedURL)
	ref.SourceName = strings.TrimSpace(ref.SourceName)
	ref.ProvinceName = strings.TrimSpace(ref.ProvinceName)
	if ref.CityID != nil && *ref.CityID <= 0 {
		ref.CityID = nil
	}
	return ref
}
