package dircache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/buketp/UrbanFeed/internal/metrics"
	"github.com/buketp/UrbanFeed/internal/news"
	"github.com/buketp/UrbanFeed/internal/resolve"
)

const keyPrefix = "urbanfeed:dir:v1:"

// Backend is a byte-valued key store with expiry. A miss returns ok=false.
type Backend interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Directory is a read-through cache in front of a resolve.Directory.
// Only hits are cached, so a newly registered source is visible at once.
// Backend failures are logged and the lookup falls through to the inner directory.
type Directory struct {
	inner   resolve.Directory
	backend Backend
	ttl     time.Duration
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

var _ resolve.Directory = (*Directory)(nil)

func New(inner resolve.Directory, backend Backend, ttl time.Duration, logger zerolog.Logger, m *metrics.Metrics) *Directory {
	return &Directory{
		inner:   inner,
		backend: backend,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

func (d *Directory) FindCityByName(ctx context.Context, name string) (*news.City, error) {
	return lookup(ctx, d, "city:name:"+cityNameKey(name), func() (*news.City, error) {
		return d.inner.FindCityByName(ctx, name)
	})
}

func (d *Directory) FindSourceByID(ctx context.Context, id string) (*news.Source, error) {
	return lookup(ctx, d, "source:id:"+id, func() (*news.Source, error) {
		return d.inner.FindSourceByID(ctx, id)
	})
}

func (d *Directory) FindSourceByFeedURL(ctx context.Context, feedURL string) (*news.Source, error) {
	return lookup(ctx, d, "source:feed:"+feedURL, func() (*news.Source, error) {
		return d.inner.FindSourceByFeedURL(ctx, feedURL)
	})
}

func (d *Directory) FindSourceByNameAndCity(ctx context.Context, name string, cityID int64) (*news.Source, error) {
	key := "source:name_city:" + strconv.FormatInt(cityID, 10) + ":" + name
	return lookup(ctx, d, key, func() (*news.Source, error) {
		return d.inner.FindSourceByNameAndCity(ctx, name, cityID)
	})
}

func (d *Directory) FindSourceByName(ctx context.Context, name string) (*news.Source, error) {
	return lookup(ctx, d, "source:name:"+name, func() (*news.Source, error) {
		return d.inner.FindSourceByName(ctx, name)
	})
}

type cityName struct {
	Name string `json:"name"`
}

func (d *Directory) GetCityNameByID(ctx context.Context, id int64) (string, bool, error) {
	found, err := lookup(ctx, d, "city:id:"+strconv.FormatInt(id, 10), func() (*cityName, error) {
		name, ok, err := d.inner.GetCityNameByID(ctx, id)
		if err != nil || !ok {
			return nil, err
		}
		return &cityName{Name: name}, nil
	})
	if err != nil || found == nil {
		return "", false, err
	}
	return found.Name, true, nil
}

func lookup[T any](ctx context.Context, d *Directory, key string, load func() (*T, error)) (*T, error) {
	if d.backend == nil || d.ttl <= 0 {
		return load()
	}
	key = keyPrefix + key

	raw, ok, err := d.backend.Get(ctx, key)
	switch {
	case err != nil:
		d.logger.Warn().Err(err).Str("key", key).Msg("directory cache read failed")
	case ok:
		var value T
		if err := json.Unmarshal(raw, &value); err == nil {
			d.metrics.CacheLookup(true)
			return &value, nil
		}
		d.logger.Warn().Str("key", key).Msg("discarding undecodable directory cache entry")
	}
	d.metrics.CacheLookup(false)

	value, err := load()
	if err != nil || value == nil {
		return value, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return value, fmt.Errorf("encode directory cache entry: %w", err)
	}
	if err := d.backend.Set(ctx, key, encoded, d.ttl); err != nil {
		d.logger.Warn().Err(err).Str("key", key).Msg("directory cache write failed")
	}
	return value, nil
}

// cityNameKey folds case the same way city name lookups do. Source keys
// use the raw value because source lookups match exactly.
func cityNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
