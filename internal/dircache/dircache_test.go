package dircache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/buketp/UrbanFeed/internal/memstore"
	"github.com/buketp/UrbanFeed/internal/metrics"
	"github.com/buketp/UrbanFeed/internal/news"
)

type mapBackend struct {
	mu      sync.Mutex
	values  map[string][]byte
	ttls    map[string]time.Duration
	failGet bool
}

func newMapBackend() *mapBackend {
	return &mapBackend{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (b *mapBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failGet {
		return nil, false, errors.New("connection refused")
	}
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *mapBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	b.ttls[key] = ttl
	return nil
}

type countingDirectory struct {
	*memstore.Directory
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingDirectory) hit(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name]++
}

func (c *countingDirectory) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *countingDirectory) FindCityByName(ctx context.Context, name string) (*news.City, error) {
	c.hit("city")
	return c.Directory.FindCityByName(ctx, name)
}

func (c *countingDirectory) FindSourceByFeedURL(ctx context.Context, feedURL string) (*news.Source, error) {
	c.hit("feed")
	return c.Directory.FindSourceByFeedURL(ctx, feedURL)
}

func (c *countingDirectory) GetCityNameByID(ctx context.Context, id int64) (string, bool, error) {
	c.hit("city_name")
	return c.Directory.GetCityNameByID(ctx, id)
}

func newFixture(t *testing.T) (*countingDirectory, *mapBackend) {
	t.Helper()

	ctx := context.Background()
	inner := memstore.NewDirectory()
	if _, err := inner.SeedCities(ctx, []news.City{{Name: "Manisa", IsActive: true}, {Name: "Bursa", IsActive: true}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := inner.UpsertSource(ctx, news.Source{CityID: 1, Name: "Manisa Haber", FeedURL: "https://manisahaber.example/rss", IsActive: true}); err != nil {
		t.Fatalf("register source: %v", err)
	}
	return &countingDirectory{Directory: inner, calls: map[string]int{}}, newMapBackend()
}

func TestDirectoryCachesHits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner, backend := newFixture(t)
	dir := New(inner, backend, time.Minute, zerolog.Nop(), metrics.New())

	for i := 0; i < 3; i++ {
		source, err := dir.FindSourceByFeedURL(ctx, "https://manisahaber.example/rss")
		if err != nil || source == nil {
			t.Fatalf("lookup %d: %#v err=%v", i, source, err)
		}
		if source.Name != "Manisa Haber" || source.CityID != 1 {
			t.Fatalf("unexpected source from cache: %#v", source)
		}
	}
	if got := inner.count("feed"); got != 1 {
		t.Fatalf("expected one inner lookup, got %d", got)
	}
	if got := backend.ttls[keyPrefix+"source:feed:https://manisahaber.example/rss"]; got != time.Minute {
		t.Fatalf("expected entry stored with ttl, got %v", got)
	}

	for i := 0; i < 2; i++ {
		name, ok, err := dir.GetCityNameByID(ctx, 2)
		if err != nil || !ok || name != "Bursa" {
			t.Fatalf("city name lookup: %q %v %v", name, ok, err)
		}
	}
	if got := inner.count("city_name"); got != 1 {
		t.Fatalf("expected one inner city name lookup, got %d", got)
	}
}

func TestDirectoryDoesNotCacheMisses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner, backend := newFixture(t)
	dir := New(inner, backend, time.Minute, zerolog.Nop(), nil)

	for i := 0; i < 2; i++ {
		city, err := dir.FindCityByName(ctx, "Sinop")
		if err != nil || city != nil {
			t.Fatalf("expected miss, got %#v err=%v", city, err)
		}
	}
	if got := inner.count("city"); got != 2 {
		t.Fatalf("misses must reach the inner directory every time, got %d", got)
	}
	if len(backend.values) != 0 {
		t.Fatalf("expected nothing cached, got %v", backend.values)
	}
}

func TestDirectoryNameKeysAreCaseInsensitive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner, backend := newFixture(t)
	dir := New(inner, backend, time.Minute, zerolog.Nop(), nil)

	if _, err := dir.FindCityByName(ctx, "Manisa"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	city, err := dir.FindCityByName(ctx, "  MANISA ")
	if err != nil || city == nil || city.ID != 1 {
		t.Fatalf("expected cached city, got %#v err=%v", city, err)
	}
	if got := inner.count("city"); got != 1 {
		t.Fatalf("expected one inner lookup, got %d", got)
	}
}

func TestDirectorySourceNameKeysAreExact(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner, backend := newFixture(t)
	dir := New(inner, backend, time.Minute, zerolog.Nop(), nil)

	warm, err := dir.FindSourceByName(ctx, "Manisa Haber")
	if err != nil || warm == nil {
		t.Fatalf("expected source, got %#v err=%v", warm, err)
	}
	if _, err := dir.FindSourceByNameAndCity(ctx, "Manisa Haber", 1); err != nil {
		t.Fatalf("lookup: %v", err)
	}

	for _, name := range []string{"manisa haber", "MANISA HABER", "Manisa  Haber"} {
		byName, err := dir.FindSourceByName(ctx, name)
		if err != nil || byName != nil {
			t.Fatalf("FindSourceByName(%q) must miss like the directory, got %#v err=%v", name, byName, err)
		}
		byPair, err := dir.FindSourceByNameAndCity(ctx, name, 1)
		if err != nil || byPair != nil {
			t.Fatalf("FindSourceByNameAndCity(%q) must miss like the directory, got %#v err=%v", name, byPair, err)
		}
	}
}

func TestDirectoryFallsThroughOnBackendError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner, backend := newFixture(t)
	backend.failGet = true
	dir := New(inner, backend, time.Minute, zerolog.Nop(), nil)

	source, err := dir.FindSourceByFeedURL(ctx, "https://manisahaber.example/rss")
	if err != nil || source == nil {
		t.Fatalf("expected lookup to succeed despite cache failure, got %#v err=%v", source, err)
	}
}

func TestDirectoryDisabledWithoutTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner, backend := newFixture(t)
	dir := New(inner, backend, 0, zerolog.Nop(), nil)

	for i := 0; i < 2; i++ {
		if _, err := dir.FindSourceByFeedURL(ctx, "https://manisahaber.example/rss"); err != nil {
			t.Fatalf("lookup: %v", err)
		}
	}
	if inner.count("feed") != 2 || len(backend.values) != 0 {
		t.Fatalf("expected cache bypass with zero ttl")
	}
}
