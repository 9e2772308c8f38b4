package resolve

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/buketp/UrbanFeed/internal/news"
)

type fakeDirectory struct {
	cities  []news.City
	sources []news.Source
	calls   []string
	failOn  string
}

func (f *fakeDirectory) record(call string) error {
	f.calls = append(f.calls, call)
	if f.failOn == call {
		return errors.New("directory offline")
	}
	return nil
}

func (f *fakeDirectory) FindCityByName(_ context.Context, name string) (*news.City, error) {
	if err := f.record("city_by_name"); err != nil {
		return nil, err
	}
	for i := range f.cities {
		if strings.EqualFold(f.cities[i].Name, name) {
			return &f.cities[i], nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) FindSourceByID(_ context.Context, id string) (*news.Source, error) {
	if err := f.record("source_by_id"); err != nil {
		return nil, err
	}
	for i := range f.sources {
		if f.sources[i].ID == id {
			return &f.sources[i], nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) FindSourceByFeedURL(_ context.Context, feedURL string) (*news.Source, error) {
	if err := f.record("source_by_feed"); err != nil {
		return nil, err
	}
	for i := range f.sources {
		if f.sources[i].FeedURL == feedURL {
			return &f.sources[i], nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) FindSourceByNameAndCity(_ context.Context, name string, cityID int64) (*news.Source, error) {
	if err := f.record("source_by_name_city"); err != nil {
		return nil, err
	}
	for i := range f.sources {
		if f.sources[i].Name == name && f.sources[i].CityID == cityID {
			return &f.sources[i], nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) FindSourceByName(_ context.Context, name string) (*news.Source, error) {
	if err := f.record("source_by_name"); err != nil {
		return nil, err
	}
	for i := range f.sources {
		if f.sources[i].Name == name {
			return &f.sources[i], nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) GetCityNameByID(_ context.Context, id int64) (string, bool, error) {
	if err := f.record("city_name"); err != nil {
		return "", false, err
	}
	for _, city := range f.cities {
		if city.ID == id {
			return city.Name, true, nil
		}
	}
	return "", false, nil
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		cities: []news.City{
			{ID: 6, Name: "Ankara", IsActive: true},
			{ID: 35, Name: "İzmir", IsActive: true},
		},
		sources: []news.Source{
			{ID: "src-ank", CityID: 6, Name: "Kent Haber", FeedURL: "https://ankara.example/rss"},
			{ID: "src-izm", CityID: 35, Name: "Kent Haber", FeedURL: "https://izmir.example/rss"},
			{ID: "src-ege", CityID: 35, Name: "Ege Postası", FeedURL: "https://ege.example/rss"},
		},
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestResolveExplicitSource(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	res, err := New(dir, zerolog.Nop()).Resolve(context.Background(), Reference{SourceID: "src-ege", FeedURL: "https://ankara.example/rss"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SourceID == nil || *res.SourceID != "src-ege" || res.SourceStrategy != StrategyExplicit {
		t.Fatalf("expected explicit source, got %#v", res)
	}
	if res.CityID == nil || *res.CityID != 35 || res.CityStrategy != StrategySource {
		t.Fatalf("expected city from source, got %#v", res)
	}
	if res.ProvinceName != "İzmir" || res.SourceName != "Ege Postası" {
		t.Fatalf("unexpected display names: %q %q", res.ProvinceName, res.SourceName)
	}
}

func TestResolveUnknownExplicitSourceStopsChain(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	_, err := New(dir, zerolog.Nop()).Resolve(context.Background(), Reference{
		SourceID:   "missing",
		FeedURL:    "https://ankara.example/rss",
		SourceName: "Kent Haber",
	})
	if !errors.Is(err, news.ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
	if len(dir.calls) != 1 || dir.calls[0] != "source_by_id" {
		t.Fatalf("expected only the id lookup, got %v", dir.calls)
	}
}

func TestResolveRejectsUnknownExplicitCity(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	_, err := New(dir, zerolog.Nop()).Resolve(context.Background(), Reference{
		SourceName: "Kent Haber",
		CityID:     int64Ptr(9999),
	})
	verr, ok := news.IsValidation(err)
	if !ok || verr.Fields["city_id"] == "" {
		t.Fatalf("expected city_id validation error, got %v", err)
	}
	for _, call := range dir.calls {
		if strings.HasPrefix(call, "source_by") {
			t.Fatalf("source chain must not run for an unknown city, got %v", dir.calls)
		}
	}
}

func TestResolveExplicitCityNamesProvinceOnce(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	res, err := New(dir, zerolog.Nop()).Resolve(context.Background(), Reference{CityID: int64Ptr(35)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CityID == nil || *res.CityID != 35 || res.CityStrategy != StrategyExplicit || res.ProvinceName != "İzmir" {
		t.Fatalf("expected explicit İzmir, got %#v", res)
	}
	lookups := 0
	for _, call := range dir.calls {
		if call == "city_name" {
			lookups++
		}
	}
	if lookups != 1 {
		t.Fatalf("expected one city name lookup, got %v", dir.calls)
	}
}

func TestResolveFeedURLBeatsName(t *testing.T) {
	t.Parallel()

	res, err := New(newFakeDirectory(), zerolog.Nop()).Resolve(context.Background(), Reference{
		FeedURL:    "https://izmir.example/rss",
		SourceName: "Ege Postası",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SourceID == nil || *res.SourceID != "src-izm" || res.SourceStrategy != StrategyFeedURL {
		t.Fatalf("expected feed url match, got %#v", res)
	}
	if res.SourceName != "Ege Postası" {
		t.Fatalf("explicit source text must win for display, got %q", res.SourceName)
	}
}

func TestResolveNameAndCityUsesProvince(t *testing.T) {
	t.Parallel()

	res, err := New(newFakeDirectory(), zerolog.Nop()).Resolve(context.Background(), Reference{
		SourceName:   "Kent Haber",
		ProvinceName: "İzmir",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SourceID == nil || *res.SourceID != "src-izm" || res.SourceStrategy != StrategyNameCity {
		t.Fatalf("expected name+city match in İzmir, got %#v", res)
	}
	if res.CityID == nil || *res.CityID != 35 {
		t.Fatalf("expected city 35, got %v", res.CityID)
	}
	if res.ProvinceName != "İzmir" {
		t.Fatalf("explicit province text must be kept, got %q", res.ProvinceName)
	}
}

func TestResolveNameAndCityUsesExplicitCity(t *testing.T) {
	t.Parallel()

	res, err := New(newFakeDirectory(), zerolog.Nop()).Resolve(context.Background(), Reference{
		SourceName: "Kent Haber",
		CityID:     int64Ptr(6),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SourceID == nil || *res.SourceID != "src-ank" || res.CityStrategy != StrategyExplicit {
		t.Fatalf("expected Ankara source with explicit city, got %#v", res)
	}
	if res.ProvinceName != "Ankara" {
		t.Fatalf("expected province from city name, got %q", res.ProvinceName)
	}
}

func TestResolveNameOnlyAcceptsFirstMatch(t *testing.T) {
	t.Parallel()

	res, err := New(newFakeDirectory(), zerolog.Nop()).Resolve(context.Background(), Reference{SourceName: "Kent Haber"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SourceID == nil || *res.SourceID != "src-ank" || res.SourceStrategy != StrategyName {
		t.Fatalf("expected first name match, got %#v", res)
	}
	if res.CityID == nil || *res.CityID != 6 || res.CityStrategy != StrategySource {
		t.Fatalf("expected city of matched source, got %#v", res)
	}
}

func TestResolveNothingFound(t *testing.T) {
	t.Parallel()

	res, err := New(newFakeDirectory(), zerolog.Nop()).Resolve(context.Background(), Reference{
		SourceName:   "Yeni Gazete",
		ProvinceName: "Atlantis",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SourceID != nil || res.CityID != nil {
		t.Fatalf("expected unresolved ids, got %#v", res)
	}
	if res.SourceStrategy != StrategyNone || res.CityStrategy != StrategyNone {
		t.Fatalf("expected none strategies, got %#v", res)
	}
	if res.SourceName != "Yeni Gazete" || res.ProvinceName != "Atlantis" {
		t.Fatalf("unexpected display names: %#v", res)
	}
}

func TestResolvePlaceholderSourceName(t *testing.T) {
	t.Parallel()

	res, err := New(newFakeDirectory(), zerolog.Nop()).Resolve(context.Background(), Reference{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SourceName != news.UnknownSourceName || res.ProvinceName != "" {
		t.Fatalf("unexpected display names: %#v", res)
	}
}

func TestResolvePropagatesDirectoryErrors(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	dir.failOn = "source_by_feed"
	_, err := New(dir, zerolog.Nop()).Resolve(context.Background(), Reference{FeedURL: "https://x.example/rss"})
	if err == nil || errors.Is(err, news.ErrUnknownSource) {
		t.Fatalf("expected storage error, got %v", err)
	}
}
