package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/buketp/UrbanFeed/internal/globaltime"
	"github.com/buketp/UrbanFeed/internal/news"
)

// Directory is an in-memory city/source directory. Lookups return copies.
type Directory struct {
	mu      sync.RWMutex
	cities  []news.City
	sources []news.Source
}

func NewDirectory() *Directory {
	return &Directory{}
}

func (d *Directory) FindCityByName(ctx context.Context, name string) (*news.City, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(name))
	for _, city := range d.cities {
		if strings.ToLower(city.Name) == needle {
			c := city
			return &c, nil
		}
	}
	return nil, nil
}

func (d *Directory) GetCityNameByID(ctx context.Context, id int64) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, unavailable(err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, city := range d.cities {
		if city.ID == id {
			return city.Name, true, nil
		}
	}
	return "", false, nil
}

func (d *Directory) FindSourceByID(ctx context.Context, id string) (*news.Source, error) {
	return d.findSource(ctx, func(s news.Source) bool { return s.ID == id })
}

func (d *Directory) FindSourceByFeedURL(ctx context.Context, feedURL string) (*news.Source, error) {
	return d.findSource(ctx, func(s news.Source) bool { return s.FeedURL == feedURL })
}

func (d *Directory) FindSourceByNameAndCity(ctx context.Context, name string, cityID int64) (*news.Source, error) {
	return d.findSource(ctx, func(s news.Source) bool { return s.Name == name && s.CityID == cityID })
}

func (d *Directory) FindSourceByName(ctx context.Context, name string) (*news.Source, error) {
	return d.findSource(ctx, func(s news.Source) bool { return s.Name == name })
}

func (d *Directory) ListCities(ctx context.Context, activeOnly bool) ([]news.City, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]news.City, 0, len(d.cities))
	for _, city := range d.cities {
		if activeOnly && !city.IsActive {
			continue
		}
		out = append(out, city)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *Directory) ListSources(ctx context.Context, cityID *int64, active *bool) ([]news.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]news.Source, 0, len(d.sources))
	for _, source := range d.sources {
		if cityID != nil && source.CityID != *cityID {
			continue
		}
		if active != nil && source.IsActive != *active {
			continue
		}
		source.CityName = d.cityNameLocked(source.CityID)
		out = append(out, source)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CityName != out[j].CityName {
			return out[i].CityName < out[j].CityName
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// UpsertSource inserts a source or, when the feed URL is already known,
// updates its name and website and re-activates it.
func (d *Directory) UpsertSource(ctx context.Context, in news.Source) (news.Source, error) {
	if err := ctx.Err(); err != nil {
		return news.Source{}, unavailable(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cityNameLocked(in.CityID) == "" {
		return news.Source{}, news.NewValidationError("city_id", "city does not exist")
	}

	for i := range d.sources {
		if d.sources[i].FeedURL != in.FeedURL {
			continue
		}
		d.sources[i].Name = in.Name
		d.sources[i].WebsiteURL = in.WebsiteURL
		d.sources[i].IsActive = true
		out := d.sources[i]
		out.CityName = d.cityNameLocked(out.CityID)
		return out, nil
	}

	if strings.TrimSpace(in.ID) == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = globaltime.UTC()
	}
	in.CityName = ""
	d.sources = append(d.sources, in)
	in.CityName = d.cityNameLocked(in.CityID)
	return in, nil
}

// SeedCities loads cities when the directory is empty and reports how many were added.
func (d *Directory) SeedCities(ctx context.Context, cities []news.City) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.cities) > 0 {
		return 0, nil
	}
	for i, city := range cities {
		if city.ID == 0 {
			city.ID = int64(i + 1)
		}
		if city.CreatedAt.IsZero() {
			city.CreatedAt = globaltime.UTC()
		}
		d.cities = append(d.cities, city)
	}
	return len(cities), nil
}

func (d *Directory) findSource(ctx context.Context, match func(news.Source) bool) (*news.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, source := range d.sources {
		if match(source) {
			s := source
			return &s, nil
		}
	}
	return nil, nil
}

func (d *Directory) cityNameLocked(id int64) string {
	for _, city := range d.cities {
		if city.ID == id {
			return city.Name
		}
	}
	return ""
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", news.ErrStorageUnavailable, err)
}
