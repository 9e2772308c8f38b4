package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm/clause"

	"github.com/buketp/UrbanFeed/internal/globaltime"
	"github.com/buketp/UrbanFeed/internal/news"
)

// DirectoryStore reads and maintains the city/source directory.
type DirectoryStore struct {
	pool *Pool
}

func NewDirectoryStore(pool *Pool) *DirectoryStore {
	return &DirectoryStore{pool: pool}
}

const sourceColumns = `
	s.id,
	s.city_id,
	s.name,
	s.rss_url,
	s.website_url,
	s.is_active,
	s.created_at,
	COALESCE(c.name, '')`

func (d *DirectoryStore) FindCityByName(ctx context.Context, name string) (*news.City, error) {
	const q = `
SELECT id, name, code, is_active, created_at
FROM cities
WHERE lower(name) = lower($1)
ORDER BY id
LIMIT 1
`
	var c City
	if err := d.pool.QueryRow(ctx, q, strings.TrimSpace(name)).Scan(&c.ID, &c.Name, &c.Code, &c.IsActive, &c.CreatedAt); err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find city by name: %w", classifyError(err))
	}
	city := toNewsCity(c)
	return &city, nil
}

func (d *DirectoryStore) GetCityNameByID(ctx context.Context, id int64) (string, bool, error) {
	var name string
	if err := d.pool.QueryRow(ctx, `SELECT name FROM cities WHERE id = $1`, id).Scan(&name); err != nil {
		if IsNoRows(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get city name: %w", classifyError(err))
	}
	return name, true, nil
}

func (d *DirectoryStore) FindSourceByID(ctx context.Context, id string) (*news.Source, error) {
	return d.findSource(ctx, "id", `s.id = $1`, id)
}

func (d *DirectoryStore) FindSourceByFeedURL(ctx context.Context, feedURL string) (*news.Source, error) {
	return d.findSource(ctx, "feed url", `s.rss_url = $1`, feedURL)
}

func (d *DirectoryStore) FindSourceByNameAndCity(ctx context.Context, name string, cityID int64) (*news.Source, error) {
	return d.findSource(ctx, "name and city", `s.name = $1 AND s.city_id = $2`, name, cityID)
}

// FindSourceByName accepts the oldest source when the name is ambiguous.
func (d *DirectoryStore) FindSourceByName(ctx context.Context, name string) (*news.Source, error) {
	return d.findSource(ctx, "name", `s.name = $1`, name)
}

func (d *DirectoryStore) findSource(ctx context.Context, label, predicate string, args ...any) (*news.Source, error) {
	q := `SELECT ` + sourceColumns + `
FROM sources s
LEFT JOIN cities c ON c.id = s.city_id
WHERE ` + predicate + `
ORDER BY s.created_at, s.id
LIMIT 1`

	source, err := scanSource(d.pool.QueryRow(ctx, q, args...))
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find source by %s: %w", label, classifyError(err))
	}
	return &source, nil
}

func (d *DirectoryStore) ListCities(ctx context.Context, activeOnly bool) ([]news.City, error) {
	const q = `
SELECT id, name, code, is_active, created_at
FROM cities
WHERE (NOT $1::boolean OR is_active)
ORDER BY name ASC
`
	rows, err := d.pool.Query(ctx, q, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list cities: %w", classifyError(err))
	}
	defer rows.Close()

	cities := make([]City, 0, 81)
	for rows.Next() {
		var c City
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cities: %w", classifyError(err))
	}

	return lo.Map(cities, func(c City, _ int) news.City { return toNewsCity(c) }), nil
}

func (d *DirectoryStore) ListSources(ctx context.Context, cityID *int64, active *bool) ([]news.Source, error) {
	q := `SELECT ` + sourceColumns + `
FROM sources s
LEFT JOIN cities c ON c.id = s.city_id
WHERE ($1::bigint IS NULL OR s.city_id = $1)
  AND ($2::boolean IS NULL OR s.is_active = $2)
ORDER BY c.name ASC, s.name ASC`

	rows, err := d.pool.Query(ctx, q, cityID, active)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", classifyError(err))
	}
	defer rows.Close()

	sources := make([]news.Source, 0, 32)
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", classifyError(err))
	}
	return sources, nil
}

// UpsertSource registers a source keyed by feed URL. A known feed URL gets its
// name and website refreshed and is re-activated.
func (d *DirectoryStore) UpsertSource(ctx context.Context, in news.Source) (news.Source, error) {
	_, ok, err := d.GetCityNameByID(ctx, in.CityID)
	if err != nil {
		return news.Source{}, err
	}
	if !ok {
		return news.Source{}, news.NewValidationError("city_id", "city does not exist")
	}

	const q = `
INSERT INTO sources AS s (id, city_id, name, rss_url, website_url, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (rss_url) DO UPDATE SET
	name = EXCLUDED.name,
	website_url = EXCLUDED.website_url,
	is_active = true
RETURNING s.id, s.city_id, s.name, s.rss_url, s.website_url, s.is_active, s.created_at,
	COALESCE((SELECT c.name FROM cities c WHERE c.id = s.city_id), '')
`
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}

	out, err := scanSource(d.pool.QueryRow(
		ctx,
		q,
		id,
		in.CityID,
		strings.TrimSpace(in.Name),
		strings.TrimSpace(in.FeedURL),
		in.WebsiteURL,
		in.IsActive,
		globaltime.UTC().Truncate(time.Microsecond),
	))
	if err != nil {
		return news.Source{}, fmt.Errorf("upsert source: %w", classifyError(err))
	}
	return out, nil
}

// SeedCities inserts cities only when the table is empty and returns how many
// rows were added.
func (d *DirectoryStore) SeedCities(ctx context.Context, cities []news.City) (int, error) {
	var existing int64
	if err := d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cities`).Scan(&existing); err != nil {
		return 0, fmt.Errorf("count cities: %w", classifyError(err))
	}
	if existing > 0 || len(cities) == 0 {
		return 0, nil
	}

	rows := lo.Map(cities, func(c news.City, _ int) City {
		return City{Name: c.Name, Code: c.Code, IsActive: true}
	})
	res := d.pool.GORM().WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, 100)
	if res.Error != nil {
		return 0, fmt.Errorf("seed cities: %w", classifyError(res.Error))
	}
	return int(res.RowsAffected), nil
}

func scanSource(row rowScanner) (news.Source, error) {
	var (
		s        Source
		cityName string
	)
	if err := row.Scan(&s.ID, &s.CityID, &s.Name, &s.RSSURL, &s.WebsiteURL, &s.IsActive, &s.CreatedAt, &cityName); err != nil {
		return news.Source{}, err
	}
	out := toNewsSource(s)
	out.CityName = cityName
	return out, nil
}

func toNewsCity(c City) news.City {
	return news.City{
		ID:        c.ID,
		Name:      c.Name,
		Code:      c.Code,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt.UTC(),
	}
}

func toNewsSource(s Source) news.Source {
	return news.Source{
		ID:         s.ID,
		CityID:     s.CityID,
		Name:       s.Name,
		FeedURL:    s.RSSURL,
		WebsiteURL: s.WebsiteURL,
		IsActive:   s.IsActive,
		CreatedAt:  s.CreatedAt.UTC(),
	}
}
