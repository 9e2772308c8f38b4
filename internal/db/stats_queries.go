package db

import (
	"context"
	"fmt"
	"time"
)

// CategoryCount is the number of records in one category.
type CategoryCount struct {
	Category string `json:"category"`
	Records  int64  `json:"records"`
}

// CityCount is the number of records linked to one city.
type CityCount struct {
	CityID  *int64 `json:"city_id,omitempty"`
	City    string `json:"city"`
	Records int64  `json:"records"`
}

// NewsTotals stores headline counters.
type NewsTotals struct {
	Records       int64 `json:"records"`
	WithTweetText int64 `json:"with_tweet_text"`
	WithoutCity   int64 `json:"without_city"`
	WithoutSource int64 `json:"without_source"`
	IngestedToday int64 `json:"ingested_today"`
	UpdatedToday  int64 `json:"updated_today"`
	ActiveSources int64 `json:"active_sources"`
	ActiveCities  int64 `json:"active_cities"`
}

// NewsStats is the read model returned by the stats command.
type NewsStats struct {
	Day        string          `json:"day"`
	Totals     NewsTotals      `json:"totals"`
	Categories []CategoryCount `json:"categories"`
	TopCities  []CityCount     `json:"top_cities"`
}

// QueryNewsStats returns totals, per-category counts and the busiest cities.
func (p *Pool) QueryNewsStats(ctx context.Context, dayStart, dayEnd time.Time, topCities int) (*NewsStats, error) {
	startUTC := dayStart.UTC()
	endUTC := dayEnd.UTC()
	if !startUTC.Before(endUTC) {
		return nil, fmt.Errorf("dayStart must be before dayEnd")
	}
	if topCities <= 0 {
		topCities = 10
	}

	stats := &NewsStats{
		Day:        startUTC.Format("2006-01-02"),
		Categories: make([]CategoryCount, 0, 4),
		TopCities:  make([]CityCount, 0, topCities),
	}

	const totalsQuery = `
SELECT
	COUNT(*)::BIGINT,
	COUNT(*) FILTER (WHERE n.tweet_text IS NOT NULL AND length(btrim(n.tweet_text)) > 0)::BIGINT,
	COUNT(*) FILTER (WHERE n.city_id IS NULL)::BIGINT,
	COUNT(*) FILTER (WHERE n.source_id IS NULL)::BIGINT,
	COUNT(*) FILTER (WHERE n.created_at >= $1 AND n.created_at < $2)::BIGINT,
	COUNT(*) FILTER (WHERE n.updated_at >= $1 AND n.updated_at < $2 AND n.updated_at <> n.created_at)::BIGINT,
	(SELECT COUNT(*) FROM sources s WHERE s.is_active)::BIGINT,
	(SELECT COUNT(*) FROM cities c WHERE c.is_active)::BIGINT
FROM news n
`
	t := &stats.Totals
	if err := p.QueryRow(ctx, totalsQuery, startUTC, endUTC).Scan(
		&t.Records,
		&t.WithTweetText,
		&t.WithoutCity,
		&t.WithoutSource,
		&t.IngestedToday,
		&t.UpdatedToday,
		&t.ActiveSources,
		&t.ActiveCities,
	); err != nil {
		return nil, fmt.Errorf("query news totals: %w", classifyError(err))
	}

	const categoryQuery = `
SELECT n.category, COUNT(*)::BIGINT
FROM news n
GROUP BY n.category
ORDER BY COUNT(*) DESC, n.category ASC
`
	rows, err := p.Query(ctx, categoryQuery)
	if err != nil {
		return nil, fmt.Errorf("query category counts: %w", classifyError(err))
	}
	for rows.Next() {
		var row CategoryCount
		if err := rows.Scan(&row.Category, &row.Records); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		stats.Categories = append(stats.Categories, row)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate category counts: %w", classifyError(err))
	}
	rows.Close()

	const cityQuery = `
SELECT n.city_id, COALESCE(c.name, NULLIF(n.province, ''), '(none)'), COUNT(*)::BIGINT
FROM news n
LEFT JOIN cities c ON c.id = n.city_id
GROUP BY n.city_id, COALESCE(c.name, NULLIF(n.province, ''), '(none)')
ORDER BY COUNT(*) DESC, 2 ASC
LIMIT $1
`
	cityRows, err := p.Query(ctx, cityQuery, topCities)
	if err != nil {
		return nil, fmt.Errorf("query city counts: %w", classifyError(err))
	}
	defer cityRows.Close()

	for cityRows.Next() {
		var row CityCount
		if err := cityRows.Scan(&row.CityID, &row.City, &row.Records); err != nil {
			return nil, fmt.Errorf("scan city count: %w", err)
		}
		stats.TopCities = append(stats.TopCities, row)
	}
	if err := cityRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate city counts: %w", classifyError(err))
	}

	return stats, nil
}
