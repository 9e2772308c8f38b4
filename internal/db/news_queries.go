package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/buketp/UrbanFeed/internal/globaltime"
	"github.com/buketp/UrbanFeed/internal/news"
)

// NewsStore persists news records in Postgres.
type NewsStore struct {
	pool *Pool
}

func NewNewsStore(pool *Pool) *NewsStore {
	return &NewsStore{pool: pool}
}

const newsColumns = `
	n.seq,
	n.id,
	n.fingerprint,
	n.source,
	n.province,
	n.title,
	n.url,
	n.category,
	n.tags,
	n.summary,
	n.published_at,
	n.tweet_text,
	n.language,
	n.city_id,
	n.source_id,
	n.created_at`

// upsertNewsQuery inserts a record or merges it into the row holding the same
// fingerprint in a single statement. Field rules mirror news.Merge.
const upsertNewsQuery = `
INSERT INTO news AS n (
	id, fingerprint, source, province, title, url, category, tags, summary,
	published_at, tweet_text, language, city_id, source_id, created_at, updated_at
) VALUES (
	$1, $2, $3, NULLIF(btrim($4), ''), $5, $6, $7, $8::text[], $9,
	$10, $11, $12, $13, $14, $15, $15
)
ON CONFLICT (fingerprint) DO UPDATE SET
	source = CASE
		WHEN btrim(EXCLUDED.source) = '' THEN n.source
		WHEN EXCLUDED.source = $16 AND btrim(n.source) <> '' THEN n.source
		ELSE EXCLUDED.source
	END,
	province = COALESCE(EXCLUDED.province, n.province),
	title = COALESCE(NULLIF(btrim(EXCLUDED.title), ''), n.title),
	url = COALESCE(NULLIF(btrim(EXCLUDED.url), ''), n.url),
	category = COALESCE(NULLIF(btrim(EXCLUDED.category), ''), n.category),
	tags = CASE
		WHEN cardinality(EXCLUDED.tags) = 0 THEN n.tags
		ELSE (
			SELECT COALESCE(array_agg(u.tag ORDER BY u.first_pos), '{}')
			FROM (
				SELECT t.tag, MIN(t.pos) AS first_pos
				FROM unnest(n.tags || EXCLUDED.tags) WITH ORDINALITY AS t(tag, pos)
				WHERE btrim(t.tag) <> ''
				GROUP BY t.tag
			) u
		)
	END,
	summary = CASE WHEN btrim(COALESCE(EXCLUDED.summary, '')) = '' THEN n.summary ELSE EXCLUDED.summary END,
	published_at = COALESCE(EXCLUDED.published_at, n.published_at),
	tweet_text = CASE WHEN btrim(COALESCE(EXCLUDED.tweet_text, '')) = '' THEN n.tweet_text ELSE EXCLUDED.tweet_text END,
	language = CASE WHEN btrim(COALESCE(EXCLUDED.language, '')) = '' THEN n.language ELSE EXCLUDED.language END,
	city_id = COALESCE(EXCLUDED.city_id, n.city_id),
	source_id = COALESCE(NULLIF(btrim(EXCLUDED.source_id), ''), n.source_id),
	updated_at = EXCLUDED.updated_at
RETURNING ` + newsColumns + `,
	(n.xmax = 0) AS inserted
`

// UpsertByFingerprint atomically inserts candidate or merges it into the
// existing record with the same fingerprint.
func (s *NewsStore) UpsertByFingerprint(ctx context.Context, fp string, candidate news.Record) (news.Record, bool, error) {
	if s == nil || s.pool == nil {
		return news.Record{}, false, fmt.Errorf("news store is not initialized")
	}

	candidate.Fingerprint = fp
	now := globaltime.UTC().Truncate(time.Microsecond)
	row := news.Merge(nil, candidate, now)

	tags := row.Tags
	if tags == nil {
		tags = []string{}
	}

	scanned, inserted, err := scanNewsRowWithFlag(s.pool.QueryRow(
		ctx,
		upsertNewsQuery,
		row.ID,
		row.Fingerprint,
		row.SourceName,
		row.ProvinceName,
		row.Title,
		row.CanonicalURL,
		string(row.Category),
		pq.StringArray(tags),
		row.Summary,
		row.PublishedAt,
		row.GeneratedText,
		row.Language,
		row.CityID,
		row.SourceID,
		row.CreatedAt,
		news.UnknownSourceName,
	))
	if err != nil {
		return news.Record{}, false, fmt.Errorf("upsert news %s: %w", fp, classifyError(err))
	}
	return scanned, inserted, nil
}

func (s *NewsStore) FindByFingerprint(ctx context.Context, fp string) (news.Record, error) {
	q := `SELECT ` + newsColumns + ` FROM news n WHERE n.fingerprint = $1`

	rec, err := scanNewsRow(s.pool.QueryRow(ctx, q, fp))
	if err != nil {
		if IsNoRows(err) {
			return news.Record{}, news.ErrNotFound
		}
		return news.Record{}, fmt.Errorf("find news by fingerprint: %w", classifyError(err))
	}
	return rec, nil
}

const newsFilterWhere = `
WHERE ($1 = '' OR n.source = $1)
  AND ($2 = '' OR lower(n.province) = lower($2))
  AND ($3 = '' OR n.category = $3)
  AND ($4::bigint IS NULL OR n.city_id = $4)
  AND ($5 = '' OR n.source_id = $5)
  AND (NOT $6::boolean OR (n.tweet_text IS NOT NULL AND length(btrim(n.tweet_text)) > 0))
  AND ($7 = '' OR n.title ILIKE $7 OR n.summary ILIKE $7 OR n.tweet_text ILIKE $7
       OR EXISTS (SELECT 1 FROM unnest(n.tags) AS t(tag) WHERE t.tag ILIKE $7))
`

var newsOrderClauses = map[news.Order]string{
	news.OrderAsc:  `ORDER BY COALESCE(n.published_at, n.created_at) ASC, n.seq ASC`,
	news.OrderDesc: `ORDER BY COALESCE(n.published_at, n.created_at) DESC, n.seq DESC`,
}

// QueryRecords returns one page of matching records and the total match count.
// Every filter value is bound; only the order clause is chosen from a fixed set.
func (s *NewsStore) QueryRecords(ctx context.Context, spec news.FilterSpec) ([]news.Record, int64, error) {
	orderClause, ok := newsOrderClauses[spec.Order]
	if !ok {
		orderClause = newsOrderClauses[news.OrderDesc]
	}
	limit := spec.Limit
	if limit <= 0 {
		limit = news.DefaultLimit
	}

	search := ""
	if spec.Q != "" {
		search = "%" + escapeLike(spec.Q) + "%"
	}
	args := []any{spec.Source, spec.Province, spec.Category, spec.CityID, spec.SourceID, spec.AIOnly, search}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM news n`+newsFilterWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count news: %w", classifyError(err))
	}

	rowsQuery := `SELECT ` + newsColumns + ` FROM news n` + newsFilterWhere + orderClause + ` LIMIT $8 OFFSET $9`
	rows, err := s.pool.Query(ctx, rowsQuery, append(args, limit, spec.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query news: %w", classifyError(err))
	}
	defer rows.Close()

	items := make([]news.Record, 0, limit)
	for rows.Next() {
		rec, err := scanNewsRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan news row: %w", classifyError(err))
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate news rows: %w", classifyError(err))
	}
	return items, total, nil
}

func (s *NewsStore) CountRecords(ctx context.Context) (int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM news`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count news: %w", classifyError(err))
	}
	return total, nil
}

func (s *NewsStore) LastRecord(ctx context.Context) (news.Record, error) {
	q := `SELECT ` + newsColumns + ` FROM news n ORDER BY n.created_at DESC, n.seq DESC LIMIT 1`

	rec, err := scanNewsRow(s.pool.QueryRow(ctx, q))
	if err != nil {
		if IsNoRows(err) {
			return news.Record{}, news.ErrNotFound
		}
		return news.Record{}, fmt.Errorf("query last news: %w", classifyError(err))
	}
	return rec, nil
}

// Clear removes every news record and returns how many were removed.
func (s *NewsStore) Clear(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.WithTx(ctx, func(tx Querier) error {
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM news`).Scan(&count); err != nil {
			return fmt.Errorf("count news: %w", err)
		}
		if _, err := tx.Exec(ctx, `TRUNCATE TABLE news RESTART IDENTITY`); err != nil {
			return fmt.Errorf("truncate news: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clear news: %w", classifyError(err))
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNewsRow(row rowScanner) (news.Record, error) {
	rec, _, err := scanNews(row, false)
	return rec, err
}

func scanNewsRowWithFlag(row rowScanner) (news.Record, bool, error) {
	return scanNews(row, true)
}

func scanNews(row rowScanner, withFlag bool) (news.Record, bool, error) {
	var (
		rec      news.Record
		province *string
		category string
		tags     pq.StringArray
		inserted bool
	)

	dest := []any{
		&rec.Seq,
		&rec.ID,
		&rec.Fingerprint,
		&rec.SourceName,
		&province,
		&rec.Title,
		&rec.CanonicalURL,
		&category,
		&tags,
		&rec.Summary,
		&rec.PublishedAt,
		&rec.GeneratedText,
		&rec.Language,
		&rec.CityID,
		&rec.SourceID,
		&rec.CreatedAt,
	}
	if withFlag {
		dest = append(dest, &inserted)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, ErrNoRows) {
			return news.Record{}, false, ErrNoRows
		}
		return news.Record{}, false, err
	}

	if province != nil {
		rec.ProvinceName = *province
	}
	rec.Category = news.Category(category)
	rec.Tags = []string(tags)
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if rec.PublishedAt != nil {
		utc := rec.PublishedAt.UTC()
		rec.PublishedAt = &utc
	}
	return rec, inserted, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
