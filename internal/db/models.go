package db

import (
	"time"

	"github.com/lib/pq"
)

// City maps cities.
type City struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;type:text;not null;uniqueIndex:cities_name_key"`
	Code      *int16    `gorm:"column:code;type:smallint;uniqueIndex:cities_code_key"`
	IsActive  bool      `gorm:"column:is_active;type:boolean;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (City) TableName() string { return "cities" }

// Source maps sources.
type Source struct {
	ID         string    `gorm:"column:id;type:text;primaryKey"`
	CityID     int64     `gorm:"column:city_id;type:integer;not null;index:sources_city_id_idx"`
	Name       string    `gorm:"column:name;type:text;not null"`
	RSSURL     string    `gorm:"column:rss_url;type:text;not null;uniqueIndex:sources_rss_url_key"`
	WebsiteURL *string   `gorm:"column:website_url;type:text"`
	IsActive   bool      `gorm:"column:is_active;type:boolean;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Source) TableName() string { return "sources" }

// NewsItem maps news. Seq is the insertion order used to break listing ties.
type NewsItem struct {
	Seq         int64          `gorm:"column:seq;primaryKey;autoIncrement"`
	ID          string         `gorm:"column:id;type:text;not null;uniqueIndex:news_id_key"`
	Fingerprint string         `gorm:"column:fingerprint;type:text;not null;uniqueIndex:news_fingerprint_key"`
	Source      string         `gorm:"column:source;type:text;not null"`
	Province    *string        `gorm:"column:province;type:text"`
	Title       string         `gorm:"column:title;type:text;not null"`
	URL         string         `gorm:"column:url;type:text;not null"`
	Category    string         `gorm:"column:category;type:text;not null"`
	Tags        pq.StringArray `gorm:"column:tags;type:text[];not null;default:'{}'"`
	Summary     *string        `gorm:"column:summary;type:text"`
	PublishedAt *time.Time     `gorm:"column:published_at;type:timestamptz"`
	TweetText   *string        `gorm:"column:tweet_text;type:text"`
	Language    *string        `gorm:"column:language;type:text"`
	CityID      *int64         `gorm:"column:city_id;type:integer;index:news_city_id_idx"`
	SourceID    *string        `gorm:"column:source_id;type:text;index:news_source_id_idx"`
	CreatedAt   time.Time      `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (NewsItem) TableName() string { return "news" }

func autoMigrateModels() []any {
	return []any{
		&City{},
		&Source{},
		&NewsItem{},
	}
}
