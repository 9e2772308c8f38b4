package news

import (
	"strings"
	"time"
)

// Category is the closed set of item kinds collectors may submit.
type Category string

const (
	CategoryComplaint  Category = "şikayet"
	CategoryQuestion   Category = "soru"
	CategorySuggestion Category = "öneri"
	CategoryRequest    Category = "istek"
)

// UnknownSourceName is the display name used when no source could be named or resolved.
const UnknownSourceName = "Bilinmeyen Kaynak"

const MaxTags = 5

var categories = []Category{CategoryComplaint, CategoryQuestion, CategorySuggestion, CategoryRequest}

func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// Submission is a validated ingest payload before canonicalization and resolution.
type Submission struct {
	SourceName    string
	ProvinceName  string
	Title         string
	URL           string
	Category      Category
	Tags          []string
	Summary       *string
	PublishedAt   *time.Time
	GeneratedText *string
	CityID        *int64
	SourceID      *string
	FeedURL       string
	Language      string
}

// Record is one stored news item, unique per fingerprint.
type Record struct {
	ID            string     `json:"id"`
	Seq           int64      `json:"-"`
	Fingerprint   string     `json:"fingerprint"`
	SourceName    string     `json:"source"`
	ProvinceName  string     `json:"province,omitempty"`
	Title         string     `json:"title"`
	CanonicalURL  string     `json:"url"`
	Category      Category   `json:"category"`
	Tags          []string   `json:"tags"`
	Summary       *string    `json:"summary,omitempty"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	GeneratedText *string    `json:"tweetText,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	CityID        *int64     `json:"cityId,omitempty"`
	SourceID      *string    `json:"sourceId,omitempty"`
	Language      *string    `json:"language,omitempty"`
}

// EffectiveTime is the timestamp listings sort on.
func (r Record) EffectiveTime() time.Time {
	if r.PublishedAt != nil && !r.PublishedAt.IsZero() {
		return *r.PublishedAt
	}
	return r.CreatedAt
}

// HasGeneratedText reports whether the record carries non-blank generated text.
func (r Record) HasGeneratedText() bool {
	return r.GeneratedText != nil && strings.TrimSpace(*r.GeneratedText) != ""
}

type City struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      *int16    `json:"code,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type Source struct {
	ID         string    `json:"id"`
	CityID     int64     `json:"cityId"`
	Name       string    `json:"name"`
	FeedURL    string    `json:"rssUrl"`
	WebsiteURL *string   `json:"websiteUrl,omitempty"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	CityName   string    `json:"cityName,omitempty"`
}
