package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/buketp/UrbanFeed/internal/fingerprint"
	"github.com/buketp/UrbanFeed/internal/langdetect"
	"github.com/buketp/UrbanFeed/internal/metrics"
	"github.com/buketp/UrbanFeed/internal/news"
	"github.com/buketp/UrbanFeed/internal/resolve"
	payloadschema "github.com/buketp/UrbanFeed/schema"
)

// RecordStore is the storage primitive set the service depends on.
// UpsertByFingerprint must insert or merge atomically.
type RecordStore interface {
	FindByFingerprint(ctx context.Context, fp string) (news.Record, error)
	UpsertByFingerprint(ctx context.Context, fp string, candidate news.Record) (news.Record, bool, error)
	QueryRecords(ctx context.Context, spec news.FilterSpec) ([]news.Record, int64, error)
	CountRecords(ctx context.Context) (int64, error)
	LastRecord(ctx context.Context) (news.Record, error)
	Clear(ctx context.Context) (int64, error)
}

type Service struct {
	store    RecordStore
	resolver *resolve.Resolver
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	detect   func(text string) string
}

// Result is the outcome of one submission.
type Result struct {
	Record     news.Record        `json:"record"`
	Created    bool               `json:"created"`
	Resolution resolve.Resolution `json:"resolution"`
}

// Page is one window of a listing.
type Page struct {
	Items  []news.Record `json:"items"`
	Total  int64         `json:"total"`
	AIOnly bool          `json:"aiOnly"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
	Order  news.Order    `json:"order"`
}

func NewService(store RecordStore, resolver *resolve.Resolver, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		metrics:  m,
		logger:   logger,
		detect:   langdetect.DetectISO6391,
	}
}

// Submit validates a raw payload and stores it.
func (s *Service) Submit(ctx context.Context, payload json.RawMessage) (Result, error) {
	sub, err := payloadschema.ValidateSubmission(payload)
	if err != nil {
		s.metrics.Submission(metrics.OutcomeInvalid)
		return Result{}, err
	}
	return s.SubmitSubmission(ctx, sub)
}

// SubmitSubmission canonicalizes, resolves and upserts an already validated submission.
func (s *Service) SubmitSubmission(ctx context.Context, sub news.Submission) (Result, error) {
	if s == nil || s.store == nil || s.resolver == nil {
		return Result{}, fmt.Errorf("ingest service is not initialized")
	}
	if !sub.Category.Valid() {
		s.metrics.Submission(metrics.OutcomeInvalid)
		return Result{}, news.NewValidationError("category", "must be one of şikayet, soru, öneri, istek")
	}

	canonical, fp := fingerprint.FromURL(sub.URL)

	ref := resolve.Reference{
		SourceName:   sub.SourceName,
		FeedURL:      sub.FeedURL,
		CityID:       sub.CityID,
		ProvinceName: sub.ProvinceName,
	}
	if sub.SourceID != nil {
		ref.SourceID = *sub.SourceID
	}
	res, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, news.ErrUnknownSource) {
			s.metrics.Submission(metrics.OutcomeUnknownSource)
		} else if _, ok := news.IsValidation(err); ok {
			s.metrics.Submission(metrics.OutcomeInvalid)
		} else {
			s.metrics.Submission(metrics.OutcomeError)
		}
		return Result{}, fmt.Errorf("resolve references: %w", err)
	}
	s.metrics.Resolution("source", string(res.SourceStrategy))
	s.metrics.Resolution("city", string(res.CityStrategy))

	candidate := news.Record{
		Fingerprint:   fp,
		SourceName:    res.SourceName,
		ProvinceName:  res.ProvinceName,
		Title:         strings.TrimSpace(sub.Title),
		CanonicalURL:  canonical,
		Category:      sub.Category,
		Tags:          sub.Tags,
		Summary:       sub.Summary,
		PublishedAt:   sub.PublishedAt,
		GeneratedText: sub.GeneratedText,
		CityID:        res.CityID,
		SourceID:      res.SourceID,
		Language:      s.language(sub),
	}

	start := time.Now()
	rec, created, err := s.store.UpsertByFingerprint(ctx, fp, candidate)
	s.metrics.ObserveStore("upsert", start)
	if err != nil {
		s.metrics.Submission(metrics.OutcomeError)
		event := s.logger.Warn()
		if errors.Is(err, news.ErrStorageConflict) {
			event = s.logger.Error()
		}
		event.Err(err).Str("fingerprint", fp).Msg("news upsert failed")
		return Result{}, fmt.Errorf("upsert news %s: %w", fp, err)
	}

	outcome := metrics.OutcomeUpdated
	if created {
		outcome = metrics.OutcomeCreated
	}
	s.metrics.Submission(outcome)
	s.logger.Info().
		Str("fingerprint", fp).
		Str("id", rec.ID).
		Bool("created", created).
		Str("source_strategy", string(res.SourceStrategy)).
		Str("city_strategy", string(res.CityStrategy)).
		Msg("news stored")

	return Result{Record: rec, Created: created, Resolution: res}, nil
}

// List builds a filter from raw query values and returns one page.
func (s *Service) List(ctx context.Context, params news.ListParams) (Page, error) {
	spec, err := news.BuildFilter(params)
	if err != nil {
		return Page{}, err
	}
	return s.ListSpec(ctx, spec)
}

func (s *Service) ListSpec(ctx context.Context, spec news.FilterSpec) (Page, error) {
	start := time.Now()
	items, total, err := s.store.QueryRecords(ctx, spec)
	s.metrics.ObserveStore("query", start)
	if err != nil {
		return Page{}, fmt.Errorf("query news: %w", err)
	}
	if items == nil {
		items = []news.Record{}
	}
	return Page{
		Items:  items,
		Total:  total,
		AIOnly: spec.AIOnly,
		Limit:  spec.Limit,
		Offset: spec.Offset,
		Order:  spec.Order,
	}, nil
}

// Lookup finds the record a URL would be stored under.
func (s *Service) Lookup(ctx context.Context, rawURL string) (news.Record, error) {
	if strings.TrimSpace(rawURL) == "" {
		return news.Record{}, news.NewValidationError("url", "is required")
	}
	_, fp := fingerprint.FromURL(rawURL)
	return s.Get(ctx, fp)
}

// Get returns the record stored under fp.
func (s *Service) Get(ctx context.Context, fp string) (news.Record, error) {
	fp = strings.ToLower(strings.TrimSpace(fp))
	if !fingerprint.Valid(fp) {
		return news.Record{}, news.NewValidationError("fingerprint", "must be 32 hex characters")
	}
	rec, err := s.store.FindByFingerprint(ctx, fp)
	if err != nil {
		return news.Record{}, fmt.Errorf("find news %s: %w", fp, err)
	}
	return rec, nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.store.CountRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("count news: %w", err)
	}
	return n, nil
}

// Last returns the newest record, or nil when the store is empty.
func (s *Service) Last(ctx context.Context) (*news.Record, error) {
	rec, err := s.store.LastRecord(ctx)
	if errors.Is(err, news.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last news: %w", err)
	}
	return &rec, nil
}

func (s *Service) Clear(ctx context.Context) (int64, error) {
	n, err := s.store.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear news: %w", err)
	}
	s.logger.Warn().Int64("deleted", n).Msg("news store cleared")
	return n, nil
}

func (s *Service) language(sub news.Submission) *string {
	if code := strings.TrimSpace(sub.Language); code != "" {
		return &code
	}
	if s.detect == nil {
		return nil
	}
	text := sub.Title
	if sub.Summary != nil {
		text += "\n" + *sub.Summary
	}
	if code := s.detect(text); code != "" {
		return &code
	}
	return nil
}
