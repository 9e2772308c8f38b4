package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/buketp/UrbanFeed/internal/globaltime"
	"github.com/buketp/UrbanFeed/internal/news"
)

// Store is an in-memory record store. Upserts run under one mutex, so the
// insert-or-merge for a fingerprint is atomic.
type Store struct {
	mu      sync.RWMutex
	records map[string]news.Record
	nextSeq int64
}

func NewStore() *Store {
	return &Store{records: make(map[string]news.Record)}
}

func (s *Store) FindByFingerprint(ctx context.Context, fp string) (news.Record, error) {
	if err := ctx.Err(); err != nil {
		return news.Record{}, unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[fp]
	if !ok {
		return news.Record{}, news.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *Store) UpsertByFingerprint(ctx context.Context, fp string, candidate news.Record) (news.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return news.Record{}, false, unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate.Fingerprint = fp
	existing, found := s.records[fp]
	if !found {
		merged := news.Merge(nil, candidate, globaltime.UTC())
		s.nextSeq++
		merged.Seq = s.nextSeq
		s.records[fp] = merged
		return cloneRecord(merged), true, nil
	}

	merged := news.Merge(&existing, candidate, globaltime.UTC())
	s.records[fp] = merged
	return cloneRecord(merged), false, nil
}

func (s *Store) QueryRecords(ctx context.Context, spec news.FilterSpec) ([]news.Record, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, unavailable(err)
	}
	s.mu.RLock()
	matched := make([]news.Record, 0, len(s.records))
	for _, rec := range s.records {
		if spec.Match(rec) {
			matched = append(matched, cloneRecord(rec))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return spec.Less(matched[i], matched[j]) })

	total := int64(len(matched))
	if spec.Offset >= len(matched) {
		return []news.Record{}, total, nil
	}
	end := len(matched)
	if spec.Limit > 0 && spec.Offset+spec.Limit < end {
		end = spec.Offset + spec.Limit
	}
	return matched[spec.Offset:end], total, nil
}

func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

func (s *Store) LastRecord(ctx context.Context) (news.Record, error) {
	if err := ctx.Err(); err != nil {
		return news.Record{}, unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		last  news.Record
		found bool
	)
	for _, rec := range s.records {
		if !found || rec.CreatedAt.After(last.CreatedAt) || (rec.CreatedAt.Equal(last.CreatedAt) && rec.Seq > last.Seq) {
			last = rec
			found = true
		}
	}
	if !found {
		return news.Record{}, news.ErrNotFound
	}
	return cloneRecord(last), nil
}

func (s *Store) Clear(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.records))
	s.records = make(map[string]news.Record)
	return n, nil
}

func cloneRecord(rec news.Record) news.Record {
	if rec.Tags != nil {
		rec.Tags = append([]string(nil), rec.Tags...)
	}
	return rec
}
