package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/buketp/UrbanFeed/internal/news"
)

func candidate(fp string, tags ...string) news.Record {
	return news.Record{
		Fingerprint:  fp,
		SourceName:   "Kent Haber",
		Title:        "Başlık " + fp,
		CanonicalURL: "https://example.com/" + fp,
		Category:     news.CategoryComplaint,
		Tags:         tags,
	}
}

func TestUpsertCreatesThenMerges(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	first, created, err := store.UpsertByFingerprint(ctx, "fp1", candidate("fp1", "a"))
	if err != nil || !created {
		t.Fatalf("expected create, got created=%t err=%v", created, err)
	}
	second, created, err := store.UpsertByFingerprint(ctx, "fp1", candidate("fp1", "b"))
	if err != nil || created {
		t.Fatalf("expected merge, got created=%t err=%v", created, err)
	}
	if second.ID != first.ID || second.Seq != first.Seq {
		t.Fatalf("identity changed on merge")
	}
	if len(second.Tags) != 2 {
		t.Fatalf("expected tag union, got %#v", second.Tags)
	}

	n, _ := store.CountRecords(ctx)
	if n != 1 {
		t.Fatalf("expected one record, got %d", n)
	}
}

func TestConcurrentUpsertsKeepOneRecord(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, _ = store.UpsertByFingerprint(ctx, "same", candidate("same", fmt.Sprintf("t%d", i%4)))
		}(i)
	}
	wg.Wait()

	rec, err := store.FindByFingerprint(ctx, "same")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rec.Tags) != 4 {
		t.Fatalf("expected every submission's tags to land, got %#v", rec.Tags)
	}
	if n, _ := store.CountRecords(ctx); n != 1 {
		t.Fatalf("expected one record, got %d", n)
	}
}

func TestQueryRecordsPaginationIsDeterministic(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	for i := 0; i < 23; i++ {
		fp := fmt.Sprintf("fp%02d", i)
		if _, _, err := store.UpsertByFingerprint(ctx, fp, candidate(fp)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	for _, order := range []news.Order{news.OrderAsc, news.OrderDesc} {
		all, total, err := store.QueryRecords(ctx, news.FilterSpec{Limit: 500, Order: order})
		if err != nil || total != 23 || len(all) != 23 {
			t.Fatalf("full query: total=%d len=%d err=%v", total, len(all), err)
		}

		var paged []news.Record
		for offset := 0; offset < 30; offset += 5 {
			page, pageTotal, err := store.QueryRecords(ctx, news.FilterSpec{Limit: 5, Offset: offset, Order: order})
			if err != nil {
				t.Fatalf("page query: %v", err)
			}
			if pageTotal != 23 {
				t.Fatalf("expected total 23 on every page, got %d", pageTotal)
			}
			paged = append(paged, page...)
		}

		if len(paged) != len(all) {
			t.Fatalf("pages returned %d records, want %d", len(paged), len(all))
		}
		for i := range all {
			if paged[i].Fingerprint != all[i].Fingerprint {
				t.Fatalf("order %s: position %d differs: %s vs %s", order, i, paged[i].Fingerprint, all[i].Fingerprint)
			}
		}
	}
}

func TestFindByFingerprintMissing(t *testing.T) {
	t.Parallel()

	_, err := NewStore().FindByFingerprint(context.Background(), "nope")
	if !errors.Is(err, news.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCanceledContextIsUnavailable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewStore().UpsertByFingerprint(ctx, "fp", candidate("fp"))
	if !errors.Is(err, news.ErrStorageUnavailable) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected unavailable wrapping context.Canceled, got %v", err)
	}
}

func TestLastRecordAndClear(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	if _, err := store.LastRecord(ctx); !errors.Is(err, news.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	older := candidate("old")
	older.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := candidate("new")
	newer.CreatedAt = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	_, _, _ = store.UpsertByFingerprint(ctx, "new", newer)
	_, _, _ = store.UpsertByFingerprint(ctx, "old", older)

	last, err := store.LastRecord(ctx)
	if err != nil || last.Fingerprint != "new" {
		t.Fatalf("expected newest record, got %q err=%v", last.Fingerprint, err)
	}

	n, err := store.Clear(ctx)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 cleared, got %d err=%v", n, err)
	}
	if count, _ := store.CountRecords(ctx); count != 0 {
		t.Fatalf("expected empty store, got %d", count)
	}
}
