package feeds

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/SlyMarbo/rss"
	"github.com/samber/lo"

	"github.com/buketp/UrbanFeed/internal/news"
)

const DefaultConcurrency = 4

// Report describes one feed probe.
type Report struct {
	SourceID string     `json:"source_id"`
	Name     string     `json:"name"`
	FeedURL  string     `json:"rss_url"`
	OK       bool       `json:"ok"`
	Title    string     `json:"title,omitempty"`
	Items    int        `json:"items"`
	Latest   *time.Time `json:"latest,omitempty"`
	Error    string     `json:"error,omitempty"`
	Took     string     `json:"took"`
}

// Checker fetches registered feeds to confirm they still parse.
type Checker struct {
	fetch       func(url string) (*rss.Feed, error)
	timeout     time.Duration
	concurrency int
}

func NewChecker(timeout time.Duration, concurrency int) *Checker {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Checker{
		fetch:       rss.Fetch,
		timeout:     timeout,
		concurrency: concurrency,
	}
}

// CheckAll probes sources in parallel and returns reports in input order.
func (c *Checker) CheckAll(ctx context.Context, sources []news.Source) []Report {
	reports := make([]Report, len(sources))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < c.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				reports[i] = c.Check(ctx, sources[i])
			}
		}()
	}
	for i := range sources {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return reports
}

func (c *Checker) Check(ctx context.Context, source news.Source) Report {
	report := Report{SourceID: source.ID, Name: source.Name, FeedURL: source.FeedURL}
	start := time.Now()
	defer func() { report.Took = time.Since(start).Round(time.Millisecond).String() }()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	feed, err := c.load(ctx, source.FeedURL)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	report.OK = true
	report.Title = strings.TrimSpace(feed.Title)
	report.Items = len(feed.Items)
	dated := lo.Filter(feed.Items, func(item *rss.Item, _ int) bool {
		return item != nil && !item.Date.IsZero()
	})
	if len(dated) > 0 {
		latest := lo.MaxBy(dated, func(a, b *rss.Item) bool { return a.Date.After(b.Date) }).Date.UTC()
		report.Latest = &latest
	}
	return report
}

func (c *Checker) load(ctx context.Context, url string) (*rss.Feed, error) {
	// Buffered so the fetch goroutine can exit after a cancel.
	var (
		feedCh = make(chan *rss.Feed, 1)
		errCh  = make(chan error, 1)
	)

	go func() {
		feed, err := c.fetch(url)
		if err != nil {
			errCh <- err
			return
		}
		feedCh <- feed
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch %s: %w", url, ctx.Err())
	case err := <-errCh:
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	case feed := <-feedCh:
		if feed == nil {
			return nil, fmt.Errorf("fetch %s: empty feed", url)
		}
		return feed, nil
	}
}
