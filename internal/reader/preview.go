package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "codeberg.org/readeck/go-readability/v2"
)

const (
	DefaultFetchTimeout  = 12 * time.Second
	DefaultBodyByteLimit = 2 * 1024 * 1024
	DefaultPreviewChars  = 1000

	defaultUserAgent = "UrbanFeed-Reader/1.0"
)

// Preview sources.
const (
	SourceReader  = "reader"
	SourceSummary = "summary"
	SourceNone    = "none"
)

type Options struct {
	Timeout       time.Duration
	BodyByteLimit int64
	UserAgent     string
	HTTPClient    *http.Client
}

// Fetcher extracts readable article text from news pages.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	bodyLimit int64
	userAgent string
}

func NewFetcher(opts Options) *Fetcher {
	f := &Fetcher{
		client:    opts.HTTPClient,
		timeout:   opts.Timeout,
		bodyLimit: opts.BodyByteLimit,
		userAgent: strings.TrimSpace(opts.UserAgent),
	}
	if f.timeout <= 0 {
		f.timeout = DefaultFetchTimeout
	}
	if f.bodyLimit <= 0 {
		f.bodyLimit = DefaultBodyByteLimit
	}
	if f.userAgent == "" {
		f.userAgent = defaultUserAgent
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}
	return f
}

// Preview is the reader view of one stored record.
type Preview struct {
	Text      string  `json:"preview_text"`
	Source    string  `json:"source"`
	CharCount int     `json:"char_count"`
	Truncated bool    `json:"truncated"`
	Error     *string `json:"preview_error,omitempty"`
}

// Preview fetches pageURL and falls back to summary when extraction fails.
func (f *Fetcher) Preview(ctx context.Context, pageURL, title, summary string, maxChars int) Preview {
	if maxChars <= 0 {
		maxChars = DefaultPreviewChars
	}
	summary = CleanText(summary)

	text, source := "", SourceNone
	var fetchErr error
	if strings.TrimSpace(pageURL) != "" {
		text, fetchErr = f.Text(ctx, pageURL, title)
		if fetchErr == nil && text != "" {
			source = SourceReader
		}
	}
	if source == SourceNone && summary != "" {
		text, source = summary, SourceSummary
	}

	clipped, truncated := TruncateText(text, maxChars)
	out := Preview{
		Text:      clipped,
		Source:    source,
		CharCount: utf8.RuneCountInString(clipped),
		Truncated: truncated,
	}
	if fetchErr != nil {
		msg := fetchErr.Error()
		out.Error = &msg
	}
	return out
}

// Text retrieves pageURL and returns its readable text.
func (f *Fetcher) Text(ctx context.Context, pageURL, title string) (string, error) {
	page := strings.TrimSpace(pageURL)
	if page == "" {
		return "", fmt.Errorf("page URL is required")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, page, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "tr-TR,tr;q=0.9,en;q=0.7")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.bodyLimit))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if strings.HasPrefix(contentType, "text/plain") {
		return CleanText(string(body)), nil
	}

	parsedURL, err := url.Parse(page)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return "", fmt.Errorf("readability parse: %w", err)
	}

	var rendered bytes.Buffer
	if err := article.RenderText(&rendered); err != nil {
		return "", fmt.Errorf("render readability text: %w", err)
	}

	for _, candidate := range []string{rendered.String(), article.Excerpt(), title} {
		if text := CleanText(candidate); text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("reader extracted empty content")
}

// CleanText normalizes line endings and collapses in-line whitespace.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		if clean := strings.Join(strings.Fields(line), " "); clean != "" {
			paragraphs = append(paragraphs, clean)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

// TruncateText clips text to maxChars runes, the last being an ellipsis.
func TruncateText(raw string, maxChars int) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || maxChars <= 0 {
		return trimmed, false
	}

	runes := []rune(trimmed)
	if len(runes) <= maxChars {
		return trimmed, false
	}
	clipped := strings.TrimSpace(string(runes[:maxChars-1]))
	return clipped + "…", true
}
