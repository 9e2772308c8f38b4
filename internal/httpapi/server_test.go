package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/buketp/UrbanFeed/internal/auth"
	"github.com/buketp/UrbanFeed/internal/directory"
	"github.com/buketp/UrbanFeed/internal/ingest"
	"github.com/buketp/UrbanFeed/internal/memstore"
	"github.com/buketp/UrbanFeed/internal/metrics"
	"github.com/buketp/UrbanFeed/internal/resolve"
)

const testKey = "test-key"

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newTestServer(t *testing.T, keys *auth.KeyVerifier) *Server {
	t.Helper()

	dir := memstore.NewDirectory()
	dirService := directory.NewService(dir, zerolog.Nop())
	if _, err := dirService.SeedCities(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m := metrics.New()
	newsService := ingest.NewService(memstore.NewStore(), resolve.New(dir, zerolog.Nop()), m, zerolog.Nop())

	return NewServer(Deps{
		News:      newsService,
		Directory: dirService,
		Keys:      keys,
		Metrics:   m,
	}, zerolog.Nop(), Options{})
}

func doRequest(t *testing.T, s *Server, method, path, body, key string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(apiKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

const samplePayload = `{
	"source": "Manisa Postası",
	"province": "Manisa",
	"title": "Akhisar'da su kesintisi",
	"url": "https://manisaposta.example/haber/su?utm_source=x#yorumlar",
	"category": "şikayet",
	"tags": ["su", "altyapı"],
	"tweetText": "Akhisar'da 12 saatlik su kesintisi",
	"language": "tr"
}`

func TestSubmitNewsRequiresAPIKey(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, auth.NewKeyVerifier(testKey, ""))
	rec, env := doRequest(t, s, http.MethodPost, "/api/news", samplePayload, "")
	if rec.Code != http.StatusUnauthorized || env.Status != "fail" {
		t.Fatalf("expected 401 fail, got %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = doRequest(t, s, http.MethodPost, "/api/news", samplePayload, "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong key, got %d", rec.Code)
	}
}

func TestSubmitNewsWithoutConfiguredKeyIsServerError(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, auth.NewKeyVerifier("", ""))
	rec, env := doRequest(t, s, http.MethodPost, "/api/news", samplePayload, "anything")
	if rec.Code != http.StatusInternalServerError || env.Status != "error" {
		t.Fatalf("expected 500 error, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitNewsCreatesThenMerges(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, auth.NewKeyVerifier(testKey, ""))
	rec, env := doRequest(t, s, http.MethodPost, "/api/news", samplePayload, testKey)
	if rec.Code != http.StatusCreated || env.Status != "success" {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Record struct {
			Fingerprint string `json:"fingerprint"`
			URL         string `json:"url"`
			CityID      *int64 `json:"cityId"`
			Province    string `json:"province"`
		} `json:"record"`
		Created    bool `json:"created"`
		Resolution struct {
			CityStrategy string `json:"cityStrategy"`
		} `json:"resolution"`
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Created || result.Record.URL != "https://manisaposta.example/haber/su" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Record.CityID == nil || *result.Record.CityID != 45 || result.Resolution.CityStrategy != "province" {
		t.Fatalf("expected Manisa via province, got %+v", result)
	}

	rec, _ = doRequest(t, s, http.MethodPost, "/api/news", samplePayload, testKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on merge, got %d", rec.Code)
	}

	rec, env = doRequest(t, s, http.MethodGet, "/api/news/count", "", "")
	if rec.Code != http.StatusOK || string(env.Data) != `{"count":1}` {
		t.Fatalf("unexpected count response: %d %s", rec.Code, env.Data)
	}

	rec, env = doRequest(t, s, http.MethodGet, "/api/news/lookup?url="+"https://MANISAPOSTA.example/haber/su/", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), result.Record.Fingerprint) {
		t.Fatalf("lookup failed: %d %s", rec.Code, env.Data)
	}
}

func TestSubmitNewsValidationFailure(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, auth.NewKeyVerifier(testKey, ""))
	rec, env := doRequest(t, s, http.MethodPost, "/api/news", `{"title":"kısa","url":"not a url","category":"haber"}`, testKey)
	if rec.Code != http.StatusBadRequest || env.Status != "fail" {
		t.Fatalf("expected 400 fail, got %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(string(env.Data), "validation_errors") || !strings.Contains(string(env.Data), "category") {
		t.Fatalf("expected field errors, got %s", env.Data)
	}
}

func TestSubmitNewsUnknownSource(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, auth.NewKeyVerifier(testKey, ""))
	payload := `{"source_id":"missing","title":"Kaldırım yenileniyor","url":"https://haber.example/kaldirim","category":"istek"}`
	rec, env := doRequest(t, s, http.MethodPost, "/api/news", payload, testKey)
	if rec.Code != http.StatusBadRequest || !strings.Contains(string(env.Data), "source_id") {
		t.Fatalf("expected 400 on source_id, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestListNewsAndAINews(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, auth.NewKeyVerifier(testKey, ""))
	doRequest(t, s, http.MethodPost, "/api/news", samplePayload, testKey)
	doRequest(t, s, http.MethodPost, "/api/news", `{"title":"Park bakımsız kaldı","url":"https://haber.example/park","category":"öneri"}`, testKey)

	rec, env := doRequest(t, s, http.MethodGet, "/api/news?limit=abc", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list failed: %d %s", rec.Code, rec.Body.String())
	}
	var page newsListResponse
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 2 || page.Count != 2 || page.Limit != 50 || page.AIOnly {
		t.Fatalf("unexpected page: %+v", page)
	}

	_, env = doRequest(t, s, http.MethodGet, "/api/ai-news", "", "")
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode ai page: %v", err)
	}
	if !page.AIOnly || page.Total != 1 {
		t.Fatalf("expected one ai item, got %+v", page)
	}

	rec, _ = doRequest(t, s, http.MethodGet, "/api/news?city_id=abc", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad city_id, got %d", rec.Code)
	}
}

func TestLastAndClearNews(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, auth.NewKeyVerifier(testKey, ""))
	_, env := doRequest(t, s, http.MethodGet, "/api/news/last", "", "")
	if string(env.Data) != `{"last":null}` {
		t.Fatalf("expected null last, got %s", env.Data)
	}

	doRequest(t, s, http.MethodPost, "/api/news", samplePayload, testKey)

	rec, _ := doRequest(t, s, http.MethodDelete, "/api/news", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected delete to require key, got %d", rec.Code)
	}
	rec, env = doRequest(t, s, http.MethodDelete, "/api/news", "", testKey)
	if rec.Code != http.StatusOK || string(env.Data) != `{"deleted":1}` {
		t.Fatalf("unexpected clear response: %d %s", rec.Code, env.Data)
	}
}

func TestGetNewsNotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, auth.NewKeyVerifier(testKey, ""))
	rec, _ := doRequest(t, s, http.MethodGet, "/api/news/0123456789abcdef0123456789abcdef", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec, _ = doRequest(t, s, http.MethodGet, "/api/news/xyz/preview", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed fingerprint, got %d", rec.Code)
	}
}

func TestCitiesAndSources(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, auth.NewKeyVerifier(testKey, ""))

	rec, env := doRequest(t, s, http.MethodGet, "/api/cities?flat=1", "", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(string(env.Data), "[") {
		t.Fatalf("expected flat city array, got %d %s", rec.Code, env.Data)
	}
	_, env = doRequest(t, s, http.MethodGet, "/api/cities", "", "")
	if !strings.HasPrefix(string(env.Data), `{"items":[`) {
		t.Fatalf("expected wrapped city list, got %s", env.Data)
	}

	reg := `{"city_id":45,"name":"Manisa Postası","rss_url":"https://manisaposta.example/rss"}`
	rec, _ = doRequest(t, s, http.MethodPost, "/api/sources", reg, testKey)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}

	rec, env = doRequest(t, s, http.MethodGet, "/api/sources?city_id=45", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), "manisaposta.example/rss") {
		t.Fatalf("expected registered source, got %d %s", rec.Code, env.Data)
	}
	rec, _ = doRequest(t, s, http.MethodGet, "/api/sources?city_id=zero", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad city_id, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, auth.NewKeyVerifier(testKey, ""))
	rec, env := doRequest(t, s, http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), "urbanfeed") {
		t.Fatalf("unexpected health: %d %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	out := httptest.NewRecorder()
	s.Handler().ServeHTTP(out, req)
	if out.Code != http.StatusOK || !strings.Contains(out.Body.String(), "urbanfeed_http_requests_total") {
		t.Fatalf("expected metrics exposition, got %d", out.Code)
	}
}
