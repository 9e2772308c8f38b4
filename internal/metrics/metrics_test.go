package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSubmissionCounter(t *testing.T) {
	t.Parallel()

	m := New()
	m.Submission(OutcomeCreated)
	m.Submission(OutcomeCreated)
	m.Submission(OutcomeInvalid)

	if got := testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeCreated)); got != 2 {
		t.Fatalf("expected 2 created submissions, got %v", got)
	}
	if got := testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeInvalid)); got != 1 {
		t.Fatalf("expected 1 invalid submission, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.Submission(OutcomeError)
	m.Resolution("source", "feed_url")
	m.ObserveStore("upsert", time.Now())
	m.CacheLookup(true)
	m.HTTPRequest(http.MethodGet, "/api/news", http.StatusOK)
	if m.Registry() != nil {
		t.Fatalf("nil metrics should have no registry")
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.Resolution("city", "province")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `urbanfeed_resolutions_total{strategy="province",target="city"} 1`) {
		t.Fatalf("resolution counter missing from exposition:\n%s", body)
	}
}
