package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func gatheredValue(t *testing.T, reg *prom.Registry, name, labelValue string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelValue != "" {
				match := false
				for _, lp := range m.GetLabel() {
					if lp.GetValue() == labelValue {
						match = true
					}
				}
				if !match {
					continue
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	t.Fatalf("metric %s{%s} not found", name, labelValue)
	return 0
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObservePublicationDuration(500 * time.Millisecond)
	pr.IncPageOutcome(PagePublished)
	pr.IncPageOutcome(PagePublished)
	pr.IncPageOutcome(PageSkipped)
	pr.IncResolutionGap("not_published")
	pr.IncJobOutcome("publish", JobCompleted)
	pr.ObserveJobDuration("publish", time.Second)
	pr.SetQueueDepth(3)
	pr.IncJobRetry("publish")

	if got := gatheredValue(t, reg, "bookversions_publication_pages_total", string(PagePublished)); got != 2 {
		t.Fatalf("published pages = %v, want 2", got)
	}
	if got := gatheredValue(t, reg, "bookversions_job_queue_depth", ""); got != 3 {
		t.Fatalf("queue depth = %v, want 3", got)
	}
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncPageOutcome(PageFailed)
	pr.SetQueueDepth(1)
}

func TestHTTPHandler_ServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncJobOutcome("remove_version_content", JobFailed)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "bookversions_job_outcomes_total") {
		t.Fatalf("metrics output missing job outcomes: %s", rec.Body.String())
	}
}

func TestNewRegistry_RuntimeCollectors(t *testing.T) {
	reg := NewRegistry()
	h := HTTPHandler(reg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("metrics output missing Go collector: %s", rec.Body.String())
	}

	// a second handler on the same registry reuses the scrape counter
	rec = httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "promhttp_metric_handler_requests_total") {
		t.Fatalf("metrics output missing scrape counter: %s", rec.Body.String())
	}
}
