package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Julianlamaravilla/yuno-nebula/config"
	"github.com/Julianlamaravilla/yuno-nebula/detector"
	"github.com/Julianlamaravilla/yuno-nebula/events"
	"github.com/Julianlamaravilla/yuno-nebula/eventlog"
	"github.com/Julianlamaravilla/yuno-nebula/metricstore"
	"github.com/Julianlamaravilla/yuno-nebula/rules"
)

// fakeEventLog and fakeMetricStore are minimal in-memory doubles — this
// package only exercises routing and middleware behavior, not storage.
type fakeEventLog struct{}

func (f *fakeEventLog) Append(ctx context.Context, e *events.Event) error { return nil }
func (f *fakeEventLog) Get(ctx context.Context, eventID string) (*events.Event, bool, error) {
	return nil, false, nil
}
func (f *fakeEventLog) Query(ctx context.Context, filter eventlog.WindowFilter) ([]*events.Event, error) {
	return nil, nil
}
func (f *fakeEventLog) Close() error { return nil }

type fakeMetricStore struct{}

func (f *fakeMetricStore) Incr(ctx context.Context, key string, at time.Time, delta int64) error {
	return nil
}
func (f *fakeMetricStore) RangeSum(ctx context.Context, key string, start, end time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeMetricStore) SeriesSum(ctx context.Context, key string, start, end time.Time) ([]metricstore.BucketValue, error) {
	return nil, nil
}

func testSetup() http.Handler {
	cfg := &config.Config{
		Addr:         ":0",
		Env:          "test",
		MaxBodyBytes: 1 << 20,
	}
	log := zerolog.New(io.Discard).With().Timestamp().Logger()

	logStore := &fakeEventLog{}
	metricStore := &fakeMetricStore{}
	ingestor := events.NewIngestor(logStore, metricStore, 16, log)
	registry := rules.NewRegistry(log)
	incidents := detector.NewIncidentStore()

	return New(cfg, log, Deps{
		Ingestor:  ingestor,
		Rules:     registry,
		Incidents: incidents,
		Metrics:   metricStore,
	})
}

func TestHealthzReturnsOK(t *testing.T) {
	r := testSetup()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for /healthz, got %d", rw.Result().StatusCode)
	}
}

func TestIngestRejectsInvalidEvent(t *testing.T) {
	r := testSetup()
	body := strings.NewReader(`{"event_id":"","merchant_id":"m1"}`)
	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid ingest body, got %d", rw.Result().StatusCode)
	}
}

func TestIngestAcceptsValidEvent(t *testing.T) {
	r := testSetup()
	body := strings.NewReader(`{
		"event_id": "evt-1",
		"merchant_id": "m1",
		"provider_id": "p1",
		"country": "US",
		"status": "SUCCEEDED",
		"amount": {"value": 10, "currency": "USD"},
		"latency_ms": 100
	}`)
	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for valid ingest body, got %d: %s", rw.Result().StatusCode, rw.Body.String())
	}
}

func TestRulesCreateAndList(t *testing.T) {
	r := testSetup()

	create := strings.NewReader(`{
		"metric_type": "ERROR_RATE",
		"operator": ">",
		"threshold": 0.1,
		"min_transactions": 10,
		"severity": "WARNING"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/rules", create)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 creating rule, got %d: %s", rw.Result().StatusCode, rw.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/rules", nil)
	rw = httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 listing rules, got %d", rw.Result().StatusCode)
	}
	if !strings.Contains(rw.Body.String(), "ERROR_RATE") {
		t.Fatalf("expected created rule to appear in list, got %s", rw.Body.String())
	}
}

func TestAlertsListEmpty(t *testing.T) {
	r := testSetup()
	req := httptest.NewRequest(http.MethodGet, "/alerts", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for /alerts, got %d", rw.Result().StatusCode)
	}
	if !strings.Contains(rw.Body.String(), `"total":0`) {
		t.Fatalf("expected empty alert list, got %s", rw.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	r := testSetup()
	req := httptest.NewRequest(http.MethodOptions, "/ingest", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("expected CORS Allow-Origin header on preflight response")
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := testSetup()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	headers := []string{
		"X-Content-Type-Options",
		"X-Frame-Options",
	}
	for _, h := range headers {
		if rw.Header().Get(h) == "" {
			t.Fatalf("expected security header %s to be set", h)
		}
	}
}
