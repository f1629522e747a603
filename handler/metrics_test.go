package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Julianlamaravilla/yuno-nebula/events"
	"github.com/Julianlamaravilla/yuno-nebula/metricstore"
)

func TestMetricsHandlerRecentRejectsNonPositiveMinutes(t *testing.T) {
	h := NewMetricsHandler(metricstore.NewMemoryStore(time.Hour), testRulesLogger())
	req := httptest.NewRequest(http.MethodGet, "/metrics/recent?minutes=0", nil)
	rw := httptest.NewRecorder()
	h.Recent(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for minutes=0, got %d", rw.Code)
	}
}

func TestMetricsHandlerRecentRejectsNonIntegerMinutes(t *testing.T) {
	h := NewMetricsHandler(metricstore.NewMemoryStore(time.Hour), testRulesLogger())
	req := httptest.NewRequest(http.MethodGet, "/metrics/recent?minutes=soon", nil)
	rw := httptest.NewRecorder()
	h.Recent(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-integer minutes, got %d", rw.Code)
	}
}

func TestMetricsHandlerRecentComputesApprovalRate(t *testing.T) {
	store := metricstore.NewMemoryStore(time.Hour)
	now := time.Now().UTC().Truncate(time.Minute)

	succKey := events.DimensionKey("", "", "", "", "status", string(events.StatusSucceeded))
	declKey := events.DimensionKey("", "", "", "", "status", string(events.StatusDeclined))
	store.Incr(context.Background(), succKey, now, 8)
	store.Incr(context.Background(), declKey, now, 2)

	h := NewMetricsHandler(store, testRulesLogger())
	request := httptest.NewRequest(http.MethodGet, "/metrics/recent?minutes=5", nil)
	rw := httptest.NewRecorder()
	h.Recent(rw, request)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	if !strings.Contains(rw.Body.String(), `"approval_rate":0.8`) {
		t.Fatalf("expected an 0.8 approval rate bucket, got %s", rw.Body.String())
	}
}
