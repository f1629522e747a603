package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Julianlamaravilla/yuno-nebula/detector"
)

func TestAlertsHandlerListRejectsBadSince(t *testing.T) {
	h := NewAlertsHandler(detector.NewIncidentStore(), testRulesLogger())
	req := httptest.NewRequest(http.MethodGet, "/alerts?since=not-a-timestamp", nil)
	rw := httptest.NewRecorder()
	h.List(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed since, got %d", rw.Code)
	}
}

func TestAlertsHandlerListIncludesSLACountdown(t *testing.T) {
	incidents := detector.NewIncidentStore()
	now := time.Now().UTC()
	if _, err := incidents.Open("rule-1", "dim-1", "WARNING", 0.5, 20, detector.RootCause{MetricType: "ERROR_RATE"}, 30, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := NewAlertsHandler(incidents, testRulesLogger())
	req := httptest.NewRequest(http.MethodGet, "/alerts", nil)
	rw := httptest.NewRecorder()
	h.List(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if !strings.Contains(rw.Body.String(), "sla_breach_countdown_seconds") {
		t.Fatalf("expected response to include sla_breach_countdown_seconds, got %s", rw.Body.String())
	}
}

func TestAlertsHandlerListFiltersByState(t *testing.T) {
	incidents := detector.NewIncidentStore()
	now := time.Now().UTC()
	if _, err := incidents.Open("rule-1", "dim-1", "WARNING", 0.5, 20, detector.RootCause{MetricType: "ERROR_RATE"}, 0, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := NewAlertsHandler(incidents, testRulesLogger())
	req := httptest.NewRequest(http.MethodGet, "/alerts?state=RECOVERED", nil)
	rw := httptest.NewRecorder()
	h.List(rw, req)

	if !strings.Contains(rw.Body.String(), `"total":0`) {
		t.Fatalf("expected no RECOVERED incidents, got %s", rw.Body.String())
	}
}
