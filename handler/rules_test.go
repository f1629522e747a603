package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Julianlamaravilla/yuno-nebula/rules"
)

func withRuleID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func testRulesLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func validRuleCreateBody() string {
	return `{"metric_type":"ERROR_RATE","operator":">","threshold":0.1,"min_transactions":10,"severity":"WARNING"}`
}

func TestRulesHandlerCreateRejectsInvalidJSON(t *testing.T) {
	h := NewRulesHandler(rules.NewRegistry(testRulesLogger()), testRulesLogger())
	req := httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader("not json"))
	rw := httptest.NewRecorder()
	h.Create(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestRulesHandlerCreateRejectsInvalidRule(t *testing.T) {
	h := NewRulesHandler(rules.NewRegistry(testRulesLogger()), testRulesLogger())
	req := httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader(`{"metric_type":"BOGUS"}`))
	rw := httptest.NewRecorder()
	h.Create(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an invalid rule, got %d", rw.Code)
	}
}

func TestRulesHandlerCreateThenDelete(t *testing.T) {
	registry := rules.NewRegistry(testRulesLogger())
	h := NewRulesHandler(registry, testRulesLogger())

	req := httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader(validRuleCreateBody()))
	rw := httptest.NewRecorder()
	h.Create(rw, req)
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}

	var created rules.Rule
	if err := json.Unmarshal(rw.Body.Bytes(), &created); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	delReq := withRuleID(httptest.NewRequest(http.MethodDelete, "/rules/"+created.RuleID, nil), created.RuleID)
	delRW := httptest.NewRecorder()
	h.Delete(delRW, delReq)
	if delRW.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", delRW.Code)
	}

	list := registry.List()
	found := false
	for _, r := range list {
		if r.RuleID == created.RuleID {
			found = true
			if r.Active {
				t.Fatal("expected soft-deleted rule to be listed as inactive")
			}
		}
	}
	if !found {
		t.Fatal("expected soft-deleted rule to remain in List")
	}
}

func TestRulesHandlerDeleteUnknownRuleReturnsError(t *testing.T) {
	registry := rules.NewRegistry(testRulesLogger())
	h := NewRulesHandler(registry, testRulesLogger())

	req := withRuleID(httptest.NewRequest(http.MethodDelete, "/rules/does-not-exist", nil), "does-not-exist")
	rw := httptest.NewRecorder()
	h.Delete(rw, req)
	if rw.Code == http.StatusNoContent {
		t.Fatal("expected deleting an unknown rule to fail")
	}
}
