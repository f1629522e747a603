package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Julianlamaravilla/yuno-nebula/rules"
)

// RulesHandler serves the Rule Registry CRUD endpoints (spec §6),
// grounded on the teacher's handler/providers.go CRUD shape.
type RulesHandler struct {
	registry *rules.Registry
	logger   zerolog.Logger
}

// NewRulesHandler builds a RulesHandler.
func NewRulesHandler(registry *rules.Registry, logger zerolog.Logger) *RulesHandler {
	return &RulesHandler{registry: registry, logger: logger.With().Str("component", "rules_handler").Logger()}
}

// List handles GET /rules.
func (h *RulesHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.registry.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  list,
		"total": len(list),
	})
}

// Create handles POST /rules.
func (h *RulesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rules.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid JSON body"})
		return
	}

	rule, err := h.registry.Create(req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rule)
}

// Delete handles DELETE /rules/{id} — soft-delete only (spec §4.3:
// historical incidents keep referencing rule_id regardless).
func (h *RulesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")
	if err := h.registry.SoftDelete(ruleID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
