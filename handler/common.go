// Package handler implements the HTTP surface over the Ingestor, Rule
// Registry, Incident Store, and Metric Store (spec §6), adapted from
// the teacher's handler package's REST-CRUD conventions
// (handler/providers.go: writeJSON, chi.URLParam path params, typed
// wire-shape structs per handler).
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Julianlamaravilla/yuno-nebula/errs"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorStatus maps the four-way error taxonomy (spec §7) to its HTTP
// status, shared between writeError and callers that need the status
// for metrics before the body is written.
func errorStatus(err error) int {
	switch err.(type) {
	case *errs.ValidationError:
		return http.StatusBadRequest
	case *errs.TransientError:
		return http.StatusServiceUnavailable
	case *errs.PermanentError:
		return http.StatusBadGateway
	case *errs.InvariantError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps the four-way error taxonomy (spec §7) to an HTTP
// status and a machine-readable error body, the single place every
// handler funnels its error return through.
func writeError(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case *errs.ValidationError:
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": e.Message,
			"field": e.Field,
		})
	case *errs.TransientError:
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error": e.Message,
			"op":    e.Op,
		})
	case *errs.PermanentError:
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error": e.Message,
			"op":    e.Op,
		})
	case *errs.InvariantError:
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":     e.Message,
			"invariant": e.Invariant,
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
		})
	}
}
