package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Julianlamaravilla/yuno-nebula/events"
	"github.com/Julianlamaravilla/yuno-nebula/observability"
)

// IngestHandler serves POST /ingest (spec §6), grounded on the
// teacher's proxy handler's decode-validate-delegate shape but pointed
// at events.Ingestor instead of a provider proxy.
type IngestHandler struct {
	ingestor  *events.Ingestor
	telemetry *observability.Metrics
	logger    zerolog.Logger
}

// NewIngestHandler builds an IngestHandler. telemetry may be nil, in
// which case request outcomes are simply not counted.
func NewIngestHandler(ingestor *events.Ingestor, telemetry *observability.Metrics, logger zerolog.Logger) *IngestHandler {
	return &IngestHandler{ingestor: ingestor, telemetry: telemetry, logger: logger.With().Str("component", "ingest_handler").Logger()}
}

func (h *IngestHandler) countStatus(status int) {
	if h.telemetry == nil {
		return
	}
	h.telemetry.IngestRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// Ingest handles POST /ingest. Responses per spec §6: 200 {event_id,
// accepted_at} on success, 400 {error, field} on validation failure,
// 503 on back-pressure.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.countStatus(http.StatusBadRequest)
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "failed to read request body"})
		return
	}

	var inbound events.InboundEvent
	if err := json.Unmarshal(body, &inbound); err != nil {
		h.countStatus(http.StatusBadRequest)
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid JSON body"})
		return
	}

	result, err := h.ingestor.Ingest(r.Context(), inbound, body)
	if err != nil {
		h.countStatus(errorStatus(err))
		writeError(w, err)
		return
	}

	h.countStatus(http.StatusOK)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"event_id":    result.EventID,
		"accepted_at": result.AcceptedAt,
	})
}
