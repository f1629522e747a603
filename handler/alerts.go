package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Julianlamaravilla/yuno-nebula/detector"
)

// AlertsHandler serves GET /alerts (spec §6).
type AlertsHandler struct {
	incidents *detector.IncidentStore
	logger    zerolog.Logger
}

// NewAlertsHandler builds an AlertsHandler.
func NewAlertsHandler(incidents *detector.IncidentStore, logger zerolog.Logger) *AlertsHandler {
	return &AlertsHandler{incidents: incidents, logger: logger.With().Str("component", "alerts_handler").Logger()}
}

// alertView is the Incident schema in spec §3 plus the on-read SLA
// countdown derivation (DESIGN.md Open Question decision).
type alertView struct {
	*detector.Incident
	SLABreachCountdownSeconds int64 `json:"sla_breach_countdown_seconds"`
}

// List handles GET /alerts?since=<ts>&state=<...>, returning incidents
// ordered by opened_at desc (spec §6). Alerts that failed enrichment
// are still returned with llm_explanation=null and
// enrichment_status=failed (spec §7) — List never filters on
// enrichment outcome.
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if s := r.URL.Query().Get("since"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "since must be RFC3339"})
			return
		}
		since = parsed
	}

	state := detector.State(r.URL.Query().Get("state"))

	now := time.Now().UTC()
	incidents := h.incidents.List(since, state)
	out := make([]alertView, 0, len(incidents))
	for _, inc := range incidents {
		out = append(out, alertView{
			Incident:                  inc,
			SLABreachCountdownSeconds: inc.SLABreachCountdownSeconds(now),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  out,
		"total": len(out),
	})
}
