package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Julianlamaravilla/yuno-nebula/events"
	"github.com/Julianlamaravilla/yuno-nebula/metricstore"
)

// MetricsHandler serves GET /metrics/recent (spec §6), the
// domain-facing per-minute snapshot series — distinct from the
// Prometheus-exposition-format /metrics mounted from
// observability.Metrics.Handler().
type MetricsHandler struct {
	store  metricstore.Store
	logger zerolog.Logger
}

// NewMetricsHandler builds a MetricsHandler.
func NewMetricsHandler(store metricstore.Store, logger zerolog.Logger) *MetricsHandler {
	return &MetricsHandler{store: store, logger: logger.With().Str("component", "metrics_handler").Logger()}
}

type minuteSnapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	TotalCount    int64     `json:"total_count"`
	ApprovalRate  float64   `json:"approval_rate"`
	ErrorRate     float64   `json:"error_rate"`
}

// Recent handles GET /metrics/recent?minutes=N, reading the global
// per-status series back through SeriesSum per minute (SPEC_FULL.md
// §14). REJECTED events never reach total_count since only the
// CREATED, SUCCEEDED, DECLINED and ERROR series are summed into the
// rate denominator (spec §9 Open Question default).
func (h *MetricsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	minutes := 60
	if v := r.URL.Query().Get("minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "minutes must be a positive integer"})
			return
		}
		minutes = n
	}

	now := time.Now().UTC()
	start := now.Add(-time.Duration(minutes) * time.Minute).Truncate(time.Minute)
	end := now.Truncate(time.Minute).Add(time.Minute)

	ctx := r.Context()

	succeeded, err := h.store.SeriesSum(ctx, events.DimensionKey("", "", "", "", "status", string(events.StatusSucceeded)), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	declined, err := h.store.SeriesSum(ctx, events.DimensionKey("", "", "", "", "status", string(events.StatusDeclined)), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	errored, err := h.store.SeriesSum(ctx, events.DimensionKey("", "", "", "", "status", string(events.StatusError)), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	created, err := h.store.SeriesSum(ctx, events.DimensionKey("", "", "", "", "status", string(events.StatusCreated)), start, end)
	if err != nil {
		writeError(w, err)
		return
	}

	byMinute := make(map[int64]*minuteSnapshot)
	ensure := func(minute time.Time) *minuteSnapshot {
		key := minute.Unix()
		s, ok := byMinute[key]
		if !ok {
			s = &minuteSnapshot{Timestamp: minute}
			byMinute[key] = s
		}
		return s
	}
	for _, b := range succeeded {
		ensure(b.Minute).TotalCount += b.Value
	}
	for _, b := range declined {
		ensure(b.Minute).TotalCount += b.Value
	}
	for _, b := range errored {
		ensure(b.Minute).TotalCount += b.Value
	}
	for _, b := range created {
		ensure(b.Minute).TotalCount += b.Value
	}

	succByMinute := toMap(succeeded)
	errByMinute := toMap(errored)
	for key, s := range byMinute {
		if s.TotalCount > 0 {
			s.ApprovalRate = float64(succByMinute[key]) / float64(s.TotalCount)
			s.ErrorRate = float64(errByMinute[key]) / float64(s.TotalCount)
		}
	}

	out := make([]*minuteSnapshot, 0, len(byMinute))
	for t := start; t.Before(end); t = t.Add(time.Minute) {
		if s, ok := byMinute[t.Unix()]; ok {
			out = append(out, s)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  out,
		"total": len(out),
	})
}

func toMap(buckets []metricstore.BucketValue) map[int64]int64 {
	m := make(map[int64]int64, len(buckets))
	for _, b := range buckets {
		m[b.Minute.Unix()] = b.Value
	}
	return m
}
