package enrich_test

import (
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Julianlamaravilla/yuno-nebula/detector"
	"github.com/Julianlamaravilla/yuno-nebula/enrich"
)

func TestEnricherTransitionsEnrichingToNotifiedEvenOnProviderFailure(t *testing.T) {
	incidents := detector.NewIncidentStore()
	now := time.Now().UTC()
	inc, err := incidents.Open("rule-1", "dim-1", "WARNING", 0.2, 10, detector.RootCause{MetricType: "ERROR_RATE"}, 0, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := incidents.TransitionToEnriching(inc.IncidentID, 0, nil, "", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := enrich.NewEnricher(incidents, enrich.NoneProvider{}, 2, 2*time.Second, 0, zerolog.New(io.Discard))
	e.Start()
	defer e.Stop()

	e.Enqueue(inc.IncidentID)

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, _ := incidents.GetByID(inc.IncidentID)
		if got.State == detector.StateNotified {
			if got.EnrichmentStatus != detector.EnrichmentFailed {
				t.Fatalf("expected enrichment_status=failed with NoneProvider, got %s", got.EnrichmentStatus)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected incident to reach NOTIFIED within the deadline, still %s", got.State)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
