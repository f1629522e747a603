package detector

import (
	"testing"
	"time"
)

func TestIncidentStoreOpenAndDedup(t *testing.T) {
	store := NewIncidentStore()
	now := time.Now().UTC()

	inc, err := store.Open("rule-1", "dim-1", "WARNING", 0.2, 10, RootCause{MetricType: "ERROR_RATE"}, 0, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inc.State != StateOpen {
		t.Fatalf("expected new incident to open in state OPEN, got %s", inc.State)
	}

	if _, err := store.Open("rule-1", "dim-1", "WARNING", 0.2, 10, RootCause{}, 0, now); err == nil {
		t.Fatal("expected an InvariantError opening a second incident for the same (rule, dimension) key")
	}
}

func TestIncidentStoreActiveIncidentFor(t *testing.T) {
	store := NewIncidentStore()
	now := time.Now().UTC()
	store.Open("rule-1", "dim-1", "WARNING", 0.2, 10, RootCause{}, 0, now)

	inc, ok := store.ActiveIncidentFor("rule-1", "dim-1")
	if !ok {
		t.Fatal("expected to find the active incident just opened")
	}
	if inc.RuleID != "rule-1" {
		t.Fatalf("expected rule-1, got %s", inc.RuleID)
	}

	if _, ok := store.ActiveIncidentFor("rule-1", "dim-2"); ok {
		t.Fatal("expected no active incident for an unrelated dimension")
	}
}

func TestIncidentStoreRecoveryFreesTheKey(t *testing.T) {
	store := NewIncidentStore()
	now := time.Now().UTC()
	inc, _ := store.Open("rule-1", "dim-1", "WARNING", 0.2, 10, RootCause{}, 0, now)

	if err := store.TransitionToRecovered(inc.IncidentID, now.Add(time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := store.ActiveIncidentFor("rule-1", "dim-1"); ok {
		t.Fatal("expected the (rule, dimension) key to free up after recovery")
	}

	// Re-opening the same key must now succeed.
	if _, err := store.Open("rule-1", "dim-1", "WARNING", 0.2, 10, RootCause{}, 0, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("expected a new incident to open after recovery, got error: %v", err)
	}
}

func TestIncidentStoreTransitionLifecycle(t *testing.T) {
	store := NewIncidentStore()
	now := time.Now().UTC()
	inc, _ := store.Open("rule-1", "dim-1", "CRITICAL", 0.3, 50, RootCause{}, 0, now)

	if err := store.TransitionToEnriching(inc.IncidentID, 1234.5, map[string]int64{"91": 3}, "check upstream provider", now.Add(time.Second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := store.GetByID(inc.IncidentID)
	if got.State != StateEnriching {
		t.Fatalf("expected state ENRICHING, got %s", got.State)
	}
	if got.RevenueAtRiskUSD != 1234.5 {
		t.Fatalf("expected revenue at risk to be recorded, got %v", got.RevenueAtRiskUSD)
	}

	explanation := "provider X is returning elevated decline rates"
	if err := store.TransitionToNotified(inc.IncidentID, &explanation, EnrichmentSucceeded, now.Add(2*time.Second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = store.GetByID(inc.IncidentID)
	if got.State != StateNotified {
		t.Fatalf("expected state NOTIFIED, got %s", got.State)
	}
	if got.LLMExplanation == nil || *got.LLMExplanation != explanation {
		t.Fatal("expected the explanation to be recorded")
	}

	// NOTIFIED incidents still occupy the dedup slot.
	if _, ok := store.ActiveIncidentFor("rule-1", "dim-1"); !ok {
		t.Fatal("expected a NOTIFIED incident to still be the active incident for its key")
	}
}

func TestIncidentStoreRecentlyClosedCooldown(t *testing.T) {
	store := NewIncidentStore()
	now := time.Now().UTC()
	inc, _ := store.Open("rule-1", "dim-1", "WARNING", 0.2, 10, RootCause{}, 0, now)
	store.TransitionToRecovered(inc.IncidentID, now.Add(time.Minute))

	if !store.RecentlyClosed("rule-1", "dim-1", 10*time.Minute, now.Add(2*time.Minute)) {
		t.Fatal("expected the cooldown window to still cover a recovery one minute ago")
	}
	if store.RecentlyClosed("rule-1", "dim-1", 10*time.Minute, now.Add(20*time.Minute)) {
		t.Fatal("expected the cooldown window to have elapsed after 20 minutes")
	}
}

func TestIncidentStoreListFiltersByStateAndSince(t *testing.T) {
	store := NewIncidentStore()
	now := time.Now().UTC()
	store.Open("rule-1", "dim-1", "WARNING", 0.2, 10, RootCause{}, 0, now)
	store.Open("rule-2", "dim-2", "CRITICAL", 0.5, 20, RootCause{}, 0, now.Add(time.Minute))

	all := store.List(time.Time{}, "")
	if len(all) != 2 {
		t.Fatalf("expected 2 incidents total, got %d", len(all))
	}

	onlyOpen := store.List(time.Time{}, StateOpen)
	if len(onlyOpen) != 2 {
		t.Fatalf("expected both incidents to be OPEN, got %d", len(onlyOpen))
	}

	recent := store.List(now.Add(30*time.Second), "")
	if len(recent) != 1 {
		t.Fatalf("expected only the later incident after the since cutoff, got %d", len(recent))
	}
}

func TestIncidentSLABreachCountdown(t *testing.T) {
	now := time.Now().UTC()
	inc := &Incident{OpenedAt: now, SLAMinutes: 10}
	remaining := inc.SLABreachCountdownSeconds(now.Add(5 * time.Minute))
	if remaining != 300 {
		t.Fatalf("expected 300 seconds remaining, got %d", remaining)
	}

	expired := inc.SLABreachCountdownSeconds(now.Add(20 * time.Minute))
	if expired != 0 {
		t.Fatalf("expected a clamped zero once the SLA window has passed, got %d", expired)
	}
}

func TestIncidentIsActive(t *testing.T) {
	inc := &Incident{State: StateNotified}
	if !inc.IsActive() {
		t.Fatal("expected NOTIFIED to count as active")
	}
	inc.State = StateRecovered
	if inc.IsActive() {
		t.Fatal("expected RECOVERED to not count as active")
	}
}
