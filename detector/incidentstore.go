package detector

import (
	"fmt"
	"sync"
	"time"

	"github.com/Julianlamaravilla/yuno-nebula/errs"
)

// IncidentStore holds all incidents, keyed by (rule_id, dimension-key)
// for the open-incident dedup invariant and by incident_id for direct
// lookup, grounded on the teacher's metering.ReservationStore
// (Reserve/Settle/Refund three-state transition shape over a mutex
// map), generalized to this system's five-state machine. Per-incident
// transitions are serialized via keyedMutex (spec §5).
type IncidentStore struct {
	mu        sync.RWMutex
	byID      map[string]*Incident
	openByKey map[string]string // "rule_id|dimension_key" -> incident_id, only while OPEN/ENRICHING/NOTIFIED
	seq       int64

	locks *keyedMutex
}

// NewIncidentStore builds an empty Incident Store.
func NewIncidentStore() *IncidentStore {
	return &IncidentStore{
		byID:      make(map[string]*Incident),
		openByKey: make(map[string]string),
		locks:     newKeyedMutex(),
	}
}

func openKey(ruleID, dimensionKey string) string {
	return ruleID + "|" + dimensionKey
}

// GetByID returns a single incident by its incident_id, used by the
// Enricher to fetch the context it needs to build a prompt.
func (s *IncidentStore) GetByID(incidentID string) (*Incident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.byID[incidentID]
	if !ok {
		return nil, false
	}
	cp := *inc
	return &cp, true
}

// ActiveIncidentFor returns the currently OPEN/ENRICHING/NOTIFIED
// incident for (ruleID, dimensionKey), if any.
func (s *IncidentStore) ActiveIncidentFor(ruleID, dimensionKey string) (*Incident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.openByKey[openKey(ruleID, dimensionKey)]
	if !ok {
		return nil, false
	}
	cp := *s.byID[id]
	return &cp, true
}

// Open creates a new incident in state OPEN. Returns an InvariantError
// if one is already open for the same key — callers must check
// ActiveIncidentFor first; this only guards against a concurrency bug.
func (s *IncidentStore) Open(ruleID, dimensionKey string, severity string, observed float64, affected int64, root RootCause, slaMinutes int, now time.Time) (*Incident, error) {
	unlock := s.locks.Lock(openKey(ruleID, dimensionKey))
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	ok := openKey(ruleID, dimensionKey)
	if _, exists := s.openByKey[ok]; exists {
		return nil, errs.NewInvariant("duplicate_open_incident", fmt.Sprintf("an incident is already open for %s", ok))
	}

	s.seq++
	inc := &Incident{
		IncidentID:           fmt.Sprintf("incident-%d", s.seq),
		RuleID:               ruleID,
		DimensionKey:          dimensionKey,
		OpenedAt:             now,
		LastEvaluatedAt:      now,
		State:                StateOpen,
		Severity:             severity,
		ObservedValue:        observed,
		AffectedTransactions: affected,
		RootCause:            root,
		EnrichmentStatus:     EnrichmentPending,
		SLAMinutes:           slaMinutes,
	}
	s.byID[inc.IncidentID] = inc
	s.openByKey[ok] = inc.IncidentID
	cp := *inc
	return &cp, nil
}

// UpdateObserved refreshes an in-place incident's rolling fields
// without creating a duplicate (spec §4.4.1: "update ... in place —
// do not create a duplicate").
func (s *IncidentStore) UpdateObserved(incidentID string, observed float64, affected int64, revenueAtRisk float64, breakdown map[string]int64, now time.Time) error {
	unlock := s.locks.Lock(incidentID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.byID[incidentID]
	if !ok {
		return errs.NewInvariant("incident_not_found", incidentID)
	}
	inc.ObservedValue = observed
	inc.AffectedTransactions = affected
	inc.RevenueAtRiskUSD = revenueAtRisk
	inc.ResponseCodeBreakdown = breakdown
	inc.LastEvaluatedAt = now
	return nil
}

// TransitionToEnriching moves OPEN -> ENRICHING, attaching the
// computed root-cause enrichment inputs.
func (s *IncidentStore) TransitionToEnriching(incidentID string, revenueAtRisk float64, breakdown map[string]int64, suggestedAction string, now time.Time) error {
	unlock := s.locks.Lock(incidentID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.byID[incidentID]
	if !ok {
		return errs.NewInvariant("incident_not_found", incidentID)
	}
	inc.State = StateEnriching
	inc.RevenueAtRiskUSD = revenueAtRisk
	inc.ResponseCodeBreakdown = breakdown
	inc.SuggestedAction = suggestedAction
	inc.LastEvaluatedAt = now
	return nil
}

// TransitionToNotified moves ENRICHING -> NOTIFIED, recording the LLM
// outcome. The incident remains in openByKey (NOTIFIED still counts as
// the one active incident for its key) until recovery or suppression.
func (s *IncidentStore) TransitionToNotified(incidentID string, explanation *string, status EnrichmentStatus, now time.Time) error {
	unlock := s.locks.Lock(incidentID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.byID[incidentID]
	if !ok {
		return errs.NewInvariant("incident_not_found", incidentID)
	}
	inc.State = StateNotified
	inc.LLMExplanation = explanation
	inc.EnrichmentStatus = status
	inc.LastEvaluatedAt = now
	return nil
}

// TransitionToRecovered closes an OPEN/ENRICHING/NOTIFIED incident and
// frees its (rule_id, dimension-key) slot for future alerts.
func (s *IncidentStore) TransitionToRecovered(incidentID string, now time.Time) error {
	unlock := s.locks.Lock(incidentID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.byID[incidentID]
	if !ok {
		return errs.NewInvariant("incident_not_found", incidentID)
	}
	inc.State = StateRecovered
	inc.LastEvaluatedAt = now
	inc.ClosedAt = &now
	delete(s.openByKey, openKey(inc.RuleID, inc.DimensionKey))
	return nil
}

// RecordSuppressed marks a cooldown-suppressed re-fire without opening
// a new incident (spec §4.4.1).
func (s *IncidentStore) RecordSuppressed(ruleID, dimensionKey string, now time.Time) {
	unlock := s.locks.Lock(openKey(ruleID, dimensionKey))
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	inc := &Incident{
		IncidentID:      fmt.Sprintf("incident-%d", s.seq),
		RuleID:          ruleID,
		DimensionKey:    dimensionKey,
		OpenedAt:        now,
		LastEvaluatedAt: now,
		ClosedAt:        &now,
		State:           StateSuppressed,
	}
	s.byID[inc.IncidentID] = inc
}

// RecentlyClosed reports whether an incident for (ruleID,
// dimensionKey) transitioned to RECOVERED within the last `within`
// duration (spec §4.4.1: cooldown check).
func (s *IncidentStore) RecentlyClosed(ruleID, dimensionKey string, within time.Duration, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found bool
	for _, inc := range s.byID {
		if inc.RuleID != ruleID || inc.DimensionKey != dimensionKey {
			continue
		}
		if inc.State != StateRecovered || inc.ClosedAt == nil {
			continue
		}
		if now.Sub(*inc.ClosedAt) <= within {
			found = true
		}
	}
	return found
}

// List returns incidents matching an optional state filter and a
// since timestamp, ordered by opened_at desc (spec §6).
func (s *IncidentStore) List(since time.Time, state State) []*Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Incident, 0, len(s.byID))
	for _, inc := range s.byID {
		if !inc.OpenedAt.After(since) && !since.IsZero() {
			continue
		}
		if state != "" && inc.State != state {
			continue
		}
		cp := *inc
		out = append(out, &cp)
	}
	sortByOpenedAtDesc(out)
	return out
}

// AllOpenOrEnrichingOrNotified returns every incident currently
// occupying a (rule_id, dimension-key) slot — the candidates the
// recovery check (spec §4.4.2) considers each tick.
func (s *IncidentStore) AllOpenOrEnrichingOrNotified() []*Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Incident, 0, len(s.openByKey))
	for _, id := range s.openByKey {
		cp := *s.byID[id]
		out = append(out, &cp)
	}
	return out
}

func sortByOpenedAtDesc(incidents []*Incident) {
	for i := 1; i < len(incidents); i++ {
		for j := i; j > 0 && incidents[j].OpenedAt.After(incidents[j-1].OpenedAt); j-- {
			incidents[j], incidents[j-1] = incidents[j-1], incidents[j]
		}
	}
}
