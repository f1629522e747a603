package eventlog

import (
	"context"
	"sort"
	"sync"

	"github.com/Julianlamaravilla/yuno-nebula/events"
)

// MemoryStore is a dependency-free Event Log used by tests. The
// entry points do not fall back to it: they require DATABASE_URL and
// always use PostgresStore.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*events.Event
	insertOrder []string
}

// NewMemoryStore builds an empty in-memory Event Log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*events.Event)}
}

func (s *MemoryStore) Append(ctx context.Context, e *events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[e.EventID]; !exists {
		s.insertOrder = append(s.insertOrder, e.EventID)
	}
	cp := *e
	s.byID[e.EventID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, eventID string) (*events.Event, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[eventID]
	if !ok {
		return nil, false, nil
	}
	cp := *e
	return &cp, true, nil
}

func (s *MemoryStore) Query(ctx context.Context, filter WindowFilter) ([]*events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statusSet := map[events.Status]bool{}
	for _, st := range filter.Statuses {
		statusSet[st] = true
	}

	var out []*events.Event
	for _, id := range s.insertOrder {
		e := s.byID[id]
		if filter.MerchantID != "" && e.MerchantID != filter.MerchantID {
			continue
		}
		if filter.Country != "" && e.Country != filter.Country {
			continue
		}
		if filter.ProviderID != "" && e.ProviderID != filter.ProviderID {
			continue
		}
		if filter.Issuer != "" && (e.IssuerName == nil || *e.IssuerName != filter.Issuer) {
			continue
		}
		if !filter.Start.IsZero() && e.ReceivedAt.Before(filter.Start) {
			continue
		}
		if !filter.End.IsZero() && !e.ReceivedAt.Before(filter.End) {
			continue
		}
		if len(statusSet) > 0 && !statusSet[e.Status] {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
