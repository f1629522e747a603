package rules

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Julianlamaravilla/yuno-nebula/errs"
)

// Registry is a mutex-guarded CRUD store over Rule entities, grounded
// on the teacher's experiment engine (routing/experiment.go): validate
// on create, soft-delete via a boolean flag, never hard-delete.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]*Rule
	seq   int64

	snapshot atomic.Pointer[[]*Rule]

	logger zerolog.Logger
}

// NewRegistry builds an empty Rule Registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	reg := &Registry{
		rules:  make(map[string]*Rule),
		logger: logger.With().Str("component", "rule_registry").Logger(),
	}
	empty := []*Rule{}
	reg.snapshot.Store(&empty)
	return reg
}

// Create validates and stores a new active rule, returning its
// assigned rule_id.
func (r *Registry) Create(req CreateRequest) (*Rule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	rule := &Rule{
		RuleID:          fmt.Sprintf("rule-%d", r.seq),
		MerchantID:      req.MerchantID,
		Country:         req.Country,
		ProviderID:      req.ProviderID,
		Issuer:          req.Issuer,
		MetricType:      req.MetricType,
		Operator:        req.Operator,
		Threshold:       req.Threshold,
		MinTransactions: req.MinTransactions,
		HasTimeWindow:   req.HasTimeWindow,
		StartHourUTC:    req.StartHourUTC,
		EndHourUTC:      req.EndHourUTC,
		Severity:        req.Severity,
		Active:          true,
		CreatedAt:       time.Now().UTC(),
	}
	r.rules[rule.RuleID] = rule
	return rule, nil
}

// List returns every rule, active and soft-deleted (for operator
// visibility — the Detector uses Snapshot instead).
func (r *Registry) List() []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		cp := *rule
		out = append(out, &cp)
	}
	return out
}

// Get returns one rule by ID.
func (r *Registry) Get(ruleID string) (*Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[ruleID]
	if !ok {
		return nil, false
	}
	cp := *rule
	return &cp, true
}

// SoftDelete sets active=false. Historical incidents keep referencing
// rule_id regardless (spec §4.3).
func (r *Registry) SoftDelete(ruleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[ruleID]
	if !ok {
		return errs.NewValidation("rule_id", "not found")
	}
	rule.Active = false
	return nil
}

// Snapshot returns the most recently refreshed read-only slice of
// active rules. The Detector only ever reads this, never the live map,
// so a refresh in progress never blocks evaluation (spec §4.3, §5).
func (r *Registry) Snapshot() []*Rule {
	return *r.snapshot.Load()
}

func (r *Registry) refresh() {
	r.mu.RLock()
	active := make([]*Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if rule.Active {
			cp := *rule
			active = append(active, &cp)
		}
	}
	r.mu.RUnlock()
	r.snapshot.Store(&active)
}

// SnapshotRefresher periodically swaps the Registry's read-only
// snapshot, grounded on the teacher's provider/modelsync.go
// poll-and-replace pattern.
type SnapshotRefresher struct {
	registry *Registry
	interval time.Duration
	logger   zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSnapshotRefresher builds a refresher at the given interval
// (spec §6: RULE_REFRESH_SECONDS, default 10s).
func NewSnapshotRefresher(registry *Registry, interval time.Duration, logger zerolog.Logger) *SnapshotRefresher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &SnapshotRefresher{
		registry: registry,
		interval: interval,
		logger:   logger.With().Str("component", "rule_snapshot_refresher").Logger(),
		done:     make(chan struct{}),
	}
}

// Start begins the background refresh loop; call Stop to shut it down.
func (s *SnapshotRefresher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.loop(ctx)
}

// Stop cancels the loop and waits for it to exit.
func (s *SnapshotRefresher) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *SnapshotRefresher) loop(ctx context.Context) {
	defer close(s.done)
	s.registry.refresh()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.registry.refresh()
		}
	}
}
