package detector

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Julianlamaravilla/yuno-nebula/errs"
	"github.com/Julianlamaravilla/yuno-nebula/observability"
	"github.com/Julianlamaravilla/yuno-nebula/rules"
)

// Detector runs the periodic rule-evaluation tick (spec §4.4, §5),
// grounded on the teacher's provider.HealthPoller: an immediate first
// run followed by a ticker loop, a per-tick timeout so one slow
// dependency can't stall the cadence, and a cancel/done pair for clean
// shutdown.
type Detector struct {
	registry  *rules.Registry
	evaluator *Evaluator
	interval  time.Duration
	logger    zerolog.Logger

	onEnriching func(incidentID string)
	onInvariant func(invariant, message string)
	metrics     *observability.Metrics

	mu        sync.Mutex
	lastTick  time.Time
	tickCount int64
	skipCount int64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDetector builds a Detector. interval is TICK_INTERVAL_SECONDS
// (spec §6, default 10s).
func NewDetector(registry *rules.Registry, evaluator *Evaluator, interval time.Duration, logger zerolog.Logger) *Detector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Detector{
		registry:  registry,
		evaluator: evaluator,
		interval:  interval,
		logger:    logger.With().Str("component", "detector").Logger(),
		done:      make(chan struct{}),
	}
}

// OnEnriching registers a callback fired with an incident's ID on every
// tick in which its rule evaluates without error and the rule's active
// incident is in ENRICHING — both on the tick it entered ENRICHING and
// on later ticks while it is still there — so the caller can enqueue it
// for the Enricher worker pool without the Detector depending on that
// package directly.
func (d *Detector) OnEnriching(cb func(incidentID string)) {
	d.onEnriching = cb
}

// OnInvariantViolation registers a callback fired whenever a rule or
// recovery evaluation fails with an errs.InvariantError — a condition
// the tick loop cannot reason its way past (e.g. a corrupted incident
// transition) and that should page a human rather than just retry
// next tick.
func (d *Detector) OnInvariantViolation(cb func(invariant, message string)) {
	d.onInvariant = cb
}

// SetMetrics attaches the Prometheus collectors the tick loop reports
// through. Optional — a nil or never-called metrics field leaves the
// loop fully functional, just unobserved.
func (d *Detector) SetMetrics(m *observability.Metrics) {
	d.metrics = m
}

func (d *Detector) reportIfInvariant(err error) {
	if d.onInvariant == nil {
		return
	}
	if inv, ok := err.(*errs.InvariantError); ok {
		d.onInvariant(inv.Invariant, inv.Message)
	}
}

// Start begins the background tick loop. Call Stop to shut it down.
func (d *Detector) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	d.logger.Info().Dur("interval", d.interval).Msg("starting detector tick loop")
	go d.loop(ctx)
}

// Stop cancels the loop and waits for the in-flight tick to finish.
func (d *Detector) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	<-d.done
	d.logger.Info().Msg("detector tick loop stopped")
}

func (d *Detector) loop(ctx context.Context) {
	defer close(d.done)

	d.tick(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// tick runs one full evaluation pass: every active rule against new
// traffic, then every currently active incident against the recovery
// check. No two ticks overlap — the ticker only fires again after tick
// returns, and Stop waits for an in-flight tick via done.
func (d *Detector) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	tickStart := time.Now()
	now := tickStart.UTC()

	d.mu.Lock()
	d.lastTick = now
	d.tickCount++
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.DetectorTicksTotal.Inc()
		defer func() {
			d.metrics.DetectorTickDuration.Observe(time.Since(tickStart).Seconds())
		}()
	}

	activeRules := d.registry.Snapshot()
	rulesByID := make(map[string]*rules.Rule, len(activeRules))
	confirmedRuleIDs := make(map[string]bool, len(activeRules))
	for _, r := range activeRules {
		rulesByID[r.RuleID] = r
		confirmed, err := d.evaluator.EvaluateRule(tickCtx, r, now)
		if confirmed {
			confirmedRuleIDs[r.RuleID] = true
		}
		if err != nil {
			d.logger.Warn().Err(err).Str("rule_id", r.RuleID).Msg("rule evaluation failed")
			d.reportIfInvariant(err)
			d.mu.Lock()
			d.skipCount++
			d.mu.Unlock()
			if d.metrics != nil {
				d.metrics.DetectorSkipsTotal.Inc()
			}
			continue
		}
		if inc, ok := d.evaluator.Incidents.ActiveIncidentFor(r.RuleID, r.ScopeKey()); ok && inc.State == StateEnriching && d.onEnriching != nil {
			d.onEnriching(inc.IncidentID)
		}
	}

	for _, inc := range d.evaluator.Incidents.AllOpenOrEnrichingOrNotified() {
		if confirmedRuleIDs[inc.RuleID] {
			continue
		}
		rule, ok := rulesByID[inc.RuleID]
		if !ok {
			rule, ok = d.registry.Get(inc.RuleID)
			if !ok {
				continue
			}
		}
		if err := d.evaluator.EvaluateRecovery(tickCtx, rule, inc, now); err != nil {
			d.logger.Warn().Err(err).Str("incident_id", inc.IncidentID).Msg("recovery check failed")
			d.reportIfInvariant(err)
		}
	}

	d.reportIncidentGauges()
}

// reportIncidentGauges recomputes the per-state incident gauge from the
// current store contents. O(n) in open incident count, which is small
// relative to the tick interval.
func (d *Detector) reportIncidentGauges() {
	if d.metrics == nil {
		return
	}
	counts := map[State]int{
		StateOpen:       0,
		StateEnriching:  0,
		StateNotified:   0,
		StateRecovered:  0,
		StateSuppressed: 0,
	}
	for _, inc := range d.evaluator.Incidents.List(time.Time{}, "") {
		counts[inc.State]++
	}
	for state, count := range counts {
		d.metrics.IncidentsByState.WithLabelValues(string(state)).Set(float64(count))
	}
}

// Stats reports tick-loop health for the ambient /metrics surface.
func (d *Detector) Stats() (lastTick time.Time, ticks, skips int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastTick, d.tickCount, d.skipCount
}
