package detector

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Julianlamaravilla/yuno-nebula/eventlog"
	"github.com/Julianlamaravilla/yuno-nebula/events"
	"github.com/Julianlamaravilla/yuno-nebula/metricstore"
	"github.com/Julianlamaravilla/yuno-nebula/rules"
)

// rateEligibleStatuses backs the denominator for every rate metric and
// the transaction floor guard (spec §4.4.1 guard clause 1).
var rateEligibleStatuses = []events.Status{
	events.StatusCreated,
	events.StatusSucceeded,
	events.StatusDeclined,
	events.StatusError,
}

// numeratorStatus returns the single status that counts toward a
// rule's observed rate. TOTAL_VOLUME has no single numerator status;
// its numerator is the full rate-eligible denominator.
func numeratorStatus(metricType rules.MetricType) (events.Status, bool) {
	switch metricType {
	case rules.MetricApprovalRate:
		return events.StatusSucceeded, true
	case rules.MetricErrorRate:
		return events.StatusError, true
	case rules.MetricDeclineRate:
		return events.StatusDeclined, true
	default:
		return "", false
	}
}

// Evaluator ties the Metric Store, Event Log, and Incident Store
// together into the per-rule per-tick decision described in spec
// §4.4.1, structurally grounded on the teacher's reservation workflow
// (metering.ReservationStore) for its guard-then-transition shape.
type Evaluator struct {
	Metrics          metricstore.Store
	Log              eventlog.Store
	Incidents        *IncidentStore
	WindowMinutes    int
	MinConsecutive   int64
	RecoveryThresh   int
	CooldownSeconds  int
	Logger           zerolog.Logger
}

// EvaluateRule runs one rule's open/update/suppress decision for the
// current tick. It never touches incidents for other rules. The
// returned bool reports whether the rule's trend was confirmed
// (firing) this tick, so the tick loop can skip the independent
// recovery check for this rule this tick (spec §4.4.2: recovery only
// applies "in the non-firing direction" — a rule confirmed as still
// breaching must not also be evaluated for recovery in the same tick).
func (e *Evaluator) EvaluateRule(ctx context.Context, rule *rules.Rule, now time.Time) (bool, error) {
	if !rule.InWindow(now.UTC().Hour()) {
		return false, nil
	}

	windowMinutes := e.WindowMinutes
	if windowMinutes <= 0 {
		windowMinutes = 10
	}
	start := now.Add(-time.Duration(windowMinutes) * time.Minute)

	denomSeries := make([][]metricstore.BucketValue, 0, len(rateEligibleStatuses))
	for _, st := range rateEligibleStatuses {
		series, err := e.Metrics.SeriesSum(ctx, rule.DimensionKey(string(st)), start, now)
		if err != nil {
			return false, err
		}
		denomSeries = append(denomSeries, series)
	}
	denominator := mergeSeries(denomSeries...)

	var numerator []metricstore.BucketValue
	if rule.MetricType == rules.MetricTotalVolume {
		numerator = denominator
	} else {
		numStatus, _ := numeratorStatus(rule.MetricType)
		series, err := e.Metrics.SeriesSum(ctx, rule.DimensionKey(string(numStatus)), start, now)
		if err != nil {
			return false, err
		}
		numerator = series
	}

	trend := confirmTrend(rule, numerator, denominator, e.MinConsecutive)

	if trend.TotalDenominator < rule.MinTransactions {
		return false, nil
	}

	existing, exists := e.Incidents.ActiveIncidentFor(rule.RuleID, rule.ScopeKey())
	if !trend.Confirmed {
		return false, nil
	}

	if exists {
		revenueAtRisk, breakdown, suggestedAction, err := e.computeEnrichmentInputs(ctx, rule, start, now)
		if err != nil {
			return true, err
		}
		if err := e.Incidents.UpdateObserved(existing.IncidentID, trend.ObservedValue, trend.AffectedCount, revenueAtRisk, breakdown, now); err != nil {
			return true, err
		}
		if existing.State == StateOpen {
			if err := e.Incidents.TransitionToEnriching(existing.IncidentID, revenueAtRisk, breakdown, suggestedAction, now); err != nil {
				return true, err
			}
		}
		return true, nil
	}

	if e.Incidents.RecentlyClosed(rule.RuleID, rule.ScopeKey(), time.Duration(e.CooldownSeconds)*time.Second, now) {
		e.Incidents.RecordSuppressed(rule.RuleID, rule.ScopeKey(), now)
		return true, nil
	}

	severity := string(rule.Severity)
	if rule.MetricType == rules.MetricErrorRate && trend.ObservedValue > 0.30 {
		severity = string(rules.SeverityCritical)
	}

	root := RootCause{
		MerchantID: rule.MerchantID,
		Country:    rule.Country,
		ProviderID: rule.ProviderID,
		Issuer:     rule.Issuer,
		MetricType: string(rule.MetricType),
	}

	inc, err := e.Incidents.Open(rule.RuleID, rule.ScopeKey(), severity, trend.ObservedValue, trend.AffectedCount, root, 0, now)
	if err != nil {
		return true, err
	}

	revenueAtRisk, breakdown, suggestedAction, err := e.computeEnrichmentInputs(ctx, rule, start, now)
	if err != nil {
		e.Logger.Warn().Err(err).Str("incident_id", inc.IncidentID).Msg("enrichment input computation failed, opening incident without them")
		return true, nil
	}
	return true, e.Incidents.TransitionToEnriching(inc.IncidentID, revenueAtRisk, breakdown, suggestedAction, now)
}

// EvaluateRecovery checks whether an active incident's scope has
// returned to a healthy run of consecutive non-adverse events (spec
// §4.4.2) and, if so, transitions it to RECOVERED.
func (e *Evaluator) EvaluateRecovery(ctx context.Context, rule *rules.Rule, incident *Incident, now time.Time) error {
	recovered, err := checkRecovery(ctx, e.Log, rule, e.RecoveryThresh, now)
	if err != nil {
		return err
	}
	if !recovered {
		return nil
	}
	return e.Incidents.TransitionToRecovered(incident.IncidentID, now)
}

// computeEnrichmentInputs derives revenue at risk, the response-code
// breakdown, and a suggested action from the Event Log window (spec
// §4.4.1). The merchant_advice_code majority-vote override replaces
// the generic suggestion with "Pause Traffic" when more than half of
// the adverse events in scope carry the TRY_AGAIN_LATER advice code;
// no other advice code overrides it.
func (e *Evaluator) computeEnrichmentInputs(ctx context.Context, rule *rules.Rule, start, end time.Time) (float64, map[string]int64, string, error) {
	adverseStatuses := adverseStatusesFor(rule.MetricType)
	rows, err := e.Log.Query(ctx, eventlog.WindowFilter{
		MerchantID: rule.MerchantID,
		Country:    rule.Country,
		ProviderID: rule.ProviderID,
		Issuer:     rule.Issuer,
		Statuses:   adverseStatuses,
		Start:      start,
		End:        end,
	})
	if err != nil {
		return 0, nil, "", err
	}

	var revenueAtRisk float64
	breakdown := make(map[string]int64)
	adviceVotes := make(map[string]int64)
	var adverseCount int64

	for _, ev := range rows {
		revenueAtRisk += ev.AmountUSD
		adverseCount++
		if ev.Status == events.StatusError && ev.ResponseCode != nil && *ev.ResponseCode != "" {
			breakdown[*ev.ResponseCode]++
		}
		if ev.MerchantAdviceCode != nil && *ev.MerchantAdviceCode != "" {
			adviceVotes[*ev.MerchantAdviceCode]++
		}
	}

	suggestedAction := suggestedActionForResponseCode(majorityCode(breakdown))
	if adverseCount > 0 && float64(adviceVotes["TRY_AGAIN_LATER"])/float64(adverseCount) > 0.5 {
		suggestedAction = "Pause Traffic"
	}

	return revenueAtRisk, breakdown, suggestedAction, nil
}

func adverseStatusesFor(metricType rules.MetricType) []events.Status {
	switch metricType {
	case rules.MetricApprovalRate:
		return []events.Status{events.StatusDeclined, events.StatusError}
	case rules.MetricErrorRate:
		return []events.Status{events.StatusError}
	case rules.MetricDeclineRate:
		return []events.Status{events.StatusDeclined}
	default:
		return rateEligibleStatuses
	}
}

// majorityCode returns the most frequent key in a code->count map,
// breaking ties deterministically by code string so repeated calls
// over the same breakdown never flap.
func majorityCode(votes map[string]int64) string {
	var topCode string
	var topCount int64
	codes := make([]string, 0, len(votes))
	for code := range votes {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if votes[code] > topCount {
			topCode = code
			topCount = votes[code]
		}
	}
	return topCode
}

// suggestedActionForResponseCode applies spec §4.4.1's literal
// response-code table to the window's most frequent response code.
func suggestedActionForResponseCode(code string) string {
	switch code {
	case "502", "503", "504":
		return "Increase timeout or failover"
	case "500":
		return "Contact provider"
	default:
		return "Pause traffic temporarily"
	}
}
