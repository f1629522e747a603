package detector

import (
	"context"
	"time"

	"github.com/Julianlamaravilla/yuno-nebula/eventlog"
	"github.com/Julianlamaravilla/yuno-nebula/events"
	"github.com/Julianlamaravilla/yuno-nebula/rules"
)

// isAdverse reports whether status counts against the given rule's
// metric as an unwanted outcome, used by the recovery check to walk
// recent events in reverse chronological order (spec §4.4.2).
func isAdverse(metricType rules.MetricType, status events.Status) bool {
	switch metricType {
	case rules.MetricApprovalRate:
		return status != events.StatusSucceeded && status.IsRateEligible()
	case rules.MetricErrorRate:
		return status == events.StatusError
	case rules.MetricDeclineRate:
		return status == events.StatusDeclined
	default:
		return false
	}
}

// checkRecovery reports whether the most recent `threshold` rate-
// eligible events in the rule's scope are all non-adverse, reading the
// Event Log in reverse chronological order (spec §4.4.2: "N
// consecutive non-adverse events"). TOTAL_VOLUME rules have no
// adverse-event notion, so this always returns false for them; the
// ordinary evaluate path does not close an incident when its trend
// stops confirming either, so a TOTAL_VOLUME incident is never moved to
// RECOVERED.
func checkRecovery(ctx context.Context, log eventlog.Store, rule *rules.Rule, threshold int, now time.Time) (bool, error) {
	if rule.MetricType == rules.MetricTotalVolume {
		return false, nil
	}
	if threshold <= 0 {
		threshold = 1
	}

	lookback := now.Add(-6 * time.Hour)
	recent, err := log.Query(ctx, eventlog.WindowFilter{
		MerchantID: rule.MerchantID,
		Country:    rule.Country,
		ProviderID: rule.ProviderID,
		Issuer:     rule.Issuer,
		Start:      lookback,
		End:        now,
	})
	if err != nil {
		return false, err
	}

	var consecutive int
	for _, e := range recent {
		if !e.Status.IsRateEligible() {
			continue
		}
		if isAdverse(rule.MetricType, e.Status) {
			return false, nil
		}
		consecutive++
		if consecutive >= threshold {
			return true, nil
		}
	}
	return false, nil
}
