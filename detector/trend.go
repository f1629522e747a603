package detector

import (
	"time"

	"github.com/Julianlamaravilla/yuno-nebula/metricstore"
	"github.com/Julianlamaravilla/yuno-nebula/rules"
)

func unixMinute(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// TrendResult is the outcome of a sub-window confirmation pass (spec
// §4.4.1: anti-flap trend confirmation).
type TrendResult struct {
	Confirmed           bool
	ObservedValue       float64
	AffectedCount       int64
	TotalDenominator    int64
	TrafficSubWindows   int
	SatisfiedSubWindows int
}

// confirmTrend applies the anti-flap rule: at least 60% of the
// sub-windows that actually saw traffic must satisfy the rule's
// condition, AND the absolute adverse-outcome count over the full
// window must reach minConsecutiveErrors. Structurally grounded on a
// rolling per-bucket history evaluated bucket-by-bucket rather than a
// single whole-window average, the same shape the teacher's anomaly
// detector uses for its own rolling window.
func confirmTrend(rule *rules.Rule, numerator, denominator []metricstore.BucketValue, minConsecutiveErrors int64) TrendResult {
	denomByMinute := make(map[int64]int64, len(denominator))
	for _, b := range denominator {
		denomByMinute[b.Minute.Unix()] = b.Value
	}

	var (
		trafficSubWindows   int
		satisfiedSubWindows int
		totalNumerator      int64
		totalDenominator    int64
	)

	for _, n := range numerator {
		d := denomByMinute[n.Minute.Unix()]
		totalNumerator += n.Value
		totalDenominator += d
		if d == 0 {
			continue
		}
		trafficSubWindows++

		var observed float64
		if rule.MetricType == rules.MetricTotalVolume {
			observed = float64(n.Value)
		} else {
			observed = float64(n.Value) / float64(d)
		}
		if rule.Operator.Evaluate(observed, rule.Threshold) {
			satisfiedSubWindows++
		}
	}

	var overallObserved float64
	switch {
	case rule.MetricType == rules.MetricTotalVolume:
		overallObserved = float64(totalNumerator)
	case totalDenominator == 0:
		overallObserved = 0
	default:
		overallObserved = float64(totalNumerator) / float64(totalDenominator)
	}

	result := TrendResult{
		ObservedValue:       overallObserved,
		AffectedCount:       totalNumerator,
		TotalDenominator:    totalDenominator,
		TrafficSubWindows:   trafficSubWindows,
		SatisfiedSubWindows: satisfiedSubWindows,
	}

	if trafficSubWindows == 0 {
		return result
	}

	ratio := float64(satisfiedSubWindows) / float64(trafficSubWindows)
	result.Confirmed = ratio >= 0.6 && totalNumerator >= minConsecutiveErrors
	return result
}

// mergeSeries sums several per-minute series into one, used to build
// the rate-eligible denominator from its constituent status counters.
func mergeSeries(serieses ...[]metricstore.BucketValue) []metricstore.BucketValue {
	byMinute := make(map[int64]int64)
	order := make([]int64, 0)
	for _, series := range serieses {
		for _, b := range series {
			key := b.Minute.Unix()
			if _, seen := byMinute[key]; !seen {
				order = append(order, key)
			}
			byMinute[key] += b.Value
		}
	}
	out := make([]metricstore.BucketValue, 0, len(order))
	for _, key := range order {
		out = append(out, metricstore.BucketValue{Minute: unixMinute(key), Value: byMinute[key]})
	}
	return out
}

