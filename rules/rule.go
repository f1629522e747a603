// Package rules implements the Rule Registry: CRUD over user-defined
// alert conditions and a periodically refreshed read-only snapshot the
// Detector evaluates against (spec §4.3).
package rules

import (
	"time"

	"github.com/Julianlamaravilla/yuno-nebula/errs"
	"github.com/Julianlamaravilla/yuno-nebula/events"
)

// MetricType is the tagged variant spec §9 calls for instead of dynamic
// dispatch: every rule discriminates on exactly one of these four.
type MetricType string

const (
	MetricApprovalRate MetricType = "APPROVAL_RATE"
	MetricErrorRate    MetricType = "ERROR_RATE"
	MetricDeclineRate  MetricType = "DECLINE_RATE"
	MetricTotalVolume  MetricType = "TOTAL_VOLUME"
)

var validMetricTypes = map[MetricType]bool{
	MetricApprovalRate: true,
	MetricErrorRate:    true,
	MetricDeclineRate:  true,
	MetricTotalVolume:  true,
}

// Operator is the comparison a Rule applies to its observed value.
type Operator string

const (
	OpLessThan      Operator = "<"
	OpGreaterThan   Operator = ">"
	OpLessOrEqual   Operator = "<="
	OpGreaterOrEqual Operator = ">="
)

// Evaluate applies the operator to (observed, threshold).
func (o Operator) Evaluate(observed, threshold float64) bool {
	switch o {
	case OpLessThan:
		return observed < threshold
	case OpGreaterThan:
		return observed > threshold
	case OpLessOrEqual:
		return observed <= threshold
	case OpGreaterOrEqual:
		return observed >= threshold
	default:
		return false
	}
}

var validOperators = map[Operator]bool{
	OpLessThan:       true,
	OpGreaterThan:    true,
	OpLessOrEqual:    true,
	OpGreaterOrEqual: true,
}

// Severity is a Rule's configured alert severity. Detector may promote
// WARNING to CRITICAL at evaluation time (spec §4.4.1) without
// mutating the rule.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Rule is a user-defined alert condition (spec §3).
type Rule struct {
	RuleID          string     `json:"rule_id"`
	MerchantID      string     `json:"merchant_id,omitempty"` // "" = global
	Country         string     `json:"country,omitempty"`
	ProviderID      string     `json:"provider_id,omitempty"`
	Issuer          string     `json:"issuer,omitempty"`
	MetricType      MetricType `json:"metric_type"`
	Operator        Operator   `json:"operator"`
	Threshold       float64    `json:"threshold"`
	MinTransactions int64      `json:"min_transactions"`
	HasTimeWindow   bool       `json:"has_time_window"`
	StartHourUTC    int        `json:"start_hour_utc,omitempty"`
	EndHourUTC      int        `json:"end_hour_utc,omitempty"`
	Severity        Severity   `json:"severity"`
	Active          bool       `json:"active"`
	CreatedAt       time.Time  `json:"created_at"`
}

// CreateRequest is the wire shape for POST /rules.
type CreateRequest struct {
	MerchantID      string     `json:"merchant_id,omitempty"`
	Country         string     `json:"country,omitempty"`
	ProviderID      string     `json:"provider_id,omitempty"`
	Issuer          string     `json:"issuer,omitempty"`
	MetricType      MetricType `json:"metric_type"`
	Operator        Operator   `json:"operator"`
	Threshold       float64    `json:"threshold"`
	MinTransactions int64      `json:"min_transactions"`
	HasTimeWindow   bool       `json:"has_time_window"`
	StartHourUTC    int        `json:"start_hour_utc,omitempty"`
	EndHourUTC      int        `json:"end_hour_utc,omitempty"`
	Severity        Severity   `json:"severity"`
}

// Validate checks a create request against the Rule contract.
func (r *CreateRequest) Validate() error {
	if !validMetricTypes[r.MetricType] {
		return errs.NewValidation("metric_type", "must be one of APPROVAL_RATE, ERROR_RATE, DECLINE_RATE, TOTAL_VOLUME")
	}
	if !validOperators[r.Operator] {
		return errs.NewValidation("operator", "must be one of <, >, <=, >=")
	}
	if r.MinTransactions < 0 {
		return errs.NewValidation("min_transactions", "must be non-negative")
	}
	if r.Severity != SeverityWarning && r.Severity != SeverityCritical {
		return errs.NewValidation("severity", "must be WARNING or CRITICAL")
	}
	if r.HasTimeWindow {
		if r.StartHourUTC < 0 || r.StartHourUTC > 23 || r.EndHourUTC < 0 || r.EndHourUTC > 23 {
			return errs.NewValidation("start_hour_utc/end_hour_utc", "must be in [0,23]")
		}
	}
	if r.MetricType != MetricTotalVolume && (r.Threshold < 0 || r.Threshold > 1) {
		return errs.NewValidation("threshold", "rate metrics require a threshold in [0,1]")
	}
	return nil
}

// InWindow reports whether hourUTC falls within the rule's optional
// time-of-day window (spec §4.4, guard clause 2). A rule with no
// configured window is always in-window.
func (r *Rule) InWindow(hourUTC int) bool {
	if !r.HasTimeWindow {
		return true
	}
	if r.StartHourUTC <= r.EndHourUTC {
		return hourUTC >= r.StartHourUTC && hourUTC < r.EndHourUTC
	}
	// Wrapping window, e.g. [22, 6).
	return hourUTC >= r.StartHourUTC || hourUTC < r.EndHourUTC
}

// DimensionKey returns the Metric Store key the Ingestor's
// events.DimensionKeys() pre-declared for this rule's filter scope and
// status, picking the most specific written granularity that matches
// which fields are set. Issuer is used only when MerchantID, Country
// and ProviderID are all set. An empty MerchantID with both Country and
// ProviderID set scopes the rule to the cross-merchant country+provider
// aggregate; an empty MerchantID otherwise falls through to the fully
// global key, and Country alone (without MerchantID) is not keyed on.
func (r *Rule) DimensionKey(status string) string {
	switch {
	case r.Issuer != "" && r.MerchantID != "" && r.Country != "" && r.ProviderID != "":
		return events.DimensionKey(r.MerchantID, r.Country, r.ProviderID, r.Issuer, "status", status)
	case r.MerchantID == "" && r.Country != "" && r.ProviderID != "":
		return events.DimensionKey("", r.Country, r.ProviderID, "", "status", status)
	case r.MerchantID != "" && r.Country != "" && r.ProviderID != "":
		return events.DimensionKey(r.MerchantID, r.Country, r.ProviderID, "", "status", status)
	case r.MerchantID != "" && r.Country != "":
		return events.DimensionKey(r.MerchantID, r.Country, "", "", "status", status)
	default:
		return events.DimensionKey(r.MerchantID, "", "", "", "status", status)
	}
}

// ScopeKey returns a stable identifier for this rule's (merchant,
// country, provider, issuer) scope, used as the dimension_key half of
// the Incident Store's (rule_id, dimension_key) dedup key (spec §8).
func (r *Rule) ScopeKey() string {
	return events.DimensionKey(r.MerchantID, r.Country, r.ProviderID, r.Issuer, "scope", string(r.MetricType))
}

// ResponseCodeDimensionKey returns the side-counter key for ERROR
// events carrying responseCode within this rule's scope, mirroring the
// response_code key events.DimensionKeys() writes.
func (r *Rule) ResponseCodeDimensionKey(responseCode string) string {
	return events.DimensionKey(r.MerchantID, r.Country, r.ProviderID, "", "response_code", responseCode)
}
