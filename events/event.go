// Package events defines the Event record, its validation contract, and
// the currency conversion used to produce amount_usd at ingest time.
package events

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/Julianlamaravilla/yuno-nebula/errs"
)

// Status is the closed set of transaction outcomes (spec §3).
type Status string

const (
	StatusCreated  Status = "CREATED"
	StatusSucceeded Status = "SUCCEEDED"
	StatusDeclined Status = "DECLINED"
	StatusError    Status = "ERROR"
	StatusRejected Status = "REJECTED"
)

var validStatuses = map[Status]bool{
	StatusCreated:   true,
	StatusSucceeded: true,
	StatusDeclined:  true,
	StatusError:     true,
	StatusRejected:  true,
}

// IsRateEligible reports whether events in this status count toward the
// denominator of rate metrics. REJECTED is excluded (spec §9 Open
// Question, resolved with the spec's own stated default).
func (s Status) IsRateEligible() bool {
	return s != StatusRejected
}

// Amount is the inbound transaction amount before USD conversion.
type Amount struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// Event is the immutable record the Ingestor persists (spec §3).
type Event struct {
	EventID             string          `json:"event_id"`
	ReceivedAt          time.Time       `json:"received_at"`
	MerchantID          string          `json:"merchant_id"`
	ProviderID          string          `json:"provider_id"`
	Country             string          `json:"country"`
	Status              Status          `json:"status"`
	SubStatus           *string         `json:"sub_status,omitempty"`
	AmountUSD           float64         `json:"amount_usd"`
	IssuerName          *string         `json:"issuer_name,omitempty"`
	CardBrand           string          `json:"card_brand,omitempty"`
	BIN                 string          `json:"bin,omitempty"`
	ResponseCode        *string         `json:"response_code,omitempty"`
	MerchantAdviceCode  *string         `json:"merchant_advice_code,omitempty"`
	LatencyMS           int64           `json:"latency_ms"`
	RawPayload          json.RawMessage `json:"raw_payload"`
}

// InboundEvent is the wire shape a producer posts to the Ingestor,
// before server-side timestamp assignment and currency conversion.
type InboundEvent struct {
	EventID            string  `json:"event_id"`
	MerchantID         string  `json:"merchant_id"`
	ProviderID         string  `json:"provider_id"`
	Country            string  `json:"country"`
	Status             string  `json:"status"`
	SubStatus          *string `json:"sub_status,omitempty"`
	Amount             Amount  `json:"amount"`
	IssuerName         *string `json:"issuer_name,omitempty"`
	CardBrand          string  `json:"card_brand,omitempty"`
	BIN                string  `json:"bin,omitempty"`
	ResponseCode       *string `json:"response_code,omitempty"`
	MerchantAdviceCode *string `json:"merchant_advice_code,omitempty"`
	LatencyMS          int64   `json:"latency_ms"`
}

// currencyToUSD is the static conversion table referenced by spec §4.1
// and left unresolved by spec §9 (periodic refresh is a production
// concern outside this core).
var currencyToUSD = map[string]float64{
	"USD": 1.0,
	"EUR": 1.08,
	"GBP": 1.27,
	"JPY": 0.0067,
	"CAD": 0.73,
	"AUD": 0.66,
	"BRL": 0.17,
	"MXN": 0.059,
	"INR": 0.012,
	"SGD": 0.74,
}

// ConvertToUSD converts an Amount to USD using the static table.
// Returns a ValidationError for unknown currencies (spec §4.1).
func ConvertToUSD(a Amount) (float64, error) {
	rate, ok := currencyToUSD[strings.ToUpper(a.Currency)]
	if !ok {
		return 0, errs.NewValidation("amount.currency", "unknown currency: "+a.Currency)
	}
	usd := a.Value * rate
	if math.IsInf(usd, 0) || math.IsNaN(usd) || usd < 0 {
		return 0, errs.NewValidation("amount.value", "amount does not convert to a finite non-negative USD value")
	}
	return usd, nil
}

// Validate checks the inbound event against the ingest contract (spec
// §4.1). On failure the event must not be written anywhere.
func (in *InboundEvent) Validate() error {
	if strings.TrimSpace(in.EventID) == "" {
		return errs.NewValidation("event_id", "required")
	}
	if strings.TrimSpace(in.MerchantID) == "" {
		return errs.NewValidation("merchant_id", "required")
	}
	if strings.TrimSpace(in.ProviderID) == "" {
		return errs.NewValidation("provider_id", "required")
	}
	if len(in.Country) != 2 || strings.ToUpper(in.Country) != in.Country {
		return errs.NewValidation("country", "must be a two-letter uppercase ISO code")
	}
	if !validStatuses[Status(in.Status)] {
		return errs.NewValidation("status", "not in the closed status set")
	}
	if in.LatencyMS < 0 {
		return errs.NewValidation("latency_ms", "must be non-negative")
	}
	return nil
}

// ToEvent builds the persisted Event from a validated InboundEvent,
// assigning the server-side timestamp and USD amount. raw preserves the
// original payload verbatim (spec §3).
func ToEvent(in InboundEvent, receivedAt time.Time, raw json.RawMessage) (*Event, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	usd, err := ConvertToUSD(in.Amount)
	if err != nil {
		return nil, err
	}
	return &Event{
		EventID:            in.EventID,
		ReceivedAt:         receivedAt,
		MerchantID:         in.MerchantID,
		ProviderID:         in.ProviderID,
		Country:            in.Country,
		Status:             Status(in.Status),
		SubStatus:          in.SubStatus,
		AmountUSD:          usd,
		IssuerName:         in.IssuerName,
		CardBrand:          in.CardBrand,
		BIN:                in.BIN,
		ResponseCode:       in.ResponseCode,
		MerchantAdviceCode: in.MerchantAdviceCode,
		LatencyMS:          in.LatencyMS,
		RawPayload:         raw,
	}, nil
}
