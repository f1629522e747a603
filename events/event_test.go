package events

import (
	"testing"
	"time"
)

func TestConvertToUSDKnownCurrency(t *testing.T) {
	usd, err := ConvertToUSD(Amount{Value: 100, Currency: "eur"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usd != 108 {
		t.Fatalf("expected 108, got %v", usd)
	}
}

func TestConvertToUSDUnknownCurrency(t *testing.T) {
	_, err := ConvertToUSD(Amount{Value: 10, Currency: "XYZ"})
	if err == nil {
		t.Fatal("expected an error for an unknown currency")
	}
}

func TestInboundEventValidateRequiresFields(t *testing.T) {
	in := InboundEvent{}
	if err := in.Validate(); err == nil {
		t.Fatal("expected validation error for empty event")
	}
}

func TestInboundEventValidateRejectsBadCountry(t *testing.T) {
	in := InboundEvent{
		EventID:    "evt-1",
		MerchantID: "m1",
		ProviderID: "p1",
		Country:    "usa",
		Status:     "SUCCEEDED",
	}
	if err := in.Validate(); err == nil {
		t.Fatal("expected validation error for a non-two-letter country code")
	}
}

func TestInboundEventValidateRejectsUnknownStatus(t *testing.T) {
	in := InboundEvent{
		EventID:    "evt-1",
		MerchantID: "m1",
		ProviderID: "p1",
		Country:    "US",
		Status:     "PENDING",
	}
	if err := in.Validate(); err == nil {
		t.Fatal("expected validation error for a status outside the closed set")
	}
}

func TestToEventAssignsUSDAmount(t *testing.T) {
	in := InboundEvent{
		EventID:    "evt-1",
		MerchantID: "m1",
		ProviderID: "p1",
		Country:    "US",
		Status:     "SUCCEEDED",
		Amount:     Amount{Value: 50, Currency: "USD"},
	}
	e, err := ToEvent(in, time.Now().UTC(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.AmountUSD != 50 {
		t.Fatalf("expected amount_usd 50, got %v", e.AmountUSD)
	}
	if e.Status != StatusSucceeded {
		t.Fatalf("expected status SUCCEEDED, got %v", e.Status)
	}
}

func TestStatusIsRateEligible(t *testing.T) {
	if StatusRejected.IsRateEligible() {
		t.Fatal("REJECTED must be excluded from rate-metric denominators")
	}
	if !StatusSucceeded.IsRateEligible() {
		t.Fatal("SUCCEEDED must count toward rate-metric denominators")
	}
}

func TestDimensionKeysIncludesGlobalAndNestedGranularities(t *testing.T) {
	issuer := "chase"
	e := &Event{
		MerchantID: "m1",
		Country:    "US",
		ProviderID: "p1",
		IssuerName: &issuer,
		Status:     StatusSucceeded,
	}
	keys := e.DimensionKeys()

	global := DimensionKey("", "", "", "", "status", "SUCCEEDED")
	found := false
	for _, k := range keys {
		if k == global {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected a fully global dimension key among %v", keys)
	}

	merchantScoped := DimensionKey("m1", "US", "p1", "chase", "status", "SUCCEEDED")
	found = false
	for _, k := range keys {
		if k == merchantScoped {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected an issuer-qualified dimension key among %v", keys)
	}
}

func TestDimensionKeysAddsResponseCodeOnlyForErrors(t *testing.T) {
	code := "91"
	e := &Event{
		MerchantID:   "m1",
		Country:      "US",
		ProviderID:   "p1",
		Status:       StatusError,
		ResponseCode: &code,
	}
	keys := e.DimensionKeys()
	want := DimensionKey("m1", "US", "p1", "", "response_code", "91")
	found := false
	for _, k := range keys {
		if k == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected response_code side counter for an ERROR event, got %v", keys)
	}

	succeeded := &Event{MerchantID: "m1", Country: "US", ProviderID: "p1", Status: StatusSucceeded, ResponseCode: &code}
	for _, k := range succeeded.DimensionKeys() {
		if k == want {
			t.Fatal("response_code counter must not be emitted for non-ERROR statuses")
		}
	}
}
