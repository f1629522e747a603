package events

import "fmt"

// DimensionKey builds the canonical bucket key for a filter tuple plus a
// trailing kind/value pair (either "status/<STATUS>" or
// "response_code/<CODE>"). Empty segments render as "_" (wildcard /
// unset), so sibling keys at different granularities share a common
// textual shape the Metric Store can pattern-match over (spec §4.1).
func DimensionKey(merchantID, country, provider, issuer, kind, value string) string {
	seg := func(s string) string {
		if s == "" {
			return "_"
		}
		return s
	}
	return fmt.Sprintf("merchant/%s/country/%s/provider/%s/issuer/%s/%s/%s",
		seg(merchantID), seg(country), seg(provider), seg(issuer), kind, value)
}

// DimensionKeys returns every pre-declared dimension key an event
// increments on ingest (spec §4.1): a fully global status view (backing
// GET /metrics/recent), three nested merchant, merchant/country and
// merchant/country/provider views by status, a merchant-wildcarded
// country/provider view by status, a merchant/country/provider/issuer
// view by status when the event carries an issuer, plus a response-code
// side counter for ERROR events that carry a response code.
func (e *Event) DimensionKeys() []string {
	status := string(e.Status)
	issuer := ""
	if e.IssuerName != nil {
		issuer = *e.IssuerName
	}

	keys := []string{
		DimensionKey("", "", "", "", "status", status),
		DimensionKey(e.MerchantID, "", "", "", "status", status),
		DimensionKey(e.MerchantID, e.Country, "", "", "status", status),
		DimensionKey(e.MerchantID, e.Country, e.ProviderID, "", "status", status),
		DimensionKey("", e.Country, e.ProviderID, "", "status", status),
	}
	if issuer != "" {
		keys = append(keys, DimensionKey(e.MerchantID, e.Country, e.ProviderID, issuer, "status", status))
	}
	if e.Status == StatusError && e.ResponseCode != nil && *e.ResponseCode != "" {
		keys = append(keys, DimensionKey(e.MerchantID, e.Country, e.ProviderID, "", "response_code", *e.ResponseCode))
	}
	return keys
}
