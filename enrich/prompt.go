package enrich

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Julianlamaravilla/yuno-nebula/detector"
)

// BuildPrompt renders an incident's scope and metrics into the prompt
// sent to the LLM (spec §4.5): root cause, observed value, affected
// transaction count, revenue at risk, and the response-code breakdown
// if there is one.
func BuildPrompt(inc *detector.Incident) string {
	var b strings.Builder
	b.WriteString("A payment telemetry alert fired. Explain the likely root cause in two or three sentences for an on-call payments engineer, and do not repeat the raw numbers back verbatim.\n\n")

	rc := inc.RootCause
	fmt.Fprintf(&b, "Metric: %s\n", rc.MetricType)
	if rc.MerchantID != "" {
		fmt.Fprintf(&b, "Merchant: %s\n", rc.MerchantID)
	}
	if rc.Country != "" {
		fmt.Fprintf(&b, "Country: %s\n", rc.Country)
	}
	if rc.ProviderID != "" {
		fmt.Fprintf(&b, "Provider: %s\n", rc.ProviderID)
	}
	if rc.Issuer != "" {
		fmt.Fprintf(&b, "Issuer: %s\n", rc.Issuer)
	}
	fmt.Fprintf(&b, "Observed value: %.4f\n", inc.ObservedValue)
	fmt.Fprintf(&b, "Affected transactions: %d\n", inc.AffectedTransactions)
	fmt.Fprintf(&b, "Revenue at risk (USD): %.2f\n", inc.RevenueAtRiskUSD)
	fmt.Fprintf(&b, "Severity: %s\n", inc.Severity)

	if len(inc.ResponseCodeBreakdown) > 0 {
		codes := make([]string, 0, len(inc.ResponseCodeBreakdown))
		for code := range inc.ResponseCodeBreakdown {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		b.WriteString("Response code breakdown:\n")
		for _, code := range codes {
			fmt.Fprintf(&b, "  %s: %d\n", code, inc.ResponseCodeBreakdown[code])
		}
	}

	if inc.SuggestedAction != "" {
		fmt.Fprintf(&b, "Candidate action already identified: %s\n", inc.SuggestedAction)
	}

	return b.String()
}
