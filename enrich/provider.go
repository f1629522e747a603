// Package enrich implements the LLM Enricher: a bounded worker pool
// that drains ENRICHING incidents, asks a language model to explain
// the root cause in plain language, and writes the result back so the
// incident can transition to NOTIFIED (spec §4.5).
package enrich

import (
	"context"
	"time"
)

// Provider is the narrow connector interface the Enricher needs,
// trimmed from the teacher's full chat/streaming/embeddings Provider
// down to the single call this system's use case requires: take a
// prompt, return a plain-text explanation.
type Provider interface {
	// Name identifies the provider for logging and metrics.
	Name() string

	// Explain asks the model to explain an incident from prompt and
	// returns its plain-text answer.
	Explain(ctx context.Context, prompt string) (string, error)

	// HealthCheck reports whether the provider is currently reachable.
	HealthCheck(ctx context.Context) HealthStatus
}

// HealthStatus mirrors the teacher's provider.HealthStatus shape.
type HealthStatus struct {
	Healthy   bool
	Latency   time.Duration
	LastCheck time.Time
	Error     string
}

// NoneProvider is used when LLM_PROVIDER is neither "gemini" nor
// "openai" (e.g. "none"): every Explain call fails, so each incident
// reaches NOTIFIED with enrichment_status "failed" once the Enricher's
// retries are used up, rather than the Enricher blocking incidents from
// ever leaving ENRICHING (spec §4.5: enrichment failure must not block
// notification).
type NoneProvider struct{}

func (NoneProvider) Name() string { return "none" }

func (NoneProvider) Explain(ctx context.Context, prompt string) (string, error) {
	return "", errNoProviderConfigured
}

func (NoneProvider) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{Healthy: false, LastCheck: time.Now(), Error: "no LLM provider configured"}
}

var errNoProviderConfigured = providerError("no LLM provider configured")

type providerError string

func (e providerError) Error() string { return string(e) }
