// Package eventlog implements the durable, append-only Event Log (spec
// §3, §6): the source of truth an Event can always be recovered from
// byte-for-byte by event_id, and the only place wide ad-hoc queries
// (e.g. "sum amount_usd for ERROR events in a dimension over a window")
// are answered from.
package eventlog

import (
	"context"
	"time"

	"github.com/Julianlamaravilla/yuno-nebula/events"
)

// WindowFilter scopes a query to one traffic slice (spec §4.4.1: revenue
// at risk, response-code breakdown). Empty fields are unfiltered.
type WindowFilter struct {
	MerchantID string
	Country    string
	ProviderID string
	Issuer     string
	Statuses   []events.Status
	Start      time.Time
	End        time.Time
}

// Store is the Event Log contract.
type Store interface {
	// Append durably records e. Appends are totally ordered per
	// ingestor instance (spec §5).
	Append(ctx context.Context, e *events.Event) error

	// Get returns the event with the given ID, if present.
	Get(ctx context.Context, eventID string) (*events.Event, bool, error)

	// Query returns events matching filter, used by the Detector to
	// compute revenue-at-risk and response-code breakdowns (spec
	// §4.4.1) — never by the Ingestor's hot path.
	Query(ctx context.Context, filter WindowFilter) ([]*events.Event, error)

	// Close releases underlying resources.
	Close() error
}
