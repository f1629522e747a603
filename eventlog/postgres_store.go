package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/Julianlamaravilla/yuno-nebula/errs"
	"github.com/Julianlamaravilla/yuno-nebula/events"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS events (
	event_id             TEXT PRIMARY KEY,
	received_at          TIMESTAMPTZ NOT NULL,
	merchant_id          TEXT NOT NULL,
	provider_id          TEXT NOT NULL,
	country              TEXT NOT NULL,
	status               TEXT NOT NULL,
	sub_status           TEXT,
	amount_usd           DOUBLE PRECISION NOT NULL,
	issuer_name          TEXT,
	card_brand           TEXT,
	bin                  TEXT,
	response_code        TEXT,
	merchant_advice_code TEXT,
	latency_ms           BIGINT NOT NULL,
	raw_payload          JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS events_window_idx
	ON events (merchant_id, country, provider_id, received_at);
`

// PostgresStore is the production Event Log, grounded on the teacher's
// analytics ingestion pipeline for its retry-on-transient-failure shape
// (analytics/ingestion.go's flush-with-backoff loop), applied to a
// single synchronous insert per event since the Ingestor's ordering
// guarantee (spec §5) requires the append to have actually committed
// before the request can return 200.
type PostgresStore struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

// NewPostgresStore opens the database and ensures the schema exists.
func NewPostgresStore(dsn string, logger zerolog.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("eventlog: connect: %w", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return &PostgresStore{
		db:     db,
		logger: logger.With().Str("component", "eventlog").Logger(),
	}, nil
}

const insertSQL = `
INSERT INTO events (
	event_id, received_at, merchant_id, provider_id, country, status,
	sub_status, amount_usd, issuer_name, card_brand, bin, response_code,
	merchant_advice_code, latency_ms, raw_payload
) VALUES (
	:event_id, :received_at, :merchant_id, :provider_id, :country, :status,
	:sub_status, :amount_usd, :issuer_name, :card_brand, :bin, :response_code,
	:merchant_advice_code, :latency_ms, :raw_payload
) ON CONFLICT (event_id) DO NOTHING
`

type eventRow struct {
	EventID            string         `db:"event_id"`
	ReceivedAt         time.Time      `db:"received_at"`
	MerchantID         string         `db:"merchant_id"`
	ProviderID         string         `db:"provider_id"`
	Country            string         `db:"country"`
	Status             string         `db:"status"`
	SubStatus          sql.NullString `db:"sub_status"`
	AmountUSD          float64        `db:"amount_usd"`
	IssuerName         sql.NullString `db:"issuer_name"`
	CardBrand          string         `db:"card_brand"`
	BIN                string         `db:"bin"`
	ResponseCode       sql.NullString `db:"response_code"`
	MerchantAdviceCode sql.NullString `db:"merchant_advice_code"`
	LatencyMS          int64          `db:"latency_ms"`
	RawPayload         []byte         `db:"raw_payload"`
}

func toRow(e *events.Event) eventRow {
	ns := func(p *string) sql.NullString {
		if p == nil {
			return sql.NullString{}
		}
		return sql.NullString{String: *p, Valid: true}
	}
	return eventRow{
		EventID:            e.EventID,
		ReceivedAt:         e.ReceivedAt,
		MerchantID:         e.MerchantID,
		ProviderID:         e.ProviderID,
		Country:            e.Country,
		Status:             string(e.Status),
		SubStatus:          ns(e.SubStatus),
		AmountUSD:          e.AmountUSD,
		IssuerName:         ns(e.IssuerName),
		CardBrand:          e.CardBrand,
		BIN:                e.BIN,
		ResponseCode:       ns(e.ResponseCode),
		MerchantAdviceCode: ns(e.MerchantAdviceCode),
		LatencyMS:          e.LatencyMS,
		RawPayload:         e.RawPayload,
	}
}

func fromRow(r eventRow) *events.Event {
	ptr := func(ns sql.NullString) *string {
		if !ns.Valid {
			return nil
		}
		v := ns.String
		return &v
	}
	return &events.Event{
		EventID:            r.EventID,
		ReceivedAt:         r.ReceivedAt,
		MerchantID:         r.MerchantID,
		ProviderID:         r.ProviderID,
		Country:            r.Country,
		Status:             events.Status(r.Status),
		SubStatus:          ptr(r.SubStatus),
		AmountUSD:          r.AmountUSD,
		IssuerName:         ptr(r.IssuerName),
		CardBrand:          r.CardBrand,
		BIN:                r.BIN,
		ResponseCode:       ptr(r.ResponseCode),
		MerchantAdviceCode: ptr(r.MerchantAdviceCode),
		LatencyMS:          r.LatencyMS,
		RawPayload:         json.RawMessage(r.RawPayload),
	}
}

// Append inserts e, retrying transient failures with backoff within the
// ingest persistence deadline (spec §5: 2s).
func (s *PostgresStore) Append(ctx context.Context, e *events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	row := toRow(e)
	var lastErr error
	delay := 100 * time.Millisecond
	for attempt := 0; attempt <= 2; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return errs.NewTransient("eventlog.append", ctx.Err().Error())
			}
			delay *= 2
		}
		_, err := s.db.NamedExecContext(ctx, insertSQL, row)
		if err == nil {
			return nil
		}
		lastErr = err
		s.logger.Warn().Err(err).Int("attempt", attempt).Str("event_id", e.EventID).Msg("event log append failed, retrying")
	}
	return errs.NewTransient("eventlog.append", lastErr.Error())
}

// Get returns the event with the given ID.
func (s *PostgresStore) Get(ctx context.Context, eventID string) (*events.Event, bool, error) {
	var row eventRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM events WHERE event_id = $1", eventID)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.NewTransient("eventlog.get", err.Error())
	}
	return fromRow(row), true, nil
}

// Query answers ad-hoc windowed queries (spec §4.4.1, §6).
func (s *PostgresStore) Query(ctx context.Context, filter WindowFilter) ([]*events.Event, error) {
	var clauses []string
	args := map[string]interface{}{}

	if filter.MerchantID != "" {
		clauses = append(clauses, "merchant_id = :merchant_id")
		args["merchant_id"] = filter.MerchantID
	}
	if filter.Country != "" {
		clauses = append(clauses, "country = :country")
		args["country"] = filter.Country
	}
	if filter.ProviderID != "" {
		clauses = append(clauses, "provider_id = :provider_id")
		args["provider_id"] = filter.ProviderID
	}
	if filter.Issuer != "" {
		clauses = append(clauses, "issuer_name = :issuer_name")
		args["issuer_name"] = filter.Issuer
	}
	if !filter.Start.IsZero() {
		clauses = append(clauses, "received_at >= :start")
		args["start"] = filter.Start
	}
	if !filter.End.IsZero() {
		clauses = append(clauses, "received_at < :end")
		args["end"] = filter.End
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		clauses = append(clauses, "status IN (:statuses)")
		args["statuses"] = statuses
	}

	query := "SELECT * FROM events"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY received_at DESC"

	named, namedArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, errs.NewTransient("eventlog.query", err.Error())
	}
	named, namedArgs, err = sqlx.In(named, namedArgs...)
	if err != nil {
		return nil, errs.NewTransient("eventlog.query", err.Error())
	}
	named = s.db.Rebind(named)

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, named, namedArgs...); err != nil {
		return nil, errs.NewTransient("eventlog.query", err.Error())
	}

	out := make([]*events.Event, len(rows))
	for i, r := range rows {
		out[i] = fromRow(r)
	}
	return out, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
