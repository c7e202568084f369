package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction says whether money moved into or out of the account.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// RawMessage is one notification text as observed on the device.
// It is transient: produced by a source adapter, consumed once by the
// ingestion pipeline. CapturedAt is zero when the channel did not carry
// a timestamp; Originator is empty when the sender is unknown.
type RawMessage struct {
	Body       string    `json:"body"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
	Originator string    `json:"originator,omitempty"`
}

// ParsedTransaction is the structured candidate the parser extracts from
// a raw message body. It is either persisted or discarded; it never
// outlives the pipeline run that produced it.
type ParsedTransaction struct {
	Amount       decimal.Decimal // always > 0
	Direction    Direction
	Counterparty string // empty when no counterparty could be extracted
	Reference    string // provider-issued transaction code, empty if absent
	CategoryHint string
	RawText      string
	OccurredAt   time.Time
}

// Describe renders the short generated description persisted alongside a
// transaction. The remote duplicate detector compares these too, so the
// rendering must stay deterministic.
func (t *ParsedTransaction) Describe() string {
	switch {
	case t.Direction == DirectionCredit && t.Counterparty != "":
		return "Received from " + t.Counterparty
	case t.Direction == DirectionCredit:
		return "Received"
	case t.Counterparty != "":
		return "Sent to " + t.Counterparty
	default:
		return "Sent"
	}
}

// PersistedTransaction is the record handed to the persistence gateway.
// It is created exactly once per logical transaction; this subsystem
// never mutates it afterward.
type PersistedTransaction struct {
	ID     string
	UserID string

	Amount       decimal.Decimal
	Direction    Direction
	Counterparty string
	Reference    string
	Description  string
	RawText      string

	CategoryID    string
	CategoryLabel string

	PaymentMethod string
	Tags          []string
	Metadata      map[string]string

	OccurredAt time.Time
	InsertedAt time.Time
}

// CategoryAssignment is a persisted category as cached locally per user.
type CategoryAssignment struct {
	ID        string
	Name      string
	Direction Direction
	Icon      string
	Color     string
}

// Outcome is the terminal state of one message's trip through the pipeline.
type Outcome string

const (
	// OutcomeDropped means the in-process guard saw the identity already
	// in flight or recently completed; no further work was done.
	OutcomeDropped Outcome = "dropped"

	// OutcomeRejected means the parser classified the message as
	// non-transactional.
	OutcomeRejected Outcome = "rejected"

	// OutcomeSkippedDuplicate means the remote store already holds this
	// transaction; skipping is an idempotent no-op, not an error.
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"

	// OutcomeInserted means a new record reached the persistence gateway.
	OutcomeInserted Outcome = "inserted"

	// OutcomeFailed means the insert (or a required remote lookup) failed;
	// the watermark is withheld so a later scan retries the message.
	OutcomeFailed Outcome = "failed"
)
