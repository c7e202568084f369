// Package dupcheck is the remote half of the duplicate defense: it asks
// the persisted store whether a candidate transaction already exists,
// catching duplicates the in-process guard cannot see (process restarts,
// a second device on the same account).
package dupcheck

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheu-1/flow-sub001/internal/domain"
	"github.com/sheu-1/flow-sub001/internal/identity"
)

// amountTolerance absorbs rounding differences between the parsed amount
// and the stored NUMERIC value.
var amountTolerance = decimal.RequireFromString("0.01")

// Store is the slice of the persistence gateway the detector needs. Both
// lookups are scoped to one user.
type Store interface {
	// FindByReference returns records whose structured reference field or
	// legacy embedded-metadata reference matches ref.
	FindByReference(ctx context.Context, userID, ref string) ([]domain.PersistedTransaction, error)

	// FindByAmountWindow returns records with exactly this amount whose
	// occurrence time falls in [from, to].
	FindByAmountWindow(ctx context.Context, userID string, amount decimal.Decimal, from, to time.Time) ([]domain.PersistedTransaction, error)
}

// Detector decides whether a parsed transaction duplicates a persisted one.
type Detector struct {
	store  Store
	window time.Duration
}

// NewDetector creates a detector using a symmetric ±window for the
// amount/time fallback lookup.
func NewDetector(store Store, window time.Duration) *Detector {
	return &Detector{store: store, window: window}
}

// IsDuplicate runs the two-stage check. A positive result is an
// idempotent skip, not an error; errors mean the store could not be
// consulted and the caller must not insert.
func (d *Detector) IsDuplicate(ctx context.Context, userID string, tx *domain.ParsedTransaction) (bool, error) {
	if tx.Reference != "" {
		dup, err := d.byReference(ctx, userID, tx)
		if err != nil {
			return false, err
		}
		if dup {
			return true, nil
		}
	}
	return d.byAmountWindow(ctx, userID, tx)
}

// byReference matches on the provider reference. A record with the same
// reference counts as a duplicate only when its amount is equal within
// rounding tolerance: a same-reference-but-different-amount record (a fee
// sharing the parent transaction's reference) is a distinct, legitimate
// record.
func (d *Detector) byReference(ctx context.Context, userID string, tx *domain.ParsedTransaction) (bool, error) {
	records, err := d.store.FindByReference(ctx, userID, tx.Reference)
	if err != nil {
		return false, fmt.Errorf("byReference: %w", err)
	}
	for _, rec := range records {
		if rec.Amount.Sub(tx.Amount).Abs().LessThanOrEqual(amountTolerance) {
			return true, nil
		}
	}
	return false, nil
}

// byAmountWindow is the fallback: identical amount within ±window of the
// occurrence time, narrowed by comparing normalized message text,
// counterparty, and generated description to keep false positives down.
func (d *Detector) byAmountWindow(ctx context.Context, userID string, tx *domain.ParsedTransaction) (bool, error) {
	from := tx.OccurredAt.Add(-d.window)
	to := tx.OccurredAt.Add(d.window)
	records, err := d.store.FindByAmountWindow(ctx, userID, tx.Amount, from, to)
	if err != nil {
		return false, fmt.Errorf("byAmountWindow: %w", err)
	}

	normalized := identity.NormalizeBody(tx.RawText)
	description := tx.Describe()
	for _, rec := range records {
		if rec.Direction != tx.Direction {
			continue
		}
		if rec.RawText != "" && identity.NormalizeBody(rec.RawText) == normalized {
			return true, nil
		}
		if rec.Counterparty != "" && tx.Counterparty != "" &&
			equalFoldTrim(rec.Counterparty, tx.Counterparty) {
			return true, nil
		}
		if rec.Description != "" && rec.Description == description {
			return true, nil
		}
	}
	return false, nil
}

func equalFoldTrim(a, b string) bool {
	return identity.NormalizeBody(a) == identity.NormalizeBody(b)
}
