package dupcheck

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheu-1/flow-sub001/internal/domain"
)

type mockStore struct {
	findByRefFunc    func(ctx context.Context, userID, ref string) ([]domain.PersistedTransaction, error)
	findByWindowFunc func(ctx context.Context, userID string, amount decimal.Decimal, from, to time.Time) ([]domain.PersistedTransaction, error)
}

func (m *mockStore) FindByReference(ctx context.Context, userID, ref string) ([]domain.PersistedTransaction, error) {
	return m.findByRefFunc(ctx, userID, ref)
}

func (m *mockStore) FindByAmountWindow(ctx context.Context, userID string, amount decimal.Decimal, from, to time.Time) ([]domain.PersistedTransaction, error) {
	return m.findByWindowFunc(ctx, userID, amount, from, to)
}

func noWindowMatches(ctx context.Context, userID string, amount decimal.Decimal, from, to time.Time) ([]domain.PersistedTransaction, error) {
	return nil, nil
}

var occurred = time.Date(2025, 9, 12, 10, 0, 0, 0, time.UTC)

func candidate(amount int64, ref string) *domain.ParsedTransaction {
	return &domain.ParsedTransaction{
		Amount:       decimal.NewFromInt(amount),
		Direction:    domain.DirectionDebit,
		Counterparty: "SUPERMARKET LTD",
		Reference:    ref,
		RawText:      "Payment of KES 100 made to SUPERMARKET LTD Ref " + ref,
		OccurredAt:   occurred,
	}
}

func TestIsDuplicate_ByReference(t *testing.T) {
	store := &mockStore{
		findByRefFunc: func(ctx context.Context, userID, ref string) ([]domain.PersistedTransaction, error) {
			return []domain.PersistedTransaction{
				{Reference: "XYZ1", Amount: decimal.NewFromInt(100), Direction: domain.DirectionDebit},
			}, nil
		},
		findByWindowFunc: noWindowMatches,
	}
	d := NewDetector(store, 5*time.Minute)

	dup, err := d.IsDuplicate(context.Background(), "user-1", candidate(100, "XYZ1"))
	if err != nil {
		t.Fatalf("IsDuplicate: %v", err)
	}
	if !dup {
		t.Error("same reference with same amount should be a duplicate")
	}
}

func TestIsDuplicate_SameReferenceDifferentAmount(t *testing.T) {
	// A fee record shares the parent transaction's reference. Amount 15
	// against a persisted 100 under reference XYZ1 is a distinct record.
	store := &mockStore{
		findByRefFunc: func(ctx context.Context, userID, ref string) ([]domain.PersistedTransaction, error) {
			return []domain.PersistedTransaction{
				{Reference: "XYZ1", Amount: decimal.NewFromInt(100), Direction: domain.DirectionDebit},
			}, nil
		},
		findByWindowFunc: noWindowMatches,
	}
	d := NewDetector(store, 5*time.Minute)

	fee := candidate(15, "XYZ1")
	fee.Counterparty = "Fuliza Fee"
	fee.RawText = "Fuliza access fee charged"

	dup, err := d.IsDuplicate(context.Background(), "user-1", fee)
	if err != nil {
		t.Fatalf("IsDuplicate: %v", err)
	}
	if dup {
		t.Error("same reference with a different amount must not be a duplicate")
	}
}

func TestIsDuplicate_AmountWithinTolerance(t *testing.T) {
	store := &mockStore{
		findByRefFunc: func(ctx context.Context, userID, ref string) ([]domain.PersistedTransaction, error) {
			return []domain.PersistedTransaction{
				{Reference: "XYZ1", Amount: decimal.RequireFromString("100.01"), Direction: domain.DirectionDebit},
			}, nil
		},
		findByWindowFunc: noWindowMatches,
	}
	d := NewDetector(store, 5*time.Minute)

	dup, err := d.IsDuplicate(context.Background(), "user-1", candidate(100, "XYZ1"))
	if err != nil {
		t.Fatalf("IsDuplicate: %v", err)
	}
	if !dup {
		t.Error("amounts differing by 0.01 should still match the reference")
	}
}

func TestIsDuplicate_WindowFallback(t *testing.T) {
	tests := []struct {
		name   string
		record domain.PersistedTransaction
		want   bool
	}{
		{
			name: "same normalized text",
			record: domain.PersistedTransaction{
				Direction: domain.DirectionDebit,
				Amount:    decimal.NewFromInt(100),
				RawText:   "payment  of KES 100 made to SUPERMARKET LTD Ref ABC1",
			},
			want: true,
		},
		{
			name: "same counterparty",
			record: domain.PersistedTransaction{
				Direction:    domain.DirectionDebit,
				Amount:       decimal.NewFromInt(100),
				Counterparty: "supermarket ltd",
			},
			want: true,
		},
		{
			name: "same description",
			record: domain.PersistedTransaction{
				Direction:   domain.DirectionDebit,
				Amount:      decimal.NewFromInt(100),
				Description: "Sent to SUPERMARKET LTD",
			},
			want: true,
		},
		{
			name: "direction mismatch",
			record: domain.PersistedTransaction{
				Direction:    domain.DirectionCredit,
				Amount:       decimal.NewFromInt(100),
				Counterparty: "SUPERMARKET LTD",
			},
			want: false,
		},
		{
			name: "nothing in common beyond the amount",
			record: domain.PersistedTransaction{
				Direction:    domain.DirectionDebit,
				Amount:       decimal.NewFromInt(100),
				Counterparty: "KPLC",
				RawText:      "Paid KES 100 to KPLC",
				Description:  "Sent to KPLC",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{
				findByWindowFunc: func(ctx context.Context, userID string, amount decimal.Decimal, from, to time.Time) ([]domain.PersistedTransaction, error) {
					if !from.Equal(occurred.Add(-5*time.Minute)) || !to.Equal(occurred.Add(5*time.Minute)) {
						t.Errorf("window [%v, %v], want occurred ±5m", from, to)
					}
					return []domain.PersistedTransaction{tt.record}, nil
				},
			}
			d := NewDetector(store, 5*time.Minute)

			// No reference: forces the amount/time fallback.
			tx := candidate(100, "")
			tx.RawText = "Payment of KES 100 made to SUPERMARKET LTD Ref ABC1"

			dup, err := d.IsDuplicate(context.Background(), "user-1", tx)
			if err != nil {
				t.Fatalf("IsDuplicate: %v", err)
			}
			if dup != tt.want {
				t.Errorf("IsDuplicate = %v, want %v", dup, tt.want)
			}
		})
	}
}

func TestIsDuplicate_StoreErrorPropagates(t *testing.T) {
	store := &mockStore{
		findByRefFunc: func(ctx context.Context, userID, ref string) ([]domain.PersistedTransaction, error) {
			return nil, errors.New("query timeout")
		},
	}
	d := NewDetector(store, 5*time.Minute)

	_, err := d.IsDuplicate(context.Background(), "user-1", candidate(100, "XYZ1"))
	if err == nil {
		t.Error("store failure must propagate, not read as not-a-duplicate")
	}
}
