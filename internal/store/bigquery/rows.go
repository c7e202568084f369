package bigquery

import (
	"encoding/json"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/sheu-1/flow-sub001/internal/domain"
)

// TransactionRow is the flow.transactions schema.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED

	Amount    *big.Rat `bigquery:"amount"`    // REQUIRED NUMERIC, always > 0
	Direction string   `bigquery:"direction"` // REQUIRED, "credit" | "debit"

	Counterparty      bigquery.NullString `bigquery:"counterparty"`       // NULLABLE
	ExternalReference bigquery.NullString `bigquery:"external_reference"` // NULLABLE
	RawText           string              `bigquery:"raw_text"`           // REQUIRED
	Description       bigquery.NullString `bigquery:"description"`        // NULLABLE

	CategoryID    bigquery.NullString `bigquery:"category_id"`    // NULLABLE
	CategoryLabel bigquery.NullString `bigquery:"category_label"` // NULLABLE (legacy free-text fallback)

	PaymentMethod bigquery.NullString `bigquery:"payment_method"` // NULLABLE
	Tags          []string            `bigquery:"tags"`           // REPEATED
	Metadata      bigquery.NullJSON   `bigquery:"metadata"`       // NULLABLE JSON

	OccurredTS   time.Time  `bigquery:"occurred_ts"`   // REQUIRED
	OccurredDate civil.Date `bigquery:"occurred_date"` // REQUIRED DATE, for day-level grouping
	CreatedTS    time.Time  `bigquery:"created_ts"`    // REQUIRED
}

// CategoryRow is the flow.categories schema.
type CategoryRow struct {
	CategoryID string `bigquery:"category_id"` // REQUIRED
	UserID     string `bigquery:"user_id"`     // REQUIRED
	Name       string `bigquery:"name"`        // REQUIRED
	Direction  string `bigquery:"direction"`   // REQUIRED

	Icon  bigquery.NullString `bigquery:"icon"`  // NULLABLE
	Color bigquery.NullString `bigquery:"color"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func rowFromTransaction(tx *domain.PersistedTransaction) *TransactionRow {
	row := &TransactionRow{
		TransactionID:     tx.ID,
		UserID:            tx.UserID,
		Amount:            tx.Amount.Rat(),
		Direction:         string(tx.Direction),
		Counterparty:      nullString(tx.Counterparty),
		ExternalReference: nullString(tx.Reference),
		RawText:           tx.RawText,
		Description:       nullString(tx.Description),
		CategoryID:        nullString(tx.CategoryID),
		CategoryLabel:     nullString(tx.CategoryLabel),
		PaymentMethod:     nullString(tx.PaymentMethod),
		Tags:              tx.Tags,
		Metadata:          bigquery.NullJSON{Valid: false},
		OccurredTS:        tx.OccurredAt,
		OccurredDate:      civil.DateOf(tx.OccurredAt.UTC()),
		CreatedTS:         tx.InsertedAt,
	}
	if len(tx.Metadata) > 0 {
		// NullJSON carries JSON text; marshaling a map[string]string cannot fail.
		metadataJSON, _ := json.Marshal(tx.Metadata)
		row.Metadata = bigquery.NullJSON{JSONVal: string(metadataJSON), Valid: true}
	}
	return row
}

func (r *TransactionRow) toDomain() domain.PersistedTransaction {
	amount := decimal.Zero
	if r.Amount != nil {
		amount = decimal.NewFromBigRat(r.Amount, 2)
	}
	return domain.PersistedTransaction{
		ID:            r.TransactionID,
		UserID:        r.UserID,
		Amount:        amount,
		Direction:     domain.Direction(r.Direction),
		Counterparty:  r.Counterparty.StringVal,
		Reference:     r.ExternalReference.StringVal,
		Description:   r.Description.StringVal,
		RawText:       r.RawText,
		CategoryID:    r.CategoryID.StringVal,
		CategoryLabel: r.CategoryLabel.StringVal,
		PaymentMethod: r.PaymentMethod.StringVal,
		Tags:          r.Tags,
		OccurredAt:    r.OccurredTS,
		InsertedAt:    r.CreatedTS,
	}
}

func (r *CategoryRow) toDomain() domain.CategoryAssignment {
	return domain.CategoryAssignment{
		ID:        r.CategoryID,
		Name:      r.Name,
		Direction: domain.Direction(r.Direction),
		Icon:      r.Icon.StringVal,
		Color:     r.Color.StringVal,
	}
}
