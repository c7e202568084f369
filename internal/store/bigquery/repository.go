// Package bigquery implements the persistence gateway against BigQuery.
// The store is used only through insert and query operations; it enforces
// no uniqueness constraint of its own, so all duplicate prevention lives
// upstream in the pipeline.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sheu-1/flow-sub001/internal/domain"
)

// Repository holds a shared BigQuery client so each operation does not
// open its own connection.
type Repository struct {
	client    *bigquery.Client
	datasetID string
}

// NewRepository creates a repository with a shared BigQuery client.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Insert persists one transaction and returns its id. Missing ids and
// insert timestamps are filled in here.
func (r *Repository) Insert(ctx context.Context, tx *domain.PersistedTransaction) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.InsertedAt.IsZero() {
		tx.InsertedAt = time.Now()
	}
	if err := InsertTransactionWithClient(ctx, r.client, r.datasetID, rowFromTransaction(tx)); err != nil {
		return "", err
	}
	return tx.ID, nil
}

// FindByReference implements the reference-based duplicate lookup.
func (r *Repository) FindByReference(ctx context.Context, userID, ref string) ([]domain.PersistedTransaction, error) {
	rows, err := QueryTransactionsByReferenceWithClient(ctx, r.client, r.datasetID, userID, ref)
	if err != nil {
		return nil, err
	}
	return toDomainTransactions(rows), nil
}

// FindByAmountWindow implements the amount/time-window duplicate lookup.
func (r *Repository) FindByAmountWindow(ctx context.Context, userID string, amount decimal.Decimal, from, to time.Time) ([]domain.PersistedTransaction, error) {
	rows, err := QueryTransactionsByAmountWindowWithClient(ctx, r.client, r.datasetID, userID, amount.Rat(), from, to)
	if err != nil {
		return nil, err
	}
	return toDomainTransactions(rows), nil
}

// ListCategories returns the user's persisted categories.
func (r *Repository) ListCategories(ctx context.Context, userID string) ([]domain.CategoryAssignment, error) {
	rows, err := ListCategoriesWithClient(ctx, r.client, r.datasetID, userID)
	if err != nil {
		return nil, err
	}
	categories := make([]domain.CategoryAssignment, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, row.toDomain())
	}
	return categories, nil
}

// CreateCategory persists a new category and returns its id.
func (r *Repository) CreateCategory(ctx context.Context, userID string, c domain.CategoryAssignment) (string, error) {
	row := &CategoryRow{
		CategoryID: uuid.NewString(),
		UserID:     userID,
		Name:       c.Name,
		Direction:  string(c.Direction),
		Icon:       nullString(c.Icon),
		Color:      nullString(c.Color),
		CreatedTS:  time.Now(),
	}
	if err := InsertCategoryWithClient(ctx, r.client, r.datasetID, row); err != nil {
		return "", err
	}
	return row.CategoryID, nil
}

func toDomainTransactions(rows []*TransactionRow) []domain.PersistedTransaction {
	out := make([]domain.PersistedTransaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}
