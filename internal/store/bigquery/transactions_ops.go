package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	transactionsTable = "transactions"
	categoriesTable   = "categories"
)

// InsertTransactionWithClient streams one transaction row into
// <dataset>.transactions using the provided client.
func InsertTransactionWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *TransactionRow) error {
	inserter := client.Dataset(datasetID).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertTransaction: inserting row: %w", err)
	}
	return nil
}

// QueryTransactionsByReferenceWithClient returns the user's transactions
// whose reference matches, checking both the structured field and the
// legacy reference embedded in the metadata JSON.
func QueryTransactionsByReferenceWithClient(ctx context.Context, client *bigquery.Client, datasetID, userID, ref string) ([]*TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			user_id,
			amount,
			direction,
			counterparty,
			external_reference,
			raw_text,
			description,
			category_id,
			category_label,
			payment_method,
			tags,
			occurred_ts,
			created_ts
		FROM %s.%s
		WHERE user_id = @user_id
		  AND (external_reference = @ref
		       OR JSON_VALUE(metadata, '$.reference') = @ref)
		ORDER BY occurred_ts
	`, datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "ref", Value: ref},
	}
	return readTransactionRows(ctx, q, "QueryTransactionsByReference")
}

// QueryTransactionsByAmountWindowWithClient returns the user's transactions
// with exactly this amount occurring within [from, to].
func QueryTransactionsByAmountWindowWithClient(ctx context.Context, client *bigquery.Client, datasetID, userID string, amount *big.Rat, from, to time.Time) ([]*TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			user_id,
			amount,
			direction,
			counterparty,
			external_reference,
			raw_text,
			description,
			category_id,
			category_label,
			payment_method,
			tags,
			occurred_ts,
			created_ts
		FROM %s.%s
		WHERE user_id = @user_id
		  AND amount = @amount
		  AND occurred_ts BETWEEN @from_ts AND @to_ts
		ORDER BY occurred_ts
	`, datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "amount", Value: amount},
		{Name: "from_ts", Value: from},
		{Name: "to_ts", Value: to},
	}
	return readTransactionRows(ctx, q, "QueryTransactionsByAmountWindow")
}

func readTransactionRows(ctx context.Context, q *bigquery.Query, op string) ([]*TransactionRow, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query read: %w", op, err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iter next: %w", op, err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
