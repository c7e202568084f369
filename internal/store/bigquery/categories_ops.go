package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// ListCategoriesWithClient returns all of the user's categories ordered by
// name, using the provided client.
func ListCategoriesWithClient(ctx context.Context, client *bigquery.Client, datasetID, userID string) ([]*CategoryRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			category_id,
			user_id,
			name,
			direction,
			icon,
			color,
			created_ts
		FROM %s.%s
		WHERE user_id = @user_id
		ORDER BY name
	`, datasetID, categoriesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query read: %w", err)
	}

	var rows []*CategoryRow
	for {
		var r CategoryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategories: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// InsertCategoryWithClient streams one category row into
// <dataset>.categories using the provided client.
func InsertCategoryWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *CategoryRow) error {
	inserter := client.Dataset(datasetID).Table(categoriesTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertCategory: inserting row: %w", err)
	}
	return nil
}
