package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// InsertTransactions streams a batch of transactions for userID into the transactions table.
func (r *Repository) InsertTransactions(ctx context.Context, userID string, txs []domain.Transaction) error {
	return InsertTransactionsWithClient(ctx, r.client, r.ds, userID, txs)
}

// InsertTransactionsWithClient streams a batch of transactions for userID
// using the provided BigQuery client. Transactions without an ID get one.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]*TransactionRow, 0, len(txs))
	for _, tx := range txs {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		rows = append(rows, NewTransactionRow(userID, tx, now))
	}

	// Use fully qualified table name to avoid project ID issues
	inserter := client.DatasetInProject(ds.ProjectID, ds.Name).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}
	return nil
}

// TransactionsByUser loads userID's transactions between from and to inclusive.
// Zero dates leave that side of the range open.
func (r *Repository) TransactionsByUser(ctx context.Context, userID string, from, to civil.Date) ([]domain.Transaction, error) {
	return QueryTransactionsByUserWithClient(ctx, r.client, r.ds, userID, from, to)
}

// QueryTransactionsByUserWithClient loads userID's transactions ordered by
// date using the provided BigQuery client.
func QueryTransactionsByUserWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string, from, to civil.Date) ([]domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			user_id,
			transaction_date,
			amount,
			merchant,
			raw_description,
			category_name,
			direction,
			payment_method,
			source,
			created_ts
		FROM %s
		WHERE user_id = @user_id
		  AND (@from_date IS NULL OR transaction_date >= @from_date)
		  AND (@to_date IS NULL OR transaction_date <= @to_date)
		ORDER BY transaction_date, created_ts
	`, ds.Table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "from_date", Value: nullDate(from)},
		{Name: "to_date", Value: nullDate(to)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByUser: query read: %w", err)
	}

	var txs []domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByUser: iter next: %w", err)
		}
		tx, err := row.ToTransaction()
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByUser: %w", err)
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

func nullDate(d civil.Date) bigquery.NullDate {
	return bigquery.NullDate{Date: d, Valid: d.IsValid()}
}
