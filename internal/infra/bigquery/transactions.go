package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// numericScale is the fractional precision of the BigQuery NUMERIC type.
const numericScale = 9

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Amount          *big.Rat   `bigquery:"amount"`           // REQUIRED NUMERIC, non-negative

	Merchant       string `bigquery:"merchant"`        // REQUIRED
	RawDescription string `bigquery:"raw_description"` // REQUIRED, may be empty

	CategoryName  bigquery.NullString `bigquery:"category_name"`  // NULLABLE
	Direction     string              `bigquery:"direction"`      // REQUIRED expense|income
	PaymentMethod bigquery.NullString `bigquery:"payment_method"` // NULLABLE
	Source        bigquery.NullString `bigquery:"source"`         // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// ToTransaction converts a stored row into the domain type.
func (r *TransactionRow) ToTransaction() (domain.Transaction, error) {
	if r.Amount == nil {
		return domain.Transaction{}, &domain.DataError{Index: -1, Field: "amount", Reason: "missing in row " + r.TransactionID}
	}
	amount, err := ratToDecimal(r.Amount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", r.TransactionID, err)
	}

	return domain.Transaction{
		ID:             r.TransactionID,
		Date:           r.TransactionDate,
		Amount:         amount,
		Merchant:       r.Merchant,
		RawDescription: r.RawDescription,
		Category:       r.CategoryName.StringVal,
		Type:           domain.TransactionType(r.Direction),
		PaymentMethod:  r.PaymentMethod.StringVal,
		Source:         r.Source.StringVal,
	}, nil
}

// NewTransactionRow converts a domain transaction into a row owned by userID.
func NewTransactionRow(userID string, tx domain.Transaction, created time.Time) *TransactionRow {
	return &TransactionRow{
		TransactionID:   tx.ID,
		UserID:          userID,
		TransactionDate: tx.Date,
		Amount:          tx.Amount.Rat(),
		Merchant:        tx.Merchant,
		RawDescription:  tx.RawDescription,
		CategoryName:    nullString(tx.Category),
		Direction:       string(tx.Type),
		PaymentMethod:   nullString(tx.PaymentMethod),
		Source:          nullString(tx.Source),
		CreatedTS:       created,
	}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func ratToDecimal(r *big.Rat) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(r.FloatString(numericScale))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("converting NUMERIC %s: %w", r.String(), err)
	}
	return d, nil
}
