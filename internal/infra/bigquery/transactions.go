package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/payment-snap/internal/domain"
)

// TransactionRow is one row of the payment transactions table.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	Note     string              `bigquery:"note"`     // REQUIRED STRING
	Amount   *big.Rat            `bigquery:"amount"`   // REQUIRED NUMERIC
	Merchant bigquery.NullString `bigquery:"merchant"` // NULLABLE
	Category string              `bigquery:"category"` // REQUIRED STRING

	AttachmentKey bigquery.NullString `bigquery:"attachment_key"` // NULLABLE, GCS object name

	CreatedTS time.Time `bigquery:"created_ts"`
	UpdatedTS time.Time `bigquery:"updated_ts"`
}

// TransactionSchema returns the table schema inferred from TransactionRow.
func TransactionSchema() (bigquery.Schema, error) {
	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return nil, fmt.Errorf("TransactionSchema: %w", err)
	}
	for _, f := range schema {
		switch f.Name {
		case "merchant", "attachment_key":
		default:
			f.Required = true
		}
	}
	return schema, nil
}

func toRow(tx *domain.Transaction) *TransactionRow {
	return &TransactionRow{
		TransactionID: tx.ID,
		Note:          tx.Note,
		Amount:        tx.Amount.Rat(),
		Merchant:      nullString(tx.Merchant),
		Category:      string(tx.Category),
		AttachmentKey: nullString(tx.AttachmentKey),
		CreatedTS:     tx.CreatedAt,
		UpdatedTS:     tx.UpdatedAt,
	}
}

func fromRow(r *TransactionRow) (*domain.Transaction, error) {
	amount := decimal.Zero
	if r.Amount != nil {
		var err error
		amount, err = decimal.NewFromString(bigquery.NumericString(r.Amount))
		if err != nil {
			return nil, fmt.Errorf("transaction %s: amount: %w", r.TransactionID, err)
		}
	}

	return &domain.Transaction{
		ID:            r.TransactionID,
		Note:          r.Note,
		Amount:        amount,
		Merchant:      r.Merchant.StringVal,
		Category:      domain.Category(r.Category),
		AttachmentKey: r.AttachmentKey.StringVal,
		CreatedAt:     r.CreatedTS,
		UpdatedAt:     r.UpdatedTS,
	}, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
