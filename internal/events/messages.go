package events

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/payment-snap/internal/domain"
)

// Sources of a created transaction.
const (
	SourceText  = "text"
	SourceImage = "image"
)

// TransactionCreated is published after a transaction is stored.
type TransactionCreated struct {
	TransactionID string          `json:"transaction_id"`
	Note          string          `json:"note"`
	Amount        decimal.Decimal `json:"amount"`
	Merchant      string          `json:"merchant,omitempty"`
	Category      domain.Category `json:"category"`
	Source        string          `json:"source"`
	HasAttachment bool            `json:"has_attachment"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewTransactionCreated builds the event for tx.
func NewTransactionCreated(tx *domain.Transaction, source string) TransactionCreated {
	return TransactionCreated{
		TransactionID: tx.ID,
		Note:          tx.Note,
		Amount:        tx.Amount,
		Merchant:      tx.Merchant,
		Category:      tx.Category,
		Source:        source,
		HasAttachment: tx.HasAttachment(),
		CreatedAt:     tx.CreatedAt,
	}
}

func (m TransactionCreated) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
