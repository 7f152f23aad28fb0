package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one recorded payment.
// Note, Amount and Category come from the categorization pipeline; ID and the
// timestamps are owned by the record store.
type Transaction struct {
	ID       string          `json:"id"`
	Note     string          `json:"note"`
	Amount   decimal.Decimal `json:"amount"`
	Merchant string          `json:"merchant,omitempty"`
	Category Category        `json:"category"`

	AttachmentKey string `json:"-"` // blob store key of the payment screenshot, "" if none

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAttachment reports whether a screenshot is stored for this transaction.
func (t *Transaction) HasAttachment() bool {
	return t.AttachmentKey != ""
}
