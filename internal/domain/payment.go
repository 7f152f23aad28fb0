package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ExtractedPaymentInfo holds the fields read off a payment screenshot.
// When Error is non-empty every other field is unreliable and must not be persisted.
type ExtractedPaymentInfo struct {
	Amount   *decimal.Decimal `json:"amount"`
	Note     *string          `json:"note"`
	Merchant *string          `json:"merchant"`
	Date     *string          `json:"date"`

	Error      string `json:"error,omitempty"`
	RawContent string `json:"raw_content,omitempty"` // model reply kept when it could not be parsed
}

// MarshalJSON writes the amount as a JSON number rather than the quoted
// string decimal.Decimal produces by default.
func (i ExtractedPaymentInfo) MarshalJSON() ([]byte, error) {
	type plain ExtractedPaymentInfo
	out := struct {
		Amount json.RawMessage `json:"amount"`
		plain
	}{
		Amount: json.RawMessage("null"),
		plain:  plain(i),
	}
	if i.Amount != nil {
		out.Amount = json.RawMessage(i.Amount.String())
	}
	return json.Marshal(out)
}

// Failed reports whether extraction did not produce usable fields.
func (i *ExtractedPaymentInfo) Failed() bool {
	return i == nil || i.Error != ""
}

// NoteText returns the note, or "" when absent.
func (i *ExtractedPaymentInfo) NoteText() string {
	return deref(i.Note)
}

// MerchantText returns the merchant, or "" when absent.
func (i *ExtractedPaymentInfo) MerchantText() string {
	return deref(i.Merchant)
}

// DateText returns the date as printed on the screenshot, or "" when absent.
func (i *ExtractedPaymentInfo) DateText() string {
	return deref(i.Date)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// CategorizationRequest is the normalized input to both classifiers.
// Description mirrors Note and Payee mirrors Merchant; build it with
// NewCategorizationRequest so the aliases never diverge.
type CategorizationRequest struct {
	Note        string
	Description string
	Merchant    string
	Payee       string
}

// NewCategorizationRequest builds a request with both aliases populated.
func NewCategorizationRequest(note, merchant string) CategorizationRequest {
	return CategorizationRequest{
		Note:        note,
		Description: note,
		Merchant:    merchant,
		Payee:       merchant,
	}
}

// Text is the note and merchant joined by a single space, the input the
// keyword classifier scores.
func (r CategorizationRequest) Text() string {
	return r.Note + " " + r.Merchant
}
