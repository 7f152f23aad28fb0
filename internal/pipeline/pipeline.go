package pipeline

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/payment-snap/internal/domain"
)

// DefaultNote is used when a screenshot yields no note, merchant or date.
const DefaultNote = "Payment"

// Result is the outcome of processing one screenshot.
type Result struct {
	Note      string
	Amount    decimal.Decimal
	Category  domain.Category
	Extracted *domain.ExtractedPaymentInfo
}

// PaymentPipeline turns a payment screenshot into a categorized record.
type PaymentPipeline struct {
	pipeline *Pipeline
	log      zerolog.Logger
}

// NewPaymentPipeline creates the standard extract, categorize, assemble pipeline.
func NewPaymentPipeline(extractor Extractor, categorizer Categorizer, log zerolog.Logger) *PaymentPipeline {
	return &PaymentPipeline{
		pipeline: NewPipeline(
			&ExtractStep{Extractor: extractor},
			&CategorizeStep{Categorizer: categorizer},
			&AssembleStep{Log: log},
		),
		log: log,
	}
}

// Process runs the pipeline on image. When extraction fails the error is
// returned as-is, the categorizer is not called, and the Result still
// carries the failed extraction info so callers can report it.
func (p *PaymentPipeline) Process(ctx context.Context, image []byte) (*Result, error) {
	state := &PaymentState{Image: image}

	if err := p.pipeline.Execute(ctx, state); err != nil {
		return &Result{Extracted: state.Extracted}, err
	}

	p.log.Info().
		Str("category", string(state.Category)).
		Str("amount", state.Amount.String()).
		Msg("Processed payment screenshot")

	return &Result{
		Note:      state.Note,
		Amount:    state.Amount,
		Category:  state.Category,
		Extracted: state.Extracted,
	}, nil
}

// BuildNote joins the present parts of note, "to <merchant>" and
// "on <date>" with single spaces, or returns DefaultNote when all are blank.
func BuildNote(note, merchant, date string) string {
	var parts []string
	if s := strings.TrimSpace(note); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(merchant); s != "" {
		parts = append(parts, "to "+s)
	}
	if s := strings.TrimSpace(date); s != "" {
		parts = append(parts, "on "+s)
	}
	if len(parts) == 0 {
		return DefaultNote
	}
	return strings.Join(parts, " ")
}
