package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/payment-snap/internal/domain"
)

// PipelineStep represents a single step in the payment pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PaymentState) error
}

// PaymentState holds the shared state across all pipeline steps.
type PaymentState struct {
	Image     []byte
	Extracted *domain.ExtractedPaymentInfo
	Request   domain.CategorizationRequest
	Category  domain.Category
	Note      string
	Amount    decimal.Decimal
}

// Step 1: ExtractStep reads payment fields off the screenshot.
type ExtractStep struct {
	Extractor Extractor
}

func (s *ExtractStep) Execute(ctx context.Context, state *PaymentState) error {
	info, err := s.Extractor.Extract(ctx, state.Image)
	state.Extracted = info
	if err != nil {
		return err
	}
	if info.Failed() {
		return fmt.Errorf("extraction failed: %s", info.Error)
	}
	state.Request = domain.NewCategorizationRequest(info.NoteText(), info.MerchantText())
	return nil
}

// Step 2: CategorizeStep picks a category from the extracted note and merchant.
type CategorizeStep struct {
	Categorizer Categorizer
}

func (s *CategorizeStep) Execute(ctx context.Context, state *PaymentState) error {
	state.Category = s.Categorizer.Categorize(ctx, state.Request)
	return nil
}

// Step 3: AssembleStep builds the note and amount of the final record.
type AssembleStep struct {
	Log zerolog.Logger
}

func (s *AssembleStep) Execute(ctx context.Context, state *PaymentState) error {
	info := state.Extracted
	state.Note = BuildNote(info.NoteText(), info.MerchantText(), info.DateText())

	if info.Amount == nil {
		s.Log.Warn().Str("note", state.Note).Msg("No amount found on screenshot, using zero")
		state.Amount = decimal.Zero
	} else {
		state.Amount = *info.Amount
	}
	return nil
}

// Pipeline executes a sequence of steps in order and stops at the first error.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PaymentState) error {
	for _, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return err
		}
	}
	return nil
}
