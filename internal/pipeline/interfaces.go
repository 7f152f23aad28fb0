package pipeline

import (
	"context"

	"github.com/dvloznov/payment-snap/internal/domain"
)

// Extractor reads payment fields off a screenshot.
// This interface enables mocking the vision model in tests.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (*domain.ExtractedPaymentInfo, error)
}

// Categorizer picks a category for a payment. It must always return a
// taxonomy member.
type Categorizer interface {
	Categorize(ctx context.Context, req domain.CategorizationRequest) domain.Category
}
