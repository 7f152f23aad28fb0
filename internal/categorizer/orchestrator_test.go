package categorizer

import (
	"context"
	"testing"

	"github.com/dvloznov/payment-snap/internal/domain"
)

// MockClassifier is a mock implementation of Classifier for testing.
type MockClassifier struct {
	ClassifyFunc func(ctx context.Context, req domain.CategorizationRequest) (domain.Category, bool)
	Calls        int
}

func (m *MockClassifier) Classify(ctx context.Context, req domain.CategorizationRequest) (domain.Category, bool) {
	m.Calls++
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, req)
	}
	return "", false
}

func newTestOrchestrator(primary Classifier) *Orchestrator {
	return NewOrchestrator(primary, NewKeywordClassifier(domain.DefaultTaxonomy), domain.DefaultTaxonomy, testLogger())
}

var sampleRequests = []domain.CategorizationRequest{
	domain.NewCategorizationRequest("", ""),
	domain.NewCategorizationRequest("cold drink", "Domino's"),
	domain.NewCategorizationRequest("march", "Landlord Rent"),
	domain.NewCategorizationRequest("ate with friends", ""),
	domain.NewCategorizationRequest("", "Uber India"),
	domain.NewCategorizationRequest("transfer", "Ravi"),
	domain.NewCategorizationRequest("late fine", "library"),
	domain.NewCategorizationRequest("✓ 🍕", "ピザ"),
}

func TestOrchestrator_AIWins(t *testing.T) {
	ai := &MockClassifier{
		ClassifyFunc: func(ctx context.Context, req domain.CategorizationRequest) (domain.Category, bool) {
			return domain.CategoryShopping, true
		},
	}
	o := newTestOrchestrator(ai)

	// Keywords would say Food & Dining here; the AI answer is kept.
	got := o.Categorize(context.Background(), domain.NewCategorizationRequest("coffee", "Cafe"))
	if got != domain.CategoryShopping {
		t.Errorf("Categorize() = %q, want %q", got, domain.CategoryShopping)
	}
}

func TestOrchestrator_FallbackMatchesKeywordClassifier(t *testing.T) {
	keywords := NewKeywordClassifier(domain.DefaultTaxonomy)
	ai := &MockClassifier{} // always declines
	o := newTestOrchestrator(ai)

	for _, req := range sampleRequests {
		got := o.Categorize(context.Background(), req)
		want := keywords.Classify(req.Note + " " + req.Merchant)
		if got != want {
			t.Errorf("Categorize(%+v) = %q, want keyword result %q", req, got, want)
		}
	}
	if ai.Calls != len(sampleRequests) {
		t.Errorf("AI consulted %d times, want %d", ai.Calls, len(sampleRequests))
	}
}

func TestOrchestrator_InvalidAIResultFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		category domain.Category
		ok       bool
	}{
		{"ok with empty category", "", true},
		{"ok with unknown category", "Crypto", true},
		{"declined with a value", domain.CategoryRent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ai := &MockClassifier{
				ClassifyFunc: func(ctx context.Context, req domain.CategorizationRequest) (domain.Category, bool) {
					return tt.category, tt.ok
				},
			}
			o := newTestOrchestrator(ai)

			got := o.Categorize(context.Background(), domain.NewCategorizationRequest("cold drink", "Domino's"))
			if got != domain.CategoryFoodDining {
				t.Errorf("Categorize() = %q, want keyword fallback %q", got, domain.CategoryFoodDining)
			}
		})
	}
}

func TestOrchestrator_NilPrimary(t *testing.T) {
	o := newTestOrchestrator(nil)

	if got := o.Categorize(context.Background(), domain.NewCategorizationRequest("", "")); got != domain.CategoryOther {
		t.Errorf("Categorize(empty) = %q, want Other", got)
	}
}

func TestOrchestrator_AlwaysReturnsTaxonomyMember(t *testing.T) {
	answers := []struct {
		c  domain.Category
		ok bool
	}{
		{"", false},
		{"Nonsense", true},
		{domain.CategoryEducation, true},
	}

	for _, a := range answers {
		ai := &MockClassifier{
			ClassifyFunc: func(ctx context.Context, req domain.CategorizationRequest) (domain.Category, bool) {
				return a.c, a.ok
			},
		}
		o := newTestOrchestrator(ai)

		for _, req := range sampleRequests {
			got := o.Categorize(context.Background(), req)
			if !domain.DefaultTaxonomy.Contains(got) {
				t.Errorf("Categorize(%+v) = %q, not a taxonomy member", req, got)
			}
		}
	}
}

func TestOrchestrator_ProviderDownUsesKeywords(t *testing.T) {
	model := replying("", context.DeadlineExceeded)
	ai := NewAIClassifier(model, AIConfig{APIKey: "k"}, domain.DefaultTaxonomy, testLogger())
	o := newTestOrchestrator(ai)

	got := o.Categorize(context.Background(), domain.NewCategorizationRequest("cold drink at domino's", ""))
	if got != domain.CategoryFoodDining {
		t.Errorf("Categorize() = %q, want %q", got, domain.CategoryFoodDining)
	}
	if len(model.Calls) != 1 {
		t.Errorf("model called %d times, want exactly 1 (no retries)", len(model.Calls))
	}
}
