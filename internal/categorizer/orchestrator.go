package categorizer

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dvloznov/payment-snap/internal/domain"
)

// Classifier is a categorizer that may decline to answer.
type Classifier interface {
	Classify(ctx context.Context, req domain.CategorizationRequest) (domain.Category, bool)
}

// Orchestrator picks a category using the AI classifier first and the keyword
// classifier when the AI has nothing valid to say. When the AI does return a
// valid category it wins, even if the keywords would disagree.
type Orchestrator struct {
	primary  Classifier
	fallback *KeywordClassifier
	taxonomy domain.Taxonomy
	log      zerolog.Logger
}

// NewOrchestrator creates an orchestrator. primary may be nil, in which case
// every request goes straight to the keyword classifier.
func NewOrchestrator(primary Classifier, fallback *KeywordClassifier, taxonomy domain.Taxonomy, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		primary:  primary,
		fallback: fallback,
		taxonomy: taxonomy,
		log:      log,
	}
}

// Categorize always returns a member of the taxonomy.
func (o *Orchestrator) Categorize(ctx context.Context, req domain.CategorizationRequest) domain.Category {
	if o.primary != nil {
		if c, ok := o.primary.Classify(ctx, req); ok && c != "" && o.taxonomy.Contains(c) {
			o.log.Debug().Str("category", string(c)).Str("source", "ai").Msg("Transaction categorized")
			return c
		}
	}

	c := o.taxonomy.Coerce(o.fallback.Classify(req.Text()))
	o.log.Debug().Str("category", string(c)).Str("source", "keywords").Msg("Transaction categorized")
	return c
}
