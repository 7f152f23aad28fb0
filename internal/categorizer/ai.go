package categorizer

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dvloznov/payment-snap/internal/domain"
	"github.com/dvloznov/payment-snap/internal/llm"
)

const (
	aiMaxOutputTokens = 50
	aiTemperature     = float32(0.3)
)

// AIConfig configures the AI classifier.
type AIConfig struct {
	// APIKey is the provider credential. Empty disables AI classification.
	APIKey string

	// Model overrides the model name used by the underlying client.
	Model string
}

// AIClassifier asks a text model to pick a category.
type AIClassifier struct {
	model    llm.Model
	cfg      AIConfig
	taxonomy domain.Taxonomy
	log      zerolog.Logger
}

// NewAIClassifier creates an AI classifier. model may be nil when no
// credential is configured; Classify then always reports no result.
func NewAIClassifier(model llm.Model, cfg AIConfig, taxonomy domain.Taxonomy, log zerolog.Logger) *AIClassifier {
	return &AIClassifier{
		model:    model,
		cfg:      cfg,
		taxonomy: taxonomy,
		log:      log,
	}
}

// Classify returns the model's category and true, or false when the model is
// unconfigured, fails, or answers with anything that is not exactly a
// taxonomy name. It never returns an error: callers have a keyword fallback.
func (a *AIClassifier) Classify(ctx context.Context, req domain.CategorizationRequest) (domain.Category, bool) {
	if a.cfg.APIKey == "" || a.model == nil {
		return "", false
	}

	temp := aiTemperature
	reply, err := a.model.Generate(ctx, llm.Request{
		Model:           a.cfg.Model,
		Prompt:          buildCategorizationPrompt(a.taxonomy, req),
		MaxOutputTokens: aiMaxOutputTokens,
		Temperature:     &temp,
	})
	if err != nil {
		a.log.Warn().Err(err).Msg("AI categorization failed")
		return "", false
	}

	category, ok := a.taxonomy.Parse(reply)
	if !ok {
		a.log.Warn().Str("reply", reply).Msg("AI categorization returned unknown category")
		return "", false
	}

	return category, true
}
