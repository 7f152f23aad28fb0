package categorizer

import (
	"regexp"
	"strings"

	"github.com/dvloznov/payment-snap/internal/domain"
)

// eatingVerbs catches food-related wording that no keyword matched, e.g. "ate with team".
var eatingVerbs = regexp.MustCompile(`\b(eat|ate|drink|drank|lunch|dinner|breakfast|meal|snack)\b`)

// KeywordClassifier assigns a category by substring matching against a taxonomy.
// It is pure and never blocks, so it is safe to call from any error path.
type KeywordClassifier struct {
	taxonomy domain.Taxonomy
}

// NewKeywordClassifier creates a classifier over the given taxonomy.
func NewKeywordClassifier(taxonomy domain.Taxonomy) *KeywordClassifier {
	return &KeywordClassifier{taxonomy: taxonomy}
}

// Classify returns the first category, in taxonomy order, with a keyword
// contained in text. It falls back to Food & Dining when an eating or
// drinking verb appears as a whole word, and to Other otherwise.
func (k *KeywordClassifier) Classify(text string) domain.Category {
	text = strings.ToLower(text)
	if strings.TrimSpace(text) == "" {
		return domain.CategoryOther
	}

	for _, ck := range k.taxonomy {
		for _, kw := range ck.Keywords {
			if strings.Contains(text, kw) {
				return ck.Category
			}
		}
	}

	if eatingVerbs.MatchString(text) {
		return domain.CategoryFoodDining
	}

	return domain.CategoryOther
}
