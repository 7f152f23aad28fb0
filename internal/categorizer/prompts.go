package categorizer

import (
	"fmt"
	"strings"

	"github.com/dvloznov/payment-snap/internal/domain"
)

// categoryGuidelines steer the model on borderline cases. Beverages and
// snacks in particular must land in Food & Dining rather than Other.
var categoryGuidelines = map[domain.Category]string{
	domain.CategoryFoodDining:     "Any food, drinks, beverages, restaurants, cafes, food delivery, cold drinks, juices, snacks, ice cream, etc.",
	domain.CategoryTransportation: "Travel, ride-sharing, public transport, fuel, parking, flights, trains, etc.",
	domain.CategoryShopping:       "Online/offline shopping, clothes, electronics, fashion items, etc.",
	domain.CategoryGroceries:      "Supermarket, vegetables, fruits, household items, groceries, etc.",
	domain.CategoryUtilities:      "Bills for electricity, water, gas, internet, mobile recharge, etc.",
	domain.CategoryEntertainment:  "Movies, streaming services, games, leisure activities, etc.",
	domain.CategoryHealthcare:     "Medical expenses, doctor visits, medicines, pharmacy, etc.",
	domain.CategoryEducation:      "School, college, courses, books, tuition fees, etc.",
	domain.CategoryRent:           "House rent, apartment rent, society maintenance, etc.",
	domain.CategoryPersonalCare:   "Salon, spa, gym, fitness, grooming, beauty, etc.",
	domain.CategoryOther:          "Anything that doesn't fit the above categories",
}

// buildCategorizationPrompt renders the classification prompt for one transaction.
func buildCategorizationPrompt(taxonomy domain.Taxonomy, req domain.CategorizationRequest) string {
	var b strings.Builder

	b.WriteString("You are an intelligent expense categorization assistant. ")
	b.WriteString("Categorize this transaction into ONE of these categories: ")
	b.WriteString(strings.Join(taxonomy.Names(), ", "))
	b.WriteString("\n\n")

	b.WriteString("Transaction details:\n")
	fmt.Fprintf(&b, "- Note/Description: %s\n", req.Description)
	fmt.Fprintf(&b, "- Merchant/Payee: %s\n\n", req.Payee)

	b.WriteString("Category Guidelines:\n")
	for _, c := range taxonomy.Categories() {
		hint, ok := categoryGuidelines[c]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %q: %s\n", string(c), hint)
	}

	b.WriteString("\nReturn ONLY the exact category name from the list above, nothing else.\n")

	return b.String()
}
