package domain

import "strings"

// Category is one of the fixed spending categories a transaction can be filed under.
type Category string

const (
	CategoryFoodDining     Category = "Food & Dining"
	CategoryTransportation Category = "Transportation"
	CategoryShopping       Category = "Shopping"
	CategoryGroceries      Category = "Groceries"
	CategoryUtilities      Category = "Utilities"
	CategoryEntertainment  Category = "Entertainment"
	CategoryHealthcare     Category = "Healthcare"
	CategoryEducation      Category = "Education"
	CategoryRent           Category = "Rent"
	CategoryPersonalCare   Category = "Personal Care"

	// CategoryOther has no keywords and is where anything unmatched ends up.
	CategoryOther Category = "Other"
)

// CategoryKeywords pairs a category with its lowercase keyword signals.
type CategoryKeywords struct {
	Category Category
	Keywords []string
}

// Taxonomy is the ordered category table. Order is a priority order: the
// keyword classifier returns the first category with a matching keyword, so
// e.g. "coffee" and "drink" resolve to Food & Dining before anything later.
type Taxonomy []CategoryKeywords

// DefaultTaxonomy is the built-in category table.
var DefaultTaxonomy = Taxonomy{
	{CategoryFoodDining, []string{
		"restaurant", "food", "domino", "pizza", "zomato", "swiggy", "cafe", "coffee",
		"meal", "lunch", "dinner", "breakfast", "mcdonald", "kfc", "burger", "drink",
		"cold drink", "beverage", "juice", "soda", "coke", "pepsi", "tea", "snack",
		"bakery", "sweet", "ice cream", "dessert",
	}},
	{CategoryTransportation, []string{
		"uber", "ola", "cab", "taxi", "metro", "bus", "train", "flight", "petrol", "fuel", "parking",
	}},
	{CategoryShopping, []string{
		"amazon", "flipkart", "myntra", "shopping", "mall", "store", "clothes", "fashion",
	}},
	{CategoryGroceries, []string{
		"grocery", "vegetables", "fruits", "supermarket", "bigbasket", "blinkit", "instamart", "zepto",
	}},
	{CategoryUtilities, []string{
		"electricity", "water", "gas", "internet", "broadband", "mobile", "recharge", "bill",
	}},
	{CategoryEntertainment, []string{
		"movie", "cinema", "netflix", "spotify", "prime", "hotstar", "game", "gaming",
	}},
	{CategoryHealthcare, []string{
		"doctor", "hospital", "medicine", "pharmacy", "health", "clinic", "medical",
	}},
	{CategoryEducation, []string{
		"school", "college", "course", "book", "tuition", "fees", "education",
	}},
	{CategoryRent, []string{
		"rent", "flat", "house", "apartment", "society", "maintenance",
	}},
	{CategoryPersonalCare, []string{
		"salon", "spa", "gym", "fitness", "parlour", "grooming",
	}},
	{CategoryOther, nil},
}

// Categories returns the category names in declaration order.
func (t Taxonomy) Categories() []Category {
	out := make([]Category, 0, len(t))
	for _, ck := range t {
		out = append(out, ck.Category)
	}
	return out
}

// Names returns the category names as plain strings, in declaration order.
func (t Taxonomy) Names() []string {
	out := make([]string, 0, len(t))
	for _, ck := range t {
		out = append(out, string(ck.Category))
	}
	return out
}

// Keywords returns the keyword set for c, or nil if c is not in the taxonomy.
func (t Taxonomy) Keywords(c Category) []string {
	for _, ck := range t {
		if ck.Category == c {
			return ck.Keywords
		}
	}
	return nil
}

// Contains reports whether c is a member of the taxonomy.
func (t Taxonomy) Contains(c Category) bool {
	for _, ck := range t {
		if ck.Category == c {
			return true
		}
	}
	return false
}

// Parse returns the category whose name exactly equals name (after trimming
// surrounding whitespace). Matching is case-sensitive.
func (t Taxonomy) Parse(name string) (Category, bool) {
	c := Category(strings.TrimSpace(name))
	if c == "" || !t.Contains(c) {
		return "", false
	}
	return c, true
}

// IsValid reports whether name parses to a taxonomy member.
func (t Taxonomy) IsValid(name string) bool {
	_, ok := t.Parse(name)
	return ok
}

// Coerce returns c when it belongs to the taxonomy and CategoryOther otherwise.
func (t Taxonomy) Coerce(c Category) Category {
	if t.Contains(c) {
		return c
	}
	return CategoryOther
}
