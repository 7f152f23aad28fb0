package extractor

import (
	"testing"
)

func TestCleanModelJSON(t *testing.T) {
	want := `{"amount": 250}`

	tests := []struct {
		name string
		raw  string
	}{
		{"plain", `{"amount": 250}`},
		{"json fence", "```json\n{\"amount\": 250}\n```"},
		{"bare fence", "```\n{\"amount\": 250}\n```"},
		{"single line fence", "```json {\"amount\": 250}```"},
		{"leading prose", "Here you go: {\"amount\": 250}"},
		{"surrounding whitespace", "\n\n  {\"amount\": 250}  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.raw, got, want)
			}
		})
	}
}

func TestParsePaymentInfo(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantAmount   string // "" means nil
		wantNote     string
		wantMerchant string
		wantDate     string
	}{
		{
			name:         "all fields",
			raw:          `{"amount": 250.50, "note": "lunch", "merchant": "Cafe X", "date": "12 Mar 2024"}`,
			wantAmount:   "250.5",
			wantNote:     "lunch",
			wantMerchant: "Cafe X",
			wantDate:     "12 Mar 2024",
		},
		{
			name:       "nulls",
			raw:        `{"amount": 99, "note": null, "merchant": null, "date": null}`,
			wantAmount: "99",
		},
		{
			name:         "alias keys",
			raw:          `{"amount": 10, "description": "tea", "payee": "Chai Point"}`,
			wantAmount:   "10",
			wantNote:     "tea",
			wantMerchant: "Chai Point",
		},
		{
			name:       "amount as formatted string",
			raw:        `{"amount": "₹1,250.00"}`,
			wantAmount: "1250",
		},
		{
			name:       "rupee prefix with dot",
			raw:        `{"amount": "Rs. 500"}`,
			wantAmount: "500",
		},
		{
			name:       "rupee prefix without space",
			raw:        `{"amount": "Rs.1,250"}`,
			wantAmount: "1250",
		},
		{
			name:       "trailing slash dash",
			raw:        `{"amount": "₹500/-"}`,
			wantAmount: "500",
		},
		{
			name:       "currency code",
			raw:        `{"amount": "INR 2,000.50"}`,
			wantAmount: "2000.5",
		},
		{
			name:       "leading sign before symbol",
			raw:        `{"amount": "-₹75"}`,
			wantAmount: "-75",
		},
		{
			name:       "dash inside is not a sign",
			raw:        `{"amount": "1,000-00"}`,
			wantAmount: "100000",
		},
		{
			name: "amount string without digits",
			raw:  `{"amount": "N/A", "note": ""}`,
		},
		{
			name:     "blank strings become absent",
			raw:      `{"note": "  ", "merchant": "null", "date": "today"}`,
			wantDate: "today",
		},
		{
			name: "empty object",
			raw:  `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := parsePaymentInfo(tt.raw)
			if err != nil {
				t.Fatalf("parsePaymentInfo() error = %v", err)
			}

			gotAmount := ""
			if info.Amount != nil {
				gotAmount = info.Amount.String()
			}
			if gotAmount != tt.wantAmount {
				t.Errorf("Amount = %q, want %q", gotAmount, tt.wantAmount)
			}
			if got := info.NoteText(); got != tt.wantNote {
				t.Errorf("Note = %q, want %q", got, tt.wantNote)
			}
			if got := info.MerchantText(); got != tt.wantMerchant {
				t.Errorf("Merchant = %q, want %q", got, tt.wantMerchant)
			}
			if got := info.DateText(); got != tt.wantDate {
				t.Errorf("Date = %q, want %q", got, tt.wantDate)
			}
		})
	}
}

func TestParsePaymentInfo_FencedMatchesPlain(t *testing.T) {
	plain := `{"amount": 120, "note": "cold drink", "merchant": "Domino's", "date": null}`
	fenced := "```json\n" + plain + "\n```"

	a, err := parsePaymentInfo(plain)
	if err != nil {
		t.Fatalf("plain: %v", err)
	}
	b, err := parsePaymentInfo(fenced)
	if err != nil {
		t.Fatalf("fenced: %v", err)
	}

	if !a.Amount.Equal(*b.Amount) || a.NoteText() != b.NoteText() ||
		a.MerchantText() != b.MerchantText() || a.DateText() != b.DateText() {
		t.Errorf("fenced result %+v differs from plain %+v", b, a)
	}
}

func TestParsePaymentInfo_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"prose", "I cannot read this image"},
		{"null", "null"},
		{"truncated", `{"amount": 12, "note": "lun`},
		{"amount is bool", `{"amount": true}`},
		{"amount is object", `{"amount": {"value": 1}}`},
		{"note is number", `{"note": 5}`},
		{"bad amount string", `{"amount": "1.2.3"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parsePaymentInfo(tt.raw); err == nil {
				t.Errorf("parsePaymentInfo(%q) expected error", tt.raw)
			}
		})
	}
}
