package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/payment-snap/internal/domain"
)

// Keys accepted for each field. The first key present wins.
var (
	noteKeys     = []string{"note", "description", "note/description"}
	merchantKeys = []string{"merchant", "payee", "merchant_name", "payee_name", "merchant/payee"}
)

// parsePaymentInfo turns the model reply into payment fields.
func parsePaymentInfo(raw string) (*domain.ExtractedPaymentInfo, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, fmt.Errorf("empty reply")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("reply is null, want a JSON object")
	}

	amount, err := getOptionalDecimalField(obj, "amount")
	if err != nil {
		return nil, err
	}
	note, err := getOptionalStringField(obj, noteKeys...)
	if err != nil {
		return nil, err
	}
	merchant, err := getOptionalStringField(obj, merchantKeys...)
	if err != nil {
		return nil, err
	}
	date, err := getOptionalStringField(obj, "date")
	if err != nil {
		return nil, err
	}

	return &domain.ExtractedPaymentInfo{
		Amount:   amount,
		Note:     note,
		Merchant: merchant,
		Date:     date,
	}, nil
}

// cleanModelJSON strips Markdown fences and any chatter around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(strings.TrimPrefix(s, "```"), "json")
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only the outermost object if the model added prose around it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

func lookup(m map[string]interface{}, keys ...string) (string, interface{}) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return k, v
		}
	}
	return keys[0], nil
}

func getOptionalStringField(m map[string]interface{}, keys ...string) (*string, error) {
	key, v := lookup(m, keys...)
	if v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" || strings.EqualFold(s, "null") {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

func getOptionalDecimalField(m map[string]interface{}, keys ...string) (*decimal.Decimal, error) {
	key, v := lookup(m, keys...)
	if v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return nil, fmt.Errorf("field %q: invalid number %q: %w", key, val, err)
		}
		return &d, nil
	case string:
		return parseAmountString(key, val)
	default:
		return nil, fmt.Errorf("field %q has type %T, want number or null", key, v)
	}
}

// currencyTokens are stripped from either end of an amount string.
// Longer tokens come first so "rs." wins over "rs".
var currencyTokens = []string{"inr", "rs.", "rs", "₹", "$", "/-"}

// parseAmountString accepts amounts the model returned as text, e.g.
// "₹1,250.00", "Rs. 500" or "500/-". A minus is only a sign when it leads.
func parseAmountString(key, raw string) (*decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	neg := strings.HasPrefix(s, "-")
	s = trimCurrency(strings.TrimPrefix(s, "-"))
	if !neg && strings.HasPrefix(s, "-") {
		neg = true
		s = trimCurrency(s[1:])
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.Trim(digits, ".-") == "" {
		return nil, nil
	}

	d, err := decimal.NewFromString(digits)
	if err != nil {
		return nil, fmt.Errorf("field %q: invalid amount %q: %w", key, raw, err)
	}
	return &d, nil
}

func trimCurrency(s string) string {
	for {
		t := strings.TrimSpace(s)
		for _, tok := range currencyTokens {
			if len(t) >= len(tok) && strings.EqualFold(t[:len(tok)], tok) {
				t = strings.TrimSpace(t[len(tok):])
				break
			}
		}
		for _, tok := range currencyTokens {
			if len(t) >= len(tok) && strings.EqualFold(t[len(t)-len(tok):], tok) {
				t = strings.TrimSpace(t[:len(t)-len(tok)])
				break
			}
		}
		if t == s {
			return t
		}
		s = t
	}
}
