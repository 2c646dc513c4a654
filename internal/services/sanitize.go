package services

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Storage caps for free-text fields coming out of processor notes.
const (
	maxNameLength     = 255
	maxAddressLength  = 500
	maxCityLength     = 100
	maxPincodeLength  = 10
	maxPhoneLength    = 20
	maxItemNameLength = 255
)

// strictPolicy strips all markup; notes are attacker-influenced free text and
// reach invoices and admin pages downstream.
var strictPolicy = bluemonday.StrictPolicy()

func sanitizeFreeText(value string, limit int) string {
	cleaned := strings.TrimSpace(strictPolicy.Sanitize(value))
	if limit > 0 && len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}
	return cleaned
}

// sanitizePhone keeps only characters that appear in dialable numbers.
func sanitizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == '-' || r == '(' || r == ')' || r == ' ':
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimSpace(b.String())
	if len(cleaned) > maxPhoneLength {
		cleaned = cleaned[:maxPhoneLength]
	}
	return cleaned
}

// optionalText returns nil for values that are empty after sanitization, so
// the customer upsert never overwrites stored data with blanks.
func optionalText(value string, limit int) *string {
	cleaned := sanitizeFreeText(value, limit)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func optionalPhone(value string) *string {
	cleaned := sanitizePhone(value)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
