package utils

import "strings"

// CleanPlate strips everything but letters and digits from raw OCR text
// and upper-cases the result. This is the canonical plate form used as
// the ledger key.
func CleanPlate(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePlate normalizes an operator-supplied plate query to the same
// form CleanPlate produces for OCR text: spaces and dashes removed,
// upper-cased.
func NormalizePlate(raw string) string {
	normalized := strings.TrimSpace(raw)
	normalized = strings.ReplaceAll(normalized, " ", "")
	normalized = strings.ReplaceAll(normalized, "-", "")
	return CleanPlate(normalized)
}
