package utils

import (
	"regexp"
	"strings"
)

// Accepted id-document-number shape after normalization: 8 to 12
// alphanumeric characters.
var documentNumberPattern = regexp.MustCompile(`^[A-Z0-9]{8,12}$`)

// NormalizeDocumentNumber strips separators and uppercases a document number
func NormalizeDocumentNumber(number string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(number))
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	return cleaned
}

// ValidDocumentNumber reports whether a document number has an accepted format
func ValidDocumentNumber(number string) bool {
	return documentNumberPattern.MatchString(NormalizeDocumentNumber(number))
}
