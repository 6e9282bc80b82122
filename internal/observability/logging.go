package observability

import (
	"strings"

	"github.com/culturepass/eligibility-engine/internal/logging"
)

// Logger returns the global safe logger instance
func Logger() *logging.SafeLogger {
	return logging.Logger
}

// MaskPhone masks a phone number for logging, keeping only the last two digits
func MaskPhone(phone string) string {
	if len(phone) < 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-2) + phone[len(phone)-2:]
}

// MaskDocumentNumber masks an id document number for logging
func MaskDocumentNumber(number string) string {
	if len(number) < 4 {
		return "****"
	}
	return number[:2] + strings.Repeat("*", len(number)-2)
}
