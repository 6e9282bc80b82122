package models

import "time"

// Provider protocol versions. The verifier operates both concurrently for
// different cohorts, so both must stay supported.
const (
	ProtocolScoreBased  = 1
	ProtocolStatusBased = 2
)

// Coarse verdicts of the status-based protocol
const (
	VerdictApproved      = "APPROVED"
	VerdictRetryRequired = "RETRY_REQUIRED"
	VerdictDeclined      = "DECLINED"
)

// Discrete score values of the legacy score-based protocol
const (
	ScoreValid       float64 = 1.0
	ScoreUndecidable float64 = 0.0
	ScoreInvalid     float64 = -1.0
)

// IdentityFields are the identity attributes the verifier extracted from the
// submitted document
type IdentityFields struct {
	BirthDate      *time.Time `json:"birth_date,omitempty"`
	RegisteredAt   *time.Time `json:"registration_timestamp,omitempty"`
	DocumentNumber string     `json:"document_number,omitempty"`
	FirstName      string     `json:"first_name,omitempty"`
	LastName       string     `json:"last_name,omitempty"`
}

// IdentitySubScores are the per-aspect scores the legacy protocol reports
// alongside an INVALID verdict
type IdentitySubScores struct {
	ReferenceDataCheck *float64 `json:"reference_data_check,omitempty"`
	SupportedDocument  *float64 `json:"supported_document,omitempty"`
	DocumentExpiry     *float64 `json:"document_expiry,omitempty"`
	DocumentAuthentic  *float64 `json:"document_authentic,omitempty"`
}

// IdentityCheckCallback is the verifier's callback payload, either protocol
type IdentityCheckCallback struct {
	IdentificationID string             `json:"identification_id" binding:"required"`
	ProtocolVersion  int                `json:"provider_protocol_version" binding:"required"`
	Status           string             `json:"status,omitempty"`
	Score            *float64           `json:"score,omitempty"`
	SubScores        *IdentitySubScores `json:"sub_scores,omitempty"`
	ReasonCodes      []ReasonCode       `json:"reason_codes,omitempty"`
	Fields           IdentityFields     `json:"extracted_fields"`
}
