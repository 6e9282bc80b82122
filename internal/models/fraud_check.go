package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FraudCheckType tags the provider/channel that produced a check
type FraudCheckType string

const (
	CheckTypeIdentityDocument  FraudCheckType = "identity_document"
	CheckTypePhoneValidation   FraudCheckType = "phone_validation"
	CheckTypeProfileCompletion FraudCheckType = "profile_completion"
	CheckTypeManualReview      FraudCheckType = "manual_review"
	CheckTypeApplicationForm   FraudCheckType = "application_form"
)

// FraudCheckStatus is the lifecycle status of a check
type FraudCheckStatus string

const (
	CheckStatusPending    FraudCheckStatus = "PENDING"
	CheckStatusOK         FraudCheckStatus = "OK"
	CheckStatusKO         FraudCheckStatus = "KO"
	CheckStatusSuspicious FraudCheckStatus = "SUSPICIOUS"
	CheckStatusCancelled  FraudCheckStatus = "CANCELLED"
	CheckStatusError      FraudCheckStatus = "ERROR"
)

// ReasonCode is a taxonomy tag explaining why a check is not OK
type ReasonCode string

const (
	ReasonAgeNotValid            ReasonCode = "AGE_NOT_VALID"
	ReasonIDCheckDataMatch       ReasonCode = "ID_CHECK_DATA_MATCH"
	ReasonIDCheckNotSupported    ReasonCode = "ID_CHECK_NOT_SUPPORTED"
	ReasonIDCheckExpired         ReasonCode = "ID_CHECK_EXPIRED"
	ReasonIDCheckNotAuthentic    ReasonCode = "ID_CHECK_NOT_AUTHENTIC"
	ReasonIDCheckBlockedOther    ReasonCode = "ID_CHECK_BLOCKED_OTHER"
	ReasonIDCheckUnprocessable   ReasonCode = "ID_CHECK_UNPROCESSABLE"
	ReasonInvalidIDPieceNumber   ReasonCode = "INVALID_ID_PIECE_NUMBER"
	ReasonDuplicateIDPieceNumber ReasonCode = "DUPLICATE_ID_PIECE_NUMBER"
	ReasonPhoneUnvalidatedByPeer  ReasonCode = "PHONE_UNVALIDATED_BY_PEER"
	ReasonPhoneUnvalidatedForPeer ReasonCode = "PHONE_UNVALIDATED_FOR_PEER"
	ReasonPhoneAttemptsExhausted  ReasonCode = "PHONE_VALIDATION_ATTEMPTS_EXHAUSTED"
)

// IdentityContent is the provider-specific payload kept on a check. It is
// what the age-window rules re-derive birth and registration dates from.
type IdentityContent struct {
	BirthDate      *time.Time `bson:"birth_date,omitempty" json:"birth_date,omitempty"`
	RegisteredAt   *time.Time `bson:"registered_at,omitempty" json:"registered_at,omitempty"`
	DocumentNumber string     `bson:"document_number,omitempty" json:"document_number,omitempty"`
	FirstName      string     `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName       string     `bson:"last_name,omitempty" json:"last_name,omitempty"`
	Score          *float64   `bson:"score,omitempty" json:"score,omitempty"`
}

// FraudCheck is a ledger entry recording one verification attempt. Entries
// are immutable once status leaves PENDING; overrides go through FraudReview.
type FraudCheck struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PersonID        string             `bson:"person_id" json:"person_id"`
	Type            FraudCheckType     `bson:"type" json:"type"`
	EligibilityType Tier               `bson:"eligibility_type" json:"eligibility_type"`
	Status          FraudCheckStatus   `bson:"status" json:"status"`
	ReasonCodes     []ReasonCode       `bson:"reason_codes,omitempty" json:"reason_codes,omitempty"`
	Detail          string             `bson:"detail,omitempty" json:"detail,omitempty"`
	ResultContent   *IdentityContent   `bson:"result_content,omitempty" json:"result_content,omitempty"`
	ThirdPartyID    string             `bson:"third_party_id,omitempty" json:"third_party_id,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
}

// FraudReview is an administrative override. The latest review by timestamp
// wins for gating purposes; prior reviews are never erased.
type FraudReview struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PersonID   string             `bson:"person_id" json:"person_id"`
	Reviewer   string             `bson:"reviewer" json:"reviewer"`
	Outcome    FraudCheckStatus   `bson:"outcome" json:"outcome"`
	Detail     string             `bson:"detail,omitempty" json:"detail,omitempty"`
	ReviewedAt time.Time          `bson:"reviewed_at" json:"reviewed_at"`
}

// FraudReviewRequest is the payload for appending a manual review
type FraudReviewRequest struct {
	Reviewer string `json:"reviewer" binding:"required"`
	Outcome  string `json:"outcome" binding:"required"`
	Detail   string `json:"detail,omitempty"`
}

// FraudItem is one element of the ordered result list an identity-check
// evaluation produces for the caller. The first item carries the check's own
// verdict; auxiliary items (document number format, duplication) follow.
type FraudItem struct {
	Status      FraudCheckStatus `json:"status"`
	Detail      string           `json:"detail"`
	ReasonCodes []ReasonCode     `json:"reason_codes,omitempty"`
}
