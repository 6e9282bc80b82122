package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PendingPhoneValidation is the at-most-one in-flight code per person. The
// code itself is never stored, only its hash.
type PendingPhoneValidation struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PersonID    string             `bson:"person_id" json:"person_id"`
	PhoneNumber string             `bson:"phone_number" json:"phone_number"`
	CodeHash    string             `bson:"code_hash" json:"-"`
	Attempts    int                `bson:"attempts" json:"attempts"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt   time.Time          `bson:"expires_at" json:"expires_at"`
}

// PhoneCodeRequest is the request body for requesting a validation code
type PhoneCodeRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
}

// PhoneVerifyRequest is the request body for submitting a validation code
type PhoneVerifyRequest struct {
	Code string `json:"code" binding:"required"`
}

// PhoneVerifyResponse reports a verification failure with the remaining
// attempt budget, for UI display
type PhoneVerifyResponse struct {
	Error             string `json:"error,omitempty"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
}
