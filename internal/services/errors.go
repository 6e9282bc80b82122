package services

import "errors"

// Business-rule violations, distinguishable by the caller so the UI can tell
// "already validated" from "wrong code" from "try later".
var (
	ErrPersonNotFound          = errors.New("person not found")
	ErrAlreadyValidated        = errors.New("phone already validated")
	ErrEmailNotValidated       = errors.New("email not validated")
	ErrAlreadyBeneficiary      = errors.New("account already holds the beneficiary role")
	ErrPhoneDenied             = errors.New("phone number is deny-listed")
	ErrCountryNotAllowed       = errors.New("phone country is not allow-listed")
	ErrInvalidPhoneNumber      = errors.New("invalid phone number")
	ErrSendingLimitReached     = errors.New("sms sending limit reached")
	ErrSMSSendFailed           = errors.New("verification code could not be sent")
	ErrPhoneOwnedByBeneficiary = errors.New("phone number already validated for an active beneficiary")
	ErrNoPendingValidation     = errors.New("no pending phone validation")
	ErrInvalidCode             = errors.New("invalid verification code")
	ErrAttemptsExhausted       = errors.New("verification attempts exhausted")
	ErrPhoneOwnershipCorrupt   = errors.New("phone ownership integrity violation")
	ErrNoPendingCheck          = errors.New("no pending fraud check for correlation id")
	ErrUnknownProtocol         = errors.New("unknown provider protocol version")
)
