package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/culturepass/eligibility-engine/internal/config"
	"github.com/culturepass/eligibility-engine/internal/logging"
	"github.com/culturepass/eligibility-engine/internal/models"
	"github.com/culturepass/eligibility-engine/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSMSSender returns scripted results per call and records every attempt
type stubSMSSender struct {
	results []error
	calls   int
}

func (s *stubSMSSender) Send(ctx context.Context, phoneNumber, message string) error {
	s.calls++
	if s.calls <= len(s.results) {
		return s.results[s.calls-1]
	}
	return nil
}

func setupPhoneTest(t *testing.T) (*PhoneValidationService, *stubSMSSender, func()) {
	if config.MongoDB == nil {
		t.Skip("Skipping phone validation tests: MongoDB not initialized")
	}

	ctx := context.Background()

	origPersons := config.AppConfig.PersonCollection
	origChecks := config.AppConfig.FraudCheckCollection
	origPending := config.AppConfig.PhoneValidationCollection
	config.AppConfig.PersonCollection = "test_phone_persons"
	config.AppConfig.FraudCheckCollection = "test_phone_fraud_checks"
	config.AppConfig.PhoneValidationCollection = "test_phone_pending"

	sender := &stubSMSSender{}
	ledger := NewFraudCheckLedger(logging.Logger)
	service := NewPhoneValidationService(ledger, sender, logging.Logger)

	return service, sender, func() {
		config.MongoDB.Collection(config.AppConfig.PersonCollection).Drop(ctx)
		config.MongoDB.Collection(config.AppConfig.FraudCheckCollection).Drop(ctx)
		config.MongoDB.Collection(config.AppConfig.PhoneValidationCollection).Drop(ctx)
		config.AppConfig.PersonCollection = origPersons
		config.AppConfig.FraudCheckCollection = origChecks
		config.AppConfig.PhoneValidationCollection = origPending
	}
}

func insertTestPerson(t *testing.T, person models.Person) {
	t.Helper()
	if person.PhoneValidationStatus == "" {
		person.PhoneValidationStatus = models.PhoneStatusUnvalidated
	}
	_, err := config.MongoDB.Collection(config.AppConfig.PersonCollection).InsertOne(context.Background(), person)
	require.NoError(t, err)
}

func insertPendingValidation(t *testing.T, personID, code string) {
	t.Helper()
	now := time.Now()
	pending := models.PendingPhoneValidation{
		PersonID:    personID,
		PhoneNumber: "+33612345678",
		CodeHash:    utils.HashVerificationCode(code),
		CreatedAt:   now,
		ExpiresAt:   now.Add(10 * time.Minute),
	}
	_, err := config.MongoDB.Collection(config.AppConfig.PhoneValidationCollection).InsertOne(context.Background(), pending)
	require.NoError(t, err)
}

func TestRequestCode_Guards(t *testing.T) {
	service, sender, cleanup := setupPhoneTest(t)
	defer cleanup()

	ctx := context.Background()

	insertTestPerson(t, models.Person{
		PersonID:              "validated",
		EmailValidated:        true,
		PhoneValidationStatus: models.PhoneStatusValidated,
	})
	insertTestPerson(t, models.Person{
		PersonID: "no-email",
	})
	insertTestPerson(t, models.Person{
		PersonID:       "beneficiary",
		EmailValidated: true,
		Role:           models.RoleBeneficiary,
	})
	insertTestPerson(t, models.Person{
		PersonID:       "fresh",
		EmailValidated: true,
	})

	tests := []struct {
		name     string
		personID string
		phone    string
		wantErr  error
	}{
		{"unknown person", "ghost", "+33612345678", ErrPersonNotFound},
		{"already validated", "validated", "+33612345678", ErrAlreadyValidated},
		{"email not validated", "no-email", "+33612345678", ErrEmailNotValidated},
		{"already a beneficiary", "beneficiary", "+33612345678", ErrAlreadyBeneficiary},
		{"unparseable number", "fresh", "not-a-number", ErrInvalidPhoneNumber},
		{"country outside allow-list", "fresh", "+12125551234", ErrCountryNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.RequestCode(ctx, tt.personID, tt.phone)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Zero(t, sender.calls, "no SMS is spent on a rejected request")
}

func TestRequestCode_DenyList(t *testing.T) {
	service, sender, cleanup := setupPhoneTest(t)
	defer cleanup()

	insertTestPerson(t, models.Person{PersonID: "fresh", EmailValidated: true})

	origDenyList := config.AppConfig.PhoneDenyList
	config.AppConfig.PhoneDenyList = []string{"+33612345678"}
	defer func() { config.AppConfig.PhoneDenyList = origDenyList }()

	err := service.RequestCode(context.Background(), "fresh", "0612345678")
	assert.ErrorIs(t, err, ErrPhoneDenied, "deny list matches the normalized E.164 form")
	assert.Zero(t, sender.calls)
}

func TestVerifyCode_NoPendingValidation(t *testing.T) {
	service, _, cleanup := setupPhoneTest(t)
	defer cleanup()

	insertTestPerson(t, models.Person{PersonID: "fresh", EmailValidated: true})

	_, err := service.VerifyCode(context.Background(), "fresh", "123456")
	assert.ErrorIs(t, err, ErrNoPendingValidation)
}

func TestVerifyCode_ExpiredValidation(t *testing.T) {
	service, _, cleanup := setupPhoneTest(t)
	defer cleanup()

	ctx := context.Background()
	insertTestPerson(t, models.Person{PersonID: "fresh", EmailValidated: true})

	expired := models.PendingPhoneValidation{
		PersonID:    "fresh",
		PhoneNumber: "+33612345678",
		CodeHash:    utils.HashVerificationCode("123456"),
		CreatedAt:   time.Now().Add(-20 * time.Minute),
		ExpiresAt:   time.Now().Add(-10 * time.Minute),
	}
	_, err := config.MongoDB.Collection(config.AppConfig.PhoneValidationCollection).InsertOne(ctx, expired)
	require.NoError(t, err)

	_, err = service.VerifyCode(ctx, "fresh", "123456")
	assert.ErrorIs(t, err, ErrNoPendingValidation, "an expired code behaves like no code at all")
}

func TestVerifyCode_WrongCodeConsumesBudget(t *testing.T) {
	service, _, cleanup := setupPhoneTest(t)
	defer cleanup()

	ctx := context.Background()
	insertTestPerson(t, models.Person{PersonID: "fresh", EmailValidated: true})
	insertPendingValidation(t, "fresh", "123456")

	remaining, err := service.VerifyCode(ctx, "fresh", "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Equal(t, 2, remaining)

	remaining, err = service.VerifyCode(ctx, "fresh", "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Equal(t, 1, remaining)

	// Third mismatch exhausts the budget and escalates.
	_, err = service.VerifyCode(ctx, "fresh", "000000")
	assert.ErrorIs(t, err, ErrAttemptsExhausted)

	// The pending validation is destroyed: the right code no longer helps.
	_, err = service.VerifyCode(ctx, "fresh", "123456")
	assert.ErrorIs(t, err, ErrNoPendingValidation)

	// A SUSPICIOUS audit entry exists.
	ledger := NewFraudCheckLedger(logging.Logger)
	checks, err := ledger.ListByPersonAndType(ctx, "fresh", models.CheckTypePhoneValidation)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, models.CheckStatusSuspicious, checks[0].Status)
	assert.Equal(t, []models.ReasonCode{models.ReasonPhoneAttemptsExhausted}, checks[0].ReasonCodes)
}

func TestVerifyCode_AlreadyValidated(t *testing.T) {
	service, _, cleanup := setupPhoneTest(t)
	defer cleanup()

	insertTestPerson(t, models.Person{
		PersonID:              "validated",
		EmailValidated:        true,
		PhoneValidationStatus: models.PhoneStatusValidated,
	})

	_, err := service.VerifyCode(context.Background(), "validated", "123456")
	assert.ErrorIs(t, err, ErrAlreadyValidated)
}

func TestVerifyCode_NumberHeldByBeneficiary(t *testing.T) {
	service, _, cleanup := setupPhoneTest(t)
	defer cleanup()

	ctx := context.Background()
	phone := "+33612345678"

	insertTestPerson(t, models.Person{
		PersonID:              "holder",
		EmailValidated:        true,
		PhoneNumber:           &phone,
		PhoneValidationStatus: models.PhoneStatusValidated,
		Role:                  models.RoleBeneficiary,
	})
	insertTestPerson(t, models.Person{PersonID: "claimant", EmailValidated: true})
	insertPendingValidation(t, "claimant", "123456")

	// The correct code does not transfer a number away from an active
	// beneficiary.
	_, err := service.VerifyCode(ctx, "claimant", "123456")
	assert.ErrorIs(t, err, ErrPhoneOwnedByBeneficiary)

	var claimant models.Person
	err = config.MongoDB.Collection(config.AppConfig.PersonCollection).
		FindOne(ctx, map[string]interface{}{"person_id": "claimant"}).Decode(&claimant)
	require.NoError(t, err)
	assert.Equal(t, models.PhoneStatusUnvalidated, claimant.PhoneValidationStatus)
}

func TestVerifyCode_CorruptOwnershipAborts(t *testing.T) {
	service, _, cleanup := setupPhoneTest(t)
	defer cleanup()

	ctx := context.Background()
	phone := "+33612345678"

	// Two validated owners of one number violate the ownership invariant;
	// verification must refuse to make it worse.
	insertTestPerson(t, models.Person{
		PersonID:              "owner-a",
		EmailValidated:        true,
		PhoneNumber:           &phone,
		PhoneValidationStatus: models.PhoneStatusValidated,
	})
	insertTestPerson(t, models.Person{
		PersonID:              "owner-b",
		EmailValidated:        true,
		PhoneNumber:           &phone,
		PhoneValidationStatus: models.PhoneStatusValidated,
	})
	insertTestPerson(t, models.Person{PersonID: "claimant", EmailValidated: true})
	insertPendingValidation(t, "claimant", "123456")

	_, err := service.VerifyCode(ctx, "claimant", "123456")
	assert.ErrorIs(t, err, ErrPhoneOwnershipCorrupt)
}

func TestDispatchWithRetry(t *testing.T) {
	if config.AppConfig == nil {
		t.Skip("Skipping dispatch tests: config not loaded")
	}

	origBackoff := config.AppConfig.SMSSendBackoff
	config.AppConfig.SMSSendBackoff = 5 * time.Millisecond
	defer func() { config.AppConfig.SMSSendBackoff = origBackoff }()

	retryable := &SMSError{Retryable: true, Cause: errors.New("gateway busy")}
	hard := &SMSError{Retryable: false, Cause: errors.New("number rejected")}

	tests := []struct {
		name      string
		results   []error
		wantErr   bool
		wantCalls int
	}{
		{"first attempt succeeds", nil, false, 1},
		{"retryable failure then success", []error{retryable}, false, 2},
		{"two retryable failures then success", []error{retryable, retryable}, false, 3},
		{"hard failure stops immediately", []error{hard}, true, 1},
		{"retries exhausted", []error{retryable, retryable, retryable}, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &stubSMSSender{results: tt.results}
			service := NewPhoneValidationService(nil, sender, logging.Logger)

			err := service.dispatchWithRetry(context.Background(), "+33612345678", "123456")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSMSSendFailed)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, sender.calls)
		})
	}
}
