package services

import (
	"context"
	"testing"
	"time"

	"github.com/culturepass/eligibility-engine/internal/config"
	"github.com/culturepass/eligibility-engine/internal/logging"
	"github.com/culturepass/eligibility-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupIdentityTest(t *testing.T) (*IdentityCheckService, *FraudCheckLedger, func()) {
	if config.MongoDB == nil {
		t.Skip("Skipping identity check tests: MongoDB not initialized")
	}

	ctx := context.Background()

	origPersons := config.AppConfig.PersonCollection
	origChecks := config.AppConfig.FraudCheckCollection
	origReviews := config.AppConfig.FraudReviewCollection
	config.AppConfig.PersonCollection = "test_identity_persons"
	config.AppConfig.FraudCheckCollection = "test_identity_fraud_checks"
	config.AppConfig.FraudReviewCollection = "test_identity_fraud_reviews"

	ledger := NewFraudCheckLedger(logging.Logger)
	selector := NewRelevantCheckSelector(ledger, logging.Logger)
	resolver := NewEligibilityResolver(ledger, selector, logging.Logger)
	service := NewIdentityCheckService(ledger, resolver, logging.Logger)

	return service, ledger, func() {
		config.MongoDB.Collection(config.AppConfig.PersonCollection).Drop(ctx)
		config.MongoDB.Collection(config.AppConfig.FraudCheckCollection).Drop(ctx)
		config.MongoDB.Collection(config.AppConfig.FraudReviewCollection).Drop(ctx)
		config.AppConfig.PersonCollection = origPersons
		config.AppConfig.FraudCheckCollection = origChecks
		config.AppConfig.FraudReviewCollection = origReviews
	}
}

func insertIdentityTestPerson(t *testing.T, personID string, birthDate time.Time) {
	t.Helper()
	person := models.Person{
		PersonID:              personID,
		BirthDate:             birthDate,
		ResidencyCode:         "75001",
		PhoneValidationStatus: models.PhoneStatusUnvalidated,
	}
	_, err := config.MongoDB.Collection(config.AppConfig.PersonCollection).InsertOne(context.Background(), person)
	require.NoError(t, err)
}

func approvedCallback(thirdPartyID string, birthDate time.Time) *models.IdentityCheckCallback {
	return &models.IdentityCheckCallback{
		IdentificationID: thirdPartyID,
		ProtocolVersion:  models.ProtocolStatusBased,
		Status:           models.VerdictApproved,
		Fields: models.IdentityFields{
			BirthDate:      &birthDate,
			DocumentNumber: "AB123456",
		},
	}
}

func TestProcessCallback_PersonNotFound(t *testing.T) {
	service, _, cleanup := setupIdentityTest(t)
	defer cleanup()

	_, _, err := service.ProcessCallback(context.Background(), "ghost", approvedCallback("ext-1", seventeen()))
	assert.ErrorIs(t, err, ErrPersonNotFound)
}

func TestProcessCallback_UnknownProtocol(t *testing.T) {
	service, _, cleanup := setupIdentityTest(t)
	defer cleanup()

	insertIdentityTestPerson(t, "person-1", seventeen())

	callback := approvedCallback("ext-1", seventeen())
	callback.ProtocolVersion = 9

	_, _, err := service.ProcessCallback(context.Background(), "person-1", callback)
	assert.ErrorIs(t, err, ErrUnknownProtocol)
}

func TestProcessCallback_ResolvesPendingCheck(t *testing.T) {
	service, ledger, cleanup := setupIdentityTest(t)
	defer cleanup()

	ctx := context.Background()
	birth := seventeen()
	insertIdentityTestPerson(t, "person-1", birth)

	_, err := ledger.Record(ctx, &models.FraudCheck{
		PersonID:        "person-1",
		Type:            models.CheckTypeIdentityDocument,
		EligibilityType: models.TierUnderage,
		Status:          models.CheckStatusPending,
		ThirdPartyID:    "ext-1",
	})
	require.NoError(t, err)

	items, decision, err := service.ProcessCallback(ctx, "person-1", approvedCallback("ext-1", birth))
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, models.CheckStatusOK, items[0].Status)
	require.NotNil(t, decision.Tier)
	assert.Equal(t, models.TierUnderage, *decision.Tier)

	checks, err := ledger.ListByPerson(ctx, "person-1")
	require.NoError(t, err)
	require.Len(t, checks, 1, "pending entry is resolved in place, not duplicated")
	assert.Equal(t, models.CheckStatusOK, checks[0].Status)
	assert.Equal(t, models.TierUnderage, checks[0].EligibilityType)
	require.NotNil(t, checks[0].ResultContent)
	assert.Equal(t, "AB123456", checks[0].ResultContent.DocumentNumber)
}

func TestProcessCallback_RecordsFreshCheckWhenNoPending(t *testing.T) {
	service, ledger, cleanup := setupIdentityTest(t)
	defer cleanup()

	ctx := context.Background()
	birth := seventeen()
	insertIdentityTestPerson(t, "person-1", birth)

	items, decision, err := service.ProcessCallback(ctx, "person-1", approvedCallback("ext-oob", birth))
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, models.CheckStatusOK, items[0].Status)
	require.NotNil(t, decision.Tier)

	checks, err := ledger.ListByPerson(ctx, "person-1")
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, "ext-oob", checks[0].ThirdPartyID)
	assert.Equal(t, models.TierUnderage, checks[0].EligibilityType,
		"eligibility type derived from the extracted birth date")
}

func TestProcessCallback_InvalidDocumentNumber(t *testing.T) {
	service, ledger, cleanup := setupIdentityTest(t)
	defer cleanup()

	ctx := context.Background()
	birth := seventeen()
	insertIdentityTestPerson(t, "person-1", birth)

	callback := approvedCallback("ext-1", birth)
	callback.Fields.DocumentNumber = "A1"

	items, _, err := service.ProcessCallback(ctx, "person-1", callback)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, models.CheckStatusOK, items[0].Status, "the identity verdict itself is not downgraded")
	assert.Equal(t, models.CheckStatusSuspicious, items[1].Status)
	assert.Equal(t, []models.ReasonCode{models.ReasonInvalidIDPieceNumber}, items[1].ReasonCodes)

	checks, err := ledger.ListByPerson(ctx, "person-1")
	require.NoError(t, err)
	assert.Len(t, checks, 2, "the auxiliary finding gets its own ledger entry")
}

func TestProcessCallback_DuplicateDocumentNumber(t *testing.T) {
	service, ledger, cleanup := setupIdentityTest(t)
	defer cleanup()

	ctx := context.Background()
	birth := seventeen()
	insertIdentityTestPerson(t, "person-1", birth)

	// Another person already validated the same number.
	_, err := ledger.Record(ctx, &models.FraudCheck{
		PersonID:        "person-other",
		Type:            models.CheckTypeIdentityDocument,
		EligibilityType: models.TierUnderage,
		Status:          models.CheckStatusOK,
		ResultContent:   &models.IdentityContent{DocumentNumber: "AB123456"},
	})
	require.NoError(t, err)

	items, _, err := service.ProcessCallback(ctx, "person-1", approvedCallback("ext-1", birth))
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, models.CheckStatusOK, items[0].Status)
	assert.Equal(t, []models.ReasonCode{models.ReasonDuplicateIDPieceNumber}, items[1].ReasonCodes)
}

func TestProcessCallback_DeclinedVerdict(t *testing.T) {
	service, _, cleanup := setupIdentityTest(t)
	defer cleanup()

	ctx := context.Background()
	birth := seventeen()
	insertIdentityTestPerson(t, "person-1", birth)

	callback := approvedCallback("ext-1", birth)
	callback.Status = models.VerdictDeclined

	items, decision, err := service.ProcessCallback(ctx, "person-1", callback)
	require.NoError(t, err)

	require.Len(t, items, 1, "document number findings only apply to OK verdicts")
	assert.Equal(t, models.CheckStatusKO, items[0].Status)
	assert.Nil(t, decision.Tier, "a KO check blocks the tier")
}
