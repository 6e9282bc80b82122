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

// setupLedgerTest redirects the ledger to scratch collections
func setupLedgerTest(t *testing.T) (*FraudCheckLedger, func()) {
	if config.MongoDB == nil {
		t.Skip("Skipping ledger tests: MongoDB not initialized")
	}

	ctx := context.Background()

	origCheckCollection := config.AppConfig.FraudCheckCollection
	origReviewCollection := config.AppConfig.FraudReviewCollection
	config.AppConfig.FraudCheckCollection = "test_ledger_fraud_checks"
	config.AppConfig.FraudReviewCollection = "test_ledger_fraud_reviews"

	ledger := NewFraudCheckLedger(logging.Logger)

	return ledger, func() {
		config.MongoDB.Collection(config.AppConfig.FraudCheckCollection).Drop(ctx)
		config.MongoDB.Collection(config.AppConfig.FraudReviewCollection).Drop(ctx)
		config.AppConfig.FraudCheckCollection = origCheckCollection
		config.AppConfig.FraudReviewCollection = origReviewCollection
	}
}

func TestRecordAndListByPerson(t *testing.T) {
	ledger, cleanup := setupLedgerTest(t)
	defer cleanup()

	ctx := context.Background()

	first := &models.FraudCheck{
		PersonID:        "person-1",
		Type:            models.CheckTypeIdentityDocument,
		EligibilityType: models.TierUnderage,
		Status:          models.CheckStatusPending,
	}
	id, err := ledger.Record(ctx, first)
	require.NoError(t, err)
	assert.False(t, id.IsZero(), "Record should assign an id")
	assert.False(t, first.CreatedAt.IsZero(), "Record should assign CreatedAt")

	second := &models.FraudCheck{
		PersonID:        "person-1",
		Type:            models.CheckTypePhoneValidation,
		EligibilityType: models.TierAge17_18,
		Status:          models.CheckStatusOK,
	}
	_, err = ledger.Record(ctx, second)
	require.NoError(t, err)

	_, err = ledger.Record(ctx, &models.FraudCheck{
		PersonID:        "person-2",
		Type:            models.CheckTypeIdentityDocument,
		EligibilityType: models.TierUnderage,
		Status:          models.CheckStatusOK,
	})
	require.NoError(t, err)

	checks, err := ledger.ListByPerson(ctx, "person-1")
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.Equal(t, models.CheckTypePhoneValidation, checks[0].Type, "newest first")
	assert.Equal(t, models.CheckTypeIdentityDocument, checks[1].Type)

	byType, err := ledger.ListByPersonAndType(ctx, "person-1", models.CheckTypeIdentityDocument)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, models.CheckStatusPending, byType[0].Status)
}

func TestRecord_AssignsServerSideCreatedAt(t *testing.T) {
	ledger, cleanup := setupLedgerTest(t)
	defer cleanup()

	ctx := context.Background()

	backdated := &models.FraudCheck{
		PersonID:        "person-1",
		Type:            models.CheckTypeIdentityDocument,
		EligibilityType: models.TierUnderage,
		Status:          models.CheckStatusOK,
		CreatedAt:       time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err := ledger.Record(ctx, backdated)
	require.NoError(t, err)

	assert.True(t, backdated.CreatedAt.After(time.Now().Add(-time.Minute)),
		"caller-provided CreatedAt must be overwritten")
}

func TestResolvePending(t *testing.T) {
	ledger, cleanup := setupLedgerTest(t)
	defer cleanup()

	ctx := context.Background()

	pending := &models.FraudCheck{
		PersonID:        "person-1",
		Type:            models.CheckTypeIdentityDocument,
		EligibilityType: models.TierUnderage,
		Status:          models.CheckStatusPending,
		ThirdPartyID:    "ext-123",
	}
	_, err := ledger.Record(ctx, pending)
	require.NoError(t, err)

	resolved, err := ledger.ResolvePending(ctx, "ext-123", models.CheckStatusOK, nil, "identity approved", nil)
	require.NoError(t, err)
	assert.Equal(t, models.CheckStatusOK, resolved.Status)
	assert.Equal(t, models.TierUnderage, resolved.EligibilityType)

	// A replayed callback finds no PENDING entry to resolve.
	_, err = ledger.ResolvePending(ctx, "ext-123", models.CheckStatusKO, nil, "replay", nil)
	assert.ErrorIs(t, err, ErrNoPendingCheck)

	checks, err := ledger.ListByPerson(ctx, "person-1")
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, models.CheckStatusOK, checks[0].Status, "resolved entry stays OK after the replay")
}

func TestResolvePending_UnknownThirdPartyID(t *testing.T) {
	ledger, cleanup := setupLedgerTest(t)
	defer cleanup()

	_, err := ledger.ResolvePending(context.Background(), "never-seen", models.CheckStatusOK, nil, "", nil)
	assert.ErrorIs(t, err, ErrNoPendingCheck)
}

func TestReviews(t *testing.T) {
	ledger, cleanup := setupLedgerTest(t)
	defer cleanup()

	ctx := context.Background()

	review, err := ledger.LatestReview(ctx, "person-1")
	require.NoError(t, err)
	assert.Nil(t, review, "no review yet")

	require.NoError(t, ledger.AppendReview(ctx, &models.FraudReview{
		PersonID: "person-1",
		Reviewer: "agent-a",
		Outcome:  models.CheckStatusKO,
	}))
	require.NoError(t, ledger.AppendReview(ctx, &models.FraudReview{
		PersonID: "person-1",
		Reviewer: "agent-b",
		Outcome:  models.CheckStatusOK,
	}))

	review, err = ledger.LatestReview(ctx, "person-1")
	require.NoError(t, err)
	require.NotNil(t, review)
	assert.Equal(t, "agent-b", review.Reviewer, "latest review wins")
	assert.Equal(t, models.CheckStatusOK, review.Outcome)
}

func TestRegistrationInstant(t *testing.T) {
	ledger, cleanup := setupLedgerTest(t)
	defer cleanup()

	ctx := context.Background()

	instant, err := ledger.RegistrationInstant(ctx, "person-1")
	require.NoError(t, err)
	assert.Nil(t, instant, "no application form check yet")

	registered := time.Date(2022, time.January, 5, 10, 0, 0, 0, time.UTC)
	_, err = ledger.Record(ctx, &models.FraudCheck{
		PersonID:        "person-1",
		Type:            models.CheckTypeApplicationForm,
		EligibilityType: models.TierUnderage,
		Status:          models.CheckStatusOK,
		ResultContent:   &models.IdentityContent{RegisteredAt: &registered},
	})
	require.NoError(t, err)

	instant, err = ledger.RegistrationInstant(ctx, "person-1")
	require.NoError(t, err)
	require.NotNil(t, instant)
	assert.True(t, registered.Equal(*instant))
}

func TestDocumentNumberTaken(t *testing.T) {
	ledger, cleanup := setupLedgerTest(t)
	defer cleanup()

	ctx := context.Background()

	_, err := ledger.Record(ctx, &models.FraudCheck{
		PersonID:        "person-1",
		Type:            models.CheckTypeIdentityDocument,
		EligibilityType: models.TierUnderage,
		Status:          models.CheckStatusOK,
		ResultContent:   &models.IdentityContent{DocumentNumber: "AB12345678"},
	})
	require.NoError(t, err)

	taken, err := ledger.DocumentNumberTaken(ctx, "person-2", "AB12345678")
	require.NoError(t, err)
	assert.True(t, taken, "another person holds the number on an OK check")

	taken, err = ledger.DocumentNumberTaken(ctx, "person-2", "ab-1234 5678")
	require.NoError(t, err)
	assert.True(t, taken, "lookup normalizes the number first")

	taken, err = ledger.DocumentNumberTaken(ctx, "person-1", "AB12345678")
	require.NoError(t, err)
	assert.False(t, taken, "a person's own check does not count against them")

	taken, err = ledger.DocumentNumberTaken(ctx, "person-2", "ZZ99999999")
	require.NoError(t, err)
	assert.False(t, taken)
}
