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
	"go.mongodb.org/mongo-driver/bson"
)

func setupResolverTest(t *testing.T) (*EligibilityResolver, *FraudCheckLedger, func()) {
	if config.MongoDB == nil {
		t.Skip("Skipping resolver tests: MongoDB not initialized")
	}

	ctx := context.Background()

	origPersons := config.AppConfig.PersonCollection
	origChecks := config.AppConfig.FraudCheckCollection
	origReviews := config.AppConfig.FraudReviewCollection
	config.AppConfig.PersonCollection = "test_resolver_persons"
	config.AppConfig.FraudCheckCollection = "test_resolver_fraud_checks"
	config.AppConfig.FraudReviewCollection = "test_resolver_fraud_reviews"

	ledger := NewFraudCheckLedger(logging.Logger)
	selector := NewRelevantCheckSelector(ledger, logging.Logger)
	resolver := NewEligibilityResolver(ledger, selector, logging.Logger)

	return resolver, ledger, func() {
		config.MongoDB.Collection(config.AppConfig.PersonCollection).Drop(ctx)
		config.MongoDB.Collection(config.AppConfig.FraudCheckCollection).Drop(ctx)
		config.MongoDB.Collection(config.AppConfig.FraudReviewCollection).Drop(ctx)
		config.AppConfig.PersonCollection = origPersons
		config.AppConfig.FraudCheckCollection = origChecks
		config.AppConfig.FraudReviewCollection = origReviews
	}
}

// seventeen returns a birth date making the person 17 years old today
func seventeen() time.Time {
	return time.Now().UTC().AddDate(-17, 0, -30)
}

func TestDecide_RequiresWindowAndCheck(t *testing.T) {
	resolver, ledger, cleanup := setupResolverTest(t)
	defer cleanup()

	ctx := context.Background()

	person := &models.Person{
		PersonID:      "person-1",
		BirthDate:     seventeen(),
		ResidencyCode: "75001",
	}

	// Open window but empty ledger: no tier.
	tier, err := resolver.Decide(ctx, person, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Tier(""), tier, "age alone grants nothing")

	// An OK check closes the gap.
	_, err = ledger.Record(ctx, &models.FraudCheck{
		PersonID:        "person-1",
		Type:            models.CheckTypeIdentityDocument,
		EligibilityType: models.TierUnderage,
		Status:          models.CheckStatusOK,
	})
	require.NoError(t, err)

	tier, err = resolver.Decide(ctx, person, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TierUnderage, tier)
}

func TestDecide_ClosedWindowIgnoresChecks(t *testing.T) {
	resolver, ledger, cleanup := setupResolverTest(t)
	defer cleanup()

	ctx := context.Background()

	person := &models.Person{
		PersonID:      "person-1",
		BirthDate:     time.Now().UTC().AddDate(-25, 0, 0),
		ResidencyCode: "75001",
	}

	_, err := ledger.Record(ctx, &models.FraudCheck{
		PersonID:        "person-1",
		Type:            models.CheckTypeIdentityDocument,
		EligibilityType: models.TierAge18,
		Status:          models.CheckStatusOK,
	})
	require.NoError(t, err)

	tier, err := resolver.Decide(ctx, person, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Tier(""), tier, "a check alone grants nothing either")
}

func TestDecide_KOCheckBlocks(t *testing.T) {
	resolver, ledger, cleanup := setupResolverTest(t)
	defer cleanup()

	ctx := context.Background()

	person := &models.Person{
		PersonID:      "person-1",
		BirthDate:     seventeen(),
		ResidencyCode: "75001",
	}

	_, err := ledger.Record(ctx, &models.FraudCheck{
		PersonID:        "person-1",
		Type:            models.CheckTypeIdentityDocument,
		EligibilityType: models.TierUnderage,
		Status:          models.CheckStatusKO,
	})
	require.NoError(t, err)

	tier, err := resolver.Decide(ctx, person, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Tier(""), tier)
}

func TestDecide_PendingCheckCounts(t *testing.T) {
	resolver, ledger, cleanup := setupResolverTest(t)
	defer cleanup()

	ctx := context.Background()

	person := &models.Person{
		PersonID:      "person-1",
		BirthDate:     seventeen(),
		ResidencyCode: "75001",
	}

	_, err := ledger.Record(ctx, &models.FraudCheck{
		PersonID:        "person-1",
		Type:            models.CheckTypeIdentityDocument,
		EligibilityType: models.TierUnderage,
		Status:          models.CheckStatusPending,
	})
	require.NoError(t, err)

	tier, err := resolver.Decide(ctx, person, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TierUnderage, tier, "a PENDING check keeps access open")
}

func TestDecide_BridgeCheckServesLowerTier(t *testing.T) {
	resolver, ledger, cleanup := setupResolverTest(t)
	defer cleanup()

	ctx := context.Background()

	person := &models.Person{
		PersonID:      "person-1",
		BirthDate:     seventeen(),
		ResidencyCode: "75001",
	}

	_, err := ledger.Record(ctx, &models.FraudCheck{
		PersonID:        "person-1",
		Type:            models.CheckTypeIdentityDocument,
		EligibilityType: models.TierAge17_18,
		Status:          models.CheckStatusOK,
	})
	require.NoError(t, err)

	tier, err := resolver.Decide(ctx, person, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TierUnderage, tier)
}

func TestDecide_ReviewOverrides(t *testing.T) {
	resolver, ledger, cleanup := setupResolverTest(t)
	defer cleanup()

	ctx := context.Background()

	person := &models.Person{
		PersonID:      "person-1",
		BirthDate:     seventeen(),
		ResidencyCode: "75001",
	}

	_, err := ledger.Record(ctx, &models.FraudCheck{
		PersonID:        "person-1",
		Type:            models.CheckTypeIdentityDocument,
		EligibilityType: models.TierUnderage,
		Status:          models.CheckStatusOK,
	})
	require.NoError(t, err)

	// A KO review blocks despite the OK check.
	require.NoError(t, ledger.AppendReview(ctx, &models.FraudReview{
		PersonID: "person-1",
		Reviewer: "agent-a",
		Outcome:  models.CheckStatusKO,
	}))

	tier, err := resolver.Decide(ctx, person, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Tier(""), tier)

	// A newer OK review restores access.
	require.NoError(t, ledger.AppendReview(ctx, &models.FraudReview{
		PersonID: "person-1",
		Reviewer: "agent-b",
		Outcome:  models.CheckStatusOK,
	}))

	tier, err = resolver.Decide(ctx, person, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TierUnderage, tier)
}

func TestCurrentTier_AnnotatesPerson(t *testing.T) {
	resolver, ledger, cleanup := setupResolverTest(t)
	defer cleanup()

	ctx := context.Background()

	person := models.Person{
		PersonID:              "person-1",
		BirthDate:             seventeen(),
		ResidencyCode:         "75001",
		PhoneValidationStatus: models.PhoneStatusUnvalidated,
	}
	_, err := config.MongoDB.Collection(config.AppConfig.PersonCollection).InsertOne(ctx, person)
	require.NoError(t, err)

	_, err = ledger.Record(ctx, &models.FraudCheck{
		PersonID:        "person-1",
		Type:            models.CheckTypeIdentityDocument,
		EligibilityType: models.TierUnderage,
		Status:          models.CheckStatusOK,
	})
	require.NoError(t, err)

	tier, err := resolver.CurrentTier(ctx, "person-1")
	require.NoError(t, err)
	assert.Equal(t, models.TierUnderage, tier)

	var stored models.Person
	err = config.MongoDB.Collection(config.AppConfig.PersonCollection).FindOne(
		ctx, bson.M{"person_id": "person-1"},
	).Decode(&stored)
	require.NoError(t, err)
	require.NotNil(t, stored.Tier)
	assert.Equal(t, models.TierUnderage, *stored.Tier)
}

func TestCurrentTier_PersonNotFound(t *testing.T) {
	resolver, _, cleanup := setupResolverTest(t)
	defer cleanup()

	_, err := resolver.CurrentTier(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrPersonNotFound)
}
