package services

import (
	"context"
	"time"

	"github.com/culturepass/eligibility-engine/internal/config"
	"github.com/culturepass/eligibility-engine/internal/logging"
	"github.com/culturepass/eligibility-engine/internal/models"
	"github.com/culturepass/eligibility-engine/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// EligibilityResolver answers "what tier, if any, is this person eligible
// for". A tier is never granted on age alone nor on a check alone: the
// window rules and a corroborating ledger check must agree.
type EligibilityResolver struct {
	ledger   *FraudCheckLedger
	selector *RelevantCheckSelector
	logger   *logging.SafeLogger
}

// NewEligibilityResolver creates a new resolver
func NewEligibilityResolver(ledger *FraudCheckLedger, selector *RelevantCheckSelector, logger *logging.SafeLogger) *EligibilityResolver {
	return &EligibilityResolver{ledger: ledger, selector: selector, logger: logger}
}

// Decide resolves the person's tier at the current instant. No caching: every
// call re-reads the ledger, so a concurrent new check is visible to the next
// resolution but never retroactively changes a returned decision.
func (r *EligibilityResolver) Decide(ctx context.Context, person *models.Person, registeredAt *time.Time) (models.Tier, error) {
	asOf := time.Now()

	tier := EligibilityAt(person.BirthDate, registeredAt, asOf, person.ResidencyCode)
	if tier == "" {
		observability.EligibilityDecisions.WithLabelValues("none").Inc()
		return "", nil
	}

	// The latest manual review overrides ledger-derived status for gating.
	review, err := r.ledger.LatestReview(ctx, person.PersonID)
	if err != nil {
		return "", err
	}
	if review != nil {
		switch review.Outcome {
		case models.CheckStatusKO:
			observability.EligibilityDecisions.WithLabelValues("none").Inc()
			return "", nil
		case models.CheckStatusOK:
			observability.EligibilityDecisions.WithLabelValues(string(tier)).Inc()
			return tier, nil
		}
	}

	check, err := r.selector.Select(ctx, person, tier, registeredAt, asOf)
	if err != nil {
		return "", err
	}
	if check == nil || check.Status == models.CheckStatusKO {
		observability.EligibilityDecisions.WithLabelValues("none").Inc()
		return "", nil
	}

	observability.EligibilityDecisions.WithLabelValues(string(tier)).Inc()
	return tier, nil
}

// CurrentTier resolves a person's tier today and annotates the person
// document with the outcome.
func (r *EligibilityResolver) CurrentTier(ctx context.Context, personID string) (models.Tier, error) {
	person, err := findPersonByID(ctx, personID)
	if err != nil {
		return "", err
	}

	registeredAt, err := r.ledger.RegistrationInstant(ctx, person.PersonID)
	if err != nil {
		return "", err
	}

	tier, err := r.Decide(ctx, person, registeredAt)
	if err != nil {
		return "", err
	}

	update := bson.M{"$set": bson.M{"updated_at": time.Now()}}
	if tier == "" {
		update["$unset"] = bson.M{"tier": ""}
	} else {
		update["$set"].(bson.M)["tier"] = tier
	}
	if _, err := config.MongoDB.Collection(config.AppConfig.PersonCollection).UpdateOne(
		ctx,
		bson.M{"person_id": person.PersonID},
		update,
	); err != nil {
		r.logger.Warn("failed to annotate person tier",
			zap.String("person_id", person.PersonID),
			zap.Error(err))
	}

	return tier, nil
}
