package services

import (
	"context"
	"time"

	"github.com/culturepass/eligibility-engine/internal/logging"
	"github.com/culturepass/eligibility-engine/internal/models"
)

// bridgeCompatibility declares, per concrete tier, which bridge tier's checks
// count as evidence for it and whether the age-transition grace window must
// still be open. The product rule lives in this table, not in the selection
// algorithm.
var bridgeCompatibility = map[models.Tier]struct {
	Bridge     models.Tier
	NeedsGrace bool
}{
	models.TierUnderage: {Bridge: models.TierAge17_18},
	// A bridge check originally aimed at the lower tier serves the upper tier
	// only while the person has not left the 19-year-old grace window.
	models.TierAge18: {Bridge: models.TierAge17_18, NeedsGrace: true},
}

// RelevantCheckSelector picks the single fraud check that should govern an
// eligibility decision
type RelevantCheckSelector struct {
	ledger *FraudCheckLedger
	logger *logging.SafeLogger
}

// NewRelevantCheckSelector creates a new selector over the given ledger
func NewRelevantCheckSelector(ledger *FraudCheckLedger, logger *logging.SafeLogger) *RelevantCheckSelector {
	return &RelevantCheckSelector{ledger: ledger, logger: logger}
}

// Select returns the check governing the person's claim to targetTier, or
// nil when no compatible check exists.
func (s *RelevantCheckSelector) Select(ctx context.Context, person *models.Person, targetTier models.Tier, registeredAt *time.Time, asOf time.Time) (*models.FraudCheck, error) {
	checks, err := s.ledger.ListByPerson(ctx, person.PersonID)
	if err != nil {
		return nil, err
	}

	graceOpen := graceWindowOpen(person.BirthDate, registeredAt, asOf, person.ResidencyCode)
	return pickRelevant(checks, allowedTiers(targetTier, graceOpen)), nil
}

// allowedTiers expands a target tier with its bridge-compatible tier
func allowedTiers(target models.Tier, graceOpen bool) map[models.Tier]bool {
	allowed := map[models.Tier]bool{target: true}
	if rule, ok := bridgeCompatibility[target]; ok {
		if !rule.NeedsGrace || graceOpen {
			allowed[rule.Bridge] = true
		}
	}
	return allowed
}

// pickRelevant applies the precedence order: an OK check wins outright, then
// the newest PENDING, then the newest KO. Checks whose eligibility type is
// neither the target nor bridge-compatible are invisible regardless of
// status.
func pickRelevant(checks []models.FraudCheck, allowed map[models.Tier]bool) *models.FraudCheck {
	var ok, pending, ko *models.FraudCheck
	for i := range checks {
		check := &checks[i]
		if !allowed[check.EligibilityType] {
			continue
		}
		switch check.Status {
		case models.CheckStatusOK:
			ok = newer(ok, check)
		case models.CheckStatusPending:
			pending = newer(pending, check)
		case models.CheckStatusKO:
			ko = newer(ko, check)
		}
	}

	if ok != nil {
		return ok
	}
	if pending != nil {
		return pending
	}
	return ko
}

func newer(current, candidate *models.FraudCheck) *models.FraudCheck {
	if current == nil || candidate.CreatedAt.After(current.CreatedAt) {
		return candidate
	}
	return current
}
