package services

import (
	"time"

	"github.com/culturepass/eligibility-engine/internal/models"
	"github.com/culturepass/eligibility-engine/internal/utils"
)

// UpperTierAge is the fixed band of the upper tier
const UpperTierAge = 18

// DecreeInstant is when the widened lower band took legal effect
var DecreeInstant = time.Date(2021, time.May, 20, 0, 0, 0, 0, time.UTC)

// ageBandRule is one row of the dated rule table for the lower tier band.
// Legal changes add rows; the lookup logic never changes.
type ageBandRule struct {
	From     time.Time
	LowerMin int
	LowerMax int
}

var ageBandRules = []ageBandRule{
	{From: time.Time{}, LowerMin: 16, LowerMax: 17},
	{From: DecreeInstant, LowerMin: 15, LowerMax: 17},
}

// lowerBandAt returns the lower tier's age band in force at the given instant
func lowerBandAt(asOf time.Time) (int, int) {
	rule := ageBandRules[0]
	for _, r := range ageBandRules[1:] {
		if !r.From.After(asOf) {
			rule = r
		}
	}
	return rule.LowerMin, rule.LowerMax
}

// EligibilityAt returns the tier theoretically open to a person at the given
// instant, or "" when none is. Ages are computed against local midnight in
// the person's residency, not UTC.
//
// A 19-year-old keeps access to the upper tier only when registeredAt shows
// the process began before their 19th birthday. A nil registeredAt skips that
// grace rule entirely: undated checks cannot benefit from it.
func EligibilityAt(birthDate time.Time, registeredAt *time.Time, asOf time.Time, residencyCode string) models.Tier {
	loc := utils.LocationForResidency(residencyCode)
	age := utils.AgeAt(birthDate, asOf, loc)

	if age == UpperTierAge {
		return models.TierAge18
	}

	lowerMin, lowerMax := lowerBandAt(asOf)
	if age >= lowerMin && age <= lowerMax {
		return models.TierUnderage
	}

	if age == UpperTierAge+1 && registeredAt != nil {
		nineteenth := utils.NthBirthday(birthDate, UpperTierAge+1, loc)
		if registeredAt.Before(nineteenth) {
			return models.TierAge18
		}
	}

	return ""
}

// graceWindowOpen reports whether the person is still within one
// tier-transition of the bridge tier: not yet 19, or 19 with the
// grandfathering grace of EligibilityAt still applying.
func graceWindowOpen(birthDate time.Time, registeredAt *time.Time, asOf time.Time, residencyCode string) bool {
	loc := utils.LocationForResidency(residencyCode)
	age := utils.AgeAt(birthDate, asOf, loc)

	if age <= UpperTierAge {
		return true
	}
	if age == UpperTierAge+1 && registeredAt != nil {
		return registeredAt.Before(utils.NthBirthday(birthDate, UpperTierAge+1, loc))
	}
	return false
}
