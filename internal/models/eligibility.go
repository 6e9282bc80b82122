package models

// Tier is an eligibility level a person may hold
type Tier string

const (
	// TierUnderage is the lower, age-banded tier
	TierUnderage Tier = "UNDERAGE"
	// TierAge18 is the upper tier, held at exactly 18
	TierAge18 Tier = "AGE18"
	// TierAge17_18 is the transitional bridge tier; a check performed for it
	// is usable as evidence for either neighboring tier
	TierAge17_18 Tier = "AGE17_18"
)

// IsBridge reports whether the tier is the transitional bridge designation
func (t Tier) IsBridge() bool {
	return t == TierAge17_18
}

// TierDecision is the outcome of an eligibility resolution
type TierDecision struct {
	Tier *Tier `json:"tier"`
}

// DecisionFor builds a TierDecision, mapping the empty tier to none
func DecisionFor(tier Tier) TierDecision {
	if tier == "" {
		return TierDecision{}
	}
	return TierDecision{Tier: &tier}
}
