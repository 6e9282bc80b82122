package services

import (
	"fmt"
	"time"

	"github.com/culturepass/eligibility-engine/internal/models"
	"github.com/culturepass/eligibility-engine/internal/utils"
)

// identityEvaluation is a normalized verifier verdict
type identityEvaluation struct {
	Status      models.FraudCheckStatus
	ReasonCodes []models.ReasonCode
	Detail      string
}

// ResultInterpreter turns a verifier callback payload into a normalized
// evaluation. The provider operates two incompatible protocols concurrently
// for different cohorts; each gets its own implementation and the two are
// never merged.
type ResultInterpreter interface {
	Evaluate(callback *models.IdentityCheckCallback, asOf time.Time, residencyCode string) identityEvaluation
}

// InterpreterFor selects the interpreter matching the protocol version on
// the incoming payload
func InterpreterFor(protocolVersion int) (ResultInterpreter, error) {
	switch protocolVersion {
	case models.ProtocolScoreBased:
		return scoreInterpreter{}, nil
	case models.ProtocolStatusBased:
		return statusInterpreter{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownProtocol, protocolVersion)
	}
}

// statusInterpreter handles the current, status-based protocol
type statusInterpreter struct{}

func (statusInterpreter) Evaluate(callback *models.IdentityCheckCallback, asOf time.Time, residencyCode string) identityEvaluation {
	switch callback.Status {
	case models.VerdictApproved:
		return demoteIfNoOpenTier(identityEvaluation{
			Status:      models.CheckStatusOK,
			ReasonCodes: callback.ReasonCodes,
			Detail:      "identity approved by verifier",
		}, callback, asOf, residencyCode)

	case models.VerdictRetryRequired:
		eval := identityEvaluation{
			Status:      models.CheckStatusSuspicious,
			ReasonCodes: callback.ReasonCodes,
			Detail:      "verifier requires a new submission",
		}
		if len(eval.ReasonCodes) == 0 {
			eval.ReasonCodes = []models.ReasonCode{models.ReasonIDCheckUnprocessable}
		}
		return eval

	case models.VerdictDeclined:
		eval := identityEvaluation{
			Status:      models.CheckStatusKO,
			ReasonCodes: callback.ReasonCodes,
			Detail:      "identity declined by verifier",
		}
		if len(eval.ReasonCodes) == 0 {
			eval.ReasonCodes = []models.ReasonCode{models.ReasonIDCheckBlockedOther}
		}
		return eval

	default:
		return identityEvaluation{
			Status: models.CheckStatusError,
			Detail: fmt.Sprintf("unexpected verifier status %q", callback.Status),
		}
	}
}

// scoreInterpreter handles the legacy, score-based protocol
type scoreInterpreter struct{}

func (scoreInterpreter) Evaluate(callback *models.IdentityCheckCallback, asOf time.Time, residencyCode string) identityEvaluation {
	if callback.Score == nil {
		return identityEvaluation{
			Status: models.CheckStatusError,
			Detail: "score missing from score-based callback",
		}
	}

	switch *callback.Score {
	case models.ScoreValid:
		return demoteIfNoOpenTier(identityEvaluation{
			Status:      models.CheckStatusOK,
			ReasonCodes: callback.ReasonCodes,
			Detail:      "identity score valid",
		}, callback, asOf, residencyCode)

	case models.ScoreInvalid:
		return evaluateInvalidSubScores(callback)

	case models.ScoreUndecidable:
		eval := identityEvaluation{
			Status:      models.CheckStatusSuspicious,
			ReasonCodes: callback.ReasonCodes,
			Detail:      "identity score undecidable",
		}
		// Only tag as unprocessable when nothing more specific was collected.
		if len(eval.ReasonCodes) == 0 {
			eval.ReasonCodes = []models.ReasonCode{models.ReasonIDCheckUnprocessable}
		}
		return eval

	default:
		return identityEvaluation{
			Status: models.CheckStatusError,
			Detail: fmt.Sprintf("unexpected identity score %v", *callback.Score),
		}
	}
}

// evaluateInvalidSubScores picks the most specific reason codes for an
// INVALID verdict. With at least one individually failed sub-score the check
// stays SUSPICIOUS; with none it is blocked outright with the generic code
// and all sub-scores embedded in the detail.
func evaluateInvalidSubScores(callback *models.IdentityCheckCallback) identityEvaluation {
	var codes []models.ReasonCode
	sub := callback.SubScores
	if sub != nil {
		if scoreFailed(sub.ReferenceDataCheck) {
			codes = append(codes, models.ReasonIDCheckDataMatch)
		}
		if scoreFailed(sub.SupportedDocument) {
			codes = append(codes, models.ReasonIDCheckNotSupported)
		}
		if scoreFailed(sub.DocumentExpiry) {
			codes = append(codes, models.ReasonIDCheckExpired)
		}
		if scoreFailed(sub.DocumentAuthentic) {
			codes = append(codes, models.ReasonIDCheckNotAuthentic)
		}
	}

	if len(codes) > 0 {
		return identityEvaluation{
			Status:      models.CheckStatusSuspicious,
			ReasonCodes: codes,
			Detail:      "identity score invalid",
		}
	}

	return identityEvaluation{
		Status:      models.CheckStatusKO,
		ReasonCodes: []models.ReasonCode{models.ReasonIDCheckBlockedOther},
		Detail:      fmt.Sprintf("identity score invalid, no failing sub-score: %s", formatSubScores(sub)),
	}
}

func scoreFailed(score *float64) bool {
	return score != nil && *score == models.ScoreInvalid
}

func formatSubScores(sub *models.IdentitySubScores) string {
	if sub == nil {
		return "sub-scores absent"
	}
	return fmt.Sprintf("reference_data=%s supported_document=%s expiry=%s authentic=%s",
		formatScore(sub.ReferenceDataCheck),
		formatScore(sub.SupportedDocument),
		formatScore(sub.DocumentExpiry),
		formatScore(sub.DocumentAuthentic))
}

func formatScore(score *float64) string {
	if score == nil {
		return "absent"
	}
	return fmt.Sprintf("%g", *score)
}

// demoteIfNoOpenTier re-derives eligibility from the identity fields the
// verifier extracted. Approval from the verifier is necessary but not
// sufficient: when no tier is open for the derived age, the approved check is
// demoted to KO with an age-mismatch reason.
func demoteIfNoOpenTier(eval identityEvaluation, callback *models.IdentityCheckCallback, asOf time.Time, residencyCode string) identityEvaluation {
	birthDate := callback.Fields.BirthDate
	if birthDate == nil {
		return identityEvaluation{
			Status:      models.CheckStatusSuspicious,
			ReasonCodes: []models.ReasonCode{models.ReasonIDCheckUnprocessable},
			Detail:      "verifier approved but extracted no birth date",
		}
	}

	tier := EligibilityAt(*birthDate, callback.Fields.RegisteredAt, asOf, residencyCode)
	if tier != "" {
		return eval
	}

	loc := utils.LocationForResidency(residencyCode)
	return identityEvaluation{
		Status:      models.CheckStatusKO,
		ReasonCodes: append([]models.ReasonCode{models.ReasonAgeNotValid}, eval.ReasonCodes...),
		Detail:      fmt.Sprintf("no tier open at age %d", utils.AgeAt(*birthDate, asOf, loc)),
	}
}
