package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/culturepass/eligibility-engine/internal/logging"
	"github.com/culturepass/eligibility-engine/internal/models"
	"github.com/culturepass/eligibility-engine/internal/observability"
	"github.com/culturepass/eligibility-engine/internal/utils"
	"go.uber.org/zap"
)

// IdentityCheckService processes verifier callbacks: normalize the payload,
// persist the outcome to the ledger, recompute the person's tier.
type IdentityCheckService struct {
	ledger   *FraudCheckLedger
	resolver *EligibilityResolver
	logger   *logging.SafeLogger
}

// NewIdentityCheckService creates a new identity check service
func NewIdentityCheckService(ledger *FraudCheckLedger, resolver *EligibilityResolver, logger *logging.SafeLogger) *IdentityCheckService {
	return &IdentityCheckService{ledger: ledger, resolver: resolver, logger: logger}
}

// ProcessCallback ingests one identity-check callback for a person. The
// returned items are ordered: the check's own verdict first, auxiliary
// document-number findings after. Status and auxiliary findings are never
// merged into one verdict.
func (s *IdentityCheckService) ProcessCallback(ctx context.Context, personID string, callback *models.IdentityCheckCallback) ([]models.FraudItem, models.TierDecision, error) {
	person, err := findPersonByID(ctx, personID)
	if err != nil {
		return nil, models.TierDecision{}, err
	}

	interpreter, err := InterpreterFor(callback.ProtocolVersion)
	if err != nil {
		return nil, models.TierDecision{}, err
	}

	eval := interpreter.Evaluate(callback, time.Now(), person.ResidencyCode)

	items := []models.FraudItem{{
		Status:      eval.Status,
		Detail:      eval.Detail,
		ReasonCodes: eval.ReasonCodes,
	}}

	// A format failure or duplicate does not downgrade the identity check
	// itself; each yields its own item.
	if eval.Status == models.CheckStatusOK {
		auxItems, auxErr := s.documentNumberFindings(ctx, person.PersonID, callback.Fields.DocumentNumber)
		if auxErr != nil {
			return nil, models.TierDecision{}, auxErr
		}
		items = append(items, auxItems...)
	}

	if err := s.persistOutcome(ctx, person, callback, eval, items[1:]); err != nil {
		return nil, models.TierDecision{}, err
	}

	tier, err := s.resolver.CurrentTier(ctx, person.PersonID)
	if err != nil {
		return nil, models.TierDecision{}, err
	}

	s.logger.Info("identity callback processed",
		zap.String("person_id", person.PersonID),
		zap.String("third_party_id", callback.IdentificationID),
		zap.Int("protocol_version", callback.ProtocolVersion),
		zap.String("status", string(eval.Status)),
		zap.String("tier", string(tier)))

	return items, models.DecisionFor(tier), nil
}

// documentNumberFindings validates the extracted document number's format and
// checks it for duplication against other persons' checks
func (s *IdentityCheckService) documentNumberFindings(ctx context.Context, personID, documentNumber string) ([]models.FraudItem, error) {
	var items []models.FraudItem

	if !utils.ValidDocumentNumber(documentNumber) {
		items = append(items, models.FraudItem{
			Status:      models.CheckStatusSuspicious,
			Detail:      fmt.Sprintf("document number %s has an invalid format", observability.MaskDocumentNumber(documentNumber)),
			ReasonCodes: []models.ReasonCode{models.ReasonInvalidIDPieceNumber},
		})
		return items, nil
	}

	taken, err := s.ledger.DocumentNumberTaken(ctx, personID, documentNumber)
	if err != nil {
		return nil, err
	}
	if taken {
		items = append(items, models.FraudItem{
			Status:      models.CheckStatusSuspicious,
			Detail:      fmt.Sprintf("document number %s already used by another person", observability.MaskDocumentNumber(documentNumber)),
			ReasonCodes: []models.ReasonCode{models.ReasonDuplicateIDPieceNumber},
		})
	}
	return items, nil
}

// persistOutcome resolves the pending ledger entry correlated to the
// callback, or records a fresh one when the check was started out-of-band.
// Auxiliary findings are appended as their own auditable entries.
func (s *IdentityCheckService) persistOutcome(ctx context.Context, person *models.Person, callback *models.IdentityCheckCallback, eval identityEvaluation, auxItems []models.FraudItem) error {
	content := &models.IdentityContent{
		BirthDate:      callback.Fields.BirthDate,
		RegisteredAt:   callback.Fields.RegisteredAt,
		DocumentNumber: utils.NormalizeDocumentNumber(callback.Fields.DocumentNumber),
		FirstName:      callback.Fields.FirstName,
		LastName:       callback.Fields.LastName,
		Score:          callback.Score,
	}

	resolved, err := s.ledger.ResolvePending(ctx, callback.IdentificationID, eval.Status, eval.ReasonCodes, eval.Detail, content)
	eligibilityType := models.TierAge17_18
	if err == nil {
		eligibilityType = resolved.EligibilityType
	} else if errors.Is(err, ErrNoPendingCheck) {
		if callback.Fields.BirthDate != nil {
			if derived := EligibilityAt(*callback.Fields.BirthDate, callback.Fields.RegisteredAt, time.Now(), person.ResidencyCode); derived != "" {
				eligibilityType = derived
			}
		}
		_, err = s.ledger.Record(ctx, &models.FraudCheck{
			PersonID:        person.PersonID,
			Type:            models.CheckTypeIdentityDocument,
			EligibilityType: eligibilityType,
			Status:          eval.Status,
			ReasonCodes:     eval.ReasonCodes,
			Detail:          eval.Detail,
			ResultContent:   content,
			ThirdPartyID:    callback.IdentificationID,
		})
	}
	if err != nil {
		return err
	}

	for _, item := range auxItems {
		if _, err := s.ledger.Record(ctx, &models.FraudCheck{
			PersonID:        person.PersonID,
			Type:            models.CheckTypeIdentityDocument,
			EligibilityType: eligibilityType,
			Status:          item.Status,
			ReasonCodes:     item.ReasonCodes,
			Detail:          item.Detail,
			ThirdPartyID:    callback.IdentificationID,
		}); err != nil {
			return err
		}
	}
	return nil
}
