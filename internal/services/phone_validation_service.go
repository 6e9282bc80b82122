package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/culturepass/eligibility-engine/internal/config"
	"github.com/culturepass/eligibility-engine/internal/logging"
	"github.com/culturepass/eligibility-engine/internal/models"
	"github.com/culturepass/eligibility-engine/internal/observability"
	"github.com/culturepass/eligibility-engine/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const smsRateLimitKeyPrefix = "phone_validation:sms_count:"

// PhoneValidationService manages phone-ownership validation: code issuance
// with SMS dispatch retry, code verification with a separate attempt budget,
// and ownership-conflict resolution with an audit trail.
type PhoneValidationService struct {
	ledger *FraudCheckLedger
	sms    SMSSender
	logger *logging.SafeLogger
}

// NewPhoneValidationService creates a new phone validation service
func NewPhoneValidationService(ledger *FraudCheckLedger, sms SMSSender, logger *logging.SafeLogger) *PhoneValidationService {
	return &PhoneValidationService{ledger: ledger, sms: sms, logger: logger}
}

// RequestCode issues a one-time code for a candidate phone number and
// dispatches it by SMS. Callers must expect it to block for up to the full
// SMS retry budget. When it returns an error, no code is considered sent.
func (s *PhoneValidationService) RequestCode(ctx context.Context, personID, phoneNumber string) error {
	person, err := findPersonByID(ctx, personID)
	if err != nil {
		return err
	}

	if person.PhoneValidationStatus == models.PhoneStatusValidated {
		return ErrAlreadyValidated
	}
	if !person.EmailValidated {
		return ErrEmailNotValidated
	}
	if person.IsBeneficiary() {
		return ErrAlreadyBeneficiary
	}

	components, err := utils.ParsePhoneNumber(phoneNumber)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPhoneNumber, err)
	}
	for _, denied := range config.AppConfig.PhoneDenyList {
		if denied == components.E164 {
			return ErrPhoneDenied
		}
	}
	if !utils.RegionAllowed(components, config.AppConfig.PhoneCountryAllowList) {
		return ErrCountryNotAllowed
	}

	// Shared atomic counter: concurrent requests for the same person must not
	// double the allowed rate.
	rateKey := smsRateLimitKeyPrefix + person.PersonID
	count, err := config.Redis.IncrWithTTL(ctx, rateKey, config.AppConfig.SMSSendLimitWindow)
	if err != nil {
		return fmt.Errorf("failed to check sending rate limit: %w", err)
	}
	if count > int64(config.AppConfig.SMSSendLimit) {
		return ErrSendingLimitReached
	}

	// Ownership pre-check: no silent transfer from an active beneficiary, and
	// no SMS spent on a number we will refuse at verification time anyway.
	owner, err := validatedOwner(ctx, components.E164)
	if err != nil {
		return err
	}
	if owner != nil && owner.PersonID != person.PersonID && owner.IsBeneficiary() {
		return ErrPhoneOwnedByBeneficiary
	}

	code := utils.GenerateVerificationCode()
	if err := s.dispatchWithRetry(ctx, components.E164, code); err != nil {
		return err
	}

	now := time.Now()
	pending := models.PendingPhoneValidation{
		PersonID:    person.PersonID,
		PhoneNumber: components.E164,
		CodeHash:    utils.HashVerificationCode(code),
		Attempts:    0,
		CreatedAt:   now,
		ExpiresAt:   now.Add(config.AppConfig.PhoneCodeTTL),
	}
	_, err = config.MongoDB.Collection(config.AppConfig.PhoneValidationCollection).ReplaceOne(
		ctx,
		bson.M{"person_id": person.PersonID},
		pending,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		s.logger.Error("failed to persist pending phone validation",
			zap.String("person_id", person.PersonID),
			zap.Error(err))
		return fmt.Errorf("failed to persist pending validation: %w", err)
	}

	s.logger.Info("phone validation code sent",
		zap.String("person_id", person.PersonID),
		zap.String("phone_number", observability.MaskPhone(components.E164)))
	return nil
}

// dispatchWithRetry sends the code with bounded synchronous retries and
// linear backoff, under a deadline shorter than the code's expiry. Only
// failures the gateway flags retryable consume further attempts; a timeout
// counts as a hard failure, never an ambiguous state.
func (s *PhoneValidationService) dispatchWithRetry(ctx context.Context, phoneNumber, code string) error {
	message := fmt.Sprintf("Your verification code is %s", code)

	ctx, cancel := context.WithTimeout(ctx, config.AppConfig.SMSSendTimeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= config.AppConfig.SMSSendMaxAttempts; attempt++ {
		err := s.sms.Send(ctx, phoneNumber, message)
		if err == nil {
			observability.SMSSendAttempts.WithLabelValues("success").Inc()
			return nil
		}
		lastErr = err

		var smsErr *SMSError
		if !errors.As(err, &smsErr) || !smsErr.Retryable {
			observability.SMSSendAttempts.WithLabelValues("hard_failure").Inc()
			s.logger.Error("sms dispatch failed",
				zap.String("phone_number", observability.MaskPhone(phoneNumber)),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return fmt.Errorf("%w: %v", ErrSMSSendFailed, err)
		}

		observability.SMSSendAttempts.WithLabelValues("retryable_failure").Inc()
		s.logger.Warn("sms dispatch attempt failed, retrying",
			zap.String("phone_number", observability.MaskPhone(phoneNumber)),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < config.AppConfig.SMSSendMaxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * config.AppConfig.SMSSendBackoff):
			case <-ctx.Done():
				observability.SMSSendAttempts.WithLabelValues("timeout").Inc()
				return fmt.Errorf("%w: %v", ErrSMSSendFailed, ctx.Err())
			}
		}
	}

	observability.SMSSendAttempts.WithLabelValues("exhausted").Inc()
	return fmt.Errorf("%w: retries exhausted: %v", ErrSMSSendFailed, lastErr)
}

// VerifyCode checks a submitted code against the person's pending validation.
// It returns the remaining attempt budget alongside any verification failure.
func (s *PhoneValidationService) VerifyCode(ctx context.Context, personID, code string) (int, error) {
	person, err := findPersonByID(ctx, personID)
	if err != nil {
		return 0, err
	}
	if person.PhoneValidationStatus == models.PhoneStatusValidated {
		return 0, ErrAlreadyValidated
	}

	// Increment the attempt counter before comparing; a separate budget from
	// sending.
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var pending models.PendingPhoneValidation
	err = config.MongoDB.Collection(config.AppConfig.PhoneValidationCollection).FindOneAndUpdate(
		ctx,
		bson.M{"person_id": person.PersonID, "expires_at": bson.M{"$gt": time.Now()}},
		bson.M{"$inc": bson.M{"attempts": 1}},
		opts,
	).Decode(&pending)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, ErrNoPendingValidation
		}
		return 0, fmt.Errorf("failed to load pending validation: %w", err)
	}

	remaining := config.AppConfig.MaxVerifyAttempts - pending.Attempts
	if remaining < 0 {
		remaining = 0
	}

	// The budget check precedes the comparison: a correct code on an
	// over-budget validation does not rescue it.
	if pending.Attempts > config.AppConfig.MaxVerifyAttempts {
		observability.PhoneVerifyAttempts.WithLabelValues("exhausted").Inc()
		if err := s.escalateExhaustedAttempts(ctx, person, &pending); err != nil {
			return 0, err
		}
		return 0, ErrAttemptsExhausted
	}

	match := subtle.ConstantTimeCompare(
		[]byte(utils.HashVerificationCode(code)),
		[]byte(pending.CodeHash),
	) == 1

	if !match {
		observability.PhoneVerifyAttempts.WithLabelValues("mismatch").Inc()
		if pending.Attempts >= config.AppConfig.MaxVerifyAttempts {
			if err := s.escalateExhaustedAttempts(ctx, person, &pending); err != nil {
				return 0, err
			}
			return 0, ErrAttemptsExhausted
		}
		return remaining, ErrInvalidCode
	}

	if err := s.promoteOwnership(ctx, person, &pending); err != nil {
		return remaining, err
	}

	observability.PhoneVerifyAttempts.WithLabelValues("success").Inc()
	return remaining, nil
}

// escalateExhaustedAttempts hands an out-of-budget person over to fraud
// handling: the pending code is destroyed and a SUSPICIOUS check is written
// for the audit trail.
func (s *PhoneValidationService) escalateExhaustedAttempts(ctx context.Context, person *models.Person, pending *models.PendingPhoneValidation) error {
	if _, err := config.MongoDB.Collection(config.AppConfig.PhoneValidationCollection).DeleteOne(
		ctx,
		bson.M{"person_id": person.PersonID},
	); err != nil {
		return fmt.Errorf("failed to invalidate pending validation: %w", err)
	}

	_, err := s.ledger.Record(ctx, &models.FraudCheck{
		PersonID:        person.PersonID,
		Type:            models.CheckTypePhoneValidation,
		EligibilityType: models.TierAge17_18,
		Status:          models.CheckStatusSuspicious,
		ReasonCodes:     []models.ReasonCode{models.ReasonPhoneAttemptsExhausted},
		Detail:          fmt.Sprintf("verification attempts exhausted for %s", observability.MaskPhone(pending.PhoneNumber)),
	})
	if err != nil {
		return err
	}

	s.logger.Warn("phone verification attempts exhausted",
		zap.String("person_id", person.PersonID),
		zap.String("phone_number", observability.MaskPhone(pending.PhoneNumber)))
	return nil
}

// promoteOwnership makes the person the validated owner of the number. When
// a different person currently holds it, the transfer (demote loser, audit
// both parties, promote winner) runs inside one transaction: a failure
// partway must not leave the number owned by nobody or by both.
func (s *PhoneValidationService) promoteOwnership(ctx context.Context, person *models.Person, pending *models.PendingPhoneValidation) error {
	owner, err := validatedOwner(ctx, pending.PhoneNumber)
	if err != nil {
		if errors.Is(err, ErrPhoneOwnershipCorrupt) {
			s.logger.Error("phone ownership invariant already violated",
				zap.String("phone_number", observability.MaskPhone(pending.PhoneNumber)))
		}
		return err
	}
	if owner != nil && owner.PersonID != person.PersonID && owner.IsBeneficiary() {
		return ErrPhoneOwnedByBeneficiary
	}

	persons := config.MongoDB.Collection(config.AppConfig.PersonCollection)
	now := time.Now()

	var operations []utils.DatabaseOperation

	conflicting := owner != nil && owner.PersonID != person.PersonID
	if conflicting {
		// The loser must be demoted before the winner is promoted: the partial
		// unique index on validated phone owners is enforced per write, not at
		// commit, so promoting first would collide with the loser's document.
		// Racing verifications of a contested number are serialized by the
		// transient-error retry inside ExecuteWithTransaction.
		operations = append(operations,
			utils.DatabaseOperation{
				Name: "demote_losing_owner",
				Operation: func(sessCtx mongo.SessionContext) error {
					_, err := persons.UpdateOne(sessCtx,
						bson.M{"person_id": owner.PersonID, "phone_validation_status": models.PhoneStatusValidated},
						bson.M{"$set": bson.M{
							"phone_validation_status": models.PhoneStatusUnvalidated,
							"updated_at":              now,
						}},
					)
					return err
				},
			},
			utils.DatabaseOperation{
				Name: "promote_winning_owner",
				Operation: func(sessCtx mongo.SessionContext) error {
					_, err := persons.UpdateOne(sessCtx,
						bson.M{"person_id": person.PersonID},
						bson.M{"$set": bson.M{
							"phone_number":            pending.PhoneNumber,
							"phone_validation_status": models.PhoneStatusValidated,
							"updated_at":              now,
						}},
					)
					return err
				},
			},
			utils.DatabaseOperation{
				Name: "audit_losing_owner",
				Operation: func(sessCtx mongo.SessionContext) error {
					return s.ledger.RecordInSession(sessCtx, &models.FraudCheck{
						PersonID:        owner.PersonID,
						Type:            models.CheckTypePhoneValidation,
						EligibilityType: models.TierAge17_18,
						Status:          models.CheckStatusSuspicious,
						ReasonCodes:     []models.ReasonCode{models.ReasonPhoneUnvalidatedByPeer},
						Detail:          fmt.Sprintf("phone %s unvalidated by peer %s", observability.MaskPhone(pending.PhoneNumber), person.PersonID),
					})
				},
			},
			utils.DatabaseOperation{
				Name: "audit_winning_owner",
				Operation: func(sessCtx mongo.SessionContext) error {
					return s.ledger.RecordInSession(sessCtx, &models.FraudCheck{
						PersonID:        person.PersonID,
						Type:            models.CheckTypePhoneValidation,
						EligibilityType: models.TierAge17_18,
						Status:          models.CheckStatusSuspicious,
						ReasonCodes:     []models.ReasonCode{models.ReasonPhoneUnvalidatedForPeer},
						Detail:          fmt.Sprintf("phone %s unvalidated for peer %s", observability.MaskPhone(pending.PhoneNumber), owner.PersonID),
					})
				},
			},
		)
	} else {
		operations = append(operations, utils.DatabaseOperation{
			Name: "promote_owner",
			Operation: func(sessCtx mongo.SessionContext) error {
				_, err := persons.UpdateOne(sessCtx,
					bson.M{"person_id": person.PersonID},
					bson.M{"$set": bson.M{
						"phone_number":            pending.PhoneNumber,
						"phone_validation_status": models.PhoneStatusValidated,
						"updated_at":              now,
					}},
				)
				return err
			},
		})
	}

	operations = append(operations,
		utils.DatabaseOperation{
			Name: "record_validation_check",
			Operation: func(sessCtx mongo.SessionContext) error {
				return s.ledger.RecordInSession(sessCtx, &models.FraudCheck{
					PersonID:        person.PersonID,
					Type:            models.CheckTypePhoneValidation,
					EligibilityType: models.TierAge17_18,
					Status:          models.CheckStatusOK,
					Detail:          fmt.Sprintf("phone %s validated", observability.MaskPhone(pending.PhoneNumber)),
				})
			},
		},
		utils.DatabaseOperation{
			Name: "delete_pending_validation",
			Operation: func(sessCtx mongo.SessionContext) error {
				_, err := config.MongoDB.Collection(config.AppConfig.PhoneValidationCollection).DeleteOne(
					sessCtx,
					bson.M{"person_id": person.PersonID},
				)
				return err
			},
		},
	)

	if err := utils.ExecuteWithTransaction(ctx, operations); err != nil {
		return err
	}

	if conflicting {
		s.logger.Warn("phone ownership transferred",
			zap.String("winner", person.PersonID),
			zap.String("loser", owner.PersonID),
			zap.String("phone_number", observability.MaskPhone(pending.PhoneNumber)))
	}
	return nil
}
