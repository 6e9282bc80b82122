package services

import (
	"context"
	"fmt"
	"time"

	"github.com/culturepass/eligibility-engine/internal/config"
	"github.com/culturepass/eligibility-engine/internal/logging"
	"github.com/culturepass/eligibility-engine/internal/models"
	"github.com/culturepass/eligibility-engine/internal/observability"
	"github.com/culturepass/eligibility-engine/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// FraudCheckLedger is the append-mostly record store of every identity and
// anti-fraud check attempted for a person. Status transitions out of PENDING
// and review appends are the only mutations; entries are never deleted.
type FraudCheckLedger struct {
	logger *logging.SafeLogger
}

// NewFraudCheckLedger creates a new ledger service
func NewFraudCheckLedger(logger *logging.SafeLogger) *FraudCheckLedger {
	return &FraudCheckLedger{logger: logger}
}

// Record appends a new fraud check. CreatedAt is always assigned here, never
// taken from the caller, so the selector's newest-wins tie-break stays
// well-defined and entries cannot be backdated.
func (l *FraudCheckLedger) Record(ctx context.Context, check *models.FraudCheck) (primitive.ObjectID, error) {
	check.ID = primitive.NewObjectID()
	check.CreatedAt = time.Now()

	_, err := config.MongoDB.Collection(config.AppConfig.FraudCheckCollection).InsertOne(ctx, check)
	if err != nil {
		l.logger.Error("failed to record fraud check",
			zap.String("person_id", check.PersonID),
			zap.String("type", string(check.Type)),
			zap.Error(err))
		return primitive.NilObjectID, fmt.Errorf("failed to record fraud check: %w", err)
	}

	observability.FraudChecksRecorded.WithLabelValues(string(check.Type), string(check.Status)).Inc()
	l.logger.Info("fraud check recorded",
		zap.String("person_id", check.PersonID),
		zap.String("type", string(check.Type)),
		zap.String("status", string(check.Status)))
	return check.ID, nil
}

// RecordInSession is Record inside an existing transaction session
func (l *FraudCheckLedger) RecordInSession(sessCtx mongo.SessionContext, check *models.FraudCheck) error {
	check.ID = primitive.NewObjectID()
	check.CreatedAt = time.Now()

	_, err := config.MongoDB.Collection(config.AppConfig.FraudCheckCollection).InsertOne(sessCtx, check)
	if err != nil {
		return fmt.Errorf("failed to record fraud check: %w", err)
	}
	observability.FraudChecksRecorded.WithLabelValues(string(check.Type), string(check.Status)).Inc()
	return nil
}

// ListByPerson returns all fraud checks for a person, newest first
func (l *FraudCheckLedger) ListByPerson(ctx context.Context, personID string) ([]models.FraudCheck, error) {
	return l.list(ctx, bson.M{"person_id": personID})
}

// ListByPersonAndType returns a person's fraud checks of one type, newest first
func (l *FraudCheckLedger) ListByPersonAndType(ctx context.Context, personID string, checkType models.FraudCheckType) ([]models.FraudCheck, error) {
	return l.list(ctx, bson.M{"person_id": personID, "type": checkType})
}

func (l *FraudCheckLedger) list(ctx context.Context, filter bson.M) ([]models.FraudCheck, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := config.MongoDB.Collection(config.AppConfig.FraudCheckCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list fraud checks: %w", err)
	}
	defer cursor.Close(ctx)

	var checks []models.FraudCheck
	if err := cursor.All(ctx, &checks); err != nil {
		return nil, fmt.Errorf("failed to decode fraud checks: %w", err)
	}
	return checks, nil
}

// ResolvePending moves the PENDING check correlated to a provider id to a
// terminal status. Non-PENDING entries are immutable: the filter refuses to
// match them, so a replayed callback cannot rewrite history.
func (l *FraudCheckLedger) ResolvePending(ctx context.Context, thirdPartyID string, status models.FraudCheckStatus, reasonCodes []models.ReasonCode, detail string, content *models.IdentityContent) (*models.FraudCheck, error) {
	update := bson.M{"$set": bson.M{
		"status":       status,
		"reason_codes": reasonCodes,
		"detail":       detail,
	}}
	if content != nil {
		update["$set"].(bson.M)["result_content"] = content
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var check models.FraudCheck
	err := config.MongoDB.Collection(config.AppConfig.FraudCheckCollection).FindOneAndUpdate(
		ctx,
		bson.M{"third_party_id": thirdPartyID, "status": models.CheckStatusPending},
		update,
		opts,
	).Decode(&check)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoPendingCheck
		}
		l.logger.Error("failed to resolve pending check",
			zap.String("third_party_id", thirdPartyID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to resolve pending check: %w", err)
	}

	observability.FraudChecksRecorded.WithLabelValues(string(check.Type), string(status)).Inc()
	return &check, nil
}

// AppendReview writes a new administrative review row. Reviews never mutate
// ledger entries; the latest review wins for gating purposes.
func (l *FraudCheckLedger) AppendReview(ctx context.Context, review *models.FraudReview) error {
	review.ID = primitive.NewObjectID()
	review.ReviewedAt = time.Now()

	_, err := config.MongoDB.Collection(config.AppConfig.FraudReviewCollection).InsertOne(ctx, review)
	if err != nil {
		l.logger.Error("failed to append fraud review",
			zap.String("person_id", review.PersonID),
			zap.Error(err))
		return fmt.Errorf("failed to append fraud review: %w", err)
	}

	l.logger.Info("fraud review appended",
		zap.String("person_id", review.PersonID),
		zap.String("outcome", string(review.Outcome)),
		zap.String("reviewer", review.Reviewer))
	return nil
}

// LatestReview returns the most recent review for a person, or nil
func (l *FraudCheckLedger) LatestReview(ctx context.Context, personID string) (*models.FraudReview, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "reviewed_at", Value: -1}})
	var review models.FraudReview
	err := config.MongoDB.Collection(config.AppConfig.FraudReviewCollection).FindOne(
		ctx,
		bson.M{"person_id": personID},
		opts,
	).Decode(&review)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest review: %w", err)
	}
	return &review, nil
}

// RegistrationInstant returns the registration timestamp embedded in the
// person's newest application-form check, or nil when no dated check exists.
func (l *FraudCheckLedger) RegistrationInstant(ctx context.Context, personID string) (*time.Time, error) {
	checks, err := l.ListByPersonAndType(ctx, personID, models.CheckTypeApplicationForm)
	if err != nil {
		return nil, err
	}
	for _, check := range checks {
		if check.ResultContent != nil && check.ResultContent.RegisteredAt != nil {
			return check.ResultContent.RegisteredAt, nil
		}
	}
	return nil, nil
}

// DocumentNumberTaken reports whether another person already has an OK
// identity-document check carrying the same document number.
func (l *FraudCheckLedger) DocumentNumberTaken(ctx context.Context, personID, documentNumber string) (bool, error) {
	normalized := utils.NormalizeDocumentNumber(documentNumber)
	count, err := config.MongoDB.Collection(config.AppConfig.FraudCheckCollection).CountDocuments(ctx, bson.M{
		"person_id":                      bson.M{"$ne": personID},
		"type":                           models.CheckTypeIdentityDocument,
		"status":                         models.CheckStatusOK,
		"result_content.document_number": normalized,
	})
	if err != nil {
		return false, fmt.Errorf("failed to check document number duplication: %w", err)
	}
	return count > 0, nil
}
