package utils

import (
	"context"
	"fmt"

	"github.com/culturepass/eligibility-engine/internal/config"
	"github.com/culturepass/eligibility-engine/internal/logging"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DatabaseOperation is one step of a multi-document transaction
type DatabaseOperation struct {
	Name      string
	Operation func(sessCtx mongo.SessionContext) error
}

// ExecuteWithTransaction executes multiple database operations within a
// single MongoDB transaction. A failure in any step aborts the whole
// transaction; nothing is left partially applied.
func ExecuteWithTransaction(ctx context.Context, operations []DatabaseOperation) error {
	logger := logging.Logger.With(zap.String("operation", "database_transaction"))

	session, err := config.MongoDB.Client().StartSession()
	if err != nil {
		logger.Error("failed to start database session", zap.Error(err))
		return fmt.Errorf("failed to start database session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		for _, op := range operations {
			if err := op.Operation(sessCtx); err != nil {
				logger.Error("operation failed, aborting transaction",
					zap.String("step", op.Name),
					zap.Error(err))
				return nil, err
			}
		}
		return nil, nil
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}
