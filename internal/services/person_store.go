package services

import (
	"context"
	"fmt"

	"github.com/culturepass/eligibility-engine/internal/config"
	"github.com/culturepass/eligibility-engine/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// findPersonByID loads a person document by its public identifier
func findPersonByID(ctx context.Context, personID string) (*models.Person, error) {
	var person models.Person
	err := config.MongoDB.Collection(config.AppConfig.PersonCollection).FindOne(
		ctx,
		bson.M{"person_id": personID},
	).Decode(&person)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrPersonNotFound
		}
		return nil, fmt.Errorf("failed to load person: %w", err)
	}
	return &person, nil
}

// validatedOwner returns the person currently holding a phone number as
// VALIDATED. Finding more than one means the single-owner invariant was
// already violated; that is surfaced, never auto-resolved.
func validatedOwner(ctx context.Context, phoneNumber string) (*models.Person, error) {
	cursor, err := config.MongoDB.Collection(config.AppConfig.PersonCollection).Find(ctx, bson.M{
		"phone_number":            phoneNumber,
		"phone_validation_status": models.PhoneStatusValidated,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up phone owner: %w", err)
	}
	defer cursor.Close(ctx)

	var owners []models.Person
	if err := cursor.All(ctx, &owners); err != nil {
		return nil, fmt.Errorf("failed to decode phone owners: %w", err)
	}

	switch len(owners) {
	case 0:
		return nil, nil
	case 1:
		return &owners[0], nil
	default:
		return nil, fmt.Errorf("%w: %d validated owners for one number", ErrPhoneOwnershipCorrupt, len(owners))
	}
}
