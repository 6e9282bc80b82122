package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Phone validation status values
const (
	PhoneStatusUnvalidated = "UNVALIDATED"
	PhoneStatusValidated   = "VALIDATED"
)

// Beneficiary roles a person may hold once granted a tier
const (
	RoleUnderageBeneficiary = "UNDERAGE_BENEFICIARY"
	RoleBeneficiary         = "BENEFICIARY"
)

// Person represents an account holder going through eligibility verification
type Person struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PersonID              string             `bson:"person_id" json:"person_id"`
	BirthDate             time.Time          `bson:"birth_date" json:"birth_date"`
	ResidencyCode         string             `bson:"residency_code" json:"residency_code"`
	Email                 string             `bson:"email" json:"email"`
	EmailValidated        bool               `bson:"email_validated" json:"email_validated"`
	PhoneNumber           *string            `bson:"phone_number,omitempty" json:"phone_number,omitempty"`
	PhoneValidationStatus string             `bson:"phone_validation_status" json:"phone_validation_status"`
	Role                  string             `bson:"role,omitempty" json:"role,omitempty"`
	Tier                  *Tier              `bson:"tier,omitempty" json:"tier,omitempty"`
	CreatedAt             time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt             time.Time          `bson:"updated_at" json:"updated_at"`
}

// IsBeneficiary reports whether the person already holds the upper
// beneficiary role
func (p *Person) IsBeneficiary() bool {
	return p.Role == RoleBeneficiary
}
