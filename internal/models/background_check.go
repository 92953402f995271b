package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
)

type CheckType string

const (
	CheckTypeIdentity            CheckType = "identity"
	CheckTypeBreederLicense      CheckType = "breeder_license"
	CheckTypeShelterRegistration CheckType = "shelter_registration"
	CheckTypeRescueRegistration  CheckType = "rescue_registration"
	CheckTypeAddress             CheckType = "address"
)

func (t CheckType) IsValid() bool {
	switch t {
	case CheckTypeIdentity, CheckTypeBreederLicense, CheckTypeShelterRegistration, CheckTypeRescueRegistration, CheckTypeAddress:
		return true
	}
	return false
}

// BackgroundCheck проверка продавца (заводчика, приюта) или покупателя.
// ExpiresAt только хранится, автоматического истечения нет.
type BackgroundCheck struct {
	ID                uuid.UUID               `db:"id" json:"id"`
	UserID            uuid.UUID               `db:"user_id" json:"user_id"`
	CheckType         CheckType               `db:"check_type" json:"check_type"`
	Status            valueobject.CheckStatus `db:"status" json:"status"`
	ProviderReference *string                 `db:"provider_reference" json:"provider_reference,omitempty"`
	Notes             *string                 `db:"notes" json:"notes,omitempty"`
	ReviewedBy        *uuid.UUID              `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ExpiresAt         *time.Time              `db:"expires_at" json:"expires_at,omitempty"`
	CompletedAt       *time.Time              `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt         time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time               `db:"updated_at" json:"updated_at"`
}

// CheckFilter фильтр административного списка проверок.
type CheckFilter struct {
	Status *valueobject.CheckStatus
	UserID *uuid.UUID
}

// CheckUpdate изменение статуса проверки администратором.
type CheckUpdate struct {
	From              valueobject.CheckStatus
	To                valueobject.CheckStatus
	ReviewedBy        uuid.UUID
	Notes             *string
	ProviderReference *string
	At                time.Time
}
