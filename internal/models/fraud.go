package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/domain/valueobject"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"
)

// DetectionMethod способ, которым внешний процесс обнаружил риск.
type DetectionMethod string

const (
	DetectionVelocity        DetectionMethod = "velocity"
	DetectionPaymentAnomaly  DetectionMethod = "payment_anomaly"
	DetectionAccountTakeover DetectionMethod = "account_takeover"
	DetectionListingScam     DetectionMethod = "listing_scam"
	DetectionManualReport    DetectionMethod = "manual_report"
)

func (m DetectionMethod) IsValid() bool {
	switch m {
	case DetectionVelocity, DetectionPaymentAnomaly, DetectionAccountTakeover, DetectionListingScam, DetectionManualReport:
		return true
	}
	return false
}

// RiskFactor отдельный сигнал, повлиявший на оценку.
type RiskFactor struct {
	Code        string  `json:"code"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description,omitempty"`
}

// UserBehavior поведенческие признаки аккаунта.
type UserBehavior struct {
	AccountAgeDays   int  `json:"account_age_days"`
	ListingsLast24h  int  `json:"listings_last_24h"`
	MessagesLast24h  int  `json:"messages_last_24h"`
	FailedPayments   int  `json:"failed_payments"`
	DistinctDevices  int  `json:"distinct_devices"`
	PasswordResetNew bool `json:"password_reset_recently"`
}

// TransactionDetails платёжный контекст события.
type TransactionDetails struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"payment_method"`
	IPCountry     string          `json:"ip_country,omitempty"`
	CardCountry   string          `json:"card_country,omitempty"`
}

// FraudDetails структурированный контекст события, обязательные части зависят от DetectionMethod.
type FraudDetails struct {
	RiskFactors        []RiskFactor        `json:"risk_factors"`
	UserBehavior       *UserBehavior       `json:"user_behavior,omitempty"`
	TransactionDetails *TransactionDetails `json:"transaction_details,omitempty"`
}

// Validate проверяет, что для метода обнаружения заполнены нужные разделы.
func (d FraudDetails) Validate(method DetectionMethod) error {
	for _, f := range d.RiskFactors {
		if strings.TrimSpace(f.Code) == "" {
			return apperror.Validation("код фактора риска не может быть пустым")
		}
		if f.Weight < 0 || f.Weight > 1 {
			return apperror.Validation("вес фактора %s должен быть в диапазоне [0, 1]", f.Code)
		}
	}

	switch method {
	case DetectionVelocity, DetectionAccountTakeover:
		if d.UserBehavior == nil {
			return apperror.Validation("для метода %s требуется user_behavior", method)
		}
	case DetectionPaymentAnomaly:
		if d.TransactionDetails == nil {
			return apperror.Validation("для метода %s требуется transaction_details", method)
		}
	case DetectionListingScam:
		if len(d.RiskFactors) == 0 {
			return apperror.Validation("для метода %s требуется хотя бы один фактор риска", method)
		}
	case DetectionManualReport:
	default:
		return apperror.Validation("неизвестный метод обнаружения %q", method)
	}
	return nil
}

func (d FraudDetails) Value() (driver.Value, error) {
	if d.RiskFactors == nil {
		d.RiskFactors = []RiskFactor{}
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (d *FraudDetails) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = FraudDetails{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("fraud details: неподдерживаемый тип %T", src)
	}
	return json.Unmarshal(raw, d)
}

// FraudEvent сигнал риска, рассчитанный внешним процессом и ожидающий проверки администратора.
type FraudEvent struct {
	ID              uuid.UUID               `db:"id" json:"id"`
	UserID          *uuid.UUID              `db:"user_id" json:"user_id,omitempty"`
	TransactionID   *uuid.UUID              `db:"transaction_id" json:"transaction_id,omitempty"`
	DetectionMethod DetectionMethod         `db:"detection_method" json:"detection_method"`
	RiskScore       float64                 `db:"risk_score" json:"risk_score"`
	Details         FraudDetails            `db:"details" json:"details"`
	Status          valueobject.FraudStatus `db:"status" json:"status"`
	ReviewedBy      *uuid.UUID              `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewNotes     *string                 `db:"review_notes" json:"review_notes,omitempty"`
	ReviewedAt      *time.Time              `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt       time.Time               `db:"created_at" json:"created_at"`
}

// Band уровень риска события.
func (e *FraudEvent) Band() valueobject.RiskBand {
	return valueobject.BandForScore(e.RiskScore)
}

// FraudAssessment событие вместе с уровнем риска и рекомендацией для отображения.
type FraudAssessment struct {
	Event          *FraudEvent          `json:"event"`
	Band           valueobject.RiskBand `json:"band"`
	Recommendation string               `json:"recommendation"`
}

// Assess строит оценку для отображения администратору.
func (e *FraudEvent) Assess() FraudAssessment {
	band := e.Band()
	return FraudAssessment{Event: e, Band: band, Recommendation: band.Recommendation()}
}

// FraudFilter фильтр списка событий.
type FraudFilter struct {
	Status *valueobject.FraudStatus
	Band   *valueobject.RiskBand
}
