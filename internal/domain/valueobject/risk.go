package valueobject

import (
	"math"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"
)

type RiskBand string

const (
	RiskBandMinimal RiskBand = "minimal"
	RiskBandLow     RiskBand = "low"
	RiskBandMedium  RiskBand = "medium"
	RiskBandHigh    RiskBand = "high"
)

// Пороговые значения включают границу в более высокий уровень.
const (
	HighRiskThreshold   = 0.8
	MediumRiskThreshold = 0.6
	LowRiskThreshold    = 0.3
)

// BandForScore относит оценку риска к уровню.
func BandForScore(score float64) RiskBand {
	switch {
	case score >= HighRiskThreshold:
		return RiskBandHigh
	case score >= MediumRiskThreshold:
		return RiskBandMedium
	case score >= LowRiskThreshold:
		return RiskBandLow
	default:
		return RiskBandMinimal
	}
}

var recommendations = map[RiskBand]string{
	RiskBandHigh:    "Block the account and hold all pending transactions until a manual review is complete",
	RiskBandMedium:  "Require additional identity verification before releasing escrowed funds",
	RiskBandLow:     "Monitor account activity and recheck on the next transaction",
	RiskBandMinimal: "No action required",
}

// Recommendation рекомендательный текст, решение принимает администратор.
func (b RiskBand) Recommendation() string {
	return recommendations[b]
}

func (b RiskBand) IsValid() bool {
	_, ok := recommendations[b]
	return ok
}

// Bounds возвращает полуинтервал [min, max) оценок уровня; для high верхней границы нет.
func (b RiskBand) Bounds() (min float64, max *float64) {
	upper := func(v float64) *float64 { return &v }
	switch b {
	case RiskBandHigh:
		return HighRiskThreshold, nil
	case RiskBandMedium:
		return MediumRiskThreshold, upper(HighRiskThreshold)
	case RiskBandLow:
		return LowRiskThreshold, upper(MediumRiskThreshold)
	default:
		return 0, upper(LowRiskThreshold)
	}
}

func NewRiskBand(band string) (RiskBand, error) {
	b := RiskBand(band)
	if !b.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный уровень риска")
	}
	return b, nil
}

// ValidateRiskScore проверяет, что оценка находится в [0, 1].
func ValidateRiskScore(score float64) error {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return apperror.New(apperror.ErrCodeValidation, "оценка риска должна быть в диапазоне [0, 1]")
	}
	return nil
}
