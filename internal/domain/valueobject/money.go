package valueobject

import (
	"github.com/shopspring/decimal"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"
)

// CentsPlaces точность денежных сумм.
const CentsPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney округляет сумму до центов.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(CentsPlaces)
}

// ToCents переводит сумму в минимальные единицы валюты.
func ToCents(amount decimal.Decimal) int64 {
	return RoundMoney(amount).Mul(hundred).IntPart()
}

// ValidatePositiveAmount проверяет, что сумма больше нуля и не дробнее цента.
func ValidatePositiveAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.Validation("%s должна быть больше нуля", field)
	}
	if !amount.Equal(RoundMoney(amount)) {
		return apperror.Validation("%s не может содержать больше %d знаков после запятой", field, CentsPlaces)
	}
	return nil
}

// SplitCommission делит сумму на комиссию платформы и долю продавца.
// Доля продавца вычисляется как остаток, поэтому commission + seller == amount точно.
func SplitCommission(amount, rate decimal.Decimal) (commission, seller decimal.Decimal) {
	commission = RoundMoney(amount.Mul(rate))
	seller = amount.Sub(commission)
	return commission, seller
}

// Payout распределение оставшейся суммы сделки при разрешении спора.
type Payout struct {
	BuyerRefund  decimal.Decimal `json:"buyer_refund"`
	SellerPayout decimal.Decimal `json:"seller_payout"`
	Commission   decimal.Decimal `json:"commission"`
}

// Total сумма всех частей распределения.
func (p Payout) Total() decimal.Decimal {
	return p.BuyerRefund.Add(p.SellerPayout).Add(p.Commission)
}

// ComputePayout рассчитывает распределение остатка remaining для решения по спору.
// Комиссия удерживается только с части, уходящей продавцу.
func ComputePayout(resolution Resolution, remaining, refundAmount, rate decimal.Decimal) (Payout, error) {
	switch resolution {
	case ResolutionRefundBuyer:
		return Payout{BuyerRefund: remaining, SellerPayout: decimal.Zero, Commission: decimal.Zero}, nil
	case ResolutionReleaseSeller:
		commission, seller := SplitCommission(remaining, rate)
		return Payout{BuyerRefund: decimal.Zero, SellerPayout: seller, Commission: commission}, nil
	case ResolutionPartialRefund:
		if !refundAmount.IsPositive() {
			return Payout{}, apperror.Validation("сумма частичного возврата должна быть больше нуля")
		}
		if refundAmount.GreaterThan(remaining) {
			return Payout{}, apperror.Validation("сумма частичного возврата %s превышает остаток сделки %s",
				refundAmount.StringFixed(CentsPlaces), remaining.StringFixed(CentsPlaces))
		}
		commission, seller := SplitCommission(remaining.Sub(refundAmount), rate)
		return Payout{BuyerRefund: refundAmount, SellerPayout: seller, Commission: commission}, nil
	case ResolutionMediation:
		return Payout{BuyerRefund: decimal.Zero, SellerPayout: decimal.Zero, Commission: decimal.Zero}, nil
	}
	return Payout{}, apperror.New(apperror.ErrCodeValidation, "некорректный тип решения по спору")
}
