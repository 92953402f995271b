package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MaxReasonLength          = 2000
	MaxNotesLength           = 5000
	MaxMeetingLocationLength = 500
	MaxReferenceLength       = 255
)

var (
	currencyRegex      = regexp.MustCompile(`^[a-z]{3}$`)
	payoutAccountRegex = regexp.MustCompile(`^acct_[A-Za-z0-9_]+$`)
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// RequiredText обрезает пробелы и проверяет обязательный текст (причина, обоснование, ссылка).
func RequiredText(fieldName, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if err := ValidateNonEmpty(fieldName, value); err != nil {
		return "", err
	}
	if err := ValidateLength(fieldName, value, 0, max); err != nil {
		return "", err
	}
	return value, nil
}

// OptionalText обрезает пробелы; пустое значение превращается в nil.
func OptionalText(fieldName string, value *string, max int) (*string, error) {
	if value == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil, nil
	}
	if err := ValidateLength(fieldName, v, 0, max); err != nil {
		return nil, err
	}
	return &v, nil
}

// NormalizeCurrency приводит ISO 4217 код к нижнему регистру, как его ожидает Stripe.
// Пустое значение заменяется на fallback.
func NormalizeCurrency(code, fallback string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		code = fallback
	}
	if !currencyRegex.MatchString(code) {
		return "", fmt.Errorf("валюта должна быть трёхбуквенным кодом ISO 4217")
	}
	return code, nil
}

// ValidatePayoutAccount проверяет идентификатор подключённого аккаунта продавца.
func ValidatePayoutAccount(account *string) error {
	if account == nil {
		return nil
	}
	if !payoutAccountRegex.MatchString(*account) {
		return fmt.Errorf("seller_payout_account должен иметь вид acct_...")
	}
	return ValidateLength("seller_payout_account", *account, 0, MaxReferenceLength)
}
