// Package validator holds the field checks shared by the domain services.
package validator

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pyera/ledger/internal/domain/errors"
)

// NonBlank fails when the value is empty or whitespace only.
func NonBlank(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewValidationError(field + " cannot be blank")
	}
	return nil
}

// PositiveAmount fails unless the amount is strictly greater than zero.
func PositiveAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.NewValidationError(field + " must be positive")
	}
	return nil
}

// CurrencyCode fails unless the code is three ASCII letters (ISO 4217 shape;
// the code is stored, never converted).
func CurrencyCode(code string) error {
	if len(code) != 3 {
		return errors.NewValidationError("currency must be a three-letter code")
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return errors.NewValidationError("currency must be a three-letter code")
		}
	}
	return nil
}
