package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest value a numeric(12,2) column holds.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// ValidateAmount rejects zero, negative, over-large and sub-cent amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: amount supports at most 2 fractional digits", ErrValidation)
	}
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: amount exceeds %s", ErrValidation, MaxAmount.StringFixed(2))
	}
	return nil
}

// ValidateID rejects empty identifiers.
func ValidateID(name, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, name)
	}
	return nil
}

// ValidateMethod accepts any lowercase token; qris and transfer are the known ones.
func ValidateMethod(method string) error {
	if method == "" || method != strings.ToLower(strings.TrimSpace(method)) || strings.ContainsAny(method, " \t") {
		return fmt.Errorf("%w: invalid payment method %q", ErrValidation, method)
	}
	return nil
}

// FormatRupiah renders an amount the way user notifications show it.
func FormatRupiah(amount decimal.Decimal) string {
	if amount.Equal(amount.Truncate(0)) {
		return "Rp" + amount.StringFixed(0)
	}
	return "Rp" + amount.StringFixed(2)
}
