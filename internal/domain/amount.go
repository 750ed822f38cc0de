package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

var minAmount = decimal.NewFromInt(1)

// ParseAmount parses a user-entered amount and validates it.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount rejects amounts below one shilling.
func ValidateAmount(d decimal.Decimal) error {
	if d.LessThan(minAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// ProviderAmount rounds to whole shillings, half away from zero. Daraja rejects fractional amounts.
func ProviderAmount(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
