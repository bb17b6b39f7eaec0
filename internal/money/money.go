package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
	ErrOutOfRange      = errors.New("amount exceeds 9999999999.99")
)

// Scale is the number of fractional digits every stored amount carries.
const Scale = 2

// Max is the largest magnitude a NUMERIC(12,2) column holds.
var Max = decimal.RequireFromString("9999999999.99")

// InRange reports whether value fits a NUMERIC(12,2) column.
func InRange(value decimal.Decimal) bool {
	return value.Abs().LessThanOrEqual(Max)
}

// Parse reads a plain decimal string ("500", "500.5", "500.50"). Exponents,
// separators and more than two fractional digits are rejected.
func Parse(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	unsigned := trimmed
	if unsigned[0] == '-' || unsigned[0] == '+' {
		unsigned = unsigned[1:]
	}
	parts := strings.SplitN(unsigned, ".", 2)
	wholePart := parts[0]
	if wholePart == "" {
		wholePart = "0"
	}
	if !isDigits(wholePart) {
		return decimal.Zero, ErrInvalidAmount
	}
	if len(parts) == 2 {
		fracPart := parts[1]
		if len(fracPart) > Scale {
			return decimal.Zero, ErrTooManyDecimals
		}
		if fracPart == "" || !isDigits(fracPart) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !InRange(value) {
		return decimal.Zero, ErrOutOfRange
	}
	return value.Round(Scale), nil
}

// ParsePositive is Parse plus a strictly-positive check.
func ParsePositive(input string) (decimal.Decimal, error) {
	value, err := Parse(input)
	if err != nil {
		return decimal.Zero, err
	}
	if !value.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return value, nil
}

func Format(value decimal.Decimal) string {
	return value.StringFixed(Scale)
}

// FormatNull renders a nullable amount, returning nil when it is unset.
func FormatNull(value decimal.NullDecimal) *string {
	if !value.Valid {
		return nil
	}
	formatted := Format(value.Decimal)
	return &formatted
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
