// internal/token/amount.go
package token

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxIntegerDigits bounds the integer part of a typed amount.
const MaxIntegerDigits = 12

var (
	ErrEmptyAmount    = errors.New("amount is empty")
	ErrInvalidAmount  = errors.New("amount is not a number")
	ErrZeroAmount     = errors.New("amount must be greater than zero")
	ErrAmountTooLarge = errors.New("amount exceeds token supply range")
)

var (
	nonAmountChars = regexp.MustCompile(`[^\d.]`)
	amountPattern  = regexp.MustCompile(`^\d*\.?\d*$`)
)

// CleanInput normalises what the user typed: drops everything but digits and
// dots, keeps previous when more than one dot is present and truncates the
// integer part to MaxIntegerDigits.
func CleanInput(raw, previous string) string {
	clean := nonAmountChars.ReplaceAllString(raw, "")
	parts := strings.Split(clean, ".")
	if len(parts) > 2 {
		return previous
	}
	if len(parts[0]) > MaxIntegerDigits {
		parts[0] = parts[0][:MaxIntegerDigits]
	}
	return strings.Join(parts, ".")
}

// AcceptsInput reports whether a comma-free value may become the current amount.
func AcceptsInput(value string) bool {
	value = strings.ReplaceAll(value, ",", "")
	return value == "" || amountPattern.MatchString(value)
}

// FormatInput renders a clean amount with thousands separators.
func FormatInput(clean string) string {
	parts := strings.SplitN(clean, ".", 2)
	whole := groupThousands(parts[0])
	if len(parts) == 2 {
		return whole + "." + parts[1]
	}
	return whole
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// ParseAmount parses a user amount into a decimal. Commas are ignored.
func ParseAmount(value string) (decimal.Decimal, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if value == "" || value == "." {
		return decimal.Zero, ErrEmptyAmount
	}
	if !amountPattern.MatchString(value) {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrZeroAmount
	}
	return d, nil
}

// ToRaw converts a display amount into base units. Precision beyond the
// token's decimals is truncated; an amount that truncates to zero is rejected.
func ToRaw(value string, decimals uint8) (uint64, error) {
	d, err := ParseAmount(value)
	if err != nil {
		return 0, err
	}
	raw := d.Shift(int32(decimals)).Truncate(0)
	if !raw.IsPositive() {
		return 0, ErrZeroAmount
	}
	if raw.GreaterThan(decimal.NewFromUint64(math.MaxUint64)) {
		return 0, ErrAmountTooLarge
	}
	return raw.BigInt().Uint64(), nil
}

// FromRaw converts base units into a display decimal.
func FromRaw(raw uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromUint64(raw).Shift(-int32(decimals))
}
