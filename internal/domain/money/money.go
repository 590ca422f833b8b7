package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// scale is the number of minor-unit digits (1/100 of the major unit).
const scale int32 = 2

var ErrInvalidAmount = errors.New("invalid monetary amount")

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// Amount is a monetary value in integer minor units. All comparisons in the
// auction core happen on Amount, never on floats.
type Amount int64

// FromMajor converts whole major units (e.g. rupees) to an Amount.
func FromMajor(units int64) Amount {
	return Amount(units * 100)
}

// FromDecimal converts a decimal value in major units. Values carrying more
// precision than one minor unit are rejected rather than rounded.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	shifted := d.Shift(scale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than %d fraction digits", ErrInvalidAmount, d.String(), scale)
	}
	if shifted.Abs().GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d.String())
	}
	return Amount(shifted.IntPart()), nil
}

// Parse reads a major-unit string such as "5500" or "5500.50".
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -scale)
}

// Minor returns the raw minor-unit value.
func (a Amount) Minor() int64 {
	return int64(a)
}

func (a Amount) IsPositive() bool {
	return a > 0
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(scale)
}

// MarshalJSON encodes the amount as a quoted major-unit decimal ("5500.00").
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(a.String())), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
	}
	v, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
