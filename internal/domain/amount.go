package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits of the canonical unit.
const AmountScale = 2

// maxIntegerDigits matches the DECIMAL(20,2) columns balances are stored in.
const maxIntegerDigits = 18

// MaxAmount is the exclusive upper bound of an amount and of a balance.
var MaxAmount = decimal.New(1, maxIntegerDigits)

// ErrInvalidAmount is wrapped by every amount rejection reason.
var ErrInvalidAmount = errors.New("invalid amount")

var (
	ErrAmountMissing     = fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	ErrAmountNotNumeric  = fmt.Errorf("%w: amount must be a number", ErrInvalidAmount)
	ErrAmountNotPositive = fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	ErrAmountTooPrecise  = fmt.Errorf("%w: amount has more than %d decimal places", ErrInvalidAmount, AmountScale)
	ErrAmountTooLarge    = fmt.Errorf("%w: amount must be less than %s", ErrInvalidAmount, MaxAmount)
)

// Amount is a strictly positive monetary value. The zero value is not a
// valid amount; obtain one through ValidateAmount.
type Amount struct {
	value decimal.Decimal
}

// Decimal returns the amount as a decimal.
func (a Amount) Decimal() decimal.Decimal { return a.value }

// IsZero reports whether a was never validated.
func (a Amount) IsZero() bool { return a.value.IsZero() }

func (a Amount) String() string { return a.value.StringFixed(AmountScale) }

// MarshalJSON writes the amount as a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// ValidateAmount turns an untrusted scalar into an Amount. It accepts nil,
// json.RawMessage, json.Number, strings, decimals and every Go numeric kind.
func ValidateAmount(raw any) (Amount, error) {
	d, err := parseAmount(raw)
	if err != nil {
		return Amount{}, err
	}
	if !d.IsPositive() {
		return Amount{}, ErrAmountNotPositive
	}
	// Both bounds are checked on the digit count so that a huge exponent is
	// rejected before Round expands it.
	digits, exp := d.NumDigits(), int(d.Exponent())
	if digits+exp > maxIntegerDigits {
		return Amount{}, ErrAmountTooLarge
	}
	if -exp-AmountScale > digits {
		return Amount{}, ErrAmountTooPrecise
	}
	rounded := d.Round(AmountScale)
	if !rounded.Equal(d) {
		return Amount{}, ErrAmountTooPrecise
	}
	if !rounded.LessThan(MaxAmount) {
		return Amount{}, ErrAmountTooLarge
	}
	return Amount{value: rounded}, nil
}

// MustAmount is ValidateAmount for literals; it panics on invalid input.
func MustAmount(raw any) Amount {
	a, err := ValidateAmount(raw)
	if err != nil {
		panic(err)
	}
	return a
}

func parseAmount(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case nil:
		return decimal.Decimal{}, ErrAmountMissing
	case json.RawMessage:
		return parseRaw(v)
	case []byte:
		return parseRaw(v)
	case json.Number:
		return parseString(string(v))
	case string:
		return parseString(v)
	case *string:
		if v == nil {
			return decimal.Decimal{}, ErrAmountMissing
		}
		return parseString(*v)
	case decimal.Decimal:
		return v, nil
	case float64:
		return parseFloat(v)
	case float32:
		return parseFloat(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int8:
		return decimal.NewFromInt(int64(v)), nil
	case int16:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(v)), 0), nil
	case uint8:
		return decimal.NewFromInt(int64(v)), nil
	case uint16:
		return decimal.NewFromInt(int64(v)), nil
	case uint32:
		return decimal.NewFromInt(int64(v)), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0), nil
	default:
		return decimal.Decimal{}, ErrAmountNotNumeric
	}
}

func parseRaw(b []byte) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return decimal.Decimal{}, ErrAmountMissing
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal([]byte(s), &str); err != nil {
			return decimal.Decimal{}, ErrAmountNotNumeric
		}
		return parseString(str)
	}
	return parseString(s)
}

func parseString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, ErrAmountMissing
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrAmountNotNumeric
	}
	return d, nil
}

func parseFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, ErrAmountNotNumeric
	}
	return decimal.NewFromFloat(f), nil
}
