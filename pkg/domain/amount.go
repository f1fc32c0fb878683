package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// ClaimTokenDecimals is the fixed decimal precision of the claim token ledger.
const ClaimTokenDecimals uint8 = 18

// Amount is an arbitrary-precision token quantity. The zero value is zero.
// Amounts serialize as decimal strings so 18-decimal ledger values survive
// JSON round-trips without precision loss.
type Amount struct {
	i *big.Int
}

// NewAmount builds an Amount from an unsigned integer.
func NewAmount(v uint64) Amount {
	return Amount{i: new(big.Int).SetUint64(v)}
}

// ParseAmount parses a base-10 string into an Amount.
func ParseAmount(s string) (Amount, error) {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("parse amount %q: not a base-10 integer", s)
	}
	return Amount{i: i}, nil
}

// MustAmount parses a base-10 string, panicking on malformed input. Intended
// for constants and fixtures.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) value() *big.Int {
	if a.i == nil {
		return new(big.Int)
	}
	return a.i
}

// Int returns a defensive copy of the underlying integer.
func (a Amount) Int() *big.Int {
	return new(big.Int).Set(a.value())
}

// IsZero reports whether the amount equals zero.
func (a Amount) IsZero() bool {
	return a.value().Sign() == 0
}

// Sign returns -1, 0, or 1 depending on the sign of the amount.
func (a Amount) Sign() int {
	return a.value().Sign()
}

// Cmp compares a against b, returning -1, 0, or 1.
func (a Amount) Cmp(b Amount) int {
	return a.value().Cmp(b.value())
}

// Add returns a + b without mutating either operand.
func (a Amount) Add(b Amount) Amount {
	return Amount{i: new(big.Int).Add(a.value(), b.value())}
}

// Sub returns a - b without mutating either operand. The result may be
// negative; callers relying on non-negativity must check Sign.
func (a Amount) Sub(b Amount) Amount {
	return Amount{i: new(big.Int).Sub(a.value(), b.value())}
}

// Clone returns an amount backed by its own integer storage.
func (a Amount) Clone() Amount {
	return Amount{i: a.Int()}
}

func (a Amount) String() string {
	return a.value().String()
}

// MinAmount returns the smaller of a and b.
func MinAmount(a, b Amount) Amount {
	if a.Cmp(b) <= 0 {
		return a.Clone()
	}
	return b.Clone()
}

// MarshalJSON encodes the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a decimal string or a bare JSON integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Tolerate unquoted integers written by earlier snapshots.
		s = string(data)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Rescale converts an amount between two decimal precisions. Upscaling
// multiplies by a power of ten; downscaling divides, truncating toward zero.
func Rescale(a Amount, fromDecimals, toDecimals uint8) Amount {
	switch {
	case toDecimals > fromDecimals:
		return Amount{i: new(big.Int).Mul(a.value(), pow10(toDecimals-fromDecimals))}
	case toDecimals < fromDecimals:
		return Amount{i: new(big.Int).Quo(a.value(), pow10(fromDecimals-toDecimals))}
	default:
		return a.Clone()
	}
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
