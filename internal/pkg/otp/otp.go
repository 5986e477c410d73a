package otp

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
)

// ErrInvalidDigits is returned when the requested code length is out of range.
var ErrInvalidDigits = errors.New("otp: digits must be between 4 and 10")

// Generator produces one-time codes.
type Generator interface {
	Generate() (string, error)
}

// Numeric produces fixed width numeric codes without a leading zero.
//
// For 6 digits the result is uniform over 100000..999999.
type Numeric struct {
	low   int64
	span  *big.Int
	width int
}

// NewNumeric returns a generator of digits-long codes.
func NewNumeric(digits int) (*Numeric, error) {
	if digits < 4 || digits > 10 {
		return nil, ErrInvalidDigits
	}

	low := int64(1)
	for range digits - 1 {
		low *= 10
	}

	return &Numeric{
		low:   low,
		span:  big.NewInt(low*10 - low),
		width: digits,
	}, nil
}

// Generate returns a new code.
func (n *Numeric) Generate() (string, error) {
	v, err := rand.Int(rand.Reader, n.span)
	if err != nil {
		return "", err
	}

	return strconv.FormatInt(n.low+v.Int64(), 10), nil
}

// Digits returns the code width.
func (n *Numeric) Digits() int {
	return n.width
}
