// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package btcunit provides an exact fee-rate type. Fee rates arrive from
// configuration as fractional sat/vbyte values; storing them as rationals
// keeps fee calculations free of float rounding, and the round-up fee rule
// (fee = ceil(vsize * rate)) becomes exact integer arithmetic.
package btcunit

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcutil"
)

var (
	// ErrNegativeFeeRate is returned when a fee rate below zero is
	// supplied.
	ErrNegativeFeeRate = errors.New("fee rate must be >= 0")

	// ErrUnrepresentableFeeRate is returned when a float fee rate is NaN
	// or infinite.
	ErrUnrepresentableFeeRate = errors.New("fee rate is not a finite " +
		"number")
)

// SatPerVByte is a fee rate in satoshis per virtual byte, held as an exact
// rational. The zero value is a zero fee rate, which is valid: fee
// estimation then yields zero and the dust-folding rules still apply.
type SatPerVByte struct {
	rate *big.Rat
}

// NewSatPerVByte builds a fee rate from a whole satoshi-per-vbyte amount.
func NewSatPerVByte(sats int64) SatPerVByte {
	return SatPerVByte{rate: big.NewRat(sats, 1)}
}

// NewSatPerVByteFromFloat builds a fee rate from a fractional
// satoshi-per-vbyte value, as found in configuration files and CLI flags.
func NewSatPerVByteFromFloat(rate float64) (SatPerVByte, error) {
	r := new(big.Rat)
	if r.SetFloat64(rate) == nil {
		return SatPerVByte{}, fmt.Errorf("%w: %v",
			ErrUnrepresentableFeeRate, rate)
	}

	if r.Sign() < 0 {
		return SatPerVByte{}, fmt.Errorf("%w: got %v",
			ErrNegativeFeeRate, rate)
	}

	return SatPerVByte{rate: r}, nil
}

// rat returns the underlying rational, treating the zero value as 0 sat/vb.
func (s SatPerVByte) rat() *big.Rat {
	if s.rate == nil {
		return big.NewRat(0, 1)
	}

	return s.rate
}

// FeeForVSize returns ceil(vsize * rate) in satoshis: the fee a transaction
// of the given virtual size pays at this rate, rounded up to the next whole
// satoshi.
func (s SatPerVByte) FeeForVSize(vsize int64) btcutil.Amount {
	fee := new(big.Rat).Mul(s.rat(), big.NewRat(vsize, 1))

	num := fee.Num()
	denom := fee.Denom()

	// Ceiling division: (num + denom - 1) / denom.
	result := new(big.Int).Add(num, denom)
	result.Sub(result, big.NewInt(1))
	result.Div(result, denom)

	return btcutil.Amount(result.Int64())
}

// IsZero reports whether the rate is exactly zero.
func (s SatPerVByte) IsZero() bool {
	return s.rat().Sign() == 0
}

// Equal reports whether two rates are exactly equal.
func (s SatPerVByte) Equal(other SatPerVByte) bool {
	return s.rat().Cmp(other.rat()) == 0
}

// String returns the rate with three decimal places, enough to show
// sub-satoshi rates without rounding them to zero.
func (s SatPerVByte) String() string {
	return s.rat().FloatString(3) + " sat/vb"
}
