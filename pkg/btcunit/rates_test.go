// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btcunit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFeeForVSizeRoundsUp verifies the ceiling rule on fractional rates.
func TestFeeForVSizeRoundsUp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		rate  float64
		vsize int64
		want  int64
	}{
		{name: "whole rate exact", rate: 2, vsize: 100, want: 200},
		{name: "half rate odd size", rate: 0.5, vsize: 141, want: 71},
		{name: "half rate even size", rate: 0.5, vsize: 142, want: 71},
		{name: "tiny rate rounds to one", rate: 0.001, vsize: 1, want: 1},
		{name: "zero size", rate: 5, vsize: 0, want: 0},
		{name: "1.1 rate", rate: 1.1, vsize: 200, want: 221},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			rate, err := NewSatPerVByteFromFloat(test.rate)
			require.NoError(t, err)
			require.EqualValues(t, test.want,
				rate.FeeForVSize(test.vsize))
		})
	}
}

// TestZeroValueIsZeroRate verifies the zero value behaves as a valid zero
// fee rate.
func TestZeroValueIsZeroRate(t *testing.T) {
	t.Parallel()

	var rate SatPerVByte
	require.True(t, rate.IsZero())
	require.Zero(t, rate.FeeForVSize(10_000))
	require.True(t, rate.Equal(NewSatPerVByte(0)))
	require.Equal(t, "0.000 sat/vb", rate.String())
}

// TestFromFloatValidation verifies rejection of negative and non-finite
// rates.
func TestFromFloatValidation(t *testing.T) {
	t.Parallel()

	_, err := NewSatPerVByteFromFloat(-1)
	require.ErrorIs(t, err, ErrNegativeFeeRate)

	_, err = NewSatPerVByteFromFloat(math.NaN())
	require.ErrorIs(t, err, ErrUnrepresentableFeeRate)

	_, err = NewSatPerVByteFromFloat(math.Inf(1))
	require.ErrorIs(t, err, ErrUnrepresentableFeeRate)
}

// TestEqualIsExact verifies equality compares the exact rational value.
func TestEqualIsExact(t *testing.T) {
	t.Parallel()

	a, err := NewSatPerVByteFromFloat(1.5)
	require.NoError(t, err)
	b, err := NewSatPerVByteFromFloat(1.5)
	require.NoError(t, err)

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(NewSatPerVByte(1)))
}
