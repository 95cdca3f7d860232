// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coinselect chooses the unspent outputs funding a transaction. The
// selector is greedy largest-first against a moving target: each added
// input raises the estimated size and therefore the estimated fee, so the
// target is re-derived after every accumulation step.
package coinselect

import (
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/btcsuite/txbuilder/pkg/btcunit"
)

var (
	// ErrInsufficientFunds is returned when every available UTXO
	// together cannot cover the target amount plus the estimated fee.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNoUTXOs is returned when selection is attempted against an
	// empty UTXO set.
	ErrNoUTXOs = errors.New("no spendable outputs available")
)

// UTXO is one spendable previous output. It is immutable once fetched and
// consumed at most once per transaction.
type UTXO struct {
	// OutPoint references the previous output being spent.
	OutPoint wire.OutPoint

	// Amount is the output value in satoshis.
	Amount btcutil.Amount

	// PkScript is the locking script of the previous output.
	PkScript []byte

	// Height is the confirmation height, or 0 while unconfirmed.
	Height int32
}

// String renders the UTXO the way block explorers display outpoints.
func (u UTXO) String() string {
	return fmt.Sprintf("%v -> %d sat (height %d)", u.OutPoint, u.Amount,
		u.Height)
}

// Estimate describes the static size model used before a real transaction
// exists: fixed per-input and per-output virtual sizes plus the
// version/locktime/count overhead.
type Estimate struct {
	// TxOverhead is the version + locktime + count bytes.
	TxOverhead int

	// InputVSize is the estimated virtual size of one input of the
	// session's script type.
	InputVSize int

	// OutputsVSize is the total estimated virtual size of all planned
	// outputs, including a change output.
	OutputsVSize int
}

// DefaultTxOverhead matches the 4-byte version, 4-byte locktime and the
// two count varints of a small transaction.
const DefaultTxOverhead = 10

// VSize returns the estimated virtual size for numInputs inputs.
func (e Estimate) VSize(numInputs int) int64 {
	return int64(e.TxOverhead + numInputs*e.InputVSize + e.OutputsVSize)
}

// Result is a successful selection: the chosen outputs, their total value,
// and the fee estimate the selection was made against.
type Result struct {
	// Selected holds the chosen outputs, largest first.
	Selected []UTXO

	// Total is the sum of the selected amounts.
	Total btcutil.Amount

	// EstimatedFee is ceil(rate * estimated vsize) for the selected
	// input count.
	EstimatedFee btcutil.Amount
}

// Select greedily accumulates the largest available outputs until their
// total covers target plus the size-dependent fee estimate. The available
// slice is not modified.
func Select(available []UTXO, target btcutil.Amount,
	rate btcunit.SatPerVByte, est Estimate) (*Result, error) {

	if len(available) == 0 {
		return nil, ErrNoUTXOs
	}

	sorted := make([]UTXO, len(available))
	copy(sorted, available)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Amount > sorted[j].Amount
	})

	var total btcutil.Amount
	for count, utxo := range sorted {
		total += utxo.Amount

		fee := rate.FeeForVSize(est.VSize(count + 1))
		if total >= target+fee {
			return &Result{
				Selected:     sorted[:count+1],
				Total:        total,
				EstimatedFee: fee,
			}, nil
		}
	}

	needed := target + rate.FeeForVSize(est.VSize(len(sorted)))

	return nil, fmt.Errorf("%w: %d sat available, %d sat required "+
		"(target %d + estimated fee %d)", ErrInsufficientFunds,
		total, needed, target, needed-target)
}
