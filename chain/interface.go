// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chain defines the external collaborators the transaction core
// depends on, a UTXO source and a broadcast sink, and provides an
// Electrum/Fulcrum JSON-RPC client implementing them. All transport policy
// (timeouts, retries, TLS) lives here; the builder never blocks on the
// network itself.
package chain

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/btcsuite/txbuilder/pkg/btcunit"
)

// Unspent is one unspent output as reported by the index, keyed by the
// Electrum scripthash it was queried under.
type Unspent struct {
	// TxHash is the funding transaction's hash.
	TxHash chainhash.Hash

	// Vout is the output index within the funding transaction.
	Vout uint32

	// Amount is the output value in satoshis.
	Amount btcutil.Amount

	// Height is the confirmation height, or 0 while in the mempool.
	Height int32
}

// OutPoint returns the outpoint referencing this unspent output.
func (u Unspent) OutPoint() wire.OutPoint {
	return wire.OutPoint{Hash: u.TxHash, Index: u.Vout}
}

// UTXOSource supplies unspent outputs per scripthash and resolves previous
// outputs (amount and scriptPubKey) per outpoint. Queries are synchronous;
// cancellation and deadlines arrive through the context.
type UTXOSource interface {
	// ListUnspent returns the unspent outputs indexed under the given
	// Electrum scripthash (reversed SHA256 of the scriptPubKey, hex).
	ListUnspent(ctx context.Context, scriptHash string) ([]Unspent,
		error)

	// PrevOutput resolves the amount and scriptPubKey of the output the
	// given outpoint references.
	PrevOutput(ctx context.Context, op wire.OutPoint) (*wire.TxOut,
		error)
}

// Balance is the indexed value of a script, split by confirmation state.
type Balance struct {
	// Confirmed is the value of outputs buried in blocks.
	Confirmed btcutil.Amount

	// Unconfirmed is the value of outputs still in the mempool, which
	// may be negative while unconfirmed spends are pending.
	Unconfirmed btcutil.Amount
}

// Total returns the confirmed plus unconfirmed value.
func (b Balance) Total() btcutil.Amount {
	return b.Confirmed + b.Unconfirmed
}

// BalanceSource reports the indexed balance of a scripthash.
type BalanceSource interface {
	// GetBalance returns the balance indexed under the given Electrum
	// scripthash.
	GetBalance(ctx context.Context, scriptHash string) (Balance, error)
}

// Broadcaster relays a fully signed raw transaction. The core never
// retries a failed broadcast.
type Broadcaster interface {
	// Broadcast submits the witness-inclusive raw transaction hex and
	// returns the txid acknowledged by the network.
	Broadcast(ctx context.Context, rawTx string) (string, error)
}

// FeeEstimator suggests a fee rate for confirmation within a block target.
type FeeEstimator interface {
	// EstimateFeeRate returns the suggested rate for confirmation
	// within targetBlocks blocks.
	EstimateFeeRate(ctx context.Context, targetBlocks int) (
		btcunit.SatPerVByte, error)
}
