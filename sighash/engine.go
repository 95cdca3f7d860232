// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package sighash computes the digest each signing scheme commits to: the
// legacy algorithm for P2PKH/P2PK and P2SH multisig, BIP143 for witness v0,
// and the BIP341 key-path algorithm for taproot. The BIP143 and BIP341
// midstates (hashPrevouts, hashSequence, hashOutputs and the taproot
// equivalents) are computed once per engine and shared across inputs.
package sighash

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var (
	// ErrMissingPrevoutData is returned when the amount or scriptPubKey
	// of a referenced previous output is not available. The builder must
	// resolve every input's previous output before signing starts.
	ErrMissingPrevoutData = errors.New("missing prevout data")

	// ErrInputIndexOutOfRange is returned when the input index does not
	// name an input of the transaction being signed.
	ErrInputIndexOutOfRange = errors.New("input index out of range")
)

// Engine computes signing digests for a single transaction-in-progress. It
// is built once per signing pass, after the output set is final, and must
// not be reused once the transaction is mutated.
type Engine struct {
	tx       *wire.MsgTx
	prevOuts map[wire.OutPoint]*wire.TxOut
	fetcher  *txscript.MultiPrevOutFetcher
	hashes   *txscript.TxSigHashes
}

// NewEngine builds an engine for tx. prevOuts must contain the previous
// output (amount and scriptPubKey) of every input; a missing or incomplete
// entry is an ErrMissingPrevoutData naming the offending outpoint.
func NewEngine(tx *wire.MsgTx,
	prevOuts map[wire.OutPoint]*wire.TxOut) (*Engine, error) {

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for _, txIn := range tx.TxIn {
		prevOut, ok := prevOuts[txIn.PreviousOutPoint]
		if !ok || prevOut == nil {
			return nil, fmt.Errorf("%w: no previous output for "+
				"%v", ErrMissingPrevoutData,
				txIn.PreviousOutPoint)
		}
		if len(prevOut.PkScript) == 0 {
			return nil, fmt.Errorf("%w: empty scriptPubKey for "+
				"%v", ErrMissingPrevoutData,
				txIn.PreviousOutPoint)
		}

		fetcher.AddPrevOut(txIn.PreviousOutPoint, prevOut)
	}

	return &Engine{
		tx:       tx,
		prevOuts: prevOuts,
		fetcher:  fetcher,
		hashes:   txscript.NewTxSigHashes(tx, fetcher),
	}, nil
}

// PrevOut returns the resolved previous output of input idx.
func (e *Engine) PrevOut(idx int) (*wire.TxOut, error) {
	if idx < 0 || idx >= len(e.tx.TxIn) {
		return nil, fmt.Errorf("%w: %d (tx has %d inputs)",
			ErrInputIndexOutOfRange, idx, len(e.tx.TxIn))
	}

	return e.prevOuts[e.tx.TxIn[idx].PreviousOutPoint], nil
}

// Legacy returns the digest an ECDSA signature over a legacy input commits
// to: sha256d of the transaction with every other input's scriptSig cleared
// and this input's scriptSig replaced by scriptCode (the previous
// scriptPubKey, or the redeem script for P2SH), with SIGHASH_ALL appended.
// The substitution differs per input, so the digest is recomputed for each.
func (e *Engine) Legacy(idx int, scriptCode []byte) ([]byte, error) {
	if idx < 0 || idx >= len(e.tx.TxIn) {
		return nil, fmt.Errorf("%w: %d (tx has %d inputs)",
			ErrInputIndexOutOfRange, idx, len(e.tx.TxIn))
	}

	digest, err := txscript.CalcSignatureHash(
		scriptCode, txscript.SigHashAll, e.tx, idx,
	)
	if err != nil {
		return nil, fmt.Errorf("legacy sighash for input %d: %w",
			idx, err)
	}

	return digest, nil
}

// Segwit returns the BIP143 digest for witness v0 input idx. scriptCode is
// the script the signature commits to; for P2WPKH it is the equivalent
// P2PKH script of the input's pubkey hash. The committed amount is taken
// from the input's resolved previous output.
func (e *Engine) Segwit(idx int, scriptCode []byte) ([]byte, error) {
	prevOut, err := e.PrevOut(idx)
	if err != nil {
		return nil, err
	}

	digest, err := txscript.CalcWitnessSigHash(
		scriptCode, e.hashes, txscript.SigHashAll, e.tx, idx,
		prevOut.Value,
	)
	if err != nil {
		return nil, fmt.Errorf("bip143 sighash for input %d: %w",
			idx, err)
	}

	return digest, nil
}

// TaprootKeyPath returns the BIP341 key-path digest for input idx with the
// default sighash type (implicit ALL), no script path and no annex.
func (e *Engine) TaprootKeyPath(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(e.tx.TxIn) {
		return nil, fmt.Errorf("%w: %d (tx has %d inputs)",
			ErrInputIndexOutOfRange, idx, len(e.tx.TxIn))
	}

	digest, err := txscript.CalcTaprootSignatureHash(
		e.hashes, txscript.SigHashDefault, e.tx, idx, e.fetcher,
	)
	if err != nil {
		return nil, fmt.Errorf("bip341 sighash for input %d: %w",
			idx, err)
	}

	return digest, nil
}

// InputAmount returns the amount of input idx's previous output.
func (e *Engine) InputAmount(idx int) (btcutil.Amount, error) {
	prevOut, err := e.PrevOut(idx)
	if err != nil {
		return 0, err
	}

	return btcutil.Amount(prevOut.Value), nil
}

// SigHashes exposes the shared midstate cache for script-engine validation.
func (e *Engine) SigHashes() *txscript.TxSigHashes {
	return e.hashes
}

// Fetcher exposes the prevout fetcher for script-engine validation.
func (e *Engine) Fetcher() txscript.PrevOutputFetcher {
	return e.fetcher
}
