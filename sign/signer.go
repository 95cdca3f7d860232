// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sign

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/btcsuite/txbuilder/codec"
	"github.com/btcsuite/txbuilder/pkscript"
	"github.com/btcsuite/txbuilder/sighash"
)

var (
	// ErrSigningKeyMismatch is returned when none of the supplied
	// private keys derives a public key appearing in the target script.
	ErrSigningKeyMismatch = errors.New("signing key does not match " +
		"target script")

	// ErrInsufficientSignatures is returned when fewer private keys than
	// the multisig threshold m are available for an input.
	ErrInsufficientSignatures = errors.New("insufficient signatures for " +
		"multisig input")

	// ErrNoKeys is returned when an input is dispatched with no key
	// material at all.
	ErrNoKeys = errors.New("no signing keys supplied")
)

// Input signs input idx of the engine's transaction according to the
// script type of the output being spent, and installs the resulting
// scriptSig or witness on the input in place. Keys are borrowed for the
// duration of the call only.
func Input(eng *sighash.Engine, tx *wire.MsgTx, idx int,
	script pkscript.ScriptType, keys []*KeyPair) error {

	if len(keys) == 0 {
		return fmt.Errorf("%w: input %d (%s)", ErrNoKeys, idx,
			script)
	}

	switch st := script.(type) {
	case *pkscript.P2PK:
		return signP2PK(eng, tx, idx, st, keys[0])

	case *pkscript.P2PKH:
		return signP2PKH(eng, tx, idx, st, keys[0])

	case *pkscript.P2WPKH:
		return signP2WPKH(eng, tx, idx, st, keys[0])

	case *pkscript.P2SHMultisig:
		return signMultisig(eng, tx, idx, st, keys)

	case *pkscript.P2TRKeyPath:
		return signTaprootKeyPath(eng, tx, idx, st, keys[0])

	default:
		return fmt.Errorf("unhandled script type %T", script)
	}
}

// ecdsaSigWithHashType signs digest with RFC6979 deterministic nonces and
// returns the low-S DER serialization with the SIGHASH_ALL byte appended.
func ecdsaSigWithHashType(key *KeyPair, digest []byte) []byte {
	// btcec normalizes to low-S before DER encoding, satisfying
	// BIP62/66.
	sig := ecdsa.Sign(key.priv, digest)

	return append(sig.Serialize(), byte(txscript.SigHashAll))
}

// signP2PK installs the scriptSig <sig+type> for a pay-to-pubkey input.
func signP2PK(eng *sighash.Engine, tx *wire.MsgTx, idx int,
	st *pkscript.P2PK, key *KeyPair) error {

	if !key.PubKey().IsEqual(st.PubKey) {
		return fmt.Errorf("%w: input %d pays to pubkey %x",
			ErrSigningKeyMismatch, idx,
			st.PubKey.SerializeCompressed())
	}

	prevOut, err := eng.PrevOut(idx)
	if err != nil {
		return err
	}

	digest, err := eng.Legacy(idx, prevOut.PkScript)
	if err != nil {
		return err
	}

	sigScript, err := txscript.NewScriptBuilder().
		AddData(ecdsaSigWithHashType(key, digest)).
		Script()
	if err != nil {
		return err
	}

	tx.TxIn[idx].SignatureScript = sigScript

	return nil
}

// signP2PKH installs the scriptSig <sig+type> <pubkey> for a
// pay-to-pubkey-hash input.
func signP2PKH(eng *sighash.Engine, tx *wire.MsgTx, idx int,
	st *pkscript.P2PKH, key *KeyPair) error {

	if !key.PubKey().IsEqual(st.PubKey) {
		return fmt.Errorf("%w: input %d pays to hash160 %x",
			ErrSigningKeyMismatch, idx,
			codec.Hash160(st.PubKey.SerializeCompressed()))
	}

	prevOut, err := eng.PrevOut(idx)
	if err != nil {
		return err
	}

	digest, err := eng.Legacy(idx, prevOut.PkScript)
	if err != nil {
		return err
	}

	sigScript, err := txscript.NewScriptBuilder().
		AddData(ecdsaSigWithHashType(key, digest)).
		AddData(key.PubKey().SerializeCompressed()).
		Script()
	if err != nil {
		return err
	}

	tx.TxIn[idx].SignatureScript = sigScript

	return nil
}

// signP2WPKH installs the witness [sig+type, pubkey] for a witness v0
// pubkey-hash input, leaving the scriptSig empty. The BIP143 scriptCode is
// the equivalent P2PKH script of the input's pubkey hash.
func signP2WPKH(eng *sighash.Engine, tx *wire.MsgTx, idx int,
	st *pkscript.P2WPKH, key *KeyPair) error {

	if !key.PubKey().IsEqual(st.PubKey) {
		return fmt.Errorf("%w: input %d pays to hash160 %x",
			ErrSigningKeyMismatch, idx,
			codec.Hash160(st.PubKey.SerializeCompressed()))
	}

	scriptCode, err := (&pkscript.P2PKH{PubKey: st.PubKey}).PkScript()
	if err != nil {
		return err
	}

	digest, err := eng.Segwit(idx, scriptCode)
	if err != nil {
		return err
	}

	tx.TxIn[idx].SignatureScript = nil
	tx.TxIn[idx].Witness = wire.TxWitness{
		ecdsaSigWithHashType(key, digest),
		key.PubKey().SerializeCompressed(),
	}

	return nil
}

// signTaprootKeyPath installs the witness [64-byte schnorr sig] for a
// taproot key-path input. The private key is tweaked with the empty-root
// TapTweak (the tweak helper negates odd-Y keys first, per BIP341) and the
// default sighash mode appends no sighash byte.
func signTaprootKeyPath(eng *sighash.Engine, tx *wire.MsgTx, idx int,
	st *pkscript.P2TRKeyPath, key *KeyPair) error {

	if !bytes.Equal(
		schnorr.SerializePubKey(key.PubKey()), st.XOnlyInternalKey(),
	) {

		return fmt.Errorf("%w: input %d pays to internal key %x",
			ErrSigningKeyMismatch, idx, st.XOnlyInternalKey())
	}

	digest, err := eng.TaprootKeyPath(idx)
	if err != nil {
		return err
	}

	tweakedPriv := txscript.TweakTaprootPrivKey(*key.priv, nil)

	sig, err := schnorr.Sign(tweakedPriv, digest)
	if err != nil {
		return fmt.Errorf("schnorr sign input %d: %w", idx, err)
	}

	tx.TxIn[idx].SignatureScript = nil
	tx.TxIn[idx].Witness = wire.TxWitness{sig.Serialize()}

	return nil
}
