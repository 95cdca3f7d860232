// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pkscript

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/btcsuite/txbuilder/codec"
)

// PkScript returns <pubkey> OP_CHECKSIG.
func (s *P2PK) PkScript() ([]byte, error) {
	if s.PubKey == nil {
		return nil, ErrNilPubKey
	}

	return txscript.NewScriptBuilder().
		AddData(s.PubKeyBytes()).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// PkScript returns OP_DUP OP_HASH160 <hash160> OP_EQUALVERIFY OP_CHECKSIG.
func (s *P2PKH) PkScript() ([]byte, error) {
	if s.PubKey == nil {
		return nil, ErrNilPubKey
	}

	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(codec.Hash160(s.PubKey.SerializeCompressed())).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// PkScript returns the version 0 witness program OP_0 <hash160>.
func (s *P2WPKH) PkScript() ([]byte, error) {
	if s.PubKey == nil {
		return nil, ErrNilPubKey
	}

	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(codec.Hash160(s.PubKey.SerializeCompressed())).
		Script()
}

// RedeemScript returns OP_m <pubkey_1> ... <pubkey_n> OP_n
// OP_CHECKMULTISIG with the keys in BIP67 ascending order.
func (s *P2SHMultisig) RedeemScript() ([]byte, error) {
	builder := txscript.NewScriptBuilder().AddInt64(int64(s.m))
	for _, pk := range s.pubKeys {
		builder.AddData(pk.SerializeCompressed())
	}

	return builder.
		AddInt64(int64(len(s.pubKeys))).
		AddOp(txscript.OP_CHECKMULTISIG).
		Script()
}

// PkScript returns OP_HASH160 <hash160(redeemScript)> OP_EQUAL.
func (s *P2SHMultisig) PkScript() ([]byte, error) {
	redeem, err := s.RedeemScript()
	if err != nil {
		return nil, fmt.Errorf("building redeem script: %w", err)
	}

	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(codec.Hash160(redeem)).
		AddOp(txscript.OP_EQUAL).
		Script()
}

// OutputKey returns the taproot output key: the internal key tweaked by
// taggedHash("TapTweak", internalKey) with an empty merkle root, since only
// key-path spending is supported.
func (s *P2TRKeyPath) OutputKey() ([]byte, error) {
	if s.InternalKey == nil {
		return nil, ErrNilPubKey
	}

	outputKey := txscript.ComputeTaprootKeyNoScript(s.InternalKey)

	return schnorr.SerializePubKey(outputKey), nil
}

// PkScript returns the version 1 witness program OP_1 <output key>.
func (s *P2TRKeyPath) PkScript() ([]byte, error) {
	outputKey, err := s.OutputKey()
	if err != nil {
		return nil, err
	}

	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).
		AddData(outputKey).
		Script()
}

// ElectrumScriptHash returns the Electrum index key (reversed SHA256 hex)
// for the script type's locking script.
func ElectrumScriptHash(s ScriptType) (string, error) {
	pkScript, err := s.PkScript()
	if err != nil {
		return "", err
	}

	return codec.ScriptHashKey(pkScript), nil
}

// Address renders the script type's address text on the given network.
func Address(s ScriptType, params *chaincfg.Params) (string, error) {
	switch st := s.(type) {
	case *P2PK:
		return codec.EncodeAddress(
			codec.ClassP2PK, st.PubKeyBytes(), params,
		)

	case *P2PKH:
		return codec.EncodeAddress(
			codec.ClassP2PKH,
			codec.Hash160(st.PubKey.SerializeCompressed()), params,
		)

	case *P2WPKH:
		return codec.EncodeAddress(
			codec.ClassP2WPKH,
			codec.Hash160(st.PubKey.SerializeCompressed()), params,
		)

	case *P2SHMultisig:
		redeem, err := st.RedeemScript()
		if err != nil {
			return "", err
		}

		return codec.EncodeAddress(
			codec.ClassP2SH, codec.Hash160(redeem), params,
		)

	case *P2TRKeyPath:
		outputKey, err := st.OutputKey()
		if err != nil {
			return "", err
		}

		return codec.EncodeAddress(
			codec.ClassP2TR, outputKey, params,
		)

	default:
		return "", fmt.Errorf("unhandled script type %T", s)
	}
}

// PayToDecoded builds the scriptPubKey paying to a decoded address. This is
// the recipient-side counterpart of PkScript: it works from the address
// payload alone, without key material.
func PayToDecoded(d *codec.DecodedAddress) ([]byte, error) {
	switch d.Class {
	case codec.ClassP2PK:
		return txscript.NewScriptBuilder().
			AddData(d.Payload).
			AddOp(txscript.OP_CHECKSIG).
			Script()

	case codec.ClassP2PKH:
		return txscript.NewScriptBuilder().
			AddOp(txscript.OP_DUP).
			AddOp(txscript.OP_HASH160).
			AddData(d.Payload).
			AddOp(txscript.OP_EQUALVERIFY).
			AddOp(txscript.OP_CHECKSIG).
			Script()

	case codec.ClassP2SH:
		return txscript.NewScriptBuilder().
			AddOp(txscript.OP_HASH160).
			AddData(d.Payload).
			AddOp(txscript.OP_EQUAL).
			Script()

	case codec.ClassP2WPKH, codec.ClassP2WSH:
		return txscript.NewScriptBuilder().
			AddOp(txscript.OP_0).
			AddData(d.Payload).
			Script()

	case codec.ClassP2TR:
		return txscript.NewScriptBuilder().
			AddOp(txscript.OP_1).
			AddData(d.Payload).
			Script()

	default:
		return nil, fmt.Errorf("unhandled address class %v", d.Class)
	}
}
