// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pkscript produces locking scripts, redeem scripts and Electrum
// scripthashes for the supported output types. Each output type is a case of
// the sealed ScriptType interface so that dispatch in the sighash and sign
// packages is an exhaustive, compiler-checked type switch.
package pkscript

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcwallet/wallet/txsizes"

	"github.com/btcsuite/txbuilder/codec"
)

var (
	// ErrInvalidMultisigParameters is returned when a multisig script is
	// requested with m or n outside 1 <= m <= n <= 16, or with a public
	// key that is not 33 or 65 bytes when serialized.
	ErrInvalidMultisigParameters = errors.New("invalid multisig parameters")

	// ErrNilPubKey is returned when a script type is constructed around a
	// nil public key.
	ErrNilPubKey = errors.New("nil public key")
)

// ScriptType is a sealed interface with one implementation per supported
// output type. Each case carries exactly the key or script material its
// locking script needs. The sealed interface pattern guarantees that adding
// a new type (say P2WSH) forces every dispatch site to be revisited.
type ScriptType interface {
	// isScriptType is the sealed-interface marker. It is unexported, so
	// only types in this package can be a ScriptType.
	isScriptType()

	// PkScript returns the scriptPubKey locking an output of this type.
	PkScript() ([]byte, error)

	// InputVSize returns the estimated virtual size contribution of one
	// input spending an output of this type, used by coin selection
	// before the real transaction exists.
	InputVSize() int

	// String returns the conventional name of the script type.
	String() string
}

// P2PK locks an output directly to a public key: <pubkey> OP_CHECKSIG.
type P2PK struct {
	// PubKey is the key the output pays to.
	PubKey *btcec.PublicKey

	// Uncompressed selects the 65-byte point serialization. Compressed
	// is the default.
	Uncompressed bool
}

// P2PKH locks an output to the hash160 of a compressed public key.
type P2PKH struct {
	// PubKey is the key whose hash160 the output pays to.
	PubKey *btcec.PublicKey
}

// P2WPKH locks an output to a version 0 witness program carrying the
// hash160 of a compressed public key.
type P2WPKH struct {
	// PubKey is the key whose hash160 the witness program carries.
	PubKey *btcec.PublicKey
}

// P2SHMultisig locks an output to the hash160 of an m-of-n CHECKMULTISIG
// redeem script. The embedded public keys are kept in BIP67 ascending order
// so that the redeem script, and therefore the address, is independent of
// the order the keys were supplied in.
type P2SHMultisig struct {
	m       int
	pubKeys []*btcec.PublicKey
}

// P2TRKeyPath locks an output to a taproot output key derived from an
// internal key with an empty script tree (key-path spending only).
type P2TRKeyPath struct {
	// InternalKey is the untweaked internal public key.
	InternalKey *btcec.PublicKey
}

func (*P2PK) isScriptType()         {}
func (*P2PKH) isScriptType()        {}
func (*P2WPKH) isScriptType()       {}
func (*P2SHMultisig) isScriptType() {}
func (*P2TRKeyPath) isScriptType()  {}

// Compile-time checks that every case implements the sealed interface.
var _ ScriptType = (*P2PK)(nil)
var _ ScriptType = (*P2PKH)(nil)
var _ ScriptType = (*P2WPKH)(nil)
var _ ScriptType = (*P2SHMultisig)(nil)
var _ ScriptType = (*P2TRKeyPath)(nil)

// String returns the conventional name of the script type.
func (*P2PK) String() string { return "p2pk" }

// String returns the conventional name of the script type.
func (*P2PKH) String() string { return "p2pkh" }

// String returns the conventional name of the script type.
func (*P2WPKH) String() string { return "p2wpkh" }

// String returns the conventional name of the script type.
func (s *P2SHMultisig) String() string {
	return fmt.Sprintf("p2sh-multisig-%d-of-%d", s.m, len(s.pubKeys))
}

// String returns the conventional name of the script type.
func (*P2TRKeyPath) String() string { return "p2tr" }

// PubKeyBytes returns the serialized form of the key, honoring the
// compression flag.
func (s *P2PK) PubKeyBytes() []byte {
	if s.Uncompressed {
		return s.PubKey.SerializeUncompressed()
	}

	return s.PubKey.SerializeCompressed()
}

// NewP2SHMultisig builds an m-of-n multisig script type from the given
// public keys. The keys are sorted into BIP67 ascending order by their
// compressed serialization; the supplied slice is not modified.
func NewP2SHMultisig(m int, pubKeys []*btcec.PublicKey) (*P2SHMultisig,
	error) {

	n := len(pubKeys)
	if m < 1 || m > n || n > 16 {
		return nil, fmt.Errorf("%w: m=%d, n=%d, need 1 <= m <= n "+
			"<= 16", ErrInvalidMultisigParameters, m, n)
	}

	sorted := make([]*btcec.PublicKey, n)
	for i, pk := range pubKeys {
		if pk == nil {
			return nil, fmt.Errorf("%w: pubkey %d is nil",
				ErrInvalidMultisigParameters, i)
		}

		sorted[i] = pk
	}

	// BIP67: deterministic lexicographic ordering of the compressed
	// serializations.
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(
			sorted[i].SerializeCompressed(),
			sorted[j].SerializeCompressed(),
		) < 0
	})

	return &P2SHMultisig{m: m, pubKeys: sorted}, nil
}

// M returns the required signature count.
func (s *P2SHMultisig) M() int { return s.m }

// N returns the total key count.
func (s *P2SHMultisig) N() int { return len(s.pubKeys) }

// SortedPubKeys returns the public keys in the BIP67 order embedded in the
// redeem script.
func (s *P2SHMultisig) SortedPubKeys() []*btcec.PublicKey {
	keys := make([]*btcec.PublicKey, len(s.pubKeys))
	copy(keys, s.pubKeys)

	return keys
}

// XOnlyInternalKey returns the 32-byte x-only serialization of the internal
// key.
func (s *P2TRKeyPath) XOnlyInternalKey() []byte {
	return schnorr.SerializePubKey(s.InternalKey)
}

// InputVSize returns the estimated virtual size of one P2PK input:
// outpoint (36) + sequence (4) + scriptSig length prefix and the pushed
// DER signature.
func (*P2PK) InputVSize() int { return 114 }

// InputVSize returns the estimated virtual size of one P2PKH input,
// matching the redeem size used by the txsizes estimator.
func (*P2PKH) InputVSize() int { return txsizes.RedeemP2PKHInputSize }

// InputVSize returns the estimated virtual size of one P2WPKH input. The
// witness bytes are discounted by the witness scale factor, leaving about
// 68 vbytes.
func (*P2WPKH) InputVSize() int { return 68 }

// InputVSize returns the estimated virtual size of one multisig input:
// outpoint and sequence plus m signature pushes and the redeem script push.
func (s *P2SHMultisig) InputVSize() int {
	// 73 vbytes per worst-case DER signature push, 34 per compressed key
	// in the redeem script, 3 for the OP_m/OP_n/OP_CHECKMULTISIG ops and
	// the redeem push overhead.
	redeemSize := 3 + 34*len(s.pubKeys)
	sigScriptSize := 1 + 73*s.m + 1 + codec.VarIntSerializeSize(
		uint64(redeemSize),
	) + redeemSize

	return 32 + 4 + 4 +
		codec.VarIntSerializeSize(uint64(sigScriptSize)) +
		sigScriptSize
}

// InputVSize returns the estimated virtual size of one key-path taproot
// input: 41 non-witness vbytes plus a 64-byte signature discounted to about
// 17 vbytes.
func (*P2TRKeyPath) InputVSize() int { return 58 }
