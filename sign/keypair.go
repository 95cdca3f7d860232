// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package sign produces per-input unlocking data: ECDSA-DER-lowS signatures
// for legacy and witness v0 inputs, BIP340 Schnorr signatures for taproot
// key-path inputs, and BIP67-ordered multisig scriptSigs.
package sign

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

var (
	// ErrInvalidPrivateKey is returned when the private key material is
	// not a valid 32-byte secp256k1 scalar.
	ErrInvalidPrivateKey = errors.New("invalid private key")
)

// KeyPair bundles a private scalar with its derived public point and the
// serialization flag. It is owned by the calling session: nothing in this
// package retains a reference past the signing call.
type KeyPair struct {
	priv *btcec.PrivateKey
	pub  *btcec.PublicKey

	// uncompressed selects the 65-byte public key serialization.
	uncompressed bool
}

// NewKeyPair derives a KeyPair from a 32-byte private scalar.
func NewKeyPair(privBytes []byte, uncompressed bool) (*KeyPair, error) {
	if len(privBytes) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes, want 32",
			ErrInvalidPrivateKey, len(privBytes))
	}

	priv, pub := btcec.PrivKeyFromBytes(privBytes)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar",
			ErrInvalidPrivateKey)
	}

	return &KeyPair{
		priv:         priv,
		pub:          pub,
		uncompressed: uncompressed,
	}, nil
}

// PubKey returns the derived public key.
func (k *KeyPair) PubKey() *btcec.PublicKey {
	return k.pub
}

// PubKeyBytes returns the serialized public key, honoring the compression
// flag.
func (k *KeyPair) PubKeyBytes() []byte {
	if k.uncompressed {
		return k.pub.SerializeUncompressed()
	}

	return k.pub.SerializeCompressed()
}
