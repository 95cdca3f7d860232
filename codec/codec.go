// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package codec implements the low-level encodings shared by every other
// component: the Bitcoin hashing primitives, VarInt/VarStr serialization, and
// the bidirectional mapping between address text and script payloads.
package codec

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Hash160 returns RIPEMD160(SHA256(b)), the 20-byte digest used by P2PKH,
// P2WPKH and P2SH script payloads.
func Hash160(b []byte) []byte {
	return btcutil.Hash160(b)
}

// Sha256d returns SHA256(SHA256(b)), the digest used for legacy sighashes,
// BIP143 midstate components and txids.
func Sha256d(b []byte) []byte {
	return chainhash.DoubleHashB(b)
}

// ScriptHashKey returns the Electrum index key for a scriptPubKey: the
// SHA256 of the script, byte-reversed, as a lowercase hex string.
func ScriptHashKey(pkScript []byte) string {
	h := chainhash.HashB(pkScript)
	for i, j := 0, len(h)-1; i < j; i, j = i+1, j-1 {
		h[i], h[j] = h[j], h[i]
	}

	return hex.EncodeToString(h)
}

// PutVarInt appends the Bitcoin variable-length encoding of n to w, using the
// standard 1/3/5/9-byte forms with the 0xFD/0xFE/0xFF prefix thresholds.
func PutVarInt(w io.Writer, n uint64) error {
	return wire.WriteVarInt(w, 0, n)
}

// ReadVarInt reads a Bitcoin variable-length integer from r.
func ReadVarInt(r io.Reader) (uint64, error) {
	return wire.ReadVarInt(r, 0)
}

// PutVarBytes appends a length-prefixed byte string to w.
func PutVarBytes(w io.Writer, b []byte) error {
	return wire.WriteVarBytes(w, 0, b)
}

// ReadVarBytes reads a length-prefixed byte string from r. The maxAllowed
// bound protects the caller from hostile length prefixes; fieldName is
// included in the error when the bound is exceeded.
func ReadVarBytes(r io.Reader, maxAllowed uint32,
	fieldName string) ([]byte, error) {

	return wire.ReadVarBytes(r, 0, maxAllowed, fieldName)
}

// VarIntSerializeSize returns the number of bytes PutVarInt will write for n.
func VarIntSerializeSize(n uint64) int {
	return wire.VarIntSerializeSize(n)
}

// SerializeVarInt returns the Bitcoin variable-length encoding of n as a
// fresh byte slice.
func SerializeVarInt(n uint64) []byte {
	var buf bytes.Buffer

	// Writing to a bytes.Buffer cannot fail.
	if err := wire.WriteVarInt(&buf, 0, n); err != nil {
		panic(fmt.Sprintf("varint write to buffer failed: %v", err))
	}

	return buf.Bytes()
}
