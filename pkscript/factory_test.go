// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pkscript

import (
	"bytes"
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"

	"github.com/btcsuite/txbuilder/codec"
)

// generatorKey returns the public key of the secp256k1 generator point,
// whose derived scripts have published vectors.
func generatorKey(t *testing.T) *btcec.PublicKey {
	t.Helper()

	raw, err := hex.DecodeString(
		"0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815" +
			"b16f81798",
	)
	require.NoError(t, err)

	pub, err := btcec.ParsePubKey(raw)
	require.NoError(t, err)

	return pub
}

// deterministicKeys derives count private keys from a fixed seed.
func deterministicKeys(t *testing.T, seed int64,
	count int) []*btcec.PrivateKey {

	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	keys := make([]*btcec.PrivateKey, 0, count)
	for len(keys) < count {
		var buf [32]byte
		_, err := rng.Read(buf[:])
		require.NoError(t, err)

		priv, _ := btcec.PrivKeyFromBytes(buf[:])
		if priv.Key.IsZero() {
			continue
		}
		keys = append(keys, priv)
	}

	return keys
}

// TestPkScriptTemplates verifies the exact locking script bytes produced
// for the generator-point key.
func TestPkScriptTemplates(t *testing.T) {
	t.Parallel()

	pub := generatorKey(t)

	tests := []struct {
		name   string
		script ScriptType
		want   string
	}{
		{
			name:   "p2pk",
			script: &P2PK{PubKey: pub},
			want: "210279be667ef9dcbbac55a06295ce870b07029bfcd" +
				"b2dce28d959f2815b16f81798ac",
		},
		{
			name:   "p2pkh",
			script: &P2PKH{PubKey: pub},
			want: "76a914751e76e8199196d454941c45d1b3a323f1433" +
				"bd688ac",
		},
		{
			name:   "p2wpkh",
			script: &P2WPKH{PubKey: pub},
			want: "0014751e76e8199196d454941c45d1b3a323f1433bd6",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			script, err := test.script.PkScript()
			require.NoError(t, err)
			require.Equal(t, test.want,
				hex.EncodeToString(script))
		})
	}
}

// TestP2PKUncompressed verifies that an uncompressed P2PK wallet locks to
// the 65-byte key serialization.
func TestP2PKUncompressed(t *testing.T) {
	t.Parallel()

	pub := generatorKey(t)
	script, err := (&P2PK{PubKey: pub, Uncompressed: true}).PkScript()
	require.NoError(t, err)

	// 1-byte push opcode + 65-byte key + OP_CHECKSIG.
	require.Len(t, script, 67)
	require.Equal(t, byte(65), script[0])
	require.Equal(t, pub.SerializeUncompressed(), script[1:66])
	require.Equal(t, byte(txscript.OP_CHECKSIG), script[66])
}

// TestMultisigRedeemScriptShape verifies the OP_m ... OP_n
// OP_CHECKMULTISIG shape and the hash160 binding of the outer script.
func TestMultisigRedeemScriptShape(t *testing.T) {
	t.Parallel()

	privs := deterministicKeys(t, 67, 3)
	pubs := make([]*btcec.PublicKey, len(privs))
	for i, priv := range privs {
		pubs[i] = priv.PubKey()
	}

	script, err := NewP2SHMultisig(2, pubs)
	require.NoError(t, err)

	redeem, err := script.RedeemScript()
	require.NoError(t, err)

	// OP_2, three pushes of 33 bytes, OP_3, OP_CHECKMULTISIG.
	require.Len(t, redeem, 1+3*34+1+1)
	require.Equal(t, byte(txscript.OP_2), redeem[0])
	require.Equal(t, byte(txscript.OP_3), redeem[len(redeem)-2])
	require.Equal(t, byte(txscript.OP_CHECKMULTISIG),
		redeem[len(redeem)-1])

	pkScript, err := script.PkScript()
	require.NoError(t, err)
	require.Len(t, pkScript, 23)
	require.Equal(t, byte(txscript.OP_HASH160), pkScript[0])
	require.Equal(t, codec.Hash160(redeem), pkScript[2:22])
	require.Equal(t, byte(txscript.OP_EQUAL), pkScript[22])
}

// TestMultisigKeyOrdering verifies that the redeem script lists public
// keys in ascending compressed-serialization order regardless of the
// order they were supplied in.
func TestMultisigKeyOrdering(t *testing.T) {
	t.Parallel()

	privs := deterministicKeys(t, 99, 5)
	pubs := make([]*btcec.PublicKey, len(privs))
	for i, priv := range privs {
		pubs[i] = priv.PubKey()
	}

	script, err := NewP2SHMultisig(3, pubs)
	require.NoError(t, err)

	sorted := script.SortedPubKeys()
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1].SerializeCompressed()
		cur := sorted[i].SerializeCompressed()
		require.Negative(t, bytes.Compare(prev, cur),
			"keys %d and %d out of order", i-1, i)
	}

	// Supplying the same keys reversed must yield an identical redeem
	// script, and therefore an identical address.
	reversed := make([]*btcec.PublicKey, len(pubs))
	for i, pub := range pubs {
		reversed[len(pubs)-1-i] = pub
	}

	other, err := NewP2SHMultisig(3, reversed)
	require.NoError(t, err)

	redeemA, err := script.RedeemScript()
	require.NoError(t, err)
	redeemB, err := other.RedeemScript()
	require.NoError(t, err)
	require.Equal(t, redeemA, redeemB)
}

// TestMultisigParameterValidation verifies the m-of-n bounds.
func TestMultisigParameterValidation(t *testing.T) {
	t.Parallel()

	privs := deterministicKeys(t, 7, 17)
	pubs := make([]*btcec.PublicKey, len(privs))
	for i, priv := range privs {
		pubs[i] = priv.PubKey()
	}

	tests := []struct {
		name string
		m    int
		n    int
	}{
		{name: "zero m", m: 0, n: 3},
		{name: "m above n", m: 4, n: 3},
		{name: "no keys", m: 1, n: 0},
		{name: "n above 16", m: 2, n: 17},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewP2SHMultisig(test.m, pubs[:test.n])
			require.ErrorIs(t, err,
				ErrInvalidMultisigParameters)
		})
	}

	// The full range of valid shapes constructs cleanly.
	for n := 1; n <= 16; n++ {
		for _, m := range []int{1, n} {
			_, err := NewP2SHMultisig(m, pubs[:n])
			require.NoError(t, err, "%d-of-%d rejected", m, n)
		}
	}
}

// TestTaprootOutputKey verifies the key-path output key against an
// independent tweak computation.
func TestTaprootOutputKey(t *testing.T) {
	t.Parallel()

	priv := deterministicKeys(t, 341, 1)[0]
	script := &P2TRKeyPath{InternalKey: priv.PubKey()}

	outputKey, err := script.OutputKey()
	require.NoError(t, err)
	require.Len(t, outputKey, 32)

	tweaked := txscript.TweakTaprootPrivKey(*priv, nil)
	require.Equal(t, schnorr.SerializePubKey(tweaked.PubKey()),
		outputKey)

	pkScript, err := script.PkScript()
	require.NoError(t, err)
	require.Len(t, pkScript, 34)
	require.Equal(t, byte(txscript.OP_1), pkScript[0])
	require.Equal(t, outputKey, pkScript[2:])
}

// TestAddressRendering verifies the address text of each script type on
// mainnet against the codec round trip.
func TestAddressRendering(t *testing.T) {
	t.Parallel()

	pub := generatorKey(t)
	params := &chaincfg.MainNetParams

	addr, err := Address(&P2PKH{PubKey: pub}, params)
	require.NoError(t, err)
	require.Equal(t, "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", addr)

	addr, err = Address(&P2WPKH{PubKey: pub}, params)
	require.NoError(t, err)
	require.Equal(t, "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
		addr)
}

// TestPayToDecodedMatchesPkScript verifies that the recipient-side script
// built from a decoded address equals the owner-side locking script.
func TestPayToDecodedMatchesPkScript(t *testing.T) {
	t.Parallel()

	privs := deterministicKeys(t, 11, 3)
	pubs := make([]*btcec.PublicKey, len(privs))
	for i, priv := range privs {
		pubs[i] = priv.PubKey()
	}

	multisig, err := NewP2SHMultisig(2, pubs)
	require.NoError(t, err)

	scripts := []ScriptType{
		&P2PK{PubKey: pubs[0]},
		&P2PKH{PubKey: pubs[0]},
		&P2WPKH{PubKey: pubs[0]},
		multisig,
		&P2TRKeyPath{InternalKey: pubs[0]},
	}

	for _, script := range scripts {
		script := script
		t.Run(script.String(), func(t *testing.T) {
			t.Parallel()

			addr, err := Address(script,
				&chaincfg.MainNetParams)
			require.NoError(t, err)

			decoded, err := codec.DecodeAddress(addr)
			require.NoError(t, err)

			fromAddr, err := PayToDecoded(decoded)
			require.NoError(t, err)

			fromKeys, err := script.PkScript()
			require.NoError(t, err)
			require.Equal(t, fromKeys, fromAddr)
		})
	}
}

// TestElectrumScriptHash verifies the index key matches the codec digest
// of the locking script.
func TestElectrumScriptHash(t *testing.T) {
	t.Parallel()

	script := &P2WPKH{PubKey: generatorKey(t)}

	pkScript, err := script.PkScript()
	require.NoError(t, err)

	hash, err := ElectrumScriptHash(script)
	require.NoError(t, err)
	require.Equal(t, codec.ScriptHashKey(pkScript), hash)
	require.Len(t, hash, 64)
}

// TestInputVSizes verifies the per-input estimate of each script type is
// positive and ordered sensibly: witness inputs are cheaper than legacy
// ones and multisig grows with m and n.
func TestInputVSizes(t *testing.T) {
	t.Parallel()

	pub := generatorKey(t)
	require.Less(t, (&P2WPKH{PubKey: pub}).InputVSize(),
		(&P2PKH{PubKey: pub}).InputVSize())
	require.Less(t, (&P2TRKeyPath{InternalKey: pub}).InputVSize(),
		(&P2WPKH{PubKey: pub}).InputVSize())

	privs := deterministicKeys(t, 5, 5)
	pubs := make([]*btcec.PublicKey, len(privs))
	for i, priv := range privs {
		pubs[i] = priv.PubKey()
	}

	small, err := NewP2SHMultisig(2, pubs[:3])
	require.NoError(t, err)
	large, err := NewP2SHMultisig(3, pubs)
	require.NoError(t, err)
	require.Less(t, small.InputVSize(), large.InputVSize())
}
