// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sign

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/btcsuite/txbuilder/pkscript"
	"github.com/btcsuite/txbuilder/sighash"
)

// testKeys derives count key pairs from a fixed seed.
func testKeys(t *testing.T, seed int64, count int) []*KeyPair {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	keys := make([]*KeyPair, 0, count)
	for len(keys) < count {
		var buf [32]byte
		_, err := rng.Read(buf[:])
		require.NoError(t, err)

		key, err := NewKeyPair(buf[:], false)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}

	return keys
}

// spendFixture builds a one-input transaction spending an output locked by
// script, with the sighash engine resolving the previous output.
func spendFixture(t *testing.T, script pkscript.ScriptType,
	value int64) (*wire.MsgTx, *sighash.Engine, []byte) {

	t.Helper()

	pkScript, err := script.PkScript()
	require.NoError(t, err)

	var fundingHash chainhash.Hash
	fundingHash[0] = 0x51

	op := wire.OutPoint{Hash: fundingHash, Index: 0}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&op, nil, nil))

	// Pay to an arbitrary witness program; the outputs do not matter
	// for signature validity.
	dest := make([]byte, 22)
	dest[1] = 0x14
	dest[2] = 0xAB
	tx.AddTxOut(wire.NewTxOut(value-1_000, dest))

	prevOuts := map[wire.OutPoint]*wire.TxOut{
		op: wire.NewTxOut(value, pkScript),
	}

	eng, err := sighash.NewEngine(tx, prevOuts)
	require.NoError(t, err)

	return tx, eng, pkScript
}

// assertSpendValid executes the signed input against the locking script in
// the txscript virtual machine.
func assertSpendValid(t *testing.T, tx *wire.MsgTx,
	eng *sighash.Engine, pkScript []byte, value int64) {

	t.Helper()

	vm, err := txscript.NewEngine(
		pkScript, tx, 0, txscript.StandardVerifyFlags, nil,
		eng.SigHashes(), value, eng.Fetcher(),
	)
	require.NoError(t, err)
	require.NoError(t, vm.Execute(), "script execution failed")
}

// TestSignSingleKeySpends verifies that every single-key script type
// produces a spend accepted by the script virtual machine.
func TestSignSingleKeySpends(t *testing.T) {
	t.Parallel()

	key := testKeys(t, 1, 1)[0]

	tests := []struct {
		name   string
		script pkscript.ScriptType
	}{
		{name: "p2pk", script: &pkscript.P2PK{PubKey: key.PubKey()}},
		{
			name: "p2pk uncompressed",
			script: &pkscript.P2PK{
				PubKey:       key.PubKey(),
				Uncompressed: true,
			},
		},
		{name: "p2pkh", script: &pkscript.P2PKH{PubKey: key.PubKey()}},
		{
			name:   "p2wpkh",
			script: &pkscript.P2WPKH{PubKey: key.PubKey()},
		},
		{
			name: "p2tr key path",
			script: &pkscript.P2TRKeyPath{
				InternalKey: key.PubKey(),
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			const value = 100_000
			tx, eng, pkScript := spendFixture(
				t, test.script, value,
			)

			err := Input(eng, tx, 0, test.script,
				[]*KeyPair{key})
			require.NoError(t, err)

			assertSpendValid(t, tx, eng, pkScript, value)
		})
	}
}

// TestSignP2WPKHWitnessShape verifies the witness stack is [signature,
// pubkey] and the scriptSig stays empty.
func TestSignP2WPKHWitnessShape(t *testing.T) {
	t.Parallel()

	key := testKeys(t, 2, 1)[0]
	script := &pkscript.P2WPKH{PubKey: key.PubKey()}

	tx, eng, _ := spendFixture(t, script, 50_000)
	require.NoError(t, Input(eng, tx, 0, script, []*KeyPair{key}))

	require.Empty(t, tx.TxIn[0].SignatureScript)
	require.Len(t, tx.TxIn[0].Witness, 2)
	require.Equal(t, byte(txscript.SigHashAll),
		tx.TxIn[0].Witness[0][len(tx.TxIn[0].Witness[0])-1])
	require.Equal(t, key.PubKeyBytes(), tx.TxIn[0].Witness[1])
}

// TestSignTaprootWitnessShape verifies the key-path witness is a single
// 64-byte signature with no sighash byte.
func TestSignTaprootWitnessShape(t *testing.T) {
	t.Parallel()

	key := testKeys(t, 3, 1)[0]
	script := &pkscript.P2TRKeyPath{InternalKey: key.PubKey()}

	tx, eng, _ := spendFixture(t, script, 50_000)
	require.NoError(t, Input(eng, tx, 0, script, []*KeyPair{key}))

	require.Empty(t, tx.TxIn[0].SignatureScript)
	require.Len(t, tx.TxIn[0].Witness, 1)
	require.Len(t, tx.TxIn[0].Witness[0], 64)
}

// TestSignKeyMismatch verifies signing with a key that does not control
// the output fails with the mismatch error instead of producing an
// invalid signature.
func TestSignKeyMismatch(t *testing.T) {
	t.Parallel()

	keys := testKeys(t, 4, 2)
	script := &pkscript.P2PKH{PubKey: keys[0].PubKey()}

	tx, eng, _ := spendFixture(t, script, 50_000)
	err := Input(eng, tx, 0, script, []*KeyPair{keys[1]})
	require.ErrorIs(t, err, ErrSigningKeyMismatch)

	_, eng2, _ := spendFixture(t, script, 50_000)
	err = Input(eng2, tx, 0, script, nil)
	require.ErrorIs(t, err, ErrNoKeys)
}

// halfOrder is n/2 of the secp256k1 group, the BIP62 low-S boundary.
var halfOrder = new(big.Int).Rsh(btcec.S256().N, 1)

// parseDERSig extracts (r, s) from a DER signature with the trailing
// sighash byte still attached.
func parseDERSig(t *testing.T, sig []byte) (*big.Int, *big.Int) {
	t.Helper()

	// Strip the sighash byte.
	sig = sig[:len(sig)-1]

	require.GreaterOrEqual(t, len(sig), 8)
	require.Equal(t, byte(0x30), sig[0])
	require.EqualValues(t, len(sig)-2, sig[1])

	require.Equal(t, byte(0x02), sig[2])
	rLen := int(sig[3])
	r := new(big.Int).SetBytes(sig[4 : 4+rLen])

	require.Equal(t, byte(0x02), sig[4+rLen])
	sLen := int(sig[5+rLen])
	s := new(big.Int).SetBytes(sig[6+rLen : 6+rLen+sLen])
	require.Len(t, sig, 6+rLen+sLen)

	return r, s
}

// TestSignaturesAreLowS verifies every produced ECDSA signature keeps s
// at or below half the group order across many distinct digests.
func TestSignaturesAreLowS(t *testing.T) {
	t.Parallel()

	keys := testKeys(t, 5, 4)

	for i := 0; i < 100; i++ {
		key := keys[i%len(keys)]

		digest := chainhash.DoubleHashB([]byte{
			byte(i), byte(i >> 8), 0x77,
		})

		sig := ecdsaSigWithHashType(key, digest)

		r, s := parseDERSig(t, sig)
		require.Positive(t, r.Sign())
		require.Positive(t, s.Sign())
		require.LessOrEqual(t, s.Cmp(halfOrder), 0,
			"high-S signature on digest %d", i)
	}
}

// TestTaprootSignaturesVerifyAgainstOutputKey verifies that tweaked
// key-path signatures validate against the taproot output key under plain
// BIP340 verification, across many keys.
func TestTaprootSignaturesVerifyAgainstOutputKey(t *testing.T) {
	t.Parallel()

	keys := testKeys(t, 341, 100)

	for i, key := range keys {
		script := &pkscript.P2TRKeyPath{InternalKey: key.PubKey()}

		outputKeyBytes, err := script.OutputKey()
		require.NoError(t, err)

		outputKey, err := schnorr.ParsePubKey(outputKeyBytes)
		require.NoError(t, err)

		digest := chainhash.DoubleHashB([]byte{byte(i), 0x41})

		tweaked := txscript.TweakTaprootPrivKey(*key.priv, nil)
		sig, err := schnorr.Sign(tweaked, digest)
		require.NoError(t, err)

		require.True(t, sig.Verify(digest, outputKey),
			"signature %d does not verify", i)
	}
}

// TestSignaturesDeterministic verifies the nonce derivation is
// deterministic: the same key and digest always produce the same
// signature.
func TestSignaturesDeterministic(t *testing.T) {
	t.Parallel()

	key := testKeys(t, 6, 1)[0]
	digest := chainhash.DoubleHashB([]byte("determinism"))

	first := ecdsaSigWithHashType(key, digest)
	second := ecdsaSigWithHashType(key, digest)
	require.Equal(t, first, second)
}

// TestNewKeyPairValidation verifies private key scalar validation.
func TestNewKeyPairValidation(t *testing.T) {
	t.Parallel()

	_, err := NewKeyPair(make([]byte, 32), false)
	require.ErrorIs(t, err, ErrInvalidPrivateKey)

	_, err = NewKeyPair([]byte{0x01, 0x02}, false)
	require.ErrorIs(t, err, ErrInvalidPrivateKey)

	var buf [32]byte
	buf[31] = 1
	key, err := NewKeyPair(buf[:], false)
	require.NoError(t, err)
	require.Len(t, key.PubKeyBytes(), 33)

	key, err = NewKeyPair(buf[:], true)
	require.NoError(t, err)
	require.Len(t, key.PubKeyBytes(), 65)
}
