// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sign

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/btcsuite/txbuilder/pkscript"
	"github.com/btcsuite/txbuilder/sighash"
)

// signMultisig installs the scriptSig
// OP_0 <sig_1+type> ... <sig_m+type> <redeemScript> for a P2SH m-of-n
// input. Each signature commits to the legacy digest with the redeem script
// as scriptCode, and signatures appear in the redeem script's ascending
// BIP67 pubkey order, not the order the keys were supplied in.
func signMultisig(eng *sighash.Engine, tx *wire.MsgTx, idx int,
	st *pkscript.P2SHMultisig, keys []*KeyPair) error {

	redeem, err := st.RedeemScript()
	if err != nil {
		return err
	}

	digest, err := eng.Legacy(idx, redeem)
	if err != nil {
		return err
	}

	// Walk the redeem script's key order and pick the first key pair
	// matching each slot. A key pair signs at most one slot.
	used := make(map[int]bool, len(keys))
	matched := 0

	var sigs [][]byte
	for _, pub := range st.SortedPubKeys() {
		for i, key := range keys {
			if used[i] || !key.PubKey().IsEqual(pub) {
				continue
			}

			used[i] = true
			matched++
			sigs = append(sigs, ecdsaSigWithHashType(key, digest))

			break
		}

		if len(sigs) == st.M() {
			break
		}
	}

	if matched == 0 {
		return fmt.Errorf("%w: input %d, none of %d keys appear in "+
			"the %d-of-%d redeem script", ErrSigningKeyMismatch,
			idx, len(keys), st.M(), st.N())
	}
	if len(sigs) < st.M() {
		return fmt.Errorf("%w: input %d has %d matching keys, "+
			"need %d", ErrInsufficientSignatures, idx, len(sigs),
			st.M())
	}

	// The extra OP_0 feeds the off-by-one pop in OP_CHECKMULTISIG.
	builder := txscript.NewScriptBuilder().AddOp(txscript.OP_0)
	for _, sig := range sigs {
		builder.AddData(sig)
	}

	sigScript, err := builder.AddData(redeem).Script()
	if err != nil {
		return err
	}

	tx.TxIn[idx].SignatureScript = sigScript

	return nil
}
