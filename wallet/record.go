// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/btcsuite/txbuilder/pkscript"
	"github.com/btcsuite/txbuilder/sign"
)

var (
	// ErrUnknownNetwork is returned when a record names a network this
	// package does not know.
	ErrUnknownNetwork = errors.New("unknown network")

	// ErrUnknownScriptType is returned when a record names an
	// unsupported script type.
	ErrUnknownScriptType = errors.New("unknown script type")

	// ErrRecordMismatch is returned when a record's stored public key
	// or address disagrees with what its private keys derive to.
	ErrRecordMismatch = errors.New("wallet record is internally " +
		"inconsistent")
)

// Participant is one cosigner of a multisig record. PrivateKeyHex may be
// empty for cosigners whose keys this wallet does not hold.
type Participant struct {
	PrivateKeyHex string `json:"private_key_hex,omitempty"`
	PublicKeyHex  string `json:"public_key_hex"`
}

// Record is the JSON shape of one stored wallet. Single-key records carry
// the top-level key fields; multisig records carry M and Participants
// instead.
type Record struct {
	Network       string `json:"network"`
	ScriptType    string `json:"script_type"`
	PrivateKeyHex string `json:"private_key_hex,omitempty"`
	PublicKeyHex  string `json:"public_key_hex,omitempty"`
	Address       string `json:"address,omitempty"`

	M            int           `json:"m,omitempty"`
	N            int           `json:"n,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
}

// LoadRecord reads and decodes a wallet record file.
func LoadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading wallet record: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding wallet record %s: %w",
			path, err)
	}

	return &record, nil
}

// Params resolves the record's network name to chain parameters.
func (r *Record) Params() (*chaincfg.Params, error) {
	switch r.Network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork,
			r.Network)
	}
}

// Resolve turns the record into a spendable script type with its signing
// keys. Stored public keys and the address, when present, are
// cross-checked against what the private keys derive to.
func (r *Record) Resolve() (pkscript.ScriptType, []*sign.KeyPair,
	*chaincfg.Params, error) {

	params, err := r.Params()
	if err != nil {
		return nil, nil, nil, err
	}

	var (
		script pkscript.ScriptType
		keys   []*sign.KeyPair
	)

	switch r.ScriptType {
	case "p2sh-multisig":
		script, keys, err = r.resolveMultisig()

	case "p2pk", "p2pkh", "p2wpkh", "p2tr":
		script, keys, err = r.resolveSingleKey()

	default:
		err = fmt.Errorf("%w: %q", ErrUnknownScriptType,
			r.ScriptType)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	if r.Address != "" {
		derived, err := pkscript.Address(script, params)
		if err != nil {
			return nil, nil, nil, err
		}
		if derived != r.Address {
			return nil, nil, nil, fmt.Errorf("%w: stored "+
				"address %q, keys derive %q",
				ErrRecordMismatch, r.Address, derived)
		}
	}

	return script, keys, params, nil
}

// uncompressedKeyHexLen is the hex length of a 65-byte uncompressed
// public key serialization.
const uncompressedKeyHexLen = 2 * 65

// resolveSingleKey builds the script type of a single-key record.
func (r *Record) resolveSingleKey() (pkscript.ScriptType, []*sign.KeyPair,
	error) {

	// A stored 65-byte public key marks an uncompressed P2PK wallet.
	uncompressed := r.ScriptType == "p2pk" &&
		len(r.PublicKeyHex) == uncompressedKeyHexLen

	key, err := parseKey(r.PrivateKeyHex, uncompressed)
	if err != nil {
		return nil, nil, err
	}

	if r.PublicKeyHex != "" {
		stored := r.PublicKeyHex
		derived := hex.EncodeToString(key.PubKeyBytes())
		if stored != derived {
			return nil, nil, fmt.Errorf("%w: stored public key "+
				"%s, private key derives %s",
				ErrRecordMismatch, stored, derived)
		}
	}

	var script pkscript.ScriptType
	switch r.ScriptType {
	case "p2pk":
		script = &pkscript.P2PK{
			PubKey:       key.PubKey(),
			Uncompressed: uncompressed,
		}
	case "p2pkh":
		script = &pkscript.P2PKH{PubKey: key.PubKey()}
	case "p2wpkh":
		script = &pkscript.P2WPKH{PubKey: key.PubKey()}
	case "p2tr":
		script = &pkscript.P2TRKeyPath{InternalKey: key.PubKey()}
	}

	return script, []*sign.KeyPair{key}, nil
}

// resolveMultisig builds the m-of-n script from the participant list. All
// participant public keys contribute to the script; only participants with
// a stored private key contribute signing keys.
func (r *Record) resolveMultisig() (pkscript.ScriptType, []*sign.KeyPair,
	error) {

	if len(r.Participants) == 0 {
		return nil, nil, errors.New("multisig record has no " +
			"participants")
	}
	if r.N != 0 && r.N != len(r.Participants) {
		return nil, nil, fmt.Errorf("%w: n is %d but record lists "+
			"%d participants", ErrRecordMismatch, r.N,
			len(r.Participants))
	}

	pubKeys := make([]*btcec.PublicKey, 0, len(r.Participants))
	var keys []*sign.KeyPair

	for i, participant := range r.Participants {
		pubBytes, err := hex.DecodeString(participant.PublicKeyHex)
		if err != nil {
			return nil, nil, fmt.Errorf("participant %d public "+
				"key: %w", i, err)
		}

		pubKey, err := btcec.ParsePubKey(pubBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("participant %d public "+
				"key: %w", i, err)
		}
		pubKeys = append(pubKeys, pubKey)

		if participant.PrivateKeyHex == "" {
			continue
		}

		key, err := parseKey(participant.PrivateKeyHex, false)
		if err != nil {
			return nil, nil, fmt.Errorf("participant %d: %w", i,
				err)
		}

		if !key.PubKey().IsEqual(pubKey) {
			return nil, nil, fmt.Errorf("%w: participant %d "+
				"private key does not derive %s",
				ErrRecordMismatch, i,
				participant.PublicKeyHex)
		}

		keys = append(keys, key)
	}

	script, err := pkscript.NewP2SHMultisig(r.M, pubKeys)
	if err != nil {
		return nil, nil, err
	}

	return script, keys, nil
}

// parseKey decodes a hex private key into a signing key pair.
func parseKey(privHex string, uncompressed bool) (*sign.KeyPair, error) {
	privBytes, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, fmt.Errorf("decoding private key hex: %w", err)
	}

	return sign.NewKeyPair(privBytes, uncompressed)
}
