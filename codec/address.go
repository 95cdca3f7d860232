// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package codec

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"
)

var (
	// ErrChecksumMismatch is returned when the trailing checksum of a
	// Base58Check string does not match its payload.
	ErrChecksumMismatch = errors.New("address checksum mismatch")

	// ErrUnknownVersionByte is returned when a Base58Check string decodes
	// cleanly but its leading version byte does not match any configured
	// network prefix.
	ErrUnknownVersionByte = errors.New("unknown address version byte")

	// ErrInvalidChecksum is returned when a bech32 or bech32m string fails
	// checksum verification, or when the checksum constant does not match
	// the decoded witness version.
	ErrInvalidChecksum = errors.New("invalid bech32 checksum")

	// ErrInvalidWitnessVersion is returned when the decoded witness
	// version and program length are not a valid combination: version 0
	// must carry a 20 or 32 byte program, version 1 exactly 32 bytes.
	ErrInvalidWitnessVersion = errors.New("invalid witness version or " +
		"program")

	// ErrUnrecognizedAddressFormat is returned when a string is neither a
	// valid Base58Check address, a valid bech32/bech32m address, nor a
	// public key hex string.
	ErrUnrecognizedAddressFormat = errors.New("unrecognized address " +
		"format")

	// ErrUnsupportedAddressClass is returned when an address class has no
	// text encoding for the requested network.
	ErrUnsupportedAddressClass = errors.New("unsupported address class")

	// ErrInvalidPayloadLength is returned when the payload handed to the
	// encoder has the wrong length for its address class.
	ErrInvalidPayloadLength = errors.New("invalid payload length")
)

// AddressClass identifies the script template an address resolves to.
type AddressClass int

const (
	// ClassP2PK is a raw public key accepted as a pseudo-address.
	ClassP2PK AddressClass = iota

	// ClassP2PKH is a Base58Check pay-to-pubkey-hash address.
	ClassP2PKH

	// ClassP2SH is a Base58Check pay-to-script-hash address.
	ClassP2SH

	// ClassP2WPKH is a bech32 witness v0 address with a 20-byte program.
	ClassP2WPKH

	// ClassP2WSH is a bech32 witness v0 address with a 32-byte program.
	ClassP2WSH

	// ClassP2TR is a bech32m witness v1 address with a 32-byte program.
	ClassP2TR
)

// String returns the conventional name of the address class.
func (c AddressClass) String() string {
	switch c {
	case ClassP2PK:
		return "p2pk"
	case ClassP2PKH:
		return "p2pkh"
	case ClassP2SH:
		return "p2sh"
	case ClassP2WPKH:
		return "p2wpkh"
	case ClassP2WSH:
		return "p2wsh"
	case ClassP2TR:
		return "p2tr"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// DecodedAddress is the result of decoding an address string: the script
// class it maps to, the raw script payload (hash160, witness program, or
// full public key for P2PK), and the network the prefix belongs to.
type DecodedAddress struct {
	// Class is the script template the address resolves to.
	Class AddressClass

	// Payload is the raw payload: a 20-byte hash160 for P2PKH/P2SH/
	// P2WPKH, a 32-byte program for P2WSH/P2TR, or a 33/65-byte public
	// key for P2PK.
	Payload []byte

	// Params identifies the network the address prefix belongs to.
	Params *chaincfg.Params
}

// decodeNetworks lists the networks tried during prefix detection, most
// specific HRP first so "bcrt1..." never matches the "tb" fallback.
var decodeNetworks = []*chaincfg.Params{
	&chaincfg.MainNetParams,
	&chaincfg.RegressionNetParams,
	&chaincfg.TestNet3Params,
}

// MatchesParams reports whether the decoded address is spendable on the
// network described by params. Testnet3 and regtest share the same
// Base58Check version bytes, so a legacy address decoded as one is accepted
// by the other.
func (d *DecodedAddress) MatchesParams(params *chaincfg.Params) bool {
	if d.Params.Net == params.Net {
		return true
	}

	// The shared 0x6F/0xC4 prefixes make legacy testnet and regtest
	// addresses indistinguishable.
	legacy := d.Class == ClassP2PKH || d.Class == ClassP2SH
	if !legacy {
		return false
	}

	return d.Params.PubKeyHashAddrID == params.PubKeyHashAddrID &&
		d.Params.ScriptHashAddrID == params.ScriptHashAddrID
}

// EncodeAddress renders the address text for the given class and payload on
// the given network: Base58Check for P2PKH/P2SH, bech32 for witness v0,
// bech32m for witness v1. P2PK has no address format and is rendered as the
// public key hex, matching the pseudo-address accepted by DecodeAddress.
func EncodeAddress(class AddressClass, payload []byte,
	params *chaincfg.Params) (string, error) {

	switch class {
	case ClassP2PK:
		if len(payload) != 33 && len(payload) != 65 {
			return "", fmt.Errorf("%w: p2pk payload is %d bytes, "+
				"want 33 or 65", ErrInvalidPayloadLength,
				len(payload))
		}

		return hex.EncodeToString(payload), nil

	case ClassP2PKH:
		if len(payload) != 20 {
			return "", fmt.Errorf("%w: p2pkh payload is %d "+
				"bytes, want 20", ErrInvalidPayloadLength,
				len(payload))
		}

		return base58.CheckEncode(payload, params.PubKeyHashAddrID),
			nil

	case ClassP2SH:
		if len(payload) != 20 {
			return "", fmt.Errorf("%w: p2sh payload is %d bytes, "+
				"want 20", ErrInvalidPayloadLength,
				len(payload))
		}

		return base58.CheckEncode(payload, params.ScriptHashAddrID),
			nil

	case ClassP2WPKH, ClassP2WSH:
		wantLen := 20
		if class == ClassP2WSH {
			wantLen = 32
		}
		if len(payload) != wantLen {
			return "", fmt.Errorf("%w: witness v0 payload is %d "+
				"bytes, want %d", ErrInvalidPayloadLength,
				len(payload), wantLen)
		}

		return encodeSegWit(params.Bech32HRPSegwit, 0, payload)

	case ClassP2TR:
		if len(payload) != 32 {
			return "", fmt.Errorf("%w: witness v1 payload is %d "+
				"bytes, want 32", ErrInvalidPayloadLength,
				len(payload))
		}

		return encodeSegWit(params.Bech32HRPSegwit, 1, payload)

	default:
		return "", fmt.Errorf("%w: %v", ErrUnsupportedAddressClass,
			class)
	}
}

// DecodeAddress parses an address string: bech32/bech32m when the string
// carries a known segwit HRP, Base58Check otherwise, then a raw public key
// hex (the P2PK pseudo-address). The network is detected from the address
// prefix.
func DecodeAddress(addr string) (*DecodedAddress, error) {
	// Dispatch on shape before touching Base58Check: a bech32 string can
	// consist entirely of base58-legal characters, and must not die on
	// the Base58Check checksum.
	if looksBech32(addr) {
		return decodeSegWit(addr)
	}

	if decoded, err := decodeBase58(addr); err == nil {
		return decoded, nil
	} else if !errors.Is(err, errNotBase58) {
		// The string is Base58Check shaped but broken; surface the
		// precise failure instead of falling through.
		return nil, err
	}

	if pub, err := parsePubKeyHex(addr); err == nil {
		return &DecodedAddress{
			Class: ClassP2PK,
			// P2PK has no network prefix; default to mainnet and
			// let MatchesParams accept it everywhere.
			Payload: pub,
			Params:  &chaincfg.MainNetParams,
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnrecognizedAddressFormat, addr)
}

// errNotBase58 is an internal marker meaning the string does not even have
// the shape of a Base58Check address, so other formats should be tried.
var errNotBase58 = errors.New("not a base58check string")

// decodeBase58 attempts a Base58Check decode and maps the version byte to a
// (class, network) pair.
func decodeBase58(addr string) (*DecodedAddress, error) {
	payload, version, err := base58.CheckDecode(addr)
	switch {
	case errors.Is(err, base58.ErrChecksum):
		return nil, fmt.Errorf("%w: %q", ErrChecksumMismatch, addr)

	case err != nil:
		return nil, errNotBase58
	}

	if len(payload) != 20 {
		return nil, fmt.Errorf("%w: base58 payload is %d bytes, "+
			"want 20", ErrInvalidPayloadLength, len(payload))
	}

	for _, params := range decodeNetworks {
		switch version {
		case params.PubKeyHashAddrID:
			return &DecodedAddress{
				Class:   ClassP2PKH,
				Payload: payload,
				Params:  params,
			}, nil

		case params.ScriptHashAddrID:
			return &DecodedAddress{
				Class:   ClassP2SH,
				Payload: payload,
				Params:  params,
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownVersionByte, version)
}

// looksBech32 reports whether the string carries one of the configured
// segwit human-readable parts.
func looksBech32(addr string) bool {
	lower := strings.ToLower(addr)
	for _, params := range decodeNetworks {
		if strings.HasPrefix(lower, params.Bech32HRPSegwit+"1") {
			return true
		}
	}

	return false
}

// encodeSegWit encodes a witness program as bech32 (version 0) or bech32m
// (version 1+), per BIP173/BIP350.
func encodeSegWit(hrp string, version byte, program []byte) (string, error) {
	converted, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("converting witness program: %w", err)
	}

	combined := make([]byte, 0, len(converted)+1)
	combined = append(combined, version)
	combined = append(combined, converted...)

	if version == 0 {
		return bech32.Encode(hrp, combined)
	}

	return bech32.EncodeM(hrp, combined)
}

// decodeSegWit decodes a bech32/bech32m address and validates the witness
// version against the checksum variant and the program length.
func decodeSegWit(addr string) (*DecodedAddress, error) {
	hrp, data, version, err := bech32.DecodeGeneric(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChecksum, err)
	}

	var params *chaincfg.Params
	for _, p := range decodeNetworks {
		if hrp == p.Bech32HRPSegwit {
			params = p
			break
		}
	}
	if params == nil {
		return nil, fmt.Errorf("%w: unknown hrp %q",
			ErrUnrecognizedAddressFormat, hrp)
	}

	if len(data) < 1 {
		return nil, fmt.Errorf("%w: missing witness version",
			ErrInvalidWitnessVersion)
	}

	witnessVer := data[0]
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWitnessVersion, err)
	}

	switch witnessVer {
	case 0:
		// BIP173 requires the bech32 checksum constant for v0.
		if version != bech32.Version0 {
			return nil, fmt.Errorf("%w: witness v0 with bech32m "+
				"checksum", ErrInvalidChecksum)
		}

		switch len(program) {
		case 20:
			return &DecodedAddress{
				Class:   ClassP2WPKH,
				Payload: program,
				Params:  params,
			}, nil

		case 32:
			return &DecodedAddress{
				Class:   ClassP2WSH,
				Payload: program,
				Params:  params,
			}, nil

		default:
			return nil, fmt.Errorf("%w: v0 program is %d bytes, "+
				"want 20 or 32", ErrInvalidWitnessVersion,
				len(program))
		}

	case 1:
		// BIP350 requires the bech32m checksum constant for v1+.
		if version != bech32.VersionM {
			return nil, fmt.Errorf("%w: witness v1 with bech32 "+
				"checksum", ErrInvalidChecksum)
		}

		if len(program) != 32 {
			return nil, fmt.Errorf("%w: v1 program is %d bytes, "+
				"want 32", ErrInvalidWitnessVersion,
				len(program))
		}

		return &DecodedAddress{
			Class:   ClassP2TR,
			Payload: program,
			Params:  params,
		}, nil

	default:
		return nil, fmt.Errorf("%w: version %d",
			ErrInvalidWitnessVersion, witnessVer)
	}
}

// parsePubKeyHex parses a hex string as a 33 or 65 byte secp256k1 public
// key, validating that the encoded point is on the curve.
func parsePubKeyHex(s string) ([]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}

	if len(raw) != 33 && len(raw) != 65 {
		return nil, fmt.Errorf("%w: pubkey is %d bytes, want 33 or "+
			"65", ErrInvalidPayloadLength, len(raw))
	}

	if _, err := btcec.ParsePubKey(raw); err != nil {
		return nil, err
	}

	return raw, nil
}
