// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"

	"github.com/btcsuite/txbuilder/chain"
	"github.com/btcsuite/txbuilder/codec"
	"github.com/btcsuite/txbuilder/coinselect"
	"github.com/btcsuite/txbuilder/pkg/btcunit"
	"github.com/btcsuite/txbuilder/pkscript"
	"github.com/btcsuite/txbuilder/sighash"
	"github.com/btcsuite/txbuilder/sign"
)

var (
	// ErrNetworkMismatch is returned when the recipient address belongs
	// to a different network than the builder was configured for.
	ErrNetworkMismatch = errors.New("recipient address network mismatch")

	// ErrFeeConvergenceFailure is returned when the fee and the
	// transaction size fail to reach a fixed point within the iteration
	// cap.
	ErrFeeConvergenceFailure = errors.New("fee estimation did not " +
		"converge")

	// ErrValueConservation is returned when the assembled transaction
	// violates the input/output/fee balance. Reaching it means a bug in
	// the assembly path, never bad user input.
	ErrValueConservation = errors.New("value conservation violated")
)

const (
	// DefaultDustLimit is the conventional dust threshold for change
	// outputs, in satoshis.
	DefaultDustLimit = btcutil.Amount(546)

	// DefaultMaxMessageLen is the standardness cap on OP_RETURN
	// payloads. Longer messages are truncated at this raw byte
	// boundary, even mid-codepoint for multi-byte text.
	DefaultMaxMessageLen = 80

	// DefaultMaxIterations caps the fee/size convergence loop.
	DefaultMaxIterations = 10
)

// Config carries the spend policy of a builder. The zero value of each
// optional field selects the package default.
type Config struct {
	// ChainParams identifies the target network. Required.
	ChainParams *chaincfg.Params

	// FeeRate is the fee rate the transaction must pay.
	FeeRate btcunit.SatPerVByte

	// DustLimit is the smallest change amount worth creating an output
	// for. Smaller remainders are folded into the fee.
	DustLimit btcutil.Amount

	// MaxMessageLen bounds the OP_RETURN payload in raw bytes.
	MaxMessageLen int

	// MaxIterations caps the fee convergence loop.
	MaxIterations int
}

// Intent describes one requested payment.
type Intent struct {
	// RecipientAddress is the destination in any supported encoding.
	RecipientAddress string

	// Amount is the payment value.
	Amount btcutil.Amount

	// Message, when non-empty, is embedded in an OP_RETURN output,
	// truncated to the configured maximum.
	Message []byte
}

// Result is a fully signed, serialized transaction with its accounting.
type Result struct {
	// Tx is the signed transaction.
	Tx *wire.MsgTx

	// RawTx is the witness-inclusive serialization in hex, ready for
	// broadcast.
	RawTx string

	// TxID is the display-order transaction id.
	TxID string

	// Fee is the total fee paid, including any folded sub-dust
	// remainder.
	Fee btcutil.Amount

	// VSize is the virtual size in vbytes.
	VSize int64

	// Weight is the BIP141 weight.
	Weight int64

	// Change is the change amount, zero when no change output was
	// created.
	Change btcutil.Amount

	// Inputs lists the outputs that were spent.
	Inputs []coinselect.UTXO
}

// Builder constructs, signs and serializes spends from a single script.
type Builder struct {
	cfg    Config
	source chain.UTXOSource
	script pkscript.ScriptType
	keys   []*sign.KeyPair

	// ownScript is the scriptPubKey being spent from, which doubles as
	// the change script.
	ownScript []byte

	// scriptHash is the electrum index key of ownScript.
	scriptHash string
}

// NewBuilder validates the configuration and prepares a builder spending
// from script with keys.
func NewBuilder(cfg Config, source chain.UTXOSource,
	script pkscript.ScriptType, keys []*sign.KeyPair) (*Builder, error) {

	if cfg.ChainParams == nil {
		return nil, errors.New("chain params are required")
	}
	if source == nil {
		return nil, errors.New("a utxo source is required")
	}
	if script == nil {
		return nil, errors.New("a script type is required")
	}
	if len(keys) == 0 {
		return nil, sign.ErrNoKeys
	}

	if cfg.DustLimit == 0 {
		cfg.DustLimit = DefaultDustLimit
	}
	if cfg.MaxMessageLen == 0 {
		cfg.MaxMessageLen = DefaultMaxMessageLen
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}

	ownScript, err := script.PkScript()
	if err != nil {
		return nil, fmt.Errorf("deriving own script: %w", err)
	}

	scriptHash, err := pkscript.ElectrumScriptHash(script)
	if err != nil {
		return nil, fmt.Errorf("deriving script hash: %w", err)
	}

	return &Builder{
		cfg:        cfg,
		source:     source,
		script:     script,
		keys:       keys,
		ownScript:  ownScript,
		scriptHash: scriptHash,
	}, nil
}

// buildState names the phases of the construction loop.
type buildState uint8

const (
	stateCollecting buildState = iota
	stateAssembling
	stateSigning
	stateMeasuring
	stateConverged
)

// String returns a human-readable state name for logging.
func (s buildState) String() string {
	switch s {
	case stateCollecting:
		return "collecting"
	case stateAssembling:
		return "assembling"
	case stateSigning:
		return "signing"
	case stateMeasuring:
		return "measuring"
	case stateConverged:
		return "converged"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Spend builds, signs and serializes a transaction satisfying the intent.
// The fee and the signed size are brought to a fixed point by iterating
// collection, assembly, signing and measurement until the rate-implied fee
// for the measured virtual size equals the fee the selection was made
// against.
func (b *Builder) Spend(ctx context.Context, intent Intent) (*Result,
	error) {

	recipientScript, err := b.recipientScript(intent.RecipientAddress)
	if err != nil {
		return nil, err
	}

	if err := txrules.CheckOutput(
		wire.NewTxOut(int64(intent.Amount), recipientScript),
		txrules.DefaultRelayFeePerKb,
	); err != nil {
		return nil, fmt.Errorf("recipient output rejected: %w", err)
	}

	var opReturnScript []byte
	if len(intent.Message) > 0 {
		opReturnScript, err = b.opReturnScript(intent.Message)
		if err != nil {
			return nil, err
		}
	}

	utxos, err := b.listSpendable(ctx)
	if err != nil {
		return nil, err
	}

	estimate := b.sizeEstimate(recipientScript, opReturnScript)

	var (
		state      = stateCollecting
		iterations = 0
		fee        btcutil.Amount
		sel        *coinselect.Result
		tx         *wire.MsgTx
		change     btcutil.Amount
		weight     int64
		vsize      int64
	)

	for state != stateConverged {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch state {
		case stateCollecting:
			iterations++
			if iterations > b.cfg.MaxIterations {
				return nil, fmt.Errorf("%w: fee still "+
					"moving after %d iterations (last "+
					"target %d sat)",
					ErrFeeConvergenceFailure,
					b.cfg.MaxIterations, fee)
			}

			sel, fee, err = b.collect(
				utxos, intent.Amount, fee, estimate,
				iterations,
			)
			if err != nil {
				return nil, err
			}

			state = stateAssembling

		case stateAssembling:
			tx, change = b.assemble(
				sel, intent.Amount, fee, recipientScript,
				opReturnScript,
			)
			state = stateSigning

		case stateSigning:
			if err := b.signAll(tx, sel); err != nil {
				return nil, err
			}
			state = stateMeasuring

		case stateMeasuring:
			weight = blockchain.GetTransactionWeight(
				btcutil.NewTx(tx),
			)
			vsize = (weight + blockchain.WitnessScaleFactor - 1) /
				blockchain.WitnessScaleFactor

			required := b.cfg.FeeRate.FeeForVSize(vsize)
			paid := sel.Total - intent.Amount - change

			log.Debugf("iteration %d: %d inputs, vsize %d, "+
				"fee target %d, rate-implied %d", iterations,
				len(sel.Selected), vsize, fee, required)

			switch {
			// With a change output the fee must land exactly on
			// the rate-implied amount.
			case change > 0 && required == fee:
				state = stateConverged

			// A folded sub-dust remainder may leave the paid
			// fee above the rate-implied minimum.
			case change == 0 && paid >= required:
				state = stateConverged

			default:
				fee = required
				state = stateCollecting
			}
		}
	}

	var sumOut btcutil.Amount
	for _, txOut := range tx.TxOut {
		sumOut += btcutil.Amount(txOut.Value)
	}

	paid := sel.Total - sumOut
	if paid < 0 {
		return nil, fmt.Errorf("%w: inputs %d sat, outputs %d sat",
			ErrValueConservation, sel.Total, sumOut)
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("serializing transaction: %w", err)
	}

	txid := tx.TxHash().String()

	log.Infof("built %s: %d inputs, %d outputs, %d vbytes, fee %d "+
		"sat, change %d sat", txid, len(tx.TxIn), len(tx.TxOut),
		vsize, paid, change)

	return &Result{
		Tx:     tx,
		RawTx:  hex.EncodeToString(buf.Bytes()),
		TxID:   txid,
		Fee:    paid,
		VSize:  vsize,
		Weight: weight,
		Change: change,
		Inputs: sel.Selected,
	}, nil
}

// recipientScript decodes and network-checks the destination address and
// returns its scriptPubKey.
func (b *Builder) recipientScript(addr string) ([]byte, error) {
	decoded, err := codec.DecodeAddress(addr)
	if err != nil {
		return nil, fmt.Errorf("decoding recipient %q: %w", addr,
			err)
	}

	if !decoded.MatchesParams(b.cfg.ChainParams) {
		return nil, fmt.Errorf("%w: %q decodes for %s, builder "+
			"configured for %s", ErrNetworkMismatch, addr,
			decoded.Params.Name, b.cfg.ChainParams.Name)
	}

	script, err := pkscript.PayToDecoded(decoded)
	if err != nil {
		return nil, fmt.Errorf("building recipient script: %w", err)
	}

	return script, nil
}

// opReturnScript builds the data-carrier script, truncating the message at
// the configured raw byte boundary.
func (b *Builder) opReturnScript(message []byte) ([]byte, error) {
	if len(message) > b.cfg.MaxMessageLen {
		log.Warnf("op_return message truncated from %d to %d bytes",
			len(message), b.cfg.MaxMessageLen)
		message = message[:b.cfg.MaxMessageLen]
	}

	script, err := txscript.NullDataScript(message)
	if err != nil {
		return nil, fmt.Errorf("building op_return script: %w", err)
	}

	return script, nil
}

// listSpendable fetches the unspent outputs of the builder's script.
func (b *Builder) listSpendable(ctx context.Context) ([]coinselect.UTXO,
	error) {

	unspent, err := b.source.ListUnspent(ctx, b.scriptHash)
	if err != nil {
		return nil, fmt.Errorf("listing unspent outputs: %w", err)
	}

	utxos := make([]coinselect.UTXO, 0, len(unspent))
	for _, u := range unspent {
		utxos = append(utxos, coinselect.UTXO{
			OutPoint: u.OutPoint(),
			Amount:   u.Amount,
			PkScript: b.ownScript,
			Height:   u.Height,
		})
	}

	log.Debugf("%s: %d spendable outputs", b.script, len(utxos))

	return utxos, nil
}

// sizeEstimate builds the static size model for coin selection: the fixed
// overhead, the per-input size of the builder's script type, and the
// actual serialized sizes of all planned outputs including change.
func (b *Builder) sizeEstimate(recipientScript,
	opReturnScript []byte) coinselect.Estimate {

	outputs := outputVSize(recipientScript) + outputVSize(b.ownScript)
	if opReturnScript != nil {
		outputs += outputVSize(opReturnScript)
	}

	return coinselect.Estimate{
		TxOverhead:   coinselect.DefaultTxOverhead,
		InputVSize:   b.script.InputVSize(),
		OutputsVSize: outputs,
	}
}

// outputVSize is the serialized size of one output: 8-byte value plus the
// length-prefixed script.
func outputVSize(script []byte) int {
	return 8 + codec.VarIntSerializeSize(uint64(len(script))) +
		len(script)
}

// collect selects inputs for amount plus the current fee target. The first
// iteration has no measured size yet and lets the selector derive the
// target from the static estimate; later iterations carry the rate-implied
// fee of the previously measured transaction.
func (b *Builder) collect(utxos []coinselect.UTXO, amount,
	fee btcutil.Amount, estimate coinselect.Estimate,
	iteration int) (*coinselect.Result, btcutil.Amount, error) {

	if iteration == 1 {
		sel, err := coinselect.Select(
			utxos, amount, b.cfg.FeeRate, estimate,
		)
		if err != nil {
			return nil, 0, err
		}

		return sel, sel.EstimatedFee, nil
	}

	sel, err := coinselect.Select(
		utxos, amount+fee, btcunit.SatPerVByte{}, estimate,
	)
	if err != nil {
		return nil, 0, err
	}

	return sel, fee, nil
}

// assemble builds the unsigned transaction: recipient output first, then
// the optional data carrier, then change when the remainder clears the
// dust limit. A sub-dust remainder is folded into the fee.
func (b *Builder) assemble(sel *coinselect.Result, amount,
	fee btcutil.Amount, recipientScript,
	opReturnScript []byte) (*wire.MsgTx, btcutil.Amount) {

	tx := wire.NewMsgTx(2)

	for _, utxo := range sel.Selected {
		tx.AddTxIn(wire.NewTxIn(&utxo.OutPoint, nil, nil))
	}

	tx.AddTxOut(wire.NewTxOut(int64(amount), recipientScript))

	if opReturnScript != nil {
		tx.AddTxOut(wire.NewTxOut(0, opReturnScript))
	}

	change := sel.Total - amount - fee
	if change >= b.cfg.DustLimit {
		tx.AddTxOut(wire.NewTxOut(int64(change), b.ownScript))
	} else {
		if change > 0 {
			log.Debugf("folding %d sat sub-dust change into fee",
				change)
		}
		change = 0
	}

	return tx, change
}

// signAll signs every input against its resolved previous output.
func (b *Builder) signAll(tx *wire.MsgTx, sel *coinselect.Result) error {
	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(sel.Selected))
	for _, utxo := range sel.Selected {
		prevOuts[utxo.OutPoint] = wire.NewTxOut(
			int64(utxo.Amount), utxo.PkScript,
		)
	}

	eng, err := sighash.NewEngine(tx, prevOuts)
	if err != nil {
		return err
	}

	for idx := range tx.TxIn {
		if err := sign.Input(
			eng, tx, idx, b.script, b.keys,
		); err != nil {
			return fmt.Errorf("signing input %d: %w", idx, err)
		}
	}

	return nil
}
