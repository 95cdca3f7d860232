// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/btcsuite/txbuilder/pkg/btcunit"
)

var (
	// ErrServerError wraps an error object returned by the Electrum
	// server for a request.
	ErrServerError = errors.New("electrum server error")

	// ErrEmptyResponse is returned when the server closes the connection
	// without answering.
	ErrEmptyResponse = errors.New("empty response from electrum server")

	// ErrVoutOutOfRange is returned when a previous-output lookup names
	// an output index the funding transaction does not have.
	ErrVoutOutOfRange = errors.New("vout out of range")
)

const (
	// DefaultTimeout bounds a single request round trip.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the number of attempts per request. Retrying
	// here keeps retry policy out of the transaction core entirely.
	DefaultMaxRetries = 3

	// maxResponseLine bounds a single newline-framed response. Raw
	// transactions dominate response size; 16 MiB leaves headroom well
	// past any standard transaction.
	maxResponseLine = 16 * 1024 * 1024
)

// ClientConfig describes how to reach an Electrum or Fulcrum server.
type ClientConfig struct {
	// Host is the server host name or address.
	Host string

	// Port is the TCP port, conventionally 50001 for plaintext and
	// 50002 for TLS.
	Port uint16

	// UseTLS wraps the connection in TLS.
	UseTLS bool

	// TLSConfig overrides the TLS parameters. Electrum servers
	// typically present self-signed certificates, so callers opting in
	// to TLS usually need to supply a config with their trust decision.
	TLSConfig *tls.Config

	// Timeout bounds a single request round trip. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	// MaxRetries is the number of attempts per request. Zero means
	// DefaultMaxRetries.
	MaxRetries int
}

// Client is a minimal Electrum protocol client speaking newline-framed
// JSON-RPC over a fresh connection per request. It implements UTXOSource,
// Broadcaster and FeeEstimator.
type Client struct {
	cfg       ClientConfig
	requestID atomic.Uint64
}

// Compile-time checks that the client satisfies the collaborator
// interfaces.
var _ UTXOSource = (*Client)(nil)
var _ BalanceSource = (*Client)(nil)
var _ Broadcaster = (*Client)(nil)
var _ FeeEstimator = (*Client)(nil)

// NewClient returns a client for the given server.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	return &Client{cfg: cfg}
}

// rpcRequest is the JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// rpcResponse is the JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// request performs one JSON-RPC call with the configured retry budget.
func (c *Client) request(ctx context.Context, method string,
	params ...any) (json.RawMessage, error) {

	if params == nil {
		params = []any{}
	}

	payload, err := json.Marshal(&rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling %s request: %w", method,
			err)
	}
	payload = append(payload, '\n')

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := c.roundTrip(ctx, payload)
		if err == nil {
			return result, nil
		}

		// Server-reported errors are answers, not transport
		// failures; retrying would just repeat them.
		if errors.Is(err, ErrServerError) {
			return nil, err
		}

		log.Debugf("electrum %s attempt %d/%d failed: %v", method,
			attempt, c.cfg.MaxRetries, err)
		lastErr = err
	}

	return nil, fmt.Errorf("%s failed after %d attempts: %w", method,
		c.cfg.MaxRetries, lastErr)
}

// roundTrip dials, writes one framed request, and reads one framed
// response.
func (c *Client) roundTrip(ctx context.Context,
	payload []byte) (json.RawMessage, error) {

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(
		c.cfg.Host, strconv.Itoa(int(c.cfg.Port)),
	)

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	if c.cfg.UseTLS {
		tlsCfg := c.cfg.TLSConfig
		if tlsCfg == nil {
			tlsCfg = &tls.Config{ServerName: c.cfg.Host}
		}

		tlsConn := tls.Client(conn, tlsCfg)
		if err := tlsConn.HandshakeContext(dialCtx); err != nil {
			return nil, fmt.Errorf("tls handshake with %s: %w",
				addr, err)
		}
		conn = tlsConn
	}

	if err := conn.SetDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
		return nil, err
	}

	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	reader := bufio.NewReaderSize(conn, 64*1024)
	line, err := readLine(reader, maxResponseLine)
	if err != nil {
		return nil, err
	}

	var resp rpcResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(resp.Error) > 0 && !bytes.Equal(resp.Error, []byte("null")) {
		return nil, fmt.Errorf("%w: %s", ErrServerError, resp.Error)
	}

	return resp.Result, nil
}

// readLine reads one newline-terminated frame, bounded by limit.
func readLine(r *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if len(line) == 0 {
				return nil, ErrEmptyResponse
			}
			return nil, fmt.Errorf("reading response: %w", err)
		}

		line = append(line, chunk...)
		if len(line) > limit {
			return nil, fmt.Errorf("response exceeds %d bytes",
				limit)
		}

		if !isPrefix {
			return line, nil
		}
	}
}

// electrumUnspent is the wire shape of one blockchain.scripthash.listunspent
// entry.
type electrumUnspent struct {
	TxHash string `json:"tx_hash"`
	TxPos  uint32 `json:"tx_pos"`
	Value  int64  `json:"value"`
	Height int32  `json:"height"`
}

// ListUnspent returns the unspent outputs indexed under scriptHash.
func (c *Client) ListUnspent(ctx context.Context,
	scriptHash string) ([]Unspent, error) {

	raw, err := c.request(
		ctx, "blockchain.scripthash.listunspent", scriptHash,
	)
	if err != nil {
		return nil, err
	}

	var entries []electrumUnspent
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decoding listunspent result: %w", err)
	}

	unspent := make([]Unspent, 0, len(entries))
	for _, entry := range entries {
		// Electrum reports txids in reversed display order;
		// NewHashFromStr performs the byte reversal.
		txHash, err := chainhash.NewHashFromStr(entry.TxHash)
		if err != nil {
			return nil, fmt.Errorf("parsing tx_hash %q: %w",
				entry.TxHash, err)
		}

		unspent = append(unspent, Unspent{
			TxHash: *txHash,
			Vout:   entry.TxPos,
			Amount: btcutil.Amount(entry.Value),
			Height: entry.Height,
		})
	}

	log.Debugf("scripthash %s: %d unspent outputs", scriptHash,
		len(unspent))

	return unspent, nil
}

// electrumBalance is the wire shape of the blockchain.scripthash.get_balance
// result.
type electrumBalance struct {
	Confirmed   int64 `json:"confirmed"`
	Unconfirmed int64 `json:"unconfirmed"`
}

// GetBalance returns the confirmed and unconfirmed value indexed under
// scriptHash.
func (c *Client) GetBalance(ctx context.Context,
	scriptHash string) (Balance, error) {

	raw, err := c.request(
		ctx, "blockchain.scripthash.get_balance", scriptHash,
	)
	if err != nil {
		return Balance{}, err
	}

	var entry electrumBalance
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Balance{}, fmt.Errorf("decoding get_balance result: %w",
			err)
	}

	return Balance{
		Confirmed:   btcutil.Amount(entry.Confirmed),
		Unconfirmed: btcutil.Amount(entry.Unconfirmed),
	}, nil
}

// PrevOutput fetches the funding transaction and returns a copy of the
// referenced output.
func (c *Client) PrevOutput(ctx context.Context,
	op wire.OutPoint) (*wire.TxOut, error) {

	raw, err := c.request(
		ctx, "blockchain.transaction.get", op.Hash.String(), false,
	)
	if err != nil {
		return nil, err
	}

	var rawHex string
	if err := json.Unmarshal(raw, &rawHex); err != nil {
		return nil, fmt.Errorf("decoding transaction.get result: %w",
			err)
	}

	txBytes, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, fmt.Errorf("decoding raw transaction hex: %w",
			err)
	}

	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(txBytes)); err != nil {
		return nil, fmt.Errorf("deserializing transaction %v: %w",
			op.Hash, err)
	}

	if op.Index >= uint32(len(tx.TxOut)) {
		return nil, fmt.Errorf("%w: %v has %d outputs, want index "+
			"%d", ErrVoutOutOfRange, op.Hash, len(tx.TxOut),
			op.Index)
	}

	prevOut := tx.TxOut[op.Index]

	return &wire.TxOut{
		Value:    prevOut.Value,
		PkScript: append([]byte(nil), prevOut.PkScript...),
	}, nil
}

// Broadcast relays the raw transaction hex and returns the acknowledged
// txid.
func (c *Client) Broadcast(ctx context.Context, rawTx string) (string,
	error) {

	raw, err := c.request(
		ctx, "blockchain.transaction.broadcast", rawTx,
	)
	if err != nil {
		return "", err
	}

	var txid string
	if err := json.Unmarshal(raw, &txid); err != nil {
		return "", fmt.Errorf("decoding broadcast result: %w", err)
	}

	log.Infof("broadcast accepted: %s", txid)

	return txid, nil
}

// EstimateFeeRate asks the server for a rate targeting confirmation within
// targetBlocks blocks. The Electrum estimatefee unit is BTC per kilobyte;
// -1 means the server has no estimate.
func (c *Client) EstimateFeeRate(ctx context.Context,
	targetBlocks int) (btcunit.SatPerVByte, error) {

	raw, err := c.request(ctx, "blockchain.estimatefee", targetBlocks)
	if err != nil {
		return btcunit.SatPerVByte{}, err
	}

	var btcPerKB float64
	if err := json.Unmarshal(raw, &btcPerKB); err != nil {
		return btcunit.SatPerVByte{}, fmt.Errorf(
			"decoding estimatefee result: %w", err)
	}

	if btcPerKB < 0 {
		return btcunit.SatPerVByte{}, fmt.Errorf("%w: server has "+
			"no estimate for %d blocks", ErrServerError,
			targetBlocks)
	}

	// BTC/kB to sat/vB: * 1e8 / 1000.
	return btcunit.NewSatPerVByteFromFloat(btcPerKB * 1e5)
}
