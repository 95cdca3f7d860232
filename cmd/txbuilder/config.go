// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"

	flags "github.com/jessevdk/go-flags"
)

// config holds the command line options of the spend command.
type config struct {
	WalletFile string `long:"wallet" short:"w" description:"Path to the wallet record JSON file" required:"true"`

	Network string `long:"network" description:"Expected network; rejected if the wallet record disagrees" choice:"mainnet" choice:"testnet3" choice:"regtest"`

	Recipient string `long:"recipient" short:"r" description:"Destination address" required:"true"`

	Amount int64 `long:"amount" short:"a" description:"Amount to send, in satoshis" required:"true"`

	FeeRate float64 `long:"feerate" description:"Fee rate in sat/vB; 0 asks the electrum server for an estimate"`

	Message string `long:"message" short:"m" description:"Optional OP_RETURN message, truncated to 80 bytes"`

	ElectrumHost string `long:"electrum.host" description:"Electrum server host" default:"127.0.0.1"`

	ElectrumPort uint16 `long:"electrum.port" description:"Electrum server port" default:"50001"`

	ElectrumTLS bool `long:"electrum.tls" description:"Connect to the electrum server over TLS"`

	Broadcast bool `long:"broadcast" description:"Broadcast the signed transaction instead of only printing it"`

	DebugLevel string `long:"debuglevel" short:"d" description:"Logging level" default:"info" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" choice:"critical" choice:"off"`
}

// loadConfig parses the command line and validates option values.
func loadConfig() (*config, error) {
	cfg := &config{}
	if _, err := flags.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.Amount <= 0 {
		return nil, errors.New("amount must be a positive satoshi " +
			"value")
	}
	if cfg.FeeRate < 0 {
		return nil, errors.New("feerate must be >= 0")
	}

	return cfg, nil
}
