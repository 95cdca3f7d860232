// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btclog"
	flags "github.com/jessevdk/go-flags"

	"github.com/btcsuite/txbuilder/builder"
	"github.com/btcsuite/txbuilder/chain"
	"github.com/btcsuite/txbuilder/pkg/btcunit"
	"github.com/btcsuite/txbuilder/pkscript"
	"github.com/btcsuite/txbuilder/wallet"
)

// feeEstimateTarget is the confirmation target, in blocks, used when no
// fee rate was given on the command line.
const feeEstimateTarget = 2

// setUpLogging wires the package loggers to a stdout backend at the
// requested level.
func setUpLogging(debugLevel string) {
	backend := btclog.NewBackend(os.Stdout)

	bldr := backend.Logger("BLDR")
	chio := backend.Logger("CHIO")

	level, _ := btclog.LevelFromString(debugLevel)
	bldr.SetLevel(level)
	chio.SetLevel(level)

	builder.UseLogger(bldr)
	chain.UseLogger(chio)
}

func main() {
	if err := run(); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		fmt.Fprintf(os.Stderr, "txbuilder: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	setUpLogging(cfg.DebugLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	record, err := wallet.LoadRecord(cfg.WalletFile)
	if err != nil {
		return err
	}

	script, keys, params, err := record.Resolve()
	if err != nil {
		return err
	}

	if cfg.Network != "" && cfg.Network != params.Name {
		return fmt.Errorf("wallet record is for %s, command line "+
			"expects %s", params.Name, cfg.Network)
	}

	client := chain.NewClient(chain.ClientConfig{
		Host:   cfg.ElectrumHost,
		Port:   cfg.ElectrumPort,
		UseTLS: cfg.ElectrumTLS,
	})

	printBalance(ctx, client, script)

	feeRate, err := resolveFeeRate(ctx, cfg, client)
	if err != nil {
		return err
	}

	spender, err := builder.NewBuilder(builder.Config{
		ChainParams: params,
		FeeRate:     feeRate,
	}, client, script, keys)
	if err != nil {
		return err
	}

	intent := builder.Intent{
		RecipientAddress: cfg.Recipient,
		Amount:           btcutil.Amount(cfg.Amount),
	}
	if cfg.Message != "" {
		intent.Message = []byte(cfg.Message)
	}

	result, err := spender.Spend(ctx, intent)
	if err != nil {
		return err
	}

	fmt.Printf("network:   %s\n", params.Name)
	fmt.Printf("wallet:    %s (%s)\n", record.Address, script)
	fmt.Printf("recipient: %s\n", cfg.Recipient)
	fmt.Printf("amount:    %d sat\n", cfg.Amount)
	fmt.Printf("fee:       %d sat (requested rate %s)\n",
		result.Fee, feeRate)
	fmt.Printf("vsize:     %d vbytes (weight %d)\n", result.VSize,
		result.Weight)
	fmt.Printf("change:    %d sat\n", result.Change)
	fmt.Printf("txid:      %s\n", result.TxID)
	fmt.Printf("rawtx:     %s\n", result.RawTx)

	if !cfg.Broadcast {
		fmt.Println("not broadcast; re-run with --broadcast to relay")
		return nil
	}

	txid, err := client.Broadcast(ctx, result.RawTx)
	if err != nil {
		return fmt.Errorf("broadcast failed: %w", err)
	}

	fmt.Printf("broadcast: %s\n", txid)

	return nil
}

// printBalance reports the wallet's indexed balance before spending. The
// balance is informational only, so a failed query is logged and skipped
// rather than aborting the spend.
func printBalance(ctx context.Context, client *chain.Client,
	script pkscript.ScriptType) {

	scriptHash, err := pkscript.ElectrumScriptHash(script)
	if err != nil {
		return
	}

	balance, err := client.GetBalance(ctx, scriptHash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "balance unavailable: %v\n", err)
		return
	}

	fmt.Printf("balance:   %d sat confirmed, %d sat unconfirmed\n",
		balance.Confirmed, balance.Unconfirmed)
}

// resolveFeeRate uses the command line rate when given, otherwise asks the
// electrum server and falls back to 1 sat/vB when it has no estimate.
func resolveFeeRate(ctx context.Context, cfg *config,
	client *chain.Client) (btcunit.SatPerVByte, error) {

	if cfg.FeeRate > 0 {
		return btcunit.NewSatPerVByteFromFloat(cfg.FeeRate)
	}

	rate, err := client.EstimateFeeRate(ctx, feeEstimateTarget)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fee estimate unavailable (%v), "+
			"using 1 sat/vB\n", err)
		return btcunit.NewSatPerVByte(1), nil
	}

	return rate, nil
}
