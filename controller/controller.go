// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package controller glues the coloring engine, the transaction builder and
// a blockchain provider together into the operations exposed over RPC and
// on the command line.
package controller

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/sync/errgroup"

	"github.com/openassets/colorcore/address"
	"github.com/openassets/colorcore/chain"
	"github.com/openassets/colorcore/netparams"
	"github.com/openassets/colorcore/protocol"
	"github.com/openassets/colorcore/txbuilder"
)

const (
	// resolveConcurrency bounds the number of unspent outputs resolved
	// in parallel against the blockchain provider.
	resolveConcurrency = 16

	// maxConfDefault is the upper confirmation bound used when the
	// caller does not restrict it, matching the bitcoind default.
	maxConfDefault = 9999999
)

// Mode selects how far a build operation takes the transaction.
type Mode string

const (
	// ModeUnsigned returns the constructed transaction with empty input
	// scripts.
	ModeUnsigned Mode = "unsigned"

	// ModeSigned signs the transaction through the provider wallet but
	// does not broadcast it.
	ModeSigned Mode = "signed"

	// ModeBroadcast signs and broadcasts the transaction.
	ModeBroadcast Mode = "broadcast"
)

// ParseMode converts the string form used by the RPC and CLI surfaces,
// defaulting to ModeBroadcast for an empty string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeBroadcast, nil
	case ModeUnsigned, ModeSigned, ModeBroadcast:
		return Mode(s), nil
	}
	return "", usageErrorf("invalid mode %q: must be one of unsigned, "+
		"signed or broadcast", s)
}

// UsageError describes a request that is malformed or inconsistent, as
// opposed to an operational failure.  The RPC layer maps it to a client
// error status.
type UsageError string

// Error satisfies the error interface.
func (e UsageError) Error() string { return string(e) }

func usageErrorf(format string, args ...interface{}) UsageError {
	return UsageError(fmt.Sprintf(format, args...))
}

// TransactionResult is the outcome of a build operation.  Tx is always the
// final form of the transaction; Hash is only set once the transaction has
// been broadcast.
type TransactionResult struct {
	Tx   *wire.MsgTx
	Hash *chainhash.Hash
}

// Controller implements the user-facing operations.  It is safe for
// concurrent use: all state lives in the provider, the cache and the
// network parameters, none of which it mutates outside their own locks.
type Controller struct {
	params   *netparams.Params
	provider chain.Provider
	engine   *protocol.ColoringEngine
	cache    protocol.OutputCache
	builder  *txbuilder.Builder
}

// New creates a controller operating against the given provider and output
// cache.
func New(params *netparams.Params, provider chain.Provider,
	cache protocol.OutputCache) *Controller {

	return &Controller{
		params:   params,
		provider: provider,
		engine:   protocol.NewColoringEngine(provider, cache),
		cache:    cache,
		builder:  txbuilder.NewBuilder(params.DustLimit),
	}
}

// feeOrDefault substitutes the network default for an unspecified fee.
func (c *Controller) feeOrDefault(fee btcutil.Amount) btcutil.Amount {
	if fee < 0 {
		return c.params.DefaultFee
	}
	return fee
}

// parseAddresses converts the optional address argument into the slice
// passed to the provider.  An empty string queries the backend wallet's own
// addresses.
func (c *Controller) parseAddresses(addr string) ([]btcutil.Address, error) {
	if addr == "" {
		return nil, nil
	}
	decoded, _, err := address.DecodeAddress(addr, c.params)
	if err != nil {
		return nil, usageErrorf("invalid address %q: %v", addr, err)
	}
	return []btcutil.Address{decoded}, nil
}

// scriptFor returns the output script paying to the given address string.
func (c *Controller) scriptFor(addr string) ([]byte, error) {
	decoded, _, err := address.DecodeAddress(addr, c.params)
	if err != nil {
		return nil, usageErrorf("invalid address %q: %v", addr, err)
	}
	return address.PayToAddrScript(decoded)
}

// resolveUnspents lists the unspent outputs for the addresses and resolves
// the color of each through the engine.  Resolution runs concurrently but
// the returned slice preserves the provider's ordering, which input
// selection depends on.  Newly computed colors are committed to the cache
// in one batch before returning.
func (c *Controller) resolveUnspents(ctx context.Context,
	addrs []btcutil.Address, minConf,
	maxConf int) ([]*txbuilder.SpendableOutput, error) {

	unspents, err := c.provider.ListUnspent(ctx, addrs, minConf, maxConf)
	if err != nil {
		return nil, err
	}

	resolved := make([]*txbuilder.SpendableOutput, len(unspents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, unspent := range unspents {
		i, unspent := i, unspent
		g.Go(func() error {
			output, err := c.engine.GetOutput(gctx,
				&unspent.OutPoint.Hash, unspent.OutPoint.Index)
			if err != nil {
				return fmt.Errorf("unable to resolve %v: %w",
					unspent.OutPoint, err)
			}
			resolved[i] = &txbuilder.SpendableOutput{
				OutPoint:      unspent.OutPoint,
				Output:        output,
				Confirmations: unspent.Confirmations,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := c.cache.Commit(ctx); err != nil {
		return nil, fmt.Errorf("unable to commit output cache: %w",
			err)
	}

	log.Debugf("Resolved %d unspent outputs for %d addresses",
		len(resolved), len(addrs))
	return resolved, nil
}

// completeTransaction carries a constructed transaction through the
// requested mode: returned as-is, signed, or signed and broadcast.
func (c *Controller) completeTransaction(ctx context.Context,
	tx *wire.MsgTx, mode Mode) (*TransactionResult, error) {

	if mode == ModeUnsigned {
		return &TransactionResult{Tx: tx}, nil
	}

	signed, complete, err := c.provider.SignTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("unable to sign transaction: %w", err)
	}
	if !complete {
		return nil, usageErrorf("transaction could not be fully " +
			"signed: the provider wallet is missing keys for one " +
			"or more inputs")
	}
	if mode == ModeSigned {
		return &TransactionResult{Tx: signed}, nil
	}

	hash, err := c.provider.SendTransaction(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("unable to broadcast transaction: %w",
			err)
	}
	log.Infof("Broadcast transaction %v", hash)
	return &TransactionResult{Tx: signed, Hash: hash}, nil
}
