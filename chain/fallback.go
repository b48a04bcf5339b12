// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// FallbackProvider composes a fast read-only primary (typically an
// ExplorerProvider) with a wallet-capable secondary.  Reads go to the
// primary; signing, broadcasting and wallet-scoped unspent queries are
// delegated to the wallet.
type FallbackProvider struct {
	primary Provider
	wallet  Provider
}

// A compile-time check to ensure that FallbackProvider satisfies the
// chain.Provider interface.
var _ Provider = (*FallbackProvider)(nil)

// NewFallbackProvider composes the two providers.
func NewFallbackProvider(primary, wallet Provider) *FallbackProvider {
	return &FallbackProvider{primary: primary, wallet: wallet}
}

// ListUnspent queries the primary for explicit addresses and the wallet for
// nil address slices.
func (p *FallbackProvider) ListUnspent(ctx context.Context,
	addrs []btcutil.Address, minConf, maxConf int) ([]*Unspent, error) {

	if addrs == nil {
		return p.wallet.ListUnspent(ctx, addrs, minConf, maxConf)
	}
	return p.primary.ListUnspent(ctx, addrs, minConf, maxConf)
}

// GetTransaction fetches from the primary.
func (p *FallbackProvider) GetTransaction(ctx context.Context,
	hash *chainhash.Hash) (*wire.MsgTx, error) {

	return p.primary.GetTransaction(ctx, hash)
}

// SignTransaction delegates to the wallet.
func (p *FallbackProvider) SignTransaction(ctx context.Context,
	tx *wire.MsgTx) (*wire.MsgTx, bool, error) {

	return p.wallet.SignTransaction(ctx, tx)
}

// SendTransaction delegates to the wallet.
func (p *FallbackProvider) SendTransaction(ctx context.Context,
	tx *wire.MsgTx) (*chainhash.Hash, error) {

	return p.wallet.SendTransaction(ctx, tx)
}
