// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
)

// BitcoindProvider is a Provider backed by the wallet-enabled JSON-RPC
// interface of a bitcoind (or btcd) node.  It supports the full interface
// including signing and broadcasting.
type BitcoindProvider struct {
	client *rpcclient.Client
}

// A compile-time check to ensure that BitcoindProvider satisfies the
// chain.Provider interface.
var _ Provider = (*BitcoindProvider)(nil)

// NewBitcoindProvider creates a provider speaking JSON-RPC over HTTP POST to
// the node at connect.
func NewBitcoindProvider(connect, user, pass string) (*BitcoindProvider,
	error) {

	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         connect,
		User:         user,
		Pass:         pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return nil, err
	}
	return &BitcoindProvider{client: client}, nil
}

// Shutdown terminates the underlying RPC client.
func (p *BitcoindProvider) Shutdown() {
	p.client.Shutdown()
}

// ListUnspent returns the node wallet's unspent outputs, optionally filtered
// by address.
func (p *BitcoindProvider) ListUnspent(ctx context.Context,
	addrs []btcutil.Address, minConf, maxConf int) ([]*Unspent, error) {

	var (
		results []btcjson.ListUnspentResult
		err     error
	)
	if addrs == nil {
		results, err = p.client.ListUnspentMinMax(minConf, maxConf)
	} else {
		results, err = p.client.ListUnspentMinMaxAddresses(
			minConf, maxConf, addrs)
	}
	if err != nil {
		return nil, err
	}

	unspents := make([]*Unspent, 0, len(results))
	for _, result := range results {
		txHash, err := chainhash.NewHashFromStr(result.TxID)
		if err != nil {
			return nil, fmt.Errorf("invalid txid %q from "+
				"listunspent: %w", result.TxID, err)
		}
		unspents = append(unspents, &Unspent{
			OutPoint:      *wire.NewOutPoint(txHash, result.Vout),
			Confirmations: result.Confirmations,
		})
	}

	log.Tracef("listunspent returned %d outputs", len(unspents))
	return unspents, nil
}

// GetTransaction fetches a raw transaction from the node.  Lookups of
// unknown transactions fail with ErrTransactionNotFound.
func (p *BitcoindProvider) GetTransaction(ctx context.Context,
	hash *chainhash.Hash) (*wire.MsgTx, error) {

	tx, err := p.client.GetRawTransaction(hash)
	if err != nil {
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) &&
			rpcErr.Code == btcjson.ErrRPCNoTxInfo {

			return nil, fmt.Errorf("%w: %v",
				ErrTransactionNotFound, hash)
		}
		return nil, err
	}
	return tx.MsgTx(), nil
}

// SignTransaction asks the node wallet to sign the transaction.
func (p *BitcoindProvider) SignTransaction(ctx context.Context,
	tx *wire.MsgTx) (*wire.MsgTx, bool, error) {

	signed, complete, err := p.client.SignRawTransactionWithWallet(tx)
	if err != nil {
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) &&
			rpcErr.Code == btcjson.ErrRPCMethodNotFound.Code {

			return nil, false, ErrNotSupported
		}
		return nil, false, err
	}
	return signed, complete, nil
}

// SendTransaction broadcasts the transaction through the node.
func (p *BitcoindProvider) SendTransaction(ctx context.Context,
	tx *wire.MsgTx) (*chainhash.Hash, error) {

	hash, err := p.client.SendRawTransaction(tx, false)
	if err != nil {
		return nil, err
	}
	log.Debugf("Broadcast transaction %v", hash)
	return hash, nil
}
