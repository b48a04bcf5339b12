// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

var (
	// ErrTransactionNotFound describes a lookup of a transaction the
	// backend has no knowledge of.  It is a distinct outcome from a
	// transaction that resolves as uncolored and must propagate to the
	// caller unchanged.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrNotSupported describes an operation the backend cannot perform,
	// such as signing through a read-only chain indexer.
	ErrNotSupported = errors.New("operation not supported by this " +
		"blockchain provider")
)

// Unspent pairs an unspent outpoint with its confirmation count as reported
// by the backend.
type Unspent struct {
	OutPoint      wire.OutPoint
	Confirmations int64
}

// Provider allows more than one backing blockchain source, such as a
// bitcoind RPC server or a REST block explorer, as long as we write a driver
// for it.  Implementations own their retry and timeout policy; the core
// performs no retries and surfaces provider failures unchanged.
type Provider interface {
	// ListUnspent returns the unspent outputs paying to any of the given
	// addresses with a confirmation count inside [minConf, maxConf].  A
	// nil address slice queries the backend wallet's own addresses;
	// backends without a wallet fail with ErrNotSupported.
	ListUnspent(ctx context.Context, addrs []btcutil.Address,
		minConf, maxConf int) ([]*Unspent, error)

	// GetTransaction returns the raw transaction with the given hash, or
	// ErrTransactionNotFound.
	GetTransaction(ctx context.Context,
		hash *chainhash.Hash) (*wire.MsgTx, error)

	// SignTransaction signs the transaction's inputs with the backend
	// wallet's keys.  The boolean reports whether every input could be
	// signed.  Read-only backends fail with ErrNotSupported.
	SignTransaction(ctx context.Context,
		tx *wire.MsgTx) (*wire.MsgTx, bool, error)

	// SendTransaction broadcasts the transaction to the network and
	// returns its hash.  Read-only backends fail with ErrNotSupported.
	SendTransaction(ctx context.Context,
		tx *wire.MsgTx) (*chainhash.Hash, error)
}
