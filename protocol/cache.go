// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package protocol

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// OutputCache durably memoizes resolved outputs keyed by outpoint.  An
// output's color is a pure function of immutable chain data, so entries are
// immutable once written: Put ignores duplicate keys and entries are never
// invalidated.
//
// Implementations must support concurrent Get and Put calls from multiple
// in-flight resolutions.  Writes may be buffered; Commit is the single
// explicit synchronization point making a batch durable and is invoked once
// at the end of each high-level operation.  The engine never assumes
// autocommit.
type OutputCache interface {
	// Get returns the cached output for the outpoint, or nil if the
	// outpoint has not been resolved yet.
	Get(ctx context.Context, hash *chainhash.Hash,
		index uint32) (*TransactionOutput, error)

	// Put stores a resolved output.  Storing the same outpoint twice is a
	// no-op.
	Put(ctx context.Context, hash *chainhash.Hash, index uint32,
		output *TransactionOutput) error

	// Commit flushes buffered writes durably.
	Commit(ctx context.Context) error
}
