// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"context"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/openassets/colorcore/protocol"
)

// MemoryCache is an unbounded in-memory protocol.OutputCache.  It is
// intended for tests and for running without a cache file, where losing
// resolved outputs on shutdown is acceptable.
type MemoryCache struct {
	mu      sync.RWMutex
	outputs map[outPointKey]*protocol.TransactionOutput
}

var _ protocol.OutputCache = (*MemoryCache)(nil)

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		outputs: make(map[outPointKey]*protocol.TransactionOutput),
	}
}

// Get returns the cached output for the outpoint, or nil if the outpoint
// has not been resolved yet.
func (c *MemoryCache) Get(_ context.Context, hash *chainhash.Hash,
	index uint32) (*protocol.TransactionOutput, error) {

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.outputs[outPointKey{hash: *hash, index: index}], nil
}

// Put stores the output.  Writing the same outpoint twice is a no-op.
func (c *MemoryCache) Put(_ context.Context, hash *chainhash.Hash,
	index uint32, output *protocol.TransactionOutput) error {

	c.mu.Lock()
	defer c.mu.Unlock()

	key := outPointKey{hash: *hash, index: index}
	if _, ok := c.outputs[key]; !ok {
		c.outputs[key] = output
	}
	return nil
}

// Commit is a no-op as every Put is immediately visible.
func (c *MemoryCache) Commit(context.Context) error {
	return nil
}
