// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	lru "github.com/hashicorp/golang-lru"

	"github.com/openassets/colorcore/protocol"
)

// DefaultLRUSize is the number of resolved outputs kept in memory by an
// LRUCache when no explicit size is configured.
const DefaultLRUSize = 65536

// LRUCache decorates another protocol.OutputCache with a bounded
// in-memory cache of resolved outputs, short-circuiting repeated reads of
// hot outpoints.  Writes pass through to the backing cache, which remains
// the source of truth and the target of Commit.
type LRUCache struct {
	backing protocol.OutputCache
	hot     *lru.Cache
}

var _ protocol.OutputCache = (*LRUCache)(nil)

type outPointKey struct {
	hash  chainhash.Hash
	index uint32
}

// NewLRUCache returns an LRUCache holding at most size entries in front of
// the backing cache.
func NewLRUCache(backing protocol.OutputCache, size int) (*LRUCache, error) {
	hot, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{backing: backing, hot: hot}, nil
}

// Get returns the cached output for the outpoint, consulting the in-memory
// layer before the backing cache.  Misses in the backing cache are not
// negatively cached.
func (c *LRUCache) Get(ctx context.Context, hash *chainhash.Hash,
	index uint32) (*protocol.TransactionOutput, error) {

	key := outPointKey{hash: *hash, index: index}
	if entry, ok := c.hot.Get(key); ok {
		return entry.(*protocol.TransactionOutput), nil
	}

	output, err := c.backing.Get(ctx, hash, index)
	if err != nil {
		return nil, err
	}
	if output != nil {
		c.hot.Add(key, output)
	}
	return output, nil
}

// Put stores the output in both layers.
func (c *LRUCache) Put(ctx context.Context, hash *chainhash.Hash,
	index uint32, output *protocol.TransactionOutput) error {

	if err := c.backing.Put(ctx, hash, index, output); err != nil {
		return err
	}
	c.hot.Add(outPointKey{hash: *hash, index: index}, output)
	return nil
}

// Commit commits the backing cache.
func (c *LRUCache) Commit(ctx context.Context) error {
	return c.backing.Commit(ctx)
}
