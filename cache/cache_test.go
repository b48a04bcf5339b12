// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/openassets/colorcore/protocol"
)

func testHash(seed byte) *chainhash.Hash {
	var hash chainhash.Hash
	hash[0] = seed
	return &hash
}

func testOutput(value int64, quantity uint64) *protocol.TransactionOutput {
	var id *protocol.AssetID
	typ := protocol.OutputUncolored
	if quantity > 0 {
		assetID := protocol.NewAssetID([]byte{0x51})
		id = &assetID
		typ = protocol.OutputTransfer
	}
	return protocol.NewTransactionOutput(btcutil.Amount(value),
		[]byte{0x76, 0xa9}, id, quantity, typ)
}

func TestSQLiteCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := NewSQLiteCache(":memory:")
	require.NoError(t, err)
	defer c.Close()

	// A miss returns nil with no error.
	output, err := c.Get(ctx, testHash(1), 0)
	require.NoError(t, err)
	require.Nil(t, output)

	colored := testOutput(600, 50)
	require.NoError(t, c.Put(ctx, testHash(1), 0, colored))

	// The open batch is visible to reads before Commit.
	output, err = c.Get(ctx, testHash(1), 0)
	require.NoError(t, err)
	require.True(t, colored.Equal(output))

	require.NoError(t, c.Commit(ctx))

	output, err = c.Get(ctx, testHash(1), 0)
	require.NoError(t, err)
	require.True(t, colored.Equal(output))

	// Uncolored outputs round-trip their nil asset ID.
	uncolored := testOutput(20000, 0)
	require.NoError(t, c.Put(ctx, testHash(1), 1, uncolored))
	require.NoError(t, c.Commit(ctx))

	output, err = c.Get(ctx, testHash(1), 1)
	require.NoError(t, err)
	require.Nil(t, output.AssetID)
	require.True(t, uncolored.Equal(output))
}

func TestSQLiteCachePutIdempotent(t *testing.T) {
	ctx := context.Background()
	c, err := NewSQLiteCache(":memory:")
	require.NoError(t, err)
	defer c.Close()

	first := testOutput(600, 50)
	require.NoError(t, c.Put(ctx, testHash(1), 0, first))
	require.NoError(t, c.Commit(ctx))

	// An output's color never changes; the second write is ignored.
	require.NoError(t, c.Put(ctx, testHash(1), 0, testOutput(999, 7)))
	require.NoError(t, c.Commit(ctx))

	output, err := c.Get(ctx, testHash(1), 0)
	require.NoError(t, err)
	require.True(t, first.Equal(output))
}

func TestSQLiteCachePersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "outputs.db")

	c, err := NewSQLiteCache(path)
	require.NoError(t, err)

	output := testOutput(600, 50)
	require.NoError(t, c.Put(ctx, testHash(7), 3, output))
	require.NoError(t, c.Commit(ctx))
	require.NoError(t, c.Close())

	reopened, err := NewSQLiteCache(path)
	require.NoError(t, err)
	defer reopened.Close()

	cached, err := reopened.Get(ctx, testHash(7), 3)
	require.NoError(t, err)
	require.True(t, output.Equal(cached))
}

// TestSQLiteCacheCloseDiscardsBatch checks that an uncommitted batch does
// not survive a close, keeping failed operations free of partial writes.
func TestSQLiteCacheCloseDiscardsBatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "outputs.db")

	c, err := NewSQLiteCache(path)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, testHash(1), 0, testOutput(600, 50)))
	require.NoError(t, c.Close())

	reopened, err := NewSQLiteCache(path)
	require.NoError(t, err)
	defer reopened.Close()

	output, err := reopened.Get(ctx, testHash(1), 0)
	require.NoError(t, err)
	require.Nil(t, output)
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	output, err := c.Get(ctx, testHash(1), 0)
	require.NoError(t, err)
	require.Nil(t, output)

	first := testOutput(600, 50)
	require.NoError(t, c.Put(ctx, testHash(1), 0, first))
	require.NoError(t, c.Put(ctx, testHash(1), 0, testOutput(999, 7)))
	require.NoError(t, c.Commit(ctx))

	cached, err := c.Get(ctx, testHash(1), 0)
	require.NoError(t, err)
	require.True(t, first.Equal(cached))
}

func TestLRUCache(t *testing.T) {
	ctx := context.Background()
	backing := NewMemoryCache()
	c, err := NewLRUCache(backing, 16)
	require.NoError(t, err)

	output := testOutput(600, 50)
	require.NoError(t, c.Put(ctx, testHash(1), 0, output))

	// Both layers hold the output.
	cached, err := c.Get(ctx, testHash(1), 0)
	require.NoError(t, err)
	require.True(t, output.Equal(cached))

	direct, err := backing.Get(ctx, testHash(1), 0)
	require.NoError(t, err)
	require.True(t, output.Equal(direct))

	// Entries written directly to the backing cache are promoted on read.
	other := testOutput(1200, 0)
	require.NoError(t, backing.Put(ctx, testHash(2), 1, other))
	cached, err = c.Get(ctx, testHash(2), 1)
	require.NoError(t, err)
	require.True(t, other.Equal(cached))
}
