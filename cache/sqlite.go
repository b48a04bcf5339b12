// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	// Register the SQLite driver under name "sqlite".
	_ "modernc.org/sqlite"

	"github.com/openassets/colorcore/protocol"
)

// createTableStmt creates the outputs table.  An output's color never
// changes once resolved, so rows are insert-only and duplicate writes are
// ignored.
const createTableStmt = `
	CREATE TABLE IF NOT EXISTS outputs (
		tx_hash        BLOB    NOT NULL,
		output_index   INTEGER NOT NULL,
		value          INTEGER NOT NULL,
		pk_script      BLOB    NOT NULL,
		asset_id       BLOB,
		asset_quantity INTEGER NOT NULL,
		output_type    INTEGER NOT NULL,
		PRIMARY KEY (tx_hash, output_index)
	)`

// SQLiteCache is a durable protocol.OutputCache backed by a SQLite
// database.  Puts accumulate in an explicit transaction that is only made
// durable by Commit, so a failed operation leaves no partially written
// batch behind; reads observe the open batch.  The cache is safe for
// concurrent use by multiple in-flight resolutions.
type SQLiteCache struct {
	mu sync.Mutex
	db *sql.DB
	tx *sql.Tx
}

// A compile-time check to ensure that SQLiteCache satisfies the
// protocol.OutputCache interface.
var _ protocol.OutputCache = (*SQLiteCache)(nil)

// NewSQLiteCache opens (creating if necessary) the cache database at path.
// Use ":memory:" for a throwaway in-memory database.
func NewSQLiteCache(path string) (*SQLiteCache, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?mode=rwc"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// The explicit write transaction serializes access anyway, and a
	// single connection keeps the in-memory variant coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to create outputs table: %w",
			err)
	}
	return &SQLiteCache{db: db}, nil
}

// Get returns the cached output for the outpoint, or nil if the outpoint
// has not been resolved yet.
func (c *SQLiteCache) Get(ctx context.Context, hash *chainhash.Hash,
	index uint32) (*protocol.TransactionOutput, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	const query = `
		SELECT value, pk_script, asset_id, asset_quantity, output_type
		FROM outputs
		WHERE tx_hash = ? AND output_index = ?`

	var row *sql.Row
	if c.tx != nil {
		row = c.tx.QueryRowContext(ctx, query, hash[:], index)
	} else {
		row = c.db.QueryRowContext(ctx, query, hash[:], index)
	}

	var (
		value      int64
		pkScript   []byte
		assetID    []byte
		quantity   int64
		outputType int64
	)
	err := row.Scan(&value, &pkScript, &assetID, &quantity, &outputType)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, err
	}

	var id *protocol.AssetID
	if assetID != nil {
		parsed, err := protocol.NewAssetIDFromBytes(assetID)
		if err != nil {
			return nil, fmt.Errorf("corrupt cache entry for "+
				"%v:%d: %w", hash, index, err)
		}
		id = &parsed
	}

	return protocol.NewTransactionOutput(btcutil.Amount(value), pkScript,
		id, uint64(quantity), protocol.OutputType(outputType)), nil
}

// Put buffers a resolved output into the open batch, starting one if
// needed.  Writing the same outpoint twice is a no-op.
func (c *SQLiteCache) Put(ctx context.Context, hash *chainhash.Hash,
	index uint32, output *protocol.TransactionOutput) error {

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tx == nil {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		c.tx = tx
	}

	var assetID []byte
	if output.AssetID != nil {
		assetID = output.AssetID[:]
	}

	_, err := c.tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO outputs
			(tx_hash, output_index, value, pk_script, asset_id,
			 asset_quantity, output_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		hash[:], index, int64(output.Value), output.PkScript, assetID,
		int64(output.AssetQuantity), int64(output.Type))
	return err
}

// Commit makes the open batch durable.  Committing with no open batch is a
// no-op.
func (c *SQLiteCache) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tx == nil {
		return nil
	}
	err := c.tx.Commit()
	c.tx = nil
	if err != nil {
		return err
	}

	log.Tracef("Committed output cache batch")
	return nil
}

// Close discards any uncommitted batch and closes the database.
func (c *SQLiteCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tx != nil {
		if err := c.tx.Rollback(); err != nil {
			log.Warnf("Unable to roll back output cache batch: %v",
				err)
		}
		c.tx = nil
	}
	return c.db.Close()
}
