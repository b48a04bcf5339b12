// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package protocol

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// TransactionSource supplies raw transactions by hash.  It is typically
// backed by a chain.Provider; lookups of unknown transactions must fail with
// an error the caller can distinguish from a successful "uncolored" outcome.
type TransactionSource interface {
	GetTransaction(ctx context.Context,
		hash *chainhash.Hash) (*wire.MsgTx, error)
}

// ColoringEngine resolves the asset color of transaction outputs by
// replaying the Open Assets coloring algorithm over the transaction graph.
// Resolving one output requires coloring every output of the owning
// transaction together, since the marker output assigns quantities to the
// sibling outputs collectively, and may require coloring ancestor
// transactions first to learn the color of the inputs.
//
// Ancestors are walked with an explicit stack rather than recursion so deep
// input chains cannot exhaust the goroutine stack, and every colored
// transaction is memoized through the output cache, which both bounds the
// walk and guarantees termination on any acyclic graph.
type ColoringEngine struct {
	source TransactionSource
	cache  OutputCache
}

// NewColoringEngine creates a coloring engine backed by the given
// transaction source and output cache.
func NewColoringEngine(source TransactionSource,
	cache OutputCache) *ColoringEngine {

	return &ColoringEngine{
		source: source,
		cache:  cache,
	}
}

// GetOutput returns the resolved descriptor for a single output.  Newly
// colored outputs are written to the cache in per-transaction batches; the
// caller remains responsible for committing the cache at the end of the
// high-level operation.
func (e *ColoringEngine) GetOutput(ctx context.Context, hash *chainhash.Hash,
	index uint32) (*TransactionOutput, error) {

	output, err := e.cache.Get(ctx, hash, index)
	if err != nil {
		return nil, err
	}
	if output != nil {
		return output, nil
	}

	outputs, err := e.colorTransaction(ctx, hash)
	if err != nil {
		return nil, err
	}
	if index >= uint32(len(outputs)) {
		return nil, fmt.Errorf("transaction %v has %d outputs, no "+
			"output %d", hash, len(outputs), index)
	}
	return outputs[index], nil
}

// txFrame is one entry of the coloring worklist.
type txFrame struct {
	hash chainhash.Hash

	// tx and the marker scan results are populated on the first visit so
	// a revisit after dependency resolution does not refetch.
	tx          *wire.MsgTx
	marker      *MarkerOutput
	markerIndex int

	// depsPushed records that the frame's ancestors were already pushed
	// once.  A second visit with unresolved inputs indicates a reference
	// cycle, which cannot occur in well-formed chain data.
	depsPushed bool
}

// colorTransaction colors every output of the transaction identified by hash,
// walking uncolored ancestors iteratively, and returns the ordered output
// descriptors.
func (e *ColoringEngine) colorTransaction(ctx context.Context,
	hash *chainhash.Hash) ([]*TransactionOutput, error) {

	// colored memoizes every transaction fully colored during this call,
	// complementing the shared cache.
	colored := make(map[chainhash.Hash][]*TransactionOutput)

	stack := []*txFrame{{hash: *hash}}
	for len(stack) > 0 {
		frame := stack[len(stack)-1]

		if _, done := colored[frame.hash]; done {
			stack = stack[:len(stack)-1]
			continue
		}

		if frame.tx == nil {
			tx, err := e.source.GetTransaction(ctx, &frame.hash)
			if err != nil {
				return nil, err
			}
			frame.tx = tx
			frame.marker, frame.markerIndex = scanMarker(tx)
		}

		// Only a transaction with a valid marker needs the color of
		// its inputs.  Everything else colors immediately.
		var inputs []*TransactionOutput
		if frame.marker != nil {
			var (
				missing []chainhash.Hash
				err     error
			)
			inputs, missing, err = e.lookupInputs(ctx, frame.tx,
				colored)
			if err != nil {
				return nil, err
			}

			if len(missing) > 0 {
				if frame.depsPushed {
					return nil, fmt.Errorf("transaction "+
						"%v references unresolvable "+
						"ancestors", frame.hash)
				}
				frame.depsPushed = true
				for i := range missing {
					stack = append(stack, &txFrame{
						hash: missing[i],
					})
				}
				continue
			}
		}

		outputs := colorOutputs(frame.tx, frame.marker,
			frame.markerIndex, inputs)
		colored[frame.hash] = outputs

		for i, output := range outputs {
			err := e.cache.Put(ctx, &frame.hash, uint32(i), output)
			if err != nil {
				return nil, err
			}
		}
		log.Debugf("Colored transaction %v (%d outputs, marker at %d)",
			frame.hash, len(outputs), frame.markerIndex)

		stack = stack[:len(stack)-1]
	}

	return colored[*hash], nil
}

// lookupInputs gathers the resolved descriptor of every outpoint spent by tx
// from the local memo and the cache, in input order.  The hashes of
// transactions that still need coloring are returned deduplicated; when any
// are missing the returned input slice must not be used.
func (e *ColoringEngine) lookupInputs(ctx context.Context, tx *wire.MsgTx,
	colored map[chainhash.Hash][]*TransactionOutput) ([]*TransactionOutput,
	[]chainhash.Hash, error) {

	inputs := make([]*TransactionOutput, 0, len(tx.TxIn))
	var missing []chainhash.Hash
	seen := make(map[chainhash.Hash]struct{})

	for _, txIn := range tx.TxIn {
		prev := txIn.PreviousOutPoint

		if outputs, ok := colored[prev.Hash]; ok {
			if prev.Index < uint32(len(outputs)) {
				inputs = append(inputs, outputs[prev.Index])
				continue
			}
		}

		output, err := e.cache.Get(ctx, &prev.Hash, prev.Index)
		if err != nil {
			return nil, nil, err
		}
		if output != nil {
			inputs = append(inputs, output)
			continue
		}

		if _, ok := seen[prev.Hash]; !ok {
			seen[prev.Hash] = struct{}{}
			missing = append(missing, prev.Hash)
		}
	}

	return inputs, missing, nil
}

// scanMarker locates the transaction's marker output.  The first output
// whose script is an OP_RETURN push carrying the Open Assets tag decides:
// a parsable payload yields the marker and its index, an unparsable one
// voids the coloring of the whole transaction (marker nil, index set).
// Transactions without any marker candidate return (nil, -1).
func scanMarker(tx *wire.MsgTx) (*MarkerOutput, int) {
	for i, txOut := range tx.TxOut {
		payload, ok := ParseMarkerScript(txOut.PkScript)
		if !ok {
			continue
		}

		marker, err := ParseMarkerPayload(payload)
		if err != nil {
			log.Debugf("Transaction %v output %d: %v",
				tx.TxHash(), i, err)
			return nil, i
		}
		return marker, i
	}
	return nil, -1
}

// colorOutputs applies the coloring rules to every output of tx.  marker is
// the valid marker output at markerIndex, or nil when the transaction has
// none; markerIndex >= 0 with a nil marker marks an invalid marker output.
// inputs holds the resolved previous outputs in input order and is only
// consulted when a valid marker exists.
func colorOutputs(tx *wire.MsgTx, marker *MarkerOutput, markerIndex int,
	inputs []*TransactionOutput) []*TransactionOutput {

	outputs := make([]*TransactionOutput, 0, len(tx.TxOut))

	if marker == nil {
		// No valid marker: every output is uncolored, except that a
		// malformed marker candidate is tagged so callers can tell it
		// apart from ordinary outputs.
		for i, txOut := range tx.TxOut {
			typ := OutputUncolored
			if i == markerIndex {
				typ = OutputInvalidMarker
			}
			outputs = append(outputs, NewTransactionOutput(
				btcutil.Amount(txOut.Value), txOut.PkScript, nil, 0,
				typ))
		}
		return outputs
	}

	// The issuance asset ID is derived from the previous output script of
	// the transaction's first input.  A transaction with no inputs has no
	// issuing input, so its issuance candidates stay uncolored.
	var issuanceID *AssetID
	if len(inputs) > 0 {
		id := NewAssetID(inputs[0].PkScript)
		issuanceID = &id
	}

	// The quantity list is one flat sequence spanning issuance and
	// transfer outputs in output order, skipping the marker itself.
	// Entries beyond the end of the list read as zero; excess entries are
	// ignored.
	quantityAt := func(outIndex int) uint64 {
		listIndex := outIndex
		if outIndex > markerIndex {
			listIndex--
		}
		if listIndex < len(marker.AssetQuantities) {
			return marker.AssetQuantities[listIndex]
		}
		return 0
	}

	// Outputs before the marker are issuance candidates.
	for i := 0; i < markerIndex; i++ {
		txOut := tx.TxOut[i]
		quantity := quantityAt(i)
		if quantity > 0 && issuanceID != nil {
			outputs = append(outputs, NewTransactionOutput(
				btcutil.Amount(txOut.Value), txOut.PkScript,
				issuanceID, quantity, OutputIssuance))
			continue
		}
		outputs = append(outputs, NewTransactionOutput(
			btcutil.Amount(txOut.Value), txOut.PkScript, nil, 0,
			OutputUncolored))
	}

	markerOut := tx.TxOut[markerIndex]
	outputs = append(outputs, NewTransactionOutput(
		btcutil.Amount(markerOut.Value), markerOut.PkScript, nil, 0,
		OutputMarker))

	// Outputs after the marker transfer existing color, consuming the
	// colored input quantities strictly left to right.  The ordering is a
	// protocol contract: every validator must reproduce the same
	// allocation bit for bit.
	alloc := newAssetAllocator(inputs)
	for i := markerIndex + 1; i < len(tx.TxOut); i++ {
		txOut := tx.TxOut[i]
		quantity := quantityAt(i)
		if quantity == 0 {
			outputs = append(outputs, NewTransactionOutput(
				btcutil.Amount(txOut.Value), txOut.PkScript, nil, 0,
				OutputUncolored))
			continue
		}

		assetID, ok := alloc.take(quantity)
		if !ok {
			// Inputs exhausted or mixed across assets: the
			// malformed transfer voids this output's color.
			outputs = append(outputs, NewTransactionOutput(
				btcutil.Amount(txOut.Value), txOut.PkScript, nil, 0,
				OutputUncolored))
			continue
		}
		outputs = append(outputs, NewTransactionOutput(
			btcutil.Amount(txOut.Value), txOut.PkScript, assetID,
			quantity, OutputTransfer))
	}

	return outputs
}

// assetAllocator consumes colored input quantities left to right, skipping
// uncolored inputs.
type assetAllocator struct {
	inputs    []*TransactionOutput
	pos       int
	unitsLeft uint64
}

func newAssetAllocator(inputs []*TransactionOutput) *assetAllocator {
	return &assetAllocator{inputs: inputs, pos: -1}
}

// take consumes quantity units from the colored inputs and returns the asset
// ID owning them.  It fails when the inputs run out of units or the consumed
// units span more than one asset ID; consumed units stay consumed either
// way.
func (a *assetAllocator) take(quantity uint64) (*AssetID, bool) {
	var assetID *AssetID

	remaining := quantity
	for remaining > 0 {
		for a.unitsLeft == 0 {
			a.pos++
			if a.pos >= len(a.inputs) {
				return nil, false
			}
			input := a.inputs[a.pos]
			if input.AssetID != nil && input.AssetQuantity > 0 {
				a.unitsLeft = input.AssetQuantity
			}
		}

		current := a.inputs[a.pos].AssetID
		if assetID == nil {
			assetID = current
		} else if *assetID != *current {
			return nil, false
		}

		take := remaining
		if take > a.unitsLeft {
			take = a.unitsLeft
		}
		remaining -= take
		a.unitsLeft -= take
	}

	return assetID, true
}
