// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txbuilder

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/openassets/colorcore/protocol"
)

const (
	testDustLimit btcutil.Amount = 600
	testFee       btcutil.Amount = 10000
)

var (
	toScript      = []byte{0x51}
	changeScript  = []byte{0x52}
	forwardScript = []byte{0x53}
)

// testOutPoint derives a unique outpoint from a seed.
func testOutPoint(seed byte) wire.OutPoint {
	var hash chainhash.Hash
	hash[0] = seed
	return wire.OutPoint{Hash: hash, Index: uint32(seed)}
}

func uncoloredOutput(seed byte, value btcutil.Amount) *SpendableOutput {
	return &SpendableOutput{
		OutPoint: testOutPoint(seed),
		Output: protocol.NewTransactionOutput(value, []byte{0x54},
			nil, 0, protocol.OutputUncolored),
	}
}

func coloredOutput(seed byte, value btcutil.Amount, assetID protocol.AssetID,
	quantity uint64) *SpendableOutput {

	return &SpendableOutput{
		OutPoint: testOutPoint(seed),
		Output: protocol.NewTransactionOutput(value, []byte{0x54},
			&assetID, quantity, protocol.OutputTransfer),
	}
}

// parseMarker extracts and decodes the marker output of a built transaction.
func parseMarker(t *testing.T, txOut *wire.TxOut) *protocol.MarkerOutput {
	t.Helper()
	payload, ok := protocol.ParseMarkerScript(txOut.PkScript)
	require.True(t, ok, "output is not a marker")
	marker, err := protocol.ParseMarkerPayload(payload)
	require.NoError(t, err)
	return marker
}

// outputSum returns the total satoshis assigned to the transaction outputs.
func outputSum(tx *wire.MsgTx) btcutil.Amount {
	var sum btcutil.Amount
	for _, txOut := range tx.TxOut {
		sum += btcutil.Amount(txOut.Value)
	}
	return sum
}

func TestTransferBitcoin(t *testing.T) {
	builder := NewBuilder(testDustLimit)
	pool := []*SpendableOutput{
		uncoloredOutput(1, 50000),
		uncoloredOutput(2, 60000),
	}

	tx, err := builder.TransferBitcoin(&TransferParameters{
		UnspentOutputs: pool,
		ToScript:       toScript,
		ChangeScript:   changeScript,
		Amount:         70000,
	}, testFee)
	require.NoError(t, err)

	require.Len(t, tx.TxIn, 2)
	require.Len(t, tx.TxOut, 2)
	require.EqualValues(t, 70000, tx.TxOut[0].Value)
	require.Equal(t, toScript, tx.TxOut[0].PkScript)
	require.EqualValues(t, 30000, tx.TxOut[1].Value)
	require.Equal(t, changeScript, tx.TxOut[1].PkScript)

	// Satoshi conservation: inputs equal outputs plus fee.
	require.Equal(t, btcutil.Amount(110000), outputSum(tx)+testFee)
}

// TestTransferBitcoinFirstFit checks that input selection stops at the first
// output making the total sufficient.
func TestTransferBitcoinFirstFit(t *testing.T) {
	builder := NewBuilder(testDustLimit)
	pool := []*SpendableOutput{
		uncoloredOutput(1, 50000),
		uncoloredOutput(2, 60000),
		uncoloredOutput(3, 1000000),
	}

	tx, err := builder.TransferBitcoin(&TransferParameters{
		UnspentOutputs: pool,
		ToScript:       toScript,
		ChangeScript:   changeScript,
		Amount:         30000,
	}, testFee)
	require.NoError(t, err)
	require.Len(t, tx.TxIn, 1)
	require.Equal(t, pool[0].OutPoint, tx.TxIn[0].PreviousOutPoint)
}

func TestTransferBitcoinDustChange(t *testing.T) {
	builder := NewBuilder(testDustLimit)
	pool := []*SpendableOutput{uncoloredOutput(1, 30500)}

	tx, err := builder.TransferBitcoin(&TransferParameters{
		UnspentOutputs: pool,
		ToScript:       toScript,
		ChangeScript:   changeScript,
		Amount:         20000,
	}, testFee)
	require.NoError(t, err)

	// The 500 satoshi change is below the dust limit and folds into the
	// recipient output.
	require.Len(t, tx.TxOut, 1)
	require.EqualValues(t, 20500, tx.TxOut[0].Value)
}

func TestTransferBitcoinDustAmount(t *testing.T) {
	builder := NewBuilder(testDustLimit)
	pool := []*SpendableOutput{uncoloredOutput(1, 50000)}

	_, err := builder.TransferBitcoin(&TransferParameters{
		UnspentOutputs: pool,
		ToScript:       toScript,
		ChangeScript:   changeScript,
		Amount:         599,
	}, testFee)
	require.ErrorIs(t, err, ErrDustOutput)
}

func TestTransferBitcoinInsufficientFunds(t *testing.T) {
	builder := NewBuilder(testDustLimit)
	pool := []*SpendableOutput{uncoloredOutput(1, 15000)}

	_, err := builder.TransferBitcoin(&TransferParameters{
		UnspentOutputs: pool,
		ToScript:       toScript,
		ChangeScript:   changeScript,
		Amount:         20000,
	}, testFee)

	var fundsErr *InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	require.Equal(t, btcutil.Amount(15000), fundsErr.Available)
	require.Equal(t, btcutil.Amount(30000), fundsErr.Required)
}

// TestTransferBitcoinSkipsColored checks that colored outputs are never
// selected to fund a plain bitcoin transfer.
func TestTransferBitcoinSkipsColored(t *testing.T) {
	builder := NewBuilder(testDustLimit)
	assetID := protocol.NewAssetID([]byte{0x55})
	pool := []*SpendableOutput{
		coloredOutput(1, 1000000, assetID, 50),
		uncoloredOutput(2, 40000),
	}

	tx, err := builder.TransferBitcoin(&TransferParameters{
		UnspentOutputs: pool,
		ToScript:       toScript,
		ChangeScript:   changeScript,
		Amount:         20000,
	}, testFee)
	require.NoError(t, err)
	require.Len(t, tx.TxIn, 1)
	require.Equal(t, pool[1].OutPoint, tx.TxIn[0].PreviousOutPoint)
}

func TestIssue(t *testing.T) {
	builder := NewBuilder(testDustLimit)
	pool := []*SpendableOutput{uncoloredOutput(1, 100000)}

	tx, err := builder.Issue(&TransferParameters{
		UnspentOutputs: pool,
		ToScript:       toScript,
		ChangeScript:   changeScript,
		Amount:         50,
	}, []byte("u=http://example.com/asset"), testFee)
	require.NoError(t, err)

	// Issued output, marker, bitcoin change.
	require.Len(t, tx.TxOut, 3)
	require.EqualValues(t, testDustLimit, tx.TxOut[0].Value)
	require.Equal(t, toScript, tx.TxOut[0].PkScript)

	marker := parseMarker(t, tx.TxOut[1])
	require.Equal(t, []uint64{50}, marker.AssetQuantities)
	require.Equal(t, "u=http://example.com/asset", string(marker.Metadata))
	require.Zero(t, tx.TxOut[1].Value)

	require.EqualValues(t, 89400, tx.TxOut[2].Value)
	require.Equal(t, changeScript, tx.TxOut[2].PkScript)
	require.Equal(t, btcutil.Amount(100000), outputSum(tx)+testFee)
}

func TestIssueDustChangeFoldsIntoIssued(t *testing.T) {
	builder := NewBuilder(testDustLimit)
	pool := []*SpendableOutput{uncoloredOutput(1, 11000)}

	tx, err := builder.Issue(&TransferParameters{
		UnspentOutputs: pool,
		ToScript:       toScript,
		ChangeScript:   changeScript,
		Amount:         10,
	}, nil, testFee)
	require.NoError(t, err)

	// 11000 - 600 - 10000 leaves 400 of change, folded into the issued
	// output instead of creating a dust output.
	require.Len(t, tx.TxOut, 2)
	require.EqualValues(t, 1000, tx.TxOut[0].Value)
}

func TestIssueZeroQuantity(t *testing.T) {
	builder := NewBuilder(testDustLimit)
	_, err := builder.Issue(&TransferParameters{
		UnspentOutputs: []*SpendableOutput{uncoloredOutput(1, 100000)},
		ToScript:       toScript,
		ChangeScript:   changeScript,
	}, nil, testFee)
	require.Error(t, err)
}

func TestTransferAssets(t *testing.T) {
	builder := NewBuilder(testDustLimit)
	assetID := protocol.NewAssetID([]byte{0x55})
	pool := []*SpendableOutput{
		coloredOutput(1, 600, assetID, 50),
		uncoloredOutput(2, 100000),
		coloredOutput(3, 600, assetID, 80),
	}

	tx, err := builder.TransferAssets(assetID, &TransferParameters{
		UnspentOutputs: pool,
		ToScript:       toScript,
		ChangeScript:   changeScript,
		Amount:         100,
	}, changeScript, testFee)
	require.NoError(t, err)

	// Both colored outputs are consumed, plus one uncolored output for
	// the fee shortfall.
	require.Len(t, tx.TxIn, 3)
	require.Equal(t, pool[0].OutPoint, tx.TxIn[0].PreviousOutPoint)
	require.Equal(t, pool[2].OutPoint, tx.TxIn[1].PreviousOutPoint)
	require.Equal(t, pool[1].OutPoint, tx.TxIn[2].PreviousOutPoint)

	// Marker first, then recipient units, asset change and bitcoin
	// change.
	require.Len(t, tx.TxOut, 4)
	marker := parseMarker(t, tx.TxOut[0])
	require.Equal(t, []uint64{100, 30}, marker.AssetQuantities)

	require.EqualValues(t, testDustLimit, tx.TxOut[1].Value)
	require.Equal(t, toScript, tx.TxOut[1].PkScript)
	require.EqualValues(t, testDustLimit, tx.TxOut[2].Value)
	require.Equal(t, changeScript, tx.TxOut[2].PkScript)

	require.EqualValues(t, 90000, tx.TxOut[3].Value)
	require.Equal(t, btcutil.Amount(101200), outputSum(tx)+testFee)
}

func TestTransferAssetsExactQuantity(t *testing.T) {
	builder := NewBuilder(testDustLimit)
	assetID := protocol.NewAssetID([]byte{0x55})
	pool := []*SpendableOutput{
		coloredOutput(1, 600, assetID, 100),
		uncoloredOutput(2, 100000),
	}

	tx, err := builder.TransferAssets(assetID, &TransferParameters{
		UnspentOutputs: pool,
		ToScript:       toScript,
		ChangeScript:   changeScript,
		Amount:         100,
	}, changeScript, testFee)
	require.NoError(t, err)

	// No asset change output when the collected quantity matches.
	require.Len(t, tx.TxOut, 3)
	marker := parseMarker(t, tx.TxOut[0])
	require.Equal(t, []uint64{100}, marker.AssetQuantities)
}

func TestTransferAssetsInsufficientQuantity(t *testing.T) {
	builder := NewBuilder(testDustLimit)
	assetID := protocol.NewAssetID([]byte{0x55})
	pool := []*SpendableOutput{
		coloredOutput(1, 600, assetID, 50),
		uncoloredOutput(2, 100000),
	}

	_, err := builder.TransferAssets(assetID, &TransferParameters{
		UnspentOutputs: pool,
		ToScript:       toScript,
		ChangeScript:   changeScript,
		Amount:         200,
	}, changeScript, testFee)

	var assetErr *InsufficientAssetQuantityError
	require.ErrorAs(t, err, &assetErr)
	require.EqualValues(t, 50, assetErr.Available)
	require.EqualValues(t, 200, assetErr.Required)
}

// TestTransferAssetsOtherAssetIgnored checks that outputs colored with a
// different asset never fund a transfer.
func TestTransferAssetsOtherAssetIgnored(t *testing.T) {
	builder := NewBuilder(testDustLimit)
	assetID := protocol.NewAssetID([]byte{0x55})
	otherID := protocol.NewAssetID([]byte{0x56})
	pool := []*SpendableOutput{
		coloredOutput(1, 600, otherID, 1000),
		coloredOutput(2, 600, assetID, 40),
		uncoloredOutput(3, 100000),
	}

	_, err := builder.TransferAssets(assetID, &TransferParameters{
		UnspentOutputs: pool,
		ToScript:       toScript,
		ChangeScript:   changeScript,
		Amount:         100,
	}, changeScript, testFee)

	var assetErr *InsufficientAssetQuantityError
	require.ErrorAs(t, err, &assetErr)
	require.EqualValues(t, 40, assetErr.Available)
}
