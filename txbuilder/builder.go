// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txbuilder

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/openassets/colorcore/protocol"
)

// SpendableOutput pairs a resolved output descriptor with the outpoint
// locating it on chain and, when sourced from a wallet query, its
// confirmation count.
type SpendableOutput struct {
	OutPoint      wire.OutPoint
	Output        *protocol.TransactionOutput
	Confirmations int64
}

// TransferParameters describes one issuance or transfer request: the
// candidate input pool in spending order, the destination and change
// scripts, and the requested amount (satoshis or asset units depending on
// the operation).
type TransferParameters struct {
	UnspentOutputs []*SpendableOutput
	ToScript       []byte
	ChangeScript   []byte
	Amount         uint64
}

// Builder assembles protocol-correct Open Assets transactions from pools of
// already-colored spendable outputs.  A Builder carries no state between
// calls: every build is a pure function of the pool, the parameters and the
// dust limit, and a failed build produces no transaction at all.
//
// Input selection is deliberately first-fit in pool order rather than
// optimal-fit, trading fee optimality for predictability.
type Builder struct {
	dustLimit btcutil.Amount
}

// NewBuilder creates a builder enforcing the given dust limit.
func NewBuilder(dustLimit btcutil.Amount) *Builder {
	return &Builder{dustLimit: dustLimit}
}

// TransferBitcoin builds a plain bitcoin transfer carrying no asset color.
// The outputs are the recipient output followed by the change output; change
// below the dust limit is folded into the recipient output instead of being
// created.
func (b *Builder) TransferBitcoin(params *TransferParameters,
	fee btcutil.Amount) (*wire.MsgTx, error) {

	amount := btcutil.Amount(params.Amount)
	if amount < b.dustLimit {
		return nil, fmt.Errorf("%w: requested amount %v is below %v",
			ErrDustOutput, amount, b.dustLimit)
	}

	inputs, total, err := collectUncoloredOutputs(
		params.UnspentOutputs, amount+fee)
	if err != nil {
		return nil, err
	}

	recipient := wire.NewTxOut(int64(amount), params.ToScript)
	outputs := []*wire.TxOut{recipient}

	change := total - amount - fee
	switch {
	case change > 0 && change < b.dustLimit:
		recipient.Value += int64(change)
	case change >= b.dustLimit:
		outputs = append(outputs,
			wire.NewTxOut(int64(change), params.ChangeScript))
	}

	return buildTx(inputs, outputs), nil
}

// Issue builds an asset issuance.  The issued units take their asset ID from
// the first input's previous output script once mined.  The outputs are the
// issued output (carrying the dust limit in satoshis), the marker output
// encoding the issued quantity and metadata, and the bitcoin change output.
// Change below the dust limit is folded into the issued output, which as an
// asset-bearing output is exempt from the dust rule.
func (b *Builder) Issue(params *TransferParameters, metadata []byte,
	fee btcutil.Amount) (*wire.MsgTx, error) {

	if params.Amount == 0 {
		return nil, errors.New("issuance quantity must be positive")
	}

	inputs, total, err := collectUncoloredOutputs(
		params.UnspentOutputs, b.dustLimit+fee)
	if err != nil {
		return nil, err
	}

	marker := &protocol.MarkerOutput{
		AssetQuantities: []uint64{params.Amount},
		Metadata:        metadata,
	}
	markerScript, err := marker.PkScript()
	if err != nil {
		return nil, err
	}

	issued := wire.NewTxOut(int64(b.dustLimit), params.ToScript)
	outputs := []*wire.TxOut{issued, wire.NewTxOut(0, markerScript)}

	change := total - b.dustLimit - fee
	switch {
	case change > 0 && change < b.dustLimit:
		issued.Value += int64(change)
	case change >= b.dustLimit:
		outputs = append(outputs,
			wire.NewTxOut(int64(change), params.ChangeScript))
	}

	return buildTx(inputs, outputs), nil
}

// TransferAssets builds a transfer of existing asset units.  The marker
// output comes first so the coloring algorithm reads the outputs that follow
// it as transfers: marker, the recipient's asset output, the asset change
// output when more units were collected than requested, and finally the
// bitcoin change output.  Colored inputs are selected first-fit by asset ID;
// additional uncolored inputs cover the fee and the satoshis carried by the
// asset outputs.  Bitcoin change below the dust limit folds into the last
// asset output.
func (b *Builder) TransferAssets(assetID protocol.AssetID,
	params *TransferParameters, btcChangeScript []byte,
	fee btcutil.Amount) (*wire.MsgTx, error) {

	if params.Amount == 0 {
		return nil, errors.New("transfer quantity must be positive")
	}

	inputs, collected, err := collectColoredOutputs(
		params.UnspentOutputs, assetID, params.Amount)
	if err != nil {
		return nil, err
	}

	quantities := []uint64{params.Amount}
	assetOutputs := []*wire.TxOut{
		wire.NewTxOut(int64(b.dustLimit), params.ToScript),
	}
	if collected > params.Amount {
		quantities = append(quantities, collected-params.Amount)
		assetOutputs = append(assetOutputs,
			wire.NewTxOut(int64(b.dustLimit), params.ChangeScript))
	}

	marker := &protocol.MarkerOutput{AssetQuantities: quantities}
	markerScript, err := marker.PkScript()
	if err != nil {
		return nil, err
	}

	// The colored inputs carry satoshis of their own.  Collect additional
	// uncolored inputs only for the shortfall toward the asset outputs
	// plus fee.
	inputValue := btcutil.Amount(0)
	for _, input := range inputs {
		inputValue += input.Output.Value
	}
	needed := b.dustLimit*btcutil.Amount(len(assetOutputs)) + fee
	if inputValue < needed {
		more, moreValue, err := collectUncoloredOutputs(
			params.UnspentOutputs, needed-inputValue)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, more...)
		inputValue += moreValue
	}

	outputs := make([]*wire.TxOut, 0, len(assetOutputs)+2)
	outputs = append(outputs, wire.NewTxOut(0, markerScript))
	outputs = append(outputs, assetOutputs...)

	change := inputValue - needed
	switch {
	case change > 0 && change < b.dustLimit:
		outputs[len(outputs)-1].Value += int64(change)
	case change >= b.dustLimit:
		outputs = append(outputs,
			wire.NewTxOut(int64(change), btcChangeScript))
	}

	return buildTx(inputs, outputs), nil
}

// collectUncoloredOutputs accumulates uncolored outputs from the pool in
// order until their combined value reaches the target.
func collectUncoloredOutputs(pool []*SpendableOutput,
	target btcutil.Amount) ([]*SpendableOutput, btcutil.Amount, error) {

	var (
		selected []*SpendableOutput
		total    btcutil.Amount
	)
	for _, output := range pool {
		if output.Output.AssetID != nil {
			continue
		}
		selected = append(selected, output)
		total += output.Output.Value
		if total >= target {
			return selected, total, nil
		}
	}
	return nil, 0, &InsufficientFundsError{
		Available: total,
		Required:  target,
	}
}

// collectColoredOutputs accumulates outputs colored with the given asset
// from the pool in order until their combined quantity reaches the target.
func collectColoredOutputs(pool []*SpendableOutput, assetID protocol.AssetID,
	target uint64) ([]*SpendableOutput, uint64, error) {

	var (
		selected []*SpendableOutput
		total    uint64
	)
	for _, output := range pool {
		if output.Output.AssetID == nil ||
			*output.Output.AssetID != assetID {

			continue
		}
		selected = append(selected, output)
		total += output.Output.AssetQuantity
		if total >= target {
			return selected, total, nil
		}
	}
	return nil, 0, &InsufficientAssetQuantityError{
		AssetID:   assetID,
		Available: total,
		Required:  target,
	}
}

// buildTx assembles the wire transaction from selected inputs and outputs.
// Input scripts are left empty; signing is the provider's concern.
func buildTx(inputs []*SpendableOutput, outputs []*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	for _, input := range inputs {
		outPoint := input.OutPoint
		tx.AddTxIn(wire.NewTxIn(&outPoint, nil, nil))
	}
	for _, output := range outputs {
		tx.AddTxOut(output)
	}
	return tx
}
