// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txbuilder

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/openassets/colorcore/protocol"
)

// Distribution describes the accounting of one distribution transaction:
// the asset units issued against an inbound payment, the satoshis collected
// for them, and the change returned to the payer.
type Distribution struct {
	// Units is the number of asset units the payment buys at the unit
	// price, after the fee and a dust-limit reserve are deducted.
	Units uint64

	// Collected is the payment for the issued units, forwarded to the
	// distribution's collection address.
	Collected btcutil.Amount

	// Change is the unspent remainder returned to the payer.  A change
	// amount below the dust limit is folded into Collected instead.
	Change btcutil.Amount
}

// CalculateDistribution computes how many asset units an inbound output of
// the given value buys at the unit price, the satoshis collected for them,
// and the payer's change:
//
//	units     = (value - fee - dustLimit) / price
//	collected = units * price
//	change    = value - fee - collected, folded into collected when dust
func (b *Builder) CalculateDistribution(value, price,
	fee btcutil.Amount) (*Distribution, error) {

	if price <= 0 {
		return nil, errors.New("unit price must be positive")
	}

	effective := value - fee - b.dustLimit
	if effective < price {
		return &Distribution{}, nil
	}
	units := uint64(effective / price)
	collected := btcutil.Amount(units) * price

	change := value - fee - collected
	if change < b.dustLimit {
		collected += change
		change = 0
	}

	return &Distribution{
		Units:     units,
		Collected: collected,
		Change:    change,
	}, nil
}

// Distribute builds the standalone issuance transaction answering one
// inbound payment: the payer's output is the sole input, and the outputs are
// the issued asset output returning the change satoshis to the payer, the
// marker output, and the collected payment to the forward script.  Chaining
// each distribution directly to its inbound payment removes any double-spend
// ambiguity across concurrent distributions; qualifying inputs are never
// batched together.
//
// A nil transaction (with no error) is returned when the payment is too
// small to buy a single unit.
func (b *Builder) Distribute(output *SpendableOutput, payerScript,
	forwardScript []byte, price, fee btcutil.Amount,
	metadata []byte) (*wire.MsgTx, *Distribution, error) {

	dist, err := b.CalculateDistribution(output.Output.Value, price, fee)
	if err != nil {
		return nil, nil, err
	}
	if dist.Units == 0 {
		return nil, dist, nil
	}

	marker := &protocol.MarkerOutput{
		AssetQuantities: []uint64{dist.Units},
		Metadata:        metadata,
	}
	markerScript, err := marker.PkScript()
	if err != nil {
		return nil, nil, err
	}

	outputs := []*wire.TxOut{
		wire.NewTxOut(int64(dist.Change), payerScript),
		wire.NewTxOut(0, markerScript),
		wire.NewTxOut(int64(dist.Collected), forwardScript),
	}

	tx := buildTx([]*SpendableOutput{output}, outputs)

	log.Debugf("Distribution against %v: %d units, %v collected, %v "+
		"change", output.OutPoint, dist.Units, dist.Collected,
		dist.Change)
	return tx, dist, nil
}
