// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// Params is used to group parameters for various networks such as the main
// network and test networks.  In addition to the btcd chain parameters it
// carries the Open Assets protocol values that differ per network: the
// namespace byte used to mark base58 asset addresses, the version byte used
// when encoding asset IDs, and the policy defaults for dust and fees.
//
// A Params value is passed explicitly into every address encoding and script
// building call.  There is no process-wide network state.
type Params struct {
	*chaincfg.Params
	RPCClientPort string
	RPCServerPort string

	// OANamespaceByte is prepended to the version byte when encoding an
	// Open Assets address (payload is namespace || version || hash160).
	OANamespaceByte byte

	// AssetIDVersionByte is the base58check version byte used when
	// encoding 20-byte asset IDs.
	AssetIDVersionByte byte

	// DustLimit is the minimum value a pure bitcoin output may hold.
	// Smaller change amounts are folded into another output.
	DustLimit btcutil.Amount

	// DefaultFee is the transaction fee used when the caller does not
	// specify one.
	DefaultFee btcutil.Amount
}

// MainNetParams contains parameters specific to running colorcored against a
// bitcoind node on the main network (wire.MainNet).
var MainNetParams = Params{
	Params:             &chaincfg.MainNetParams,
	RPCClientPort:      "8332",
	RPCServerPort:      "8380",
	OANamespaceByte:    19,
	AssetIDVersionByte: 23,
	DustLimit:          600,
	DefaultFee:         10000,
}

// TestNet3Params contains parameters specific to the test network (version 3)
// (wire.TestNet3).
var TestNet3Params = Params{
	Params:             &chaincfg.TestNet3Params,
	RPCClientPort:      "18332",
	RPCServerPort:      "18380",
	OANamespaceByte:    19,
	AssetIDVersionByte: 115,
	DustLimit:          600,
	DefaultFee:         10000,
}

// RegressionNetParams contains parameters specific to the regression test
// network (wire.TestNet).
var RegressionNetParams = Params{
	Params:             &chaincfg.RegressionNetParams,
	RPCClientPort:      "18443",
	RPCServerPort:      "18480",
	OANamespaceByte:    19,
	AssetIDVersionByte: 115,
	DustLimit:          600,
	DefaultFee:         10000,
}
