// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package protocol

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// OutputType describes how an output participates in the Open Assets
// protocol.
type OutputType byte

const (
	// OutputUncolored is an output carrying no asset units.
	OutputUncolored OutputType = iota

	// OutputTransfer is an output carrying units of a previously issued
	// asset.
	OutputTransfer

	// OutputIssuance is an output carrying freshly issued asset units.
	OutputIssuance

	// OutputMarker is a valid Open Assets marker output.
	OutputMarker

	// OutputInvalidMarker is an output whose script matches the marker
	// template but whose payload could not be parsed.  Its presence voids
	// the coloring of the whole transaction.
	OutputInvalidMarker
)

// String returns a human readable identifier for the output type.
func (t OutputType) String() string {
	switch t {
	case OutputUncolored:
		return "uncolored"
	case OutputTransfer:
		return "transfer"
	case OutputIssuance:
		return "issuance"
	case OutputMarker:
		return "marker"
	case OutputInvalidMarker:
		return "invalid marker"
	default:
		return fmt.Sprintf("unknown output type %d", byte(t))
	}
}

// AssetIDSize is the length in bytes of an asset identifier.
const AssetIDSize = 20

// AssetID identifies an Open Assets asset.  It is derived from the output
// script of the outpoint spent by the first input of the issuing transaction
// by hashing the script with SHA256 followed by RIPEMD160.  The construction
// is a wire contract shared with every other Open Assets client and must not
// change.
type AssetID [AssetIDSize]byte

// NewAssetID derives the asset ID issued by an input whose previous output
// held the passed script.
func NewAssetID(issuanceScript []byte) AssetID {
	var id AssetID
	copy(id[:], btcutil.Hash160(issuanceScript))
	return id
}

// NewAssetIDFromBytes builds an AssetID from its raw 20-byte representation.
func NewAssetIDFromBytes(b []byte) (AssetID, error) {
	var id AssetID
	if len(b) != AssetIDSize {
		return id, fmt.Errorf("asset ID must be %d bytes, got %d",
			AssetIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String returns the hexadecimal representation of the asset ID.  Base58
// rendering requires network parameters and lives in the address package.
func (id AssetID) String() string {
	return hex.EncodeToString(id[:])
}

// TransactionOutput is the fully resolved state of a single transaction
// output: its on-chain value and script plus the asset coloring assigned by
// the protocol.  AssetID is non-nil exactly when Type is OutputTransfer or
// OutputIssuance.
type TransactionOutput struct {
	Value         btcutil.Amount
	PkScript      []byte
	AssetID       *AssetID
	AssetQuantity uint64
	Type          OutputType
}

// NewTransactionOutput creates a resolved output descriptor.  The script is
// copied so the descriptor owns its bytes.
func NewTransactionOutput(value btcutil.Amount, pkScript []byte,
	assetID *AssetID, quantity uint64, typ OutputType) *TransactionOutput {

	out := &TransactionOutput{
		Value:         value,
		PkScript:      append([]byte(nil), pkScript...),
		AssetQuantity: quantity,
		Type:          typ,
	}
	if assetID != nil {
		id := *assetID
		out.AssetID = &id
	}
	return out
}

// Equal reports whether two resolved outputs are identical.
func (o *TransactionOutput) Equal(other *TransactionOutput) bool {
	if o == nil || other == nil {
		return o == other
	}
	if o.Value != other.Value || o.AssetQuantity != other.AssetQuantity ||
		o.Type != other.Type {
		return false
	}
	if !bytes.Equal(o.PkScript, other.PkScript) {
		return false
	}
	switch {
	case o.AssetID == nil && other.AssetID == nil:
		return true
	case o.AssetID == nil || other.AssetID == nil:
		return false
	default:
		return *o.AssetID == *other.AssetID
	}
}
