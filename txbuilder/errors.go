// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txbuilder

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/openassets/colorcore/protocol"
)

// ErrDustOutput describes an output that would be created below the dust
// limit with no output available to merge its value into.
var ErrDustOutput = errors.New("output value is below the dust limit")

// InsufficientFundsError describes an input pool that ran out of bitcoin
// value before the requested amount plus fee was met.
type InsufficientFundsError struct {
	Available btcutil.Amount
	Required  btcutil.Amount
}

// Error satisfies the error interface.
func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: %v available of %v required",
		e.Available, e.Required)
}

// InsufficientAssetQuantityError describes an input pool that ran out of
// asset units before the requested quantity was met.
type InsufficientAssetQuantityError struct {
	AssetID   protocol.AssetID
	Available uint64
	Required  uint64
}

// Error satisfies the error interface.
func (e *InsufficientAssetQuantityError) Error() string {
	return fmt.Sprintf("insufficient asset quantity: %d units of asset "+
		"%v available of %d required", e.Available, e.AssetID,
		e.Required)
}
