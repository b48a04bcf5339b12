// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package address implements the base58 encodings used by the Open Assets
// protocol: asset-aware payment addresses, which wrap an ordinary
// pay-to-pubkey-hash address in a one byte namespace prefix, and asset IDs,
// which are base58check encoded RIPEMD160 hashes.
package address

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/txscript"

	"github.com/openassets/colorcore/netparams"
	"github.com/openassets/colorcore/protocol"
)

var (
	// ErrUnknownFormat describes an error where an address cannot be
	// decoded as either an asset address or a plain bitcoin address.
	ErrUnknownFormat = errors.New("unknown address format")

	// ErrWrongNetwork describes an error where an address was decoded
	// successfully but carries version bytes of another network.
	ErrWrongNetwork = errors.New("address is for the wrong network")
)

// EncodeAssetAddress returns the asset-aware form of a pay-to-pubkey-hash
// address.  The encoded payload is namespace || version || hash160 with a
// standard base58check checksum, so wallets that are unaware of colored
// outputs refuse to parse it instead of silently destroying assets.
func EncodeAssetAddress(addr *btcutil.AddressPubKeyHash,
	params *netparams.Params) string {

	payload := make([]byte, 0, 21)
	payload = append(payload, params.PubKeyHashAddrID)
	payload = append(payload, addr.ScriptAddress()...)
	return base58.CheckEncode(payload, params.OANamespaceByte)
}

// DecodeAddress parses an address in either its asset-aware or its plain
// bitcoin form and returns the underlying address.  The second return value
// reports whether the asset-aware form was used.
func DecodeAddress(encoded string,
	params *netparams.Params) (btcutil.Address, bool, error) {

	decoded, version, err := base58.CheckDecode(encoded)
	if err == nil && version == params.OANamespaceByte &&
		len(decoded) == 21 {

		if decoded[0] != params.PubKeyHashAddrID {
			return nil, false, ErrWrongNetwork
		}
		addr, err := btcutil.NewAddressPubKeyHash(decoded[1:],
			params.Params)
		if err != nil {
			return nil, false, err
		}
		return addr, true, nil
	}

	addr, err := btcutil.DecodeAddress(encoded, params.Params)
	if err != nil {
		return nil, false, ErrUnknownFormat
	}
	if !addr.IsForNet(params.Params) {
		return nil, false, ErrWrongNetwork
	}
	return addr, false, nil
}

// PayToAddrScript creates a script to pay a transaction output to the
// address.
func PayToAddrScript(addr btcutil.Address) ([]byte, error) {
	return txscript.PayToAddrScript(addr)
}

// ExtractAddress returns the address a standard output script pays to, or
// an error for non-standard scripts.
func ExtractAddress(pkScript []byte,
	params *netparams.Params) (btcutil.Address, error) {

	_, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript,
		params.Params)
	if err != nil {
		return nil, err
	}
	if len(addrs) != 1 {
		return nil, fmt.Errorf("script pays to %d addresses",
			len(addrs))
	}
	return addrs[0], nil
}

// EncodeAssetID returns the base58check form of an asset ID.
func EncodeAssetID(id protocol.AssetID, params *netparams.Params) string {
	return base58.CheckEncode(id[:], params.AssetIDVersionByte)
}

// DecodeAssetID parses a base58check encoded asset ID.
func DecodeAssetID(encoded string,
	params *netparams.Params) (protocol.AssetID, error) {

	var id protocol.AssetID
	decoded, version, err := base58.CheckDecode(encoded)
	if err != nil {
		return id, fmt.Errorf("invalid asset ID: %w", err)
	}
	if version != params.AssetIDVersionByte {
		return id, ErrWrongNetwork
	}
	return protocol.NewAssetIDFromBytes(decoded)
}
