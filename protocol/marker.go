// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// openAssetsTag identifies an Open Assets marker payload: the ASCII bytes
// "OA" followed by the protocol version 1.0 encoded as a little endian
// uint16.
var openAssetsTag = []byte{0x4f, 0x41, 0x01, 0x00}

// MaxAssetQuantity is the maximum quantity a single list entry may encode.
const MaxAssetQuantity uint64 = 1<<63 - 1

// ErrInvalidMarker describes a marker payload that does not follow the Open
// Assets serialization rules.  A malformed marker found on chain is valid
// (if useless) data, so the coloring engine handles this error in-band
// rather than propagating it.
var ErrInvalidMarker = errors.New("invalid marker payload")

// MarkerOutput is the parsed form of an Open Assets marker output: the flat
// list of asset quantities assigned to the sibling outputs and free-form
// metadata.
type MarkerOutput struct {
	// AssetQuantities holds one entry per colorable output in output
	// order, skipping the marker output itself.  The list may be shorter
	// than the number of outputs, in which case the remainder is treated
	// as zero.
	AssetQuantities []uint64

	// Metadata is arbitrary issuer-supplied data.  The protocol does not
	// constrain its content.
	Metadata []byte
}

// SerializePayload encodes the marker into its wire payload:
//
//	tag || varint(len(quantities)) || leb128(q) for each q ||
//	varint(len(metadata)) || metadata
//
// The quantity list uses unsigned LEB128 per entry while both counts use the
// regular Bitcoin varint encoding.  This layout is bit-exact across Open
// Assets implementations.
func (m *MarkerOutput) SerializePayload() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(openAssetsTag)

	err := wire.WriteVarInt(&buf, 0, uint64(len(m.AssetQuantities)))
	if err != nil {
		return nil, err
	}

	var leb [binary.MaxVarintLen64]byte
	for _, quantity := range m.AssetQuantities {
		if quantity > MaxAssetQuantity {
			return nil, fmt.Errorf("asset quantity %d exceeds "+
				"maximum %d", quantity, MaxAssetQuantity)
		}
		n := binary.PutUvarint(leb[:], quantity)
		buf.Write(leb[:n])
	}

	err = wire.WriteVarInt(&buf, 0, uint64(len(m.Metadata)))
	if err != nil {
		return nil, err
	}
	buf.Write(m.Metadata)

	return buf.Bytes(), nil
}

// ParseMarkerPayload decodes a marker payload.  ErrInvalidMarker is returned
// for any deviation from the wire format: missing tag, truncated data,
// quantity overflow, or trailing bytes.
func ParseMarkerPayload(payload []byte) (*MarkerOutput, error) {
	if len(payload) < len(openAssetsTag) ||
		!bytes.Equal(payload[:len(openAssetsTag)], openAssetsTag) {

		return nil, fmt.Errorf("%w: missing open assets tag",
			ErrInvalidMarker)
	}

	r := bytes.NewReader(payload[len(openAssetsTag):])

	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: quantity count: %v",
			ErrInvalidMarker, err)
	}

	// Every quantity takes at least one byte, so a count larger than the
	// remaining payload cannot be satisfied.
	if count > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: quantity count %d exceeds payload",
			ErrInvalidMarker, count)
	}

	quantities := make([]uint64, 0, count)
	for i := uint64(0); i < count; i++ {
		quantity, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("%w: quantity %d: %v",
				ErrInvalidMarker, i, err)
		}
		if quantity > MaxAssetQuantity {
			return nil, fmt.Errorf("%w: quantity %d overflows",
				ErrInvalidMarker, i)
		}
		quantities = append(quantities, quantity)
	}

	metadataLen, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata length: %v",
			ErrInvalidMarker, err)
	}
	if metadataLen > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: metadata truncated",
			ErrInvalidMarker)
	}

	metadata := make([]byte, metadataLen)
	if _, err := io.ReadFull(r, metadata); err != nil {
		return nil, fmt.Errorf("%w: metadata truncated",
			ErrInvalidMarker)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes",
			ErrInvalidMarker, r.Len())
	}

	return &MarkerOutput{
		AssetQuantities: quantities,
		Metadata:        metadata,
	}, nil
}

// PkScript builds the marker output script: OP_RETURN followed by a single
// push of the serialized payload.
func (m *MarkerOutput) PkScript() ([]byte, error) {
	payload, err := m.SerializePayload()
	if err != nil {
		return nil, err
	}
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(payload).
		Script()
}

// ParseMarkerScript extracts the marker payload from an output script.  The
// script must consist of exactly OP_RETURN followed by one data push whose
// content starts with the Open Assets tag; any other script shape returns
// false, which simply means the output is not a marker candidate.
func ParseMarkerScript(pkScript []byte) ([]byte, bool) {
	tokenizer := txscript.MakeScriptTokenizer(0, pkScript)

	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_RETURN {
		return nil, false
	}
	if !tokenizer.Next() || tokenizer.Err() != nil {
		return nil, false
	}
	payload := tokenizer.Data()
	if payload == nil {
		return nil, false
	}
	if tokenizer.Next() || tokenizer.Err() != nil || !tokenizer.Done() {
		return nil, false
	}

	if len(payload) < len(openAssetsTag) ||
		!bytes.Equal(payload[:len(openAssetsTag)], openAssetsTag) {

		return nil, false
	}

	return payload, true
}
