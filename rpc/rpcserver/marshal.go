// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/wire"

	"github.com/openassets/colorcore/controller"
)

// The wire formats below mirror the controller records field for field.
// Satoshi amounts travel as integers; scripts and raw transactions as hex.

type assetBalanceJSON struct {
	AssetID  string `json:"asset_id"`
	Quantity uint64 `json:"quantity"`
}

type balanceJSON struct {
	Address      string             `json:"address"`
	AssetAddress string             `json:"asset_address,omitempty"`
	Value        int64              `json:"value"`
	Assets       []assetBalanceJSON `json:"assets"`
}

type unspentJSON struct {
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Address       string `json:"address"`
	AssetAddress  string `json:"asset_address,omitempty"`
	Script        string `json:"script"`
	Amount        int64  `json:"amount"`
	Confirmations int64  `json:"confirmations"`
	AssetID       string `json:"asset_id,omitempty"`
	AssetQuantity uint64 `json:"asset_quantity,omitempty"`
}

type txInputJSON struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

type txOutputJSON struct {
	Value  int64  `json:"value"`
	Script string `json:"script"`
}

type txJSON struct {
	Version  int32          `json:"version"`
	LockTime uint32         `json:"locktime"`
	Inputs   []txInputJSON  `json:"inputs"`
	Outputs  []txOutputJSON `json:"outputs"`
}

type resultJSON struct {
	TxID string  `json:"txid,omitempty"`
	Raw  string  `json:"raw,omitempty"`
	Tx   *txJSON `json:"transaction,omitempty"`
}

type distributionJSON struct {
	TxID         string      `json:"txid"`
	Vout         uint32      `json:"vout"`
	InboundValue int64       `json:"inbound_value"`
	Units        uint64      `json:"units"`
	Collected    int64       `json:"collected"`
	Change       int64       `json:"change"`
	Result       *resultJSON `json:"result,omitempty"`
}

func marshalBalances(records []*controller.BalanceRecord) []balanceJSON {
	out := make([]balanceJSON, 0, len(records))
	for _, r := range records {
		entry := balanceJSON{
			Address:      r.Address,
			AssetAddress: r.AssetAddress,
			Value:        int64(r.Value),
			Assets:       make([]assetBalanceJSON, 0, len(r.Assets)),
		}
		for _, a := range r.Assets {
			entry.Assets = append(entry.Assets, assetBalanceJSON{
				AssetID:  a.AssetID,
				Quantity: a.Quantity,
			})
		}
		out = append(out, entry)
	}
	return out
}

func marshalUnspents(records []*controller.UnspentRecord) []unspentJSON {
	out := make([]unspentJSON, 0, len(records))
	for _, r := range records {
		out = append(out, unspentJSON{
			TxID:          r.OutPoint.Hash.String(),
			Vout:          r.OutPoint.Index,
			Address:       r.Address,
			AssetAddress:  r.AssetAddress,
			Script:        hex.EncodeToString(r.PkScript),
			Amount:        int64(r.Amount),
			Confirmations: r.Confirmations,
			AssetID:       r.AssetID,
			AssetQuantity: r.AssetQuantity,
		})
	}
	return out
}

func marshalTx(tx *wire.MsgTx) *txJSON {
	out := &txJSON{
		Version:  tx.Version,
		LockTime: tx.LockTime,
		Inputs:   make([]txInputJSON, 0, len(tx.TxIn)),
		Outputs:  make([]txOutputJSON, 0, len(tx.TxOut)),
	}
	for _, in := range tx.TxIn {
		out.Inputs = append(out.Inputs, txInputJSON{
			TxID: in.PreviousOutPoint.Hash.String(),
			Vout: in.PreviousOutPoint.Index,
		})
	}
	for _, txOut := range tx.TxOut {
		out.Outputs = append(out.Outputs, txOutputJSON{
			Value:  txOut.Value,
			Script: hex.EncodeToString(txOut.PkScript),
		})
	}
	return out
}

func serializeTx(tx *wire.MsgTx) string {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		// Serialization into a buffer cannot fail for a
		// well-formed transaction.
		log.Errorf("Unable to serialize transaction: %v", err)
		return ""
	}
	return hex.EncodeToString(buf.Bytes())
}

// marshalResult renders a completed operation.  Broadcast results always
// carry the transaction hash; otherwise the transaction is rendered raw or
// decoded according to format.
func marshalResult(result *controller.TransactionResult,
	format string) *resultJSON {

	out := &resultJSON{}
	if result.Hash != nil {
		out.TxID = result.Hash.String()
		return out
	}
	if format == "raw" {
		out.Raw = serializeTx(result.Tx)
	} else {
		out.Tx = marshalTx(result.Tx)
	}
	return out
}

func marshalDistributions(records []*controller.DistributionRecord,
	format string) []distributionJSON {

	out := make([]distributionJSON, 0, len(records))
	for _, r := range records {
		entry := distributionJSON{
			TxID:         r.OutPoint.Hash.String(),
			Vout:         r.OutPoint.Index,
			InboundValue: int64(r.InboundValue),
			Units:        r.Units,
			Collected:    int64(r.Collected),
			Change:       int64(r.Change),
		}
		if r.Result != nil {
			entry.Result = marshalResult(r.Result, format)
		}
		out = append(out, entry)
	}
	return out
}
