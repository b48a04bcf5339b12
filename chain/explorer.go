// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/go-resty/resty/v2"
)

// ExplorerProvider is a read-only Provider backed by the REST API of a chain
// indexer.  It can fetch transactions and list unspent outputs by address,
// but has no wallet: signing, broadcasting and wallet-scoped unspent queries
// fail with ErrNotSupported.  Wrap it in a FallbackProvider to delegate
// those to a wallet-capable backend.
type ExplorerProvider struct {
	client *resty.Client
}

// A compile-time check to ensure that ExplorerProvider satisfies the
// chain.Provider interface.
var _ Provider = (*ExplorerProvider)(nil)

// NewExplorerProvider creates a provider querying the indexer rooted at
// baseURL.
func NewExplorerProvider(baseURL string) *ExplorerProvider {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json")
	return &ExplorerProvider{client: client}
}

// explorerUnspent is one entry of the indexer's unspents response.
type explorerUnspent struct {
	TransactionHash string `json:"transaction_hash"`
	OutputIndex     uint32 `json:"output_index"`
	Confirmations   int64  `json:"confirmations"`
}

// explorerTransaction is the indexer's transaction response.
type explorerTransaction struct {
	Inputs []struct {
		OutputHash  string `json:"output_hash"`
		OutputIndex uint32 `json:"output_index"`
	} `json:"inputs"`
	Outputs []struct {
		Value     int64  `json:"value"`
		ScriptHex string `json:"script_hex"`
	} `json:"outputs"`
}

// ListUnspent queries the indexer for the unspent outputs of the given
// addresses.  The indexer has no wallet, so a nil address slice cannot be
// served.  The confirmation bounds are applied client side since not every
// indexer supports them.
func (p *ExplorerProvider) ListUnspent(ctx context.Context,
	addrs []btcutil.Address, minConf, maxConf int) ([]*Unspent, error) {

	if addrs == nil {
		return nil, fmt.Errorf("%w: wallet-scoped unspent queries",
			ErrNotSupported)
	}

	encoded := make([]string, len(addrs))
	for i, addr := range addrs {
		encoded[i] = addr.EncodeAddress()
	}

	var results []explorerUnspent
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&results).
		Get("/addresses/" + strings.Join(encoded, ",") + "/unspents")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("explorer returned %s for unspents "+
			"query", resp.Status())
	}

	unspents := make([]*Unspent, 0, len(results))
	for _, result := range results {
		if result.Confirmations < int64(minConf) ||
			result.Confirmations > int64(maxConf) {

			continue
		}
		txHash, err := chainhash.NewHashFromStr(result.TransactionHash)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction hash %q "+
				"from explorer: %w", result.TransactionHash,
				err)
		}
		unspents = append(unspents, &Unspent{
			OutPoint: *wire.NewOutPoint(
				txHash, result.OutputIndex),
			Confirmations: result.Confirmations,
		})
	}
	return unspents, nil
}

// GetTransaction fetches a transaction from the indexer and rebuilds its
// wire form.  Input scripts and witnesses are not reconstructed; the
// coloring algorithm only needs the previous outpoints and the outputs.
func (p *ExplorerProvider) GetTransaction(ctx context.Context,
	hash *chainhash.Hash) (*wire.MsgTx, error) {

	var result explorerTransaction
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/transactions/" + hash.String())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %v", ErrTransactionNotFound, hash)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("explorer returned %s for "+
			"transaction %v", resp.Status(), hash)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, input := range result.Inputs {
		prevHash, err := chainhash.NewHashFromStr(input.OutputHash)
		if err != nil {
			return nil, fmt.Errorf("invalid outpoint hash %q "+
				"from explorer: %w", input.OutputHash, err)
		}
		tx.AddTxIn(wire.NewTxIn(
			wire.NewOutPoint(prevHash, input.OutputIndex),
			nil, nil))
	}
	for _, output := range result.Outputs {
		pkScript, err := hex.DecodeString(output.ScriptHex)
		if err != nil {
			return nil, fmt.Errorf("invalid output script from "+
				"explorer: %w", err)
		}
		tx.AddTxOut(wire.NewTxOut(output.Value, pkScript))
	}
	return tx, nil
}

// SignTransaction fails: the indexer is read-only.
func (p *ExplorerProvider) SignTransaction(ctx context.Context,
	tx *wire.MsgTx) (*wire.MsgTx, bool, error) {

	return nil, false, fmt.Errorf("%w: signing", ErrNotSupported)
}

// SendTransaction fails: the indexer is read-only.
func (p *ExplorerProvider) SendTransaction(ctx context.Context,
	tx *wire.MsgTx) (*chainhash.Hash, error) {

	return nil, fmt.Errorf("%w: broadcasting", ErrNotSupported)
}
