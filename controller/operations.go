// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package controller

import (
	"context"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"

	"github.com/openassets/colorcore/address"
	"github.com/openassets/colorcore/protocol"
	"github.com/openassets/colorcore/txbuilder"
)

// AssetBalance is the holding of one asset by one address.
type AssetBalance struct {
	AssetID  string
	Quantity uint64
}

// BalanceRecord is the aggregate holdings of one address: total satoshis
// across all of its unspent outputs plus its per-asset unit totals.
type BalanceRecord struct {
	Address      string
	AssetAddress string
	Value        btcutil.Amount
	Assets       []*AssetBalance
}

// UnspentRecord describes one unspent output together with its resolved
// color.  AssetID is empty for uncolored outputs.
type UnspentRecord struct {
	OutPoint      wire.OutPoint
	Address       string
	AssetAddress  string
	PkScript      []byte
	Amount        btcutil.Amount
	Confirmations int64
	AssetID       string
	AssetQuantity uint64
}

// DistributionRecord is the outcome of answering one inbound payment during
// a distribution run.  Payments too small to buy a single unit produce no
// record.  Result is nil in preview mode.
type DistributionRecord struct {
	OutPoint     wire.OutPoint
	InboundValue btcutil.Amount
	Units        uint64
	Collected    btcutil.Amount
	Change       btcutil.Amount
	Result       *TransactionResult
}

// addressStrings returns the plain and asset-aware encodings of the address
// a script pays to.  Non-standard scripts yield empty strings rather than
// an error so one odd output cannot fail a whole listing.
func (c *Controller) addressStrings(pkScript []byte) (string, string) {
	decoded, err := address.ExtractAddress(pkScript, c.params)
	if err != nil {
		return "", ""
	}
	pkh, ok := decoded.(*btcutil.AddressPubKeyHash)
	if !ok {
		return decoded.EncodeAddress(), ""
	}
	return pkh.EncodeAddress(), address.EncodeAssetAddress(pkh, c.params)
}

// Balance returns the bitcoin and asset holdings of the given address, or
// of every address in the provider wallet when addr is empty.
func (c *Controller) Balance(ctx context.Context, addr string,
	minConf int) ([]*BalanceRecord, error) {

	addrs, err := c.parseAddresses(addr)
	if err != nil {
		return nil, err
	}
	unspents, err := c.resolveUnspents(ctx, addrs, minConf, maxConfDefault)
	if err != nil {
		return nil, err
	}

	type holding struct {
		record *BalanceRecord
		assets map[string]*AssetBalance
	}
	byAddress := make(map[string]*holding)
	var order []string
	for _, unspent := range unspents {
		plain, assetAddr := c.addressStrings(unspent.Output.PkScript)
		h, ok := byAddress[plain]
		if !ok {
			h = &holding{
				record: &BalanceRecord{
					Address:      plain,
					AssetAddress: assetAddr,
				},
				assets: make(map[string]*AssetBalance),
			}
			byAddress[plain] = h
			order = append(order, plain)
		}
		h.record.Value += unspent.Output.Value

		if unspent.Output.AssetID == nil {
			continue
		}
		id := address.EncodeAssetID(*unspent.Output.AssetID, c.params)
		asset, ok := h.assets[id]
		if !ok {
			asset = &AssetBalance{AssetID: id}
			h.assets[id] = asset
			h.record.Assets = append(h.record.Assets, asset)
		}
		asset.Quantity += unspent.Output.AssetQuantity
	}

	sort.Strings(order)
	records := make([]*BalanceRecord, 0, len(order))
	for _, plain := range order {
		records = append(records, byAddress[plain].record)
	}
	return records, nil
}

// ListUnspent returns the unspent outputs of the given address, or of the
// whole provider wallet when addr is empty, each annotated with its
// resolved color.
func (c *Controller) ListUnspent(ctx context.Context, addr string,
	minConf int) ([]*UnspentRecord, error) {

	addrs, err := c.parseAddresses(addr)
	if err != nil {
		return nil, err
	}
	unspents, err := c.resolveUnspents(ctx, addrs, minConf, maxConfDefault)
	if err != nil {
		return nil, err
	}

	records := make([]*UnspentRecord, 0, len(unspents))
	for _, unspent := range unspents {
		plain, assetAddr := c.addressStrings(unspent.Output.PkScript)
		record := &UnspentRecord{
			OutPoint:      unspent.OutPoint,
			Address:       plain,
			AssetAddress:  assetAddr,
			PkScript:      unspent.Output.PkScript,
			Amount:        unspent.Output.Value,
			Confirmations: unspent.Confirmations,
		}
		if unspent.Output.AssetID != nil {
			record.AssetID = address.EncodeAssetID(
				*unspent.Output.AssetID, c.params)
			record.AssetQuantity = unspent.Output.AssetQuantity
		}
		records = append(records, record)
	}
	return records, nil
}

// SendBitcoin builds a transaction sending amount satoshis from the
// address's unspent outputs to the recipient, with change back to the
// sender, and carries it through the requested mode.
func (c *Controller) SendBitcoin(ctx context.Context, from string,
	amount btcutil.Amount, to string, fee btcutil.Amount,
	mode Mode) (*TransactionResult, error) {

	if from == "" {
		return nil, usageErrorf("a source address is required")
	}
	if amount <= 0 {
		return nil, usageErrorf("amount must be positive")
	}
	toScript, err := c.scriptFor(to)
	if err != nil {
		return nil, err
	}
	changeScript, err := c.scriptFor(from)
	if err != nil {
		return nil, err
	}
	addrs, err := c.parseAddresses(from)
	if err != nil {
		return nil, err
	}

	unspents, err := c.resolveUnspents(ctx, addrs, 1, maxConfDefault)
	if err != nil {
		return nil, err
	}

	tx, err := c.builder.TransferBitcoin(&txbuilder.TransferParameters{
		UnspentOutputs: unspents,
		ToScript:       toScript,
		ChangeScript:   changeScript,
		Amount:         uint64(amount),
	}, c.feeOrDefault(fee))
	if err != nil {
		return nil, err
	}

	log.Tracef("Built bitcoin transfer: %v", newLogClosure(func() string {
		return spew.Sdump(tx)
	}))
	return c.completeTransaction(ctx, tx, mode)
}

// SendAsset builds a transaction sending asset units from the address's
// unspent outputs to the recipient, which must be given in its asset-aware
// form, and carries it through the requested mode.
func (c *Controller) SendAsset(ctx context.Context, from, assetID string,
	amount uint64, to string, fee btcutil.Amount,
	mode Mode) (*TransactionResult, error) {

	if from == "" {
		return nil, usageErrorf("a source address is required")
	}
	if amount == 0 {
		return nil, usageErrorf("asset quantity must be positive")
	}
	id, err := address.DecodeAssetID(assetID, c.params)
	if err != nil {
		return nil, usageErrorf("invalid asset ID %q: %v", assetID, err)
	}

	toAddr, isAssetAddr, err := address.DecodeAddress(to, c.params)
	if err != nil {
		return nil, usageErrorf("invalid address %q: %v", to, err)
	}
	if !isAssetAddr {
		return nil, usageErrorf("recipient %q is not an asset "+
			"address: sending assets to a plain address risks an "+
			"unaware wallet destroying them", to)
	}
	toScript, err := address.PayToAddrScript(toAddr)
	if err != nil {
		return nil, err
	}
	changeScript, err := c.scriptFor(from)
	if err != nil {
		return nil, err
	}
	addrs, err := c.parseAddresses(from)
	if err != nil {
		return nil, err
	}

	unspents, err := c.resolveUnspents(ctx, addrs, 1, maxConfDefault)
	if err != nil {
		return nil, err
	}

	tx, err := c.builder.TransferAssets(id, &txbuilder.TransferParameters{
		UnspentOutputs: unspents,
		ToScript:       toScript,
		ChangeScript:   changeScript,
		Amount:         amount,
	}, changeScript, c.feeOrDefault(fee))
	if err != nil {
		return nil, err
	}

	log.Tracef("Built asset transfer: %v", newLogClosure(func() string {
		return spew.Sdump(tx)
	}))
	return c.completeTransaction(ctx, tx, mode)
}

// IssueAsset builds a transaction issuing amount new asset units from the
// address.  The issued units are sent to the to address when given and back
// to the issuer otherwise; the asset ID is determined by the script of the
// first spent output.
func (c *Controller) IssueAsset(ctx context.Context, from string,
	amount uint64, to string, metadata []byte, fee btcutil.Amount,
	mode Mode) (*TransactionResult, error) {

	if from == "" {
		return nil, usageErrorf("an issuing address is required")
	}
	if amount == 0 {
		return nil, usageErrorf("issuance quantity must be positive")
	}
	if amount > protocol.MaxAssetQuantity {
		return nil, usageErrorf("issuance quantity %d exceeds the "+
			"maximum of %d", amount, protocol.MaxAssetQuantity)
	}
	if to == "" {
		to = from
	}
	toScript, err := c.scriptFor(to)
	if err != nil {
		return nil, err
	}
	changeScript, err := c.scriptFor(from)
	if err != nil {
		return nil, err
	}
	addrs, err := c.parseAddresses(from)
	if err != nil {
		return nil, err
	}

	unspents, err := c.resolveUnspents(ctx, addrs, 1, maxConfDefault)
	if err != nil {
		return nil, err
	}

	tx, err := c.builder.Issue(&txbuilder.TransferParameters{
		UnspentOutputs: unspents,
		ToScript:       toScript,
		ChangeScript:   changeScript,
		Amount:         amount,
	}, metadata, c.feeOrDefault(fee))
	if err != nil {
		return nil, err
	}

	log.Tracef("Built issuance: %v", newLogClosure(func() string {
		return spew.Sdump(tx)
	}))
	return c.completeTransaction(ctx, tx, mode)
}

// Distribute answers every qualifying inbound payment to the address with
// its own issuance transaction: units are priced at price satoshis each,
// the collected satoshis forward to the forward address, and the remainder
// returns to the payer, identified by the first output script of the
// transaction that funded the payment.  When preview is true the
// transactions are calculated but not built.
func (c *Controller) Distribute(ctx context.Context, from, forward string,
	price btcutil.Amount, metadata []byte, fee btcutil.Amount, mode Mode,
	preview bool) ([]*DistributionRecord, error) {

	if from == "" {
		return nil, usageErrorf("a distributing address is required")
	}
	if price <= 0 {
		return nil, usageErrorf("unit price must be positive")
	}
	forwardScript, err := c.scriptFor(forward)
	if err != nil {
		return nil, err
	}
	addrs, err := c.parseAddresses(from)
	if err != nil {
		return nil, err
	}

	unspents, err := c.resolveUnspents(ctx, addrs, 1, maxConfDefault)
	if err != nil {
		return nil, err
	}

	effectiveFee := c.feeOrDefault(fee)
	records := make([]*DistributionRecord, 0, len(unspents))
	for _, unspent := range unspents {
		// Only plain bitcoin payments buy units.  Colored outputs
		// sitting on the distribution address are left alone.
		if unspent.Output.Type != protocol.OutputUncolored {
			continue
		}

		funding, err := c.provider.GetTransaction(ctx,
			&unspent.OutPoint.Hash)
		if err != nil {
			return nil, err
		}
		if len(funding.TxOut) == 0 {
			continue
		}
		payerScript := funding.TxOut[0].PkScript

		tx, dist, err := c.builder.Distribute(unspent, payerScript,
			forwardScript, price, effectiveFee, metadata)
		if err != nil {
			return nil, err
		}

		// Payments too small to buy a single unit do not qualify.
		if dist.Units == 0 {
			log.Debugf("Skipping %v: %v does not cover one unit",
				unspent.OutPoint, unspent.Output.Value)
			continue
		}

		record := &DistributionRecord{
			OutPoint:     unspent.OutPoint,
			InboundValue: unspent.Output.Value,
			Units:        dist.Units,
			Collected:    dist.Collected,
			Change:       dist.Change,
		}
		if !preview {
			record.Result, err = c.completeTransaction(ctx, tx,
				mode)
			if err != nil {
				return nil, err
			}
		}
		records = append(records, record)
	}
	return records, nil
}
