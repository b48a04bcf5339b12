// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package controller

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/openassets/colorcore/address"
	"github.com/openassets/colorcore/cache"
	"github.com/openassets/colorcore/chain"
	"github.com/openassets/colorcore/netparams"
	"github.com/openassets/colorcore/protocol"
)

// fakeProvider serves canned chain data and records signing and broadcast
// activity.
type fakeProvider struct {
	txs      map[chainhash.Hash]*wire.MsgTx
	unspents []*chain.Unspent

	signed    int
	broadcast []*wire.MsgTx
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{txs: make(map[chainhash.Hash]*wire.MsgTx)}
}

func (p *fakeProvider) addTx(tx *wire.MsgTx) chainhash.Hash {
	hash := tx.TxHash()
	p.txs[hash] = tx
	return hash
}

func (p *fakeProvider) addUnspent(hash chainhash.Hash, index uint32,
	confirmations int64) {

	p.unspents = append(p.unspents, &chain.Unspent{
		OutPoint:      wire.OutPoint{Hash: hash, Index: index},
		Confirmations: confirmations,
	})
}

func (p *fakeProvider) ListUnspent(_ context.Context, _ []btcutil.Address,
	minConf, _ int) ([]*chain.Unspent, error) {

	var results []*chain.Unspent
	for _, unspent := range p.unspents {
		if unspent.Confirmations >= int64(minConf) {
			results = append(results, unspent)
		}
	}
	return results, nil
}

func (p *fakeProvider) GetTransaction(_ context.Context,
	hash *chainhash.Hash) (*wire.MsgTx, error) {

	tx, ok := p.txs[*hash]
	if !ok {
		return nil, chain.ErrTransactionNotFound
	}
	return tx, nil
}

func (p *fakeProvider) SignTransaction(_ context.Context,
	tx *wire.MsgTx) (*wire.MsgTx, bool, error) {

	p.signed++
	return tx, true, nil
}

func (p *fakeProvider) SendTransaction(_ context.Context,
	tx *wire.MsgTx) (*chainhash.Hash, error) {

	p.broadcast = append(p.broadcast, tx)
	hash := tx.TxHash()
	return &hash, nil
}

// testEnv binds a controller to a fake provider over fresh test addresses.
type testEnv struct {
	params   *netparams.Params
	provider *fakeProvider
	ctl      *Controller

	addr1, addr2 *btcutil.AddressPubKeyHash
	script1      []byte
	script2      []byte
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	params := &netparams.MainNetParams

	hash1 := make([]byte, 20)
	hash1[0] = 1
	addr1, err := btcutil.NewAddressPubKeyHash(hash1, params.Params)
	require.NoError(t, err)
	script1, err := txscript.PayToAddrScript(addr1)
	require.NoError(t, err)

	hash2 := make([]byte, 20)
	hash2[0] = 2
	addr2, err := btcutil.NewAddressPubKeyHash(hash2, params.Params)
	require.NoError(t, err)
	script2, err := txscript.PayToAddrScript(addr2)
	require.NoError(t, err)

	provider := newFakeProvider()
	return &testEnv{
		params:   params,
		provider: provider,
		ctl:      New(params, provider, cache.NewMemoryCache()),
		addr1:    addr1,
		addr2:    addr2,
		script1:  script1,
		script2:  script2,
	}
}

// fundGenesis adds a coinbase-like transaction paying value to script1 and
// registers its first output as unspent.
func (env *testEnv) fundGenesis(value int64) chainhash.Hash {
	tx := wire.NewMsgTx(wire.TxVersion)
	prev := wire.OutPoint{Index: 0xffffffff}
	tx.AddTxIn(wire.NewTxIn(&prev, nil, nil))
	tx.AddTxOut(wire.NewTxOut(value, env.script1))
	hash := env.provider.addTx(tx)
	env.provider.addUnspent(hash, 0, 6)
	return hash
}

func markerTxOut(t *testing.T, quantities []uint64) *wire.TxOut {
	t.Helper()
	marker := &protocol.MarkerOutput{AssetQuantities: quantities}
	script, err := marker.PkScript()
	require.NoError(t, err)
	return wire.NewTxOut(0, script)
}

func TestBalance(t *testing.T) {
	env := newTestEnv(t)
	env.fundGenesis(100000)

	records, err := env.ctl.Balance(context.Background(),
		env.addr1.EncodeAddress(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, env.addr1.EncodeAddress(), records[0].Address)
	require.Equal(t, address.EncodeAssetAddress(env.addr1, env.params),
		records[0].AssetAddress)
	require.Equal(t, btcutil.Amount(100000), records[0].Value)
	require.Empty(t, records[0].Assets)
}

func TestBalanceWithAssets(t *testing.T) {
	env := newTestEnv(t)
	genesisHash := env.fundGenesis(100000)

	// Issue 50 units to addr1 and register both resulting outputs as
	// unspent.
	issue := wire.NewMsgTx(wire.TxVersion)
	prev := wire.OutPoint{Hash: genesisHash, Index: 0}
	issue.AddTxIn(wire.NewTxIn(&prev, nil, nil))
	issue.AddTxOut(wire.NewTxOut(600, env.script1))
	issue.AddTxOut(markerTxOut(t, []uint64{50}))
	issue.AddTxOut(wire.NewTxOut(89400, env.script1))
	issueHash := env.provider.addTx(issue)

	env.provider.unspents = nil
	env.provider.addUnspent(issueHash, 0, 3)
	env.provider.addUnspent(issueHash, 2, 3)

	records, err := env.ctl.Balance(context.Background(),
		env.addr1.EncodeAddress(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, btcutil.Amount(90000), records[0].Value)
	require.Len(t, records[0].Assets, 1)

	wantID := address.EncodeAssetID(protocol.NewAssetID(env.script1),
		env.params)
	require.Equal(t, wantID, records[0].Assets[0].AssetID)
	require.EqualValues(t, 50, records[0].Assets[0].Quantity)
}

func TestListUnspent(t *testing.T) {
	env := newTestEnv(t)
	env.fundGenesis(100000)

	records, err := env.ctl.ListUnspent(context.Background(),
		env.addr1.EncodeAddress(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, env.addr1.EncodeAddress(), records[0].Address)
	require.Equal(t, btcutil.Amount(100000), records[0].Amount)
	require.EqualValues(t, 6, records[0].Confirmations)
	require.Empty(t, records[0].AssetID)
}

func TestSendBitcoinUnsigned(t *testing.T) {
	env := newTestEnv(t)
	env.fundGenesis(100000)

	result, err := env.ctl.SendBitcoin(context.Background(),
		env.addr1.EncodeAddress(), 20000, env.addr2.EncodeAddress(),
		-1, ModeUnsigned)
	require.NoError(t, err)
	require.Nil(t, result.Hash)
	require.Zero(t, env.provider.signed)

	require.Len(t, result.Tx.TxOut, 2)
	require.EqualValues(t, 20000, result.Tx.TxOut[0].Value)
	require.Equal(t, env.script2, result.Tx.TxOut[0].PkScript)
	require.EqualValues(t, 70000, result.Tx.TxOut[1].Value)
	require.Equal(t, env.script1, result.Tx.TxOut[1].PkScript)
}

func TestSendBitcoinBroadcast(t *testing.T) {
	env := newTestEnv(t)
	env.fundGenesis(100000)

	result, err := env.ctl.SendBitcoin(context.Background(),
		env.addr1.EncodeAddress(), 20000, env.addr2.EncodeAddress(),
		-1, ModeBroadcast)
	require.NoError(t, err)
	require.NotNil(t, result.Hash)
	require.Equal(t, 1, env.provider.signed)
	require.Len(t, env.provider.broadcast, 1)
}

func TestSendBitcoinValidation(t *testing.T) {
	env := newTestEnv(t)

	var usageErr UsageError
	_, err := env.ctl.SendBitcoin(context.Background(), "", 20000,
		env.addr2.EncodeAddress(), -1, ModeUnsigned)
	require.ErrorAs(t, err, &usageErr)

	_, err = env.ctl.SendBitcoin(context.Background(),
		env.addr1.EncodeAddress(), 0, env.addr2.EncodeAddress(),
		-1, ModeUnsigned)
	require.ErrorAs(t, err, &usageErr)
}

func TestIssueAsset(t *testing.T) {
	env := newTestEnv(t)
	env.fundGenesis(100000)

	result, err := env.ctl.IssueAsset(context.Background(),
		env.addr1.EncodeAddress(), 50, "", []byte("meta"), -1,
		ModeUnsigned)
	require.NoError(t, err)

	require.Len(t, result.Tx.TxOut, 3)
	require.EqualValues(t, 600, result.Tx.TxOut[0].Value)
	require.Equal(t, env.script1, result.Tx.TxOut[0].PkScript)

	payload, ok := protocol.ParseMarkerScript(result.Tx.TxOut[1].PkScript)
	require.True(t, ok)
	marker, err := protocol.ParseMarkerPayload(payload)
	require.NoError(t, err)
	require.Equal(t, []uint64{50}, marker.AssetQuantities)
	require.Equal(t, "meta", string(marker.Metadata))
}

func TestSendAsset(t *testing.T) {
	env := newTestEnv(t)
	genesisHash := env.fundGenesis(100000)

	issue := wire.NewMsgTx(wire.TxVersion)
	prev := wire.OutPoint{Hash: genesisHash, Index: 0}
	issue.AddTxIn(wire.NewTxIn(&prev, nil, nil))
	issue.AddTxOut(wire.NewTxOut(600, env.script1))
	issue.AddTxOut(markerTxOut(t, []uint64{50}))
	issue.AddTxOut(wire.NewTxOut(89400, env.script1))
	issueHash := env.provider.addTx(issue)

	env.provider.unspents = nil
	env.provider.addUnspent(issueHash, 0, 3)
	env.provider.addUnspent(issueHash, 2, 3)

	assetID := address.EncodeAssetID(protocol.NewAssetID(env.script1),
		env.params)
	assetAddr := address.EncodeAssetAddress(env.addr2, env.params)

	result, err := env.ctl.SendAsset(context.Background(),
		env.addr1.EncodeAddress(), assetID, 30, assetAddr, -1,
		ModeUnsigned)
	require.NoError(t, err)

	// Marker first, recipient units, 20 units of asset change, bitcoin
	// change.
	payload, ok := protocol.ParseMarkerScript(result.Tx.TxOut[0].PkScript)
	require.True(t, ok)
	marker, err := protocol.ParseMarkerPayload(payload)
	require.NoError(t, err)
	require.Equal(t, []uint64{30, 20}, marker.AssetQuantities)
	require.Equal(t, env.script2, result.Tx.TxOut[1].PkScript)
}

func TestSendAssetRejectsPlainAddress(t *testing.T) {
	env := newTestEnv(t)
	env.fundGenesis(100000)

	assetID := address.EncodeAssetID(protocol.NewAssetID(env.script1),
		env.params)

	var usageErr UsageError
	_, err := env.ctl.SendAsset(context.Background(),
		env.addr1.EncodeAddress(), assetID, 30,
		env.addr2.EncodeAddress(), -1, ModeUnsigned)
	require.ErrorAs(t, err, &usageErr)
}

func TestDistribute(t *testing.T) {
	env := newTestEnv(t)

	// The payer funds the distribution address with 61000 satoshis; the
	// payment transaction's first output identifies the payer.
	payment := wire.NewMsgTx(wire.TxVersion)
	prev := wire.OutPoint{Index: 0xffffffff}
	payment.AddTxIn(wire.NewTxIn(&prev, nil, nil))
	payment.AddTxOut(wire.NewTxOut(5000, env.script2))
	payment.AddTxOut(wire.NewTxOut(61000, env.script1))
	paymentHash := env.provider.addTx(payment)
	env.provider.addUnspent(paymentHash, 1, 3)

	records, err := env.ctl.Distribute(context.Background(),
		env.addr1.EncodeAddress(), env.addr2.EncodeAddress(),
		20000, nil, -1, ModeUnsigned, false)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// 61000 - 10000 fee - 600 dust leaves 50400: two units at 20000.
	require.EqualValues(t, 2, records[0].Units)
	require.Equal(t, btcutil.Amount(40000), records[0].Collected)
	require.Equal(t, btcutil.Amount(11000), records[0].Change)

	tx := records[0].Result.Tx
	require.Len(t, tx.TxOut, 3)
	require.EqualValues(t, 11000, tx.TxOut[0].Value)
	require.Equal(t, env.script2, tx.TxOut[0].PkScript)
	require.EqualValues(t, 40000, tx.TxOut[2].Value)
	require.Equal(t, env.script2, tx.TxOut[2].PkScript)
}

func TestDistributeSkipsSmallPayments(t *testing.T) {
	env := newTestEnv(t)

	// 15000 satoshis cannot buy a unit once the fee and dust are paid, so
	// the payment yields no record and no transaction.
	payment := wire.NewMsgTx(wire.TxVersion)
	prev := wire.OutPoint{Index: 0xffffffff}
	payment.AddTxIn(wire.NewTxIn(&prev, nil, nil))
	payment.AddTxOut(wire.NewTxOut(5000, env.script2))
	payment.AddTxOut(wire.NewTxOut(15000, env.script1))
	paymentHash := env.provider.addTx(payment)
	env.provider.addUnspent(paymentHash, 1, 3)

	records, err := env.ctl.Distribute(context.Background(),
		env.addr1.EncodeAddress(), env.addr2.EncodeAddress(),
		20000, nil, -1, ModeBroadcast, false)
	require.NoError(t, err)
	require.Empty(t, records)
	require.Zero(t, env.provider.signed)
	require.Empty(t, env.provider.broadcast)
}

func TestDistributePreview(t *testing.T) {
	env := newTestEnv(t)

	payment := wire.NewMsgTx(wire.TxVersion)
	prev := wire.OutPoint{Index: 0xffffffff}
	payment.AddTxIn(wire.NewTxIn(&prev, nil, nil))
	payment.AddTxOut(wire.NewTxOut(5000, env.script2))
	payment.AddTxOut(wire.NewTxOut(61000, env.script1))
	paymentHash := env.provider.addTx(payment)
	env.provider.addUnspent(paymentHash, 1, 3)

	records, err := env.ctl.Distribute(context.Background(),
		env.addr1.EncodeAddress(), env.addr2.EncodeAddress(),
		20000, nil, -1, ModeUnsigned, true)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.EqualValues(t, 2, records[0].Units)
	require.Nil(t, records[0].Result)
	require.Zero(t, env.provider.signed)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeBroadcast, mode)

	for _, valid := range []string{"unsigned", "signed", "broadcast"} {
		mode, err := ParseMode(valid)
		require.NoError(t, err)
		require.Equal(t, Mode(valid), mode)
	}

	_, err = ParseMode("dryrun")
	var usageErr UsageError
	require.ErrorAs(t, err, &usageErr)
}
