// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// recordingProvider is a Provider stub that records which methods were
// called on it.
type recordingProvider struct {
	calls []string
}

func (p *recordingProvider) ListUnspent(_ context.Context,
	_ []btcutil.Address, _, _ int) ([]*Unspent, error) {

	p.calls = append(p.calls, "ListUnspent")
	return nil, nil
}

func (p *recordingProvider) GetTransaction(_ context.Context,
	_ *chainhash.Hash) (*wire.MsgTx, error) {

	p.calls = append(p.calls, "GetTransaction")
	return wire.NewMsgTx(wire.TxVersion), nil
}

func (p *recordingProvider) SignTransaction(_ context.Context,
	tx *wire.MsgTx) (*wire.MsgTx, bool, error) {

	p.calls = append(p.calls, "SignTransaction")
	return tx, true, nil
}

func (p *recordingProvider) SendTransaction(_ context.Context,
	tx *wire.MsgTx) (*chainhash.Hash, error) {

	p.calls = append(p.calls, "SendTransaction")
	hash := tx.TxHash()
	return &hash, nil
}

func TestFallbackProviderRouting(t *testing.T) {
	primary := &recordingProvider{}
	wallet := &recordingProvider{}
	provider := NewFallbackProvider(primary, wallet)
	ctx := context.Background()

	addr, err := btcutil.NewAddressPubKeyHash(make([]byte, 20),
		&chaincfg.MainNetParams)
	require.NoError(t, err)

	// Address-scoped unspent queries and transaction lookups go to the
	// primary.
	_, err = provider.ListUnspent(ctx, []btcutil.Address{addr}, 1, 99)
	require.NoError(t, err)
	_, err = provider.GetTransaction(ctx, &chainhash.Hash{})
	require.NoError(t, err)
	require.Equal(t, []string{"ListUnspent", "GetTransaction"},
		primary.calls)
	require.Empty(t, wallet.calls)

	// Wallet-scoped queries, signing and broadcasting go to the wallet.
	_, err = provider.ListUnspent(ctx, nil, 1, 99)
	require.NoError(t, err)
	_, _, err = provider.SignTransaction(ctx, wire.NewMsgTx(wire.TxVersion))
	require.NoError(t, err)
	_, err = provider.SendTransaction(ctx, wire.NewMsgTx(wire.TxVersion))
	require.NoError(t, err)
	require.Equal(t,
		[]string{"ListUnspent", "SignTransaction", "SendTransaction"},
		wallet.calls)
	require.Equal(t, []string{"ListUnspent", "GetTransaction"},
		primary.calls)
}
