// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTestNet4Genesis verifies the hand-assembled testnet4 genesis block
// against the published chain.
// https://mempool.space/testnet4/block/00000000da84f2bafbbc53dee25a72ae507ff4914b867c565be350b0da8bf043
func TestTestNet4Genesis(t *testing.T) {
	require.Equal(t,
		"00000000da84f2bafbbc53dee25a72ae507ff4914b867c565be350b0da8bf043",
		testNet4GenesisBlock.BlockHash().String())
	require.Equal(t,
		"7aa0a7ae1e223414cb807e40cd57e667b718e42aaf9306db9102fe28912b7b4e",
		testNet4GenesisBlock.Header.MerkleRoot.String())
}

func TestTestNet4Params(t *testing.T) {
	require.Equal(t, "testnet4", TestNet4Params.Name)
	require.Equal(t, TestNet4, TestNet4Params.Net)
	require.Equal(t, TestNet3Params.OANamespaceByte,
		TestNet4Params.OANamespaceByte)
	require.Equal(t, TestNet3Params.AssetIDVersionByte,
		TestNet4Params.AssetIDVersionByte)
}
