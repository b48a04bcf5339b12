// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"encoding/hex"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// TestNet4 is the wire magic of the test network (version 4), which btcd
// does not define yet.
const TestNet4 wire.BitcoinNet = 0x1c163f28

// TestNet4Params contains parameters specific to the test network
// (version 4).  The Open Assets values match testnet3: both networks share
// the testnet address encoding magics.
var TestNet4Params = Params{
	Params:             &testNet4ChainParams,
	RPCClientPort:      "48332",
	RPCServerPort:      "48380",
	OANamespaceByte:    19,
	AssetIDVersionByte: 115,
	DustLimit:          600,
	DefaultFee:         10000,
}

// testNet4ChainParams defines the chain configuration of the test network
// (version 4), filling the gap until btcd ships its own definition.
var testNet4ChainParams = chaincfg.Params{
	Name:        "testnet4",
	Net:         TestNet4,
	DefaultPort: "48333",
	DNSSeeds: []chaincfg.DNSSeed{
		{Host: "seed.testnet4.bitcoin.sprovoost.nl", HasFiltering: true},
		{Host: "seed.testnet4.wiz.biz", HasFiltering: true},
	},

	// Chain parameters.
	GenesisBlock:             &testNet4GenesisBlock,
	GenesisHash:              testNet4GenesisHash,
	PowLimit:                 testNet4PowLimit,
	PowLimitBits:             0x1d00ffff,
	BIP0034Height:            1,
	BIP0065Height:            1,
	BIP0066Height:            1,
	CoinbaseMaturity:         100,
	SubsidyReductionInterval: 210000,
	TargetTimespan:           time.Hour * 24 * 14,
	TargetTimePerBlock:       time.Minute * 10,
	RetargetAdjustmentFactor: 4,
	ReduceMinDifficulty:      true,
	MinDiffReductionTime:     time.Minute * 20,
	GenerateSupported:        false,

	Checkpoints: []chaincfg.Checkpoint{},

	RuleChangeActivationThreshold: 1512, // 75% of MinerConfirmationWindow
	MinerConfirmationWindow:       2016,
	Deployments: [chaincfg.DefinedDeployments]chaincfg.ConsensusDeployment{
		chaincfg.DeploymentTestDummy: {
			BitNumber: 28,
			DeploymentStarter: chaincfg.NewMedianTimeDeploymentStarter(
				time.Unix(1199145601, 0), // January 1, 2008 UTC
			),
			DeploymentEnder: chaincfg.NewMedianTimeDeploymentEnder(
				time.Unix(1230767999, 0), // December 31, 2008 UTC
			),
		},
		chaincfg.DeploymentTaproot: {
			BitNumber:           2,
			DeploymentStarter:   alwaysActiveStarter,
			DeploymentEnder:     alwaysActiveStarter,
			MinActivationHeight: 0,
		},
	},

	// Mempool parameters.
	RelayNonStdTxs: true,

	// Human-readable part for Bech32 encoded segwit addresses, as defined
	// in BIP 173.  Always tb for test networks.
	Bech32HRPSegwit: "tb",

	// Address encoding magics, shared with testnet3.
	PubKeyHashAddrID:        0x6f, // starts with m or n
	ScriptHashAddrID:        0xc4, // starts with 2
	WitnessPubKeyHashAddrID: 0x03, // starts with QW
	WitnessScriptHashAddrID: 0x28, // starts with T7n
	PrivateKeyID:            0xef, // starts with 9 (uncompressed) or c (compressed)

	// BIP32 hierarchical deterministic extended key magics.
	HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94}, // starts with tprv
	HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf}, // starts with tpub

	// BIP44 coin type used in the hierarchical deterministic path for
	// address generation.
	HDCoinType: 1,
}

// testNet4GenesisHash is the hash of the first block in the block chain for
// the test network (version 4).
var testNet4GenesisHash, _ = chainhash.NewHashFromStr(
	"00000000da84f2bafbbc53dee25a72ae507ff4914b867c565be350b0da8bf043")

// testNet4GenesisMerkleRoot is the hash of the first transaction in the
// genesis block for the test network (version 4).
var testNet4GenesisMerkleRoot, _ = chainhash.NewHashFromStr(
	"7aa0a7ae1e223414cb807e40cd57e667b718e42aaf9306db9102fe28912b7b4e")

// testNet4GenesisBlock defines the genesis block of the block chain which
// serves as the public transaction ledger for the test network (version 4).
var testNet4GenesisBlock = wire.MsgBlock{
	Header: wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainhash.Hash{},
		MerkleRoot: *testNet4GenesisMerkleRoot,
		Timestamp:  time.Unix(1714777860, 0),
		Bits:       0x1d00ffff,
		Nonce:      393743547,
	},
	Transactions: []*wire.MsgTx{&testNet4GenesisCoinbaseTx},
}

// testNet4GenesisCoinbaseTx is the coinbase transaction of the testnet4
// genesis block.
var testNet4GenesisCoinbaseTx = wire.MsgTx{
	Version: 1,
	TxIn: []*wire.TxIn{
		{
			PreviousOutPoint: wire.OutPoint{
				Hash:  chainhash.Hash{},
				Index: 0xffffffff,
			},
			SignatureScript: testNet4GenesisSigScript,
			Sequence:        0xffffffff,
		},
	},
	TxOut: []*wire.TxOut{
		{
			Value:    0x12a05f200,
			PkScript: testNet4GenesisPkScript,
		},
	},
	LockTime: 0,
}

var testNet4GenesisSigScript, _ = hex.DecodeString(
	"04ffff001d01044c4c30332f4d61792f32303234203030303030303030303030303030" +
		"303030303030316562643538633234343937306233616139643738336262303031" +
		"3031316662653865613865393865303065")

var testNet4GenesisPkScript, _ = hex.DecodeString(
	"21000000000000000000000000000000000000000000000000000000000000000000ac")

var testNet4PowLimit = new(big.Int).Sub(
	new(big.Int).Lsh(big.NewInt(1), 224), big.NewInt(1))

var alwaysActiveStarter = &alwaysStarted{}

// alwaysStarted reports every deployment window as open, used for rules
// active since the testnet4 genesis.
type alwaysStarted struct{}

func (a *alwaysStarted) HasStarted(*wire.BlockHeader) (bool, error) {
	return true, nil
}

func (a *alwaysStarted) HasEnded(*wire.BlockHeader) (bool, error) {
	return true, nil
}
