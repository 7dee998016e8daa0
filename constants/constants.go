package constants

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const MAINNET_RPC_URL = "https://rpc.tomochain.com"
const TESTNET_RPC_URL = "https://rpc.testnet.tomochain.com"
const LOCAL_RPC_URL = "http://localhost:8545"

const MAINNET_CHAIN_ID = 88
const TESTNET_CHAIN_ID = 89

var ZERO_ADDRESS = common.Address{}

// NATIVE_TOKEN_ADDRESS is the pseudo address the exchange uses for TOMO itself
var NATIVE_TOKEN_ADDRESS = common.HexToAddress("0x0000000000000000000000000000000000000001")

const NATIVE_DECIMALS = 18

// Contract addresses a network starts with before posv_networkInformation
// overrides them.
type ContractAddresses struct {
	Validator           common.Address
	RelayerRegistration common.Address
	LendingRegistration common.Address
	Issuer              common.Address
	Listing             common.Address
}

var DefaultContractAddresses = map[int64]ContractAddresses{
	MAINNET_CHAIN_ID: {
		Validator:           common.HexToAddress("0x0000000000000000000000000000000000000088"),
		RelayerRegistration: common.HexToAddress("0x16c63b79f9C8784168103C0b74E6A59EC2de4a02"),
		LendingRegistration: common.HexToAddress("0x7d761afd7ff65a79e4173897594a194e3c506e57"),
		Issuer:              common.HexToAddress("0x8c0faeb5C6bEd2129b8674F262Fd45c4e9468bee"),
		Listing:             common.HexToAddress("0xDE34dD0f536170993E8CFF639DdFfCF1A85D3E53"),
	},
	TESTNET_CHAIN_ID: {
		Validator:           common.HexToAddress("0x0000000000000000000000000000000000000088"),
		RelayerRegistration: common.HexToAddress("0xA1996F69f47ba14Cb7f661010A7C31974277958c"),
		LendingRegistration: common.HexToAddress("0x28d7fC2Cf5c18203aaCD7459EFC6Af0643C97bE8"),
		Issuer:              common.HexToAddress("0x0E2C88753131CE01c7551B726b28BFD04e44003F"),
		Listing:             common.HexToAddress("0x14B2Bf043b9c31827A472CE4F94294fE9a6277e0"),
	},
}

// Gas limits per contract family
const VALIDATOR_GAS_LIMIT = 2_000_000
const RELAYER_GAS_LIMIT = 4_000_000
const ISSUER_GAS_LIMIT = 2_000_000
const TRANSFER_GAS_LIMIT = 21_000

// RELAYER_GAS_PRICE is the fixed gas price relayer management transactions use
var RELAYER_GAS_PRICE = big.NewInt(250_000_000_000_000)

// TRANSFER_GAS_PRICE is the fixed gas price for native transfers
var TRANSFER_GAS_PRICE = big.NewInt(250_000_000)

// TOKEN_TRANSFER_GAS_PRICE is the fixed gas price for TRC21 transfers
var TOKEN_TRANSFER_GAS_PRICE = big.NewInt(250_000_000_000_000)

// Protocol minimums, in whole TOMO
const MIN_CANDIDATE_STAKE = 50_000
const MIN_ISSUER_DEPOSIT = 10
const MIN_LISTING_FEE = 1_000

// Metadata reported for the native token, which has no TRC21 contract
const NATIVE_TOKEN_NAME = "TomoChain"
const NATIVE_TOKEN_SYMBOL = "TOMO"
const NATIVE_TOKEN_SUPPLY = 100_000_000

// MAX_TRADE_FEE is the highest relayer trade fee in percent
const MAX_TRADE_FEE = 10

// BASIS_POINTS converts a percentage into the on-chain fee unit
const BASIS_POINTS = 100

// LENDING_INTEREST_DECIMALS scales an interest percentage before hashing
const LENDING_INTEREST_DECIMALS = 8

// MAX_CONCURRENT_QUERIES bounds fan-out reads such as order tree resolution
const MAX_CONCURRENT_QUERIES = 8

const RECEIPT_POLL_INTERVAL = 2 * time.Second
const RECEIPT_TIMEOUT = 120 * time.Second
