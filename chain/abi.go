package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABIs for the system contracts. Only the methods the clients call
// are listed.

const validatorABIJSON = `[
{"type":"function","name":"vote","stateMutability":"payable","inputs":[{"name":"_candidate","type":"address"}],"outputs":[]},
{"type":"function","name":"unvote","stateMutability":"nonpayable","inputs":[{"name":"_candidate","type":"address"},{"name":"_cap","type":"uint256"}],"outputs":[]},
{"type":"function","name":"propose","stateMutability":"payable","inputs":[{"name":"_candidate","type":"address"}],"outputs":[]},
{"type":"function","name":"resign","stateMutability":"nonpayable","inputs":[{"name":"_candidate","type":"address"}],"outputs":[]},
{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"_blockNumber","type":"uint256"},{"name":"_index","type":"uint256"}],"outputs":[]},
{"type":"function","name":"getWithdrawBlockNumbers","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256[]"}]},
{"type":"function","name":"getWithdrawCap","stateMutability":"view","inputs":[{"name":"_blockNumber","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const registrationABIJSON = `[
{"type":"function","name":"register","stateMutability":"payable","inputs":[{"name":"coinbase","type":"address"},{"name":"tradeFee","type":"uint16"},{"name":"fromTokens","type":"address[]"},{"name":"toTokens","type":"address[]"}],"outputs":[]},
{"type":"function","name":"update","stateMutability":"nonpayable","inputs":[{"name":"coinbase","type":"address"},{"name":"tradeFee","type":"uint16"},{"name":"fromTokens","type":"address[]"},{"name":"toTokens","type":"address[]"}],"outputs":[]},
{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"coinbase","type":"address"},{"name":"new_owner","type":"address"}],"outputs":[]},
{"type":"function","name":"resign","stateMutability":"nonpayable","inputs":[{"name":"coinbase","type":"address"}],"outputs":[]},
{"type":"function","name":"refund","stateMutability":"nonpayable","inputs":[{"name":"coinbase","type":"address"}],"outputs":[]},
{"type":"function","name":"depositMore","stateMutability":"payable","inputs":[{"name":"coinbase","type":"address"}],"outputs":[]},
{"type":"function","name":"listToken","stateMutability":"nonpayable","inputs":[{"name":"coinbase","type":"address"},{"name":"fromToken","type":"address"},{"name":"toToken","type":"address"}],"outputs":[]},
{"type":"function","name":"deListToken","stateMutability":"nonpayable","inputs":[{"name":"coinbase","type":"address"},{"name":"fromToken","type":"address"},{"name":"toToken","type":"address"}],"outputs":[]},
{"type":"function","name":"getRelayerByCoinbase","stateMutability":"view","inputs":[{"name":"coinbase","type":"address"}],"outputs":[{"name":"","type":"uint256"},{"name":"","type":"address"},{"name":"","type":"uint256"},{"name":"","type":"uint16"},{"name":"","type":"address[]"},{"name":"","type":"address[]"}]},
{"type":"function","name":"RESIGN_REQUESTS","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"RelayerCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"ActiveRelayerCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"RELAYER_COINBASES","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
]`

const lendingRegistrationABIJSON = `[
{"type":"function","name":"update","stateMutability":"nonpayable","inputs":[{"name":"coinbase","type":"address"},{"name":"tradeFee","type":"uint16"},{"name":"baseTokens","type":"address[]"},{"name":"terms","type":"uint256[]"},{"name":"collaterals","type":"address[]"}],"outputs":[]},
{"type":"function","name":"getLendingRelayerByCoinbase","stateMutability":"view","inputs":[{"name":"coinbase","type":"address"}],"outputs":[{"name":"","type":"uint16"},{"name":"","type":"address[]"},{"name":"","type":"uint256[]"},{"name":"","type":"address[]"}]},
{"type":"function","name":"addILOCollateral","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"depositRate","type":"uint256"},{"name":"liquidationRate","type":"uint256"},{"name":"recallRate","type":"uint256"}],"outputs":[]},
{"type":"function","name":"setCollateralPrice","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"lendingToken","type":"address"},{"name":"price","type":"uint256"}],"outputs":[]},
{"type":"function","name":"COLLATERAL_LIST","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"depositRate","type":"uint256"},{"name":"liquidationRate","type":"uint256"},{"name":"recallRate","type":"uint256"}]},
{"type":"function","name":"getCollateralPrice","stateMutability":"view","inputs":[{"name":"token","type":"address"},{"name":"lendingToken","type":"address"}],"outputs":[{"name":"","type":"uint256"},{"name":"","type":"uint256"}]}
]`

const issuerABIJSON = `[
{"type":"function","name":"apply","stateMutability":"payable","inputs":[{"name":"token","type":"address"}],"outputs":[]},
{"type":"function","name":"charge","stateMutability":"payable","inputs":[{"name":"token","type":"address"}],"outputs":[]},
{"type":"function","name":"tokens","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]}
]`

const listingABIJSON = `[
{"type":"function","name":"apply","stateMutability":"payable","inputs":[{"name":"token","type":"address"}],"outputs":[]},
{"type":"function","name":"tokens","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]}
]`

const trc21ABIJSON = `[
{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"issuer","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"setMinFee","stateMutability":"nonpayable","inputs":[{"name":"value","type":"uint256"}],"outputs":[]},
{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"burn","stateMutability":"nonpayable","inputs":[{"name":"value","type":"uint256"}],"outputs":[]}
]`

var (
	ValidatorABI           = mustParseABI("validator", validatorABIJSON)
	RegistrationABI        = mustParseABI("registration", registrationABIJSON)
	LendingRegistrationABI = mustParseABI("lending registration", lendingRegistrationABIJSON)
	IssuerABI              = mustParseABI("issuer", issuerABIJSON)
	ListingABI             = mustParseABI("listing", listingABIJSON)
	TRC21ABI               = mustParseABI("TRC21", trc21ABIJSON)
)

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("failed to parse " + name + " ABI: " + err.Error())
	}
	return parsed
}
