package types

import (
	"github.com/banky/go-tomo/constants"
	"github.com/ethereum/go-ethereum/common"
)

// Network is the addressing every sub-client shares. It is passed by value
// and never mutated after construction.
type Network struct {
	Endpoint                   string
	ChainID                    int64
	ValidatorAddress           common.Address
	RelayerRegistrationAddress common.Address
	LendingRegistrationAddress common.Address
	IssuerAddress              common.Address
	ListingAddress             common.Address
}

// DefaultNetwork returns the well-known addresses for chainID. Unknown chain
// ids fall back to the testnet addresses.
func DefaultNetwork(endpoint string, chainID int64) Network {
	addrs, ok := constants.DefaultContractAddresses[chainID]
	if !ok {
		addrs = constants.DefaultContractAddresses[constants.TESTNET_CHAIN_ID]
	}

	return Network{
		Endpoint:                   endpoint,
		ChainID:                    chainID,
		ValidatorAddress:           addrs.Validator,
		RelayerRegistrationAddress: addrs.RelayerRegistration,
		LendingRegistrationAddress: addrs.LendingRegistration,
		IssuerAddress:              addrs.Issuer,
		ListingAddress:             addrs.Listing,
	}
}

// NetworkInformation is the posv_networkInformation result
type NetworkInformation struct {
	NetworkID                  Quantity       `json:"NetworkId"`
	TomoXListingAddress        common.Address `json:"TomoXListingAddress"`
	TomoZAddress               common.Address `json:"TomoZAddress"`
	RelayerRegistrationAddress common.Address `json:"RelayerRegistrationAddress"`
	LendingAddress             common.Address `json:"LendingAddress"`
}

// WithInformation returns a copy of n with every non-zero address and chain
// id from info applied.
func (n Network) WithInformation(info NetworkInformation) Network {
	out := n
	if id := info.NetworkID.Uint64(); id != 0 {
		out.ChainID = int64(id)
	}
	if info.TomoZAddress != constants.ZERO_ADDRESS {
		out.IssuerAddress = info.TomoZAddress
	}
	if info.TomoXListingAddress != constants.ZERO_ADDRESS {
		out.ListingAddress = info.TomoXListingAddress
	}
	if info.RelayerRegistrationAddress != constants.ZERO_ADDRESS {
		out.RelayerRegistrationAddress = info.RelayerRegistrationAddress
	}
	if info.LendingAddress != constants.ZERO_ADDRESS {
		out.LendingRegistrationAddress = info.LendingAddress
	}
	return out
}
