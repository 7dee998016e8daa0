package types

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/banky/go-tomo/errs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account is the credential every operation signs with. Address is the
// coinbase derived from PrivateKey.
type Account struct {
	PrivateKey *ecdsa.PrivateKey
	Address    common.Address
}

// NewAccount derives an account from a hex encoded private key, with or
// without the 0x prefix.
func NewAccount(hexKey string) (Account, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return Account{}, fmt.Errorf("%w: invalid private key: %w", errs.ErrSigning, err)
	}
	return AccountFromKey(key), nil
}

// NewRandomAccount generates a fresh key
func NewRandomAccount() (Account, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return Account{}, fmt.Errorf("failed to generate key: %w", err)
	}
	return AccountFromKey(key), nil
}

func AccountFromKey(key *ecdsa.PrivateKey) Account {
	return Account{
		PrivateKey: key,
		Address:    crypto.PubkeyToAddress(key.PublicKey),
	}
}

// PrivateKeyHex returns the 0x-prefixed private key
func (a Account) PrivateKeyHex() string {
	return hexutil.Encode(crypto.FromECDSA(a.PrivateKey))
}
