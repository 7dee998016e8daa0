package signing

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/banky/go-tomo/errs"
	"github.com/banky/go-tomo/types"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs order digests and ledger transactions with one private key.
// The key never leaves the signer.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewSigner(key *ecdsa.PrivateKey) (*Signer, error) {
	if key == nil || key.D == nil || key.D.Sign() == 0 {
		return nil, fmt.Errorf("%w: no private key", errs.ErrSigning)
	}
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address is the coinbase of the signing key
func (s *Signer) Address() common.Address {
	return s.address
}

// SignHash signs a raw 32 byte hash and returns a signature with V in
// {27, 28}.
func (s *Signer) SignHash(hash common.Hash) (types.Signature, error) {
	var out types.Signature

	sig, err := crypto.Sign(hash.Bytes(), s.key)
	if err != nil {
		return out, fmt.Errorf("%w: failed to sign: %w", errs.ErrSigning, err)
	}

	if len(sig) != 65 {
		return out, fmt.Errorf(
			"%w: invalid signature length: %d",
			errs.ErrSigning,
			len(sig),
		)
	}

	// sig = [R || S || V]
	copy(out.R[:], sig[:32])
	copy(out.S[:], sig[32:64])
	v := sig[64]
	if v < 27 {
		v += 27
	}
	out.V = v

	return out, nil
}

// SignDigest signs the personal message hash of a content digest, which is
// what the matching engine verifies order signatures against.
func (s *Signer) SignDigest(digest common.Hash) (types.Signature, error) {
	return s.SignHash(personalHash(digest))
}

// Sign encodes, hashes and signs msg, then seals the hash and signature
// onto it.
func (s *Signer) Sign(msg types.Signable) (common.Hash, types.Signature, error) {
	hash, err := HashMessage(msg)
	if err != nil {
		return common.Hash{}, types.Signature{}, err
	}

	sig, err := s.SignDigest(hash)
	if err != nil {
		return common.Hash{}, types.Signature{}, err
	}

	msg.Seal(hash, sig)
	return hash, sig, nil
}

// SignTx signs a ledger transaction with the EIP-155 signer for chainID
func (s *Signer) SignTx(
	tx *ethtypes.Transaction,
	chainID *big.Int,
) (*ethtypes.Transaction, error) {
	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sign transaction: %w", errs.ErrSigning, err)
	}
	return signed, nil
}

// Recover returns the address that produced sig over the content digest
func Recover(digest common.Hash, sig types.Signature) (common.Address, error) {
	return RecoverHash(personalHash(digest), sig)
}

// RecoverHash returns the address that produced sig over a raw hash
func RecoverHash(hash common.Hash, sig types.Signature) (common.Address, error) {
	pub, err := crypto.SigToPub(hash.Bytes(), sig.Bytes())
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: failed to recover: %w", errs.ErrSigning, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func personalHash(digest common.Hash) common.Hash {
	return common.BytesToHash(accounts.TextHash(digest.Bytes()))
}
