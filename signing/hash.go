package signing

import (
	"fmt"
	"math/big"

	"github.com/banky/go-tomo/errs"
	"github.com/banky/go-tomo/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Packed returns the solidity tightly packed bytes of enc: addresses as their
// raw 20 bytes, uint256 as 32 byte big endian, strings as raw UTF-8.
func Packed(enc Encoding) ([]byte, error) {
	var out []byte

	for _, f := range enc.Fields {
		switch f.Kind {
		case KindAddress:
			addr, ok := f.Value.(common.Address)
			if !ok {
				return nil, fieldTypeError(f)
			}
			out = append(out, addr.Bytes()...)

		case KindUint256:
			n, ok := f.Value.(*big.Int)
			if !ok || n == nil {
				return nil, fieldTypeError(f)
			}
			if n.Sign() < 0 || n.Cmp(maxUint256) > 0 {
				return nil, fmt.Errorf(
					"%w: %s out of uint256 range: %s",
					errs.ErrEncoding,
					f.Name,
					n,
				)
			}
			out = append(out, common.LeftPadBytes(n.Bytes(), 32)...)

		case KindString:
			s, ok := f.Value.(string)
			if !ok {
				return nil, fieldTypeError(f)
			}
			out = append(out, s...)

		default:
			return nil, fmt.Errorf("%w: unknown kind %q", errs.ErrEncoding, f.Kind)
		}
	}

	return out, nil
}

// Hash is keccak256 over the packed encoding
func Hash(enc Encoding) (common.Hash, error) {
	data, err := Packed(enc)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(data), nil
}

// HashMessage encodes and hashes msg in one step
func HashMessage(msg types.Signable) (common.Hash, error) {
	enc, err := Encode(msg)
	if err != nil {
		return common.Hash{}, err
	}
	return Hash(enc)
}

func fieldTypeError(f Field) error {
	return fmt.Errorf(
		"%w: field %s of kind %s holds %T",
		errs.ErrEncoding,
		f.Name,
		f.Kind,
		f.Value,
	)
}
