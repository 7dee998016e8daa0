package types

import "github.com/ethereum/go-ethereum/common"

// Signature is a recoverable secp256k1 signature. V is 27 or 28.
type Signature struct {
	R common.Hash
	S common.Hash
	V byte
}

// Bytes returns the 65 byte [R || S || V] form with V normalised to 0 or 1,
// which is what crypto.SigToPub expects.
func (s Signature) Bytes() []byte {
	out := make([]byte, 65)
	copy(out[:32], s.R[:])
	copy(out[32:64], s.S[:])
	v := s.V
	if v >= 27 {
		v -= 27
	}
	out[64] = v
	return out
}

// IsZero reports whether the signature is unset
func (s Signature) IsZero() bool {
	return s.R == (common.Hash{}) && s.S == (common.Hash{}) && s.V == 0
}
