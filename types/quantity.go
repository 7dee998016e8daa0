package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Quantity is an unsigned integer that can be encoded as a JSON number, a
// decimal string or a 0x-prefixed hex string. Node responses mix all three.
type Quantity struct {
	v big.Int
}

// NewQuantity returns a Quantity holding a copy of b.
func NewQuantity(b *big.Int) Quantity {
	var q Quantity
	if b != nil {
		q.v.Set(b)
	}
	return q
}

// UnmarshalJSON implements json.Unmarshaler for Quantity
func (q *Quantity) UnmarshalJSON(b []byte) error {
	// Handle "null"
	if string(b) == "null" {
		q.v.SetInt64(0)
		return nil
	}

	// Remove quotes if needed and parse as string
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return q.setString(s)
	}

	// Otherwise fall back to a bare JSON number
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	return q.setString(n.String())
}

// MarshalJSON encodes the quantity as a hex string, the way the node expects
// numeric params.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal((*hexutil.Big)(&q.v))
}

func (q *Quantity) setString(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		q.v.SetInt64(0)
		return nil
	}

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
		if s == "" {
			q.v.SetInt64(0)
			return nil
		}
	}

	if _, ok := q.v.SetString(s, base); !ok {
		return fmt.Errorf("invalid quantity: %q", s)
	}
	return nil
}

// Big returns a copy of the value
func (q Quantity) Big() *big.Int {
	return new(big.Int).Set(&q.v)
}

func (q Quantity) Uint64() uint64 {
	return q.v.Uint64()
}

func (q Quantity) String() string {
	return q.v.String()
}
