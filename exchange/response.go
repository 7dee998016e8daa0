package exchange

import (
	"encoding/json"
)

// Submission is a signed record together with the node's raw result for it
type Submission[T any] struct {
	Record *T
	Result json.RawMessage
}

// ResultString decodes a string result such as an order hash
func (s Submission[T]) ResultString() (string, error) {
	var out string
	if err := json.Unmarshal(s.Result, &out); err != nil {
		return "", err
	}
	return out, nil
}
