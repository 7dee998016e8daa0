package exchange

import (
	"github.com/samber/mo"
)

/*//////////////////////////////////////////////////////////////
                             SUBMIT
//////////////////////////////////////////////////////////////*/

// SubmitOption is a functional option for every submission
type SubmitOption func(*submitConfig)

type submitConfig struct {
	nonce mo.Option[uint64]
}

// WithNonce uses n instead of asking the coordinator. The coordinator is
// still advanced past n.
func WithNonce(n uint64) SubmitOption {
	return func(cfg *submitConfig) {
		cfg.nonce = mo.Some(n)
	}
}

func applySubmitOptions(opts []SubmitOption) submitConfig {
	var cfg submitConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
