package client

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/banky/go-tomo/chain"
	"github.com/banky/go-tomo/nonce"
	"github.com/banky/go-tomo/rpc"
	"github.com/banky/go-tomo/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

// Environment variables read by ConfigFromEnv
const (
	EnvEndpoint   = "TOMO_ENDPOINT"
	EnvPrivateKey = "TOMO_PRIVATE_KEY"
	EnvChainID    = "TOMO_CHAIN_ID"
	EnvTimeout    = "TOMO_TIMEOUT"
	EnvRelayer    = "TOMO_RELAYER"
	EnvRedisAddr  = "TOMO_REDIS_ADDR"
)

type Config struct {
	// Endpoint is the node URL. ws and wss endpoints use a websocket
	// connection for JSON-RPC. Defaults to the mainnet url.
	Endpoint string
	// PrivateKey is the hex account key. A random account is generated
	// when empty.
	PrivateKey string
	// ChainID defaults to mainnet for the mainnet url and testnet otherwise.
	// posv_networkInformation replaces it unless SkipNetworkInfo is set.
	ChainID int64
	// Timeout is the HTTP request timeout in seconds, zero for none
	Timeout uint
	// Network replaces the default addressing entirely and skips the
	// network information lookup
	Network mo.Option[types.Network]
	// SkipNetworkInfo keeps the default addresses for ChainID
	SkipNetworkInfo bool
	// Relayer is the coinbase Exchange routes orders to
	Relayer common.Address
	// NonceStore defaults to an in-memory store
	NonceStore nonce.Store
	Logger     *zap.Logger

	// Backend and Caller replace the connections dialed from Endpoint
	Backend chain.Backend
	Caller  rpc.Caller
}

// ConfigFromEnv builds a Config from TOMO_* variables. Variables in the
// process environment take precedence over the dotenv file at path, which
// may be empty.
func ConfigFromEnv(path string) (Config, error) {
	file := map[string]string{}
	if path != "" {
		values, err := godotenv.Read(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if values != nil {
			file = values
		}
	}

	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return file[key]
	}

	cfg := Config{
		Endpoint:   lookup(EnvEndpoint),
		PrivateKey: lookup(EnvPrivateKey),
	}

	if v := lookup(EnvChainID); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", EnvChainID, v, err)
		}
		cfg.ChainID = id
	}

	if v := lookup(EnvTimeout); v != "" {
		timeout, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", EnvTimeout, v, err)
		}
		cfg.Timeout = uint(timeout)
	}

	if v := lookup(EnvRelayer); v != "" {
		if !common.IsHexAddress(v) {
			return Config{}, fmt.Errorf("invalid %s %q", EnvRelayer, v)
		}
		cfg.Relayer = common.HexToAddress(v)
	}

	if v := lookup(EnvRedisAddr); v != "" {
		cfg.NonceStore = nonce.NewRedisStore(nonce.RedisConfig{
			Client: redis.NewClient(&redis.Options{
				Addr:        v,
				DialTimeout: 5 * time.Second,
			}),
		})
	}

	return cfg, nil
}
