// Package client connects an account to a TomoChain node and wires every
// sub-client over shared connections, one nonce coordinator and one token
// decimals cache.
package client

import (
	"context"
	"strconv"
	"strings"

	"github.com/banky/go-tomo/chain"
	"github.com/banky/go-tomo/constants"
	"github.com/banky/go-tomo/exchange"
	"github.com/banky/go-tomo/info"
	"github.com/banky/go-tomo/issuer"
	"github.com/banky/go-tomo/nonce"
	"github.com/banky/go-tomo/relayer"
	"github.com/banky/go-tomo/rpc"
	"github.com/banky/go-tomo/signing"
	"github.com/banky/go-tomo/types"
	"github.com/banky/go-tomo/validator"
	"github.com/banky/go-tomo/ws"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

type Client struct {
	account types.Account
	network types.Network
	logger  *zap.Logger

	caller     rpc.Caller
	backend    chain.Backend
	signer     *signing.Signer
	nonces     *nonce.Coordinator
	tokens     *chain.TokenCache
	transactor *chain.Transactor
	closers    []func()

	Info      *info.Info
	Relayer   *relayer.Relayer
	Validator *validator.Validator
	Issuer    *issuer.Issuer
	// Exchange routes orders to Config.Relayer. It is nil when no relayer
	// was configured, see NewExchange.
	Exchange *exchange.Exchange
}

// New connects to cfg.Endpoint and builds every sub-client. Unless the
// network is given or SkipNetworkInfo is set, the chain id and system
// contract addresses are refreshed from posv_networkInformation. A failed
// refresh is logged and the defaults are kept.
func New(ctx context.Context, cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = constants.MAINNET_RPC_URL
	}

	account, err := newAccount(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	signer, err := signing.NewSigner(account.PrivateKey)
	if err != nil {
		return nil, err
	}

	c := &Client{
		account: account,
		logger:  logger,
		signer:  signer,
	}

	if err := c.connect(ctx, cfg, endpoint); err != nil {
		c.Close()
		return nil, err
	}

	c.Info = info.New(info.Config{
		Caller: c.caller,
		Logger: logger.Named("info"),
	})

	c.network = c.resolveNetwork(ctx, cfg, endpoint)

	c.nonces = nonce.New(nonce.Config{
		Store:        cfg.NonceStore,
		Namespace:    strconv.FormatInt(c.network.ChainID, 10),
		Logger:       logger.Named("nonce"),
		Transaction:  nonce.LedgerSource(c.backend),
		Order:        nonce.CounterSource(c.caller, "tomox_getOrderCount"),
		LendingOrder: nonce.CounterSource(c.caller, "tomox_getLendingOrderCount"),
	})
	c.tokens = chain.NewTokenCache(c.backend)
	c.transactor = chain.NewTransactor(chain.TransactorConfig{
		Backend: c.backend,
		Signer:  signer,
		Nonces:  c.nonces,
		ChainID: c.network.ChainID,
		Logger:  logger.Named("transactor"),
	})

	if err := c.wire(cfg); err != nil {
		c.Close()
		return nil, err
	}

	logger.Debug(
		"client ready",
		zap.String("endpoint", endpoint),
		zap.Int64("chainId", c.network.ChainID),
		zap.Stringer("account", account.Address),
	)

	return c, nil
}

// connect opens the JSON-RPC caller and the ledger backend
func (c *Client) connect(ctx context.Context, cfg Config, endpoint string) error {
	c.caller = cfg.Caller
	if c.caller == nil {
		if isWebsocket(endpoint) {
			m := ws.New(ws.Config{Endpoint: endpoint, Logger: c.logger.Named("ws")})
			if err := m.Start(ctx); err != nil {
				return err
			}
			c.closers = append(c.closers, m.Stop)
			c.caller = m
		} else {
			c.caller = rpc.New(rpc.Config{
				Endpoint: endpoint,
				Timeout:  cfg.Timeout,
				Logger:   c.logger.Named("rpc"),
			})
		}
	}

	c.backend = cfg.Backend
	if c.backend == nil {
		eth, err := chain.Dial(ctx, endpoint)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, eth.Close)
		c.backend = eth
	}

	return nil
}

func (c *Client) resolveNetwork(ctx context.Context, cfg Config, endpoint string) types.Network {
	if n, ok := cfg.Network.Get(); ok {
		return n
	}

	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = constants.TESTNET_CHAIN_ID
		if endpoint == constants.MAINNET_RPC_URL {
			chainID = constants.MAINNET_CHAIN_ID
		}
	}

	network := types.DefaultNetwork(endpoint, chainID)
	if cfg.SkipNetworkInfo {
		return network
	}

	information, err := c.Info.NetworkInformation(ctx)
	if err != nil {
		c.logger.Warn("failed to get network information, using defaults", zap.Error(err))
		return network
	}

	return network.WithInformation(*information)
}

func (c *Client) wire(cfg Config) error {
	var err error

	c.Relayer, err = relayer.New(relayer.Config{
		Backend:    c.backend,
		Transactor: c.transactor,
		Network:    c.network,
		Logger:     c.logger.Named("relayer"),
	})
	if err != nil {
		return err
	}

	c.Validator, err = validator.New(validator.Config{
		Backend:    c.backend,
		Transactor: c.transactor,
		Network:    c.network,
		Tokens:     c.tokens,
		Logger:     c.logger.Named("validator"),
	})
	if err != nil {
		return err
	}

	c.Issuer, err = issuer.New(issuer.Config{
		Backend:    c.backend,
		Transactor: c.transactor,
		Network:    c.network,
		Tokens:     c.tokens,
		Logger:     c.logger.Named("issuer"),
	})
	if err != nil {
		return err
	}

	if cfg.Relayer != constants.ZERO_ADDRESS {
		c.Exchange, err = c.NewExchange(cfg.Relayer)
		if err != nil {
			return err
		}
	}

	return nil
}

// NewExchange returns an order submitter routed to relayerAddress. Every
// exchange built by the client shares its order counters.
func (c *Client) NewExchange(relayerAddress common.Address) (*exchange.Exchange, error) {
	return exchange.New(exchange.Config{
		Caller:   c.caller,
		Signer:   c.signer,
		Decimals: c.tokens,
		Relayer:  relayerAddress,
		Nonces:   c.nonces,
		Logger:   c.logger.Named("exchange"),
	})
}

// Account is the signing account
func (c *Client) Account() types.Account {
	return c.account
}

// Network is the resolved addressing
func (c *Client) Network() types.Network {
	return c.network
}

// Transactor sends ledger transactions from the account
func (c *Client) Transactor() *chain.Transactor {
	return c.transactor
}

// Nonces is the coordinator shared by every sub-client
func (c *Client) Nonces() *nonce.Coordinator {
	return c.nonces
}

// Websocket returns the websocket manager when the endpoint is ws or wss
func (c *Client) Websocket() mo.Option[*ws.Manager] {
	if m, ok := c.caller.(*ws.Manager); ok {
		return mo.Some(m)
	}
	return mo.None[*ws.Manager]()
}

// Close releases the connections the client opened
func (c *Client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func newAccount(privateKey string) (types.Account, error) {
	if privateKey == "" {
		return types.NewRandomAccount()
	}
	return types.NewAccount(privateKey)
}

func isWebsocket(endpoint string) bool {
	return strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://")
}
