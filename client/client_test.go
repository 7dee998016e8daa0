package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/banky/go-tomo/chain"
	"github.com/banky/go-tomo/constants"
	"github.com/banky/go-tomo/errs"
	"github.com/banky/go-tomo/exchange"
	"github.com/banky/go-tomo/internal/chaintest"
	"github.com/banky/go-tomo/nonce"
	"github.com/banky/go-tomo/rpc"
	"github.com/banky/go-tomo/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/maxatome/go-testdeep/td"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const privateKey = "0x" + chaintest.PrivateKey

var (
	relayerAddress = common.HexToAddress("0x0d3ab14bbad3d99f4203bd7a11acb94882050e7e")
	listing        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	lending        = common.HexToAddress("0x00000000000000000000000000000000000000a2")
)

// fakeCaller answers JSON-RPC methods from canned results
type fakeCaller struct {
	mu      sync.Mutex
	results map[string]string
	calls   []string
}

func (f *fakeCaller) Call(_ context.Context, result any, method string, _ ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, method)
	raw, ok := f.results[method]
	if !ok {
		return &rpc.RPCError{Method: method, Code: -32601, Message: "method not found"}
	}
	return json.Unmarshal([]byte(raw), result)
}

func (f *fakeCaller) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, m := range f.calls {
		if m == method {
			n++
		}
	}
	return n
}

func newCaller() *fakeCaller {
	return &fakeCaller{results: map[string]string{
		"posv_networkInformation": fmt.Sprintf(
			`{"NetworkId":89,"TomoXListingAddress":%q,"LendingAddress":%q}`,
			listing.Hex(),
			lending.Hex(),
		),
		"tomox_getOrderCount": `"0x4"`,
		"tomox_sendOrder":     `"ok"`,
	}}
}

func TestNewAppliesNetworkInformation(t *testing.T) {
	caller := newCaller()
	c, err := New(context.Background(), Config{
		Endpoint:   constants.TESTNET_RPC_URL,
		PrivateKey: privateKey,
		Backend:    chaintest.New(constants.TESTNET_CHAIN_ID),
		Caller:     caller,
	})
	td.Require(t).CmpNoError(err)
	defer c.Close()

	want := types.DefaultNetwork(constants.TESTNET_RPC_URL, constants.TESTNET_CHAIN_ID)
	want.ChainID = 89
	want.ListingAddress = listing
	want.LendingRegistrationAddress = lending

	td.Cmp(t, c.Network(), want)
	td.Cmp(t, c.Account().Address, chaintest.Signer(t).Address())
	td.Cmp(t, c.Transactor().From(), c.Account().Address)
	td.CmpNotNil(t, c.Info)
	td.CmpNotNil(t, c.Relayer)
	td.CmpNotNil(t, c.Validator)
	td.CmpNotNil(t, c.Issuer)
	td.CmpNil(t, c.Exchange)
	td.CmpTrue(t, c.Websocket().IsAbsent())
}

func TestNewKeepsDefaultsWhenNetworkInformationFails(t *testing.T) {
	caller := newCaller()
	delete(caller.results, "posv_networkInformation")

	core, logs := observer.New(zapcore.WarnLevel)

	c, err := New(context.Background(), Config{
		Endpoint:   constants.MAINNET_RPC_URL,
		PrivateKey: privateKey,
		Backend:    chaintest.New(constants.MAINNET_CHAIN_ID),
		Caller:     caller,
		Logger:     zap.New(core),
	})
	td.Require(t).CmpNoError(err)

	td.Cmp(t, c.Network(), types.DefaultNetwork(constants.MAINNET_RPC_URL, constants.MAINNET_CHAIN_ID))
	td.Cmp(t, logs.FilterMessageSnippet("network information").Len(), 1)
}

func TestNewSkipsNetworkInformation(t *testing.T) {
	caller := newCaller()

	c, err := New(context.Background(), Config{
		Endpoint:        constants.LOCAL_RPC_URL,
		PrivateKey:      privateKey,
		SkipNetworkInfo: true,
		Backend:         chaintest.New(constants.TESTNET_CHAIN_ID),
		Caller:          caller,
	})
	td.Require(t).CmpNoError(err)

	td.Cmp(t, c.Network().ChainID, int64(constants.TESTNET_CHAIN_ID))
	td.Cmp(t, caller.count("posv_networkInformation"), 0)

	custom := types.DefaultNetwork(constants.LOCAL_RPC_URL, 1337)
	custom.IssuerAddress = common.HexToAddress("0x00000000000000000000000000000000000000a3")

	c, err = New(context.Background(), Config{
		PrivateKey: privateKey,
		Network:    mo.Some(custom),
		Backend:    chaintest.New(1337),
		Caller:     caller,
	})
	td.Require(t).CmpNoError(err)
	td.Cmp(t, c.Network(), custom)
	td.Cmp(t, caller.count("posv_networkInformation"), 0)
}

func TestNewAccount(t *testing.T) {
	c, err := New(context.Background(), Config{
		SkipNetworkInfo: true,
		Backend:         chaintest.New(constants.MAINNET_CHAIN_ID),
		Caller:          newCaller(),
	})
	td.Require(t).CmpNoError(err)
	td.CmpNotNil(t, c.Account().PrivateKey)
	td.Cmp(t, c.Network().Endpoint, constants.MAINNET_RPC_URL)
	td.Cmp(t, c.Network().ChainID, int64(constants.MAINNET_CHAIN_ID))

	_, err = New(context.Background(), Config{
		PrivateKey: "0xnope",
		Backend:    chaintest.New(constants.MAINNET_CHAIN_ID),
		Caller:     newCaller(),
	})
	td.CmpErrorIs(t, err, errs.ErrSigning)
}

func TestExchangesShareOrderNonces(t *testing.T) {
	caller := newCaller()
	backend := chaintest.New(constants.TESTNET_CHAIN_ID)
	token := common.HexToAddress("0x45c25041b8e6cbd5c963e7943007187c3673c7c9")

	c, err := New(context.Background(), Config{
		Endpoint:        constants.TESTNET_RPC_URL,
		PrivateKey:      privateKey,
		SkipNetworkInfo: true,
		Relayer:         relayerAddress,
		Backend:         backend,
		Caller:          caller,
	})
	td.Require(t).CmpNoError(err)
	td.Require(t).NotNil(c.Exchange)
	td.Cmp(t, c.Exchange.Relayer(), relayerAddress)

	other, err := c.NewExchange(common.HexToAddress("0x00000000000000000000000000000000000000b2"))
	td.Require(t).CmpNoError(err)

	req := exchange.OrderRequest{
		BaseToken:  constants.NATIVE_TOKEN_ADDRESS,
		QuoteToken: constants.NATIVE_TOKEN_ADDRESS,
		Side:       types.SideBuy,
		Type:       types.OrderTypeLimit,
		Quantity:   decimal.NewFromInt(1),
		Price:      decimal.NewFromInt(1),
	}

	first, err := c.Exchange.CreateOrder(context.Background(), req)
	td.Require(t).CmpNoError(err)
	second, err := other.CreateOrder(context.Background(), req)
	td.Require(t).CmpNoError(err)

	td.Cmp(t, first.Record.Nonce, uint64(4))
	td.Cmp(t, second.Record.Nonce, uint64(5))
	td.Cmp(t, caller.count("tomox_getOrderCount"), 2)

	// decimals come from the shared token cache
	backend.Return(token, chain.TRC21ABI, "decimals", uint8(6))
	market := exchange.OrderRequest{
		BaseToken:  token,
		QuoteToken: constants.NATIVE_TOKEN_ADDRESS,
		Side:       types.SideSell,
		Type:       types.OrderTypeMarket,
		Quantity:   decimal.NewFromInt(1),
	}

	sub, err := c.Exchange.CreateOrder(context.Background(), market)
	td.Require(t).CmpNoError(err)
	td.Cmp(t, sub.Record.Quantity.String(), "1000000")

	_, err = other.CreateOrder(context.Background(), market)
	td.Require(t).CmpNoError(err)
	td.Cmp(t, backend.CallCount("decimals"), 1)
}

func TestConfigFromEnv(t *testing.T) {
	for _, key := range []string{EnvEndpoint, EnvPrivateKey, EnvChainID, EnvTimeout, EnvRelayer, EnvRedisAddr} {
		unsetenv(t, key)
	}

	path := filepath.Join(t.TempDir(), ".env")
	td.Require(t).CmpNoError(os.WriteFile(path, []byte(
		"TOMO_ENDPOINT=https://rpc.testnet.tomochain.com\n"+
			"TOMO_PRIVATE_KEY="+privateKey+"\n"+
			"TOMO_CHAIN_ID=89\n"+
			"TOMO_TIMEOUT=30\n"+
			"TOMO_RELAYER="+relayerAddress.Hex()+"\n",
	), 0o600))

	cfg, err := ConfigFromEnv(path)
	td.Require(t).CmpNoError(err)
	td.Cmp(t, cfg, td.Struct(Config{
		Endpoint:   constants.TESTNET_RPC_URL,
		PrivateKey: privateKey,
		ChainID:    89,
		Timeout:    30,
		Relayer:    relayerAddress,
	}, td.StructFields{
		"NonceStore": nil,
	}))

	// the process environment wins over the file
	t.Setenv(EnvChainID, "88")
	t.Setenv(EnvRedisAddr, "localhost:6379")
	cfg, err = ConfigFromEnv(path)
	td.Require(t).CmpNoError(err)
	td.Cmp(t, cfg.ChainID, int64(88))
	td.Cmp(t, cfg.NonceStore, td.Isa((*nonce.RedisStore)(nil)))
}

func TestConfigFromEnvErrors(t *testing.T) {
	for _, key := range []string{EnvEndpoint, EnvPrivateKey, EnvChainID, EnvTimeout, EnvRelayer, EnvRedisAddr} {
		unsetenv(t, key)
	}

	cfg, err := ConfigFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	td.CmpNoError(t, err)
	td.Cmp(t, cfg.Endpoint, "")

	t.Setenv(EnvChainID, "tomo")
	_, err = ConfigFromEnv("")
	td.CmpError(t, err)

	t.Setenv(EnvChainID, "89")
	t.Setenv(EnvRelayer, "0x1234")
	_, err = ConfigFromEnv("")
	td.CmpError(t, err)
}

func unsetenv(t *testing.T, key string) {
	t.Helper()
	if v, ok := os.LookupEnv(key); ok {
		t.Cleanup(func() { os.Setenv(key, v) })
		os.Unsetenv(key)
	}
}
