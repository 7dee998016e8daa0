package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/banky/go-tomo/errs"
	"github.com/banky/go-tomo/rpc"
	"github.com/banky/go-tomo/signing"
	"github.com/banky/go-tomo/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/maxatome/go-testdeep/td"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
)

var (
	relayer      = common.HexToAddress("0x0d3ab14bbad3d99f4203bd7a11acb94882050e7e")
	baseToken    = common.HexToAddress("0x4f696e8a1a3fb3aea9f72eb100ea8d97c5130b32")
	quoteToken   = common.HexToAddress("0x45c25041b8e6cbd5c963e7943007187c3673c7c9")
	lendingToken = quoteToken
	collateral   = common.HexToAddress("0x0000000000000000000000000000000000000001")
)

type call struct {
	method string
	params []any
}

// Mock JSON-RPC caller recording every call
type mockCaller struct {
	mu       sync.Mutex
	calls    []call
	counter  uint64
	sendErr  error
	sendFunc func(method string, params []any) (string, error)
}

var _ rpc.Caller = (*mockCaller)(nil)

func (m *mockCaller) Call(ctx context.Context, result any, method string, params ...any) error {
	m.mu.Lock()
	m.calls = append(m.calls, call{method: method, params: params})
	m.mu.Unlock()

	var raw string
	switch method {
	case "tomox_getOrderCount", "tomox_getLendingOrderCount":
		raw = fmt.Sprintf(`"0x%x"`, m.counter)
	default:
		if m.sendErr != nil {
			return m.sendErr
		}
		raw = `"0xabc"`
		if m.sendFunc != nil {
			var err error
			if raw, err = m.sendFunc(method, params); err != nil {
				return err
			}
		}
	}

	return json.Unmarshal([]byte(raw), result)
}

func (m *mockCaller) methods() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.method
	}
	return out
}

func (m *mockCaller) last() call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

type staticDecimals map[common.Address]uint8

func (d staticDecimals) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	v, ok := d[token]
	if !ok {
		return 0, errors.New("unknown token")
	}
	return v, nil
}

func newExchange(t *testing.T, caller *mockCaller) (*Exchange, *signing.Signer) {
	t.Helper()

	key, err := crypto.HexToECDSA("0123456789012345678901234567890123456789012345678901234567890123")
	td.Require(t).CmpNoError(err)
	signer, err := signing.NewSigner(key)
	td.Require(t).CmpNoError(err)

	e, err := New(Config{
		Caller:   caller,
		Signer:   signer,
		Relayer:  relayer,
		Decimals: staticDecimals{baseToken: 18, quoteToken: 6, collateral: 18},
	})
	td.Require(t).CmpNoError(err)

	return e, signer
}

func wireJSON(t *testing.T, v any) map[string]any {
	t.Helper()
	b, err := json.Marshal(v)
	td.Require(t).CmpNoError(err)
	var out map[string]any
	td.Require(t).CmpNoError(json.Unmarshal(b, &out))
	return out
}

func TestNewRequiresRelayer(t *testing.T) {
	key, _ := crypto.GenerateKey()
	signer, _ := signing.NewSigner(key)

	_, err := New(Config{Caller: &mockCaller{}, Signer: signer, Decimals: staticDecimals{}})
	td.CmpErrorIs(t, err, errs.ErrValidation)
}

/*//////////////////////////////////////////////////////////////
                           SPOT ORDERS
//////////////////////////////////////////////////////////////*/

func TestCreateLimitOrder(t *testing.T) {
	caller := &mockCaller{counter: 5}
	e, signer := newExchange(t, caller)

	sub, err := e.CreateOrder(context.Background(), OrderRequest{
		BaseToken:  baseToken,
		QuoteToken: quoteToken,
		Side:       types.SideBuy,
		Type:       types.OrderTypeLimit,
		Quantity:   decimal.NewFromInt(100),
		Price:      decimal.NewFromInt(5),
	})
	td.Require(t).CmpNoError(err)

	order := sub.Record
	td.Cmp(t, order.Quantity.String(), "100000000000000000000")
	td.Cmp(t, order.Price.String(), "5000000")
	td.Cmp(t, order.Nonce, uint64(5))
	td.Cmp(t, order.ExchangeAddress, relayer)
	td.Cmp(t, order.UserAddress, signer.Address())
	td.Cmp(t, order.Status, types.StatusNew)

	hash, err := signing.HashMessage(order)
	td.CmpNoError(t, err)
	td.Cmp(t, order.Hash, hash)

	recovered, err := signing.Recover(order.Hash, order.Signature)
	td.CmpNoError(t, err)
	td.Cmp(t, recovered, signer.Address())

	result, err := sub.ResultString()
	td.CmpNoError(t, err)
	td.Cmp(t, result, "0xabc")

	td.Cmp(t, caller.methods(), []string{"tomox_getOrderCount", "tomox_sendOrder"})

	sent := caller.last()
	td.Require(t).Cmp(sent.params, td.Len(1))
	td.Cmp(t, wireJSON(t, sent.params[0]), td.SuperMapOf(map[string]any{
		"nonce":           "0x5",
		"quantity":        "0x56bc75e2d63100000",
		"price":           "0x4c4b40",
		"exchangeAddress": "0x0d3ab14bbad3d99f4203bd7a11acb94882050e7e",
		"side":            "BUY",
		"type":            "LO",
		"status":          "NEW",
		"hash":            hash.Hex(),
	}, nil))
}

func TestCreateMarketOrderOmitsPrice(t *testing.T) {
	caller := &mockCaller{}
	e, _ := newExchange(t, caller)

	sub, err := e.CreateOrder(context.Background(), OrderRequest{
		BaseToken:  baseToken,
		QuoteToken: quoteToken,
		Side:       types.SideSell,
		Type:       types.OrderTypeMarket,
		Quantity:   decimal.RequireFromString("0.5"),
		Price:      decimal.NewFromInt(5),
	})
	td.Require(t).CmpNoError(err)
	td.CmpNil(t, sub.Record.Price)

	wire := wireJSON(t, caller.last().params[0])
	td.Cmp(t, wire, td.Not(td.ContainsKey("price")))
	td.Cmp(t, wire["type"], "MO")
}

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name string
		req  OrderRequest
	}{
		{
			name: "missing base token",
			req: OrderRequest{
				QuoteToken: quoteToken,
				Side:       types.SideBuy,
				Type:       types.OrderTypeLimit,
				Quantity:   decimal.NewFromInt(1),
				Price:      decimal.NewFromInt(1),
			},
		},
		{
			name: "unknown side",
			req: OrderRequest{
				BaseToken:  baseToken,
				QuoteToken: quoteToken,
				Side:       "HOLD",
				Type:       types.OrderTypeLimit,
				Quantity:   decimal.NewFromInt(1),
				Price:      decimal.NewFromInt(1),
			},
		},
		{
			name: "limit without price",
			req: OrderRequest{
				BaseToken:  baseToken,
				QuoteToken: quoteToken,
				Side:       types.SideBuy,
				Type:       types.OrderTypeLimit,
				Quantity:   decimal.NewFromInt(1),
			},
		},
		{
			name: "zero quantity",
			req: OrderRequest{
				BaseToken:  baseToken,
				QuoteToken: quoteToken,
				Side:       types.SideBuy,
				Type:       types.OrderTypeMarket,
			},
		},
		{
			name: "too many decimals",
			req: OrderRequest{
				BaseToken:  baseToken,
				QuoteToken: quoteToken,
				Side:       types.SideBuy,
				Type:       types.OrderTypeLimit,
				Quantity:   decimal.NewFromInt(1),
				Price:      decimal.RequireFromString("0.0000001"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &mockCaller{}
			e, _ := newExchange(t, caller)

			_, err := e.CreateOrder(context.Background(), tt.req)
			td.CmpErrorIs(t, err, errs.ErrValidation)
			td.Cmp(t, caller.methods(), td.Empty())
		})
	}
}

func TestCreateOrderNonceSequence(t *testing.T) {
	caller := &mockCaller{counter: 5}
	e, _ := newExchange(t, caller)
	req := OrderRequest{
		BaseToken:  baseToken,
		QuoteToken: quoteToken,
		Side:       types.SideBuy,
		Type:       types.OrderTypeMarket,
		Quantity:   decimal.NewFromInt(1),
	}

	first, err := e.CreateOrder(context.Background(), req)
	td.CmpNoError(t, err)
	second, err := e.CreateOrder(context.Background(), req)
	td.CmpNoError(t, err)
	overridden, err := e.CreateOrder(context.Background(), req, WithNonce(40))
	td.CmpNoError(t, err)
	after, err := e.CreateOrder(context.Background(), req)
	td.CmpNoError(t, err)

	td.Cmp(t, first.Record.Nonce, uint64(5))
	td.Cmp(t, second.Record.Nonce, uint64(6))
	td.Cmp(t, overridden.Record.Nonce, uint64(40))
	td.Cmp(t, after.Record.Nonce, uint64(41))
}

func TestCreateOrderResetsNonceOnFailure(t *testing.T) {
	caller := &mockCaller{counter: 5}
	e, _ := newExchange(t, caller)
	req := OrderRequest{
		BaseToken:  baseToken,
		QuoteToken: quoteToken,
		Side:       types.SideBuy,
		Type:       types.OrderTypeMarket,
		Quantity:   decimal.NewFromInt(1),
	}

	caller.sendErr = &rpc.RPCError{Method: "tomox_sendOrder", Code: -32000, Message: "invalid nonce"}
	_, err := e.CreateOrder(context.Background(), req)
	td.CmpErrorIs(t, err, errs.ErrRPC)

	caller.sendErr = nil
	sub, err := e.CreateOrder(context.Background(), req)
	td.CmpNoError(t, err)
	td.Cmp(t, sub.Record.Nonce, uint64(5))
}

func TestCreateManyOrders(t *testing.T) {
	caller := &mockCaller{counter: 7}
	e, _ := newExchange(t, caller)

	reqs := make([]OrderRequest, 3)
	for i := range reqs {
		reqs[i] = OrderRequest{
			BaseToken:  baseToken,
			QuoteToken: quoteToken,
			Side:       types.SideSell,
			Type:       types.OrderTypeLimit,
			Quantity:   decimal.NewFromInt(int64(i + 1)),
			Price:      decimal.NewFromInt(2),
		}
	}

	subs, err := e.CreateManyOrders(context.Background(), reqs)
	td.Require(t).CmpNoError(err)
	td.Require(t).Cmp(subs, td.Len(3))

	for i, sub := range subs {
		td.Cmp(t, sub.Record.Nonce, uint64(7+i))
	}

	// one counter query for the whole batch
	td.Cmp(t, caller.methods(), []string{
		"tomox_getOrderCount",
		"tomox_sendOrder",
		"tomox_sendOrder",
		"tomox_sendOrder",
	})

	next, err := e.CreateOrder(context.Background(), reqs[0])
	td.CmpNoError(t, err)
	td.Cmp(t, next.Record.Nonce, uint64(10))
}

func TestCreateManyOrdersStopsAtFailure(t *testing.T) {
	sent := 0
	caller := &mockCaller{sendFunc: func(method string, params []any) (string, error) {
		sent++
		if sent == 2 {
			return "", errors.New("rejected")
		}
		return `"ok"`, nil
	}}
	e, _ := newExchange(t, caller)

	req := OrderRequest{
		BaseToken:  baseToken,
		QuoteToken: quoteToken,
		Side:       types.SideBuy,
		Type:       types.OrderTypeMarket,
		Quantity:   decimal.NewFromInt(1),
	}

	subs, err := e.CreateManyOrders(context.Background(), []OrderRequest{req, req, req}, WithNonce(3))
	td.Require(t).CmpError(err)
	td.Cmp(t, err.Error(), td.Contains("rejected"))
	td.Require(t).Cmp(subs, td.Len(1))
	td.Cmp(t, subs[0].Record.Nonce, uint64(3))

	_, err = e.CreateManyOrders(context.Background(), nil)
	td.CmpErrorIs(t, err, errs.ErrValidation)
}

/*//////////////////////////////////////////////////////////////
                         LENDING ORDERS
//////////////////////////////////////////////////////////////*/

func TestCreateLendingLimitBorrow(t *testing.T) {
	caller := &mockCaller{counter: 2}
	e, signer := newExchange(t, caller)

	sub, err := e.CreateLendingOrder(context.Background(), LendingOrderRequest{
		LendingToken:    lendingToken,
		CollateralToken: collateral,
		Side:            types.LendingSideBorrow,
		Type:            types.OrderTypeLimit,
		Term:            86400,
		Quantity:        mo.Some(decimal.NewFromInt(1000)),
		Interest:        decimal.RequireFromString("2.5"),
		AutoTopUp:       true,
	})
	td.Require(t).CmpNoError(err)

	order := sub.Record
	td.Cmp(t, order.Quantity.String(), "1000000000")
	td.Cmp(t, order.Interest.String(), "250000000")
	td.Cmp(t, order.Nonce, uint64(2))
	td.Cmp(t, order.RelayerAddress, relayer)
	td.Cmp(t, order.CollateralToken, collateral)

	recovered, err := signing.Recover(order.Hash, order.Signature)
	td.CmpNoError(t, err)
	td.Cmp(t, recovered, signer.Address())

	td.Cmp(t, caller.methods(), []string{"tomox_getLendingOrderCount", "tomox_sendLending"})
	td.Cmp(t, wireJSON(t, caller.last().params[0]), td.SuperMapOf(map[string]any{
		"side":            "BORROW",
		"type":            "LO",
		"term":            "0x15180",
		"interest":        "0xee6b280",
		"autoTopUp":       true,
		"collateralToken": "0x0000000000000000000000000000000000000001",
	}, nil))
}

func TestCreateLendingMarketBorrowWithoutQuantity(t *testing.T) {
	caller := &mockCaller{}
	e, _ := newExchange(t, caller)

	sub, err := e.CreateLendingOrder(context.Background(), LendingOrderRequest{
		LendingToken:    lendingToken,
		CollateralToken: collateral,
		Side:            types.LendingSideBorrow,
		Type:            types.OrderTypeMarket,
		Term:            86400,
	})
	td.Require(t).CmpNoError(err)
	td.CmpNil(t, sub.Record.Quantity)
	td.CmpNil(t, sub.Record.Interest)

	// the hash treats the missing amount as zero
	withZero := *sub.Record
	withZero.Quantity = new(big.Int)
	hash, err := signing.HashMessage(&withZero)
	td.CmpNoError(t, err)
	td.Cmp(t, sub.Record.Hash, hash)
}

func TestCreateLendingInvestDropsBorrowFields(t *testing.T) {
	caller := &mockCaller{}
	e, _ := newExchange(t, caller)

	sub, err := e.CreateLendingOrder(context.Background(), LendingOrderRequest{
		LendingToken:    lendingToken,
		CollateralToken: collateral,
		Side:            types.LendingSideInvest,
		Type:            types.OrderTypeLimit,
		Term:            86400,
		Quantity:        mo.Some(decimal.NewFromInt(10)),
		Interest:        decimal.NewFromInt(8),
		AutoTopUp:       true,
	})
	td.Require(t).CmpNoError(err)
	td.Cmp(t, sub.Record.CollateralToken, common.Address{})
	td.CmpFalse(t, sub.Record.AutoTopUp)
	td.Cmp(t, wireJSON(t, caller.last().params[0]), td.Not(td.ContainsKey("collateralToken")))
}

func TestCreateLendingOrderValidation(t *testing.T) {
	tests := []struct {
		name string
		req  LendingOrderRequest
	}{
		{
			name: "invest without quantity",
			req: LendingOrderRequest{
				LendingToken: lendingToken,
				Side:         types.LendingSideInvest,
				Type:         types.OrderTypeMarket,
				Term:         86400,
			},
		},
		{
			name: "borrow without collateral",
			req: LendingOrderRequest{
				LendingToken: lendingToken,
				Side:         types.LendingSideBorrow,
				Type:         types.OrderTypeMarket,
				Term:         86400,
			},
		},
		{
			name: "limit without interest",
			req: LendingOrderRequest{
				LendingToken: lendingToken,
				Side:         types.LendingSideInvest,
				Type:         types.OrderTypeLimit,
				Term:         86400,
				Quantity:     mo.Some(decimal.NewFromInt(1)),
			},
		},
		{
			name: "zero term",
			req: LendingOrderRequest{
				LendingToken: lendingToken,
				Side:         types.LendingSideInvest,
				Type:         types.OrderTypeMarket,
				Quantity:     mo.Some(decimal.NewFromInt(1)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &mockCaller{}
			e, _ := newExchange(t, caller)

			_, err := e.CreateLendingOrder(context.Background(), tt.req)
			td.CmpErrorIs(t, err, errs.ErrValidation)
			td.Cmp(t, caller.methods(), td.Empty())
		})
	}
}

func TestLendingTradeActions(t *testing.T) {
	caller := &mockCaller{counter: 11}
	e, signer := newExchange(t, caller)
	ctx := context.Background()

	cancel, err := e.CancelLendingOrder(ctx, CancelLendingRequest{
		LendingToken: lendingToken,
		Term:         86400,
		LendingID:    3,
	})
	td.Require(t).CmpNoError(err)
	td.Cmp(t, cancel.Record.Status, types.StatusCancelled)
	td.Cmp(t, cancel.Record.Nonce, uint64(11))
	td.Cmp(t, wireJSON(t, caller.last().params[0]), td.SuperMapOf(map[string]any{
		"status":    "CANCELLED",
		"lendingId": "0x3",
	}, nil))

	topUp, err := e.TopUpLendingTrade(ctx, TopUpRequest{
		LendingToken:    lendingToken,
		CollateralToken: collateral,
		Term:            86400,
		TradeID:         9,
		Quantity:        decimal.NewFromInt(2),
	})
	td.Require(t).CmpNoError(err)
	td.Cmp(t, topUp.Record.Quantity.String(), "2000000000000000000")
	td.Cmp(t, topUp.Record.Type, types.LendingActionTopUp)
	td.Cmp(t, topUp.Record.Nonce, uint64(12))

	repay, err := e.RepayLendingTrade(ctx, RepayRequest{
		LendingToken: lendingToken,
		Term:         86400,
		TradeID:      9,
	})
	td.Require(t).CmpNoError(err)
	td.Cmp(t, repay.Record.Type, types.LendingActionRepay)
	td.Cmp(t, repay.Record.Nonce, uint64(13))
	td.Cmp(t, wireJSON(t, caller.last().params[0]), td.SuperMapOf(map[string]any{
		"type":    "REPAY",
		"tradeId": "0x9",
	}, nil))

	for _, rec := range []struct {
		hash common.Hash
		sig  types.Signature
	}{
		{cancel.Record.Hash, cancel.Record.Signature},
		{topUp.Record.Hash, topUp.Record.Signature},
		{repay.Record.Hash, repay.Record.Signature},
	} {
		recovered, err := signing.Recover(rec.hash, rec.sig)
		td.CmpNoError(t, err)
		td.Cmp(t, recovered, signer.Address())
	}

	_, err = e.RepayLendingTrade(ctx, RepayRequest{LendingToken: lendingToken, Term: 86400})
	td.CmpErrorIs(t, err, errs.ErrValidation)
}
