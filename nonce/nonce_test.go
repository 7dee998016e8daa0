package nonce

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/banky/go-tomo/errs"
	"github.com/banky/go-tomo/rpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis/v8"
	"github.com/maxatome/go-testdeep/td"
	"github.com/samber/mo"
)

var account = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func fixedSource(n uint64) SourceFunc {
	return func(context.Context, common.Address) (uint64, error) {
		return n, nil
	}
}

func TestNextSeedsFromRemote(t *testing.T) {
	c := New(Config{Transaction: fixedSource(7)})

	n, err := c.Next(context.Background(), Transaction, account, mo.None[uint64]())
	td.CmpNoError(t, err)
	td.Cmp(t, n, uint64(7))

	// remote is stale, local counter wins
	n, err = c.Next(context.Background(), Transaction, account, mo.None[uint64]())
	td.CmpNoError(t, err)
	td.Cmp(t, n, uint64(8))
}

func TestNextFollowsRemoteWhenAhead(t *testing.T) {
	var remote atomic.Uint64
	remote.Store(3)
	c := New(Config{Order: func(context.Context, common.Address) (uint64, error) {
		return remote.Load(), nil
	}})

	n, err := c.Next(context.Background(), Order, account, mo.None[uint64]())
	td.CmpNoError(t, err)
	td.Cmp(t, n, uint64(3))

	remote.Store(10)
	n, err = c.Next(context.Background(), Order, account, mo.None[uint64]())
	td.CmpNoError(t, err)
	td.Cmp(t, n, uint64(10))
}

func TestNextConcurrentCallersNeverCollide(t *testing.T) {
	c := New(Config{Transaction: fixedSource(5)})

	const callers = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint64]int)
	)

	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := c.Next(context.Background(), Transaction, account, mo.None[uint64]())
			td.CmpNoError(t, err)
			mu.Lock()
			seen[n]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	td.Cmp(t, len(seen), callers)
	for n, count := range seen {
		td.Cmp(t, count, 1, "nonce %d handed out twice", n)
		td.Cmp(t, n, td.Between(uint64(5), uint64(5+callers-1)))
	}
}

func TestNextOverrideSkipsQuery(t *testing.T) {
	var queried atomic.Bool
	c := New(Config{Transaction: func(context.Context, common.Address) (uint64, error) {
		queried.Store(true)
		return 2, nil
	}})

	n, err := c.Next(context.Background(), Transaction, account, mo.Some[uint64](40))
	td.CmpNoError(t, err)
	td.Cmp(t, n, uint64(40))
	td.CmpFalse(t, queried.Load())

	// automatic calls continue past the override
	n, err = c.Next(context.Background(), Transaction, account, mo.None[uint64]())
	td.CmpNoError(t, err)
	td.Cmp(t, n, uint64(41))
	td.CmpTrue(t, queried.Load())
}

func TestNextCountersAreIndependent(t *testing.T) {
	c := New(Config{
		Transaction:  fixedSource(100),
		Order:        fixedSource(1),
		LendingOrder: fixedSource(20),
	})
	ctx := context.Background()

	tx, _ := c.Next(ctx, Transaction, account, mo.None[uint64]())
	order, _ := c.Next(ctx, Order, account, mo.None[uint64]())
	lending, _ := c.Next(ctx, LendingOrder, account, mo.None[uint64]())

	td.Cmp(t, []uint64{tx, order, lending}, []uint64{100, 1, 20})

	other := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	n, _ := c.Next(ctx, Order, other, mo.None[uint64]())
	td.Cmp(t, n, uint64(1))
}

func TestResetReseedsFromRemote(t *testing.T) {
	c := New(Config{Transaction: fixedSource(3)})
	ctx := context.Background()

	for range 3 {
		_, err := c.Next(ctx, Transaction, account, mo.None[uint64]())
		td.CmpNoError(t, err)
	}

	td.CmpNoError(t, c.Reset(ctx, Transaction, account))

	n, err := c.Next(ctx, Transaction, account, mo.None[uint64]())
	td.CmpNoError(t, err)
	td.Cmp(t, n, uint64(3))
}

func TestNextSurfacesTransportError(t *testing.T) {
	transportErr := &rpc.TransportError{Method: "tomox_getOrderCount", Err: errors.New("connection refused")}
	c := New(Config{Order: func(context.Context, common.Address) (uint64, error) {
		return 0, transportErr
	}})

	_, err := c.Next(context.Background(), Order, account, mo.None[uint64]())
	td.Cmp(t, err, transportErr)
	td.CmpErrorIs(t, err, errs.ErrTransport)
}

func TestNextWithoutSource(t *testing.T) {
	c := New(Config{})
	_, err := c.Next(context.Background(), LendingOrder, account, mo.None[uint64]())
	td.CmpError(t, err)
}

func TestKeyNamespace(t *testing.T) {
	c := New(Config{Namespace: "89"})
	td.Cmp(
		t,
		c.key(Order, common.HexToAddress("0x00000000000000000000000000000000000000AB")),
		"89:order:0x00000000000000000000000000000000000000ab",
	)
}

type mockCaller struct {
	method string
	params []any
	result string
	err    error
}

func (m *mockCaller) Call(_ context.Context, result any, method string, params ...any) error {
	m.method, m.params = method, params
	if m.err != nil {
		return m.err
	}
	return json.Unmarshal([]byte(m.result), result)
}

func TestCounterSource(t *testing.T) {
	caller := &mockCaller{result: `"0x1f"`}

	n, err := CounterSource(caller, "tomox_getLendingOrderCount")(context.Background(), account)
	td.CmpNoError(t, err)
	td.Cmp(t, n, uint64(31))
	td.Cmp(t, caller.method, "tomox_getLendingOrderCount")
	td.Cmp(t, caller.params, []any{account})
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TOMO_REDIS_ADDR")
	if addr == "" {
		t.Skip("TOMO_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	store := NewRedisStore(RedisConfig{
		Client: client,
		Prefix: "tomo:nonce:test:" + time.Now().Format("150405.000000"),
		TTL:    time.Minute,
	})
	ctx := context.Background()
	defer store.Reset(ctx, "k")

	n, err := store.Reserve(ctx, "k", 4)
	td.CmpNoError(t, err)
	td.Cmp(t, n, uint64(4))

	n, err = store.Reserve(ctx, "k", 0)
	td.CmpNoError(t, err)
	td.Cmp(t, n, uint64(5))

	td.CmpNoError(t, store.Advance(ctx, "k", 20))
	n, err = store.Reserve(ctx, "k", 0)
	td.CmpNoError(t, err)
	td.Cmp(t, n, uint64(20))

	// advancing backwards is ignored
	td.CmpNoError(t, store.Advance(ctx, "k", 1))
	n, err = store.Reserve(ctx, "k", 0)
	td.CmpNoError(t, err)
	td.Cmp(t, n, uint64(21))

	td.CmpNoError(t, store.Reset(ctx, "k"))
	n, err = store.Reserve(ctx, "k", 2)
	td.CmpNoError(t, err)
	td.Cmp(t, n, uint64(2))

	c := New(Config{Store: store, Transaction: fixedSource(0)})
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[uint64]bool{}
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := c.Next(ctx, Transaction, account, mo.None[uint64]())
			td.CmpNoError(t, err)
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	td.Cmp(t, len(seen), 20)
}
