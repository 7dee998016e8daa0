package info

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/banky/go-tomo/constants"
	"github.com/banky/go-tomo/internal/utils"
	"github.com/banky/go-tomo/rpc"
	"github.com/banky/go-tomo/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/samber/mo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Info provides read access to node, order book and lending book state
// over JSON-RPC
type Info struct {
	rpc           rpc.Caller
	logger        *zap.Logger
	maxConcurrent int
}

// Config for initializing the Info client
type Config struct {
	Caller rpc.Caller
	Logger *zap.Logger
	// MaxConcurrentQueries bounds the order lookups of UserOrders and
	// UserLendingOrders. Defaults to MAX_CONCURRENT_QUERIES.
	MaxConcurrentQueries int
}

// New creates a new Info client
func New(cfg Config) *Info {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxConcurrent := cfg.MaxConcurrentQueries
	if maxConcurrent <= 0 {
		maxConcurrent = constants.MAX_CONCURRENT_QUERIES
	}

	return &Info{
		rpc:           cfg.Caller,
		logger:        logger,
		maxConcurrent: maxConcurrent,
	}
}

// ===== Network Queries =====

// NetworkInformation retrieves the chain id and system contract addresses
func (i *Info) NetworkInformation(ctx context.Context) (*types.NetworkInformation, error) {
	var result types.NetworkInformation
	if err := i.rpc.Call(ctx, &result, "posv_networkInformation"); err != nil {
		return nil, err
	}
	return &result, nil
}

// CandidateStatus retrieves a masternode candidate's status at epoch, or at
// the latest epoch when none is given. Capacity is converted to TOMO.
func (i *Info) CandidateStatus(
	ctx context.Context,
	address common.Address,
	epoch mo.Option[uint64],
) (*types.CandidateStatus, error) {
	var result struct {
		Status   string         `json:"status"`
		Capacity types.Quantity `json:"capacity"`
		Success  bool           `json:"success"`
	}

	err := i.rpc.Call(
		ctx,
		&result,
		"eth_getCandidateStatus",
		address,
		epochParam(epoch),
	)
	if err != nil {
		return nil, err
	}

	return &types.CandidateStatus{
		Status:   result.Status,
		Capacity: utils.FromBaseUnits(result.Capacity.Big(), constants.NATIVE_DECIMALS),
		Success:  result.Success,
	}, nil
}

// TransactionReceipt retrieves a receipt. A pending or unknown transaction
// returns nil without error.
func (i *Info) TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	var result *ethtypes.Receipt
	if err := i.rpc.Call(ctx, &result, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	return result, nil
}

func epochParam(epoch mo.Option[uint64]) string {
	if e, ok := epoch.Get(); ok {
		return hexutil.EncodeUint64(e)
	}
	return "latest"
}

// ===== Counters =====

// OrderCount retrieves the spot order counter of address
func (i *Info) OrderCount(ctx context.Context, address common.Address) (uint64, error) {
	var result types.Quantity
	if err := i.rpc.Call(ctx, &result, "tomox_getOrderCount", address); err != nil {
		return 0, err
	}
	return result.Uint64(), nil
}

// LendingOrderCount retrieves the lending order counter of address
func (i *Info) LendingOrderCount(ctx context.Context, address common.Address) (uint64, error) {
	var result types.Quantity
	if err := i.rpc.Call(ctx, &result, "tomox_getLendingOrderCount", address); err != nil {
		return 0, err
	}
	return result.Uint64(), nil
}

// ===== Spot Order Book =====

// Bids retrieves the volume at every bid price of a pair
func (i *Info) Bids(ctx context.Context, baseToken, quoteToken common.Address) (types.PriceVolumes, error) {
	var result types.PriceVolumes
	err := i.rpc.Call(ctx, &result, "tomox_getBids", baseToken, quoteToken)
	return result, err
}

// Asks retrieves the volume at every ask price of a pair
func (i *Info) Asks(ctx context.Context, baseToken, quoteToken common.Address) (types.PriceVolumes, error) {
	var result types.PriceVolumes
	err := i.rpc.Call(ctx, &result, "tomox_getAsks", baseToken, quoteToken)
	return result, err
}

// BidTree retrieves every bid level of a pair with its resting order ids
func (i *Info) BidTree(ctx context.Context, baseToken, quoteToken common.Address) (types.OrderTree, error) {
	var result types.OrderTree
	err := i.rpc.Call(ctx, &result, "tomox_getBidTree", baseToken, quoteToken)
	return result, err
}

// AskTree retrieves every ask level of a pair with its resting order ids
func (i *Info) AskTree(ctx context.Context, baseToken, quoteToken common.Address) (types.OrderTree, error) {
	var result types.OrderTree
	err := i.rpc.Call(ctx, &result, "tomox_getAskTree", baseToken, quoteToken)
	return result, err
}

// OrderByID retrieves a single spot order
func (i *Info) OrderByID(
	ctx context.Context,
	baseToken common.Address,
	quoteToken common.Address,
	orderID uint64,
) (*types.OrderItem, error) {
	var result types.OrderItem
	err := i.rpc.Call(ctx, &result, "tomox_getOrderById", baseToken, quoteToken, orderID)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ===== Lending Book =====

// Borrows retrieves the volume at every borrow interest of a lending book
func (i *Info) Borrows(ctx context.Context, lendingToken common.Address, term uint64) (types.PriceVolumes, error) {
	var result types.PriceVolumes
	err := i.rpc.Call(ctx, &result, "tomox_getBorrows", lendingToken, term)
	return result, err
}

// Invests retrieves the volume at every invest interest of a lending book
func (i *Info) Invests(ctx context.Context, lendingToken common.Address, term uint64) (types.PriceVolumes, error) {
	var result types.PriceVolumes
	err := i.rpc.Call(ctx, &result, "tomox_getInvests", lendingToken, term)
	return result, err
}

// BorrowingTree retrieves every borrow level with its resting order ids
func (i *Info) BorrowingTree(ctx context.Context, lendingToken common.Address, term uint64) (types.OrderTree, error) {
	var result types.OrderTree
	err := i.rpc.Call(ctx, &result, "tomox_getBorrowingTree", lendingToken, term)
	return result, err
}

// InvestingTree retrieves every invest level with its resting order ids
func (i *Info) InvestingTree(ctx context.Context, lendingToken common.Address, term uint64) (types.OrderTree, error) {
	var result types.OrderTree
	err := i.rpc.Call(ctx, &result, "tomox_getInvestingTree", lendingToken, term)
	return result, err
}

// LendingOrderByID retrieves a single lending order
func (i *Info) LendingOrderByID(
	ctx context.Context,
	lendingToken common.Address,
	term uint64,
	lendingID uint64,
) (*types.LendingItem, error) {
	var result types.LendingItem
	err := i.rpc.Call(ctx, &result, "tomox_getLendingOrderById", lendingToken, term, lendingID)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// LendingTradeTree retrieves the open lending trades of a book keyed by
// trade id
func (i *Info) LendingTradeTree(
	ctx context.Context,
	lendingToken common.Address,
	term uint64,
) (map[string]types.LendingTrade, error) {
	var result map[string]types.LendingTrade
	err := i.rpc.Call(ctx, &result, "tomox_getLendingTradeTree", lendingToken, term)
	return result, err
}

// ===== User Order Resolution =====

// UserOrders walks both sides of a pair's book and returns the resting
// orders placed by user, ordered by order id.
func (i *Info) UserOrders(
	ctx context.Context,
	baseToken common.Address,
	quoteToken common.Address,
	user common.Address,
) ([]types.OrderItem, error) {
	bids, err := i.BidTree(ctx, baseToken, quoteToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get bid tree: %w", err)
	}
	asks, err := i.AskTree(ctx, baseToken, quoteToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get ask tree: %w", err)
	}

	ids, err := orderIDs(bids, asks)
	if err != nil {
		return nil, err
	}

	orders, err := fetchAll(ctx, i.maxConcurrent, ids, func(ctx context.Context, id uint64) (*types.OrderItem, error) {
		return i.OrderByID(ctx, baseToken, quoteToken, id)
	})
	if err != nil {
		return nil, err
	}

	var result []types.OrderItem
	for _, o := range orders {
		if o.UserAddress == user {
			result = append(result, *o)
		}
	}

	i.logger.Debug(
		"resolved user orders",
		zap.Stringer("user", user),
		zap.Int("scanned", len(ids)),
		zap.Int("matched", len(result)),
	)

	return result, nil
}

// UserLendingOrders walks both sides of a lending book and returns the
// resting lending orders placed by user, ordered by lending id.
func (i *Info) UserLendingOrders(
	ctx context.Context,
	lendingToken common.Address,
	term uint64,
	user common.Address,
) ([]types.LendingItem, error) {
	borrows, err := i.BorrowingTree(ctx, lendingToken, term)
	if err != nil {
		return nil, fmt.Errorf("failed to get borrowing tree: %w", err)
	}
	invests, err := i.InvestingTree(ctx, lendingToken, term)
	if err != nil {
		return nil, fmt.Errorf("failed to get investing tree: %w", err)
	}

	ids, err := orderIDs(borrows, invests)
	if err != nil {
		return nil, err
	}

	orders, err := fetchAll(ctx, i.maxConcurrent, ids, func(ctx context.Context, id uint64) (*types.LendingItem, error) {
		return i.LendingOrderByID(ctx, lendingToken, term, id)
	})
	if err != nil {
		return nil, err
	}

	var result []types.LendingItem
	for _, o := range orders {
		if o.UserAddress == user {
			result = append(result, *o)
		}
	}

	return result, nil
}

// orderIDs collects the distinct order ids of every level of trees in
// ascending order
func orderIDs(trees ...types.OrderTree) ([]uint64, error) {
	seen := make(map[uint64]struct{})
	var ids []uint64

	for _, tree := range trees {
		for price, level := range tree {
			for key := range level.Orders {
				id, err := strconv.ParseUint(key, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("invalid order id %q at level %s: %w", key, price, err)
				}
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	slices.Sort(ids)
	return ids, nil
}

// fetchAll runs fetch for every id with at most limit calls in flight and
// returns the results in id order. The first failure cancels the rest.
func fetchAll[T any](
	ctx context.Context,
	limit int,
	ids []uint64,
	fetch func(ctx context.Context, id uint64) (*T, error),
) ([]*T, error) {
	results := make([]*T, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for idx, id := range ids {
		g.Go(func() error {
			item, err := fetch(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get order %d: %w", id, err)
			}
			results[idx] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
