package signing

import (
	"fmt"
	"math/big"

	"github.com/banky/go-tomo/constants"
	"github.com/banky/go-tomo/errs"
	"github.com/banky/go-tomo/types"
	"github.com/ethereum/go-ethereum/common"
)

// Layout identifies one of the fixed field orders the matching engine
// reconstructs when verifying a signed message.
type Layout int

const (
	LayoutSpotMarket Layout = iota + 1
	LayoutSpotLimit
	LayoutLendingMarketBorrow
	LayoutLendingMarketInvest
	LayoutLendingLimitBorrow
	LayoutLendingLimitInvest
	LayoutLendingCancel
	LayoutLendingTopUp
	LayoutLendingRepay
)

func (l Layout) String() string {
	switch l {
	case LayoutSpotMarket:
		return "SpotMarket"
	case LayoutSpotLimit:
		return "SpotLimit"
	case LayoutLendingMarketBorrow:
		return "LendingMarketBorrow"
	case LayoutLendingMarketInvest:
		return "LendingMarketInvest"
	case LayoutLendingLimitBorrow:
		return "LendingLimitBorrow"
	case LayoutLendingLimitInvest:
		return "LendingLimitInvest"
	case LayoutLendingCancel:
		return "LendingCancel"
	case LayoutLendingTopUp:
		return "LendingTopUp"
	case LayoutLendingRepay:
		return "LendingRepay"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// Kind is the solidity wire type of an encoded field
type Kind string

const (
	KindAddress Kind = "address"
	KindUint256 Kind = "uint256"
	KindString  Kind = "string"
)

// Field is one (type, value) pair of a canonical encoding. Value is a
// common.Address, *big.Int or string depending on Kind.
type Field struct {
	Name  string
	Kind  Kind
	Value any
}

// Encoding is the ordered field list for a record
type Encoding struct {
	Layout Layout
	Fields []Field
}

// ResolveLayout picks the layout for a record. Unknown order types or sides
// fail with errs.ErrInvalidVariant.
func ResolveLayout(msg types.Signable) (Layout, error) {
	switch m := msg.(type) {
	case *types.Order:
		switch m.Type {
		case types.OrderTypeMarket:
			return LayoutSpotMarket, nil
		case types.OrderTypeLimit:
			return LayoutSpotLimit, nil
		}
		return 0, fmt.Errorf("%w: order type %q", errs.ErrInvalidVariant, m.Type)

	case *types.LendingOrder:
		switch {
		case m.Type == types.OrderTypeMarket && m.Side == types.LendingSideBorrow:
			return LayoutLendingMarketBorrow, nil
		case m.Type == types.OrderTypeMarket && m.Side == types.LendingSideInvest:
			return LayoutLendingMarketInvest, nil
		case m.Type == types.OrderTypeLimit && m.Side == types.LendingSideBorrow:
			return LayoutLendingLimitBorrow, nil
		case m.Type == types.OrderTypeLimit && m.Side == types.LendingSideInvest:
			return LayoutLendingLimitInvest, nil
		}
		return 0, fmt.Errorf(
			"%w: lending order type %q side %q",
			errs.ErrInvalidVariant,
			m.Type,
			m.Side,
		)

	case *types.LendingCancel:
		return LayoutLendingCancel, nil
	case *types.LendingTopUp:
		return LayoutLendingTopUp, nil
	case *types.LendingRepay:
		return LayoutLendingRepay, nil
	}

	return 0, fmt.Errorf("%w: %T", errs.ErrInvalidVariant, msg)
}

// Encode produces the canonical encoding of msg. The field order of every
// layout is fixed; the receiving side rebuilds the same list to verify.
func Encode(msg types.Signable) (Encoding, error) {
	layout, err := ResolveLayout(msg)
	if err != nil {
		return Encoding{}, err
	}

	b := &builder{layout: layout}

	switch m := msg.(type) {
	case *types.Order:
		b.addr("exchangeAddress", m.ExchangeAddress)
		b.addr("userAddress", m.UserAddress)
		b.addr("baseToken", m.BaseToken)
		b.addr("quoteToken", m.QuoteToken)
		b.num("quantity", m.Quantity)
		if layout == LayoutSpotLimit {
			b.num("price", m.Price)
		}
		b.num("side", spotSide(m.Side, b))
		b.text("status", string(m.Status))
		b.text("type", string(m.Type))
		b.num64("nonce", m.Nonce)

	case *types.LendingOrder:
		borrow := m.Side == types.LendingSideBorrow
		limit := m.Type == types.OrderTypeLimit

		b.addr("relayerAddress", m.RelayerAddress)
		b.addr("userAddress", m.UserAddress)
		if borrow {
			b.addr("collateralToken", m.CollateralToken)
		}
		b.addr("lendingToken", m.LendingToken)
		if layout == LayoutLendingMarketBorrow && m.Quantity == nil {
			// market borrows may leave the amount to the engine
			b.num("quantity", new(big.Int))
		} else {
			b.num("quantity", m.Quantity)
		}
		b.num64("term", m.Term)
		if limit {
			b.num("interest", m.Interest)
		}
		b.text("side", string(m.Side))
		b.text("status", string(m.Status))
		b.text("type", string(m.Type))
		b.num64("nonce", m.Nonce)
		if borrow {
			b.flag("autoTopUp", m.AutoTopUp)
		}

	case *types.LendingCancel:
		b.num64("nonce", m.Nonce)
		b.text("status", string(m.Status))
		b.addr("relayerAddress", m.RelayerAddress)
		b.addr("userAddress", m.UserAddress)
		b.addr("lendingToken", m.LendingToken)
		b.num64("term", m.Term)
		b.num64("lendingId", m.LendingID)

	case *types.LendingTopUp:
		b.num64("nonce", m.Nonce)
		b.text("status", string(m.Status))
		b.addr("relayerAddress", m.RelayerAddress)
		b.addr("userAddress", m.UserAddress)
		b.addr("lendingToken", m.LendingToken)
		b.num64("term", m.Term)
		b.num64("tradeId", m.TradeID)
		b.num("quantity", m.Quantity)
		b.text("type", string(m.Type))

	case *types.LendingRepay:
		b.num64("nonce", m.Nonce)
		b.text("status", string(m.Status))
		b.addr("relayerAddress", m.RelayerAddress)
		b.addr("userAddress", m.UserAddress)
		b.addr("lendingToken", m.LendingToken)
		b.num64("term", m.Term)
		b.num64("tradeId", m.TradeID)
		b.text("type", string(m.Type))
	}

	if b.err != nil {
		return Encoding{}, b.err
	}

	return Encoding{Layout: layout, Fields: b.fields}, nil
}

// builder accumulates fields and keeps the first error
type builder struct {
	layout Layout
	fields []Field
	err    error
}

func (b *builder) missing(name string) {
	if b.err == nil {
		b.err = &errs.MissingFieldError{Layout: b.layout.String(), Field: name}
	}
}

func (b *builder) addr(name string, v common.Address) {
	if v == constants.ZERO_ADDRESS {
		b.missing(name)
	}
	b.fields = append(b.fields, Field{Name: name, Kind: KindAddress, Value: v})
}

func (b *builder) num(name string, v *big.Int) {
	if v == nil {
		b.missing(name)
		v = new(big.Int)
	}
	b.fields = append(b.fields, Field{Name: name, Kind: KindUint256, Value: v})
}

func (b *builder) num64(name string, v uint64) {
	b.num(name, new(big.Int).SetUint64(v))
}

func (b *builder) flag(name string, v bool) {
	var n uint64
	if v {
		n = 1
	}
	b.num64(name, n)
}

func (b *builder) text(name string, v string) {
	if v == "" {
		b.missing(name)
	}
	b.fields = append(b.fields, Field{Name: name, Kind: KindString, Value: v})
}

// spotSide encodes BUY as 0 and SELL as 1
func spotSide(side types.Side, b *builder) *big.Int {
	switch side {
	case types.SideBuy:
		return big.NewInt(0)
	case types.SideSell:
		return big.NewInt(1)
	}
	if b.err == nil {
		b.err = fmt.Errorf("%w: order side %q", errs.ErrInvalidVariant, side)
	}
	return new(big.Int)
}
