package model

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side of the book an order belongs to.
type Side string

// Kind of order.
type Kind string

// Status of an order over its lifetime.
type Status string

const (
	// Order sides
	SideBid Side = "BID"
	SideAsk Side = "ASK"

	// Order kinds
	KindLimit  Kind = "LIMIT"
	KindMarket Kind = "MARKET"

	// Order statuses
	StatusOpen            Status = "OPEN"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCanceled        Status = "CANCELED"
	StatusRejected        Status = "REJECTED"
)

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrInvalidSide  = errors.New("invalid side")
	ErrInvalidKind  = errors.New("invalid kind")
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

func (s Side) Valid() bool { return s == SideBid || s == SideAsk }

func (k Kind) Valid() bool { return k == KindLimit || k == KindMarket }

// Terminal reports whether no further fills or cancels can apply.
func (s Status) Terminal() bool {
	return s == StatusFilled || s == StatusCanceled || s == StatusRejected
}

// ParseSide accepts BID/ASK as well as the BUY/SELL aliases used by clients.
func ParseSide(s string) (Side, error) {
	switch s {
	case "BID", "bid", "BUY", "buy":
		return SideBid, nil
	case "ASK", "ask", "SELL", "sell":
		return SideAsk, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSide, s)
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "LIMIT", "limit":
		return KindLimit, nil
	case "MARKET", "market":
		return KindMarket, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Price is a fixed-point price expressed in instrument ticks.
type Price int64

// PriceInfinity is the best-ask sentinel for an empty ask side.
const PriceInfinity Price = math.MaxInt64

// Epsilon is the tolerance under which a remaining size counts as zero.
var Epsilon = decimal.New(1, -6)

// IsDust reports whether a size is within Epsilon of zero.
func IsDust(size decimal.Decimal) bool {
	return size.Abs().LessThanOrEqual(Epsilon)
}

// Order represents an order submitted to the engine.
type Order struct {
	ID        uint64          `json:"id"`
	Owner     uuid.UUID       `json:"owner"`
	Side      Side            `json:"side"`
	Kind      Kind            `json:"kind"`
	Price     Price           `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Remaining decimal.Decimal `json:"remaining"`
	Status    Status          `json:"status"`
	Seq       uint64          `json:"seq"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewOrder builds an Open order with its remaining size equal to size.
func NewOrder(id uint64, owner uuid.UUID, side Side, kind Kind, price Price, size decimal.Decimal) *Order {
	return &Order{
		ID:        id,
		Owner:     owner,
		Side:      side,
		Kind:      kind,
		Price:     price,
		Size:      size,
		Remaining: size,
		Status:    StatusOpen,
	}
}

// Validate checks the fields an order must carry before matching.
func (o *Order) Validate() error {
	if !o.Side.Valid() {
		return fmt.Errorf("%w: side %q", ErrInvalidOrder, o.Side)
	}
	if !o.Kind.Valid() {
		return fmt.Errorf("%w: kind %q", ErrInvalidOrder, o.Kind)
	}
	if o.Size.LessThanOrEqual(Epsilon) {
		return fmt.Errorf("%w: size must be positive", ErrInvalidOrder)
	}
	if o.Kind == KindLimit && (o.Price <= 0 || o.Price == PriceInfinity) {
		return fmt.Errorf("%w: limit price must be positive", ErrInvalidOrder)
	}
	return nil
}

// Filled returns the executed part of the order.
func (o *Order) Filled() decimal.Decimal {
	return o.Size.Sub(o.Remaining)
}

// Fill decrements the remaining size and moves the status forward.
// A remainder within Epsilon is snapped to zero.
func (o *Order) Fill(size decimal.Decimal) {
	o.Remaining = o.Remaining.Sub(size)
	if IsDust(o.Remaining) {
		o.Remaining = decimal.Zero
		o.Status = StatusFilled
		return
	}
	if o.Remaining.IsNegative() {
		panic(fmt.Sprintf("model: order %d overfilled by %s", o.ID, o.Remaining.Neg()))
	}
	o.Status = StatusPartiallyFilled
}

// Crosses reports whether a limit order at o.Price would trade against best.
func (o *Order) Crosses(best Price) bool {
	if o.Kind == KindMarket {
		return true
	}
	if o.Side == SideBid {
		return o.Price >= best
	}
	return o.Price <= best
}

// Trade is an execution between a resting maker and an incoming taker.
type Trade struct {
	ID            uuid.UUID       `json:"id"`
	Seq           uint64          `json:"seq"`
	MakerOrderID  uint64          `json:"maker_order_id"`
	TakerOrderID  uint64          `json:"taker_order_id"`
	MakerOwner    uuid.UUID       `json:"maker_owner"`
	TakerOwner    uuid.UUID       `json:"taker_owner"`
	Price         Price           `json:"price"`
	Size          decimal.Decimal `json:"size"`
	AggressorSide Side            `json:"aggressor_side"`
	ExecutedAt    time.Time       `json:"executed_at"`
}
