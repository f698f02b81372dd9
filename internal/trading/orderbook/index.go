package orderbook

import (
	"fmt"

	"github.com/Aidin1998/pincex_sim/internal/trading/model"
)

const (
	IndexBTree  = "btree"
	IndexRBTree = "rbtree"
)

// PriceIndex is an ordered price -> level map for one side of the book.
// Best is the maximum key for bids and the minimum key for asks.
type PriceIndex interface {
	Insert(price model.Price, level *PriceLevel)
	Remove(price model.Price)
	Get(price model.Price) *PriceLevel
	Min() (*PriceLevel, bool)
	Max() (*PriceLevel, bool)
	// Best is O(1), served from a cached extremum.
	Best() *PriceLevel
	// Walk visits up to depth levels from best to worst. depth <= 0 means all.
	Walk(depth int, fn func(*PriceLevel) bool)
	// WalkReverse visits up to depth levels from worst to best.
	WalkReverse(depth int, fn func(*PriceLevel) bool)
	Len() int
}

// levelTree is the ordered-map backend behind a PriceIndex.
type levelTree interface {
	set(price model.Price, level *PriceLevel)
	get(price model.Price) (*PriceLevel, bool)
	delete(price model.Price)
	min() (*PriceLevel, bool)
	max() (*PriceLevel, bool)
	ascend(fn func(*PriceLevel) bool)
	descend(fn func(*PriceLevel) bool)
	len() int
}

// NewPriceIndex builds an index for side on the named backend.
func NewPriceIndex(side model.Side, backend string, degree int) (PriceIndex, error) {
	var tree levelTree
	switch backend {
	case IndexBTree, "":
		tree = newBTreeLevels(degree)
	case IndexRBTree:
		tree = newRBTreeLevels()
	default:
		return nil, fmt.Errorf("unknown price index %q", backend)
	}
	return &sideIndex{side: side, tree: tree}, nil
}

type sideIndex struct {
	side model.Side
	tree levelTree
	best *PriceLevel
}

func (x *sideIndex) better(a, b model.Price) bool {
	if x.side == model.SideBid {
		return a > b
	}
	return a < b
}

func (x *sideIndex) Insert(price model.Price, level *PriceLevel) {
	x.tree.set(price, level)
	if x.best == nil || x.best.Price == price || x.better(price, x.best.Price) {
		x.best = level
	}
}

func (x *sideIndex) Remove(price model.Price) {
	x.tree.delete(price)
	if x.best != nil && x.best.Price == price {
		x.refreshBest()
	}
}

func (x *sideIndex) refreshBest() {
	var (
		level *PriceLevel
		ok    bool
	)
	if x.side == model.SideBid {
		level, ok = x.tree.max()
	} else {
		level, ok = x.tree.min()
	}
	if !ok {
		level = nil
	}
	x.best = level
}

func (x *sideIndex) Get(price model.Price) *PriceLevel {
	level, ok := x.tree.get(price)
	if !ok {
		return nil
	}
	return level
}

func (x *sideIndex) Min() (*PriceLevel, bool) { return x.tree.min() }

func (x *sideIndex) Max() (*PriceLevel, bool) { return x.tree.max() }

func (x *sideIndex) Best() *PriceLevel { return x.best }

func (x *sideIndex) Len() int { return x.tree.len() }

func (x *sideIndex) Walk(depth int, fn func(*PriceLevel) bool) {
	if x.side == model.SideBid {
		x.tree.descend(limited(depth, fn))
	} else {
		x.tree.ascend(limited(depth, fn))
	}
}

func (x *sideIndex) WalkReverse(depth int, fn func(*PriceLevel) bool) {
	if x.side == model.SideBid {
		x.tree.ascend(limited(depth, fn))
	} else {
		x.tree.descend(limited(depth, fn))
	}
}

func limited(depth int, fn func(*PriceLevel) bool) func(*PriceLevel) bool {
	n := 0
	return func(level *PriceLevel) bool {
		if depth > 0 && n >= depth {
			return false
		}
		n++
		if !fn(level) {
			return false
		}
		return depth <= 0 || n < depth
	}
}
