package orderbook

import (
	"cmp"

	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"
)

type rbtreeLevels struct {
	tree *rbt.Tree[model.Price, *PriceLevel]
}

func newRBTreeLevels() *rbtreeLevels {
	return &rbtreeLevels{tree: rbt.NewWith[model.Price, *PriceLevel](cmp.Compare[model.Price])}
}

func (t *rbtreeLevels) set(price model.Price, level *PriceLevel) { t.tree.Put(price, level) }

func (t *rbtreeLevels) get(price model.Price) (*PriceLevel, bool) { return t.tree.Get(price) }

func (t *rbtreeLevels) delete(price model.Price) { t.tree.Remove(price) }

func (t *rbtreeLevels) min() (*PriceLevel, bool) {
	node := t.tree.Left()
	if node == nil {
		return nil, false
	}
	return node.Value, true
}

func (t *rbtreeLevels) max() (*PriceLevel, bool) {
	node := t.tree.Right()
	if node == nil {
		return nil, false
	}
	return node.Value, true
}

func (t *rbtreeLevels) ascend(fn func(*PriceLevel) bool) {
	it := t.tree.Iterator()
	for it.Next() {
		if !fn(it.Value()) {
			return
		}
	}
}

func (t *rbtreeLevels) descend(fn func(*PriceLevel) bool) {
	it := t.tree.Iterator()
	it.End()
	for it.Prev() {
		if !fn(it.Value()) {
			return
		}
	}
}

func (t *rbtreeLevels) len() int { return t.tree.Size() }
