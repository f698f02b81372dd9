package orderbook

import (
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/tidwall/btree"
)

const defaultBTreeDegree = 32

type btreeLevels struct {
	m *btree.Map[model.Price, *PriceLevel]
}

func newBTreeLevels(degree int) *btreeLevels {
	if degree <= 1 {
		degree = defaultBTreeDegree
	}
	return &btreeLevels{m: btree.NewMap[model.Price, *PriceLevel](degree)}
}

func (t *btreeLevels) set(price model.Price, level *PriceLevel) { t.m.Set(price, level) }

func (t *btreeLevels) get(price model.Price) (*PriceLevel, bool) { return t.m.Get(price) }

func (t *btreeLevels) delete(price model.Price) { t.m.Delete(price) }

func (t *btreeLevels) min() (*PriceLevel, bool) {
	_, level, ok := t.m.Min()
	return level, ok
}

func (t *btreeLevels) max() (*PriceLevel, bool) {
	_, level, ok := t.m.Max()
	return level, ok
}

func (t *btreeLevels) ascend(fn func(*PriceLevel) bool) {
	t.m.Scan(func(_ model.Price, level *PriceLevel) bool { return fn(level) })
}

func (t *btreeLevels) descend(fn func(*PriceLevel) bool) {
	t.m.Reverse(func(_ model.Price, level *PriceLevel) bool { return fn(level) })
}

func (t *btreeLevels) len() int { return t.m.Len() }
