package engine

import (
	"container/list"

	"github.com/google/btree"
)

// ladderDegree is the B-tree branching factor for price levels. Order books
// rarely carry more than a few dozen distinct prices per side, so a small
// degree keeps nodes cache-friendly without materially affecting depth.
const ladderDegree = 32

// priceLevel is one btree.Item: a price and the FIFO queue of resting
// OrderIDs at that price, in order of arrival.
type priceLevel struct {
	price Price
	queue *list.List
}

func (p *priceLevel) Less(than btree.Item) bool {
	other := than.(*priceLevel)
	return p.price.Cmp(other.price) < 0
}

// book holds the two sides of one item's order book. Both trees order by
// price ascending; Buy's best is the tree's Max (highest bid), Sell's best
// is the tree's Min (lowest ask) — one comparator, two traversal directions.
type book struct {
	buys  *btree.BTree
	sells *btree.BTree
}

// Ladder is the per-item, per-side sorted map from price to FIFO queue of
// resting order IDs.
type Ladder struct {
	books map[ItemID]*book
}

func newLadder() *Ladder {
	return &Ladder{books: make(map[ItemID]*book)}
}

func (l *Ladder) bookFor(item ItemID) *book {
	b, ok := l.books[item]
	if !ok {
		b = &book{buys: btree.New(ladderDegree), sells: btree.New(ladderDegree)}
		l.books[item] = b
	}
	return b
}

func (l *Ladder) treeForRead(item ItemID, side OrderSide) *btree.BTree {
	b, ok := l.books[item]
	if !ok {
		return nil
	}
	if side == Buy {
		return b.buys
	}
	return b.sells
}

func (l *Ladder) best(t *btree.BTree, side OrderSide) btree.Item {
	if t == nil || t.Len() == 0 {
		return nil
	}
	if side == Buy {
		return t.Max()
	}
	return t.Min()
}

// Best returns the best (first-in-traversal-order) price for the given item
// and side, or false if that side is empty.
func (l *Ladder) Best(item ItemID, side OrderSide) (Price, bool) {
	it := l.best(l.treeForRead(item, side), side)
	if it == nil {
		return Price{}, false
	}
	return it.(*priceLevel).price, true
}

// PeekHead returns the OrderID at the head of the best price's FIFO queue.
func (l *Ladder) PeekHead(item ItemID, side OrderSide) (OrderID, bool) {
	it := l.best(l.treeForRead(item, side), side)
	if it == nil {
		return OrderID{}, false
	}
	front := it.(*priceLevel).queue.Front()
	if front == nil {
		return OrderID{}, false
	}
	return front.Value.(OrderID), true
}

// Enqueue appends id to the tail of the queue at price, creating the level
// if it doesn't exist yet.
func (l *Ladder) Enqueue(item ItemID, side OrderSide, price Price, id OrderID) {
	t := l.bookFor(item)
	tree := t.buys
	if side == Sell {
		tree = t.sells
	}

	probe := &priceLevel{price: price}
	var lvl *priceLevel
	if existing := tree.Get(probe); existing != nil {
		lvl = existing.(*priceLevel)
	} else {
		lvl = &priceLevel{price: price, queue: list.New()}
		tree.ReplaceOrInsert(lvl)
	}
	lvl.queue.PushBack(id)
}

// PopHead removes the head of the best price's queue, deleting the level
// entirely if it becomes empty. A no-op if the side is empty.
func (l *Ladder) PopHead(item ItemID, side OrderSide) {
	tree := l.treeForRead(item, side)
	it := l.best(tree, side)
	if it == nil {
		return
	}
	lvl := it.(*priceLevel)
	if front := lvl.queue.Front(); front != nil {
		lvl.queue.Remove(front)
	}
	if lvl.queue.Len() == 0 {
		tree.Delete(lvl)
	}
}

// Remove deletes a specific order ID from a known price level's queue (a
// linear scan of that level), deleting the level if it becomes empty.
// Returns false if the level or the order ID within it isn't present.
func (l *Ladder) Remove(item ItemID, side OrderSide, price Price, id OrderID) bool {
	tree := l.treeForRead(item, side)
	if tree == nil {
		return false
	}
	existing := tree.Get(&priceLevel{price: price})
	if existing == nil {
		return false
	}
	lvl := existing.(*priceLevel)

	for e := lvl.queue.Front(); e != nil; e = e.Next() {
		if e.Value.(OrderID) == id {
			lvl.queue.Remove(e)
			if lvl.queue.Len() == 0 {
				tree.Delete(lvl)
			}
			return true
		}
	}
	return false
}

// LadderLevel is one price level in a best-first traversal snapshot.
type LadderLevel struct {
	Price Price
	Queue *list.List
}

// Levels returns a point-in-time, best-price-first snapshot of every
// non-empty price level on the given side. The returned queues are the
// ladder's live lists — safe to read under the engine's single-threaded
// model, but only Enqueue/PopHead/Remove may mutate them.
func (l *Ladder) Levels(item ItemID, side OrderSide) []LadderLevel {
	tree := l.treeForRead(item, side)
	if tree == nil {
		return nil
	}

	out := make([]LadderLevel, 0, tree.Len())
	visit := func(i btree.Item) bool {
		lvl := i.(*priceLevel)
		out = append(out, LadderLevel{Price: lvl.price, Queue: lvl.queue})
		return true
	}

	if side == Buy {
		tree.Descend(visit)
	} else {
		tree.Ascend(visit)
	}
	return out
}
