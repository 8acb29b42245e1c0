package forest

import (
	"github.com/ktada/glaive/grammar/symbol"
)

// Tree is one concrete parse tree extracted from a forest. Extraction
// copies: mutating a Tree never affects the forest.
type Tree struct {
	Symbol   symbol.Symbol
	Start    int
	End      int
	Terminal bool

	// Value is the matched text. Terminal trees only.
	Value string

	// Production derived this tree. Non-terminal trees only.
	Production int

	Children []*Tree
}

// TreeCursor enumerates the concrete trees of a forest lazily, one per
// combination of packed choices. The cursor never mutates the forest, so
// several cursors can walk the same forest.
type TreeCursor struct {
	forest *Forest
	root   NodeID
	counts map[NodeID]int
	total  int
	next   int
}

// EnumerateTrees returns a cursor over all trees rooted at root.
func (f *Forest) EnumerateTrees(root NodeID) *TreeCursor {
	c := &TreeCursor{
		forest: f,
		root:   root,
		counts: map[NodeID]int{},
	}
	c.total = c.count(root)
	return c
}

// TreeCount reports the number of trees the cursor enumerates.
func (c *TreeCursor) TreeCount() int {
	return c.total
}

// Next extracts the next tree. It returns false when the cursor is
// exhausted.
func (c *TreeCursor) Next() (*Tree, bool) {
	if c.next >= c.total {
		return nil, false
	}
	t := c.tree(c.root, c.next)
	c.next++
	return t, true
}

// Reset rewinds the cursor to the first tree.
func (c *TreeCursor) Reset() {
	c.next = 0
}

func (c *TreeCursor) count(id NodeID) int {
	if cnt, ok := c.counts[id]; ok {
		return cnt
	}
	n := c.forest.node(id)
	cnt := 0
	if n.terminal {
		cnt = 1
	} else {
		for _, alt := range n.alternatives {
			altCnt := 1
			for _, child := range alt.Children {
				altCnt *= c.count(child)
			}
			cnt += altCnt
		}
	}
	c.counts[id] = cnt
	return cnt
}

// tree materializes the k-th tree below a node. k selects first among the
// packed alternatives, then per child as a mixed-radix digit.
func (c *TreeCursor) tree(id NodeID, k int) *Tree {
	n := c.forest.node(id)
	if n.terminal {
		return &Tree{
			Symbol:   n.sym,
			Start:    n.start,
			End:      n.end,
			Terminal: true,
			Value:    n.value,
		}
	}

	for _, alt := range n.alternatives {
		altCnt := 1
		for _, child := range alt.Children {
			altCnt *= c.count(child)
		}
		if k >= altCnt {
			k -= altCnt
			continue
		}

		children := make([]*Tree, len(alt.Children))
		for i, child := range alt.Children {
			childCnt := c.count(child)
			children[i] = c.tree(child, k%childCnt)
			k /= childCnt
		}
		return &Tree{
			Symbol:     n.sym,
			Start:      n.start,
			End:        n.end,
			Production: alt.Production,
			Children:   children,
		}
	}
	return nil
}
