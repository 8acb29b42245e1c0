/*
Package forest implements a shared packed parse forest.

A packed parse forest re-uses parse tree nodes between different parse
trees. For an unambiguous parse the forest degrades to a single tree.
Ambiguous parses share common subtrees between their readings and pack
alternative derivations of one substring into a single node, keeping the
forest polynomial in the input length.
*/
package forest

import (
	"fmt"

	"github.com/cnf/structhash"
	"github.com/npillmayer/schuko/tracing"

	"github.com/ktada/glaive/grammar/symbol"
)

// tracer traces with key 'glaive.forest'.
func tracer() tracing.Trace {
	return tracing.Select("glaive.forest")
}

// NodeID is a handle into a forest's node arena.
type NodeID int

// NodeNil is the invalid node handle.
const NodeNil = NodeID(-1)

// Alternative is one packed derivation of a non-terminal node: the
// production that derived it and the children the production's rhs matched.
type Alternative struct {
	Production int
	Children   []NodeID
}

type node struct {
	sym      symbol.Symbol
	start    int
	end      int
	terminal bool

	// value is the matched text. Terminal nodes only.
	value string

	// alternatives are the packed derivations. Non-terminal nodes only.
	alternatives []Alternative

	// altKeys guards against packing the same (production, children)
	// twice.
	altKeys map[string]struct{}
}

type nodeKey struct {
	sym      symbol.Symbol
	start    int
	end      int
	terminal bool
}

// Forest is an arena of parse nodes. Nodes are shared by (symbol, start,
// end): adding a derivation for a span an equivalent node already covers
// packs a new alternative into that node instead of growing the arena.
type Forest struct {
	nodes []node
	index map[nodeKey]NodeID
}

func New() *Forest {
	return &Forest{
		index: map[nodeKey]NodeID{},
	}
}

func (f *Forest) node(id NodeID) *node {
	return &f.nodes[id]
}

func (f *Forest) intern(key nodeKey) (NodeID, bool) {
	if id, ok := f.index[key]; ok {
		return id, false
	}
	id := NodeID(len(f.nodes))
	f.nodes = append(f.nodes, node{
		sym:      key.sym,
		start:    key.start,
		end:      key.end,
		terminal: key.terminal,
	})
	f.index[key] = id
	return id, true
}

// AddTerminalNode returns the node for a terminal match. The same terminal
// over the same span always yields the same handle.
func (f *Forest) AddTerminalNode(sym symbol.Symbol, start, end int, value string) NodeID {
	id, fresh := f.intern(nodeKey{
		sym:      sym,
		start:    start,
		end:      end,
		terminal: true,
	})
	if fresh {
		f.node(id).value = value
	}
	return id
}

// AddNode adds a derivation of a non-terminal over [start, end). When a node
// for the span exists, the derivation packs into it as one more alternative;
// a derivation identical to an already packed one is dropped. The second
// result reports whether the forest changed.
func (f *Forest) AddNode(sym symbol.Symbol, prod int, start, end int, children []NodeID) (NodeID, bool) {
	id, fresh := f.intern(nodeKey{
		sym:   sym,
		start: start,
		end:   end,
	})
	n := f.node(id)
	if fresh {
		n.altKeys = map[string]struct{}{}
	}

	alt := Alternative{
		Production: prod,
		Children:   children,
	}
	key := string(structhash.Sha1(alt, 1))
	if _, packed := n.altKeys[key]; packed {
		return id, false
	}
	n.altKeys[key] = struct{}{}
	n.alternatives = append(n.alternatives, alt)
	if len(n.alternatives) > 1 {
		tracer().Debugf("packed alternative %d of %v over [%d,%d)", len(n.alternatives), sym, start, end)
	}
	return id, true
}

func (f *Forest) NodeCount() int {
	return len(f.nodes)
}

func (f *Forest) Symbol(id NodeID) symbol.Symbol {
	return f.node(id).sym
}

// Span reports the half-open input interval a node covers.
func (f *Forest) Span(id NodeID) (int, int) {
	n := f.node(id)
	return n.start, n.end
}

func (f *Forest) IsTerminal(id NodeID) bool {
	return f.node(id).terminal
}

// Value returns the matched text of a terminal node.
func (f *Forest) Value(id NodeID) string {
	return f.node(id).value
}

// Alternatives returns the packed derivations of a non-terminal node in
// insertion order. The slice is owned by the forest.
func (f *Forest) Alternatives(id NodeID) []Alternative {
	return f.node(id).alternatives
}

// IsAmbiguous reports whether any node reachable from root packs more than
// one alternative.
func (f *Forest) IsAmbiguous(root NodeID) bool {
	seen := map[NodeID]struct{}{}
	var walk func(id NodeID) bool
	walk = func(id NodeID) bool {
		if _, done := seen[id]; done {
			return false
		}
		seen[id] = struct{}{}
		n := f.node(id)
		if len(n.alternatives) > 1 {
			return true
		}
		for _, alt := range n.alternatives {
			for _, c := range alt.Children {
				if walk(c) {
					return true
				}
			}
		}
		return false
	}
	return walk(root)
}

func (f *Forest) String() string {
	return fmt.Sprintf("forest with %d nodes", len(f.nodes))
}
