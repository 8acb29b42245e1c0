package forest

import (
	"github.com/ktada/glaive/grammar/symbol"
)

// ActionDispatcher computes a semantic value per forest node. Reduce is
// indexed by production number; Ambiguity folds the values of a node's
// packed alternatives into one.
type ActionDispatcher interface {
	Terminal(sym symbol.Symbol, value string, start, end int) (interface{}, error)
	Reduce(prod int, children []interface{}, start, end int) (interface{}, error)
	Ambiguity(sym symbol.Symbol, start, end int, results []interface{}) (interface{}, error)
}

// InvokeActions evaluates the forest bottom-up. Shared nodes are evaluated
// once and their value re-used on every further visit.
func (f *Forest) InvokeActions(root NodeID, d ActionDispatcher) (interface{}, error) {
	memo := map[NodeID]interface{}{}
	var eval func(id NodeID) (interface{}, error)
	eval = func(id NodeID) (interface{}, error) {
		if v, done := memo[id]; done {
			return v, nil
		}
		n := f.node(id)

		if n.terminal {
			v, err := d.Terminal(n.sym, n.value, n.start, n.end)
			if err != nil {
				return nil, err
			}
			memo[id] = v
			return v, nil
		}

		results := make([]interface{}, 0, len(n.alternatives))
		for _, alt := range n.alternatives {
			children := make([]interface{}, len(alt.Children))
			for i, child := range alt.Children {
				cv, err := eval(child)
				if err != nil {
					return nil, err
				}
				children[i] = cv
			}
			v, err := d.Reduce(alt.Production, children, n.start, n.end)
			if err != nil {
				return nil, err
			}
			results = append(results, v)
		}

		var v interface{}
		if len(results) == 1 {
			v = results[0]
		} else {
			var err error
			v, err = d.Ambiguity(n.sym, n.start, n.end, results)
			if err != nil {
				return nil, err
			}
		}
		memo[id] = v
		return v, nil
	}
	return eval(root)
}
