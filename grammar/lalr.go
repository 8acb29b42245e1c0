package grammar

import (
	"fmt"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/ktada/glaive/grammar/symbol"
)

// genLALRAutomaton merges canonical LR(1) states sharing the same item
// cores, unioning their lookaheads. A merge that would introduce a
// reduce/reduce conflict absent from every unmerged state is undone: the
// affected core group is split back to its canonical states. Splitting can
// cascade to predecessor groups whose members then disagree on a successor,
// so clustering runs to a fixed point. Every LR(1) grammar therefore keeps a
// conflict-free table in this mode.
func genLALRAutomaton(lr1 *lrAutomaton, prods *productionSet) (*lrAutomaton, error) {
	// Groups are kept in discovery order so the split cascade and the state
	// emission below walk them deterministically. Clustering over
	// statesByNum also keeps each group's members in canonical numbering
	// order without a separate sort.
	groups := linkedhashmap.New()
	state2Group := map[kernelID]*lalrGroup{}
	for _, state := range lr1.statesByNum() {
		cid := state.coreID()
		var g *lalrGroup
		if v, ok := groups.Get(cid); ok {
			g = v.(*lalrGroup)
		} else {
			g = &lalrGroup{
				coreID: cid,
				merged: true,
			}
			groups.Put(cid, g)
		}
		g.members = append(g.members, state)
		state2Group[state.id] = g
	}

	for {
		changed := false

		it := groups.Iterator()
		for it.Next() {
			g := it.Value().(*lalrGroup)
			if !g.merged || len(g.members) < 2 {
				continue
			}
			if mergeIntroducesRRConflict(g.members) {
				tracer().Debugf("splitting a core group of %v states; merging would introduce a reduce/reduce conflict", len(g.members))
				g.merged = false
				changed = true
			}
		}

		it = groups.Iterator()
		for it.Next() {
			g := it.Value().(*lalrGroup)
			if !g.merged || len(g.members) < 2 {
				continue
			}
			// All members share cores, so per symbol their successors fall
			// into a single group. When that group is split the members may
			// reach different split states, and this group cannot merge
			// either.
			for sym := range g.members[0].next {
				succGroup := state2Group[g.members[0].next[sym]]
				if succGroup.merged {
					continue
				}
				first := g.members[0].next[sym]
				for _, m := range g.members[1:] {
					if m.next[sym] != first {
						g.merged = false
						changed = true
						break
					}
				}
				if !g.merged {
					break
				}
			}
		}

		if !changed {
			break
		}
	}

	// stateKey is the identity of a state in the result automaton.
	stateKey := func(s *lrState) kernelID {
		g := state2Group[s.id]
		if g.merged && len(g.members) > 1 {
			return g.coreID
		}
		return s.id
	}

	result := &lrAutomaton{
		states: map[kernelID]*lrState{},
	}
	result.initialState = stateKey(lr1.states[lr1.initialState])

	// Emit states in the canonical numbering order so the result is
	// deterministic for a given grammar.
	orderedStates := lr1.statesByNum()
	num := stateNumInitial
	for _, s := range orderedStates {
		key := stateKey(s)
		if _, done := result.states[key]; done {
			continue
		}

		g := state2Group[s.id]
		var members []*lrState
		if g.merged && len(g.members) > 1 {
			members = g.members
		} else {
			members = []*lrState{s}
		}

		merged, err := mergeStates(key, members, state2Group)
		if err != nil {
			return nil, err
		}
		merged.num = num
		num = num.next()
		result.states[key] = merged
	}

	return result, nil
}

// lalrGroup clusters canonical states sharing an item-core kernel. merged is
// cleared when the cluster must be split back to its canonical members.
type lalrGroup struct {
	coreID  kernelID
	members []*lrState
	merged  bool
}

// mergeIntroducesRRConflict reports whether unioning the members' lookaheads
// creates a reduce/reduce overlap that no single member already has.
func mergeIntroducesRRConflict(members []*lrState) bool {
	union := map[productionID]map[symbol.Symbol]struct{}{}
	for _, m := range members {
		for prod, la := range m.reducible {
			u, ok := union[prod]
			if !ok {
				u = map[symbol.Symbol]struct{}{}
				union[prod] = u
			}
			for sym := range la {
				u[sym] = struct{}{}
			}
		}
	}

	prodIDs := make([]productionID, 0, len(union))
	for prod := range union {
		prodIDs = append(prodIDs, prod)
	}

	for i := 0; i < len(prodIDs); i++ {
		for j := i + 1; j < len(prodIDs); j++ {
			p1, p2 := prodIDs[i], prodIDs[j]
			if !lookAheadsIntersect(union[p1], union[p2]) {
				continue
			}
			preexisting := false
			for _, m := range members {
				la1, ok1 := m.reducible[p1]
				la2, ok2 := m.reducible[p2]
				if ok1 && ok2 && lookAheadsIntersect(la1, la2) {
					preexisting = true
					break
				}
			}
			if !preexisting {
				return true
			}
		}
	}
	return false
}

func lookAheadsIntersect(a, b map[symbol.Symbol]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for sym := range a {
		if _, ok := b[sym]; ok {
			return true
		}
	}
	return false
}

// mergeStates builds one result state from the given members. Lookaheads
// union per item core; transitions are rewritten to result-state keys.
func mergeStates(key kernelID, members []*lrState, state2Group map[kernelID]*lalrGroup) (*lrState, error) {
	mergedItems := map[itemCoreID]*lrItem{}
	var itemOrder []itemCoreID
	for _, m := range members {
		for _, item := range m.items {
			if prev, ok := mergedItems[item.core]; ok {
				prev.addLookAhead(item.lookAhead)
				continue
			}
			clone := &lrItem{
				core:         item.core,
				prod:         item.prod,
				dot:          item.dot,
				dottedSymbol: item.dottedSymbol,
				initial:      item.initial,
				reducible:    item.reducible,
				kernel:       item.kernel,
				lookAhead:    map[symbol.Symbol]struct{}{},
			}
			clone.addLookAhead(item.lookAhead)
			mergedItems[item.core] = clone
			itemOrder = append(itemOrder, item.core)
		}
	}

	items := make([]*lrItem, 0, len(itemOrder))
	var kernelItems []*lrItem
	for _, core := range itemOrder {
		item := mergedItems[core]
		items = append(items, item)
		if item.kernel {
			kernelItems = append(kernelItems, item)
		}
	}

	reducible := map[productionID]map[symbol.Symbol]struct{}{}
	for _, item := range items {
		if !item.reducible {
			continue
		}
		la, ok := reducible[item.prod]
		if !ok {
			la = map[symbol.Symbol]struct{}{}
			reducible[item.prod] = la
		}
		for sym := range item.lookAhead {
			la[sym] = struct{}{}
		}
	}

	next := map[symbol.Symbol]kernelID{}
	for _, m := range members {
		for sym, target := range m.next {
			targetGroup := state2Group[target]
			var targetKey kernelID
			if targetGroup.merged && len(targetGroup.members) > 1 {
				targetKey = targetGroup.coreID
			} else {
				targetKey = target
			}
			if prev, ok := next[sym]; ok && prev != targetKey {
				return nil, fmt.Errorf("inconsistent successors while merging states; symbol: %v", sym)
			}
			next[sym] = targetKey
		}
	}

	k, err := newKernel(kernelItems)
	if err != nil {
		return nil, err
	}
	// The result automaton is keyed by the caller; keep that identity on the
	// kernel so next-references resolve.
	k.id = key

	return &lrState{
		kernel:    k,
		next:      next,
		reducible: reducible,
		items:     items,
	}, nil
}
