package grammar

import (
	"fmt"

	"github.com/ktada/glaive/grammar/symbol"
)

// genSLRAutomaton constructs the SLR(1) automaton: the LR(0) collection of
// item-set states, with each reduction's lookaheads taken from FOLLOW of the
// production's left-hand side. Items carry empty lookahead sets during
// discovery so same-core kernels collapse into one state.
func genSLRAutomaton(prods *productionSet, startSym symbol.Symbol, follow *followSet) (*lrAutomaton, error) {
	if !startSym.IsStart() {
		return nil, fmt.Errorf("passed symbol is not an augmented start symbol")
	}

	automaton := &lrAutomaton{
		states: map[kernelID]*lrState{},
	}

	currentState := stateNumInitial
	knownKernels := map[kernelID]struct{}{}
	var uncheckedKernels []*kernel

	{
		startProds, _ := prods.findByLHS(startSym)
		initialItem, err := newLRItem(startProds[0], 0, nil)
		if err != nil {
			return nil, err
		}

		k, err := newKernel([]*lrItem{initialItem})
		if err != nil {
			return nil, err
		}

		automaton.initialState = k.id
		knownKernels[k.id] = struct{}{}
		uncheckedKernels = append(uncheckedKernels, k)
	}

	for len(uncheckedKernels) > 0 {
		var nextUncheckedKernels []*kernel
		for _, k := range uncheckedKernels {
			state, neighbours, err := genSLRStateAndNeighbourKernels(k, prods, follow)
			if err != nil {
				return nil, err
			}
			state.num = currentState
			currentState = currentState.next()

			automaton.states[state.id] = state

			for _, nk := range neighbours {
				if _, known := knownKernels[nk.id]; known {
					continue
				}
				knownKernels[nk.id] = struct{}{}
				nextUncheckedKernels = append(nextUncheckedKernels, nk)
			}
		}
		uncheckedKernels = nextUncheckedKernels
	}

	return automaton, nil
}

func genSLRStateAndNeighbourKernels(k *kernel, prods *productionSet, follow *followSet) (*lrState, []*kernel, error) {
	items, err := genLR0Closure(k, prods)
	if err != nil {
		return nil, nil, err
	}
	neighbours, err := genNeighbourKernels(items, prods)
	if err != nil {
		return nil, nil, err
	}

	next := map[symbol.Symbol]kernelID{}
	kernels := make([]*kernel, 0, len(neighbours))
	for _, n := range neighbours {
		next[n.symbol] = n.kernel.id
		kernels = append(kernels, n.kernel)
	}

	reducible := map[productionID]map[symbol.Symbol]struct{}{}
	for _, item := range items {
		if !item.reducible {
			continue
		}
		prod, ok := prods.findByID(item.prod)
		if !ok {
			return nil, nil, fmt.Errorf("reducible production not found: %v", item.prod)
		}
		flw, err := follow.find(prod.lhs)
		if err != nil {
			return nil, nil, err
		}
		la, ok := reducible[item.prod]
		if !ok {
			la = map[symbol.Symbol]struct{}{}
			reducible[item.prod] = la
		}
		for sym := range flw.symbols {
			la[sym] = struct{}{}
		}
	}

	return &lrState{
		kernel:    k,
		next:      next,
		reducible: reducible,
		items:     items,
	}, kernels, nil
}

// genLR0Closure expands a kernel ignoring lookaheads. Closure items keep
// empty lookahead sets; reductions get theirs from FOLLOW afterwards.
func genLR0Closure(k *kernel, prods *productionSet) ([]*lrItem, error) {
	var items []*lrItem
	known := map[itemCoreID]struct{}{}
	var uncheckedItems []*lrItem
	for _, item := range k.items {
		items = append(items, item)
		known[item.core] = struct{}{}
		uncheckedItems = append(uncheckedItems, item)
	}

	for len(uncheckedItems) > 0 {
		var nextUncheckedItems []*lrItem
		for _, item := range uncheckedItems {
			if !item.dottedSymbol.IsNonTerminal() {
				continue
			}

			ps, _ := prods.findByLHS(item.dottedSymbol)
			for _, p := range ps {
				coreID := genItemCoreID(p.id, 0)
				if _, exist := known[coreID]; exist {
					continue
				}
				newItem, err := newLRItem(p, 0, nil)
				if err != nil {
					return nil, err
				}
				items = append(items, newItem)
				known[newItem.core] = struct{}{}
				nextUncheckedItems = append(nextUncheckedItems, newItem)
			}
		}
		uncheckedItems = nextUncheckedItems
	}

	return items, nil
}
