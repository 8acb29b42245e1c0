package grammar

import (
	"fmt"
	"sort"

	"github.com/ktada/glaive/grammar/symbol"
)

// genLR1Automaton constructs the canonical LR(1) automaton. States are
// discovered with a worklist over kernels; a kernel's identity covers cores
// and lookaheads, so same-core states with different lookaheads remain
// separate here. genLALRAutomaton merges them afterwards.
func genLR1Automaton(prods *productionSet, startSym symbol.Symbol, first *firstSet) (*lrAutomaton, error) {
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
		initialItem, err := newLRItem(startProds[0], 0, map[symbol.Symbol]struct{}{
			symbol.SymbolEOF: {},
		})
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
			state, neighbours, err := genStateAndNeighbourKernels(k, prods, first)
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

func genStateAndNeighbourKernels(k *kernel, prods *productionSet, first *firstSet) (*lrState, []*kernel, error) {
	items, err := genClosure(k, prods, first)
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
		la, ok := reducible[item.prod]
		if !ok {
			la = map[symbol.Symbol]struct{}{}
			reducible[item.prod] = la
		}
		for sym := range item.lookAhead {
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

// genClosure expands a kernel to the full LR(1) item set. For an item
// [A → α・B β, a], every production B → γ contributes [B →・γ, b] with
// b ∈ FIRST(βa). Items sharing a core merge their lookaheads in place.
func genClosure(k *kernel, prods *productionSet, first *firstSet) ([]*lrItem, error) {
	var items []*lrItem
	core2Item := map[itemCoreID]*lrItem{}
	var uncheckedItems []*lrItem
	for _, item := range k.items {
		items = append(items, item)
		core2Item[item.core] = item
		uncheckedItems = append(uncheckedItems, item)
	}

	for len(uncheckedItems) > 0 {
		var nextUncheckedItems []*lrItem
		for _, item := range uncheckedItems {
			if !item.dottedSymbol.IsNonTerminal() {
				continue
			}

			prod, ok := prods.findByID(item.prod)
			if !ok {
				return nil, fmt.Errorf("production not found: %v", item.prod)
			}

			fstOfRest, err := first.find(prod, item.dot+1)
			if err != nil {
				return nil, err
			}
			lookAhead := map[symbol.Symbol]struct{}{}
			for sym := range fstOfRest.symbols {
				lookAhead[sym] = struct{}{}
			}
			if fstOfRest.empty {
				for sym := range item.lookAhead {
					lookAhead[sym] = struct{}{}
				}
			}

			ps, _ := prods.findByLHS(item.dottedSymbol)
			for _, p := range ps {
				coreID := genItemCoreID(p.id, 0)
				if known, exist := core2Item[coreID]; exist {
					if known.addLookAhead(lookAhead) {
						nextUncheckedItems = append(nextUncheckedItems, known)
					}
					continue
				}
				newItem, err := newLRItem(p, 0, lookAhead)
				if err != nil {
					return nil, err
				}
				items = append(items, newItem)
				core2Item[newItem.core] = newItem
				nextUncheckedItems = append(nextUncheckedItems, newItem)
			}
		}
		uncheckedItems = nextUncheckedItems
	}

	return items, nil
}

type neighbourKernel struct {
	symbol symbol.Symbol
	kernel *kernel
}

func genNeighbourKernels(items []*lrItem, prods *productionSet) ([]*neighbourKernel, error) {
	kItemMap := map[symbol.Symbol][]*lrItem{}
	for _, item := range items {
		if item.dottedSymbol.IsNil() {
			continue
		}
		prod, ok := prods.findByID(item.prod)
		if !ok {
			return nil, fmt.Errorf("production not found: %v", item.prod)
		}
		kItem, err := newLRItem(prod, item.dot+1, item.lookAhead)
		if err != nil {
			return nil, err
		}
		kItemMap[item.dottedSymbol] = append(kItemMap[item.dottedSymbol], kItem)
	}

	nextSyms := make([]symbol.Symbol, 0, len(kItemMap))
	for sym := range kItemMap {
		nextSyms = append(nextSyms, sym)
	}
	sort.Slice(nextSyms, func(i, j int) bool {
		return nextSyms[i] < nextSyms[j]
	})

	kernels := make([]*neighbourKernel, 0, len(nextSyms))
	for _, sym := range nextSyms {
		k, err := newKernel(kItemMap[sym])
		if err != nil {
			return nil, err
		}
		kernels = append(kernels, &neighbourKernel{
			symbol: sym,
			kernel: k,
		})
	}

	return kernels, nil
}
