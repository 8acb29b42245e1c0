package grammar

import (
	"fmt"

	"github.com/ktada/glaive/grammar/symbol"
)

// followEntry is the FOLLOW set of one non-terminal. EOF participates as the
// ordinary terminal symbol.SymbolEOF, so FOLLOW entries plug directly into
// lookahead sets and ACTION columns.
type followEntry struct {
	symbols map[symbol.Symbol]struct{}
}

func newFollowEntry() *followEntry {
	return &followEntry{
		symbols: map[symbol.Symbol]struct{}{},
	}
}

func (e *followEntry) add(sym symbol.Symbol) bool {
	if _, ok := e.symbols[sym]; ok {
		return false
	}
	e.symbols[sym] = struct{}{}
	return true
}

func (e *followEntry) mergeFirst(fst *firstEntry) bool {
	if fst == nil {
		return false
	}
	changed := false
	for sym := range fst.symbols {
		if e.add(sym) {
			changed = true
		}
	}
	return changed
}

func (e *followEntry) mergeFollow(flw *followEntry) bool {
	if flw == nil {
		return false
	}
	changed := false
	for sym := range flw.symbols {
		if e.add(sym) {
			changed = true
		}
	}
	return changed
}

type followSet struct {
	set map[symbol.Symbol]*followEntry
}

func newFollowSet(prods *productionSet) *followSet {
	flw := &followSet{
		set: map[symbol.Symbol]*followEntry{},
	}
	for _, prod := range prods.getAllProductions() {
		if _, ok := flw.set[prod.lhs]; ok {
			continue
		}
		flw.set[prod.lhs] = newFollowEntry()
	}
	return flw
}

func (flw *followSet) find(sym symbol.Symbol) (*followEntry, error) {
	e, ok := flw.set[sym]
	if !ok {
		return nil, fmt.Errorf("an entry of FOLLOW was not found; symbol: %s", sym)
	}
	return e, nil
}

func genFollowSet(prods *productionSet, first *firstSet) (*followSet, error) {
	flw := newFollowSet(prods)
	for {
		more := false
		for ntsym, e := range flw.set {
			if ntsym.IsStart() {
				if e.add(symbol.SymbolEOF) {
					more = true
				}
			}
			for _, prod := range prods.getAllProductions() {
				for i, sym := range prod.rhs {
					if sym != ntsym {
						continue
					}
					fst, err := first.find(prod, i+1)
					if err != nil {
						return nil, err
					}
					if e.mergeFirst(fst) {
						more = true
					}
					if fst.empty {
						lhsFlw, err := flw.find(prod.lhs)
						if err != nil {
							return nil, err
						}
						if e.mergeFollow(lhsFlw) {
							more = true
						}
					}
				}
			}
		}
		if !more {
			break
		}
	}
	return flw, nil
}
