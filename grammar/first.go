package grammar

import (
	"fmt"

	"github.com/ktada/glaive/grammar/symbol"
)

// firstEntry is the FIRST set of one sentential suffix: the terminals that
// can begin it, plus whether the whole suffix is nullable.
type firstEntry struct {
	symbols map[symbol.Symbol]struct{}
	empty   bool
}

func newFirstEntry() *firstEntry {
	return &firstEntry{
		symbols: map[symbol.Symbol]struct{}{},
	}
}

func (e *firstEntry) add(sym symbol.Symbol) bool {
	if _, ok := e.symbols[sym]; ok {
		return false
	}
	e.symbols[sym] = struct{}{}
	return true
}

func (e *firstEntry) addEmpty() bool {
	if e.empty {
		return false
	}
	e.empty = true
	return true
}

// firstSet keeps, per non-terminal, the set of terminals its derivations can
// begin with and whether it can derive the empty string. Suffix FIRST sets
// are assembled from these on demand by find.
type firstSet struct {
	firsts   map[symbol.Symbol]map[symbol.Symbol]struct{}
	nullable map[symbol.Symbol]struct{}
}

// find computes FIRST of the sentential suffix prod.rhs[head:]. The entry's
// empty bit is set when the whole suffix is nullable.
func (fst *firstSet) find(prod *production, head int) (*firstEntry, error) {
	entry := newFirstEntry()
	for _, sym := range prod.rhs[head:] {
		if sym.IsTerminal() {
			entry.add(sym)
			return entry, nil
		}
		firsts, ok := fst.firsts[sym]
		if !ok {
			return nil, fmt.Errorf("an entry of FIRST was not found; symbol: %s", sym)
		}
		for s := range firsts {
			entry.add(s)
		}
		if _, nullable := fst.nullable[sym]; !nullable {
			return entry, nil
		}
	}
	entry.addEmpty()
	return entry, nil
}

// genFirstSet computes FIRST per non-terminal with a worklist. A production
// is rescanned only when a non-terminal on its RHS has grown, so each scan
// is driven by the dependency that invalidated it.
func genFirstSet(prods *productionSet) (*firstSet, error) {
	fst := &firstSet{
		firsts:   map[symbol.Symbol]map[symbol.Symbol]struct{}{},
		nullable: map[symbol.Symbol]struct{}{},
	}

	// usedBy maps a non-terminal to the productions mentioning it on their
	// RHS; those are the productions a change to the non-terminal can affect.
	usedBy := map[symbol.Symbol][]*production{}
	all := prods.getAllProductions()
	for _, prod := range all {
		if _, ok := fst.firsts[prod.lhs]; !ok {
			fst.firsts[prod.lhs] = map[symbol.Symbol]struct{}{}
		}
		seen := map[symbol.Symbol]struct{}{}
		for _, sym := range prod.rhs {
			if !sym.IsNonTerminal() {
				continue
			}
			if _, dup := seen[sym]; dup {
				continue
			}
			seen[sym] = struct{}{}
			usedBy[sym] = append(usedBy[sym], prod)
		}
	}

	queue := make([]*production, 0, len(all))
	queued := map[productionID]struct{}{}
	for _, prod := range all {
		queue = append(queue, prod)
		queued[prod.id] = struct{}{}
	}

	for len(queue) > 0 {
		prod := queue[0]
		queue = queue[1:]
		delete(queued, prod.id)

		grew, err := fst.scan(prod)
		if err != nil {
			return nil, err
		}
		if !grew {
			continue
		}
		for _, dep := range usedBy[prod.lhs] {
			if _, ok := queued[dep.id]; ok {
				continue
			}
			queued[dep.id] = struct{}{}
			queue = append(queue, dep)
		}
	}

	return fst, nil
}

// scan folds one production into its LHS entry and reports whether the entry
// grew.
func (fst *firstSet) scan(prod *production) (bool, error) {
	acc := fst.firsts[prod.lhs]
	grew := false

	for _, sym := range prod.rhs {
		if sym.IsTerminal() {
			if _, ok := acc[sym]; !ok {
				acc[sym] = struct{}{}
				grew = true
			}
			return grew, nil
		}
		firsts, ok := fst.firsts[sym]
		if !ok {
			return false, fmt.Errorf("an entry of FIRST was not found; symbol: %s", sym)
		}
		for s := range firsts {
			if _, ok := acc[s]; !ok {
				acc[s] = struct{}{}
				grew = true
			}
		}
		if _, nullable := fst.nullable[sym]; !nullable {
			return grew, nil
		}
	}

	if _, ok := fst.nullable[prod.lhs]; !ok {
		fst.nullable[prod.lhs] = struct{}{}
		grew = true
	}
	return grew, nil
}
