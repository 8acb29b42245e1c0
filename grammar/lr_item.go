package grammar

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"

	"github.com/ktada/glaive/grammar/symbol"
)

// itemCoreID identifies (production, dot) regardless of lookaheads. Two
// states merge under LALR when their kernels agree on core IDs.
type itemCoreID [32]byte

func (id itemCoreID) String() string {
	return fmt.Sprintf("%x", binary.LittleEndian.Uint32(id[:]))
}

func genItemCoreID(prod productionID, dot int) itemCoreID {
	b := make([]byte, 0, len(prod)+8)
	b = append(b, prod[:]...)
	bDot := make([]byte, 8)
	binary.LittleEndian.PutUint64(bDot, uint64(dot))
	b = append(b, bDot...)
	return itemCoreID(sha256.Sum256(b))
}

// lrItem is an LR(1) item: a production, a dot position, and a lookahead
// set.
//
// E → E + T
//
// Dot | Dotted Symbol | Item
// ----+---------------+------------
// 0   | E             | E →・E + T
// 1   | +             | E → E・+ T
// 2   | T             | E → E +・T
// 3   | Nil           | E → E + T・
type lrItem struct {
	core         itemCoreID
	prod         productionID
	dot          int
	dottedSymbol symbol.Symbol

	// initial means the item is S' →・S.
	initial bool

	// reducible means the dot is at the end of the rhs.
	reducible bool

	kernel bool

	lookAhead map[symbol.Symbol]struct{}
}

func newLRItem(prod *production, dot int, lookAhead map[symbol.Symbol]struct{}) (*lrItem, error) {
	if prod == nil {
		return nil, fmt.Errorf("production must be non-nil")
	}
	if dot < 0 || dot > prod.rhsLen {
		return nil, fmt.Errorf("dot must be between 0 and %v", prod.rhsLen)
	}

	dottedSymbol := symbol.SymbolNil
	if dot < prod.rhsLen {
		dottedSymbol = prod.rhs[dot]
	}

	la := map[symbol.Symbol]struct{}{}
	for sym := range lookAhead {
		la[sym] = struct{}{}
	}

	item := &lrItem{
		core:         genItemCoreID(prod.id, dot),
		prod:         prod.id,
		dot:          dot,
		dottedSymbol: dottedSymbol,
		initial:      prod.lhs.IsStart() && dot == 0,
		reducible:    dot == prod.rhsLen,
		lookAhead:    la,
	}
	item.kernel = item.initial || dot > 0
	return item, nil
}

func (i *lrItem) addLookAhead(syms map[symbol.Symbol]struct{}) bool {
	changed := false
	for sym := range syms {
		if _, ok := i.lookAhead[sym]; ok {
			continue
		}
		i.lookAhead[sym] = struct{}{}
		changed = true
	}
	return changed
}

func (i *lrItem) sortedLookAhead() []symbol.Symbol {
	syms := make([]symbol.Symbol, 0, len(i.lookAhead))
	for sym := range i.lookAhead {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(a, b int) bool {
		return syms[a] < syms[b]
	})
	return syms
}

// id covers the core and the lookahead set, so two kernels containing the
// same cores with different lookaheads stay distinct in the canonical
// automaton.
func (i *lrItem) id() [32]byte {
	b := make([]byte, 0, len(i.core)+len(i.lookAhead)*2)
	b = append(b, i.core[:]...)
	for _, sym := range i.sortedLookAhead() {
		b = append(b, sym.Bytes()...)
	}
	return sha256.Sum256(b)
}

type kernelID [32]byte

func (id kernelID) String() string {
	return fmt.Sprintf("%x", binary.LittleEndian.Uint32(id[:]))
}

type kernel struct {
	id    kernelID
	items []*lrItem
}

func newKernel(items []*lrItem) (*kernel, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("a kernel needs at least one item")
	}

	// Remove duplicates, merging lookaheads of items sharing a core.
	var sortedItems []*lrItem
	{
		m := map[itemCoreID]*lrItem{}
		for _, item := range items {
			if !item.kernel {
				return nil, fmt.Errorf("not a kernel item: %v", item.core)
			}
			if prev, ok := m[item.core]; ok {
				prev.addLookAhead(item.lookAhead)
				continue
			}
			m[item.core] = item
		}
		sortedItems = make([]*lrItem, 0, len(m))
		for _, item := range m {
			sortedItems = append(sortedItems, item)
		}
		sort.Slice(sortedItems, func(i, j int) bool {
			return binary.LittleEndian.Uint32(sortedItems[i].core[:]) < binary.LittleEndian.Uint32(sortedItems[j].core[:])
		})
	}

	var id kernelID
	{
		b := []byte{}
		for _, item := range sortedItems {
			itemID := item.id()
			b = append(b, itemID[:]...)
		}
		id = sha256.Sum256(b)
	}

	return &kernel{
		id:    id,
		items: sortedItems,
	}, nil
}

// coreID identifies a kernel by its item cores alone.
func (k *kernel) coreID() kernelID {
	b := []byte{}
	for _, item := range k.items {
		b = append(b, item.core[:]...)
	}
	return kernelID(sha256.Sum256(b))
}

type stateNum int

const stateNumInitial = stateNum(0)

func (n stateNum) Int() int {
	return int(n)
}

func (n stateNum) String() string {
	return strconv.Itoa(int(n))
}

func (n stateNum) next() stateNum {
	return stateNum(n + 1)
}

type lrState struct {
	*kernel
	num stateNum

	next map[symbol.Symbol]kernelID

	// reducible maps each production reducible in this state to the
	// lookahead set under which it reduces.
	reducible map[productionID]map[symbol.Symbol]struct{}

	// items is the full closure, kept for conflict diagnostics.
	items []*lrItem
}

type lrAutomaton struct {
	initialState kernelID
	states       map[kernelID]*lrState
}

func (a *lrAutomaton) statesByNum() []*lrState {
	states := make([]*lrState, len(a.states))
	for _, s := range a.states {
		states[s.num.Int()] = s
	}
	return states
}
