package grammar

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ktada/glaive/grammar/symbol"
)

// DefaultPriority is assigned to terminals and productions that carry no
// explicit priority.
const DefaultPriority = 10

type AssocType int

const (
	AssocTypeNil AssocType = iota
	AssocTypeLeft
	AssocTypeRight
	AssocTypeNone
)

func (a AssocType) String() string {
	switch a {
	case AssocTypeLeft:
		return "left"
	case AssocTypeRight:
		return "right"
	case AssocTypeNone:
		return "none"
	}
	return "nil"
}

type productionID [32]byte

func (id productionID) String() string {
	return hex.EncodeToString(id[:])
}

func genProductionID(lhs symbol.Symbol, rhs []symbol.Symbol) productionID {
	seq := lhs.Bytes()
	for _, sym := range rhs {
		seq = append(seq, sym.Bytes()...)
	}
	return productionID(sha256.Sum256(seq))
}

type productionNum uint16

const (
	productionNumNil   = productionNum(0)
	productionNumStart = productionNum(1)
	productionNumMin   = productionNum(2)
)

func (n productionNum) Int() int {
	return int(n)
}

type production struct {
	id     productionID
	num    productionNum
	lhs    symbol.Symbol
	rhs    []symbol.Symbol
	rhsLen int

	// priority is the explicit priority of the alternative, or 0 when none
	// was written. The effective priority additionally considers the rhs
	// terminals; see effectivePriority.
	priority int
	assoc    AssocType
	prefer   bool
	dynamic  bool
	nops     bool
	nopse    bool
}

func newProduction(lhs symbol.Symbol, rhs []symbol.Symbol) (*production, error) {
	if lhs.IsNil() {
		return nil, fmt.Errorf("LHS must be a non-nil symbol; LHS: %v, RHS: %v", lhs, rhs)
	}
	for _, sym := range rhs {
		if sym.IsNil() {
			return nil, fmt.Errorf("RHS must not contain nil symbols; LHS: %v, RHS: %v", lhs, rhs)
		}
	}

	return &production{
		id:     genProductionID(lhs, rhs),
		lhs:    lhs,
		rhs:    rhs,
		rhsLen: len(rhs),
	}, nil
}

func (p *production) isEmpty() bool {
	return p.rhsLen == 0
}

// effectivePriority is the explicit priority of the alternative when one was
// written, otherwise the maximum priority among its rhs terminals, otherwise
// DefaultPriority.
func (p *production) effectivePriority(termPriority func(symbol.Symbol) int) int {
	if p.priority > 0 {
		return p.priority
	}
	max := 0
	for _, sym := range p.rhs {
		if !sym.IsTerminal() {
			continue
		}
		if prio := termPriority(sym); prio > max {
			max = prio
		}
	}
	if max == 0 {
		return DefaultPriority
	}
	return max
}

type productionSet struct {
	lhs2Prods map[symbol.Symbol][]*production
	id2Prod   map[productionID]*production
	num2Prod  map[productionNum]*production
	num       productionNum
}

func newProductionSet() *productionSet {
	return &productionSet{
		lhs2Prods: map[symbol.Symbol][]*production{},
		id2Prod:   map[productionID]*production{},
		num2Prod:  map[productionNum]*production{},
		num:       productionNumMin,
	}
}

func (ps *productionSet) append(prod *production) bool {
	if _, ok := ps.id2Prod[prod.id]; ok {
		return false
	}

	if prod.lhs.IsStart() {
		prod.num = productionNumStart
	} else {
		prod.num = ps.num
		ps.num++
	}

	ps.lhs2Prods[prod.lhs] = append(ps.lhs2Prods[prod.lhs], prod)
	ps.id2Prod[prod.id] = prod
	ps.num2Prod[prod.num] = prod

	return true
}

func (ps *productionSet) findByID(id productionID) (*production, bool) {
	prod, ok := ps.id2Prod[id]
	return prod, ok
}

func (ps *productionSet) findByNum(num productionNum) (*production, bool) {
	prod, ok := ps.num2Prod[num]
	return prod, ok
}

func (ps *productionSet) findByLHS(lhs symbol.Symbol) ([]*production, bool) {
	if lhs.IsNil() {
		return nil, false
	}
	prods, ok := ps.lhs2Prods[lhs]
	return prods, ok
}

func (ps *productionSet) getAllProductions() map[productionID]*production {
	return ps.id2Prod
}

// count reports the number of registered productions plus the reserved nil
// number, i.e. the width needed to index by productionNum.
func (ps *productionSet) count() int {
	return int(ps.num)
}
