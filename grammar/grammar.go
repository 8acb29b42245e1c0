package grammar

import (
	verr "github.com/ktada/glaive/error"
	"github.com/ktada/glaive/grammar/symbol"
	"github.com/ktada/glaive/spec"
)

// Reserved rule names of the surface notation. EMPTY marks an empty
// alternative; LAYOUT, when defined, is the start symbol of the layout
// grammar consumed between tokens.
const (
	ReservedNameEmpty  = "EMPTY"
	ReservedNameLayout = "LAYOUT"
)

// Terminal carries the recognition and disambiguation metadata of one
// terminal symbol. Exactly one of Pattern and Literal is set; the drivers
// build the terminal's recognizer from it.
type Terminal struct {
	Symbol   symbol.Symbol
	Name     string
	Pattern  string
	Literal  string
	Priority int
	Assoc    AssocType
	Prefer   bool
	Finish   bool
	Dynamic  bool
	Pos      spec.Position
}

// ProductionInfo is the runtime view of a production, sufficient for the
// drivers to perform reductions and for action dispatchers to index
// handlers.
type ProductionInfo struct {
	Num     int
	LHS     symbol.Symbol
	RHSLen  int
	Empty   bool
	Prefer  bool
	Dynamic bool
	NoPS    bool
	NoPSE   bool
}

type Grammar struct {
	name                 string
	symbolTable          *symbol.SymbolTable
	productionSet        *productionSet
	augmentedStartSymbol symbol.Symbol
	startSymbol          symbol.Symbol
	layoutStartSymbol    symbol.Symbol
	terminals            map[symbol.Symbol]*Terminal
}

func (g *Grammar) Name() string {
	return g.name
}

func (g *Grammar) SymbolTable() *symbol.SymbolTableReader {
	return g.symbolTable.Reader()
}

func (g *Grammar) StartSymbol() symbol.Symbol {
	return g.startSymbol
}

// HasLayout reports whether the grammar defines a LAYOUT rule.
func (g *Grammar) HasLayout() bool {
	return !g.layoutStartSymbol.IsNil()
}

func (g *Grammar) LayoutStartSymbol() symbol.Symbol {
	return g.layoutStartSymbol
}

func (g *Grammar) Terminal(sym symbol.Symbol) (*Terminal, bool) {
	t, ok := g.terminals[sym]
	return t, ok
}

func (g *Grammar) Terminals() []*Terminal {
	terms := make([]*Terminal, 0, len(g.terminals))
	for _, sym := range g.symbolTable.Reader().TerminalSymbols() {
		if t, ok := g.terminals[sym]; ok {
			terms = append(terms, t)
		}
	}
	return terms
}

// ProductionCount reports the width needed to index productions by number,
// including the reserved nil number 0.
func (g *Grammar) ProductionCount() int {
	return g.productionSet.count()
}

func (g *Grammar) ProductionInfo(num int) (ProductionInfo, bool) {
	prod, ok := g.productionSet.findByNum(productionNum(num))
	if !ok {
		return ProductionInfo{}, false
	}
	return ProductionInfo{
		Num:     prod.num.Int(),
		LHS:     prod.lhs,
		RHSLen:  prod.rhsLen,
		Empty:   prod.isEmpty(),
		Prefer:  prod.prefer,
		Dynamic: prod.dynamic,
		NoPS:    prod.nops,
		NoPSE:   prod.nopse,
	}, true
}

// ProductionString renders a production as `lhs = rhs ...` for diagnostics.
func (g *Grammar) ProductionString(num int) string {
	prod, ok := g.productionSet.findByNum(productionNum(num))
	if !ok {
		return ""
	}
	reader := g.symbolTable.Reader()
	lhs, _ := reader.ToText(prod.lhs)
	s := lhs + " ="
	if prod.isEmpty() {
		return s + " " + ReservedNameEmpty
	}
	for _, sym := range prod.rhs {
		text, _ := reader.ToText(sym)
		s += " " + text
	}
	return s
}

func (g *Grammar) terminalPriority(sym symbol.Symbol) int {
	if t, ok := g.terminals[sym]; ok && t.Priority > 0 {
		return t.Priority
	}
	return DefaultPriority
}

func (g *Grammar) productionPriority(num productionNum) int {
	prod, ok := g.productionSet.findByNum(num)
	if !ok {
		return DefaultPriority
	}
	return prod.effectivePriority(g.terminalPriority)
}

func (g *Grammar) productionAssociativity(num productionNum) AssocType {
	prod, ok := g.productionSet.findByNum(num)
	if !ok {
		return AssocTypeNil
	}
	return prod.assoc
}

// GrammarBuilder assembles a Grammar from a surface-notation AST. All
// problems found during the build are accumulated and reported together.
type GrammarBuilder struct {
	AST *spec.RootNode

	// Name overrides the grammar name; when empty, the start rule's LHS is
	// used.
	Name string

	// StartRule overrides the start symbol; when empty, the first
	// non-terminal rule of the source is the start rule.
	StartRule string

	errs verr.SpecErrors
}

func (b *GrammarBuilder) Build() (*Grammar, error) {
	if b.AST == nil || len(b.AST.Rules) == 0 {
		b.errs = append(b.errs, &verr.SpecError{
			Cause: semErrNoProduction,
		})
		return nil, b.errs
	}

	termRules, prodRules := splitRules(b.AST)

	symTab := symbol.NewSymbolTable()
	w := symTab.Writer()
	terminals := map[symbol.Symbol]*Terminal{}

	// Terminal rules come first so that production rules can reference them.
	for _, rule := range termRules {
		if sym, ok := symTab.Reader().ToSymbol(rule.LHS); ok {
			if _, dup := terminals[sym]; dup {
				b.errs = append(b.errs, &verr.SpecError{
					Cause:  semErrDuplicateTerminal,
					Detail: rule.LHS,
					Row:    rule.Pos.Row,
					Col:    rule.Pos.Col,
				})
				continue
			}
		}

		sym, err := w.RegisterTerminalSymbol(rule.LHS)
		if err != nil {
			return nil, err
		}

		term := &Terminal{
			Symbol: sym,
			Name:   rule.LHS,
			Pos:    rule.Pos,
		}
		elem := rule.RHS[0].Elements[0]
		if elem.Pattern != "" {
			term.Pattern = elem.Pattern
		} else {
			term.Literal = elem.Literal
		}
		b.applyTerminalModifiers(term, rule.RHS[0].Modifiers)
		terminals[sym] = term
	}

	// Determine the start rule and register non-terminals.
	startName := b.StartRule
	if startName == "" {
		for _, rule := range prodRules {
			if rule.LHS != ReservedNameLayout {
				startName = rule.LHS
				break
			}
		}
	}
	if startName == "" {
		b.errs = append(b.errs, &verr.SpecError{
			Cause: semErrNoProduction,
		})
		return nil, b.errs
	}

	augmentedStartName := startName + "'"
	augStartSym, err := w.RegisterStartSymbol(augmentedStartName)
	if err != nil {
		return nil, err
	}

	for _, rule := range prodRules {
		if rule.LHS == augmentedStartName {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrDuplicateName,
				Detail: rule.LHS,
				Row:    rule.Pos.Row,
				Col:    rule.Pos.Col,
			})
			continue
		}
		if sym, ok := symTab.Reader().ToSymbol(rule.LHS); ok && sym.IsTerminal() {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrDuplicateName,
				Detail: rule.LHS,
				Row:    rule.Pos.Row,
				Col:    rule.Pos.Col,
			})
			continue
		}
		if _, err := w.RegisterNonTerminalSymbol(rule.LHS); err != nil {
			return nil, err
		}
	}

	startSym, ok := symTab.Reader().ToSymbol(startName)
	if !ok || !startSym.IsNonTerminal() {
		b.errs = append(b.errs, &verr.SpecError{
			Cause:  semErrUndefinedSym,
			Detail: startName,
		})
		return nil, b.errs
	}

	prods := newProductionSet()

	// S' = start
	{
		prod, err := newProduction(augStartSym, []symbol.Symbol{startSym})
		if err != nil {
			return nil, err
		}
		prods.append(prod)
	}

	layoutSym := symbol.SymbolNil
	if sym, ok := symTab.Reader().ToSymbol(ReservedNameLayout); ok && sym.IsNonTerminal() {
		layoutSym = sym
	}

	for _, rule := range prodRules {
		lhsSym, ok := symTab.Reader().ToSymbol(rule.LHS)
		if !ok || !lhsSym.IsNonTerminal() {
			continue
		}

		for _, alt := range rule.RHS {
			rhs, emptyOK := b.genAlternativeRHS(symTab, w, terminals, alt)
			if !emptyOK {
				continue
			}

			prod, err := newProduction(lhsSym, rhs)
			if err != nil {
				return nil, err
			}
			b.applyProductionModifiers(prod, alt.Modifiers)

			if !prods.append(prod) {
				b.errs = append(b.errs, &verr.SpecError{
					Cause:  semErrDuplicateProduction,
					Detail: rule.LHS,
					Row:    alt.Pos.Row,
					Col:    alt.Pos.Col,
				})
			}
		}
	}

	if len(b.errs) > 0 {
		return nil, b.errs
	}

	name := b.Name
	if name == "" {
		name = startName
	}

	return &Grammar{
		name:                 name,
		symbolTable:          symTab,
		productionSet:        prods,
		augmentedStartSymbol: augStartSym,
		startSymbol:          startSym,
		layoutStartSymbol:    layoutSym,
		terminals:            terminals,
	}, nil
}

// genAlternativeRHS resolves the elements of one alternative to symbols.
// Inline string literals define anonymous terminals named by their text.
// The reserved EMPTY element yields an empty rhs.
func (b *GrammarBuilder) genAlternativeRHS(symTab *symbol.SymbolTable, w *symbol.SymbolTableWriter, terminals map[symbol.Symbol]*Terminal, alt *spec.AlternativeNode) ([]symbol.Symbol, bool) {
	if len(alt.Elements) == 1 && alt.Elements[0].ID == ReservedNameEmpty {
		return nil, true
	}

	rhs := make([]symbol.Symbol, 0, len(alt.Elements))
	for _, elem := range alt.Elements {
		switch {
		case elem.ID != "":
			if elem.ID == ReservedNameEmpty {
				b.errs = append(b.errs, &verr.SpecError{
					Cause:  semErrEmptyNotAlone,
					Row:    elem.Pos.Row,
					Col:    elem.Pos.Col,
					Detail: elem.ID,
				})
				return nil, false
			}
			sym, ok := symTab.Reader().ToSymbol(elem.ID)
			if !ok {
				b.errs = append(b.errs, &verr.SpecError{
					Cause:  semErrUndefinedSym,
					Detail: elem.ID,
					Row:    elem.Pos.Row,
					Col:    elem.Pos.Col,
				})
				return nil, false
			}
			rhs = append(rhs, sym)
		case elem.Literal != "":
			sym, err := w.RegisterTerminalSymbol(elem.Literal)
			if err != nil {
				b.errs = append(b.errs, &verr.SpecError{
					Cause:  err,
					Row:    elem.Pos.Row,
					Col:    elem.Pos.Col,
					Detail: elem.Literal,
				})
				return nil, false
			}
			if _, ok := terminals[sym]; !ok {
				terminals[sym] = &Terminal{
					Symbol:  sym,
					Name:    elem.Literal,
					Literal: elem.Literal,
					Pos:     elem.Pos,
				}
			}
			rhs = append(rhs, sym)
		default:
			b.errs = append(b.errs, &verr.SpecError{
				Cause: semErrPatternInProduction,
				Row:   elem.Pos.Row,
				Col:   elem.Pos.Col,
			})
			return nil, false
		}
	}

	return rhs, true
}

func (b *GrammarBuilder) applyTerminalModifiers(term *Terminal, mods []*spec.ModifierNode) {
	for _, mod := range mods {
		switch {
		case mod.IsPriority:
			term.Priority = mod.Priority
		case mod.Name == "left":
			term.Assoc = AssocTypeLeft
		case mod.Name == "right":
			term.Assoc = AssocTypeRight
		case mod.Name == "prefer":
			term.Prefer = true
		case mod.Name == "finish":
			term.Finish = true
		case mod.Name == "nofinish":
			term.Finish = false
		case mod.Name == "dynamic":
			term.Dynamic = true
		default:
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrInvalidModifier,
				Detail: mod.Name,
				Row:    mod.Pos.Row,
				Col:    mod.Pos.Col,
			})
		}
	}
}

func (b *GrammarBuilder) applyProductionModifiers(prod *production, mods []*spec.ModifierNode) {
	for _, mod := range mods {
		switch {
		case mod.IsPriority:
			prod.priority = mod.Priority
		case mod.Name == "left":
			prod.assoc = AssocTypeLeft
		case mod.Name == "right":
			prod.assoc = AssocTypeRight
		case mod.Name == "nops":
			prod.nops = true
		case mod.Name == "nopse":
			prod.nopse = true
		case mod.Name == "prefer":
			prod.prefer = true
		case mod.Name == "dynamic":
			prod.dynamic = true
		default:
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrInvalidModifier,
				Detail: mod.Name,
				Row:    mod.Pos.Row,
				Col:    mod.Pos.Col,
			})
		}
	}
}

// splitRules partitions the rules of a source into terminal rules and
// production rules. A rule is a terminal rule when its whole body is a
// single regexp pattern or a single string literal.
func splitRules(root *spec.RootNode) ([]*spec.RuleNode, []*spec.RuleNode) {
	var termRules []*spec.RuleNode
	var prodRules []*spec.RuleNode
	for _, rule := range root.Rules {
		if isTerminalRule(rule) {
			termRules = append(termRules, rule)
		} else {
			prodRules = append(prodRules, rule)
		}
	}
	return termRules, prodRules
}

func isTerminalRule(rule *spec.RuleNode) bool {
	if len(rule.RHS) != 1 || len(rule.RHS[0].Elements) != 1 {
		return false
	}
	elem := rule.RHS[0].Elements[0]
	return elem.Pattern != "" || elem.Literal != ""
}
