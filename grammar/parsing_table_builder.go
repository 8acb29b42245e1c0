package grammar

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/npillmayer/schuko/tracing"

	"github.com/ktada/glaive/grammar/symbol"
)

// tracer traces with key 'glaive.grammar'.
func tracer() tracing.Trace {
	return tracing.Select("glaive.grammar")
}

// TableClass selects the automaton the ACTION/GOTO table is derived from.
type TableClass string

const (
	TableClassLALR = TableClass("lalr")
	TableClassLR1  = TableClass("lr1")
	TableClassSLR  = TableClass("slr")
)

type TableConfig struct {
	Class TableClass

	// AllowConflicts keeps all actions of an unresolved conflict in the
	// table instead of failing. A generalized parser forks on such cells.
	AllowConflicts bool

	// PreferShifts resolves remaining shift/reduce conflicts in favor of the
	// shift. Alternatives marked nops opt out.
	PreferShifts bool

	// PreferShiftsOverEmpty applies the same resolution when the reduction
	// is of an empty alternative. Alternatives marked nopse opt out.
	PreferShiftsOverEmpty bool

	// Describe populates ParsingTable.Description with a dump of the
	// automaton's states, actions, and conflicts.
	Describe bool
}

// GenParsingTable builds the ACTION/GOTO table for the grammar's start
// symbol. When the deterministic mode is requested and conflicts survive
// resolution, the returned error is a *TableConflictError.
func (g *Grammar) GenParsingTable(cfg *TableConfig) (*ParsingTable, error) {
	return g.genParsingTable(cfg, g.productionSet)
}

// GenLayoutParsingTable builds a table whose start symbol is LAYOUT. The
// driver runs it between tokens of the main grammar.
func (g *Grammar) GenLayoutParsingTable(cfg *TableConfig) (*ParsingTable, error) {
	if !g.HasLayout() {
		return nil, fmt.Errorf("grammar %v does not define a %v rule", g.name, ReservedNameLayout)
	}
	prods, err := g.layoutProductionSet()
	if err != nil {
		return nil, err
	}
	return g.genParsingTable(cfg, prods)
}

func (g *Grammar) genParsingTable(cfg *TableConfig, prods *productionSet) (*ParsingTable, error) {
	if cfg == nil {
		cfg = &TableConfig{}
	}
	class := cfg.Class
	if class == "" {
		class = TableClassLALR
	}

	first, err := genFirstSet(prods)
	if err != nil {
		return nil, err
	}

	var automaton *lrAutomaton
	switch class {
	case TableClassLR1, TableClassLALR:
		lr1, err := genLR1Automaton(prods, g.augmentedStartSymbol, first)
		if err != nil {
			return nil, err
		}
		automaton = lr1
		if class == TableClassLALR {
			automaton, err = genLALRAutomaton(lr1, prods)
			if err != nil {
				return nil, err
			}
		}
	case TableClassSLR:
		follow, err := genFollowSet(prods, first)
		if err != nil {
			return nil, err
		}
		automaton, err = genSLRAutomaton(prods, g.augmentedStartSymbol, follow)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown table class: %v", class)
	}

	b := &lrTableBuilder{
		automaton:             automaton,
		prods:                 prods,
		gram:                  g,
		termCount:             g.symbolTable.Reader().TerminalCount(),
		nonTermCount:          g.symbolTable.Reader().NonTerminalCount(),
		symTab:                g.symbolTable.Reader(),
		preferShifts:          cfg.PreferShifts,
		preferShiftsOverEmpty: cfg.PreferShiftsOverEmpty,
	}
	ptab, err := b.build()
	if err != nil {
		return nil, err
	}
	tracer().Infof("%v table built: %v states, %v conflicts", class, ptab.StateCount(), len(ptab.conflicts))

	if cfg.Describe {
		var w strings.Builder
		dw := &descriptionWriter{
			automaton: automaton,
			prods:     prods,
			gram:      g,
			symTab:    b.symTab,
			conflicts: ptab.conflicts,
		}
		dw.write(&w)
		ptab.Description = w.String()
	}

	if !cfg.AllowConflicts {
		var unresolved []*ConflictReport
		for _, c := range ptab.conflicts {
			if !c.Resolved {
				unresolved = append(unresolved, c)
			}
		}
		if len(unresolved) > 0 {
			return nil, &TableConflictError{Conflicts: unresolved}
		}
	}

	return ptab, nil
}

// layoutProductionSet derives a production set whose start production is
// S' → LAYOUT. Alternatives are copied so numbering in the main set stays
// untouched.
func (g *Grammar) layoutProductionSet() (*productionSet, error) {
	prods := newProductionSet()

	startProd, err := newProduction(g.augmentedStartSymbol, []symbol.Symbol{g.layoutStartSymbol})
	if err != nil {
		return nil, err
	}
	prods.append(startProd)

	for num := productionNumMin; num.Int() < g.productionSet.count(); num++ {
		p, ok := g.productionSet.findByNum(num)
		if !ok {
			return nil, fmt.Errorf("production not found: %v", num)
		}
		clone := *p
		prods.append(&clone)
	}

	return prods, nil
}

type lrTableBuilder struct {
	automaton             *lrAutomaton
	prods                 *productionSet
	gram                  *Grammar
	termCount             int
	nonTermCount          int
	symTab                *symbol.SymbolTableReader
	preferShifts          bool
	preferShiftsOverEmpty bool

	conflicts []*ConflictReport
}

func (b *lrTableBuilder) build() (*ParsingTable, error) {
	initialState := b.automaton.states[b.automaton.initialState]
	ptab := &ParsingTable{
		actionTable:       make([]actionEntry, len(b.automaton.states)*b.termCount),
		multiActions:      map[int][]actionEntry{},
		goToTable:         make([]goToEntry, len(b.automaton.states)*b.nonTermCount),
		stateCount:        len(b.automaton.states),
		terminalCount:     b.termCount,
		nonTerminalCount:  b.nonTermCount,
		expectedTerminals: make([][]symbol.Symbol, len(b.automaton.states)),
		initialState:      initialState.num,
	}

	for _, state := range b.automaton.statesByNum() {
		type cell struct {
			hasShift   bool
			shiftState stateNum
			reduces    []productionNum
		}
		cells := map[symbol.Symbol]*cell{}
		cellOf := func(sym symbol.Symbol) *cell {
			c, ok := cells[sym]
			if !ok {
				c = &cell{}
				cells[sym] = c
			}
			return c
		}

		for sym, kID := range state.next {
			nextState, ok := b.automaton.states[kID]
			if !ok {
				return nil, fmt.Errorf("successor state not found; state: %v, symbol: %v", state.num, sym)
			}
			if sym.IsTerminal() {
				c := cellOf(sym)
				c.hasShift = true
				c.shiftState = nextState.num
			} else {
				ptab.writeGoTo(state.num, sym, nextState.num)
			}
		}

		for prodID, lookAhead := range state.reducible {
			prod, ok := b.prods.findByID(prodID)
			if !ok {
				return nil, fmt.Errorf("reducible production not found: %v", prodID)
			}
			for sym := range lookAhead {
				c := cellOf(sym)
				c.reduces = append(c.reduces, prod.num)
			}
		}

		syms := make([]symbol.Symbol, 0, len(cells))
		for sym := range cells {
			syms = append(syms, sym)
		}
		sort.Slice(syms, func(i, j int) bool {
			return syms[i] < syms[j]
		})

		for _, sym := range syms {
			c := cells[sym]
			sort.Slice(c.reduces, func(i, j int) bool {
				return c.reduces[i] < c.reduces[j]
			})

			entries := b.resolveCell(state.num, sym, c.hasShift, c.shiftState, c.reduces)
			if len(entries) == 0 {
				continue
			}
			pos := state.num.Int()*b.termCount + sym.Num().Int()
			ptab.writeAction(pos, entries)
			ptab.expectedTerminals[state.num] = append(ptab.expectedTerminals[state.num], sym)
		}
	}

	ptab.conflicts = b.conflicts
	return ptab, nil
}

// resolveCell resolves one ACTION cell. Reduce/reduce pairs resolve by
// alternative priority, then by the prefer flag; shift/reduce pairs resolve
// by priority, then by the reducing alternative's associativity, then by the
// prefer-shifts settings. Actions an unresolved conflict leaves behind all
// stay in the cell.
func (b *lrTableBuilder) resolveCell(state stateNum, sym symbol.Symbol, hasShift bool, shiftState stateNum, reduces []productionNum) []actionEntry {
	if len(reduces) > 1 {
		reduces = b.resolveRRConflicts(state, sym, reduces)
	}

	if hasShift && len(reduces) > 0 {
		var kept []productionNum
		shiftKept := true
		for _, prod := range reduces {
			if !shiftKept {
				kept = append(kept, prod)
				continue
			}
			winner, method := b.resolveSRConflict(sym, prod)
			report := &ConflictReport{
				Kind:       ConflictKindShiftReduce,
				State:      state.Int(),
				Symbol:     b.symbolText(sym),
				NextState:  shiftState.Int(),
				Production: b.productionText(prod),
				Resolution: method.String(),
				Resolved:   method != ResolvedByNone,
			}
			b.conflicts = append(b.conflicts, report)
			tracer().Debugf("%v", report)
			switch winner {
			case ActionTypeShift:
				// reduce dropped
			case ActionTypeReduce:
				shiftKept = false
				kept = append(kept, prod)
			default:
				kept = append(kept, prod)
			}
		}
		reduces = kept
		hasShift = shiftKept
	}

	var entries []actionEntry
	if hasShift {
		entries = append(entries, newShiftActionEntry(shiftState))
	}
	for _, prod := range reduces {
		entries = append(entries, newReduceActionEntry(prod))
	}
	return entries
}

func (b *lrTableBuilder) resolveRRConflicts(state stateNum, sym symbol.Symbol, reduces []productionNum) []productionNum {
	maxPrio := 0
	for _, prod := range reduces {
		if prio := b.gram.productionPriority(prod); prio > maxPrio {
			maxPrio = prio
		}
	}
	var winners []productionNum
	for _, prod := range reduces {
		if b.gram.productionPriority(prod) == maxPrio {
			winners = append(winners, prod)
		}
	}

	for _, loser := range reduces {
		dropped := true
		for _, w := range winners {
			if w == loser {
				dropped = false
				break
			}
		}
		if dropped {
			b.reportRRConflict(state, sym, winners[0], loser, ResolvedByPriority)
		}
	}

	if len(winners) > 1 {
		var preferred []productionNum
		for _, prod := range winners {
			if p, ok := b.prods.findByNum(prod); ok && p.prefer {
				preferred = append(preferred, prod)
			}
		}
		if len(preferred) == 1 {
			for _, loser := range winners {
				if loser == preferred[0] {
					continue
				}
				b.reportRRConflict(state, sym, preferred[0], loser, ResolvedByPrefer)
			}
			return preferred
		}
		for i := 1; i < len(winners); i++ {
			b.reportRRConflict(state, sym, winners[0], winners[i], ResolvedByNone)
		}
	}

	return winners
}

func (b *lrTableBuilder) reportRRConflict(state stateNum, sym symbol.Symbol, prod1, prod2 productionNum, method conflictResolutionMethod) {
	report := &ConflictReport{
		Kind:        ConflictKindReduceReduce,
		State:       state.Int(),
		Symbol:      b.symbolText(sym),
		Production1: b.productionText(prod1),
		Production2: b.productionText(prod2),
		Resolution:  method.String(),
		Resolved:    method != ResolvedByNone,
	}
	b.conflicts = append(b.conflicts, report)
	tracer().Debugf("%v", report)
}

func (b *lrTableBuilder) resolveSRConflict(sym symbol.Symbol, prodNum productionNum) (ActionType, conflictResolutionMethod) {
	termPrio := b.gram.terminalPriority(sym)
	prodPrio := b.gram.productionPriority(prodNum)
	if prodPrio > termPrio {
		return ActionTypeReduce, ResolvedByPriority
	}
	if termPrio > prodPrio {
		return ActionTypeShift, ResolvedByPriority
	}

	switch b.gram.productionAssociativity(prodNum) {
	case AssocTypeLeft:
		return ActionTypeReduce, ResolvedByAssoc
	case AssocTypeRight:
		return ActionTypeShift, ResolvedByAssoc
	}

	prod, ok := b.prods.findByNum(prodNum)
	if ok {
		if prod.isEmpty() {
			if b.preferShiftsOverEmpty && !prod.nopse {
				return ActionTypeShift, ResolvedByShift
			}
		} else if b.preferShifts && !prod.nops {
			return ActionTypeShift, ResolvedByShift
		}
	}

	return ActionTypeError, ResolvedByNone
}

func (b *lrTableBuilder) symbolText(sym symbol.Symbol) string {
	if sym.IsEOF() {
		return symbol.SymbolNameEOF
	}
	text, ok := b.symTab.ToText(sym)
	if !ok {
		return fmt.Sprintf("<symbol not found: %v>", sym)
	}
	return text
}

func (b *lrTableBuilder) productionText(num productionNum) string {
	prod, ok := b.prods.findByNum(num)
	if !ok {
		return fmt.Sprintf("%v", num.Int())
	}
	return productionToText(b.symTab, prod, -1)
}

type descriptionWriter struct {
	automaton *lrAutomaton
	prods     *productionSet
	gram      *Grammar
	symTab    *symbol.SymbolTableReader
	conflicts []*ConflictReport
}

func (dw *descriptionWriter) write(w io.Writer) {
	fmt.Fprintf(w, "# Conflicts\n\n")

	if len(dw.conflicts) > 0 {
		fmt.Fprintf(w, "%v conflicts:\n\n", len(dw.conflicts))
		for _, c := range dw.conflicts {
			fmt.Fprintf(w, "%v\n", c)
		}
		fmt.Fprintf(w, "\n")
	} else {
		fmt.Fprintf(w, "no conflicts\n\n")
	}

	fmt.Fprintf(w, "# Terminals\n\n")

	termSyms := dw.symTab.TerminalSymbols()

	fmt.Fprintf(w, "%v symbols:\n\n", len(termSyms))

	for _, sym := range termSyms {
		text, ok := dw.symTab.ToText(sym)
		if !ok {
			text = fmt.Sprintf("<symbol not found: %v>", sym)
		}
		if term, ok := dw.gram.Terminal(sym); ok && term.Pattern != "" {
			fmt.Fprintf(w, "%4v %v: /%v/\n", sym.Num(), text, term.Pattern)
		} else {
			fmt.Fprintf(w, "%4v %v\n", sym.Num(), text)
		}
	}

	fmt.Fprintf(w, "\n# Productions\n\n")

	fmt.Fprintf(w, "%v productions:\n\n", dw.prods.count()-1)

	for num := productionNumStart; num.Int() < dw.prods.count(); num++ {
		prod, ok := dw.prods.findByNum(num)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%4v %v\n", prod.num, dw.productionToString(prod, -1))
	}

	fmt.Fprintf(w, "\n# States\n\n")

	fmt.Fprintf(w, "%v states:\n\n", len(dw.automaton.states))

	for _, state := range dw.automaton.statesByNum() {
		fmt.Fprintf(w, "state %v\n", state.num)
		for _, item := range state.items {
			prod, ok := dw.prods.findByID(item.prod)
			if !ok {
				fmt.Fprintf(w, "<production not found>\n")
				continue
			}
			fmt.Fprintf(w, "    %v\n", dw.productionToString(prod, item.dot))
		}

		fmt.Fprintf(w, "\n")

		var shiftRecs []string
		var reduceRecs []string
		var gotoRecs []string
		var accRec string
		for sym, kID := range state.next {
			nextState := dw.automaton.states[kID]
			if sym.IsTerminal() {
				shiftRecs = append(shiftRecs, fmt.Sprintf("shift  %4v on %v", nextState.num, dw.symbolToText(sym)))
			} else {
				gotoRecs = append(gotoRecs, fmt.Sprintf("goto   %4v on %v", nextState.num, dw.symbolToText(sym)))
			}
		}
		for prodID, lookAhead := range state.reducible {
			prod, ok := dw.prods.findByID(prodID)
			if !ok {
				reduceRecs = append(reduceRecs, "<production not found>")
				continue
			}
			if prod.lhs.IsStart() {
				accRec = fmt.Sprintf("accept on %v", symbol.SymbolNameEOF)
				continue
			}
			for sym := range lookAhead {
				reduceRecs = append(reduceRecs, fmt.Sprintf("reduce %4v on %v", prod.num, dw.symbolToText(sym)))
			}
		}

		sort.Strings(shiftRecs)
		sort.Strings(reduceRecs)
		sort.Strings(gotoRecs)

		for _, rec := range shiftRecs {
			fmt.Fprintf(w, "    %v\n", rec)
		}
		for _, rec := range reduceRecs {
			fmt.Fprintf(w, "    %v\n", rec)
		}
		for _, rec := range gotoRecs {
			fmt.Fprintf(w, "    %v\n", rec)
		}
		if accRec != "" {
			fmt.Fprintf(w, "    %v\n", accRec)
		}
		fmt.Fprintf(w, "\n")
	}
}

func (dw *descriptionWriter) productionToString(prod *production, dot int) string {
	return productionToText(dw.symTab, prod, dot)
}

func (dw *descriptionWriter) symbolToText(sym symbol.Symbol) string {
	return symbolToText(dw.symTab, sym)
}

func productionToText(symTab *symbol.SymbolTableReader, prod *production, dot int) string {
	var w strings.Builder
	fmt.Fprintf(&w, "%v →", symbolToText(symTab, prod.lhs))
	for n, rhs := range prod.rhs {
		if n == dot {
			fmt.Fprintf(&w, " ・")
		}
		fmt.Fprintf(&w, " %v", symbolToText(symTab, rhs))
	}
	if dot == len(prod.rhs) {
		fmt.Fprintf(&w, " ・")
	}
	return w.String()
}

func symbolToText(symTab *symbol.SymbolTableReader, sym symbol.Symbol) string {
	if sym.IsNil() {
		return "<NULL>"
	}
	if sym.IsEOF() {
		return symbol.SymbolNameEOF
	}
	text, ok := symTab.ToText(sym)
	if !ok {
		return fmt.Sprintf("<symbol not found: %v>", sym)
	}
	return text
}
