package driver

import (
	"fmt"
	"sort"

	"github.com/ktada/glaive/grammar"
	"github.com/ktada/glaive/grammar/symbol"
	"github.com/ktada/glaive/recognizer"
)

// scanner is the scannerless front of both parsers: it skips layout and
// recognizes terminals on demand, driven by the terminals the live parser
// state can accept.
type scanner struct {
	gram      *grammar.Grammar
	registry  *recognizer.Registry
	skipper   *recognizer.WhitespaceSkipper
	layoutTab *grammar.ParsingTable
}

func newScanner(gram *grammar.Grammar, c *config) (*scanner, error) {
	registry := recognizer.NewRegistry()
	if err := registry.Register(symbol.SymbolEOF, recognizer.NewEOFRecognizer()); err != nil {
		return nil, err
	}
	for _, term := range gram.Terminals() {
		var rec recognizer.Recognizer
		switch {
		case term.Pattern != "":
			r, err := recognizer.NewRegExpRecognizer(term.Pattern)
			if err != nil {
				return nil, err
			}
			rec = r
		case term.Literal != "":
			rec = recognizer.NewStringRecognizer(term.Literal)
		default:
			return nil, fmt.Errorf("terminal %v has no recognizer", term.Name)
		}
		if err := registry.Register(term.Symbol, rec); err != nil {
			return nil, err
		}
	}

	s := &scanner{
		gram:     gram,
		registry: registry,
	}

	if gram.HasLayout() {
		layoutTab, err := gram.GenLayoutParsingTable(&grammar.TableConfig{
			Class:                 c.tables,
			PreferShifts:          true,
			PreferShiftsOverEmpty: true,
		})
		if err != nil {
			return nil, fmt.Errorf("building layout table: %w", err)
		}
		s.layoutTab = layoutTab
	} else if !c.noWhitespace && c.whitespace != "" {
		s.skipper = recognizer.NewWhitespaceSkipper(c.whitespace)
	}

	return s, nil
}

// tokensAt runs the recognizers of the expected terminals at pos and keeps
// every match. Zero-length matches are dropped for all terminals but EOF;
// with eofAnywhere, EOF matches the empty string at any position, which
// lets a sub-parse stop mid-input.
func (s *scanner) tokensAt(input []byte, pos int, expected []symbol.Symbol, eofAnywhere bool) []*Token {
	type candidate struct {
		sym  symbol.Symbol
		term *grammar.Terminal
	}
	cands := make([]candidate, 0, len(expected))
	for _, sym := range expected {
		if sym.IsEOF() {
			cands = append(cands, candidate{sym: sym})
			continue
		}
		term, ok := s.gram.Terminal(sym)
		if !ok {
			continue
		}
		cands = append(cands, candidate{sym: sym, term: term})
	}

	// Higher-priority terminals run first so a finish match cuts off the
	// rest; literals run before patterns within a priority tier.
	sort.SliceStable(cands, func(i, j int) bool {
		pi, pj := grammar.DefaultPriority, grammar.DefaultPriority
		li, lj := false, false
		if cands[i].term != nil {
			if cands[i].term.Priority > 0 {
				pi = cands[i].term.Priority
			}
			li = cands[i].term.Literal != ""
		}
		if cands[j].term != nil {
			if cands[j].term.Priority > 0 {
				pj = cands[j].term.Priority
			}
			lj = cands[j].term.Literal != ""
		}
		if pi != pj {
			return pi > pj
		}
		if li != lj {
			return li
		}
		return cands[i].sym < cands[j].sym
	})

	var matches []*Token
	for _, c := range cands {
		if c.sym.IsEOF() {
			if eofAnywhere || pos == len(input) {
				matches = append(matches, &Token{
					Symbol: c.sym,
					Pos:    pos,
				})
			}
			continue
		}
		rec, ok := s.registry.Lookup(c.sym)
		if !ok {
			continue
		}
		length, value, ok := rec.Recognize(input, pos)
		if !ok || length == 0 {
			continue
		}
		matches = append(matches, &Token{
			Symbol: c.sym,
			Pos:    pos,
			Length: length,
			Value:  value,
		})
		if c.term.Finish {
			break
		}
	}
	return matches
}

// selectTokens applies the disambiguation policy to simultaneous matches:
// a unique prefer terminal at maximal length wins, then the longest match,
// then string literals beat patterns of equal length. A residual tie
// returns all survivors and the caller decides whether to fork or fail.
func (s *scanner) selectTokens(matches []*Token) []*Token {
	if len(matches) <= 1 {
		return matches
	}

	maxLen := 0
	for _, m := range matches {
		if m.Length > maxLen {
			maxLen = m.Length
		}
	}
	var longest []*Token
	for _, m := range matches {
		if m.Length == maxLen {
			longest = append(longest, m)
		}
	}

	var preferred []*Token
	for _, m := range longest {
		if term, ok := s.gram.Terminal(m.Symbol); ok && term.Prefer {
			preferred = append(preferred, m)
		}
	}
	if len(preferred) == 1 {
		return preferred
	}
	if len(longest) == 1 {
		return longest
	}

	var literals []*Token
	for _, m := range longest {
		if term, ok := s.gram.Terminal(m.Symbol); ok && term.Literal != "" {
			literals = append(literals, m)
		}
	}
	if len(literals) == 1 {
		return literals
	}
	if len(literals) > 1 {
		return literals
	}
	return longest
}

// skipLayout consumes inter-token layout: through the LAYOUT sub-parser if
// the grammar defines one, through the whitespace skipper otherwise. A
// failed layout parse skips nothing.
func (s *scanner) skipLayout(input []byte, pos int) int {
	if s.layoutTab == nil {
		if s.skipper != nil {
			return s.skipper.Skip(input, pos)
		}
		return pos
	}

	tab := s.layoutTab
	states := []int{tab.InitialState()}
	top := func() int {
		return states[len(states)-1]
	}
	cur := pos

	var tok *Token
	for {
		if tok == nil {
			matches := s.tokensAt(input, cur, tab.ExpectedTerminals(top()), true)
			selected := s.selectTokens(matches)
			if len(selected) == 0 {
				return pos
			}
			tok = selected[0]
		}

		acts := tab.Actions(top(), tok.Symbol)
		if len(acts) == 0 {
			return pos
		}
		act := acts[0]
		switch act.Type {
		case grammar.ActionTypeShift:
			states = append(states, act.State)
			cur += tok.Length
			tok = nil
		case grammar.ActionTypeReduce:
			info, ok := s.gram.ProductionInfo(act.Production)
			if !ok {
				return pos
			}
			if info.LHS.IsStart() {
				return cur
			}
			states = states[:len(states)-info.RHSLen]
			next, ok := tab.GoTo(top(), info.LHS)
			if !ok {
				return pos
			}
			states = append(states, next)
		}
	}
}

// terminalNames renders symbols for error messages, in symbol order.
func (s *scanner) terminalNames(syms []symbol.Symbol) []string {
	sorted := make([]symbol.Symbol, len(syms))
	copy(sorted, syms)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})
	names := make([]string, 0, len(sorted))
	for _, sym := range sorted {
		if sym.IsEOF() {
			names = append(names, symbol.SymbolNameEOF)
			continue
		}
		if term, ok := s.gram.Terminal(sym); ok {
			names = append(names, term.Name)
			continue
		}
		names = append(names, fmt.Sprintf("%v", sym))
	}
	return names
}
