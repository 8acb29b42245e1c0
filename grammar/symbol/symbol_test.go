package symbol

import "testing"

func TestSymbol_Kinds(t *testing.T) {
	symTab := NewSymbolTable()
	w := symTab.Writer()

	start, err := w.RegisterStartSymbol("expr'")
	if err != nil {
		t.Fatalf("failed to register the start symbol: %v", err)
	}
	nt, err := w.RegisterNonTerminalSymbol("expr")
	if err != nil {
		t.Fatalf("failed to register a non-terminal: %v", err)
	}
	term, err := w.RegisterTerminalSymbol("id")
	if err != nil {
		t.Fatalf("failed to register a terminal: %v", err)
	}

	tests := []struct {
		caption       string
		sym           Symbol
		isNil         bool
		isStart       bool
		isEOF         bool
		isTerminal    bool
		isNonTerminal bool
	}{
		{
			caption:       "the start symbol is a non-terminal",
			sym:           start,
			isStart:       true,
			isNonTerminal: true,
		},
		{
			caption:       "a registered non-terminal",
			sym:           nt,
			isNonTerminal: true,
		},
		{
			caption:    "a registered terminal",
			sym:        term,
			isTerminal: true,
		},
		{
			caption:    "the EOF symbol is a terminal",
			sym:        SymbolEOF,
			isEOF:      true,
			isTerminal: true,
		},
		{
			caption: "the nil symbol is nothing",
			sym:     SymbolNil,
			isNil:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			if v := tt.sym.IsNil(); v != tt.isNil {
				t.Errorf("unexpected IsNil; want: %v, got: %v", tt.isNil, v)
			}
			if v := tt.sym.IsStart(); v != tt.isStart {
				t.Errorf("unexpected IsStart; want: %v, got: %v", tt.isStart, v)
			}
			if v := tt.sym.IsEOF(); v != tt.isEOF {
				t.Errorf("unexpected IsEOF; want: %v, got: %v", tt.isEOF, v)
			}
			if v := tt.sym.IsTerminal(); v != tt.isTerminal {
				t.Errorf("unexpected IsTerminal; want: %v, got: %v", tt.isTerminal, v)
			}
			if v := tt.sym.IsNonTerminal(); v != tt.isNonTerminal {
				t.Errorf("unexpected IsNonTerminal; want: %v, got: %v", tt.isNonTerminal, v)
			}
		})
	}
}

func TestSymbolTable_Lookup(t *testing.T) {
	symTab := NewSymbolTable()
	w := symTab.Writer()
	r := symTab.Reader()

	if _, err := w.RegisterStartSymbol("s'"); err != nil {
		t.Fatalf("failed to register the start symbol: %v", err)
	}
	nt, err := w.RegisterNonTerminalSymbol("s")
	if err != nil {
		t.Fatalf("failed to register a non-terminal: %v", err)
	}
	term, err := w.RegisterTerminalSymbol("id")
	if err != nil {
		t.Fatalf("failed to register a terminal: %v", err)
	}

	if sym, ok := r.ToSymbol("s"); !ok || sym != nt {
		t.Errorf("unexpected symbol for s; want: %v, got: %v (ok: %v)", nt, sym, ok)
	}
	if text, ok := r.ToText(term); !ok || text != "id" {
		t.Errorf("unexpected text; want: id, got: %v (ok: %v)", text, ok)
	}
	if _, ok := r.ToSymbol("unknown"); ok {
		t.Errorf("an unregistered name must not resolve")
	}
	if sym, ok := r.ToSymbol(SymbolNameEOF); !ok || sym != SymbolEOF {
		t.Errorf("the EOF name must resolve to the EOF symbol; got: %v (ok: %v)", sym, ok)
	}

	dup, err := w.RegisterTerminalSymbol("id")
	if err != nil {
		t.Fatalf("re-registering a terminal must not fail: %v", err)
	}
	if dup != term {
		t.Errorf("re-registration must return the original symbol; want: %v, got: %v", term, dup)
	}
}

func TestSymbolTable_Enumeration(t *testing.T) {
	symTab := NewSymbolTable()
	w := symTab.Writer()
	r := symTab.Reader()

	if _, err := w.RegisterStartSymbol("s'"); err != nil {
		t.Fatalf("failed to register the start symbol: %v", err)
	}
	for _, name := range []string{"s", "t"} {
		if _, err := w.RegisterNonTerminalSymbol(name); err != nil {
			t.Fatalf("failed to register a non-terminal: %v", err)
		}
	}
	for _, name := range []string{"foo", "bar"} {
		if _, err := w.RegisterTerminalSymbol(name); err != nil {
			t.Fatalf("failed to register a terminal: %v", err)
		}
	}

	terms := r.TerminalSymbols()
	// EOF plus the two registered terminals.
	if len(terms) != 3 {
		t.Fatalf("unexpected terminal count; want: 3, got: %v", len(terms))
	}
	for i := 1; i < len(terms); i++ {
		if terms[i-1] >= terms[i] {
			t.Fatalf("terminals must be sorted; got: %v", terms)
		}
	}

	nonTerms := r.NonTerminalSymbols()
	// The start symbol plus the two registered non-terminals.
	if len(nonTerms) != 3 {
		t.Fatalf("unexpected non-terminal count; want: 3, got: %v", len(nonTerms))
	}

	if r.TerminalCount() != 4 {
		t.Errorf("unexpected terminal plane width; want: 4, got: %v", r.TerminalCount())
	}
	if r.NonTerminalCount() != 4 {
		t.Errorf("unexpected non-terminal plane width; want: 4, got: %v", r.NonTerminalCount())
	}

	termTexts, err := r.TerminalTexts()
	if err != nil {
		t.Fatalf("failed to get terminal texts: %v", err)
	}
	if termTexts[SymbolEOF.Num().Int()] != SymbolNameEOF {
		t.Errorf("the EOF slot must hold the EOF name; got: %v", termTexts[SymbolEOF.Num().Int()])
	}

	nonTermTexts, err := r.NonTerminalTexts()
	if err != nil {
		t.Fatalf("failed to get non-terminal texts: %v", err)
	}
	if nonTermTexts[SymbolStart.Num().Int()] != "s'" {
		t.Errorf("the start slot must hold the start name; got: %v", nonTermTexts[SymbolStart.Num().Int()])
	}
}

func TestSymbolTable_EmptyTable(t *testing.T) {
	r := NewSymbolTable().Reader()

	if _, err := r.TerminalTexts(); err == nil {
		t.Errorf("a table without terminals must report an error")
	}
	if _, err := r.NonTerminalTexts(); err == nil {
		t.Errorf("a table without non-terminals must report an error")
	}
}
