package grammar

import (
	"errors"
	"strings"
	"testing"

	"github.com/ktada/glaive/grammar/symbol"
)

// runTable drives a deterministic table over a token sequence and fails the
// test unless the sequence is accepted.
func runTable(t *testing.T, gram *Grammar, tab *ParsingTable, tokens []string) {
	t.Helper()

	genSym := newTestSymbolGenerator(t, gram.symbolTable.Reader())
	syms := make([]symbol.Symbol, 0, len(tokens)+1)
	for _, tok := range tokens {
		syms = append(syms, genSym(tok))
	}
	syms = append(syms, symbol.SymbolEOF)

	stack := []int{tab.InitialState()}
	for i := 0; i < len(syms); {
		top := stack[len(stack)-1]
		acts := tab.Actions(top, syms[i])
		if len(acts) != 1 {
			t.Fatalf("state %v has %v actions on %v; want exactly 1", top, len(acts), syms[i])
		}
		switch act := acts[0]; act.Type {
		case ActionTypeShift:
			stack = append(stack, act.State)
			i++
		case ActionTypeReduce:
			prod, ok := gram.productionSet.findByNum(productionNum(act.Production))
			if !ok {
				t.Fatalf("production was not found: %v", act.Production)
			}
			if prod.lhs.IsStart() {
				return
			}
			stack = stack[:len(stack)-len(prod.rhs)]
			next, ok := tab.GoTo(stack[len(stack)-1], prod.lhs)
			if !ok {
				t.Fatalf("GOTO entry was not found; state: %v, symbol: %v", stack[len(stack)-1], prod.lhs)
			}
			stack = append(stack, next)
		default:
			t.Fatalf("unexpected action: %v", acts[0])
		}
	}
	t.Fatalf("the input was not accepted: %v", tokens)
}

const exprGrammarSrc = `
expr = expr add term | term;
term = term mul factor | factor;
factor = l_paren expr r_paren | id;
add = '+';
mul = '*';
l_paren = '(';
r_paren = ')';
id = /[A-Za-z_][0-9A-Za-z_]*/;
`

func TestGenParsingTable(t *testing.T) {
	t.Run("an unambiguous grammar is conflict-free in every class", func(t *testing.T) {
		var stateCounts []int
		for _, class := range []TableClass{TableClassLALR, TableClassLR1, TableClassSLR} {
			gram := genGrammar(t, exprGrammarSrc)
			tab, err := gram.GenParsingTable(&TableConfig{
				Class: class,
			})
			if err != nil {
				t.Fatalf("failed to build a %v table: %v", class, err)
			}
			if len(tab.Conflicts()) > 0 {
				t.Fatalf("the %v table has unexpected conflicts: %v", class, tab.Conflicts())
			}
			stateCounts = append(stateCounts, tab.StateCount())

			runTable(t, gram, tab, []string{"id", "add", "id", "mul", "id"})
			runTable(t, gram, tab, []string{"l_paren", "id", "r_paren"})

			genSym := newTestSymbolGenerator(t, gram.symbolTable.Reader())
			expected := map[symbol.Symbol]struct{}{
				genSym("l_paren"): {},
				genSym("id"):      {},
			}
			actual := tab.ExpectedTerminals(tab.InitialState())
			if len(actual) != len(expected) {
				t.Fatalf("unexpected expected terminals of the initial state\nwant: %+v\ngot: %+v", expected, actual)
			}
			for _, sym := range actual {
				if _, ok := expected[sym]; !ok {
					t.Fatalf("unexpected expected terminals of the initial state\nwant: %+v\ngot: %+v", expected, actual)
				}
			}
		}
		if lalr, lr1 := stateCounts[0], stateCounts[1]; lalr > lr1 {
			t.Fatalf("a LALR table must not have more states than a LR(1) table; LALR: %v, LR(1): %v", lalr, lr1)
		}
	})

	t.Run("an ambiguous grammar fails to build a deterministic table", func(t *testing.T) {
		gram := genGrammar(t, `
e = e add e | id;
add = '+';
id = /[a-z]+/;
`)
		_, err := gram.GenParsingTable(&TableConfig{})
		var confErr *TableConflictError
		if !errors.As(err, &confErr) {
			t.Fatalf("want a TableConflictError, got: %v", err)
		}
		if len(confErr.Conflicts) == 0 {
			t.Fatalf("a TableConflictError must carry its conflicts")
		}
		for _, c := range confErr.Conflicts {
			if c.Kind != ConflictKindShiftReduce {
				t.Errorf("unexpected conflict kind\nwant: %v\ngot: %v", ConflictKindShiftReduce, c.Kind)
			}
			if c.Resolved {
				t.Errorf("an unresolved conflict must not be reported as resolved: %v", c)
			}
		}
	})

	t.Run("AllowConflicts keeps every action of an unresolved conflict", func(t *testing.T) {
		gram := genGrammar(t, `
e = e add e | id;
add = '+';
id = /[a-z]+/;
`)
		tab, err := gram.GenParsingTable(&TableConfig{
			AllowConflicts: true,
		})
		if err != nil {
			t.Fatalf("failed to build a table: %v", err)
		}

		found := false
		for state := 0; state < tab.StateCount(); state++ {
			for _, sym := range tab.ExpectedTerminals(state) {
				acts := tab.Actions(state, sym)
				if len(acts) < 2 {
					continue
				}
				found = true
				if acts[0].Type != ActionTypeShift {
					t.Errorf("a shift must precede the reduces of a cell; got: %v", acts)
				}
				for _, act := range acts[1:] {
					if act.Type != ActionTypeReduce {
						t.Errorf("every action after the shift must be a reduce; got: %v", acts)
					}
				}
			}
		}
		if !found {
			t.Fatalf("no cell kept multiple actions")
		}
	})

	t.Run("prefer-shifts resolves remaining shift/reduce conflicts", func(t *testing.T) {
		gram := genGrammar(t, `
e = e add e | id;
add = '+';
id = /[a-z]+/;
`)
		tab, err := gram.GenParsingTable(&TableConfig{
			PreferShifts: true,
		})
		if err != nil {
			t.Fatalf("failed to build a table: %v", err)
		}
		if len(tab.Conflicts()) == 0 {
			t.Fatalf("the grammar's conflicts must still be reported")
		}
		for _, c := range tab.Conflicts() {
			if !c.Resolved {
				t.Errorf("an unresolved conflict survived prefer-shifts: %v", c)
			}
			if c.Resolution != ResolvedByShift.String() {
				t.Errorf("unexpected resolution\nwant: %v\ngot: %v", ResolvedByShift, c.Resolution)
			}
		}
	})

	t.Run("associativity resolves shift/reduce conflicts", func(t *testing.T) {
		for _, assoc := range []string{"left", "right"} {
			gram := genGrammar(t, strings.ReplaceAll(`
e = e add e {ASSOC} | id;
add = '+';
id = /[a-z]+/;
`, "ASSOC", assoc))
			tab, err := gram.GenParsingTable(&TableConfig{})
			if err != nil {
				t.Fatalf("failed to build a table with %v associativity: %v", assoc, err)
			}
			for _, c := range tab.Conflicts() {
				if !c.Resolved {
					t.Errorf("an unresolved conflict survived %v associativity: %v", assoc, c)
				}
				if c.Resolution != ResolvedByAssoc.String() {
					t.Errorf("unexpected resolution\nwant: %v\ngot: %v", ResolvedByAssoc, c.Resolution)
				}
			}
		}
	})

	t.Run("priority orders competing alternatives", func(t *testing.T) {
		gram := genGrammar(t, `
e = e mul e {left} | e add e {left} | id;
add = '+' {1};
mul = '*' {2};
id = /[a-z]+/;
`)
		tab, err := gram.GenParsingTable(&TableConfig{})
		if err != nil {
			t.Fatalf("failed to build a table: %v", err)
		}
		for _, c := range tab.Conflicts() {
			if !c.Resolved {
				t.Errorf("an unresolved conflict survived priorities: %v", c)
			}
		}
		runTable(t, gram, tab, []string{"id", "add", "id", "mul", "id"})
	})

	t.Run("prefer settles a reduce/reduce conflict", func(t *testing.T) {
		src := `
s = a | b;
a = word PREFER;
b = word;
word = 'w';
`
		gram := genGrammar(t, strings.ReplaceAll(src, "PREFER", ""))
		_, err := gram.GenParsingTable(&TableConfig{})
		var confErr *TableConflictError
		if !errors.As(err, &confErr) {
			t.Fatalf("want a TableConflictError, got: %v", err)
		}
		for _, c := range confErr.Conflicts {
			if c.Kind != ConflictKindReduceReduce {
				t.Errorf("unexpected conflict kind\nwant: %v\ngot: %v", ConflictKindReduceReduce, c.Kind)
			}
		}

		gram = genGrammar(t, strings.ReplaceAll(src, "PREFER", "{prefer}"))
		tab, err := gram.GenParsingTable(&TableConfig{})
		if err != nil {
			t.Fatalf("failed to build a table: %v", err)
		}
		for _, c := range tab.Conflicts() {
			if !c.Resolved {
				t.Errorf("an unresolved conflict survived prefer: %v", c)
			}
			if c.Resolution != ResolvedByPrefer.String() {
				t.Errorf("unexpected resolution\nwant: %v\ngot: %v", ResolvedByPrefer, c.Resolution)
			}
		}
		runTable(t, gram, tab, []string{"word"})
	})

	t.Run("a grammar outside SLR stays deterministic in LALR", func(t *testing.T) {
		src := `
s = l eq r | r;
l = ref r | id;
r = l;
eq = '=';
ref = '*';
id = /[A-Za-z0-9_]+/;
`
		gram := genGrammar(t, src)
		_, err := gram.GenParsingTable(&TableConfig{
			Class: TableClassSLR,
		})
		var confErr *TableConflictError
		if !errors.As(err, &confErr) {
			t.Fatalf("want a TableConflictError from the SLR table, got: %v", err)
		}

		gram = genGrammar(t, src)
		tab, err := gram.GenParsingTable(&TableConfig{
			Class: TableClassLALR,
		})
		if err != nil {
			t.Fatalf("failed to build a LALR table: %v", err)
		}
		if len(tab.Conflicts()) > 0 {
			t.Fatalf("the LALR table has unexpected conflicts: %v", tab.Conflicts())
		}
		runTable(t, gram, tab, []string{"ref", "id", "eq", "id"})
	})

	t.Run("state merging never manufactures conflicts absent from the LR(1) table", func(t *testing.T) {
		// Merging the LR(1) states of this grammar naively yields a
		// reduce/reduce conflict between e and f even though the grammar is
		// LR(1). Merged states that would conflict stay split instead.
		src := `
s = a_t e c_t | a_t f d_t | b_t f c_t | b_t e d_t;
e = e_t;
f = e_t;
a_t = 'a';
b_t = 'b';
c_t = 'c';
d_t = 'd';
e_t = 'e';
`
		for _, class := range []TableClass{TableClassLALR, TableClassLR1} {
			gram := genGrammar(t, src)
			tab, err := gram.GenParsingTable(&TableConfig{
				Class: class,
			})
			if err != nil {
				t.Fatalf("failed to build a %v table: %v", class, err)
			}
			if len(tab.Conflicts()) > 0 {
				t.Fatalf("the %v table has unexpected conflicts: %v", class, tab.Conflicts())
			}
			runTable(t, gram, tab, []string{"a_t", "e_t", "c_t"})
			runTable(t, gram, tab, []string{"b_t", "e_t", "c_t"})
		}
	})

	t.Run("Describe populates a table description", func(t *testing.T) {
		gram := genGrammar(t, exprGrammarSrc)
		tab, err := gram.GenParsingTable(&TableConfig{
			Describe: true,
		})
		if err != nil {
			t.Fatalf("failed to build a table: %v", err)
		}
		for _, section := range []string{"# Conflicts", "# Terminals", "# Productions", "# States"} {
			if !strings.Contains(tab.Description, section) {
				t.Errorf("the description lacks the %v section", section)
			}
		}
	})
}

func TestGenLayoutParsingTable(t *testing.T) {
	t.Run("the layout table starts from the LAYOUT rule", func(t *testing.T) {
		gram := genGrammar(t, `
s = foo bar;
LAYOUT = ws LAYOUT | ws;
foo = 'foo';
bar = 'bar';
ws = /[\t\n ]+/;
`)
		tab, err := gram.GenLayoutParsingTable(&TableConfig{})
		if err != nil {
			t.Fatalf("failed to build a layout table: %v", err)
		}
		runTable(t, gram, tab, []string{"ws"})
		runTable(t, gram, tab, []string{"ws", "ws"})

		mainTab, err := gram.GenParsingTable(&TableConfig{})
		if err != nil {
			t.Fatalf("failed to build the main table: %v", err)
		}
		runTable(t, gram, mainTab, []string{"foo", "bar"})
	})

	t.Run("a grammar without a LAYOUT rule has no layout table", func(t *testing.T) {
		gram := genGrammar(t, `
s = foo;
foo = 'foo';
`)
		if _, err := gram.GenLayoutParsingTable(&TableConfig{}); err == nil {
			t.Fatalf("want an error for a grammar without a layout rule")
		}
	})
}
