package grammar

import (
	"errors"
	"strings"
	"testing"

	verr "github.com/ktada/glaive/error"
	"github.com/ktada/glaive/spec"
)

func buildWithBuilder(t *testing.T, b GrammarBuilder, src string) (*Grammar, error) {
	t.Helper()

	ast, err := spec.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("failed to parse the grammar source: %v", err)
	}
	b.AST = ast
	return b.Build()
}

func hasCause(err, cause error) bool {
	var errs verr.SpecErrors
	if !errors.As(err, &errs) {
		return false
	}
	for _, e := range errs {
		if e.Cause == cause {
			return true
		}
	}
	return false
}

func TestGrammarBuilder_Build(t *testing.T) {
	src := `
s = foo bar | s '+' s;
foo = 'foo';
bar = /b[a-z]*/;
`
	gram := genGrammar(t, src)
	reader := gram.SymbolTable()

	if name, _ := reader.ToText(gram.StartSymbol()); name != "s" {
		t.Errorf("unexpected start symbol; want: s, got: %v", name)
	}
	if _, ok := reader.ToSymbol("s'"); !ok {
		t.Errorf("the augmented start symbol must be registered")
	}

	fooSym, ok := reader.ToSymbol("foo")
	if !ok || !fooSym.IsTerminal() {
		t.Fatalf("a rule whose body is a single literal must be a terminal")
	}
	foo, ok := gram.Terminal(fooSym)
	if !ok || foo.Literal != "foo" || foo.Pattern != "" {
		t.Errorf("unexpected terminal; want a literal foo, got: %+v", foo)
	}

	barSym, ok := reader.ToSymbol("bar")
	if !ok || !barSym.IsTerminal() {
		t.Fatalf("a rule whose body is a single pattern must be a terminal")
	}
	bar, ok := gram.Terminal(barSym)
	if !ok || bar.Pattern != "b[a-z]*" || bar.Literal != "" {
		t.Errorf("unexpected terminal; want a pattern terminal, got: %+v", bar)
	}

	addSym, ok := reader.ToSymbol("+")
	if !ok || !addSym.IsTerminal() {
		t.Fatalf("an inline literal must define an anonymous terminal")
	}
	add, ok := gram.Terminal(addSym)
	if !ok || add.Literal != "+" {
		t.Errorf("unexpected anonymous terminal: %+v", add)
	}

	sSym, ok := reader.ToSymbol("s")
	if !ok || !sSym.IsNonTerminal() {
		t.Fatalf("a rule with multiple elements must be a non-terminal")
	}
	if gram.HasLayout() {
		t.Errorf("a grammar without a LAYOUT rule must not have a layout start symbol")
	}
}

func TestGrammarBuilder_TerminalModifiers(t *testing.T) {
	src := `
s = word num;
word = /[a-z]+/ {5, prefer, left};
num = /[0-9]+/ {finish, dynamic};
`
	gram := genGrammar(t, src)
	genSym := newTestSymbolGenerator(t, gram.SymbolTable())

	word, ok := gram.Terminal(genSym("word"))
	if !ok {
		t.Fatalf("the terminal word was not found")
	}
	if word.Priority != 5 || !word.Prefer || word.Assoc != AssocTypeLeft {
		t.Errorf("unexpected modifiers: %+v", word)
	}

	num, ok := gram.Terminal(genSym("num"))
	if !ok {
		t.Fatalf("the terminal num was not found")
	}
	if !num.Finish || !num.Dynamic || num.Priority != 0 {
		t.Errorf("unexpected modifiers: %+v", num)
	}
}

func TestGrammarBuilder_ProductionModifiers(t *testing.T) {
	src := `
s = foo bar {nops, nopse, prefer, dynamic} | foo;
foo = 'foo';
bar = 'bar';
`
	gram := genGrammar(t, src)

	var found bool
	for num := 1; num < gram.ProductionCount(); num++ {
		info, ok := gram.ProductionInfo(num)
		if !ok || info.RHSLen != 2 {
			continue
		}
		found = true
		if !info.NoPS || !info.NoPSE || !info.Prefer || !info.Dynamic {
			t.Errorf("unexpected production flags: %+v", info)
		}
	}
	if !found {
		t.Fatalf("the two-element production was not found")
	}
}

func TestGrammarBuilder_EmptyAlternative(t *testing.T) {
	src := `
s = foo | EMPTY;
foo = 'foo';
`
	gram := genGrammar(t, src)

	var found bool
	for num := 1; num < gram.ProductionCount(); num++ {
		info, ok := gram.ProductionInfo(num)
		if ok && info.Empty {
			found = true
			if info.RHSLen != 0 {
				t.Errorf("an empty production must have no rhs; got: %v", info.RHSLen)
			}
		}
	}
	if !found {
		t.Fatalf("the empty production was not found")
	}
}

func TestGrammarBuilder_Layout(t *testing.T) {
	src := `
s = foo;
LAYOUT = ws;
foo = 'foo';
ws = /[\t\n ]+/;
`
	gram := genGrammar(t, src)
	if !gram.HasLayout() {
		t.Fatalf("a grammar with a LAYOUT rule must have a layout start symbol")
	}
	if name, _ := gram.SymbolTable().ToText(gram.LayoutStartSymbol()); name != "LAYOUT" {
		t.Errorf("unexpected layout start symbol; want: LAYOUT, got: %v", name)
	}
	if name, _ := gram.SymbolTable().ToText(gram.StartSymbol()); name != "s" {
		t.Errorf("the LAYOUT rule must not become the start rule; got: %v", name)
	}
}

func TestGrammarBuilder_Overrides(t *testing.T) {
	src := `
s = t;
t = foo;
foo = 'foo';
`
	gram, err := buildWithBuilder(t, GrammarBuilder{Name: "calc", StartRule: "t"}, src)
	if err != nil {
		t.Fatalf("failed to build the grammar: %v", err)
	}
	if gram.Name() != "calc" {
		t.Errorf("unexpected name; want: calc, got: %v", gram.Name())
	}
	if name, _ := gram.SymbolTable().ToText(gram.StartSymbol()); name != "t" {
		t.Errorf("unexpected start symbol; want: t, got: %v", name)
	}
}

func TestGrammarBuilder_Errors(t *testing.T) {
	tests := []struct {
		caption string
		src     string
		builder GrammarBuilder
		cause   error
	}{
		{
			caption: "a grammar with only terminal rules has no production",
			src:     `foo = 'foo';`,
			cause:   semErrNoProduction,
		},
		{
			caption: "an undefined symbol is an error",
			src:     `s = foo;`,
			cause:   semErrUndefinedSym,
		},
		{
			caption: "EMPTY must stand alone in its alternative",
			src: `
s = foo EMPTY;
foo = 'foo';
`,
			cause: semErrEmptyNotAlone,
		},
		{
			caption: "duplicate alternatives are an error",
			src: `
s = foo | foo;
foo = 'foo';
`,
			cause: semErrDuplicateProduction,
		},
		{
			caption: "duplicate terminal rules are an error",
			src: `
s = foo;
foo = 'a';
foo = 'b';
`,
			cause: semErrDuplicateTerminal,
		},
		{
			caption: "a name cannot be both a terminal and a non-terminal",
			src: `
s = foo;
foo = bar;
foo = 'foo';
bar = 'bar';
`,
			cause: semErrDuplicateName,
		},
		{
			caption: "a terminal-only modifier is rejected on a production",
			src: `
s = foo {finish};
foo = 'foo';
`,
			cause: semErrInvalidModifier,
		},
		{
			caption: "an unknown start rule is an error",
			src: `
s = foo;
foo = 'foo';
`,
			builder: GrammarBuilder{StartRule: "t"},
			cause:   semErrUndefinedSym,
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			_, err := buildWithBuilder(t, tt.builder, tt.src)
			if err == nil {
				t.Fatalf("want an error %v, got success", tt.cause)
			}
			if !hasCause(err, tt.cause) {
				t.Fatalf("unexpected error\nwant: %v\ngot: %v", tt.cause, err)
			}
		})
	}
}
