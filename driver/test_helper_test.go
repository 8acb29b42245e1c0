package driver

import (
	"strings"
	"testing"

	"github.com/ktada/glaive/forest"
	"github.com/ktada/glaive/grammar"
	"github.com/ktada/glaive/spec"
)

func buildGrammar(t *testing.T, src string) *grammar.Grammar {
	t.Helper()

	ast, err := spec.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("failed to parse the grammar source: %v", err)
	}
	b := grammar.GrammarBuilder{
		AST: ast,
	}
	gram, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build the grammar: %v", err)
	}
	return gram
}

func symbolName(t *testing.T, gram *grammar.Grammar, tree *forest.Tree) string {
	t.Helper()

	name, ok := gram.SymbolTable().ToText(tree.Symbol)
	if !ok {
		t.Fatalf("a symbol was not found: %v", tree.Symbol)
	}
	return name
}

func singleTree(t *testing.T, res *Result) *forest.Tree {
	t.Helper()

	cursor := res.Forest.EnumerateTrees(res.Root)
	if cursor.TreeCount() != 1 {
		t.Fatalf("unexpected tree count; want: 1, got: %v", cursor.TreeCount())
	}
	tree, ok := cursor.Next()
	if !ok {
		t.Fatalf("failed to extract a tree")
	}
	return tree
}
