// Package driver runs parsing tables over input. Parser is the
// deterministic LR driver; GLRParser generalizes it to conflicted tables
// with a graph-structured stack and a shared packed parse forest.
package driver

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ktada/glaive/forest"
	"github.com/ktada/glaive/grammar"
	"github.com/ktada/glaive/grammar/symbol"
)

// Result is what a successful parse hands back. Forest and Root are set
// when tree building is on; Value holds the semantic value when an action
// dispatcher is installed.
type Result struct {
	Forest *forest.Forest
	Root   forest.NodeID
	Value  interface{}
}

// Parser is the deterministic LR driver. The table it runs must be
// conflict-free; remaining shift/reduce conflicts are resolved toward the
// shift by default so that common optional/repetition grammars stay
// deterministic.
type Parser struct {
	gram *grammar.Grammar
	tab  *grammar.ParsingTable
	scan *scanner
	c    *config
}

// NewParser builds a deterministic parser for gram. Table construction
// fails with a TableConflictError when conflicts survive resolution.
func NewParser(gram *grammar.Grammar, opts ...Option) (*Parser, error) {
	c := defaultConfig()
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	preferShifts := true
	if c.preferShifts != nil {
		preferShifts = *c.preferShifts
	}
	preferShiftsOverEmpty := true
	if c.preferShiftsOverEmpty != nil {
		preferShiftsOverEmpty = *c.preferShiftsOverEmpty
	}

	tab, err := gram.GenParsingTable(&grammar.TableConfig{
		Class:                 c.tables,
		PreferShifts:          preferShifts,
		PreferShiftsOverEmpty: preferShiftsOverEmpty,
	})
	if err != nil {
		return nil, err
	}

	scan, err := newScanner(gram, c)
	if err != nil {
		return nil, err
	}

	return &Parser{
		gram: gram,
		tab:  tab,
		scan: scan,
		c:    c,
	}, nil
}

// Table exposes the parsing table the parser runs.
func (p *Parser) Table() *grammar.ParsingTable {
	return p.tab
}

// frame pairs a stack entry's forest node with its inline semantic value.
type frame struct {
	node  forest.NodeID
	start int
	end   int
	value interface{}
}

// Parse runs the driver over input. It returns a ParseError on input the
// table rejects, a DisambiguationError when token selection stays
// ambiguous, and a CancelledError when ctx is done.
func (p *Parser) Parse(ctx context.Context, input []byte) (*Result, error) {
	var f *forest.Forest
	if p.c.buildTree {
		f = forest.New()
	}

	states := []int{p.tab.InitialState()}
	frames := []frame{{node: forest.NodeNil}}
	top := func() int {
		return states[len(states)-1]
	}

	pos := 0
	var pending []*Token
	var tok *Token

	for {
		select {
		case <-ctx.Done():
			return nil, &CancelledError{Err: ctx.Err()}
		default:
		}

		if tok == nil {
			if len(pending) > 0 {
				tok = pending[0]
				pending = pending[1:]
			} else {
				pos = p.scan.skipLayout(input, pos)
				expected := p.tab.ExpectedTerminals(top())
				matches := p.scan.tokensAt(input, pos, expected, false)
				selected := p.scan.selectTokens(matches)
				switch {
				case len(selected) == 0:
					newPos, inserted, recovered := p.recover(ctx, input, pos, expected)
					if !recovered {
						row, col := rowCol(input, pos)
						return nil, &ParseError{
							SourceName: p.c.sourceName,
							Pos:        pos,
							Row:        row,
							Col:        col,
							Expected:   p.scan.terminalNames(expected),
						}
					}
					pos = newPos
					pending = append(pending, inserted...)
					continue
				case len(selected) > 1:
					row, col := rowCol(input, pos)
					return nil, &DisambiguationError{
						Pos:        pos,
						Row:        row,
						Col:        col,
						Candidates: p.scan.terminalNames(tokenSymbols(selected)),
					}
				}
				tok = selected[0]
			}
		}

		acts := p.tab.Actions(top(), tok.Symbol)
		if len(acts) != 1 {
			expected := p.tab.ExpectedTerminals(top())
			newPos, inserted, recovered := p.recover(ctx, input, tok.Pos, expected)
			if !recovered {
				row, col := rowCol(input, tok.Pos)
				return nil, &ParseError{
					SourceName: p.c.sourceName,
					Pos:        tok.Pos,
					Row:        row,
					Col:        col,
					Expected:   p.scan.terminalNames(expected),
				}
			}
			pos = newPos
			pending = append(pending, inserted...)
			tok = nil
			continue
		}
		act := acts[0]

		switch act.Type {
		case grammar.ActionTypeShift:
			tracer().Debugf("shift %v at %v -> state %v", tok.Symbol, tok.Pos, act.State)
			fr := frame{
				node:  forest.NodeNil,
				start: tok.Pos,
				end:   tok.Pos + tok.Length,
			}
			if f != nil {
				fr.node = f.AddTerminalNode(tok.Symbol, fr.start, fr.end, tok.Value)
			} else if p.c.actions != nil {
				v, err := p.c.actions.Terminal(tok.Symbol, tok.Value, fr.start, fr.end)
				if err != nil {
					return nil, err
				}
				fr.value = v
			}
			states = append(states, act.State)
			frames = append(frames, fr)
			pos = tok.Pos + tok.Length
			tok = nil

		case grammar.ActionTypeReduce:
			info, ok := p.gram.ProductionInfo(act.Production)
			if !ok {
				return nil, fmt.Errorf("unknown production %v", act.Production)
			}
			if info.LHS.IsStart() {
				tracer().Debugf("accept at %v", pos)
				return p.finish(f, frames[len(frames)-1])
			}
			tracer().Debugf("reduce %v", p.gram.ProductionString(act.Production))

			popped := frames[len(frames)-info.RHSLen:]
			start, end := pos, pos
			if len(popped) > 0 {
				start = popped[0].start
				end = popped[len(popped)-1].end
			}

			fr := frame{
				node:  forest.NodeNil,
				start: start,
				end:   end,
			}
			if f != nil {
				children := make([]forest.NodeID, len(popped))
				for i, pf := range popped {
					children[i] = pf.node
				}
				fr.node, _ = f.AddNode(info.LHS, act.Production, start, end, children)
			} else if p.c.actions != nil {
				children := make([]interface{}, len(popped))
				for i, pf := range popped {
					children[i] = pf.value
				}
				v, err := p.c.actions.Reduce(act.Production, children, start, end)
				if err != nil {
					return nil, err
				}
				fr.value = v
			}

			states = states[:len(states)-info.RHSLen]
			frames = frames[:len(frames)-info.RHSLen]
			next, ok := p.tab.GoTo(top(), info.LHS)
			if !ok {
				return nil, fmt.Errorf("no goto from state %v on %v", top(), info.LHS)
			}
			states = append(states, next)
			frames = append(frames, fr)

		default:
			return nil, fmt.Errorf("unexpected action %v", act)
		}
	}
}

// recover consults the installed recovery strategy. Without one, every
// syntax error is fatal.
func (p *Parser) recover(ctx context.Context, input []byte, pos int, expected []symbol.Symbol) (int, []*Token, bool) {
	if p.c.recovery == nil {
		return 0, nil, false
	}
	return p.c.recovery(ctx, input, pos, p.scan.terminalNames(expected))
}

// finish assembles the Result after the accepting reduce. With a forest,
// installed semantic actions run over it; without one, the inline value of
// the final frame is the result.
func (p *Parser) finish(f *forest.Forest, top frame) (*Result, error) {
	res := &Result{
		Forest: f,
		Root:   forest.NodeNil,
	}
	if f != nil {
		res.Root = top.node
		if p.c.actions != nil {
			v, err := f.InvokeActions(res.Root, p.c.actions)
			if err != nil {
				return nil, err
			}
			res.Value = v
		}
		return res, nil
	}
	res.Value = top.value
	return res, nil
}

// ParseString is Parse over a string.
func (p *Parser) ParseString(ctx context.Context, input string) (*Result, error) {
	return p.Parse(ctx, []byte(input))
}

// ParseFile reads path and parses its contents. The file name labels
// parse errors unless a SourceName option already does.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if p.c.sourceName == "" {
		p.c.sourceName = path
	}
	return p.Parse(ctx, b)
}

func tokenSymbols(toks []*Token) []symbol.Symbol {
	syms := make([]symbol.Symbol, len(toks))
	for i, t := range toks {
		syms[i] = t.Symbol
	}
	return syms
}

// PrintTree renders a tree with one node per line, children indented below
// their parent.
func PrintTree(w io.Writer, gram *grammar.Grammar, t *forest.Tree) {
	printTree(w, gram, t, "", "")
}

func printTree(w io.Writer, gram *grammar.Grammar, t *forest.Tree, ruledLine string, childRuledLinePrefix string) {
	if t == nil {
		return
	}
	name, ok := gram.SymbolTable().ToText(t.Symbol)
	if !ok {
		name = fmt.Sprintf("%v", t.Symbol)
	}
	if t.Terminal {
		fmt.Fprintf(w, "%v%v %#v\n", ruledLine, name, t.Value)
		return
	}
	fmt.Fprintf(w, "%v%v\n", ruledLine, name)
	num := len(t.Children)
	for i, c := range t.Children {
		var line string
		if num > 1 && i < num-1 {
			line = "├─ "
		} else {
			line = "└─ "
		}
		var prefix string
		if i >= num-1 {
			prefix = "   "
		} else {
			prefix = "│  "
		}
		printTree(w, gram, c, childRuledLinePrefix+line, childRuledLinePrefix+prefix)
	}
}
