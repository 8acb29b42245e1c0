package driver

import (
	"context"
	"os"
	"sort"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"

	"github.com/ktada/glaive/forest"
	"github.com/ktada/glaive/grammar"
	"github.com/ktada/glaive/grammar/symbol"
)

// GLRParser is the generalized driver. It runs tables with conflicted
// cells by forking on every applicable action over a graph-structured
// stack, and packs the derivations of ambiguous input into a shared
// forest. Unlike Parser it always builds the forest; installed semantic
// actions run over the finished forest.
type GLRParser struct {
	gram *grammar.Grammar
	tab  *grammar.ParsingTable
	scan *scanner
	c    *config
}

// NewGLRParser builds a generalized parser for gram. Conflicts survive
// into the table as multi-action cells, and shift-preference is off by
// default so that every derivation is explored.
func NewGLRParser(gram *grammar.Grammar, opts ...Option) (*GLRParser, error) {
	c := defaultConfig()
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	preferShifts := false
	if c.preferShifts != nil {
		preferShifts = *c.preferShifts
	}
	preferShiftsOverEmpty := false
	if c.preferShiftsOverEmpty != nil {
		preferShiftsOverEmpty = *c.preferShiftsOverEmpty
	}

	tab, err := gram.GenParsingTable(&grammar.TableConfig{
		Class:                 c.tables,
		AllowConflicts:        true,
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

	return &GLRParser{
		gram: gram,
		tab:  tab,
		scan: scan,
		c:    c,
	}, nil
}

// Table exposes the parsing table the parser runs.
func (p *GLRParser) Table() *grammar.ParsingTable {
	return p.tab
}

// gssNode is one vertex of the graph-structured stack: a parser state
// reached at an input position. Heads with the same state and position
// are merged, which is what keeps the stack a graph.
type gssNode struct {
	state int
	pos   int
	edges []*gssEdge

	// processed records the reduce actions already applied to this
	// node, so that a later edge into it can re-run them restricted
	// to paths through the new edge.
	processed []appliedReduce
}

// gssEdge links a node to its predecessor and carries the forest node
// covering the input between them.
type gssEdge struct {
	target *gssNode
	label  forest.NodeID
}

type appliedReduce struct {
	tok *Token
	act grammar.Action
}

func (n *gssNode) findEdge(target *gssNode, label forest.NodeID) *gssEdge {
	for _, e := range n.edges {
		if e.target == target && e.label == label {
			return e
		}
	}
	return nil
}

type reduceJob struct {
	head *gssNode
	tok  *Token
	act  grammar.Action

	// edge restricts the reduce to paths through it. nil means all
	// paths.
	edge *gssEdge
}

type shiftJob struct {
	head    *gssNode
	tok     *Token
	toState int
}

// glrRun holds the per-parse state of the generalized driver.
type glrRun struct {
	p      *GLRParser
	input  []byte
	forest *forest.Forest

	// frontier holds the heads not yet processed, keyed by position;
	// pending keeps those positions ordered so heads are consumed in
	// input order.
	frontier map[int]map[int]*gssNode
	pending  *treeset.Set

	// heads indexes the nodes of the position being processed by
	// state.
	heads map[int]*gssNode

	reduces []reduceJob
	shifts  []shiftJob

	// actor queue of heads not yet scanned at the position being
	// processed.
	actors []*gssNode

	injected []*Token

	accepted   bool
	acceptRoot forest.NodeID

	// farthest failure, for the error message and for recovery.
	failPos      int
	failExpected map[symbol.Symbol]struct{}
	failHeads    []*gssNode
}

// Parse runs the generalized driver over input. Ambiguous input succeeds
// and packs every derivation into the result forest; inspect it with
// Forest.IsAmbiguous and EnumerateTrees.
func (p *GLRParser) Parse(ctx context.Context, input []byte) (*Result, error) {
	r := &glrRun{
		p:            p,
		input:        input,
		forest:       forest.New(),
		frontier:     map[int]map[int]*gssNode{},
		pending:      treeset.NewWith(utils.IntComparator),
		failPos:      -1,
		failExpected: map[symbol.Symbol]struct{}{},
	}

	startPos := p.scan.skipLayout(input, 0)
	init := &gssNode{state: p.tab.InitialState(), pos: startPos}
	r.frontier[startPos] = map[int]*gssNode{init.state: init}
	r.pending.Add(startPos)

	lastRecovery := -1
	for {
		pos, heads, ok := r.takeFrontier()
		if !ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &CancelledError{Err: ctx.Err()}
		default:
		}

		var forced *Token
		if len(r.injected) > 0 {
			forced = r.injected[0]
		}
		r.processPosition(heads, forced)
		if forced != nil {
			r.injected = r.injected[1:]
		}
		_ = pos

		if len(r.frontier) == 0 && !r.accepted {
			newPos, inserted, recovered := r.recover(ctx)
			if !recovered {
				break
			}
			if len(inserted) == 0 && newPos <= lastRecovery {
				break
			}
			lastRecovery = newPos
			r.resurrect(newPos, inserted)
		}
	}

	if !r.accepted {
		pos := r.failPos
		if pos < 0 {
			pos = 0
		}
		row, col := rowCol(input, pos)
		return nil, &ParseError{
			SourceName: p.c.sourceName,
			Pos:        pos,
			Row:        row,
			Col:        col,
			Expected:   p.scan.terminalNames(r.expectedList()),
		}
	}

	res := &Result{
		Forest: r.forest,
		Root:   r.acceptRoot,
	}
	if p.c.actions != nil {
		v, err := r.forest.InvokeActions(res.Root, p.c.actions)
		if err != nil {
			return nil, err
		}
		res.Value = v
	}
	return res, nil
}

// ParseString is Parse over a string.
func (p *GLRParser) ParseString(ctx context.Context, input string) (*Result, error) {
	return p.Parse(ctx, []byte(input))
}

// ParseFile reads path and parses its contents. The file name labels
// parse errors unless a SourceName option already does.
func (p *GLRParser) ParseFile(ctx context.Context, path string) (*Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if p.c.sourceName == "" {
		p.c.sourceName = path
	}
	return p.Parse(ctx, b)
}

// takeFrontier removes and returns the heads at the smallest pending
// position.
func (r *glrRun) takeFrontier() (int, map[int]*gssNode, bool) {
	it := r.pending.Iterator()
	if !it.First() {
		return 0, nil, false
	}
	min := it.Value().(int)
	r.pending.Remove(min)
	heads := r.frontier[min]
	delete(r.frontier, min)
	return min, heads, true
}

// processPosition runs the actor/reducer loop to closure over the heads
// of one position, then applies the collected shifts. With a forced
// token, scanning is bypassed and every head sees only that token.
func (r *glrRun) processPosition(heads map[int]*gssNode, forced *Token) {
	r.actors = r.actors[:0]
	r.reduces = r.reduces[:0]
	r.shifts = r.shifts[:0]

	states := make([]int, 0, len(heads))
	for state := range heads {
		states = append(states, state)
	}
	sort.Ints(states)
	for _, state := range states {
		r.actors = append(r.actors, heads[state])
	}
	r.heads = heads

	for len(r.actors) > 0 || len(r.reduces) > 0 {
		if len(r.actors) > 0 {
			head := r.actors[0]
			r.actors = r.actors[1:]
			r.actOn(head, forced)
			continue
		}
		job := r.reduces[0]
		r.reduces = r.reduces[1:]
		r.applyReduce(job)
	}

	r.applyShifts()
}

// actOn scans the tokens a head can accept and queues the applicable
// actions. Dead heads contribute their expectation set to the farthest
// failure.
func (r *glrRun) actOn(head *gssNode, forced *Token) {
	expected := r.p.tab.ExpectedTerminals(head.state)

	var toks []*Token
	if forced != nil {
		toks = []*Token{forced}
	} else {
		matches := r.p.scan.tokensAt(r.input, head.pos, expected, false)
		toks = r.p.scan.selectTokens(matches)
	}

	alive := false
	for _, tok := range toks {
		acts := r.p.tab.Actions(head.state, tok.Symbol)
		acts = r.filterDynamic(head, tok, acts)
		for _, act := range acts {
			switch act.Type {
			case grammar.ActionTypeShift:
				alive = true
				r.shifts = append(r.shifts, shiftJob{head: head, tok: tok, toState: act.State})
			case grammar.ActionTypeReduce:
				alive = true
				head.processed = append(head.processed, appliedReduce{tok: tok, act: act})
				r.reduces = append(r.reduces, reduceJob{head: head, tok: tok, act: act})
			}
		}
	}
	if !alive {
		r.noteFailure(head, expected)
	}
}

// filterDynamic hands conflicted action sets to the installed dynamic
// resolver when the terminal or a participating production asks for it.
func (r *glrRun) filterDynamic(head *gssNode, tok *Token, acts []grammar.Action) []grammar.Action {
	if r.p.c.dynamic == nil || len(acts) < 2 {
		return acts
	}
	dynamic := false
	if term, ok := r.p.gram.Terminal(tok.Symbol); ok && term.Dynamic {
		dynamic = true
	}
	if !dynamic {
		for _, act := range acts {
			if act.Type != grammar.ActionTypeReduce {
				continue
			}
			if info, ok := r.p.gram.ProductionInfo(act.Production); ok && info.Dynamic {
				dynamic = true
				break
			}
		}
	}
	if !dynamic {
		return acts
	}
	return r.p.c.dynamic(DynamicContext{
		State:   head.state,
		Symbol:  tok.Symbol,
		Value:   tok.Value,
		Pos:     tok.Pos,
		Actions: acts,
	})
}

// applyReduce walks every stack path of the production's length below the
// head, packs a forest node per path, and pushes the goto state. Reducing
// the start production on end of input accepts.
func (r *glrRun) applyReduce(job reduceJob) {
	info, ok := r.p.gram.ProductionInfo(job.act.Production)
	if !ok {
		return
	}

	paths := reducePaths(job.head, info.RHSLen, job.edge)
	for _, path := range paths {
		target := job.head
		if len(path) > 0 {
			target = path[len(path)-1].target
		}

		children := make([]forest.NodeID, info.RHSLen)
		for i, e := range path {
			children[info.RHSLen-1-i] = e.label
		}

		start, end := job.head.pos, job.head.pos
		if len(children) > 0 {
			start, _ = r.forest.Span(children[0])
			_, end = r.forest.Span(children[len(children)-1])
		}

		if info.LHS.IsStart() {
			if len(children) == 1 {
				tracer().Debugf("accept, root %v", children[0])
				r.accepted = true
				r.acceptRoot = children[0]
			}
			continue
		}

		next, ok := r.p.tab.GoTo(target.state, info.LHS)
		if !ok {
			continue
		}
		label, _ := r.forest.AddNode(info.LHS, job.act.Production, start, end, children)
		r.push(target, next, job.head.pos, label)
	}
}

// push adds an edge from a head in state `state` at pos down to target.
// A brand-new head joins the actor queue; a new edge into an
// already-scanned head re-queues its reduces constrained to that edge.
func (r *glrRun) push(target *gssNode, state int, pos int, label forest.NodeID) {
	head, ok := r.heads[state]
	if !ok {
		head = &gssNode{state: state, pos: pos}
		head.edges = append(head.edges, &gssEdge{target: target, label: label})
		r.heads[state] = head
		r.actors = append(r.actors, head)
		return
	}
	if head.findEdge(target, label) != nil {
		return
	}
	edge := &gssEdge{target: target, label: label}
	head.edges = append(head.edges, edge)
	for _, ar := range head.processed {
		r.reduces = append(r.reduces, reduceJob{head: head, tok: ar.tok, act: ar.act, edge: edge})
	}
}

// applyShifts moves the collected shifts past their tokens. Shifts of the
// same token into the same state merge into one new head, and the
// terminal's forest node is shared through interning.
func (r *glrRun) applyShifts() {
	for _, job := range r.shifts {
		end := job.tok.Pos + job.tok.Length
		newPos := r.p.scan.skipLayout(r.input, end)
		label := r.forest.AddTerminalNode(job.tok.Symbol, job.tok.Pos, end, job.tok.Value)

		heads, ok := r.frontier[newPos]
		if !ok {
			heads = map[int]*gssNode{}
			r.frontier[newPos] = heads
			r.pending.Add(newPos)
		}
		head, ok := heads[job.toState]
		if !ok {
			head = &gssNode{state: job.toState, pos: newPos}
			heads[job.toState] = head
		}
		if head.findEdge(job.head, label) == nil {
			head.edges = append(head.edges, &gssEdge{target: job.head, label: label})
		}
	}
}

// reducePaths enumerates the downward edge paths of the given length
// from head. With a constraint edge, only paths through it qualify.
func reducePaths(head *gssNode, length int, must *gssEdge) [][]*gssEdge {
	if length == 0 {
		if must != nil {
			return nil
		}
		return [][]*gssEdge{nil}
	}
	var out [][]*gssEdge
	var walk func(n *gssNode, depth int, acc []*gssEdge, used bool)
	walk = func(n *gssNode, depth int, acc []*gssEdge, used bool) {
		if depth == length {
			if must == nil || used {
				path := make([]*gssEdge, length)
				copy(path, acc)
				out = append(out, path)
			}
			return
		}
		for _, e := range n.edges {
			walk(e.target, depth+1, append(acc, e), used || e == must)
		}
	}
	walk(head, 0, make([]*gssEdge, 0, length), false)
	return out
}

// noteFailure records a dead head at the farthest failure position seen
// so far.
func (r *glrRun) noteFailure(head *gssNode, expected []symbol.Symbol) {
	if head.pos > r.failPos {
		r.failPos = head.pos
		r.failExpected = map[symbol.Symbol]struct{}{}
		r.failHeads = nil
	}
	if head.pos == r.failPos {
		for _, sym := range expected {
			r.failExpected[sym] = struct{}{}
		}
		r.failHeads = append(r.failHeads, head)
	}
}

func (r *glrRun) expectedList() []symbol.Symbol {
	syms := make([]symbol.Symbol, 0, len(r.failExpected))
	for sym := range r.failExpected {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool {
		return syms[i] < syms[j]
	})
	return syms
}

// recover consults the installed recovery strategy at the farthest
// failure position.
func (r *glrRun) recover(ctx context.Context) (int, []*Token, bool) {
	if r.p.c.recovery == nil || len(r.failHeads) == 0 {
		return 0, nil, false
	}
	return r.p.c.recovery(ctx, r.input, r.failPos, r.p.scan.terminalNames(r.expectedList()))
}

// resurrect revives the heads that died at the failure position, moved
// to newPos, and queues the tokens the recovery synthesized.
func (r *glrRun) resurrect(newPos int, inserted []*Token) {
	pos := r.p.scan.skipLayout(r.input, newPos)
	heads := map[int]*gssNode{}
	for _, head := range r.failHeads {
		head.pos = pos
		head.processed = head.processed[:0]
		if prev, ok := heads[head.state]; ok {
			for _, e := range head.edges {
				if prev.findEdge(e.target, e.label) == nil {
					prev.edges = append(prev.edges, e)
				}
			}
			continue
		}
		heads[head.state] = head
	}
	r.frontier[pos] = heads
	r.pending.Add(pos)
	for _, tok := range inserted {
		t := *tok
		t.Pos = pos
		r.injected = append(r.injected, &t)
	}
	r.failHeads = nil
	r.failPos = -1
	r.failExpected = map[symbol.Symbol]struct{}{}
}
