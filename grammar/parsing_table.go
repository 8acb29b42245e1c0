package grammar

import (
	"fmt"
	"strings"

	"github.com/ktada/glaive/grammar/symbol"
)

type ActionType string

const (
	ActionTypeShift  = ActionType("shift")
	ActionTypeReduce = ActionType("reduce")
	ActionTypeError  = ActionType("error")
)

// actionEntry is the encoded form of a single-action ACTION cell. A negative
// value is a shift to state -n, a positive value is a reduce by production n,
// and zero is the empty cell. Cells holding more than one action live in a
// side table instead.
type actionEntry int

const actionEntryEmpty = actionEntry(0)

func newShiftActionEntry(state stateNum) actionEntry {
	return actionEntry(state * -1)
}

func newReduceActionEntry(prod productionNum) actionEntry {
	return actionEntry(prod)
}

func (e actionEntry) isEmpty() bool {
	return e == actionEntryEmpty
}

func (e actionEntry) describe() (ActionType, stateNum, productionNum) {
	if e == actionEntryEmpty {
		return ActionTypeError, stateNumInitial, productionNumNil
	}
	if e < 0 {
		return ActionTypeShift, stateNum(e * -1), productionNumNil
	}
	return ActionTypeReduce, stateNumInitial, productionNum(e)
}

type goToEntry uint

const goToEntryEmpty = goToEntry(0)

func newGoToEntry(state stateNum) goToEntry {
	return goToEntry(state)
}

// Action is one entry of an ACTION cell. Type is never ActionTypeError in a
// returned slice; an empty cell yields an empty slice.
type Action struct {
	Type ActionType

	// State is the shift target. Meaningful only for shifts.
	State int

	// Production is the number of the production to reduce by. Meaningful
	// only for reduces.
	Production int
}

func (a Action) String() string {
	switch a.Type {
	case ActionTypeShift:
		return fmt.Sprintf("shift %v", a.State)
	case ActionTypeReduce:
		return fmt.Sprintf("reduce %v", a.Production)
	}
	return "error"
}

func decodeAction(e actionEntry) Action {
	ty, state, prod := e.describe()
	return Action{
		Type:       ty,
		State:      state.Int(),
		Production: prod.Int(),
	}
}

// ParsingTable is the ACTION/GOTO table pair. Most ACTION cells hold at most
// one action and are packed into a dense int plane; cells a conflict left
// with several actions spill into multiActions. A deterministic parser
// refuses tables with spilled cells, a generalized parser forks on them.
type ParsingTable struct {
	actionTable  []actionEntry
	multiActions map[int][]actionEntry
	goToTable    []goToEntry

	stateCount       int
	terminalCount    int
	nonTerminalCount int

	// expectedTerminals[state] lists the terminals with a non-empty ACTION
	// cell, in symbol order. Recognizer selection iterates this.
	expectedTerminals [][]symbol.Symbol

	initialState stateNum

	conflicts []*ConflictReport

	// Description is a human-readable dump of the automaton, populated only
	// when requested at build time.
	Description string
}

func (t *ParsingTable) InitialState() int {
	return t.initialState.Int()
}

func (t *ParsingTable) StateCount() int {
	return t.stateCount
}

// Actions returns the ACTION cell for a state and a terminal. The slice
// lists a shift first, then reduces in production-number order.
func (t *ParsingTable) Actions(state int, sym symbol.Symbol) []Action {
	pos := state*t.terminalCount + sym.Num().Int()
	if entries, ok := t.multiActions[pos]; ok {
		acts := make([]Action, len(entries))
		for i, e := range entries {
			acts[i] = decodeAction(e)
		}
		return acts
	}
	e := t.actionTable[pos]
	if e.isEmpty() {
		return nil
	}
	return []Action{decodeAction(e)}
}

// GoTo returns the GOTO transition for a state and a non-terminal.
func (t *ParsingTable) GoTo(state int, sym symbol.Symbol) (int, bool) {
	pos := state*t.nonTerminalCount + sym.Num().Int()
	e := t.goToTable[pos]
	if e == goToEntryEmpty {
		return 0, false
	}
	return int(e), true
}

// ExpectedTerminals returns the terminals acceptable in a state.
func (t *ParsingTable) ExpectedTerminals(state int) []symbol.Symbol {
	return t.expectedTerminals[state]
}

// Conflicts returns all conflicts detected while building the table,
// including ones resolution removed from the cells.
func (t *ParsingTable) Conflicts() []*ConflictReport {
	return t.conflicts
}

func (t *ParsingTable) writeAction(pos int, entries []actionEntry) {
	if len(entries) == 1 {
		t.actionTable[pos] = entries[0]
		return
	}
	t.multiActions[pos] = entries
}

func (t *ParsingTable) writeGoTo(state stateNum, sym symbol.Symbol, nextState stateNum) {
	pos := state.Int()*t.nonTerminalCount + sym.Num().Int()
	t.goToTable[pos] = newGoToEntry(nextState)
}

type conflictResolutionMethod int

const (
	// ResolvedByNone marks a conflict resolution left in the cell: all of
	// its actions survive.
	ResolvedByNone conflictResolutionMethod = iota
	ResolvedByPriority
	ResolvedByAssoc
	ResolvedByShift
	ResolvedByPrefer
)

func (m conflictResolutionMethod) String() string {
	switch m {
	case ResolvedByPriority:
		return "priority"
	case ResolvedByAssoc:
		return "associativity"
	case ResolvedByShift:
		return "prefer shifts"
	case ResolvedByPrefer:
		return "prefer"
	}
	return "unresolved"
}

type ConflictKind string

const (
	ConflictKindShiftReduce  = ConflictKind("shift/reduce")
	ConflictKindReduceReduce = ConflictKind("reduce/reduce")
)

// ConflictReport describes one conflict in user-facing terms.
type ConflictReport struct {
	Kind       ConflictKind
	State      int
	Symbol     string
	NextState  int    // shift side of a shift/reduce conflict
	Production string // reduce side of a shift/reduce conflict
	// Production1 and Production2 are the reduce sides of a reduce/reduce
	// conflict.
	Production1 string
	Production2 string
	Resolution  string
	Resolved    bool
}

func (c *ConflictReport) String() string {
	if c.Kind == ConflictKindShiftReduce {
		return fmt.Sprintf("state %v: shift/reduce conflict (shift %v, reduce %v) on %v (%v)",
			c.State, c.NextState, c.Production, c.Symbol, c.Resolution)
	}
	return fmt.Sprintf("state %v: reduce/reduce conflict (reduce %v and %v) on %v (%v)",
		c.State, c.Production1, c.Production2, c.Symbol, c.Resolution)
}

// TableConflictError reports the conflicts a deterministic table cannot
// carry. The generalized parser accepts such tables instead.
type TableConflictError struct {
	Conflicts []*ConflictReport
}

func (e *TableConflictError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v unresolved conflicts:", len(e.Conflicts))
	for _, c := range e.Conflicts {
		fmt.Fprintf(&b, "\n  %v", c)
	}
	return b.String()
}
