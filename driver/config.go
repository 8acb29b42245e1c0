package driver

import (
	"context"

	"github.com/npillmayer/schuko/tracing"

	"github.com/ktada/glaive/forest"
	"github.com/ktada/glaive/grammar"
	"github.com/ktada/glaive/grammar/symbol"
	"github.com/ktada/glaive/recognizer"
)

// tracer traces with key 'glaive.driver'.
func tracer() tracing.Trace {
	return tracing.Select("glaive.driver")
}

// Token is one recognized terminal occurrence.
type Token struct {
	Symbol symbol.Symbol
	Pos    int
	Length int
	Value  string
}

// RecoveryFunc decides how to continue after a syntax error. It may advance
// the position, synthesize tokens to feed before rescanning, or both. ok
// false gives up and surfaces the error.
type RecoveryFunc func(ctx context.Context, input []byte, pos int, expected []string) (newPos int, inserted []*Token, ok bool)

// SkipCharRecovery is the builtin recovery strategy: drop one rune and
// retry.
func SkipCharRecovery(ctx context.Context, input []byte, pos int, expected []string) (int, []*Token, bool) {
	if pos >= len(input) {
		return 0, nil, false
	}
	pos++
	for pos < len(input) && input[pos]&0xc0 == 0x80 {
		pos++
	}
	return pos, nil, true
}

// DynamicContext is handed to a DynamicResolver when an ACTION cell still
// holds several actions and a participant is marked dynamic.
type DynamicContext struct {
	State   int
	Symbol  symbol.Symbol
	Value   string
	Pos     int
	Actions []grammar.Action
}

// DynamicResolver filters the actions the generalized parser forks on.
// Returning an empty slice drops the head.
type DynamicResolver func(DynamicContext) []grammar.Action

type config struct {
	tables                grammar.TableClass
	whitespace            string
	noWhitespace          bool
	buildTree             bool
	actions               forest.ActionDispatcher
	recovery              RecoveryFunc
	dynamic               DynamicResolver
	preferShifts          *bool
	preferShiftsOverEmpty *bool
	sourceName            string
}

func defaultConfig() *config {
	return &config{
		tables:     grammar.TableClassLALR,
		whitespace: recognizer.DefaultWhitespace,
		buildTree:  true,
	}
}

type Option func(c *config) error

// Tables selects the table construction class.
func Tables(class grammar.TableClass) Option {
	return func(c *config) error {
		c.tables = class
		return nil
	}
}

// Whitespace sets the character class skipped between tokens when the
// grammar defines no LAYOUT rule.
func Whitespace(set string) Option {
	return func(c *config) error {
		c.whitespace = set
		return nil
	}
}

// NoWhitespace disables inter-token whitespace skipping.
func NoWhitespace() Option {
	return func(c *config) error {
		c.noWhitespace = true
		return nil
	}
}

// BuildTree controls forest construction. When disabled, reductions
// dispatch the semantic actions inline and no forest is kept.
func BuildTree(enabled bool) Option {
	return func(c *config) error {
		c.buildTree = enabled
		return nil
	}
}

// SemanticActions sets the dispatcher reductions are fed to, inline when
// BuildTree is disabled or over the finished forest otherwise.
func SemanticActions(d forest.ActionDispatcher) Option {
	return func(c *config) error {
		c.actions = d
		return nil
	}
}

// ErrorRecovery installs a recovery strategy for syntax errors.
func ErrorRecovery(h RecoveryFunc) Option {
	return func(c *config) error {
		c.recovery = h
		return nil
	}
}

// DynamicResolution installs a dynamic disambiguation callback.
func DynamicResolution(r DynamicResolver) Option {
	return func(c *config) error {
		c.dynamic = r
		return nil
	}
}

// PreferShifts resolves remaining shift/reduce conflicts in favor of the
// shift. Defaults to true for the deterministic parser and false for the
// generalized one.
func PreferShifts(enabled bool) Option {
	return func(c *config) error {
		c.preferShifts = &enabled
		return nil
	}
}

// PreferShiftsOverEmpty is PreferShifts restricted to reductions of empty
// alternatives.
func PreferShiftsOverEmpty(enabled bool) Option {
	return func(c *config) error {
		c.preferShiftsOverEmpty = &enabled
		return nil
	}
}

// SourceName labels parse errors with the input's origin.
func SourceName(name string) Option {
	return func(c *config) error {
		c.sourceName = name
		return nil
	}
}
