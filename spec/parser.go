package spec

import (
	"fmt"
	"io"

	verr "github.com/ktada/glaive/error"
)

// RootNode is the AST of one grammar source. Terminal rules and production
// rules share the surface form `lhs = body ;`; the grammar builder tells
// them apart by their bodies.
type RootNode struct {
	Rules []*RuleNode
}

type RuleNode struct {
	LHS string
	RHS []*AlternativeNode
	Pos Position
}

// AlternativeNode is one alternative of a rule, optionally followed by a
// brace group of modifiers: `E = E '+' E {left, 5};`.
type AlternativeNode struct {
	Elements  []*ElementNode
	Modifiers []*ModifierNode
	Pos       Position
}

// ElementNode is a single rhs element. Exactly one of ID, Literal, and
// Pattern is set. Pattern may appear only as the whole body of a terminal
// rule.
type ElementNode struct {
	ID      string
	Literal string
	Pattern string
	Pos     Position
}

// ModifierNode is one entry of a brace group: an integer priority or a named
// flag (left, right, nops, nopse, prefer, dynamic, finish, nofinish).
type ModifierNode struct {
	Name       string
	Priority   int
	IsPriority bool
	Pos        Position
}

func raiseSyntaxError(row, col int, synErr *SyntaxError) {
	panic(&verr.SpecError{
		Cause: synErr,
		Row:   row,
		Col:   col,
	})
}

func Parse(src io.Reader) (*RootNode, error) {
	return newParser(src).parse()
}

type parser struct {
	lex       *lexer
	peekedTok *token
	lastTok   *token
}

func newParser(src io.Reader) *parser {
	return &parser{
		lex: newLexer(src),
	}
}

func (p *parser) parse() (root *RootNode, retErr error) {
	defer func() {
		err := recover()
		if err != nil {
			var ok bool
			retErr, ok = err.(error)
			if !ok {
				panic(err)
			}
		}
	}()

	return p.parseRoot(), nil
}

func (p *parser) parseRoot() *RootNode {
	var rules []*RuleNode
	for {
		if p.consume(tokenKindEOF) {
			break
		}
		rules = append(rules, p.parseRule())
	}
	if len(rules) == 0 {
		raiseSyntaxError(0, 0, synErrNoRule)
	}
	return &RootNode{
		Rules: rules,
	}
}

func (p *parser) parseRule() *RuleNode {
	p.expect(tokenKindID)
	lhs := p.lastTok.text
	pos := p.lastTok.pos

	if !p.consume(tokenKindRuleSep) {
		raiseSyntaxError(p.lastTok.pos.Row, p.lastTok.pos.Col, synErrNoRuleSeparator)
	}

	alts := []*AlternativeNode{p.parseAlternative()}
	for p.consume(tokenKindOr) {
		alts = append(alts, p.parseAlternative())
	}

	if !p.consume(tokenKindSemicolon) {
		raiseSyntaxError(p.lastTok.pos.Row, p.lastTok.pos.Col, synErrNoSemicolon)
	}

	return &RuleNode{
		LHS: lhs,
		RHS: alts,
		Pos: pos,
	}
}

func (p *parser) parseAlternative() *AlternativeNode {
	alt := &AlternativeNode{
		Pos: p.peek().pos,
	}
	for {
		switch {
		case p.consume(tokenKindID):
			alt.Elements = append(alt.Elements, &ElementNode{
				ID:  p.lastTok.text,
				Pos: p.lastTok.pos,
			})
		case p.consume(tokenKindString):
			alt.Elements = append(alt.Elements, &ElementNode{
				Literal: p.lastTok.text,
				Pos:     p.lastTok.pos,
			})
		case p.consume(tokenKindPattern):
			// Only valid as the entire body of a terminal rule; the grammar
			// builder rejects other placements.
			if len(alt.Elements) > 0 {
				raiseSyntaxError(p.lastTok.pos.Row, p.lastTok.pos.Col, synErrPatternPosition)
			}
			alt.Elements = append(alt.Elements, &ElementNode{
				Pattern: p.lastTok.text,
				Pos:     p.lastTok.pos,
			})
		case p.consume(tokenKindGroupOpen):
			alt.Modifiers = p.parseModifiers()
			return alt
		case p.consume(tokenKindInvalid):
			raiseSyntaxError(p.lastTok.pos.Row, p.lastTok.pos.Col, synErrInvalidToken)
		default:
			return alt
		}
	}
}

func (p *parser) parseModifiers() []*ModifierNode {
	var mods []*ModifierNode
	for {
		switch {
		case p.consume(tokenKindInt):
			mods = append(mods, &ModifierNode{
				Priority:   p.lastTok.num,
				IsPriority: true,
				Pos:        p.lastTok.pos,
			})
		case p.consume(tokenKindID):
			name := p.lastTok.text
			switch name {
			case "left", "right", "nops", "nopse", "prefer", "dynamic", "finish", "nofinish":
			default:
				raiseSyntaxError(p.lastTok.pos.Row, p.lastTok.pos.Col, synErrInvalidModifier)
			}
			mods = append(mods, &ModifierNode{
				Name: name,
				Pos:  p.lastTok.pos,
			})
		default:
			raiseSyntaxError(p.lastTok.pos.Row, p.lastTok.pos.Col, synErrInvalidModifier)
		}

		if p.consume(tokenKindComma) {
			continue
		}
		if p.consume(tokenKindGroupClose) {
			return mods
		}
		raiseSyntaxError(p.lastTok.pos.Row, p.lastTok.pos.Col, synErrUnclosedGroup)
	}
}

func (p *parser) expect(expected tokenKind) {
	if !p.consume(expected) {
		tok := p.peekedTok
		raiseSyntaxError(tok.pos.Row, tok.pos.Col, &SyntaxError{
			message: fmt.Sprintf("unexpected token; expected: %v, actual: %v", expected, tok.kind),
		})
	}
}

func (p *parser) consume(expected tokenKind) bool {
	var tok *token
	if p.peekedTok != nil {
		tok = p.peekedTok
	} else {
		var err error
		tok, err = p.lex.next()
		if err != nil {
			panic(&verr.SpecError{
				Cause: err,
				Row:   p.lex.row,
				Col:   p.lex.col,
			})
		}
	}
	if tok.kind == expected {
		p.peekedTok = nil
		p.lastTok = tok
		return true
	}
	p.peekedTok = tok
	return false
}

func (p *parser) peek() *token {
	if p.peekedTok == nil {
		tok, err := p.lex.next()
		if err != nil {
			panic(&verr.SpecError{
				Cause: err,
				Row:   p.lex.row,
				Col:   p.lex.col,
			})
		}
		p.peekedTok = tok
	}
	return p.peekedTok
}
