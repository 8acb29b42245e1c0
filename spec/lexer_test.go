package spec

import (
	"strings"
	"testing"
)

func TestLexer_Next(t *testing.T) {
	idTok := func(text string) *token {
		return &token{kind: tokenKindID, text: text}
	}
	symTok := func(kind tokenKind) *token {
		return &token{kind: kind}
	}
	intTok := func(num int, text string) *token {
		return &token{kind: tokenKindInt, text: text, num: num}
	}
	patTok := func(text string) *token {
		return &token{kind: tokenKindPattern, text: text}
	}
	strTok := func(text string) *token {
		return &token{kind: tokenKindString, text: text}
	}

	tests := []struct {
		caption string
		src     string
		tokens  []*token
		err     error
	}{
		{
			caption: "the lexer recognizes all kinds of tokens",
			src:     `foo = bar | 'baz' {left, 5}; /[0-9]+/`,
			tokens: []*token{
				idTok("foo"),
				symTok(tokenKindRuleSep),
				idTok("bar"),
				symTok(tokenKindOr),
				strTok("baz"),
				symTok(tokenKindGroupOpen),
				idTok("left"),
				symTok(tokenKindComma),
				intTok(5, "5"),
				symTok(tokenKindGroupClose),
				symTok(tokenKindSemicolon),
				patTok("[0-9]+"),
				symTok(tokenKindEOF),
			},
		},
		{
			caption: "both = and : separate the sides of a rule",
			src:     `= :`,
			tokens: []*token{
				symTok(tokenKindRuleSep),
				symTok(tokenKindRuleSep),
				symTok(tokenKindEOF),
			},
		},
		{
			caption: "a line comment runs to the end of the line",
			src:     "foo // a comment = | ;\nbar",
			tokens: []*token{
				idTok("foo"),
				idTok("bar"),
				symTok(tokenKindEOF),
			},
		},
		{
			caption: "an escaped slash does not close a pattern",
			src:     `/a\/b/`,
			tokens: []*token{
				patTok("a/b"),
				symTok(tokenKindEOF),
			},
		},
		{
			caption: "escapes other than the delimiter stay verbatim in a pattern",
			src:     `/\d+\./`,
			tokens: []*token{
				patTok(`\d+\.`),
				symTok(tokenKindEOF),
			},
		},
		{
			caption: "a string literal recognizes its escape sequences",
			src:     `'a\'b\\c'`,
			tokens: []*token{
				strTok(`a'b\c`),
				symTok(tokenKindEOF),
			},
		},
		{
			caption: "an unknown character yields an invalid token",
			src:     `@`,
			tokens: []*token{
				newInvalidToken("@", newPosition(1, 1)),
				symTok(tokenKindEOF),
			},
		},
		{
			caption: "an unclosed string literal is an error",
			src:     `'abc`,
			err:     synErrUnclosedString,
		},
		{
			caption: "an empty string literal is an error",
			src:     `''`,
			err:     synErrEmptyString,
		},
		{
			caption: "an unclosed pattern is an error",
			src:     `/abc`,
			err:     synErrUnclosedPattern,
		},
		{
			caption: "an unknown escape sequence in a string literal is an error",
			src:     `'a\x'`,
			err:     synErrIncompleteEsc,
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			lex := newLexer(strings.NewReader(tt.src))
			for _, expected := range tt.tokens {
				actual, err := lex.next()
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				testToken(t, actual, expected)
			}
			if tt.err != nil {
				var err error
				for err == nil {
					var tok *token
					tok, err = lex.next()
					if err == nil && tok.kind == tokenKindEOF {
						t.Fatalf("an error must occur before EOF; want: %v", tt.err)
					}
				}
				if err != tt.err {
					t.Fatalf("unexpected error\nwant: %v\ngot: %v", tt.err, err)
				}
			}
		})
	}
}

func TestLexer_Positions(t *testing.T) {
	lex := newLexer(strings.NewReader("foo\n  bar"))

	tok, err := lex.next()
	if err != nil {
		t.Fatal(err)
	}
	if tok.pos != newPosition(1, 1) {
		t.Errorf("unexpected position\nwant: %v\ngot: %v", newPosition(1, 1), tok.pos)
	}

	tok, err = lex.next()
	if err != nil {
		t.Fatal(err)
	}
	if tok.pos != newPosition(2, 3) {
		t.Errorf("unexpected position\nwant: %v\ngot: %v", newPosition(2, 3), tok.pos)
	}
}

func testToken(t *testing.T, actual, expected *token) {
	t.Helper()

	if actual.kind != expected.kind || actual.text != expected.text || actual.num != expected.num {
		t.Fatalf("unexpected token\nwant: %+v\ngot: %+v", expected, actual)
	}
}
