package recognizer

import (
	"bytes"
	"fmt"
	"regexp"
)

// Recognizer matches one terminal at a fixed position of the input. A
// recognizer is pure: it never consumes input beyond the returned length,
// and the same (input, pos) pair always yields the same result.
type Recognizer interface {
	// Recognize reports the length and text of the match at pos. ok is
	// false when the terminal does not occur at pos. A zero length with
	// ok true is a valid result.
	Recognize(input []byte, pos int) (int, string, bool)
}

// StringRecognizer matches an exact byte sequence.
type StringRecognizer struct {
	text []byte
}

func NewStringRecognizer(text string) *StringRecognizer {
	return &StringRecognizer{
		text: []byte(text),
	}
}

func (r *StringRecognizer) Recognize(input []byte, pos int) (int, string, bool) {
	if !bytes.HasPrefix(input[pos:], r.text) {
		return 0, "", false
	}
	return len(r.text), string(r.text), true
}

func (r *StringRecognizer) String() string {
	return fmt.Sprintf("'%s'", r.text)
}

// RegExpRecognizer matches a regular expression anchored at the position,
// taking the longest match.
type RegExpRecognizer struct {
	pattern string
	re      *regexp.Regexp
}

func NewRegExpRecognizer(pattern string) (*RegExpRecognizer, error) {
	re, err := regexp.Compile(`\A(?:` + pattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern /%v/: %w", pattern, err)
	}
	re.Longest()
	return &RegExpRecognizer{
		pattern: pattern,
		re:      re,
	}, nil
}

func (r *RegExpRecognizer) Recognize(input []byte, pos int) (int, string, bool) {
	loc := r.re.FindIndex(input[pos:])
	if loc == nil {
		return 0, "", false
	}
	return loc[1], string(input[pos : pos+loc[1]]), true
}

func (r *RegExpRecognizer) String() string {
	return fmt.Sprintf("/%v/", r.pattern)
}

// EOFRecognizer matches the zero-length end-of-input terminal.
type EOFRecognizer struct {
}

func NewEOFRecognizer() *EOFRecognizer {
	return &EOFRecognizer{}
}

func (r *EOFRecognizer) Recognize(input []byte, pos int) (int, string, bool) {
	if pos != len(input) {
		return 0, "", false
	}
	return 0, "", true
}

// EmptyRecognizer matches the empty string at any position.
type EmptyRecognizer struct {
}

func NewEmptyRecognizer() *EmptyRecognizer {
	return &EmptyRecognizer{}
}

func (r *EmptyRecognizer) Recognize(input []byte, pos int) (int, string, bool) {
	return 0, "", true
}
