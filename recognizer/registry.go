package recognizer

import (
	"fmt"

	"github.com/ktada/glaive/grammar/symbol"
)

// Registry maps terminal symbols to their recognizers.
type Registry struct {
	recognizers map[symbol.Symbol]Recognizer
}

func NewRegistry() *Registry {
	return &Registry{
		recognizers: map[symbol.Symbol]Recognizer{},
	}
}

func (r *Registry) Register(sym symbol.Symbol, rec Recognizer) error {
	if rec == nil {
		return fmt.Errorf("recognizer must be non-nil; symbol: %v", sym)
	}
	r.recognizers[sym] = rec
	return nil
}

func (r *Registry) Lookup(sym symbol.Symbol) (Recognizer, bool) {
	rec, ok := r.recognizers[sym]
	return rec, ok
}

// DefaultWhitespace is the character class the whitespace skipper uses when
// no layout grammar is configured.
const DefaultWhitespace = "\t\n "

// WhitespaceSkipper advances over a character class between tokens.
type WhitespaceSkipper struct {
	class [256]bool
}

func NewWhitespaceSkipper(class string) *WhitespaceSkipper {
	s := &WhitespaceSkipper{}
	for i := 0; i < len(class); i++ {
		s.class[class[i]] = true
	}
	return s
}

// Skip returns the position of the first byte at or after pos that is
// outside the skipper's class.
func (s *WhitespaceSkipper) Skip(input []byte, pos int) int {
	for pos < len(input) && s.class[input[pos]] {
		pos++
	}
	return pos
}
