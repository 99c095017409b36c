package barcode

import (
	"fmt"
	"math/rand/v2"
)

// Source supplies uniformly distributed integers in [0, n).
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Generator produces random EAN-13 codes under a fixed country prefix.
type Generator struct {
	Prefix string
	Rand   Source
}

// NewGenerator validates prefix (three digits, DefaultPrefix when empty) and
// returns a Generator drawing from src, or from math/rand/v2 when src is nil.
func NewGenerator(prefix string, src Source) (*Generator, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if len(prefix) != len(DefaultPrefix) || !allDigits(prefix) {
		return nil, fmt.Errorf("%w: prefix must be 3 digits, got %q", ErrMalformed, prefix)
	}
	if src == nil {
		src = globalSource{}
	}
	return &Generator{Prefix: prefix, Rand: src}, nil
}

// Generate returns prefix + 5-digit issuer + 4-digit item + check digit.
// The result always passes Validate.
func (g *Generator) Generate() string {
	prefix := DefaultPrefix
	var src Source = globalSource{}
	if g != nil {
		if g.Prefix != "" {
			prefix = g.Prefix
		}
		if g.Rand != nil {
			src = g.Rand
		}
	}
	first12 := fmt.Sprintf("%s%05d%04d", prefix, src.IntN(100000), src.IntN(10000))
	code, err := Complete(first12)
	if err != nil {
		// Only reachable with a hand-built Generator carrying a bad prefix.
		panic(err)
	}
	return code
}
