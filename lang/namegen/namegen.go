// Package namegen produces unique synthetic identifiers for
// compiler-introduced temporaries and control-flow labels.
package namegen

import "strconv"

// prefix is prepended to every generated name. FML identifiers, as
// produced by the external parser's grammar, cannot contain a dollar
// sign, so no user identifier can ever collide with a generated one --
// no need to scan existing names for collisions.
const prefix = "$"

// Generator yields strings of the form "$<base>_<n>" with a
// monotonically increasing counter shared across all bases. A zero
// Generator is ready to use.
type Generator struct {
	n uint64
}

// New returns a fresh Generator, its counter reset to zero. Two
// Generators created this way and driven with the same sequence of calls
// produce identical names, so compiling the same input twice yields
// byte-identical output.
func New() *Generator {
	return &Generator{}
}

// Next returns the next synthetic name, using base to make the output
// readable in disassembly (e.g. "while_begin", "if_then") while the
// trailing counter guarantees uniqueness.
func (g *Generator) Next(base string) string {
	n := g.n
	g.n++
	return prefix + base + "_" + strconv.FormatUint(n, 10)
}
