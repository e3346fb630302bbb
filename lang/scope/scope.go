// Package scope implements the FML lexical scope / frame manager. It
// resolves names to either locals (numbered slots within a function
// frame) or globals (left to the caller to detect, by Frame.Kind and
// Frame.IsOutermost), and enforces FML's shadowing and scoping rules.
package scope

import (
	"errors"
	"fmt"

	"github.com/dolthub/swiss"
)

// Kind distinguishes the two frame arms: a Top frame
// (active while lowering a Top's direct statement sequence, where an
// outermost-scope Variable declares a global) and a Local frame (active
// while lowering a function body, where every Variable declares a
// local). The two arms are deliberately not unified behind a shared
// interface or dynamic dispatch -- the lowering pass branches on Kind
// explicitly, because global vs. local emission really are different
// code paths, not different implementations of the same operation.
type Kind int

const (
	// Top is the frame active for the program's top-level statement
	// sequence.
	Top Kind = iota
	// Local is the frame active for a function or method body.
	Local
)

// ErrNoScope is returned by LeaveScope when there is no open scope to
// close.
var ErrNoScope = errors.New("scope: no scope to leave")

// RedeclaredError is returned by Introduce when name already exists in
// the topmost scope of the frame.
type RedeclaredError struct{ Name string }

func (e *RedeclaredError) Error() string {
	return fmt.Sprintf("scope: %q already declared in this scope", e.Name)
}

// Frame holds one function's (or the top level's) environment stack: a
// list of name-to-local-index maps, innermost last, plus a monotonic
// local counter: slots allocated in a popped scope are never reused
// within the same function, so LocalCount() at the end of lowering is
// exactly the high-water mark of allocated indices.
type Frame struct {
	kind   Kind
	scopes []*swiss.Map[string, uint16]
	locals uint16
}

// NewTop returns a fresh Top frame with its outermost scope already
// open, matching the program's direct top-level statement sequence.
func NewTop() *Frame {
	return &Frame{kind: Top, scopes: []*swiss.Map[string, uint16]{newEnv()}}
}

// NewLocal returns a fresh Local frame with one initial (outermost)
// scope open, ready to accept a function's parameters before its body
// is lowered.
func NewLocal() *Frame {
	return &Frame{kind: Local, scopes: []*swiss.Map[string, uint16]{newEnv()}}
}

func newEnv() *swiss.Map[string, uint16] {
	return swiss.NewMap[string, uint16](uint32(4))
}

// Kind reports whether this is the Top or a Local frame.
func (f *Frame) Kind() Kind { return f.kind }

// EnterScope pushes a new, empty scope onto the frame's environment
// stack. Call this at the start of lowering a block or function body.
func (f *Frame) EnterScope() {
	f.scopes = append(f.scopes, newEnv())
}

// LeaveScope pops the innermost scope. It is an error to call LeaveScope
// with no open scope -- every EnterScope along every code path,
// including the error path, must be matched by exactly one LeaveScope.
func (f *Frame) LeaveScope() error {
	if len(f.scopes) == 0 {
		return ErrNoScope
	}
	f.scopes = f.scopes[:len(f.scopes)-1]
	return nil
}

// Introduce declares name in the topmost scope only and returns its
// freshly allocated local index. It refuses (returning *RedeclaredError)
// if name already exists in the topmost scope -- shadowing a name bound
// in an outer scope is allowed, shadowing within the same scope is not.
func (f *Frame) Introduce(name string) (uint16, error) {
	top := f.scopes[len(f.scopes)-1]
	if _, ok := top.Get(name); ok {
		return 0, &RedeclaredError{Name: name}
	}
	idx := f.locals
	f.locals++
	top.Put(name, idx)
	return idx, nil
}

// Lookup searches the frame's scope stack inside-out and returns the
// local index of the first match. It reports false on a miss, which the
// lowering pass treats as "this name is a global."
func (f *Frame) Lookup(name string) (uint16, bool) {
	for i := len(f.scopes) - 1; i >= 0; i-- {
		if idx, ok := f.scopes[i].Get(name); ok {
			return idx, true
		}
	}
	return 0, false
}

// IsOutermost reports whether the frame's scope stack has exactly one
// open scope. For a Top frame this means "lowering the program's direct
// top-level statements," where a Variable declares a global rather than
// a local.
func (f *Frame) IsOutermost() bool {
	return len(f.scopes) == 1
}

// LocalCount returns the monotonic high-water mark of local indices
// allocated so far -- the value a Function pool entry's Locals field
// must carry once lowering of its body completes.
func (f *Frame) LocalCount() uint16 {
	return f.locals
}

// Globals is the program's globals table: an ordered, append-only list
// of pool indices, each pointing to a Slot or Function entry. It is
// deliberately a distinct type from Frame's notion of "global scope" --
// the globals table owns no name information, names live in the
// constant pool.
type Globals struct {
	indices []uint16
}

// Push appends idx to the globals table.
func (g *Globals) Push(idx uint16) {
	g.indices = append(g.indices, idx)
}

// Len returns the number of entries in the globals table.
func (g *Globals) Len() uint16 {
	return uint16(len(g.indices))
}

// Indices returns the globals table's pool indices, in declaration
// order. The returned slice must not be mutated by the caller.
func (g *Globals) Indices() []uint16 {
	return g.indices
}
