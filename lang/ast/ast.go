// Package ast defines the FML abstract syntax tree accepted by this
// compiler and the decoder that reads it from its wire representation.
//
// The tree is produced by an external parser, out of scope for this
// repository, and is immutable once decoded: the compiler never mutates
// a Node, it only walks it.
package ast

// Node is implemented by every AST variant. It is a closed interface:
// the set of variants is fixed by the wire format (see Decode) and new
// ones are never added without updating the decoder and the lowering
// pass together.
type Node interface {
	// astNode is unexported so that Node can only be implemented by the
	// types in this package.
	astNode()
}

// Integer is a literal 32-bit signed integer.
type Integer struct {
	Value int32
}

// Boolean is a literal boolean.
type Boolean struct {
	Value bool
}

// Null is the literal null value. It carries no data.
type Null struct{}

// Variable declares a new binding named Name with the value produced by
// Value. Whether it becomes a local or a global depends on the frame and
// scope that is active when it is lowered (see lang/scope).
type Variable struct {
	Name  string
	Value Node
}

// AssignVariable assigns Value to the existing binding named Name.
type AssignVariable struct {
	Name  string
	Value Node
}

// AccessVariable reads the current value of the binding named Name.
type AccessVariable struct {
	Name string
}

// AccessField reads the field named Field on the value produced by Object.
type AccessField struct {
	Object Node
	Field  string
}

// AssignField sets the field named Field on the value produced by Object
// to the value produced by Value.
type AssignField struct {
	Object Node
	Field  string
	Value  Node
}

// Array constructs a new array of Size elements, each initialized with
// Value (which is evaluated once per element unless it is side-effect
// free, see the lowering pass documentation).
type Array struct {
	Size  Node
	Value Node
}

// AccessArray reads the element at Index in the array produced by Array.
type AccessArray struct {
	Array Node
	Index Node
}

// AssignArray sets the element at Index in the array produced by Array to
// the value produced by Value.
type AssignArray struct {
	Array Node
	Index Node
	Value Node
}

// Object constructs a new object whose parent is produced by Extends
// (which may evaluate to Null) and whose fields and methods are given by
// Members, in declaration order. Every element of Members must be either
// a *Variable (a field/slot) or a *Function (a method).
type Object struct {
	Extends Node
	Members []Node
}

// Function declares a function or method named Name, taking Parameters in
// order, with Body as its single expression/statement body. Whether it is
// a top-level function or a method depends on where it appears in the
// tree: as a direct Top statement, or as an Object member.
type Function struct {
	Name       string
	Parameters []string
	Body       Node
}

// CallFunction calls the free function named Name with Arguments,
// evaluated left to right.
type CallFunction struct {
	Name      string
	Arguments []Node
}

// CallMethod calls the method named Name on the value produced by Object,
// with Arguments evaluated left to right after Object.
type CallMethod struct {
	Object    Node
	Name      string
	Arguments []Node
}

// Top is the program root: an ordered sequence of top-level statements.
// It appears exactly once, at the root of the tree.
type Top struct {
	Statements []Node
}

// Block is an ordered sequence of statements introducing a new lexical
// scope. The value of a Block, in expression position, is the value of
// its last statement.
type Block struct {
	Statements []Node
}

// Loop evaluates Body repeatedly while Condition is truthy. Condition is
// evaluated before every iteration, including the first, so Body may run
// zero times. The emitted bytecode places the condition check after the
// body and enters the loop with a jump to that check.
type Loop struct {
	Condition Node
	Body      Node
}

// Conditional evaluates Condition and then either Consequent or
// Alternative.
type Conditional struct {
	Condition   Node
	Consequent  Node
	Alternative Node
}

// Print formats Format with Arguments and writes the result, in whatever
// manner the virtual machine implements printing. It evaluates to Null.
type Print struct {
	Format    string
	Arguments []Node
}

func (*Integer) astNode()        {}
func (*Boolean) astNode()        {}
func (*Null) astNode()           {}
func (*Variable) astNode()       {}
func (*AssignVariable) astNode() {}
func (*AccessVariable) astNode() {}
func (*AccessField) astNode()    {}
func (*AssignField) astNode()    {}
func (*Array) astNode()          {}
func (*AccessArray) astNode()    {}
func (*AssignArray) astNode()    {}
func (*Object) astNode()         {}
func (*Function) astNode()       {}
func (*CallFunction) astNode()   {}
func (*CallMethod) astNode()     {}
func (*Top) astNode()            {}
func (*Block) astNode()          {}
func (*Loop) astNode()           {}
func (*Conditional) astNode()    {}
func (*Print) astNode()          {}
