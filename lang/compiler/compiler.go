// Package compiler implements the FML lowering pass: the tree-directed
// emitter that walks a decoded AST and produces a bytecode image. It is
// the core of this repository; lang/ast, lang/bytecode, lang/pool,
// lang/scope and lang/namegen exist to serve it.
package compiler

import (
	"github.com/mna/fmlc/lang/ast"
	"github.com/mna/fmlc/lang/bytecode"
	"github.com/mna/fmlc/lang/namegen"
	"github.com/mna/fmlc/lang/pool"
	"github.com/mna/fmlc/lang/scope"
)

// mainName is the name given to the synthetic top-level function.
const mainName = "λ:"

// Compile lowers root, which must be an *ast.Top, into a complete
// bytecode Image. An AST that does not start with Top is malformed
// input: Top may appear exactly once, at the root of the tree.
//
// Compilation aborts on the first error: there is no recovery and no
// partial output.
func Compile(root ast.Node) (*Image, error) {
	top, ok := root.(*ast.Top)
	if !ok {
		return nil, newError(MalformedInput, "root node must be Top, got %T", root)
	}

	l := &lowerer{
		pool:    pool.New(),
		globals: new(scope.Globals),
		gen:     namegen.New(),
	}
	entry, err := l.lowerTop(top)
	if err != nil {
		return nil, err
	}
	return &Image{Pool: l.pool, Globals: l.globals, EntryPoint: entry}, nil
}

// lowerer holds the state shared across the whole compilation: the
// constant pool, the globals table and the name generator. Program-wide
// state lives on the receiver, while the per-function code buffer and
// frame are threaded explicitly through every call, alongside the drop
// flag, which is never hidden in ambient state.
type lowerer struct {
	pool    *pool.Pool
	globals *scope.Globals
	gen     *namegen.Generator
}

// lowerTop builds the synthetic main function from a Top node's direct
// statement sequence and returns its pool index, the program's entry
// point.
func (l *lowerer) lowerTop(top *ast.Top) (uint16, error) {
	code := new(bytecode.Code)
	frame := scope.NewTop()

	for _, stmt := range top.Statements {
		if err := l.lower(stmt, code, frame, true); err != nil {
			return 0, err
		}
	}
	code.Append(bytecode.NewReturn())

	nameIdx := l.pool.Push(pool.String{Value: mainName})
	fn := pool.Function{
		NameIndex: nameIdx,
		Params:    0,
		Locals:    frame.LocalCount(),
		Code:      code,
	}
	return l.pool.Push(fn), nil
}

// lower is the recursive emitter: it threads node, the current code
// buffer, the ambient frame, and drop -- whether the surrounding
// construct needs the value node leaves on the stack, or whether a
// trailing Drop must be emitted to keep the stack balanced.
func (l *lowerer) lower(node ast.Node, code *bytecode.Code, frame *scope.Frame, drop bool) error {
	switch n := node.(type) {
	case *ast.Integer:
		idx := l.pushDedup(pool.Integer{Value: n.Value})
		code.Append(bytecode.NewLiteral(idx))
		code.AppendIf(bytecode.NewDrop(), drop)
		return nil

	case *ast.Boolean:
		idx := l.pushDedup(pool.Boolean{Value: n.Value})
		code.Append(bytecode.NewLiteral(idx))
		code.AppendIf(bytecode.NewDrop(), drop)
		return nil

	case *ast.Null:
		idx := l.pushDedup(pool.Null{})
		code.Append(bytecode.NewLiteral(idx))
		code.AppendIf(bytecode.NewDrop(), drop)
		return nil

	case *ast.Variable:
		return l.lowerVariableDecl(n, code, frame, drop)

	case *ast.AssignVariable:
		return l.lowerVariableAssign(n, code, frame, drop)

	case *ast.AccessVariable:
		return l.lowerVariableAccess(n, code, frame, drop)

	case *ast.AccessField:
		if err := l.lower(n.Object, code, frame, false); err != nil {
			return err
		}
		nameIdx, ok := l.pool.FindString(n.Field)
		if !ok {
			return newError(UnknownField, "field %q has no existing pool entry", n.Field)
		}
		code.Append(bytecode.NewGetField(nameIdx))
		code.AppendIf(bytecode.NewDrop(), drop)
		return nil

	case *ast.AssignField:
		if err := l.lower(n.Object, code, frame, false); err != nil {
			return err
		}
		if err := l.lower(n.Value, code, frame, false); err != nil {
			return err
		}
		// Unlike AccessField, assignment is how a field comes to exist in
		// the first place; a fresh String is always pushed rather than
		// requiring one to already be present.
		nameIdx := l.pool.Push(pool.String{Value: n.Field})
		code.Append(bytecode.NewSetField(nameIdx))
		code.AppendIf(bytecode.NewDrop(), drop)
		return nil

	case *ast.Array:
		return l.lowerArray(n, code, frame, drop)

	case *ast.AccessArray:
		if err := l.lower(n.Array, code, frame, false); err != nil {
			return err
		}
		if err := l.lower(n.Index, code, frame, false); err != nil {
			return err
		}
		nameIdx := l.pool.Push(pool.String{Value: "get"})
		code.Append(bytecode.NewCallMethod(nameIdx, 2))
		code.AppendIf(bytecode.NewDrop(), drop)
		return nil

	case *ast.AssignArray:
		if err := l.lower(n.Array, code, frame, false); err != nil {
			return err
		}
		if err := l.lower(n.Index, code, frame, false); err != nil {
			return err
		}
		if err := l.lower(n.Value, code, frame, false); err != nil {
			return err
		}
		nameIdx := l.pool.Push(pool.String{Value: "set"})
		code.Append(bytecode.NewCallMethod(nameIdx, 3))
		code.AppendIf(bytecode.NewDrop(), drop)
		return nil

	case *ast.Object:
		return l.lowerObject(n, code, frame, drop)

	case *ast.Function:
		if frame.Kind() != scope.Top {
			return newError(IllegalNesting, "function %q declared inside a local frame", n.Name)
		}
		_, err := l.lowerFunction(n, false)
		return err

	case *ast.CallFunction:
		nameIdx := l.pool.Push(pool.String{Value: n.Name})
		for _, arg := range n.Arguments {
			if err := l.lower(arg, code, frame, false); err != nil {
				return err
			}
		}
		code.Append(bytecode.NewCallFunction(nameIdx, uint8(len(n.Arguments))))
		code.AppendIf(bytecode.NewDrop(), drop)
		return nil

	case *ast.CallMethod:
		nameIdx := l.pool.Push(pool.String{Value: n.Name})
		if err := l.lower(n.Object, code, frame, false); err != nil {
			return err
		}
		for _, arg := range n.Arguments {
			if err := l.lower(arg, code, frame, false); err != nil {
				return err
			}
		}
		code.Append(bytecode.NewCallMethod(nameIdx, uint8(len(n.Arguments)+1)))
		code.AppendIf(bytecode.NewDrop(), drop)
		return nil

	case *ast.Block:
		return l.lowerBlock(n, code, frame, drop)

	case *ast.Loop:
		return l.lowerLoop(n, code, frame)

	case *ast.Conditional:
		return l.lowerConditional(n, code, frame, drop)

	case *ast.Print:
		formatIdx := l.pool.Push(pool.String{Value: n.Format})
		for _, arg := range n.Arguments {
			if err := l.lower(arg, code, frame, false); err != nil {
				return err
			}
		}
		code.Append(bytecode.NewPrint(formatIdx, uint8(len(n.Arguments))))
		code.AppendIf(bytecode.NewDrop(), drop)
		return nil

	case *ast.Top:
		return newError(InvariantViolation, "Top may only appear at the root of the tree")

	default:
		return newError(InvariantViolation, "unhandled AST node type %T", node)
	}
}

// pushDedup pushes a literal-kind constant (Integer, Boolean or Null),
// reusing an existing structurally-equal entry if one exists. Integers,
// booleans and Null may be deduplicated.
func (l *lowerer) pushDedup(c pool.Constant) uint16 {
	if idx, ok := l.pool.Find(c); ok {
		return idx
	}
	return l.pool.Push(c)
}

func (l *lowerer) lowerVariableDecl(n *ast.Variable, code *bytecode.Code, frame *scope.Frame, drop bool) error {
	if err := l.lower(n.Value, code, frame, false); err != nil {
		return err
	}

	if frame.Kind() == scope.Top && frame.IsOutermost() {
		nameIdx := l.pool.Push(pool.String{Value: n.Name})
		slotIdx := l.pool.Push(pool.Slot{NameIndex: nameIdx})
		l.globals.Push(slotIdx)
		code.Append(bytecode.NewSetGlobal(nameIdx))
		code.AppendIf(bytecode.NewDrop(), drop)
		return nil
	}

	idx, err := frame.Introduce(n.Name)
	if err != nil {
		return wrapError(Redeclaration, err, "variable %q already declared in this scope", n.Name)
	}
	code.Append(bytecode.NewSetLocal(idx))
	code.AppendIf(bytecode.NewDrop(), drop)
	return nil
}

func (l *lowerer) lowerVariableAssign(n *ast.AssignVariable, code *bytecode.Code, frame *scope.Frame, drop bool) error {
	if err := l.lower(n.Value, code, frame, false); err != nil {
		return err
	}
	if idx, ok := frame.Lookup(n.Name); ok {
		code.Append(bytecode.NewSetLocal(idx))
	} else {
		nameIdx := l.pool.Push(pool.String{Value: n.Name})
		code.Append(bytecode.NewSetGlobal(nameIdx))
	}
	code.AppendIf(bytecode.NewDrop(), drop)
	return nil
}

func (l *lowerer) lowerVariableAccess(n *ast.AccessVariable, code *bytecode.Code, frame *scope.Frame, drop bool) error {
	if idx, ok := frame.Lookup(n.Name); ok {
		code.Append(bytecode.NewGetLocal(idx))
	} else {
		nameIdx := l.pool.Push(pool.String{Value: n.Name})
		code.Append(bytecode.NewGetGlobal(nameIdx))
	}
	code.AppendIf(bytecode.NewDrop(), drop)
	return nil
}

// arraySideEffectFree reports whether value is one of the initializer
// shapes that are safe to broadcast via a single Array opcode rather
// than desugaring into an explicit per-element loop.
func arraySideEffectFree(value ast.Node) bool {
	switch value.(type) {
	case *ast.Integer, *ast.Null, *ast.AccessVariable, *ast.AccessField, *ast.AccessArray:
		return true
	default:
		return false
	}
}

func (l *lowerer) lowerArray(n *ast.Array, code *bytecode.Code, frame *scope.Frame, drop bool) error {
	if arraySideEffectFree(n.Value) {
		if err := l.lower(n.Size, code, frame, false); err != nil {
			return err
		}
		if err := l.lower(n.Value, code, frame, false); err != nil {
			return err
		}
		code.Append(bytecode.NewArray())
		code.AppendIf(bytecode.NewDrop(), drop)
		return nil
	}
	return l.lowerArrayDesugared(n, code, frame, drop)
}

// lowerArrayDesugared implements loop desugaring for array initializers
// that are not side-effect free: it builds a replacement AST subtree and
// recursively lowers it, so that the accounting for the three synthetic
// locals and the loop's own scope flows through the exact same machinery
// as user-written code.
//
// FML has no dedicated arithmetic or comparison AST nodes (see
// DESIGN.md): the loop's index comparison and increment are expressed as
// CallMethod sends ("<" and "+"), the same way object field access
// eventually reaches arbitrary host behavior via messages.
func (l *lowerer) lowerArrayDesugared(n *ast.Array, code *bytecode.Code, frame *scope.Frame, drop bool) error {
	iName := l.gen.Next("arr_i")
	szName := l.gen.Next("arr_sz")
	arrName := l.gen.Next("arr_arr")

	desugared := &ast.Block{Statements: []ast.Node{
		&ast.Variable{Name: iName, Value: &ast.Integer{Value: 0}},
		&ast.Variable{Name: szName, Value: n.Size},
		&ast.Variable{Name: arrName, Value: &ast.Array{
			Size:  &ast.AccessVariable{Name: szName},
			Value: &ast.Null{},
		}},
		&ast.Loop{
			Condition: &ast.CallMethod{
				Object:    &ast.AccessVariable{Name: iName},
				Name:      "<",
				Arguments: []ast.Node{&ast.AccessVariable{Name: szName}},
			},
			Body: &ast.Block{Statements: []ast.Node{
				&ast.AssignArray{
					Array: &ast.AccessVariable{Name: arrName},
					Index: &ast.AccessVariable{Name: iName},
					Value: n.Value,
				},
				&ast.AssignVariable{
					Name: iName,
					Value: &ast.CallMethod{
						Object:    &ast.AccessVariable{Name: iName},
						Name:      "+",
						Arguments: []ast.Node{&ast.Integer{Value: 1}},
					},
				},
			}},
		},
		&ast.AccessVariable{Name: arrName},
	}}

	return l.lower(desugared, code, frame, drop)
}

func (l *lowerer) lowerObject(n *ast.Object, code *bytecode.Code, frame *scope.Frame, drop bool) error {
	if err := l.lower(n.Extends, code, frame, false); err != nil {
		return err
	}

	var memberIndices []uint16
	for _, member := range n.Members {
		switch m := member.(type) {
		case *ast.Variable:
			if err := l.lower(m.Value, code, frame, false); err != nil {
				return err
			}
			nameIdx := l.pool.Push(pool.String{Value: m.Name})
			slotIdx := l.pool.Push(pool.Slot{NameIndex: nameIdx})
			memberIndices = append(memberIndices, slotIdx)

		case *ast.Function:
			if frame.Kind() != scope.Top {
				return newError(IllegalNesting, "method %q declared inside a local frame", m.Name)
			}
			fnIdx, err := l.lowerFunction(m, true)
			if err != nil {
				return err
			}
			memberIndices = append(memberIndices, fnIdx)

		default:
			return newError(IllegalObjectMember, "object member must be a Variable or Function, got %T", member)
		}
	}

	descIdx := l.pool.Push(pool.Object{MemberIndices: memberIndices})
	code.Append(bytecode.NewObject(descIdx))
	code.AppendIf(bytecode.NewDrop(), drop)
	return nil
}

// lowerFunction compiles fn's body into a fresh Local frame and pushes
// its Function pool entry. Nesting (a Function reached from within a
// Local frame) is rejected by the caller before lowerFunction is
// invoked; lowerFunction itself always starts a brand new Local frame,
// since functions never capture an enclosing frame (there are no
// closures).
func (l *lowerer) lowerFunction(fn *ast.Function, isMethod bool) (uint16, error) {
	frame := scope.NewLocal()

	if isMethod {
		if _, err := frame.Introduce("this"); err != nil {
			return 0, wrapError(InvariantViolation, err, "could not introduce implicit 'this' parameter")
		}
	}
	for _, p := range fn.Parameters {
		if _, err := frame.Introduce(p); err != nil {
			return 0, wrapError(Redeclaration, err, "parameter %q already declared", p)
		}
	}

	body := new(bytecode.Code)
	if err := l.lower(fn.Body, body, frame, false); err != nil {
		return 0, err
	}
	body.Append(bytecode.NewReturn())

	nameIdx := l.pool.Push(pool.String{Value: fn.Name})
	params := len(fn.Parameters)
	if isMethod {
		params++
	}
	entry := pool.Function{
		NameIndex: nameIdx,
		Params:    uint8(params),
		Locals:    frame.LocalCount(),
		Code:      body,
	}
	fnIdx := l.pool.Push(entry)
	if !isMethod {
		l.globals.Push(fnIdx)
	}
	return fnIdx, nil
}

func (l *lowerer) lowerBlock(n *ast.Block, code *bytecode.Code, frame *scope.Frame, drop bool) error {
	frame.EnterScope()

	var err error
	for i, stmt := range n.Statements {
		d := true
		if i == len(n.Statements)-1 {
			d = drop
		}
		if err = l.lower(stmt, code, frame, d); err != nil {
			break
		}
	}

	if leaveErr := frame.LeaveScope(); leaveErr != nil {
		if err == nil {
			err = wrapError(InvariantViolation, leaveErr, "scope imbalance leaving block")
		}
	}
	return err
}

func (l *lowerer) lowerLoop(n *ast.Loop, code *bytecode.Code, frame *scope.Frame) error {
	beginName := l.pool.Push(pool.String{Value: l.gen.Next("while_begin")})
	condName := l.pool.Push(pool.String{Value: l.gen.Next("while_cond")})

	code.Append(bytecode.NewJump(condName))
	code.Append(bytecode.NewLabel(beginName))
	if err := l.lower(n.Body, code, frame, true); err != nil {
		return err
	}
	code.Append(bytecode.NewLabel(condName))
	if err := l.lower(n.Condition, code, frame, false); err != nil {
		return err
	}
	code.Append(bytecode.NewBranch(beginName))
	return nil
}

// lowerConditional lowers both arms with drop=false and emits a single
// trailing Drop after the merge label when the conditional as a whole is
// in statement position, rather than one Drop per arm; see DESIGN.md.
func (l *lowerer) lowerConditional(n *ast.Conditional, code *bytecode.Code, frame *scope.Frame, drop bool) error {
	thenName := l.pool.Push(pool.String{Value: l.gen.Next("if_then")})
	elseName := l.pool.Push(pool.String{Value: l.gen.Next("if_else")})
	mergeName := l.pool.Push(pool.String{Value: l.gen.Next("if_merge")})

	if err := l.lower(n.Condition, code, frame, false); err != nil {
		return err
	}
	code.Append(bytecode.NewBranch(thenName))
	code.Append(bytecode.NewJump(elseName))
	code.Append(bytecode.NewLabel(thenName))
	if err := l.lower(n.Consequent, code, frame, false); err != nil {
		return err
	}
	code.Append(bytecode.NewJump(mergeName))
	code.Append(bytecode.NewLabel(elseName))
	if err := l.lower(n.Alternative, code, frame, false); err != nil {
		return err
	}
	code.Append(bytecode.NewLabel(mergeName))
	code.AppendIf(bytecode.NewDrop(), drop)
	return nil
}
