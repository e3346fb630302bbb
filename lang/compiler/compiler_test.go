package compiler_test

import (
	"testing"

	"github.com/mna/fmlc/lang/ast"
	"github.com/mna/fmlc/lang/bytecode"
	"github.com/mna/fmlc/lang/compiler"
	"github.com/mna/fmlc/lang/pool"
	"github.com/stretchr/testify/require"
)

func TestCompileIntegerAtRoot(t *testing.T) {
	img, err := compiler.Compile(&ast.Top{Statements: []ast.Node{&ast.Integer{Value: 42}}})
	require.NoError(t, err)

	require.EqualValues(t, 3, img.Pool.Len())
	require.Equal(t, pool.Integer{Value: 42}, img.Pool.Get(0))
	require.Equal(t, pool.String{Value: "λ:"}, img.Pool.Get(1))

	fn, ok := img.Pool.Get(2).(pool.Function)
	require.True(t, ok)
	require.EqualValues(t, 1, fn.NameIndex)
	require.EqualValues(t, 0, fn.Params)
	require.EqualValues(t, 0, fn.Locals)
	require.Equal(t, []bytecode.Insn{
		bytecode.NewLiteral(0),
		bytecode.NewDrop(),
		bytecode.NewReturn(),
	}, fn.Code.Insns())

	require.EqualValues(t, 0, img.Globals.Len())
	require.EqualValues(t, 2, img.EntryPoint)
}

func TestCompileGlobalVariableAndPrint(t *testing.T) {
	top := &ast.Top{Statements: []ast.Node{
		&ast.Variable{Name: "x", Value: &ast.Integer{Value: 7}},
		&ast.Print{Format: "%d\n", Arguments: []ast.Node{&ast.AccessVariable{Name: "x"}}},
	}}
	img, err := compiler.Compile(top)
	require.NoError(t, err)

	require.Equal(t, pool.Integer{Value: 7}, img.Pool.Get(0))
	require.Equal(t, pool.String{Value: "x"}, img.Pool.Get(1))
	require.Equal(t, pool.Slot{NameIndex: 1}, img.Pool.Get(2))
	require.Equal(t, pool.String{Value: "%d\n"}, img.Pool.Get(3))
	require.Equal(t, pool.String{Value: "x"}, img.Pool.Get(4))
	require.Equal(t, pool.String{Value: "λ:"}, img.Pool.Get(5))

	require.Equal(t, []uint16{2}, img.Globals.Indices())

	fn := img.Pool.Get(6).(pool.Function)
	require.Equal(t, []bytecode.Insn{
		bytecode.NewLiteral(0),
		bytecode.NewSetGlobal(1),
		bytecode.NewDrop(),
		bytecode.NewGetGlobal(4),
		bytecode.NewPrint(3, 1),
		bytecode.NewDrop(),
		bytecode.NewReturn(),
	}, fn.Code.Insns())
}

func TestCompileTopLevelFunction(t *testing.T) {
	top := &ast.Top{Statements: []ast.Node{
		&ast.Function{
			Name:       "f",
			Parameters: []string{"n"},
			Body:       &ast.Block{Statements: []ast.Node{&ast.AccessVariable{Name: "n"}}},
		},
	}}
	img, err := compiler.Compile(top)
	require.NoError(t, err)

	require.EqualValues(t, 1, img.Globals.Len())
	fnIdx := img.Globals.Indices()[0]
	fn := img.Pool.Get(fnIdx).(pool.Function)
	require.EqualValues(t, 1, fn.Params)
	require.EqualValues(t, 1, fn.Locals)
	require.Equal(t, []bytecode.Insn{
		bytecode.NewGetLocal(0),
		bytecode.NewReturn(),
	}, fn.Code.Insns())

	main := img.Pool.Get(img.EntryPoint).(pool.Function)
	require.Equal(t, []bytecode.Insn{bytecode.NewReturn()}, main.Code.Insns())
}

func TestCompileConditionalStatement(t *testing.T) {
	top := &ast.Top{Statements: []ast.Node{
		&ast.Conditional{
			Condition:   &ast.Boolean{Value: true},
			Consequent:  &ast.Integer{Value: 1},
			Alternative: &ast.Integer{Value: 2},
		},
	}}
	img, err := compiler.Compile(top)
	require.NoError(t, err)

	main := img.Pool.Get(img.EntryPoint).(pool.Function)
	insns := main.Code.Insns()

	// one trailing Drop after the merge label, not one per arm -- see
	// the resolution noted on lowerConditional in compiler.go.
	ops := make([]bytecode.Op, len(insns))
	for i, insn := range insns {
		ops[i] = insn.Op
	}
	require.Equal(t, []bytecode.Op{
		bytecode.Literal,
		bytecode.Branch,
		bytecode.Jump,
		bytecode.Label,
		bytecode.Literal,
		bytecode.Jump,
		bytecode.Label,
		bytecode.Literal,
		bytecode.Label,
		bytecode.Drop,
		bytecode.Return,
	}, ops)
}

func TestCompileLoop(t *testing.T) {
	top := &ast.Top{Statements: []ast.Node{
		&ast.Loop{
			Condition: &ast.Boolean{Value: false},
			Body:      &ast.Print{Format: "hi"},
		},
	}}
	img, err := compiler.Compile(top)
	require.NoError(t, err)

	main := img.Pool.Get(img.EntryPoint).(pool.Function)
	insns := main.Code.Insns()
	ops := make([]bytecode.Op, len(insns))
	for i, insn := range insns {
		ops[i] = insn.Op
	}
	require.Equal(t, []bytecode.Op{
		bytecode.Jump,
		bytecode.Label,
		bytecode.Print,
		bytecode.Drop,
		bytecode.Label,
		bytecode.Literal,
		bytecode.Branch,
		bytecode.Return,
	}, ops)
}

func TestCompileArrayFastPath(t *testing.T) {
	top := &ast.Top{Statements: []ast.Node{
		&ast.Array{Size: &ast.Integer{Value: 3}, Value: &ast.AccessVariable{Name: "x"}},
	}}
	img, err := compiler.Compile(top)
	require.NoError(t, err)

	main := img.Pool.Get(img.EntryPoint).(pool.Function)
	insns := main.Code.Insns()
	var sawArray bool
	for _, insn := range insns {
		if insn.Op == bytecode.Array {
			sawArray = true
		}
		require.NotEqual(t, bytecode.CallMethod, insn.Op, "fast path must not call a method")
	}
	require.True(t, sawArray)
}

func TestCompileArrayDesugaredPath(t *testing.T) {
	top := &ast.Top{Statements: []ast.Node{
		&ast.Array{Size: &ast.Integer{Value: 3}, Value: &ast.CallFunction{Name: "make"}},
	}}
	img, err := compiler.Compile(top)
	require.NoError(t, err)

	main := img.Pool.Get(img.EntryPoint).(pool.Function)
	insns := main.Code.Insns()

	var sawJump, sawLabel, sawBranch, sawCallMethod bool
	for _, insn := range insns {
		switch insn.Op {
		case bytecode.Jump:
			sawJump = true
		case bytecode.Label:
			sawLabel = true
		case bytecode.Branch:
			sawBranch = true
		case bytecode.CallMethod:
			sawCallMethod = true
		}
	}
	require.True(t, sawJump, "desugared loop must jump to its condition check")
	require.True(t, sawLabel, "desugared loop must label its body entry and condition check")
	require.True(t, sawBranch, "desugared loop must branch back to its body")
	require.True(t, sawCallMethod, "index assignment and the loop's comparison/increment go through CallMethod")
	require.GreaterOrEqual(t, main.Locals, uint16(3), "three synthetic locals for i, sz, arr")
}

func TestCompileFieldAccessRequiresExistingName(t *testing.T) {
	top := &ast.Top{Statements: []ast.Node{
		&ast.AccessField{Object: &ast.AccessVariable{Name: "o"}, Field: "unknown"},
	}}
	_, err := compiler.Compile(top)
	require.Error(t, err)
	var cerr *compiler.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, compiler.UnknownField, cerr.Kind)
}

func TestCompileFieldAccessFindsObjectMemberName(t *testing.T) {
	top := &ast.Top{Statements: []ast.Node{
		&ast.Variable{
			Name: "o",
			Value: &ast.Object{
				Extends: &ast.Null{},
				Members: []ast.Node{&ast.Variable{Name: "count", Value: &ast.Integer{Value: 0}}},
			},
		},
		&ast.AccessField{Object: &ast.AccessVariable{Name: "o"}, Field: "count"},
	}}
	_, err := compiler.Compile(top)
	require.NoError(t, err)
}

func TestCompileRedeclarationInSameScope(t *testing.T) {
	top := &ast.Top{Statements: []ast.Node{
		&ast.Function{
			Name: "f",
			Body: &ast.Block{Statements: []ast.Node{
				&ast.Variable{Name: "a", Value: &ast.Integer{Value: 1}},
				&ast.Variable{Name: "a", Value: &ast.Integer{Value: 2}},
			}},
		},
	}}
	_, err := compiler.Compile(top)
	require.Error(t, err)
	var cerr *compiler.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, compiler.Redeclaration, cerr.Kind)
}

func TestCompileIllegalNesting(t *testing.T) {
	top := &ast.Top{Statements: []ast.Node{
		&ast.Function{
			Name: "outer",
			Body: &ast.Block{Statements: []ast.Node{
				&ast.Function{Name: "inner", Body: &ast.Null{}},
			}},
		},
	}}
	_, err := compiler.Compile(top)
	require.Error(t, err)
	var cerr *compiler.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, compiler.IllegalNesting, cerr.Kind)
}

func TestCompileIllegalObjectMember(t *testing.T) {
	top := &ast.Top{Statements: []ast.Node{
		&ast.Object{Extends: &ast.Null{}, Members: []ast.Node{&ast.Integer{Value: 1}}},
	}}
	_, err := compiler.Compile(top)
	require.Error(t, err)
	var cerr *compiler.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, compiler.IllegalObjectMember, cerr.Kind)
}

func TestCompileRootMustBeTop(t *testing.T) {
	_, err := compiler.Compile(&ast.Integer{Value: 1})
	require.Error(t, err)
	var cerr *compiler.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, compiler.MalformedInput, cerr.Kind)
}

func TestCompileNestedBlockVariableIsLocalToSyntheticMain(t *testing.T) {
	top := &ast.Top{Statements: []ast.Node{
		&ast.Block{Statements: []ast.Node{
			&ast.Variable{Name: "y", Value: &ast.Integer{Value: 1}},
		}},
	}}
	img, err := compiler.Compile(top)
	require.NoError(t, err)
	require.EqualValues(t, 0, img.Globals.Len(), "a Variable inside a nested Block at Top is a local, not a global")

	main := img.Pool.Get(img.EntryPoint).(pool.Function)
	require.EqualValues(t, 1, main.Locals)

	var sawSetLocal bool
	for _, insn := range main.Code.Insns() {
		if insn.Op == bytecode.SetLocal {
			sawSetLocal = true
		}
	}
	require.True(t, sawSetLocal)
}

func TestDasmProducesNonEmptyText(t *testing.T) {
	img, err := compiler.Compile(&ast.Top{Statements: []ast.Node{&ast.Integer{Value: 1}}})
	require.NoError(t, err)
	text, err := compiler.Dasm(img)
	require.NoError(t, err)
	require.Contains(t, text, "entry:")
	require.Contains(t, text, "pool:")
}
