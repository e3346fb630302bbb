package compiler

import (
	"bytes"
	"fmt"

	"github.com/mna/fmlc/lang/bytecode"
	"github.com/mna/fmlc/lang/pool"
)

// Dasm renders img as human-readable text: the constant pool, the
// globals table and the entry point, with every Function entry's code
// disassembled instruction by instruction. It is one-way rendering only
// -- there is no matching Asm reader, only a stable text form for
// golden-file tests and the "fmlc dasm" command.
func Dasm(img *Image) (string, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "pool: %d entries\n", img.Pool.Len())
	for i := uint16(0); i < img.Pool.Len(); i++ {
		if err := dasmConstant(&buf, i, img.Pool.Get(i)); err != nil {
			return "", fmt.Errorf("compiler: disassembling pool entry %d: %w", i, err)
		}
	}

	fmt.Fprintf(&buf, "globals: %v\n", img.Globals.Indices())
	fmt.Fprintf(&buf, "entry: %d\n", img.EntryPoint)

	return buf.String(), nil
}

func dasmConstant(buf *bytes.Buffer, idx uint16, c pool.Constant) error {
	switch v := c.(type) {
	case pool.Integer:
		fmt.Fprintf(buf, "  [%d] integer %d\n", idx, v.Value)
	case pool.Null:
		fmt.Fprintf(buf, "  [%d] null\n", idx)
	case pool.Boolean:
		fmt.Fprintf(buf, "  [%d] boolean %t\n", idx, v.Value)
	case pool.String:
		fmt.Fprintf(buf, "  [%d] string %q\n", idx, v.Value)
	case pool.Slot:
		fmt.Fprintf(buf, "  [%d] slot name=%d\n", idx, v.NameIndex)
	case pool.Object:
		fmt.Fprintf(buf, "  [%d] object members=%v\n", idx, v.MemberIndices)
	case pool.Function:
		fmt.Fprintf(buf, "  [%d] function name=%d params=%d locals=%d\n", idx, v.NameIndex, v.Params, v.Locals)
		dasmCode(buf, v.Code)
	default:
		return fmt.Errorf("unhandled constant type %T", c)
	}
	return nil
}

func dasmCode(buf *bytes.Buffer, code *bytecode.Code) {
	for pc, insn := range code.Insns() {
		switch insn.Op.NumOperands() {
		case 0:
			fmt.Fprintf(buf, "    %04d %s\n", pc, insn.Op)
		case 1:
			fmt.Fprintf(buf, "    %04d %s %d\n", pc, insn.Op, insn.A)
		case 2:
			fmt.Fprintf(buf, "    %04d %s %d %d\n", pc, insn.Op, insn.A, insn.B)
		}
	}
}
