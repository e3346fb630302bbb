package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Insn is a single decoded instruction: the opcode plus up to two
// operands. A is the index/label/class/name operand (always present for
// opcodes with operands); B is the argument count, present only for
// Print, CallMethod and CallFunction.
type Insn struct {
	Op Op
	A  uint16
	B  uint8
}

// Encode appends the wire encoding of insn to w, little-endian.
func (insn Insn) Encode(w io.Writer) error {
	if _, err := w.Write([]byte{byte(insn.Op)}); err != nil {
		return err
	}
	switch insn.Op.NumOperands() {
	case 0:
		return nil
	case 1:
		return writeUint16(w, insn.A)
	case 2:
		if err := writeUint16(w, insn.A); err != nil {
			return err
		}
		_, err := w.Write([]byte{insn.B})
		return err
	default:
		return fmt.Errorf("bytecode: unsupported operand count for %s", insn.Op)
	}
}

func writeUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// NewLabel, NewLiteral, ... construct the instruction for each opcode,
// one constructor per operand shape.

func NewLabel(name uint16) Insn                   { return Insn{Op: Label, A: name} }
func NewLiteral(index uint16) Insn                { return Insn{Op: Literal, A: index} }
func NewPrint(format uint16, argc uint8) Insn     { return Insn{Op: Print, A: format, B: argc} }
func NewArray() Insn                              { return Insn{Op: Array} }
func NewObject(class uint16) Insn                 { return Insn{Op: Object, A: class} }
func NewGetField(name uint16) Insn                { return Insn{Op: GetField, A: name} }
func NewSetField(name uint16) Insn                { return Insn{Op: SetField, A: name} }
func NewCallMethod(name uint16, argc uint8) Insn  { return Insn{Op: CallMethod, A: name, B: argc} }
func NewCallFunction(name uint16, argc uint8) Insn { return Insn{Op: CallFunction, A: name, B: argc} }
func NewSetLocal(index uint16) Insn               { return Insn{Op: SetLocal, A: index} }
func NewGetLocal(index uint16) Insn               { return Insn{Op: GetLocal, A: index} }
func NewSetGlobal(name uint16) Insn               { return Insn{Op: SetGlobal, A: name} }
func NewGetGlobal(name uint16) Insn               { return Insn{Op: GetGlobal, A: name} }
func NewBranch(label uint16) Insn                 { return Insn{Op: Branch, A: label} }
func NewJump(label uint16) Insn                   { return Insn{Op: Jump, A: label} }
func NewReturn() Insn                             { return Insn{Op: Return} }
func NewDrop() Insn                               { return Insn{Op: Drop} }

// Code is a per-function append-only sequence of instructions. There is
// no deletion and no patching: labels are ordinary instructions
// interleaved with code, and address resolution is left entirely to the
// virtual machine that eventually loads the image.
type Code struct {
	insns []Insn
}

// Append adds inst to the end of the buffer.
func (c *Code) Append(inst Insn) {
	c.insns = append(c.insns, inst)
}

// AppendIf adds inst to the end of the buffer only if cond is true. This
// mirrors the emitter's need to conditionally emit a trailing Drop
// depending on the drop context.
func (c *Code) AppendIf(inst Insn, cond bool) {
	if cond {
		c.Append(inst)
	}
}

// Extend appends every instruction of other to c, in order.
func (c *Code) Extend(other *Code) {
	c.insns = append(c.insns, other.insns...)
}

// Len returns the number of instructions currently in the buffer.
func (c *Code) Len() int {
	return len(c.insns)
}

// Insns returns the buffer's instructions. The returned slice must not be
// mutated by the caller.
func (c *Code) Insns() []Insn {
	return c.insns
}

// WriteTo writes every instruction in order to w, little-endian, with no
// length prefix: the enclosing Function pool entry carries the code
// length.
func (c *Code) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, insn := range c.insns {
		cw := &countingWriter{w: w}
		if err := insn.Encode(cw); err != nil {
			return n + cw.n, err
		}
		n += cw.n
	}
	return n, nil
}

// ByteLen returns the exact number of bytes WriteTo would write, without
// writing anything.
func (c *Code) ByteLen() uint32 {
	var n uint32
	for _, insn := range c.insns {
		switch insn.Op.NumOperands() {
		case 0:
			n++
		case 1:
			n += 3
		case 2:
			n += 4
		}
	}
	return n
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
