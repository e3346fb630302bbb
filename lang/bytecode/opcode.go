// Package bytecode defines the FML instruction set and the per-function
// append-only code buffer the lowering pass emits into.
package bytecode

import "fmt"

// Op is a single bytecode instruction tag: the numeric value of each
// constant below is the byte written to the image.
type Op uint8

const ( //nolint:revive
	Label        Op = 0x00 // name (u16 pool idx -> String)
	Literal      Op = 0x01 // index (u16)
	Print        Op = 0x02 // format (u16), argc (u8)
	Array        Op = 0x03 // -- pop initializer, pop size, push a new array
	Object       Op = 0x04 // class (u16 pool idx -> object descriptor)
	GetField     Op = 0x05 // name (u16)
	SetField     Op = 0x06 // name (u16)
	CallMethod   Op = 0x07 // name (u16), argc (u8) -- argc counts the receiver
	CallFunction Op = 0x08 // name (u16), argc (u8)
	SetLocal     Op = 0x09 // index (u16)
	GetLocal     Op = 0x0A // index (u16)
	SetGlobal    Op = 0x0B // name (u16)
	GetGlobal    Op = 0x0C // name (u16)
	Branch       Op = 0x0D // label (u16) -- pop top of stack, jump iff truthy
	Jump         Op = 0x0E // label (u16)
	Return       Op = 0x0F // --
	Drop         Op = 0x10 // pop top of stack
)

var opNames = map[Op]string{
	Label:        "label",
	Literal:      "literal",
	Print:        "print",
	Array:        "array",
	Object:       "object",
	GetField:     "getfield",
	SetField:     "setfield",
	CallMethod:   "callmethod",
	CallFunction: "callfunction",
	SetLocal:     "setlocal",
	GetLocal:     "getlocal",
	SetGlobal:    "setglobal",
	GetGlobal:    "getglobal",
	Branch:       "branch",
	Jump:         "jump",
	Return:       "return",
	Drop:         "drop",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("illegal op (%#02x)", uint8(op))
}

// NumOperands reports how many u16/u8 operands op takes on the wire: 0,
// 1 (an index or label) or 2 (an index/format plus an argument count).
func (op Op) NumOperands() int {
	switch op {
	case Return, Drop, Array:
		return 0
	case Print, CallMethod, CallFunction:
		return 2
	default:
		return 1
	}
}
