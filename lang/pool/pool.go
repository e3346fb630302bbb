// Package pool implements the FML constant pool: an ordered, indexed
// table of literal values, interned names, slot descriptors, object
// descriptors and fully compiled function bodies.
package pool

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dolthub/swiss"
	"github.com/mna/fmlc/lang/bytecode"
)

// Tag is the wire tag byte identifying a constant's variant. Tag 0x05
// is the object-descriptor variant; it is a distinct byte space from
// the bytecode.Op tags (0x05 there is GetField), so there is no
// collision. See DESIGN.md for the reasoning behind this assignment.
type Tag uint8

const (
	TagInteger  Tag = 0x00
	TagNull     Tag = 0x01
	TagString   Tag = 0x02
	TagFunction Tag = 0x03
	TagSlot     Tag = 0x04
	TagObject   Tag = 0x05
	TagBoolean  Tag = 0x06
)

// Constant is implemented by every pool entry variant.
type Constant interface {
	Tag() Tag
	encode(w io.Writer) error
	// key returns a comparable representation of the constant suitable for
	// use with Find/FindString's lookup cache. Two constants with equal
	// keys are structurally equal.
	key() interface{}
}

// Integer is a signed 32-bit integer constant.
type Integer struct{ Value int32 }

// Null is the null constant. It carries no data.
type Null struct{}

// String is a UTF-8 string constant, used both for literal strings and
// for interned names (identifiers, field names, format strings).
type String struct{ Value string }

// Boolean is a boolean constant.
type Boolean struct{ Value bool }

// Slot names an instance field or a global variable by reference to an
// existing String entry in the same pool.
type Slot struct{ NameIndex uint16 }

// Object is the descriptor for an object literal: the ordered list of
// pool indices of its Slot and Function members, in declaration order.
type Object struct{ MemberIndices []uint16 }

// Function is a fully compiled function body: its name (by reference to
// a String entry), declared parameter count, the high-water mark of
// local slots it uses, and its code.
type Function struct {
	NameIndex uint16
	Params    uint8
	Locals    uint16
	Code      *bytecode.Code
}

func (Integer) Tag() Tag  { return TagInteger }
func (Null) Tag() Tag     { return TagNull }
func (String) Tag() Tag   { return TagString }
func (Boolean) Tag() Tag  { return TagBoolean }
func (Slot) Tag() Tag     { return TagSlot }
func (Object) Tag() Tag   { return TagObject }
func (Function) Tag() Tag { return TagFunction }

func (c Integer) key() interface{} { return c }
func (c Null) key() interface{}    { return c }
func (c String) key() interface{}  { return c }
func (c Boolean) key() interface{} { return c }
func (c Slot) key() interface{}    { return c }

// Object and Function are never looked up by value (object descriptors
// and function bodies are always freshly constructed, never
// deduplicated), so their key is nil: Push does not cache them and Find
// reports no match for them.
func (c Object) key() interface{}   { return nil }
func (c Function) key() interface{} { return nil }

func (c Integer) encode(w io.Writer) error {
	return writeAll(w, []byte{byte(TagInteger)}, le32(uint32(c.Value)))
}

func (c Null) encode(w io.Writer) error {
	_, err := w.Write([]byte{byte(TagNull)})
	return err
}

func (c String) encode(w io.Writer) error {
	b := []byte(c.Value)
	return writeAll(w, []byte{byte(TagString)}, le32(uint32(len(b))), b)
}

func (c Boolean) encode(w io.Writer) error {
	var v byte
	if c.Value {
		v = 1
	}
	return writeAll(w, []byte{byte(TagBoolean)}, []byte{v})
}

func (c Slot) encode(w io.Writer) error {
	return writeAll(w, []byte{byte(TagSlot)}, le16(c.NameIndex))
}

func (c Object) encode(w io.Writer) error {
	buf := []byte{byte(TagObject)}
	buf = append(buf, le16(uint16(len(c.MemberIndices)))...)
	for _, idx := range c.MemberIndices {
		buf = append(buf, le16(idx)...)
	}
	_, err := w.Write(buf)
	return err
}

func (c Function) encode(w io.Writer) error {
	codeLen := c.Code.ByteLen()
	if err := writeAll(w, []byte{byte(TagFunction)}, le16(c.NameIndex), []byte{c.Params}, le16(c.Locals), le32(codeLen)); err != nil {
		return err
	}
	_, err := c.Code.WriteTo(w)
	return err
}

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func writeAll(w io.Writer, chunks ...[]byte) error {
	for _, c := range chunks {
		if _, err := w.Write(c); err != nil {
			return err
		}
	}
	return nil
}

// Pool is the ordered, append-only constant table. Indices never move
// once assigned; Push is the only way to add an entry, and there is no
// global deduplication -- Find and FindString are opt-in queries the
// lowering pass uses where identity of a name matters (e.g. field
// lookups).
type Pool struct {
	entries []Constant
	// cache backs Find/FindString: it maps a constant's comparable key to
	// the pool index of its most-recently-pushed occurrence, so when equal
	// entries coexist, Find returns the last one, not the first.
	cache *swiss.Map[interface{}, uint16]
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{cache: swiss.NewMap[interface{}, uint16](uint32(16))}
}

// Push appends constant unconditionally and returns its new index.
func (p *Pool) Push(c Constant) uint16 {
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	if k := c.key(); k != nil {
		p.cache.Put(k, idx)
	}
	return idx
}

// Find returns the index of the most recently pushed entry structurally
// equal to c, if any. Object and Function entries are never matched --
// they are always freshly appended.
func (p *Pool) Find(c Constant) (uint16, bool) {
	k := c.key()
	if k == nil {
		return 0, false
	}
	return p.cache.Get(k)
}

// FindString returns the index of an existing String entry with the
// given payload, if any.
func (p *Pool) FindString(s string) (uint16, bool) {
	return p.Find(String{Value: s})
}

// Get returns the entry at idx. It panics if idx is out of range, since a
// correct lowering pass never requests an index it did not itself push.
func (p *Pool) Get(idx uint16) Constant {
	return p.entries[idx]
}

// Len returns the number of entries currently in the pool.
func (p *Pool) Len() uint16 {
	return uint16(len(p.entries))
}

// WriteTo writes the pool's wire serialization to w: a u16 count followed
// by each entry's tag byte and payload, in index order.
func (p *Pool) WriteTo(w io.Writer) error {
	if _, err := w.Write(le16(p.Len())); err != nil {
		return err
	}
	for i, c := range p.entries {
		if err := c.encode(w); err != nil {
			return fmt.Errorf("pool: encoding entry %d: %w", i, err)
		}
	}
	return nil
}
