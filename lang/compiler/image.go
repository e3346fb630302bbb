package compiler

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mna/fmlc/lang/pool"
	"github.com/mna/fmlc/lang/scope"
)

// Image is the complete output of compilation: the constant pool, the
// globals table, and the entry point, ready to be handed to a virtual
// machine. Loading and executing the image is out of scope for this
// repository beyond producing this value.
type Image struct {
	Pool       *pool.Pool
	Globals    *scope.Globals
	EntryPoint uint16
}

// WriteTo serializes the image to w in the order a loader expects to
// read it back: the constant pool, then the globals table (a u16 count
// followed by each global's pool index), then the entry point index,
// every integer little-endian.
func (img *Image) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}

	if err := img.Pool.WriteTo(cw); err != nil {
		return cw.n, fmt.Errorf("compiler: writing pool: %w", err)
	}

	indices := img.Globals.Indices()
	if err := writeUint16(cw, uint16(len(indices))); err != nil {
		return cw.n, fmt.Errorf("compiler: writing globals count: %w", err)
	}
	for _, idx := range indices {
		if err := writeUint16(cw, idx); err != nil {
			return cw.n, fmt.Errorf("compiler: writing global index: %w", err)
		}
	}

	if err := writeUint16(cw, img.EntryPoint); err != nil {
		return cw.n, fmt.Errorf("compiler: writing entry point: %w", err)
	}
	return cw.n, nil
}

func writeUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
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
