package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/fmlc/lang/ast"
	"github.com/mna/fmlc/lang/compiler"
	"github.com/mna/mainer"
)

// Compile reads a serialized AST from args[0] and writes the compiled
// bytecode image to stdio.Stdout.
func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	img, err := compileFile(args[0])
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	if _, err := img.WriteTo(stdio.Stdout); err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	return nil
}

// Dasm reads a serialized AST from args[0], compiles it, and writes a
// human-readable disassembly of the image to stdio.Stdout.
func (c *Cmd) Dasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	img, err := compileFile(args[0])
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	text, err := compiler.Dasm(img)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	fmt.Fprint(stdio.Stdout, text)
	return nil
}

func compileFile(path string) (*compiler.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	root, err := ast.Decode(f)
	if err != nil {
		cerr := &compiler.Error{Kind: compiler.MalformedInput, Message: err.Error(), Err: err}
		return nil, fmt.Errorf("decoding %s: %w", path, cerr)
	}
	img, err := compiler.Compile(root)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", path, err)
	}
	return img, nil
}
