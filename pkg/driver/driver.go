// Package driver wires the lexer, parser, compiler and VM into the few
// entry points the CLI needs: compiling a source string into a chunk,
// and running a file or a source string against a persistent session.
// The module loader does not use it; pkg/modules runs its own pipeline.
package driver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"arcane/pkg/bytecode"
	"arcane/pkg/compiler"
	arcaneerrors "arcane/pkg/errors"
	"arcane/pkg/lexer"
	"arcane/pkg/modules"
	"arcane/pkg/parser"
	"arcane/pkg/value"
	"arcane/pkg/vm"
)

// Compile lexes, parses and compiles source into a chunk, stopping at
// the first error from any stage.
func Compile(source string) (*bytecode.Chunk, error) {
	toks, err := lexer.New(source).ScanTokens()
	if err != nil {
		return nil, err
	}
	prog, err := parser.New(toks).Parse()
	if err != nil {
		return nil, err
	}
	return compiler.Compile(prog)
}

// Session is a persistent interpreter instance: one VM and the global
// environment it accumulates across repeated RunString calls. The CLI's
// `run` command uses one fresh Session per file, through RunFile; the
// CLI has no REPL mode.
type Session struct {
	VM *vm.VM
}

// NewSession returns a Session whose `laai` statements resolve relative
// to entryDir.
func NewSession(entryDir string) *Session {
	loader := modules.New(entryDir)
	return &Session{VM: vm.New(loader)}
}

// RunString compiles and runs source in this session, returning the
// chunk's final value.
func (s *Session) RunString(source string) (value.Value, error) {
	chunk, err := Compile(source)
	if err != nil {
		return value.Value{}, err
	}
	return s.VM.Run(chunk)
}

// RunFile reads, compiles and runs the file at path in a fresh session
// rooted at its containing directory.
func RunFile(path string) (value.Value, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return value.Value{}, arcaneerrors.NewRuntime(0, "kon nie '%s' lees nie: %v", path, err)
	}
	session := NewSession(filepath.Dir(path))
	return session.RunString(string(src))
}

// DisplayError writes an error to w as "Kind: message", the form every
// stage's error taxonomy shares (§7).
func DisplayError(w io.Writer, err error) {
	if ae, ok := err.(arcaneerrors.ArcaneError); ok {
		fmt.Fprintf(w, "%s: %s\n", ae.Kind(), ae.Error())
		return
	}
	fmt.Fprintln(w, err.Error())
}
