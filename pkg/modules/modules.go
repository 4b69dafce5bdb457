// Package modules implements `laai "path" as alias` resolution (§4.7):
// filesystem lookup relative to either the loading file or an
// arcane.yaml manifest's search roots, a cache keyed by resolved
// absolute path, cycle detection, and running a module program in its
// own private VM so only its `verskaf`'d globals become visible.
package modules

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"arcane/pkg/ast"
	"arcane/pkg/compiler"
	arcaneerrors "arcane/pkg/errors"
	"arcane/pkg/lexer"
	"arcane/pkg/parser"
	"arcane/pkg/value"
	"arcane/pkg/vm"
)

// Manifest is the shape of an arcane.yaml search-root manifest.
type Manifest struct {
	Roots []string `yaml:"roots"`
}

type cacheState int

const (
	stateLoading cacheState = iota
	stateLoaded
)

type cacheEntry struct {
	id    string // uuid tag, stamped as the module's __loadid and shown by DebugEntries
	state cacheState
	value value.Value
}

// Loader resolves and runs `laai` targets against the filesystem,
// caching by resolved absolute path and rejecting circular loads. The
// cache map is shared (by reference) across every loader spawned for
// nested module loads, so a cycle anywhere in the load tree — not just
// within one module — is caught.
type Loader struct {
	cache map[string]*cacheEntry
	dir   string // directory `laai` paths in this loader's file resolve against
}

// New returns a Loader rooted at entryDir, the directory containing the
// program's entry file.
func New(entryDir string) *Loader {
	return &Loader{cache: make(map[string]*cacheEntry), dir: entryDir}
}

// child returns a Loader for a module's own `laai` statements, rooted
// at the module's directory and sharing this loader's cache.
func (l *Loader) child(dir string) *Loader {
	return &Loader{cache: l.cache, dir: dir}
}

// Load implements vm.ModuleLoader.
func (l *Loader) Load(path string) (value.Value, error) {
	resolved, err := l.resolve(path)
	if err != nil {
		return value.Value{}, err
	}

	if entry, ok := l.cache[resolved]; ok {
		if entry.state == stateLoading {
			return value.Value{}, arcaneerrors.NewRuntime(0, "cirkelverwysing in module: '%s'", resolved)
		}
		return entry.value, nil
	}

	entry := &cacheEntry{id: uuid.NewString(), state: stateLoading}
	l.cache[resolved] = entry

	modVal, err := l.run(resolved, entry.id)
	if err != nil {
		delete(l.cache, resolved)
		return value.Value{}, err
	}

	entry.state = stateLoaded
	entry.value = modVal
	return modVal, nil
}

// resolve implements §4.7's path rules: `./`/`../` is relative to the
// current loading file's directory; anything else searches the roots of
// the nearest arcane.yaml found walking up from that same directory,
// then falls back to that directory. For a module's own nested loads
// this is the module's directory; the entry file's directory is not
// consulted.
func (l *Loader) resolve(path string) (string, error) {
	current := l.dir
	if len(path) >= 2 && (path[:2] == "./" || path[:2] == "..") {
		return filepath.Abs(filepath.Join(current, path))
	}

	for _, root := range l.manifestRoots(current) {
		candidate := filepath.Join(root, path)
		if _, err := os.Stat(candidate); err == nil {
			return filepath.Abs(candidate)
		}
	}
	return filepath.Abs(filepath.Join(l.dir, path))
}

// manifestRoots walks up from dir looking for the nearest arcane.yaml.
func (l *Loader) manifestRoots(dir string) []string {
	for d := dir; ; {
		manifestPath := filepath.Join(d, "arcane.yaml")
		if data, err := os.ReadFile(manifestPath); err == nil {
			var m Manifest
			if yaml.Unmarshal(data, &m) == nil {
				roots := make([]string, len(m.Roots))
				for i, r := range m.Roots {
					roots[i] = filepath.Join(d, r)
				}
				return roots
			}
		}
		parent := filepath.Dir(d)
		if parent == d {
			return nil
		}
		d = parent
	}
}

// run compiles and executes the module file at resolved in a fresh,
// private VM, then copies out only the globals the module `verskaf`'d.
// loadID is stamped onto the result as a hidden "__loadid" member so
// tests can assert two `laai` calls against the same path shared one
// cached Module without relying on pointer equality.
func (l *Loader) run(resolved, loadID string) (value.Value, error) {
	src, err := os.ReadFile(resolved)
	if err != nil {
		return value.Value{}, arcaneerrors.NewRuntime(0, "kon nie module '%s' laai nie: %v", resolved, err)
	}

	toks, err := lexer.New(string(src)).ScanTokens()
	if err != nil {
		return value.Value{}, err
	}
	prog, err := parser.New(toks).Parse()
	if err != nil {
		return value.Value{}, err
	}
	chunk, err := compiler.Compile(prog)
	if err != nil {
		return value.Value{}, err
	}

	sub := l.child(filepath.Dir(resolved))
	moduleVM := vm.New(sub)

	if _, err := moduleVM.Run(chunk); err != nil {
		return value.Value{}, err
	}

	members := make(map[string]value.Value)
	for _, name := range provides(prog) {
		if v, ok := moduleVM.Globals()[name]; ok {
			members[name] = v
		}
	}
	members["__loadid"] = value.String(loadID)

	name := filepath.Base(resolved)
	return value.ModuleVal(&value.Module{Name: name, Members: members}), nil
}

// provides walks the top-level statements of a parsed module program
// for its `verskaf NAME` exports, in source order.
func provides(prog []ast.Stmt) []string {
	var names []string
	for _, s := range prog {
		if p, ok := s.(*ast.Provide); ok {
			names = append(names, p.Name)
		}
	}
	return names
}

// DebugEntries renders "path#uuid" for every cached module, resolved or
// in progress, in no particular order.
func (l *Loader) DebugEntries() []string {
	entries := make([]string, 0, len(l.cache))
	for path, e := range l.cache {
		entries = append(entries, fmt.Sprintf("%s#%s", path, e.id))
	}
	return entries
}
