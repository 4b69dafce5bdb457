package modules_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcane/pkg/compiler"
	"arcane/pkg/lexer"
	"arcane/pkg/modules"
	"arcane/pkg/parser"
	"arcane/pkg/vm"
)

func runInDir(t *testing.T, dir, source string) (string, error) {
	t.Helper()
	toks, err := lexer.New(source).ScanTokens()
	require.NoError(t, err)
	prog, err := parser.New(toks).Parse()
	require.NoError(t, err)
	chunk, err := compiler.Compile(prog)
	require.NoError(t, err)

	loader := modules.New(dir)
	machine := vm.New(loader)
	var out bytes.Buffer
	machine.SetOutput(&out)
	_, err = machine.Run(chunk)
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadModuleExposesProvidedMembers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "geitjie.arc", "laat antwoord = 42\nverskaf antwoord\n")

	out, err := runInDir(t, dir, `laai "geitjie.arc" as m
druk(m.antwoord)
`)
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)
}

func TestLoadModuleCachesByResolvedPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "geitjie.arc", "laat antwoord = 42\nverskaf antwoord\n")

	out, err := runInDir(t, dir, `laai "geitjie.arc" as a
laai "geitjie.arc" as b
druk(a.__loadid == b.__loadid)
`)
	require.NoError(t, err)
	assert.Equal(t, "waar\n", out)
}

func TestLoadModuleDetectsCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.arc", `laai "./b.arc" as b
verskaf b
`)
	writeFile(t, dir, "b.arc", `laai "./a.arc" as a
verskaf a
`)

	_, err := runInDir(t, dir, `laai "a.arc" as x`+"\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cirkelverwysing in module")
}

func TestManifestRootsResolveBareModulePaths(t *testing.T) {
	root := t.TempDir()
	libDir := filepath.Join(root, "lib")
	require.NoError(t, os.Mkdir(libDir, 0o755))
	writeFile(t, libDir, "geitjie.arc", "laat antwoord = 7\nverskaf antwoord\n")
	writeFile(t, root, "arcane.yaml", "roots:\n  - lib\n")

	srcDir := filepath.Join(root, "src")
	require.NoError(t, os.Mkdir(srcDir, 0o755))

	out, err := runInDir(t, srcDir, `laai "geitjie.arc" as m
druk(m.antwoord)
`)
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)
}

func TestRelativeLoadResolvesAgainstLoadingFileDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "geitjie.arc", "laat antwoord = 7\nverskaf antwoord\n")

	out, err := runInDir(t, dir, `laai "./geitjie.arc" as m
druk(m.antwoord)
`)
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)
}
