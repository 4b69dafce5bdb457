package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcane/pkg/ast"
	"arcane/pkg/lexer"
	"arcane/pkg/parser"
)

func parse(t *testing.T, source string) []ast.Stmt {
	t.Helper()
	toks, err := lexer.New(source).ScanTokens()
	require.NoError(t, err)
	prog, err := parser.New(toks).Parse()
	require.NoError(t, err)
	return prog
}

func TestParseVarDecl(t *testing.T) {
	prog := parse(t, "laat x = 1 + 2\n")
	require.Len(t, prog, 1)
	decl, ok := prog[0].(*ast.VarDecl)
	require.True(t, ok)
	assert.Equal(t, "x", decl.Name)
	_, ok = decl.Initializer.(*ast.Binary)
	assert.True(t, ok)
}

func TestParseIfElse(t *testing.T) {
	prog := parse(t, "as (waar) {\n  druk(1)\n} anders {\n  druk(2)\n}\n")
	require.Len(t, prog, 1)
	_, ok := prog[0].(*ast.If)
	assert.True(t, ok)
}

func TestParseMatchArms(t *testing.T) {
	src := `
tipe Opsie = Sommige(x) of Geen
pas Sommige(1) geval Sommige(v) => v geval Geen => 0 geval _ => -1
`
	prog := parse(t, src)
	require.Len(t, prog, 2)
	_, ok := prog[0].(*ast.TypeDecl)
	require.True(t, ok)

	es, ok := prog[1].(*ast.ExprStmt)
	require.True(t, ok)
	m, ok := es.Expr.(*ast.Match)
	require.True(t, ok)
	require.Len(t, m.Arms, 3)

	_, ok = m.Arms[0].Pattern.(*ast.ConstructorPattern)
	assert.True(t, ok)
	_, ok = m.Arms[2].Pattern.(*ast.WildcardPattern)
	assert.True(t, ok)
}

func TestPatternIdentifierCapitalizationDisambiguatesConstructorFromBind(t *testing.T) {
	src := `
tipe Opsie = Sommige(x) of Geen
pas Sommige(1) geval Sommige(v) => v geval geen => 0
`
	prog := parse(t, src)
	es := prog[1].(*ast.ExprStmt)
	m := es.Expr.(*ast.Match)

	_, isCtor := m.Arms[0].Pattern.(*ast.ConstructorPattern)
	assert.True(t, isCtor, "capitalized identifier names a constructor pattern")

	bind, isBind := m.Arms[1].Pattern.(*ast.BindPattern)
	assert.True(t, isBind, "lowercase identifier binds a fresh name")
	assert.Equal(t, "geen", bind.Name)
}

func TestParseLoadModuleAndMemberAccess(t *testing.T) {
	prog := parse(t, `laai "geitjie.arc" as m
druk(m.antwoord)
`)
	require.Len(t, prog, 2)
	load, ok := prog[0].(*ast.LoadModule)
	require.True(t, ok)
	assert.Equal(t, "geitjie.arc", load.Path)
	assert.Equal(t, "m", load.Alias)

	print, ok := prog[1].(*ast.PrintStmt)
	require.True(t, ok)
	member, ok := print.Expr.(*ast.Member)
	require.True(t, ok)
	assert.Equal(t, "antwoord", member.Name)
}

func TestParseProvide(t *testing.T) {
	prog := parse(t, "laat antwoord = 42\nverskaf antwoord\n")
	require.Len(t, prog, 2)
	p, ok := prog[1].(*ast.Provide)
	require.True(t, ok)
	assert.Equal(t, "antwoord", p.Name)
}

func TestParseFunctionDeclAndTailReturn(t *testing.T) {
	prog := parse(t, "funksie loop(n) {\n  gee loop(n - 1)\n}\n")
	require.Len(t, prog, 1)
	fd, ok := prog[0].(*ast.FunctionDecl)
	require.True(t, ok)
	assert.Equal(t, "loop", fd.Name)
	assert.Equal(t, []string{"n"}, fd.Params)
	require.Len(t, fd.Body, 1)
	ret, ok := fd.Body[0].(*ast.Return)
	require.True(t, ok)
	_, ok = ret.Value.(*ast.Call)
	assert.True(t, ok)
}

func TestParseRejectsMissingNewlineBetweenStatements(t *testing.T) {
	toks, err := lexer.New("laat x = 1 laat y = 2").ScanTokens()
	require.NoError(t, err)
	_, err = parser.New(toks).Parse()
	assert.Error(t, err)
}

func TestParseLambdaLiteral(t *testing.T) {
	prog := parse(t, "laat f = fn (a, b) { gee a + b }\n")
	decl := prog[0].(*ast.VarDecl)
	lit, ok := decl.Initializer.(*ast.FunctionLit)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, lit.Params)
}
