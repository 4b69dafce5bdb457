package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcane/pkg/lexer"
	"arcane/pkg/token"
)

func scan(t *testing.T, source string) []token.Token {
	t.Helper()
	toks, err := lexer.New(source).ScanTokens()
	require.NoError(t, err)
	return toks
}

func typesOf(toks []token.Token) []token.Type {
	types := make([]token.Type, len(toks))
	for i, tk := range toks {
		types[i] = tk.Type
	}
	return types
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	toks := scan(t, "laat x = 1")
	assert.Equal(t, []token.Type{token.LAAT, token.IDENT, token.ASSIGN, token.NUMBER, token.EOF}, typesOf(toks))
	assert.Equal(t, "x", toks[1].Lexeme)
	assert.Equal(t, 1.0, toks[3].Num)
}

func TestScanStringLiteral(t *testing.T) {
	toks := scan(t, `"hallo wêreld"`)
	require.Len(t, toks, 2)
	assert.Equal(t, token.STRING, toks[0].Type)
	assert.Equal(t, "hallo wêreld", toks[0].Str)
}

func TestScanOperators(t *testing.T) {
	toks := scan(t, "== != <= >= -> =>")
	assert.Equal(t, []token.Type{
		token.EQ, token.NEQ, token.LTE, token.GTE, token.ARROW, token.FATARROW, token.EOF,
	}, typesOf(toks))
}

func TestScanTracksLineNumbers(t *testing.T) {
	toks := scan(t, "laat x = 1\nlaat y = 2")
	assert.Equal(t, 1, toks[0].Line)
	var secondLaat token.Token
	for _, tk := range toks {
		if tk.Type == token.LAAT && tk.Line == 2 {
			secondLaat = tk
		}
	}
	assert.Equal(t, token.LAAT, secondLaat.Type)
}

func TestScanRejectsUnknownCharacter(t *testing.T) {
	_, err := lexer.New("laat x = 1 @ 2").ScanTokens()
	require.Error(t, err)
}

func TestIdentifiersNormalizeToNFC(t *testing.T) {
	// "é" as a precomposed rune vs. "e" + combining acute must scan to
	// the same lexeme so both spellings name one variable.
	precomposed := scan(t, "laat café = 1")
	decomposed := scan(t, "laat café = 1")
	assert.Equal(t, precomposed[1].Lexeme, decomposed[1].Lexeme)
}
