package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"arcane/pkg/token"
)

func TestLookupRecognizesKeywords(t *testing.T) {
	assert.Equal(t, token.LAAT, token.Lookup("laat"))
	assert.Equal(t, token.GEVAL, token.Lookup("geval"))
	assert.Equal(t, token.UNDERSCORE, token.Lookup("_"))
}

func TestLookupFallsBackToIdent(t *testing.T) {
	assert.Equal(t, token.IDENT, token.Lookup("antwoord"))
	assert.Equal(t, token.IDENT, token.Lookup("Sommige"))
}

func TestStringRendersPunctuationLiterally(t *testing.T) {
	assert.Equal(t, "'('", token.LPAREN.String())
	assert.Equal(t, "'=>'", token.FATARROW.String())
}

func TestStringHasNoGenericFallbackForNamedTypes(t *testing.T) {
	assert.NotEqual(t, "token", token.EOF.String())
	assert.NotEqual(t, "token", token.NUMBER.String())
}
