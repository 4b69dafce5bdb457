package errors_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	arcaneerrors "arcane/pkg/errors"
)

func TestNewRuntimeFormatsMessage(t *testing.T) {
	err := arcaneerrors.NewRuntime(5, "verkeerde tipe: %s", "getal")
	assert.Equal(t, "verkeerde tipe: getal (lyn 5)", err.Error())
	assert.Equal(t, "verkeerde tipe: getal", err.Message())
	assert.Equal(t, 5, err.Line())
	assert.Equal(t, "Looptyd", err.Kind())
}

func TestWithLineOmitsSuffixForNonPositiveLine(t *testing.T) {
	err := arcaneerrors.NewRuntime(0, "geen lyn nie")
	assert.Equal(t, "geen lyn nie", err.Error())
}

func TestEachKindHasItsOwnLabel(t *testing.T) {
	cases := []struct {
		err  arcaneerrors.ArcaneError
		kind string
	}{
		{&arcaneerrors.LexError{Msg: "m", Ln: 1}, "Lex"},
		{&arcaneerrors.SyntaxError{Msg: "m", Ln: 1}, "Sintaks"},
		{&arcaneerrors.ResolutionError{Msg: "m", Ln: 1}, "Resolusie"},
		{&arcaneerrors.CompileError{Msg: "m", Ln: 1}, "Samesteller"},
		{&arcaneerrors.RuntimeError{Msg: "m", Ln: 1}, "Looptyd"},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, c.err.Kind())
	}
}

func TestLexErrorDoesNotDoubleAppendLineSuffix(t *testing.T) {
	err := &arcaneerrors.LexError{Msg: "onverwagte karakter '@' (lyn 3)", Ln: 3}
	assert.Equal(t, "onverwagte karakter '@' (lyn 3)", err.Error())
}
