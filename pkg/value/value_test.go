package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"arcane/pkg/value"
)

func TestIsTruthyTable(t *testing.T) {
	assert.False(t, value.Nil().IsTruthy())
	assert.False(t, value.Boolean(false).IsTruthy())
	assert.True(t, value.Boolean(true).IsTruthy())
	assert.False(t, value.Number(0).IsTruthy())
	assert.True(t, value.Number(-1).IsTruthy())
	assert.False(t, value.String("").IsTruthy())
	assert.True(t, value.String("0").IsTruthy())
	assert.False(t, value.List(nil).IsTruthy())
	assert.True(t, value.List([]value.Value{value.Number(1)}).IsTruthy())
	assert.True(t, value.AdtVal(&value.Adt{CtorName: "Geen"}).IsTruthy())
}

func TestEqualIsStructuralForListsAndAdts(t *testing.T) {
	a := value.List([]value.Value{value.Number(1), value.String("x")})
	b := value.List([]value.Value{value.Number(1), value.String("x")})
	assert.True(t, value.Equal(a, b))

	left := value.AdtVal(&value.Adt{TypeName: "Opsie", CtorName: "Sommige", Fields: []value.Value{value.Number(1)}})
	right := value.AdtVal(&value.Adt{TypeName: "Opsie", CtorName: "Sommige", Fields: []value.Value{value.Number(1)}})
	assert.True(t, value.Equal(left, right))

	other := value.AdtVal(&value.Adt{TypeName: "Opsie", CtorName: "Geen"})
	assert.False(t, value.Equal(left, other))
}

func TestEqualIsIdentityForClosures(t *testing.T) {
	c1 := &value.Closure{Fn: &value.Function{Name: "f"}}
	c2 := &value.Closure{Fn: &value.Function{Name: "f"}}
	assert.False(t, value.Equal(value.ClosureVal(c1), value.ClosureVal(c2)))
	assert.True(t, value.Equal(value.ClosureVal(c1), value.ClosureVal(c1)))
}

func TestStringRendersIntegersWithoutDecimalPoint(t *testing.T) {
	assert.Equal(t, "3", value.Number(3).String())
	assert.Equal(t, "3.5", value.Number(3.5).String())
	assert.Equal(t, "waar", value.Boolean(true).String())
	assert.Equal(t, "vals", value.Boolean(false).String())
}

func TestStringRendersAdtWithAndWithoutFields(t *testing.T) {
	none := value.AdtVal(&value.Adt{CtorName: "Geen"})
	assert.Equal(t, "Geen", none.String())

	some := value.AdtVal(&value.Adt{CtorName: "Sommige", Fields: []value.Value{value.Number(42)}})
	assert.Equal(t, "Sommige(42)", some.String())
}

func TestStringRendersListRecursively(t *testing.T) {
	xs := value.List([]value.Value{value.Number(1), value.Number(2), value.String("hi")})
	assert.Equal(t, "[1, 2, hi]", xs.String())
}

func TestUpvalueGetSetAcrossClose(t *testing.T) {
	slot := value.Number(1)
	up := &value.Upvalue{Location: &slot}
	assert.Equal(t, value.Number(1), up.Get())

	up.Set(value.Number(2))
	assert.Equal(t, value.Number(2), slot)

	up.Close()
	assert.True(t, up.Closed)
	up.Set(value.Number(3))
	assert.Equal(t, value.Number(3), up.Get())
	assert.Equal(t, value.Number(2), slot, "closing severs the stack link, further writes stay local")
}

func TestTypeNameCoversEveryVariant(t *testing.T) {
	cases := map[value.Value]string{
		value.Number(1):    "nommer",
		value.Boolean(true): "boolean",
		value.String("s"):  "string",
		value.Nil():        "nil",
		value.List(nil):    "lys",
		value.FunctionVal(&value.Function{}):           "funksie",
		value.ClosureVal(&value.Closure{}):             "funksie",
		value.NativeVal(&value.NativeFunction{}):       "ingeboude",
		value.ConstructorVal(&value.TypeConstructor{}): "konstruktor",
		value.AdtVal(&value.Adt{}):                     "adt",
		value.ModuleVal(&value.Module{}):               "module",
	}
	for v, want := range cases {
		assert.Equal(t, want, v.TypeName())
	}
}
