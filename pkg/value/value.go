// Package value defines the runtime value model shared by the compiler
// and the VM: a tagged union plus the callable types (Function, Closure,
// NativeFunction, TypeConstructor) and the ADT instance type.
package value

import (
	"fmt"
	"strconv"
	"strings"

	"arcane/pkg/bytecode"
)

// Type tags a Value's active variant.
type Type uint8

const (
	TypeNumber Type = iota
	TypeBoolean
	TypeString
	TypeNil
	TypeList
	TypeFunction
	TypeClosure
	TypeNative
	TypeConstructorDef
	TypeAdt
	TypeModule
)

// Value is a tagged union. Only the field matching Type is meaningful.
// Composite variants (String/List/Function/Closure/...) hold pointers so
// copying a Value is cheap and so shared structures (a captured list, a
// closure's upvalues) are genuinely shared.
type Value struct {
	Type Type

	Num  float64
	Bool bool
	Str  *string
	List *[]Value

	Fn       *Function
	Closure  *Closure
	Native   *NativeFunction
	Ctor     *TypeConstructor
	Adt      *Adt
	Module   *Module
}

// Function is a compiled function body: its arity, its chunk, and how
// many upvalue cells a Closure built from it needs.
type Function struct {
	Name        string
	Arity       int
	Chunk       *bytecode.Chunk
	UpvalueCount int
}

// Upvalue is a captured variable cell. While Closed is false, Location
// points at a live stack slot; once the owning slot leaves scope the
// cell is closed and the value copied into Value.
type Upvalue struct {
	Location *Value
	Closed   bool
	Value    Value
}

// Get returns the upvalue's current value, whether open or closed.
func (u *Upvalue) Get() Value {
	if u.Closed {
		return u.Value
	}
	return *u.Location
}

// Set writes through to the upvalue's current location.
func (u *Upvalue) Set(v Value) {
	if u.Closed {
		u.Value = v
		return
	}
	*u.Location = v
}

// Close copies the current stack value in and severs the stack link.
func (u *Upvalue) Close() {
	if u.Closed {
		return
	}
	u.Value = *u.Location
	u.Closed = true
	u.Location = nil
}

// Closure pairs a Function with its captured upvalue cells.
type Closure struct {
	Fn       *Function
	Upvalues []*Upvalue
}

// NativeFunction is a host-provided built-in.
type NativeFunction struct {
	Name  string
	Arity int // -1 means variadic
	Fn    func(args []Value) (Value, error)
}

// TypeConstructor is a callable ADT constructor definition: calling it
// with Arity arguments produces an Adt value.
type TypeConstructor struct {
	TypeName string
	CtorName string
	Arity    int
}

// Adt is a materialized algebraic-data-type instance.
type Adt struct {
	TypeName string
	CtorName string
	Fields   []Value
}

// Module is an opaque name->Value record produced by LoadModule.
type Module struct {
	Name    string
	Members map[string]Value
}

// Constructors for each variant, named to read naturally at call sites.

func Number(n float64) Value  { return Value{Type: TypeNumber, Num: n} }
func Boolean(b bool) Value    { return Value{Type: TypeBoolean, Bool: b} }
func String(s string) Value   { return Value{Type: TypeString, Str: &s} }
func Nil() Value              { return Value{Type: TypeNil} }
func List(items []Value) Value {
	return Value{Type: TypeList, List: &items}
}
func FunctionVal(f *Function) Value     { return Value{Type: TypeFunction, Fn: f} }
func ClosureVal(c *Closure) Value       { return Value{Type: TypeClosure, Closure: c} }
func NativeVal(n *NativeFunction) Value { return Value{Type: TypeNative, Native: n} }
func ConstructorVal(c *TypeConstructor) Value {
	return Value{Type: TypeConstructorDef, Ctor: c}
}
func AdtVal(a *Adt) Value       { return Value{Type: TypeAdt, Adt: a} }
func ModuleVal(m *Module) Value { return Value{Type: TypeModule, Module: m} }

// IsTruthy implements the truthiness table: Nil is false, Boolean is
// itself, Number is false only at exactly 0.0, String/List are false
// only when empty, everything else (functions, ADTs, modules) is true.
func (v Value) IsTruthy() bool {
	switch v.Type {
	case TypeNil:
		return false
	case TypeBoolean:
		return v.Bool
	case TypeNumber:
		return v.Num != 0.0
	case TypeString:
		return *v.Str != ""
	case TypeList:
		return len(*v.List) != 0
	default:
		return true
	}
}

// Equal implements structural equality for scalars, strings, lists, and
// ADTs, and identity equality for every callable/module kind.
func Equal(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case TypeNumber:
		return a.Num == b.Num
	case TypeBoolean:
		return a.Bool == b.Bool
	case TypeString:
		return *a.Str == *b.Str
	case TypeNil:
		return true
	case TypeList:
		as, bs := *a.List, *b.List
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	case TypeAdt:
		if a.Adt.TypeName != b.Adt.TypeName || a.Adt.CtorName != b.Adt.CtorName {
			return false
		}
		if len(a.Adt.Fields) != len(b.Adt.Fields) {
			return false
		}
		for i := range a.Adt.Fields {
			if !Equal(a.Adt.Fields[i], b.Adt.Fields[i]) {
				return false
			}
		}
		return true
	case TypeFunction:
		return a.Fn == b.Fn
	case TypeClosure:
		return a.Closure == b.Closure
	case TypeNative:
		return a.Native == b.Native
	case TypeConstructorDef:
		return a.Ctor == b.Ctor
	case TypeModule:
		return a.Module == b.Module
	default:
		return false
	}
}

// String renders v the way `druk` and diagnostics do (spec §6).
func (v Value) String() string {
	switch v.Type {
	case TypeNumber:
		if v.Num == float64(int64(v.Num)) {
			return strconv.FormatInt(int64(v.Num), 10)
		}
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case TypeBoolean:
		if v.Bool {
			return "waar"
		}
		return "vals"
	case TypeString:
		return *v.Str
	case TypeNil:
		return "nil"
	case TypeList:
		parts := make([]string, len(*v.List))
		for i, e := range *v.List {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TypeFunction:
		return fmt.Sprintf("<funksie %s>", v.Fn.Name)
	case TypeClosure:
		return fmt.Sprintf("<funksie %s>", v.Closure.Fn.Name)
	case TypeNative:
		return fmt.Sprintf("<ingeboude %s>", v.Native.Name)
	case TypeConstructorDef:
		return fmt.Sprintf("<konstruktor %s.%s>", v.Ctor.TypeName, v.Ctor.CtorName)
	case TypeAdt:
		if len(v.Adt.Fields) == 0 {
			return v.Adt.CtorName
		}
		parts := make([]string, len(v.Adt.Fields))
		for i, f := range v.Adt.Fields {
			parts[i] = f.String()
		}
		return fmt.Sprintf("%s(%s)", v.Adt.CtorName, strings.Join(parts, ", "))
	case TypeModule:
		return fmt.Sprintf("<module %s>", v.Module.Name)
	default:
		return "?"
	}
}

// TypeName returns the Afrikaans type name used by the tipe_van builtin.
func (v Value) TypeName() string {
	switch v.Type {
	case TypeNumber:
		return "nommer"
	case TypeBoolean:
		return "boolean"
	case TypeString:
		return "string"
	case TypeNil:
		return "nil"
	case TypeList:
		return "lys"
	case TypeFunction, TypeClosure:
		return "funksie"
	case TypeNative:
		return "ingeboude"
	case TypeConstructorDef:
		return "konstruktor"
	case TypeAdt:
		return "adt"
	case TypeModule:
		return "module"
	default:
		return "onbekend"
	}
}
