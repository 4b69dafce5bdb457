package vm

import (
	arcaneerrors "arcane/pkg/errors"
	"arcane/pkg/value"
)

// asClosure normalizes a callee Value that should behave like a
// function activation (Closure, or a bare Function constant escaping
// without ever having gone through MakeClosure) into a *value.Closure,
// or reports it isn't callable that way.
func asClosure(callee value.Value) (*value.Closure, bool) {
	switch callee.Type {
	case value.TypeClosure:
		return callee.Closure, true
	case value.TypeFunction:
		return &value.Closure{Fn: callee.Fn}, true
	default:
		return nil, false
	}
}

// call implements Call(n) (§4.4): top-of-stack layout is
// [..., callee, a1, ..., an].
func (vm *VM) call(n, line int) error {
	callee := vm.peek(n)
	if closure, ok := asClosure(callee); ok {
		if closure.Fn.Arity != n {
			return arcaneerrors.NewRuntime(line, "verkeerde aantal argumente: verwag %d, gekry %d", closure.Fn.Arity, n)
		}
		if len(vm.frames) >= maxFrames {
			return arcaneerrors.NewRuntime(line, "stapel oorloop")
		}
		vm.frames = append(vm.frames, CallFrame{closure: closure, base: vm.sp - n})
		return nil
	}

	switch callee.Type {
	case value.TypeNative:
		nf := callee.Native
		if nf.Arity >= 0 && nf.Arity != n {
			return arcaneerrors.NewRuntime(line, "verkeerde aantal argumente: verwag %d, gekry %d", nf.Arity, n)
		}
		args := make([]value.Value, n)
		copy(args, vm.stack[vm.sp-n:vm.sp])
		result, err := nf.Fn(args)
		if err != nil {
			return err
		}
		vm.sp -= n + 1
		vm.push(result)
		return nil

	case value.TypeConstructorDef:
		tc := callee.Ctor
		if tc.Arity != n {
			return arcaneerrors.NewRuntime(line, "verkeerde aantal argumente: verwag %d, gekry %d", tc.Arity, n)
		}
		fields := make([]value.Value, n)
		copy(fields, vm.stack[vm.sp-n:vm.sp])
		adt := &value.Adt{TypeName: tc.TypeName, CtorName: tc.CtorName, Fields: fields}
		vm.sp -= n + 1
		vm.push(value.AdtVal(adt))
		return nil

	default:
		return arcaneerrors.NewRuntime(line, "nie aanroepbaar nie: %s", callee.TypeName())
	}
}

// tailCall implements TailCall(n) (§4.4). For a Closure/Function target
// it reuses the current frame, discarding its locals and upvalues and
// sliding the new callee+args down into the same base — the actual TCO
// path. The outermost script frame has no callee slot beneath its base
// (Run synthesizes it directly, never through call()), so there the
// callee+args slide to the bottom of the stack and the frame's base
// moves up by one. For a Native or TypeConstructor target there is no
// frame to reuse, so it falls back to an ordinary call immediately
// followed by a return of the resulting value, which is observably
// identical to a real tail call (a TailCall never falls through to the
// instructions after it).
func (vm *VM) tailCall(n, line int) (value.Value, bool, error) {
	callee := vm.peek(n)
	closure, ok := asClosure(callee)
	if !ok {
		// Not a frame-reusing callee: fall back to an ordinary call
		// followed by a return of its result.
		if err := vm.call(n, line); err != nil {
			return value.Value{}, false, err
		}
		result, done := vm.doReturn()
		return result, done, nil
	}
	if closure.Fn.Arity != n {
		return value.Value{}, false, arcaneerrors.NewRuntime(line, "verkeerde aantal argumente: verwag %d, gekry %d", closure.Fn.Arity, n)
	}

	frame := &vm.frames[len(vm.frames)-1]
	vm.closeUpvaluesFrom(frame.base)
	start := vm.sp - (n + 1)
	dstBase := frame.base - 1
	if len(vm.frames) == 1 {
		dstBase = 0
	}
	copy(vm.stack[dstBase:dstBase+n+1], vm.stack[start:start+n+1])
	vm.sp = dstBase + n + 1
	frame.base = dstBase + 1
	frame.closure = closure
	frame.ip = 0
	return value.Value{}, false, nil
}

// doReturn implements Return (§4.4): pop the return value, close every
// open upvalue at or above the current frame's base, unwind the frame,
// and hand the value to the caller — or report done=true if that was
// the outermost frame. The outermost frame has no callee slot beneath
// its base (Run synthesizes it directly, never through call()), so
// unwinding it must leave sp at 0, not base-1 — otherwise a VM reused
// across multiple Run calls (a persistent session) would start its next
// script with a stack pointer below zero.
func (vm *VM) doReturn() (value.Value, bool) {
	retVal := vm.pop()
	frame := vm.frames[len(vm.frames)-1]
	vm.closeUpvaluesFrom(frame.base)
	vm.frames = vm.frames[:len(vm.frames)-1]
	if len(vm.frames) == 0 {
		vm.sp = 0
		return retVal, true
	}
	vm.sp = frame.base - 1
	vm.push(retVal)
	return value.Value{}, false
}
