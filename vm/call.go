package vm

import (
	"strings"

	"github.com/dialscript/dialvm/api"
	"github.com/dialscript/dialvm/natives"
)

// execCall implements CALL: pop argc args (reverse-pop, reordered to
// arg0..argN-1 by popN), push a new frame whose Locals begin with those
// args, and jump to the callee's entry PC (spec §3, §4.3).
func (vm *VM) execCall(funcIdx uint16, argc int) {
	entry, ok := vm.Module.FunctionByIndex(funcIdx)
	if !ok {
		vm.setError(api.ErrorKindInvalidIndex, "function index out of range")
		return
	}
	args, ok := vm.popN(argc)
	if !ok {
		return
	}
	if argc != int(entry.ParamCount) {
		vm.setError(api.ErrorKindArityMismatch, entry.Name)
		return
	}
	vm.pushCallFrame(entry.EntryPC, entry.Name, args)
}

func (vm *VM) pushCallFrame(entryPC uint32, name string, args []api.Value) {
	locals := make([]api.Value, len(args))
	copy(locals, args)
	vm.frames = append(vm.frames, &CallFrame{
		ReturnPC:     vm.pc,
		StackBase:    len(vm.stack),
		FunctionName: name,
		Locals:       locals,
	})
	vm.pc = int(entryPC)
}

// execReturn implements RETURN: pop the return value, pop the current
// frame, truncate the stack back to the frame's StackBase (discarding
// any values the callee left unbalanced above its own return value),
// resume at ReturnPC and push the value back for the caller. Returning
// out of the synthetic root "main" frame halts the VM (spec §4.3 "the
// interpreter halts when control falls off the end of main, or main
// explicitly returns"). Spec §8: "After a successful RETURN from a
// non-constructor frame, stack.len == caller_stack_base + 1".
func (vm *VM) execReturn() {
	retval, ok := vm.pop()
	if !ok {
		return
	}
	if len(vm.frames) <= 1 {
		vm.running = false
		return
	}
	f := vm.frame()
	vm.frames = vm.frames[:len(vm.frames)-1]
	if f.StackBase <= len(vm.stack) {
		vm.stack = vm.stack[:f.StackBase]
	}
	vm.pc = f.ReturnPC
	vm.push(retval)
}

// execCallNative implements CALL_NATIVE. idx is either a direct native
// ID or, when legacyNativeNameEncoding is set, a constant-pool index
// naming the native (spec §9 Open Question 1).
func (vm *VM) execCallNative(idx uint16, argc int) {
	var id natives.ID
	if vm.legacyNativeNameEncoding {
		name, ok := vm.Module.Constant(idx)
		if !ok {
			vm.setError(api.ErrorKindInvalidIndex, "native name constant index out of range")
			return
		}
		id = natives.ByName(name)
	} else {
		id = natives.ID(idx)
	}

	args, ok := vm.popN(argc)
	if !ok {
		return
	}

	// timer.setInterval requires the Function form (SPEC_FULL.md Open
	// Question 2): a legacy delay-only call is an arity mismatch, not a
	// soft-null native dispatch.
	if id == natives.TimerSetInterval {
		if len(args) == 0 || args[0].Kind() != api.KindFunction {
			vm.setError(api.ErrorKindArityMismatch, "timer.setInterval requires a Function callback")
			return
		}
	}

	result := natives.Dispatch(id, args, vm.Pool, vm.Platform)

	// system.sleep arms the cooperative yield latch (spec §4.3, §8
	// scenario 1): the Platform method itself only observes the sleep
	// for logging/host purposes, the VM is what actually suspends.
	if id == natives.SystemSleep && len(args) > 0 {
		ms := args[0]
		var delay int64
		if ms.IsNumeric() {
			delay = int64(ms.AsFloat64())
		}
		vm.sleeping = true
		vm.sleepUntil = vm.clock() + delay
	}

	// app.exit is a conventional native that halts the VM outright
	// (spec §5, §6: "Null (halts)") rather than returning control to the
	// caller; Platform.AppExit() alone has no way to reach vm.running.
	if id == natives.AppExit {
		vm.running = false
	}

	vm.push(result)
}

// execLoadFunction implements LOAD_FUNCTION: pushes a self-describing
// Function Value for funcIdx (spec §3: "Function... carries... a
// parameter count", no Pool lookup needed to call through it).
func (vm *VM) execLoadFunction(funcIdx uint16) {
	entry, ok := vm.Module.FunctionByIndex(funcIdx)
	if !ok {
		vm.setError(api.ErrorKindInvalidIndex, "function index out of range")
		return
	}
	vm.push(api.Function(api.FunctionRef{FunctionIndex: funcIdx, ParamCount: entry.ParamCount}))
}

// execCallIndirect implements CALL_INDIRECT: the callee (a Function
// Value) sits on top of the stack, above its argc arguments. A mismatch
// between the caller-supplied argc and the callee's own declared
// ParamCount — which happens whenever the bytecode was compiled against
// a different arity, including forgetting an implicit receiver — is an
// ArityMismatch (spec §7, spec §8 scenario 3).
func (vm *VM) execCallIndirect(argc int) {
	fnVal, ok := vm.pop()
	if !ok {
		return
	}
	if fnVal.Kind() != api.KindFunction {
		vm.setError(api.ErrorKindTypeMismatch, "CALL_INDIRECT target is not a function")
		return
	}
	args, ok := vm.popN(argc)
	if !ok {
		return
	}
	ref := fnVal.AsFunction()
	entry, ok := vm.Module.FunctionByIndex(ref.FunctionIndex)
	if !ok {
		vm.setError(api.ErrorKindInvalidIndex, "function index out of range")
		return
	}
	if argc != int(entry.ParamCount) {
		vm.setError(api.ErrorKindArityMismatch, entry.Name)
		return
	}
	vm.pushCallFrame(entry.EntryPC, entry.Name, args)
}

// execCallMethod implements CALL_METHOD. Calling convention: the method
// arguments are pushed first (arg1..argN, left to right), then the
// receiver object is pushed last, immediately before CALL_METHOD — so
// the receiver is popped first, its "ClassName::method" field resolved,
// and the method's own declared ParamCount (which counts the implicit
// receiver as local 0) tells us how many of the already-pushed
// arguments to pop next (DESIGN.md Open Question 4; spec §4.3 leaves the
// encoding of argc to the implementation since it omitted an explicit
// argc operand).
func (vm *VM) execCallMethod(nameIdx uint16) {
	methodName, ok := vm.Module.Constant(nameIdx)
	if !ok {
		vm.setError(api.ErrorKindInvalidIndex, "method name constant index out of range")
		return
	}
	recv, ok := vm.pop()
	if !ok {
		return
	}
	if recv.Kind() != api.KindObject {
		vm.setError(api.ErrorKindBadReceiver, "CALL_METHOD receiver is not an object")
		return
	}
	obj, ok := vm.Pool.Object(recv.Handle())
	if !ok {
		vm.setError(api.ErrorKindInvalidIndex, "dangling object handle")
		return
	}
	fnVal, ok := obj.Get(methodName)
	if !ok || fnVal.Kind() != api.KindFunction {
		vm.setError(api.ErrorKindTypeMismatch, "no such method: "+methodName)
		return
	}
	ref := fnVal.AsFunction()
	entry, ok := vm.Module.FunctionByIndex(ref.FunctionIndex)
	if !ok {
		vm.setError(api.ErrorKindInvalidIndex, "function index out of range")
		return
	}
	argc := int(entry.ParamCount) - 1
	if argc < 0 {
		argc = 0
	}
	args, ok := vm.popN(argc)
	if !ok {
		return
	}
	full := make([]api.Value, 0, argc+1)
	full = append(full, recv)
	full = append(full, args...)
	vm.pushCallFrame(entry.EntryPC, entry.Name, full)
}

// execGetField implements GET_FIELD: Object field lookup, plus the
// Array "length" pseudo-field (poolmem.Array has no field map of its
// own). Missing fields and non-object/array receivers yield Null rather
// than raising, matching ADD's "non-numeric yields Null" leniency.
func (vm *VM) execGetField(nameIdx uint16) {
	name, ok := vm.Module.Constant(nameIdx)
	if !ok {
		vm.setError(api.ErrorKindInvalidIndex, "field name constant index out of range")
		return
	}
	recv, ok := vm.pop()
	if !ok {
		return
	}
	switch recv.Kind() {
	case api.KindObject:
		obj, ok := vm.Pool.Object(recv.Handle())
		if !ok {
			vm.push(api.Null)
			return
		}
		v, ok := obj.Get(name)
		if !ok {
			vm.push(api.Null)
			return
		}
		vm.push(v)
	case api.KindArray:
		if name == "length" {
			arr, ok := vm.Pool.Array(recv.Handle())
			if !ok {
				vm.push(api.Null)
				return
			}
			vm.push(api.Int32(int32(arr.Len())))
			return
		}
		vm.push(api.Null)
	default:
		vm.push(api.Null)
	}
}

// execSetField implements SET_FIELD: only Objects accept field writes.
func (vm *VM) execSetField(nameIdx uint16) {
	name, ok := vm.Module.Constant(nameIdx)
	if !ok {
		vm.setError(api.ErrorKindInvalidIndex, "field name constant index out of range")
		return
	}
	val, ok := vm.pop()
	if !ok {
		return
	}
	recv, ok := vm.pop()
	if !ok {
		return
	}
	if recv.Kind() != api.KindObject {
		vm.setError(api.ErrorKindTypeMismatch, "SET_FIELD target is not an object")
		return
	}
	obj, ok := vm.Pool.Object(recv.Handle())
	if !ok {
		vm.setError(api.ErrorKindInvalidIndex, "dangling object handle")
		return
	}
	obj.Set(name, val)
}

// execGetIndex implements GET_INDEX: Array element read, out-of-range
// yields Null.
func (vm *VM) execGetIndex() {
	idxVal, ok := vm.pop()
	if !ok {
		return
	}
	recv, ok := vm.pop()
	if !ok {
		return
	}
	if recv.Kind() != api.KindArray {
		vm.setError(api.ErrorKindTypeMismatch, "GET_INDEX target is not an array")
		return
	}
	arr, ok := vm.Pool.Array(recv.Handle())
	if !ok {
		vm.push(api.Null)
		return
	}
	v, ok := arr.Get(int(idxVal.AsInt32()))
	if !ok {
		vm.push(api.Null)
		return
	}
	vm.push(v)
}

// execSetIndex implements SET_INDEX: out-of-range is silently ignored,
// matching GET_INDEX's leniency rather than raising on what is commonly
// a benign bounds slip in user scripts.
func (vm *VM) execSetIndex() {
	val, ok := vm.pop()
	if !ok {
		return
	}
	idxVal, ok := vm.pop()
	if !ok {
		return
	}
	recv, ok := vm.pop()
	if !ok {
		return
	}
	if recv.Kind() != api.KindArray {
		vm.setError(api.ErrorKindTypeMismatch, "SET_INDEX target is not an array")
		return
	}
	arr, ok := vm.Pool.Array(recv.Handle())
	if !ok {
		return
	}
	arr.Set(int(idxVal.AsInt32()), val)
}

func (vm *VM) execNewArray() {
	sizeVal, ok := vm.pop()
	if !ok {
		return
	}
	size := int(sizeVal.AsInt32())
	if size < 0 {
		size = 0
	}
	h, _, err := vm.Pool.AllocArray(size)
	if err != nil {
		vm.setError(api.ErrorKindOutOfMemory, "heap ceiling exceeded")
		return
	}
	vm.push(api.ArrayHandle(h))
}

// execNewObject implements NEW_OBJECT (spec §4.3): allocate an Object,
// attach every "ClassName::method" function as a callable field, then —
// if a "ClassName::constructor" exists — run it to completion via a
// nested fetch loop and discard whatever it returns: NEW_OBJECT always
// pushes the object itself, never the constructor's return value (spec
// §8 scenario 2, "constructor returns this").
func (vm *VM) execNewObject(classIdx uint16) {
	className, ok := vm.Module.Constant(classIdx)
	if !ok {
		vm.setError(api.ErrorKindInvalidIndex, "class name constant index out of range")
		return
	}
	h, obj, err := vm.Pool.AllocObject(className)
	if err != nil {
		vm.setError(api.ErrorKindOutOfMemory, "heap ceiling exceeded")
		return
	}
	prefix := className + "::"
	for idx, fe := range vm.Module.Functions {
		if !strings.HasPrefix(fe.Name, prefix) {
			continue
		}
		methodName := strings.TrimPrefix(fe.Name, prefix)
		if methodName == "constructor" {
			continue
		}
		obj.Set(methodName, api.Function(api.FunctionRef{FunctionIndex: uint16(idx), ParamCount: fe.ParamCount}))
	}

	if ctorIdx, ctorEntry, ok := vm.Module.FunctionByName(prefix + "constructor"); ok {
		argc := int(ctorEntry.ParamCount) - 1
		if argc < 0 {
			argc = 0
		}
		args, ok := vm.popN(argc)
		if !ok {
			return
		}
		locals := make([]api.Value, 0, argc+1)
		locals = append(locals, api.ObjectHandle(h))
		locals = append(locals, args...)
		_ = ctorIdx
		if !vm.runNested(ctorEntry.EntryPC, prefix+"constructor", locals) {
			return
		}
	}

	vm.push(api.ObjectHandle(h))
}

func (vm *VM) execThrow() {
	payload, ok := vm.pop()
	if !ok {
		return
	}
	if len(vm.handlers) == 0 {
		vm.setError(api.ErrorKindUnhandledException, vm.toStr(payload))
		return
	}
	h := vm.handlers[len(vm.handlers)-1]
	vm.handlers = vm.handlers[:len(vm.handlers)-1]
	if h.StackSizeOnEntry <= len(vm.stack) {
		vm.stack = vm.stack[:h.StackSizeOnEntry]
	}
	vm.push(payload)
	vm.pc = h.CatchPC
}
