package vm

import "github.com/dialscript/dialvm/api"

// runNested pushes a frame at entryPC and drives step() synchronously
// until that frame (and only that frame) has returned, i.e. until the
// frame stack depth falls back to its pre-call depth. Used by both
// NEW_OBJECT's constructor call and InvokeFunction's re-entrant
// callback path (spec §4.3, §4.5), neither of which can be expressed as
// an ordinary CALL because both need to act on the result themselves
// rather than leaving it for the enclosing bytecode to consume.
//
// A nested run cannot observe a cooperative yield: dialVM scripts are
// not expected to sleep from inside a constructor or an event callback,
// so the sleep latch is cleared and execution continues immediately
// rather than suspending a caller (InvokeFunction, the Platform) who
// has no way to resume it later (DESIGN.md, Open Question 6). Returns false if the VM stopped running (error or HALT)
// before the frame unwound.
func (vm *VM) runNested(entryPC uint32, name string, locals []api.Value) bool {
	baseDepth := len(vm.frames)
	vm.frames = append(vm.frames, &CallFrame{
		ReturnPC:     -1,
		StackBase:    len(vm.stack),
		FunctionName: name,
		Locals:       append([]api.Value(nil), locals...),
	})
	savedPC := vm.pc
	vm.pc = int(entryPC)

	for len(vm.frames) > baseDepth {
		if !vm.running {
			vm.pc = savedPC
			return false
		}
		if vm.pc >= len(vm.Module.Code) {
			vm.running = false
			vm.pc = savedPC
			return false
		}
		vm.step()
		if vm.sleeping {
			vm.sleeping = false
		}
	}

	// The nested call's return value is sitting on the stack (RETURN's
	// usual contract); the caller doesn't want it on the shared operand
	// stack, so it's popped and discarded here.
	vm.pop()
	vm.pc = savedPC
	return vm.running
}

// InvokeFunction implements platform.VM: it is how a Platform callback
// (encoder.onTurn, timer tick, ipc subscription, ...) re-enters a
// suspended VM (spec §4.5). fn must be a Function Value; args are
// passed positionally into the callee's locals.
func (vm *VM) InvokeFunction(fn api.Value, args []api.Value) error {
	if fn.Kind() != api.KindFunction {
		return api.NewError(api.ErrorKindTypeMismatch, "InvokeFunction target is not a function")
	}
	ref := fn.AsFunction()
	entry, ok := vm.Module.FunctionByIndex(ref.FunctionIndex)
	if !ok {
		return api.NewError(api.ErrorKindInvalidIndex, "function index out of range")
	}

	locals := make([]api.Value, entry.ParamCount)
	for i := 0; i < len(locals) && i < len(args); i++ {
		locals[i] = args[i]
	}

	vm.invokeDepth++
	defer func() { vm.invokeDepth-- }()

	if !vm.runNested(entry.EntryPC, entry.Name, locals) {
		if vm.errKind != api.ErrorKindNone {
			return api.NewError(vm.errKind, vm.errText)
		}
		return api.NewError(api.ErrorKindUnhandledException, "callback did not complete")
	}
	return nil
}
