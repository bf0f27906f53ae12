package vm

import (
	"fmt"
	"math"

	"github.com/dialscript/dialvm/api"
	"github.com/dialscript/dialvm/bytecode"
)

// ---- operand fetch ----
//
// Module.Load has already verified code_checksum, so a well-formed
// Module never runs these past the end of Code; fetch does not
// re-check bounds per instruction, mirroring the teacher's trust in
// its own decode layer once a binary has passed validation.

func (vm *VM) fetchU8() byte {
	b := vm.Module.Code[vm.pc]
	vm.pc++
	return b
}

func (vm *VM) fetchU16() uint16 {
	b0, b1 := vm.Module.Code[vm.pc], vm.Module.Code[vm.pc+1]
	vm.pc += 2
	return uint16(b0) | uint16(b1)<<8
}

func (vm *VM) fetchU32() uint32 {
	b := vm.Module.Code[vm.pc : vm.pc+4]
	vm.pc += 4
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func (vm *VM) fetchI32() int32   { return int32(vm.fetchU32()) }
func (vm *VM) fetchF32() float32 { return math.Float32frombits(vm.fetchU32()) }

// Execute runs up to budget instructions, returning the batch's outcome
// (spec §4.3). Cooperative: a native call that sets the sleep latch
// ends the batch immediately, even with budget remaining, and a
// subsequent call keeps returning Yield until the latch's deadline has
// passed.
func (vm *VM) Execute(budget int) Result {
	if !vm.running {
		if vm.errKind != api.ErrorKindNone {
			return ResultError
		}
		return ResultFinished
	}

	for i := 0; i < budget; i++ {
		if vm.sleeping {
			if vm.clock() < vm.sleepUntil {
				return ResultYield
			}
			vm.sleeping = false
		}

		if vm.pc >= len(vm.Module.Code) {
			vm.running = false
			return ResultFinished
		}

		vm.step()

		if vm.sleeping {
			return ResultYield
		}
		if !vm.running {
			if vm.errKind != api.ErrorKindNone {
				return ResultError
			}
			return ResultFinished
		}
	}
	return ResultOk
}

// step fetches, decodes and executes exactly one instruction, advancing
// pc past the opcode and its operand before the handler runs (so a
// control-flow handler's own pc writes are relative to the instruction
// *after* this one, per spec §4.1's relative-jump convention).
func (vm *VM) step() {
	op := bytecode.Op(vm.Module.Code[vm.pc])
	vm.pc++

	switch op {
	case bytecode.OpNop:

	case bytecode.OpPop:
		vm.pop()

	case bytecode.OpDup:
		if v, ok := vm.peek(); ok {
			vm.push(v)
		}

	case bytecode.OpSwap:
		b, ok := vm.pop()
		if !ok {
			return
		}
		a, ok := vm.pop()
		if !ok {
			return
		}
		vm.push(b)
		vm.push(a)

	case bytecode.OpPushNull:
		vm.push(api.Null)
	case bytecode.OpPushTrue:
		vm.push(api.Bool(true))
	case bytecode.OpPushFalse:
		vm.push(api.Bool(false))
	case bytecode.OpPushI8:
		vm.push(api.Int32(int32(int8(vm.fetchU8()))))
	case bytecode.OpPushI16:
		vm.push(api.Int32(int32(int16(vm.fetchU16()))))
	case bytecode.OpPushI32:
		vm.push(api.Int32(vm.fetchI32()))
	case bytecode.OpPushF32:
		vm.push(api.Float32(vm.fetchF32()))
	case bytecode.OpPushStr:
		vm.execPushStr(vm.fetchU16())

	case bytecode.OpLoadLocal:
		vm.execLoadLocal(vm.fetchU8())
	case bytecode.OpStoreLocal:
		vm.execStoreLocal(vm.fetchU8())
	case bytecode.OpLoadGlobal:
		vm.execLoadGlobal(vm.fetchU16())
	case bytecode.OpStoreGlobal:
		vm.execStoreGlobal(vm.fetchU16())

	case bytecode.OpAdd:
		vm.execAdd()
	case bytecode.OpSub:
		vm.execArith(func(a, b int32) int32 { return a - b }, func(a, b float32) float32 { return a - b })
	case bytecode.OpMul:
		vm.execArith(func(a, b int32) int32 { return a * b }, func(a, b float32) float32 { return a * b })
	case bytecode.OpDiv:
		vm.execDiv()
	case bytecode.OpMod:
		vm.execMod()
	case bytecode.OpNeg:
		vm.execNeg()

	case bytecode.OpStrConcat:
		vm.execStrConcat()
	case bytecode.OpTemplateFormat:
		vm.execTemplateFormat(int(vm.fetchU8()))

	case bytecode.OpEq:
		b, ok := vm.pop()
		if !ok {
			return
		}
		a, ok := vm.pop()
		if !ok {
			return
		}
		vm.push(api.Bool(api.Equal(a, b)))
	case bytecode.OpNe:
		b, ok := vm.pop()
		if !ok {
			return
		}
		a, ok := vm.pop()
		if !ok {
			return
		}
		vm.push(api.Bool(!api.Equal(a, b)))
	case bytecode.OpLt:
		vm.execCompare(func(c int) bool { return c < 0 })
	case bytecode.OpLe:
		vm.execCompare(func(c int) bool { return c <= 0 })
	case bytecode.OpGt:
		vm.execCompare(func(c int) bool { return c > 0 })
	case bytecode.OpGe:
		vm.execCompare(func(c int) bool { return c >= 0 })

	case bytecode.OpNot:
		a, ok := vm.pop()
		if !ok {
			return
		}
		vm.push(api.Bool(!vm.truthy(a)))
	case bytecode.OpAnd:
		b, ok := vm.pop()
		if !ok {
			return
		}
		a, ok := vm.pop()
		if !ok {
			return
		}
		vm.push(api.Bool(vm.truthy(a) && vm.truthy(b)))
	case bytecode.OpOr:
		b, ok := vm.pop()
		if !ok {
			return
		}
		a, ok := vm.pop()
		if !ok {
			return
		}
		vm.push(api.Bool(vm.truthy(a) || vm.truthy(b)))

	case bytecode.OpJump:
		offset := vm.fetchI32()
		vm.pc += int(offset)
	case bytecode.OpJumpIf:
		offset := vm.fetchI32()
		cond, ok := vm.pop()
		if !ok {
			return
		}
		if vm.truthy(cond) {
			vm.pc += int(offset)
		}
	case bytecode.OpJumpIfNot:
		offset := vm.fetchI32()
		cond, ok := vm.pop()
		if !ok {
			return
		}
		if !vm.truthy(cond) {
			vm.pc += int(offset)
		}

	case bytecode.OpCall:
		funcIdx := vm.fetchU16()
		argc := vm.fetchU8()
		vm.execCall(funcIdx, int(argc))
	case bytecode.OpCallNative:
		idx := vm.fetchU16()
		argc := vm.fetchU8()
		vm.execCallNative(idx, int(argc))
	case bytecode.OpReturn:
		vm.execReturn()
	case bytecode.OpLoadFunction:
		vm.execLoadFunction(vm.fetchU16())
	case bytecode.OpCallIndirect:
		argc := vm.fetchU8()
		vm.execCallIndirect(int(argc))
	case bytecode.OpCallMethod:
		nameIdx := vm.fetchU16()
		vm.execCallMethod(nameIdx)

	case bytecode.OpGetField:
		vm.execGetField(vm.fetchU16())
	case bytecode.OpSetField:
		vm.execSetField(vm.fetchU16())
	case bytecode.OpGetIndex:
		vm.execGetIndex()
	case bytecode.OpSetIndex:
		vm.execSetIndex()
	case bytecode.OpNewObject:
		vm.execNewObject(vm.fetchU16())
	case bytecode.OpNewArray:
		vm.execNewArray()

	case bytecode.OpTry:
		offset := vm.fetchI32()
		vm.handlers = append(vm.handlers, ExceptionHandler{
			CatchPC:          vm.pc + int(offset),
			StackSizeOnEntry: len(vm.stack),
		})
	case bytecode.OpEndTry:
		if len(vm.handlers) > 0 {
			vm.handlers = vm.handlers[:len(vm.handlers)-1]
		}
	case bytecode.OpThrow:
		vm.execThrow()

	case bytecode.OpPrint:
		v, ok := vm.pop()
		if !ok {
			return
		}
		vm.Platform.ConsoleLog(vm.toStr(v))
	case bytecode.OpHalt:
		vm.running = false

	default:
		vm.setError(api.ErrorKindUnknownOpcode, fmt.Sprintf("opcode %d at pc %d", op, vm.pc-1))
	}
}

func (vm *VM) execPushStr(constIdx uint16) {
	s, ok := vm.Module.Constant(constIdx)
	if !ok {
		vm.setError(api.ErrorKindInvalidIndex, "constant index out of range")
		return
	}
	h, ok := vm.allocStringWithReclaim(s)
	if !ok {
		return
	}
	vm.push(api.StringHandle(h))
}

func (vm *VM) execLoadLocal(idx byte) {
	f := vm.frame()
	if int(idx) >= len(f.Locals) {
		vm.push(api.Null)
		return
	}
	vm.push(f.Locals[idx])
}

func (vm *VM) execStoreLocal(idx byte) {
	v, ok := vm.pop()
	if !ok {
		return
	}
	f := vm.frame()
	if int(idx) >= len(f.Locals) {
		grown := make([]api.Value, int(idx)+1)
		copy(grown, f.Locals)
		for i := len(f.Locals); i < len(grown); i++ {
			grown[i] = api.Null
		}
		f.Locals = grown
	}
	f.Locals[idx] = v
}

func (vm *VM) execLoadGlobal(idx uint16) {
	name, ok := vm.Module.Global(idx)
	if !ok {
		vm.setError(api.ErrorKindInvalidIndex, "global index out of range")
		return
	}
	vm.push(vm.globals[name])
}

func (vm *VM) execStoreGlobal(idx uint16) {
	name, ok := vm.Module.Global(idx)
	if !ok {
		vm.setError(api.ErrorKindInvalidIndex, "global index out of range")
		return
	}
	v, ok := vm.pop()
	if !ok {
		return
	}
	vm.globals[name] = v
}
