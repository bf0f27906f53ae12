package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialscript/dialvm/api"
	"github.com/dialscript/dialvm/bytecode"
	"github.com/dialscript/dialvm/natives"
	"github.com/dialscript/dialvm/platform"
	"github.com/dialscript/dialvm/poolmem"
)

func u16le(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }
func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func op(b byte) []byte { return []byte{b} }

func concatBytes(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func newTestVM(t *testing.T, m *bytecode.Module, opts ...Option) (*VM, *platform.Noop) {
	t.Helper()
	pool := poolmem.New(1 << 20)
	plat := platform.NewNoop()
	machine := New(m, pool, plat, opts...)
	return machine, plat
}

// ---- scenario: sleep yields exactly once ----

func TestSleepYieldsUntilDeadline(t *testing.T) {
	code := concatBytes(
		op(byte(bytecode.OpPushI32)), u32le(uint32(int32(10))),
		op(byte(bytecode.OpCallNative)), u16le(uint16(natives.SystemSleep)), op(1),
		op(byte(bytecode.OpHalt)),
	)
	m := &bytecode.Module{Code: code, MainEntryPC: 0}

	var now int64
	machine, _ := newTestVM(t, m, WithClock(func() int64 { return now }))

	res := machine.Execute(1000)
	assert.Equal(t, ResultYield, res, "sleep should end the batch immediately, before HALT runs")

	res = machine.Execute(1000)
	assert.Equal(t, ResultYield, res, "still before the deadline")

	now = 10
	res = machine.Execute(1000)
	assert.Equal(t, ResultFinished, res, "deadline passed, HALT now runs")
}

// ---- scenario: constructor returns this ----

func TestConstructorReturnsThis(t *testing.T) {
	// Foo::constructor(this): this.x = 42; return null
	ctor := concatBytes(
		op(byte(bytecode.OpLoadLocal)), op(0),
		op(byte(bytecode.OpPushI32)), u32le(uint32(int32(42))),
		op(byte(bytecode.OpSetField)), u16le(0), // constant 0 = "x"
		op(byte(bytecode.OpPushNull)),
		op(byte(bytecode.OpReturn)),
	)
	main := concatBytes(
		op(byte(bytecode.OpNewObject)), u16le(1), // constant 1 = "Foo"
		op(byte(bytecode.OpHalt)),
	)
	code := concatBytes(ctor, main)
	mainPC := uint32(len(ctor))

	m := &bytecode.Module{
		Code:        code,
		Constants:   []string{"x", "Foo"},
		Functions:   []bytecode.FunctionEntry{{Name: "Foo::constructor", EntryPC: 0, ParamCount: 1}},
		MainEntryPC: mainPC,
	}
	machine, _ := newTestVM(t, m)

	res := machine.Execute(1000)
	require.Equal(t, ResultFinished, res)
	require.Len(t, machine.stack, 1)

	top := machine.stack[0]
	require.Equal(t, api.KindObject, top.Kind())
	obj, ok := machine.Pool.Object(top.Handle())
	require.True(t, ok)
	v, ok := obj.Get("x")
	require.True(t, ok)
	assert.Equal(t, int32(42), v.AsInt32())
}

// ---- scenario: indirect call arity mismatch ----

func TestCallIndirectArityMismatch(t *testing.T) {
	main := concatBytes(
		op(byte(bytecode.OpPushI32)), u32le(uint32(int32(5))),
		op(byte(bytecode.OpLoadFunction)), u16le(0),
		op(byte(bytecode.OpCallIndirect)), op(1), // wrong: callee wants 2
		op(byte(bytecode.OpHalt)),
	)
	m := &bytecode.Module{
		Code:        main,
		Functions:   []bytecode.FunctionEntry{{Name: "needsTwo", EntryPC: 0, ParamCount: 2}},
		MainEntryPC: 0,
	}
	machine, _ := newTestVM(t, m)

	res := machine.Execute(1000)
	assert.Equal(t, ResultError, res)
	assert.Equal(t, api.ErrorKindArityMismatch, machine.ErrorKind())
}

// ---- scenario: callback re-entry preserves stack ----

func TestCallbackReentryPreservesStack(t *testing.T) {
	// callback(delta): globals[0] = delta; return null
	callback := concatBytes(
		op(byte(bytecode.OpLoadLocal)), op(0),
		op(byte(bytecode.OpStoreGlobal)), u16le(0),
		op(byte(bytecode.OpPushNull)),
		op(byte(bytecode.OpReturn)),
	)
	main := concatBytes(
		op(byte(bytecode.OpPushI32)), u32le(uint32(int32(1))),
		op(byte(bytecode.OpPushI32)), u32le(uint32(int32(2))),
		op(byte(bytecode.OpLoadFunction)), u16le(0),
		op(byte(bytecode.OpCallNative)), u16le(uint16(natives.EncoderOnTurn)), op(1),
		op(byte(bytecode.OpPop)), // drop the native's Null result
		op(byte(bytecode.OpHalt)),
	)
	code := concatBytes(callback, main)
	mainPC := uint32(len(callback))

	m := &bytecode.Module{
		Code:        code,
		Globals:     []string{"result"},
		Functions:   []bytecode.FunctionEntry{{Name: "onTurn", EntryPC: 0, ParamCount: 1}},
		MainEntryPC: mainPC,
	}
	machine, plat := newTestVM(t, m)

	// A budget of 5 stops just before HALT, so the VM is still running
	// and can accept the callback.
	res := machine.Execute(5)
	require.Equal(t, ResultOk, res)
	require.Len(t, machine.stack, 2, "the two pushed operands must survive untouched")

	ok := plat.InvokeCallback("encoder.onTurn", []api.Value{api.Int32(7)})
	assert.True(t, ok)
	require.Len(t, machine.stack, 2, "callback re-entry must not disturb the caller's operand stack")

	g, found := machine.Global("result")
	require.True(t, found)
	assert.Equal(t, int32(7), g.AsInt32())
}

// ---- template formatting ----

func TestTemplateFormat(t *testing.T) {
	main := concatBytes(
		op(byte(bytecode.OpPushStr)), u16le(0), // "Hello, ${0}! You are ${1}."
		op(byte(bytecode.OpPushStr)), u16le(1), // "Ada"
		op(byte(bytecode.OpPushI32)), u32le(uint32(int32(30))),
		op(byte(bytecode.OpTemplateFormat)), op(2),
		op(byte(bytecode.OpHalt)),
	)
	m := &bytecode.Module{
		Code:        main,
		Constants:   []string{"Hello, ${0}! You are ${1}.", "Ada"},
		MainEntryPC: 0,
	}
	machine, _ := newTestVM(t, m)

	res := machine.Execute(1000)
	require.Equal(t, ResultFinished, res)
	require.Len(t, machine.stack, 1)
	top := machine.stack[0]
	require.Equal(t, api.KindString, top.Kind())
	assert.Equal(t, "Hello, Ada! You are 30.", machine.Pool.String(top.Handle()))
}

func TestTemplateFormatPreservesMalformedPlaceholders(t *testing.T) {
	main := concatBytes(
		op(byte(bytecode.OpPushStr)), u16le(0), // "${0} ${bogus} ${5}"
		op(byte(bytecode.OpPushI32)), u32le(uint32(int32(9))),
		op(byte(bytecode.OpTemplateFormat)), op(1),
		op(byte(bytecode.OpHalt)),
	)
	m := &bytecode.Module{
		Code:        main,
		Constants:   []string{"${0} ${bogus} ${5}"},
		MainEntryPC: 0,
	}
	machine, _ := newTestVM(t, m)

	res := machine.Execute(1000)
	require.Equal(t, ResultFinished, res)
	require.Len(t, machine.stack, 1)
	top := machine.stack[0]
	require.Equal(t, api.KindString, top.Kind())
	assert.Equal(t, "9 ${bogus} ${5}", machine.Pool.String(top.Handle()))
}

// ---- arithmetic coercion ----

func TestArithmeticCoercesToFloat(t *testing.T) {
	main := concatBytes(
		op(byte(bytecode.OpPushI32)), u32le(uint32(int32(3))),
		op(byte(bytecode.OpPushF32)), u32le(0x40400000), // 3.0f
		op(byte(bytecode.OpAdd)),
		op(byte(bytecode.OpHalt)),
	)
	m := &bytecode.Module{Code: main, MainEntryPC: 0}
	machine, _ := newTestVM(t, m)

	res := machine.Execute(1000)
	require.Equal(t, ResultFinished, res)
	require.Len(t, machine.stack, 1)
	top := machine.stack[0]
	require.Equal(t, api.KindFloat32, top.Kind())
	assert.Equal(t, float32(6), top.AsFloat32())
}

func TestAddConcatenatesStrings(t *testing.T) {
	main := concatBytes(
		op(byte(bytecode.OpPushStr)), u16le(0), // "count: "
		op(byte(bytecode.OpPushI32)), u32le(uint32(int32(5))),
		op(byte(bytecode.OpAdd)),
		op(byte(bytecode.OpHalt)),
	)
	m := &bytecode.Module{
		Code:        main,
		Constants:   []string{"count: "},
		MainEntryPC: 0,
	}
	machine, _ := newTestVM(t, m)

	res := machine.Execute(1000)
	require.Equal(t, ResultFinished, res)
	require.Len(t, machine.stack, 1)
	top := machine.stack[0]
	require.Equal(t, api.KindString, top.Kind())
	assert.Equal(t, "count: 5", machine.Pool.String(top.Handle()))
}

func TestIntegerDivideByZeroIsFatal(t *testing.T) {
	main := concatBytes(
		op(byte(bytecode.OpPushI32)), u32le(uint32(int32(1))),
		op(byte(bytecode.OpPushI32)), u32le(uint32(int32(0))),
		op(byte(bytecode.OpDiv)),
	)
	m := &bytecode.Module{Code: main, MainEntryPC: 0}
	machine, _ := newTestVM(t, m)

	res := machine.Execute(1000)
	assert.Equal(t, ResultError, res)
	assert.Equal(t, api.ErrorKindDivideByZero, machine.ErrorKind())
}

type dumpRecorder struct {
	*platform.Noop
	dumps []platform.StateDump
}

func (d *dumpRecorder) DumpState(dump platform.StateDump) { d.dumps = append(d.dumps, dump) }

func TestStackUnderflowDumpsState(t *testing.T) {
	main := op(byte(bytecode.OpPop))
	m := &bytecode.Module{Code: main, MainEntryPC: 0}
	rec := &dumpRecorder{Noop: platform.NewNoop()}
	machine := New(m, poolmem.New(1<<20), rec)

	res := machine.Execute(10)
	assert.Equal(t, ResultError, res)
	assert.Equal(t, api.ErrorKindStackUnderflow, machine.ErrorKind())
	require.Len(t, rec.dumps, 1)
	assert.Equal(t, "stack underflow", rec.dumps[0].Reason)
}

// ---- scenario: RETURN truncates the stack to the frame's StackBase ----

func TestReturnTruncatesStackToStackBase(t *testing.T) {
	// leaky: pushes an extra unbalanced value, then its actual return
	// value, then returns. The extra value must not leak to the caller.
	leaky := concatBytes(
		op(byte(bytecode.OpPushI32)), u32le(uint32(int32(99))),
		op(byte(bytecode.OpPushI32)), u32le(uint32(int32(1))),
		op(byte(bytecode.OpReturn)),
	)
	main := concatBytes(
		op(byte(bytecode.OpPushI32)), u32le(uint32(int32(42))),
		op(byte(bytecode.OpCall)), u16le(0), op(0),
		op(byte(bytecode.OpHalt)),
	)
	code := concatBytes(leaky, main)
	mainPC := uint32(len(leaky))

	m := &bytecode.Module{
		Code:        code,
		Functions:   []bytecode.FunctionEntry{{Name: "leaky", EntryPC: 0, ParamCount: 0}},
		MainEntryPC: mainPC,
	}
	machine, _ := newTestVM(t, m)

	res := machine.Execute(1000)
	require.Equal(t, ResultFinished, res)
	require.Len(t, machine.stack, 2, "the leaked 99 must be truncated away by RETURN")
	assert.Equal(t, int32(42), machine.stack[0].AsInt32())
	assert.Equal(t, int32(1), machine.stack[1].AsInt32())
}

// ---- scenario: app.exit halts the VM ----

func TestAppExitHaltsVM(t *testing.T) {
	main := concatBytes(
		op(byte(bytecode.OpCallNative)), u16le(uint16(natives.AppExit)), op(0),
		op(byte(bytecode.OpPushI32)), u32le(uint32(int32(123))), // must never run
		op(byte(bytecode.OpHalt)),
	)
	m := &bytecode.Module{Code: main, MainEntryPC: 0}
	machine, _ := newTestVM(t, m)

	res := machine.Execute(1000)
	assert.Equal(t, ResultFinished, res)
	assert.False(t, machine.Running())
	require.Len(t, machine.stack, 1, "execution must stop right after app.exit, before the trailing PUSH_I32")
	assert.Equal(t, api.KindNull, machine.stack[0].Kind())
}

func TestResetRestoresMainEntry(t *testing.T) {
	main := concatBytes(op(byte(bytecode.OpPushI32)), u32le(1), op(byte(bytecode.OpHalt)))
	m := &bytecode.Module{Code: main, MainEntryPC: 0}
	machine, _ := newTestVM(t, m)

	require.Equal(t, ResultFinished, machine.Execute(1000))
	require.Len(t, machine.stack, 1)

	machine.Reset()
	assert.Equal(t, 0, machine.pc)
	assert.Len(t, machine.stack, 0)
	assert.True(t, machine.Running())
}
