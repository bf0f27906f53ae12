// Package vm implements the interpreter (spec §4.3): the operand stack,
// call-frame stack, exception-handler stack, globals, program counter
// and the fetch-decode-execute loop that runs a Module in bounded
// batches.
//
// Grounded on the teacher's internal/engine/interpreter/interpreter.go
// callEngine: a push/pop operand stack, an explicit call-frame stack
// (callFrame) pushed/popped around calls, and a single large opcode
// switch driving both. dialVM's VM plays the role of the teacher's
// callEngine, generalized from WASM numeric semantics to the spec's
// tagged Value model, and with cooperative sleep/yield added since
// dialVM (unlike a WASM engine) must suspend on "system.sleep" without
// blocking a thread.
package vm

import (
	"github.com/dialscript/dialvm/api"
	"github.com/dialscript/dialvm/bytecode"
	"github.com/dialscript/dialvm/platform"
	"github.com/dialscript/dialvm/poolmem"
)

// Result is the outcome of one Execute batch (spec §4.3).
type Result int

const (
	ResultOk Result = iota
	ResultYield
	ResultFinished
	ResultError
	ResultOutOfMemory
)

func (r Result) String() string {
	switch r {
	case ResultOk:
		return "Ok"
	case ResultYield:
		return "Yield"
	case ResultFinished:
		return "Finished"
	case ResultError:
		return "Error"
	case ResultOutOfMemory:
		return "OutOfMemory"
	default:
		return "Unknown"
	}
}

// CallFrame is one active function invocation (spec §3). Locals are
// addressed by compact index; index 0 is the receiver ("this") inside
// methods and constructors.
type CallFrame struct {
	ReturnPC     int
	StackBase    int
	FunctionName string
	Locals       []api.Value
}

// ExceptionHandler is an entry on the exception stack, captured at TRY
// (spec §3).
type ExceptionHandler struct {
	CatchPC          int
	StackSizeOnEntry int
}

// Clock returns a monotonically non-decreasing millisecond timestamp,
// backing spec §4.5's "system_get_time" and the sleep latch. Defaults
// to Platform.SystemGetTime.
type Clock func() int64

// VM is the interpreter state (spec §3 "VM State"). Construct with New.
type VM struct {
	Module   *bytecode.Module
	Pool     *poolmem.Pool
	Platform platform.Platform

	stack    []api.Value
	frames   []*CallFrame
	handlers []ExceptionHandler
	globals  map[string]api.Value

	pc         int
	running    bool
	sleeping   bool
	sleepUntil int64
	errKind    api.ErrorKind
	errText    string

	clock Clock

	// legacyNativeNameEncoding accepts the legacy CALL_NATIVE encoding
	// (operand indexes the constant/name table, resolved through
	// natives.ByName) alongside direct numeric IDs (SPEC_FULL.md §1.4,
	// spec §9 Open Question 1).
	legacyNativeNameEncoding bool

	// invokeDepth tracks nested invoke_function calls so Execute's
	// fetch loop and a callback's nested loop share one call-stack
	// depth convention (spec §4.3 "runs a nested fetch loop until the
	// call depth returns to the pre-invocation depth").
	invokeDepth int
}

// Option configures a VM at construction (see SPEC_FULL.md §1.4).
type Option func(*VM)

// WithClock overrides the millisecond clock; defaults to
// Platform.SystemGetTime. Tests use this to control sleep/yield timing
// deterministically (spec §8 scenario 1).
func WithClock(c Clock) Option {
	return func(vm *VM) { vm.clock = c }
}

// WithLegacyNativeNameEncoding accepts the legacy name-indexed
// CALL_NATIVE operand form in addition to direct IDs (spec §9 Open
// Question 1). Off by default: new bytecode is expected to emit native
// IDs directly.
func WithLegacyNativeNameEncoding() Option {
	return func(vm *VM) { vm.legacyNativeNameEncoding = true }
}

// New constructs a VM bound to module, pool and plat, PC at the
// module's main entry (spec §2 "Control flow").
func New(module *bytecode.Module, pool *poolmem.Pool, plat platform.Platform, opts ...Option) *VM {
	vm := &VM{
		Module:   module,
		Pool:     pool,
		Platform: plat,
		globals:  map[string]api.Value{},
		pc:       int(module.MainEntryPC),
		running:  true,
	}
	vm.frames = append(vm.frames, &CallFrame{FunctionName: "main", ReturnPC: -1})
	for _, name := range module.Globals {
		vm.globals[name] = api.Null
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.clock == nil {
		vm.clock = plat.SystemGetTime
	}
	plat.BindVM(vm)
	return vm
}

// Running implements platform.VM: whether the VM can currently accept a
// re-entrant callback invocation (spec §4.5).
func (vm *VM) Running() bool { return vm.running }

// PC returns the current program counter.
func (vm *VM) PC() int { return vm.pc }

// ErrorKind returns the current error slot's Kind, or ErrorKindNone.
func (vm *VM) ErrorKind() api.ErrorKind { return vm.errKind }

// ErrorText returns the legacy textual error slot (spec §3, §9): empty
// when no error is outstanding.
func (vm *VM) ErrorText() string { return vm.errText }

// Global reads a global by name; ok=false if undeclared.
func (vm *VM) Global(name string) (api.Value, bool) {
	v, ok := vm.globals[name]
	return v, ok
}

// Reset clears the stack, call stack, handlers and error, and restores
// PC to the main entry point (spec §3 "Lifecycle"). The "os" global is
// preserved if the host had populated it, per spec §3.
func (vm *VM) Reset() {
	osVal, hadOS := vm.globals["os"]

	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.handlers = vm.handlers[:0]
	vm.errKind = api.ErrorKindNone
	vm.errText = ""
	vm.running = true
	vm.sleeping = false
	vm.sleepUntil = 0
	vm.pc = int(vm.Module.MainEntryPC)
	vm.invokeDepth = 0

	vm.globals = map[string]api.Value{}
	for _, name := range vm.Module.Globals {
		vm.globals[name] = api.Null
	}
	if hadOS {
		vm.globals["os"] = osVal
	}
	vm.frames = append(vm.frames, &CallFrame{FunctionName: "main", ReturnPC: -1})
}

func (vm *VM) setError(kind api.ErrorKind, detail string) {
	vm.errKind = kind
	vm.errText = api.NewError(kind, detail).Error()
	vm.running = false
}

// stringOf resolves a String handle for Value.Truthy/ToString callers.
func (vm *VM) stringOf(h api.Handle) string { return vm.Pool.String(h) }

func (vm *VM) toStr(v api.Value) string { return api.ToString(v, vm.stringOf) }

func (vm *VM) truthy(v api.Value) bool { return v.Truthy(vm.stringOf) }

// ---- operand stack ----

func (vm *VM) push(v api.Value) { vm.stack = append(vm.stack, v) }

// pop removes and returns the top of stack. On underflow it requests a
// Platform state dump (spec §4.3 "On stack underflow the interpreter
// requests the Platform to dump the VM state") and sets
// ErrorKindStackUnderflow.
func (vm *VM) pop() (api.Value, bool) {
	if len(vm.stack) == 0 {
		vm.dumpState("stack underflow")
		vm.setError(api.ErrorKindStackUnderflow, "operand stack empty")
		return api.Value{}, false
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, true
}

// popN pops n values, returning them in original push order (natural
// arg0..arg(n-1) order), matching the reverse-pop contract of spec
// §4.4. Returns ok=false (and has already set the error slot) on
// underflow.
func (vm *VM) popN(n int) ([]api.Value, bool) {
	out := make([]api.Value, n)
	for i := n - 1; i >= 0; i-- {
		v, ok := vm.pop()
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// frame returns the innermost active call frame. Always non-nil: New
// and Reset both seed a synthetic "main" frame so top-level code has
// somewhere to address LOAD_LOCAL/STORE_LOCAL (spec §3 treats main as
// an ordinary frame with no declared parameters).
func (vm *VM) frame() *CallFrame { return vm.frames[len(vm.frames)-1] }

func (vm *VM) peek() (api.Value, bool) {
	if len(vm.stack) == 0 {
		vm.dumpState("stack underflow")
		vm.setError(api.ErrorKindStackUnderflow, "operand stack empty")
		return api.Value{}, false
	}
	return vm.stack[len(vm.stack)-1], true
}

// dumpState hands the Platform a structured snapshot (spec §4.3, §7;
// shape defined in SPEC_FULL.md §3.2).
func (vm *VM) dumpState(reason string) {
	globals := make(map[string]string, len(vm.globals))
	for name, v := range vm.globals {
		globals[name] = vm.toStr(v)
	}
	frames := make([]platform.FrameDump, len(vm.frames))
	for i, f := range vm.frames {
		locals := make([]string, len(f.Locals))
		for j, l := range f.Locals {
			locals[j] = vm.toStr(l)
		}
		frames[i] = platform.FrameDump{FunctionName: f.FunctionName, ReturnPC: f.ReturnPC, Locals: locals}
	}
	vm.Platform.DumpState(platform.StateDump{
		Reason:    reason,
		PC:        vm.pc,
		Globals:   globals,
		CallStack: frames,
	})
}

// reachableStringHandles collects every String handle reachable from
// current VM roots (operand stack, all call-frame locals, globals,
// exception state) for Pool.ReclaimStrings (spec §4.2). Exception
// handlers carry no Values of their own (just a catch PC and stack
// size), so they contribute nothing beyond what's already on the
// operand stack.
func (vm *VM) reachableStringHandles() map[api.Handle]bool {
	reach := map[api.Handle]bool{}
	mark := func(v api.Value) {
		if v.Kind() == api.KindString {
			reach[v.Handle()] = true
		}
	}
	for _, v := range vm.stack {
		mark(v)
	}
	for _, f := range vm.frames {
		for _, v := range f.Locals {
			mark(v)
		}
	}
	for _, v := range vm.globals {
		mark(v)
	}
	return reach
}

// allocStringWithReclaim implements the Pool allocation policy of spec
// §4.2: on OutOfMemory, run exactly one string-reclamation pass against
// current roots, then retry once.
func (vm *VM) allocStringWithReclaim(s string) (api.Handle, bool) {
	h, err := vm.Pool.AllocString(s)
	if err == nil {
		return h, true
	}
	vm.Pool.ReclaimStrings(vm.reachableStringHandles())
	h, err = vm.Pool.AllocString(s)
	if err != nil {
		vm.setError(api.ErrorKindOutOfMemory, "heap ceiling exceeded after reclamation")
		return 0, false
	}
	return h, true
}
