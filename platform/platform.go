// Package platform defines the abstract host facade the interpreter
// calls through (spec §4.5): one synchronous method per native
// subsystem operation, plus the callback registry that lets
// Platform-driven events (encoder turns, touch presses, timers) call
// back into a running VM.
//
// Grounded on the teacher's split between an abstract host-capability
// interface (experimental/sys.go's Sys) and one concrete, swappable
// implementation (experimental/sysfs) — Noop here plays the role of a
// subclassable default, ConsolePlatform the role of a concrete
// implementation.
package platform

import "github.com/dialscript/dialvm/api"

// VM is the minimal re-entrant surface the Platform needs back from the
// interpreter. It is implemented by *vm.VM; kept as an interface here
// so this package never imports vm (vm imports platform, not the other
// way: avoids a cycle, mirrors the teacher's non-owning back-reference
// from experimental.Sys to its Store).
type VM interface {
	// InvokeFunction runs fn re-entrantly with args (spec §4.3).
	InvokeFunction(fn api.Value, args []api.Value) error
	// Running reports whether the VM is currently able to accept a
	// callback invocation (spec §4.5: "If the VM is not running,
	// invoke_callback returns false without invoking").
	Running() bool
}

// StateDump is the structured diagnostic the interpreter hands to
// DumpState on stack underflow (spec §4.3, §7).
// This is the SPEC_FULL.md supplement that gives "dump the VM state"
// a concrete shape (see SPEC_FULL.md §3.2).
type StateDump struct {
	Reason    string
	PC        int
	Globals   map[string]string // name -> to_string() rendering
	CallStack []FrameDump
}

// FrameDump is one call-frame entry in a StateDump.
type FrameDump struct {
	FunctionName string
	ReturnPC     int
	Locals       []string // to_string() rendering, index-aligned
}

// Registry is the event_name -> Function callback table the Platform
// facade owns (spec §4.5). It is deliberately a plain struct embedded
// by value in implementations rather than an interface, since every
// Platform needs the identical bookkeeping.
type Registry struct {
	vm        VM
	callbacks map[string]api.Value
}

// BindVM records the non-owning VM back-reference used for immediate
// callback invocation (spec §2 component 4).
func (r *Registry) BindVM(vm VM) { r.vm = vm }

// RegisterCallback records fn under event, overwriting any previous
// registration. fn is stored as given: neither this method nor the
// natives that call it check that fn is a Function Value.
func (r *Registry) RegisterCallback(event string, fn api.Value) {
	if r.callbacks == nil {
		r.callbacks = map[string]api.Value{}
	}
	r.callbacks[event] = fn
}

// InvokeCallback looks up event, calls VM.InvokeFunction through the
// re-entrant path, and returns success iff a callback was registered
// and completed without error (spec §4.5). Returns false without
// invoking if the VM is not bound or not running.
func (r *Registry) InvokeCallback(event string, args []api.Value) bool {
	fn, ok := r.callbacks[event]
	if !ok || r.vm == nil || !r.vm.Running() {
		return false
	}
	return r.vm.InvokeFunction(fn, args) == nil
}

// HasCallback reports whether event has a registered handler.
func (r *Registry) HasCallback(event string) bool {
	_, ok := r.callbacks[event]
	return ok
}

// Platform groups every native subsystem operation the interpreter can
// dispatch to (spec §4.4, §6). Methods are grouped by subsystem in the
// same order as the native ID namespace. Every Platform embeds
// Registry (via Noop) so callback bookkeeping is never reimplemented
// per concrete facade.
type Platform interface {
	// Console (0x00)
	ConsoleLog(msg string)
	ConsoleError(msg string)

	// Display (0x01)
	DisplayClear(color int32)
	DisplayDrawText(x, y int32, text string, color, size int32)
	DisplayDrawCircle(x, y, r, color int32, filled bool)

	// Encoder (0x02)
	EncoderGetButton() bool
	EncoderGetDelta() int32
	EncoderOnTurn(fn api.Value)
	EncoderOnButton(fn api.Value)

	// System (0x03)
	SystemGetTime() int64
	SystemSleep(ms int32)

	// Touch (0x04)
	TouchGetX() int32
	TouchGetY() int32
	TouchOnPress(fn api.Value)
	TouchOnRelease(fn api.Value)
	TouchOnDrag(fn api.Value)

	// RFID (0x05)
	RFIDRead() (string, bool)

	// File (0x06)
	FileRead(path string) (string, bool)
	FileWrite(path, data string) bool
	FileExists(path string) bool
	FileDelete(path string) bool

	// Directory (0x07)
	DirectoryList(path string) []string
	DirectoryCreate(path string) bool

	// GPIO (0x08)
	GPIORead(pin int32) bool
	GPIOWrite(pin int32, high bool)

	// I2C (0x09)
	I2CWrite(addr int32, data string) bool
	I2CRead(addr, length int32) string

	// Buzzer (0x0A)
	BuzzerTone(freqHz, durationMs int32)

	// Timer (0x0B)
	TimerSetInterval(fn api.Value, ms int32) (int32, error)
	TimerClearInterval(id int32)

	// Memory (0x0C)
	MemoryFreeBytes() int32
	MemoryTotalBytes() int32

	// Power (0x0D)
	PowerBatteryPercent() int32

	// App (0x0E)
	AppExit()
	AppOnLoad(fn api.Value)
	AppOnSuspend(fn api.Value)
	AppOnResume(fn api.Value)
	AppOnUnload(fn api.Value)

	// Storage (0x0F)
	StorageGet(key string) (string, bool)
	StorageSet(key, value string) bool

	// Sensor (0x10)
	SensorRead(id int32) float32

	// WiFi (0x11)
	WiFiConnected() bool

	// IPC (0x12)
	IPCPublish(topic, payload string) string
	IPCSubscribe(topic string, fn api.Value)

	// Diagnostics & callback plumbing (spec §4.5, §7)
	DumpState(dump StateDump)
	BindVM(vm VM)
	InvokeCallback(event string, args []api.Value) bool
	HasCallback(event string) bool
}
