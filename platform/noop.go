package platform

import "github.com/dialscript/dialvm/api"

// Noop is the default, subclassable Platform implementation: every
// method returns a zero value (PowerBatteryPercent reports 100) and
// every side-effecting method is a no-op, except the callback registry
// (embedded Registry) and
// TimerSetInterval, which must track registrations to be useful to
// tests built on top of Noop (spec §9: "provide a default no-op/Null
// implementation so tests can subclass only what they need").
type Noop struct {
	Registry
	nextTimerID int32
}

var _ Platform = (*Noop)(nil)

func NewNoop() *Noop { return &Noop{} }

func (n *Noop) ConsoleLog(string)   {}
func (n *Noop) ConsoleError(string) {}

func (n *Noop) DisplayClear(int32)                             {}
func (n *Noop) DisplayDrawText(int32, int32, string, int32, int32) {}
func (n *Noop) DisplayDrawCircle(int32, int32, int32, int32, bool) {}

func (n *Noop) EncoderGetButton() bool { return false }
func (n *Noop) EncoderGetDelta() int32 { return 0 }
func (n *Noop) EncoderOnTurn(fn api.Value) { n.RegisterCallback("encoder.onTurn", fn) }
func (n *Noop) EncoderOnButton(fn api.Value) { n.RegisterCallback("encoder.onButton", fn) }

func (n *Noop) SystemGetTime() int64 { return 0 }
func (n *Noop) SystemSleep(int32)    {}

func (n *Noop) TouchGetX() int32 { return 0 }
func (n *Noop) TouchGetY() int32 { return 0 }
func (n *Noop) TouchOnPress(fn api.Value)   { n.RegisterCallback("touch.onPress", fn) }
func (n *Noop) TouchOnRelease(fn api.Value) { n.RegisterCallback("touch.onRelease", fn) }
func (n *Noop) TouchOnDrag(fn api.Value)    { n.RegisterCallback("touch.onDrag", fn) }

func (n *Noop) RFIDRead() (string, bool) { return "", false }

func (n *Noop) FileRead(string) (string, bool) { return "", false }
func (n *Noop) FileWrite(string, string) bool  { return false }
func (n *Noop) FileExists(string) bool         { return false }
func (n *Noop) FileDelete(string) bool         { return false }

func (n *Noop) DirectoryList(string) []string { return nil }
func (n *Noop) DirectoryCreate(string) bool   { return false }

func (n *Noop) GPIORead(int32) bool      { return false }
func (n *Noop) GPIOWrite(int32, bool) {}

func (n *Noop) I2CWrite(int32, string) bool     { return false }
func (n *Noop) I2CRead(int32, int32) string { return "" }

func (n *Noop) BuzzerTone(int32, int32) {}

func (n *Noop) TimerSetInterval(fn api.Value, _ int32) (int32, error) {
	n.nextTimerID++
	return n.nextTimerID, nil
}
func (n *Noop) TimerClearInterval(int32) {}

func (n *Noop) MemoryFreeBytes() int32  { return 0 }
func (n *Noop) MemoryTotalBytes() int32 { return 0 }

func (n *Noop) PowerBatteryPercent() int32 { return 100 }

func (n *Noop) AppExit()                   {}
func (n *Noop) AppOnLoad(fn api.Value)     { n.RegisterCallback("app.onLoad", fn) }
func (n *Noop) AppOnSuspend(fn api.Value)  { n.RegisterCallback("app.onSuspend", fn) }
func (n *Noop) AppOnResume(fn api.Value)   { n.RegisterCallback("app.onResume", fn) }
func (n *Noop) AppOnUnload(fn api.Value)   { n.RegisterCallback("app.onUnload", fn) }

func (n *Noop) StorageGet(string) (string, bool) { return "", false }
func (n *Noop) StorageSet(string, string) bool   { return false }

func (n *Noop) SensorRead(int32) float32 { return 0 }

func (n *Noop) WiFiConnected() bool { return false }

func (n *Noop) IPCPublish(string, string) string { return "" }
func (n *Noop) IPCSubscribe(topic string, fn api.Value) {
	n.RegisterCallback("ipc."+topic, fn)
}

func (n *Noop) DumpState(StateDump) {}
