// Package natives implements the flat numeric native-ID dispatch table
// (spec §4.4): a static mapping of short call-site names to IDs grouped
// by namespace, and the single switch that routes CALL_NATIVE to a
// Platform method.
//
// Grounded on the teacher's imports/wasi_snapshot_preview1 package: one
// file (here, one source region) per subsystem, each function resolving
// its arguments off the engine's stack in a fixed pop order before
// calling into the host facade.
package natives

// ID is the flat numeric native identifier: high byte selects the
// subsystem, low byte the function within it (spec §4.4).
type ID uint16

// Unknown is the sentinel for an unrecognized native ID (spec §4.4).
const Unknown ID = 0xFFFF

func subsystem(hi, lo byte) ID { return ID(hi)<<8 | ID(lo) }

// Subsystem bytes (spec §4.4).
const (
	SubConsole   = 0x00
	SubDisplay   = 0x01
	SubEncoder   = 0x02
	SubSystem    = 0x03
	SubTouch     = 0x04
	SubRFID      = 0x05
	SubFile      = 0x06
	SubDirectory = 0x07
	SubGPIO      = 0x08
	SubI2C       = 0x09
	SubBuzzer    = 0x0A
	SubTimer     = 0x0B
	SubMemory    = 0x0C
	SubPower     = 0x0D
	SubApp       = 0x0E
	SubStorage   = 0x0F
	SubSensor    = 0x10
	SubWiFi      = 0x11
	SubIPC       = 0x12
)

// Native IDs. Values reproduced from spec §6's illustrative table are
// called out; the rest extend each subsystem's low byte in declaration
// order, a gap is left wherever the spec table implies one (e.g.
// ConsoleLog occupies 0x0002, so 0x0000/0x0001 are reserved rather than
// reused).
const (
	ConsoleLog   = ID(SubConsole<<8 | 0x02) // spec §6
	ConsoleError = ID(SubConsole<<8 | 0x03)

	DisplayClear      = ID(SubDisplay<<8 | 0x00) // spec §6
	DisplayDrawText   = ID(SubDisplay<<8 | 0x01) // spec §6
	DisplayDrawCircle = ID(SubDisplay<<8 | 0x03) // spec §6

	EncoderGetButton = ID(SubEncoder<<8 | 0x00) // spec §6
	EncoderGetDelta  = ID(SubEncoder<<8 | 0x01) // spec §6
	EncoderOnTurn    = ID(SubEncoder<<8 | 0x04) // spec §6
	EncoderOnButton  = ID(SubEncoder<<8 | 0x05)

	SystemGetTime = ID(SubSystem<<8 | 0x00) // spec §6
	SystemSleep   = ID(SubSystem<<8 | 0x01) // spec §6

	TouchGetX      = ID(SubTouch<<8 | 0x00)
	TouchGetY      = ID(SubTouch<<8 | 0x01)
	TouchOnPress   = ID(SubTouch<<8 | 0x02)
	TouchOnRelease = ID(SubTouch<<8 | 0x03)
	TouchOnDrag    = ID(SubTouch<<8 | 0x04)

	RFIDRead = ID(SubRFID<<8 | 0x00)

	FileRead   = ID(SubFile<<8 | 0x00)
	FileWrite  = ID(SubFile<<8 | 0x01)
	FileExists = ID(SubFile<<8 | 0x02)
	FileDelete = ID(SubFile<<8 | 0x03)

	DirectoryList   = ID(SubDirectory<<8 | 0x00)
	DirectoryCreate = ID(SubDirectory<<8 | 0x01)

	GPIORead  = ID(SubGPIO<<8 | 0x00)
	GPIOWrite = ID(SubGPIO<<8 | 0x01)

	I2CWrite = ID(SubI2C<<8 | 0x00)
	I2CRead  = ID(SubI2C<<8 | 0x01)

	BuzzerTone = ID(SubBuzzer<<8 | 0x00)

	TimerSetInterval   = ID(SubTimer<<8 | 0x01) // spec §6
	TimerClearInterval = ID(SubTimer<<8 | 0x02)

	MemoryFreeBytes  = ID(SubMemory<<8 | 0x00)
	MemoryTotalBytes = ID(SubMemory<<8 | 0x01)

	PowerBatteryPercent = ID(SubPower<<8 | 0x00)

	AppExit     = ID(SubApp<<8 | 0x00) // spec §6
	AppOnLoad   = ID(SubApp<<8 | 0x02) // spec §6
	AppOnSuspend = ID(SubApp<<8 | 0x03)
	AppOnResume  = ID(SubApp<<8 | 0x04)
	AppOnUnload  = ID(SubApp<<8 | 0x05)

	StorageGet = ID(SubStorage<<8 | 0x00)
	StorageSet = ID(SubStorage<<8 | 0x01)

	SensorRead = ID(SubSensor<<8 | 0x00)

	WiFiConnected = ID(SubWiFi<<8 | 0x00)

	IPCPublish   = ID(SubIPC<<8 | 0x00)
	IPCSubscribe = ID(SubIPC<<8 | 0x01)
)

// names maps every declared ID to its dotted call-site name, used for
// the legacy name-indexed CALL_NATIVE encoding (spec §9 Open Question
// 1: the operand is a constant-pool index naming the native, mapped
// through this name->ID lookup).
var names = map[string]ID{
	"console.log": ConsoleLog, "console.error": ConsoleError,
	"display.clear": DisplayClear, "display.drawText": DisplayDrawText, "display.drawCircle": DisplayDrawCircle,
	"encoder.getButton": EncoderGetButton, "encoder.getDelta": EncoderGetDelta,
	"encoder.onTurn": EncoderOnTurn, "encoder.onButton": EncoderOnButton,
	"system.getTime": SystemGetTime, "system.sleep": SystemSleep,
	"touch.getX": TouchGetX, "touch.getY": TouchGetY,
	"touch.onPress": TouchOnPress, "touch.onRelease": TouchOnRelease, "touch.onDrag": TouchOnDrag,
	"rfid.read": RFIDRead,
	"file.read": FileRead, "file.write": FileWrite, "file.exists": FileExists, "file.delete": FileDelete,
	"directory.list": DirectoryList, "directory.create": DirectoryCreate,
	"gpio.read": GPIORead, "gpio.write": GPIOWrite,
	"i2c.write": I2CWrite, "i2c.read": I2CRead,
	"buzzer.tone": BuzzerTone,
	"timer.setInterval": TimerSetInterval, "timer.clearInterval": TimerClearInterval,
	"memory.freeBytes": MemoryFreeBytes, "memory.totalBytes": MemoryTotalBytes,
	"power.batteryPercent": PowerBatteryPercent,
	"app.exit": AppExit, "app.onLoad": AppOnLoad, "app.onSuspend": AppOnSuspend,
	"app.onResume": AppOnResume, "app.onUnload": AppOnUnload,
	"storage.get": StorageGet, "storage.set": StorageSet,
	"sensor.read": SensorRead,
	"wifi.connected": WiFiConnected,
	"ipc.publish": IPCPublish, "ipc.subscribe": IPCSubscribe,
}

// ByName resolves the legacy name-indexed CALL_NATIVE encoding.
func ByName(name string) ID {
	if id, ok := names[name]; ok {
		return id
	}
	return Unknown
}
