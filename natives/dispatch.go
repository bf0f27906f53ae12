package natives

import (
	"github.com/dialscript/dialvm/api"
	"github.com/dialscript/dialvm/platform"
	"github.com/dialscript/dialvm/poolmem"
)

// handler resolves normalized, fixed-arity arguments (already padded /
// truncated to the native's declared arity by Dispatch) into a Value to
// push, calling through to Platform. Handlers never return an error:
// "native calls never fail the VM themselves" (spec §4.3).
type handler func(args []api.Value, pool *poolmem.Pool, plat platform.Platform) api.Value

type entry struct {
	arity   int
	handler handler
}

// Dispatch resolves id, pops nothing itself (the caller already popped
// exactly argc values off the operand stack, in natural arg0..argN-1
// order per the reverse-pop contract of spec §4.4), and returns the
// Value to push. Unknown IDs are dispatched to Null without raising
// (spec §4.4 NativeUnknown is soft).
func Dispatch(id ID, args []api.Value, pool *poolmem.Pool, plat platform.Platform) api.Value {
	e, ok := table[id]
	if !ok {
		return api.Null
	}
	normalized := normalize(args, e.arity)
	return e.handler(normalized, pool, plat)
}

// normalize pads with Null up to arity (missing trailing arguments,
// spec §4.4) or truncates to arity (extra arguments already popped by
// the caller are simply ignored here, spec §4.4 "popped and
// discarded").
func normalize(args []api.Value, arity int) []api.Value {
	out := make([]api.Value, arity)
	for i := 0; i < arity && i < len(args); i++ {
		out[i] = args[i]
	}
	for i := len(args); i < arity; i++ {
		out[i] = api.Null
	}
	return out
}

func argString(v api.Value, pool *poolmem.Pool) string {
	if v.Kind() != api.KindString {
		return ""
	}
	return pool.String(v.Handle())
}

func argInt32(v api.Value) int32 {
	if v.Kind() == api.KindInt32 {
		return v.AsInt32()
	}
	if v.Kind() == api.KindFloat32 {
		return int32(v.AsFloat32())
	}
	return 0
}

func argBool(v api.Value) bool {
	if v.Kind() == api.KindBool {
		return v.AsBool()
	}
	return false
}

var table map[ID]entry

func init() {
	table = map[ID]entry{
		ConsoleLog:   {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.ConsoleLog(argString(a[0], p))
			return api.Null
		}},
		ConsoleError: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.ConsoleError(argString(a[0], p))
			return api.Null
		}},

		DisplayClear: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.DisplayClear(argInt32(a[0]))
			return api.Null
		}},
		DisplayDrawText: {5, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.DisplayDrawText(argInt32(a[0]), argInt32(a[1]), argString(a[2], p), argInt32(a[3]), argInt32(a[4]))
			return api.Null
		}},
		DisplayDrawCircle: {5, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.DisplayDrawCircle(argInt32(a[0]), argInt32(a[1]), argInt32(a[2]), argInt32(a[3]), argBool(a[4]))
			return api.Null
		}},

		EncoderGetButton: {0, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Bool(plat.EncoderGetButton())
		}},
		EncoderGetDelta: {0, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Int32(plat.EncoderGetDelta())
		}},
		EncoderOnTurn: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.EncoderOnTurn(a[0])
			return api.Null
		}},
		EncoderOnButton: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.EncoderOnButton(a[0])
			return api.Null
		}},

		SystemGetTime: {0, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Int32(int32(plat.SystemGetTime()))
		}},
		SystemSleep: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.SystemSleep(argInt32(a[0]))
			return api.Null
		}},

		TouchGetX: {0, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Int32(plat.TouchGetX())
		}},
		TouchGetY: {0, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Int32(plat.TouchGetY())
		}},
		TouchOnPress: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.TouchOnPress(a[0])
			return api.Null
		}},
		TouchOnRelease: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.TouchOnRelease(a[0])
			return api.Null
		}},
		TouchOnDrag: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.TouchOnDrag(a[0])
			return api.Null
		}},

		RFIDRead: {0, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			s, ok := plat.RFIDRead()
			if !ok {
				return api.Null
			}
			h, err := p.AllocString(s)
			if err != nil {
				return api.Null
			}
			return api.StringHandle(h)
		}},

		FileRead: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			s, ok := plat.FileRead(argString(a[0], p))
			if !ok {
				return api.Null
			}
			h, err := p.AllocString(s)
			if err != nil {
				return api.Null
			}
			return api.StringHandle(h)
		}},
		FileWrite: {2, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Bool(plat.FileWrite(argString(a[0], p), argString(a[1], p)))
		}},
		FileExists: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Bool(plat.FileExists(argString(a[0], p)))
		}},
		FileDelete: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Bool(plat.FileDelete(argString(a[0], p)))
		}},

		DirectoryList: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			entries := plat.DirectoryList(argString(a[0], p))
			h, _, err := p.AllocArray(len(entries))
			if err != nil {
				return api.Null
			}
			arr, _ := p.Array(h)
			for i, e := range entries {
				sh, serr := p.AllocString(e)
				if serr != nil {
					return api.Null
				}
				arr.Set(i, api.StringHandle(sh))
			}
			return api.ArrayHandle(h)
		}},
		DirectoryCreate: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Bool(plat.DirectoryCreate(argString(a[0], p)))
		}},

		GPIORead: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Bool(plat.GPIORead(argInt32(a[0])))
		}},
		GPIOWrite: {2, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.GPIOWrite(argInt32(a[0]), argBool(a[1]))
			return api.Null
		}},

		I2CWrite: {2, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Bool(plat.I2CWrite(argInt32(a[0]), argString(a[1], p)))
		}},
		I2CRead: {2, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			s := plat.I2CRead(argInt32(a[0]), argInt32(a[1]))
			h, err := p.AllocString(s)
			if err != nil {
				return api.Null
			}
			return api.StringHandle(h)
		}},

		BuzzerTone: {2, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.BuzzerTone(argInt32(a[0]), argInt32(a[1]))
			return api.Null
		}},

		// TimerSetInterval requires the Function form (SPEC_FULL.md Open
		// Question 2 / spec §9: reject the legacy delay-only form). A
		// missing/non-Function first argument is treated as ArityMismatch
		// by the vm layer before Dispatch is ever reached; see vm/call.go.
		TimerSetInterval: {2, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			id, err := plat.TimerSetInterval(a[0], argInt32(a[1]))
			if err != nil {
				return api.Null
			}
			return api.Int32(id)
		}},
		TimerClearInterval: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.TimerClearInterval(argInt32(a[0]))
			return api.Null
		}},

		MemoryFreeBytes: {0, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Int32(plat.MemoryFreeBytes())
		}},
		MemoryTotalBytes: {0, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Int32(plat.MemoryTotalBytes())
		}},

		PowerBatteryPercent: {0, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Int32(plat.PowerBatteryPercent())
		}},

		AppExit: {0, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.AppExit()
			return api.Null
		}},
		AppOnLoad: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.AppOnLoad(a[0])
			return api.Null
		}},
		AppOnSuspend: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.AppOnSuspend(a[0])
			return api.Null
		}},
		AppOnResume: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.AppOnResume(a[0])
			return api.Null
		}},
		AppOnUnload: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.AppOnUnload(a[0])
			return api.Null
		}},

		StorageGet: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			s, ok := plat.StorageGet(argString(a[0], p))
			if !ok {
				return api.Null
			}
			h, err := p.AllocString(s)
			if err != nil {
				return api.Null
			}
			return api.StringHandle(h)
		}},
		StorageSet: {2, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Bool(plat.StorageSet(argString(a[0], p), argString(a[1], p)))
		}},

		SensorRead: {1, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Float32(plat.SensorRead(argInt32(a[0])))
		}},

		WiFiConnected: {0, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			return api.Bool(plat.WiFiConnected())
		}},

		IPCPublish: {2, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			id := plat.IPCPublish(argString(a[0], p), argString(a[1], p))
			h, err := p.AllocString(id)
			if err != nil {
				return api.Null
			}
			return api.StringHandle(h)
		}},
		IPCSubscribe: {2, func(a []api.Value, p *poolmem.Pool, plat platform.Platform) api.Value {
			plat.IPCSubscribe(argString(a[0], p), a[1])
			return api.Null
		}},
	}
}

// Arity returns the declared fixed arity for id; ok is false for an
// unknown id.
func Arity(id ID) (int, bool) {
	e, ok := table[id]
	return e.arity, ok
}
